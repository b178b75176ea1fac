package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestCORS(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })

	tests := []struct {
		name       string
		allowed    []string
		origin     string
		method     string
		wantOrigin string
		wantCreds  string
		wantStatus int
	}{
		{"listed origin", []string{"https://app.example.com/"}, "https://app.example.com", http.MethodGet, "https://app.example.com", "true", http.StatusOK},
		{"unlisted origin", []string{"https://app.example.com"}, "https://evil.example.com", http.MethodGet, "", "", http.StatusOK},
		{"wildcard", []string{"*"}, "https://any.example.com", http.MethodGet, "*", "", http.StatusOK},
		{"preflight", []string{"https://app.example.com"}, "https://app.example.com", http.MethodOptions, "https://app.example.com", "true", http.StatusNoContent},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(tc.method, "/api/generate", nil)
			req.Header.Set("Origin", tc.origin)
			rr := httptest.NewRecorder()
			CORS(tc.allowed)(next).ServeHTTP(rr, req)

			if rr.Code != tc.wantStatus {
				t.Fatalf("status = %d, want %d", rr.Code, tc.wantStatus)
			}
			if got := rr.Header().Get("Access-Control-Allow-Origin"); got != tc.wantOrigin {
				t.Fatalf("Allow-Origin = %q, want %q", got, tc.wantOrigin)
			}
			if got := rr.Header().Get("Access-Control-Allow-Credentials"); got != tc.wantCreds {
				t.Fatalf("Allow-Credentials = %q, want %q", got, tc.wantCreds)
			}
		})
	}
}
