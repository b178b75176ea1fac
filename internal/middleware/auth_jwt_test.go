package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"productstudio/internal/auth"
)

const testSecret = "test-secret"

func signed(t *testing.T, sub string) string {
	t.Helper()
	token, err := auth.SignToken(testSecret, auth.TokenClaims{Sub: sub, Exp: time.Now().Add(time.Hour).Unix()})
	if err != nil {
		t.Fatalf("SignToken: %v", err)
	}
	return token
}

func TestAuthenticateResolvesIdentity(t *testing.T) {
	tests := []struct {
		name  string
		setup func(r *http.Request)
		want  string
	}{
		{
			name:  "bearer header",
			setup: func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+signed(t, "u1")) },
			want:  "u1",
		},
		{
			name:  "session cookie",
			setup: func(r *http.Request) { r.AddCookie(&http.Cookie{Name: "session", Value: signed(t, "u2")}) },
			want:  "u2",
		},
		{
			name:  "bad signature is anonymous",
			setup: func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+signed(t, "u1")+"x") },
			want:  "",
		},
		{
			name:  "non bearer scheme is anonymous",
			setup: func(r *http.Request) { r.Header.Set("Authorization", "Basic Zm9vOmJhcg==") },
			want:  "",
		},
		{
			name: "no credentials",
			want: "",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var got string
			h := Authenticate(testSecret, "session")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				got = IdentityFromContext(r.Context()).UserID
			}))
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tc.setup != nil {
				tc.setup(req)
			}
			h.ServeHTTP(httptest.NewRecorder(), req)
			if got != tc.want {
				t.Fatalf("user = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestRequireAuth(t *testing.T) {
	h := Authenticate(testSecret, "session")(RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	if rr.Code != http.StatusUnauthorized || rr.Body.String() != `{"error":"Unauthorized"}` {
		t.Fatalf("anonymous = %d %s", rr.Code, rr.Body.String())
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+signed(t, "u1"))
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusNoContent {
		t.Fatalf("authenticated status = %d", rr.Code)
	}
}
