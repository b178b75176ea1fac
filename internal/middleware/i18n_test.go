package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

type assertError string

func (e assertError) Error() string { return string(e) }

func TestLocalizerDetect(t *testing.T) {
	tests := []struct {
		name     string
		setup    func(r *http.Request)
		fallback string
		lookup   CountryLookup
		want     string
	}{
		{
			name: "x-locale overrides accept-language",
			setup: func(r *http.Request) {
				r.Header.Set("X-Locale", "ja")
				r.Header.Set("Accept-Language", "fr-FR,fr;q=0.9")
			},
			want: "ja",
		},
		{
			name: "x-locale underscore form",
			setup: func(r *http.Request) {
				r.Header.Set("X-Locale", "zh_CN")
			},
			want: "zh-CN",
		},
		{
			name: "invalid x-locale falls through",
			setup: func(r *http.Request) {
				r.Header.Set("X-Locale", "!!")
				r.Header.Set("Accept-Language", "de-DE,de;q=0.9")
			},
			want: "de",
		},
		{
			name: "accept-language regional variant",
			setup: func(r *http.Request) {
				r.Header.Set("Accept-Language", "pt-BR,pt;q=0.9,en;q=0.5")
			},
			want: "pt",
		},
		{
			name: "accept-language traditional chinese",
			setup: func(r *http.Request) {
				r.Header.Set("Accept-Language", "zh-TW")
			},
			want: "zh-TW",
		},
		{
			name: "country header maps to locale",
			setup: func(r *http.Request) {
				r.Header.Set("CF-IPCountry", "kr")
			},
			want: "ko",
		},
		{
			name: "geoip lookup maps to locale",
			lookup: func(ip string) (string, error) {
				return "it", nil
			},
			want: "it",
		},
		{
			name: "unmapped country uses default",
			setup: func(r *http.Request) {
				r.Header.Set("CF-IPCountry", "ID")
			},
			want: "zh-TW",
		},
		{
			name:     "configured fallback",
			fallback: "en",
			want:     "en",
		},
		{
			name:     "unsupported fallback replaced by default",
			fallback: "tlh",
			want:     "zh-TW",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = "203.0.113.4:80"
			if tc.setup != nil {
				tc.setup(req)
			}
			got, _ := NewLocalizer(tc.fallback, tc.lookup).Detect(req)
			if got != tc.want {
				t.Fatalf("Detect() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestResolveCountry(t *testing.T) {
	tests := []struct {
		name     string
		setup    func(r *http.Request)
		resolver CountryLookup
		want     string
	}{
		{
			name: "header precedence",
			setup: func(r *http.Request) {
				r.Header.Set("CF-IPCountry", "jp")
				r.Header.Set("X-Country-Code", "us")
			},
			want: "JP",
		},
		{
			name: "unknown cdn country ignored",
			setup: func(r *http.Request) {
				r.Header.Set("CF-IPCountry", "XX")
			},
			want: "",
		},
		{
			name: "resolver fallback",
			resolver: func(ip string) (string, error) {
				if ip != "203.0.113.4" {
					t.Fatalf("unexpected ip: %s", ip)
				}
				return "tw", nil
			},
			want: "TW",
		},
		{
			name: "resolver error returns empty",
			resolver: func(ip string) (string, error) {
				return "", assertError("boom")
			},
			want: "",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = "203.0.113.4:80"
			if tc.setup != nil {
				tc.setup(req)
			}
			if got := ResolveCountry(req, tc.resolver); got != tc.want {
				t.Fatalf("ResolveCountry() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestI18NSetsContextAndHeader(t *testing.T) {
	var gotLocale, gotCountry string
	h := I18N(NewLocalizer("", nil))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotLocale = LocaleFromContext(r.Context())
		gotCountry = CountryFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Accept-Language", "es-MX")
	req.Header.Set("CF-IPCountry", "MX")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if gotLocale != "es" || gotCountry != "MX" {
		t.Fatalf("context = (%q, %q), want (es, MX)", gotLocale, gotCountry)
	}
	if rr.Header().Get("Content-Language") != "es" {
		t.Fatalf("Content-Language = %q", rr.Header().Get("Content-Language"))
	}
}

func TestLocaleFromContextDefault(t *testing.T) {
	if got := LocaleFromContext(context.Background()); got != DefaultLocale {
		t.Fatalf("LocaleFromContext() default = %q, want %q", got, DefaultLocale)
	}
}
