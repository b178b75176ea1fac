package middleware

import (
	"context"
	"net/http"
	"strings"

	"productstudio/internal/auth"
)

type identityKey struct{}

// Authenticate resolves the caller from a bearer token or the session cookie.
// Requests without valid credentials continue as anonymous; handlers decide
// whether that is allowed.
func Authenticate(secret, cookieName string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := sessionToken(r, cookieName)
			if token != "" {
				if id, err := auth.VerifyToken(secret, token); err == nil {
					r = r.WithContext(ContextWithIdentity(r.Context(), id))
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireAuth rejects anonymous requests with 401 {"error":"Unauthorized"}.
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !IdentityFromContext(r.Context()).Authenticated() {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":"Unauthorized"}`))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func sessionToken(r *http.Request, cookieName string) string {
	if h := r.Header.Get("Authorization"); h != "" {
		parts := strings.SplitN(h, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return strings.TrimSpace(parts[1])
		}
		return ""
	}
	if cookieName == "" {
		return ""
	}
	if c, err := r.Cookie(cookieName); err == nil {
		return strings.TrimSpace(c.Value)
	}
	return ""
}

// IdentityFromContext returns the caller, or the anonymous zero Identity.
func IdentityFromContext(ctx context.Context) auth.Identity {
	if v, ok := ctx.Value(identityKey{}).(auth.Identity); ok {
		return v
	}
	return auth.Identity{}
}

func ContextWithIdentity(ctx context.Context, id auth.Identity) context.Context {
	if !id.Authenticated() {
		return ctx
	}
	return context.WithValue(ctx, identityKey{}, id)
}
