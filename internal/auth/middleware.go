package auth

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/geoapp/geoapp-api/internal/platform/httpx"
	"github.com/geoapp/geoapp-api/internal/shared"
)

// Authenticator resolves bearer tokens into a request-scoped Principal.
// Requests without an Authorization header pass through unauthenticated;
// policies downstream decide whether that is acceptable.
type Authenticator struct {
	Verifier *TokenVerifier
	Logger   *slog.Logger
}

// Middleware verifies the bearer token and stores the principal in context.
func (a Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" {
			next.ServeHTTP(w, r)
			return
		}
		scheme, raw, ok := strings.Cut(header, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") {
			httpx.Unauthorized(w)
			return
		}
		principal, err := a.Verifier.Verify(raw)
		if err != nil {
			if a.Logger != nil {
				a.Logger.Info("bearer token rejected", slog.String("path", r.URL.Path), slog.Any("error", err))
			}
			httpx.Unauthorized(w)
			return
		}
		next.ServeHTTP(w, r.WithContext(shared.ContextWithPrincipal(r.Context(), principal)))
	})
}
