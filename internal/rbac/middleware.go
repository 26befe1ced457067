package rbac

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/geoapp/geoapp-api/internal/observability"
	"github.com/geoapp/geoapp-api/internal/platform/httpx"
	"github.com/geoapp/geoapp-api/internal/shared"
)

// Middleware wires permission policies onto HTTP handlers.
type Middleware struct {
	Logger  *slog.Logger
	Metrics *observability.Metrics
}

// RequirePolicy ensures the caller's token satisfies every named policy.
// Unknown policy names panic at route registration.
func (m Middleware) RequirePolicy(names ...string) func(http.Handler) http.Handler {
	var required []Permission
	for _, name := range names {
		policy, ok := LookupPolicy(name)
		if !ok {
			panic(fmt.Sprintf("rbac: unknown policy %q", name))
		}
		required = append(required, policy.permissions()...)
	}
	label := strings.Join(names, ",")
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal := shared.PrincipalFromContext(r.Context())
			if principal == nil {
				httpx.Unauthorized(w)
				return
			}
			decision := Evaluate(principal.Permissions, required...)
			m.Metrics.RecordAuthorization(label, decision.Allowed, string(decision.Reason))
			if !decision.Allowed {
				if m.Logger != nil {
					m.Logger.Warn("rbac deny",
						slog.String("policy", label),
						slog.String("reason", string(decision.Reason)),
						slog.Any("missing", Strings(decision.Missing)),
						slog.String("user_id", principal.UserID),
					)
				}
				httpx.Problem(w, http.StatusForbidden, "Forbidden", "")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireIdentity rejects tokens that carry no identity claims.
func (m Middleware) RequireIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if shared.PrincipalFromContext(r.Context()).Anonymous() {
			httpx.Unauthorized(w)
			return
		}
		next.ServeHTTP(w, r)
	})
}
