package shared

import (
	"context"
	"slices"
	"time"
)

// Principal is the authenticated caller as presented by a validated token.
type Principal struct {
	UserID      string
	Username    string
	Roles       []string
	Permissions []string
	TokenID     string
	ExpiresAt   time.Time
}

// HasRole reports whether the token carried the given role.
func (p *Principal) HasRole(role string) bool {
	return p != nil && slices.Contains(p.Roles, role)
}

// Anonymous reports whether the token carries no identity claims, as is the
// case for registration tokens.
func (p *Principal) Anonymous() bool {
	return p == nil || p.UserID == ""
}

type principalContextKey struct{}

// ContextWithPrincipal stores the principal in context.
func ContextWithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalContextKey{}, p)
}

// PrincipalFromContext extracts the principal from context.
func PrincipalFromContext(ctx context.Context) *Principal {
	p, _ := ctx.Value(principalContextKey{}).(*Principal)
	return p
}
