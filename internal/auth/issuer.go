package auth

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"

	"github.com/geoapp/geoapp-api/internal/observability"
	"github.com/geoapp/geoapp-api/internal/rbac"
	"github.com/geoapp/geoapp-api/internal/shared"
	"github.com/geoapp/geoapp-api/internal/users"
)

// MinKeyLength is the shortest HS256 signing key accepted, in bytes.
const MinKeyLength = 32

// SigningConfig is the deployment configuration shared by issuer and verifier.
type SigningConfig struct {
	Key      []byte
	Issuer   string
	Audience string
}

// Validate reports misconfiguration as ErrFatalConfig.
func (c SigningConfig) Validate() error {
	if len(c.Key) < MinKeyLength {
		return fmt.Errorf("%w: signing key must be at least %d bytes, got %d", ErrFatalConfig, MinKeyLength, len(c.Key))
	}
	if strings.TrimSpace(c.Issuer) == "" {
		return fmt.Errorf("%w: issuer required", ErrFatalConfig)
	}
	if strings.TrimSpace(c.Audience) == "" {
		return fmt.Errorf("%w: audience required", ErrFatalConfig)
	}
	return nil
}

// RoleSource is the slice of the identity store the issuer reads.
type RoleSource interface {
	FindByID(ctx context.Context, id string) (*users.User, error)
	GetRoles(ctx context.Context, userID string) ([]string, error)
}

// TokenIssuer mints signed tokens and enforces the escalation limits of each
// issuance path.
type TokenIssuer struct {
	cfg     SigningConfig
	roles   RoleSource
	metrics *observability.Metrics
	now     func() time.Time
}

// NewIssuer validates cfg and constructs a TokenIssuer.
func NewIssuer(cfg SigningConfig, roles RoleSource, metrics *observability.Metrics) (*TokenIssuer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if roles == nil {
		return nil, fmt.Errorf("%w: role source required", ErrFatalConfig)
	}
	return &TokenIssuer{cfg: cfg, roles: roles, metrics: metrics, now: time.Now}, nil
}

type tokenClaims struct {
	userID      string
	username    string
	roles       []string
	permissions []rbac.Permission
	lifetime    time.Duration
}

// IssueUserToken mints the token handed out at registration and login: the
// default permission set for two hours.
func (i *TokenIssuer) IssueUserToken(ctx context.Context, user *users.User) (IssuedToken, error) {
	tok, err := i.issueUserToken(ctx, user)
	i.metrics.RecordTokenIssued(string(KindUser), err)
	return tok, err
}

func (i *TokenIssuer) issueUserToken(ctx context.Context, user *users.User) (IssuedToken, error) {
	if user == nil || user.ID == "" {
		return IssuedToken{}, validationError("identity required")
	}
	roles, err := i.roles.GetRoles(ctx, user.ID)
	if err != nil {
		return IssuedToken{}, fmt.Errorf("auth: load roles: %w", err)
	}
	return i.sign(KindUser, tokenClaims{
		userID:      user.ID,
		username:    user.Username,
		roles:       roles,
		permissions: rbac.DefaultPermissions(),
		lifetime:    UserTokenLifetime,
	})
}

// IssueDelegatedToken lets an authenticated identity mint a token for itself
// with a bounded permission subset and lifetime. Any violated precondition
// fails the whole request.
func (i *TokenIssuer) IssueDelegatedToken(ctx context.Context, requester *shared.Principal, targetID string, requested []string, lifetime time.Duration) (IssuedToken, error) {
	tok, err := i.issueDelegatedToken(ctx, requester, targetID, requested, lifetime)
	i.metrics.RecordTokenIssued(string(KindDelegated), err)
	return tok, err
}

func (i *TokenIssuer) issueDelegatedToken(ctx context.Context, requester *shared.Principal, targetID string, requested []string, lifetime time.Duration) (IssuedToken, error) {
	if requester.Anonymous() {
		return IssuedToken{}, authorizationError("delegated issuance requires an identity")
	}
	if requester.UserID != targetID {
		return IssuedToken{}, authorizationError("tokens can only be issued for the caller")
	}
	perms, err := parseDelegatedPermissions(requested)
	if err != nil {
		return IssuedToken{}, err
	}
	if !rbac.Covers(requester.Permissions, perms) {
		return IssuedToken{}, validationError("requested permissions exceed the caller's token")
	}
	if lifetime <= 0 {
		return IssuedToken{}, validationError("lifetime must be positive")
	}
	if lifetime > MaxTokenLifetime {
		return IssuedToken{}, validationError("lifetime %s exceeds maximum %s", lifetime, MaxTokenLifetime)
	}

	user, err := i.roles.FindByID(ctx, targetID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return IssuedToken{}, authorizationError("identity unavailable")
		}
		return IssuedToken{}, fmt.Errorf("auth: load identity: %w", err)
	}
	roles, err := i.roles.GetRoles(ctx, user.ID)
	if err != nil {
		return IssuedToken{}, fmt.Errorf("auth: load roles: %w", err)
	}
	return i.sign(KindDelegated, tokenClaims{
		userID:      user.ID,
		username:    user.Username,
		roles:       roles,
		permissions: perms,
		lifetime:    lifetime,
	})
}

func parseDelegatedPermissions(requested []string) ([]rbac.Permission, error) {
	if len(requested) == 0 {
		return nil, validationError("at least one permission required")
	}
	perms := make([]rbac.Permission, 0, len(requested))
	for _, raw := range requested {
		p, ok := rbac.ParsePermission(raw)
		if !ok {
			return nil, validationError("unknown permission %q", raw)
		}
		if p.Privileged() {
			return nil, validationError("permission %s cannot be delegated", p)
		}
		if !slices.Contains(perms, p) {
			perms = append(perms, p)
		}
	}
	return perms, nil
}

// IssueRegistrationToken mints a short-lived token whose only permission is
// perm:Register. It carries no identity claims.
func (i *TokenIssuer) IssueRegistrationToken() (IssuedToken, error) {
	tok, err := i.issueRegistrationToken(KindRegistration)
	i.metrics.RecordTokenIssued(string(KindRegistration), err)
	return tok, err
}

// IssueAdminRegistrationToken mints a registration token on behalf of an
// administrator. Role membership is read from the store, not the token.
func (i *TokenIssuer) IssueAdminRegistrationToken(ctx context.Context, requester *shared.Principal) (IssuedToken, error) {
	tok, err := i.issueAdminRegistrationToken(ctx, requester)
	i.metrics.RecordTokenIssued(string(KindAdminRegistration), err)
	return tok, err
}

func (i *TokenIssuer) issueAdminRegistrationToken(ctx context.Context, requester *shared.Principal) (IssuedToken, error) {
	if requester.Anonymous() {
		return IssuedToken{}, authorizationError("administrator identity required")
	}
	roles, err := i.roles.GetRoles(ctx, requester.UserID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return IssuedToken{}, authorizationError("administrator identity required")
		}
		return IssuedToken{}, fmt.Errorf("auth: load roles: %w", err)
	}
	if !slices.Contains(roles, rbac.RoleAdmin) {
		return IssuedToken{}, authorizationError("caller is not in role %s", rbac.RoleAdmin)
	}
	return i.issueRegistrationToken(KindAdminRegistration)
}

func (i *TokenIssuer) issueRegistrationToken(kind Kind) (IssuedToken, error) {
	return i.sign(kind, tokenClaims{
		permissions: []rbac.Permission{rbac.PermRegister},
		lifetime:    RegistrationTokenLifetime,
	})
}

func (i *TokenIssuer) sign(kind Kind, c tokenClaims) (IssuedToken, error) {
	if c.lifetime <= 0 || c.lifetime > MaxTokenLifetime {
		return IssuedToken{}, validationError("lifetime %s out of bounds", c.lifetime)
	}
	issuedAt := i.now().UTC().Truncate(time.Second)
	expiresAt := issuedAt.Add(c.lifetime)
	id := uuid.NewString()

	builder := jwt.NewBuilder().
		JwtID(id).
		Issuer(i.cfg.Issuer).
		Audience([]string{i.cfg.Audience}).
		IssuedAt(issuedAt).
		NotBefore(issuedAt).
		Expiration(expiresAt)
	if c.userID != "" {
		builder = builder.
			Claim(ClaimName, c.username).
			Claim(ClaimNameIdentifier, c.userID)
	}
	if v, ok := multiValue(c.roles); ok {
		builder = builder.Claim(ClaimRole, v)
	}
	perms := rbac.Strings(c.permissions)
	if v, ok := multiValue(perms); ok {
		builder = builder.Claim(rbac.PermissionClaim, v)
	}

	tok, err := builder.Build()
	if err != nil {
		return IssuedToken{}, fmt.Errorf("auth: build token: %w", err)
	}
	signed, err := jwt.Sign(tok, jwt.WithKey(jwa.HS256, i.cfg.Key))
	if err != nil {
		return IssuedToken{}, fmt.Errorf("auth: sign token: %w", err)
	}
	return IssuedToken{
		Token:       string(signed),
		ID:          id,
		Kind:        kind,
		Permissions: perms,
		IssuedAt:    issuedAt,
		ExpiresAt:   expiresAt,
	}, nil
}

// multiValue encodes a repeated claim: one value as a string, several as an
// array, none omitted.
func multiValue(values []string) (any, bool) {
	switch len(values) {
	case 0:
		return nil, false
	case 1:
		return values[0], true
	default:
		out := make([]string, len(values))
		copy(out, values)
		return out, true
	}
}
