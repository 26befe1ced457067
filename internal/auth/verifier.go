package auth

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"

	"github.com/geoapp/geoapp-api/internal/rbac"
	"github.com/geoapp/geoapp-api/internal/shared"
)

// ClockSkew is the tolerance applied to exp and nbf.
const ClockSkew = 30 * time.Second

// TokenVerifier checks signature, issuer, audience and lifetime of bearer
// tokens and resolves them to a Principal.
type TokenVerifier struct {
	cfg SigningConfig
	now func() time.Time
}

// NewVerifier validates cfg and constructs a TokenVerifier.
func NewVerifier(cfg SigningConfig) (*TokenVerifier, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &TokenVerifier{cfg: cfg, now: time.Now}, nil
}

// Verify parses raw and returns the principal it asserts.
func (v *TokenVerifier) Verify(raw string) (*shared.Principal, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, ErrInvalidToken
	}
	tok, err := jwt.Parse([]byte(raw),
		jwt.WithKey(jwa.HS256, v.cfg.Key),
		jwt.WithValidate(true),
		jwt.WithIssuer(v.cfg.Issuer),
		jwt.WithAudience(v.cfg.Audience),
		jwt.WithRequiredClaim(jwt.ExpirationKey),
		jwt.WithAcceptableSkew(ClockSkew),
		jwt.WithClock(jwt.ClockFunc(v.now)),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !tok.IssuedAt().IsZero() && tok.Expiration().Sub(tok.IssuedAt()) > MaxTokenLifetime {
		return nil, fmt.Errorf("%w: lifetime exceeds maximum", ErrInvalidToken)
	}

	principal := &shared.Principal{
		TokenID:   tok.JwtID(),
		ExpiresAt: tok.Expiration(),
	}
	if principal.Username, err = singleValue(tok, ClaimName); err != nil {
		return nil, err
	}
	if principal.UserID, err = singleValue(tok, ClaimNameIdentifier); err != nil {
		return nil, err
	}
	if principal.Roles, err = claimValues(tok, ClaimRole); err != nil {
		return nil, err
	}
	if principal.Permissions, err = claimValues(tok, rbac.PermissionClaim); err != nil {
		return nil, err
	}
	return principal, nil
}

func singleValue(tok jwt.Token, name string) (string, error) {
	raw, ok := tok.Get(name)
	if !ok {
		return "", nil
	}
	s, ok := raw.(string)
	if !ok {
		return "", fmt.Errorf("%w: claim %s is not a string", ErrInvalidToken, name)
	}
	return s, nil
}

// claimValues decodes a repeated claim. It accepts a single string, an array
// of strings, or a string holding a JSON-encoded array as written by older
// issuers. Duplicates collapse; order is preserved.
func claimValues(tok jwt.Token, name string) ([]string, error) {
	raw, ok := tok.Get(name)
	if !ok {
		return nil, nil
	}
	var values []string
	switch v := raw.(type) {
	case string:
		trimmed := strings.TrimSpace(v)
		// A malformed array is passed through as-is so the evaluator can
		// report it as unparseable.
		if !strings.HasPrefix(trimmed, "[") || json.Unmarshal([]byte(trimmed), &values) != nil {
			values = []string{v}
		}
	case []string:
		values = v
	case []any:
		values = make([]string, 0, len(v))
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("%w: claim %s holds a non-string value", ErrInvalidToken, name)
			}
			values = append(values, s)
		}
	default:
		return nil, fmt.Errorf("%w: claim %s has unsupported type %T", ErrInvalidToken, name, raw)
	}
	return dedupe(values), nil
}

func dedupe(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
