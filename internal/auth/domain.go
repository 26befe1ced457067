package auth

import "time"

// Claim names. Identity claims keep the URIs the web front end decodes.
const (
	ClaimName           = "http://schemas.xmlsoap.org/ws/2005/05/identity/claims/name"
	ClaimNameIdentifier = "http://schemas.xmlsoap.org/ws/2005/05/identity/claims/nameidentifier"
	ClaimRole           = "http://schemas.microsoft.com/ws/2008/06/identity/claims/role"
)

// Token lifetimes.
const (
	UserTokenLifetime         = 2 * time.Hour
	RegistrationTokenLifetime = 30 * time.Minute
	MaxTokenLifetime          = 365 * 24 * time.Hour
)

// Kind labels the issuance path of a token.
type Kind string

// Issuance paths.
const (
	KindUser              Kind = "user"
	KindDelegated         Kind = "delegated"
	KindRegistration      Kind = "registration"
	KindAdminRegistration Kind = "admin_registration"
)

// IssuedToken is a signed token and the facts it asserts.
type IssuedToken struct {
	Token       string    `json:"token"`
	ID          string    `json:"-"`
	Kind        Kind      `json:"-"`
	Permissions []string  `json:"-"`
	IssuedAt    time.Time `json:"-"`
	ExpiresAt   time.Time `json:"expiresAt"`
}
