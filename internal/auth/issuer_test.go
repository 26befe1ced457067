package auth

import (
	"context"
	"encoding/base64"
	"testing"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/geoapp/geoapp-api/internal/platform/httpx"
	"github.com/geoapp/geoapp-api/internal/rbac"
	"github.com/geoapp/geoapp-api/internal/shared"
	"github.com/geoapp/geoapp-api/internal/users"
)

const testPassword = "Str0ng!pw"

var testSigning = SigningConfig{
	Key:      []byte("0123456789abcdef0123456789abcdef"),
	Issuer:   "geoapp-test",
	Audience: "geoapp-test",
}

type fixture struct {
	store    *users.Store
	issuer   *TokenIssuer
	verifier *TokenVerifier
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := users.NewStore(users.NewMemoryRepository())
	issuer, err := NewIssuer(testSigning, store, nil)
	require.NoError(t, err)
	verifier, err := NewVerifier(testSigning)
	require.NoError(t, err)
	return &fixture{store: store, issuer: issuer, verifier: verifier}
}

func (f *fixture) createUser(t *testing.T, name string, roles ...string) *users.User {
	t.Helper()
	ctx := context.Background()
	user := &users.User{Username: name}
	require.NoError(t, f.store.Create(ctx, user, testPassword))
	for _, role := range roles {
		exists, err := f.store.RoleExists(ctx, role)
		require.NoError(t, err)
		if !exists {
			require.NoError(t, f.store.CreateRole(ctx, role))
		}
		require.NoError(t, f.store.AssignRole(ctx, user.ID, role))
	}
	return user
}

func (f *fixture) principal(t *testing.T, tok IssuedToken) *shared.Principal {
	t.Helper()
	p, err := f.verifier.Verify(tok.Token)
	require.NoError(t, err)
	return p
}

func TestSigningConfigValidate(t *testing.T) {
	short := testSigning
	short.Key = []byte("too-short")
	_, err := NewIssuer(short, users.NewStore(users.NewMemoryRepository()), nil)
	assert.ErrorIs(t, err, ErrFatalConfig)

	_, err = NewVerifier(short)
	assert.ErrorIs(t, err, ErrFatalConfig)

	noIssuer := testSigning
	noIssuer.Issuer = " "
	assert.ErrorIs(t, noIssuer.Validate(), ErrFatalConfig)

	noAudience := testSigning
	noAudience.Audience = ""
	assert.ErrorIs(t, noAudience.Validate(), ErrFatalConfig)

	_, err = NewIssuer(testSigning, nil, nil)
	assert.ErrorIs(t, err, ErrFatalConfig)
}

func TestIssueUserToken(t *testing.T) {
	f := newFixture(t)
	user := f.createUser(t, "alice", rbac.RoleAdmin)

	tok, err := f.issuer.IssueUserToken(context.Background(), user)
	require.NoError(t, err)
	assert.Equal(t, KindUser, tok.Kind)
	assert.Equal(t, UserTokenLifetime, tok.ExpiresAt.Sub(tok.IssuedAt))

	p := f.principal(t, tok)
	assert.Equal(t, user.ID, p.UserID)
	assert.Equal(t, "alice", p.Username)
	assert.Equal(t, []string{rbac.RoleAdmin}, p.Roles)
	assert.ElementsMatch(t, rbac.Strings(rbac.DefaultPermissions()), p.Permissions)
	assert.Equal(t, tok.ID, p.TokenID)
	assert.True(t, p.ExpiresAt.Equal(tok.ExpiresAt))

	assert.True(t, rbac.Evaluate(p.Permissions, rbac.PermReadData, rbac.PermWriteData).Allowed)
	assert.False(t, rbac.Evaluate(p.Permissions, rbac.PermRegister).Allowed)
	assert.False(t, rbac.Evaluate(p.Permissions, rbac.PermGenerateToken).Allowed)
}

func TestIssueUserTokenRequiresIdentity(t *testing.T) {
	f := newFixture(t)
	_, err := f.issuer.IssueUserToken(context.Background(), nil)
	assert.ErrorIs(t, err, httpx.ErrValidation)
	_, err = f.issuer.IssueUserToken(context.Background(), &users.User{})
	assert.ErrorIs(t, err, httpx.ErrValidation)
}

func TestTokenIDsAreUnique(t *testing.T) {
	f := newFixture(t)
	user := f.createUser(t, "alice")
	a, err := f.issuer.IssueUserToken(context.Background(), user)
	require.NoError(t, err)
	b, err := f.issuer.IssueUserToken(context.Background(), user)
	require.NoError(t, err)
	assert.NotEqual(t, a.ID, b.ID)
	assert.NotEqual(t, a.Token, b.Token)
}

func TestIssueRegistrationToken(t *testing.T) {
	f := newFixture(t)
	tok, err := f.issuer.IssueRegistrationToken()
	require.NoError(t, err)
	assert.Equal(t, RegistrationTokenLifetime, tok.ExpiresAt.Sub(tok.IssuedAt))

	p := f.principal(t, tok)
	assert.True(t, p.Anonymous())
	assert.Empty(t, p.Username)
	assert.Empty(t, p.Roles)
	assert.Equal(t, []string{string(rbac.PermRegister)}, p.Permissions)
	assert.True(t, rbac.Evaluate(p.Permissions, rbac.PermRegister).Allowed)
	assert.False(t, rbac.Evaluate(p.Permissions, rbac.PermReadData).Allowed)
}

func TestIssueDelegatedToken(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := f.createUser(t, "alice")
	userTok, err := f.issuer.IssueUserToken(ctx, user)
	require.NoError(t, err)
	caller := f.principal(t, userTok)

	tok, err := f.issuer.IssueDelegatedToken(ctx, caller, user.ID, []string{"perm:ReadData", " perm:ReadData "}, 30*24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, KindDelegated, tok.Kind)
	assert.Equal(t, 30*24*time.Hour, tok.ExpiresAt.Sub(tok.IssuedAt))

	p := f.principal(t, tok)
	assert.Equal(t, user.ID, p.UserID)
	assert.Equal(t, []string{string(rbac.PermReadData)}, p.Permissions)
	assert.True(t, rbac.Evaluate(p.Permissions, rbac.PermReadData).Allowed)
	assert.False(t, rbac.Evaluate(p.Permissions, rbac.PermWriteData).Allowed)
}

func TestIssueDelegatedTokenRejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.createUser(t, "alice")
	bob := f.createUser(t, "bob")
	userTok, err := f.issuer.IssueUserToken(ctx, alice)
	require.NoError(t, err)
	caller := f.principal(t, userTok)

	readOnly, err := f.issuer.IssueDelegatedToken(ctx, caller, alice.ID, []string{"perm:ReadData"}, time.Hour)
	require.NoError(t, err)
	narrow := f.principal(t, readOnly)

	cases := []struct {
		name      string
		requester *shared.Principal
		target    string
		perms     []string
		lifetime  time.Duration
		want      error
	}{
		{"anonymous", nil, alice.ID, []string{"perm:ReadData"}, time.Hour, httpx.ErrForbidden},
		{"other identity", caller, bob.ID, []string{"perm:ReadData"}, time.Hour, httpx.ErrForbidden},
		{"no permissions", caller, alice.ID, nil, time.Hour, httpx.ErrValidation},
		{"unknown permission", caller, alice.ID, []string{"perm:Everything"}, time.Hour, httpx.ErrValidation},
		{"wrong case", caller, alice.ID, []string{"perm:readdata"}, time.Hour, httpx.ErrValidation},
		{"wildcard", caller, alice.ID, []string{"perm:All"}, time.Hour, httpx.ErrValidation},
		{"register", caller, alice.ID, []string{"perm:Register"}, time.Hour, httpx.ErrValidation},
		{"generate token", caller, alice.ID, []string{"perm:ReadData", "perm:GenerateToken"}, time.Hour, httpx.ErrValidation},
		{"broader than caller", narrow, alice.ID, []string{"perm:WriteData"}, time.Hour, httpx.ErrValidation},
		{"zero lifetime", caller, alice.ID, []string{"perm:ReadData"}, 0, httpx.ErrValidation},
		{"negative lifetime", caller, alice.ID, []string{"perm:ReadData"}, -time.Minute, httpx.ErrValidation},
		{"lifetime too long", caller, alice.ID, []string{"perm:ReadData"}, MaxTokenLifetime + time.Second, httpx.ErrValidation},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tok, err := f.issuer.IssueDelegatedToken(ctx, tc.requester, tc.target, tc.perms, tc.lifetime)
			assert.ErrorIs(t, err, tc.want)
			assert.Empty(t, tok.Token)
		})
	}
}

func TestIssueDelegatedTokenMaxLifetime(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.createUser(t, "alice")
	userTok, err := f.issuer.IssueUserToken(ctx, alice)
	require.NoError(t, err)

	tok, err := f.issuer.IssueDelegatedToken(ctx, f.principal(t, userTok), alice.ID, []string{"perm:WriteData"}, MaxTokenLifetime)
	require.NoError(t, err)
	f.principal(t, tok)
}

func TestIssueDelegatedTokenDeletedIdentity(t *testing.T) {
	f := newFixture(t)
	ghost := &shared.Principal{UserID: "6f1c1e1a-8a39-4c4e-9d7a-3a8c1f3b2e10", Permissions: rbac.Strings(rbac.DefaultPermissions())}
	_, err := f.issuer.IssueDelegatedToken(context.Background(), ghost, ghost.UserID, []string{"perm:ReadData"}, time.Hour)
	assert.ErrorIs(t, err, httpx.ErrForbidden)
}

func TestIssueAdminRegistrationToken(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin := f.createUser(t, "admin", rbac.RoleAdmin)
	plain := f.createUser(t, "plain")

	tok, err := f.issuer.IssueAdminRegistrationToken(ctx, &shared.Principal{UserID: admin.ID})
	require.NoError(t, err)
	assert.Equal(t, KindAdminRegistration, tok.Kind)
	p := f.principal(t, tok)
	assert.Equal(t, []string{string(rbac.PermRegister)}, p.Permissions)
	assert.True(t, p.Anonymous())

	// Role claims in the token are not trusted.
	_, err = f.issuer.IssueAdminRegistrationToken(ctx, &shared.Principal{UserID: plain.ID, Roles: []string{rbac.RoleAdmin}})
	assert.ErrorIs(t, err, httpx.ErrForbidden)

	_, err = f.issuer.IssueAdminRegistrationToken(ctx, nil)
	assert.ErrorIs(t, err, httpx.ErrForbidden)
}

func TestVerifyRejectsForeignTokens(t *testing.T) {
	f := newFixture(t)
	user := f.createUser(t, "alice")
	tok, err := f.issuer.IssueUserToken(context.Background(), user)
	require.NoError(t, err)

	otherKey := testSigning
	otherKey.Key = []byte("fedcba9876543210fedcba9876543210")
	otherIssuer := testSigning
	otherIssuer.Issuer = "someone-else"
	otherAudience := testSigning
	otherAudience.Audience = "someone-else"

	for name, cfg := range map[string]SigningConfig{
		"key":      otherKey,
		"issuer":   otherIssuer,
		"audience": otherAudience,
	} {
		t.Run(name, func(t *testing.T) {
			v, err := NewVerifier(cfg)
			require.NoError(t, err)
			_, err = v.Verify(tok.Token)
			assert.ErrorIs(t, err, ErrInvalidToken)
			assert.ErrorIs(t, err, httpx.ErrUnauthorized)
		})
	}
}

func TestVerifyRejectsTamperedToken(t *testing.T) {
	f := newFixture(t)
	tok, err := f.issuer.IssueRegistrationToken()
	require.NoError(t, err)

	tampered := tok.Token[:len(tok.Token)-2] + "xx"
	_, err = f.verifier.Verify(tampered)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = f.verifier.Verify("")
	assert.ErrorIs(t, err, ErrInvalidToken)
	_, err = f.verifier.Verify("not-a-token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyRejectsUnsignedToken(t *testing.T) {
	f := newFixture(t)
	enc := base64.RawURLEncoding
	header := enc.EncodeToString([]byte(`{"alg":"none","typ":"JWT"}`))
	payload := enc.EncodeToString([]byte(`{"iss":"geoapp-test","aud":"geoapp-test","exp":4102444800,"Permissions":"perm:All"}`))
	_, err := f.verifier.Verify(header + "." + payload + ".")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyExpiry(t *testing.T) {
	f := newFixture(t)
	tok, err := f.issuer.IssueRegistrationToken()
	require.NoError(t, err)

	f.verifier.now = func() time.Time { return tok.ExpiresAt.Add(ClockSkew / 3) }
	_, err = f.verifier.Verify(tok.Token)
	assert.NoError(t, err, "within skew")

	f.verifier.now = func() time.Time { return tok.ExpiresAt.Add(2 * time.Minute) }
	_, err = f.verifier.Verify(tok.Token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyNotYetValid(t *testing.T) {
	f := newFixture(t)
	f.issuer.now = func() time.Time { return time.Now().Add(10 * time.Minute) }
	tok, err := f.issuer.IssueRegistrationToken()
	require.NoError(t, err)

	_, err = f.verifier.Verify(tok.Token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func signRaw(t *testing.T, build func(*jwt.Builder) *jwt.Builder) string {
	t.Helper()
	now := time.Now().Truncate(time.Second)
	b := jwt.NewBuilder().
		Issuer(testSigning.Issuer).
		Audience([]string{testSigning.Audience}).
		IssuedAt(now).
		Expiration(now.Add(time.Hour))
	tok, err := build(b).Build()
	require.NoError(t, err)
	signed, err := jwt.Sign(tok, jwt.WithKey(jwa.HS256, testSigning.Key))
	require.NoError(t, err)
	return string(signed)
}

func TestVerifyRejectsOverlongLifetime(t *testing.T) {
	f := newFixture(t)
	now := time.Now().Truncate(time.Second)
	raw := signRaw(t, func(b *jwt.Builder) *jwt.Builder {
		return b.IssuedAt(now).Expiration(now.Add(MaxTokenLifetime + time.Hour))
	})
	_, err := f.verifier.Verify(raw)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyRequiresExpiry(t *testing.T) {
	f := newFixture(t)
	tok, err := jwt.NewBuilder().Issuer(testSigning.Issuer).Audience([]string{testSigning.Audience}).Build()
	require.NoError(t, err)
	signed, err := jwt.Sign(tok, jwt.WithKey(jwa.HS256, testSigning.Key))
	require.NoError(t, err)
	_, err = f.verifier.Verify(string(signed))
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyPermissionClaimShapes(t *testing.T) {
	f := newFixture(t)
	cases := []struct {
		name  string
		claim any
		want  []string
	}{
		{"single string", "perm:ReadData", []string{"perm:ReadData"}},
		{"array", []string{"perm:ReadData", "perm:WriteData", "perm:ReadData"}, []string{"perm:ReadData", "perm:WriteData"}},
		{"json array string", `["perm:ReadData","perm:WriteData"]`, []string{"perm:ReadData", "perm:WriteData"}},
		{"malformed json array", `["perm:ReadData"`, []string{`["perm:ReadData"`}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			raw := signRaw(t, func(b *jwt.Builder) *jwt.Builder {
				return b.Claim(rbac.PermissionClaim, tc.claim)
			})
			p, err := f.verifier.Verify(raw)
			require.NoError(t, err)
			assert.Equal(t, tc.want, p.Permissions)
		})
	}

	raw := signRaw(t, func(b *jwt.Builder) *jwt.Builder {
		return b.Claim(rbac.PermissionClaim, `["perm:ReadData"`)
	})
	p, err := f.verifier.Verify(raw)
	require.NoError(t, err)
	assert.Equal(t, rbac.ReasonUnparseable, rbac.Evaluate(p.Permissions, rbac.PermReadData).Reason)

	raw = signRaw(t, func(b *jwt.Builder) *jwt.Builder { return b })
	p, err = f.verifier.Verify(raw)
	require.NoError(t, err)
	assert.Equal(t, rbac.ReasonNoPermissions, rbac.Evaluate(p.Permissions, rbac.PermReadData).Reason)

	raw = signRaw(t, func(b *jwt.Builder) *jwt.Builder {
		return b.Claim(rbac.PermissionClaim, 42)
	})
	_, err = f.verifier.Verify(raw)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestMultiValue(t *testing.T) {
	_, ok := multiValue(nil)
	assert.False(t, ok)

	v, ok := multiValue([]string{"a"})
	require.True(t, ok)
	assert.Equal(t, "a", v)

	v, ok = multiValue([]string{"a", "b"})
	require.True(t, ok)
	assert.Equal(t, []string{"a", "b"}, v)
}
