package app

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/geoapp/geoapp-api/internal/auth"
)

const testKey = "0123456789abcdef0123456789abcdef"

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("JWT_KEY", testKey)
	t.Setenv("ADMIN_USERNAME", "admin")
	t.Setenv("ADMIN_PASSWORD", "Adm1n!secret")
}

func TestLoadConfigDefaults(t *testing.T) {
	setRequiredEnv(t)
	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.AppAddr)
	assert.Equal(t, IdentityStorePostgres, cfg.IdentityStore)
	assert.Equal(t, "GeoAppAPI", cfg.JWTIssuer)
	assert.Equal(t, cfg.JWTIssuer, cfg.JWTAudience)
	assert.Equal(t, []string{"*"}, cfg.CORSAllowedOrigins)
	assert.Equal(t, "@every 1h", cfg.ReconcileCron)
	assert.False(t, cfg.IsProduction())

	signing := cfg.Signing()
	assert.Equal(t, []byte(testKey), signing.Key)
	assert.Equal(t, "admin", cfg.Admin().Username)
}

func TestLoadConfigOverrides(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("JWT_ISSUER", "geo-issuer")
	t.Setenv("JWT_AUDIENCE", "geo-clients")
	t.Setenv("IDENTITY_STORE", " Memory ")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example,https://b.example")
	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "geo-clients", cfg.JWTAudience)
	assert.Equal(t, IdentityStoreMemory, cfg.IdentityStore)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSAllowedOrigins)
}

func TestLoadConfigFatal(t *testing.T) {
	cases := map[string]map[string]string{
		"missing key":          {"JWT_KEY": ""},
		"short key":            {"JWT_KEY": "short"},
		"missing admin":        {"ADMIN_USERNAME": ""},
		"missing password":     {"ADMIN_PASSWORD": ""},
		"unknown store":        {"IDENTITY_STORE": "mongo"},
		"memory in production": {"IDENTITY_STORE": "memory", "APP_ENV": "production"},
	}
	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			setRequiredEnv(t)
			for k, v := range env {
				t.Setenv(k, v)
			}
			_, err := LoadConfig()
			assert.ErrorIs(t, err, auth.ErrFatalConfig)
		})
	}
}
