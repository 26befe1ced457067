package main

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/geoapp/geoapp-api/internal/auth"
	"github.com/geoapp/geoapp-api/internal/rbac"
)

func setTestEnv(t *testing.T) {
	t.Helper()
	t.Setenv("JWT_KEY", "0123456789abcdef0123456789abcdef")
	t.Setenv("JWT_ISSUER", "geoctl-test")
	t.Setenv("ADMIN_USERNAME", "admin")
	t.Setenv("ADMIN_PASSWORD", "Adm1n!secret")
	t.Setenv("IDENTITY_STORE", "memory")
	t.Setenv("LOG_LEVEL", "error")
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestSeedCommand(t *testing.T) {
	setTestEnv(t)
	out, err := execute(t, "seed")
	require.NoError(t, err)
	assert.Contains(t, out, "seed complete")
}

func TestTokenRegistrationCommand(t *testing.T) {
	setTestEnv(t)
	out, err := execute(t, "token", "registration")
	require.NoError(t, err)

	var body struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &body))
	verifier, err := auth.NewVerifier(auth.SigningConfig{
		Key:      []byte("0123456789abcdef0123456789abcdef"),
		Issuer:   "geoctl-test",
		Audience: "geoctl-test",
	})
	require.NoError(t, err)
	p, err := verifier.Verify(body.Token)
	require.NoError(t, err)
	assert.Equal(t, []string{string(rbac.PermRegister)}, p.Permissions)
	assert.True(t, p.Anonymous())
}

func TestTokenRegistrationRequiresConfig(t *testing.T) {
	setTestEnv(t)
	t.Setenv("JWT_KEY", "short")
	_, err := execute(t, "token", "registration")
	assert.ErrorIs(t, err, auth.ErrFatalConfig)
}

func TestJobsProvisionCommand(t *testing.T) {
	setTestEnv(t)
	mr := miniredis.RunT(t)
	t.Setenv("REDIS_ADDR", mr.Addr())

	out, err := execute(t, "jobs", "provision", "u-42")
	require.NoError(t, err)
	assert.Contains(t, out, "enqueued data:provision_bucket for u-42")

	_, err = execute(t, "jobs", "provision")
	assert.Error(t, err)
}

func TestJobsReconcileCommand(t *testing.T) {
	setTestEnv(t)
	mr := miniredis.RunT(t)
	t.Setenv("REDIS_ADDR", mr.Addr())

	out, err := execute(t, "jobs", "reconcile")
	require.NoError(t, err)
	assert.Contains(t, out, "enqueued data:reconcile_buckets")

	out, err = execute(t, "jobs", "reconcile")
	require.NoError(t, err)
	assert.Contains(t, out, "enqueued data:reconcile_buckets")
}
