package shared

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrincipalRoundTrip(t *testing.T) {
	p := &Principal{UserID: "u-1", Username: "alice", Roles: []string{"Administrators"}}
	ctx := ContextWithPrincipal(context.Background(), p)

	got := PrincipalFromContext(ctx)
	require.NotNil(t, got)
	assert.Equal(t, "alice", got.Username)
	assert.True(t, got.HasRole("Administrators"))
	assert.False(t, got.HasRole("Users"))
	assert.False(t, got.Anonymous())
}

func TestPrincipalMissing(t *testing.T) {
	got := PrincipalFromContext(context.Background())
	assert.Nil(t, got)
	assert.True(t, got.Anonymous())
	assert.False(t, got.HasRole("Administrators"))
}
