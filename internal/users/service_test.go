package users

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/geoapp/geoapp-api/internal/platform/httpx"
	"github.com/geoapp/geoapp-api/internal/shared"
)

const goodPassword = "Str0ng!pw"

func newTestStore() (*Store, *MemoryRepository) {
	repo := NewMemoryRepository()
	return NewStore(repo), repo
}

func TestCreateAndFind(t *testing.T) {
	store, _ := newTestStore()
	ctx := context.Background()

	user := &User{Username: "  Alice "}
	require.NoError(t, store.Create(ctx, user, goodPassword))
	_, err := uuid.Parse(user.ID)
	require.NoError(t, err)
	assert.Equal(t, "Alice", user.Username)
	assert.NotEqual(t, goodPassword, user.PasswordHash)

	byName, err := store.FindByName(ctx, "ALICE")
	require.NoError(t, err)
	assert.Equal(t, user.ID, byName.ID)

	byID, err := store.FindByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "Alice", byID.Username)

	ok, err := store.CheckPassword(ctx, byID, goodPassword)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.CheckPassword(ctx, byID, "wrong")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCreateDuplicateUsername(t *testing.T) {
	store, _ := newTestStore()
	ctx := context.Background()
	require.NoError(t, store.Create(ctx, &User{Username: "bob"}, goodPassword))

	err := store.Create(ctx, &User{Username: "BOB"}, goodPassword)
	assert.ErrorIs(t, err, httpx.ErrDuplicate)
}

func TestCreateRejectsWeakPassword(t *testing.T) {
	store, repo := newTestStore()
	err := store.Create(context.Background(), &User{Username: "carol"}, "password")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPasswordPolicy)
	assert.ErrorIs(t, err, httpx.ErrValidation)
	users, _ := repo.Counts()
	assert.Zero(t, users)

	err = store.Create(context.Background(), &User{Username: "carol"}, "Aa1!"+strings.Repeat("x", 80))
	assert.ErrorIs(t, err, ErrPasswordPolicy)
	assert.ErrorIs(t, err, httpx.ErrValidation)
}

func TestHashPasswordTooLong(t *testing.T) {
	_, err := HashPassword(strings.Repeat("x", MaxPasswordBytes+1))
	assert.ErrorIs(t, err, ErrPasswordPolicy)
}

func TestCreateRequiresUsername(t *testing.T) {
	store, _ := newTestStore()
	err := store.Create(context.Background(), &User{Username: " "}, goodPassword)
	assert.ErrorIs(t, err, httpx.ErrValidation)
}

func TestFindMissing(t *testing.T) {
	store, _ := newTestStore()
	ctx := context.Background()

	_, err := store.FindByName(ctx, "nobody")
	assert.ErrorIs(t, err, shared.ErrNotFound)
	_, err = store.FindByName(ctx, "")
	assert.ErrorIs(t, err, shared.ErrNotFound)
	_, err = store.FindByID(ctx, "not-a-uuid")
	assert.ErrorIs(t, err, shared.ErrNotFound)
	_, err = store.FindByID(ctx, uuid.NewString())
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestRolesLifecycle(t *testing.T) {
	store, _ := newTestStore()
	ctx := context.Background()

	exists, err := store.RoleExists(ctx, "Administrators")
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, store.CreateRole(ctx, "Administrators"))
	exists, err = store.RoleExists(ctx, "administrators")
	require.NoError(t, err)
	assert.True(t, exists)

	err = store.CreateRole(ctx, "ADMINISTRATORS")
	assert.True(t, errors.Is(err, httpx.ErrDuplicate))

	user := &User{Username: "root"}
	require.NoError(t, store.Create(ctx, user, goodPassword))

	roles, err := store.GetRoles(ctx, user.ID)
	require.NoError(t, err)
	assert.Empty(t, roles)
	assert.NotNil(t, roles)

	require.NoError(t, store.AssignRole(ctx, user.ID, "Administrators"))
	require.NoError(t, store.AssignRole(ctx, user.ID, "Administrators"))
	roles, err = store.GetRoles(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"Administrators"}, roles)

	err = store.AssignRole(ctx, user.ID, "Operators")
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestValidatePassword(t *testing.T) {
	cases := map[string]bool{
		"Str0ng!pw": true,
		"Ab1!":      false,
		"abcdef1!":  false,
		"ABCDEF1!":  false,
		"Abcdefg!":  false,
		"Abcdefg1":  false,
		"Ünïcødé9#": true,

		"Aa1!" + strings.Repeat("x", 68): true,
		"Aa1!" + strings.Repeat("x", 69): false,
		"Aa1!" + strings.Repeat("é", 35): false,
	}
	for pw, ok := range cases {
		err := ValidatePassword(pw)
		if ok {
			assert.NoError(t, err, pw)
		} else {
			assert.ErrorIs(t, err, ErrPasswordPolicy, pw)
		}
	}
}

func TestNormalizeName(t *testing.T) {
	assert.Equal(t, "alice", NormalizeName(" Alice "))
	assert.Equal(t, NormalizeName("ﬁle"), NormalizeName("file"))
}

func TestListIDsOldestFirst(t *testing.T) {
	store, _ := newTestStore()
	ctx := context.Background()
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	var want []string
	for i, name := range []string{"carol", "alice", "bob"} {
		at := base.Add(time.Duration(i) * time.Minute)
		store.now = func() time.Time { return at }
		u := &User{Username: name}
		require.NoError(t, store.Create(ctx, u, goodPassword))
		want = append(want, u.ID)
	}

	ids, err := store.ListIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, want, ids)
}
