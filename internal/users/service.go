package users

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/geoapp/geoapp-api/internal/platform/httpx"
	"github.com/geoapp/geoapp-api/internal/shared"
)

// Store is the identity store: users, credentials and role assignments.
type Store struct {
	repo Repository
	now  func() time.Time
}

// NewStore builds a Store over the given repository.
func NewStore(repo Repository) *Store {
	return &Store{repo: repo, now: time.Now}
}

// FindByName returns the user with the given username or shared.ErrNotFound.
func (s *Store) FindByName(ctx context.Context, username string) (*User, error) {
	normalized := NormalizeName(username)
	if normalized == "" {
		return nil, shared.ErrNotFound
	}
	return s.repo.GetUserByNormalizedName(ctx, normalized)
}

// FindByID returns the user with the given id or shared.ErrNotFound.
func (s *Store) FindByID(ctx context.Context, id string) (*User, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, shared.ErrNotFound
	}
	return s.repo.GetUserByID(ctx, id)
}

// ListIDs returns the id of every identity, oldest first.
func (s *Store) ListIDs(ctx context.Context) ([]string, error) {
	return s.repo.ListUserIDs(ctx)
}

// Create validates and persists a new identity with the given credential.
// On success the user's ID and timestamps are populated.
func (s *Store) Create(ctx context.Context, user *User, password string) error {
	user.Username = strings.TrimSpace(user.Username)
	if user.Username == "" {
		return fmt.Errorf("username required: %w", httpx.ErrValidation)
	}
	if err := ValidatePassword(password); err != nil {
		return err
	}
	hash, err := HashPassword(password)
	if err != nil {
		return err
	}
	now := s.now().UTC()
	record := User{
		ID:                 uuid.NewString(),
		Username:           user.Username,
		NormalizedUsername: NormalizeName(user.Username),
		PasswordHash:       hash,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if err := s.repo.InsertUser(ctx, record); err != nil {
		return err
	}
	*user = record
	return nil
}

// GetRoles returns the role names currently assigned to the user.
func (s *Store) GetRoles(ctx context.Context, userID string) ([]string, error) {
	roles, err := s.repo.ListUserRoles(ctx, userID)
	if err != nil {
		return nil, err
	}
	if roles == nil {
		roles = []string{}
	}
	return roles, nil
}

// RoleExists reports whether a role with the given name exists.
func (s *Store) RoleExists(ctx context.Context, name string) (bool, error) {
	_, err := s.repo.GetRoleByNormalizedName(ctx, NormalizeName(name))
	if errors.Is(err, shared.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// CreateRole persists a new role. A duplicate yields httpx.ErrDuplicate.
func (s *Store) CreateRole(ctx context.Context, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("role name required: %w", httpx.ErrValidation)
	}
	return s.repo.InsertRole(ctx, Role{
		ID:             uuid.NewString(),
		Name:           name,
		NormalizedName: NormalizeName(name),
		CreatedAt:      s.now().UTC(),
	})
}

// AssignRole links the user to the named role.
func (s *Store) AssignRole(ctx context.Context, userID, roleName string) error {
	role, err := s.repo.GetRoleByNormalizedName(ctx, NormalizeName(roleName))
	if err != nil {
		return fmt.Errorf("users: assign role %q: %w", roleName, err)
	}
	return s.repo.InsertUserRole(ctx, userID, role.ID)
}

// CheckPassword reports whether password is the user's credential.
func (s *Store) CheckPassword(ctx context.Context, user *User, password string) (bool, error) {
	if user == nil || user.PasswordHash == "" {
		return false, nil
	}
	return VerifyPassword(user.PasswordHash, password)
}
