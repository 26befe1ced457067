package users

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/geoapp/geoapp-api/internal/platform/httpx"
	"github.com/geoapp/geoapp-api/internal/shared"
)

// MemoryRepository is a process-local Repository for development and tests.
// It enforces the same uniqueness rules as the PostgreSQL schema.
type MemoryRepository struct {
	mu        sync.RWMutex
	users     map[string]User
	byName    map[string]string
	roles     map[string]Role
	userRoles map[string]map[string]struct{}
}

// NewMemoryRepository constructs an empty repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		users:     make(map[string]User),
		byName:    make(map[string]string),
		roles:     make(map[string]Role),
		userRoles: make(map[string]map[string]struct{}),
	}
}

func (m *MemoryRepository) GetUserByNormalizedName(ctx context.Context, normalized string) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.byName[normalized]
	if !ok {
		return nil, shared.ErrNotFound
	}
	u := m.users[id]
	return &u, nil
}

func (m *MemoryRepository) GetUserByID(ctx context.Context, id string) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return &u, nil
}

func (m *MemoryRepository) InsertUser(ctx context.Context, user User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byName[user.NormalizedUsername]; ok {
		return fmt.Errorf("users: insert user: %w", httpx.ErrDuplicate)
	}
	if _, ok := m.users[user.ID]; ok {
		return fmt.Errorf("users: insert user: %w", httpx.ErrDuplicate)
	}
	m.users[user.ID] = user
	m.byName[user.NormalizedUsername] = user.ID
	return nil
}

func (m *MemoryRepository) ListUserRoles(ctx context.Context, userID string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var names []string
	for roleKey := range m.userRoles[userID] {
		names = append(names, m.roles[roleKey].Name)
	}
	sort.Strings(names)
	return names, nil
}

func (m *MemoryRepository) GetRoleByNormalizedName(ctx context.Context, normalized string) (*Role, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.roles[normalized]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return &r, nil
}

func (m *MemoryRepository) InsertRole(ctx context.Context, role Role) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.roles[role.NormalizedName]; ok {
		return fmt.Errorf("users: insert role: %w", httpx.ErrDuplicate)
	}
	m.roles[role.NormalizedName] = role
	return nil
}

func (m *MemoryRepository) InsertUserRole(ctx context.Context, userID, roleID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[userID]; !ok {
		return fmt.Errorf("users: assign role: %w", shared.ErrNotFound)
	}
	var roleKey string
	for key, r := range m.roles {
		if r.ID == roleID {
			roleKey = key
		}
	}
	if roleKey == "" {
		return fmt.Errorf("users: assign role: %w", shared.ErrNotFound)
	}
	if m.userRoles[userID] == nil {
		m.userRoles[userID] = make(map[string]struct{})
	}
	m.userRoles[userID][roleKey] = struct{}{}
	return nil
}

func (m *MemoryRepository) ListUserIDs(ctx context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	all := make([]User, 0, len(m.users))
	for _, u := range m.users {
		all = append(all, u)
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].ID < all[j].ID
		}
		return all[i].CreatedAt.Before(all[j].CreatedAt)
	})
	ids := make([]string, len(all))
	for i, u := range all {
		ids[i] = u.ID
	}
	return ids, nil
}

// Counts reports the number of users and roles held.
func (m *MemoryRepository) Counts() (users, roles int) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.users), len(m.roles)
}

var _ Repository = (*MemoryRepository)(nil)
