// Package bootstrap seeds the roles and the initial administrator on startup.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/geoapp/geoapp-api/internal/auth"
	"github.com/geoapp/geoapp-api/internal/platform/httpx"
	"github.com/geoapp/geoapp-api/internal/rbac"
	"github.com/geoapp/geoapp-api/internal/shared"
	"github.com/geoapp/geoapp-api/internal/users"
)

// Store is the slice of the identity store the seeder writes to.
type Store interface {
	RoleExists(ctx context.Context, name string) (bool, error)
	CreateRole(ctx context.Context, name string) error
	FindByName(ctx context.Context, username string) (*users.User, error)
	Create(ctx context.Context, user *users.User, password string) error
	AssignRole(ctx context.Context, userID, roleName string) error
}

// AdminConfig carries the initial administrator credential.
type AdminConfig struct {
	Username string
	Password string
}

// Seeder creates missing roles and the initial administrator. Running it
// repeatedly, or from several instances at once, converges on one admin.
type Seeder struct {
	store  Store
	admin  AdminConfig
	logger *slog.Logger
}

// NewSeeder validates the admin configuration and constructs a Seeder.
func NewSeeder(store Store, admin AdminConfig, logger *slog.Logger) (*Seeder, error) {
	if strings.TrimSpace(admin.Username) == "" {
		return nil, fmt.Errorf("%w: admin username required", auth.ErrFatalConfig)
	}
	if admin.Password == "" {
		return nil, fmt.Errorf("%w: admin password required", auth.ErrFatalConfig)
	}
	if err := users.ValidatePassword(admin.Password); err != nil {
		return nil, fmt.Errorf("%w: admin password: %v", auth.ErrFatalConfig, err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Seeder{store: store, admin: admin, logger: logger}, nil
}

// Seed runs the bootstrap. Failures are logged and returned.
func (s *Seeder) Seed(ctx context.Context) error {
	if err := s.seed(ctx); err != nil {
		s.logger.Error("bootstrap seed failed", slog.Any("error", err))
		return err
	}
	return nil
}

func (s *Seeder) seed(ctx context.Context) error {
	for _, role := range rbac.AvailableRoles() {
		if err := s.ensureRole(ctx, role); err != nil {
			return err
		}
	}
	admin, created, err := s.ensureAdmin(ctx)
	if err != nil || !created {
		return err
	}
	if err := s.store.AssignRole(ctx, admin.ID, rbac.RoleAdmin); err != nil {
		return fmt.Errorf("bootstrap: assign %s: %w", rbac.RoleAdmin, err)
	}
	s.logger.Info("admin role assigned", slog.String("user_id", admin.ID))
	return nil
}

func (s *Seeder) ensureRole(ctx context.Context, name string) error {
	exists, err := s.store.RoleExists(ctx, name)
	if err != nil {
		return fmt.Errorf("bootstrap: check role %s: %w", name, err)
	}
	if exists {
		return nil
	}
	if err := s.store.CreateRole(ctx, name); err != nil {
		if errors.Is(err, httpx.ErrDuplicate) {
			return nil
		}
		return fmt.Errorf("bootstrap: create role %s: %w", name, err)
	}
	s.logger.Info("role created", slog.String("role", name))
	return nil
}

// ensureAdmin reports created only when this call inserted the identity. An
// existing administrator is left untouched, roles included.
func (s *Seeder) ensureAdmin(ctx context.Context) (*users.User, bool, error) {
	admin, err := s.store.FindByName(ctx, s.admin.Username)
	if err == nil {
		return admin, false, nil
	}
	if !errors.Is(err, shared.ErrNotFound) {
		return nil, false, fmt.Errorf("bootstrap: find admin: %w", err)
	}
	admin = &users.User{Username: s.admin.Username}
	if err := s.store.Create(ctx, admin, s.admin.Password); err != nil {
		if errors.Is(err, httpx.ErrDuplicate) {
			// A peer created it first and assigns the role itself.
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("bootstrap: create admin: %w", err)
	}
	s.logger.Info("admin created", slog.String("user_id", admin.ID), slog.String("username", admin.Username))
	return admin, true, nil
}
