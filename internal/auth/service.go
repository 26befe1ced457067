package auth

import (
	"context"
	"errors"
	"log/slog"

	"github.com/geoapp/geoapp-api/internal/shared"
	"github.com/geoapp/geoapp-api/internal/users"
)

// IdentityStore is the slice of the identity store used by sign-up and login.
type IdentityStore interface {
	FindByName(ctx context.Context, username string) (*users.User, error)
	Create(ctx context.Context, user *users.User, password string) error
	CheckPassword(ctx context.Context, user *users.User, password string) (bool, error)
}

// BucketProvisioner schedules creation of a new user's time-series bucket.
type BucketProvisioner interface {
	EnqueueProvisionBucket(ctx context.Context, userID string) error
}

// Service wraps registration and authentication rules.
type Service struct {
	store       IdentityStore
	issuer      *TokenIssuer
	provisioner BucketProvisioner
	logger      *slog.Logger
}

// NewService constructs a new Service. provisioner may be nil.
func NewService(store IdentityStore, issuer *TokenIssuer, provisioner BucketProvisioner, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, issuer: issuer, provisioner: provisioner, logger: logger}
}

// Register creates an identity and returns its first user token.
func (s *Service) Register(ctx context.Context, username, password string) (IssuedToken, error) {
	user := &users.User{Username: username}
	if err := s.store.Create(ctx, user, password); err != nil {
		return IssuedToken{}, err
	}
	s.logger.Info("user registered", slog.String("user_id", user.ID))
	if s.provisioner != nil {
		if err := s.provisioner.EnqueueProvisionBucket(ctx, user.ID); err != nil {
			// Writes provision lazily, so a missed job only costs latency.
			s.logger.Warn("enqueue bucket provisioning", slog.String("user_id", user.ID), slog.Any("error", err))
		}
	}
	return s.issuer.IssueUserToken(ctx, user)
}

// Authenticate validates username/password credentials. Unknown users and
// wrong passwords are indistinguishable to the caller.
func (s *Service) Authenticate(ctx context.Context, username, password string) (*users.User, error) {
	user, err := s.store.FindByName(ctx, username)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, shared.ErrInvalidCredentials
		}
		return nil, err
	}
	ok, err := s.store.CheckPassword(ctx, user, password)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, shared.ErrInvalidCredentials
	}
	return user, nil
}

// Login authenticates and returns a user token.
func (s *Service) Login(ctx context.Context, username, password string) (IssuedToken, error) {
	user, err := s.Authenticate(ctx, username, password)
	if err != nil {
		return IssuedToken{}, err
	}
	return s.issuer.IssueUserToken(ctx, user)
}
