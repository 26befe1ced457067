package data

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/go-playground/validator/v10"

	"github.com/geoapp/geoapp-api/internal/platform/httpx"
)

// Service applies validation and bucket provisioning around a Store.
type Service struct {
	store     Store
	validator *validator.Validate
	logger    *slog.Logger
}

// NewService constructs a Service.
func NewService(store Store, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, validator: validator.New(), logger: logger}
}

// ProvisionBucket makes sure the user's bucket exists.
func (s *Service) ProvisionBucket(ctx context.Context, userID string) error {
	if userID == "" {
		return fmt.Errorf("data: user id required: %w", httpx.ErrValidation)
	}
	return s.store.EnsureBucket(ctx, BucketName(userID))
}

// Query returns the user's points within r.
func (s *Service) Query(ctx context.Context, userID string, r Range) ([]Datapoint, error) {
	if !r.From.IsZero() && !r.To.IsZero() && r.To.Before(r.From) {
		return nil, fmt.Errorf("data: range end before start: %w", httpx.ErrValidation)
	}
	if err := s.ProvisionBucket(ctx, userID); err != nil {
		return nil, err
	}
	return s.store.Query(ctx, BucketName(userID), r)
}

// Write validates and stores the user's points. One invalid point rejects the
// whole batch.
func (s *Service) Write(ctx context.Context, userID string, points []Datapoint) error {
	if len(points) == 0 {
		return fmt.Errorf("data: at least one datapoint required: %w", httpx.ErrValidation)
	}
	if len(points) > MaxPointsPerWrite {
		return fmt.Errorf("data: at most %d datapoints per write: %w", MaxPointsPerWrite, httpx.ErrValidation)
	}
	for i, p := range points {
		if err := s.validate(p); err != nil {
			return fmt.Errorf("data: datapoint %d: %s: %w", i, err, httpx.ErrValidation)
		}
	}
	if err := s.ProvisionBucket(ctx, userID); err != nil {
		return err
	}
	if err := s.store.Write(ctx, BucketName(userID), points); err != nil {
		return err
	}
	s.logger.Debug("datapoints written", slog.String("user_id", userID), slog.Int("count", len(points)))
	return nil
}

func (s *Service) validate(p Datapoint) error {
	if p.Timestamp.IsZero() {
		return errors.New("timestamp required")
	}
	if err := s.validator.Struct(p); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			return fmt.Errorf("%s out of range", fieldErrs[0].Field())
		}
		return err
	}
	return nil
}
