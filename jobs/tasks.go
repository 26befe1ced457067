package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/geoapp/geoapp-api/internal/observability"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskProvisionBucket creates the time-series bucket of a new user.
	TaskProvisionBucket = "data:provision_bucket"
	// TaskReconcileBuckets provisions any bucket a registration failed to enqueue.
	TaskReconcileBuckets = "data:reconcile_buckets"
)

// ProvisionBucketPayload identifies the user whose bucket is provisioned.
type ProvisionBucketPayload struct {
	UserID      string    `json:"user_id"`
	RequestedAt time.Time `json:"requested_at"`
}

// NewProvisionBucketTask constructs an Asynq task. The task id is derived from
// the user so duplicate enqueues collapse.
func NewProvisionBucketTask(userID string) (*asynq.Task, error) {
	if userID == "" {
		return nil, errors.New("jobs: user id required")
	}
	body, err := json.Marshal(ProvisionBucketPayload{UserID: userID, RequestedAt: time.Now().UTC()})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskProvisionBucket, body,
		asynq.Queue(QueueDefault),
		asynq.TaskID("provision-bucket:"+userID),
		asynq.MaxRetry(5),
	), nil
}

// BucketProvisioner creates a user's bucket when missing.
type BucketProvisioner interface {
	ProvisionBucket(ctx context.Context, userID string) error
}

// ProvisionBucketJob handles TaskProvisionBucket.
type ProvisionBucketJob struct {
	Provisioner BucketProvisioner
	Logger      *slog.Logger
	Metrics     *observability.Metrics
}

// NewProvisionBucketJob wires dependencies for the provisioning handler.
func NewProvisionBucketJob(provisioner BucketProvisioner, logger *slog.Logger, metrics *observability.Metrics) *ProvisionBucketJob {
	return &ProvisionBucketJob{Provisioner: provisioner, Logger: logger, Metrics: metrics}
}

// Handle processes bucket provisioning tasks.
func (j *ProvisionBucketJob) Handle(ctx context.Context, t *asynq.Task) (err error) {
	if j == nil || j.Provisioner == nil {
		return errors.New("provision bucket: handler not configured")
	}
	defer func() { j.Metrics.RecordJob(TaskProvisionBucket, err) }()

	var payload ProvisionBucketPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("provision bucket: decode payload: %v: %w", err, asynq.SkipRetry)
	}
	if payload.UserID == "" {
		return fmt.Errorf("provision bucket: empty user id: %w", asynq.SkipRetry)
	}
	logger := j.logger().With(slog.String("user_id", payload.UserID))
	if err := j.Provisioner.ProvisionBucket(ctx, payload.UserID); err != nil {
		logger.Error("provision bucket", slog.Any("error", err))
		return err
	}
	logger.Info("bucket provisioned")
	return nil
}

func (j *ProvisionBucketJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}

// NewReconcileBucketsTask constructs the periodic sweep task. Only one sweep
// is retained at a time.
func NewReconcileBucketsTask() *asynq.Task {
	return asynq.NewTask(TaskReconcileBuckets, nil,
		asynq.Queue(QueueDefault),
		asynq.MaxRetry(1),
		asynq.Unique(30*time.Minute),
	)
}

// UserLister enumerates identity ids.
type UserLister interface {
	ListIDs(ctx context.Context) ([]string, error)
}

// ReconcileBucketsJob handles TaskReconcileBuckets.
type ReconcileBucketsJob struct {
	Users       UserLister
	Provisioner BucketProvisioner
	Logger      *slog.Logger
	Metrics     *observability.Metrics
}

// NewReconcileBucketsJob wires dependencies for the sweep handler.
func NewReconcileBucketsJob(users UserLister, provisioner BucketProvisioner, logger *slog.Logger, metrics *observability.Metrics) *ReconcileBucketsJob {
	return &ReconcileBucketsJob{Users: users, Provisioner: provisioner, Logger: logger, Metrics: metrics}
}

// Handle ensures a bucket for every identity. A failing user does not stop
// the sweep; failures are joined into the returned error.
func (j *ReconcileBucketsJob) Handle(ctx context.Context, _ *asynq.Task) (err error) {
	if j == nil || j.Users == nil || j.Provisioner == nil {
		return errors.New("reconcile buckets: handler not configured")
	}
	defer func() { j.Metrics.RecordJob(TaskReconcileBuckets, err) }()

	ids, err := j.Users.ListIDs(ctx)
	if err != nil {
		return fmt.Errorf("reconcile buckets: list users: %w", err)
	}
	logger := j.logger()
	var errs []error
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := j.Provisioner.ProvisionBucket(ctx, id); err != nil {
			logger.Warn("reconcile bucket", slog.String("user_id", id), slog.Any("error", err))
			errs = append(errs, fmt.Errorf("user %s: %w", id, err))
		}
	}
	logger.Info("buckets reconciled", slog.Int("users", len(ids)), slog.Int("failed", len(errs)))
	if len(errs) > 0 {
		return fmt.Errorf("reconcile buckets: %w", errors.Join(errs...))
	}
	return nil
}

func (j *ReconcileBucketsJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}
