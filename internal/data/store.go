package data

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

const keyPrefix = "geoapp"

// Store persists datapoints in named buckets.
type Store interface {
	EnsureBucket(ctx context.Context, bucket string) error
	Write(ctx context.Context, bucket string, points []Datapoint) error
	Query(ctx context.Context, bucket string, r Range) ([]Datapoint, error)
}

// RedisStore keeps each bucket as a sorted set scored by timestamp in
// milliseconds. A later write at the same timestamp replaces the earlier one.
type RedisStore struct {
	client *redis.Client
	org    string
	group  singleflight.Group
	known  sync.Map
}

// NewRedisStore constructs a RedisStore under the given organisation.
func NewRedisStore(client *redis.Client, org string) *RedisStore {
	if org == "" {
		org = Organisation
	}
	return &RedisStore{client: client, org: org}
}

func (s *RedisStore) bucketsKey() string {
	return fmt.Sprintf("%s:org:%s:buckets", keyPrefix, s.org)
}

func (s *RedisStore) pointsKey(bucket string) string {
	return fmt.Sprintf("%s:org:%s:bucket:%s:points", keyPrefix, s.org, bucket)
}

// EnsureBucket registers bucket if it is not known yet. Concurrent callers for
// the same bucket share one round trip.
func (s *RedisStore) EnsureBucket(ctx context.Context, bucket string) error {
	if _, ok := s.known.Load(bucket); ok {
		return nil
	}
	_, err, _ := s.group.Do(bucket, func() (any, error) {
		if err := s.client.HSetNX(ctx, s.bucketsKey(), bucket, time.Now().UTC().Format(time.RFC3339)).Err(); err != nil {
			return nil, fmt.Errorf("data: ensure bucket %s: %w", bucket, err)
		}
		s.known.Store(bucket, struct{}{})
		return nil, nil
	})
	return err
}

// BucketExists reports whether bucket has been provisioned.
func (s *RedisStore) BucketExists(ctx context.Context, bucket string) (bool, error) {
	ok, err := s.client.HExists(ctx, s.bucketsKey(), bucket).Result()
	if err != nil {
		return false, fmt.Errorf("data: bucket exists %s: %w", bucket, err)
	}
	return ok, nil
}

// Write stores points in bucket atomically.
func (s *RedisStore) Write(ctx context.Context, bucket string, points []Datapoint) error {
	if len(points) == 0 {
		return nil
	}
	key := s.pointsKey(bucket)
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, p := range points {
			p.Timestamp = p.Timestamp.UTC()
			member, err := json.Marshal(p)
			if err != nil {
				return err
			}
			score := strconv.FormatInt(p.Timestamp.UnixMilli(), 10)
			pipe.ZRemRangeByScore(ctx, key, score, score)
			pipe.ZAdd(ctx, key, redis.Z{Score: float64(p.Timestamp.UnixMilli()), Member: member})
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("data: write %s: %w", bucket, err)
	}
	return nil
}

// Query returns the points in bucket within r, oldest first.
func (s *RedisStore) Query(ctx context.Context, bucket string, r Range) ([]Datapoint, error) {
	min, max := "-inf", "+inf"
	if !r.From.IsZero() {
		min = strconv.FormatInt(r.From.UnixMilli(), 10)
	}
	if !r.To.IsZero() {
		max = strconv.FormatInt(r.To.UnixMilli(), 10)
	}
	members, err := s.client.ZRangeByScore(ctx, s.pointsKey(bucket), &redis.ZRangeBy{Min: min, Max: max}).Result()
	if err != nil {
		return nil, fmt.Errorf("data: query %s: %w", bucket, err)
	}
	points := make([]Datapoint, 0, len(members))
	for _, raw := range members {
		var p Datapoint
		if err := json.Unmarshal([]byte(raw), &p); err != nil {
			return nil, fmt.Errorf("data: decode point in %s: %w", bucket, err)
		}
		points = append(points, p)
	}
	return points, nil
}

var _ Store = (*RedisStore)(nil)
