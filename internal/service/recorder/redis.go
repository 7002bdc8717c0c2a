package recorder

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	model "github.com/zhouzirui/z-relay/backend/internal/model/chat"
)

const (
	transcriptKeyPrefix = "transcript:"
	defaultTTL          = 24 * time.Hour
)

// redisClient is the subset of *redis.Client the recorder uses.
type redisClient interface {
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Get(ctx context.Context, key string) *redis.StringCmd
	Close() error
}

// RedisRecorder keeps the latest transcript of each session under
// transcript:<id>, refreshing its TTL on every write.
type RedisRecorder struct {
	client redisClient
	ttl    time.Duration
	now    func() time.Time
	logger *slog.Logger
}

// NewRedisRecorder connects to the Redis instance at url and verifies it
// answers a ping.
func NewRedisRecorder(ctx context.Context, url string, ttl time.Duration, logger *slog.Logger) (*RedisRecorder, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parsing REDIS_URL: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}
	return newRedisRecorder(client, ttl, logger), nil
}

func newRedisRecorder(client redisClient, ttl time.Duration, logger *slog.Logger) *RedisRecorder {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisRecorder{
		client: client,
		ttl:    ttl,
		now:    time.Now,
		logger: logger.With("component", "recorder", "recorder", "redis"),
	}
}

func (r *RedisRecorder) Record(ctx context.Context, snapshot model.Snapshot) error {
	val, err := json.Marshal(newTranscript(snapshot, r.now()))
	if err != nil {
		return fmt.Errorf("encoding transcript: %w", err)
	}
	if err := r.client.Set(ctx, r.key(snapshot.ID), val, r.ttl).Err(); err != nil {
		return fmt.Errorf("storing transcript %s: %w", snapshot.ID, err)
	}
	return nil
}

// Load returns the stored transcript for id. ok is false when none exists.
func (r *RedisRecorder) Load(ctx context.Context, id string) (Transcript, bool, error) {
	val, err := r.client.Get(ctx, r.key(id)).Result()
	if err == redis.Nil {
		return Transcript{}, false, nil
	}
	if err != nil {
		return Transcript{}, false, err
	}

	var t Transcript
	if err := json.Unmarshal([]byte(val), &t); err != nil {
		return Transcript{}, false, fmt.Errorf("decoding transcript %s: %w", id, err)
	}
	return t, true, nil
}

func (r *RedisRecorder) Close() error {
	return r.client.Close()
}

func (r *RedisRecorder) key(id string) string {
	return transcriptKeyPrefix + id
}
