package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"FxBridge/pkg/logger"
)

const (
	defaultKeyPrefix = "fxbridge:queue"
	defaultCap       = 500
	defaultTTL       = 24 * time.Hour
)

// RedisFIFO is a FIFO backed by Redis lists, one list per key. The TTL is
// refreshed on every push so an idle queue eventually expires on its own.
type RedisFIFO struct {
	client *redis.Client
	logger *logger.Logger
	prefix string
	cap    int64
	ttl    time.Duration
}

// RedisFIFOOption configures RedisFIFO.
type RedisFIFOOption func(*RedisFIFO)

// WithKeyPrefix overrides the Redis key prefix.
func WithKeyPrefix(prefix string) RedisFIFOOption {
	return func(q *RedisFIFO) {
		if prefix != "" {
			q.prefix = prefix
		}
	}
}

// WithCap bounds each queue to n entries, discarding the oldest on overflow.
func WithCap(n int) RedisFIFOOption {
	return func(q *RedisFIFO) {
		if n > 0 {
			q.cap = int64(n)
		}
	}
}

// WithTTL sets the expiry applied to each queue key on push.
func WithTTL(d time.Duration) RedisFIFOOption {
	return func(q *RedisFIFO) {
		if d > 0 {
			q.ttl = d
		}
	}
}

// NewRedisFIFO creates a Redis-backed FIFO on an existing client.
func NewRedisFIFO(lgr *logger.Logger, client *redis.Client, opts ...RedisFIFOOption) *RedisFIFO {
	q := &RedisFIFO{
		client: client,
		logger: lgr,
		prefix: defaultKeyPrefix,
		cap:    defaultCap,
		ttl:    defaultTTL,
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

func (q *RedisFIFO) key(key string) string {
	return q.prefix + ":" + key
}

// Push appends payload and trims the queue to its cap.
func (q *RedisFIFO) Push(ctx context.Context, key string, payload []byte) error {
	k := q.key(key)
	pipe := q.client.TxPipeline()
	pipe.RPush(ctx, k, payload)
	pipe.LTrim(ctx, k, -q.cap, -1)
	pipe.Expire(ctx, k, q.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("queue push %s: %w", key, err)
	}
	return nil
}

// Pop removes up to limit payloads from the front of the queue.
func (q *RedisFIFO) Pop(ctx context.Context, key string, limit int) ([][]byte, error) {
	if limit <= 0 {
		return nil, nil
	}
	vals, err := q.client.LPopCount(ctx, q.key(key), limit).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("queue pop %s: %w", key, err)
	}
	out := make([][]byte, 0, len(vals))
	for _, v := range vals {
		out = append(out, []byte(v))
	}
	return out, nil
}

var _ FIFO = (*RedisFIFO)(nil)
