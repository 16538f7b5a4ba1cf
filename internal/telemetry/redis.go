package telemetry

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/danielpatrickdp/flowguard/go-supervisor/internal/supervisor"
)

// #region redis
const (
	// DefaultRedisStream is the stream decision records are appended to.
	DefaultRedisStream = "flowguard:decisions"
	// DefaultRedisMaxLen caps the stream length (approximate trimming).
	DefaultRedisMaxLen = 10000
)

type streamAdder interface {
	XAdd(ctx context.Context, a *redis.XAddArgs) *redis.StringCmd
}

// RedisConfig selects the server and stream.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Stream   string
	MaxLen   int64
}

// RedisReporter appends each decision to a capped Redis stream.
type RedisReporter struct {
	client streamAdder
	closer func() error
	stream string
	maxLen int64
}

// NewRedisReporter creates a reporter backed by a new Redis client.
func NewRedisReporter(cfg RedisConfig) *RedisReporter {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	r := newRedisReporter(rdb, cfg.Stream, cfg.MaxLen)
	r.closer = rdb.Close
	return r
}

func newRedisReporter(client streamAdder, stream string, maxLen int64) *RedisReporter {
	if stream == "" {
		stream = DefaultRedisStream
	}
	if maxLen <= 0 {
		maxLen = DefaultRedisMaxLen
	}
	return &RedisReporter{client: client, stream: stream, maxLen: maxLen}
}

// Name identifies the sink in diagnostics.
func (r *RedisReporter) Name() string { return "redis" }

// Report XADDs the record. The decision and action id are top-level fields so
// consumers can filter without decoding the payload.
func (r *RedisReporter) Report(ctx context.Context, rep supervisor.Report) error {
	rec := NewRecord(rep)
	body, err := rec.Marshal()
	if err != nil {
		return err
	}
	err = r.client.XAdd(ctx, &redis.XAddArgs{
		Stream: r.stream,
		MaxLen: r.maxLen,
		Approx: true,
		Values: map[string]any{
			"record_id": rec.RecordID,
			"action_id": rec.OriginalActionID,
			"decision":  rec.Decision,
			"payload":   string(body),
		},
	}).Err()
	if err != nil {
		return fmt.Errorf("redis xadd %s: %w", r.stream, err)
	}
	return nil
}

// Close closes a client created by NewRedisReporter.
func (r *RedisReporter) Close() error {
	if r.closer == nil {
		return nil
	}
	return r.closer()
}

// #endregion redis
