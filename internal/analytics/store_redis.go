package analytics

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	redisLatestKey  = "erthid:analytics:latest"
	redisHistoryKey = "erthid:analytics:history"
)

var kindToField = map[Kind]string{
	KindRegistration: "registrations",
	KindVerification: "verifications",
	KindRejection:    "rejections",
}

// RedisStore keeps the counters in a Redis hash and the history in a list,
// for deployments where several replicas share one counter set. Atomicity of
// increment-and-stamp comes from a single pipeline round trip.
type RedisStore struct {
	client *redis.Client
	logger *slog.Logger

	now func() time.Time
}

func NewRedisStore(client *redis.Client, logger *slog.Logger) *RedisStore {
	return &RedisStore{client: client, logger: logger, now: time.Now}
}

func (s *RedisStore) Increment(ctx context.Context, kind Kind) error {
	field, ok := kindToField[kind]
	if !ok {
		return fmt.Errorf("unknown analytics kind %q", kind)
	}

	pipe := s.client.TxPipeline()
	pipe.HIncrBy(ctx, redisLatestKey, field, 1)
	pipe.HSet(ctx, redisLatestKey, "timestamp", s.now().Unix())
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("increment %s: %w", kind, err)
	}
	return nil
}

func (s *RedisStore) TakeSnapshot(ctx context.Context) error {
	snapshot, err := s.Latest(ctx)
	if err != nil {
		return err
	}
	snapshot.Timestamp = s.now().Unix()

	raw, err := json.Marshal(snapshot)
	if err != nil {
		return err
	}

	pipe := s.client.TxPipeline()
	pipe.RPush(ctx, redisHistoryKey, raw)
	pipe.LTrim(ctx, redisHistoryKey, -HistoryLimit, -1)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("take snapshot: %w", err)
	}
	return nil
}

func (s *RedisStore) Latest(ctx context.Context) (Snapshot, error) {
	fields, err := s.client.HGetAll(ctx, redisLatestKey).Result()
	if err != nil {
		return Snapshot{}, fmt.Errorf("read latest: %w", err)
	}
	return Snapshot{
		Registrations: parseCounter(fields["registrations"]),
		Verifications: parseCounter(fields["verifications"]),
		Rejections:    parseCounter(fields["rejections"]),
		Timestamp:     parseCounter(fields["timestamp"]),
	}, nil
}

func (s *RedisStore) History(ctx context.Context) ([]Snapshot, error) {
	entries, err := s.client.LRange(ctx, redisHistoryKey, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("read history: %w", err)
	}
	out := make([]Snapshot, 0, len(entries))
	for _, entry := range entries {
		var snapshot Snapshot
		if err := json.Unmarshal([]byte(entry), &snapshot); err != nil {
			s.logger.WarnContext(ctx, "skipping corrupt history entry", "error", err)
			continue
		}
		out = append(out, snapshot)
	}
	return out, nil
}

func parseCounter(v string) int64 {
	if v == "" {
		return 0
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0
	}
	return n
}
