package stats

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"

	"smtp-relay/internal/common/logging"
)

// RedisStore keeps counters in Redis so they survive restarts and are
// shared across instances. Buckets carry a TTL slightly past the retention
// window, so Prune is a safety net rather than the primary mechanism.
type RedisStore struct {
	client *redis.Client
	logger logging.Logger
	now    func() time.Time
}

// NewRedisStore creates a Redis-backed stats store
func NewRedisStore(client *redis.Client, logger logging.Logger) *RedisStore {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	return &RedisStore{
		client: client,
		logger: logger,
		now:    time.Now,
	}
}

func sentKey(date string) string   { return "stats:sent:" + date }
func failedKey(date string) string { return "stats:failed:" + date }

func (s *RedisStore) incr(ctx context.Context, key string) {
	pipe := s.client.Pipeline()
	pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, (RetentionDays+1)*24*time.Hour)
	if _, err := pipe.Exec(ctx); err != nil {
		// Stats loss must never fail a send
		s.logger.Warn("failed to record delivery statistic",
			logging.String("key", key), logging.Err(err))
	}
}

// RecordSent counts one delivered message
func (s *RedisStore) RecordSent(ctx context.Context) {
	s.incr(ctx, sentKey(s.now().UTC().Format(dayFormat)))
}

// RecordFailed counts one failed send
func (s *RedisStore) RecordFailed(ctx context.Context) {
	s.incr(ctx, failedKey(s.now().UTC().Format(dayFormat)))
}

// Report returns the trailing window, oldest first
func (s *RedisStore) Report(ctx context.Context, days int) (*Report, error) {
	dates := window(s.now(), days)

	pipe := s.client.Pipeline()
	sentCmds := make([]*redis.StringCmd, len(dates))
	failedCmds := make([]*redis.StringCmd, len(dates))
	for i, date := range dates {
		sentCmds[i] = pipe.Get(ctx, sentKey(date))
		failedCmds[i] = pipe.Get(ctx, failedKey(date))
	}
	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return nil, err
	}

	report := &Report{}
	for i, date := range dates {
		day := DayCount{Date: date}
		if v, err := sentCmds[i].Int64(); err == nil {
			day.Sent = v
		}
		if v, err := failedCmds[i].Int64(); err == nil {
			day.Failed = v
		}
		report.Days = append(report.Days, day)
		report.TotalSent += day.Sent
		report.TotalFailed += day.Failed
	}
	return report, nil
}

// Prune removes buckets older than the retention window. Keys normally
// expire on their own TTL; this catches buckets written by older versions
// without one.
func (s *RedisStore) Prune(ctx context.Context) error {
	cutoff := s.now().UTC().AddDate(0, 0, -RetentionDays).Format(dayFormat)

	var removed int
	for _, prefix := range []string{"stats:sent:", "stats:failed:"} {
		iter := s.client.Scan(ctx, 0, prefix+"*", 0).Iterator()
		for iter.Next(ctx) {
			key := iter.Val()
			if key[len(prefix):] < cutoff {
				if err := s.client.Del(ctx, key).Err(); err != nil {
					return err
				}
				removed++
			}
		}
		if err := iter.Err(); err != nil {
			return err
		}
	}

	if removed > 0 {
		s.logger.Info("Pruned expired stat buckets", logging.Int("removed", removed))
	}
	return nil
}
