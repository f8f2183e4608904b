package middleware

import (
	"context"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/refbot/core/logger"
	"github.com/m3rciful/refbot/core/metrics"
	"github.com/m3rciful/refbot/core/telegram/tgctx"
)

// Deduper remembers processed update ids. Seen marks id and reports whether
// it was already marked; Forget drops the mark so a redelivery is handled.
type Deduper interface {
	Seen(ctx context.Context, updateID int) (bool, error)
	Forget(ctx context.Context, updateID int) error
}

// RedisDeduper marks update ids with SET NX and a TTL, so redeliveries are
// recognised across restarts and replicas.
type RedisDeduper struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisDeduper returns a deduper storing keys as prefix+update id.
func NewRedisDeduper(client *redis.Client, prefix string, ttl time.Duration) *RedisDeduper {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &RedisDeduper{client: client, prefix: prefix, ttl: ttl}
}

func (d *RedisDeduper) Seen(ctx context.Context, updateID int) (bool, error) {
	fresh, err := d.client.SetNX(ctx, d.prefix+strconv.Itoa(updateID), 1, d.ttl).Result()
	if err != nil {
		return false, err
	}
	return !fresh, nil
}

func (d *RedisDeduper) Forget(ctx context.Context, updateID int) error {
	return d.client.Del(ctx, d.prefix+strconv.Itoa(updateID)).Err()
}

// MemoryDeduper keeps ids in process memory for keepFor.
type MemoryDeduper struct {
	mu      sync.Mutex
	seen    map[int]time.Time
	keepFor time.Duration
	now     func() time.Time
}

// NewMemoryDeduper returns a deduper forgetting ids after keepFor.
func NewMemoryDeduper(keepFor time.Duration) *MemoryDeduper {
	if keepFor <= 0 {
		keepFor = 10 * time.Minute
	}
	return &MemoryDeduper{seen: make(map[int]time.Time), keepFor: keepFor, now: time.Now}
}

func (d *MemoryDeduper) Seen(_ context.Context, updateID int) (bool, error) {
	now := d.now()
	d.mu.Lock()
	defer d.mu.Unlock()
	for id, ts := range d.seen {
		if now.Sub(ts) > d.keepFor {
			delete(d.seen, id)
		}
	}
	if _, ok := d.seen[updateID]; ok {
		return true, nil
	}
	d.seen[updateID] = now
	return false, nil
}

func (d *MemoryDeduper) Forget(_ context.Context, updateID int) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.seen, updateID)
	return nil
}

// DedupeMiddleware drops updates whose id was already processed. A failing
// deduper lets the update through. When the handler fails the id is
// forgotten so Telegram's redelivery gets another attempt.
func DedupeMiddleware(d Deduper) tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			upd := c.Update()
			if d == nil || upd.ID == 0 {
				return next(c)
			}
			ctx := tgctx.From(c)
			dup, err := d.Seen(ctx, upd.ID)
			if err != nil {
				logger.LogEvent(ctx, logger.TG, slog.LevelWarn, "update.dedupe",
					slog.String("status", "fail"),
					slog.String("err", err.Error()),
				)
				return next(c)
			}
			if dup {
				metrics.RecordUpdate(UpdateKind(upd), "duplicate")
				logger.LogEvent(ctx, logger.TG, slog.LevelInfo, "update.dedupe",
					slog.String("status", "duplicate"),
				)
				return nil
			}
			if err := next(c); err != nil {
				if ferr := d.Forget(ctx, upd.ID); ferr != nil {
					logger.LogEvent(ctx, logger.TG, slog.LevelWarn, "update.dedupe",
						slog.String("status", "fail"),
						slog.String("err", ferr.Error()),
					)
				}
				return err
			}
			return nil
		}
	}
}
