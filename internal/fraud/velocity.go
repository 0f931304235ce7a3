package fraud

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

// VelocitySnapshot captures recent activity for a source account.
type VelocitySnapshot struct {
	HourlyCount int64
	DailyAmount decimal.Decimal
}

// VelocityTracker maintains per-account transaction counters over sliding
// windows. Lookups feed the scorer; updates happen after scoring so the
// current transaction does not count against itself.
type VelocityTracker interface {
	Snapshot(ctx context.Context, accountID string) (VelocitySnapshot, error)
	Record(ctx context.Context, accountID string, amount decimal.Decimal) error
}

const (
	hourlyWindow = time.Hour
	dailyWindow  = 24 * time.Hour

	// amountScale converts amounts to integer minor units for Redis so the
	// daily sum accumulates exactly, never through float arithmetic.
	amountScale = 4
)

// RedisVelocityTracker counts activity in Redis, sharing state across
// instances.
type RedisVelocityTracker struct {
	cache *redis.Client
}

// NewRedisVelocityTracker builds a Redis-backed tracker.
func NewRedisVelocityTracker(cache *redis.Client) *RedisVelocityTracker {
	return &RedisVelocityTracker{cache: cache}
}

func hourlyKey(accountID string) string { return "velocity:1h:count:" + accountID }
func dailyKey(accountID string) string  { return "velocity:24h:amount:" + accountID }

// Snapshot reads the current counters. Missing keys read as zero.
func (t *RedisVelocityTracker) Snapshot(ctx context.Context, accountID string) (VelocitySnapshot, error) {
	count, err := t.cache.Get(ctx, hourlyKey(accountID)).Int64()
	if err != nil && err != redis.Nil {
		return VelocitySnapshot{}, err
	}
	minor, err := t.cache.Get(ctx, dailyKey(accountID)).Int64()
	if err != nil && err != redis.Nil {
		return VelocitySnapshot{}, err
	}
	return VelocitySnapshot{HourlyCount: count, DailyAmount: decimal.New(minor, -amountScale)}, nil
}

// Record bumps the counters, setting the window expiry on first increment.
func (t *RedisVelocityTracker) Record(ctx context.Context, accountID string, amount decimal.Decimal) error {
	count, err := t.cache.Incr(ctx, hourlyKey(accountID)).Result()
	if err != nil {
		return err
	}
	if count == 1 {
		t.cache.Expire(ctx, hourlyKey(accountID), hourlyWindow)
	}

	minor := amount.Shift(amountScale).IntPart()
	total, err := t.cache.IncrBy(ctx, dailyKey(accountID), minor).Result()
	if err != nil {
		return err
	}
	if total == minor {
		t.cache.Expire(ctx, dailyKey(accountID), dailyWindow)
	}
	return nil
}

type memoryWindow struct {
	count     int64
	amount    decimal.Decimal
	hourReset time.Time
	dayReset  time.Time
}

// MemoryVelocityTracker is the single-instance fallback used when Redis is
// absent (dev mode and unit tests).
type MemoryVelocityTracker struct {
	mu      sync.Mutex
	windows map[string]*memoryWindow
	now     func() time.Time
}

// NewMemoryVelocityTracker constructs a concurrency-safe in-memory tracker.
func NewMemoryVelocityTracker() *MemoryVelocityTracker {
	return &MemoryVelocityTracker{
		windows: make(map[string]*memoryWindow),
		now:     time.Now,
	}
}

func (t *MemoryVelocityTracker) window(accountID string) *memoryWindow {
	w, ok := t.windows[accountID]
	now := t.now()
	if !ok {
		w = &memoryWindow{
			amount:    decimal.Zero,
			hourReset: now.Add(hourlyWindow),
			dayReset:  now.Add(dailyWindow),
		}
		t.windows[accountID] = w
	}
	if now.After(w.hourReset) {
		w.count = 0
		w.hourReset = now.Add(hourlyWindow)
	}
	if now.After(w.dayReset) {
		w.amount = decimal.Zero
		w.dayReset = now.Add(dailyWindow)
	}
	return w
}

// Snapshot reads the counters for an account.
func (t *MemoryVelocityTracker) Snapshot(_ context.Context, accountID string) (VelocitySnapshot, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	w := t.window(accountID)
	return VelocitySnapshot{HourlyCount: w.count, DailyAmount: w.amount}, nil
}

// Record bumps the counters for an account.
func (t *MemoryVelocityTracker) Record(_ context.Context, accountID string, amount decimal.Decimal) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	w := t.window(accountID)
	w.count++
	w.amount = w.amount.Add(amount)
	return nil
}
