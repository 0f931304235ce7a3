package fraud

import (
	"context"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

func TestRedisVelocityTracker(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	defer mr.Close()

	cache := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer cache.Close()

	tracker := NewRedisVelocityTracker(cache)
	ctx := context.Background()

	snap, err := tracker.Snapshot(ctx, "acct-1")
	if err != nil {
		t.Fatalf("empty snapshot: %v", err)
	}
	if snap.HourlyCount != 0 || !snap.DailyAmount.IsZero() {
		t.Fatalf("expected zero snapshot, got %+v", snap)
	}

	if err := tracker.Record(ctx, "acct-1", decimal.NewFromInt(250)); err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := tracker.Record(ctx, "acct-1", decimal.RequireFromString("99.50")); err != nil {
		t.Fatalf("record: %v", err)
	}

	snap, err = tracker.Snapshot(ctx, "acct-1")
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if snap.HourlyCount != 2 {
		t.Fatalf("expected count 2, got %d", snap.HourlyCount)
	}
	if !snap.DailyAmount.Equal(decimal.RequireFromString("349.5")) {
		t.Fatalf("expected amount 349.5, got %s", snap.DailyAmount)
	}

	// Counters are per account.
	other, err := tracker.Snapshot(ctx, "acct-2")
	if err != nil {
		t.Fatalf("other snapshot: %v", err)
	}
	if other.HourlyCount != 0 {
		t.Fatalf("expected isolated counters, got %d", other.HourlyCount)
	}
}

func TestRedisVelocityAmountIsExact(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	defer mr.Close()

	cache := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer cache.Close()

	tracker := NewRedisVelocityTracker(cache)
	ctx := context.Background()

	// 0.1 cannot be represented in binary floating point; accumulating it as
	// integer minor units must still sum exactly.
	for i := 0; i < 3; i++ {
		if err := tracker.Record(ctx, "acct-1", decimal.RequireFromString("0.1")); err != nil {
			t.Fatalf("record: %v", err)
		}
	}

	snap, err := tracker.Snapshot(ctx, "acct-1")
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if !snap.DailyAmount.Equal(decimal.RequireFromString("0.3")) {
		t.Fatalf("expected exactly 0.3, got %s", snap.DailyAmount)
	}
}

func TestRedisVelocityWindowExpiry(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	defer mr.Close()

	cache := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer cache.Close()

	tracker := NewRedisVelocityTracker(cache)
	ctx := context.Background()

	if err := tracker.Record(ctx, "acct-1", decimal.NewFromInt(10)); err != nil {
		t.Fatalf("record: %v", err)
	}

	mr.FastForward(2 * hourlyWindow)

	snap, err := tracker.Snapshot(ctx, "acct-1")
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if snap.HourlyCount != 0 {
		t.Fatalf("hourly counter should have expired, got %d", snap.HourlyCount)
	}
	// The daily amount window is still open.
	if !snap.DailyAmount.Equal(decimal.NewFromInt(10)) {
		t.Fatalf("daily amount should survive, got %s", snap.DailyAmount)
	}
}

func TestMemoryVelocityTracker(t *testing.T) {
	tracker := NewMemoryVelocityTracker()
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if err := tracker.Record(ctx, "acct-1", decimal.NewFromInt(100)); err != nil {
			t.Fatalf("record: %v", err)
		}
	}

	snap, err := tracker.Snapshot(ctx, "acct-1")
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if snap.HourlyCount != 5 {
		t.Fatalf("expected count 5, got %d", snap.HourlyCount)
	}
	if !snap.DailyAmount.Equal(decimal.NewFromInt(500)) {
		t.Fatalf("expected amount 500, got %s", snap.DailyAmount)
	}
}
