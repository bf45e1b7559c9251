package storage

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/vanity-grinder/internal/config"
	"github.com/vanity-grinder/internal/models"
	"github.com/vanity-grinder/internal/types"
)

func testJobCache(t *testing.T) (*JobCache, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)

	cache, err := NewRedisCache(&config.RedisConfig{
		Host: mr.Host(),
		Port: mr.Port(),
		DB:   0,
	})
	if err != nil {
		t.Fatalf("NewRedisCache() error = %v", err)
	}
	t.Cleanup(func() {
		_ = cache.Close()
	})

	return NewJobCache(cache, time.Minute, time.Hour), mr
}

func pendingJob(id string) *models.VanityJob {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	return &models.VanityJob{
		ID:              id,
		Pattern:         "AB",
		ThreadCount:     4,
		CPULimitPercent: 80,
		Status:          types.JobPending,
		RequestedBy:     "tester",
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

func TestJobCache_PutGet(t *testing.T) {
	cache, _ := testJobCache(t)
	ctx := testContext(t)

	job := pendingJob("job-1")
	if err := cache.Put(ctx, job); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	got, found, err := cache.Get(ctx, "job-1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !found {
		t.Fatal("Get() found = false, want true")
	}
	if got.ID != job.ID || got.Pattern != job.Pattern || got.Status != job.Status {
		t.Errorf("Get() = %+v, want %+v", got, job)
	}
}

func TestJobCache_Miss(t *testing.T) {
	cache, _ := testJobCache(t)
	ctx := testContext(t)

	got, found, err := cache.Get(ctx, "nope")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if found {
		t.Errorf("Get() found = true for missing key, job = %+v", got)
	}
}

func TestJobCache_TerminalTTL(t *testing.T) {
	cache, mr := testJobCache(t)
	ctx := testContext(t)

	live := pendingJob("live")
	if err := cache.Put(ctx, live); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	addr := "AB3fGhJkMn"
	key := "5Hw" // placeholder private key material
	done := pendingJob("done")
	done.Status = types.JobCompleted
	done.WalletAddress = &addr
	done.PrivateKey = &key
	if err := cache.Put(ctx, done); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	if ttl := mr.TTL(cache.JobKey("live")); ttl != time.Minute {
		t.Errorf("live job TTL = %v, want %v", ttl, time.Minute)
	}
	if ttl := mr.TTL(cache.JobKey("done")); ttl != time.Hour {
		t.Errorf("terminal job TTL = %v, want %v", ttl, time.Hour)
	}
}

func TestJobCache_Invalidate(t *testing.T) {
	cache, _ := testJobCache(t)
	ctx := testContext(t)

	if err := cache.Put(ctx, pendingJob("job-a")); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if err := cache.Put(ctx, pendingJob("job-b")); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	if err := cache.Invalidate(ctx, "job-a", "job-b"); err != nil {
		t.Fatalf("Invalidate() error = %v", err)
	}

	_, found, err := cache.Get(ctx, "job-a")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if found {
		t.Error("Get() found invalidated job")
	}

	// Invalidating nothing is a no-op
	if err := cache.Invalidate(ctx); err != nil {
		t.Errorf("Invalidate() with no ids error = %v", err)
	}
}
