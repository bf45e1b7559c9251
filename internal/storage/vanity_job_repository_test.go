package storage

import (
	"testing"
	"time"

	apperrors "github.com/vanity-grinder/internal/errors"
	"github.com/vanity-grinder/internal/types"
)

// createVanityJobsTable mirrors migrations/postgres so the tests can run
// against an empty development database
const createVanityJobsTable = `
	CREATE TABLE IF NOT EXISTS vanity_jobs (
		id TEXT PRIMARY KEY,
		pattern TEXT NOT NULL,
		is_suffix BOOLEAN NOT NULL DEFAULT FALSE,
		case_sensitive BOOLEAN NOT NULL DEFAULT TRUE,
		thread_count INTEGER NOT NULL,
		cpu_limit_percent INTEGER NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		attempts BIGINT NOT NULL DEFAULT 0,
		wallet_address TEXT,
		private_key TEXT,
		failure_reason TEXT,
		requested_by TEXT NOT NULL DEFAULT '',
		request_ip TEXT NOT NULL DEFAULT '',
		lease_expires_at TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL,
		completed_at TIMESTAMPTZ
	)
`

func setupJobRepository(t *testing.T) *VanityJobRepository {
	t.Helper()

	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	db, err := NewPostgresDB(testPostgresConfig())
	if err != nil {
		t.Skipf("Skipping test - Postgres not available: %v", err)
		return nil
	}
	t.Cleanup(db.Close)

	ctx := testContext(t)
	if _, err := db.Pool().Exec(ctx, createVanityJobsTable); err != nil {
		t.Fatalf("failed to create vanity_jobs table: %v", err)
	}

	return NewVanityJobRepository(db)
}

func testJobParams() CreateJobParams {
	return CreateJobParams{
		Pattern:         "AB",
		IsSuffix:        false,
		CaseSensitive:   true,
		ThreadCount:     4,
		CPULimitPercent: 80,
		RequestedBy:     "tester",
		RequestIP:       "127.0.0.1",
	}
}

func TestVanityJobRepository_CreateAndGet(t *testing.T) {
	repo := setupJobRepository(t)
	ctx := testContext(t)

	created, err := repo.Create(ctx, testJobParams())
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if created.ID == "" {
		t.Fatal("Create() returned empty job ID")
	}
	if created.Status != types.JobPending {
		t.Errorf("Create() status = %v, want %v", created.Status, types.JobPending)
	}

	got, err := repo.GetByID(ctx, created.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.Pattern != "AB" || got.ThreadCount != 4 || got.CPULimitPercent != 80 {
		t.Errorf("GetByID() = %+v, want matching create params", got)
	}
	if got.Attempts != 0 {
		t.Errorf("GetByID() attempts = %d, want 0", got.Attempts)
	}
	if got.WalletAddress != nil || got.PrivateKey != nil || got.CompletedAt != nil {
		t.Error("fresh job has result fields set")
	}
}

func TestVanityJobRepository_GetMissing(t *testing.T) {
	repo := setupJobRepository(t)
	ctx := testContext(t)

	_, err := repo.GetByID(ctx, "00000000-0000-0000-0000-000000000000")
	if err == nil {
		t.Fatal("GetByID() error = nil, want not found")
	}
	if !apperrors.IsNotFound(err) {
		t.Errorf("GetByID() error = %v, want JOB_NOT_FOUND", err)
	}
}

func TestVanityJobRepository_Lifecycle(t *testing.T) {
	repo := setupJobRepository(t)
	ctx := testContext(t)

	job, err := repo.Create(ctx, testJobParams())
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	lease := time.Now().UTC().Add(30 * time.Second)
	applied, err := repo.MarkProcessing(ctx, job.ID, lease)
	if err != nil {
		t.Fatalf("MarkProcessing() error = %v", err)
	}
	if !applied {
		t.Fatal("MarkProcessing() applied = false, want true")
	}

	got, err := repo.GetByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.Status != types.JobProcessing {
		t.Errorf("status = %v, want %v", got.Status, types.JobProcessing)
	}
	if got.LeaseExpiresAt == nil {
		t.Error("lease_expires_at not set after MarkProcessing")
	}

	// Attempts only move forwards
	if err := repo.UpdateProgress(ctx, job.ID, 100, lease); err != nil {
		t.Fatalf("UpdateProgress() error = %v", err)
	}
	if err := repo.UpdateProgress(ctx, job.ID, 50, lease); err != nil {
		t.Fatalf("UpdateProgress() error = %v", err)
	}
	got, err = repo.GetByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.Attempts != 100 {
		t.Errorf("attempts = %d, want 100 after stale progress report", got.Attempts)
	}

	applied, err = repo.Complete(ctx, job.ID, "ABcdef123", "5HwExamplePrivateKey", 150)
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if !applied {
		t.Fatal("Complete() applied = false, want true")
	}

	got, err = repo.GetByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.Status != types.JobCompleted {
		t.Errorf("status = %v, want %v", got.Status, types.JobCompleted)
	}
	if got.WalletAddress == nil || *got.WalletAddress != "ABcdef123" {
		t.Errorf("wallet_address = %v, want ABcdef123", got.WalletAddress)
	}
	if got.PrivateKey == nil || *got.PrivateKey != "5HwExamplePrivateKey" {
		t.Error("private_key not persisted")
	}
	if got.Attempts != 150 {
		t.Errorf("attempts = %d, want 150", got.Attempts)
	}
	if got.CompletedAt == nil {
		t.Error("completed_at not set")
	}
	if got.LeaseExpiresAt != nil {
		t.Error("lease_expires_at should be cleared on completion")
	}

	// Terminal state is immutable: every later transition is rejected
	applied, err = repo.Complete(ctx, job.ID, "other", "key", 1)
	if err != nil {
		t.Fatalf("second Complete() error = %v", err)
	}
	if applied {
		t.Error("second Complete() applied = true, want false")
	}

	applied, err = repo.Cancel(ctx, job.ID)
	if err != nil {
		t.Fatalf("Cancel() after complete error = %v", err)
	}
	if applied {
		t.Error("Cancel() after complete applied = true, want false")
	}

	applied, err = repo.Fail(ctx, job.ID, "boom", 1)
	if err != nil {
		t.Fatalf("Fail() after complete error = %v", err)
	}
	if applied {
		t.Error("Fail() after complete applied = true, want false")
	}

	if err := repo.UpdateProgress(ctx, job.ID, 9999, lease); err != nil {
		t.Fatalf("UpdateProgress() after complete error = %v", err)
	}
	got, err = repo.GetByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.Attempts != 150 {
		t.Errorf("attempts = %d after terminal progress report, want 150", got.Attempts)
	}
	if got.WalletAddress == nil || *got.WalletAddress != "ABcdef123" {
		t.Error("completed result overwritten by later transition")
	}
}

func TestVanityJobRepository_Cancel(t *testing.T) {
	repo := setupJobRepository(t)
	ctx := testContext(t)

	job, err := repo.Create(ctx, testJobParams())
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	applied, err := repo.Cancel(ctx, job.ID)
	if err != nil {
		t.Fatalf("Cancel() error = %v", err)
	}
	if !applied {
		t.Fatal("Cancel() applied = false, want true")
	}

	got, err := repo.GetByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.Status != types.JobCancelled {
		t.Errorf("status = %v, want %v", got.Status, types.JobCancelled)
	}

	// A cancelled job can never start processing
	applied, err = repo.MarkProcessing(ctx, job.ID, time.Now().UTC().Add(time.Minute))
	if err != nil {
		t.Fatalf("MarkProcessing() after cancel error = %v", err)
	}
	if applied {
		t.Error("MarkProcessing() after cancel applied = true, want false")
	}
}

func TestVanityJobRepository_Fail(t *testing.T) {
	repo := setupJobRepository(t)
	ctx := testContext(t)

	job, err := repo.Create(ctx, testJobParams())
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	applied, err := repo.Fail(ctx, job.ID, "all workers faulted", 42)
	if err != nil {
		t.Fatalf("Fail() error = %v", err)
	}
	if !applied {
		t.Fatal("Fail() applied = false, want true")
	}

	got, err := repo.GetByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.Status != types.JobFailed {
		t.Errorf("status = %v, want %v", got.Status, types.JobFailed)
	}
	if got.FailureReason == nil || *got.FailureReason != "all workers faulted" {
		t.Errorf("failure_reason = %v, want all workers faulted", got.FailureReason)
	}
	if got.Attempts != 42 {
		t.Errorf("attempts = %d, want 42", got.Attempts)
	}
}

func TestVanityJobRepository_List(t *testing.T) {
	repo := setupJobRepository(t)
	ctx := testContext(t)

	first, err := repo.Create(ctx, testJobParams())
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	second, err := repo.Create(ctx, testJobParams())
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	status := types.JobPending
	jobs, err := repo.List(ctx, &status, 1000)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}

	found := map[string]bool{}
	for _, j := range jobs {
		if j.Status != types.JobPending {
			t.Errorf("List(pending) returned job with status %v", j.Status)
		}
		found[j.ID] = true
	}
	if !found[first.ID] || !found[second.ID] {
		t.Error("List(pending) missing freshly created jobs")
	}
}

func TestVanityJobRepository_ListExpiredLeases(t *testing.T) {
	repo := setupJobRepository(t)
	ctx := testContext(t)

	now := time.Now().UTC()

	expired, err := repo.Create(ctx, testJobParams())
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if _, err := repo.MarkProcessing(ctx, expired.ID, now.Add(-time.Minute)); err != nil {
		t.Fatalf("MarkProcessing() error = %v", err)
	}

	fresh, err := repo.Create(ctx, testJobParams())
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	jobs, err := repo.ListExpiredLeases(ctx, now, now.Add(-time.Hour))
	if err != nil {
		t.Fatalf("ListExpiredLeases() error = %v", err)
	}

	found := map[string]bool{}
	for _, j := range jobs {
		found[j.ID] = true
	}
	if !found[expired.ID] {
		t.Error("ListExpiredLeases() missing job with lapsed lease")
	}
	if found[fresh.ID] {
		t.Error("ListExpiredLeases() returned freshly created job without a lease")
	}
}
