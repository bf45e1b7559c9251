// Package generator coordinates vanity search jobs: thread capacity, FIFO
// queueing, worker lifecycles, result arbitration, and persistence.
package generator

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sort"
	"sync"
	"time"

	apperrors "github.com/vanity-grinder/internal/errors"
	"github.com/vanity-grinder/internal/keygen"
	"github.com/vanity-grinder/internal/logging"
	"github.com/vanity-grinder/internal/models"
	"github.com/vanity-grinder/internal/retry"
	"github.com/vanity-grinder/internal/types"
	"github.com/vanity-grinder/internal/worker"
)

// Default manager configuration values.
const (
	DefaultMaxQueueDepth  = 100
	DefaultFlushInterval  = 2 * time.Second
	DefaultLeaseTTL       = 30 * time.Second
	DefaultReaperInterval = 15 * time.Second

	eventBufferSize = 256
	storeOpTimeout  = 10 * time.Second
)

// ErrStopped is returned for operations issued after the manager shut down
var ErrStopped = errors.New("generator manager is stopped")

// JobStore is the persistence surface the manager needs. All writes are
// guarded: they apply only while the job is non-terminal, and the bool
// reports whether the transition took effect.
type JobStore interface {
	GetByID(ctx context.Context, id string) (*models.VanityJob, error)
	MarkProcessing(ctx context.Context, id string, leaseUntil time.Time) (bool, error)
	UpdateProgress(ctx context.Context, id string, attempts int64, leaseUntil time.Time) error
	Complete(ctx context.Context, id, address, privateKey string, attempts int64) (bool, error)
	Cancel(ctx context.Context, id string) (bool, error)
	Fail(ctx context.Context, id, reason string, attempts int64) (bool, error)
	ListExpiredLeases(ctx context.Context, leaseCutoff, nullLeaseCutoff time.Time) ([]*models.VanityJob, error)
}

// Telemetry receives throughput samples. Implementations must not block.
type Telemetry interface {
	Record(sample models.ThroughputSample)
}

// KeypairFactory builds one keypair source per search worker
type KeypairFactory func() worker.KeypairSource

// ManagerConfig holds configuration for the generator manager
type ManagerConfig struct {
	// Store persists job state. Required.
	Store JobStore

	// Telemetry receives per-flush throughput samples. Optional.
	Telemetry Telemetry

	// KeypairFactory overrides the keypair source given to each worker.
	// Optional; workers default to fresh system-entropy generators.
	KeypairFactory KeypairFactory

	// MaxTotalThreads caps concurrent search threads across all jobs.
	// Default: runtime.NumCPU().
	MaxTotalThreads int

	// MaxQueueDepth caps jobs waiting for capacity. Default: 100.
	MaxQueueDepth int

	// BatchSize is handed to each search worker. Default: worker default.
	BatchSize int

	// FlushInterval is how often progress is persisted and leases renewed.
	// Default: 2s.
	FlushInterval time.Duration

	// LeaseTTL is how long a persisted lease stays valid. Default: 30s.
	LeaseTTL time.Duration

	// ReaperInterval is how often expired leases are swept. Default: 15s.
	ReaperInterval time.Duration
}

// jobEntry is the manager's private bookkeeping for one job. Only the run
// loop touches it.
type jobEntry struct {
	job    *models.VanityJob
	spec   keygen.PatternSpec
	handle *JobHandle
	cancel context.CancelFunc

	workers int
	live    int
	faulted int

	attempts          int64
	resultSeen        bool
	startedAt         time.Time
	lastFlushAt       time.Time
	lastFlushAttempts int64

	// terminal writes that could not reach the store yet; retried at
	// every flush tick
	pendingResult *models.SearchResult
	pendingFail   string
}

// Status is a point-in-time view of the manager
type Status struct {
	Running       bool                 `json:"running"`
	MaxThreads    int                  `json:"maxThreads"`
	ActiveThreads int                  `json:"activeThreads"`
	MaxQueueDepth int                  `json:"maxQueueDepth"`
	QueuedCount   int                  `json:"queuedCount"`
	ActiveJobs    []models.JobSnapshot `json:"activeJobs"`
	QueuedJobs    []models.JobSnapshot `json:"queuedJobs"`
}

// Manager owns every vanity search running in this process. All
// bookkeeping lives in a single goroutine: operations and worker events
// arrive on channels, so when two workers race to a result, the order the
// loop observes them in decides the winner, backed by the store's
// terminal-state guard against external writers.
type Manager struct {
	store          JobStore
	telemetry      Telemetry
	keypairFactory KeypairFactory
	logger         *logging.Logger

	maxThreads     int
	maxQueueDepth  int
	batchSize      int
	flushInterval  time.Duration
	leaseTTL       time.Duration
	reaperInterval time.Duration
	terminalRetry  *retry.Config

	events chan worker.Event
	ops    chan func()

	workersCtx    context.Context
	workersCancel context.CancelFunc

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}

	// loop-owned state
	active          map[string]*jobEntry
	queue           []*jobEntry
	pendingPersists []*jobEntry
	activeThreads   int
	draining        bool
}

// NewManager creates a new generator manager
func NewManager(cfg *ManagerConfig) (*Manager, error) {
	if cfg == nil {
		return nil, fmt.Errorf("configuration is required")
	}
	if cfg.Store == nil {
		return nil, fmt.Errorf("job store cannot be nil")
	}

	maxThreads := cfg.MaxTotalThreads
	if maxThreads <= 0 {
		maxThreads = runtime.NumCPU()
	}

	maxQueueDepth := cfg.MaxQueueDepth
	if maxQueueDepth <= 0 {
		maxQueueDepth = DefaultMaxQueueDepth
	}

	flushInterval := cfg.FlushInterval
	if flushInterval <= 0 {
		flushInterval = DefaultFlushInterval
	}

	leaseTTL := cfg.LeaseTTL
	if leaseTTL <= 0 {
		leaseTTL = DefaultLeaseTTL
	}
	if leaseTTL <= flushInterval {
		return nil, fmt.Errorf("lease TTL (%v) must exceed flush interval (%v)", leaseTTL, flushInterval)
	}

	reaperInterval := cfg.ReaperInterval
	if reaperInterval <= 0 {
		reaperInterval = DefaultReaperInterval
	}

	workersCtx, workersCancel := context.WithCancel(context.Background())

	return &Manager{
		store:          cfg.Store,
		telemetry:      cfg.Telemetry,
		keypairFactory: cfg.KeypairFactory,
		logger:         logging.L().Component("generator"),
		maxThreads:     maxThreads,
		maxQueueDepth:  maxQueueDepth,
		batchSize:      cfg.BatchSize,
		flushInterval:  flushInterval,
		leaseTTL:       leaseTTL,
		reaperInterval: reaperInterval,
		terminalRetry:  retry.FlushConfig(),
		events:         make(chan worker.Event, eventBufferSize),
		ops:            make(chan func()),
		workersCtx:     workersCtx,
		workersCancel:  workersCancel,
		stopCh:         make(chan struct{}),
		doneCh:         make(chan struct{}),
		active:         make(map[string]*jobEntry),
	}, nil
}

// Start sweeps stale leases left by earlier crashes and launches the run
// loop
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return fmt.Errorf("generator manager already started")
	}
	m.running = true
	m.mu.Unlock()

	m.reapExpiredLeases()
	go m.run()

	m.logger.Infof("started with %d max threads, queue depth %d", m.maxThreads, m.maxQueueDepth)
	return nil
}

// Stop cancels all workers, waits for their final events, flushes progress
// and releases every handle. Safe to call once.
func (m *Manager) Stop(ctx context.Context) error {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return nil
	}
	m.running = false
	close(m.stopCh)
	m.mu.Unlock()

	select {
	case <-m.doneCh:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Submit dispatches workers for a pending job record, or queues it when
// thread capacity is exhausted. The returned handle resolves once the job
// reaches a terminal state.
func (m *Manager) Submit(ctx context.Context, job *models.VanityJob) (*JobHandle, error) {
	if job == nil {
		return nil, apperrors.NewInvalidConfigError("job", "job record is required")
	}

	var (
		handle *JobHandle
		opErr  error
	)
	if err := m.do(ctx, func() { handle, opErr = m.submit(job) }); err != nil {
		return nil, err
	}
	return handle, opErr
}

// Cancel stops a job wherever it is: queued jobs never dispatch, running
// jobs get a durable cancel before their workers are interrupted, and jobs
// unknown to this manager go through the store's guarded cancel. Cancelling
// an already-terminal job is a no-op.
func (m *Manager) Cancel(ctx context.Context, jobID string) error {
	var opErr error
	if err := m.do(ctx, func() { opErr = m.cancelJob(jobID) }); err != nil {
		return err
	}
	return opErr
}

// Resubmit re-dispatches workers for an existing pending or processing
// record, never creating a duplicate. Jobs already tracked by this manager
// return their live handle.
func (m *Manager) Resubmit(ctx context.Context, jobID string) (*JobHandle, error) {
	var (
		handle *JobHandle
		opErr  error
	)
	if err := m.do(ctx, func() { handle, opErr = m.resubmit(jobID) }); err != nil {
		return nil, err
	}
	return handle, opErr
}

// Status reports capacity, the queue and snapshots of every tracked job
func (m *Manager) Status(ctx context.Context) (*Status, error) {
	var st *Status
	if err := m.do(ctx, func() { st = m.status() }); err != nil {
		return nil, err
	}
	return st, nil
}

// do runs fn inside the manager loop and waits for it to finish
func (m *Manager) do(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	wrapped := func() {
		defer close(done)
		fn()
	}

	select {
	case m.ops <- wrapped:
	case <-m.doneCh:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-done:
		return nil
	case <-m.doneCh:
		select {
		case <-done:
			return nil
		default:
			return ErrStopped
		}
	}
}

func (m *Manager) run() {
	defer close(m.doneCh)

	flushTicker := time.NewTicker(m.flushInterval)
	defer flushTicker.Stop()
	reaperTicker := time.NewTicker(m.reaperInterval)
	defer reaperTicker.Stop()

	for {
		select {
		case op := <-m.ops:
			op()
		case e := <-m.events:
			m.handleEvent(e)
		case <-flushTicker.C:
			m.flushAll()
		case <-reaperTicker.C:
			m.reapExpiredLeases()
		case <-m.stopCh:
			m.draining = true
			m.workersCancel()
			m.drainWorkers()
			m.finalizeRemaining()
			return
		}
	}
}

// drainWorkers keeps servicing events (and late operations) until every
// launched worker has sent its exit event
func (m *Manager) drainWorkers() {
	for !m.allWorkersExited() {
		select {
		case op := <-m.ops:
			op()
		case e := <-m.events:
			m.handleEvent(e)
		}
	}
}

func (m *Manager) allWorkersExited() bool {
	for _, entry := range m.active {
		if entry.live > 0 {
			return false
		}
	}
	return true
}

// finalizeRemaining gives unpersisted terminal writes one last attempt and
// then releases every outstanding handle so no waiter blocks forever
func (m *Manager) finalizeRemaining() {
	for _, entry := range m.pendingPersists {
		m.retryPendingWrite(entry)
		if !entry.handle.finalized() {
			m.finalizeLocal(entry, nil)
		}
	}
	m.pendingPersists = nil

	for _, q := range m.queue {
		m.finalizeLocal(q, nil)
	}
	m.queue = nil
}

func (m *Manager) submit(job *models.VanityJob) (*JobHandle, error) {
	if m.draining {
		return nil, ErrStopped
	}
	if _, ok := m.active[job.ID]; ok {
		return nil, apperrors.NewJobConflictError(job.ID, job.Status, "submit")
	}
	for _, q := range m.queue {
		if q.job.ID == job.ID {
			return nil, apperrors.NewJobConflictError(job.ID, job.Status, "submit")
		}
	}

	spec := keygen.PatternSpec{
		Pattern:       job.Pattern,
		IsSuffix:      job.IsSuffix,
		CaseSensitive: job.CaseSensitive,
	}
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	if job.ThreadCount < 1 {
		return nil, apperrors.NewInvalidConfigError("threadCount", "must be at least 1")
	}
	if job.ThreadCount > m.maxThreads {
		return nil, apperrors.NewInvalidConfigError("threadCount",
			fmt.Sprintf("exceeds generator capacity of %d threads", m.maxThreads))
	}

	entry := &jobEntry{
		job:      job.Clone(),
		spec:     spec,
		handle:   newJobHandle(job.ID),
		attempts: job.Attempts,
	}

	// Dispatch only when nothing is already waiting: queued jobs run in
	// arrival order, with no overtaking
	if len(m.queue) == 0 && m.activeThreads+job.ThreadCount <= m.maxThreads {
		if err := m.startEntry(entry); err != nil {
			return nil, err
		}
		return entry.handle, nil
	}

	if len(m.queue) >= m.maxQueueDepth {
		return nil, apperrors.NewCapacityExceededError(len(m.queue), m.maxQueueDepth)
	}
	m.queue = append(m.queue, entry)
	m.logger.Infof("job %s: queued at position %d", job.ID, len(m.queue))
	return entry.handle, nil
}

// startEntry marks the job processing in the store and launches its
// workers. A false guard means the job went terminal before it ever ran
// (for example cancelled while queued through another instance); the handle
// is resolved from the store and no workers start.
func (m *Manager) startEntry(entry *jobEntry) error {
	lease := time.Now().UTC().Add(m.leaseTTL)

	var applied bool
	err := m.withStoreRetry(func(ctx context.Context) error {
		var err error
		applied, err = m.store.MarkProcessing(ctx, entry.job.ID, lease)
		return err
	})
	if err != nil {
		return apperrors.NewPersistenceError("mark job processing", err)
	}
	if !applied {
		m.finalizeFromStore(entry)
		return nil
	}

	ctx, cancel := context.WithCancel(m.workersCtx)
	entry.cancel = cancel

	workers := make([]*worker.SearchWorker, 0, entry.job.ThreadCount)
	for i := 0; i < entry.job.ThreadCount; i++ {
		wcfg := &worker.SearchWorkerConfig{
			JobID:           entry.job.ID,
			WorkerID:        i,
			Spec:            entry.spec,
			Events:          m.events,
			BatchSize:       m.batchSize,
			CPULimitPercent: entry.job.CPULimitPercent,
		}
		if m.keypairFactory != nil {
			wcfg.Source = m.keypairFactory()
		}
		w, err := worker.NewSearchWorker(wcfg)
		if err != nil {
			cancel()
			return apperrors.NewInternalError("failed to build search worker", err)
		}
		workers = append(workers, w)
	}

	now := time.Now()
	entry.job.Status = types.JobProcessing
	entry.workers = len(workers)
	entry.live = len(workers)
	entry.startedAt = now
	entry.lastFlushAt = now
	entry.lastFlushAttempts = entry.attempts

	m.active[entry.job.ID] = entry
	m.activeThreads += entry.workers

	for _, w := range workers {
		go w.Run(ctx)
	}

	m.logger.Infof("job %s: started %d workers for pattern %q (suffix=%v, caseSensitive=%v, cpu=%d%%)",
		entry.job.ID, entry.workers, entry.job.Pattern, entry.job.IsSuffix,
		entry.job.CaseSensitive, entry.job.CPULimitPercent)
	return nil
}

func (m *Manager) cancelJob(jobID string) error {
	for i, q := range m.queue {
		if q.job.ID != jobID {
			continue
		}
		applied, err := m.storeCancel(jobID)
		if err != nil {
			return err
		}
		m.queue = append(m.queue[:i], m.queue[i+1:]...)
		if applied {
			m.finalizeCancelled(q)
			m.logger.Infof("job %s: cancelled while queued", jobID)
		} else {
			m.finalizeFromStore(q)
		}
		return nil
	}

	if entry, ok := m.active[jobID]; ok {
		if entry.handle.finalized() {
			return nil
		}
		applied, err := m.storeCancel(jobID)
		if err != nil {
			return err
		}
		// Durable state is settled; now interrupt the workers and drop
		// any result that lost the race
		entry.cancel()
		entry.resultSeen = true
		entry.pendingResult = nil
		entry.pendingFail = ""
		if applied {
			m.finalizeCancelled(entry)
			m.logger.Infof("job %s: cancelled after %d attempts", jobID, entry.attempts)
		} else {
			m.finalizeFromStore(entry)
		}
		return nil
	}

	// Unknown to this manager: guarded cancel against the store alone.
	// Either it applies, or the job was already terminal; both are success.
	if _, err := m.storeCancel(jobID); err != nil {
		return err
	}
	return nil
}

func (m *Manager) storeCancel(jobID string) (bool, error) {
	var applied bool
	err := m.withStoreRetry(func(ctx context.Context) error {
		var err error
		applied, err = m.store.Cancel(ctx, jobID)
		return err
	})
	if err != nil {
		if apperrors.IsNotFound(err) {
			return false, err
		}
		return false, apperrors.NewPersistenceError("cancel job", err)
	}
	return applied, nil
}

func (m *Manager) resubmit(jobID string) (*JobHandle, error) {
	if m.draining {
		return nil, ErrStopped
	}
	if entry, ok := m.active[jobID]; ok {
		return entry.handle, nil
	}
	for _, q := range m.queue {
		if q.job.ID == jobID {
			return q.handle, nil
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), storeOpTimeout)
	defer cancel()

	job, err := m.store.GetByID(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.IsTerminal() {
		return nil, apperrors.NewJobConflictError(jobID, job.Status, "resubmit")
	}

	return m.submit(job)
}

func (m *Manager) status() *Status {
	st := &Status{
		Running:       !m.draining,
		MaxThreads:    m.maxThreads,
		ActiveThreads: m.activeThreads,
		MaxQueueDepth: m.maxQueueDepth,
		QueuedCount:   len(m.queue),
		ActiveJobs:    make([]models.JobSnapshot, 0, len(m.active)),
		QueuedJobs:    make([]models.JobSnapshot, 0, len(m.queue)),
	}

	for _, entry := range m.active {
		st.ActiveJobs = append(st.ActiveJobs, models.JobSnapshot{
			JobID:         entry.job.ID,
			Pattern:       entry.job.Pattern,
			IsSuffix:      entry.job.IsSuffix,
			CaseSensitive: entry.job.CaseSensitive,
			Workers:       entry.live,
			Attempts:      entry.attempts,
			StartedAt:     entry.startedAt,
		})
	}
	sort.Slice(st.ActiveJobs, func(i, j int) bool {
		if st.ActiveJobs[i].StartedAt.Equal(st.ActiveJobs[j].StartedAt) {
			return st.ActiveJobs[i].JobID < st.ActiveJobs[j].JobID
		}
		return st.ActiveJobs[i].StartedAt.Before(st.ActiveJobs[j].StartedAt)
	})

	for _, q := range m.queue {
		st.QueuedJobs = append(st.QueuedJobs, models.JobSnapshot{
			JobID:         q.job.ID,
			Pattern:       q.job.Pattern,
			IsSuffix:      q.job.IsSuffix,
			CaseSensitive: q.job.CaseSensitive,
			Workers:       q.job.ThreadCount,
			Attempts:      q.attempts,
		})
	}

	return st
}

func (m *Manager) handleEvent(e worker.Event) {
	entry, ok := m.active[e.JobID]
	if !ok {
		return
	}

	// Deltas fold into the running total; totals never move backwards
	entry.attempts += e.Attempts

	switch e.Kind {
	case worker.EventProgress:
		// Nothing beyond the attempt accounting

	case worker.EventResult:
		m.handleResult(entry, e)

	case worker.EventFault:
		entry.faulted++
		m.logger.WithError(e.Err).Warnf("job %s: worker %d faulted (%d of %d)",
			e.JobID, e.WorkerID, entry.faulted, entry.workers)
		// One healthy worker keeps the job alive; only a full wipeout
		// fails it
		if entry.faulted >= entry.workers {
			m.failJob(entry, fmt.Sprintf("all %d search workers faulted: %v", entry.workers, e.Err))
		}

	case worker.EventExit:
		entry.live--
		if entry.live <= 0 {
			m.retire(entry)
		}
	}
}

// handleResult arbitrates completion. The first result the loop observes
// wins; the store guard protects against writers outside this process.
func (m *Manager) handleResult(entry *jobEntry, e worker.Event) {
	if entry.resultSeen || entry.handle.finalized() {
		m.logger.Debugf("job %s: discarding result from worker %d, job already settled",
			e.JobID, e.WorkerID)
		return
	}

	entry.resultSeen = true
	entry.cancel()
	entry.pendingResult = &models.SearchResult{
		Address:    e.Address,
		PrivateKey: e.PrivateKey,
	}
	m.persistResult(entry)
}

func (m *Manager) persistResult(entry *jobEntry) {
	res := entry.pendingResult

	var applied bool
	err := m.withStoreRetry(func(ctx context.Context) error {
		var err error
		applied, err = m.store.Complete(ctx, entry.job.ID, res.Address, res.PrivateKey, entry.attempts)
		return err
	})
	if err != nil {
		m.logger.WithError(err).Errorf("job %s: failed to persist completion, will retry", entry.job.ID)
		return
	}

	entry.pendingResult = nil
	if !applied {
		m.logger.Infof("job %s: result discarded, job already terminal in store", entry.job.ID)
		m.finalizeFromStore(entry)
		return
	}

	address := res.Address
	privateKey := res.PrivateKey
	now := time.Now().UTC()
	m.finalizeLocal(entry, func(job *models.VanityJob) {
		job.Status = types.JobCompleted
		job.WalletAddress = &address
		job.PrivateKey = &privateKey
		job.CompletedAt = &now
		job.LeaseExpiresAt = nil
	})
	m.logger.Infof("job %s: completed, address %s found after %d attempts",
		entry.job.ID, address, entry.attempts)
}

func (m *Manager) failJob(entry *jobEntry, reason string) {
	if entry.resultSeen || entry.handle.finalized() {
		return
	}
	if entry.cancel != nil {
		entry.cancel()
	}
	entry.pendingFail = reason
	m.persistFail(entry)
}

func (m *Manager) persistFail(entry *jobEntry) {
	reason := entry.pendingFail

	var applied bool
	err := m.withStoreRetry(func(ctx context.Context) error {
		var err error
		applied, err = m.store.Fail(ctx, entry.job.ID, reason, entry.attempts)
		return err
	})
	if err != nil {
		m.logger.WithError(err).Errorf("job %s: failed to persist failure, will retry", entry.job.ID)
		return
	}

	entry.pendingFail = ""
	if !applied {
		m.finalizeFromStore(entry)
		return
	}

	failureReason := reason
	now := time.Now().UTC()
	m.finalizeLocal(entry, func(job *models.VanityJob) {
		job.Status = types.JobFailed
		job.FailureReason = &failureReason
		job.CompletedAt = &now
		job.LeaseExpiresAt = nil
	})
	m.logger.Warnf("job %s: failed after %d attempts: %s", entry.job.ID, entry.attempts, reason)
}

// retire runs when a job's last worker has exited: capacity frees up and
// queued jobs dispatch
func (m *Manager) retire(entry *jobEntry) {
	delete(m.active, entry.job.ID)
	m.activeThreads -= entry.workers

	if !entry.handle.finalized() {
		switch {
		case entry.pendingResult != nil || entry.pendingFail != "":
			// Terminal write still unpersisted; flush ticks keep trying
		case m.draining:
			m.persistShutdownProgress(entry)
			m.finalizeLocal(entry, nil)
		default:
			// Workers only stop on result, fault, cancel or shutdown.
			// Anything else is a bug worth failing loudly.
			m.logger.Errorf("job %s: workers exited without a terminal cause", entry.job.ID)
			m.failJob(entry, "search workers exited unexpectedly")
		}
		if !entry.handle.finalized() && (entry.pendingResult != nil || entry.pendingFail != "") {
			m.pendingPersists = append(m.pendingPersists, entry)
		}
	}

	if !m.draining {
		m.dispatchQueue()
	}
}

func (m *Manager) dispatchQueue() {
	for len(m.queue) > 0 {
		next := m.queue[0]
		if next.handle.finalized() {
			m.queue = m.queue[1:]
			continue
		}
		if m.activeThreads+next.job.ThreadCount > m.maxThreads {
			return
		}
		m.queue = m.queue[1:]
		if err := m.startEntry(next); err != nil {
			// Put it back at the head and let the next flush tick retry;
			// overtaking would break arrival order
			m.queue = append([]*jobEntry{next}, m.queue...)
			m.logger.WithError(err).Errorf("job %s: dispatch from queue failed", next.job.ID)
			return
		}
	}
}

func (m *Manager) flushAll() {
	now := time.Now()
	lease := now.UTC().Add(m.leaseTTL)

	for _, entry := range m.active {
		m.flushEntry(entry, now, lease)
	}

	if len(m.pendingPersists) > 0 {
		remaining := m.pendingPersists[:0]
		for _, entry := range m.pendingPersists {
			m.retryPendingWrite(entry)
			if !entry.handle.finalized() {
				remaining = append(remaining, entry)
			}
		}
		m.pendingPersists = remaining
	}

	m.dispatchQueue()
}

func (m *Manager) flushEntry(entry *jobEntry, now time.Time, lease time.Time) {
	switch {
	case entry.handle.finalized():
		return
	case entry.pendingResult != nil || entry.pendingFail != "":
		m.retryPendingWrite(entry)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), storeOpTimeout)
	err := m.store.UpdateProgress(ctx, entry.job.ID, entry.attempts, lease)
	cancel()
	if err != nil {
		m.logger.WithError(err).Warnf("job %s: progress flush failed", entry.job.ID)
	}

	if m.telemetry != nil {
		elapsed := now.Sub(entry.lastFlushAt).Seconds()
		if elapsed > 0 {
			m.telemetry.Record(models.ThroughputSample{
				JobID:           entry.job.ID,
				WorkerCount:     entry.live,
				Attempts:        entry.attempts,
				AttemptsPerSec:  float64(entry.attempts-entry.lastFlushAttempts) / elapsed,
				CPULimitPercent: entry.job.CPULimitPercent,
				SampledAt:       now.UTC(),
			})
		}
	}

	entry.lastFlushAt = now
	entry.lastFlushAttempts = entry.attempts
}

func (m *Manager) retryPendingWrite(entry *jobEntry) {
	if entry.pendingResult != nil {
		m.persistResult(entry)
	} else if entry.pendingFail != "" {
		m.persistFail(entry)
	}
}

// persistShutdownProgress writes the final attempt count with an already
// expired lease so a successor instance can take the job over immediately
func (m *Manager) persistShutdownProgress(entry *jobEntry) {
	ctx, cancel := context.WithTimeout(context.Background(), storeOpTimeout)
	defer cancel()

	if err := m.store.UpdateProgress(ctx, entry.job.ID, entry.attempts, time.Now().UTC()); err != nil {
		m.logger.WithError(err).Warnf("job %s: shutdown progress flush failed", entry.job.ID)
	}
}

// reapExpiredLeases fails non-terminal jobs whose lease lapsed and that no
// longer run here. Jobs this manager still tracks renew their own leases at
// flush time and are left alone.
func (m *Manager) reapExpiredLeases() {
	ctx, cancel := context.WithTimeout(context.Background(), storeOpTimeout)
	defer cancel()

	now := time.Now().UTC()
	jobs, err := m.store.ListExpiredLeases(ctx, now, now.Add(-m.leaseTTL))
	if err != nil {
		m.logger.WithError(err).Warnf("lease reaper scan failed")
		return
	}

	for _, job := range jobs {
		if _, ok := m.active[job.ID]; ok {
			continue
		}
		queued := false
		for _, q := range m.queue {
			if q.job.ID == job.ID {
				queued = true
				break
			}
		}
		if queued {
			continue
		}

		applied, err := m.store.Fail(ctx, job.ID, "search lease expired", job.Attempts)
		if err != nil {
			m.logger.WithError(err).Warnf("job %s: failed to reap expired lease", job.ID)
			continue
		}
		if applied {
			m.logger.Warnf("job %s: lease expired, marked failed after %d attempts", job.ID, job.Attempts)
		}
	}
}

func (m *Manager) finalizeLocal(entry *jobEntry, mutate func(*models.VanityJob)) {
	final := entry.job.Clone()
	final.Attempts = entry.attempts
	final.UpdatedAt = time.Now().UTC()
	if mutate != nil {
		mutate(final)
	}
	entry.handle.finalize(final)
}

// finalizeFromStore resolves a handle with the store's view of the job,
// used when an external writer won a transition race
func (m *Manager) finalizeFromStore(entry *jobEntry) {
	ctx, cancel := context.WithTimeout(context.Background(), storeOpTimeout)
	defer cancel()

	job, err := m.store.GetByID(ctx, entry.job.ID)
	if err != nil {
		m.logger.WithError(err).Warnf("job %s: could not load terminal state", entry.job.ID)
		m.finalizeLocal(entry, nil)
		return
	}
	entry.handle.finalize(job)
}

func (m *Manager) finalizeCancelled(entry *jobEntry) {
	now := time.Now().UTC()
	m.finalizeLocal(entry, func(job *models.VanityJob) {
		job.Status = types.JobCancelled
		job.CompletedAt = &now
		job.LeaseExpiresAt = nil
	})
}

func (m *Manager) withStoreRetry(fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(context.Background(), storeOpTimeout)
	defer cancel()

	return retry.Do(ctx, m.terminalRetry, func(ctx context.Context, attempt int) error {
		return fn(ctx)
	})
}
