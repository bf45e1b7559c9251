// Package worker implements the keypair grinding loop for vanity searches.
package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/vanity-grinder/internal/keygen"
)

// DefaultBatchSize is how many keypairs a worker tries between events
const DefaultBatchSize = 500

// KeypairSource produces candidate keypairs for a search worker. The
// default source draws from crypto/rand; tests inject failing ones.
type KeypairSource interface {
	Generate() (*keygen.Keypair, error)
}

// SearchWorker grinds keypairs until one matches its pattern, the source
// fails, or the context is cancelled. It owns no shared state: everything
// it learns goes out as events.
type SearchWorker struct {
	jobID    string
	workerID int
	spec     keygen.PatternSpec
	source   KeypairSource
	events   chan<- Event

	batchSize int
	throttle  *throttle
}

// SearchWorkerConfig holds configuration for a search worker
type SearchWorkerConfig struct {
	JobID    string
	WorkerID int
	Spec     keygen.PatternSpec

	// Events receives every report from this worker. Required.
	Events chan<- Event

	// Source supplies candidate keypairs. Defaults to a fresh generator.
	Source KeypairSource

	// BatchSize is how many attempts run between events. Default: 500.
	BatchSize int

	// CPULimitPercent throttles the busy share of wall time. Default: 100.
	CPULimitPercent int
}

// NewSearchWorker creates a new search worker
func NewSearchWorker(cfg *SearchWorkerConfig) (*SearchWorker, error) {
	if cfg == nil {
		return nil, fmt.Errorf("configuration is required")
	}
	if cfg.Events == nil {
		return nil, fmt.Errorf("events channel cannot be nil")
	}
	if cfg.JobID == "" {
		return nil, fmt.Errorf("job ID cannot be empty")
	}

	source := cfg.Source
	if source == nil {
		source = keygen.NewGenerator()
	}

	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	limit := cfg.CPULimitPercent
	if limit <= 0 {
		limit = 100
	}

	return &SearchWorker{
		jobID:     cfg.JobID,
		workerID:  cfg.WorkerID,
		spec:      cfg.Spec,
		source:    source,
		events:    cfg.Events,
		batchSize: batchSize,
		throttle:  newThrottle(limit, time.Now()),
	}, nil
}

// Run grinds until a terminal condition and then returns. The final event
// is always EventExit, carrying any attempts not yet reported, so the
// receiver can retire the worker with exact accounting.
func (w *SearchWorker) Run(ctx context.Context) {
	var pending int64

	defer func() {
		if r := recover(); r != nil {
			w.send(Event{Kind: EventFault, Attempts: pending, Err: fmt.Errorf("search worker panicked: %v", r)})
			pending = 0
		}
		w.send(Event{Kind: EventExit, Attempts: pending})
	}()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		batchStart := time.Now()

		for i := 0; i < w.batchSize; i++ {
			kp, err := w.source.Generate()
			if err != nil {
				w.send(Event{Kind: EventFault, Attempts: pending, Err: err})
				pending = 0
				return
			}

			pending++
			addr := kp.Address()
			if keygen.Matches(addr, w.spec) {
				w.send(Event{
					Kind:       EventResult,
					Attempts:   pending,
					Address:    addr,
					PrivateKey: kp.PrivateKeyString(),
				})
				pending = 0
				return
			}
		}

		w.send(Event{Kind: EventProgress, Attempts: pending})
		pending = 0

		if sleep := w.throttle.observe(time.Now(), time.Since(batchStart)); sleep > 0 {
			select {
			case <-ctx.Done():
				return
			case <-time.After(sleep):
			}
		}
	}
}

// send stamps the worker's identity onto an event and delivers it. Sends
// block rather than drop: attempt accounting depends on every event
// arriving.
func (w *SearchWorker) send(e Event) {
	e.JobID = w.jobID
	e.WorkerID = w.workerID
	w.events <- e
}
