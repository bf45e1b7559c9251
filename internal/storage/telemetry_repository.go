package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/vanity-grinder/internal/circuitbreaker"
	"github.com/vanity-grinder/internal/logging"
	"github.com/vanity-grinder/internal/models"
)

const (
	// telemetryBufferSize bounds how many samples may sit unflushed
	telemetryBufferSize = 1024
	// telemetryFlushThreshold triggers a flush before the ticker fires
	telemetryFlushThreshold = 100
	// telemetryFlushInterval is how often buffered samples are written out
	telemetryFlushInterval = 5 * time.Second
)

// TelemetryRepository buffers throughput samples and writes them to
// ClickHouse in batches. Recording is best effort: when the buffer is full
// or ClickHouse is unhealthy, samples are dropped rather than slowing down
// the search path.
type TelemetryRepository struct {
	db      *ClickHouseDB
	breaker *circuitbreaker.CircuitBreaker
	logger  *logging.Logger

	samples chan models.ThroughputSample
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewTelemetryRepository creates a new telemetry repository
func NewTelemetryRepository(db *ClickHouseDB) *TelemetryRepository {
	return &TelemetryRepository{
		db:      db,
		breaker: circuitbreaker.New(circuitbreaker.DefaultConfig("clickhouse-telemetry")),
		logger:  logging.L().Component("telemetry"),
		samples: make(chan models.ThroughputSample, telemetryBufferSize),
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
	}
}

// Start launches the background flusher
func (r *TelemetryRepository) Start() {
	go r.run()
}

// Stop flushes remaining samples and waits for the flusher to exit
func (r *TelemetryRepository) Stop() {
	close(r.stopCh)
	<-r.doneCh
}

// Record queues a sample for the next batch write without blocking
func (r *TelemetryRepository) Record(sample models.ThroughputSample) {
	select {
	case r.samples <- sample:
	default:
		r.logger.Debugf("telemetry buffer full, dropping sample for job %s", sample.JobID)
	}
}

func (r *TelemetryRepository) run() {
	defer close(r.doneCh)

	ticker := time.NewTicker(telemetryFlushInterval)
	defer ticker.Stop()

	pending := make([]models.ThroughputSample, 0, telemetryFlushThreshold)

	for {
		select {
		case s := <-r.samples:
			pending = append(pending, s)
			if len(pending) >= telemetryFlushThreshold {
				r.flush(pending)
				pending = pending[:0]
			}
		case <-ticker.C:
			if len(pending) > 0 {
				r.flush(pending)
				pending = pending[:0]
			}
		case <-r.stopCh:
			for {
				select {
				case s := <-r.samples:
					pending = append(pending, s)
				default:
					if len(pending) > 0 {
						r.flush(pending)
					}
					return
				}
			}
		}
	}
}

func (r *TelemetryRepository) flush(samples []models.ThroughputSample) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	err := r.breaker.Execute(ctx, func(ctx context.Context) error {
		return r.insertSamples(ctx, samples)
	})
	if err != nil {
		r.logger.WithError(err).Warnf("dropping %d throughput samples", len(samples))
	}
}

func (r *TelemetryRepository) insertSamples(ctx context.Context, samples []models.ThroughputSample) error {
	batch, err := r.db.Conn().PrepareBatch(ctx, `
		INSERT INTO search_samples (
			job_id, worker_count, attempts, attempts_per_sec, cpu_limit_percent, sampled_at
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare batch: %w", err)
	}

	for _, s := range samples {
		if err := batch.Append(
			s.JobID,
			int32(s.WorkerCount),
			s.Attempts,
			s.AttemptsPerSec,
			int32(s.CPULimitPercent),
			s.SampledAt,
		); err != nil {
			return fmt.Errorf("failed to append to batch: %w", err)
		}
	}

	return batch.Send()
}

// QueryJobThroughput returns the most recent throughput samples for a job,
// newest first
func (r *TelemetryRepository) QueryJobThroughput(ctx context.Context, jobID string, limit int) ([]models.ThroughputSample, error) {
	query := `
		SELECT job_id, worker_count, attempts, attempts_per_sec, cpu_limit_percent, sampled_at
		FROM search_samples
		WHERE job_id = ?
		ORDER BY sampled_at DESC
		LIMIT ?
	`

	rows, err := r.db.Conn().Query(ctx, query, jobID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query throughput samples: %w", err)
	}
	defer rows.Close()

	var samples []models.ThroughputSample
	for rows.Next() {
		var s models.ThroughputSample
		var workerCount, cpuLimit int32

		if err := rows.Scan(
			&s.JobID, &workerCount, &s.Attempts, &s.AttemptsPerSec, &cpuLimit, &s.SampledAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan throughput sample: %w", err)
		}

		s.WorkerCount = int(workerCount)
		s.CPULimitPercent = int(cpuLimit)
		samples = append(samples, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating throughput samples: %w", err)
	}

	return samples, nil
}
