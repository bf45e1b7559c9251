// Package service exposes the submission facade over the job store, the
// generator manager and the read-side caches.
package service

import (
	"context"
	"fmt"
	"time"

	apperrors "github.com/vanity-grinder/internal/errors"
	"github.com/vanity-grinder/internal/generator"
	"github.com/vanity-grinder/internal/keygen"
	"github.com/vanity-grinder/internal/logging"
	"github.com/vanity-grinder/internal/models"
	"github.com/vanity-grinder/internal/probability"
	"github.com/vanity-grinder/internal/storage"
	"github.com/vanity-grinder/internal/types"
)

// Defaults applied when a submission leaves a knob unset
const (
	DefaultThreadCount     = 4
	DefaultCPULimitPercent = 80
	DefaultListLimit       = 50
	MaxListLimit           = 200
	DefaultThroughputLimit = 60
	MaxThroughputLimit     = 1000
	DefaultBaselineTime    = 5 * time.Second
	DefaultBaselineLength  = 1
)

// JobStore is the persistence surface the service reads and writes
type JobStore interface {
	Create(ctx context.Context, params storage.CreateJobParams) (*models.VanityJob, error)
	GetByID(ctx context.Context, id string) (*models.VanityJob, error)
	List(ctx context.Context, status *types.JobStatus, limit int) ([]*models.VanityJob, error)
	Fail(ctx context.Context, id, reason string, attempts int64) (bool, error)
}

// Generator dispatches, cancels and reports on search jobs
type Generator interface {
	Submit(ctx context.Context, job *models.VanityJob) (*generator.JobHandle, error)
	Cancel(ctx context.Context, jobID string) error
	Resubmit(ctx context.Context, jobID string) (*generator.JobHandle, error)
	Status(ctx context.Context) (*generator.Status, error)
}

// JobCache fronts the store for single-job reads. Optional.
type JobCache interface {
	Get(ctx context.Context, id string) (*models.VanityJob, bool, error)
	Put(ctx context.Context, job *models.VanityJob) error
	Invalidate(ctx context.Context, ids ...string) error
}

// ThroughputSource serves historical search-rate samples. Optional.
type ThroughputSource interface {
	QueryJobThroughput(ctx context.Context, jobID string, limit int) ([]models.ThroughputSample, error)
}

// Config holds configuration for the vanity service
type Config struct {
	// Store persists job records. Required.
	Store JobStore

	// Generator runs the searches. Required.
	Generator Generator

	// Cache fronts single-job reads. Optional; reads fall through to the
	// store when nil or unavailable.
	Cache JobCache

	// Throughput serves telemetry samples. Optional; queries return empty
	// results when nil.
	Throughput ThroughputSource

	// MaxThreadsPerJob bounds a single submission. Required, normally the
	// generator's total thread capacity.
	MaxThreadsPerJob int

	// DefaultThreadCount fills in omitted thread counts. Default: 4.
	DefaultThreadCount int

	// DefaultCPULimitPercent fills in omitted CPU limits. Default: 80.
	DefaultCPULimitPercent int

	// BaselineTime and BaselineLength anchor timeout recommendations:
	// the measured (or assumed) search time for a pattern of the baseline
	// length. Defaults: 5s at length 1.
	BaselineTime   time.Duration
	BaselineLength int
}

// VanityRequest is a submission as it arrives from a client. ThreadCount
// and CPULimitPercent distinguish omitted (nil, takes the default) from an
// explicit out-of-range value, which is rejected.
type VanityRequest struct {
	Pattern         string `json:"pattern" validate:"required,min=1,max=16"`
	IsSuffix        bool   `json:"isSuffix"`
	CaseSensitive   bool   `json:"caseSensitive"`
	ThreadCount     *int   `json:"threadCount,omitempty" validate:"omitempty,min=1,max=256"`
	CPULimitPercent *int   `json:"cpuLimitPercent,omitempty" validate:"omitempty,min=1,max=100"`
	RequestedBy     string `json:"requestedBy" validate:"omitempty,max=128"`
}

// Estimate reports the probability figures for a prospective pattern
type Estimate struct {
	Pattern                   string  `json:"pattern"`
	CaseSensitive             bool    `json:"caseSensitive"`
	CharacterSpace            int     `json:"characterSpace"`
	TheoreticalAttempts       float64 `json:"theoreticalAttempts"`
	RecommendedTimeoutSeconds float64 `json:"recommendedTimeoutSeconds"`
	EstimatedSeconds          float64 `json:"estimatedSeconds,omitempty"`
}

// VanityService handles vanity address job submissions and reads
type VanityService struct {
	store      JobStore
	generator  Generator
	cache      JobCache
	throughput ThroughputSource
	logger     *logging.Logger

	maxThreadsPerJob       int
	defaultThreadCount     int
	defaultCPULimitPercent int
	baselineTime           time.Duration
	baselineLength         int
}

// NewVanityService creates a new vanity service
func NewVanityService(cfg *Config) (*VanityService, error) {
	if cfg == nil {
		return nil, fmt.Errorf("configuration is required")
	}
	if cfg.Store == nil {
		return nil, fmt.Errorf("job store cannot be nil")
	}
	if cfg.Generator == nil {
		return nil, fmt.Errorf("generator cannot be nil")
	}
	if cfg.MaxThreadsPerJob < 1 {
		return nil, fmt.Errorf("max threads per job must be >= 1, got %d", cfg.MaxThreadsPerJob)
	}

	defaultThreads := cfg.DefaultThreadCount
	if defaultThreads <= 0 {
		defaultThreads = DefaultThreadCount
	}
	if defaultThreads > cfg.MaxThreadsPerJob {
		defaultThreads = cfg.MaxThreadsPerJob
	}

	defaultCPU := cfg.DefaultCPULimitPercent
	if defaultCPU <= 0 {
		defaultCPU = DefaultCPULimitPercent
	}
	if defaultCPU > 100 {
		defaultCPU = 100
	}

	baselineTime := cfg.BaselineTime
	if baselineTime <= 0 {
		baselineTime = DefaultBaselineTime
	}
	baselineLength := cfg.BaselineLength
	if baselineLength <= 0 {
		baselineLength = DefaultBaselineLength
	}

	return &VanityService{
		store:                  cfg.Store,
		generator:              cfg.Generator,
		cache:                  cfg.Cache,
		throughput:             cfg.Throughput,
		logger:                 logging.L().Component("vanity-service"),
		maxThreadsPerJob:       cfg.MaxThreadsPerJob,
		defaultThreadCount:     defaultThreads,
		defaultCPULimitPercent: defaultCPU,
		baselineTime:           baselineTime,
		baselineLength:         baselineLength,
	}, nil
}

// RequestVanityAddress validates a submission, persists the pending record
// and dispatches it to the generator. The record comes back immediately;
// clients poll or wait for the terminal state.
func (s *VanityService) RequestVanityAddress(ctx context.Context, req *VanityRequest, requestIP string) (*models.VanityJob, error) {
	if req == nil {
		return nil, apperrors.NewInvalidConfigError("request", "request body is required")
	}
	if err := keygen.ValidatePattern(req.Pattern); err != nil {
		return nil, err
	}

	threads := s.defaultThreadCount
	if req.ThreadCount != nil {
		threads = *req.ThreadCount
	}
	if threads < 1 {
		return nil, apperrors.NewInvalidConfigError("threadCount", "must be at least 1")
	}
	if threads > s.maxThreadsPerJob {
		return nil, apperrors.NewInvalidConfigError("threadCount",
			fmt.Sprintf("must not exceed %d", s.maxThreadsPerJob))
	}

	cpuLimit := s.defaultCPULimitPercent
	if req.CPULimitPercent != nil {
		cpuLimit = *req.CPULimitPercent
	}
	if cpuLimit < 1 || cpuLimit > 100 {
		return nil, apperrors.NewInvalidConfigError("cpuLimitPercent", "must be between 1 and 100")
	}

	requestedBy := req.RequestedBy
	if requestedBy == "" {
		requestedBy = "anonymous"
	}

	job, err := s.store.Create(ctx, storage.CreateJobParams{
		Pattern:         req.Pattern,
		IsSuffix:        req.IsSuffix,
		CaseSensitive:   req.CaseSensitive,
		ThreadCount:     threads,
		CPULimitPercent: cpuLimit,
		RequestedBy:     requestedBy,
		RequestIP:       requestIP,
	})
	if err != nil {
		return nil, apperrors.NewPersistenceError("create vanity job", err)
	}

	if _, err := s.generator.Submit(ctx, job); err != nil {
		// The record exists but nothing will ever run it; fail it so it
		// does not sit pending forever, then surface the dispatch error
		reason := fmt.Sprintf("dispatch failed: %v", err)
		if _, ferr := s.store.Fail(ctx, job.ID, reason, 0); ferr != nil {
			s.logger.WithError(ferr).Warnf("job %s: could not mark undispatched job failed", job.ID)
		}
		return nil, err
	}

	s.logger.Infof("job %s: accepted pattern %q (suffix=%v, caseSensitive=%v, threads=%d, cpu=%d%%) from %s",
		job.ID, job.Pattern, job.IsSuffix, job.CaseSensitive, threads, cpuLimit, requestedBy)

	s.cachePut(ctx, job)
	return job, nil
}

// GetJob returns a job record, serving from cache when possible
func (s *VanityService) GetJob(ctx context.Context, jobID string) (*models.VanityJob, error) {
	if s.cache != nil {
		job, ok, err := s.cache.Get(ctx, jobID)
		if err != nil {
			s.logger.WithError(err).Debugf("job %s: cache read failed, falling back to store", jobID)
		} else if ok {
			return job, nil
		}
	}

	job, err := s.store.GetByID(ctx, jobID)
	if err != nil {
		if apperrors.IsNotFound(err) {
			return nil, err
		}
		return nil, apperrors.NewPersistenceError("load vanity job", err)
	}

	s.cachePut(ctx, job)
	return job, nil
}

// ListJobs returns recent jobs, optionally filtered by status
func (s *VanityService) ListJobs(ctx context.Context, status *types.JobStatus, limit int) ([]*models.VanityJob, error) {
	if status != nil && !status.Valid() {
		return nil, apperrors.NewInvalidConfigError("status",
			fmt.Sprintf("unknown job status %q", *status))
	}
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}

	jobs, err := s.store.List(ctx, status, limit)
	if err != nil {
		return nil, apperrors.NewPersistenceError("list vanity jobs", err)
	}
	return jobs, nil
}

// CancelJob cancels a job wherever it is in its lifecycle and returns the
// resulting record. Cancelling an already-terminal job is a no-op.
func (s *VanityService) CancelJob(ctx context.Context, jobID string) (*models.VanityJob, error) {
	if err := s.generator.Cancel(ctx, jobID); err != nil {
		return nil, err
	}
	s.invalidate(ctx, jobID)

	job, err := s.store.GetByID(ctx, jobID)
	if err != nil {
		if apperrors.IsNotFound(err) {
			return nil, err
		}
		return nil, apperrors.NewPersistenceError("load vanity job", err)
	}

	s.logger.Infof("job %s: cancel requested, status now %s", jobID, job.Status)
	s.cachePut(ctx, job)
	return job, nil
}

// ResubmitJob re-dispatches an interrupted pending or processing job and
// returns its current record
func (s *VanityService) ResubmitJob(ctx context.Context, jobID string) (*models.VanityJob, error) {
	if _, err := s.generator.Resubmit(ctx, jobID); err != nil {
		return nil, err
	}
	s.invalidate(ctx, jobID)

	job, err := s.store.GetByID(ctx, jobID)
	if err != nil {
		if apperrors.IsNotFound(err) {
			return nil, err
		}
		return nil, apperrors.NewPersistenceError("load vanity job", err)
	}

	s.logger.Infof("job %s: resubmitted, status %s at %d attempts", jobID, job.Status, job.Attempts)
	return job, nil
}

// Status reports generator capacity, queue depth and running jobs
func (s *VanityService) Status(ctx context.Context) (*generator.Status, error) {
	return s.generator.Status(ctx)
}

// Estimate computes the probability figures for a prospective pattern
// without submitting anything. A positive attemptsPerSec adds a wall-clock
// projection at that measured rate.
func (s *VanityService) Estimate(pattern string, caseSensitive bool, attemptsPerSec float64) (*Estimate, error) {
	if err := keygen.ValidatePattern(pattern); err != nil {
		return nil, err
	}

	theoretical := probability.TheoreticalAttempts(len(pattern), caseSensitive)
	timeout := probability.RecommendedTimeout(len(pattern), caseSensitive, s.baselineTime, s.baselineLength)

	est := &Estimate{
		Pattern:                   pattern,
		CaseSensitive:             caseSensitive,
		CharacterSpace:            probability.CharacterSpace(caseSensitive),
		TheoreticalAttempts:       theoretical,
		RecommendedTimeoutSeconds: timeout.Seconds(),
	}
	if attemptsPerSec > 0 {
		est.EstimatedSeconds = probability.EstimatedDuration(theoretical, attemptsPerSec).Seconds()
	}
	return est, nil
}

// JobThroughput returns recent search-rate samples for a job, newest first.
// Jobs must exist; a disabled telemetry backend yields an empty result.
func (s *VanityService) JobThroughput(ctx context.Context, jobID string, limit int) ([]models.ThroughputSample, error) {
	if _, err := s.GetJob(ctx, jobID); err != nil {
		return nil, err
	}
	if s.throughput == nil {
		return []models.ThroughputSample{}, nil
	}

	if limit <= 0 {
		limit = DefaultThroughputLimit
	}
	if limit > MaxThroughputLimit {
		limit = MaxThroughputLimit
	}

	samples, err := s.throughput.QueryJobThroughput(ctx, jobID, limit)
	if err != nil {
		return nil, apperrors.NewPersistenceError("query job throughput", err)
	}
	return samples, nil
}

func (s *VanityService) cachePut(ctx context.Context, job *models.VanityJob) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Put(ctx, job); err != nil {
		s.logger.WithError(err).Debugf("job %s: cache write failed", job.ID)
	}
}

func (s *VanityService) invalidate(ctx context.Context, jobID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, jobID); err != nil {
		s.logger.WithError(err).Debugf("job %s: cache invalidation failed", jobID)
	}
}
