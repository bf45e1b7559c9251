package errors

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/vanity-grinder/internal/types"
)

// ErrorCategory represents the category of an error
type ErrorCategory string

const (
	// CategoryValidation represents input validation errors (4xx)
	CategoryValidation ErrorCategory = "validation"
	// CategoryCapacity represents capacity/saturation errors
	CategoryCapacity ErrorCategory = "capacity"
	// CategoryNotFound represents not found errors
	CategoryNotFound ErrorCategory = "not_found"
	// CategoryConflict represents state conflict errors
	CategoryConflict ErrorCategory = "conflict"
	// CategoryPersistence represents job store read/write errors
	CategoryPersistence ErrorCategory = "persistence"
	// CategoryWorker represents contained worker faults
	CategoryWorker ErrorCategory = "worker"
	// CategorySystem represents other internal errors (5xx)
	CategorySystem ErrorCategory = "system"
)

// CategorizedError represents an error with category and HTTP status code
type CategorizedError struct {
	Category   ErrorCategory
	StatusCode int
	Code       string
	Message    string
	Details    map[string]interface{}
	Cause      error
}

// Error implements the error interface
func (e *CategorizedError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause
func (e *CategorizedError) Unwrap() error {
	return e.Cause
}

// ToServiceError converts to a ServiceError
func (e *CategorizedError) ToServiceError() *types.ServiceError {
	return &types.ServiceError{
		Code:    e.Code,
		Message: e.Message,
		Details: e.Details,
	}
}

// NewInvalidPatternError creates a validation error for an unusable search pattern
func NewInvalidPatternError(pattern string, reason string) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryValidation,
		StatusCode: http.StatusBadRequest,
		Code:       "INVALID_PATTERN",
		Message:    fmt.Sprintf("invalid pattern %q: %s", pattern, reason),
		Details: map[string]interface{}{
			"pattern": pattern,
			"reason":  reason,
		},
	}
}

// NewInvalidConfigError creates a validation error for a bad job parameter
func NewInvalidConfigError(field string, reason string) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryValidation,
		StatusCode: http.StatusBadRequest,
		Code:       "INVALID_CONFIG",
		Message:    fmt.Sprintf("invalid %s: %s", field, reason),
		Details: map[string]interface{}{
			"field":  field,
			"reason": reason,
		},
	}
}

// NewCapacityExceededError indicates the job queue is saturated
func NewCapacityExceededError(queued, max int) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryCapacity,
		StatusCode: http.StatusTooManyRequests,
		Code:       "CAPACITY_EXCEEDED",
		Message:    fmt.Sprintf("job queue is full (%d/%d), retry later", queued, max),
		Details: map[string]interface{}{
			"queued":   queued,
			"maxDepth": max,
		},
	}
}

// NewJobNotFoundError creates a not found error for an unknown job id
func NewJobNotFoundError(jobID string) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryNotFound,
		StatusCode: http.StatusNotFound,
		Code:       "JOB_NOT_FOUND",
		Message:    fmt.Sprintf("job %s not found", jobID),
		Details: map[string]interface{}{
			"jobId": jobID,
		},
	}
}

// NewJobConflictError indicates an operation is not applicable in the job's current state
func NewJobConflictError(jobID string, status types.JobStatus, op string) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryConflict,
		StatusCode: http.StatusConflict,
		Code:       "JOB_CONFLICT",
		Message:    fmt.Sprintf("cannot %s job %s in status %s", op, jobID, status),
		Details: map[string]interface{}{
			"jobId":  jobID,
			"status": string(status),
		},
	}
}

// NewPersistenceError wraps a job store failure
func NewPersistenceError(op string, cause error) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryPersistence,
		StatusCode: http.StatusInternalServerError,
		Code:       "PERSISTENCE_ERROR",
		Message:    fmt.Sprintf("job store %s failed", op),
		Details: map[string]interface{}{
			"operation": op,
		},
		Cause: cause,
	}
}

// NewWorkerFaultError wraps an unexpected worker termination. Worker faults are
// contained at the worker boundary and reported as events, never as job failures
// on their own.
func NewWorkerFaultError(workerID int, cause error) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryWorker,
		StatusCode: http.StatusInternalServerError,
		Code:       "WORKER_FAULT",
		Message:    fmt.Sprintf("worker %d terminated unexpectedly", workerID),
		Details: map[string]interface{}{
			"workerId": workerID,
		},
		Cause: cause,
	}
}

// NewInternalError creates a generic system error
func NewInternalError(message string, cause error) *CategorizedError {
	return &CategorizedError{
		Category:   CategorySystem,
		StatusCode: http.StatusInternalServerError,
		Code:       "INTERNAL_ERROR",
		Message:    message,
		Cause:      cause,
	}
}

// CategoryOf returns the category of err, or CategorySystem for uncategorized errors
func CategoryOf(err error) ErrorCategory {
	var ce *CategorizedError
	if errors.As(err, &ce) {
		return ce.Category
	}
	return CategorySystem
}

// IsValidation reports whether err is a validation error
func IsValidation(err error) bool {
	return CategoryOf(err) == CategoryValidation
}

// IsNotFound reports whether err is a not found error
func IsNotFound(err error) bool {
	return CategoryOf(err) == CategoryNotFound
}

// IsCapacityExceeded reports whether err is a capacity error
func IsCapacityExceeded(err error) bool {
	return CategoryOf(err) == CategoryCapacity
}

// IsConflict reports whether err is a state conflict error
func IsConflict(err error) bool {
	return CategoryOf(err) == CategoryConflict
}
