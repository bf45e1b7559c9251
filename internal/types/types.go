// Package types provides common type definitions for the vanity grinder system.
package types

// JobStatus represents the lifecycle state of a vanity search job
type JobStatus string

const (
	// JobPending indicates the job record exists but no workers have been dispatched
	JobPending JobStatus = "pending"
	// JobProcessing indicates workers are actively searching
	JobProcessing JobStatus = "processing"
	// JobCompleted indicates a matching keypair was found (terminal)
	JobCompleted JobStatus = "completed"
	// JobFailed indicates the search could not make further progress (terminal)
	JobFailed JobStatus = "failed"
	// JobCancelled indicates the job was cancelled before completion (terminal)
	JobCancelled JobStatus = "cancelled"
)

// IsTerminal reports whether the status permits no further transitions
func (s JobStatus) IsTerminal() bool {
	switch s {
	case JobCompleted, JobFailed, JobCancelled:
		return true
	default:
		return false
	}
}

// Valid reports whether the status is one of the known lifecycle states
func (s JobStatus) Valid() bool {
	switch s {
	case JobPending, JobProcessing, JobCompleted, JobFailed, JobCancelled:
		return true
	default:
		return false
	}
}

// ServiceError represents a service-level error with an error code
type ServiceError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// Error implements the error interface
func (e *ServiceError) Error() string {
	return e.Code + ": " + e.Message
}
