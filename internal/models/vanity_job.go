// Package models defines the persisted and transfer data structures for the
// vanity grinder system.
package models

import (
	"time"

	"github.com/vanity-grinder/internal/types"
)

// VanityJob represents a vanity address search job and its persisted record
type VanityJob struct {
	ID              string          `json:"jobId" db:"id"`
	Pattern         string          `json:"pattern" db:"pattern"`
	IsSuffix        bool            `json:"isSuffix" db:"is_suffix"`
	CaseSensitive   bool            `json:"caseSensitive" db:"case_sensitive"`
	ThreadCount     int             `json:"threadCount" db:"thread_count"`
	CPULimitPercent int             `json:"cpuLimitPercent" db:"cpu_limit_percent"`
	Status          types.JobStatus `json:"status" db:"status"`
	Attempts        int64           `json:"attempts" db:"attempts"`
	WalletAddress   *string         `json:"walletAddress,omitempty" db:"wallet_address"`
	PrivateKey      *string         `json:"privateKey,omitempty" db:"private_key"`
	FailureReason   *string         `json:"failureReason,omitempty" db:"failure_reason"`
	RequestedBy     string          `json:"requestedBy" db:"requested_by"`
	RequestIP       string          `json:"requestIp" db:"request_ip"`
	LeaseExpiresAt  *time.Time      `json:"-" db:"lease_expires_at"`
	CreatedAt       time.Time       `json:"createdAt" db:"created_at"`
	UpdatedAt       time.Time       `json:"updatedAt" db:"updated_at"`
	CompletedAt     *time.Time      `json:"completedAt,omitempty" db:"completed_at"`
}

// IsTerminal reports whether the job has reached a final status
func (j *VanityJob) IsTerminal() bool {
	return j.Status.IsTerminal()
}

// Clone returns a deep copy of the job record
func (j *VanityJob) Clone() *VanityJob {
	c := *j
	c.WalletAddress = cloneString(j.WalletAddress)
	c.PrivateKey = cloneString(j.PrivateKey)
	c.FailureReason = cloneString(j.FailureReason)
	c.LeaseExpiresAt = cloneTime(j.LeaseExpiresAt)
	c.CompletedAt = cloneTime(j.CompletedAt)
	return &c
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

// SearchResult holds the keypair found by a search worker. Address is the
// Base58-encoded public key; PrivateKey is the Base58-encoded 64-byte
// private key material.
type SearchResult struct {
	Address    string `json:"address"`
	PrivateKey string `json:"privateKey"`
}

// JobSnapshot is a point-in-time view of an active job inside the generator
// manager, used for status reporting
type JobSnapshot struct {
	JobID         string    `json:"jobId"`
	Pattern       string    `json:"pattern"`
	IsSuffix      bool      `json:"isSuffix"`
	CaseSensitive bool      `json:"caseSensitive"`
	Workers       int       `json:"workers"`
	Attempts      int64     `json:"attempts"`
	StartedAt     time.Time `json:"startedAt"`
}

// ThroughputSample is one telemetry measurement of a running search,
// recorded to ClickHouse for tuning thread counts and CPU limits
type ThroughputSample struct {
	JobID           string    `json:"jobId"`
	WorkerCount     int       `json:"workerCount"`
	Attempts        int64     `json:"attempts"`
	AttemptsPerSec  float64   `json:"attemptsPerSec"`
	CPULimitPercent int       `json:"cpuLimitPercent"`
	SampledAt       time.Time `json:"sampledAt"`
}
