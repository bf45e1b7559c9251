package generator

import (
	"sync"

	"github.com/vanity-grinder/internal/models"
)

// JobHandle lets a submitter wait for a job to finish without polling the
// store. Done() closes exactly once, when the job reaches a terminal state
// or the manager shuts down; Result() then returns the final record.
type JobHandle struct {
	jobID string

	mu    sync.Mutex
	done  chan struct{}
	final *models.VanityJob
}

func newJobHandle(jobID string) *JobHandle {
	return &JobHandle{
		jobID: jobID,
		done:  make(chan struct{}),
	}
}

// JobID returns the job this handle tracks
func (h *JobHandle) JobID() string {
	return h.jobID
}

// Done returns a channel that closes when the job is finished
func (h *JobHandle) Done() <-chan struct{} {
	return h.done
}

// Result returns the final job record, or nil while the job is still live.
// After a manager shutdown the record may carry a non-terminal status.
func (h *JobHandle) Result() *models.VanityJob {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.final
}

// finalize records the final state and releases waiters. Only the first
// call takes effect.
func (h *JobHandle) finalize(job *models.VanityJob) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.final != nil {
		return
	}
	h.final = job
	close(h.done)
}

// finalized reports whether finalize has run
func (h *JobHandle) finalized() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.final != nil
}
