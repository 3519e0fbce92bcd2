package worker

import (
	"context"
	"sync"
)

// JobRegistry tracks the cancel function of every job currently running on
// this worker so revocations can stop them cooperatively. All mutation is
// serialized; revoke, completion and start events race in normal operation.
type JobRegistry struct {
	mu      sync.Mutex
	cancels map[string]context.CancelFunc
}

// NewJobRegistry creates an empty JobRegistry
func NewJobRegistry() *JobRegistry {
	return &JobRegistry{cancels: make(map[string]context.CancelFunc)}
}

// Add registers a running job.
func (r *JobRegistry) Add(jobID string, cancel context.CancelFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cancels[jobID] = cancel
}

// Remove drops a finished job.
func (r *JobRegistry) Remove(jobID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.cancels, jobID)
}

// Cancel revokes a job if it runs on this worker. Returns whether it did.
func (r *JobRegistry) Cancel(jobID string) bool {
	r.mu.Lock()
	cancel, ok := r.cancels[jobID]
	delete(r.cancels, jobID)
	r.mu.Unlock()

	if ok {
		cancel()
	}
	return ok
}

// Len reports the number of running jobs.
func (r *JobRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.cancels)
}
