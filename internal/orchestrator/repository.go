package orchestrator

import (
	"errors"
	"sort"
	"sync"
	"time"
)

// Repository defines the concurrency-safe contract for accessing and mutating
// job records. Reads return value snapshots so callers never share state with
// the pipeline goroutines that mutate it.
type Repository interface {
	// CreateJob records a new job. The job must carry a unique ID.
	CreateJob(j *Job) error

	// GetJob returns a snapshot of the job with the given ID.
	// The ok return is false if no such job exists.
	GetJob(id JobID) (Job, bool)

	// ListJobs returns snapshots of all jobs, oldest first.
	ListJobs() []Job

	// SetProgress updates the progress percent of a running job. Updates for
	// jobs that are missing or no longer running are dropped.
	SetProgress(id JobID, percent int) error

	// Transition moves a job to the given state, recording errMsg for failed
	// jobs. Terminal states are first-writer-wins: once a job is finished,
	// failed, or cancelled, later transitions are dropped and changed is
	// false.
	Transition(id JobID, state JobState, errMsg string) (changed bool, err error)

	// ActiveJobCount returns the number of jobs not in a terminal state.
	// Used for admission control and metrics.
	ActiveJobCount() int

	// StateCounts returns the number of jobs per state. Used for metrics.
	StateCounts() map[JobState]int
}

// ErrDuplicateJob is returned when creating a job whose ID already exists.
var ErrDuplicateJob = errors.New("job already exists")

// JobRepository is a concurrency-safe Repository over a Store. All mutations
// go through read-copy-update so the Store only ever sees whole records; this
// keeps the database-backed store and the in-memory store interchangeable.
type JobRepository struct {
	mu    sync.RWMutex
	store Store
}

// NewJobRepository constructs a repository that uses the given Store.
func NewJobRepository(store Store) *JobRepository {
	return &JobRepository{store: store}
}

// CreateJob implements Repository.CreateJob.
func (r *JobRepository) CreateJob(j *Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.store.GetJob(j.ID); exists {
		return ErrDuplicateJob
	}

	now := time.Now().UTC()
	j.CreatedAt = now
	j.UpdatedAt = now
	return r.store.SetJob(j)
}

// GetJob implements Repository.GetJob.
func (r *JobRepository) GetJob(id JobID) (Job, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	j, ok := r.store.GetJob(id)
	if !ok {
		return Job{}, false
	}
	return *j, true
}

// ListJobs implements Repository.ListJobs.
func (r *JobRepository) ListJobs() []Job {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := r.store.ListJobIDs()
	jobs := make([]Job, 0, len(ids))
	for _, id := range ids {
		if j, ok := r.store.GetJob(id); ok {
			jobs = append(jobs, *j)
		}
	}
	sort.Slice(jobs, func(i, k int) bool {
		if jobs[i].CreatedAt.Equal(jobs[k].CreatedAt) {
			return jobs[i].ID < jobs[k].ID
		}
		return jobs[i].CreatedAt.Before(jobs[k].CreatedAt)
	})
	return jobs
}

// SetProgress implements Repository.SetProgress.
func (r *JobRepository) SetProgress(id JobID, percent int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	j, ok := r.store.GetJob(id)
	if !ok || j.State != JobRunning {
		return nil
	}

	updated := *j
	updated.Progress = percent
	updated.UpdatedAt = time.Now().UTC()
	return r.store.SetJob(&updated)
}

// Transition implements Repository.Transition.
func (r *JobRepository) Transition(id JobID, state JobState, errMsg string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	j, ok := r.store.GetJob(id)
	if !ok || j.State.Terminal() {
		return false, nil
	}

	updated := *j
	updated.State = state
	updated.Error = errMsg
	if state == JobFinished {
		updated.Progress = 100
	}
	updated.UpdatedAt = time.Now().UTC()
	if err := r.store.SetJob(&updated); err != nil {
		return false, err
	}
	return true, nil
}

// ActiveJobCount implements Repository.ActiveJobCount.
func (r *JobRepository) ActiveJobCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := 0
	for _, id := range r.store.ListJobIDs() {
		if j, ok := r.store.GetJob(id); ok && !j.State.Terminal() {
			n++
		}
	}
	return n
}

// StateCounts implements Repository.StateCounts.
func (r *JobRepository) StateCounts() map[JobState]int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	counts := make(map[JobState]int)
	for _, id := range r.store.ListJobIDs() {
		if j, ok := r.store.GetJob(id); ok {
			counts[j.State]++
		}
	}
	return counts
}
