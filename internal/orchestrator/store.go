package orchestrator

// Store is the persistence abstraction for job records.
// Implementations can be in-memory or database-backed. The Repository uses
// Store for all reads and writes; callers of Repository do not need to know
// which Store is used.
type Store interface {
	GetJob(id JobID) (*Job, bool)
	SetJob(j *Job) error
	ListJobIDs() []JobID
}

// InMemoryStore is an in-memory implementation of Store.
type InMemoryStore struct {
	jobs map[JobID]*Job
}

// NewInMemoryStore returns a new empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		jobs: make(map[JobID]*Job),
	}
}

// GetJob implements Store.GetJob.
func (s *InMemoryStore) GetJob(id JobID) (*Job, bool) {
	j, ok := s.jobs[id]
	return j, ok
}

// SetJob implements Store.SetJob.
func (s *InMemoryStore) SetJob(j *Job) error {
	s.jobs[j.ID] = j
	return nil
}

// ListJobIDs implements Store.ListJobIDs.
func (s *InMemoryStore) ListJobIDs() []JobID {
	ids := make([]JobID, 0, len(s.jobs))
	for id := range s.jobs {
		ids = append(ids, id)
	}
	return ids
}
