package orchestrator

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/google/uuid"

	"transcode-orchestrator/internal/transcoder"
)

// DefaultMaxActiveJobs caps concurrent pipelines when no explicit limit is
// configured.
const DefaultMaxActiveJobs = 8

var (
	// ErrJobNotFound is returned when an operation names a job that does not
	// exist.
	ErrJobNotFound = errors.New("job not found")

	// ErrTooManyJobs is returned when a submission would exceed the active
	// job limit.
	ErrTooManyJobs = errors.New("too many active jobs")

	// ErrUnknownProfile is returned when a track request names a preset that
	// is not configured.
	ErrUnknownProfile = errors.New("unknown profile")
)

// activeJob carries the live pipeline of a non-terminal job. For paused jobs
// the pipeline is torn down and only the original request survives, so Resume
// can rebuild from scratch.
type activeJob struct {
	t   *transcoder.Transcoder
	src *os.File
	dst *os.File
	req SubmitRequest

	closeOnce sync.Once
}

// closeFiles is safe to call from API paths and pipeline callbacks at once.
func (a *activeJob) closeFiles() {
	a.closeOnce.Do(func() {
		if a.src != nil {
			a.src.Close()
		}
		if a.dst != nil {
			a.dst.Close()
		}
	})
}

// Service runs transcode pipelines on behalf of HTTP clients and records
// their lifecycle in a Repository. One Service owns all live pipelines; the
// Engine it is built with decides how media is actually read, transformed,
// and written.
type Service struct {
	repo      Repository
	engine    transcoder.Engine
	profiles  *Profiles
	log       *slog.Logger
	maxActive int

	mu     sync.Mutex
	active map[JobID]*activeJob
}

// NewService returns a Service that runs at most maxActive concurrent jobs.
// If maxActive <= 0, DefaultMaxActiveJobs is used. A nil profiles set falls
// back to the built-in presets.
func NewService(repo Repository, engine transcoder.Engine, profiles *Profiles, log *slog.Logger, maxActive int) *Service {
	if maxActive <= 0 {
		maxActive = DefaultMaxActiveJobs
	}
	if profiles == nil {
		profiles = DefaultProfiles()
	}
	return &Service{
		repo:      repo,
		engine:    engine,
		profiles:  profiles,
		log:       log,
		maxActive: maxActive,
		active:    make(map[JobID]*activeJob),
	}
}

// Submit creates a job for the given request, builds its pipeline, and starts
// it. The returned snapshot reflects the job as created; the pipeline reports
// progress and its terminal state asynchronously.
func (s *Service) Submit(req SubmitRequest) (Job, error) {
	if req.SourcePath == "" {
		return Job{}, fmt.Errorf("%w: source_path is required", transcoder.ErrInvalidParameter)
	}
	if req.DestPath == "" {
		return Job{}, fmt.Errorf("%w: dest_path is required", transcoder.ErrInvalidParameter)
	}
	if s.repo.ActiveJobCount() >= s.maxActive {
		return Job{}, fmt.Errorf("%w: limit is %d", ErrTooManyJobs, s.maxActive)
	}

	id := JobID(uuid.NewString())
	entry, trackCount, err := s.buildPipeline(id, req)
	if err != nil {
		return Job{}, err
	}

	job := &Job{
		ID:         id,
		State:      JobRunning,
		SourcePath: req.SourcePath,
		DestPath:   req.DestPath,
		TrackCount: trackCount,
	}

	// Admission must be decided and recorded under one lock: the unlocked
	// check above is only a fast path, and two submits racing past it could
	// otherwise both be admitted at the limit.
	s.mu.Lock()
	if s.repo.ActiveJobCount() >= s.maxActive {
		s.mu.Unlock()
		entry.closeFiles()
		return Job{}, fmt.Errorf("%w: limit is %d", ErrTooManyJobs, s.maxActive)
	}
	if err := s.repo.CreateJob(job); err != nil {
		s.mu.Unlock()
		entry.closeFiles()
		return Job{}, err
	}
	s.active[id] = entry
	s.mu.Unlock()

	if err := entry.t.Start(); err != nil {
		s.finish(id, JobFailed, err.Error())
		return Job{}, err
	}

	s.log.Info("job started",
		slog.String("job_id", string(id)),
		slog.String("source", req.SourcePath),
		slog.String("dest", req.DestPath),
		slog.Int("tracks", trackCount))
	return *job, nil
}

// Get returns a snapshot of the job with the given ID.
func (s *Service) Get(id JobID) (Job, bool) {
	return s.repo.GetJob(id)
}

// List returns snapshots of all jobs, oldest first.
func (s *Service) List() []Job {
	return s.repo.ListJobs()
}

// Cancel tears down the job's pipeline and marks it cancelled. Cancelling a
// job that already reached a terminal state is rejected; a cancel racing the
// pipeline's own completion succeeds, and whichever terminal state was
// recorded first wins.
func (s *Service) Cancel(id JobID) error {
	j, ok := s.repo.GetJob(id)
	if !ok {
		return ErrJobNotFound
	}
	if j.State.Terminal() {
		return fmt.Errorf("%w: job is %s", transcoder.ErrInvalidOperation, j.State)
	}

	s.mu.Lock()
	entry := s.active[id]
	s.mu.Unlock()
	if entry != nil && entry.t != nil {
		_ = entry.t.Cancel()
	}

	s.finish(id, JobCancelled, "")
	s.log.Info("job cancelled", slog.String("job_id", string(id)))
	return nil
}

// Pause tears down the pipeline of a running job and marks it paused. The
// pipeline does not hold a resumable mid-stream position; Resume rebuilds the
// job from its original request and restarts from the beginning.
func (s *Service) Pause(id JobID) error {
	j, ok := s.repo.GetJob(id)
	if !ok {
		return ErrJobNotFound
	}
	if j.State != JobRunning {
		return fmt.Errorf("%w: job is %s", transcoder.ErrInvalidOperation, j.State)
	}

	s.mu.Lock()
	entry := s.active[id]
	s.mu.Unlock()
	if entry == nil || entry.t == nil {
		return fmt.Errorf("%w: job has no running pipeline", transcoder.ErrInvalidOperation)
	}

	changed, err := s.repo.Transition(id, JobPaused, "")
	if err != nil {
		s.log.Error("recording pause", slog.String("job_id", string(id)), slog.String("error", err.Error()))
	}
	if !changed {
		// The pipeline finished first.
		return fmt.Errorf("%w: job already completed", transcoder.ErrInvalidOperation)
	}

	if _, err := entry.t.Pause(); err != nil {
		s.log.Error("pausing pipeline", slog.String("job_id", string(id)), slog.String("error", err.Error()))
	}
	entry.closeFiles()

	// Keep only the request around; Resume rebuilds the pipeline from it.
	s.mu.Lock()
	s.active[id] = &activeJob{req: entry.req}
	s.mu.Unlock()

	// A success racing the pause may have completed the job; drop the
	// resume entry if so.
	if j, ok := s.repo.GetJob(id); ok && j.State.Terminal() {
		s.mu.Lock()
		delete(s.active, id)
		s.mu.Unlock()
	}

	s.log.Info("job paused", slog.String("job_id", string(id)))
	return nil
}

// Resume restarts a paused job from the beginning of its source.
func (s *Service) Resume(id JobID) error {
	j, ok := s.repo.GetJob(id)
	if !ok {
		return ErrJobNotFound
	}
	if j.State != JobPaused {
		return fmt.Errorf("%w: job is %s", transcoder.ErrInvalidOperation, j.State)
	}

	s.mu.Lock()
	prev := s.active[id]
	s.mu.Unlock()
	if prev == nil {
		return fmt.Errorf("%w: job has no resumable pipeline", transcoder.ErrInvalidOperation)
	}

	entry, _, err := s.buildPipeline(id, prev.req)
	if err != nil {
		return err
	}

	changed, terr := s.repo.Transition(id, JobRunning, "")
	if terr != nil {
		s.log.Error("recording resume", slog.String("job_id", string(id)), slog.String("error", terr.Error()))
	}
	if !changed {
		entry.closeFiles()
		return fmt.Errorf("%w: job already completed", transcoder.ErrInvalidOperation)
	}

	s.mu.Lock()
	s.active[id] = entry
	s.mu.Unlock()

	if err := entry.t.Start(); err != nil {
		s.finish(id, JobFailed, err.Error())
		return err
	}

	s.log.Info("job resumed", slog.String("job_id", string(id)))
	return nil
}

// Shutdown cancels every live pipeline. Used at server shutdown; jobs that
// were running or paused end up cancelled.
func (s *Service) Shutdown() {
	s.mu.Lock()
	entries := make(map[JobID]*activeJob, len(s.active))
	for id, e := range s.active {
		entries[id] = e
	}
	s.mu.Unlock()

	for id, e := range entries {
		if e.t != nil {
			_ = e.t.Cancel()
		}
		s.finish(id, JobCancelled, "")
	}
	s.log.Info("all jobs cancelled", slog.Int("count", len(entries)))
}

// buildPipeline opens the job's files and assembles a fully configured
// pipeline, ready to start. On error, any opened file is closed.
func (s *Service) buildPipeline(id JobID, req SubmitRequest) (entry *activeJob, trackCount int, err error) {
	src, err := os.Open(req.SourcePath)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: opening source: %v", transcoder.ErrInvalidParameter, err)
	}
	defer func() {
		if err != nil {
			src.Close()
		}
	}()

	fi, err := src.Stat()
	if err != nil {
		return nil, 0, fmt.Errorf("%w: reading source size: %v", transcoder.ErrInvalidParameter, err)
	}

	dst, err := os.Create(req.DestPath)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: opening destination: %v", transcoder.ErrInvalidParameter, err)
	}
	defer func() {
		if err != nil {
			dst.Close()
		}
	}()

	tr, err := transcoder.New(&jobCallbacks{svc: s, id: id}, s.engine, s.log)
	if err != nil {
		return nil, 0, err
	}
	if err = tr.ConfigureSource(src, fi.Size()); err != nil {
		return nil, 0, err
	}

	n := len(tr.TrackFormats())
	if len(req.Tracks) == 0 {
		for i := 0; i < n; i++ {
			if err = tr.ConfigureTrack(i, nil); err != nil {
				return nil, 0, err
			}
		}
	} else {
		for _, t := range req.Tracks {
			var f *transcoder.Format
			if f, err = s.resolveTrackFormat(t); err != nil {
				return nil, 0, err
			}
			if err = tr.ConfigureTrack(t.Index, f); err != nil {
				return nil, 0, err
			}
		}
	}

	if err = tr.ConfigureDestination(dst); err != nil {
		return nil, 0, err
	}

	return &activeJob{t: tr, src: src, dst: dst, req: req}, n, nil
}

// resolveTrackFormat turns a track request into the destination format passed
// to the pipeline. Nil means pass-through.
func (s *Service) resolveTrackFormat(t TrackRequest) (*transcoder.Format, error) {
	switch {
	case t.Profile != "" && t.Format != nil:
		return nil, fmt.Errorf("%w: track %d names both a profile and an inline format", transcoder.ErrInvalidParameter, t.Index)
	case t.Profile != "":
		f, ok := s.profiles.Resolve(t.Profile)
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownProfile, t.Profile)
		}
		return f, nil
	case t.Format != nil:
		return t.Format.toFormat(), nil
	default:
		return nil, nil
	}
}

// finish records a terminal state and releases the job's live resources.
// Safe to call from pipeline goroutines and from API paths; the repository's
// first terminal write wins.
func (s *Service) finish(id JobID, state JobState, errMsg string) {
	if _, err := s.repo.Transition(id, state, errMsg); err != nil {
		s.log.Error("recording terminal state",
			slog.String("job_id", string(id)),
			slog.String("state", string(state)),
			slog.String("error", err.Error()))
	}

	s.mu.Lock()
	entry := s.active[id]
	delete(s.active, id)
	s.mu.Unlock()
	if entry != nil {
		entry.closeFiles()
	}
}

// jobCallbacks adapts the pipeline's client callback boundary to job records.
// All three methods are invoked from pipeline goroutines.
type jobCallbacks struct {
	svc *Service
	id  JobID
}

func (c *jobCallbacks) OnFinished(t *transcoder.Transcoder) {
	c.svc.finish(c.id, JobFinished, "")
	c.svc.log.Info("job finished", slog.String("job_id", string(c.id)))
}

func (c *jobCallbacks) OnError(t *transcoder.Transcoder, err error) {
	c.svc.finish(c.id, JobFailed, err.Error())
	c.svc.log.Error("job failed",
		slog.String("job_id", string(c.id)),
		slog.String("error", err.Error()))
}

func (c *jobCallbacks) OnProgressUpdate(t *transcoder.Transcoder, percent int) {
	if err := c.svc.repo.SetProgress(c.id, percent); err != nil {
		c.svc.log.Error("recording progress",
			slog.String("job_id", string(c.id)),
			slog.String("error", err.Error()))
	}
}
