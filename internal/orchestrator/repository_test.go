package orchestrator

import (
	"errors"
	"testing"
	"time"
)

func TestJobRepository_CreateJob(t *testing.T) {
	repo := NewJobRepository(NewInMemoryStore())

	t.Run("success_sets_timestamps", func(t *testing.T) {
		err := repo.CreateJob(&Job{ID: JobID("j1"), State: JobRunning})
		if err != nil {
			t.Fatalf("CreateJob: %v", err)
		}
		got, ok := repo.GetJob(JobID("j1"))
		if !ok {
			t.Fatal("GetJob: ok false")
		}
		if got.CreatedAt.IsZero() || got.UpdatedAt.IsZero() {
			t.Errorf("timestamps should be set: %+v", got)
		}
	})

	t.Run("duplicate_id_rejected", func(t *testing.T) {
		err := repo.CreateJob(&Job{ID: JobID("j1"), State: JobRunning})
		if !errors.Is(err, ErrDuplicateJob) {
			t.Errorf("expected ErrDuplicateJob, got %v", err)
		}
	})
}

func TestJobRepository_GetJob_snapshot(t *testing.T) {
	repo := NewJobRepository(NewInMemoryStore())
	_ = repo.CreateJob(&Job{ID: JobID("j1"), State: JobRunning})

	got, _ := repo.GetJob(JobID("j1"))
	got.State = JobFailed

	again, _ := repo.GetJob(JobID("j1"))
	if again.State != JobRunning {
		t.Errorf("mutating a snapshot must not change stored state, got %s", again.State)
	}
}

func TestJobRepository_ListJobs_ordered(t *testing.T) {
	repo := NewJobRepository(NewInMemoryStore())
	_ = repo.CreateJob(&Job{ID: JobID("a"), State: JobRunning})
	time.Sleep(2 * time.Millisecond)
	_ = repo.CreateJob(&Job{ID: JobID("b"), State: JobRunning})

	jobs := repo.ListJobs()
	if len(jobs) != 2 {
		t.Fatalf("expected 2 jobs, got %d", len(jobs))
	}
	if jobs[0].ID != JobID("a") || jobs[1].ID != JobID("b") {
		t.Errorf("expected oldest first, got %v then %v", jobs[0].ID, jobs[1].ID)
	}
}

func TestJobRepository_SetProgress(t *testing.T) {
	repo := NewJobRepository(NewInMemoryStore())
	_ = repo.CreateJob(&Job{ID: JobID("j1"), State: JobRunning})

	t.Run("updates_running_job", func(t *testing.T) {
		if err := repo.SetProgress(JobID("j1"), 40); err != nil {
			t.Fatalf("SetProgress: %v", err)
		}
		got, _ := repo.GetJob(JobID("j1"))
		if got.Progress != 40 {
			t.Errorf("progress = %d, want 40", got.Progress)
		}
	})

	t.Run("dropped_for_missing_job", func(t *testing.T) {
		if err := repo.SetProgress(JobID("missing"), 10); err != nil {
			t.Errorf("SetProgress missing job should be a no-op: %v", err)
		}
	})

	t.Run("dropped_after_terminal", func(t *testing.T) {
		_, _ = repo.Transition(JobID("j1"), JobFinished, "")
		_ = repo.SetProgress(JobID("j1"), 10)
		got, _ := repo.GetJob(JobID("j1"))
		if got.Progress != 100 {
			t.Errorf("finished job progress = %d, want 100", got.Progress)
		}
	})
}

func TestJobRepository_Transition(t *testing.T) {
	repo := NewJobRepository(NewInMemoryStore())
	_ = repo.CreateJob(&Job{ID: JobID("j1"), State: JobRunning})

	t.Run("running_to_paused_and_back", func(t *testing.T) {
		changed, err := repo.Transition(JobID("j1"), JobPaused, "")
		if err != nil || !changed {
			t.Fatalf("to paused: changed=%v err=%v", changed, err)
		}
		changed, err = repo.Transition(JobID("j1"), JobRunning, "")
		if err != nil || !changed {
			t.Fatalf("back to running: changed=%v err=%v", changed, err)
		}
	})

	t.Run("first_terminal_writer_wins", func(t *testing.T) {
		changed, _ := repo.Transition(JobID("j1"), JobFailed, "pipeline error")
		if !changed {
			t.Fatal("first terminal transition should apply")
		}
		changed, _ = repo.Transition(JobID("j1"), JobCancelled, "")
		if changed {
			t.Error("terminal state must not be overwritten")
		}
		got, _ := repo.GetJob(JobID("j1"))
		if got.State != JobFailed || got.Error != "pipeline error" {
			t.Errorf("got state=%s error=%q", got.State, got.Error)
		}
	})

	t.Run("missing_job", func(t *testing.T) {
		changed, err := repo.Transition(JobID("missing"), JobFinished, "")
		if changed || err != nil {
			t.Errorf("missing job: changed=%v err=%v", changed, err)
		}
	})

	t.Run("finished_forces_full_progress", func(t *testing.T) {
		_ = repo.CreateJob(&Job{ID: JobID("j2"), State: JobRunning})
		_ = repo.SetProgress(JobID("j2"), 60)
		_, _ = repo.Transition(JobID("j2"), JobFinished, "")
		got, _ := repo.GetJob(JobID("j2"))
		if got.Progress != 100 {
			t.Errorf("progress = %d, want 100", got.Progress)
		}
	})
}

func TestJobRepository_counts(t *testing.T) {
	repo := NewJobRepository(NewInMemoryStore())
	_ = repo.CreateJob(&Job{ID: JobID("a"), State: JobRunning})
	_ = repo.CreateJob(&Job{ID: JobID("b"), State: JobRunning})
	_ = repo.CreateJob(&Job{ID: JobID("c"), State: JobRunning})
	_, _ = repo.Transition(JobID("b"), JobPaused, "")
	_, _ = repo.Transition(JobID("c"), JobFinished, "")

	if n := repo.ActiveJobCount(); n != 2 {
		t.Errorf("ActiveJobCount = %d, want 2 (running + paused)", n)
	}

	counts := repo.StateCounts()
	if counts[JobRunning] != 1 || counts[JobPaused] != 1 || counts[JobFinished] != 1 {
		t.Errorf("unexpected counts: %v", counts)
	}
}
