package runs_test

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"nixstrap/internal/database"
	"nixstrap/internal/runs"
	"nixstrap/internal/runs/types"

	"github.com/google/uuid"
)

func newRepository(t *testing.T) *runs.Repository {
	t.Helper()

	db, err := database.InitDB(filepath.Join(t.TempDir(), "journal.db"))
	if err != nil {
		t.Fatalf("InitDB: %v", err)
	}
	t.Cleanup(func() { database.CloseDB(db) })

	return runs.NewRepository(db)
}

func TestStartRecordFinish(t *testing.T) {
	repo := newRepository(t)

	run, err := repo.Start("[10.0.0.5]:22", "")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if _, err := uuid.Parse(run.ID); err != nil {
		t.Errorf("run ID %q is not a UUID", run.ID)
	}
	if run.Status != types.RunStatusRunning {
		t.Errorf("new run status = %s", run.Status)
	}

	if err := repo.SetHost(run.ID, "alpha"); err != nil {
		t.Fatalf("SetHost: %v", err)
	}
	if _, err := repo.RecordStep(run.ID, "connect", types.StepStatusSucceeded, "host key captured"); err != nil {
		t.Fatalf("RecordStep: %v", err)
	}
	if _, err := repo.RecordStep(run.ID, "hardware", types.StepStatusSkipped, ""); err != nil {
		t.Fatalf("RecordStep: %v", err)
	}
	if err := repo.Finish(run.ID, types.RunStatusSucceeded); err != nil {
		t.Fatalf("Finish: %v", err)
	}

	got, err := repo.Get(run.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Host != "alpha" || got.Status != types.RunStatusSucceeded || got.FinishedAt == nil {
		t.Errorf("unexpected run after finish: %+v", got)
	}

	steps, err := repo.Steps(run.ID)
	if err != nil {
		t.Fatalf("Steps: %v", err)
	}
	if len(steps) != 2 {
		t.Fatalf("expected 2 steps, got %d", len(steps))
	}
	if steps[0].Name != "connect" || steps[0].Seq != 1 || steps[1].Name != "hardware" || steps[1].Seq != 2 {
		t.Errorf("steps out of order: %+v", steps)
	}
}

func TestFinishedRunRejectsChanges(t *testing.T) {
	repo := newRepository(t)

	run, err := repo.Start("[h]:22", "beta")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := repo.Finish(run.ID, types.RunStatusInterrupted); err != nil {
		t.Fatalf("Finish: %v", err)
	}

	if _, err := repo.RecordStep(run.ID, "late", types.StepStatusSucceeded, ""); !errors.Is(err, runs.ErrRunFinished) {
		t.Errorf("RecordStep after finish: expected ErrRunFinished, got %v", err)
	}
	if err := repo.Finish(run.ID, types.RunStatusFailed); !errors.Is(err, runs.ErrRunFinished) {
		t.Errorf("second Finish: expected ErrRunFinished, got %v", err)
	}
}

func TestUnknownRun(t *testing.T) {
	repo := newRepository(t)

	if _, err := repo.Get("missing"); !errors.Is(err, runs.ErrRunNotFound) {
		t.Errorf("Get: expected ErrRunNotFound, got %v", err)
	}
	if _, err := repo.RecordStep("missing", "x", types.StepStatusFailed, ""); !errors.Is(err, runs.ErrRunNotFound) {
		t.Errorf("RecordStep: expected ErrRunNotFound, got %v", err)
	}
	if err := repo.Finish("missing", types.RunStatusFailed); !errors.Is(err, runs.ErrRunNotFound) {
		t.Errorf("Finish: expected ErrRunNotFound, got %v", err)
	}
}

func TestFinishRequiresFinalStatus(t *testing.T) {
	repo := newRepository(t)

	run, _ := repo.Start("[h]:22", "")
	if err := repo.Finish(run.ID, types.RunStatusRunning); !errors.Is(err, runs.ErrInvalidRunStatus) {
		t.Errorf("expected ErrInvalidRunStatus, got %v", err)
	}
}

func TestListNewestFirst(t *testing.T) {
	repo := newRepository(t)

	var ids []string
	for i := 0; i < 3; i++ {
		run, err := repo.Start("[h]:22", "")
		if err != nil {
			t.Fatalf("Start: %v", err)
		}
		ids = append(ids, run.ID)
		time.Sleep(5 * time.Millisecond)
	}

	list, err := repo.List(2)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(list))
	}
	if list[0].ID != ids[2] || list[1].ID != ids[1] {
		t.Errorf("List order = %s, %s; want %s, %s", list[0].ID, list[1].ID, ids[2], ids[1])
	}

	all, _ := repo.List(0)
	if len(all) != 3 {
		t.Errorf("List(0) returned %d runs", len(all))
	}
}
