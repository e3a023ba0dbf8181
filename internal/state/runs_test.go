package state

import (
	"errors"
	"testing"
	"time"

	"github.com/ShayCichocki/dagforge/internal/repair"
	"github.com/ShayCichocki/dagforge/internal/validation"
	"github.com/ShayCichocki/dagforge/pkg/models"
)

func sampleRun(id string, started time.Time) *Run {
	spec := &models.Specification{
		ID:          "etl",
		Description: "nightly",
		Tasks:       []models.Task{{TaskID: "a", OperatorType: "BashOperator", Dependencies: []string{}}},
	}
	two := 2
	return &Run{
		ID:            id,
		SpecID:        "etl",
		MaxIterations: 3,
		Outcome:       "converged",
		Converged:     true,
		FinalSpec:     spec,
		StartedAt:     started,
		FinishedAt:    started.Add(time.Second),
		Iterations: []models.RepairIteration{
			{Iteration: 0, ErrorCount: 2, Status: models.IterationInitial, Timestamp: started, Spec: spec.Clone()},
			{Iteration: 1, ErrorCount: 0, ErrorReduction: &two, Status: models.IterationImproved, Degraded: true, Timestamp: started, Spec: spec.Clone()},
		},
	}
}

func TestSaveAndGetRun(t *testing.T) {
	db := setupTestDB(t)
	started := time.Date(2024, 5, 1, 10, 0, 0, 123, time.UTC)

	if err := db.SaveRun(sampleRun("run-1", started)); err != nil {
		t.Fatalf("SaveRun failed: %v", err)
	}

	got, err := db.GetRun("run-1")
	if err != nil {
		t.Fatalf("GetRun failed: %v", err)
	}
	if got.SpecID != "etl" || got.Outcome != "converged" || !got.Converged {
		t.Errorf("run = %+v", got)
	}
	if !got.StartedAt.Equal(started) {
		t.Errorf("StartedAt = %v, want %v", got.StartedAt, started)
	}
	if got.FinalSpec == nil || got.FinalSpec.Tasks[0].TaskID != "a" {
		t.Errorf("FinalSpec = %+v", got.FinalSpec)
	}
	if len(got.Iterations) != 2 {
		t.Fatalf("iterations = %d, want 2", len(got.Iterations))
	}
	if got.Iterations[0].ErrorReduction != nil {
		t.Error("initial iteration should have no reduction")
	}
	if r := got.Iterations[1].ErrorReduction; r == nil || *r != 2 {
		t.Errorf("reduction = %v, want 2", r)
	}
	if got.Iterations[1].Status != models.IterationImproved {
		t.Errorf("status = %s", got.Iterations[1].Status)
	}
	if got.Iterations[1].Spec == nil || got.Iterations[1].Spec.ID != "etl" {
		t.Error("iteration snapshot not restored")
	}
	if got.Iterations[0].Degraded || !got.Iterations[1].Degraded {
		t.Errorf("degraded = %v/%v, want false/true", got.Iterations[0].Degraded, got.Iterations[1].Degraded)
	}
}

func TestSaveRun_Duplicate(t *testing.T) {
	db := setupTestDB(t)
	run := sampleRun("dup", time.Now())

	if err := db.SaveRun(run); err != nil {
		t.Fatalf("first SaveRun failed: %v", err)
	}
	if err := db.SaveRun(run); err == nil {
		t.Fatal("expected error saving the same run twice")
	}

	got, err := db.GetRun("dup")
	if err != nil {
		t.Fatalf("GetRun failed: %v", err)
	}
	if len(got.Iterations) != 2 {
		t.Errorf("failed save should not add iterations, got %d", len(got.Iterations))
	}
}

func TestGetRun_NotFound(t *testing.T) {
	db := setupTestDB(t)

	_, err := db.GetRun("missing")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestListRuns(t *testing.T) {
	db := setupTestDB(t)
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	for i, id := range []string{"oldest", "middle", "newest"} {
		if err := db.SaveRun(sampleRun(id, base.Add(time.Duration(i)*time.Hour))); err != nil {
			t.Fatalf("SaveRun(%s) failed: %v", id, err)
		}
	}

	runs, err := db.ListRuns(2)
	if err != nil {
		t.Fatalf("ListRuns failed: %v", err)
	}
	if len(runs) != 2 || runs[0].ID != "newest" || runs[1].ID != "middle" {
		t.Errorf("ListRuns(2) = %v", runIDs(runs))
	}
	if runs[0].Iterations != nil {
		t.Error("ListRuns should not load iterations")
	}

	all, err := db.ListRuns(0)
	if err != nil {
		t.Fatalf("ListRuns(0) failed: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("ListRuns(0) returned %d runs, want 3", len(all))
	}
}

func TestDeleteRun(t *testing.T) {
	db := setupTestDB(t)
	if err := db.SaveRun(sampleRun("gone", time.Now())); err != nil {
		t.Fatalf("SaveRun failed: %v", err)
	}

	if err := db.DeleteRun("gone"); err != nil {
		t.Fatalf("DeleteRun failed: %v", err)
	}
	if _, err := db.GetRun("gone"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}

	var count int
	if err := db.QueryRow("SELECT COUNT(*) FROM repair_iterations WHERE run_id = ?", "gone").Scan(&count); err != nil {
		t.Fatal(err)
	}
	if count != 0 {
		t.Errorf("iterations not cascaded: %d left", count)
	}

	if err := db.DeleteRun("gone"); !errors.Is(err, ErrNotFound) {
		t.Errorf("second delete: expected ErrNotFound, got %v", err)
	}
}

func TestPurgeRuns(t *testing.T) {
	db := setupTestDB(t)
	if err := db.SaveRun(sampleRun("old", time.Now().Add(-48*time.Hour))); err != nil {
		t.Fatal(err)
	}
	if err := db.SaveRun(sampleRun("fresh", time.Now())); err != nil {
		t.Fatal(err)
	}

	n, err := db.PurgeRuns(24 * time.Hour)
	if err != nil {
		t.Fatalf("PurgeRuns failed: %v", err)
	}
	if n != 1 {
		t.Errorf("purged %d runs, want 1", n)
	}
	if _, err := db.GetRun("fresh"); err != nil {
		t.Errorf("fresh run should survive: %v", err)
	}
}

func TestFromResult(t *testing.T) {
	spec := &models.Specification{ID: "x"}
	res := &repair.Result{
		RunID:         "r",
		FinalSpec:     spec,
		Outcome:       repair.OutcomeAborted,
		AbortReason:   repair.AbortParseError,
		MaxIterations: 2,
		FinalValidation: validation.Result{
			Errors: []models.Entry{{Type: "schema", Message: "m"}},
		},
		Iterations: []models.RepairIteration{{Iteration: 0, Status: models.IterationInitial}},
	}

	run := FromResult(res)
	if run.ID != "r" || run.SpecID != "x" || run.Outcome != "aborted" || run.AbortReason != "parse_error" {
		t.Errorf("run = %+v", run)
	}
	if run.ErrorCount != 1 || run.Converged {
		t.Errorf("counts = %d, converged = %v", run.ErrorCount, run.Converged)
	}
	if len(run.Iterations) != 1 {
		t.Errorf("iterations = %d", len(run.Iterations))
	}
}

func runIDs(runs []Run) []string {
	ids := make([]string, len(runs))
	for i, r := range runs {
		ids[i] = r.ID
	}
	return ids
}
