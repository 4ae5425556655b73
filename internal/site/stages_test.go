package site

import (
	"context"
	"errors"
	"testing"
	"time"

	derrors "sitewright/internal/errors"
	"sitewright/internal/metrics"
)

type stageRecorder struct {
	metrics.NoopRecorder
	results map[string]metrics.ResultLabel
	timed   []string
}

func newStageRecorder() *stageRecorder {
	return &stageRecorder{results: make(map[string]metrics.ResultLabel)}
}

func (r *stageRecorder) ObserveStageDuration(stage string, _ time.Duration) {
	r.timed = append(r.timed, stage)
}

func (r *stageRecorder) IncStageResult(stage string, result metrics.ResultLabel) {
	r.results[stage] = result
}

func TestRunStagesRunsInOrder(t *testing.T) {
	rec := newStageRecorder()
	st := &State{Metrics: rec, Logger: testLogger()}
	var order []string
	stages := []Stage{
		{Name: "one", Run: func(context.Context, *State) error { order = append(order, "one"); return nil }},
		{Name: "two", Run: func(context.Context, *State) error { order = append(order, "two"); return nil }},
	}
	if err := runStages(context.Background(), st, stages); err != nil {
		t.Fatalf("runStages: %v", err)
	}
	if len(order) != 2 || order[0] != "one" || order[1] != "two" {
		t.Fatalf("stages ran as %v", order)
	}
	for _, name := range []string{"one", "two"} {
		if rec.results[name] != metrics.ResultSuccess {
			t.Errorf("stage %s counted as %q, want %q", name, rec.results[name], metrics.ResultSuccess)
		}
	}
	if len(rec.timed) != 2 {
		t.Errorf("timed %d stages, want 2", len(rec.timed))
	}
}

func TestRunStagesFatalStopsThePipeline(t *testing.T) {
	rec := newStageRecorder()
	st := &State{Metrics: rec, Logger: testLogger()}
	ran := false
	stages := []Stage{
		{Name: "boom", Run: func(context.Context, *State) error {
			return derrors.Fatal(derrors.CategoryInternal, "broken beyond repair")
		}},
		{Name: "after", Run: func(context.Context, *State) error { ran = true; return nil }},
	}
	err := runStages(context.Background(), st, stages)
	if err == nil {
		t.Fatal("expected an error")
	}
	var se *StageError
	if !errors.As(err, &se) {
		t.Fatalf("error %T does not name the failing stage", err)
	}
	if se.Stage != "boom" {
		t.Errorf("failing stage reported as %q, want boom", se.Stage)
	}
	if !derrors.IsFatal(se.Err) {
		t.Errorf("wrapped error lost its severity: %v", se.Err)
	}
	if ran {
		t.Error("pipeline continued past the fatal stage")
	}
	if rec.results["boom"] != metrics.ResultFatal {
		t.Errorf("fatal stage counted as %q", rec.results["boom"])
	}
}

func TestRunStagesWarningContinues(t *testing.T) {
	rec := newStageRecorder()
	st := &State{Metrics: rec, Logger: testLogger()}
	ran := false
	stages := []Stage{
		{Name: "shaky", Run: func(context.Context, *State) error {
			return derrors.Warning(derrors.CategoryCollaborator, "tool missing")
		}},
		{Name: "after", Run: func(context.Context, *State) error { ran = true; return nil }},
	}
	if err := runStages(context.Background(), st, stages); err != nil {
		t.Fatalf("runStages: %v", err)
	}
	if !ran {
		t.Error("pipeline stopped on a warning")
	}
	if len(st.Warnings) != 1 {
		t.Fatalf("recorded %d warnings, want 1", len(st.Warnings))
	}
	var se *StageError
	if !errors.As(st.Warnings[0], &se) || se.Stage != "shaky" {
		t.Errorf("warning does not name the degraded stage: %v", st.Warnings[0])
	}
	if rec.results["shaky"] != metrics.ResultWarning {
		t.Errorf("degraded stage counted as %q", rec.results["shaky"])
	}
}

// Unclassified errors stop the pipeline. Only explicit warnings keep it
// going.
func TestRunStagesPlainErrorStops(t *testing.T) {
	st := &State{Metrics: newStageRecorder(), Logger: testLogger()}
	ran := false
	stages := []Stage{
		{Name: "plain", Run: func(context.Context, *State) error { return errors.New("unexpected") }},
		{Name: "after", Run: func(context.Context, *State) error { ran = true; return nil }},
	}
	if err := runStages(context.Background(), st, stages); err == nil {
		t.Fatal("expected an error")
	}
	if ran {
		t.Error("pipeline continued past an unclassified error")
	}
}

func TestRunStagesHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	st := &State{Metrics: newStageRecorder(), Logger: testLogger()}
	ran := false
	stages := []Stage{
		{Name: "never", Run: func(context.Context, *State) error { ran = true; return nil }},
	}
	err := runStages(ctx, st, stages)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("runStages returned %v, want a canceled error", err)
	}
	if ran {
		t.Error("stage ran despite cancellation")
	}
}

func TestBuildStagesShape(t *testing.T) {
	stages := buildStages()
	if len(stages) == 0 {
		t.Fatal("empty pipeline")
	}
	if stages[0].Name != "configure" {
		t.Errorf("first stage is %q, want configure", stages[0].Name)
	}
	if last := stages[len(stages)-1].Name; last != "sync" {
		t.Errorf("last stage is %q, want sync", last)
	}
	index := make(map[string]int, len(stages))
	for i, stage := range stages {
		index[stage.Name] = i
	}
	if index["finalize-structure"] > index["sitemaps"] {
		t.Error("sitemaps run before the structure is finalized")
	}
	if index["pages"] > index["finalize-structure"] {
		t.Error("structure finalized before the pages registered their entries")
	}
}
