package site

import (
	"context"
	"fmt"
	"time"

	derrors "sitewright/internal/errors"
	"sitewright/internal/metrics"
)

// Stage is one step of the build pipeline, executed in order over the
// shared state.
type Stage struct {
	Name string
	Run  func(ctx context.Context, st *State) error
}

// StageError wraps a stage failure with its position in the pipeline.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string { return fmt.Sprintf("stage %s: %v", e.Stage, e.Err) }
func (e *StageError) Unwrap() error { return e.Err }

// runStages executes the pipeline. Every stage is timed and counted; a
// warning is recorded and the next stage runs, a fatal error stops the
// pipeline. Cancellation is checked between stages, the build itself is
// sequential.
func runStages(ctx context.Context, st *State, stages []Stage) error {
	for _, stage := range stages {
		select {
		case <-ctx.Done():
			return &StageError{Stage: stage.Name, Err: ctx.Err()}
		default:
		}

		started := time.Now()
		err := stage.Run(ctx, st)
		elapsed := time.Since(started)
		st.Metrics.ObserveStageDuration(stage.Name, elapsed)
		st.Logger.Debug("stage finished", "stage", stage.Name, "elapsed", elapsed.Round(time.Millisecond))

		switch {
		case err == nil:
			st.Metrics.IncStageResult(stage.Name, metrics.ResultSuccess)
		case derrors.IsFatal(err):
			st.Metrics.IncStageResult(stage.Name, metrics.ResultFatal)
			return &StageError{Stage: stage.Name, Err: err}
		default:
			st.Metrics.IncStageResult(stage.Name, metrics.ResultWarning)
			st.Warnings = append(st.Warnings, &StageError{Stage: stage.Name, Err: err})
			st.Logger.Warn("stage degraded", "stage", stage.Name, "error", err)
		}
	}
	return nil
}

// buildStages is the full generation pipeline.
func buildStages() []Stage {
	return []Stage{
		{Name: "configure", Run: configureStage},
		{Name: "static-assets", Run: staticAssetsStage},
		{Name: "pages", Run: pagesStage},
		{Name: "publications", Run: publicationsStage},
		{Name: "listings", Run: listingsStage},
		{Name: "extra-templates", Run: extraTemplatesStage},
		{Name: "media", Run: mediaStage},
		{Name: "finalize-structure", Run: finalizeStructureStage},
		{Name: "sitemaps", Run: sitemapsStage},
		{Name: "verify-links", Run: verifyLinksStage},
		{Name: "sync", Run: syncStage},
	}
}
