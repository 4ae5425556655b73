// Package site drives the build: the stage pipeline renders every
// configured site into the build directory, finalizes the shared structure
// tree, emits sitemaps and mirrors the result to the deploy target. One run
// is strictly sequential; the run is recorded in the history ledger.
package site

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"sitewright/internal/config"
	derrors "sitewright/internal/errors"
	"sitewright/internal/history"
	"sitewright/internal/metrics"
)

// Options select what a build run does beyond plain generation.
type Options struct {
	ConfigPath  string
	Production  bool
	SkipSync    bool
	VerifyLinks bool
	Metrics     metrics.Recorder
	Logger      *slog.Logger
}

// Build runs the full pipeline once. Warnings degrade the output and are
// logged; the first fatal error aborts generation and is returned. The run
// is recorded in the history ledger either way.
func Build(ctx context.Context, opts Options) error {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	rec := opts.Metrics
	if rec == nil {
		rec = metrics.NoopRecorder{}
	}

	profile := config.DefaultProfile
	if opts.Production {
		profile = "prod"
	}
	cfg, err := config.Load(opts.ConfigPath, profile)
	if err != nil {
		return err
	}

	st := newState(cfg, rec, logger)
	st.SkipSync = opts.SkipSync
	st.VerifyLinks = opts.VerifyLinks

	started := time.Now().UTC()
	run := history.Run{
		ID:        history.NewRunID(),
		StartedAt: started,
		Profile:   cfg.Profile,
		Sites:     len(cfg.Sites),
		Revision:  history.SourceRevision(cfg.DataRoot),
	}
	logger.Info("build starting",
		"run", run.ID, "profile", cfg.Profile, "sites", run.Sites, "build_root", cfg.BuildRoot())

	buildErr := runStages(ctx, st, buildStages())

	finished := time.Now().UTC()
	rec.ObserveRunDuration(finished.Sub(started))

	stats := st.artifactTotals()
	rec.IncArtifacts("created", stats.Created)
	rec.IncArtifacts("updated", stats.Updated)
	rec.IncArtifacts("unchanged", stats.Unchanged)

	run.FinishedAt = finished
	run.Created = stats.Created
	run.Updated = stats.Updated
	run.Unchanged = stats.Unchanged
	run.Status = history.StatusSucceeded
	if buildErr != nil {
		run.Status = history.StatusFailed
		run.Error = buildErr.Error()
	}
	rec.IncRunOutcome(run.Status)
	recordRun(ctx, cfg, run, logger)

	if buildErr != nil {
		logger.Error("build failed", "run", run.ID, "error", buildErr)
		return buildErr
	}
	logger.Info("build finished",
		"run", run.ID,
		"created", stats.Created, "updated", stats.Updated, "unchanged", stats.Unchanged,
		"warnings", len(st.Warnings),
		"elapsed", finished.Sub(started).Round(time.Millisecond))
	return nil
}

// recordRun appends the run to the ledger. Ledger trouble never fails a
// build that already produced its artifacts.
func recordRun(ctx context.Context, cfg *config.Config, run history.Run, logger *slog.Logger) {
	if err := os.MkdirAll(cfg.CacheDir(), 0o755); err != nil {
		logger.Warn("history ledger skipped", "error", err)
		return
	}
	store, err := history.Open(filepath.Join(cfg.CacheDir(), "history.db"))
	if err != nil {
		logger.Warn("history ledger skipped", "error", err)
		return
	}
	defer store.Close()
	if err := store.Record(ctx, run); err != nil {
		logger.Warn("history record failed", "error", err)
	}
}

// Clean empties the build directory across all profiles. The cache stays:
// derived media is expensive and keyed by content, not by profile.
func Clean(cfg *config.Config, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	buildPath := filepath.Join(cfg.DataRoot, "build")
	entries, err := os.ReadDir(buildPath)
	if err != nil {
		if os.IsNotExist(err) {
			logger.Info("build directory does not exist, nothing to clean", "path", buildPath)
			return nil
		}
		return derrors.WrapFatal(err, derrors.CategoryFileSystem, "reading build directory").
			WithContext("path", buildPath)
	}
	for _, entry := range entries {
		target := filepath.Join(buildPath, entry.Name())
		if err := os.RemoveAll(target); err != nil {
			return derrors.WrapFatal(err, derrors.CategoryFileSystem, "removing build output").
				WithContext("path", target)
		}
	}
	logger.Info("build directory cleaned", "path", buildPath, "entries", len(entries))
	return nil
}
