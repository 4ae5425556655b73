package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/alecthomas/kong"

	"sitewright/internal/config"
	"sitewright/internal/history"
	"sitewright/internal/metrics"
	"sitewright/internal/site"
	"sitewright/internal/version"
	"sitewright/internal/watch"
)

var CLI struct {
	Config  string           `short:"c" help:"Parameter file path" default:"sitewright.yaml"`
	Verbose bool             `short:"v" help:"Enable verbose logging"`
	Version kong.VersionFlag `short:"V" help:"Print version and exit"`

	Build struct {
		Production  bool   `short:"p" help:"Build with the production profile"`
		SkipSync    bool   `help:"Generate only, do not sync to the deploy target"`
		VerifyLinks bool   `help:"Check internal references after generation"`
		MetricsFile string `help:"Write build metrics to this file in Prometheus text format"`
	} `cmd:"" help:"Generate all configured sites and sync them to the deploy target"`

	Watch struct {
		Production   bool          `short:"p" help:"Build with the production profile"`
		SkipSync     bool          `help:"Generate only, do not sync to the deploy target"`
		VerifyLinks  bool          `help:"Check internal references after each build"`
		Debounce     time.Duration `help:"Quiet period after a change before rebuilding" default:"2s"`
		RefreshEvery time.Duration `help:"Also rebuild on a fixed interval, 0s disables" default:"0s"`
	} `cmd:"" help:"Rebuild whenever content, statics or templates change"`

	Clean struct{} `cmd:"" help:"Remove the build output of every profile"`

	History struct {
		Limit int `short:"n" help:"Number of runs to show" default:"10"`
	} `cmd:"" help:"Show recent build runs"`

	Init struct {
		Force bool `help:"Overwrite an existing parameter file"`
	} `cmd:"" help:"Write a starter parameter file"`
}

func main() {
	ctx := kong.Parse(&CLI, kong.Vars{"version": version.String()})

	level := slog.LevelInfo
	if CLI.Verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	runCtx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	switch ctx.Command() {
	case "build":
		if err := runBuild(runCtx, logger); err != nil {
			// The build logger already reported the failure.
			os.Exit(1)
		}
	case "watch":
		if err := runWatch(runCtx, logger); err != nil {
			slog.Error("watch failed", "error", err)
			os.Exit(1)
		}
	case "clean":
		if err := runClean(logger); err != nil {
			slog.Error("clean failed", "error", err)
			os.Exit(1)
		}
	case "history":
		if err := runHistory(runCtx); err != nil {
			slog.Error("history failed", "error", err)
			os.Exit(1)
		}
	case "init":
		if err := config.Init(CLI.Config, CLI.Init.Force); err != nil {
			slog.Error("init failed", "error", err)
			os.Exit(1)
		}
		logger.Info("parameter file written", "path", CLI.Config)
	}
}

func runBuild(ctx context.Context, logger *slog.Logger) error {
	opts := site.Options{
		ConfigPath:  CLI.Config,
		Production:  CLI.Build.Production,
		SkipSync:    CLI.Build.SkipSync,
		VerifyLinks: CLI.Build.VerifyLinks,
		Logger:      logger,
	}
	var rec *metrics.PrometheusRecorder
	if CLI.Build.MetricsFile != "" {
		rec = metrics.NewPrometheusRecorder(nil)
		opts.Metrics = rec
	}

	buildErr := site.Build(ctx, opts)

	// Export whatever was collected, a failed run included.
	if rec != nil {
		if err := rec.WriteTextfile(CLI.Build.MetricsFile); err != nil {
			logger.Warn("metrics textfile not written", "path", CLI.Build.MetricsFile, "error", err)
		}
	}
	return buildErr
}

func runWatch(ctx context.Context, logger *slog.Logger) error {
	profile := ""
	if CLI.Watch.Production {
		profile = "prod"
	}
	cfg, err := config.Load(CLI.Config, profile)
	if err != nil {
		return err
	}

	dirs := []string{cfg.ContentDir(), cfg.StaticDir(), cfg.TemplatesDir()}
	build := func(ctx context.Context) error {
		return site.Build(ctx, site.Options{
			ConfigPath:  CLI.Config,
			Production:  CLI.Watch.Production,
			SkipSync:    CLI.Watch.SkipSync,
			VerifyLinks: CLI.Watch.VerifyLinks,
			Logger:      logger,
		})
	}
	return watch.New(dirs, build, CLI.Watch.Debounce, CLI.Watch.RefreshEvery, logger).Run(ctx)
}

func runClean(logger *slog.Logger) error {
	cfg, err := config.Load(CLI.Config, "")
	if err != nil {
		return err
	}
	return site.Clean(cfg, logger)
}

func runHistory(ctx context.Context) error {
	cfg, err := config.Load(CLI.Config, "")
	if err != nil {
		return err
	}
	path := filepath.Join(cfg.CacheDir(), "history.db")
	if _, err := os.Stat(path); os.IsNotExist(err) {
		fmt.Println("no runs recorded yet")
		return nil
	}

	store, err := history.Open(path)
	if err != nil {
		return err
	}
	defer store.Close()

	runs, err := store.List(ctx, CLI.History.Limit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("no runs recorded yet")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "STARTED\tPROFILE\tSTATUS\tCREATED\tUPDATED\tUNCHANGED\tREVISION")
	for _, run := range runs {
		revision := run.Revision
		if len(revision) > 8 {
			revision = revision[:8]
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%d\t%s\n",
			run.StartedAt.Local().Format("2006-01-02 15:04:05"),
			run.Profile, run.Status, run.Created, run.Updated, run.Unchanged, revision)
		if run.Error != "" {
			fmt.Fprintf(w, "\t\terror: %s\n", run.Error)
		}
	}
	return w.Flush()
}
