// Package deploy mirrors the finished build to the profile's target root.
package deploy

import (
	"context"
	"log/slog"
	"strings"

	"sitewright/internal/cli"
	derrors "sitewright/internal/errors"
	"sitewright/internal/retry"
)

// Sync runs a one-way rsync mirror of buildRoot into targetRoot. Artifacts
// removed from the build are deleted on the far side and symlinked large
// files are copied as regular files. An empty targetRoot means the profile
// does not deploy. Remote targets can fail transiently, so the mirror is
// retried under the default backoff policy before the stage gives up.
func Sync(ctx context.Context, runner *cli.Runner, buildRoot, targetRoot string, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	if targetRoot == "" {
		logger.Info("profile has no sync target, skipping")
		return nil
	}
	if !runner.Available("rsync") {
		return derrors.Fatal(derrors.CategoryCollaborator, "rsync not available")
	}
	source := strings.TrimSuffix(buildRoot, "/") + "/"
	target := strings.TrimSuffix(targetRoot, "/") + "/"
	logger.Info("syncing build", "source", source, "target", target)
	return retry.Default().Do(ctx, logger, "rsync", func() error {
		return runner.Stream(ctx, "rsync",
			"--progress", "--recursive", "--copy-links", "--safe-links",
			"--times", "--perms", "--delete", source, target)
	})
}
