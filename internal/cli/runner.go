// Package cli runs the external tools the media and deploy pipelines rely
// on (convert, pngcrush, cwebp, cavif, pdf2svg, rsync).
package cli

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"sync"

	derrors "sitewright/internal/errors"
)

// Runner executes external tools. Availability probes are memoized for the
// lifetime of the runner.
type Runner struct {
	logger *slog.Logger

	mu     sync.Mutex
	probes map[string]bool
}

func NewRunner(logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{logger: logger, probes: make(map[string]bool)}
}

// Available reports whether the tool can be found in PATH.
func (r *Runner) Available(tool string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if known, ok := r.probes[tool]; ok {
		return known
	}
	_, err := exec.LookPath(tool)
	r.probes[tool] = err == nil
	return err == nil
}

// Run executes the tool and returns its combined output. A failed run is a
// fatal collaborator error carrying the captured output.
func (r *Runner) Run(ctx context.Context, tool string, args ...string) ([]byte, error) {
	r.logger.Debug("running external tool", "tool", tool, "args", args)
	cmd := exec.CommandContext(ctx, tool, args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		cause := err
		if trimmed := bytes.TrimSpace(out); len(trimmed) > 0 {
			cause = fmt.Errorf("%w: %s", err, trimmed)
		}
		return out, derrors.WrapFatal(cause, derrors.CategoryCollaborator, "external tool failed").
			WithContext("tool", tool)
	}
	return out, nil
}

// Stream executes the tool with stdout and stderr attached to the build's
// own, for long running tools whose progress output matters.
func (r *Runner) Stream(ctx context.Context, tool string, args ...string) error {
	r.logger.Info("running external tool", "tool", tool, "args", args)
	cmd := exec.CommandContext(ctx, tool, args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return derrors.WrapFatal(err, derrors.CategoryCollaborator, "external tool failed").
			WithContext("tool", tool)
	}
	return nil
}
