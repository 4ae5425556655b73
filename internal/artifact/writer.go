package artifact

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	derrors "sitewright/internal/errors"
	"sitewright/internal/optimize"
)

// SymlinkThreshold is the file-source size in bytes above which an artifact
// is symlinked to its source instead of copied into the build tree.
const SymlinkThreshold = 4 * 1024 * 1024

// artifactMode is applied to every regular file the writer creates or
// rewrites. Symlinks are never chmodded.
const artifactMode = 0o644

// Outcome reports what a Write did to the artifact on disk.
type Outcome int

const (
	Unchanged Outcome = iota
	Created
	Updated
)

func (o Outcome) String() string {
	switch o {
	case Created:
		return "created"
	case Updated:
		return "updated"
	default:
		return "unchanged"
	}
}

// Target describes one artifact destined for the build output directory.
// Exactly one of SourceFile and Content is the source: SourceFile when it is
// non-empty, literal Content otherwise.
type Target struct {
	// Path is the destination relative to the writer root. A leading slash
	// is tolerated and stripped.
	Path string
	// SourceFile is the filesystem path of a file source.
	SourceFile string
	// Content is literal in-memory content, usually rendered output.
	Content []byte
}

// FileTarget builds a target backed by a source file.
func FileTarget(path, sourceFile string) Target {
	return Target{Path: path, SourceFile: sourceFile}
}

// ContentTarget builds a target backed by in-memory content.
func ContentTarget(path string, content []byte) Target {
	return Target{Path: path, Content: content}
}

// Stats counts outcomes over the lifetime of a Writer.
type Stats struct {
	Created   int
	Updated   int
	Unchanged int
}

// Writer materializes targets under a root directory, reusing artifacts that
// are already up to date. It is not safe for concurrent use; a build run is
// strictly sequential.
type Writer struct {
	root       string
	dispatcher *optimize.Dispatcher
	logger     *slog.Logger

	// fingerprints remembers the raw-content fingerprint of every inline
	// target materialized this run, keyed by logical path. A repeated write
	// of identical content skips both the transform and all disk I/O.
	fingerprints map[string]string

	stats Stats
}

// NewWriter creates a writer rooted at root. The dispatcher selects the
// transform applied to copied and inline content.
func NewWriter(root string, dispatcher *optimize.Dispatcher, logger *slog.Logger) *Writer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Writer{
		root:         root,
		dispatcher:   dispatcher,
		logger:       logger,
		fingerprints: make(map[string]string),
	}
}

// Root returns the directory artifacts are written under.
func (w *Writer) Root() string {
	return w.root
}

// Stats returns the outcome counts accumulated so far.
func (w *Writer) Stats() Stats {
	return w.stats
}

// Write materializes the target, deciding between literal write, copy-with-
// transform and symlink, and returns what happened. Writing an unchanged
// target is a no-op: no bytes hit the disk and the artifact's mtime does not
// move.
func (w *Writer) Write(target Target) (Outcome, error) {
	rel := strings.TrimPrefix(target.Path, "/")
	dst := filepath.Join(w.root, rel)

	var outcome Outcome
	var err error
	if target.SourceFile != "" {
		outcome, err = w.writeFromFile(dst, rel, target.SourceFile)
	} else {
		outcome, err = w.writeInline(dst, rel, target.Content)
	}
	if err != nil {
		return Unchanged, err
	}

	switch outcome {
	case Created:
		w.stats.Created++
	case Updated:
		w.stats.Updated++
	default:
		w.stats.Unchanged++
	}
	w.logger.Debug("artifact", "path", rel, "outcome", outcome)
	return outcome, nil
}

func (w *Writer) writeInline(dst, rel string, content []byte) (Outcome, error) {
	fp := Fingerprint(content)

	info, err := os.Lstat(dst)
	if err != nil {
		if !os.IsNotExist(err) {
			return Unchanged, w.ioError(err, "stat artifact", rel)
		}
		if err := w.createInline(dst, rel, content, fp); err != nil {
			return Unchanged, err
		}
		return Created, nil
	}

	// Never write through an existing link; replace it with a real file.
	if info.Mode()&os.ModeSymlink != 0 {
		if err := os.Remove(dst); err != nil {
			return Unchanged, w.ioError(err, "remove artifact link", rel)
		}
		if err := w.createInline(dst, rel, content, fp); err != nil {
			return Unchanged, err
		}
		return Updated, nil
	}

	if prev, ok := w.fingerprints[rel]; ok && prev == fp {
		return Unchanged, nil
	}

	out, err := w.dispatcher.Transform(content, filepath.Ext(rel))
	if err != nil {
		return Unchanged, err
	}
	current, err := os.ReadFile(dst)
	if err != nil {
		return Unchanged, w.ioError(err, "read artifact", rel)
	}
	if bytes.Equal(current, out) {
		w.fingerprints[rel] = fp
		return Unchanged, nil
	}
	if err := w.writeFile(dst, rel, out); err != nil {
		return Unchanged, err
	}
	w.fingerprints[rel] = fp
	return Updated, nil
}

func (w *Writer) createInline(dst, rel string, content []byte, fp string) error {
	out, err := w.dispatcher.Transform(content, filepath.Ext(rel))
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return w.ioError(err, "create artifact directory", rel)
	}
	if err := w.writeFile(dst, rel, out); err != nil {
		return err
	}
	w.fingerprints[rel] = fp
	return nil
}

func (w *Writer) writeFromFile(dst, rel, sourceFile string) (Outcome, error) {
	src, err := os.Stat(sourceFile)
	if err != nil {
		return Unchanged, w.ioError(err, "stat source", rel)
	}
	large := src.Size() > SymlinkThreshold

	info, err := os.Lstat(dst)
	if err != nil {
		if !os.IsNotExist(err) {
			return Unchanged, w.ioError(err, "stat artifact", rel)
		}
		if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
			return Unchanged, w.ioError(err, "create artifact directory", rel)
		}
		if err := w.materialize(dst, rel, sourceFile, src, large); err != nil {
			return Unchanged, err
		}
		return Created, nil
	}

	if info.Mode()&os.ModeSymlink != 0 {
		if large {
			linkTarget, err := os.Readlink(dst)
			if err != nil {
				return Unchanged, w.ioError(err, "read artifact link", rel)
			}
			abs, err := filepath.Abs(sourceFile)
			if err != nil {
				return Unchanged, w.ioError(err, "resolve source path", rel)
			}
			if linkTarget == abs {
				return Unchanged, nil
			}
		}
		// The source shrank below the threshold or the link points at a
		// different file. Either way the link is stale.
		if err := os.Remove(dst); err != nil {
			return Unchanged, w.ioError(err, "remove artifact link", rel)
		}
		if err := w.materialize(dst, rel, sourceFile, src, large); err != nil {
			return Unchanged, err
		}
		return Updated, nil
	}

	if large {
		// The source grew past the threshold; the copied artifact becomes
		// a link.
		if err := os.Remove(dst); err != nil {
			return Unchanged, w.ioError(err, "remove artifact", rel)
		}
		if err := w.materialize(dst, rel, sourceFile, src, large); err != nil {
			return Unchanged, err
		}
		return Updated, nil
	}

	stale := !src.ModTime().Equal(info.ModTime())
	if !stale && w.dispatcher.SizeStable(filepath.Ext(rel)) && src.Size() != info.Size() {
		stale = true
	}
	if !stale {
		return Unchanged, nil
	}
	if err := w.materialize(dst, rel, sourceFile, src, large); err != nil {
		return Unchanged, err
	}
	return Updated, nil
}

// materialize places the artifact for a file source: a symlink for large
// sources, otherwise the transformed content with the source mtime copied
// onto it so the next run's stat comparison is an equality check.
func (w *Writer) materialize(dst, rel, sourceFile string, src os.FileInfo, large bool) error {
	if large {
		abs, err := filepath.Abs(sourceFile)
		if err != nil {
			return w.ioError(err, "resolve source path", rel)
		}
		if err := os.Symlink(abs, dst); err != nil {
			return w.ioError(err, "symlink artifact", rel)
		}
		return nil
	}

	raw, err := os.ReadFile(sourceFile)
	if err != nil {
		return w.ioError(err, "read source", rel)
	}
	out, err := w.dispatcher.Transform(raw, filepath.Ext(rel))
	if err != nil {
		return err
	}
	if err := w.writeFile(dst, rel, out); err != nil {
		return err
	}
	if err := os.Chtimes(dst, src.ModTime(), src.ModTime()); err != nil {
		return w.ioError(err, "copy source mtime", rel)
	}
	return nil
}

// writeFile writes content and pins the fixed artifact mode. os.WriteFile
// alone is not enough: its mode argument is subject to the umask on create
// and ignored on overwrite.
func (w *Writer) writeFile(dst, rel string, content []byte) error {
	if err := os.WriteFile(dst, content, artifactMode); err != nil {
		return w.ioError(err, "write artifact", rel)
	}
	if err := os.Chmod(dst, artifactMode); err != nil {
		return w.ioError(err, "chmod artifact", rel)
	}
	return nil
}

func (w *Writer) ioError(err error, action, rel string) error {
	return derrors.WrapFatal(err, derrors.CategoryFileSystem, action).WithContext("path", rel)
}
