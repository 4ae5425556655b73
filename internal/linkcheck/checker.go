// Package linkcheck scans emitted HTML artifacts for internal references
// that do not resolve to a file in the build tree. External URLs and bare
// fragments are left alone.
package linkcheck

import (
	"fmt"
	"io/fs"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"

	derrors "sitewright/internal/errors"
)

// Broken is an internal reference that resolved to nothing.
type Broken struct {
	Page string // build-relative path of the referring document
	Ref  string // reference as written
	Tag  string
}

// Report summarizes one verification pass over a build tree.
type Report struct {
	Pages  int // HTML documents scanned
	Refs   int // internal references checked
	Broken []Broken
}

// Checker verifies internal references against the build tree.
type Checker struct {
	logger *slog.Logger
}

func New(logger *slog.Logger) *Checker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Checker{logger: logger}
}

// Verify walks buildDir, extracts the references of every HTML document,
// and resolves each internal one against the tree. A reference resolves if
// it names a file directly, with an .html suffix, or as a directory with
// an index.html. Unresolved references produce a warning; the build is not
// aborted over them.
func (c *Checker) Verify(buildDir string) (*Report, error) {
	report := &Report{}

	pages, err := htmlPages(buildDir)
	if err != nil {
		return report, err
	}

	for _, page := range pages {
		refs, err := pageRefs(filepath.Join(buildDir, page))
		if err != nil {
			return report, err
		}
		report.Pages++

		for _, ref := range refs {
			target, ok := internalTarget(ref.URL)
			if !ok {
				continue
			}
			report.Refs++
			if !resolves(buildDir, page, target) {
				report.Broken = append(report.Broken, Broken{Page: page, Ref: ref.URL, Tag: ref.Tag})
				c.logger.Warn("unresolved internal reference",
					"page", page, "ref", ref.URL, "tag", ref.Tag)
			}
		}
	}

	if len(report.Broken) > 0 {
		return report, derrors.Warning(derrors.CategoryData,
			fmt.Sprintf("%d unresolved internal references in %d pages", len(report.Broken), report.Pages))
	}

	c.logger.Debug("link verification passed", "pages", report.Pages, "refs", report.Refs)
	return report, nil
}

// htmlPages lists the build-relative paths of all HTML documents in the
// tree, sorted for deterministic reporting.
func htmlPages(buildDir string) ([]string, error) {
	var pages []string
	err := filepath.WalkDir(buildDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), ".html") {
			return nil
		}
		rel, err := filepath.Rel(buildDir, path)
		if err != nil {
			return err
		}
		pages = append(pages, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, derrors.WrapWarning(err, derrors.CategoryFileSystem, "failed to scan build tree")
	}
	sort.Strings(pages)
	return pages, nil
}

func pageRefs(path string) ([]Ref, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, derrors.WrapWarning(err, derrors.CategoryFileSystem, "failed to open HTML document")
	}
	defer file.Close()
	return ExtractRefs(file)
}

// internalTarget reports whether a reference points into the build tree
// and returns its path component. Anything with a scheme or host is
// external, and references without a path (bare fragments or queries)
// have nothing to resolve.
func internalTarget(ref string) (string, bool) {
	u, err := url.Parse(ref)
	if err != nil {
		// Unparseable references are checked as written.
		return ref, true
	}
	if u.Scheme != "" || u.Host != "" {
		return "", false
	}
	if u.Path == "" {
		return "", false
	}
	return u.Path, true
}

// resolves checks a reference path against the tree. Root-relative paths
// resolve from the build root, everything else from the directory of the
// referring document.
func resolves(buildDir, page, target string) bool {
	var local string
	if strings.HasPrefix(target, "/") {
		local = filepath.Join(buildDir, filepath.FromSlash(target))
	} else {
		local = filepath.Join(buildDir, filepath.Dir(filepath.FromSlash(page)), filepath.FromSlash(target))
	}

	for _, candidate := range []string{local, local + ".html", filepath.Join(local, "index.html")} {
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return true
		}
	}
	return false
}
