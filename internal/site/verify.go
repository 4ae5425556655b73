package site

import (
	"context"
	"path/filepath"

	derrors "sitewright/internal/errors"
	"sitewright/internal/linkcheck"
)

// verifyLinksStage scans the emitted HTML of every site for internal
// references that do not resolve inside its build directory. Broken
// references degrade the run, they never fail it: the artifacts are already
// written and a re-run after fixing the content repairs the output.
func verifyLinksStage(_ context.Context, st *State) error {
	if !st.VerifyLinks {
		return nil
	}
	checker := linkcheck.New(st.Logger)
	var degraded error
	for _, site := range st.Config.Sites {
		dir := filepath.Join(st.Config.BuildRoot(), siteDir(site))
		report, err := checker.Verify(dir)
		if err != nil {
			if derrors.IsFatal(err) {
				return err
			}
			if degraded == nil {
				degraded = err
			}
		}
		if report != nil {
			st.Logger.Info("link verification",
				"site", site.Name, "pages", report.Pages, "refs", report.Refs, "broken", len(report.Broken))
		}
	}
	return degraded
}
