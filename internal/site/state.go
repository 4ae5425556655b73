package site

import (
	"maps"
	"strings"
	"time"

	"sitewright/internal/artifact"
	"sitewright/internal/cli"
	"sitewright/internal/config"
	"sitewright/internal/markdown"
	"sitewright/internal/media"
	"sitewright/internal/metrics"
	"sitewright/internal/render"
	"sitewright/internal/structure"

	"log/slog"
)

// State carries everything the stages share: configuration, the structure
// tree, per-site artifact writers and the collaborators. It lives for one
// run.
type State struct {
	Config   *config.Config
	Tree     *structure.Tree
	Engine   *render.Engine
	Markdown markdown.Support
	Runner   *cli.Runner
	Media    *media.Pipeline
	Metrics  metrics.Recorder
	Logger   *slog.Logger

	SkipSync    bool
	VerifyLinks bool

	// Warnings collects degraded stages for the run summary.
	Warnings []error

	writers map[string]*artifact.Writer
	base    map[string]any
}

func newState(cfg *config.Config, rec metrics.Recorder, logger *slog.Logger) *State {
	now := time.Now().UTC()
	base := make(map[string]any, len(cfg.Params)+5)
	maps.Copy(base, cfg.Params)
	base["author"] = cfg.Author
	base["protocol"] = cfg.Protocol
	base["hostname_suffix"] = cfg.HostnameSuffix
	base["current_year"] = now.Year()
	base["rfc_2822_now"] = now.Format("Mon, 02 Jan 2006 15:04:05 +0000")

	return &State{
		Config:  cfg,
		Tree:    structure.NewTree(),
		Runner:  cli.NewRunner(logger),
		Metrics: rec,
		Logger:  logger,
		writers: make(map[string]*artifact.Writer),
		base:    base,
	}
}

// siteDir is the per-site directory under the build root and the content
// and static roots.
func siteDir(site config.Site) string {
	return strings.ToLower(site.Name)
}

// writer returns the site's artifact writer. Writers are created by the
// configure stage and keep their staleness bookkeeping across stages.
func (st *State) writer(site config.Site) *artifact.Writer {
	return st.writers[site.Name]
}

// siteParams assembles the render parameters every template of a site sees.
// Page and section renders copy and extend them.
func (st *State) siteParams(site config.Site) map[string]any {
	params := make(map[string]any, len(st.base)+6)
	maps.Copy(params, st.base)
	params["current_site"] = site.Name
	params["site_dir"] = siteDir(site)
	params["hostname"] = site.Hostname
	params["accent_color"] = site.AccentColor
	params["base_url"] = st.Config.BaseURL(site)
	params["title"] = site.Name
	return params
}

// renderPage renders a template and adds the result to the site's build
// output. HTML destinations count toward the pages-rendered metric.
func (st *State) renderPage(site config.Site, template string, params map[string]any, dst string) error {
	output, err := st.Engine.Render(template, params)
	if err != nil {
		return err
	}
	if _, err := st.writer(site).Write(artifact.ContentTarget(dst, output)); err != nil {
		return err
	}
	if strings.HasSuffix(dst, ".html") {
		st.Metrics.AddPagesRendered(site.Name, 1)
	}
	return nil
}

// artifactTotals sums the outcome counts of every site writer.
func (st *State) artifactTotals() artifact.Stats {
	var total artifact.Stats
	for _, w := range st.writers {
		s := w.Stats()
		total.Created += s.Created
		total.Updated += s.Updated
		total.Unchanged += s.Unchanged
	}
	return total
}

// siteTemplate addresses a template inside the site's template directory.
func siteTemplate(site config.Site, name string) string {
	return siteDir(site) + "/" + name
}
