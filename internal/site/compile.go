package site

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"

	"sitewright/internal/artifact"
	"sitewright/internal/deploy"
	derrors "sitewright/internal/errors"
	"sitewright/internal/markdown"
	"sitewright/internal/media"
	"sitewright/internal/optimize"
	"sitewright/internal/render"
)

// configureStage probes the collaborators, loads the templates and seeds the
// structure tree with one root per site plus its sitemap entry. Site order
// decides the root weights and thereby every tie-break downstream.
func configureStage(_ context.Context, st *State) error {
	st.Markdown = markdown.Detect()
	if !st.Markdown.Available() {
		st.Logger.Warn("markdown converter unavailable, sources pass through raw", "reason", st.Markdown.Reason())
	}

	engine, err := render.Load(st.Config.TemplatesDir())
	if err != nil {
		return err
	}
	st.Engine = engine

	st.Media = media.NewPipeline(st.Config.TemplatesDir(), st.Config.CacheDir(), st.Runner, st.Logger)

	dispatcher := optimize.NewDispatcher()
	for i, site := range st.Config.Sites {
		root := filepath.Join(st.Config.BuildRoot(), siteDir(site))
		st.writers[site.Name] = artifact.NewWriter(root, dispatcher, st.Logger)

		st.Tree.Insert(site.NavigationTitle(), site.Name, st.Config.BaseURL(site), i+1)
		st.Tree.Insert("Sitemap", site.Name+"/sitemap", "sitemap", 999)
	}
	return nil
}

// staticAssetsStage adds every file below the shared and the site-specific
// static root, keyed by its path relative to that root. The site pass runs
// second, so site files override shared ones.
func staticAssetsStage(_ context.Context, st *State) error {
	for _, site := range st.Config.Sites {
		for _, source := range []string{"all", siteDir(site)} {
			root := filepath.Join(st.Config.StaticDir(), source)
			if _, err := os.Stat(root); os.IsNotExist(err) {
				continue
			}
			err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
				if err != nil {
					return derrors.WrapFatal(err, derrors.CategoryFileSystem, "walking static assets").
						WithContext("root", root)
				}
				if d.IsDir() {
					return nil
				}
				rel, err := filepath.Rel(root, path)
				if err != nil {
					return derrors.WrapFatal(err, derrors.CategoryFileSystem, "walking static assets").
						WithContext("path", path)
				}
				_, err = st.writer(site).Write(artifact.FileTarget(filepath.ToSlash(rel), path))
				return err
			})
			if err != nil {
				return err
			}
		}
	}
	return nil
}

// extraTemplatesStage renders the standalone templates next to the pages:
// the stylesheet and the robots policy. A data root without them simply
// skips them.
func extraTemplatesStage(_ context.Context, st *State) error {
	for _, site := range st.Config.Sites {
		for _, name := range []string{"main.css", "robots.txt"} {
			if !st.Engine.Has(name) {
				continue
			}
			if err := st.renderPage(site, name, st.siteParams(site), name); err != nil {
				return err
			}
		}
	}
	return nil
}

// mediaStage derives the per-site favicon set and the error page imagery.
func mediaStage(ctx context.Context, st *State) error {
	for _, site := range st.Config.Sites {
		accent := site.Accent.NRGBA()
		if err := st.Media.Favicons(ctx, siteDir(site), accent, st.writer(site)); err != nil {
			return err
		}
		if err := st.Media.ErrorPage(ctx, siteDir(site), accent, st.writer(site)); err != nil {
			return err
		}
	}
	return nil
}

// syncStage mirrors the build output to the deploy target.
func syncStage(ctx context.Context, st *State) error {
	if st.SkipSync {
		st.Logger.Info("sync skipped on request")
		return nil
	}
	return deploy.Sync(ctx, st.Runner, st.Config.BuildRoot(), st.Config.TargetRoot(), st.Logger)
}
