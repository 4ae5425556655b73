package site

import (
	"context"
	"html/template"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"sitewright/internal/config"
	"sitewright/internal/content"
	derrors "sitewright/internal/errors"
	"sitewright/internal/render"
)

// pageDestination is expanded with the page parameters to name the output.
const pageDestination = "{{ slug }}.html"

// pagesStage compiles the content pages of every site.
func pagesStage(_ context.Context, st *State) error {
	for _, site := range st.Config.Sites {
		for _, source := range pageSources(st.Config, site) {
			if err := st.compilePage(site, source); err != nil {
				return err
			}
		}
	}
	return nil
}

// pageSources lists the content sources of a site: its own directory first,
// then the shared directory minus anything the site overrides by basename.
func pageSources(cfg *config.Config, site config.Site) []string {
	var sources []string
	siteOwned := make(map[string]bool)

	siteContent := filepath.Join(cfg.ContentDir(), siteDir(site))
	for _, name := range listPageFiles(siteContent) {
		siteOwned[name] = true
		sources = append(sources, filepath.Join(siteContent, name))
	}

	shared := filepath.Join(cfg.ContentDir(), "all")
	for _, name := range listPageFiles(shared) {
		if siteOwned[name] {
			continue
		}
		sources = append(sources, filepath.Join(shared, name))
	}
	return sources
}

// listPageFiles returns the page source basenames of a directory, sorted.
// A missing directory yields none.
func listPageFiles(dir string) []string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	var names []string
	for _, entry := range entries {
		if entry.IsDir() || !content.IsPageSource(entry.Name()) {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)
	return names
}

// compilePage renders one content source through the page template, derives
// its self path, inserts it into the structure tree and adds the output to
// the build.
func (st *State) compilePage(site config.Site, source string) error {
	page, err := content.LoadPage(source, st.Markdown)
	if err != nil {
		return err
	}

	params := st.siteParams(site)
	for key, value := range page.Headers {
		params[key] = value
	}
	params["slug"] = page.Slug
	params["date"] = page.Date.Format("2006-01-02")
	params["content"] = template.HTML(page.Body)
	params["open_graph"] = page.OpenGraph

	dst := render.Expand(pageDestination, params)

	if !page.Hidden {
		params["self_path"] = content.SelfPath(dst)
	}

	extraHead := []template.HTML{}
	// The imprint is reachable but kept out of search results.
	if dst == "imprint.html" {
		extraHead = append(extraHead, `<meta name="robots" content="noindex, follow">`)
	}
	params["extra_head"] = extraHead

	title := site.Name
	if t, ok := page.Headers["title"]; ok {
		title = t
	}

	if !page.Hidden && dst != "index.html" {
		breadcrumb := strings.TrimSuffix(dst, ".html")
		weight := 0
		if value, ok := page.Headers["breadcrumb"]; ok {
			breadcrumb, weight, err = content.ParseBreadcrumb(value)
			if err != nil {
				return derrors.WrapFatal(err, derrors.CategoryData, "invalid breadcrumb header").
					WithContext("source", source)
			}
		}
		st.Tree.Insert(title, site.Name+"/"+breadcrumb, strings.TrimSuffix(dst, ".html"), weight)
	}

	return st.renderPage(site, "page.html", params, dst)
}
