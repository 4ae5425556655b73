package site

import (
	"context"
	"encoding/xml"
	"sort"

	"sitewright/internal/artifact"
	derrors "sitewright/internal/errors"
	"sitewright/internal/structure"
)

// finalizeStructureStage freezes the shared tree after every site has
// inserted its entries: children are weight-ordered and cross-cutting
// entries shared by all sections are collated into single top-level nodes.
func finalizeStructureStage(_ context.Context, st *State) error {
	if err := st.Tree.Finalize(true); err != nil {
		return derrors.WrapFatal(err, derrors.CategoryInternal, "finalizing structure tree")
	}
	return nil
}

type sitemapURL struct {
	Loc string `xml:"loc"`
}

type sitemapURLSet struct {
	XMLName xml.Name     `xml:"urlset"`
	Xmlns   string       `xml:"xmlns,attr"`
	URLs    []sitemapURL `xml:"url"`
}

// machineSitemap renders the alphabetically ordered URL set of one site
// section.
func machineSitemap(section *structure.Node, baseURL string) ([]byte, error) {
	entries := structure.Flatten(section, baseURL+"/")
	sort.Strings(entries)

	set := sitemapURLSet{Xmlns: "http://www.sitemaps.org/schemas/sitemap/0.9"}
	for _, entry := range entries {
		set.URLs = append(set.URLs, sitemapURL{Loc: entry})
	}
	body, err := xml.MarshalIndent(set, "", "  ")
	if err != nil {
		return nil, derrors.WrapFatal(err, derrors.CategoryInternal, "encoding sitemap")
	}
	return append([]byte(xml.Header), append(body, '\n')...), nil
}

// sitemapsStage writes the per-site machine sitemap and renders the human
// sitemap page against the finalized tree.
func sitemapsStage(_ context.Context, st *State) error {
	for _, site := range st.Config.Sites {
		section := st.Tree.Section(site.Name)
		if section == nil {
			return derrors.Fatal(derrors.CategoryInternal, "site section missing from structure tree").
				WithContext("site", site.Name)
		}
		body, err := machineSitemap(section, st.Config.BaseURL(site))
		if err != nil {
			return err
		}
		if _, err := st.writer(site).Write(artifact.ContentTarget("sitemap.xml", body)); err != nil {
			return err
		}

		params := st.siteParams(site)
		params["title"] = "Sitemap"
		params["self_path"] = "/sitemap"
		params["structure"] = st.Tree.Root().Children()
		params["open_graph"] = map[string]string{
			"description": "This is a human-readable complete sitemap for this website.",
		}
		if err := st.renderPage(site, "sitemap.html", params, "sitemap.html"); err != nil {
			return err
		}
	}
	return nil
}
