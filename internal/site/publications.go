package site

import (
	"context"
	"html/template"
	"os"
	"path/filepath"
	"sort"

	"sitewright/internal/artifact"
	"sitewright/internal/config"
	derrors "sitewright/internal/errors"
	"sitewright/internal/pubs"
)

// Fixed Open Graph descriptions of the publication pages. The page bodies
// come from templates; these are the social previews.
const (
	publicationsDescription = "This is an up-to-date list of all my academic publications. Every article is available to download for free."
	scienceDescription      = "In this part of the website you can find information about my research and teaching activities. You can take a look at my academic publications, student projects and theses I have supervised, as well as my academic community involvement."
	teachingDescription     = "This is an overview of some of my current and past teaching activity. See below for some interesting student projects taught or assisted by me, take a look at theses I supervised, get an overview of my teaching qualifications or refer to a complete list of courses I have taught."
)

// publicationsStage compiles the publication registry of every site with an
// ORCID id, and the supervised theses of every site that lists them.
func publicationsStage(ctx context.Context, st *State) error {
	var degraded error
	for _, site := range st.Config.Sites {
		if site.OrcidID != "" {
			if err := st.compilePublications(ctx, site); err != nil {
				if derrors.IsFatal(err) {
					return err
				}
				if degraded == nil {
					degraded = err
				}
			}
		}
		thesesPath := filepath.Join(st.Config.ContentDir(), siteDir(site), "student_theses.json")
		if _, err := os.Stat(thesesPath); err == nil {
			if err := st.compileTheses(ctx, site, thesesPath); err != nil {
				if derrors.IsFatal(err) {
					return err
				}
				if degraded == nil {
					degraded = err
				}
			}
		}
	}
	return degraded
}

// compilePublications renders the registry of one site: per-publication
// downloads, renditions, BibTeX snippets and detail pages, then the listing
// page, the index excerpt and the feed.
func (st *State) compilePublications(ctx context.Context, site config.Site) error {
	cacheDir := filepath.Join(st.Config.CacheDir(), "orcid")
	metadataPath := filepath.Join(st.Config.ContentDir(), siteDir(site), "publications.json")
	registry, err := pubs.LoadRegistry(cacheDir, metadataPath, st.Logger)
	if err != nil {
		return err
	}

	var degraded error
	for _, pub := range registry {
		if err := st.compilePublication(ctx, site, pub); err != nil {
			if derrors.IsFatal(err) {
				return err
			}
			if degraded == nil {
				degraded = err
			}
		}
	}

	params := st.siteParams(site)
	params["title"] = "Publications"
	params["self_path"] = "/publications"
	params["publications"] = registry
	params["open_graph"] = map[string]string{"description": publicationsDescription}
	params["extra_head"] = []template.HTML{
		`<link rel="alternate" type="application/rss+xml" href="/publications.xml">`,
	}
	st.Tree.Insert("Publications", site.Name+"/publications", "publications", 10)
	if err := st.renderPage(site, siteTemplate(site, "publications.html"), params, "publications.html"); err != nil {
		return err
	}

	excerpt := registry
	if len(excerpt) > 3 {
		excerpt = excerpt[:3]
	}
	params = st.siteParams(site)
	params["title"] = site.NavigationTitle()
	params["self_path"] = ""
	params["publications"] = excerpt
	params["open_graph"] = map[string]string{"description": scienceDescription}
	if err := st.renderPage(site, siteTemplate(site, "index.html"), params, "index.html"); err != nil {
		return err
	}

	params = st.siteParams(site)
	params["pubs"] = registry
	if err := st.renderPage(site, siteTemplate(site, "publications.xml"), params, "publications.xml"); err != nil {
		return err
	}
	return degraded
}

// compilePublication prepares one publication: its source files become
// downloads and inline content, the PDF drives thumbnails and page
// extracts, and the detail page is rendered last. Unpublished entries keep
// their files out of the build outside the dev profile.
func (st *State) compilePublication(ctx context.Context, site config.Site, pub *pubs.Publication) error {
	sourceDir := filepath.Join(st.Config.ContentDir(), siteDir(site))
	files, err := filepath.Glob(filepath.Join(sourceDir, pub.ID.String()+".*"))
	if err != nil {
		return derrors.WrapFatal(err, derrors.CategoryFileSystem, "listing publication files").
			WithContext("id", pub.ID.String())
	}
	sort.Strings(files)

	published := !pub.NotPublishedYet
	var degraded error
	for _, file := range files {
		ext := filepath.Ext(file)
		if ext == ".html" {
			if published || st.Config.IsDev() {
				raw, err := os.ReadFile(file)
				if err != nil {
					return derrors.WrapFatal(err, derrors.CategoryFileSystem, "reading publication content").
						WithContext("path", file)
				}
				pub.ContentHTML = template.HTML(raw)
			}
			continue
		}

		if _, err := st.writer(site).Write(artifact.FileTarget(pub.URLID+ext, file)); err != nil {
			return err
		}
		if published {
			pub.MarkDownload(ext)
		}

		if ext == ".pdf" {
			width, height, err := st.Media.Thumbnails(ctx, file, pub.URLID, "publications", st.writer(site))
			if err != nil {
				if derrors.IsFatal(err) {
					return err
				}
				if degraded == nil {
					degraded = err
				}
			} else {
				pub.HasThumbnail = true
				pub.ThumbnailWidth = width
				pub.ThumbnailHeight = height
			}

			if pub.ContentHTML == "" && published {
				pages, err := st.Media.PageExtracts(ctx, file, pub.URLID, "publications", st.writer(site))
				if err != nil {
					if derrors.IsFatal(err) {
						return err
					}
					if degraded == nil {
						degraded = err
					}
				} else {
					pub.ContentSVGPages = pages
				}
			}
		}
	}

	entry, err := pubs.Entry(pub, st.Config.BaseURL(site)+"/"+pub.URLID)
	if err != nil {
		st.Logger.Warn("publication kept without citation snippet", "id", pub.ID.String(), "error", err)
		if degraded == nil {
			degraded = err
		}
	} else {
		if _, err := st.writer(site).Write(artifact.ContentTarget(pub.URLID+".bib", []byte(entry))); err != nil {
			return err
		}
		pub.HasBibTeX = true
	}

	params := st.siteParams(site)
	params["title"] = pub.Title
	params["self_path"] = "/" + pub.URLID
	params["publication"] = pub
	params["css"] = "publication.css"
	og := map[string]string{
		"type":      "article",
		"image":     st.Config.BaseURL(site) + "/assets/" + pub.URLID + "_thumbnail-2x.png",
		"image:alt": "First page of the print version of this article",
	}
	if description := pubs.Description(pub.Abstract); description != "" {
		og["description"] = description
	}
	params["open_graph"] = og
	st.Tree.Insert(pub.Title, site.Name+"/publications/"+pub.URLID, pub.URLID, pub.Weight())
	if err := st.renderPage(site, siteTemplate(site, "publication-page.html"), params, pub.URLID+".html"); err != nil {
		return err
	}
	return degraded
}
