package site

import (
	"context"
	"encoding/json"
	"html/template"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"sitewright/internal/config"
	"sitewright/internal/content"
	derrors "sitewright/internal/errors"
)

// Listings describes the JSON-driven sections of a site, loaded from
// listings.json in the site's content directory. Each section renders one
// listing page plus a detail page per item; the optional index block
// renders the site index from the section data.
type Listings struct {
	Sections []*Section `json:"sections"`
	Index    *IndexPage `json:"index,omitempty"`
}

// Section is one listing: a titled, weighted group of items with its own
// templates and sort order.
type Section struct {
	ID           string  `json:"id"`
	Title        string  `json:"title"`
	Slug         string  `json:"slug"`
	Weight       int     `json:"weight"`
	Sort         string  `json:"sort,omitempty"` // title (default), date, date-desc
	Description  string  `json:"description,omitempty"`
	Image        string  `json:"image,omitempty"`
	ImageAlt     string  `json:"image_alt,omitempty"`
	ListTemplate string  `json:"list_template"`
	ItemTemplate string  `json:"item_template,omitempty"`
	Items        []*Item `json:"items,omitempty"`
}

// IndexPage composes the site index from the sections.
type IndexPage struct {
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
}

// Item is one listing entry. The declared fields drive page generation;
// Fields keeps the complete JSON object for the templates, including any
// keys this type does not know about.
type Item struct {
	URLID         string `json:"url_id"`
	Title         string `json:"title"`
	Summary       string `json:"summary,omitempty"`
	Date          string `json:"date,omitempty"` // YYYY-MM-DD
	Image         string `json:"image,omitempty"`
	ImageAlt      string `json:"image_alt,omitempty"`
	OGType        string `json:"og_type,omitempty"`
	OGDescription string `json:"og_description,omitempty"`
	CSS           string `json:"css,omitempty"`
	Include       string `json:"include,omitempty"`

	Fields map[string]any `json:"-"`
}

func (it *Item) UnmarshalJSON(data []byte) error {
	type plain Item
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	fields := make(map[string]any)
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	*it = Item(p)
	it.Fields = fields
	return nil
}

// LoadListings reads and validates a site's listings file. A site without
// one has no listings. Items missing their identity are dropped with a
// warning, structural problems are fatal.
func LoadListings(path string, logger *slog.Logger) (*Listings, error) {
	if logger == nil {
		logger = slog.Default()
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, derrors.WrapFatal(err, derrors.CategoryFileSystem, "reading listings").
			WithContext("path", path)
	}
	var listings Listings
	if err := json.Unmarshal(raw, &listings); err != nil {
		return nil, derrors.WrapFatal(err, derrors.CategoryData, "decoding listings").
			WithContext("path", path)
	}

	for _, section := range listings.Sections {
		if section.Title == "" || section.Slug == "" || section.ListTemplate == "" {
			return nil, derrors.Fatal(derrors.CategoryData, "listing section needs title, slug and list_template").
				WithContext("path", path).WithContext("section", section.ID)
		}
		if section.ID == "" {
			section.ID = section.Slug
		}
		if len(section.Items) > 0 && section.ItemTemplate == "" {
			return nil, derrors.Fatal(derrors.CategoryData, "listing section with items needs item_template").
				WithContext("path", path).WithContext("section", section.ID)
		}
		kept := section.Items[:0]
		for _, item := range section.Items {
			if item.URLID == "" || item.Title == "" {
				logger.Warn("listing item without url_id or title dropped",
					"path", path, "section", section.ID)
				continue
			}
			kept = append(kept, item)
		}
		section.Items = kept
		sortItems(section)
	}
	return &listings, nil
}

// sortItems orders a section's items: by lowercased title, or by date with
// the title as tie-break, or by date newest first. Detail page weights
// follow this order.
func sortItems(section *Section) {
	items := section.Items
	switch section.Sort {
	case "date":
		sort.SliceStable(items, func(i, j int) bool {
			if items[i].Date != items[j].Date {
				return items[i].Date < items[j].Date
			}
			return items[i].Title < items[j].Title
		})
	case "date-desc":
		sort.SliceStable(items, func(i, j int) bool { return items[i].Date > items[j].Date })
	default:
		sort.SliceStable(items, func(i, j int) bool {
			return strings.ToLower(items[i].Title) < strings.ToLower(items[j].Title)
		})
	}
}

// listingsStage renders the JSON-driven sections of every site that carries
// a listings file.
func listingsStage(_ context.Context, st *State) error {
	var degraded error
	for _, site := range st.Config.Sites {
		path := filepath.Join(st.Config.ContentDir(), siteDir(site), "listings.json")
		listings, err := LoadListings(path, st.Logger)
		if err != nil {
			return err
		}
		if listings == nil {
			continue
		}
		if err := st.compileListings(site, listings); err != nil {
			if derrors.IsFatal(err) {
				return err
			}
			if degraded == nil {
				degraded = err
			}
		}
	}
	return degraded
}

func (st *State) compileListings(site config.Site, listings *Listings) error {
	var degraded error
	for _, section := range listings.Sections {
		if err := st.compileSection(site, section); err != nil {
			if derrors.IsFatal(err) {
				return err
			}
			if degraded == nil {
				degraded = err
			}
		}
	}

	if listings.Index != nil {
		if err := st.compileListingsIndex(site, listings); err != nil {
			return err
		}
	}
	return degraded
}

// compileSection renders the listing page and the detail pages of one
// section. Detail pages get 1-based sequential weights in sorted order.
func (st *State) compileSection(site config.Site, section *Section) error {
	var degraded error

	items := make([]map[string]any, 0, len(section.Items))
	for _, item := range section.Items {
		if err := st.decorateItem(site, item); err != nil {
			if degraded == nil {
				degraded = err
			}
		}
		items = append(items, item.Fields)
	}

	params := st.siteParams(site)
	params["title"] = section.Title
	params["self_path"] = "/" + section.Slug
	params["items"] = items
	params["section_id"] = section.ID
	og := map[string]string{}
	if section.Description != "" {
		og["description"] = section.Description
	}
	if section.Image != "" {
		og["image"] = st.Config.BaseURL(site) + "/assets/" + section.Image
		og["image:alt"] = section.ImageAlt
	}
	params["open_graph"] = og
	st.Tree.Insert(section.Title, site.Name+"/"+section.Slug, section.Slug, section.Weight)
	if err := st.renderPage(site, siteTemplate(site, section.ListTemplate), params, section.Slug+".html"); err != nil {
		return err
	}

	for i, item := range section.Items {
		params := st.siteParams(site)
		params["title"] = item.Title
		params["self_path"] = "/" + item.URLID
		params["item"] = item.Fields
		params["css"] = item.CSS
		params["open_graph"] = itemOpenGraph(st.Config.BaseURL(site), item)
		breadcrumb := site.Name + "/" + section.Slug + "/" + item.URLID
		st.Tree.Insert(item.Title, breadcrumb, item.URLID, i+1)
		if err := st.renderPage(site, siteTemplate(site, section.ItemTemplate), params, item.URLID+".html"); err != nil {
			return err
		}
	}
	return degraded
}

// decorateItem derives the display fields templates expect: the pretty date
// and the raw include content.
func (st *State) decorateItem(site config.Site, item *Item) error {
	if item.Date != "" {
		date, err := time.Parse("2006-01-02", item.Date)
		if err != nil {
			st.Logger.Warn("listing item date not parseable", "item", item.URLID, "date", item.Date)
		} else {
			item.Fields["pretty_date"] = content.PrettyDate(date)
		}
	}
	if item.Include != "" {
		path := filepath.Join(st.Config.ContentDir(), siteDir(site), item.Include)
		raw, err := os.ReadFile(path)
		if err != nil {
			st.Logger.Warn("listing include missing, item rendered without it", "item", item.URLID, "path", path)
			return derrors.WrapWarning(err, derrors.CategoryData, "listing include missing").
				WithContext("item", item.URLID)
		}
		item.Fields["include_html"] = template.HTML(raw)
	}
	return nil
}

func itemOpenGraph(baseURL string, item *Item) map[string]string {
	og := map[string]string{}
	description := item.OGDescription
	if description == "" {
		description = item.Summary
	}
	if description != "" {
		og["description"] = description
	}
	if item.Image != "" {
		og["image"] = baseURL + "/assets/" + item.Image
		alt := item.ImageAlt
		if alt == "" {
			alt = item.Title + " logo"
		}
		og["image:alt"] = alt
	}
	if item.OGType != "" {
		og["type"] = item.OGType
	}
	return og
}

// compileListingsIndex renders the site index from the section data. The
// template receives every section's items keyed by section id and picks
// what it shows.
func (st *State) compileListingsIndex(site config.Site, listings *Listings) error {
	sections := make(map[string][]map[string]any, len(listings.Sections))
	for _, section := range listings.Sections {
		items := make([]map[string]any, 0, len(section.Items))
		for _, item := range section.Items {
			items = append(items, item.Fields)
		}
		sections[section.ID] = items
	}

	params := st.siteParams(site)
	title := listings.Index.Title
	if title == "" {
		title = site.NavigationTitle()
	}
	params["title"] = title
	params["self_path"] = ""
	params["sections"] = sections
	og := map[string]string{}
	if listings.Index.Description != "" {
		og["description"] = listings.Index.Description
	}
	params["open_graph"] = og
	return st.renderPage(site, siteTemplate(site, "index.html"), params, "index.html")
}
