package site

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"

	"sitewright/internal/artifact"
	"sitewright/internal/config"
	derrors "sitewright/internal/errors"
)

// thesisEntry is one supervised thesis. Fields keeps the full JSON object
// for the teaching template, the declared fields drive file handling.
type thesisEntry struct {
	URLID          string `json:"url_id"`
	Year           string `json:"year"`
	Month          string `json:"month"`
	Day            string `json:"day"`
	EnableDownload bool   `json:"enable_download"`

	Fields map[string]any `json:"-"`
}

func (t *thesisEntry) UnmarshalJSON(data []byte) error {
	type plain thesisEntry
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	fields := make(map[string]any)
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	*t = thesisEntry(p)
	t.Fields = fields
	return nil
}

func loadTheses(path string) ([]*thesisEntry, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, derrors.WrapFatal(err, derrors.CategoryFileSystem, "reading student theses").
			WithContext("path", path)
	}
	keyed := make(map[string]*thesisEntry)
	if err := json.Unmarshal(raw, &keyed); err != nil {
		return nil, derrors.WrapFatal(err, derrors.CategoryData, "decoding student theses").
			WithContext("path", path)
	}
	theses := make([]*thesisEntry, 0, len(keyed))
	for _, thesis := range keyed {
		theses = append(theses, thesis)
	}
	sort.SliceStable(theses, func(i, j int) bool {
		return theses[i].Year+theses[i].Month+theses[i].Day > theses[j].Year+theses[j].Month+theses[j].Day
	})
	return theses, nil
}

// compileTheses adds the thesis documents and their print previews to the
// build and renders the teaching page. Every listed thesis appears on the
// page; downloads and previews exist only for the ones whose PDF is in the
// content directory.
func (st *State) compileTheses(ctx context.Context, site config.Site, path string) error {
	theses, err := loadTheses(path)
	if err != nil {
		return err
	}

	sourceDir := filepath.Join(st.Config.ContentDir(), siteDir(site))
	var degraded error
	entries := make([]map[string]any, 0, len(theses))
	for _, thesis := range theses {
		entries = append(entries, thesis.Fields)
		pdfPath := filepath.Join(sourceDir, thesis.URLID+".pdf")
		if _, err := os.Stat(pdfPath); err != nil {
			continue
		}
		if thesis.EnableDownload {
			if _, err := st.writer(site).Write(artifact.FileTarget(thesis.URLID+".pdf", pdfPath)); err != nil {
				return err
			}
		}
		width, height, err := st.Media.Thumbnails(ctx, pdfPath, thesis.URLID, "student_theses", st.writer(site))
		if err != nil {
			if derrors.IsFatal(err) {
				return err
			}
			if degraded == nil {
				degraded = err
			}
		} else {
			thesis.Fields["has_thumbnail"] = true
			thesis.Fields["thumbnail_width"] = width
			thesis.Fields["thumbnail_height"] = height
		}
	}

	params := st.siteParams(site)
	params["title"] = "Teaching"
	params["self_path"] = "/teaching"
	params["student_theses"] = entries
	params["open_graph"] = map[string]string{"description": teachingDescription}
	st.Tree.Insert("Teaching", site.Name+"/teaching", "teaching", 20)
	st.Tree.Insert("Student Projects", site.Name+"/teaching/student_projects", "teaching#student_projects", 20)
	if err := st.renderPage(site, siteTemplate(site, "teaching.html"), params, "teaching.html"); err != nil {
		return err
	}
	return degraded
}
