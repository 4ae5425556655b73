package site

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"sitewright/internal/config"
	derrors "sitewright/internal/errors"
)

func writeScienceTemplates(t *testing.T, dir string) {
	t.Helper()
	writeFile(t, filepath.Join(dir, "templates", "science", "publications.html"),
		`<!doctype html><title>{{ .title }}</title>`+
			`{{ range .extra_head }}{{ . }}{{ end }}`+
			`{{ range .publications }}<h2>{{ .Title }}</h2>{{ end }}`)
	writeFile(t, filepath.Join(dir, "templates", "science", "index.html"),
		`<!doctype html><title>{{ .title }}</title>`+
			`{{ range .publications }}<h2>{{ .Title }}</h2>{{ end }}`+
			`<i>{{ index .open_graph "description" }}</i>`)
	writeFile(t, filepath.Join(dir, "templates", "science", "publications.xml"),
		`<rss>{{ range .pubs }}<item>{{ .Title }} / {{ .RFC2822Date }}</item>{{ end }}</rss>`)
	writeFile(t, filepath.Join(dir, "templates", "science", "publication-page.html"),
		`<!doctype html><title>{{ .title }}</title>`+
			`<link rel="stylesheet" href="{{ .css }}">`+
			`<article>{{ .publication.ContentHTML }}</article>`+
			`{{ if .publication.Downloads.zip }}<b>download-zip</b>{{ end }}`+
			`{{ if .publication.HasBibTeX }}<b>bibtex</b>{{ end }}`+
			`<i>{{ index .open_graph "description" }}</i>`)
	writeFile(t, filepath.Join(dir, "templates", "science", "teaching.html"),
		`<!doctype html><title>{{ .title }}</title>`+
			`{{ range .student_theses }}<h3>{{ .title }} ({{ .student }})</h3>`+
			`{{ with .has_thumbnail }}<b>thumb</b>{{ end }}{{ end }}`+
			`<i>{{ index .open_graph "description" }}</i>`)
}

func TestPublicationsStage(t *testing.T) {
	dir := t.TempDir()
	writeScienceTemplates(t, dir)
	writeFile(t, filepath.Join(dir, "cache", "orcid", "100.json"), `{
		"id": 100, "url_id": "stream-semantics", "title": "Stream Semantics",
		"type": "conference-paper", "year": "2023", "month": "6", "day": "12",
		"authors": ["Roe, Jane"], "journal": "Proceedings of Streams"
	}`)
	writeFile(t, filepath.Join(dir, "cache", "orcid", "200.json"), `{
		"id": 200, "url_id": "future-work", "title": "Future Work",
		"type": "conference-paper", "year": "2999", "month": "1", "day": "1",
		"authors": ["Roe, Jane"]
	}`)
	writeFile(t, filepath.Join(dir, "content", "science", "publications.json"), `{
		"100": {"abstract": "We prove things about streams."},
		"200": {"abstract": "Speculative."}
	}`)
	writeFile(t, filepath.Join(dir, "content", "science", "100.html"),
		"<p>inline article body</p>")
	writeFile(t, filepath.Join(dir, "content", "science", "100.zip"), "zip bytes")

	cfg := testConfig(dir, config.Site{
		Name: "science", Hostname: "science.example.org", OrcidID: "0000-0001-0002-0003",
	})
	st := newTestState(t, cfg)
	require.NoError(t, publicationsStage(context.Background(), st))

	// Source files become downloads named by the public id.
	require.Equal(t, "zip bytes", readBuilt(t, cfg, "science", "stream-semantics.zip"))

	bib := readBuilt(t, cfg, "science", "stream-semantics.bib")
	require.True(t, strings.HasPrefix(bib, "@inproceedings{Roe2023,"), bib)
	require.Contains(t, bib, "title = {Stream Semantics}")
	require.Contains(t, bib, "url = {https://science.example.org/stream-semantics}")

	detail := readBuilt(t, cfg, "science", "stream-semantics.html")
	require.Contains(t, detail, "inline article body")
	require.Contains(t, detail, "download-zip")
	require.Contains(t, detail, "bibtex")
	require.Contains(t, detail, "We prove things about streams.")
	require.Contains(t, detail, "publication.css")

	// The future-dated entry renders but offers no downloads.
	future := readBuilt(t, cfg, "science", "future-work.html")
	require.NotContains(t, future, "download-zip")

	listing := readBuilt(t, cfg, "science", "publications.html")
	require.Contains(t, listing, "Publications")
	require.Contains(t, listing, `rel="alternate"`)
	newest := strings.Index(listing, "Future Work")
	older := strings.Index(listing, "Stream Semantics")
	require.True(t, newest >= 0 && older >= 0 && newest < older, "registry not newest first:\n%s", listing)

	index := readBuilt(t, cfg, "science", "index.html")
	require.Contains(t, index, "Stream Semantics")
	require.Contains(t, index, "Science")

	feed := readBuilt(t, cfg, "science", "publications.xml")
	require.Contains(t, feed, "<item>Stream Semantics")

	pubsNode := st.Tree.Section("science").Child("publications")
	require.NotNil(t, pubsNode)
	require.Equal(t, 10, pubsNode.Weight)
	paper := pubsNode.Child("stream-semantics")
	require.NotNil(t, paper)
	require.Equal(t, -2023612, paper.Weight)
}

func TestPublicationsStageWithoutCache(t *testing.T) {
	dir := t.TempDir()
	writeScienceTemplates(t, dir)
	writeFile(t, filepath.Join(dir, "content", "science", "publications.json"), `{}`)

	cfg := testConfig(dir, config.Site{
		Name: "science", Hostname: "science.example.org", OrcidID: "0000-0001-0002-0003",
	})
	st := newTestState(t, cfg)
	err := publicationsStage(context.Background(), st)
	require.Error(t, err)
	require.False(t, derrors.IsFatal(err), "missing collaborator cache must degrade, not abort: %v", err)

	_, statErr := os.Stat(builtPath(cfg, "science", "publications.html"))
	require.True(t, os.IsNotExist(statErr), "listing must not render without the registry")
}

func TestPublicationsStageWithoutMetadataOverlay(t *testing.T) {
	dir := t.TempDir()
	writeScienceTemplates(t, dir)
	writeFile(t, filepath.Join(dir, "cache", "orcid", "100.json"), `{
		"id": 100, "url_id": "a", "title": "A", "type": "conference-paper",
		"year": "2023", "month": "1", "day": "1"
	}`)

	cfg := testConfig(dir, config.Site{
		Name: "science", Hostname: "science.example.org", OrcidID: "0000-0001-0002-0003",
	})
	st := newTestState(t, cfg)
	err := publicationsStage(context.Background(), st)
	require.Error(t, err)
	require.True(t, derrors.IsFatal(err), "a populated cache without the overlay file is a data error: %v", err)
}

func TestPublicationWithoutEntryTypeKeepsPage(t *testing.T) {
	dir := t.TempDir()
	writeScienceTemplates(t, dir)
	writeFile(t, filepath.Join(dir, "cache", "orcid", "300.json"), `{
		"id": 300, "url_id": "a-talk", "title": "A Talk", "type": "talk",
		"year": "2021", "month": "3", "day": "9", "authors": ["Roe, Jane"]
	}`)
	writeFile(t, filepath.Join(dir, "content", "science", "publications.json"), `{"300": {}}`)

	cfg := testConfig(dir, config.Site{
		Name: "science", Hostname: "science.example.org", OrcidID: "0000-0001-0002-0003",
	})
	st := newTestState(t, cfg)
	err := publicationsStage(context.Background(), st)
	require.Error(t, err)
	require.False(t, derrors.IsFatal(err))

	detail := readBuilt(t, cfg, "science", "a-talk.html")
	require.NotContains(t, detail, "bibtex")
	_, statErr := os.Stat(builtPath(cfg, "science", "a-talk.bib"))
	require.True(t, os.IsNotExist(statErr))
}

func TestThesesCompilation(t *testing.T) {
	dir := t.TempDir()
	writeScienceTemplates(t, dir)
	writeFile(t, filepath.Join(dir, "content", "science", "student_theses.json"), `{
		"1": {"url_id": "mapping-tool", "title": "Mapping Tool", "student": "Alex Smith",
		      "year": "2022", "month": "10", "day": "5", "enable_download": true},
		"2": {"url_id": "older-thesis", "title": "Older Thesis", "student": "Kim Lee",
		      "year": "2020", "month": "1", "day": "2"}
	}`)

	// No ORCID id: only the theses branch runs.
	cfg := testConfig(dir, config.Site{Name: "science", Hostname: "science.example.org"})
	st := newTestState(t, cfg)
	require.NoError(t, publicationsStage(context.Background(), st))

	teaching := readBuilt(t, cfg, "science", "teaching.html")
	require.Contains(t, teaching, "Mapping Tool (Alex Smith)")
	require.Contains(t, teaching, "Older Thesis (Kim Lee)")
	require.NotContains(t, teaching, "thumb", "no PDF, no preview")
	newer := strings.Index(teaching, "Mapping Tool")
	older := strings.Index(teaching, "Older Thesis")
	require.True(t, newer < older, "theses not newest first:\n%s", teaching)

	// Without its PDF a thesis is listed but offers no download.
	_, statErr := os.Stat(builtPath(cfg, "science", "mapping-tool.pdf"))
	require.True(t, os.IsNotExist(statErr))

	node := st.Tree.Section("science").Child("teaching")
	require.NotNil(t, node)
	require.Equal(t, 20, node.Weight)
	projects := node.Child("student_projects")
	require.NotNil(t, projects)
	require.Equal(t, "teaching#student_projects", projects.Path)
}

func TestThesesDownloadWithoutConverter(t *testing.T) {
	if _, err := exec.LookPath("convert"); err == nil {
		t.Skip("convert installed, the fake PDF fixture would fail it")
	}

	dir := t.TempDir()
	writeScienceTemplates(t, dir)
	writeFile(t, filepath.Join(dir, "content", "science", "student_theses.json"), `{
		"1": {"url_id": "mapping-tool", "title": "Mapping Tool", "student": "Alex Smith",
		      "year": "2022", "month": "10", "day": "5", "enable_download": true}
	}`)
	writeFile(t, filepath.Join(dir, "content", "science", "mapping-tool.pdf"), "%PDF-1.4 fake")

	cfg := testConfig(dir, config.Site{Name: "science", Hostname: "science.example.org"})
	st := newTestState(t, cfg)
	err := publicationsStage(context.Background(), st)
	require.Error(t, err)
	require.False(t, derrors.IsFatal(err), "missing converter must degrade, not abort: %v", err)

	// The download is in place even though the preview could not be made.
	require.Equal(t, "%PDF-1.4 fake", readBuilt(t, cfg, "science", "mapping-tool.pdf"))
	teaching := readBuilt(t, cfg, "science", "teaching.html")
	require.Contains(t, teaching, "Mapping Tool (Alex Smith)")
	require.NotContains(t, teaching, "thumb")
}
