// Package pubs maintains the publication registry: collaborator-cached
// records merged with a locally maintained metadata overlay, plus the
// BibTeX snippets and feed data derived from them.
package pubs

import (
	"encoding/json"
	"errors"
	"html/template"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"sitewright/internal/content"
	derrors "sitewright/internal/errors"
)

// Publication is one entry in the registry. The bibliographic fields come
// from the cached records and the metadata overlay, the remaining fields are
// derived during load and file preparation.
type Publication struct {
	ID               json.Number `json:"id"`
	URLID            string      `json:"url_id"`
	Title            string      `json:"title"`
	Type             string      `json:"type"`
	Year             string      `json:"year"`
	Month            string      `json:"month"`
	Day              string      `json:"day"`
	Authors          []string    `json:"authors"`
	Editors          []string    `json:"editors"`
	Journal          string      `json:"journal"`
	Publisher        string      `json:"publisher"`
	Address          string      `json:"address"`
	Series           string      `json:"series"`
	Volume           string      `json:"volume"`
	Pages            string      `json:"pages"`
	NumPages         string      `json:"numpages"`
	Location         string      `json:"location"`
	DOI              string      `json:"doi"`
	ISBN             string      `json:"isbn"`
	ParentISBN       string      `json:"parent-isbn"`
	Keywords         []string    `json:"keywords"`
	CanonicalURL     string      `json:"canonical_url"`
	Abstract         string      `json:"abstract"`
	ThesisType       string      `json:"thesis-type"`
	ThesisUniversity string      `json:"thesis-university"`

	NotPublishedYet bool            `json:"-"`
	RFC2822Date     string          `json:"-"`
	ContentHTML     template.HTML   `json:"-"`
	ContentSVGPages int             `json:"-"`
	HasThumbnail    bool            `json:"-"`
	ThumbnailWidth  int             `json:"-"`
	ThumbnailHeight int             `json:"-"`
	HasBibTeX       bool            `json:"-"`
	Downloads       map[string]bool `json:"-"`
}

func (p *Publication) dateKey() string {
	return p.Year + p.Month + p.Day
}

// Date parses the publication date. Month and day may be zero padded or not.
func (p *Publication) Date() (time.Time, error) {
	return time.Parse("2006-1-2", p.Year+"-"+p.Month+"-"+p.Day)
}

// Weight orders publications newest first when inserted into the structure.
func (p *Publication) Weight() int {
	n, err := strconv.Atoi(p.dateKey())
	if err != nil {
		return 0
	}
	return -n
}

// MarkDownload records a published download by its file extension, with or
// without the leading dot.
func (p *Publication) MarkDownload(ext string) {
	if p.Downloads == nil {
		p.Downloads = make(map[string]bool)
	}
	p.Downloads[strings.TrimPrefix(ext, ".")] = true
}

// LoadRegistry reads every record in the collaborator-maintained cache
// directory, sorts them newest first and merges the metadata overlay into
// each record by ID. A missing cache directory yields an empty registry and
// a warning so a build without the collaborator output can carry on. A
// record the overlay does not know is logged and kept as is.
func LoadRegistry(cacheDir, metadataPath string, logger *slog.Logger) ([]*Publication, error) {
	if logger == nil {
		logger = slog.Default()
	}
	entries, err := os.ReadDir(cacheDir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, derrors.Warning(derrors.CategoryCollaborator, "publication cache not populated").
				WithContext("dir", cacheDir)
		}
		return nil, derrors.WrapFatal(err, derrors.CategoryFileSystem, "reading publication cache").
			WithContext("dir", cacheDir)
	}
	var pubs []*Publication
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}
		path := filepath.Join(cacheDir, entry.Name())
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, derrors.WrapFatal(err, derrors.CategoryFileSystem, "reading publication record").
				WithContext("path", path)
		}
		pub := &Publication{}
		if err := json.Unmarshal(raw, pub); err != nil {
			return nil, derrors.WrapFatal(err, derrors.CategoryData, "decoding publication record").
				WithContext("path", path)
		}
		pubs = append(pubs, pub)
	}
	sort.SliceStable(pubs, func(i, j int) bool { return pubs[i].dateKey() > pubs[j].dateKey() })

	metadata, err := loadMetadata(metadataPath)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	for _, pub := range pubs {
		id := pub.ID.String()
		if overlay, ok := metadata[id]; ok {
			if err := json.Unmarshal(overlay, pub); err != nil {
				return nil, derrors.WrapFatal(err, derrors.CategoryData, "decoding publication metadata").
					WithContext("id", id)
			}
		} else {
			logger.Warn("no additional metadata for publication", "id", id)
		}
		date, err := pub.Date()
		if err != nil {
			return nil, derrors.WrapFatal(err, derrors.CategoryData, "parsing publication date").
				WithContext("id", id)
		}
		pub.RFC2822Date = content.RFC2822(date)
		pub.NotPublishedYet = date.After(now)
	}
	return pubs, nil
}

func loadMetadata(path string) (map[string]json.RawMessage, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, derrors.WrapFatal(err, derrors.CategoryFileSystem, "reading publication metadata").
			WithContext("path", path)
	}
	var metadata map[string]json.RawMessage
	if err := json.Unmarshal(raw, &metadata); err != nil {
		return nil, derrors.WrapFatal(err, derrors.CategoryData, "decoding publication metadata").
			WithContext("path", path)
	}
	return metadata, nil
}

// Description condenses an abstract into an Open Graph description: whole
// sentences are accumulated until the text passes 150 characters.
func Description(abstract string) string {
	if abstract == "" {
		return ""
	}
	var description string
	for _, sentence := range strings.Split(abstract, ". ") {
		description += strings.TrimSuffix(sentence, ".") + ". "
		if len(description) > 150 {
			break
		}
	}
	return strings.TrimSuffix(description, " ")
}
