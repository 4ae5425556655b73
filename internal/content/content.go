// Package content loads page sources: filename date and slug, comment
// headers, and the body with markdown converted to HTML.
package content

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	derrors "sitewright/internal/errors"
	"sitewright/internal/markdown"
)

// markdownExtensions name the source files that go through the converter.
var markdownExtensions = map[string]bool{
	".md":       true,
	".mkd":      true,
	".mkdn":     true,
	".mdown":    true,
	".markdown": true,
}

// Page is one parsed content source.
type Page struct {
	SourcePath string
	Slug       string
	Date       time.Time
	Title      string
	// Headers holds every comment header, including the ones with
	// dedicated fields.
	Headers map[string]string
	// OpenGraph collects og:* headers, keyed without the prefix.
	OpenGraph map[string]string
	// Body is the page content after the headers, converted to HTML for
	// markdown sources.
	Body string
	// Hidden pages (underscore-prefixed) are rendered but carry no self
	// path and no structure entry.
	Hidden bool
}

var (
	dateSlugPattern = regexp.MustCompile(`^(?:(\d\d\d\d-\d\d-\d\d)-)?(.+)$`)
	headerPattern   = regexp.MustCompile(`^\s*<!--\s*(.+?)\s*:\s+(.+?)\s*-->\s*`)
)

// defaultDate is assumed for sources without a date prefix.
var defaultDate = time.Date(1970, time.January, 1, 0, 0, 0, 0, time.UTC)

// ParseFileName splits a basename into its optional date prefix and the
// slug. Everything after the first dot is ignored.
func ParseFileName(name string) (time.Time, string) {
	stem, _, _ := strings.Cut(name, ".")
	match := dateSlugPattern.FindStringSubmatch(stem)
	if match == nil {
		return defaultDate, stem
	}
	date := defaultDate
	if match[1] != "" {
		if parsed, err := time.Parse("2006-01-02", match[1]); err == nil {
			date = parsed
		}
	}
	return date, match[2]
}

// IsPageSource reports whether a content file becomes a page. Include
// fragments never do, and neither do digit-prefixed files, which are served
// under their own rules (404.html and friends).
func IsPageSource(name string) bool {
	if name == "" || strings.HasSuffix(name, ".include.html") {
		return false
	}
	if name[0] >= '0' && name[0] <= '9' {
		return false
	}
	ext := filepath.Ext(name)
	return ext == ".html" || markdownExtensions[ext]
}

// readHeaders consumes leading `<!-- key: value -->` comments and returns
// them with the remaining body. The first non-header line ends the headers.
func readHeaders(text string) (map[string]string, string) {
	headers := make(map[string]string)
	rest := text
	for {
		match := headerPattern.FindStringSubmatchIndex(rest)
		if match == nil {
			break
		}
		key := rest[match[2]:match[3]]
		value := rest[match[4]:match[5]]
		headers[key] = value
		rest = rest[match[1]:]
	}
	return headers, rest
}

// LoadPage reads and parses one content source. Markdown bodies are
// converted when the converter is available and pass through raw otherwise.
func LoadPage(path string, md markdown.Support) (*Page, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, derrors.WrapFatal(err, derrors.CategoryFileSystem, "read page source").
			WithContext("path", path)
	}

	base := filepath.Base(path)
	date, slug := ParseFileName(base)
	headers, body := readHeaders(string(raw))

	if markdownExtensions[filepath.Ext(base)] {
		converted, err := md.Convert([]byte(body))
		if err != nil {
			return nil, derrors.WrapFatal(err, derrors.CategoryTransform, "convert page body").
				WithContext("path", path)
		}
		body = string(converted)
	}

	page := &Page{
		SourcePath: path,
		Slug:       slug,
		Date:       date,
		Title:      headers["title"],
		Headers:    headers,
		OpenGraph:  make(map[string]string),
		Body:       body,
		Hidden:     strings.HasPrefix(base, "_"),
	}
	for key, value := range headers {
		if name, ok := strings.CutPrefix(key, "og:"); ok {
			page.OpenGraph[name] = value
		}
	}
	return page, nil
}

// SelfPath derives the canonical path of a page from its destination:
// a leading slash, no .html suffix, no trailing index, no trailing slash.
// The root index comes out empty.
func SelfPath(dst string) string {
	p := "/" + dst
	p = strings.TrimSuffix(p, ".html")
	p = strings.TrimSuffix(p, "index")
	p = strings.TrimSuffix(p, "/")
	return p
}

// ParseBreadcrumb splits a breadcrumb header into its path and optional
// weight. Without a weight the path is the whole value and the weight is 0.
func ParseBreadcrumb(value string) (string, int, error) {
	path, weightValue, found := strings.Cut(value, " ")
	if !found {
		return value, 0, nil
	}
	weight, err := strconv.Atoi(weightValue)
	if err != nil {
		return "", 0, fmt.Errorf("breadcrumb weight %q is not a number: %w", weightValue, err)
	}
	return path, weight, nil
}
