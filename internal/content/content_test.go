package content

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"sitewright/internal/markdown"
)

func writePage(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("writing page failed: %v", err)
	}
	return path
}

func TestParseFileName(t *testing.T) {
	tests := []struct {
		name string
		date string
		slug string
	}{
		{"2024-03-01-announcement.html", "2024-03-01", "announcement"},
		{"about.html", "1970-01-01", "about"},
		{"notes.include.html", "1970-01-01", "notes"},
		{"2019-12-31-year-end.md", "2019-12-31", "year-end"},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			date, slug := ParseFileName(test.name)
			expected, err := time.Parse("2006-01-02", test.date)
			if err != nil {
				t.Fatalf("bad test date: %v", err)
			}
			if !date.Equal(expected) {
				t.Errorf("date = %v, expected %v", date, expected)
			}
			if slug != test.slug {
				t.Errorf("slug = %q, expected %q", slug, test.slug)
			}
		})
	}
}

func TestIsPageSource(t *testing.T) {
	tests := []struct {
		name     string
		expected bool
	}{
		{"about.html", true},
		{"notes.md", true},
		{"essay.markdown", true},
		{"_draft.html", true},
		{"404.html", false},
		{"2024-03-01-post.html", false},
		{"header.include.html", false},
		{"style.css", false},
		{"", false},
	}

	for _, test := range tests {
		if got := IsPageSource(test.name); got != test.expected {
			t.Errorf("IsPageSource(%q) = %v, expected %v", test.name, got, test.expected)
		}
	}
}

func TestLoadPageHeadersAndBody(t *testing.T) {
	path := writePage(t, "about.html", `<!-- title: About Me -->
<!-- breadcrumb: about 3 -->
<!-- og:image: /assets/portrait.png -->
<p>First paragraph.</p>
<!-- this comment is body, not a header: really -->
`)

	page, err := LoadPage(path, markdown.Detect())
	if err != nil {
		t.Fatalf("LoadPage failed: %v", err)
	}

	if page.Title != "About Me" {
		t.Errorf("unexpected title %q", page.Title)
	}
	if page.Headers["breadcrumb"] != "about 3" {
		t.Errorf("unexpected breadcrumb header %q", page.Headers["breadcrumb"])
	}
	if page.OpenGraph["image"] != "/assets/portrait.png" {
		t.Errorf("unexpected open graph map %v", page.OpenGraph)
	}
	if !strings.HasPrefix(page.Body, "<p>First paragraph.</p>") {
		t.Errorf("unexpected body start %q", page.Body)
	}
	// Headers end at the first non-header line; later comments stay in
	// the body.
	if !strings.Contains(page.Body, "this comment is body") {
		t.Errorf("expected trailing comment in body, got %q", page.Body)
	}
	if page.Hidden {
		t.Error("expected page to be visible")
	}
}

func TestLoadPageMarkdownConverted(t *testing.T) {
	path := writePage(t, "notes.md", `<!-- title: Notes -->
# Heading

Some text.
`)

	page, err := LoadPage(path, markdown.Detect())
	if err != nil {
		t.Fatalf("LoadPage failed: %v", err)
	}
	if !strings.Contains(page.Body, "<h1") {
		t.Errorf("expected converted markdown, got %q", page.Body)
	}
}

func TestLoadPageMarkdownUnavailablePassesRaw(t *testing.T) {
	path := writePage(t, "notes.md", `<!-- title: Notes -->
# Heading stays raw
`)

	page, err := LoadPage(path, markdown.Unavailable("disabled"))
	if err != nil {
		t.Fatalf("LoadPage failed: %v", err)
	}
	if !strings.Contains(page.Body, "# Heading stays raw") {
		t.Errorf("expected raw markdown, got %q", page.Body)
	}
}

func TestLoadPageHiddenUnderscore(t *testing.T) {
	path := writePage(t, "_fragment.html", "<!-- title: Fragment -->\ncontent")

	page, err := LoadPage(path, markdown.Detect())
	if err != nil {
		t.Fatalf("LoadPage failed: %v", err)
	}
	if !page.Hidden {
		t.Error("expected underscore-prefixed page to be hidden")
	}
}

func TestSelfPath(t *testing.T) {
	tests := []struct {
		dst      string
		expected string
	}{
		{"about.html", "/about"},
		{"projects/rover.html", "/projects/rover"},
		{"index.html", ""},
		{"projects/index.html", "/projects"},
		{"plain.txt", "/plain.txt"},
	}

	for _, test := range tests {
		if got := SelfPath(test.dst); got != test.expected {
			t.Errorf("SelfPath(%q) = %q, expected %q", test.dst, got, test.expected)
		}
	}
}

func TestParseBreadcrumb(t *testing.T) {
	tests := []struct {
		value   string
		path    string
		weight  int
		wantErr bool
	}{
		{value: "about", path: "about", weight: 0},
		{value: "about 3", path: "about", weight: 3},
		{value: "pubs -20240101", path: "pubs", weight: -20240101},
		{value: "a b c", wantErr: true},
		{value: "about x", wantErr: true},
	}

	for _, test := range tests {
		path, weight, err := ParseBreadcrumb(test.value)
		if test.wantErr {
			if err == nil {
				t.Errorf("ParseBreadcrumb(%q) expected error", test.value)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseBreadcrumb(%q) failed: %v", test.value, err)
			continue
		}
		if path != test.path || weight != test.weight {
			t.Errorf("ParseBreadcrumb(%q) = %q/%d, expected %q/%d",
				test.value, path, weight, test.path, test.weight)
		}
	}
}

func TestDateFormats(t *testing.T) {
	date := time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC)
	if got := RFC2822(date); got != "Fri, 01 Mar 2024 00:00:00 +0000" {
		t.Errorf("RFC2822 = %q", got)
	}

	tests := []struct {
		day      int
		expected string
	}{
		{1, "Mar 1st, 2024"},
		{2, "Mar 2nd, 2024"},
		{3, "Mar 3rd, 2024"},
		{4, "Mar 4th, 2024"},
		{21, "Mar 21st, 2024"},
		{22, "Mar 22nd, 2024"},
		{23, "Mar 23rd, 2024"},
		{11, "Mar 11th, 2024"},
	}
	for _, test := range tests {
		d := time.Date(2024, time.March, test.day, 0, 0, 0, 0, time.UTC)
		if got := PrettyDate(d); got != test.expected {
			t.Errorf("PrettyDate(day %d) = %q, expected %q", test.day, got, test.expected)
		}
	}
}
