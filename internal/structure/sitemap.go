package structure

import (
	"strings"

	"sitewright/internal/util/sets"
)

// Flatten walks a finalized node depth first, parent before children, and
// returns the deduplicated URL sequence for a machine sitemap. Fragments are
// stripped, the imprint entry is excluded by policy, and relative paths are
// prefixed with baseURL.
func Flatten(node *Node, baseURL string) []string {
	var urls []string
	seen := sets.New[string]()
	flattenInto(node, baseURL, seen, &urls)
	return urls
}

func flattenInto(node *Node, baseURL string, seen sets.Set[string], urls *[]string) {
	path, _, _ := strings.Cut(node.Path, "#")
	// Implicitly created breadcrumb segments carry no destination; the
	// imprint stays out of machine sitemaps.
	if path != "" && path != "imprint" {
		url := path
		if !strings.Contains(url, ":") {
			url = baseURL + url
		}
		if !seen.Has(url) {
			seen.Add(url)
			*urls = append(*urls, url)
		}
	}
	for _, child := range node.Children() {
		flattenInto(child, baseURL, seen, urls)
	}
}
