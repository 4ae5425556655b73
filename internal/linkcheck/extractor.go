package linkcheck

import (
	"io"

	"golang.org/x/net/html"

	derrors "sitewright/internal/errors"
)

// Ref is a single reference found in an HTML document.
type Ref struct {
	URL       string // attribute value as written in the document
	Tag       string // element the reference was found on
	Attribute string // attribute carrying the reference
}

// refAttrs maps element names to the attribute that carries a reference.
var refAttrs = map[string]string{
	"a":      "href",
	"link":   "href",
	"img":    "src",
	"script": "src",
	"video":  "src",
	"audio":  "src",
	"source": "src",
}

// ExtractRefs parses an HTML document and returns every href and src
// reference it carries, in document order.
func ExtractRefs(r io.Reader) ([]Ref, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, derrors.WrapWarning(err, derrors.CategoryData, "failed to parse HTML document")
	}

	var refs []Ref
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			if attr, ok := refAttrs[n.Data]; ok {
				if val := getAttr(n, attr); val != "" {
					refs = append(refs, Ref{URL: val, Tag: n.Data, Attribute: attr})
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	return refs, nil
}

// getAttr retrieves an attribute value from an HTML node.
func getAttr(n *html.Node, key string) string {
	for _, attr := range n.Attr {
		if attr.Key == key {
			return attr.Val
		}
	}
	return ""
}
