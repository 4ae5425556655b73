// Package structure builds the navigable site hierarchy. Pages insert
// breadcrumb entries while they are generated; after all sites are done the
// tree is finalized once into a deterministic order and flattened into
// sitemaps.
package structure

import (
	"sort"
	"strings"
)

// studentProjectPrefix is stripped from titles during finalization; the
// prefix keeps listing pages explicit but is noise in navigation.
const studentProjectPrefix = "Student Project: "

// Node is one navigable entry. During construction children form a keyed set
// with remembered insertion order; Finalize turns them into a slice ordered
// by ascending weight.
type Node struct {
	Title string
	// Path is the canonical route of the entry. It may carry a #fragment
	// and is absolute when it contains a scheme.
	Path   string
	Weight int

	key      string
	children map[string]*Node
	order    []string
	sorted   []*Node
}

func newNode(key string) *Node {
	return &Node{
		key:      key,
		Title:    key,
		children: make(map[string]*Node),
	}
}

// ensureChild returns the child for the breadcrumb segment, creating it on
// demand.
func (n *Node) ensureChild(key string) *Node {
	if child, ok := n.children[key]; ok {
		return child
	}
	child := newNode(key)
	n.children[key] = child
	n.order = append(n.order, key)
	return child
}

// Child returns the child for the breadcrumb segment, or nil.
func (n *Node) Child(key string) *Node {
	return n.children[key]
}

// Children returns the node's children: in finalized order after Finalize,
// in insertion order before.
func (n *Node) Children() []*Node {
	if n.sorted != nil {
		return n.sorted
	}
	out := make([]*Node, 0, len(n.order))
	for _, key := range n.order {
		out = append(out, n.children[key])
	}
	return out
}

// HasChildren reports whether the node has any children.
func (n *Node) HasChildren() bool {
	return len(n.children) > 0
}

// sortChildren orders every descendant by ascending weight. The sort is
// stable: equal weights keep insertion order.
func (n *Node) sortChildren() {
	n.sorted = make([]*Node, 0, len(n.order))
	for _, key := range n.order {
		n.sorted = append(n.sorted, n.children[key])
	}
	sort.SliceStable(n.sorted, func(i, j int) bool {
		return n.sorted[i].Weight < n.sorted[j].Weight
	})
	for _, child := range n.sorted {
		child.sortChildren()
	}
}

// removeChild drops the child from the keyed set, the insertion order and
// the finalized slice. Relative order of the remaining children is kept.
func (n *Node) removeChild(key string) {
	if _, ok := n.children[key]; !ok {
		return
	}
	delete(n.children, key)
	for i, k := range n.order {
		if k == key {
			n.order = append(n.order[:i], n.order[i+1:]...)
			break
		}
	}
	for i, child := range n.sorted {
		if child.key == key {
			n.sorted = append(n.sorted[:i], n.sorted[i+1:]...)
			break
		}
	}
}

// appendChild attaches an already-finalized node at the end of the finalized
// order under the given key.
func (n *Node) appendChild(key string, child *Node) {
	child.key = key
	n.children[key] = child
	n.order = append(n.order, key)
	n.sorted = append(n.sorted, child)
}

func (n *Node) stripTitlePrefix() {
	n.Title = strings.TrimPrefix(n.Title, studentProjectPrefix)
	for _, child := range n.sorted {
		child.stripTitlePrefix()
	}
}
