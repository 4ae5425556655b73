package structure

import (
	"fmt"
	"strings"

	"sitewright/internal/util/sets"
)

// Tree accumulates navigation entries across all site passes and is
// finalized exactly once afterwards. It is passed by reference into each
// pass; the build is sequential, so no locking.
type Tree struct {
	root      *Node
	finalized bool
}

// NewTree returns an empty tree.
func NewTree() *Tree {
	return &Tree{root: newNode("")}
}

// Root returns the invisible root node. Its children are the site sections.
func (t *Tree) Root() *Node {
	return t.root
}

// Section returns the top-level node for the given breadcrumb segment, or
// nil when no entry was inserted under it.
func (t *Tree) Section(name string) *Node {
	return t.root.Child(name)
}

// Insert records a navigation entry. The breadcrumb is segmented on "/";
// every segment but the last indexes nested children, created on demand, and
// the last names the entry itself. Inserting the same breadcrumb again
// resolves to the same node; the latest title, path and weight win.
func (t *Tree) Insert(title, breadcrumb, path string, weight int) {
	node := t.root
	segments := strings.Split(breadcrumb, "/")
	for _, segment := range segments[:len(segments)-1] {
		node = node.ensureChild(segment)
	}
	leaf := node.ensureChild(segments[len(segments)-1])
	leaf.Title = title
	leaf.Path = path
	leaf.Weight = weight
}

// Finalize freezes the tree: children everywhere are ordered by ascending
// weight (stable), shared top-level children are optionally collated into
// single entries, and display titles are normalized. Callable once.
func (t *Tree) Finalize(collateShared bool) error {
	if t.finalized {
		return fmt.Errorf("structure tree already finalized")
	}
	t.finalized = true

	t.root.sortChildren()
	if collateShared {
		t.collate()
	}
	t.root.stripTitlePrefix()
	return nil
}

// collate merges children appearing under every populated top-level section
// into one shared entry. It never recurses below the top level; sections
// without children neither participate in the intersection nor lose
// children.
func (t *Tree) collate() {
	var sections []*Node
	for _, child := range t.root.sorted {
		if child.HasChildren() {
			sections = append(sections, child)
		}
	}
	if len(sections) < 2 {
		return
	}

	shared := sets.New[string]()
	for key := range sections[0].children {
		shared.Add(key)
	}
	for _, section := range sections[1:] {
		keys := sets.New[string]()
		for key := range section.children {
			keys.Add(key)
		}
		shared = shared.Intersect(keys)
	}
	if shared.Len() == 0 {
		return
	}

	// The first section's order and nodes win; its copy of each shared
	// entry moves to the top level, keyed by its display title, after the
	// weight-sorted sections.
	snapshot := make([]*Node, len(sections[0].sorted))
	copy(snapshot, sections[0].sorted)
	for _, child := range snapshot {
		if !shared.Has(child.key) {
			continue
		}
		key := child.key
		for _, section := range sections {
			section.removeChild(key)
		}
		t.root.appendChild(child.Title, child)
	}
}
