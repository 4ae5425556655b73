// Package sets provides a small generic hash set, used for sitemap dedup
// and the collation key intersection.
package sets

// Set holds comparable keys. The zero value is not usable; construct with New.
type Set[T comparable] map[T]struct{}

// New creates a set holding the given values.
func New[T comparable](vals ...T) Set[T] {
	s := make(Set[T], len(vals))
	for _, v := range vals {
		s[v] = struct{}{}
	}
	return s
}

// Add inserts v.
func (s Set[T]) Add(v T) { s[v] = struct{}{} }

// Has reports whether v is present.
func (s Set[T]) Has(v T) bool {
	_, ok := s[v]
	return ok
}

// Len returns the number of elements.
func (s Set[T]) Len() int { return len(s) }

// Intersect returns the elements present in both s and other.
func (s Set[T]) Intersect(other Set[T]) Set[T] {
	small, large := s, other
	if len(large) < len(small) {
		small, large = large, small
	}
	out := make(Set[T])
	for k := range small {
		if large.Has(k) {
			out[k] = struct{}{}
		}
	}
	return out
}
