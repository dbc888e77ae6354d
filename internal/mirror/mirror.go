// Package mirror implements the path mirror manifest: the ordered set of
// logical paths that were live under a plan's sources at backup time.
// Restore correctness depends on it being complete: deletions are
// expressed only by a path's absence from the newest mirror, never by an
// explicit tombstone.
package mirror

// Mirror is an ordered set of slash-separated logical paths. Insertion
// order is preserved so serialized manifests are stable; membership
// checks are constant time.
type Mirror struct {
	paths []string
	index map[string]struct{}
}

// New creates a Mirror containing the given paths, preserving order and
// dropping duplicates.
func New(paths ...string) *Mirror {
	m := &Mirror{index: make(map[string]struct{}, len(paths))}
	for _, p := range paths {
		m.Add(p)
	}
	return m
}

// Add appends a logical path to the mirror. Adding an existing path is a
// no-op.
func (m *Mirror) Add(path string) {
	if _, ok := m.index[path]; ok {
		return
	}
	m.index[path] = struct{}{}
	m.paths = append(m.paths, path)
}

// Contains reports whether the logical path is a member of the mirror.
func (m *Mirror) Contains(path string) bool {
	_, ok := m.index[path]
	return ok
}

// Len returns the number of paths in the mirror.
func (m *Mirror) Len() int { return len(m.paths) }

// Paths returns the mirror's paths in insertion order. The returned
// slice is shared; callers must not modify it.
func (m *Mirror) Paths() []string { return m.paths }
