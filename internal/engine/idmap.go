// Package engine implements the knowledge graph engine for Engram.
//
// The engine orchestrates payload normalization, repository access, the
// legacy integer-id mapping, and the result caches, and exposes the graph
// query operations built on top of them.
package engine

// IDMap is a bidirectional mapping between stable string entity ids and
// the dense integer ids older clients use.
//
// Integer ids are allocated lazily the first time a stable id is exposed
// to a legacy caller. The mapping is not persisted on its own: it is
// restored at startup from each entity's legacy_id metadata.
//
// IDMap is not safe for concurrent use; the engine serializes access.
type IDMap struct {
	toStable  map[int]string
	toNumeric map[string]int
	next      int
}

// NewIDMap creates an empty mapping. Allocation starts at 1.
func NewIDMap() *IDMap {
	return &IDMap{
		toStable:  make(map[int]string),
		toNumeric: make(map[string]int),
		next:      1,
	}
}

// ToNumeric returns the integer id for a stable id, allocating and
// recording a fresh one on first exposure.
func (m *IDMap) ToNumeric(stable string) int {
	if numeric, ok := m.toNumeric[stable]; ok {
		return numeric
	}
	numeric := m.next
	m.next++
	m.toNumeric[stable] = numeric
	m.toStable[numeric] = stable
	return numeric
}

// ToStable returns the stable id for an integer id, when the integer was
// ever issued.
func (m *IDMap) ToStable(numeric int) (string, bool) {
	stable, ok := m.toStable[numeric]
	return stable, ok
}

// Record seeds one (numeric, stable) pair, advancing the allocation
// counter past it. Used when restoring the mapping from stored entities
// and when an entity arrives with a caller-issued legacy id.
func (m *IDMap) Record(numeric int, stable string) {
	m.toStable[numeric] = stable
	m.toNumeric[stable] = numeric
	if numeric >= m.next {
		m.next = numeric + 1
	}
}

// Remove drops both directions of the mapping for a stable id, if present.
func (m *IDMap) Remove(stable string) {
	numeric, ok := m.toNumeric[stable]
	if !ok {
		return
	}
	delete(m.toNumeric, stable)
	delete(m.toStable, numeric)
}

// Len returns the number of mapped ids.
func (m *IDMap) Len() int {
	return len(m.toNumeric)
}
