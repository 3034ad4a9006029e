package domain

import (
	"slices"
	"strings"
)

// ContentBlock is the canonical deduplicated unit of content shared by one
// or more locations.
type ContentBlock struct {
	// ID is generated once and never reassigned.
	ID string

	// Content is the canonical text.
	Content string

	// Embedding is the vector for Content.
	Embedding []float32

	// Locations is the set of locations currently materialising this block.
	// A persisted block always has at least one.
	Locations LocationSet
}

// Validate checks the persistence invariants of a block.
func (b *ContentBlock) Validate() error {
	if b.ID == "" {
		return NewInvariantError("validate block", "block has empty id")
	}
	if strings.TrimSpace(b.Content) == "" {
		return NewInvariantError("validate block", "block %s has empty content", b.ID)
	}
	if b.Locations.Len() == 0 {
		return NewInvariantError("validate block", "block %s has no referencing locations", b.ID)
	}
	return nil
}

// Clone returns a deep copy of the block.
func (b ContentBlock) Clone() ContentBlock {
	return ContentBlock{
		ID:        b.ID,
		Content:   b.Content,
		Embedding: slices.Clone(b.Embedding),
		Locations: b.Locations.Clone(),
	}
}

// MatchCandidate is a nearest-neighbour hit for a query embedding.
// Candidates are ephemeral and never persisted.
type MatchCandidate struct {
	// BlockID is the matched block.
	BlockID string

	// Score is the cosine similarity (1 means identical direction).
	Score float64

	// Block is the block as stored when the query ran.
	Block ContentBlock
}

// LocationSet is an unordered set of locations.
type LocationSet map[Location]struct{}

// NewLocationSet creates a set holding the given locations.
func NewLocationSet(locs ...Location) LocationSet {
	s := make(LocationSet, len(locs))
	for _, l := range locs {
		s[l] = struct{}{}
	}
	return s
}

// Add inserts a location.
func (s LocationSet) Add(l Location) {
	s[l] = struct{}{}
}

// Remove deletes a location.
func (s LocationSet) Remove(l Location) {
	delete(s, l)
}

// Has reports whether the location is in the set.
func (s LocationSet) Has(l Location) bool {
	_, ok := s[l]
	return ok
}

// Len returns the number of locations.
func (s LocationSet) Len() int {
	return len(s)
}

// Clone returns a copy of the set. A nil set clones to an empty set.
func (s LocationSet) Clone() LocationSet {
	c := make(LocationSet, len(s))
	for l := range s {
		c[l] = struct{}{}
	}
	return c
}

// Equal reports whether both sets hold the same locations.
func (s LocationSet) Equal(other LocationSet) bool {
	if len(s) != len(other) {
		return false
	}
	for l := range s {
		if !other.Has(l) {
			return false
		}
	}
	return true
}

// Sorted returns the locations in lexical order.
func (s LocationSet) Sorted() []Location {
	out := make([]Location, 0, len(s))
	for l := range s {
		out = append(out, l)
	}
	slices.Sort(out)
	return out
}

// Strings returns the sorted locations as plain strings for persistence.
func (s LocationSet) Strings() []string {
	sorted := s.Sorted()
	out := make([]string, len(sorted))
	for i, l := range sorted {
		out[i] = string(l)
	}
	return out
}

// LocationSetFromStrings rebuilds a set from its persisted form.
func LocationSetFromStrings(ss []string) LocationSet {
	s := make(LocationSet, len(ss))
	for _, v := range ss {
		s[Location(v)] = struct{}{}
	}
	return s
}
