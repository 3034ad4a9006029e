package domain

import "fmt"

// Batch is a set of locations to upsert (with freshly fetched content) and
// a disjoint set of locations to remove.
type Batch struct {
	Upserts []Location `json:"upsertLocations"`
	Removes []Location `json:"removeLocations"`
}

// Validate checks every location is well formed and the two sets are disjoint.
func (b Batch) Validate() error {
	upserts := NewLocationSet()
	for _, l := range b.Upserts {
		if _, err := ParseLocation(string(l)); err != nil {
			return err
		}
		upserts.Add(l)
	}
	for _, l := range b.Removes {
		if _, err := ParseLocation(string(l)); err != nil {
			return err
		}
		if upserts.Has(l) {
			return fmt.Errorf("%w: location %s is both upserted and removed", ErrInvalidInput, l)
		}
	}
	return nil
}

// IsEmpty returns true if the batch names no locations.
func (b Batch) IsEmpty() bool {
	return len(b.Upserts) == 0 && len(b.Removes) == 0
}

// UniqueLocations returns locs with duplicates dropped, keeping first occurrence order.
func UniqueLocations(locs []Location) []Location {
	seen := NewLocationSet()
	out := make([]Location, 0, len(locs))
	for _, l := range locs {
		if seen.Has(l) {
			continue
		}
		seen.Add(l)
		out = append(out, l)
	}
	return out
}

// WriteStatus is the outcome of propagating canonical content to a location.
type WriteStatus string

// Propagation outcomes.
const (
	// WriteApplied means the location was rewritten.
	WriteApplied WriteStatus = "applied"

	// WriteUnchanged means the adapter found nothing to rewrite.
	WriteUnchanged WriteStatus = "unchanged"

	// WriteSkipped means no adapter is registered for the source type.
	WriteSkipped WriteStatus = "skipped"

	// WriteFailed means the adapter returned an error.
	WriteFailed WriteStatus = "failed"
)

// Propagation records one content write issued to a referencing location.
type Propagation struct {
	Location Location
	BlockID  string
	Status   WriteStatus
	Err      error
}

// BatchResult summarises the mutations a batch performed.
type BatchResult struct {
	// Created lists blocks allocated for novel content.
	Created []string

	// ContentUpdated lists blocks whose canonical content was replaced.
	ContentUpdated []string

	// ReferencesUpdated lists blocks whose reference set changed without a content change.
	ReferencesUpdated []string

	// Deleted lists orphaned blocks removed from the index.
	Deleted []string

	// MappingsWritten counts location mappings set or deleted.
	MappingsWritten int

	// Propagations lists every content write issued, including failures.
	Propagations []Propagation
}

// Merge appends other into r.
func (r *BatchResult) Merge(other *BatchResult) {
	if other == nil {
		return
	}
	r.Created = append(r.Created, other.Created...)
	r.ContentUpdated = append(r.ContentUpdated, other.ContentUpdated...)
	r.ReferencesUpdated = append(r.ReferencesUpdated, other.ReferencesUpdated...)
	r.Deleted = append(r.Deleted, other.Deleted...)
	r.MappingsWritten += other.MappingsWritten
	r.Propagations = append(r.Propagations, other.Propagations...)
}

// FailedPropagations returns propagations that returned an error.
func (r *BatchResult) FailedPropagations() []Propagation {
	var failed []Propagation
	for _, p := range r.Propagations {
		if p.Status == WriteFailed {
			failed = append(failed, p)
		}
	}
	return failed
}

// Mutated reports whether the batch changed any persisted state.
func (r *BatchResult) Mutated() bool {
	return len(r.Created) > 0 || len(r.ContentUpdated) > 0 || len(r.ReferencesUpdated) > 0 ||
		len(r.Deleted) > 0 || r.MappingsWritten > 0
}
