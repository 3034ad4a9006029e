package driven

import (
	"context"

	"github.com/ca-shen98/knoba/internal/core/domain"
)

// ContentSource reads the current content of locations of one source type.
type ContentSource interface {
	// Type returns the source type this adapter serves (e.g., "notion").
	Type() string

	// Fetch returns the ordered text segments of the location identified by rawID.
	// Segments may contain blank entries; the caller discards them.
	Fetch(ctx context.Context, rawID string) ([]string, error)
}

// ContentWriter rewrites content in locations of one source type.
type ContentWriter interface {
	// Type returns the source type this adapter serves.
	Type() string

	// Apply replaces the segment of rawID that currently holds priorContent
	// with newContent. Adapters that address the whole location may ignore
	// priorContent. Returns domain.WriteUnchanged if nothing matched.
	Apply(ctx context.Context, rawID, newContent, priorContent string) (domain.WriteStatus, error)
}
