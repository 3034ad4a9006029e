package mcp

import (
	"github.com/ca-shen98/knoba/internal/core/ports/driven"
	"github.com/ca-shen98/knoba/internal/core/ports/driving"
)

// Ports aggregates the interfaces the MCP server drives.
type Ports struct {
	// Reconciler processes batches and answers mapping queries.
	Reconciler driving.Reconciler

	// Submitter runs batches on the worker pool. When nil, batches run
	// inline on the reconciler.
	Submitter driving.BatchSubmitter

	// Journal exposes batch history. Optional.
	Journal driven.BatchJournal
}

// Validate ensures all required ports are set.
func (p *Ports) Validate() error {
	if p.Reconciler == nil {
		return ErrMissingReconciler
	}
	return nil
}
