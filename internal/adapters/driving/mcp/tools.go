package mcp

import (
	"context"
	"errors"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/ca-shen98/knoba/internal/core/domain"
)

// BatchInput is the input schema for the process_batch tool.
type BatchInput struct {
	Upserts []string `json:"upsert_locations,omitempty" jsonschema:"locations whose content changed, as sourceType_rawId"`
	Removes []string `json:"remove_locations,omitempty" jsonschema:"locations that were deleted, as sourceType_rawId"`
}

// BatchOutput is the output schema for the process_batch tool.
type BatchOutput struct {
	Created            []string            `json:"created"`
	ContentUpdated     []string            `json:"content_updated"`
	ReferencesUpdated  []string            `json:"references_updated"`
	Deleted            []string            `json:"deleted"`
	MappingsWritten    int                 `json:"mappings_written"`
	FailedPropagations []PropagationOutput `json:"failed_propagations,omitempty"`
}

// PropagationOutput describes one content write that failed.
type PropagationOutput struct {
	Location string `json:"location"`
	BlockID  string `json:"block_id"`
	Error    string `json:"error"`
}

// LocationInput is the input schema for the show_location tool.
type LocationInput struct {
	Location string `json:"location" jsonschema:"the location to inspect, as sourceType_rawId"`
}

// LocationOutput is the output schema for the show_location tool.
type LocationOutput struct {
	Location string        `json:"location"`
	Blocks   []BlockOutput `json:"blocks"`
}

// BlockOutput represents one content block referenced by a location.
type BlockOutput struct {
	ID        string   `json:"id"`
	Content   string   `json:"content"`
	Locations []string `json:"locations"`
}

// registerTools registers all tool handlers with the MCP server.
func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "process_batch",
		Description: "Reconcile changed and deleted locations into shared content blocks",
	}, s.handleProcessBatch)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "show_location",
		Description: "Show the content blocks a location currently references",
	}, s.handleShowLocation)
}

// handleProcessBatch handles the process_batch tool invocation.
func (s *Server) handleProcessBatch(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input BatchInput,
) (*mcp.CallToolResult, BatchOutput, error) {
	batch, err := toBatch(input)
	if err != nil {
		return nil, BatchOutput{}, err
	}

	result, err := s.process(ctx, batch)
	if err != nil {
		return nil, BatchOutput{}, err
	}
	return nil, toBatchOutput(result), nil
}

// process runs a batch on the submitter when one is configured.
func (s *Server) process(ctx context.Context, batch domain.Batch) (*domain.BatchResult, error) {
	if s.ports.Submitter == nil {
		return s.ports.Reconciler.Process(ctx, batch)
	}

	done, err := s.ports.Submitter.Submit(ctx, batch)
	if err != nil {
		return nil, err
	}
	select {
	case out := <-done:
		return out.Result, out.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// handleShowLocation handles the show_location tool invocation.
func (s *Server) handleShowLocation(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input LocationInput,
) (*mcp.CallToolResult, LocationOutput, error) {
	loc, err := domain.ParseLocation(input.Location)
	if err != nil {
		return nil, LocationOutput{}, err
	}

	ids, err := s.ports.Reconciler.Mapping(ctx, loc)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, LocationOutput{}, fmt.Errorf("reading mapping: %w", err)
	}

	output := LocationOutput{Location: loc.String(), Blocks: []BlockOutput{}}
	if len(ids) == 0 {
		return nil, output, nil
	}

	blocks, err := s.ports.Reconciler.Blocks(ctx, ids)
	if err != nil {
		return nil, LocationOutput{}, fmt.Errorf("fetching blocks: %w", err)
	}
	for _, id := range ids {
		b, ok := blocks[id]
		if !ok {
			continue
		}
		output.Blocks = append(output.Blocks, toBlockOutput(b))
	}
	return nil, output, nil
}

func toBatch(input BatchInput) (domain.Batch, error) {
	batch := domain.Batch{
		Upserts: make([]domain.Location, 0, len(input.Upserts)),
		Removes: make([]domain.Location, 0, len(input.Removes)),
	}
	for _, raw := range input.Upserts {
		loc, err := domain.ParseLocation(raw)
		if err != nil {
			return domain.Batch{}, err
		}
		batch.Upserts = append(batch.Upserts, loc)
	}
	for _, raw := range input.Removes {
		loc, err := domain.ParseLocation(raw)
		if err != nil {
			return domain.Batch{}, err
		}
		batch.Removes = append(batch.Removes, loc)
	}
	if batch.IsEmpty() {
		return domain.Batch{}, fmt.Errorf("%w: batch names no locations", domain.ErrInvalidInput)
	}
	return batch, batch.Validate()
}

func toBatchOutput(result *domain.BatchResult) BatchOutput {
	if result == nil {
		result = &domain.BatchResult{}
	}
	out := BatchOutput{
		Created:           nonNil(result.Created),
		ContentUpdated:    nonNil(result.ContentUpdated),
		ReferencesUpdated: nonNil(result.ReferencesUpdated),
		Deleted:           nonNil(result.Deleted),
		MappingsWritten:   result.MappingsWritten,
	}
	for _, p := range result.FailedPropagations() {
		po := PropagationOutput{Location: p.Location.String(), BlockID: p.BlockID}
		if p.Err != nil {
			po.Error = p.Err.Error()
		}
		out.FailedPropagations = append(out.FailedPropagations, po)
	}
	return out
}

func toBlockOutput(b domain.ContentBlock) BlockOutput {
	return BlockOutput{
		ID:        b.ID,
		Content:   b.Content,
		Locations: b.Locations.Strings(),
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
