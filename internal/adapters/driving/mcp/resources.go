package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const (
	uriScheme = "knoba://"

	// historyLimit bounds the records returned by the history resource.
	historyLimit = 50
)

// registerResources registers all resource handlers with the MCP server.
func (s *Server) registerResources() {
	s.server.AddResource(&mcp.Resource{
		URI:         uriScheme + "history",
		Name:        "history",
		Description: "Recently processed batches, most recent first",
		MIMEType:    "application/json",
	}, s.handleHistoryResource)

	s.server.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: uriScheme + "blocks/{blockId}",
		Name:        "block",
		Description: "Canonical content and referencing locations of a content block",
		MIMEType:    "application/json",
	}, s.handleBlockResource)
}

// handleHistoryResource returns recent batch journal records.
func (s *Server) handleHistoryResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	if s.ports.Journal == nil {
		return jsonResult(req.Params.URI, "[]"), nil
	}

	records, err := s.ports.Journal.Recent(ctx, historyLimit)
	if err != nil {
		return nil, fmt.Errorf("reading history: %w", err)
	}

	type recordInfo struct {
		ID                 int64    `json:"id"`
		StartedAt          string   `json:"started_at"`
		DurationMS         int64    `json:"duration_ms"`
		Success            bool     `json:"success"`
		Error              string   `json:"error,omitempty"`
		Upserts            []string `json:"upsert_locations"`
		Removes            []string `json:"remove_locations"`
		Created            int      `json:"created"`
		ContentUpdated     int      `json:"content_updated"`
		ReferencesUpdated  int      `json:"references_updated"`
		Deleted            int      `json:"deleted"`
		FailedPropagations int      `json:"failed_propagations"`
	}

	infos := make([]recordInfo, len(records))
	for i := range records {
		r := &records[i]
		info := recordInfo{
			ID:                 r.ID,
			StartedAt:          r.StartedAt.UTC().Format("2006-01-02T15:04:05Z"),
			DurationMS:         r.Duration().Milliseconds(),
			Success:            r.Success,
			Error:              r.Error,
			Upserts:            make([]string, len(r.Batch.Upserts)),
			Removes:            make([]string, len(r.Batch.Removes)),
			Created:            r.Created,
			ContentUpdated:     r.ContentUpdated,
			ReferencesUpdated:  r.ReferencesUpdated,
			Deleted:            r.Deleted,
			FailedPropagations: r.FailedPropagations,
		}
		for j, l := range r.Batch.Upserts {
			info.Upserts[j] = l.String()
		}
		for j, l := range r.Batch.Removes {
			info.Removes[j] = l.String()
		}
		infos[i] = info
	}

	data, err := json.MarshalIndent(infos, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshalling history: %w", err)
	}
	return jsonResult(req.Params.URI, string(data)), nil
}

// handleBlockResource returns one content block.
func (s *Server) handleBlockResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	id := extractBlockID(req.Params.URI)
	if id == "" {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}

	blocks, err := s.ports.Reconciler.Blocks(ctx, []string{id})
	if err != nil {
		return nil, fmt.Errorf("fetching block: %w", err)
	}
	b, ok := blocks[id]
	if !ok {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}

	data, err := json.MarshalIndent(toBlockOutput(b), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshalling block: %w", err)
	}
	return jsonResult(req.Params.URI, string(data)), nil
}

func jsonResult(uri, text string) *mcp.ReadResourceResult {
	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      uri,
			MIMEType: "application/json",
			Text:     text,
		}},
	}
}

// extractBlockID extracts the block ID from a URI like knoba://blocks/{blockId}.
func extractBlockID(uri string) string {
	const prefix = uriScheme + "blocks/"

	if !strings.HasPrefix(uri, prefix) {
		return ""
	}
	id := strings.TrimPrefix(uri, prefix)
	if strings.Contains(id, "/") {
		return ""
	}
	return id
}
