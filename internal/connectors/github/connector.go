package github

import (
	"context"
	"fmt"
	"strings"

	"github.com/ca-shen98/knoba/internal/connectors"
	"github.com/ca-shen98/knoba/internal/core/domain"
	"github.com/ca-shen98/knoba/internal/core/ports/driven"
	"github.com/ca-shen98/knoba/internal/logger"
)

// Verify interface compliance.
var (
	_ driven.ContentSource = (*Connector)(nil)
	_ driven.ContentWriter = (*Connector)(nil)
)

// commitMessage is used for every propagated edit.
const commitMessage = "knoba: update shared content block"

// Connector reads and rewrites paragraphs of repository files.
type Connector struct {
	client *Client
	locks  connectors.KeyedMutex
}

// New creates a GitHub connector using the given client.
func New(client *Client) *Connector {
	return &Connector{client: client}
}

// Type returns the location source type.
func (c *Connector) Type() string {
	return domain.SourceGitHub
}

// Fetch returns the paragraphs of the file on the default branch.
func (c *Connector) Fetch(ctx context.Context, rawID string) ([]string, error) {
	ref, err := parseFileRef(rawID)
	if err != nil {
		return nil, err
	}
	file, err := c.client.GetFile(ctx, ref.owner, ref.repo, ref.path, "")
	if err != nil {
		return nil, err
	}
	return connectors.SplitParagraphs(file.Content), nil
}

// Apply replaces every paragraph equal to priorContent with newContent and
// commits the result.
func (c *Connector) Apply(ctx context.Context, rawID, newContent, priorContent string) (domain.WriteStatus, error) {
	if strings.TrimSpace(priorContent) == "" {
		return domain.WriteFailed, domain.ErrPriorContentRequired
	}
	if strings.TrimSpace(newContent) == strings.TrimSpace(priorContent) {
		return domain.WriteUnchanged, nil
	}
	ref, err := parseFileRef(rawID)
	if err != nil {
		return domain.WriteFailed, err
	}

	unlock := c.locks.Lock(rawID)
	defer unlock()

	file, err := c.client.GetFile(ctx, ref.owner, ref.repo, ref.path, "")
	if err != nil {
		return domain.WriteFailed, err
	}
	updated, n := connectors.ReplaceParagraph(file.Content, priorContent, newContent)
	if n == 0 {
		logger.Debug("github: no paragraph in %s matches prior content", rawID)
		return domain.WriteUnchanged, nil
	}

	if err := c.client.UpdateFile(ctx, ref.owner, ref.repo, ref.path, file.SHA, updated, commitMessage); err != nil {
		return domain.WriteFailed, err
	}
	logger.Debug("github: replaced %d paragraph(s) in %s", n, rawID)
	return domain.WriteApplied, nil
}

type fileRef struct {
	owner, repo, path string
}

func parseFileRef(rawID string) (fileRef, error) {
	parts := strings.SplitN(strings.Trim(rawID, "/"), "/", 3)
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" || strings.Trim(parts[2], "/") == "" {
		return fileRef{}, fmt.Errorf("%w: %w: %q", domain.ErrInvalidInput, ErrInvalidLocation, rawID)
	}
	return fileRef{owner: parts[0], repo: parts[1], path: strings.Trim(parts[2], "/")}, nil
}
