// Package notion serves "notion" locations: single Notion paragraph blocks.
//
// The raw id is the block id. A paragraph is one content segment; writing
// replaces its rich text with the new content as plain text, split into
// runs that respect Notion's per-run length limit.
package notion

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/jomei/notionapi"

	"github.com/ca-shen98/knoba/internal/connectors"
	"github.com/ca-shen98/knoba/internal/core/domain"
	"github.com/ca-shen98/knoba/internal/core/ports/driven"
)

// Verify interface compliance.
var (
	_ driven.ContentSource = (*Connector)(nil)
	_ driven.ContentWriter = (*Connector)(nil)
)

// maxRunLength is Notion's limit on the content of one rich text object.
const maxRunLength = 2000

// Notion-specific errors.
var (
	// ErrNotParagraph indicates the block exists but is not a paragraph.
	ErrNotParagraph = errors.New("notion: block is not a paragraph")
)

// Config holds Notion connector settings.
type Config struct {
	// Token is the integration token.
	Token string

	// RateLimit overrides connectors.NotionRateLimit when non-zero.
	RateLimit connectors.RateLimitConfig

	// HTTPClient replaces the default client, e.g. for tests.
	HTTPClient *http.Client
}

// Connector reads and writes Notion paragraph blocks.
type Connector struct {
	client  *notionapi.Client
	limiter *connectors.RateLimiter
}

// New creates a Notion connector.
func New(cfg Config) (*Connector, error) {
	if cfg.Token == "" {
		return nil, fmt.Errorf("%w: notion token is required", domain.ErrInvalidInput)
	}

	var opts []notionapi.ClientOption
	if cfg.HTTPClient != nil {
		opts = append(opts, notionapi.WithHTTPClient(cfg.HTTPClient))
	}

	limit := cfg.RateLimit
	if limit == (connectors.RateLimitConfig{}) {
		limit = connectors.NotionRateLimit
	}
	return &Connector{
		client:  notionapi.NewClient(notionapi.Token(cfg.Token), opts...),
		limiter: connectors.NewRateLimiter(limit),
	}, nil
}

// Type returns the location source type.
func (c *Connector) Type() string {
	return domain.SourceNotion
}

// Fetch returns the paragraph's plain text as a single segment.
// An empty paragraph has no segments.
func (c *Connector) Fetch(ctx context.Context, rawID string) ([]string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	block, err := c.client.Block.Get(ctx, notionapi.BlockID(rawID))
	if err != nil {
		return nil, c.wrapError(err, "get block")
	}
	para, ok := block.(*notionapi.ParagraphBlock)
	if !ok {
		return nil, fmt.Errorf("%w: %s has type %s", ErrNotParagraph, rawID, block.GetType())
	}

	text := strings.TrimSpace(plainText(para.Paragraph.RichText))
	if text == "" {
		return []string{}, nil
	}
	return []string{text}, nil
}

// Apply replaces the paragraph's text with newContent. The prior content is
// not needed since the block holds exactly one segment.
func (c *Connector) Apply(ctx context.Context, rawID, newContent, _ string) (domain.WriteStatus, error) {
	content := strings.TrimSpace(newContent)

	current, err := c.Fetch(ctx, rawID)
	if err != nil {
		return domain.WriteFailed, err
	}
	if len(current) == 1 && current[0] == content {
		return domain.WriteUnchanged, nil
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return domain.WriteFailed, fmt.Errorf("rate limit wait: %w", err)
	}
	_, err = c.client.Block.Update(ctx, notionapi.BlockID(rawID), &notionapi.BlockUpdateRequest{
		Paragraph: &notionapi.Paragraph{RichText: richText(content)},
	})
	if err != nil {
		return domain.WriteFailed, c.wrapError(err, "update block")
	}
	return domain.WriteApplied, nil
}

func (c *Connector) wrapError(err error, op string) error {
	var apiErr *notionapi.Error
	if errors.As(err, &apiErr) {
		switch apiErr.Status {
		case http.StatusNotFound:
			return fmt.Errorf("notion %s: %w: %s", op, domain.ErrNotFound, apiErr.Message)
		case http.StatusTooManyRequests:
			c.limiter.Backoff(0)
		}
	}
	return fmt.Errorf("notion %s: %w", op, err)
}

func plainText(runs []notionapi.RichText) string {
	var b strings.Builder
	for _, r := range runs {
		if r.PlainText != "" {
			b.WriteString(r.PlainText)
		} else if r.Text != nil {
			b.WriteString(r.Text.Content)
		}
	}
	return b.String()
}

// richText splits content into text runs of at most maxRunLength runes.
func richText(content string) []notionapi.RichText {
	runes := []rune(content)
	runs := make([]notionapi.RichText, 0, len(runes)/maxRunLength+1)
	for len(runes) > 0 {
		n := min(len(runes), maxRunLength)
		runs = append(runs, notionapi.RichText{
			Type: notionapi.ObjectTypeText,
			Text: &notionapi.Text{Content: string(runes[:n])},
		})
		runes = runes[n:]
	}
	return runs
}
