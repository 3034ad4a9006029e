// Package docs serves "gdocs" locations: Google Docs documents whose
// non-empty paragraphs are the content segments.
//
// Writes use the replaceAllText request with case-sensitive matching on the
// block's previous content, so every copy of the old paragraph text in the
// document is replaced in one atomic server-side edit.
package docs

import (
	"context"
	"fmt"
	"strings"

	docsapi "google.golang.org/api/docs/v1"
	"google.golang.org/api/option"

	"github.com/ca-shen98/knoba/internal/connectors"
	"github.com/ca-shen98/knoba/internal/connectors/google"
	"github.com/ca-shen98/knoba/internal/core/domain"
	"github.com/ca-shen98/knoba/internal/core/ports/driven"
	"github.com/ca-shen98/knoba/internal/logger"
)

// Verify interface compliance.
var (
	_ driven.ContentSource = (*Connector)(nil)
	_ driven.ContentWriter = (*Connector)(nil)
)

// Config holds Google Docs connector settings.
type Config struct {
	// Token is an OAuth access token with the documents scope.
	Token string

	// RateLimit overrides connectors.GoogleDocsRateLimit when non-zero.
	RateLimit connectors.RateLimitConfig

	// ClientOptions are passed to the Docs service, e.g. an endpoint override.
	ClientOptions []option.ClientOption
}

// Connector reads and edits Google Docs documents.
type Connector struct {
	svc     *docsapi.Service
	limiter *connectors.RateLimiter
}

// New creates a Google Docs connector.
func New(ctx context.Context, cfg Config) (*Connector, error) {
	if cfg.Token == "" {
		return nil, fmt.Errorf("%w: gdocs token is required", domain.ErrInvalidInput)
	}
	svc, err := google.NewDocsService(ctx, google.NewTokenSource(cfg.Token), cfg.ClientOptions...)
	if err != nil {
		return nil, fmt.Errorf("create docs service: %w", err)
	}

	limit := cfg.RateLimit
	if limit == (connectors.RateLimitConfig{}) {
		limit = connectors.GoogleDocsRateLimit
	}
	return &Connector{
		svc:     svc,
		limiter: connectors.NewRateLimiter(limit),
	}, nil
}

// Type returns the location source type.
func (c *Connector) Type() string {
	return domain.SourceGoogleDocs
}

// Fetch returns the document's non-empty paragraphs, including those in tables.
func (c *Connector) Fetch(ctx context.Context, rawID string) ([]string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	doc, err := c.svc.Documents.Get(rawID).Context(ctx).Do()
	if err != nil {
		return nil, c.wrapError(err, "get document")
	}

	var segments []string
	if doc.Body != nil {
		segments = collectParagraphs(doc.Body.Content, segments)
	}
	return segments, nil
}

// Apply replaces all case-sensitive occurrences of priorContent with newContent.
func (c *Connector) Apply(ctx context.Context, rawID, newContent, priorContent string) (domain.WriteStatus, error) {
	prior := strings.TrimSpace(priorContent)
	if prior == "" {
		return domain.WriteFailed, domain.ErrPriorContentRequired
	}
	replacement := strings.TrimSpace(newContent)
	if replacement == prior {
		return domain.WriteUnchanged, nil
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return domain.WriteFailed, fmt.Errorf("rate limit wait: %w", err)
	}

	req := &docsapi.BatchUpdateDocumentRequest{
		Requests: []*docsapi.Request{{
			ReplaceAllText: &docsapi.ReplaceAllTextRequest{
				ContainsText: &docsapi.SubstringMatchCriteria{
					Text:      prior,
					MatchCase: true,
				},
				ReplaceText: replacement,
			},
		}},
	}
	resp, err := c.svc.Documents.BatchUpdate(rawID, req).Context(ctx).Do()
	if err != nil {
		return domain.WriteFailed, c.wrapError(err, "batch update")
	}

	var changed int64
	for _, reply := range resp.Replies {
		if reply != nil && reply.ReplaceAllText != nil {
			changed += reply.ReplaceAllText.OccurrencesChanged
		}
	}
	if changed == 0 {
		logger.Debug("gdocs: prior content not found in %s", rawID)
		return domain.WriteUnchanged, nil
	}
	logger.Debug("gdocs: replaced %d occurrence(s) in %s", changed, rawID)
	return domain.WriteApplied, nil
}

func (c *Connector) wrapError(err error, op string) error {
	if google.IsRateLimited(err) {
		c.limiter.Backoff(0)
	}
	return fmt.Errorf("gdocs %s: %w", op, google.WrapError(err))
}

// collectParagraphs appends the trimmed text of every non-empty paragraph,
// descending into table cells.
func collectParagraphs(elements []*docsapi.StructuralElement, out []string) []string {
	for _, el := range elements {
		if el == nil {
			continue
		}
		if el.Paragraph != nil {
			if text := paragraphText(el.Paragraph); text != "" {
				out = append(out, text)
			}
		}
		if el.Table != nil {
			for _, row := range el.Table.TableRows {
				for _, cell := range row.TableCells {
					out = collectParagraphs(cell.Content, out)
				}
			}
		}
	}
	return out
}

func paragraphText(p *docsapi.Paragraph) string {
	var b strings.Builder
	for _, el := range p.Elements {
		if el != nil && el.TextRun != nil {
			b.WriteString(el.TextRun.Content)
		}
	}
	return strings.TrimSpace(b.String())
}
