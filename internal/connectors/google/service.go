package google

import (
	"context"

	"golang.org/x/oauth2"
	"google.golang.org/api/docs/v1"
	"google.golang.org/api/option"
)

// NewDocsService creates a Google Docs API service using the provided TokenSource.
// Extra options are appended, e.g. option.WithEndpoint for tests.
func NewDocsService(ctx context.Context, ts oauth2.TokenSource, opts ...option.ClientOption) (*docs.Service, error) {
	return docs.NewService(ctx, append([]option.ClientOption{option.WithTokenSource(ts)}, opts...)...)
}
