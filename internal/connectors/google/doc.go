// Package google provides shared infrastructure for Google API connectors.
//
// It contains:
//   - a token source for a configured OAuth access token
//   - service factories for Google API clients
//   - classification of common Google API errors (401, 403, 404, 429)
//
// # Usage
//
//	ts := google.NewTokenSource(accessToken)
//	svc, err := google.NewDocsService(ctx, ts)
//
// # OAuth2 Scopes
//
// The docs connector reads and edits documents and needs
// https://www.googleapis.com/auth/documents.
package google
