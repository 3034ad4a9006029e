// Package mcp provides an MCP (Model Context Protocol) server adapter for knoba.
// It lets assistants submit location batches and inspect content blocks.
package mcp

import "errors"

// ErrMissingReconciler is returned when the reconciler is not provided.
var ErrMissingReconciler = errors.New("mcp: reconciler is required")
