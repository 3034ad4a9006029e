// Package connectors holds the content adapters for external systems and
// the text helpers they share.
//
// Each subpackage serves one location source type and implements
// driven.ContentSource, and driven.ContentWriter where the system can be
// written back to:
//
//   - filesystem: "fs" locations, local text and markdown files
//   - notion: "notion" locations, single paragraph blocks
//   - google/docs: "gdocs" locations, Google Docs documents
//   - github: "github" locations, repository files on the default branch
package connectors
