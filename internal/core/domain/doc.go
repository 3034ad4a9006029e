// Package domain defines the core business entities for knoba.
//
// This package is part of the hexagonal architecture's innermost layer.
// It has NO external dependencies and defines the fundamental types:
//
//   - Location: A place in an external system where content is materialised
//   - ContentBlock: The canonical, deduplicated unit of content
//   - MatchCandidate: A scored nearest-neighbour hit for an embedding
//   - Batch: A set of locations to upsert and/or remove together
//
// # Architectural Position
//
// Domain is at the centre of the hexagon. It may only import
// the Go standard library. All other packages depend on domain,
// never the reverse.
//
// # Import Rules
//
//   - Can Import: Standard library only
//   - Cannot Import: Any internal/ package, any external dependency
package domain
