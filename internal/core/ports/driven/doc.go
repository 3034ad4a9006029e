// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Required Interfaces
//
// These must be provided for the reconciler to function:
//
//   - MatchIndex: Nearest-neighbour lookup and persistence of content blocks
//   - LocationTracker: Ordered block ids per location
//   - EmbeddingProvider: Text to vector conversion
//   - ConfigStore: Application configuration
//
// # Optional Interfaces
//
// Registered per source type. A missing source fails the fetch; a missing
// writer only skips propagation to that location:
//
//   - ContentSource: Reads the current segments of a location
//   - ContentWriter: Rewrites one segment of a location in place
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter or connector package
package driven
