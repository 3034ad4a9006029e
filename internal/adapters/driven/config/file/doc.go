// Package file provides the TOML configuration store.
//
// Keys are addressed in dot notation ("matching.identity_threshold") and
// written back as nested tables, so the file stays hand-editable:
//
//	[matching]
//	identity_threshold = 0.98
//	semantic_threshold = 0.85
//
//	[index]
//	backend = "sqlite"
package file
