package domain

import (
	"fmt"
	"strings"
)

// Location identifies one place where content is materialised in an external
// system. It is namespaced as "{sourceType}_{rawId}".
type Location string

// Built-in source types.
const (
	SourceFilesystem = "fs"
	SourceNotion     = "notion"
	SourceGoogleDocs = "gdocs"
	SourceGitHub     = "github"
)

const locationSeparator = "_"

// NewLocation builds a location from its source type and raw id.
func NewLocation(sourceType, rawID string) (Location, error) {
	return ParseLocation(sourceType + locationSeparator + rawID)
}

// ParseLocation validates a location identifier.
// The source type is everything before the first underscore and must be
// lowercase alphanumeric; the raw id is the remainder and must be non-empty.
func ParseLocation(s string) (Location, error) {
	sourceType, rawID, ok := strings.Cut(s, locationSeparator)
	if !ok {
		return "", fmt.Errorf("%w: location %q has no source type prefix", ErrInvalidInput, s)
	}
	if !validSourceType(sourceType) {
		return "", fmt.Errorf("%w: location %q has invalid source type %q", ErrInvalidInput, s, sourceType)
	}
	if strings.TrimSpace(rawID) == "" {
		return "", fmt.Errorf("%w: location %q has empty raw id", ErrInvalidInput, s)
	}
	return Location(s), nil
}

func validSourceType(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return false
		}
	}
	return true
}

// SourceType returns the namespace that selects content adapters.
func (l Location) SourceType() string {
	sourceType, _, _ := strings.Cut(string(l), locationSeparator)
	return sourceType
}

// RawID returns the identifier within the source system.
func (l Location) RawID() string {
	_, rawID, _ := strings.Cut(string(l), locationSeparator)
	return rawID
}

// String returns the string representation.
func (l Location) String() string {
	return string(l)
}
