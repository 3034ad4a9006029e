package driven

import (
	"context"

	"github.com/ca-shen98/knoba/internal/core/domain"
)

// LocationTracker records, for each location, the ordered list of block ids
// whose content currently makes up that location.
type LocationTracker interface {
	// Get returns the block ids for a location in segment order.
	// Returns domain.ErrNotFound if the location has no mapping.
	Get(ctx context.Context, loc domain.Location) ([]string, error)

	// Set replaces the mapping for a location.
	Set(ctx context.Context, loc domain.Location, blockIDs []string) error

	// Delete removes the mapping for a location. Unknown locations are ignored.
	Delete(ctx context.Context, loc domain.Location) error
}
