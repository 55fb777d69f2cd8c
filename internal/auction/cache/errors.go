package cache

import "errors"

// Absence conditions reported by the cache. Callers select at construction
// whether these surface as errors or as silent no-ops (see
// config.Config.SilentErrors); all other failures are always surfaced.
var (
	// ErrDuplicateOrderID is returned when adding an order whose id is
	// already resting in the cache.
	ErrDuplicateOrderID = errors.New("duplicate order id")
	// ErrOrderNotFound is returned when cancelling or fetching an absent id.
	ErrOrderNotFound = errors.New("order not found")
	// ErrUserNotFound is returned when cancelling orders of an unknown user.
	ErrUserNotFound = errors.New("user not found")
	// ErrSecurityNotFound is returned when cancelling or querying an unknown
	// security.
	ErrSecurityNotFound = errors.New("security not found")
)
