package loop

import "time"

// Control loop constants
const (
	// Default ceiling for the backoff delay
	DefaultMaxInterval = 24 * time.Hour

	// Event channel buffer size
	EventBuffer = 64
)
