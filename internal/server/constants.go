package server

import "time"

// Server configuration constants
const (
	// Timeout for a single websocket event write
	WriteTimeout = 5 * time.Second

	// HTTP server read/write timeouts
	HTTPReadTimeout  = 10 * time.Second
	HTTPWriteTimeout = 10 * time.Second
)
