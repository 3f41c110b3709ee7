package constants

import "time"

// Handler constants
const (
	// DefaultSimilarLimit is the default number of faces returned by a similarity search
	DefaultSimilarLimit = 20

	// MaxSimilarLimit caps the number of faces returned by a similarity search
	MaxSimilarLimit = 500

	// MaxRequestBodySize is the maximum accepted JSON request body in bytes (1MB)
	MaxRequestBodySize = 1 << 20

	// RequestTimeout bounds ordinary API requests; processing runs as a background job
	RequestTimeout = 60 * time.Second
)

// Event channel constants
const (
	// EventChannelBuffer is the buffer size for SSE event listener channels
	EventChannelBuffer = 100

	// JobRetention is how long a finished processing job stays queryable
	JobRetention = 10 * time.Minute
)
