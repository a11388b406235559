package publisher

import "context"

// Publisher sends encoded records downstream
type Publisher interface {
	// Publish sends message under key to one of the record streams
	Publish(ctx context.Context, key string, message []byte) error

	// TrimStreams trims all streams to the configured maximum length
	TrimStreams(ctx context.Context) error

	// Ping reports whether the backend is reachable
	Ping(ctx context.Context) error

	// Close closes the publisher connection
	Close() error
}
