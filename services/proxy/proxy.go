// Package proxy selects the upstream proxy used for each outgoing request.
package proxy

import (
	"net/url"

	"sjsage522/retailcrawler/pkg/errors"
)

// Provider hands out proxy endpoints. Implementations are safe for use by a
// single crawl at a time; each crawl builds its own Manager.
type Provider interface {
	Name() string
	// Current returns the endpoint to use for the next request. A nil URL
	// means a direct connection.
	Current() (Config, error)
	// Rotate moves to a fresh endpoint or session where the provider allows it.
	Rotate()
	Available() bool
}

// Config is a resolved proxy endpoint
type Config struct {
	URL       *url.URL
	SessionID string
	Provider  string
}

// Direct reports whether no proxy should be used
func (c Config) Direct() bool {
	return c.URL == nil
}

// ErrNoProxyAvailable is returned when every provider is unavailable
var ErrNoProxyAvailable = errors.NewProxy("manager", "no proxy available", nil)

// None is a direct connection
type None struct{}

// Name returns the provider name
func (None) Name() string { return "none" }

// Current returns a direct connection
func (None) Current() (Config, error) { return Config{Provider: "none"}, nil }

// Rotate does nothing
func (None) Rotate() {}

// Available is always true
func (None) Available() bool { return true }
