// Package errors defines the typed errors shared by the fetcher, proxies,
// publisher and configuration.
package errors

import (
	"errors"
	"fmt"
	"time"
)

// ErrorType classifies a CrawlerError
type ErrorType string

const (
	ErrorTypeNetwork       ErrorType = "network"
	ErrorTypeFetchStatus   ErrorType = "fetch_status"
	ErrorTypeRateLimit     ErrorType = "rate_limit"
	ErrorTypeParsing       ErrorType = "parsing"
	ErrorTypePublisher     ErrorType = "publisher"
	ErrorTypeValidation    ErrorType = "validation"
	ErrorTypeConfiguration ErrorType = "configuration"
	ErrorTypeProxy         ErrorType = "proxy"
)

// CrawlerError is a classified failure. Source names the retailer, stream or
// proxy the error came from and may be empty.
type CrawlerError struct {
	Type       ErrorType
	Source     string
	Message    string
	StatusCode int
	Err        error
	Time       time.Time
}

func (e *CrawlerError) Error() string {
	msg := string(e.Type)
	if e.Source != "" {
		msg += " " + e.Source
	}
	msg += ": " + e.Message
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *CrawlerError) Unwrap() error {
	return e.Err
}

// Is matches CrawlerErrors by type, and by message when the target has one,
// so package-level sentinels work with errors.Is
func (e *CrawlerError) Is(target error) bool {
	t, ok := target.(*CrawlerError)
	if !ok {
		return false
	}
	return t.Type == e.Type && (t.Message == "" || t.Message == e.Message)
}

// IsRetryable reports transport failures and 5xx responses
func (e *CrawlerError) IsRetryable() bool {
	switch e.Type {
	case ErrorTypeNetwork:
		return true
	case ErrorTypeFetchStatus:
		return e.StatusCode >= 500
	}
	return false
}

// New creates a CrawlerError stamped with the current time
func New(errType ErrorType, source, message string, err error) *CrawlerError {
	return &CrawlerError{
		Type:    errType,
		Source:  source,
		Message: message,
		Err:     err,
		Time:    time.Now(),
	}
}

func NewNetwork(retailer, message string, err error) *CrawlerError {
	return New(ErrorTypeNetwork, retailer, message, err)
}

// NewFetchStatus reports a non-2xx response for url
func NewFetchStatus(retailer, url string, status int) *CrawlerError {
	e := New(ErrorTypeFetchStatus, retailer, fmt.Sprintf("fetch %s unexpected status code: %d", url, status), nil)
	e.StatusCode = status
	return e
}

func NewParsing(retailer, message string, err error) *CrawlerError {
	return New(ErrorTypeParsing, retailer, message, err)
}

// NewRateLimit reports that retailer is blocked for d
func NewRateLimit(retailer string, d time.Duration) *CrawlerError {
	return New(ErrorTypeRateLimit, retailer, fmt.Sprintf("rate limited for %v", d), nil)
}

func NewPublisher(stream, message string, err error) *CrawlerError {
	return New(ErrorTypePublisher, stream, message, err)
}

func NewValidation(retailer, message string) *CrawlerError {
	return New(ErrorTypeValidation, retailer, message, nil)
}

func NewConfiguration(message string, err error) *CrawlerError {
	return New(ErrorTypeConfiguration, "", message, err)
}

func NewProxy(provider, message string, err error) *CrawlerError {
	return New(ErrorTypeProxy, provider, message, err)
}

// TypeOf returns the ErrorType of the first CrawlerError in err's chain
func TypeOf(err error) (ErrorType, bool) {
	var ce *CrawlerError
	if errors.As(err, &ce) {
		return ce.Type, true
	}
	return "", false
}
