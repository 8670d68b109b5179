package givebutter

import (
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Option configures optional Client settings.
type Option func(*options) error

// options holds optional configuration for creating a Client.
type options struct {
	// baseURL is the base URL for API requests.
	baseURL string

	// httpClient is a custom HTTP client.
	httpClient *http.Client

	// initialBackoff is the first retry wait for transient failures.
	initialBackoff time.Duration

	// maxAttempts bounds how often a page request is tried.
	maxAttempts int

	// maxBackoff caps the retry wait between attempts.
	maxBackoff time.Duration

	// pageSize is the number of records requested per page.
	pageSize int

	// timeout is the HTTP client timeout.
	timeout time.Duration
}

// WithBaseURL sets a custom base URL for the API.
func WithBaseURL(baseURL string) Option {
	return func(o *options) error {
		baseURL = strings.TrimSpace(baseURL)
		if baseURL == "" {
			return fmt.Errorf("base URL cannot be empty")
		}
		o.baseURL = baseURL
		return nil
	}
}

// WithHTTPClient sets a custom HTTP client. Overrides WithTimeout.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(o *options) error {
		if httpClient == nil {
			return fmt.Errorf("HTTP client cannot be nil")
		}
		o.httpClient = httpClient
		return nil
	}
}

// WithMaxAttempts bounds how often a single page request is tried before the
// fetch is abandoned.
func WithMaxAttempts(attempts int) Option {
	return func(o *options) error {
		if attempts < 1 {
			return fmt.Errorf("max attempts must be at least 1, got %d", attempts)
		}
		o.maxAttempts = attempts
		return nil
	}
}

// WithPageSize sets the number of records requested per page.
func WithPageSize(size int) Option {
	return func(o *options) error {
		if size < 1 || size > maxPageSize {
			return fmt.Errorf("page size must be between 1 and %d, got %d", maxPageSize, size)
		}
		o.pageSize = size
		return nil
	}
}

// WithRetryWait sets the initial and maximum wait between retry attempts.
func WithRetryWait(initial time.Duration, maximum time.Duration) Option {
	return func(o *options) error {
		if initial <= 0 {
			return fmt.Errorf("initial retry wait must be positive, got %v", initial)
		}
		if maximum < initial {
			return fmt.Errorf("maximum retry wait %v is below initial %v", maximum, initial)
		}
		o.initialBackoff = initial
		o.maxBackoff = maximum
		return nil
	}
}

// WithTimeout sets the HTTP client timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(o *options) error {
		if timeout <= 0 {
			return fmt.Errorf("timeout must be positive, got %v", timeout)
		}
		o.timeout = timeout
		return nil
	}
}

// defaultOptions returns options with sensible defaults.
func defaultOptions() *options {
	return &options{
		baseURL:        "https://api.givebutter.com/v1",
		initialBackoff: 500 * time.Millisecond,
		maxAttempts:    4,
		maxBackoff:     10 * time.Second,
		pageSize:       50,
		timeout:        30 * time.Second,
	}
}
