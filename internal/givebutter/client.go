package givebutter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/peteski22/donorpulse/internal/domain"
)

// maxPageSize is the largest page size the Givebutter API accepts.
const maxPageSize = 100

// ErrUnauthorized is returned when the API rejects the credential. It is
// never retried.
var ErrUnauthorized = errors.New("givebutter: unauthorized")

// FetchError reports a listing that was abandoned after retries were
// exhausted. LastPage is the last fully retrieved page, so the caller knows
// how far the fetch progressed.
type FetchError struct {
	// Err is the underlying cause.
	Err error

	// LastPage is the last fully retrieved page number, zero if none.
	LastPage int

	// Resource is the API resource being listed.
	Resource string
}

// Error implements the error interface.
func (e *FetchError) Error() string {
	return fmt.Sprintf("fetching %s stopped after page %d: %v", e.Resource, e.LastPage, e.Err)
}

// Unwrap returns the underlying cause.
func (e *FetchError) Unwrap() error {
	return e.Err
}

// Client is a Givebutter API client.
type Client struct {
	// apiKey is the bearer token for authentication.
	apiKey string

	// baseURL is the base URL for API requests.
	baseURL string

	// httpClient is the HTTP client for making requests.
	httpClient *http.Client

	// initialBackoff is the first retry wait for transient failures.
	initialBackoff time.Duration

	// maxAttempts bounds how often a page request is tried.
	maxAttempts int

	// maxBackoff caps the retry wait between attempts.
	maxBackoff time.Duration

	// pageSize is the number of records requested per page.
	pageSize int
}

// FetchDonors retrieves the complete donor set for a sync cycle: every
// contact, merged with the contact's active recurring plans.
func (c *Client) FetchDonors(ctx context.Context) ([]domain.DonorRecord, error) {
	contacts, err := c.ListContacts(ctx)
	if err != nil {
		return nil, err
	}

	plans, err := c.ListPlans(ctx)
	if err != nil {
		return nil, err
	}

	return mapDonors(contacts, plans), nil
}

// ListContacts fetches all contacts, page by page, until the terminal page.
func (c *Client) ListContacts(ctx context.Context) ([]Contact, error) {
	var all []Contact

	for page := 1; ; page++ {
		var result contactsResponse
		if err := c.fetchPage(ctx, "contacts", page, &result); err != nil {
			return nil, classifyListError("contacts", page, err)
		}
		all = append(all, result.Data...)

		if page >= result.Meta.LastPage {
			break
		}
	}

	return all, nil
}

// ListPlans fetches all recurring plans, page by page, until the terminal page.
func (c *Client) ListPlans(ctx context.Context) ([]Plan, error) {
	var all []Plan

	for page := 1; ; page++ {
		var result plansResponse
		if err := c.fetchPage(ctx, "plans", page, &result); err != nil {
			return nil, classifyListError("plans", page, err)
		}
		all = append(all, result.Data...)

		if page >= result.Meta.LastPage {
			break
		}
	}

	return all, nil
}

// fetchPage retrieves a single page of a list resource, retrying transient
// failures with exponential backoff up to the configured attempt bound.
func (c *Client) fetchPage(ctx context.Context, resource string, page int, out any) error {
	_, err := backoff.Retry(ctx,
		func() (any, error) {
			return nil, c.doList(ctx, resource, page, out)
		},
		backoff.WithBackOff(c.retryPolicy()),
		backoff.WithMaxTries(uint(c.maxAttempts)),
	)
	return err
}

// doList performs one attempt at fetching a list page. Transient failures
// (rate limits, 5xx, transport errors) are returned plain so the retry
// policy sees them; everything else is marked permanent.
func (c *Client) doList(ctx context.Context, resource string, page int, out any) error {
	params := url.Values{}
	params.Set("page", strconv.Itoa(page))
	params.Set("per_page", strconv.Itoa(c.pageSize))

	reqURL := fmt.Sprintf("%s/%s?%s", c.baseURL, resource, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return backoff.Permanent(fmt.Errorf("creating request: %w", err))
	}

	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("executing request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return backoff.Permanent(fmt.Errorf("%w: status %d", ErrUnauthorized, resp.StatusCode))
	case resp.StatusCode == http.StatusTooManyRequests:
		if seconds := retryAfterSeconds(resp.Header); seconds > 0 {
			return backoff.RetryAfter(seconds)
		}
		return fmt.Errorf("rate limited: status %d", resp.StatusCode)
	case resp.StatusCode >= http.StatusInternalServerError:
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("upstream error: status %d: %s", resp.StatusCode, string(body))
	default:
		body, _ := io.ReadAll(resp.Body)
		return backoff.Permanent(fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(body)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return backoff.Permanent(fmt.Errorf("decoding response: %w", err))
	}

	return nil
}

// retryPolicy builds the exponential backoff policy for page retries.
func (c *Client) retryPolicy() backoff.BackOff {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = c.initialBackoff
	policy.MaxInterval = c.maxBackoff
	return policy
}

// classifyListError maps a page failure to the fetch error taxonomy.
// Credential rejections pass through untouched; anything else becomes a
// FetchError recording how far the listing got.
func classifyListError(resource string, page int, err error) error {
	if errors.Is(err, ErrUnauthorized) {
		return err
	}
	return &FetchError{
		Err:      err,
		LastPage: page - 1,
		Resource: resource,
	}
}

// retryAfterSeconds parses the Retry-After response header, returning zero
// when absent or not in seconds form.
func retryAfterSeconds(header http.Header) int {
	value := header.Get("Retry-After")
	if value == "" {
		return 0
	}
	seconds, err := strconv.Atoi(value)
	if err != nil || seconds < 0 {
		return 0
	}
	return seconds
}

// NewClient creates a new Givebutter API client.
func NewClient(apiKey string, opts ...Option) (*Client, error) {
	if apiKey == "" {
		return nil, errors.New("API key is required")
	}

	o := defaultOptions()
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, fmt.Errorf("applying option: %w", err)
		}
	}

	httpClient := o.httpClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: o.timeout}
	}

	return &Client{
		apiKey:         apiKey,
		baseURL:        o.baseURL,
		httpClient:     httpClient,
		initialBackoff: o.initialBackoff,
		maxAttempts:    o.maxAttempts,
		maxBackoff:     o.maxBackoff,
		pageSize:       o.pageSize,
	}, nil
}
