package types

import (
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// Request tags, one per kind of page the harvester fetches.
const (
	TagShipList   = "ship_list"
	TagShipDetail = "ship_detail"
	TagItinerary  = "itinerary"
	TagRobots     = "robots"
)

// Request represents an HTTP request made by the harvester.
type Request struct {
	// URL is the target URL to fetch.
	URL *url.URL

	// Method is the HTTP method. Defaults to GET.
	Method string

	// Headers are custom HTTP headers to send with the request.
	Headers http.Header

	// MaxRetries is the maximum number of retries for transient failures.
	MaxRetries int

	// RetryCount tracks the current retry attempt.
	RetryCount int

	// Timeout overrides the global request timeout for this request.
	Timeout time.Duration

	// Tag categorizes this request (see the Tag constants).
	Tag string

	// CreatedAt is when this request was created.
	CreatedAt time.Time
}

// NewRequest creates a GET Request for rawURL.
func NewRequest(rawURL string) (*Request, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL %q: %w", rawURL, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidURL, rawURL)
	}

	return &Request{
		URL:        u,
		Method:     http.MethodGet,
		Headers:    make(http.Header),
		MaxRetries: 3,
		CreatedAt:  time.Now(),
	}, nil
}

// URLString returns the string representation of the request URL.
func (r *Request) URLString() string {
	if r.URL == nil {
		return ""
	}
	return r.URL.String()
}

// Domain returns the hostname of the request URL.
func (r *Request) Domain() string {
	if r.URL == nil {
		return ""
	}
	return r.URL.Hostname()
}
