// Package http wraps the provider-facing HTTP client used by the translation
// and speech adapters. Per-call deadlines come from the request context; the
// client timeout is the hard upper bound for a single provider round trip.
package http

import (
	"net/http"
	"time"
)

// Client is a bounded HTTP client shared by the provider adapters.
type Client struct {
	httpClient *http.Client
}

func NewClient(timeout time.Duration) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Do executes the request under the configured timeout.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	return c.httpClient.Do(req)
}
