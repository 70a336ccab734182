// internal/common/http/client.go
package http

import (
	"context"
	"net/http"
	"time"
)

// Client is a thin timeout-bounded HTTP client for outbound calls such
// as geocoding lookups. The timeout caps the whole exchange, so a stuck
// upstream cannot hold a command open indefinitely.
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

// DoWithContext executes the request bound to ctx, so callers can
// cancel an in-flight lookup independently of the client timeout.
func (c *Client) DoWithContext(ctx context.Context, req *http.Request) (*http.Response, error) {
	req = req.WithContext(ctx)
	return c.httpClient.Do(req)
}
