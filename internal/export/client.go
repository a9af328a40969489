// Package export ships serialized conversation records to a conserver.
package export

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/soyeahso/vconscribe/internal/logging"
)

// Client posts record payloads to a conserver ingest endpoint.
type Client struct {
	url  string
	http *http.Client
	log  *logging.Logger
}

// NewClient creates a conserver client for the given endpoint URL.
func NewClient(url string, log *logging.Logger) *Client {
	return &Client{
		url: url,
		http: &http.Client{
			Timeout: 30 * time.Second,
		},
		log: log.Sub("export"),
	}
}

// Ship posts the serialized record and returns the response status code.
// A transport-level failure returns status 0 and the error. Ship does not
// retry: the next sweep pass is the retry mechanism.
func (c *Client) Ship(ctx context.Context, payload []byte) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return 0, fmt.Errorf("export: building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("export: posting to %s: %w", c.url, err)
	}
	defer resp.Body.Close()

	c.log.Debug().Int("status", resp.StatusCode).Int("bytes", len(payload)).Msg("record posted")
	return resp.StatusCode, nil
}

// Success reports whether the status code counts as an acknowledged
// delivery.
func Success(status int) bool {
	return status >= 200 && status < 300
}
