// Package cube provides a client for the Cube.dev REST API.
package cube

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
)

const (
	// DefaultMaxAttempts bounds the "Continue wait" polling loop.
	DefaultMaxAttempts = 10

	// DefaultBackoff is the fixed wait between polling attempts.
	DefaultBackoff = time.Second
)

// TokenSource supplies the bearer token attached to every request.
type TokenSource interface {
	// Token returns a currently valid token.
	Token() (string, error)
	// Refresh discards any held token and returns a fresh one.
	Refresh() (string, error)
}

// Client is a Cube.dev REST API client.
type Client struct {
	endpoint    string
	tokens      TokenSource
	httpClient  *http.Client
	maxAttempts int
	backoff     time.Duration
}

// Field describes a single measure or dimension of a cube.
type Field struct {
	Name        string `json:"name"`
	Title       string `json:"title"`
	ShortTitle  string `json:"shortTitle"`
	Description string `json:"description"`
	Type        string `json:"type"`
}

// CubeDef describes one cube exposed by the semantic layer.
type CubeDef struct {
	Name        string  `json:"name"`
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Measures    []Field `json:"measures"`
	Dimensions  []Field `json:"dimensions"`
}

// Meta is the schema description returned by the /meta route.
type Meta struct {
	Cubes []CubeDef `json:"cubes"`
}

// envelope is the response wrapper returned by the /load route.
type envelope struct {
	Error  string           `json:"error"`
	Status string           `json:"status"`
	Data   []map[string]any `json:"data"`
}

// NewClient creates a Cube API client for the given endpoint. A trailing
// slash on the endpoint is tolerated.
func NewClient(endpoint string, tokens TokenSource) *Client {
	return &Client{
		endpoint: strings.TrimRight(endpoint, "/"),
		tokens:   tokens,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		maxAttempts: DefaultMaxAttempts,
		backoff:     DefaultBackoff,
	}
}

// SetPolling overrides the polling bounds. Used by tests to avoid real waits.
func (c *Client) SetPolling(maxAttempts int, backoff time.Duration) {
	c.maxAttempts = maxAttempts
	c.backoff = backoff
}

// Meta fetches the schema description from the /meta route.
func (c *Client) Meta(ctx context.Context) (*Meta, error) {
	body, err := c.request(ctx, "meta", nil)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Meta
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode metadata response: %w", err)
	}
	if resp.Error != "" {
		return nil, &APIError{StatusCode: http.StatusOK, Body: resp.Error}
	}

	return &resp.Meta, nil
}

// Load executes a query against the /load route and returns the rows from
// the response envelope. The query payload is opaque to the client; it is
// forwarded as-is.
func (c *Client) Load(ctx context.Context, query map[string]any) ([]map[string]any, error) {
	body, err := c.request(ctx, "load", map[string]any{"query": query})
	if err != nil {
		return nil, err
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("failed to decode query response: %w", err)
	}
	if env.Error != "" {
		return nil, &APIError{StatusCode: http.StatusOK, Body: env.Error}
	}

	return env.Data, nil
}

// request issues an authenticated GET to the given route. Every parameter
// value is JSON-serialized into the query string, per the Cube API
// convention. The call polls while the API reports the query is still
// processing, up to maxAttempts, and forces a single token refresh on a 403.
func (c *Client) request(ctx context.Context, route string, params map[string]any) ([]byte, error) {
	values := url.Values{}
	for key, value := range params {
		serialized, err := json.Marshal(value)
		if err != nil {
			return nil, fmt.Errorf("failed to serialize parameter %q: %w", key, err)
		}
		values.Set(key, string(serialized))
	}

	endpoint := c.endpoint + "/" + route
	if len(values) > 0 {
		endpoint += "?" + values.Encode()
	}

	attempts := 0
	refreshed := false
	for {
		token, err := c.tokens.Token()
		if err != nil {
			return nil, err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, fmt.Errorf("%w: %v", ErrTransport, err)
		}

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrTransport, err)
		}

		// A 403 on a locally-valid token means the remote rejected it;
		// refresh once and retry before giving up.
		if resp.StatusCode == http.StatusForbidden && !refreshed {
			log.Debug("Cube API returned 403, refreshing token")
			refreshed = true
			if _, err := c.tokens.Refresh(); err != nil {
				return nil, err
			}
			continue
		}

		if isContinueWait(body) {
			attempts++
			if attempts >= c.maxAttempts {
				return nil, fmt.Errorf("%w after %d attempts", ErrTimeout, attempts)
			}
			log.WithField("attempt", attempts).Debug("query still processing, waiting")
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.backoff):
			}
			continue
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return nil, &APIError{
				StatusCode: resp.StatusCode,
				Body:       strings.TrimSpace(string(body)),
			}
		}

		return body, nil
	}
}

// isContinueWait reports whether the envelope signals an in-progress query.
// Cube returns HTTP 400 with {"error": "Continue wait"}; newer deployments
// use {"status": "continue"}.
func isContinueWait(body []byte) bool {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return false
	}
	return env.Error == "Continue wait" || env.Status == "continue"
}
