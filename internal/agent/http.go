package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// HTTPClient talks to an agent exposed as a JSON-over-HTTP endpoint. One
// POST per task; the endpoint URL is the full task submission URL.
type HTTPClient struct {
	endpoint string
	client   *http.Client
}

func NewHTTPClient(endpoint string) *HTTPClient {
	return &HTTPClient{
		endpoint: endpoint,
		// Per-send deadlines come from the caller's context, not a client
		// timeout, so a long task timeout is not capped here.
		client: &http.Client{},
	}
}

func (c *HTTPClient) Send(ctx context.Context, d *Delivery) (*Response, error) {
	body, err := json.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("marshaling task delivery: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building agent request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sending task %s: %w", d.TaskID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%w: agent returned %d: %s", ErrProtocolViolation, resp.StatusCode, snippet)
	}

	var r Response
	if err := json.NewDecoder(resp.Body).Decode(&r); err != nil {
		return nil, fmt.Errorf("%w: decoding response for task %s: %v", ErrProtocolViolation, d.TaskID, err)
	}
	if err := Validate(d, &r); err != nil {
		return nil, err
	}
	return &r, nil
}
