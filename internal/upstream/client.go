package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"storefront-gateway/internal/util"

	"go.uber.org/zap"
)

// Client talks to the backend REST API. All authenticated methods take the
// caller's bearer token explicitly; there is no ambient credential state.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *zap.Logger
}

// NewClient creates a backend API client
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
		logger:  util.NamedLogger("upstream"),
	}
}

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// do issues one request and decodes the JSON response into out (if non-nil).
// Network errors and 5xx responses come back as *TransientError; 401 and 404
// map to sentinels; other 4xx become *APIError.
func (c *Client) do(ctx context.Context, op, method, path, token string, body, out interface{}) error {
	start := time.Now()
	outcome := "ok"
	defer func() {
		util.UpstreamRequestDuration.WithLabelValues(op, outcome).Observe(time.Since(start).Seconds())
	}()

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			outcome = "encode_error"
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		outcome = "request_error"
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		outcome = "network_error"
		return &TransientError{Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		outcome = "unauthorized"
		return ErrUnauthorized
	case resp.StatusCode == http.StatusNotFound:
		outcome = "not_found"
		return ErrNotFound
	case resp.StatusCode >= 500:
		outcome = "server_error"
		return &TransientError{Err: fmt.Errorf("backend returned status %d", resp.StatusCode)}
	case resp.StatusCode >= 400:
		outcome = "rejected"
		var eb errorBody
		if err := json.NewDecoder(resp.Body).Decode(&eb); err != nil || (eb.Error == "" && eb.Message == "") {
			return &APIError{Status: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
		}
		msg := eb.Error
		if msg == "" {
			msg = eb.Message
		}
		return &APIError{Status: resp.StatusCode, Message: msg}
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			outcome = "decode_error"
			return fmt.Errorf("failed to decode %s response: %w", op, err)
		}
	}
	return nil
}

// authed guards authenticated endpoints: a missing token short-circuits the
// call client-side instead of sending a request doomed to 401.
func (c *Client) authed(token string) error {
	if token == "" {
		return ErrNoToken
	}
	return nil
}
