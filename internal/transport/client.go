package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"tutor-chat-client/internal/dto"
)

// Client performs authenticated requests against the tutor backend. All
// outbound calls of the core go through it so the bearer token and error
// taxonomy live in one place.
type Client struct {
	BaseURL string
	Token   string

	client *http.Client
	// streamClient has no overall timeout: http.Client.Timeout covers the
	// whole body read, which would cut long-lived event streams short.
	streamClient *http.Client
}

func NewClient(baseURL, token string, timeout time.Duration) *Client {
	return &Client{
		BaseURL: baseURL,
		Token:   token,
		client: &http.Client{
			Timeout: timeout,
		},
		streamClient: &http.Client{},
	}
}

// DoJSON sends one JSON request and decodes the JSON response into out.
// A nil body sends no payload; a nil out discards the response body.
func (c *Client) DoJSON(ctx context.Context, method, path string, body interface{}, out interface{}) error {
	var reqBody io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reqBody = bytes.NewBuffer(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.Token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("tutor api request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decodeError(resp)
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("unmarshal response: %w", err)
	}
	return nil
}

// OpenStream issues a GET with an event-stream accept header and hands the
// raw body to the caller. The caller owns closing it.
func (c *Client) OpenStream(ctx context.Context, path string, query url.Values) (io.ReadCloser, error) {
	u := c.BaseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.Token)
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.streamClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("tutor api request failed: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		return nil, decodeError(resp)
	}
	return resp.Body, nil
}

// decodeError turns a non-2xx response into an *APIError, reading the
// backend's {message} body when present.
func decodeError(resp *http.Response) error {
	apiErr := &APIError{Status: resp.StatusCode}

	bodyBytes, err := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if err == nil && len(bodyBytes) > 0 {
		var errBody dto.ErrorResponse
		if json.Unmarshal(bodyBytes, &errBody) == nil {
			apiErr.Message = errBody.Message
		}
	}
	return apiErr
}
