// Package functions is the client for the remote generation functions —
// externally hosted callable endpoints that perform the actual AI inference.
// The client makes a single attempt per call and never retries on its own;
// retries belong to a fresh user-initiated action so credits are never
// double-charged behind the user's back.
package functions

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/nutrigen/nutrigen/internal/domain"
)

// Client invokes named remote generation functions over HTTP.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// New creates a function client. baseURL is the functions host root, e.g.
// "https://project.functions.example.com". token may be empty for local
// development.
func New(baseURL, token string) *Client {
	return &Client{
		// No client-side timeout: the remote platform governs call
		// duration, callers bound it with ctx if they need to.
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{},
	}
}

// functionResponse is the wire envelope every generation function returns.
type functionResponse struct {
	Success  bool            `json:"success"`
	Data     json.RawMessage `json:"data,omitempty"`
	ImageURL string          `json:"imageUrl,omitempty"`
	Error    string          `json:"error,omitempty"`
	Message  string          `json:"message,omitempty"`
}

// Invoke calls a named function with the standard payload and returns the
// opaque result. All three failure modes — network error, non-2xx status,
// and a success:false body — are normalized into *domain.InvocationError.
func (c *Client) Invoke(ctx context.Context, functionName string, payload domain.InvocationPayload) (domain.GenerationResult, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}

	url := c.baseURL + "/functions/v1/" + functionName
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &domain.InvocationError{
			Kind:     domain.InvocationTransport,
			Function: functionName,
			Err:      err,
		}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &domain.InvocationError{
			Kind:     domain.InvocationTransport,
			Function: functionName,
			Err:      err,
		}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &domain.InvocationError{
			Kind:     domain.InvocationTransport,
			Function: functionName,
			Message:  fmt.Sprintf("unexpected status %d", resp.StatusCode),
		}
	}

	var fr functionResponse
	if err := json.Unmarshal(raw, &fr); err != nil {
		return nil, &domain.InvocationError{
			Kind:     domain.InvocationTransport,
			Function: functionName,
			Message:  "malformed response body",
			Err:      err,
		}
	}

	if !fr.Success {
		msg := fr.Error
		if msg == "" {
			msg = fr.Message
		}
		return nil, &domain.InvocationError{
			Kind:     domain.InvocationRemote,
			Function: functionName,
			Message:  msg,
		}
	}

	if len(fr.Data) > 0 {
		return domain.GenerationResult(fr.Data), nil
	}
	if fr.ImageURL != "" {
		out, _ := json.Marshal(map[string]string{"imageUrl": fr.ImageURL})
		return domain.GenerationResult(out), nil
	}
	// success with no payload — image-less acknowledgment
	return domain.GenerationResult(`{}`), nil
}
