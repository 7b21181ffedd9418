package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// Endpoint calls a single prompt endpoint that accepts {prompt, schema}
// and answers with JSON.
type Endpoint struct {
	url        string
	httpClient HTTPClient
}

func NewEndpoint(url string) *Endpoint {
	return NewEndpointWithClient(url, &http.Client{})
}

func NewEndpointWithClient(url string, client HTTPClient) *Endpoint {
	return &Endpoint{url: url, httpClient: client}
}

type endpointRequest struct {
	Prompt string `json:"prompt"`
	Schema Schema `json:"schema,omitempty"`
}

func (e *Endpoint) Complete(ctx context.Context, prompt string) (string, error) {
	body, err := e.call(ctx, endpointRequest{Prompt: prompt})
	if err != nil {
		return "", err
	}
	return decodeText(body)
}

func (e *Endpoint) CompleteJSON(ctx context.Context, prompt string, schema Schema, out any) error {
	body, err := e.call(ctx, endpointRequest{Prompt: prompt, Schema: schema})
	if err != nil {
		return err
	}
	// Some gateways return the structured result as a JSON-encoded string.
	var s string
	if json.Unmarshal(body, &s) == nil {
		body = []byte(s)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to unmarshal structured response: %w", err)
	}
	return nil
}

func (e *Endpoint) call(ctx context.Context, req endpointRequest) ([]byte, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, e.url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := e.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{Backend: "llm endpoint", Code: resp.StatusCode, Body: string(respBody)}
	}
	return respBody, nil
}

// decodeText accepts a bare JSON string or an object carrying the text in
// "response" or "text".
func decodeText(body []byte) (string, error) {
	var s string
	if err := json.Unmarshal(body, &s); err == nil {
		return checkText(s)
	}

	var obj struct {
		Response *string `json:"response"`
		Text     *string `json:"text"`
	}
	if err := json.Unmarshal(body, &obj); err != nil {
		return "", fmt.Errorf("failed to unmarshal response: %w", err)
	}
	switch {
	case obj.Response != nil:
		return checkText(*obj.Response)
	case obj.Text != nil:
		return checkText(*obj.Text)
	}
	return "", fmt.Errorf("response has no text field: %s", truncate(string(body), 200))
}

func checkText(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", fmt.Errorf("empty completion")
	}
	return s, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
