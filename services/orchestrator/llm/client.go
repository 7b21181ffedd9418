// Package llm talks to the text completion backends that voice the two
// conference personas.
package llm

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// Client produces completions for prompts.
type Client interface {
	// Complete returns the plain text completion for prompt.
	Complete(ctx context.Context, prompt string) (string, error)
	// CompleteJSON asks for a response matching schema and decodes it into out.
	CompleteJSON(ctx context.Context, prompt string, schema Schema, out any) error
}

// Schema is a JSON schema document sent alongside structured requests.
type Schema map[string]any

// HTTPClient is the subset of *http.Client the backends use.
type HTTPClient interface {
	Do(*http.Request) (*http.Response, error)
}

var _ HTTPClient = (*http.Client)(nil)

// StatusError reports a non-200 reply from a backend.
type StatusError struct {
	Backend string
	Code    int
	Body    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s returned %d: %s", e.Backend, e.Code, e.Body)
}

// Options selects and configures a backend.
type Options struct {
	Provider   string // "endpoint" or "openai"
	URL        string
	APIKey     string
	BaseURL    string
	Model      string
	Timeout    time.Duration
	HTTPClient HTTPClient
}

// New builds the backend named by opts.Provider.
func New(opts Options) (Client, error) {
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: opts.Timeout}
	}
	switch opts.Provider {
	case "", "endpoint":
		if opts.URL == "" {
			return nil, fmt.Errorf("endpoint provider requires a URL")
		}
		return NewEndpointWithClient(opts.URL, client), nil
	case "openai":
		return NewOpenAIWithClient(opts.APIKey, opts.BaseURL, opts.Model, client), nil
	default:
		return nil, fmt.Errorf("unknown LLM provider: %s", opts.Provider)
	}
}
