// Package oracle dispatches adjudication prompts to generative-text
// backends and walks each backend's model fallback pool.
package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// DefaultTimeout bounds a single backend request.
const DefaultTimeout = 90 * time.Second

// Request is one completion call against a single model.
type Request struct {
	Prompt       string
	SystemPrompt string
	Model        string
	APIKey       string
}

// Provider is one oracle backend. Implementations shape the request for
// their API and return the generated text.
type Provider interface {
	Name() string
	RequiresKey() bool
	DefaultModel() string
	FallbackModels() []string
	Complete(ctx context.Context, req Request) (string, error)
}

// Endpoints overrides backend base URLs. Empty fields use the public default.
type Endpoints struct {
	Local     string `yaml:"local"`
	Google    string `yaml:"google"`
	OpenAI    string `yaml:"openai"`
	Anthropic string `yaml:"anthropic"`
	DeepSeek  string `yaml:"deepseek"`
}

// Providers builds the five standard backends sharing client.
func Providers(endpoints Endpoints, client *http.Client) []Provider {
	client = defaultClient(client)
	return []Provider{
		NewLocal(endpoints.Local, client),
		NewGoogle(endpoints.Google, client),
		NewOpenAI(endpoints.OpenAI, client),
		NewAnthropic(endpoints.Anthropic, client),
		NewDeepSeek(endpoints.DeepSeek, client),
	}
}

func defaultClient(client *http.Client) *http.Client {
	if client == nil {
		return &http.Client{Timeout: DefaultTimeout}
	}
	return client
}

func baseURL(configured, fallback string) string {
	configured = strings.TrimRight(strings.TrimSpace(configured), "/")
	if configured == "" {
		return fallback
	}
	return configured
}

// postJSON sends payload and returns the response when the status is 2xx.
// The caller closes the body.
func postJSON(ctx context.Context, client *http.Client, url string, headers map[string]string, payload any) (*http.Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	res, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		defer res.Body.Close()
		msg, err := io.ReadAll(io.LimitReader(res.Body, 4096))
		if err != nil {
			return nil, fmt.Errorf("read error body: %w", err)
		}
		return nil, fmt.Errorf("status %d: %s", res.StatusCode, strings.TrimSpace(string(msg)))
	}
	return res, nil
}

// decodeJSON decodes a complete response body into out.
func decodeJSON(res *http.Response, out any) error {
	defer res.Body.Close()
	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

func chatMessages(req Request) []chatMessage {
	msgs := make([]chatMessage, 0, 2)
	if strings.TrimSpace(req.SystemPrompt) != "" {
		msgs = append(msgs, chatMessage{Role: "system", Content: req.SystemPrompt})
	}
	return append(msgs, chatMessage{Role: "user", Content: req.Prompt})
}
