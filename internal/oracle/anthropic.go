package oracle

import (
	"context"
	"net/http"
	"strings"
)

const (
	defaultAnthropicURL = "https://api.anthropic.com"
	anthropicVersion    = "2023-06-01"
	anthropicMaxTokens  = 2048
)

// Anthropic calls the messages API, which takes the system prompt as a
// top-level field.
type Anthropic struct {
	baseURL string
	client  *http.Client
}

func NewAnthropic(endpoint string, client *http.Client) *Anthropic {
	return &Anthropic{baseURL: baseURL(endpoint, defaultAnthropicURL), client: defaultClient(client)}
}

func (a *Anthropic) Name() string      { return "anthropic" }
func (a *Anthropic) RequiresKey() bool { return true }

func (a *Anthropic) DefaultModel() string { return "claude-3-5-sonnet-latest" }

func (a *Anthropic) FallbackModels() []string {
	return []string{"claude-3-5-sonnet-latest", "claude-3-5-haiku-latest", "claude-3-opus-latest"}
}

func (a *Anthropic) Complete(ctx context.Context, req Request) (string, error) {
	body := map[string]any{
		"model":      req.Model,
		"max_tokens": anthropicMaxTokens,
		"messages":   []chatMessage{{Role: "user", Content: req.Prompt}},
	}
	if strings.TrimSpace(req.SystemPrompt) != "" {
		body["system"] = req.SystemPrompt
	}
	res, err := postJSON(ctx, a.client, a.baseURL+"/v1/messages", map[string]string{
		"x-api-key":         req.APIKey,
		"anthropic-version": anthropicVersion,
	}, body)
	if err != nil {
		return "", err
	}

	var payload struct {
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
	}
	if err := decodeJSON(res, &payload); err != nil {
		return "", err
	}
	var out strings.Builder
	for _, block := range payload.Content {
		if block.Type == "text" {
			out.WriteString(block.Text)
		}
	}
	return out.String(), nil
}
