package oracle

import (
	"context"
	"fmt"
	"net/http"
	"strings"
)

const defaultOpenAIURL = "https://api.openai.com"

// jsonModeModels are model id substrings that accept
// response_format json_object.
var jsonModeModels = []string{
	"gpt-4o",
	"gpt-4.1",
	"gpt-4-turbo",
	"gpt-3.5-turbo-1106",
	"gpt-3.5-turbo-0125",
	"o3",
	"o4-mini",
}

// OpenAI calls the chat completions API.
type OpenAI struct {
	baseURL string
	client  *http.Client
}

func NewOpenAI(endpoint string, client *http.Client) *OpenAI {
	return &OpenAI{baseURL: baseURL(endpoint, defaultOpenAIURL), client: defaultClient(client)}
}

func (o *OpenAI) Name() string      { return "openai" }
func (o *OpenAI) RequiresKey() bool { return true }

func (o *OpenAI) DefaultModel() string { return "gpt-4o-mini" }

func (o *OpenAI) FallbackModels() []string {
	return []string{"gpt-4o-mini", "gpt-4o", "gpt-4.1-mini", "gpt-3.5-turbo"}
}

// supportsJSONMode reports whether model is known to accept strict JSON
// output.
func supportsJSONMode(model string) bool {
	lower := strings.ToLower(model)
	for _, m := range jsonModeModels {
		if strings.Contains(lower, m) {
			return true
		}
	}
	return false
}

func buildOpenAIRequest(req Request) map[string]any {
	body := map[string]any{
		"model":    req.Model,
		"messages": chatMessages(req),
	}
	if supportsJSONMode(req.Model) {
		body["response_format"] = map[string]string{"type": "json_object"}
	}
	return body
}

type chatCompletion struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

func (o *OpenAI) Complete(ctx context.Context, req Request) (string, error) {
	res, err := postJSON(ctx, o.client, o.baseURL+"/v1/chat/completions",
		map[string]string{"Authorization": "Bearer " + req.APIKey}, buildOpenAIRequest(req))
	if err != nil {
		return "", err
	}

	var payload chatCompletion
	if err := decodeJSON(res, &payload); err != nil {
		return "", err
	}
	if len(payload.Choices) == 0 {
		return "", fmt.Errorf("response has no choices")
	}
	return payload.Choices[0].Message.Content, nil
}
