package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

const defaultDeepSeekURL = "https://api.deepseek.com"

// DeepSeek calls an OpenAI-compatible chat endpoint with server-sent event
// streaming. It never requests JSON mode.
type DeepSeek struct {
	baseURL string
	client  *http.Client
}

func NewDeepSeek(endpoint string, client *http.Client) *DeepSeek {
	return &DeepSeek{baseURL: baseURL(endpoint, defaultDeepSeekURL), client: defaultClient(client)}
}

func (d *DeepSeek) Name() string      { return "deepseek" }
func (d *DeepSeek) RequiresKey() bool { return true }

func (d *DeepSeek) DefaultModel() string { return "deepseek-chat" }

func (d *DeepSeek) FallbackModels() []string {
	return []string{"deepseek-chat", "deepseek-reasoner"}
}

func (d *DeepSeek) Complete(ctx context.Context, req Request) (string, error) {
	res, err := postJSON(ctx, d.client, d.baseURL+"/chat/completions",
		map[string]string{"Authorization": "Bearer " + req.APIKey},
		map[string]any{
			"model":    req.Model,
			"messages": chatMessages(req),
			"stream":   true,
		})
	if err != nil {
		return "", err
	}
	defer res.Body.Close()

	var out strings.Builder
	err = readSSE(res.Body, func(data []byte) error {
		var chunk struct {
			Choices []struct {
				Delta struct {
					Content string `json:"content"`
				} `json:"delta"`
			} `json:"choices"`
		}
		if err := json.Unmarshal(data, &chunk); err != nil {
			return fmt.Errorf("decode stream chunk: %w", err)
		}
		for _, c := range chunk.Choices {
			out.WriteString(c.Delta.Content)
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return out.String(), nil
}
