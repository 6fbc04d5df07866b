package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

const defaultLocalURL = "http://127.0.0.1:11434"

// Local talks to an Ollama-compatible runtime on the player's machine. It
// needs no credential and streams newline-delimited JSON frames.
type Local struct {
	baseURL string
	client  *http.Client
}

func NewLocal(endpoint string, client *http.Client) *Local {
	return &Local{baseURL: baseURL(endpoint, defaultLocalURL), client: defaultClient(client)}
}

func (l *Local) Name() string      { return "local" }
func (l *Local) RequiresKey() bool { return false }

func (l *Local) DefaultModel() string { return "llama3.1" }

func (l *Local) FallbackModels() []string {
	return []string{"llama3.1", "llama3", "mistral", "qwen2.5"}
}

type localFrame struct {
	Message struct {
		Content string `json:"content"`
	} `json:"message"`
	Done  bool   `json:"done"`
	Error string `json:"error"`
}

func (l *Local) Complete(ctx context.Context, req Request) (string, error) {
	res, err := postJSON(ctx, l.client, l.baseURL+"/api/chat", nil, map[string]any{
		"model":    req.Model,
		"messages": chatMessages(req),
		"stream":   true,
		"format":   "json",
	})
	if err != nil {
		return "", err
	}
	defer res.Body.Close()

	var out strings.Builder
	err = readFrames(res.Body, func(frame []byte) (bool, error) {
		var f localFrame
		if err := json.Unmarshal(frame, &f); err != nil {
			return false, fmt.Errorf("decode stream frame: %w", err)
		}
		if f.Error != "" {
			return false, fmt.Errorf("stream error: %s", f.Error)
		}
		out.WriteString(f.Message.Content)
		return f.Done, nil
	})
	if err != nil {
		return "", err
	}
	return out.String(), nil
}
