package oracle

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

const defaultGoogleURL = "https://generativelanguage.googleapis.com"

// noSystemRoleFamilies lists model families whose API rejects a separate
// system instruction.
var noSystemRoleFamilies = []string{"gemma"}

// Google calls the Gemini generateContent API.
type Google struct {
	baseURL string
	client  *http.Client
}

func NewGoogle(endpoint string, client *http.Client) *Google {
	return &Google{baseURL: baseURL(endpoint, defaultGoogleURL), client: defaultClient(client)}
}

func (g *Google) Name() string      { return "google" }
func (g *Google) RequiresKey() bool { return true }

func (g *Google) DefaultModel() string { return "gemini-2.0-flash" }

func (g *Google) FallbackModels() []string {
	return []string{"gemini-2.0-flash", "gemini-1.5-flash", "gemini-1.5-pro", "gemma-3-27b-it"}
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiRequest struct {
	SystemInstruction *geminiContent  `json:"systemInstruction,omitempty"`
	Contents          []geminiContent `json:"contents"`
}

// supportsSystemRole reports whether model accepts a systemInstruction.
func supportsSystemRole(model string) bool {
	lower := strings.ToLower(model)
	for _, family := range noSystemRoleFamilies {
		if strings.Contains(lower, family) {
			return false
		}
	}
	return true
}

func buildGeminiRequest(req Request) geminiRequest {
	prompt := req.Prompt
	var system *geminiContent
	if strings.TrimSpace(req.SystemPrompt) != "" {
		if supportsSystemRole(req.Model) {
			system = &geminiContent{Parts: []geminiPart{{Text: req.SystemPrompt}}}
		} else {
			prompt = req.SystemPrompt + "\n\n" + req.Prompt
		}
	}
	return geminiRequest{
		SystemInstruction: system,
		Contents:          []geminiContent{{Role: "user", Parts: []geminiPart{{Text: prompt}}}},
	}
}

func (g *Google) Complete(ctx context.Context, req Request) (string, error) {
	endpoint := fmt.Sprintf("%s/v1beta/models/%s:generateContent", g.baseURL, url.PathEscape(req.Model))
	res, err := postJSON(ctx, g.client, endpoint, map[string]string{"x-goog-api-key": req.APIKey}, buildGeminiRequest(req))
	if err != nil {
		return "", err
	}

	var payload struct {
		Candidates []struct {
			Content geminiContent `json:"content"`
		} `json:"candidates"`
	}
	if err := decodeJSON(res, &payload); err != nil {
		return "", err
	}
	if len(payload.Candidates) == 0 {
		return "", fmt.Errorf("response has no candidates")
	}
	var out strings.Builder
	for _, part := range payload.Candidates[0].Content.Parts {
		out.WriteString(part.Text)
	}
	return out.String(), nil
}
