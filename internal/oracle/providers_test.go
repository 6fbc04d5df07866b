package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"openhistoria/internal/apperr"
)

type captured struct {
	path   string
	header http.Header
	body   map[string]any
}

func newBackend(t *testing.T, handler func(w http.ResponseWriter, got captured)) (*httptest.Server, *[]captured) {
	t.Helper()
	var calls []captured
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode request: %v", err)
		}
		c := captured{path: r.URL.Path, header: r.Header.Clone(), body: body}
		calls = append(calls, c)
		handler(w, c)
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func TestLocalStreamsFrames(t *testing.T) {
	srv, calls := newBackend(t, func(w http.ResponseWriter, _ captured) {
		flusher := w.(http.Flusher)
		for _, chunk := range []string{`{"message":{"content":"{\"mess`, `age\":"},"done":false}` + "\n", `{"message":{"content":"\"ok\"}"},"done":true}` + "\n"} {
			fmt.Fprint(w, chunk)
			flusher.Flush()
		}
	})
	text, err := NewLocal(srv.URL, srv.Client()).Complete(context.Background(), Request{Prompt: "p", SystemPrompt: "s", Model: "llama3"})
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if text != `{"message":"ok"}` {
		t.Fatalf("unexpected text %q", text)
	}
	got := (*calls)[0]
	if got.path != "/api/chat" || got.body["stream"] != true {
		t.Fatalf("unexpected request %+v", got)
	}
	msgs := got.body["messages"].([]any)
	if len(msgs) != 2 || msgs[0].(map[string]any)["role"] != "system" {
		t.Fatalf("expected system and user messages, got %v", msgs)
	}
}

func TestLocalStreamError(t *testing.T) {
	srv, _ := newBackend(t, func(w http.ResponseWriter, _ captured) {
		fmt.Fprintln(w, `{"error":"model \"x\" not found, try pulling it first"}`)
	})
	_, err := NewLocal(srv.URL, srv.Client()).Complete(context.Background(), Request{Prompt: "p", Model: "x"})
	if !IsSelectionError(err) {
		t.Fatalf("expected selection-class error, got %v", err)
	}
}

func TestGoogleSystemInstruction(t *testing.T) {
	srv, calls := newBackend(t, func(w http.ResponseWriter, _ captured) {
		fmt.Fprint(w, `{"candidates":[{"content":{"parts":[{"text":"{\"a\":"},{"text":"1}"}]}}]}`)
	})
	g := NewGoogle(srv.URL, srv.Client())

	text, err := g.Complete(context.Background(), Request{Prompt: "cmd", SystemPrompt: "rules", Model: "gemini-1.5-pro", APIKey: "k"})
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if text != `{"a":1}` {
		t.Fatalf("unexpected text %q", text)
	}
	got := (*calls)[0]
	if got.path != "/v1beta/models/gemini-1.5-pro:generateContent" {
		t.Fatalf("unexpected path %s", got.path)
	}
	if got.header.Get("x-goog-api-key") != "k" {
		t.Fatalf("expected api key header")
	}
	if _, ok := got.body["systemInstruction"]; !ok {
		t.Fatalf("expected systemInstruction for gemini")
	}

	if _, err := g.Complete(context.Background(), Request{Prompt: "cmd", SystemPrompt: "rules", Model: "gemma-3-27b-it", APIKey: "k"}); err != nil {
		t.Fatalf("complete: %v", err)
	}
	got = (*calls)[1]
	if _, ok := got.body["systemInstruction"]; ok {
		t.Fatalf("expected no systemInstruction for gemma")
	}
	contents := got.body["contents"].([]any)
	part := contents[0].(map[string]any)["parts"].([]any)[0].(map[string]any)["text"].(string)
	if part != "rules\n\ncmd" {
		t.Fatalf("expected system prompt folded into user turn, got %q", part)
	}
}

func TestOpenAIJSONMode(t *testing.T) {
	cases := []struct {
		model string
		want  bool
	}{
		{"gpt-4o-mini", true},
		{"gpt-4.1", true},
		{"gpt-3.5-turbo-0125", true},
		{"o4-mini", true},
		{"gpt-3.5-turbo", false},
		{"gpt-4", false},
	}
	for _, tc := range cases {
		t.Run(tc.model, func(t *testing.T) {
			srv, calls := newBackend(t, func(w http.ResponseWriter, _ captured) {
				fmt.Fprint(w, `{"choices":[{"message":{"role":"assistant","content":"{}"}}]}`)
			})
			text, err := NewOpenAI(srv.URL, srv.Client()).Complete(context.Background(), Request{Prompt: "p", SystemPrompt: "s", Model: tc.model, APIKey: "k"})
			if err != nil || text != "{}" {
				t.Fatalf("expected {}, got %q %v", text, err)
			}
			got := (*calls)[0]
			if got.header.Get("Authorization") != "Bearer k" {
				t.Fatalf("expected bearer header")
			}
			_, hasFormat := got.body["response_format"]
			if hasFormat != tc.want {
				t.Fatalf("expected response_format=%v, got %v", tc.want, hasFormat)
			}
		})
	}
}

func TestAnthropicSystemField(t *testing.T) {
	srv, calls := newBackend(t, func(w http.ResponseWriter, _ captured) {
		fmt.Fprint(w, `{"content":[{"type":"text","text":"{\"message\":"},{"type":"tool_use"},{"type":"text","text":"\"hi\"}"}]}`)
	})
	text, err := NewAnthropic(srv.URL, srv.Client()).Complete(context.Background(), Request{Prompt: "p", SystemPrompt: "s", Model: "claude-3-5-haiku-latest", APIKey: "k"})
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if text != `{"message":"hi"}` {
		t.Fatalf("unexpected text %q", text)
	}
	got := (*calls)[0]
	if got.body["system"] != "s" || got.header.Get("x-api-key") != "k" || got.header.Get("anthropic-version") == "" {
		t.Fatalf("unexpected request %+v", got)
	}
	if msgs := got.body["messages"].([]any); len(msgs) != 1 {
		t.Fatalf("expected only the user message, got %v", msgs)
	}
}

func TestDeepSeekStreamsSSE(t *testing.T) {
	srv, calls := newBackend(t, func(w http.ResponseWriter, _ captured) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"{\\\"a\\\"\"}}]}\n\n")
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\":2}\"}}]}\n\n")
		fmt.Fprint(w, "data: [DONE]\n\n")
	})
	text, err := NewDeepSeek(srv.URL, srv.Client()).Complete(context.Background(), Request{Prompt: "p", Model: "deepseek-chat", APIKey: "k"})
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if text != `{"a":2}` {
		t.Fatalf("unexpected text %q", text)
	}
	if _, ok := (*calls)[0].body["response_format"]; ok {
		t.Fatalf("expected no JSON mode for deepseek")
	}
}

func TestDispatchOverHTTPFallsBackOn404(t *testing.T) {
	srv, calls := newBackend(t, func(w http.ResponseWriter, got captured) {
		if got.body["model"] == "gpt-4o-mini" {
			fmt.Fprint(w, `{"choices":[{"message":{"content":"done"}}]}`)
			return
		}
		http.Error(w, `{"error":{"message":"The model does not exist"}}`, http.StatusNotFound)
	})
	d := NewDispatcher(NewOpenAI(srv.URL, srv.Client()))
	text, err := d.Dispatch(context.Background(), ProviderConfig{Provider: "openai", APIKey: "k", Model: "models/gpt-9"}, "p", "s")
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if text != "done" {
		t.Fatalf("expected fallback output, got %q", text)
	}
	if len(*calls) != 2 || (*calls)[0].body["model"] != "gpt-9" {
		t.Fatalf("expected normalized preferred model then fallback, got %d calls", len(*calls))
	}
}

func TestDispatchOverHTTPAuthFailureIsFatal(t *testing.T) {
	srv, calls := newBackend(t, func(w http.ResponseWriter, _ captured) {
		http.Error(w, "invalid x-api-key", http.StatusUnauthorized)
	})
	_, err := NewDispatcher(NewAnthropic(srv.URL, srv.Client())).Dispatch(context.Background(), ProviderConfig{Provider: "anthropic", APIKey: "bad"}, "p", "s")
	if !apperr.HasCode(err, apperr.CodeOracle) {
		t.Fatalf("expected oracle error, got %v", err)
	}
	if !strings.Contains(err.Error(), "status 401") {
		t.Fatalf("expected status in error, got %v", err)
	}
	if len(*calls) != 1 {
		t.Fatalf("expected one attempt, got %d", len(*calls))
	}
}
