package turn

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"openhistoria/internal/apperr"
	"openhistoria/internal/world"
)

type staticKeys map[string]string

func (k staticKeys) Key(provider string) (string, bool) {
	v, ok := k[provider]
	return v, ok
}

func seedLog(i int) world.LogEntry {
	return world.LogEntry{ID: fmt.Sprint(i), Type: world.LogInfo, Text: fmt.Sprintf("entry %d", i)}
}

func TestParseTimePolicy(t *testing.T) {
	cases := []struct {
		in      string
		want    TimePolicy
		wantErr bool
	}{
		{"", TimeManual, false},
		{"Manual", TimeManual, false},
		{" oracle ", TimeOracle, false},
		{"sometimes", "", true},
	}
	for _, tc := range cases {
		got, err := ParseTimePolicy(tc.in)
		if (err != nil) != tc.wantErr || got != tc.want {
			t.Fatalf("ParseTimePolicy(%q): expected %q err=%v, got %q %v", tc.in, tc.want, tc.wantErr, got, err)
		}
	}
}

func TestAdjudicateTrimsContextAndResolvesKeys(t *testing.T) {
	d := &scriptedOracle{replies: []string{`{"message":"ok","updates":[{"type":"event","description":"d"}]}`}}
	a := NewAdjudicator(d, staticKeys{"openai": "stored-key"}, TimeOracle)

	req := Request{
		Command:   "  march  ",
		GameState: GameState{Turn: 1500},
		Config:    RequestConfig{Provider: "OpenAI", Model: "gpt-4o"},
	}
	for i := 0; i < 20; i++ {
		req.History = append(req.History, seedLog(i))
	}

	payload, err := a.Adjudicate(context.Background(), req)
	if err != nil {
		t.Fatalf("adjudicate: %v", err)
	}
	if payload.Updates[0].Event.Year != 1500 {
		t.Fatalf("expected fallback year from game state, got %d", payload.Updates[0].Event.Year)
	}
	if d.calls[0].APIKey != "stored-key" || d.calls[0].Provider != "openai" {
		t.Fatalf("expected stored key for openai, got %+v", d.calls[0])
	}
	if strings.Contains(d.prompts[0], "entry 4\n") || !strings.Contains(d.prompts[0], "entry 5\n") {
		t.Fatalf("expected only the last %d history entries in prompt", MaxHistory)
	}
	if !strings.Contains(d.systems[0], `"type": "time"`) {
		t.Fatalf("expected time updates to be allowed in system prompt")
	}
}

func TestAdjudicateRequestKeyWins(t *testing.T) {
	d := &scriptedOracle{}
	a := NewAdjudicator(d, staticKeys{"google": "stored"}, TimeManual)
	_, err := a.Adjudicate(context.Background(), Request{Command: "x", Config: RequestConfig{Provider: "google", APIKey: "mine"}})
	if err != nil {
		t.Fatalf("adjudicate: %v", err)
	}
	if d.calls[0].APIKey != "mine" {
		t.Fatalf("expected request key, got %q", d.calls[0].APIKey)
	}
}

func TestAdjudicateValidation(t *testing.T) {
	a := NewAdjudicator(&scriptedOracle{}, nil, TimeManual)
	if _, err := a.Adjudicate(context.Background(), Request{Config: RequestConfig{Provider: "local"}}); !apperr.HasCode(err, apperr.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if _, err := a.Adjudicate(context.Background(), Request{Command: "x"}); !apperr.HasCode(err, apperr.CodeConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}
