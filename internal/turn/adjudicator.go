// Package turn runs the adjudication cycle: it builds the oracle context,
// sanitizes the reply and applies the validated updates to the world, one
// turn at a time.
package turn

import (
	"context"
	"fmt"
	"strings"

	"openhistoria/internal/apperr"
	"openhistoria/internal/oracle"
	"openhistoria/internal/sanitize"
	"openhistoria/internal/world"
)

const (
	MaxHistory = 15
	MaxEvents  = 10
)

// TimePolicy decides whether oracle time updates may move the calendar.
type TimePolicy string

const (
	// TimeManual ignores oracle time updates; only the player advances time.
	TimeManual TimePolicy = "manual"
	// TimeOracle applies positive oracle time updates to the turn counter.
	TimeOracle TimePolicy = "oracle"
)

// ParseTimePolicy accepts "manual", "oracle" or "" (manual).
func ParseTimePolicy(value string) (TimePolicy, error) {
	switch TimePolicy(strings.ToLower(strings.TrimSpace(value))) {
	case "", TimeManual:
		return TimeManual, nil
	case TimeOracle:
		return TimeOracle, nil
	}
	return "", fmt.Errorf("unknown time policy %q", value)
}

// Dispatcher sends a prompt to an oracle backend.
type Dispatcher interface {
	Dispatch(ctx context.Context, cfg oracle.ProviderConfig, prompt, systemPrompt string) (string, error)
}

// KeyResolver supplies a stored credential for a provider when a request
// carries none.
type KeyResolver interface {
	Key(provider string) (string, bool)
}

// Request is the stateless turn contract used by the HTTP boundary and
// built internally by the Coordinator.
type Request struct {
	Command         string           `json:"command"`
	GameState       GameState        `json:"gameState"`
	Config          RequestConfig    `json:"config"`
	History         []world.LogEntry `json:"history"`
	Events          []world.Event    `json:"events"`
	Relations       []world.Relation `json:"relations"`
	ProvinceSummary string           `json:"provinceSummary"`
	StorySoFar      string           `json:"storySoFar,omitempty"`
}

type GameState struct {
	Turn      int             `json:"turn"`
	Players   []world.Nation  `json:"players"`
	Provinces []ProvinceOwner `json:"provinces"`
}

type ProvinceOwner struct {
	Name    string  `json:"name"`
	OwnerID *string `json:"ownerId"`
}

type RequestConfig struct {
	Provider   string `json:"provider"`
	APIKey     string `json:"apiKey,omitempty"`
	Model      string `json:"model"`
	Difficulty string `json:"difficulty"`
	Scenario   string `json:"scenario"`
}

// Adjudicator turns one request into a sanitized payload. It holds no
// world state.
type Adjudicator struct {
	oracle Dispatcher
	keys   KeyResolver
	policy TimePolicy
}

func NewAdjudicator(d Dispatcher, keys KeyResolver, policy TimePolicy) *Adjudicator {
	if policy == "" {
		policy = TimeManual
	}
	return &Adjudicator{oracle: d, keys: keys, policy: policy}
}

func (a *Adjudicator) Policy() TimePolicy { return a.policy }

// Adjudicate validates req, asks the oracle and sanitizes its reply.
func (a *Adjudicator) Adjudicate(ctx context.Context, req Request) (sanitize.Payload, error) {
	req.Command = strings.TrimSpace(req.Command)
	if req.Command == "" {
		return sanitize.Payload{}, apperr.New(apperr.CodeValidation, "command is required")
	}
	if strings.TrimSpace(req.Config.Provider) == "" {
		return sanitize.Payload{}, apperr.New(apperr.CodeConfiguration, "oracle provider is required")
	}
	req.History = lastN(req.History, MaxHistory)
	req.Events = lastN(req.Events, MaxEvents)

	cfg := oracle.ProviderConfig{
		Provider: strings.ToLower(strings.TrimSpace(req.Config.Provider)),
		APIKey:   strings.TrimSpace(req.Config.APIKey),
		Model:    req.Config.Model,
	}
	if cfg.APIKey == "" && a.keys != nil {
		if key, ok := a.keys.Key(cfg.Provider); ok {
			cfg.APIKey = key
		}
	}

	raw, err := a.oracle.Dispatch(ctx, cfg, BuildPrompt(req), SystemPrompt(a.policy))
	if err != nil {
		return sanitize.Payload{}, err
	}
	return sanitize.Sanitize(raw, req.GameState.Turn)
}

func lastN[T any](items []T, n int) []T {
	if len(items) > n {
		return items[len(items)-n:]
	}
	return items
}
