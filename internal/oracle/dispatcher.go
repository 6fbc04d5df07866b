package oracle

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"openhistoria/internal/apperr"
)

// selectionMarkers identify a backend rejecting a model id rather than the
// request as a whole.
var selectionMarkers = []string{"not found", "unsupported", "invalid model", "404"}

// ProviderConfig selects the backend and model for one dispatch.
type ProviderConfig struct {
	Provider string `json:"provider"`
	APIKey   string `json:"apiKey,omitempty"`
	Model    string `json:"model"`
}

// Dispatcher routes prompts to registered providers. It holds no per-call
// state and is safe for concurrent use.
type Dispatcher struct {
	providers map[string]Provider
	tracer    trace.Tracer
}

func NewDispatcher(providers ...Provider) *Dispatcher {
	d := &Dispatcher{
		providers: make(map[string]Provider, len(providers)),
		tracer:    otel.Tracer("openhistoria/oracle"),
	}
	for _, p := range providers {
		d.providers[p.Name()] = p
	}
	return d
}

// Names lists the registered provider identifiers in sorted order.
func (d *Dispatcher) Names() []string {
	names := make([]string, 0, len(d.providers))
	for name := range d.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Provider returns the backend registered under name.
func (d *Dispatcher) Provider(name string) (Provider, bool) {
	p, ok := d.providers[strings.ToLower(strings.TrimSpace(name))]
	return p, ok
}

// Dispatch sends prompt to the configured backend, trying the preferred
// model and then the backend's fallback pool. Selection errors move on to
// the next candidate; any other failure is returned at once.
func (d *Dispatcher) Dispatch(ctx context.Context, cfg ProviderConfig, prompt, systemPrompt string) (string, error) {
	p, ok := d.Provider(cfg.Provider)
	if !ok {
		return "", apperr.New(apperr.CodeConfiguration, fmt.Sprintf("unknown oracle provider %q", cfg.Provider))
	}
	apiKey := strings.TrimSpace(cfg.APIKey)
	if p.RequiresKey() && apiKey == "" {
		return "", apperr.New(apperr.CodeConfiguration, fmt.Sprintf("missing API key for provider %s", p.Name()))
	}

	var lastErr error
	for i, model := range Candidates(cfg.Model, p) {
		text, err := d.attempt(ctx, p, Request{
			Prompt:       prompt,
			SystemPrompt: systemPrompt,
			Model:        model,
			APIKey:       apiKey,
		}, i+1)
		if err == nil {
			return text, nil
		}
		if !IsSelectionError(err) {
			return "", apperr.Wrap(apperr.CodeOracle, fmt.Sprintf("%s request failed", p.Name()), err)
		}
		lastErr = apperr.Wrap(apperr.CodeSelection, fmt.Sprintf("%s rejected model %s", p.Name(), model), err)
	}
	if lastErr == nil {
		lastErr = apperr.New(apperr.CodeSelection, fmt.Sprintf("%s has no candidate models", p.Name()))
	}
	return "", lastErr
}

func (d *Dispatcher) attempt(ctx context.Context, p Provider, req Request, attempt int) (string, error) {
	ctx, span := d.tracer.Start(ctx, "oracle.complete",
		trace.WithAttributes(
			attribute.String("oracle.provider", p.Name()),
			attribute.String("oracle.model", req.Model),
			attribute.Int("oracle.attempt", attempt),
		),
	)
	defer span.End()

	text, err := p.Complete(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}
	span.SetAttributes(attribute.Int("oracle.response_bytes", len(text)))
	return text, nil
}

// NormalizeModel strips a "models/" namespace and surrounding space,
// returning fallback when nothing is left.
func NormalizeModel(model, fallback string) string {
	model = strings.TrimSpace(model)
	model = strings.TrimSpace(strings.TrimPrefix(model, "models/"))
	if model == "" {
		return fallback
	}
	return model
}

// Candidates returns the ordered, de-duplicated model list for p: the
// normalized preferred model followed by the fallback pool.
func Candidates(preferred string, p Provider) []string {
	pool := p.FallbackModels()
	out := make([]string, 0, len(pool)+1)
	seen := make(map[string]bool, len(pool)+1)
	for _, m := range append([]string{NormalizeModel(preferred, p.DefaultModel())}, pool...) {
		m = NormalizeModel(m, "")
		if m == "" || seen[m] {
			continue
		}
		seen[m] = true
		out = append(out, m)
	}
	return out
}

// IsSelectionError reports whether err looks like a backend rejecting the
// requested model id.
func IsSelectionError(err error) bool {
	if err == nil {
		return false
	}
	var e *apperr.Error
	if errors.As(err, &e) && e.Code == apperr.CodeSelection {
		return true
	}
	text := strings.ToLower(err.Error())
	for _, marker := range selectionMarkers {
		if strings.Contains(text, marker) {
			return true
		}
	}
	return false
}
