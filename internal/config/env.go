package config

import (
	"fmt"
	"strings"

	"github.com/caarlos0/env/v11"
)

// Env holds secrets and overrides read from HISTORIA_* variables.
type Env struct {
	Provider       string `env:"HISTORIA_ORACLE_PROVIDER"`
	Model          string `env:"HISTORIA_ORACLE_MODEL"`
	StorageDSN     string `env:"HISTORIA_STORAGE_DSN"`
	ServerAddr     string `env:"HISTORIA_SERVER_ADDR"`
	Neo4jURI       string `env:"HISTORIA_NEO4J_URI"`
	Neo4jPassword  string `env:"HISTORIA_NEO4J_PASSWORD"`
	KeystoreSecret string `env:"HISTORIA_KEYSTORE_SECRET"`
	OTelEndpoint   string `env:"HISTORIA_OTEL_ENDPOINT"`

	GoogleAPIKey    string `env:"HISTORIA_GOOGLE_API_KEY"`
	OpenAIAPIKey    string `env:"HISTORIA_OPENAI_API_KEY"`
	AnthropicAPIKey string `env:"HISTORIA_ANTHROPIC_API_KEY"`
	DeepSeekAPIKey  string `env:"HISTORIA_DEEPSEEK_API_KEY"`
}

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

func LoadEnv() (Env, error) {
	var e Env
	if err := ParseEnv(&e); err != nil {
		return Env{}, err
	}
	return e, nil
}

// ApplyEnv overrides file settings with any non-empty environment values.
func (c *ProjectConfig) ApplyEnv(e Env) {
	override(&c.Oracle.Provider, e.Provider)
	override(&c.Oracle.Model, e.Model)
	override(&c.Storage.DSN, e.StorageDSN)
	override(&c.Server.Addr, e.ServerAddr)
	override(&c.Neo4j.URI, e.Neo4jURI)
	override(&c.Neo4j.Password, e.Neo4jPassword)
}

// APIKey returns the environment credential for provider, if any.
func (e Env) APIKey(provider string) (string, bool) {
	var key string
	switch strings.ToLower(strings.TrimSpace(provider)) {
	case "google":
		key = e.GoogleAPIKey
	case "openai":
		key = e.OpenAIAPIKey
	case "anthropic":
		key = e.AnthropicAPIKey
	case "deepseek":
		key = e.DeepSeekAPIKey
	}
	key = strings.TrimSpace(key)
	return key, key != ""
}

func override(dst *string, value string) {
	if v := strings.TrimSpace(value); v != "" {
		*dst = v
	}
}
