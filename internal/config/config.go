package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const FileName = "historia.yaml"

var providers = []string{"local", "google", "openai", "anthropic", "deepseek"}

type ProjectConfig struct {
	Project  string         `yaml:"project"`
	Version  int            `yaml:"version"`
	Game     GameConfig     `yaml:"game"`
	Oracle   OracleConfig   `yaml:"oracle"`
	World    WorldConfig    `yaml:"world"`
	Storage  StorageConfig  `yaml:"storage"`
	Neo4j    Neo4jConfig    `yaml:"neo4j"`
	Keystore KeystoreConfig `yaml:"keystore"`
	Journal  JournalConfig  `yaml:"journal"`
	Server   ServerConfig   `yaml:"server"`
}

type GameConfig struct {
	Scenario   string `yaml:"scenario"`
	Difficulty string `yaml:"difficulty"`
	TimePolicy string `yaml:"time_policy"`
	StartYear  int    `yaml:"start_year"`
}

type OracleConfig struct {
	Provider  string          `yaml:"provider"`
	Model     string          `yaml:"model"`
	Timeout   time.Duration   `yaml:"timeout"`
	Endpoints OracleEndpoints `yaml:"endpoints"`
}

type OracleEndpoints struct {
	Local     string `yaml:"local,omitempty"`
	Google    string `yaml:"google,omitempty"`
	OpenAI    string `yaml:"openai,omitempty"`
	Anthropic string `yaml:"anthropic,omitempty"`
	DeepSeek  string `yaml:"deepseek,omitempty"`
}

type WorldConfig struct {
	Paths   []string `yaml:"paths"`
	Exclude []string `yaml:"exclude"`
}

type StorageConfig struct {
	DSN string `yaml:"dsn"`
}

type Neo4jConfig struct {
	URI      string `yaml:"uri"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
}

type KeystoreConfig struct {
	Path string `yaml:"path"`
}

type JournalConfig struct {
	Dir string `yaml:"dir"`
}

type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// Default returns the configuration written by `historia init`.
func Default(project string) ProjectConfig {
	cfg := ProjectConfig{Project: project, Version: 1}
	cfg.Game.Scenario = "The Hundred Years War"
	cfg.Game.Difficulty = "normal"
	applyDefaults(&cfg)
	return cfg
}

func LoadProjectConfig(path string) (*ProjectConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("loading project config: %w", err)
	}

	var cfg ProjectConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("loading project config: %w", err)
	}

	applyDefaults(&cfg)
	if err := validateProjectConfig(&cfg); err != nil {
		return nil, fmt.Errorf("loading project config: %w", err)
	}

	return &cfg, nil
}

// Load reads the project file and applies HISTORIA_* environment overrides.
func Load(path string) (*ProjectConfig, Env, error) {
	cfg, err := LoadProjectConfig(path)
	if err != nil {
		return nil, Env{}, err
	}
	env, err := LoadEnv()
	if err != nil {
		return nil, Env{}, err
	}
	cfg.ApplyEnv(env)
	if err := validateProjectConfig(cfg); err != nil {
		return nil, Env{}, fmt.Errorf("applying environment: %w", err)
	}
	return cfg, env, nil
}

// Write stores cfg as YAML at path.
func Write(path string, cfg ProjectConfig) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encoding project config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing project config: %w", err)
	}
	return nil
}

func applyDefaults(cfg *ProjectConfig) {
	if cfg.Game.TimePolicy == "" {
		cfg.Game.TimePolicy = "manual"
	}
	if cfg.Game.StartYear == 0 {
		cfg.Game.StartYear = 1444
	}
	if cfg.Oracle.Provider == "" {
		cfg.Oracle.Provider = "local"
	}
	if cfg.Oracle.Timeout == 0 {
		cfg.Oracle.Timeout = 90 * time.Second
	}
	if len(cfg.World.Paths) == 0 {
		cfg.World.Paths = []string{"world"}
	}
	if cfg.Storage.DSN == "" {
		cfg.Storage.DSN = "sqlite://.historia/saves.db"
	}
	if cfg.Keystore.Path == "" {
		cfg.Keystore.Path = ".historia/keys.yaml"
	}
	if cfg.Journal.Dir == "" {
		cfg.Journal.Dir = ".historia/journal"
	}
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8080"
	}
}

func validateProjectConfig(cfg *ProjectConfig) error {
	if strings.TrimSpace(cfg.Project) == "" {
		return fmt.Errorf("project name is required")
	}
	if cfg.Version != 1 {
		return fmt.Errorf("unsupported version: %d", cfg.Version)
	}

	provider := strings.ToLower(strings.TrimSpace(cfg.Oracle.Provider))
	if !knownProvider(provider) {
		return fmt.Errorf("unknown oracle provider: %s", cfg.Oracle.Provider)
	}
	cfg.Oracle.Provider = provider
	if cfg.Oracle.Timeout < 0 {
		return fmt.Errorf("oracle timeout must not be negative")
	}

	switch strings.ToLower(strings.TrimSpace(cfg.Game.TimePolicy)) {
	case "manual", "oracle":
	default:
		return fmt.Errorf("unknown time policy: %s", cfg.Game.TimePolicy)
	}

	for i, path := range cfg.World.Paths {
		if strings.TrimSpace(path) == "" {
			return fmt.Errorf("world path %d is empty", i)
		}
	}

	if !strings.Contains(cfg.Storage.DSN, "://") {
		return fmt.Errorf("storage dsn must include a scheme: %s", cfg.Storage.DSN)
	}

	return nil
}

func knownProvider(name string) bool {
	for _, p := range providers {
		if p == name {
			return true
		}
	}
	return false
}
