// Package config loads the turnstile configuration file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/aretw0/turnstile/pkg/persistence/middleware"
	"github.com/aretw0/turnstile/pkg/session"
)

// DefaultPath is the configuration file looked up when none is given.
const DefaultPath = "turnstile.yaml"

// Store backends.
const (
	StoreMemory = "memory"
	StoreFile   = "file"
	StoreRedis  = "redis"
	StoreSQLite = "sqlite"
)

// Generator providers.
const (
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
	ProviderGemini    = "gemini"
)

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("invalid config")

// Config is the root of turnstile.yaml.
type Config struct {
	Store        StoreConfig        `yaml:"store"`
	Generator    GeneratorConfig    `yaml:"generator"`
	Generation   GenerationConfig   `yaml:"generation"`
	Instructions InstructionsConfig `yaml:"instructions"`
	Server       ServerConfig       `yaml:"server"`
	Session      SessionConfig      `yaml:"session"`
	Encryption   EncryptionConfig   `yaml:"encryption"`
}

// StoreConfig selects the checkpoint store.
type StoreConfig struct {
	Type string `yaml:"type"`
	// Dir is the thread directory of the file store.
	Dir string `yaml:"dir"`
	// Path is the database file of the sqlite store.
	Path     string        `yaml:"path"`
	RedisURL string        `yaml:"redis_url"`
	Prefix   string        `yaml:"prefix"`
	TTL      time.Duration `yaml:"ttl"`
}

// GeneratorConfig selects the model provider.
type GeneratorConfig struct {
	Provider  string `yaml:"provider"`
	Model     string `yaml:"model"`
	MaxTokens int64  `yaml:"max_tokens"`
	// APIKey overrides the provider's environment variable.
	APIKey string `yaml:"api_key"`
}

// GenerationConfig bounds each generator call.
type GenerationConfig struct {
	Timeout time.Duration `yaml:"timeout"`
}

// InstructionsConfig holds inline instruction texts or a loam directory.
// Inline texts take precedence over documents loaded from Dir.
type InstructionsConfig struct {
	Dir        string `yaml:"dir"`
	Gathering  string `yaml:"gathering"`
	Generating string `yaml:"generating"`
}

// ServerConfig configures `turnstile serve`.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// SessionConfig configures per-thread serialization.
type SessionConfig struct {
	Policy  string        `yaml:"policy"`
	LockTTL time.Duration `yaml:"lock_ttl"`
}

// EncryptionConfig enables the encryption middleware when Key is set.
type EncryptionConfig struct {
	Key          string   `yaml:"key"`
	FallbackKeys []string `yaml:"fallback_keys"`
}

// Default returns the configuration used when no file exists.
func Default() Config {
	return Config{
		Store: StoreConfig{
			Type: StoreFile,
			Dir:  ".turnstile/threads",
			Path: ".turnstile/turnstile.db",
		},
		Generator: GeneratorConfig{
			Provider: ProviderAnthropic,
		},
		Generation: GenerationConfig{
			Timeout: 2 * time.Minute,
		},
		Server: ServerConfig{
			Addr: ":8080",
		},
		Session: SessionConfig{
			Policy:  string(session.PolicyQueue),
			LockTTL: session.DefaultLockTTL,
		},
	}
}

// Load reads path over the defaults. A missing file yields the defaults.
// JSON files are accepted as well, since JSON is valid YAML.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		path = DefaultPath
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks enumerations and keys.
func (c Config) Validate() error {
	switch c.Store.Type {
	case StoreMemory, StoreFile, StoreRedis, StoreSQLite:
	default:
		return fmt.Errorf("%w: unknown store type %q", ErrInvalidConfig, c.Store.Type)
	}
	if c.Store.Type == StoreRedis && c.Store.RedisURL == "" {
		return fmt.Errorf("%w: store.redis_url is required for the redis store", ErrInvalidConfig)
	}

	switch c.Generator.Provider {
	case ProviderAnthropic, ProviderOpenAI, ProviderGemini:
	default:
		return fmt.Errorf("%w: unknown provider %q", ErrInvalidConfig, c.Generator.Provider)
	}

	if c.Generation.Timeout < 0 {
		return fmt.Errorf("%w: generation.timeout must not be negative", ErrInvalidConfig)
	}

	if _, err := session.ParsePolicy(c.Session.Policy); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	if c.Encryption.Key != "" {
		for _, k := range append([]string{c.Encryption.Key}, c.Encryption.FallbackKeys...) {
			if _, err := middleware.ParseKey(k); err != nil {
				return fmt.Errorf("%w: encryption: %v", ErrInvalidConfig, err)
			}
		}
	}
	return nil
}

// ResolveAPIKey returns the configured key or the provider's environment variable.
func (g GeneratorConfig) ResolveAPIKey() string {
	if g.APIKey != "" {
		return g.APIKey
	}
	return os.Getenv(strings.ToUpper(g.Provider) + "_API_KEY")
}
