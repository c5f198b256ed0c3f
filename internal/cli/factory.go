package cli

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/aretw0/turnstile"
	"github.com/aretw0/turnstile/internal/config"
	"github.com/aretw0/turnstile/pkg/adapters/anthropic"
	"github.com/aretw0/turnstile/pkg/adapters/file"
	"github.com/aretw0/turnstile/pkg/adapters/gemini"
	"github.com/aretw0/turnstile/pkg/adapters/memory"
	"github.com/aretw0/turnstile/pkg/adapters/openai"
	"github.com/aretw0/turnstile/pkg/adapters/redis"
	"github.com/aretw0/turnstile/pkg/adapters/sqlite"
	"github.com/aretw0/turnstile/pkg/domain"
	"github.com/aretw0/turnstile/pkg/persistence/middleware"
	"github.com/aretw0/turnstile/pkg/ports"
	"github.com/aretw0/turnstile/pkg/session"
)

// Options contains the command-line overrides shared by every command.
// Empty values keep what the configuration file says.
type Options struct {
	ConfigPath string
	Debug      bool
	Store      string
	Dir        string
	RedisURL   string
	Provider   string
	Model      string
}

// LoadConfig reads the configuration file and applies the overrides.
func LoadConfig(opts Options) (config.Config, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return cfg, err
	}

	if opts.Store != "" {
		cfg.Store.Type = opts.Store
	}
	if opts.Dir != "" {
		cfg.Store.Dir = opts.Dir
	}
	if opts.RedisURL != "" {
		cfg.Store.RedisURL = opts.RedisURL
	}
	if opts.Provider != "" {
		cfg.Generator.Provider = opts.Provider
	}
	if opts.Model != "" {
		cfg.Generator.Model = opts.Model
	}
	return cfg, cfg.Validate()
}

// Backend is an opened checkpoint store together with the resources it holds.
type Backend struct {
	Store ports.CheckpointStore
	// Locker is set when the store can serialize threads across processes.
	Locker  ports.DistributedLocker
	closers []io.Closer
}

// Close releases the store connections.
func (b *Backend) Close() error {
	var errs []error
	for _, c := range b.closers {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}

// OpenStore builds the configured checkpoint store, wrapped with encryption when a key is set.
func OpenStore(cfg config.Config) (*Backend, error) {
	b := &Backend{}

	switch cfg.Store.Type {
	case config.StoreMemory:
		b.Store = memory.NewStore()
	case config.StoreFile:
		b.Store = file.New(cfg.Store.Dir)
	case config.StoreRedis:
		prefix := cfg.Store.Prefix
		if prefix == "" {
			prefix = redis.DefaultPrefix
		}
		store, err := redis.NewFromURL(cfg.Store.RedisURL, redis.WithTTL(cfg.Store.TTL), redis.WithPrefix(prefix))
		if err != nil {
			return nil, err
		}
		b.Store = store
		b.Locker = redis.NewLocker(store.Client(), prefix)
		b.closers = append(b.closers, store)
	case config.StoreSQLite:
		if dir := filepath.Dir(cfg.Store.Path); dir != "." {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, fmt.Errorf("failed to create database directory: %w", err)
			}
		}
		store, err := sqlite.Open(cfg.Store.Path)
		if err != nil {
			return nil, err
		}
		b.Store = store
		b.closers = append(b.closers, store)
	default:
		return nil, fmt.Errorf("%w: unknown store type %q", config.ErrInvalidConfig, cfg.Store.Type)
	}

	if cfg.Encryption.Key != "" {
		mw, err := encryption(cfg.Encryption)
		if err != nil {
			_ = b.Close()
			return nil, err
		}
		b.Store = middleware.Chain(b.Store, mw)
	}
	return b, nil
}

func encryption(cfg config.EncryptionConfig) (middleware.Middleware, error) {
	active, err := middleware.ParseKey(cfg.Key)
	if err != nil {
		return nil, fmt.Errorf("invalid encryption key: %w", err)
	}
	ec := middleware.EncryptionConfig{ActiveKey: active}
	for _, k := range cfg.FallbackKeys {
		key, err := middleware.ParseKey(k)
		if err != nil {
			return nil, fmt.Errorf("invalid fallback key: %w", err)
		}
		ec.FallbackKeys = append(ec.FallbackKeys, key)
	}
	return middleware.NewEncryptionMiddleware(ec)
}

// NewGenerator builds the configured model provider.
func NewGenerator(cfg config.GeneratorConfig) (ports.Generator, error) {
	key := cfg.ResolveAPIKey()
	if key == "" {
		return nil, fmt.Errorf("missing API key: set %s_API_KEY or generator.api_key", strings.ToUpper(cfg.Provider))
	}

	switch cfg.Provider {
	case config.ProviderAnthropic:
		opts := []anthropic.Option{anthropic.WithModel(cfg.Model)}
		if cfg.MaxTokens > 0 {
			opts = append(opts, anthropic.WithMaxTokens(cfg.MaxTokens))
		}
		return anthropic.New(key, opts...), nil
	case config.ProviderOpenAI:
		return openai.New(key, openai.WithModel(cfg.Model)), nil
	case config.ProviderGemini:
		return gemini.New(key, gemini.WithModel(cfg.Model)), nil
	}
	return nil, fmt.Errorf("%w: unknown provider %q", config.ErrInvalidConfig, cfg.Provider)
}

// NewEngine assembles the engine from configuration.
func NewEngine(cfg config.Config, backend *Backend, gen ports.Generator, logger *slog.Logger, debug bool, hooks ...domain.LifecycleHooks) (*turnstile.Engine, error) {
	policy, err := session.ParsePolicy(cfg.Session.Policy)
	if err != nil {
		return nil, err
	}

	opts := []turnstile.Option{
		turnstile.WithLogger(logger),
		turnstile.WithGenerationTimeout(cfg.Generation.Timeout),
		turnstile.WithSessionPolicy(policy),
		turnstile.WithInstructions(cfg.Instructions.Gathering, cfg.Instructions.Generating),
	}
	if cfg.Instructions.Dir != "" {
		opts = append(opts, turnstile.WithInstructionDir(cfg.Instructions.Dir))
	}
	if backend.Locker != nil {
		opts = append(opts, turnstile.WithLocker(backend.Locker, cfg.Session.LockTTL))
	}
	if debug {
		opts = append(opts, turnstile.WithLifecycleHooks(createDebugHooks(logger)))
	}
	for _, h := range hooks {
		opts = append(opts, turnstile.WithLifecycleHooks(h))
	}

	engine, err := turnstile.New(backend.Store, gen, opts...)
	if err != nil {
		return nil, fmt.Errorf("error initializing engine: %w", err)
	}
	return engine, nil
}
