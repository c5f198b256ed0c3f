package cli

import (
	"context"
	"encoding/base64"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/turnstile/internal/config"
	"github.com/aretw0/turnstile/internal/logging"
	"github.com/aretw0/turnstile/internal/testutils"
	"github.com/aretw0/turnstile/pkg/adapters/anthropic"
	"github.com/aretw0/turnstile/pkg/adapters/file"
	"github.com/aretw0/turnstile/pkg/adapters/gemini"
	"github.com/aretw0/turnstile/pkg/adapters/openai"
	"github.com/aretw0/turnstile/pkg/domain"
	"github.com/aretw0/turnstile/pkg/ports"
)

func noConfig(t *testing.T) string {
	return filepath.Join(t.TempDir(), "absent.yaml")
}

func TestLoadConfig_Overrides(t *testing.T) {
	cfg, err := LoadConfig(Options{
		ConfigPath: noConfig(t),
		Store:      config.StoreMemory,
		Provider:   config.ProviderGemini,
		Model:      "gemini-test",
	})
	require.NoError(t, err)
	assert.Equal(t, config.StoreMemory, cfg.Store.Type)
	assert.Equal(t, config.ProviderGemini, cfg.Generator.Provider)
	assert.Equal(t, "gemini-test", cfg.Generator.Model)

	_, err = LoadConfig(Options{ConfigPath: noConfig(t), Store: "postgres"})
	assert.ErrorIs(t, err, config.ErrInvalidConfig)
}

func TestLoadConfig_FlagsBeatFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "turnstile.yaml")
	require.NoError(t, os.WriteFile(path, []byte("store:\n  type: memory\ngenerator:\n  provider: openai\n"), 0644))

	cfg, err := LoadConfig(Options{ConfigPath: path, Provider: config.ProviderAnthropic})
	require.NoError(t, err)
	assert.Equal(t, config.StoreMemory, cfg.Store.Type)
	assert.Equal(t, config.ProviderAnthropic, cfg.Generator.Provider)
}

func TestOpenStore(t *testing.T) {
	t.Run("memory", func(t *testing.T) {
		b, err := OpenStore(config.Config{Store: config.StoreConfig{Type: config.StoreMemory}})
		require.NoError(t, err)
		defer b.Close()
		ports.RunCheckpointStoreContract(t, b.Store)
	})

	t.Run("file", func(t *testing.T) {
		b, err := OpenStore(config.Config{Store: config.StoreConfig{Type: config.StoreFile, Dir: t.TempDir()}})
		require.NoError(t, err)
		defer b.Close()
		assert.Nil(t, b.Locker)
		ports.RunCheckpointStoreContract(t, b.Store)
	})

	t.Run("sqlite", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "nested", "turnstile.db")
		b, err := OpenStore(config.Config{Store: config.StoreConfig{Type: config.StoreSQLite, Path: path}})
		require.NoError(t, err)
		defer b.Close()
		ports.RunCheckpointStoreContract(t, b.Store)
		assert.FileExists(t, path)
	})

	t.Run("redis", func(t *testing.T) {
		mr := miniredis.RunT(t)
		b, err := OpenStore(config.Config{Store: config.StoreConfig{Type: config.StoreRedis, RedisURL: "redis://" + mr.Addr()}})
		require.NoError(t, err)
		defer b.Close()
		assert.NotNil(t, b.Locker)
		ports.RunCheckpointStoreContract(t, b.Store)
	})

	t.Run("unknown", func(t *testing.T) {
		_, err := OpenStore(config.Config{Store: config.StoreConfig{Type: "tape"}})
		assert.ErrorIs(t, err, config.ErrInvalidConfig)
	})
}

func TestOpenStore_Encryption(t *testing.T) {
	dir := t.TempDir()
	key := base64.StdEncoding.EncodeToString([]byte(strings.Repeat("k", 32)))
	cfg := config.Config{
		Store:      config.StoreConfig{Type: config.StoreFile, Dir: dir},
		Encryption: config.EncryptionConfig{Key: key},
	}

	b, err := OpenStore(cfg)
	require.NoError(t, err)
	defer b.Close()

	ctx := context.Background()
	thread := domain.NewThread("t1").Append(domain.NewHumanTurn("secret plans"))
	require.NoError(t, b.Store.Save(ctx, "t1", thread))

	loaded, err := b.Store.Load(ctx, "t1")
	require.NoError(t, err)
	assert.True(t, thread.Equal(loaded))

	raw, err := file.New(dir).Load(ctx, "t1")
	require.NoError(t, err)
	require.Equal(t, 1, raw.Len())
	assert.NotContains(t, raw.Turns[0].Content, "secret plans")

	cfg.Encryption.FallbackKeys = []string{"bad"}
	_, err = OpenStore(cfg)
	assert.Error(t, err)
}

func TestNewGenerator(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "")
	_, err := NewGenerator(config.GeneratorConfig{Provider: config.ProviderAnthropic})
	assert.ErrorContains(t, err, "ANTHROPIC_API_KEY")

	gen, err := NewGenerator(config.GeneratorConfig{Provider: config.ProviderAnthropic, APIKey: "k", MaxTokens: 1024})
	require.NoError(t, err)
	assert.IsType(t, &anthropic.Generator{}, gen)

	gen, err = NewGenerator(config.GeneratorConfig{Provider: config.ProviderOpenAI, APIKey: "k"})
	require.NoError(t, err)
	assert.IsType(t, &openai.Generator{}, gen)

	gen, err = NewGenerator(config.GeneratorConfig{Provider: config.ProviderGemini, APIKey: "k"})
	require.NoError(t, err)
	assert.IsType(t, &gemini.Generator{}, gen)

	_, err = NewGenerator(config.GeneratorConfig{Provider: "llama", APIKey: "k"})
	assert.ErrorIs(t, err, config.ErrInvalidConfig)
}

func TestNewEngine(t *testing.T) {
	cfg := config.Default()
	cfg.Store.Type = config.StoreMemory
	cfg.Instructions.Gathering = "Ask briefly."

	b, err := OpenStore(cfg)
	require.NoError(t, err)

	gen := testutils.NewScriptedGenerator(testutils.Reply("ok"))
	var committed int
	engine, err := NewEngine(cfg, b, gen, logging.NewNop(), true, domain.LifecycleHooks{
		OnTurnCommitted: func(context.Context, *domain.TurnEvent) { committed++ },
	})
	require.NoError(t, err)

	_, err = engine.Submit(context.Background(), "t1", "hi")
	require.NoError(t, err)
	assert.Equal(t, "Ask briefly.", gen.Requests()[0].Instruction)
	assert.Equal(t, 2, committed)

	cfg.Session.Policy = "drop"
	_, err = NewEngine(cfg, b, gen, logging.NewNop(), false)
	assert.Error(t, err)
}
