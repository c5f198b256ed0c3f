package middleware_test

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"io"
	"strings"
	"testing"

	"github.com/aretw0/turnstile/pkg/adapters/memory"
	"github.com/aretw0/turnstile/pkg/domain"
	"github.com/aretw0/turnstile/pkg/persistence/middleware"
	"github.com/aretw0/turnstile/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func generateKey(t *testing.T) []byte {
	k := make([]byte, 32)
	_, err := io.ReadFull(rand.Reader, k)
	require.NoError(t, err)
	return k
}

func secure(t *testing.T, next ports.CheckpointStore, cfg middleware.EncryptionConfig) ports.CheckpointStore {
	t.Helper()
	mw, err := middleware.NewEncryptionMiddleware(cfg)
	require.NoError(t, err)
	return mw(next)
}

func TestEncryptionMiddleware_Contract(t *testing.T) {
	store := secure(t, memory.NewStore(), middleware.EncryptionConfig{ActiveKey: generateKey(t)})
	ports.RunCheckpointStoreContract(t, store)
}

func TestEncryptionMiddleware_Roundtrip(t *testing.T) {
	underlying := memory.NewStore()
	store := secure(t, underlying, middleware.EncryptionConfig{ActiveKey: generateKey(t)})

	ctx := context.Background()
	id := "test-thread"
	original := domain.NewThread(id).
		Append(domain.NewHumanTurn("my-secret-sauce")).
		Append(domain.NewModeSwitchTurn("", domain.Payload{Objective: "classified"}))

	require.NoError(t, store.Save(ctx, id, original))

	stored, err := underlying.Load(ctx, id)
	require.NoError(t, err)
	require.Len(t, stored.Turns, 1)
	assert.Equal(t, domain.RoleSystem, stored.Turns[0].Role)
	assert.NotContains(t, stored.Turns[0].Content, "my-secret-sauce")
	assert.NotContains(t, stored.Turns[0].Content, "classified")

	loaded, err := store.Load(ctx, id)
	require.NoError(t, err)
	assert.True(t, original.Equal(loaded))
}

func TestEncryptionMiddleware_KeyRotation(t *testing.T) {
	underlying := memory.NewStore()
	oldKey := generateKey(t)
	newKey := generateKey(t)
	ctx := context.Background()
	id := "rotation-thread"

	storeOld := secure(t, underlying, middleware.EncryptionConfig{ActiveKey: oldKey})
	require.NoError(t, storeOld.Save(ctx, id, domain.NewThread(id).Append(domain.NewHumanTurn("old"))))

	storeNew := secure(t, underlying, middleware.EncryptionConfig{
		ActiveKey:    newKey,
		FallbackKeys: [][]byte{oldKey},
	})
	loaded, err := storeNew.Load(ctx, id)
	require.NoError(t, err, "fallback key must decrypt old data")
	assert.Equal(t, "old", loaded.Turns[0].Content)

	require.NoError(t, storeNew.Save(ctx, id, loaded.Append(domain.NewAssistantTurn("new"))))

	_, err = storeOld.Load(ctx, id)
	assert.Error(t, err, "old key alone must not decrypt data re-encrypted with the new key")
}

func TestEncryptionMiddleware_EnvelopeBoundToThread(t *testing.T) {
	underlying := memory.NewStore()
	store := secure(t, underlying, middleware.EncryptionConfig{ActiveKey: generateKey(t)})
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "a", domain.NewThread("a").Append(domain.NewHumanTurn("for a"))))
	envelope, err := underlying.Load(ctx, "a")
	require.NoError(t, err)
	require.NoError(t, underlying.Save(ctx, "b", envelope))

	_, err = store.Load(ctx, "b")
	assert.Error(t, err)
}

func TestEncryptionMiddleware_RejectsPlainThreads(t *testing.T) {
	underlying := memory.NewStore()
	store := secure(t, underlying, middleware.EncryptionConfig{ActiveKey: generateKey(t)})
	ctx := context.Background()

	require.NoError(t, underlying.Save(ctx, "plain", domain.NewThread("plain").Append(domain.NewHumanTurn("hi"))))
	_, err := store.Load(ctx, "plain")
	assert.ErrorIs(t, err, middleware.ErrNotEnvelope)
}

func TestEncryptionMiddleware_InvalidKey(t *testing.T) {
	_, err := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: []byte("short-key")})
	assert.ErrorIs(t, err, middleware.ErrInvalidKey)

	_, err = middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{
		ActiveKey:    generateKey(t),
		FallbackKeys: [][]byte{[]byte("short")},
	})
	assert.ErrorIs(t, err, middleware.ErrInvalidKey)
}

func TestParseKey(t *testing.T) {
	key := generateKey(t)
	parsed, err := middleware.ParseKey(" " + base64.StdEncoding.EncodeToString(key) + "\n")
	require.NoError(t, err)
	assert.Equal(t, key, parsed)

	_, err = middleware.ParseKey(base64.StdEncoding.EncodeToString([]byte("short")))
	assert.ErrorIs(t, err, middleware.ErrInvalidKey)

	_, err = middleware.ParseKey(strings.Repeat("!", 10))
	assert.Error(t, err)
}

type saveLoadOnly struct{ inner *memory.Store }

func (b saveLoadOnly) Save(ctx context.Context, id string, th domain.Thread) error {
	return b.inner.Save(ctx, id, th)
}

func (b saveLoadOnly) Load(ctx context.Context, id string) (domain.Thread, error) {
	return b.inner.Load(ctx, id)
}

func TestEncryptionMiddleware_OptionalCapabilities(t *testing.T) {
	store := secure(t, saveLoadOnly{inner: memory.NewStore()}, middleware.EncryptionConfig{ActiveKey: generateKey(t)})

	_, err := store.(ports.Lister).List(context.Background())
	assert.ErrorIs(t, err, ports.ErrNotSupported)
	assert.ErrorIs(t, store.(ports.Deleter).Delete(context.Background(), "x"), ports.ErrNotSupported)
}

func TestChain(t *testing.T) {
	key := generateKey(t)
	enc, err := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: key})
	require.NoError(t, err)

	store := middleware.Chain(memory.NewStore(), enc)
	ports.RunCheckpointStoreContract(t, store)
}
