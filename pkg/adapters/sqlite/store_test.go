package sqlite_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/aretw0/turnstile/pkg/adapters/sqlite"
	"github.com/aretw0/turnstile/pkg/domain"
	"github.com/aretw0/turnstile/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSQLiteStore_Contract(t *testing.T) {
	store, err := sqlite.Open(filepath.Join(t.TempDir(), "turnstile.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	ports.RunCheckpointStoreContract(t, store)
}

func TestSQLiteStore_InMemory(t *testing.T) {
	store, err := sqlite.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	ports.RunCheckpointStoreContract(t, store)
}

func TestSQLiteStore_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "turnstile.db")
	ctx := context.Background()

	store, err := sqlite.Open(path)
	require.NoError(t, err)
	thread := domain.NewThread("persist").
		Append(domain.NewHumanTurn("hi")).
		Append(domain.NewModeSwitchTurn("", domain.Payload{Objective: "x", Variables: []string{"v"}}))
	require.NoError(t, store.Save(ctx, "persist", thread))
	require.NoError(t, store.Close())

	reopened, err := sqlite.Open(path)
	require.NoError(t, err)
	defer reopened.Close()

	loaded, err := reopened.Load(ctx, "persist")
	require.NoError(t, err)
	assert.True(t, thread.Equal(loaded))
}

func TestSQLiteStore_EmptyThread(t *testing.T) {
	store, err := sqlite.Open(":memory:")
	require.NoError(t, err)
	defer store.Close()
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "empty", domain.NewThread("empty")))
	loaded, err := store.Load(ctx, "empty")
	require.NoError(t, err)
	assert.Equal(t, "empty", loaded.ID)
	assert.True(t, loaded.IsEmpty())
}
