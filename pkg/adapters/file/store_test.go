package file_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/aretw0/turnstile/pkg/adapters/file"
	"github.com/aretw0/turnstile/pkg/domain"
	"github.com/aretw0/turnstile/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ ports.CheckpointStore = (*file.Store)(nil)

func TestFileStore_Contract(t *testing.T) {
	ports.RunCheckpointStoreContract(t, file.New(t.TempDir()))
}

func TestFileStore_Layout(t *testing.T) {
	dir := t.TempDir()
	store := file.New(dir)
	ctx := context.Background()

	thread := domain.NewThread("chat-1").Append(domain.NewHumanTurn("hi"))
	require.NoError(t, store.Save(ctx, "chat-1", thread))

	data, err := os.ReadFile(filepath.Join(dir, "chat-1.json"))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"role": "human"`)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files may be left behind")
}

func TestFileStore_EscapesIDs(t *testing.T) {
	dir := t.TempDir()
	store := file.New(filepath.Join(dir, "threads"))
	ctx := context.Background()

	id := "../escape/attempt"
	require.NoError(t, store.Save(ctx, id, domain.NewThread(id).Append(domain.NewHumanTurn("hi"))))

	_, err := os.Stat(filepath.Join(dir, "escape"))
	assert.True(t, os.IsNotExist(err), "ids must not create paths outside the base directory")

	ids, err := store.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{id}, ids)

	loaded, err := store.Load(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "hi", loaded.Turns[0].Content)
}

func TestFileStore_ListSkipsOnlyPartialWrites(t *testing.T) {
	dir := t.TempDir()
	store := file.New(dir)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "tmp-session", domain.NewThread("tmp-session").Append(domain.NewHumanTurn("hi"))))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "tmp-123.json.part"), []byte("{"), 0644))

	ids, err := store.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"tmp-session"}, ids)
}

func TestFileStore_EmptyID(t *testing.T) {
	store := file.New(t.TempDir())
	ctx := context.Background()

	assert.Error(t, store.Save(ctx, "", domain.NewThread("")))
	_, err := store.Load(ctx, "")
	assert.Error(t, err)
}

func TestFileStore_ListMissingDir(t *testing.T) {
	store := file.New(filepath.Join(t.TempDir(), "absent"))
	ids, err := store.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestFileStore_CorruptFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.json"), []byte("{not json"), 0644))

	_, err := file.New(dir).Load(context.Background(), "bad")
	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrThreadNotFound)
}
