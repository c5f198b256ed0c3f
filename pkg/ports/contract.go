package ports

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/aretw0/turnstile/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunCheckpointStoreContract runs a suite of tests to verify that a CheckpointStore
// implementation adheres to the defined interface contract.
// List and Delete are exercised only when the store implements Lister / Deleter.
func RunCheckpointStoreContract(t *testing.T, store CheckpointStore) {
	ctx := context.Background()
	threadID := "contract-test-thread-" + time.Now().Format("20060102150405")

	sample := func(id string) domain.Thread {
		return domain.NewThread(id).
			Append(domain.NewHumanTurn("hi!")).
			Append(domain.NewAssistantTurn("What should the prompt do?")).
			Append(domain.NewHumanTurn("extract fields as JSON")).
			Append(domain.NewModeSwitchTurn("", domain.Payload{
				Objective:    "extraction",
				Variables:    []string{"schema", "text"},
				Constraints:  []string{"no prose"},
				Requirements: []string{"JSON output"},
			}))
	}

	t.Run("Save and Load", func(t *testing.T) {
		thread := sample(threadID)

		err := store.Save(ctx, threadID, thread)
		require.NoError(t, err, "Save should not return error")

		loaded, err := store.Load(ctx, threadID)
		require.NoError(t, err, "Load should not return error")
		assert.True(t, thread.Equal(loaded), "round trip must preserve the thread: got %+v", loaded)

		require.Len(t, loaded.Turns, 4)
		require.NotNil(t, loaded.Turns[3].Payload, "payload must survive persistence")
		assert.Equal(t, []string{"schema", "text"}, loaded.Turns[3].Payload.Variables)
		assert.Equal(t, domain.RoleHuman, loaded.Turns[2].Role)
	})

	t.Run("Overwrite", func(t *testing.T) {
		id := threadID + "-overwrite"
		first := domain.NewThread(id).Append(domain.NewHumanTurn("one"))
		second := first.Append(domain.NewAssistantTurn("two"))

		require.NoError(t, store.Save(ctx, id, first))
		require.NoError(t, store.Save(ctx, id, second))

		loaded, err := store.Load(ctx, id)
		require.NoError(t, err)
		assert.True(t, second.Equal(loaded))
	})

	t.Run("Load Non-Existent", func(t *testing.T) {
		_, err := store.Load(ctx, "non-existent-"+threadID)
		assert.ErrorIs(t, err, domain.ErrThreadNotFound)
	})

	t.Run("Saved Copy Is Isolated", func(t *testing.T) {
		id := threadID + "-isolated"
		thread := domain.NewThread(id).Append(domain.NewHumanTurn("original"))
		require.NoError(t, store.Save(ctx, id, thread))

		thread.Turns[0].Content = "mutated after save"

		loaded, err := store.Load(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, "original", loaded.Turns[0].Content)
	})

	t.Run("Disjoint Threads Concurrently", func(t *testing.T) {
		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				id := fmt.Sprintf("%s-concurrent-%d", threadID, i)
				thread := domain.NewThread(id).Append(domain.NewHumanTurn(id))
				assert.NoError(t, store.Save(ctx, id, thread))
				loaded, err := store.Load(ctx, id)
				if assert.NoError(t, err) {
					assert.Equal(t, id, loaded.Turns[0].Content)
				}
			}(i)
		}
		wg.Wait()
	})

	if deleter, ok := store.(Deleter); ok {
		t.Run("Delete", func(t *testing.T) {
			require.NoError(t, store.Save(ctx, threadID, sample(threadID)))

			err := deleter.Delete(ctx, threadID)
			require.NoError(t, err, "Delete should not return error")

			_, err = store.Load(ctx, threadID)
			assert.ErrorIs(t, err, domain.ErrThreadNotFound, "Load after Delete should return ErrThreadNotFound")
		})
	}

	if lister, ok := store.(Lister); ok {
		t.Run("List", func(t *testing.T) {
			id1 := threadID + "-1"
			id2 := threadID + "-2"
			tmpID := "tmp-" + threadID
			require.NoError(t, store.Save(ctx, id1, sample(id1)))
			require.NoError(t, store.Save(ctx, id2, sample(id2)))
			require.NoError(t, store.Save(ctx, tmpID, sample(tmpID)))

			threads, err := lister.List(ctx)
			require.NoError(t, err)
			assert.Contains(t, threads, id1)
			assert.Contains(t, threads, id2)
			assert.Contains(t, threads, tmpID, "ids shaped like temp files are still threads")
		})
	}
}
