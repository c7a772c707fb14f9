package checkpoint_test

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/finflow/pkg/workflow/checkpoint"
)

func TestSQLiteStore_Persistence(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "finbot.db")

	store1, err := checkpoint.NewSQLiteStore(dbPath)
	require.NoError(t, err)
	require.NoError(t, store1.Save(ctx, "u1:r1", "request_missing", []byte("persistent")))
	require.NoError(t, store1.Close())

	store2, err := checkpoint.NewSQLiteStore(dbPath)
	require.NoError(t, err)
	defer store2.Close()

	data, err := store2.Load(ctx, "u1:r1", "request_missing")
	require.NoError(t, err)
	assert.Equal(t, []byte("persistent"), data)

	keys, err := store2.Keys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"u1:r1"}, keys)
}

func TestSQLiteStore_InvalidPath(t *testing.T) {
	_, err := checkpoint.NewSQLiteStore("/nonexistent/path/db.sqlite")
	assert.Error(t, err)
}

func TestSQLiteStore_CloseIdempotent(t *testing.T) {
	store, err := checkpoint.NewSQLiteStore(":memory:")
	require.NoError(t, err)

	assert.NoError(t, store.Close())
	assert.NoError(t, store.Close())
}

func TestSQLiteStore_SequenceOnUpdate(t *testing.T) {
	ctx := context.Background()
	store, err := checkpoint.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.Save(ctx, "u1:r1", "entry", []byte("first")))
	require.NoError(t, store.Save(ctx, "u1:r1", "chat", []byte("second")))
	require.NoError(t, store.Save(ctx, "u1:r1", "entry", []byte("updated")))

	infos, err := store.List(ctx, "u1:r1")
	require.NoError(t, err)
	require.Len(t, infos, 2)

	assert.Equal(t, "chat", infos[0].NodeID)
	assert.Equal(t, 2, infos[0].Sequence)
	assert.Equal(t, "entry", infos[1].NodeID)
	assert.Equal(t, 3, infos[1].Sequence)
}

func TestSQLiteStore_Concurrent(t *testing.T) {
	ctx := context.Background()
	store, err := checkpoint.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	defer store.Close()

	const numGoroutines = 20
	const numOps = 20

	var wg sync.WaitGroup
	wg.Add(numGoroutines)

	for i := 0; i < numGoroutines; i++ {
		go func(id int) {
			defer wg.Done()

			key := fmt.Sprintf("user-%d:room", id%5)
			for j := 0; j < numOps; j++ {
				nodeID := fmt.Sprintf("node-%d", j%4)
				switch j % 3 {
				case 0:
					assert.NoError(t, store.Save(ctx, key, nodeID, []byte("data")))
				case 1:
					_, _ = store.Load(ctx, key, nodeID)
				case 2:
					_, err := store.List(ctx, key)
					assert.NoError(t, err)
				}
			}
		}(i)
	}

	wg.Wait()
}
