// Package persistencetest holds the behaviour tests every ITreeStore backend must pass.
package persistencetest

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thematters/contracts/pkg/merkle"
	"github.com/thematters/contracts/pkg/persistence"
)

// NewTestTree builds a small distribution tree with n leaves.
func NewTestTree(t *testing.T, n int) *merkle.Tree {
	t.Helper()

	leaves := make([]merkle.Leaf, n)
	for i := range leaves {
		leaves[i] = merkle.Leaf{
			fmt.Sprintf("Qm-test-%d", i),
			fmt.Sprintf("0x%040x", i+0x66),
			fmt.Sprintf("%d", (i+1)*1000),
		}
	}
	tree, err := merkle.Build(leaves, []string{"string", "address", "uint256"})
	require.NoError(t, err)
	return tree
}

// RunStoreTests exercises newStore against the ITreeStore contract.
// newStore must return an empty store each time it is called.
func RunStoreTests(t *testing.T, newStore func(t *testing.T) persistence.ITreeStore) {
	t.Run("SaveAndLoad", func(t *testing.T) {
		store := newStore(t)
		defer func() { _ = store.Close() }()

		tree := NewTestTree(t, 3)
		require.NoError(t, store.SaveTree("round-1", tree.Dump()))

		loaded, err := store.LoadTree("round-1")
		require.NoError(t, err)
		require.NotNil(t, loaded)
		assert.Equal(t, tree.Dump(), loaded)

		reloaded, err := merkle.Load(loaded)
		require.NoError(t, err)
		assert.Equal(t, tree.Root, reloaded.Root)
	})

	t.Run("LoadNotFound", func(t *testing.T) {
		store := newStore(t)
		defer func() { _ = store.Close() }()

		loaded, err := store.LoadTree("missing")
		require.NoError(t, err)
		assert.Nil(t, loaded)
	})

	t.Run("Overwrite", func(t *testing.T) {
		store := newStore(t)
		defer func() { _ = store.Close() }()

		require.NoError(t, store.SaveTree("tree", NewTestTree(t, 2).Dump()))
		second := NewTestTree(t, 5)
		require.NoError(t, store.SaveTree("tree", second.Dump()))

		loaded, err := store.LoadTree("tree")
		require.NoError(t, err)
		assert.Equal(t, second.Root, loaded.Root)
		assert.Len(t, loaded.Values, 5)

		names, err := store.ListTrees()
		require.NoError(t, err)
		assert.Equal(t, []string{"tree"}, names)
	})

	t.Run("ListAndDelete", func(t *testing.T) {
		store := newStore(t)
		defer func() { _ = store.Close() }()

		names, err := store.ListTrees()
		require.NoError(t, err)
		assert.Empty(t, names)

		for _, name := range []string{"c", "a", "b"} {
			require.NoError(t, store.SaveTree(name, NewTestTree(t, 2).Dump()))
		}

		names, err = store.ListTrees()
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "b", "c"}, names)

		require.NoError(t, store.DeleteTree("b"))
		require.NoError(t, store.DeleteTree("b"))

		names, err = store.ListTrees()
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "c"}, names)

		loaded, err := store.LoadTree("b")
		require.NoError(t, err)
		assert.Nil(t, loaded)
	})

	t.Run("InvalidArgs", func(t *testing.T) {
		store := newStore(t)
		defer func() { _ = store.Close() }()

		require.Error(t, store.SaveTree("", NewTestTree(t, 1).Dump()))
		require.Error(t, store.SaveTree("tree", nil))
	})

	t.Run("Concurrent", func(t *testing.T) {
		store := newStore(t)
		defer func() { _ = store.Close() }()

		tree := NewTestTree(t, 4)
		var wg sync.WaitGroup
		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				name := fmt.Sprintf("tree-%d", i)
				assert.NoError(t, store.SaveTree(name, tree.Dump()))
				_, err := store.LoadTree(name)
				assert.NoError(t, err)
			}(i)
		}
		wg.Wait()

		names, err := store.ListTrees()
		require.NoError(t, err)
		assert.Len(t, names, 10)
	})

	t.Run("ClosedStore", func(t *testing.T) {
		store := newStore(t)
		require.NoError(t, store.HealthCheck())
		require.NoError(t, store.Close())
		require.NoError(t, store.Close())

		require.Error(t, store.HealthCheck())
		require.Error(t, store.SaveTree("tree", NewTestTree(t, 1).Dump()))
		_, err := store.LoadTree("tree")
		require.Error(t, err)
		_, err = store.ListTrees()
		require.Error(t, err)
	})
}
