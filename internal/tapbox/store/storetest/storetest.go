// Package storetest holds the behaviour every store.FS backend must share.
package storetest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BrandonDHaskell/tapbox/internal/tapbox/store"
)

// Run exercises a fresh FS returned by newFS for every subtest.
func Run(t *testing.T, newFS func(t *testing.T) store.FS) {
	t.Run("MissingFile", func(t *testing.T) {
		fs := newFS(t)

		_, err := fs.ReadFile("absent.txt")
		assert.True(t, store.IsNotExist(err), "ReadFile: %v", err)

		_, err = fs.Size("absent.txt")
		assert.True(t, store.IsNotExist(err), "Size: %v", err)

		ok, err := fs.Exists("absent.txt")
		require.NoError(t, err)
		assert.False(t, ok)

		assert.NoError(t, fs.Remove("absent.txt"), "removing a missing file is not an error")
	})

	t.Run("WriteReplacesContent", func(t *testing.T) {
		fs := newFS(t)

		require.NoError(t, fs.WriteFile("a.txt", []byte("first version")))
		require.NoError(t, fs.WriteFile("a.txt", []byte("second")))

		got, err := fs.ReadFile("a.txt")
		require.NoError(t, err)
		assert.Equal(t, "second", string(got))

		n, err := fs.Size("a.txt")
		require.NoError(t, err)
		assert.EqualValues(t, 6, n)
	})

	t.Run("AppendCreatesAndExtends", func(t *testing.T) {
		fs := newFS(t)

		require.NoError(t, fs.AppendFile("log", []byte("one\n")))
		require.NoError(t, fs.AppendFile("log", []byte("two\n")))

		got, err := fs.ReadFile("log")
		require.NoError(t, err)
		assert.Equal(t, "one\ntwo\n", string(got))
	})

	t.Run("RemoveDeletes", func(t *testing.T) {
		fs := newFS(t)

		require.NoError(t, fs.WriteFile("gone", []byte("x")))
		require.NoError(t, fs.Remove("gone"))

		ok, err := fs.Exists("gone")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("EmptyFileExists", func(t *testing.T) {
		fs := newFS(t)

		require.NoError(t, fs.WriteFile("empty", nil))
		ok, err := fs.Exists("empty")
		require.NoError(t, err)
		assert.True(t, ok)

		got, err := fs.ReadFile("empty")
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("WriterCommitsOnClose", func(t *testing.T) {
		fs := newFS(t)
		require.NoError(t, fs.WriteFile("cards", []byte("old")))

		w, err := fs.Create("cards")
		require.NoError(t, err)
		_, err = w.Write([]byte("new "))
		require.NoError(t, err)
		_, err = w.Write([]byte("content"))
		require.NoError(t, err)

		got, err := fs.ReadFile("cards")
		require.NoError(t, err)
		assert.Equal(t, "old", string(got), "partial writes must not be visible")

		require.NoError(t, w.Close())
		got, err = fs.ReadFile("cards")
		require.NoError(t, err)
		assert.Equal(t, "new content", string(got))
	})

	t.Run("WriterAbortKeepsOld", func(t *testing.T) {
		fs := newFS(t)
		require.NoError(t, fs.WriteFile("cards", []byte("old")))

		w, err := fs.Create("cards")
		require.NoError(t, err)
		_, err = w.Write([]byte("half"))
		require.NoError(t, err)
		require.NoError(t, w.Abort())

		got, err := fs.ReadFile("cards")
		require.NoError(t, err)
		assert.Equal(t, "old", string(got))
	})
}
