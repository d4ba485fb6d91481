package build

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashProvider_Hash(t *testing.T) {
	hp := NewHashProvider(nil, nil)

	a := hp.Hash([]byte("logo bytes"))
	assert.Equal(t, a, hp.Hash([]byte("logo bytes")))
	assert.NotEqual(t, a, hp.Hash([]byte("logo bytez")))
	assert.NotEqual(t, hp.Hash(nil), hp.Hash([]byte{0}))
}

func TestHashProvider_FileHash(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "logo.png")
	require.NoError(t, os.WriteFile(path, []byte("first"), 0o644))

	cache := NewTransformCache(1<<20, time.Hour)
	hp := NewHashProvider(cache, NewObjectPools())

	first, err := hp.FileHash(path)
	require.NoError(t, err)
	assert.Equal(t, hp.Hash([]byte("first")), first)
	assert.Equal(t, 1, cache.Stats().Entries, "metadata key should be cached")

	again, err := hp.FileHash(path)
	require.NoError(t, err)
	assert.Equal(t, first, again)

	// A rewrite changes size and mtime, so the metadata key misses.
	later := time.Now().Add(2 * time.Second)
	require.NoError(t, os.WriteFile(path, []byte("second!"), 0o644))
	require.NoError(t, os.Chtimes(path, later, later))

	changed, err := hp.FileHash(path)
	require.NoError(t, err)
	assert.NotEqual(t, first, changed)

	_, err = hp.FileHash(filepath.Join(dir, "missing.png"))
	assert.Error(t, err)
}

func TestHashProvider_HashBatch(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.png")
	b := filepath.Join(dir, "b.png")
	require.NoError(t, os.WriteFile(a, []byte("a"), 0o644))
	require.NoError(t, os.WriteFile(b, []byte("b"), 0o644))

	hp := NewHashProvider(NewTransformCache(1<<20, time.Hour), nil)
	hashes := hp.HashBatch([]string{a, b, filepath.Join(dir, "gone.png")})

	assert.Len(t, hashes, 2)
	assert.Equal(t, hp.Hash([]byte("a")), hashes[a])
}
