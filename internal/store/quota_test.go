package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuotaStoreDefaultsToZero(t *testing.T) {
	s := NewQuotaStore(t.TempDir())

	count, err := s.Count("chat-1")
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestQuotaStoreIncrementPersists(t *testing.T) {
	dir := t.TempDir()
	s := NewQuotaStore(dir)

	count, err := s.Increment("chat-1")
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	count, err = s.Increment("chat-1")
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	// A fresh store reading the same file sees the counts.
	count, err = NewQuotaStore(dir).Count("chat-1")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestQuotaStoreSaveLoadRoundtrip(t *testing.T) {
	dir := t.TempDir()
	s := NewQuotaStore(dir)

	require.NoError(t, s.Save(map[string]int{"a": 3, "b": 30}))

	counts, err := NewQuotaStore(dir).Load()
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"a": 3, "b": 30}, counts)
}
