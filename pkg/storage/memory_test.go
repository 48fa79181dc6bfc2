package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/datafed/cloudnode/pkg/errors"
)

func TestInMemoryPutGet(t *testing.T) {
	s := NewInMemoryStorage()
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, "k1", []byte("v1")))

	val, err := s.Get(ctx, "k1")
	require.NoError(t, err)
	assert.Equal(t, []byte("v1"), val)

	// Overwrite.
	require.NoError(t, s.Put(ctx, "k1", []byte("v2")))
	val, err = s.Get(ctx, "k1")
	require.NoError(t, err)
	assert.Equal(t, []byte("v2"), val)

	_, err = s.Get(ctx, "missing")
	assert.ErrorIs(t, err, errors.ErrNotFound)

	assert.ErrorIs(t, s.Put(ctx, "", []byte("v")), errors.ErrEmptyKey)
	_, err = s.Get(ctx, "")
	assert.ErrorIs(t, err, errors.ErrEmptyKey)
}

func TestInMemoryValueIsolation(t *testing.T) {
	s := NewInMemoryStorage()
	ctx := context.Background()

	in := []byte("abc")
	require.NoError(t, s.Put(ctx, "k", in))
	in[0] = 'z'

	out, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), out)

	out[0] = 'z'
	again, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), again)
}

func TestInMemoryDelete(t *testing.T) {
	s := NewInMemoryStorage()
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, "k", []byte("v")))
	require.NoError(t, s.Delete(ctx, "k"))

	_, err := s.Get(ctx, "k")
	assert.ErrorIs(t, err, errors.ErrNotFound)

	// Deleting an absent key is not an error.
	assert.NoError(t, s.Delete(ctx, "k"))
	assert.ErrorIs(t, s.Delete(ctx, ""), errors.ErrEmptyKey)
}

func TestInMemoryList(t *testing.T) {
	s := NewInMemoryStorage()
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, "checkpoint/r1/s1/1", []byte("a")))
	require.NoError(t, s.Put(ctx, "checkpoint/r1/s1/2", []byte("b")))
	require.NoError(t, s.Put(ctx, "checkpoint/r2/s1/1", []byte("c")))
	require.NoError(t, s.Put(ctx, "repokey/r1", []byte("k")))

	entries, total, err := s.List(ctx, "checkpoint/r1/", 0, 10)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), total)
	require.Len(t, entries, 2)
	assert.Equal(t, "checkpoint/r1/s1/1", entries[0].Key)
	assert.Equal(t, "checkpoint/r1/s1/2", entries[1].Key)

	entries, total, err = s.List(ctx, "checkpoint/", 1, 1)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), total)
	require.Len(t, entries, 1)
	assert.Equal(t, "checkpoint/r1/s1/2", entries[0].Key)

	entries, total, err = s.List(ctx, "checkpoint/", 10, 5)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), total)
	assert.Empty(t, entries)
}
