package keyvalue

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type payload struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func TestStore_RoundTrip(t *testing.T) {
	s, err := Open(t.TempDir())
	require.NoError(t, err)
	defer func() { _ = s.Close() }()

	in := payload{Name: "alpha", Count: 3}
	require.NoError(t, s.WriteJSON("nested/dir/data.json", in))
	assert.True(t, s.Exists("nested/dir/data.json"))

	var out payload
	require.NoError(t, s.ReadJSON("nested/dir/data.json", &out))
	assert.Equal(t, in, out)
}

func TestStore_MissingKey(t *testing.T) {
	s, err := Open(t.TempDir())
	require.NoError(t, err)
	defer func() { _ = s.Close() }()

	var out payload
	err = s.ReadJSON("absent.json", &out)
	require.Error(t, err)
	assert.True(t, os.IsNotExist(err))
	assert.False(t, s.Exists("absent.json"))
}

func TestStore_RemoveIdempotent(t *testing.T) {
	s, err := Open(t.TempDir())
	require.NoError(t, err)
	defer func() { _ = s.Close() }()

	require.NoError(t, s.WriteJSON("gone.json", payload{}))
	require.NoError(t, s.Remove("gone.json"))
	require.NoError(t, s.Remove("gone.json"))
	assert.False(t, s.Exists("gone.json"))
}

func TestStore_List(t *testing.T) {
	s, err := Open(t.TempDir())
	require.NoError(t, err)
	defer func() { _ = s.Close() }()

	names, err := s.List("shards")
	require.NoError(t, err)
	assert.Empty(t, names)

	require.NoError(t, s.WriteJSON("shards/shard-0.json", payload{}))
	require.NoError(t, s.WriteJSON("shards/shard-1.json", payload{}))

	names, err = s.List("shards")
	require.NoError(t, err)
	assert.Len(t, names, 2)
}

func TestStore_SecondOpenFails(t *testing.T) {
	dir := t.TempDir()
	first, err := Open(dir)
	require.NoError(t, err)
	defer func() { _ = first.Close() }()

	_, err = Open(dir)
	assert.Error(t, err)
}
