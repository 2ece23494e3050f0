package modcache

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHashSourceIsStableAndContentAddressed(t *testing.T) {
	a := HashSource([]byte{0x00, 0x61, 0x73, 0x6d})
	b := HashSource([]byte{0x00, 0x61, 0x73, 0x6d})
	c := HashSource([]byte{0x00, 0x61, 0x73, 0x6e})
	require.Equal(t, a, b)
	require.NotEqual(t, a, c)
}

func TestCacheGetAddEvicts(t *testing.T) {
	c := New[[]byte]().WithMaxEntries(2)
	id1, id2, id3 := HashSource([]byte("a")), HashSource([]byte("b")), HashSource([]byte("c"))

	c.Add(id1, []byte{1})
	c.Add(id2, []byte{2})
	require.Equal(t, 2, c.Len())

	c.Add(id3, []byte{3}) // evicts id1 (least recently used)
	require.Equal(t, 2, c.Len())

	_, ok := c.Get(id1)
	require.False(t, ok)

	v, ok := c.Get(id3)
	require.True(t, ok)
	require.Equal(t, []byte{3}, v)
}
