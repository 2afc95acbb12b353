package kibohash

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFromBytesDeterministic(t *testing.T) {
	a := FromBytes([]byte("hello world"))
	b := FromBytes([]byte("hello world"))
	require.Equal(t, a, b)
	require.Len(t, string(a), 64)
}

func TestFromBytesDiffersOnContent(t *testing.T) {
	a := FromBytes([]byte("hello"))
	b := FromBytes([]byte("world"))
	require.NotEqual(t, a, b)
}

func TestFromReaderMatchesFromBytes(t *testing.T) {
	content := []byte("streamed content for hashing")
	want := FromBytes(content)

	got, err := FromReader(strings.NewReader(string(content)))
	require.NoError(t, err)
	require.Equal(t, want, got)
}

func TestValid(t *testing.T) {
	d := FromBytes([]byte("x"))
	require.True(t, Valid(string(d)))
	require.False(t, Valid("not-a-digest"))
	require.False(t, Valid(strings.ToUpper(string(d))))
	require.False(t, Valid(string(d)[:63]))
}

func TestDigestEmpty(t *testing.T) {
	var d Digest
	require.True(t, d.Empty())
	require.False(t, FromBytes([]byte("x")).Empty())
}
