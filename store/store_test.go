package store

import (
	"bytes"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wcuny/kibo"
	"github.com/wcuny/kibo/kibohash"
)

func newTestStore(t *testing.T, level int) *Store {
	t.Helper()
	s, err := New(t.TempDir(), level)
	require.NoError(t, err)
	return s
}

func TestPutGetRoundTrip(t *testing.T) {
	for _, level := range []int{0, 3, 10} {
		s := newTestStore(t, level)
		content := []byte("the quick brown fox jumps over the lazy dog")

		digest, err := s.Put(content)
		require.NoError(t, err)
		require.True(t, s.Has(digest))

		got, err := s.Get(digest)
		require.NoError(t, err)
		require.Equal(t, content, got)
	}
}

func TestPutIsIdempotent(t *testing.T) {
	s := newTestStore(t, 3)
	content := []byte("duplicate me")

	d1, err := s.Put(content)
	require.NoError(t, err)
	d2, err := s.Put(content)
	require.NoError(t, err)
	require.Equal(t, d1, d2)
}

func TestPutReaderMatchesPut(t *testing.T) {
	s := newTestStore(t, 5)
	content := []byte(strings.Repeat("abcdefgh", 1024))

	byValue, err := s.Put(content)
	require.NoError(t, err)

	byStream, size, err := s.PutReader(bytes.NewReader(content))
	require.NoError(t, err)
	require.Equal(t, byValue, byStream)
	require.Equal(t, int64(len(content)), size)
}

func TestWriteToRoundTrip(t *testing.T) {
	s := newTestStore(t, 3)
	content := []byte("streamed blob content")

	digest, _, err := s.PutReader(bytes.NewReader(content))
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, s.WriteTo(digest, &out))
	require.Equal(t, content, out.Bytes())
}

func TestGetMissingBlob(t *testing.T) {
	s := newTestStore(t, 3)
	_, err := s.Get(kibohash.Digest(strings.Repeat("0", 64)))
	require.Error(t, err)
	require.Equal(t, kibo.KindBlobMissing, kibo.KindOf(err))
}

func TestGetCorruptBlobDetected(t *testing.T) {
	s := newTestStore(t, 0)
	digest, err := s.Put([]byte("original content"))
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(s.path(digest), []byte("tampered bytes that do not hash to the original digest"), 0o644))

	_, err = s.Get(digest)
	require.Error(t, err)
	require.Equal(t, kibo.KindBlobCorrupt, kibo.KindOf(err))
}

func TestDeleteIdempotent(t *testing.T) {
	s := newTestStore(t, 3)
	digest, err := s.Put([]byte("delete me"))
	require.NoError(t, err)

	require.NoError(t, s.Delete(digest))
	require.False(t, s.Has(digest))
	require.NoError(t, s.Delete(digest)) // second delete is a no-op
}
