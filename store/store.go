// Package store implements the content-addressed blob store under
// .kibo/store/. Blob identity is the BLAKE3 digest of the uncompressed
// content; on disk a blob may be stored raw or zstd-compressed, recorded
// by a small magic header so Get can tell which without consulting
// config.
//
// The write path — temp file in the store directory, then atomic rename
// to the digest-named final path — is grounded directly on
// distribution/distribution's filesystem storage driver
// (registry/storage/driver/filesystem.Driver.PutContent).
package store

import (
	"bufio"
	"bytes"
	"encoding/hex"
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"

	"github.com/wcuny/kibo"
	"github.com/wcuny/kibo/internal/kibouuid"
	"github.com/wcuny/kibo/kibohash"
)

// magic identifies a zstd-compressed blob. A blob without this prefix is
// stored raw.
var magic = []byte("KBZ1")

// Store is a content-addressed repository of immutable byte blobs rooted
// at Dir.
type Store struct {
	Dir              string
	CompressionLevel int
}

// New returns a Store rooted at dir, creating it if necessary.
func New(dir string, compressionLevel int) (*Store, error) {
	if err := os.MkdirAll(dir, 0o777); err != nil {
		return nil, kibo.Wrap(kibo.KindIoError, dir, err)
	}
	return &Store{Dir: dir, CompressionLevel: compressionLevel}, nil
}

func (s *Store) path(digest kibohash.Digest) string {
	return filepath.Join(s.Dir, string(digest))
}

// Has reports whether a blob with the given digest exists.
func (s *Store) Has(digest kibohash.Digest) bool {
	_, err := os.Stat(s.path(digest))
	return err == nil
}

// Put stores p, returning its digest. If a blob with that digest already
// exists, p is not rewritten — store contents are idempotent under
// concurrent Put of identical content because the final rename always
// targets the same digest-named path.
func (s *Store) Put(p []byte) (kibohash.Digest, error) {
	digest := kibohash.FromBytes(p)
	if s.Has(digest) {
		return digest, nil
	}

	encoded, err := s.encode(p)
	if err != nil {
		return "", err
	}

	tmp := filepath.Join(s.Dir, "."+string(digest)+"."+kibouuid.NewString()+".tmp")
	if err := os.WriteFile(tmp, encoded, 0o644); err != nil {
		return "", kibo.Wrap(kibo.KindIoError, tmp, err)
	}
	if err := os.Rename(tmp, s.path(digest)); err != nil {
		os.Remove(tmp)
		return "", kibo.Wrap(kibo.KindIoError, s.path(digest), err)
	}
	return digest, nil
}

// PutReader streams r into the store without buffering its full content
// in memory beyond one compression window, hashing as it writes. This is
// the path used by the save pipeline for large files (files
// over 4 GiB must not be fully materialized).
func (s *Store) PutReader(r io.Reader) (kibohash.Digest, int64, error) {
	tmp := filepath.Join(s.Dir, "."+kibouuid.NewString()+".tmp")
	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return "", 0, kibo.Wrap(kibo.KindIoError, tmp, err)
	}
	defer os.Remove(tmp) // no-op once renamed

	hasher := kibohash.New()
	tee := io.TeeReader(r, hasher)

	bw := bufio.NewWriter(f)
	var size int64

	if s.CompressionLevel > 0 {
		if _, err := bw.Write(magic); err != nil {
			f.Close()
			return "", 0, kibo.Wrap(kibo.KindIoError, tmp, err)
		}
		zw, err := zstd.NewWriter(bw, zstd.WithEncoderLevel(levelFor(s.CompressionLevel)))
		if err != nil {
			f.Close()
			return "", 0, kibo.Wrap(kibo.KindIoError, tmp, err)
		}
		n, err := io.Copy(countingWriter{zw, &size}, tee)
		_ = n
		if err != nil {
			zw.Close()
			f.Close()
			return "", 0, kibo.Wrap(kibo.KindIoError, tmp, err)
		}
		if err := zw.Close(); err != nil {
			f.Close()
			return "", 0, kibo.Wrap(kibo.KindIoError, tmp, err)
		}
	} else {
		if _, err := io.Copy(countingWriter{bw, &size}, tee); err != nil {
			f.Close()
			return "", 0, kibo.Wrap(kibo.KindIoError, tmp, err)
		}
	}

	if err := bw.Flush(); err != nil {
		f.Close()
		return "", 0, kibo.Wrap(kibo.KindIoError, tmp, err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return "", 0, kibo.Wrap(kibo.KindIoError, tmp, err)
	}
	if err := f.Close(); err != nil {
		return "", 0, kibo.Wrap(kibo.KindIoError, tmp, err)
	}

	digest := kibohash.Digest(hex.EncodeToString(hasher.Sum(nil)))
	if !s.Has(digest) {
		if err := os.Rename(tmp, s.path(digest)); err != nil {
			return "", 0, kibo.Wrap(kibo.KindIoError, s.path(digest), err)
		}
	}
	return digest, size, nil
}

// Get retrieves the blob identified by digest, verifying that its
// content hashes to digest before returning it. A mismatch is reported
// as BlobCorrupt.
func (s *Store) Get(digest kibohash.Digest) ([]byte, error) {
	raw, err := os.ReadFile(s.path(digest))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, kibo.Wrap(kibo.KindBlobMissing, string(digest), err)
		}
		return nil, kibo.Wrap(kibo.KindIoError, string(digest), err)
	}

	content, err := s.decode(raw)
	if err != nil {
		return nil, kibo.Wrap(kibo.KindBlobCorrupt, string(digest), err)
	}

	if kibohash.FromBytes(content) != digest {
		return nil, kibo.Wrap(kibo.KindBlobCorrupt, string(digest), nil)
	}
	return content, nil
}

// WriteTo streams the blob identified by digest to w, verifying its hash
// in the process, without materializing the whole decompressed blob in
// memory at once.
func (s *Store) WriteTo(digest kibohash.Digest, w io.Writer) error {
	f, err := os.Open(s.path(digest))
	if err != nil {
		if os.IsNotExist(err) {
			return kibo.Wrap(kibo.KindBlobMissing, string(digest), err)
		}
		return kibo.Wrap(kibo.KindIoError, string(digest), err)
	}
	defer f.Close()

	br := bufio.NewReader(f)
	head, err := br.Peek(len(magic))
	compressed := err == nil && bytes.Equal(head, magic)

	hasher := kibohash.New()
	var src io.Reader = br
	if compressed {
		if _, err := br.Discard(len(magic)); err != nil {
			return kibo.Wrap(kibo.KindIoError, string(digest), err)
		}
		zr, err := zstd.NewReader(br)
		if err != nil {
			return kibo.Wrap(kibo.KindBlobCorrupt, string(digest), err)
		}
		defer zr.Close()
		src = zr
	}

	if _, err := io.Copy(io.MultiWriter(w, hasher), src); err != nil {
		return kibo.Wrap(kibo.KindBlobCorrupt, string(digest), err)
	}
	if kibohash.Digest(hex.EncodeToString(hasher.Sum(nil))) != digest {
		return kibo.Wrap(kibo.KindBlobCorrupt, string(digest), nil)
	}
	return nil
}

// Delete removes the blob identified by digest. Idempotent.
func (s *Store) Delete(digest kibohash.Digest) error {
	err := os.Remove(s.path(digest))
	if err != nil && !os.IsNotExist(err) {
		return kibo.Wrap(kibo.KindIoError, s.path(digest), err)
	}
	return nil
}

// Size returns the on-disk (possibly compressed) size of a blob.
func (s *Store) Size(digest kibohash.Digest) (int64, error) {
	info, err := os.Stat(s.path(digest))
	if err != nil {
		return 0, kibo.Wrap(kibo.KindIoError, s.path(digest), err)
	}
	return info.Size(), nil
}

func (s *Store) encode(p []byte) ([]byte, error) {
	if s.CompressionLevel <= 0 {
		return p, nil
	}
	var buf bytes.Buffer
	buf.Write(magic)
	zw, err := zstd.NewWriter(&buf, zstd.WithEncoderLevel(levelFor(s.CompressionLevel)))
	if err != nil {
		return nil, kibo.Wrap(kibo.KindIoError, "", err)
	}
	if _, err := zw.Write(p); err != nil {
		zw.Close()
		return nil, kibo.Wrap(kibo.KindIoError, "", err)
	}
	if err := zw.Close(); err != nil {
		return nil, kibo.Wrap(kibo.KindIoError, "", err)
	}
	return buf.Bytes(), nil
}

func (s *Store) decode(raw []byte) ([]byte, error) {
	if len(raw) < len(magic) || !bytes.Equal(raw[:len(magic)], magic) {
		return raw, nil
	}
	zr, err := zstd.NewReader(bytes.NewReader(raw[len(magic):]))
	if err != nil {
		return nil, err
	}
	defer zr.Close()
	return io.ReadAll(zr)
}

// levelFor maps the 0-10 configuration scale onto zstd's
// coarser speed/ratio presets.
func levelFor(level int) zstd.EncoderLevel {
	switch {
	case level <= 2:
		return zstd.SpeedFastest
	case level <= 5:
		return zstd.SpeedDefault
	case level <= 8:
		return zstd.SpeedBetterCompression
	default:
		return zstd.SpeedBestCompression
	}
}

type countingWriter struct {
	w io.Writer
	n *int64
}

func (c countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	*c.n += int64(n)
	return n, err
}

