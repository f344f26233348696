// Package storage provides the durable local stores the cache and
// search layers persist through, plus the sqlite-backed server stores.
package storage

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/ulikunitz/xz"
	"github.com/zeebo/blake3"

	"github.com/FocuswithJustin/CedarPulpit/core/errors"
)

// FileStore persists named blobs as xz-compressed files with blake3
// checksums. A blob that fails its checksum on read is treated as
// absent rather than surfaced as corrupt data.
type FileStore struct {
	dir string

	// maxBytes bounds the total size of stored blobs (0 = unbounded).
	// Writes that would exceed it fail with a QuotaError, mirroring
	// browser storage quotas.
	maxBytes int64
}

// NewFileStore creates a blob store rooted at dir, creating it if needed.
func NewFileStore(dir string, maxBytes int64) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrap(err, "creating blob store directory")
	}
	return &FileStore{dir: dir, maxBytes: maxBytes}, nil
}

// ReadBlob returns the stored blob for key, or ok=false when the blob
// is absent or fails its integrity check.
func (s *FileStore) ReadBlob(key string) (string, bool, error) {
	raw, err := os.ReadFile(s.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return "", false, nil
		}
		return "", false, errors.Wrap(err, "reading blob")
	}

	sum, err := os.ReadFile(s.sumPath(key))
	if err != nil && !os.IsNotExist(err) {
		return "", false, errors.Wrap(err, "reading blob checksum")
	}
	if err == nil {
		actual := blake3.Sum256(raw)
		if strings.TrimSpace(string(sum)) != hex.EncodeToString(actual[:]) {
			return "", false, nil
		}
	}

	r, err := xz.NewReader(bytes.NewReader(raw))
	if err != nil {
		return "", false, nil
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", false, nil
	}
	return string(data), true, nil
}

// WriteBlob stores a blob under key. Writes exceeding the configured
// byte bound, or failing with the filesystem's out-of-space error,
// return a *errors.QuotaError so callers can run their cleanup policy.
func (s *FileStore) WriteBlob(key, data string) error {
	var buf bytes.Buffer
	w, err := xz.NewWriter(&buf)
	if err != nil {
		return errors.Wrap(err, "creating xz writer")
	}
	if _, err := w.Write([]byte(data)); err != nil {
		return errors.Wrap(err, "compressing blob")
	}
	if err := w.Close(); err != nil {
		return errors.Wrap(err, "compressing blob")
	}

	if s.maxBytes > 0 {
		used, err := s.usedBytes(key)
		if err != nil {
			return err
		}
		if used+int64(buf.Len()) > s.maxBytes {
			return &errors.QuotaError{Key: key}
		}
	}

	sum := blake3.Sum256(buf.Bytes())
	if err := os.WriteFile(s.path(key), buf.Bytes(), 0o644); err != nil {
		return s.classifyWriteError(key, err)
	}
	if err := os.WriteFile(s.sumPath(key), []byte(hex.EncodeToString(sum[:])+"\n"), 0o644); err != nil {
		return s.classifyWriteError(key, err)
	}
	return nil
}

// DeleteBlob removes a stored blob. Missing blobs are not an error.
func (s *FileStore) DeleteBlob(key string) error {
	if err := os.Remove(s.path(key)); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "deleting blob")
	}
	if err := os.Remove(s.sumPath(key)); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "deleting blob checksum")
	}
	return nil
}

func (s *FileStore) classifyWriteError(key string, err error) error {
	if errors.Is(err, syscall.ENOSPC) || errors.Is(err, syscall.EDQUOT) {
		return &errors.QuotaError{Key: key, Err: err}
	}
	return errors.Wrap(err, "writing blob")
}

// usedBytes sums the size of every stored blob except the one about to
// be overwritten.
func (s *FileStore) usedBytes(excludeKey string) (int64, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return 0, errors.Wrap(err, "scanning blob store")
	}
	exclude := filepath.Base(s.path(excludeKey))
	var total int64
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".xz") || e.Name() == exclude {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		total += info.Size()
	}
	return total, nil
}

func (s *FileStore) path(key string) string {
	return filepath.Join(s.dir, sanitizeKey(key)+".xz")
}

func (s *FileStore) sumPath(key string) string {
	return filepath.Join(s.dir, sanitizeKey(key)+".sum")
}

// sanitizeKey maps a blob key to a safe filename.
func sanitizeKey(key string) string {
	var sb strings.Builder
	for _, r := range key {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			sb.WriteRune(r)
		default:
			sb.WriteString(fmt.Sprintf("_%04x", r))
		}
	}
	return sb.String()
}
