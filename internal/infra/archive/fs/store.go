// Package fs provides a filesystem-backed snapshot archive. Object
// metadata lives next to the payload in a ".meta" sidecar so the archive
// directory can be inspected and synced with plain tools.
package fs

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"mescore/internal/infra/archive/core"
)

const metaSuffix = ".meta"

// Store archives snapshots under a root directory.
type Store struct {
	root string
}

// New creates the root directory if needed and returns a Store.
func New(root string) (*Store, error) {
	if strings.TrimSpace(root) == "" {
		return nil, errors.New("archive fs: root is required")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, err
	}
	return &Store{root: abs}, nil
}

func (s *Store) Driver() core.Driver { return core.DriverFilesystem }

func (s *Store) path(key string) (string, error) {
	clean, err := sanitizeKey(key)
	if err != nil {
		return "", err
	}
	return filepath.Join(s.root, filepath.FromSlash(clean)), nil
}

func sanitizeKey(key string) (string, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return "", errors.New("archive fs: key is required")
	}
	clean := filepath.ToSlash(filepath.Clean(key))
	if clean == "." || strings.HasPrefix(clean, "../") || strings.HasPrefix(clean, "/") {
		return "", fmt.Errorf("archive fs: invalid key %q", key)
	}
	return clean, nil
}

// Put writes the snapshot atomically via a temp file and fails if the key
// already exists.
func (s *Store) Put(ctx context.Context, key string, r io.Reader, opts core.PutOptions) (core.Info, error) {
	if err := ctx.Err(); err != nil {
		return core.Info{}, err
	}
	dst, err := s.path(key)
	if err != nil {
		return core.Info{}, err
	}
	if _, err := os.Stat(dst); err == nil {
		return core.Info{}, fmt.Errorf("archive fs: key %q already exists", key)
	} else if !errors.Is(err, fs.ErrNotExist) {
		return core.Info{}, err
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return core.Info{}, err
	}

	tmp, err := os.CreateTemp(filepath.Dir(dst), ".archive-*")
	if err != nil {
		return core.Info{}, err
	}
	defer os.Remove(tmp.Name())

	hasher := sha256.New()
	size, err := io.Copy(io.MultiWriter(tmp, hasher), r)
	if err != nil {
		tmp.Close()
		return core.Info{}, err
	}
	if err := tmp.Close(); err != nil {
		return core.Info{}, err
	}
	if err := os.Rename(tmp.Name(), dst); err != nil {
		return core.Info{}, err
	}

	clean, _ := sanitizeKey(key)
	info := core.Info{
		Key:          clean,
		Size:         size,
		ContentType:  opts.ContentType,
		ETag:         hex.EncodeToString(hasher.Sum(nil)),
		Metadata:     core.CloneMetadata(opts.Metadata),
		LastModified: time.Now().UTC(),
	}
	if err := s.writeMeta(dst, info); err != nil {
		os.Remove(dst)
		return core.Info{}, err
	}
	return info, nil
}

func (s *Store) writeMeta(dst string, info core.Info) error {
	raw, err := json.Marshal(info)
	if err != nil {
		return err
	}
	return os.WriteFile(dst+metaSuffix, raw, 0o644)
}

func (s *Store) readMeta(dst, key string) (core.Info, error) {
	raw, err := os.ReadFile(dst + metaSuffix)
	if errors.Is(err, fs.ErrNotExist) {
		// Payload without sidecar, fall back to file stats.
		st, serr := os.Stat(dst)
		if serr != nil {
			return core.Info{}, serr
		}
		return core.Info{Key: key, Size: st.Size(), LastModified: st.ModTime().UTC()}, nil
	}
	if err != nil {
		return core.Info{}, err
	}
	var info core.Info
	if err := json.Unmarshal(raw, &info); err != nil {
		return core.Info{}, err
	}
	return info, nil
}

func (s *Store) Get(ctx context.Context, key string) (core.Info, io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return core.Info{}, nil, err
	}
	dst, err := s.path(key)
	if err != nil {
		return core.Info{}, nil, err
	}
	f, err := os.Open(dst)
	if err != nil {
		return core.Info{}, nil, err
	}
	clean, _ := sanitizeKey(key)
	info, err := s.readMeta(dst, clean)
	if err != nil {
		f.Close()
		return core.Info{}, nil, err
	}
	return info, f, nil
}

func (s *Store) Head(ctx context.Context, key string) (core.Info, error) {
	if err := ctx.Err(); err != nil {
		return core.Info{}, err
	}
	dst, err := s.path(key)
	if err != nil {
		return core.Info{}, err
	}
	if _, err := os.Stat(dst); err != nil {
		return core.Info{}, err
	}
	clean, _ := sanitizeKey(key)
	return s.readMeta(dst, clean)
}

func (s *Store) Delete(ctx context.Context, key string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	dst, err := s.path(key)
	if err != nil {
		return false, err
	}
	err = os.Remove(dst)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	os.Remove(dst + metaSuffix)
	return true, nil
}

// List returns archive entries under prefix sorted by key.
func (s *Store) List(ctx context.Context, prefix string) ([]core.Info, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var out []core.Info
	err := filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || strings.HasSuffix(path, metaSuffix) {
			return nil
		}
		rel, err := filepath.Rel(s.root, path)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		if prefix != "" && !strings.HasPrefix(key, prefix) {
			return nil
		}
		info, err := s.readMeta(path, key)
		if err != nil {
			return err
		}
		out = append(out, info)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}
