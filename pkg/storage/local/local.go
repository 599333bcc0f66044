// Package local implements the file scheme backend on the local
// filesystem.
package local

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/eisenhauerIO/tools-impact-engine-measure/pkg/errors"
	"github.com/eisenhauerIO/tools-impact-engine-measure/pkg/storage"
)

// Store writes objects under a base directory.
type Store struct {
	base string
}

// New creates a backend rooted at baseDir, creating it when absent.
func New(baseDir string) (storage.Backend, error) {
	if baseDir == "" {
		return nil, errors.New(errors.ErrorTypeValidation, "local storage path is empty")
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, errors.Wrapf(err, errors.ErrorTypeStorage, "creating %s", baseDir)
	}
	return storage.NewBackend(&Store{base: baseDir}), nil
}

func (s *Store) path(key string) string {
	return filepath.Join(s.base, filepath.FromSlash(key))
}

func (s *Store) Put(ctx context.Context, key string, data []byte) error {
	target := s.path(key)
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return errors.Wrapf(err, errors.ErrorTypeStorage, "creating directory for %s", key)
	}
	if err := os.WriteFile(target, data, 0o644); err != nil {
		return errors.Wrapf(err, errors.ErrorTypeStorage, "writing %s", key)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := os.ReadFile(s.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Newf(errors.ErrorTypeStorage, "object %s does not exist", key)
		}
		return nil, errors.Wrapf(err, errors.ErrorTypeStorage, "reading %s", key)
	}
	return data, nil
}

func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	_, err := os.Stat(s.path(key))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, errors.Wrapf(err, errors.ErrorTypeStorage, "stat %s", key)
}

// List walks the base directory and returns slash-separated keys under
// prefix, sorted.
func (s *Store) List(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	err := filepath.WalkDir(s.base, func(p string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		rel, err := filepath.Rel(s.base, p)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		if prefix == "" || strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrorTypeStorage, "listing %s", prefix)
	}
	sort.Strings(keys)
	return keys, nil
}

func (s *Store) FullPath(key string) string {
	return s.path(key)
}

func init() {
	storage.MustRegister("file", func(ctx context.Context, u *storage.URL) (storage.Backend, error) {
		return New(u.Path)
	})
}
