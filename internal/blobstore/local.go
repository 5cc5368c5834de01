package blobstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/gabriel-vasile/mimetype"
)

// LocalStore keeps objects under {basePath}/{bucket}/{key}.
type LocalStore struct {
	root string
}

func NewLocalStore(basePath, bucket string) (*LocalStore, error) {
	root := filepath.Join(basePath, bucket)
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create bucket directory failed: %w", err)
	}
	return &LocalStore{root: root}, nil
}

func (s *LocalStore) Upload(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	fullPath, err := s.path(key)
	if err != nil {
		return err
	}
	if _, err := os.Stat(fullPath); err == nil {
		return fmt.Errorf("%w: %s", ErrExists, key)
	}
	if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
		return fmt.Errorf("create object directory failed: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(fullPath), ".upload-*")
	if err != nil {
		return fmt.Errorf("create object file failed: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, r); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write object failed: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync object failed: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close object failed: %w", err)
	}
	// Link fails when fullPath exists, so concurrent uploads to one key
	// cannot replace each other.
	if err := os.Link(tmp.Name(), fullPath); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return fmt.Errorf("%w: %s", ErrExists, key)
		}
		return fmt.Errorf("commit object failed: %w", err)
	}
	return nil
}

func (s *LocalStore) Delete(ctx context.Context, key string) error {
	fullPath, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(fullPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete object failed: %w", err)
	}
	return nil
}

func (s *LocalStore) Open(ctx context.Context, key string) (io.ReadCloser, ObjectInfo, error) {
	fullPath, err := s.path(key)
	if err != nil {
		return nil, ObjectInfo{}, err
	}
	f, err := os.Open(fullPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ObjectInfo{}, ErrNotFound
		}
		return nil, ObjectInfo{}, fmt.Errorf("open object failed: %w", err)
	}
	stat, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, ObjectInfo{}, fmt.Errorf("stat object failed: %w", err)
	}
	if stat.IsDir() {
		_ = f.Close()
		return nil, ObjectInfo{}, ErrNotFound
	}

	mtype, err := mimetype.DetectReader(f)
	if err != nil {
		_ = f.Close()
		return nil, ObjectInfo{}, fmt.Errorf("detect object type failed: %w", err)
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		_ = f.Close()
		return nil, ObjectInfo{}, fmt.Errorf("rewind object failed: %w", err)
	}
	return f, ObjectInfo{Size: stat.Size(), ContentType: mtype.String()}, nil
}

func (s *LocalStore) path(key string) (string, error) {
	clean, err := CleanKey(key)
	if err != nil {
		return "", err
	}
	return filepath.Join(s.root, filepath.FromSlash(clean)), nil
}
