// Package blobstore holds the object storage contract used by the attachment
// workflow and its self-hosted backends.
package blobstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"
)

var (
	ErrNotFound = errors.New("object not found")
	// ErrExists is returned by Upload when the key is already taken. Stores
	// never overwrite.
	ErrExists = errors.New("object already exists")
)

// Store is the write side of a bucket. Keys are slash separated.
type Store interface {
	Upload(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Delete(ctx context.Context, key string) error
}

// Reader is implemented by backends whose objects are served by this process.
type Reader interface {
	Open(ctx context.Context, key string) (io.ReadCloser, ObjectInfo, error)
}

type ObjectInfo struct {
	Size        int64
	ContentType string
}

// ObjectKey builds "{serviceOrder}/{epochMillis}.{ext}".
func ObjectKey(serviceOrder string, at time.Time, ext string) string {
	return fmt.Sprintf("%s/%d.%s", serviceOrder, at.UnixMilli(), strings.TrimPrefix(ext, "."))
}

// PublicURL derives the public location of key without asking the store.
func PublicURL(base, bucket, key string) string {
	return fmt.Sprintf("%s/storage/v1/object/public/%s/%s", strings.TrimRight(base, "/"), bucket, key)
}

// CleanKey rejects keys that are empty, absolute or climb out of the bucket.
func CleanKey(key string) (string, error) {
	key = strings.TrimPrefix(key, "/")
	if key == "" {
		return "", fmt.Errorf("empty object key")
	}
	for _, part := range strings.Split(key, "/") {
		if part == "" || part == "." || part == ".." {
			return "", fmt.Errorf("invalid object key %q", key)
		}
	}
	return key, nil
}
