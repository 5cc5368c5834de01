package blobstore

import (
	"context"
	"fmt"
	"io"

	"github.com/minio/minio-go/v7"
)

// MinIOStore writes objects to one bucket of an S3 compatible server.
type MinIOStore struct {
	client *minio.Client
	bucket string
}

// NewMinIOStore creates the bucket when it does not exist yet.
func NewMinIOStore(ctx context.Context, client *minio.Client, bucket string) (*MinIOStore, error) {
	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket failed: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket failed: %w", err)
		}
	}
	return &MinIOStore{client: client, bucket: bucket}, nil
}

func (s *MinIOStore) Upload(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	if _, err := CleanKey(key); err != nil {
		return err
	}
	opts := minio.PutObjectOptions{ContentType: contentType}
	// If-None-Match: * makes the put fail instead of replacing an object.
	opts.SetMatchETagExcept("*")
	_, err := s.client.PutObject(ctx, s.bucket, key, r, size, opts)
	if err != nil {
		if minio.ToErrorResponse(err).Code == "PreconditionFailed" {
			return fmt.Errorf("%w: %s", ErrExists, key)
		}
		return fmt.Errorf("put object failed: %w", err)
	}
	return nil
}

func (s *MinIOStore) Delete(ctx context.Context, key string) error {
	if _, err := CleanKey(key); err != nil {
		return err
	}
	if err := s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("remove object failed: %w", err)
	}
	return nil
}

func (s *MinIOStore) Open(ctx context.Context, key string) (io.ReadCloser, ObjectInfo, error) {
	if _, err := CleanKey(key); err != nil {
		return nil, ObjectInfo{}, err
	}
	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, ObjectInfo{}, fmt.Errorf("get object failed: %w", err)
	}
	stat, err := obj.Stat()
	if err != nil {
		_ = obj.Close()
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, ObjectInfo{}, ErrNotFound
		}
		return nil, ObjectInfo{}, fmt.Errorf("stat object failed: %w", err)
	}
	return obj, ObjectInfo{Size: stat.Size, ContentType: stat.ContentType}, nil
}
