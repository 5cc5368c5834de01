package supabase

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"

	"service-order-attachments/internal/blobstore"
)

// Bucket writes objects to one Storage bucket.
type Bucket struct {
	client *Client
	name   string
}

func (c *Client) Bucket(name string) *Bucket {
	return &Bucket{client: c, name: name}
}

// Upload never overwrites. An existing key fails with blobstore.ErrExists.
func (b *Bucket) Upload(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	err := b.client.do(ctx, request{
		method:      http.MethodPost,
		path:        b.objectPath(key),
		body:        r,
		size:        size,
		contentType: contentType,
		headers:     map[string]string{"x-upsert": "false"},
	}, nil)
	return objectError(err)
}

// Delete fails with blobstore.ErrNotFound when the object is already gone.
func (b *Bucket) Delete(ctx context.Context, key string) error {
	err := b.client.do(ctx, request{
		method: http.MethodDelete,
		path:   b.objectPath(key),
	}, nil)
	return objectError(err)
}

// objectError maps Storage failures onto the blobstore sentinels and keeps
// the remote message.
func objectError(err error) error {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return err
	}
	switch {
	case apiErr.status() == "404" || strings.EqualFold(apiErr.Code, "not_found"):
		apiErr.Err = blobstore.ErrNotFound
	case apiErr.status() == "409" || strings.EqualFold(apiErr.Code, "Duplicate"):
		apiErr.Err = blobstore.ErrExists
	}
	return apiErr
}

func (b *Bucket) objectPath(key string) string {
	return "/storage/v1/object/" + escapeKey(b.name) + "/" + escapeKey(key)
}
