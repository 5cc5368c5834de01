package worker

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"service-order-attachments/internal/blobstore"
	"service-order-attachments/internal/model"
)

type stubBlobs struct {
	deleteErr error
	deleted   []string
}

func (s *stubBlobs) Upload(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	return nil
}

func (s *stubBlobs) Delete(ctx context.Context, key string) error {
	if s.deleteErr != nil {
		return s.deleteErr
	}
	s.deleted = append(s.deleted, key)
	return nil
}

type stubRequeuer struct {
	err      error
	messages []model.OrphanBlob
	delays   []time.Duration
}

func (s *stubRequeuer) PublishDelayed(ctx context.Context, payload any, delay time.Duration) error {
	if s.err != nil {
		return s.err
	}
	s.messages = append(s.messages, payload.(model.OrphanBlob))
	s.delays = append(s.delays, delay)
	return nil
}

func newTestWorker(blobs *stubBlobs, requeue *stubRequeuer) *OrphanCleanupWorker {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewOrphanCleanupWorker(nil, blobs, requeue, "attachments.orphan_cleanup", 3, 30*time.Second, logger)
}

func body(t *testing.T, msg model.OrphanBlob) []byte {
	t.Helper()
	raw, err := json.Marshal(msg)
	require.NoError(t, err)
	return raw
}

func TestOrphanCleanupDeletes(t *testing.T) {
	blobs := &stubBlobs{}
	requeue := &stubRequeuer{}
	w := newTestWorker(blobs, requeue)

	got := w.handle(context.Background(), body(t, model.OrphanBlob{ID: "1", Key: "SO-1/1.jpg", Attempts: 1}))
	assert.Equal(t, dispositionAck, got)
	assert.Equal(t, []string{"SO-1/1.jpg"}, blobs.deleted)
	assert.Empty(t, requeue.messages)
}

func TestOrphanCleanupTreatsMissingAsDone(t *testing.T) {
	w := newTestWorker(&stubBlobs{deleteErr: blobstore.ErrNotFound}, &stubRequeuer{})

	got := w.handle(context.Background(), body(t, model.OrphanBlob{ID: "1", Key: "SO-1/1.jpg", Attempts: 1}))
	assert.Equal(t, dispositionAck, got)
}

func TestOrphanCleanupRequeuesWithNextAttempt(t *testing.T) {
	requeue := &stubRequeuer{}
	w := newTestWorker(&stubBlobs{deleteErr: errors.New("unavailable")}, requeue)

	got := w.handle(context.Background(), body(t, model.OrphanBlob{ID: "1", Key: "SO-1/1.jpg", Attempts: 2}))
	assert.Equal(t, dispositionAck, got)
	require.Len(t, requeue.messages, 1)
	assert.Equal(t, 3, requeue.messages[0].Attempts)
	assert.Equal(t, "SO-1/1.jpg", requeue.messages[0].Key)
	assert.Equal(t, []time.Duration{time.Minute}, requeue.delays)
}

func TestOrphanCleanupBacksOff(t *testing.T) {
	requeue := &stubRequeuer{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	w := NewOrphanCleanupWorker(nil, &stubBlobs{deleteErr: errors.New("unavailable")}, requeue, "attachments.orphan_cleanup", 10, 30*time.Second, logger)

	for attempts := 1; attempts <= 8; attempts++ {
		got := w.handle(context.Background(), body(t, model.OrphanBlob{ID: "1", Key: "SO-1/1.jpg", Attempts: attempts}))
		require.Equal(t, dispositionAck, got)
	}

	assert.Equal(t, []time.Duration{
		30 * time.Second,
		time.Minute,
		2 * time.Minute,
		4 * time.Minute,
		8 * time.Minute,
		16 * time.Minute,
		30 * time.Minute,
		30 * time.Minute,
	}, requeue.delays)
}

func TestOrphanCleanupGivesUpAfterMaxAttempts(t *testing.T) {
	requeue := &stubRequeuer{}
	w := newTestWorker(&stubBlobs{deleteErr: errors.New("unavailable")}, requeue)

	got := w.handle(context.Background(), body(t, model.OrphanBlob{ID: "1", Key: "SO-1/1.jpg", Attempts: 3}))
	assert.Equal(t, dispositionAck, got)
	assert.Empty(t, requeue.messages)
}

func TestOrphanCleanupRetriesWhenRequeueFails(t *testing.T) {
	w := newTestWorker(&stubBlobs{deleteErr: errors.New("unavailable")}, &stubRequeuer{err: errors.New("closed")})

	got := w.handle(context.Background(), body(t, model.OrphanBlob{ID: "1", Key: "SO-1/1.jpg", Attempts: 1}))
	assert.Equal(t, dispositionRetry, got)
}

func TestOrphanCleanupDropsBadMessages(t *testing.T) {
	blobs := &stubBlobs{}
	w := newTestWorker(blobs, &stubRequeuer{})

	assert.Equal(t, dispositionDrop, w.handle(context.Background(), []byte("{not json")))
	assert.Equal(t, dispositionDrop, w.handle(context.Background(), body(t, model.OrphanBlob{ID: "1", Key: "../etc/passwd"})))
	assert.Empty(t, blobs.deleted)
}
