package app

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"service-order-attachments/internal/media"
	"service-order-attachments/internal/model"
)

func newTestController(t *testing.T) (*Controller, *serviceFixture, *memorySessionStore) {
	t.Helper()
	f := newServiceFixture(AttachmentServiceConfig{})
	store := newMemorySessionStore()
	return NewController(f.service, store, nil), f, store
}

func TestControllerUploadFlow(t *testing.T) {
	ctx := context.Background()
	c, f, store := newTestController(t)

	require.NoError(t, c.SetFields(ctx, "s1", " SO-1 ", "WC-A"))
	file, err := c.SelectFile(ctx, "s1", "photo.jpg", jpegBytes(t))
	require.NoError(t, err)
	assert.Equal(t, "image/jpeg", file.ContentType)
	assert.Equal(t, media.KindImage, file.Kind)

	state, err := c.State(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "SO-1", state.ServiceOrder)
	assert.True(t, state.HasPreview)

	result, err := c.Upload(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "https://proj.supabase.co/storage/v1/object/public/uploads/SO-1/1718006400000.jpg", result.Attachment.Location)
	assert.Len(t, f.records.rows, 1)

	state, err = c.State(ctx, "s1")
	require.NoError(t, err)
	assert.False(t, state.HasPreview)
	assert.False(t, state.Uploading)
	assert.Empty(t, store.locks["s1"])
}

func TestControllerUploadClearsPreviewOnFailure(t *testing.T) {
	ctx := context.Background()
	c, f, _ := newTestController(t)
	f.blobs.uploadErr = errors.New("bucket not found")

	require.NoError(t, c.SetFields(ctx, "s1", "SO-1", "WC"))
	_, err := c.SelectFile(ctx, "s1", "photo.jpg", jpegBytes(t))
	require.NoError(t, err)

	_, err = c.Upload(ctx, "s1")
	assert.Equal(t, FailureUpload, KindOf(err))

	state, err := c.State(ctx, "s1")
	require.NoError(t, err)
	assert.False(t, state.HasPreview)
	assert.False(t, state.Uploading)
	assert.NotNil(t, state.File)
}

func TestControllerUploadValidation(t *testing.T) {
	ctx := context.Background()
	c, f, store := newTestController(t)

	_, err := c.Upload(ctx, "s1")
	assert.True(t, IsValidation(err))

	require.NoError(t, c.SetFields(ctx, "s1", "SO-1", ""))
	_, err = c.SelectFile(ctx, "s1", "photo.jpg", jpegBytes(t))
	require.NoError(t, err)

	_, err = c.Upload(ctx, "s1")
	assert.True(t, IsValidation(err))
	assert.Zero(t, f.blobs.callCount())
	assert.Zero(t, f.records.inserts)

	state, err := c.State(ctx, "s1")
	require.NoError(t, err)
	assert.True(t, state.HasPreview)
	assert.Empty(t, store.locks["s1"])
}

func TestControllerUploadExpiredSelection(t *testing.T) {
	ctx := context.Background()
	c, f, store := newTestController(t)

	require.NoError(t, c.SetFields(ctx, "s1", "SO-1", "WC"))
	_, err := c.SelectFile(ctx, "s1", "photo.jpg", jpegBytes(t))
	require.NoError(t, err)
	store.mu.Lock()
	delete(store.contents, "s1")
	store.mu.Unlock()

	_, err = c.Upload(ctx, "s1")
	var wfErr *WorkflowError
	require.ErrorAs(t, err, &wfErr)
	assert.Equal(t, MsgSelectionExpired, wfErr.Key)
	assert.NotEqual(t, MsgUploadFieldsRequired, wfErr.Key)
	assert.Zero(t, f.blobs.callCount())
	assert.Equal(t, "The selected file expired, please choose it again.", NewMessages("en").Describe(err))
}

func TestControllerRejectsConcurrentUpload(t *testing.T) {
	ctx := context.Background()
	c, f, store := newTestController(t)
	f.blobs.block = make(chan struct{})

	require.NoError(t, c.SetFields(ctx, "s1", "SO-1", "WC"))
	_, err := c.SelectFile(ctx, "s1", "photo.jpg", jpegBytes(t))
	require.NoError(t, err)

	var wg sync.WaitGroup
	wg.Add(1)
	var firstErr error
	go func() {
		defer wg.Done()
		_, firstErr = c.Upload(ctx, "s1")
	}()

	require.Eventually(t, func() bool {
		store.mu.Lock()
		defer store.mu.Unlock()
		return store.locks["s1"] != ""
	}, time.Second, 5*time.Millisecond)

	state, err := c.State(ctx, "s1")
	require.NoError(t, err)
	assert.True(t, state.Uploading)

	_, err = c.Upload(ctx, "s1")
	assert.ErrorIs(t, err, ErrUploadInProgress)

	// another session is not blocked by s1's lock
	_, acquired, err := store.AcquireUploadLock(ctx, "s2")
	require.NoError(t, err)
	assert.True(t, acquired)

	close(f.blobs.block)
	wg.Wait()
	require.NoError(t, firstErr)
	assert.Len(t, f.records.rows, 1)
}

func TestControllerSelectFileRejectsUnsupported(t *testing.T) {
	ctx := context.Background()
	c, _, _ := newTestController(t)

	_, err := c.SelectFile(ctx, "s1", "notes.txt", []byte("just some notes"))
	var wfErr *WorkflowError
	require.ErrorAs(t, err, &wfErr)
	assert.Equal(t, MsgUnsupportedFile, wfErr.Key)

	_, err = c.SelectFile(ctx, "s1", "empty.jpg", nil)
	assert.True(t, IsValidation(err))

	state, err := c.State(ctx, "s1")
	require.NoError(t, err)
	assert.Nil(t, state.File)
}

func TestControllerCaptureReplacesSelection(t *testing.T) {
	ctx := context.Background()
	c, _, _ := newTestController(t)

	_, err := c.SelectFile(ctx, "s1", "manual.pdf", pdfBytes())
	require.NoError(t, err)

	var frame bytes.Buffer
	require.NoError(t, png.Encode(&frame, image.NewRGBA(image.Rect(0, 0, 640, 480))))

	file, err := c.CaptureFrame(ctx, "s1", &frame)
	require.NoError(t, err)
	assert.Equal(t, media.CaptureFileName, file.Name)
	assert.Equal(t, media.CaptureContentType, file.ContentType)

	got, content, err := c.Preview(ctx, "s1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, media.CaptureFileName, got.Name)

	img, _, err := image.Decode(bytes.NewReader(content))
	require.NoError(t, err)
	assert.Equal(t, media.FrameWidth, img.Bounds().Dx())
	assert.Equal(t, media.FrameHeight, img.Bounds().Dy())

	_, err = c.CaptureFrame(ctx, "s1", bytes.NewReader([]byte("no frame")))
	var wfErr *WorkflowError
	require.ErrorAs(t, err, &wfErr)
	assert.Equal(t, MsgCaptureFailed, wfErr.Key)
}

func TestControllerPreviewEmpty(t *testing.T) {
	c, _, _ := newTestController(t)

	file, content, err := c.Preview(context.Background(), "fresh")
	require.NoError(t, err)
	assert.Nil(t, file)
	assert.Nil(t, content)
}

func TestControllerSearchKeepsResultsOnEmpty(t *testing.T) {
	ctx := context.Background()
	c, f, _ := newTestController(t)
	f.records.rows = []model.Attachment{
		{ServiceOrder: "SO-1", Location: "https://x/SO-1/1.jpg"},
		{ServiceOrder: "SO-1", Location: "https://x/SO-1/2.PDF"},
	}

	previews, err := c.Search(ctx, "s1", "SO-1")
	require.NoError(t, err)
	assert.Equal(t, []Preview{
		{URL: "https://x/SO-1/1.jpg", Kind: media.KindImage},
		{URL: "https://x/SO-1/2.PDF", Kind: media.KindPDF},
	}, previews)

	_, err = c.Search(ctx, "s1", "SO-2")
	assert.ErrorIs(t, err, ErrNoAttachments)

	f.records.listErr = errors.New("timeout")
	_, err = c.Search(ctx, "s1", "SO-1")
	assert.Equal(t, FailureQuery, KindOf(err))

	state, err := c.State(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, []string{"https://x/SO-1/1.jpg", "https://x/SO-1/2.PDF"}, state.Results)
}

func TestControllerSearchFromFreshSessionStaysEmpty(t *testing.T) {
	ctx := context.Background()
	c, _, _ := newTestController(t)

	_, err := c.Search(ctx, "s1", "SO-404")
	assert.ErrorIs(t, err, ErrNoAttachments)

	state, err := c.State(ctx, "s1")
	require.NoError(t, err)
	assert.Empty(t, state.Results)
}
