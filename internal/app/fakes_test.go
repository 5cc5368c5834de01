package app

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"io"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"service-order-attachments/internal/blobstore"
	"service-order-attachments/internal/model"
)

type fakeBlobStore struct {
	mu        sync.Mutex
	objects   map[string][]byte
	types     map[string]string
	deleted   []string
	uploadErr error
	deleteErr error
	calls     []string
	// block, when set, holds Upload until it is closed.
	block chan struct{}
}

func newFakeBlobStore() *fakeBlobStore {
	return &fakeBlobStore{objects: map[string][]byte{}, types: map[string]string{}}
}

func (f *fakeBlobStore) Upload(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	if f.block != nil {
		<-f.block
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "upload:"+key)
	if f.uploadErr != nil {
		return f.uploadErr
	}
	if _, ok := f.objects[key]; ok {
		return fmt.Errorf("%w: %s", blobstore.ErrExists, key)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	if int64(len(data)) != size {
		return fmt.Errorf("size mismatch: %d != %d", len(data), size)
	}
	f.objects[key] = data
	f.types[key] = contentType
	return nil
}

func (f *fakeBlobStore) Delete(ctx context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "delete:"+key)
	if f.deleteErr != nil {
		return f.deleteErr
	}
	delete(f.objects, key)
	f.deleted = append(f.deleted, key)
	return nil
}

func (f *fakeBlobStore) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type fakeRecords struct {
	mu        sync.Mutex
	rows      []model.Attachment
	insertErr error
	listErr   error
	inserts   int
	lists     int
	onInsert  func(*model.Attachment)
}

func (f *fakeRecords) Insert(ctx context.Context, attachment *model.Attachment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inserts++
	if f.onInsert != nil {
		f.onInsert(attachment)
	}
	if f.insertErr != nil {
		return f.insertErr
	}
	attachment.ID = uint(len(f.rows) + 1)
	f.rows = append(f.rows, *attachment)
	return nil
}

func (f *fakeRecords) ListLocations(ctx context.Context, serviceOrder string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lists++
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := []string{}
	for _, row := range f.rows {
		if row.ServiceOrder == serviceOrder {
			out = append(out, row.Location)
		}
	}
	return out, nil
}

type fakePublisher struct {
	mu       sync.Mutex
	payloads []any
	err      error
}

func (f *fakePublisher) Publish(ctx context.Context, payload any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.payloads = append(f.payloads, payload)
	return nil
}

type fakeRecorder struct {
	mu       sync.Mutex
	uploads  []string
	searches []string
}

func (f *fakeRecorder) RecordUpload(outcome string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.uploads = append(f.uploads, outcome)
}

func (f *fakeRecorder) RecordSearch(outcome string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.searches = append(f.searches, outcome)
}

// memorySessionStore mirrors the redis store's field-per-writer layout.
type memorySessionStore struct {
	mu       sync.Mutex
	states   map[string]*SessionState
	contents map[string][]byte
	locks    map[string]string
	tokens   int
}

func newMemorySessionStore() *memorySessionStore {
	return &memorySessionStore{
		states:   map[string]*SessionState{},
		contents: map[string][]byte{},
		locks:    map[string]string{},
	}
}

func (m *memorySessionStore) state(id string) *SessionState {
	st, ok := m.states[id]
	if !ok {
		st = &SessionState{}
		m.states[id] = st
	}
	return st
}

func (m *memorySessionStore) Load(ctx context.Context, id string) (*SessionState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *m.state(id)
	cp.Uploading = m.locks[id] != ""
	if cp.File != nil {
		file := *cp.File
		cp.File = &file
	}
	cp.Results = append([]string(nil), cp.Results...)
	return &cp, nil
}

func (m *memorySessionStore) SaveFields(ctx context.Context, id, serviceOrder, workcenter string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	st := m.state(id)
	st.ServiceOrder, st.Workcenter = serviceOrder, workcenter
	return nil
}

func (m *memorySessionStore) SaveSelection(ctx context.Context, id string, file SelectedFile, content []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	st := m.state(id)
	st.File = &file
	st.HasPreview = true
	m.contents[id] = bytes.Clone(content)
	return nil
}

func (m *memorySessionStore) SelectionContent(ctx context.Context, id string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return bytes.Clone(m.contents[id]), nil
}

func (m *memorySessionStore) ClearPreview(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state(id).HasPreview = false
	return nil
}

func (m *memorySessionStore) SaveResults(ctx context.Context, id string, results []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state(id).Results = append([]string(nil), results...)
	return nil
}

func (m *memorySessionStore) AcquireUploadLock(ctx context.Context, id string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.locks[id] != "" {
		return "", false, nil
	}
	m.tokens++
	token := fmt.Sprintf("token-%d", m.tokens)
	m.locks[id] = token
	return token, true, nil
}

func (m *memorySessionStore) ReleaseUploadLock(ctx context.Context, id, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.locks[id] == token {
		delete(m.locks, id)
	}
	return nil
}

func jpegBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for i := 0; i < 8; i++ {
		img.Set(i, i, color.RGBA{R: 200, A: 255})
	}
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, nil))
	return buf.Bytes()
}

func pdfBytes() []byte {
	objects := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [3 0 R] /Count 1 >>",
		"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] >>",
	}
	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}
	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(objects)+1)
	buf.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xref)
	return buf.Bytes()
}
