package app

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"service-order-attachments/internal/blobstore"
	"service-order-attachments/internal/media"
	"service-order-attachments/internal/model"
)

// maxKeyAttempts bounds how many timestamps an upload tries when its key is
// already taken.
const maxKeyAttempts = 5

// RecordStore is the attachment table. Both the gorm repository and the
// Supabase PostgREST table satisfy it.
type RecordStore interface {
	Insert(ctx context.Context, attachment *model.Attachment) error
	ListLocations(ctx context.Context, serviceOrder string) ([]string, error)
}

// Publisher sends one JSON message to a queue.
type Publisher interface {
	Publish(ctx context.Context, payload any) error
}

// OutcomeRecorder counts workflow outcomes. Labels are FailureKind strings,
// "ok" or "not_found".
type OutcomeRecorder interface {
	RecordUpload(outcome string)
	RecordSearch(outcome string)
}

type AttachmentServiceConfig struct {
	PublicBaseURL string
	Bucket        string
	// MaxBytes of 0 disables the size check.
	MaxBytes int64
}

type AttachmentService struct {
	blobs    blobstore.Store
	records  RecordStore
	events   Publisher
	orphans  Publisher
	recorder OutcomeRecorder
	logger   *slog.Logger
	cfg      AttachmentServiceConfig
	now      func() time.Time
}

type AttachmentServiceOption func(*AttachmentService)

// WithEvents publishes model.AttachmentCreated after each insert.
func WithEvents(p Publisher) AttachmentServiceOption {
	return func(s *AttachmentService) { s.events = p }
}

// WithOrphanQueue receives model.OrphanBlob when a compensating delete fails.
func WithOrphanQueue(p Publisher) AttachmentServiceOption {
	return func(s *AttachmentService) { s.orphans = p }
}

func WithRecorder(r OutcomeRecorder) AttachmentServiceOption {
	return func(s *AttachmentService) { s.recorder = r }
}

func WithLogger(l *slog.Logger) AttachmentServiceOption {
	return func(s *AttachmentService) { s.logger = l }
}

func WithClock(now func() time.Time) AttachmentServiceOption {
	return func(s *AttachmentService) { s.now = now }
}

func NewAttachmentService(blobs blobstore.Store, records RecordStore, cfg AttachmentServiceConfig, opts ...AttachmentServiceOption) *AttachmentService {
	if cfg.Bucket == "" {
		cfg.Bucket = "uploads"
	}
	s := &AttachmentService{
		blobs:   blobs,
		records: records,
		logger:  slog.Default(),
		cfg:     cfg,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type UploadInput struct {
	ServiceOrder string
	Workcenter   string
	FileName     string
	Content      []byte
}

// Validate checks everything that can be checked without a store call.
func (in UploadInput) Validate() error {
	if len(in.Content) == 0 || strings.TrimSpace(in.ServiceOrder) == "" || strings.TrimSpace(in.Workcenter) == "" {
		return validationError(MsgUploadFieldsRequired, nil)
	}
	return ValidateServiceOrder(in.ServiceOrder)
}

// ValidateServiceOrder rejects identifiers that would change the shape of
// the object key.
func ValidateServiceOrder(serviceOrder string) error {
	so := strings.TrimSpace(serviceOrder)
	if strings.ContainsAny(so, "/\\") || strings.Contains(so, "..") {
		return validationError(MsgServiceOrderInvalid, nil)
	}
	for _, r := range so {
		if r < 0x20 || r == 0x7f {
			return validationError(MsgServiceOrderInvalid, nil)
		}
	}
	return nil
}

type UploadResult struct {
	Attachment *model.Attachment
	Key        string
	Kind       media.Kind
}

// Upload stores the file and then records its public location. The insert
// only runs after the blob is stored. A failed insert removes the blob again.
func (s *AttachmentService) Upload(ctx context.Context, in UploadInput) (*UploadResult, error) {
	if err := in.Validate(); err != nil {
		s.recordUpload(err)
		return nil, err
	}
	if s.cfg.MaxBytes > 0 && int64(len(in.Content)) > s.cfg.MaxBytes {
		err := validationError(MsgFileTooLarge, nil)
		s.recordUpload(err)
		return nil, err
	}

	inspection, err := media.Inspect(in.Content)
	if err != nil {
		key := MsgUnsupportedFile
		if errors.Is(err, media.ErrInvalidPDF) {
			key = MsgInvalidPDF
		}
		wfErr := validationError(key, err)
		s.recordUpload(wfErr)
		return nil, wfErr
	}

	ext := media.FileExtension(strings.TrimSpace(in.FileName))
	if ext == "" {
		ext = inspection.Extension
	}
	if ext == "" {
		ext = "bin"
	}
	if strings.EqualFold(ext, "pdf") != (inspection.Kind == media.KindPDF) {
		wfErr := validationError(MsgExtensionMismatch, nil)
		s.recordUpload(wfErr)
		return nil, wfErr
	}

	serviceOrder := strings.TrimSpace(in.ServiceOrder)
	now, key, err := s.storeBlob(ctx, serviceOrder, ext, in.Content, inspection.ContentType)
	if err != nil {
		s.logger.ErrorContext(ctx, "upload attachment failed",
			slog.String("key", key),
			slog.String("service_order", serviceOrder),
			slog.Any("error", err),
		)
		wfErr := storeError(FailureUpload, MsgUploadFailed, err)
		s.recordUpload(wfErr)
		return nil, wfErr
	}

	attachment := &model.Attachment{
		ServiceOrder: serviceOrder,
		CreatedAt:    now.UTC(),
		Workcenter:   strings.TrimSpace(in.Workcenter),
		Location:     blobstore.PublicURL(s.cfg.PublicBaseURL, s.cfg.Bucket, key),
	}
	if err := s.records.Insert(ctx, attachment); err != nil {
		s.logger.ErrorContext(ctx, "insert attachment failed",
			slog.String("key", key),
			slog.String("service_order", serviceOrder),
			slog.Any("error", err),
		)
		s.discardBlob(ctx, key, err)
		wfErr := storeError(FailureInsert, MsgInsertFailed, err)
		s.recordUpload(wfErr)
		return nil, wfErr
	}

	s.publishCreated(ctx, attachment, key)
	s.recordUpload(nil)
	return &UploadResult{
		Attachment: attachment,
		Key:        key,
		Kind:       media.Classify(attachment.Location),
	}, nil
}

// storeBlob uploads content under a fresh {so}/{millis}.{ext} key. A key
// taken by a concurrent upload moves the timestamp forward by a millisecond,
// so every record points at its own object.
func (s *AttachmentService) storeBlob(ctx context.Context, serviceOrder, ext string, content []byte, contentType string) (time.Time, string, error) {
	now := s.now()
	for attempt := 1; ; attempt++ {
		key := blobstore.ObjectKey(serviceOrder, now, ext)
		err := s.blobs.Upload(ctx, key, bytes.NewReader(content), int64(len(content)), contentType)
		if err == nil {
			return now, key, nil
		}
		if !errors.Is(err, blobstore.ErrExists) || attempt == maxKeyAttempts {
			return now, key, err
		}
		s.logger.InfoContext(ctx, "attachment key taken, trying next", slog.String("key", key))
		now = now.Add(time.Millisecond)
	}
}

// Search returns the locations stored for serviceOrder in store order, or
// ErrNoAttachments when there are none.
func (s *AttachmentService) Search(ctx context.Context, serviceOrder string) ([]string, error) {
	so := strings.TrimSpace(serviceOrder)
	if so == "" {
		err := validationError(MsgSearchFieldRequired, nil)
		s.recordSearch(err)
		return nil, err
	}

	locations, err := s.records.ListLocations(ctx, so)
	if err != nil {
		s.logger.ErrorContext(ctx, "search attachments failed",
			slog.String("service_order", so),
			slog.Any("error", err),
		)
		wfErr := storeError(FailureQuery, MsgSearchFailed, err)
		s.recordSearch(wfErr)
		return nil, wfErr
	}
	if len(locations) == 0 {
		s.recordSearch(ErrNoAttachments)
		return nil, ErrNoAttachments
	}
	s.recordSearch(nil)
	return locations, nil
}

// discardBlob runs after the caller's request may already be cancelled.
func (s *AttachmentService) discardBlob(ctx context.Context, key string, cause error) {
	ctx = context.WithoutCancel(ctx)
	err := s.blobs.Delete(ctx, key)
	if err == nil || errors.Is(err, blobstore.ErrNotFound) {
		s.logger.InfoContext(ctx, "orphaned attachment removed", slog.String("key", key))
		return
	}

	s.logger.WarnContext(ctx, "remove orphaned attachment failed",
		slog.String("key", key),
		slog.Any("error", err),
	)
	if s.orphans == nil {
		return
	}
	msg := model.OrphanBlob{
		ID:       uuid.NewString(),
		Key:      key,
		Reason:   cause.Error(),
		Attempts: 1,
		QueuedAt: s.now().UTC(),
	}
	if err := s.orphans.Publish(ctx, msg); err != nil {
		s.logger.ErrorContext(ctx, "queue orphaned attachment failed",
			slog.String("key", key),
			slog.Any("error", err),
		)
	}
}

func (s *AttachmentService) publishCreated(ctx context.Context, attachment *model.Attachment, key string) {
	if s.events == nil {
		return
	}
	event := model.AttachmentCreated{
		ServiceOrder: attachment.ServiceOrder,
		Workcenter:   attachment.Workcenter,
		Key:          key,
		Location:     attachment.Location,
		CreatedAt:    attachment.CreatedAt,
	}
	if err := s.events.Publish(ctx, event); err != nil {
		s.logger.WarnContext(ctx, "publish attachment event failed",
			slog.String("key", key),
			slog.Any("error", err),
		)
	}
}

func (s *AttachmentService) recordUpload(err error) {
	if s.recorder != nil {
		s.recorder.RecordUpload(outcome(err))
	}
}

func (s *AttachmentService) recordSearch(err error) {
	if s.recorder != nil {
		s.recorder.RecordSearch(outcome(err))
	}
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrNoAttachments):
		return "not_found"
	}
	if kind := KindOf(err); kind != 0 {
		return kind.String()
	}
	return "error"
}

// Preview is one search result ready to render.
type Preview struct {
	URL  string     `json:"url"`
	Kind media.Kind `json:"kind"`
}

func Previews(locations []string) []Preview {
	out := make([]Preview, 0, len(locations))
	for _, loc := range locations {
		out = append(out, Preview{URL: loc, Kind: media.Classify(loc)})
	}
	return out
}
