package app

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"

	"service-order-attachments/internal/media"
)

// SelectedFile describes the staged file. Its bytes live in the session
// store next to the state.
type SelectedFile struct {
	Name        string     `json:"name"`
	ContentType string     `json:"content_type"`
	Size        int64      `json:"size"`
	Kind        media.Kind `json:"kind"`
}

// SessionState is the transient form state of one browser session. Each
// field has one writer:
//
//	ServiceOrder, Workcenter  SetFields
//	File                      SelectFile, CaptureFrame
//	HasPreview                SelectFile, CaptureFrame, cleared by Upload
//	Uploading                 derived from the upload lock
//	Results                   Search
type SessionState struct {
	ServiceOrder string        `json:"service_order"`
	Workcenter   string        `json:"workcenter"`
	File         *SelectedFile `json:"file,omitempty"`
	HasPreview   bool          `json:"has_preview"`
	Uploading    bool          `json:"uploading"`
	Results      []string      `json:"results"`
}

// SessionStore keeps SessionState per session id. Missing sessions load as
// the zero state.
type SessionStore interface {
	Load(ctx context.Context, sessionID string) (*SessionState, error)
	SaveFields(ctx context.Context, sessionID, serviceOrder, workcenter string) error
	SaveSelection(ctx context.Context, sessionID string, file SelectedFile, content []byte) error
	SelectionContent(ctx context.Context, sessionID string) ([]byte, error)
	ClearPreview(ctx context.Context, sessionID string) error
	SaveResults(ctx context.Context, sessionID string, results []string) error
	// AcquireUploadLock returns a token that ReleaseUploadLock must present.
	// A lock that expired and was taken by a later upload stays with it.
	AcquireUploadLock(ctx context.Context, sessionID string) (token string, ok bool, err error)
	ReleaseUploadLock(ctx context.Context, sessionID, token string) error
}

// Controller runs the form actions of a session against the attachment
// service. Every action is one request; state is written when it completes.
type Controller struct {
	service *AttachmentService
	store   SessionStore
	logger  *slog.Logger
}

func NewController(service *AttachmentService, store SessionStore, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{service: service, store: store, logger: logger}
}

func (c *Controller) State(ctx context.Context, sessionID string) (*SessionState, error) {
	return c.store.Load(ctx, sessionID)
}

func (c *Controller) SetFields(ctx context.Context, sessionID, serviceOrder, workcenter string) error {
	return c.store.SaveFields(ctx, sessionID, strings.TrimSpace(serviceOrder), strings.TrimSpace(workcenter))
}

// SelectFile stages a picked file, replacing any earlier selection. Only
// images and PDFs are accepted.
func (c *Controller) SelectFile(ctx context.Context, sessionID, name string, content []byte) (*SelectedFile, error) {
	if len(content) == 0 {
		return nil, validationError(MsgUploadFieldsRequired, nil)
	}
	inspection, err := media.Inspect(content)
	if err != nil {
		if errors.Is(err, media.ErrInvalidPDF) {
			return nil, validationError(MsgInvalidPDF, err)
		}
		return nil, validationError(MsgUnsupportedFile, err)
	}

	file := SelectedFile{
		Name:        strings.TrimSpace(name),
		ContentType: inspection.ContentType,
		Size:        int64(len(content)),
		Kind:        inspection.Kind,
	}
	if err := c.store.SaveSelection(ctx, sessionID, file, content); err != nil {
		return nil, err
	}
	return &file, nil
}

// CaptureFrame turns a camera frame into the 300x300 JPEG that is staged as
// captured-image.jpg.
func (c *Controller) CaptureFrame(ctx context.Context, sessionID string, frame io.Reader) (*SelectedFile, error) {
	jpegData, err := media.RasterizeFrame(frame)
	if err != nil {
		return nil, validationError(MsgCaptureFailed, err)
	}
	return c.SelectFile(ctx, sessionID, media.CaptureFileName, jpegData)
}

// Preview returns the staged bytes while the preview is shown.
func (c *Controller) Preview(ctx context.Context, sessionID string) (*SelectedFile, []byte, error) {
	state, err := c.store.Load(ctx, sessionID)
	if err != nil {
		return nil, nil, err
	}
	if state.File == nil || !state.HasPreview {
		return nil, nil, nil
	}
	content, err := c.store.SelectionContent(ctx, sessionID)
	if err != nil {
		return nil, nil, err
	}
	if len(content) == 0 {
		return nil, nil, nil
	}
	return state.File, content, nil
}

// Upload sends the staged file with the session's fields. Validation fails
// before the lock is taken. Once the upload has started the preview is
// cleared whatever the outcome.
func (c *Controller) Upload(ctx context.Context, sessionID string) (*UploadResult, error) {
	state, err := c.store.Load(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	input := UploadInput{
		ServiceOrder: state.ServiceOrder,
		Workcenter:   state.Workcenter,
	}
	if state.File != nil {
		input.FileName = state.File.Name
		content, err := c.store.SelectionContent(ctx, sessionID)
		if err != nil {
			return nil, err
		}
		if len(content) == 0 {
			err := validationError(MsgSelectionExpired, nil)
			c.service.recordUpload(err)
			return nil, err
		}
		input.Content = content
	}
	if err := input.Validate(); err != nil {
		c.service.recordUpload(err)
		return nil, err
	}

	token, acquired, err := c.store.AcquireUploadLock(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !acquired {
		return nil, ErrUploadInProgress
	}
	defer func() {
		cleanupCtx := context.WithoutCancel(ctx)
		if err := c.store.ClearPreview(cleanupCtx, sessionID); err != nil {
			c.logger.WarnContext(ctx, "clear preview failed", slog.String("session_id", sessionID), slog.Any("error", err))
		}
		if err := c.store.ReleaseUploadLock(cleanupCtx, sessionID, token); err != nil {
			c.logger.WarnContext(ctx, "release upload lock failed", slog.String("session_id", sessionID), slog.Any("error", err))
		}
	}()

	return c.service.Upload(ctx, input)
}

// Search replaces the session results when rows are found. An empty result
// or a failure leaves the previous results in place.
func (c *Controller) Search(ctx context.Context, sessionID, serviceOrder string) ([]Preview, error) {
	locations, err := c.service.Search(ctx, serviceOrder)
	if err != nil {
		return nil, err
	}
	if err := c.store.SaveResults(ctx, sessionID, locations); err != nil {
		return nil, err
	}
	return Previews(locations), nil
}
