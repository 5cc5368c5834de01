package handler

import (
	"bytes"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"service-order-attachments/internal/app"
	"service-order-attachments/internal/transport/http/response"
)

const pageTemplate = "index.html"

// PageHandler serves the attachment form. Form state is kept per browser
// session in the session store; the cookie only carries the session id.
type PageHandler struct {
	controller *app.Controller
	messages   *app.Messages
	cookieName string
	cookieTTL  time.Duration
	maxBytes   int64
	logger     *slog.Logger
}

type PageOptions struct {
	CookieName string
	CookieTTL  time.Duration
	MaxBytes   int64
}

type pageData struct {
	Locale   string
	L        map[string]string
	State    *app.SessionState
	Previews []app.Preview
	Message  string
	Success  bool
	MaxBytes int64
}

func NewPageHandler(controller *app.Controller, messages *app.Messages, opts PageOptions, logger *slog.Logger) *PageHandler {
	if opts.CookieName == "" {
		opts.CookieName = "so_session"
	}
	if opts.CookieTTL <= 0 {
		opts.CookieTTL = time.Hour
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PageHandler{
		controller: controller,
		messages:   messages,
		cookieName: opts.CookieName,
		cookieTTL:  opts.CookieTTL,
		maxBytes:   opts.MaxBytes,
		logger:     logger,
	}
}

func (h *PageHandler) Index(c *gin.Context) {
	h.render(c, h.session(c), http.StatusOK, "", false)
}

// Upload saves the form fields, stages a picked file if one was sent and
// uploads the staged file.
func (h *PageHandler) Upload(c *gin.Context) {
	ctx := c.Request.Context()
	sessionID := h.session(c)

	if err := h.controller.SetFields(ctx, sessionID, c.PostForm("service_order"), c.PostForm("workcenter")); err != nil {
		h.fail(c, sessionID, err)
		return
	}

	content, name, err := readFormFile(c, "file", h.maxBytes)
	switch {
	case errors.Is(err, errFileTooLarge):
		h.render(c, sessionID, http.StatusRequestEntityTooLarge, h.messages.Get(app.MsgFileTooLarge), false)
		return
	case err == nil && len(content) > 0:
		if _, err := h.controller.SelectFile(ctx, sessionID, name, content); err != nil {
			h.fail(c, sessionID, err)
			return
		}
	case err != nil && !errors.Is(err, http.ErrMissingFile) && !errors.Is(err, http.ErrNotMultipart):
		h.fail(c, sessionID, err)
		return
	}

	if _, err := h.controller.Upload(ctx, sessionID); err != nil {
		h.fail(c, sessionID, err)
		return
	}
	h.render(c, sessionID, http.StatusOK, h.messages.Describe(nil), true)
}

func (h *PageHandler) Search(c *gin.Context) {
	ctx := c.Request.Context()
	sessionID := h.session(c)
	serviceOrder := c.PostForm("service_order")

	if err := h.controller.SetFields(ctx, sessionID, serviceOrder, c.PostForm("workcenter")); err != nil {
		h.fail(c, sessionID, err)
		return
	}
	if _, err := h.controller.Search(ctx, sessionID, serviceOrder); err != nil {
		h.fail(c, sessionID, err)
		return
	}
	h.render(c, sessionID, http.StatusOK, "", false)
}

// Capture receives the current camera frame as multipart field "frame" and
// stages it as the 300x300 JPEG.
func (h *PageHandler) Capture(c *gin.Context) {
	sessionID := h.session(c)

	content, _, err := readFormFile(c, "frame", h.maxBytes)
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, errFileTooLarge) {
			status = http.StatusRequestEntityTooLarge
		}
		response.Error(c, status, response.CodeBadRequest, h.messages.Get(app.MsgCaptureFailed))
		return
	}

	file, err := h.controller.CaptureFrame(c.Request.Context(), sessionID, bytes.NewReader(content))
	if err != nil {
		status, code := workflowStatus(err)
		response.Error(c, status, code, h.messages.Describe(err))
		return
	}
	response.OK(c, gin.H{
		"name":         file.Name,
		"content_type": file.ContentType,
		"size":         file.Size,
		"preview_url":  "/preview?v=" + uuid.NewString(),
	})
}

// Preview streams the staged file while its preview is shown.
func (h *PageHandler) Preview(c *gin.Context) {
	file, content, err := h.controller.Preview(c.Request.Context(), h.session(c))
	if err != nil {
		h.logger.ErrorContext(c.Request.Context(), "load preview failed", slog.Any("error", err))
		c.Status(http.StatusInternalServerError)
		return
	}
	if file == nil {
		c.Status(http.StatusNotFound)
		return
	}
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, file.ContentType, content)
}

func (h *PageHandler) fail(c *gin.Context, sessionID string, err error) {
	status, _ := workflowStatus(err)
	if status == http.StatusInternalServerError {
		h.logger.ErrorContext(c.Request.Context(), "page action failed", slog.String("path", c.FullPath()), slog.Any("error", err))
	}
	h.render(c, sessionID, status, h.messages.Describe(err), false)
}

func (h *PageHandler) render(c *gin.Context, sessionID string, status int, message string, success bool) {
	data := pageData{
		Locale:   h.messages.Locale(),
		L:        h.messages.Labels(),
		Message:  message,
		Success:  success,
		MaxBytes: h.maxBytes,
	}

	state, err := h.controller.State(c.Request.Context(), sessionID)
	if err != nil {
		h.logger.ErrorContext(c.Request.Context(), "load session failed", slog.Any("error", err))
		state = &app.SessionState{}
		if data.Message == "" {
			data.Message = h.messages.Get(app.MsgUnexpected)
		}
	}
	data.State = state
	data.Previews = app.Previews(state.Results)

	c.HTML(status, pageTemplate, data)
}

// session returns the caller's session id, issuing a new cookie when the
// request has none.
func (h *PageHandler) session(c *gin.Context) string {
	if id, err := c.Cookie(h.cookieName); err == nil {
		if _, err := uuid.Parse(id); err == nil {
			return id
		}
	}
	if id, ok := c.Get(h.cookieName); ok {
		return id.(string)
	}

	id := uuid.NewString()
	c.Set(h.cookieName, id)
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(h.cookieName, id, int(h.cookieTTL.Seconds()), "/", "", c.Request.TLS != nil, true)
	return id
}
