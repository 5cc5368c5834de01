package handler

import (
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"service-order-attachments/internal/app"
	"service-order-attachments/internal/transport/http/middleware"
	"service-order-attachments/internal/transport/http/response"
)

// AttachmentHandler is the JSON surface of the workflow. It does not use the
// browser session: each request carries everything it needs.
type AttachmentHandler struct {
	service  *app.AttachmentService
	messages *app.Messages
	maxBytes int64
	// operators, when set, supplies the signed-in operator's workcenter for
	// uploads that leave the field empty.
	operators *app.AuthService
}

type attachmentView struct {
	ID           uint      `json:"id,omitempty"`
	ServiceOrder string    `json:"service_order"`
	Tanggal      time.Time `json:"tanggal"`
	Workcenter   string    `json:"workcenter"`
	GambarURL    string    `json:"gambar_url"`
	Key          string    `json:"key"`
	Kind         string    `json:"kind"`
}

func NewAttachmentHandler(service *app.AttachmentService, messages *app.Messages, maxBytes int64) *AttachmentHandler {
	return &AttachmentHandler{service: service, messages: messages, maxBytes: maxBytes}
}

// WithOperatorDefaults makes Upload fall back to the operator's workcenter.
// The route must sit behind middleware.AuthJWT.
func (h *AttachmentHandler) WithOperatorDefaults(operators *app.AuthService) *AttachmentHandler {
	h.operators = operators
	return h
}

// Upload takes multipart fields service_order, workcenter and file.
func (h *AttachmentHandler) Upload(c *gin.Context) {
	input := app.UploadInput{
		ServiceOrder: c.PostForm("service_order"),
		Workcenter:   c.PostForm("workcenter"),
	}
	if strings.TrimSpace(input.Workcenter) == "" && h.operators != nil {
		input.Workcenter = h.operatorWorkcenter(c)
	}

	content, name, err := readFormFile(c, "file", h.maxBytes)
	switch {
	case errors.Is(err, errFileTooLarge):
		response.Error(c, http.StatusRequestEntityTooLarge, response.CodeTooLarge, h.messages.Get(app.MsgFileTooLarge))
		return
	case err != nil && !errors.Is(err, http.ErrMissingFile):
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid multipart payload")
		return
	}
	input.FileName = name
	input.Content = content

	result, err := h.service.Upload(c.Request.Context(), input)
	if err != nil {
		status, code := workflowStatus(err)
		response.Error(c, status, code, h.messages.Describe(err))
		return
	}

	a := result.Attachment
	response.Created(c, h.messages.Get(app.MsgUploadSucceeded), attachmentView{
		ID:           a.ID,
		ServiceOrder: a.ServiceOrder,
		Tanggal:      a.CreatedAt,
		Workcenter:   a.Workcenter,
		GambarURL:    a.Location,
		Key:          result.Key,
		Kind:         string(result.Kind),
	})
}

// operatorWorkcenter returns "" when the operator cannot be resolved, which
// leaves the upload to fail its own field validation.
func (h *AttachmentHandler) operatorWorkcenter(c *gin.Context) string {
	operatorID, ok := c.Get(middleware.ContextOperatorIDKey)
	if !ok {
		return ""
	}
	id, ok := operatorID.(uint)
	if !ok {
		return ""
	}
	operator, err := h.operators.GetOperatorByID(c.Request.Context(), id)
	if err != nil || operator == nil {
		return ""
	}
	return operator.Workcenter
}

func (h *AttachmentHandler) Search(c *gin.Context) {
	locations, err := h.service.Search(c.Request.Context(), c.Param("service_order"))
	if err != nil {
		status, code := workflowStatus(err)
		response.Error(c, status, code, h.messages.Describe(err))
		return
	}
	response.OK(c, app.Previews(locations))
}

var errFileTooLarge = errors.New("file too large")

// readFormFile returns http.ErrMissingFile when the field is absent.
func readFormFile(c *gin.Context, field string, maxBytes int64) ([]byte, string, error) {
	header, err := c.FormFile(field)
	if err != nil {
		return nil, "", err
	}
	if maxBytes > 0 && header.Size > maxBytes {
		return nil, "", errFileTooLarge
	}

	f, err := header.Open()
	if err != nil {
		return nil, "", err
	}
	defer f.Close()

	r := io.Reader(f)
	if maxBytes > 0 {
		r = io.LimitReader(f, maxBytes+1)
	}
	content, err := io.ReadAll(r)
	if err != nil {
		return nil, "", err
	}
	if maxBytes > 0 && int64(len(content)) > maxBytes {
		return nil, "", errFileTooLarge
	}
	return content, header.Filename, nil
}
