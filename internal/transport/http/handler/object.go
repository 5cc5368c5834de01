package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"service-order-attachments/internal/blobstore"
)

// ObjectHandler serves public objects for backends that keep bytes in this
// process's reach, so derived public URLs resolve without a managed store.
type ObjectHandler struct {
	reader blobstore.Reader
	bucket string
	logger *slog.Logger
}

func NewObjectHandler(reader blobstore.Reader, bucket string, logger *slog.Logger) *ObjectHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ObjectHandler{reader: reader, bucket: bucket, logger: logger}
}

// Get serves GET /storage/v1/object/public/:bucket/*key.
func (h *ObjectHandler) Get(c *gin.Context) {
	if c.Param("bucket") != h.bucket {
		c.Status(http.StatusNotFound)
		return
	}
	key, err := blobstore.CleanKey(c.Param("key"))
	if err != nil {
		c.Status(http.StatusNotFound)
		return
	}

	rc, info, err := h.reader.Open(c.Request.Context(), key)
	if err != nil {
		if errors.Is(err, blobstore.ErrNotFound) {
			c.Status(http.StatusNotFound)
			return
		}
		h.logger.ErrorContext(c.Request.Context(), "open object failed", slog.String("key", key), slog.Any("error", err))
		c.Status(http.StatusInternalServerError)
		return
	}
	defer rc.Close()

	c.DataFromReader(http.StatusOK, info.Size, info.ContentType, rc, map[string]string{
		"Cache-Control":          "public, max-age=3600",
		"X-Content-Type-Options": "nosniff",
	})
}
