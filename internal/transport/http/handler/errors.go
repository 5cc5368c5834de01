package handler

import (
	"errors"
	"net/http"

	"service-order-attachments/internal/app"
	"service-order-attachments/internal/transport/http/response"
)

// workflowStatus maps a workflow outcome to an HTTP status and envelope code.
func workflowStatus(err error) (int, int) {
	switch {
	case errors.Is(err, app.ErrNoAttachments):
		return http.StatusNotFound, response.CodeNoAttachments
	case errors.Is(err, app.ErrUploadInProgress):
		return http.StatusConflict, response.CodeUploadInProgress
	}

	var wfErr *app.WorkflowError
	if errors.As(err, &wfErr) {
		switch wfErr.Kind {
		case app.FailureValidation:
			if wfErr.Key == app.MsgFileTooLarge {
				return http.StatusRequestEntityTooLarge, response.CodeTooLarge
			}
			return http.StatusBadRequest, response.CodeBadRequest
		case app.FailureUpload:
			return http.StatusBadGateway, response.CodeUploadFailed
		case app.FailureInsert:
			return http.StatusBadGateway, response.CodeInsertFailed
		case app.FailureQuery:
			return http.StatusBadGateway, response.CodeQueryFailed
		}
	}
	return http.StatusInternalServerError, response.CodeInternalServer
}
