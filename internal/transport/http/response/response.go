package response

import "github.com/gin-gonic/gin"

const (
	CodeOK                 = 0
	CodeBadRequest         = 40000
	CodeUsernameExists     = 40001
	CodeUnauthorized       = 40100
	CodeInvalidCredentials = 40101
	CodeNotFound           = 40400
	CodeNoAttachments      = 40401
	CodeUploadInProgress   = 40900
	CodeTooLarge           = 41300
	CodeInternalServer     = 50000
	CodeUploadFailed       = 50201
	CodeInsertFailed       = 50202
	CodeQueryFailed        = 50203
)

type APIResponse struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func OK(c *gin.Context, data interface{}) {
	c.JSON(200, APIResponse{
		Code:    CodeOK,
		Message: "ok",
		Data:    data,
	})
}

// Created is OK with a 201 status and a custom message.
func Created(c *gin.Context, message string, data interface{}) {
	c.JSON(201, APIResponse{
		Code:    CodeOK,
		Message: message,
		Data:    data,
	})
}

func Error(c *gin.Context, httpStatus, code int, message string) {
	c.JSON(httpStatus, APIResponse{
		Code:    code,
		Message: message,
	})
}
