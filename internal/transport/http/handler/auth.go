package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"service-order-attachments/internal/app"
	"service-order-attachments/internal/model"
	"service-order-attachments/internal/transport/http/middleware"
	"service-order-attachments/internal/transport/http/response"
)

type AuthHandler struct {
	authService *app.AuthService
}

type RegisterRequest struct {
	Username   string `json:"username" binding:"required,min=3,max=64"`
	Password   string `json:"password" binding:"required,min=8,max=128"`
	Workcenter string `json:"workcenter" binding:"max=64"`
}

type LoginRequest struct {
	Username string `json:"username" binding:"required,min=3,max=64"`
	Password string `json:"password" binding:"required,min=8,max=128"`
}

func NewAuthHandler(authService *app.AuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

func (h *AuthHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}

	result, err := h.authService.Register(c.Request.Context(), app.RegisterInput{
		Username:   req.Username,
		Password:   req.Password,
		Workcenter: req.Workcenter,
	})
	if err != nil {
		switch {
		case errors.Is(err, app.ErrInvalidInput):
			response.Error(c, http.StatusBadRequest, response.CodeBadRequest, err.Error())
		case errors.Is(err, app.ErrUsernameExists):
			response.Error(c, http.StatusBadRequest, response.CodeUsernameExists, err.Error())
		default:
			response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "register failed")
		}
		return
	}

	response.OK(c, gin.H{
		"token":    result.Token,
		"operator": operatorView(result.Operator),
	})
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}

	result, err := h.authService.Login(c.Request.Context(), app.LoginInput{
		Username: req.Username,
		Password: req.Password,
	})
	if err != nil {
		switch {
		case errors.Is(err, app.ErrInvalidInput):
			response.Error(c, http.StatusBadRequest, response.CodeBadRequest, err.Error())
		case errors.Is(err, app.ErrInvalidCredential):
			response.Error(c, http.StatusUnauthorized, response.CodeInvalidCredentials, err.Error())
		default:
			response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "login failed")
		}
		return
	}

	response.OK(c, gin.H{
		"token":    result.Token,
		"operator": operatorView(result.Operator),
	})
}

// Me returns the operator behind the token.
func (h *AuthHandler) Me(c *gin.Context) {
	idAny, exists := c.Get(middleware.ContextOperatorIDKey)
	if !exists {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "operator not found in token")
		return
	}

	operatorID, ok := idAny.(uint)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}

	operator, err := h.authService.GetOperatorByID(c.Request.Context(), operatorID)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "fetch current operator failed")
		return
	}
	if operator == nil {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "operator not found")
		return
	}

	response.OK(c, operatorView(operator))
}

func operatorView(op *model.Operator) gin.H {
	return gin.H{
		"id":         op.ID,
		"username":   op.Username,
		"workcenter": op.Workcenter,
	}
}
