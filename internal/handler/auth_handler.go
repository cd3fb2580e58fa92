package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/john0isaac/fastroom/internal/auth"
	"github.com/john0isaac/fastroom/internal/domain"
	"github.com/john0isaac/fastroom/internal/repository"
	"github.com/john0isaac/fastroom/pkg/response"
)

// AuthHandler serves registration and token lifecycle endpoints.
type AuthHandler struct {
	authSvc *auth.Service
}

func NewAuthHandler(authSvc *auth.Service) *AuthHandler {
	return &AuthHandler{authSvc: authSvc}
}

// Register serves POST /auth/register.
func (h *AuthHandler) Register(c *gin.Context) {
	var req domain.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request body")
		return
	}

	user, err := h.authSvc.Register(c.Request.Context(), req)
	switch {
	case errors.Is(err, auth.ErrInvalidUsername):
		response.UnprocessableEntity(c, "username invalid")
	case errors.Is(err, auth.ErrInvalidPassword):
		response.UnprocessableEntity(c, "password too short")
	case errors.Is(err, repository.ErrUsernameTaken):
		response.Conflict(c, "username already exists")
	case err != nil:
		response.InternalError(c, "registration failed")
	default:
		response.Created(c, user.ToResponse())
	}
}

// Token serves POST /auth/token.
func (h *AuthHandler) Token(c *gin.Context) {
	var req domain.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request body")
		return
	}

	pair, err := h.authSvc.Login(c.Request.Context(), req.Username, req.Password)
	switch {
	case errors.Is(err, auth.ErrInvalidCredentials):
		response.Unauthorized(c, "invalid credentials")
	case errors.Is(err, auth.ErrUserDisabled):
		response.Forbidden(c, "user disabled")
	case err != nil:
		response.InternalError(c, "login failed")
	default:
		response.Success(c, pair)
	}
}

// Refresh serves POST /auth/refresh.
func (h *AuthHandler) Refresh(c *gin.Context) {
	var req domain.RefreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request body")
		return
	}

	pair, err := h.authSvc.Refresh(c.Request.Context(), req.RefreshToken)
	switch {
	case errors.Is(err, auth.ErrInvalidCredentials):
		response.Unauthorized(c, "invalid refresh token")
	case errors.Is(err, auth.ErrUserDisabled):
		response.Forbidden(c, "user disabled")
	case err != nil:
		response.InternalError(c, "refresh failed")
	default:
		response.Success(c, pair)
	}
}

// Logout serves POST /auth/logout.
func (h *AuthHandler) Logout(c *gin.Context) {
	var req domain.RefreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request body")
		return
	}

	if err := h.authSvc.Logout(c.Request.Context(), req.RefreshToken); err != nil {
		response.InternalError(c, "logout failed")
		return
	}
	response.NoContent(c)
}

// Me serves GET /users/me.
func (h *AuthHandler) Me(c *gin.Context) {
	user := currentUser(c)
	if user == nil {
		response.Unauthorized(c, "not authenticated")
		return
	}
	response.Success(c, user.ToResponse())
}
