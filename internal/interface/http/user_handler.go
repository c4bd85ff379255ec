package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	userapp "github.com/geocontrol/parental-api/internal/application"
	"github.com/geocontrol/parental-api/internal/domain"
	"github.com/geocontrol/parental-api/pkg/helpers"
	"github.com/geocontrol/parental-api/pkg/response"
	"github.com/geocontrol/parental-api/pkg/validation"
)

type UserHandler struct {
	Svc     *userapp.Service
	Logger  *logrus.Logger
	Cookies *helpers.Manager
}

func NewUserHandler(svc *userapp.Service, logger *logrus.Logger, cookieDomain string, cookieSecure bool) *UserHandler {
	return &UserHandler{Svc: svc, Logger: logger, Cookies: helpers.NewCookie(cookieDomain, cookieSecure)}
}

// serviceError maps domain errors onto HTTP outcomes: validation 400,
// conflict 409, not found 404, transient storage 503, hashing 500.
func serviceError(c *gin.Context, err error) {
	var ve *domain.ValidationError
	var ce *domain.ConflictError
	var se *domain.StorageError
	switch {
	case errors.As(err, &ve):
		response.Error[any](c, http.StatusBadRequest, "invalid input", map[string]string{ve.Field: ve.Reason})
	case errors.As(err, &ce):
		response.Error[any](c, http.StatusConflict, ce.Error(), map[string]string{"field": ce.Field})
	case errors.Is(err, domain.ErrUserNotFound):
		response.Error[any](c, http.StatusNotFound, "user not found", nil)
	case errors.As(err, &se):
		response.Error[any](c, http.StatusServiceUnavailable, "storage unavailable", nil)
	case errors.Is(err, domain.ErrHashUnavailable):
		response.Error[any](c, http.StatusInternalServerError, "internal error", nil)
	default:
		response.Error[any](c, http.StatusInternalServerError, "internal error", nil)
	}
}

type createUserRequest struct {
	Username string `json:"username" binding:"omitempty,uname"`
	Email    string `json:"email" binding:"required,email"`
	FullName string `json:"full_name" binding:"omitempty,max=100"`
	Password string `json:"password" binding:"required,pwd"`
}

type updateUserRequest struct {
	Username *string `json:"username" binding:"omitempty,uname"`
	Email    *string `json:"email" binding:"omitempty,email"`
	FullName *string `json:"full_name" binding:"omitempty,max=100"`
	Password *string `json:"password" binding:"omitempty,pwd"`
	IsActive *bool   `json:"is_active"`
}

// Create POST /api/users
func (h *UserHandler) Create(c *gin.Context) {
	var req createUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error[any](c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
		return
	}
	p, err := h.Svc.Create(c.Request.Context(), userapp.CreateUserInput{
		Username: req.Username,
		Email:    req.Email,
		FullName: req.FullName,
		Password: req.Password,
	})
	if err != nil {
		serviceError(c, err)
		return
	}
	response.Success(c, http.StatusCreated, p, "user created", nil)
}

// List GET /api/users?skip=0&limit=100
func (h *UserHandler) List(c *gin.Context) {
	skip, _ := strconv.Atoi(c.DefaultQuery("skip", "0"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	users, err := h.Svc.List(c.Request.Context(), skip, limit)
	if err != nil {
		serviceError(c, err)
		return
	}
	response.Success(c, http.StatusOK, users, "users", map[string]any{"skip": skip, "limit": limit, "count": len(users)})
}

// GetByID GET /api/users/:id
func (h *UserHandler) GetByID(c *gin.Context) {
	p, err := h.Svc.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		serviceError(c, err)
		return
	}
	response.Success(c, http.StatusOK, p, "user", nil)
}

// GetByUsername GET /api/users/username/:username
func (h *UserHandler) GetByUsername(c *gin.Context) {
	p, err := h.Svc.GetByUsername(c.Request.Context(), c.Param("username"))
	if err != nil {
		serviceError(c, err)
		return
	}
	response.Success(c, http.StatusOK, p, "user", nil)
}

// Update PUT /api/users/:id
func (h *UserHandler) Update(c *gin.Context) {
	var req updateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error[any](c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
		return
	}
	p, err := h.Svc.Update(c.Request.Context(), c.Param("id"), userapp.UpdateUserInput{
		Username: req.Username,
		Email:    req.Email,
		FullName: req.FullName,
		Password: req.Password,
		IsActive: req.IsActive,
	})
	if err != nil {
		serviceError(c, err)
		return
	}
	response.Success(c, http.StatusOK, p, "user updated", nil)
}

// Delete DELETE /api/users/:id
func (h *UserHandler) Delete(c *gin.Context) {
	res, err := h.Svc.Delete(c.Request.Context(), c.Param("id"))
	if err != nil {
		serviceError(c, err)
		return
	}
	response.Success(c, http.StatusOK, res, "user deleted", nil)
}

// Activate PATCH /api/users/:id/activate
func (h *UserHandler) Activate(c *gin.Context) {
	p, err := h.Svc.Activate(c.Request.Context(), c.Param("id"))
	if err != nil {
		serviceError(c, err)
		return
	}
	response.Success(c, http.StatusOK, p, "user activated", nil)
}

// Deactivate PATCH /api/users/:id/deactivate
func (h *UserHandler) Deactivate(c *gin.Context) {
	p, err := h.Svc.Deactivate(c.Request.Context(), c.Param("id"))
	if err != nil {
		serviceError(c, err)
		return
	}
	response.Success(c, http.StatusOK, p, "user deactivated", nil)
}

// Search GET /api/users/search?q=...&size=10
func (h *UserHandler) Search(c *gin.Context) {
	q := c.Query("q")
	size, _ := strconv.Atoi(c.DefaultQuery("size", "10"))
	hits, err := h.Svc.SearchUsers(c.Request.Context(), q, size)
	if err != nil {
		serviceError(c, err)
		return
	}
	response.Success(c, http.StatusOK, hits, "search results", map[string]any{"count": len(hits)})
}

type loginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// Login POST /api/login
func (h *UserHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error[any](c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
		return
	}
	res, pair, err := h.Svc.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, userapp.ErrUserInactive) {
			response.Error[any](c, http.StatusForbidden, "account is deactivated", nil)
			return
		}
		response.Error[any](c, http.StatusUnauthorized, "invalid credentials", nil)
		return
	}
	h.Cookies.SetPair(c, pair.AccessToken, pair.AccessTokenExpiry, pair.RefreshToken, pair.RefreshTokenExpiry)
	response.Success(c, http.StatusOK, res, "login successful", map[string]any{"access_expires_at": pair.AccessTokenExpiry, "refresh_expires_at": pair.RefreshTokenExpiry})
}

// Refresh POST /api/refresh
func (h *UserHandler) Refresh(c *gin.Context) {
	refresh, err := c.Cookie("refresh_token")
	if err != nil || refresh == "" {
		response.Error[any](c, http.StatusUnauthorized, "missing refresh token", nil)
		return
	}
	pair, _, err := h.Svc.Refresh(c.Request.Context(), refresh)
	if err != nil {
		response.Error[any](c, http.StatusUnauthorized, "invalid refresh token", nil)
		return
	}
	h.Cookies.SetPair(c, pair.AccessToken, pair.AccessTokenExpiry, pair.RefreshToken, pair.RefreshTokenExpiry)
	response.Success[any](c, http.StatusOK, map[string]any{"refreshed": true}, "token refreshed", map[string]any{"access_expires_at": pair.AccessTokenExpiry, "refresh_expires_at": pair.RefreshTokenExpiry})
}

// Logout POST /api/logout
func (h *UserHandler) Logout(c *gin.Context) {
	h.Svc.Logout(c.Request.Context(), c.GetString("userID"))
	h.Cookies.Clear(c)
	response.Success[any](c, http.StatusOK, map[string]any{"logged_out": true}, "logged out", nil)
}

// GetProfile GET /api/profile
func (h *UserHandler) GetProfile(c *gin.Context) {
	uid := c.GetString("userID")
	p, err := h.Svc.GetByID(c.Request.Context(), uid)
	if err != nil {
		serviceError(c, err)
		return
	}
	response.Success(c, http.StatusOK, p, "profile", nil)
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password" binding:"required"`
	NewPassword     string `json:"new_password" binding:"required,pwd"`
}

// ChangePassword PUT /api/profile/password
func (h *UserHandler) ChangePassword(c *gin.Context) {
	uid := c.GetString("userID")
	var req changePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error[any](c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
		return
	}
	if err := h.Svc.ChangePassword(c.Request.Context(), uid, req.CurrentPassword, req.NewPassword); err != nil {
		if errors.Is(err, userapp.ErrInvalidCredentials) {
			response.Error[any](c, http.StatusUnauthorized, "current password is incorrect", nil)
			return
		}
		serviceError(c, err)
		return
	}
	response.Success[any](c, http.StatusOK, map[string]any{"changed": true}, "password updated", nil)
}
