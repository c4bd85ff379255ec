package handlers

import (
	"crypto/rand"
	"encoding/base64"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/geocontrol/parental-api/config"
	userapp "github.com/geocontrol/parental-api/internal/application"
	"github.com/geocontrol/parental-api/pkg/helpers"
	"github.com/geocontrol/parental-api/pkg/mailer"
	tpl "github.com/geocontrol/parental-api/pkg/mailer/templates"
	"github.com/geocontrol/parental-api/pkg/response"
	"github.com/geocontrol/parental-api/pkg/validation"
)

// AuthHandler carries the token-based flows delegated to the identity layer:
// email verification and password reset. Tokens are volatile and live in
// Redis only.
type AuthHandler struct {
	Svc    *userapp.Service
	RDB    *redis.Client
	Logger *logrus.Logger
	Cfg    *config.Config
	Pub    *helpers.RabbitPublisher
}

func NewAuthHandler(svc *userapp.Service, rdb *redis.Client, logger *logrus.Logger, cfg *config.Config, pub *helpers.RabbitPublisher) *AuthHandler {
	return &AuthHandler{Svc: svc, RDB: rdb, Logger: logger, Cfg: cfg, Pub: pub}
}

func clientIP(c *gin.Context) string {
	if ip := c.GetString("real_ip"); ip != "" {
		return ip
	}
	return c.ClientIP()
}

func genToken(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// VerifyInit POST /api/auth/verify/init (auth required)
// Returns a verification link that embeds the token in the front-end URL.
func (h *AuthHandler) VerifyInit(c *gin.Context) {
	uid := c.GetString("userID")
	if uid == "" {
		response.Error[any](c, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	if h.RDB == nil {
		response.Error[any](c, http.StatusInternalServerError, "verification unavailable", nil)
		return
	}
	// Idempotent: already verified accounts get an OK, not a new token.
	if v, _ := h.RDB.Get(c, helpers.KeyVerified(uid)).Result(); v == "1" {
		response.Success(c, http.StatusOK, gin.H{"already_verified": true}, "already verified", nil)
		return
	}
	tok, err := genToken(32)
	if err != nil {
		response.Error[any](c, http.StatusInternalServerError, "token generation failed", nil)
		return
	}
	h.RDB.Set(c, helpers.KeyVerifyToken(tok), uid, 24*time.Hour)
	link := h.Cfg.VerifyEmailURL + "?token=" + tok

	if h.Pub != nil && h.Cfg.MailSendEnabled {
		if u, err := h.Svc.GetByID(c.Request.Context(), uid); err == nil {
			job := mailer.EmailJob{To: u.Email, Template: tpl.VerifyEmail, Data: map[string]any{
				"Name":      u.Email,
				"Link":      link,
				"ExpiresIn": "24 hours",
			}}
			_ = h.Pub.PublishJSON(c, job)
		}
	}
	if h.Logger != nil {
		h.Logger.WithFields(logrus.Fields{"user_id": uid, "ip": clientIP(c)}).Info("verification link issued")
	}
	response.Success(c, http.StatusOK, gin.H{"verify_link": link}, "verification link", nil)
}

// VerifyConfirm POST /api/auth/verify/confirm {token}
func (h *AuthHandler) VerifyConfirm(c *gin.Context) {
	var req struct {
		Token string `json:"token" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error[any](c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
		return
	}
	if h.RDB == nil {
		response.Error[any](c, http.StatusInternalServerError, "verification unavailable", nil)
		return
	}
	uid, err := h.RDB.Get(c, helpers.KeyVerifyToken(req.Token)).Result()
	if err != nil || uid == "" {
		response.Error[any](c, http.StatusBadRequest, "invalid or expired token", nil)
		return
	}
	h.RDB.Set(c, helpers.KeyVerified(uid), "1", 0)
	h.RDB.Del(c, helpers.KeyVerifyToken(req.Token))
	response.Success[any](c, http.StatusOK, gin.H{"verified": true}, "email verified", nil)
}

// ResetInit POST /api/auth/reset/init {email}
// Always answers OK to avoid account enumeration.
func (h *AuthHandler) ResetInit(c *gin.Context) {
	var req struct {
		Email string `json:"email" binding:"required,email"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error[any](c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
		return
	}
	u, err := h.Svc.Repo.GetByEmail(c.Request.Context(), req.Email)
	if err == nil && u != nil && h.RDB != nil {
		tok, terr := genToken(32)
		if terr == nil {
			h.RDB.Set(c, helpers.KeyResetToken(tok), u.ID, 30*time.Minute)
			link := h.Cfg.ResetPasswordURL + "?token=" + tok
			if h.Pub != nil && h.Cfg.MailSendEnabled {
				job := mailer.EmailJob{To: u.Email, Template: tpl.ForgotPassword, Data: map[string]any{
					"Name":      u.Identity(),
					"Link":      link,
					"ExpiresIn": "30 minutes",
				}}
				_ = h.Pub.PublishJSON(c, job)
			}
		}
	} else if h.Logger != nil {
		h.Logger.WithFields(logrus.Fields{"email": req.Email, "ip": clientIP(c)}).Info("reset requested for unknown email")
	}
	// Same answer whether or not the account exists.
	response.Success[any](c, http.StatusOK, gin.H{"submitted": true}, "if the account exists, a reset email was sent", nil)
}

// ResetConfirm POST /api/auth/reset/confirm {token, new_password}
func (h *AuthHandler) ResetConfirm(c *gin.Context) {
	var req struct {
		Token       string `json:"token" binding:"required"`
		NewPassword string `json:"new_password" binding:"required,pwd"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error[any](c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
		return
	}
	if h.RDB == nil {
		response.Error[any](c, http.StatusInternalServerError, "reset unavailable", nil)
		return
	}
	uid, err := h.RDB.Get(c, helpers.KeyResetToken(req.Token)).Result()
	if err != nil || uid == "" {
		response.Error[any](c, http.StatusBadRequest, "invalid or expired token", nil)
		return
	}
	if err := h.Svc.ResetPassword(c.Request.Context(), uid, req.NewPassword); err != nil {
		serviceError(c, err)
		return
	}
	h.RDB.Del(c, helpers.KeyResetToken(req.Token))
	response.Success[any](c, http.StatusOK, gin.H{"reset": true}, "password updated", nil)
}
