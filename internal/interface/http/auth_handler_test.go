package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/geocontrol/parental-api/config"
	userapp "github.com/geocontrol/parental-api/internal/application"
	"github.com/geocontrol/parental-api/internal/domain/entity"
	"github.com/geocontrol/parental-api/pkg/helpers"
	"github.com/geocontrol/parental-api/pkg/validation"
)

func setupAuthRouter(t *testing.T) (*gin.Engine, *userapp.Service, *miniredis.Miniredis) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	initOnce.Do(validation.Init)

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	repo := &stubRepo{users: map[string]*entity.User{}}
	hasher := helpers.NewHasher(bcrypt.MinCost)
	jwt := helpers.NewJWTManager("test-access", "test-refresh", time.Minute, time.Hour)
	svc := userapp.NewService(repo, hasher, jwt, rdb, nil, nil, "", nil, false, true)

	cfg := &config.Config{
		ResetPasswordURL: "http://localhost/reset-password",
		VerifyEmailURL:   "http://localhost/verify-email",
	}
	h := NewAuthHandler(svc, rdb, nil, cfg, nil)

	r := gin.New()
	r.POST("/api/auth/reset/init", h.ResetInit)
	r.POST("/api/auth/reset/confirm", h.ResetConfirm)
	r.POST("/api/auth/verify/confirm", h.VerifyConfirm)
	// the auth middleware normally sets userID; emulate it for verify init
	r.POST("/api/auth/verify/init", func(c *gin.Context) {
		c.Set("userID", c.GetHeader("X-Test-User"))
		h.VerifyInit(c)
	})
	return r, svc, mr
}

func verifyInit(t *testing.T, r *gin.Engine, userID string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/auth/verify/init", nil)
	req.Header.Set("X-Test-User", userID)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func storedToken(t *testing.T, mr *miniredis.Miniredis, prefix string) string {
	t.Helper()
	for _, k := range mr.Keys() {
		if strings.HasPrefix(k, prefix) {
			return strings.TrimPrefix(k, prefix)
		}
	}
	return ""
}

func TestResetFlow(t *testing.T) {
	r, svc, mr := setupAuthRouter(t)

	p, err := svc.Create(context.Background(), userapp.CreateUserInput{Email: "reset@example.com", Password: "secret4you"})
	require.NoError(t, err)

	w := doJSON(t, r, http.MethodPost, "/api/auth/reset/init", gin.H{"email": "reset@example.com"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.NotContains(t, w.Body.String(), "token=", "reset token must only travel by email")

	tok := storedToken(t, mr, "pwd:reset:token:")
	require.NotEmpty(t, tok)
	got, err := mr.Get("pwd:reset:token:" + tok)
	require.NoError(t, err)
	assert.Equal(t, p.ID, got)

	w = doJSON(t, r, http.MethodPost, "/api/auth/reset/confirm", gin.H{
		"token":        tok,
		"new_password": "brand0new1",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	// token is single-use and the new password is live
	assert.Empty(t, storedToken(t, mr, "pwd:reset:token:"))
	_, err = svc.Authenticate(context.Background(), "reset@example.com", "secret4you")
	assert.ErrorIs(t, err, userapp.ErrInvalidCredentials)
	_, err = svc.Authenticate(context.Background(), "reset@example.com", "brand0new1")
	assert.NoError(t, err)
}

func TestResetInitUnknownEmail(t *testing.T) {
	r, svc, mr := setupAuthRouter(t)

	_, err := svc.Create(context.Background(), userapp.CreateUserInput{Email: "known@example.com", Password: "secret4you"})
	require.NoError(t, err)

	known := doJSON(t, r, http.MethodPost, "/api/auth/reset/init", gin.H{"email": "known@example.com"})
	unknown := doJSON(t, r, http.MethodPost, "/api/auth/reset/init", gin.H{"email": "ghost@example.com"})

	// same outcome either way, so the endpoint cannot be used for enumeration
	assert.Equal(t, known.Code, unknown.Code)
	assert.Equal(t, known.Body.String()[strings.Index(known.Body.String(), `"success"`):],
		unknown.Body.String()[strings.Index(unknown.Body.String(), `"success"`):])

	// but only the real account got a token
	assert.NotEmpty(t, storedToken(t, mr, "pwd:reset:token:"))
	mr.FlushAll()
	doJSON(t, r, http.MethodPost, "/api/auth/reset/init", gin.H{"email": "ghost@example.com"})
	assert.Empty(t, storedToken(t, mr, "pwd:reset:token:"))
}

func TestResetConfirmRejectsBadInput(t *testing.T) {
	r, _, _ := setupAuthRouter(t)

	w := doJSON(t, r, http.MethodPost, "/api/auth/reset/confirm", gin.H{
		"token":        "never-issued",
		"new_password": "brand0new1",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, r, http.MethodPost, "/api/auth/reset/confirm", gin.H{
		"token":        "whatever",
		"new_password": "short",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestVerifyFlow(t *testing.T) {
	r, svc, mr := setupAuthRouter(t)

	p, err := svc.Create(context.Background(), userapp.CreateUserInput{Email: "verify@example.com", Password: "secret4you"})
	require.NoError(t, err)

	w2 := verifyInit(t, r, p.ID)
	require.Equal(t, http.StatusOK, w2.Code, w2.Body.String())
	assert.Contains(t, w2.Body.String(), "verify_link")

	tok := storedToken(t, mr, "email:verify:token:")
	require.NotEmpty(t, tok)

	w3 := doJSON(t, r, http.MethodPost, "/api/auth/verify/confirm", gin.H{"token": tok})
	require.Equal(t, http.StatusOK, w3.Code, w3.Body.String())

	flag, err := mr.Get("user:verified:" + p.ID)
	require.NoError(t, err)
	assert.Equal(t, "1", flag)

	// a second init short-circuits instead of minting a new token
	w4 := verifyInit(t, r, p.ID)
	require.Equal(t, http.StatusOK, w4.Code)
	assert.Contains(t, w4.Body.String(), "already_verified")
}

func TestVerifyConfirmExpiredToken(t *testing.T) {
	r, svc, mr := setupAuthRouter(t)

	p, err := svc.Create(context.Background(), userapp.CreateUserInput{Email: "exp@example.com", Password: "secret4you"})
	require.NoError(t, err)

	w := verifyInit(t, r, p.ID)
	require.Equal(t, http.StatusOK, w.Code)
	tok := storedToken(t, mr, "email:verify:token:")
	require.NotEmpty(t, tok)

	mr.FastForward(25 * time.Hour)

	w = doJSON(t, r, http.MethodPost, "/api/auth/verify/confirm", gin.H{"token": tok})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
