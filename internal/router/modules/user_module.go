package modules

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/geocontrol/parental-api/internal/container"
	handlers "github.com/geocontrol/parental-api/internal/interface/http"
	"github.com/geocontrol/parental-api/internal/interface/middleware"
	"github.com/geocontrol/parental-api/pkg/helpers"
)

// UserModule wires the account lifecycle and session routes.
//
// Public:    POST /api/users, POST /api/login, POST /api/refresh
// Protected: the remaining lifecycle operations plus profile and search.
type UserModule struct {
	Handler *handlers.UserHandler
	JWT     *helpers.JWTManager
}

func NewUserModule(h *handlers.UserHandler, jwt *helpers.JWTManager) *UserModule {
	return &UserModule{Handler: h, JWT: jwt}
}

func (m *UserModule) Register(rg *gin.RouterGroup) {
	// Public with rate limiting
	registerLimiter := middleware.RateLimit(container.GetRedis(), 10, time.Minute, middleware.KeyByIP(), nil)  // 10 req/min per IP
	loginLimiter := middleware.RateLimit(container.GetRedis(), 10, time.Minute, middleware.KeyByIP(), nil)     // 10 req/min per IP
	refreshLimiter := middleware.RateLimit(container.GetRedis(), 60, time.Minute, middleware.KeyByIP(), nil)   // 60 req/min per IP

	rg.POST("/users", registerLimiter, m.Handler.Create)
	rg.POST("/login", loginLimiter, m.Handler.Login)
	rg.POST("/refresh", refreshLimiter, m.Handler.Refresh)

	// Protected
	auth := rg.Group("/")
	auth.Use(middleware.Auth(container.GetRedis(), m.JWT))
	auth.Use(
		middleware.RateLimit(container.GetRedis(), 300, time.Minute, middleware.KeyByIP(), nil),
		middleware.RateLimit(container.GetRedis(), 120, time.Minute, middleware.KeyByUserID(), nil),
	)
	{
		auth.GET("/users", m.Handler.List)
		auth.GET("/users/search", m.Handler.Search)
		auth.GET("/users/username/:username", m.Handler.GetByUsername)
		auth.GET("/users/:id", m.Handler.GetByID)
		auth.PUT("/users/:id", m.Handler.Update)
		auth.DELETE("/users/:id", m.Handler.Delete)
		auth.PATCH("/users/:id/activate", m.Handler.Activate)
		auth.PATCH("/users/:id/deactivate", m.Handler.Deactivate)

		auth.POST("/logout", m.Handler.Logout)
		auth.GET("/profile", m.Handler.GetProfile)
		auth.PUT("/profile/password", m.Handler.ChangePassword)
	}
}
