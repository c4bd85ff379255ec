package router

import (
	appuser "github.com/geocontrol/parental-api/internal/application"
	"github.com/geocontrol/parental-api/internal/container"
	repouser "github.com/geocontrol/parental-api/internal/domain/repository"
	pginfra "github.com/geocontrol/parental-api/internal/infrastructure/postgres"
	handlers "github.com/geocontrol/parental-api/internal/interface/http"
	"github.com/geocontrol/parental-api/internal/router/modules"
)

type UserModuleDeps struct {
	Repo    repouser.UserRepository
	Service *appuser.Service
	Handler *handlers.UserHandler
}

func buildUserDeps() UserModuleDeps {
	cfg := container.GetConfig()

	repo := pginfra.NewUserRepository(container.GetPGPool())

	service := appuser.NewService(
		repo,
		container.GetHasher(),
		container.GetJWT(),
		container.GetRedis(),
		container.GetLogger(),
		container.GetES(),
		cfg.ESUsersIndex,
		container.GetRabbitPub(),
		cfg.MailSendEnabled,
		cfg.UsernameEnabled,
	)

	handler := handlers.NewUserHandler(
		service,
		container.GetLogger(),
		cfg.CookieDomain,
		cfg.CookieSecure,
	)

	return UserModuleDeps{
		Repo:    repo,
		Service: service,
		Handler: handler,
	}
}

// InitModules initializes all application modules and registers them with the router registry
// This function should be called once during application startup to wire up all modules
func InitModules(r *Registry) {
	cfg := container.GetConfig()

	userDeps := buildUserDeps()
	r.Add(modules.NewUserModule(userDeps.Handler, container.GetJWT()))

	authHandler := handlers.NewAuthHandler(
		userDeps.Service,
		container.GetRedis(),
		container.GetLogger(),
		cfg,
		container.GetRabbitPub(),
	)
	r.Add(modules.NewAuthModule(authHandler, container.GetJWT()))

	emailHandler := handlers.NewEmailHandler(container.GetRabbitPub(), container.GetLogger(), cfg)
	r.Add(modules.NewEmailModule(emailHandler, container.GetJWT()))

	if cfg.DebugMetricsEnabled {
		r.Add(modules.NewDebugModule())
	}
}
