package app

import (
	"github.com/learnsphere/learnsphere-backend/internal/http/middleware"
	"github.com/learnsphere/learnsphere-backend/internal/platform/logger"
	"github.com/learnsphere/learnsphere-backend/internal/tenant"
)

type Middleware struct {
	Auth *middleware.AuthMiddleware
}

func wireMiddleware(log *logger.Logger, registry *tenant.Registry, repos Repos) Middleware {
	return Middleware{
		Auth: middleware.NewAuthMiddleware(log, registry, repos.Users),
	}
}
