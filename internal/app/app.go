// Package app assembles the engine: tenant registry, repos, clients,
// services, HTTP surface, and the background job worker.
package app

import (
	"context"
	"fmt"
	"os"

	"github.com/gin-gonic/gin"

	"github.com/learnsphere/learnsphere-backend/internal/observability"
	"github.com/learnsphere/learnsphere-backend/internal/platform/logger"
	"github.com/learnsphere/learnsphere-backend/internal/tenant"
)

type App struct {
	Log      *logger.Logger
	Cfg      Config
	Registry *tenant.Registry
	Router   *gin.Engine
	Repos    Repos
	Services Services

	cancel       context.CancelFunc
	shutdownOTel func(context.Context) error
}

func New(ctx context.Context) (*App, error) {
	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	cfg := LoadConfig(log)
	shutdownOTel := observability.InitTracing(ctx, log, cfg.ServiceName)

	registry, err := tenant.NewRegistryFromEnv(log)
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("init tenant registry: %w", err)
	}
	if err := registry.AutoMigrateAll(); err != nil {
		log.Sync()
		return nil, fmt.Errorf("tenant automigrate: %w", err)
	}

	reposet := wireRepos(log)
	clientset, err := wireClients(ctx, log)
	if err != nil {
		log.Sync()
		return nil, err
	}
	serviceset := wireServices(log, registry, reposet, clientset)
	handlerset := wireHandlers(log, reposet, serviceset, clientset)
	middlewareset := wireMiddleware(log, registry, reposet)
	router := wireRouter(log, handlerset, middlewareset)

	return &App{
		Log:          log,
		Cfg:          cfg,
		Registry:     registry,
		Router:       router,
		Repos:        reposet,
		Services:     serviceset,
		shutdownOTel: shutdownOTel,
	}, nil
}

// Start launches the background job worker and the recurring-job scheduler.
func (a *App) Start() {
	if a == nil || a.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel

	if a.Cfg.RunWorker && a.Services.Worker != nil {
		go func() {
			if err := a.Services.Worker.Run(ctx); err != nil && ctx.Err() == nil {
				a.Log.Error("job worker exited", "error", err)
			}
		}()
	}
	if a.Cfg.RunWorker && a.Services.Scheduler != nil {
		go func() {
			if err := a.Services.Scheduler.Run(ctx); err != nil && ctx.Err() == nil {
				a.Log.Error("job scheduler exited", "error", err)
			}
		}()
	}
}

func (a *App) Run() error {
	if a == nil || a.Router == nil {
		return fmt.Errorf("app not initialized")
	}
	return a.Router.Run(":" + a.Cfg.Port)
}

func (a *App) Close() {
	if a == nil {
		return
	}
	if a.cancel != nil {
		a.cancel()
		a.cancel = nil
	}
	if a.shutdownOTel != nil {
		_ = a.shutdownOTel(context.Background())
	}
	if a.Log != nil {
		a.Log.Sync()
	}
}
