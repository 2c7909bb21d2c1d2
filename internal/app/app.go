package app

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/examwell/examwell-backend/internal/db"
	"github.com/examwell/examwell-backend/internal/logger"
)

// App owns the wired dependency graph: database, repos, services, handlers,
// and the HTTP router.
type App struct {
	Config   Config
	Log      *logger.Logger
	Router   *gin.Engine
	services *appServices
}

func New() (*App, error) {
	bootstrapLog, err := logger.New("development")
	if err != nil {
		return nil, err
	}
	cfg := LoadConfig(bootstrapLog)

	log, err := logger.New(cfg.Mode)
	if err != nil {
		return nil, err
	}

	database, err := db.NewPostgresService(log)
	if err != nil {
		return nil, err
	}
	if err := database.AutoMigrateAll(); err != nil {
		return nil, err
	}

	reposLayer := wireRepos(database.DB(), log)
	servicesLayer, err := wireServices(database.DB(), reposLayer, log)
	if err != nil {
		return nil, err
	}
	handlersLayer := wireHandlers(servicesLayer, log)

	return &App{
		Config:   cfg,
		Log:      log,
		Router:   wireRouter(cfg, handlersLayer),
		services: servicesLayer,
	}, nil
}

// Start launches background workers. Call before Run.
func (a *App) Start(ctx context.Context) {
	a.services.generation.StartWorker(ctx)
}

func (a *App) Run() error {
	a.Log.Info("Server starting", "port", a.Config.Port, "mode", a.Config.Mode)
	return a.Router.Run(":" + a.Config.Port)
}
