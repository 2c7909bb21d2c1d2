package app

import (
	"github.com/examwell/examwell-backend/internal/handlers"
	"github.com/examwell/examwell-backend/internal/logger"
)

type appHandlers struct {
	healthcheck *handlers.HealthcheckHandler
	generation  *handlers.GenerationHandler
	sse         *handlers.SSEHandler
}

func wireHandlers(s *appServices, log *logger.Logger) *appHandlers {
	return &appHandlers{
		healthcheck: handlers.NewHealthcheckHandler(),
		generation:  handlers.NewGenerationHandler(log, s.generation, s.status),
		sse:         handlers.NewSSEHandler(log, s.hub),
	}
}
