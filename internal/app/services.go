package app

import (
	"gorm.io/gorm"

	"github.com/examwell/examwell-backend/internal/logger"
	"github.com/examwell/examwell-backend/internal/services"
	"github.com/examwell/examwell-backend/internal/sse"
)

type appServices struct {
	generation services.QuestionGenerationService
	status     services.GenerationStatusService
	hub        *sse.SSEHub
}

func wireServices(db *gorm.DB, r *appRepos, log *logger.Logger) (*appServices, error) {
	cfg := services.LoadGenerationConfig(log)

	ai, err := services.NewOpenAIClient(log)
	if err != nil {
		return nil, err
	}

	hub := sse.NewSSEHub(log)

	matcher := services.NewTopicMatcherService(log)
	selector := services.NewChunkSelectorService(log, ai, cfg)
	extractor := services.NewClaimExtractorService(log, ai, cfg)
	synthesizer := services.NewMcqSynthesizerService(log, ai, cfg)
	gate := services.NewQualityGateService(log, cfg)

	generation := services.NewQuestionGenerationService(
		log, db, cfg,
		r.material, r.analysis, r.topic, r.question, r.job,
		matcher, selector, extractor, synthesizer, gate,
		hub,
	)

	return &appServices{
		generation: generation,
		status:     services.NewGenerationStatusService(log, r.job),
		hub:        hub,
	}, nil
}
