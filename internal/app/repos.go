package app

import (
	"gorm.io/gorm"

	"github.com/examwell/examwell-backend/internal/logger"
	"github.com/examwell/examwell-backend/internal/repos"
)

type appRepos struct {
	material repos.MaterialRepo
	analysis repos.MaterialAnalysisRepo
	topic    repos.TopicRepo
	question repos.QuestionRepo
	job      repos.GenerationJobRepo
}

func wireRepos(db *gorm.DB, log *logger.Logger) *appRepos {
	return &appRepos{
		material: repos.NewMaterialRepo(db, log),
		analysis: repos.NewMaterialAnalysisRepo(db, log),
		topic:    repos.NewTopicRepo(db, log),
		question: repos.NewQuestionRepo(db, log),
		job:      repos.NewGenerationJobRepo(db, log),
	}
}
