package services

import (
	"context"

	"github.com/google/uuid"

	"github.com/examwell/examwell-backend/internal/logger"
	"github.com/examwell/examwell-backend/internal/repos"
	"github.com/examwell/examwell-backend/internal/types"
)

// GenerationStatusService answers read-only questions about generation jobs.
type GenerationStatusService interface {
	GetLatestForMaterial(ctx context.Context, userID, materialID uuid.UUID) (*types.QuestionGenerationJob, error)
	GetByID(ctx context.Context, userID, jobID uuid.UUID) (*types.QuestionGenerationJob, error)
}

type generationStatusService struct {
	log     *logger.Logger
	jobRepo repos.GenerationJobRepo
}

func NewGenerationStatusService(baseLog *logger.Logger, jobRepo repos.GenerationJobRepo) GenerationStatusService {
	return &generationStatusService{
		log:     baseLog.With("service", "GenerationStatusService"),
		jobRepo: jobRepo,
	}
}

func (s *generationStatusService) GetLatestForMaterial(ctx context.Context, userID, materialID uuid.UUID) (*types.QuestionGenerationJob, error) {
	job, err := s.jobRepo.GetLatestByMaterialID(ctx, nil, materialID)
	if err != nil {
		return nil, err
	}
	if job == nil || job.OwnerUserID != userID {
		return nil, nil
	}
	return job, nil
}

func (s *generationStatusService) GetByID(ctx context.Context, userID, jobID uuid.UUID) (*types.QuestionGenerationJob, error) {
	jobs, err := s.jobRepo.GetByIDs(ctx, nil, []uuid.UUID{jobID})
	if err != nil {
		return nil, err
	}
	if len(jobs) == 0 || jobs[0].OwnerUserID != userID {
		return nil, nil
	}
	return jobs[0], nil
}
