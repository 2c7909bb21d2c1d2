package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/examwell/examwell-backend/internal/logger"
	"github.com/examwell/examwell-backend/internal/types"
)

type MaterialAnalysisRepo interface {
	Create(ctx context.Context, tx *gorm.DB, analyses []*types.MaterialAnalysis) ([]*types.MaterialAnalysis, error)
	// GetLatestByMaterialID returns the newest analysis for a material, or nil
	// when the material was never analyzed.
	GetLatestByMaterialID(ctx context.Context, tx *gorm.DB, materialID uuid.UUID) (*types.MaterialAnalysis, error)
}

type materialAnalysisRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewMaterialAnalysisRepo(db *gorm.DB, baseLog *logger.Logger) MaterialAnalysisRepo {
	return &materialAnalysisRepo{db: db, log: baseLog.With("repo", "MaterialAnalysisRepo")}
}

func (r *materialAnalysisRepo) Create(ctx context.Context, tx *gorm.DB, analyses []*types.MaterialAnalysis) ([]*types.MaterialAnalysis, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if len(analyses) == 0 {
		return []*types.MaterialAnalysis{}, nil
	}
	if err := transaction.WithContext(ctx).Create(&analyses).Error; err != nil {
		return nil, err
	}
	return analyses, nil
}

func (r *materialAnalysisRepo) GetLatestByMaterialID(ctx context.Context, tx *gorm.DB, materialID uuid.UUID) (*types.MaterialAnalysis, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if materialID == uuid.Nil {
		return nil, nil
	}
	var analysis types.MaterialAnalysis
	err := transaction.WithContext(ctx).
		Where("material_id = ?", materialID).
		Order("created_at DESC").
		Limit(1).
		Find(&analysis).Error
	if err != nil {
		return nil, err
	}
	if analysis.ID == uuid.Nil {
		return nil, nil
	}
	return &analysis, nil
}
