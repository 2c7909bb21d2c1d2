package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	QuestionStatusNeedsReview = "needs_review"
)

// Question is the persisted form of a generated multiple-choice question.
// Provenance carries the claim id/type and verbatim evidence quotes so every
// question stays traceable to its source text.
type Question struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	OwnerUserID uuid.UUID `gorm:"type:uuid;not null;index" json:"owner_user_id"`
	MaterialID  uuid.UUID `gorm:"type:uuid;not null;index" json:"material_id"`
	TopicID     uuid.UUID `gorm:"type:uuid;not null;index" json:"topic_id"`

	Stem          string         `gorm:"column:stem;type:text;not null" json:"stem"`
	Choices       datatypes.JSON `gorm:"type:jsonb;column:choices;not null" json:"choices"`
	CorrectChoice string         `gorm:"column:correct_choice;not null" json:"correct_choice"` // A|B|C|D
	SolutionMD    string         `gorm:"column:solution_md;type:text" json:"solution_md"`
	Difficulty    int            `gorm:"column:difficulty;not null;default:3" json:"difficulty"`
	Tags          datatypes.JSON `gorm:"type:jsonb;column:tags" json:"tags"`

	QualityScore    float64        `gorm:"column:quality_score;not null;default:0" json:"quality_score"`
	QualityFlags    datatypes.JSON `gorm:"type:jsonb;column:quality_flags" json:"quality_flags"`
	Provenance      datatypes.JSON `gorm:"type:jsonb;column:provenance" json:"provenance"`
	PipelineVersion string         `gorm:"column:pipeline_version;index" json:"pipeline_version"`

	Status    string `gorm:"column:status;not null;index" json:"status"`
	Published bool   `gorm:"column:published;not null;default:false;index" json:"published"`

	CreatedAt time.Time      `gorm:"not null;default:now();index" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null;default:now();index" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (Question) TableName() string { return "question" }
