package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// MaterialAnalysis is the persisted output of the upstream analysis step.
// The document payload is versioned; see internal/analysis for normalization.
type MaterialAnalysis struct {
	ID            uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	MaterialID    uuid.UUID      `gorm:"type:uuid;not null;index" json:"material_id"`
	SchemaVersion int            `gorm:"column:schema_version;not null;default:1" json:"schema_version"`
	Document      datatypes.JSON `gorm:"type:jsonb;column:document;not null" json:"document"`
	CreatedAt     time.Time      `gorm:"not null;default:now();index" json:"created_at"`
	UpdatedAt     time.Time      `gorm:"not null;default:now();index" json:"updated_at"`
	DeletedAt     gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (MaterialAnalysis) TableName() string { return "material_analysis" }
