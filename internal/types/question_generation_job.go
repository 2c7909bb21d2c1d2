package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	JobStatusPending   = "pending"
	JobStatusRunning   = "running"
	JobStatusCompleted = "completed"
	JobStatusFailed    = "failed"
)

type QuestionGenerationJob struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	OwnerUserID uuid.UUID `gorm:"type:uuid;not null;index" json:"owner_user_id"`
	MaterialID  uuid.UUID `gorm:"type:uuid;not null;index" json:"material_id"`

	Status string `gorm:"column:status;not null;index" json:"status"` // pending|running|completed|failed
	Stage  string `gorm:"column:stage;not null;index" json:"stage"`   // setup|topics|done

	TopicsTotal        int    `gorm:"column:topics_total;not null;default:0" json:"topics_total"`
	TopicsMatched      int    `gorm:"column:topics_matched;not null;default:0" json:"topics_matched"`
	TopicsCompleted    int    `gorm:"column:topics_completed;not null;default:0" json:"topics_completed"`
	QuestionsTotal     int    `gorm:"column:questions_total;not null;default:0" json:"questions_total"`
	QuestionsGenerated int    `gorm:"column:questions_generated;not null;default:0" json:"questions_generated"`
	CurrentTopic       string `gorm:"column:current_topic" json:"current_topic"`
	Message            string `gorm:"column:message" json:"message"`

	Error       string     `gorm:"column:error" json:"error,omitempty"`
	Attempts    int        `gorm:"column:attempts;not null;default:0" json:"attempts"`
	LastErrorAt *time.Time `gorm:"column:last_error_at" json:"last_error_at,omitempty"`
	LockedAt    *time.Time `gorm:"column:locked_at;index" json:"locked_at,omitempty"`
	HeartbeatAt *time.Time `gorm:"column:heartbeat_at;index" json:"heartbeat_at,omitempty"`
	StartedAt   *time.Time `gorm:"column:started_at" json:"started_at,omitempty"`
	FinishedAt  *time.Time `gorm:"column:finished_at" json:"finished_at,omitempty"`

	Metadata  datatypes.JSON `gorm:"type:jsonb;column:metadata" json:"metadata"`
	CreatedAt time.Time      `gorm:"not null;default:now();index" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null;default:now();index" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (QuestionGenerationJob) TableName() string { return "question_generation_job" }
