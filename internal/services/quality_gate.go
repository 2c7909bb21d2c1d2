package services

import (
	"math"

	"github.com/examwell/examwell-backend/internal/logger"
)

// QualityFlags is persisted alongside each question so reviewers can see at a
// glance why the gate scored it the way it did.
type QualityFlags struct {
	Groundedness           bool    `json:"groundedness"`
	Answerability          bool    `json:"answerability"`
	SingleCorrectAnswer    bool    `json:"single_correct_answer"`
	DistractorPlausibility int     `json:"distractor_plausibility"`
	PipelineVersion        string  `json:"pipeline_version"`
	ClaimType              string  `json:"claim_type"`
	RawConfidence          float64 `json:"raw_confidence"`
}

type QualityAssessment struct {
	Score float64
	Flags QualityFlags
}

// QualityGateService annotates accepted questions with a 0-10 score. It never
// rejects; anything it sees already passed the synthesizer's gates, and the
// score exists so reviewers can triage.
type QualityGateService interface {
	Assess(q *GeneratedQuestion, claim TestableClaim) QualityAssessment
}

type qualityGateService struct {
	log *logger.Logger
	cfg GenerationConfig
}

func NewQualityGateService(baseLog *logger.Logger, cfg GenerationConfig) QualityGateService {
	return &qualityGateService{
		log: baseLog.With("service", "QualityGateService"),
		cfg: cfg,
	}
}

func (s *qualityGateService) Assess(q *GeneratedQuestion, claim TestableClaim) QualityAssessment {
	completeness := auditCompleteness(q)
	score := (q.Confidence + completeness) / 2 * 10
	score = math.Round(score*10) / 10
	if score > 10 {
		score = 10
	}
	if score < 0 {
		score = 0
	}

	plausible := 0
	for _, letter := range choiceLetters {
		if letter == q.Correct {
			continue
		}
		audit := q.OptionAudit[letter]
		if audit.Why != "" {
			plausible++
		}
	}

	return QualityAssessment{
		Score: score,
		Flags: QualityFlags{
			Groundedness:           len(q.EvidenceSpans) > 0,
			Answerability:          q.Explanation != "",
			SingleCorrectAnswer:    true,
			DistractorPlausibility: plausible,
			PipelineVersion:        s.cfg.PipelineVersion,
			ClaimType:              claim.Type,
			RawConfidence:          q.Confidence,
		},
	}
}

// auditCompleteness is 1.0 when every option audit either cites evidence or
// explains why none exists, 0.6 otherwise.
func auditCompleteness(q *GeneratedQuestion) float64 {
	for _, letter := range choiceLetters {
		audit, ok := q.OptionAudit[letter]
		if !ok {
			return 0.6
		}
		if audit.Evidence == "" && audit.Why == "" {
			return 0.6
		}
	}
	return 1.0
}
