package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/examwell/examwell-backend/internal/analysis"
	"github.com/examwell/examwell-backend/internal/logger"
	"github.com/examwell/examwell-backend/internal/repos"
	"github.com/examwell/examwell-backend/internal/sse"
	"github.com/examwell/examwell-backend/internal/types"
)

const (
	jobMaxAttempts      = 3
	jobRetryDelay       = 30 * time.Second
	jobStaleRunning     = 2 * time.Minute
	workerTickInterval = 1 * time.Second

	stageSetup  = "setup"
	stageTopics = "topics"
	stageDone   = "done"
)

type QuestionGenerationService interface {
	// Enqueue creates a pending job for the material, optionally restricted
	// to a subset of the course's topics.
	Enqueue(ctx context.Context, userID, materialID uuid.UUID, topicIDs []uuid.UUID) (*types.QuestionGenerationJob, error)
	// StartWorker launches the claim loop. It returns immediately; the loop
	// stops when ctx is cancelled.
	StartWorker(ctx context.Context)
}

type questionGenerationService struct {
	log *logger.Logger
	db  *gorm.DB
	cfg GenerationConfig

	materialRepo repos.MaterialRepo
	analysisRepo repos.MaterialAnalysisRepo
	topicRepo    repos.TopicRepo
	questionRepo repos.QuestionRepo
	jobRepo      repos.GenerationJobRepo

	matcher     TopicMatcherService
	selector    ChunkSelectorService
	extractor   ClaimExtractorService
	synthesizer McqSynthesizerService
	gate        QualityGateService

	hub *sse.SSEHub
}

func NewQuestionGenerationService(
	baseLog *logger.Logger,
	db *gorm.DB,
	cfg GenerationConfig,
	materialRepo repos.MaterialRepo,
	analysisRepo repos.MaterialAnalysisRepo,
	topicRepo repos.TopicRepo,
	questionRepo repos.QuestionRepo,
	jobRepo repos.GenerationJobRepo,
	matcher TopicMatcherService,
	selector ChunkSelectorService,
	extractor ClaimExtractorService,
	synthesizer McqSynthesizerService,
	gate QualityGateService,
	hub *sse.SSEHub,
) QuestionGenerationService {
	return &questionGenerationService{
		log:          baseLog.With("service", "QuestionGenerationService"),
		db:           db,
		cfg:          cfg,
		materialRepo: materialRepo,
		analysisRepo: analysisRepo,
		topicRepo:    topicRepo,
		questionRepo: questionRepo,
		jobRepo:      jobRepo,
		matcher:      matcher,
		selector:     selector,
		extractor:    extractor,
		synthesizer:  synthesizer,
		gate:         gate,
		hub:          hub,
	}
}

type jobMetadata struct {
	TopicIDs []uuid.UUID `json:"topic_ids,omitempty"`

	QuestionsGenerated *int `json:"questionsGenerated,omitempty"`
	TopicsMatched      *int `json:"topicsMatched,omitempty"`
	TopicsTotal        *int `json:"topicsTotal,omitempty"`
}

func (s *questionGenerationService) Enqueue(ctx context.Context, userID, materialID uuid.UUID, topicIDs []uuid.UUID) (*types.QuestionGenerationJob, error) {
	if userID == uuid.Nil || materialID == uuid.Nil {
		return nil, fmt.Errorf("userID and materialID are required")
	}

	var job *types.QuestionGenerationJob

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		materials, err := s.materialRepo.GetByIDs(ctx, tx, []uuid.UUID{materialID})
		if err != nil {
			return err
		}
		if len(materials) == 0 {
			return fmt.Errorf("material %s not found", materialID)
		}
		material := materials[0]
		if material.OwnerUserID != userID {
			return fmt.Errorf("material %s does not belong to user", materialID)
		}

		meta, err := json.Marshal(jobMetadata{TopicIDs: topicIDs})
		if err != nil {
			return err
		}

		created, err := s.jobRepo.Create(ctx, tx, []*types.QuestionGenerationJob{{
			ID:          uuid.New(),
			OwnerUserID: userID,
			MaterialID:  materialID,
			Status:      types.JobStatusPending,
			Stage:       stageSetup,
			Message:     "Queued",
			Metadata:    datatypes.JSON(meta),
		}})
		if err != nil {
			return err
		}
		job = created[0]
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("Question generation job enqueued",
		"job_id", job.ID,
		"material_id", materialID,
		"topic_filter", len(topicIDs),
	)
	return job, nil
}

func (s *questionGenerationService) StartWorker(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(workerTickInterval)
		defer ticker.Stop()

		s.log.Info("Question generation worker started")
		for {
			select {
			case <-ctx.Done():
				s.log.Info("Question generation worker stopped")
				return
			case <-ticker.C:
				job, err := s.jobRepo.ClaimNextRunnable(ctx, nil, jobMaxAttempts, jobRetryDelay, jobStaleRunning)
				if err != nil {
					s.log.Error("Failed to claim job", "error", err.Error())
					continue
				}
				if job == nil {
					continue
				}
				s.processJob(ctx, job)
			}
		}
	}()
}

func (s *questionGenerationService) channelFor(job *types.QuestionGenerationJob) string {
	return "question-generation:" + job.MaterialID.String()
}

func (s *questionGenerationService) processJob(ctx context.Context, job *types.QuestionGenerationJob) {
	log := s.log.With("job_id", job.ID, "material_id", job.MaterialID)
	channel := s.channelFor(job)

	fail := func(reason string) {
		now := time.Now()
		if err := s.jobRepo.UpdateFields(ctx, nil, job.ID, map[string]interface{}{
			"status":        types.JobStatusFailed,
			"error":         reason,
			"message":       "Generation failed",
			"last_error_at": now,
			"finished_at":   now,
		}); err != nil {
			log.Error("Failed to mark job failed", "error", err.Error())
		}
		s.hub.Broadcast(sse.SSEMessage{
			Channel: channel,
			Event:   sse.SSEEventQuestionGenerationFailed,
			Data:    map[string]any{"jobId": job.ID, "error": reason},
		})
		log.Warn("Job failed", "reason", reason)
	}

	progress := func(updates map[string]interface{}) {
		updates["heartbeat_at"] = time.Now()
		if err := s.jobRepo.UpdateFields(ctx, nil, job.ID, updates); err != nil {
			log.Error("Failed to update job progress", "error", err.Error())
		}
		s.hub.Broadcast(sse.SSEMessage{
			Channel: channel,
			Event:   sse.SSEEventQuestionGenerationProgress,
			Data:    map[string]any{"jobId": job.ID, "updates": updates},
		})
	}

	defer func() {
		if r := recover(); r != nil {
			fail(fmt.Sprintf("panic: %v", r))
		}
	}()

	// Setup: load inputs. Any fault here fails the whole job because nothing
	// downstream can run without them.
	materials, err := s.materialRepo.GetByIDs(ctx, nil, []uuid.UUID{job.MaterialID})
	if err != nil {
		fail(fmt.Sprintf("load material: %v", err))
		return
	}
	if len(materials) == 0 {
		fail("material not found")
		return
	}
	material := materials[0]

	latest, err := s.analysisRepo.GetLatestByMaterialID(ctx, nil, job.MaterialID)
	if err != nil {
		fail(fmt.Sprintf("load analysis: %v", err))
		return
	}
	if latest == nil {
		fail("material has no analysis")
		return
	}

	doc, err := analysis.Normalize(latest.Document)
	if err != nil {
		fail(fmt.Sprintf("analysis document invalid: %v", err))
		return
	}

	var meta jobMetadata
	if len(job.Metadata) > 0 {
		_ = json.Unmarshal(job.Metadata, &meta)
	}

	var platformTopics []*types.Topic
	if len(meta.TopicIDs) > 0 {
		platformTopics, err = s.topicRepo.GetByIDs(ctx, nil, meta.TopicIDs)
		if err == nil {
			// A topic filter may only reference the material's own course.
			filtered := platformTopics[:0]
			for _, t := range platformTopics {
				if t.CourseID == material.CourseID {
					filtered = append(filtered, t)
				}
			}
			platformTopics = filtered
		}
	} else {
		platformTopics, err = s.topicRepo.GetByCourseIDs(ctx, nil, []uuid.UUID{material.CourseID})
	}
	if err != nil {
		fail(fmt.Sprintf("load topics: %v", err))
		return
	}
	if len(platformTopics) == 0 {
		fail("course has no topics to generate for")
		return
	}

	matches := s.matcher.Match(platformTopics, doc.Topics)
	if len(matches) == 0 {
		fail("no course topics matched the material's analysis")
		return
	}

	now := time.Now()
	progress(map[string]interface{}{
		"stage":           stageTopics,
		"topics_total":    len(platformTopics),
		"topics_matched":  len(matches),
		"questions_total": len(matches) * s.cfg.MaxQuestionsPerTopic,
		"started_at":      now,
		"message":         fmt.Sprintf("Matched %d of %d topics", len(matches), len(platformTopics)),
	})

	totalQuestions := 0
	for i, match := range matches {
		generated := s.processTopic(ctx, log, material, doc, match)
		totalQuestions += generated

		progress(map[string]interface{}{
			"topics_completed":    i + 1,
			"current_topic":       match.Topic.Title,
			"questions_generated": totalQuestions,
			"message":             fmt.Sprintf("Finished topic %q (%d questions so far)", match.Topic.Title, totalQuestions),
		})
	}

	finished := time.Now()
	qg := totalQuestions
	tm := len(matches)
	tt := len(platformTopics)
	summary, _ := json.Marshal(jobMetadata{
		TopicIDs:           meta.TopicIDs,
		QuestionsGenerated: &qg,
		TopicsMatched:      &tm,
		TopicsTotal:        &tt,
	})

	if err := s.jobRepo.UpdateFields(ctx, nil, job.ID, map[string]interface{}{
		"status":              types.JobStatusCompleted,
		"stage":               stageDone,
		"questions_generated": totalQuestions,
		"current_topic":       "",
		"message":             fmt.Sprintf("Generated %d questions across %d topics", totalQuestions, len(matches)),
		"finished_at":         finished,
		"metadata":            datatypes.JSON(summary),
	}); err != nil {
		log.Error("Failed to mark job completed", "error", err.Error())
	}

	s.hub.Broadcast(sse.SSEMessage{
		Channel: channel,
		Event:   sse.SSEEventQuestionGenerationDone,
		Data: map[string]any{
			"jobId":              job.ID,
			"questionsGenerated": totalQuestions,
			"topicsMatched":      len(matches),
			"topicsTotal":        len(platformTopics),
		},
	})

	log.Info("Job completed",
		"questions_generated", totalQuestions,
		"topics_matched", len(matches),
		"topics_total", len(platformTopics),
	)
}

// processTopic runs selection, extraction, synthesis, and persistence for one
// matched topic. Every failure inside is soft; the worst case is a topic that
// contributes zero questions.
func (s *questionGenerationService) processTopic(
	ctx context.Context,
	log *logger.Logger,
	material *types.Material,
	doc *analysis.Document,
	match TopicMatch,
) int {
	topicLog := log.With("topic", match.Topic.Title)

	chunks := s.selector.Select(ctx, doc, match.Analysis)
	if len(chunks) == 0 {
		topicLog.Warn("No chunks resolved for topic; skipping")
		return 0
	}

	var claims []TestableClaim
	for _, chunk := range chunks {
		claims = append(claims, s.extractor.Extract(ctx, match.Topic.Title, chunk)...)
	}
	if len(claims) == 0 {
		topicLog.Warn("No testable claims extracted; skipping topic")
		return 0
	}
	SortClaimsByPriority(claims)

	generated := 0
	for _, claim := range claims {
		if generated >= s.cfg.MaxQuestionsPerTopic {
			break
		}

		result := s.synthesizer.Synthesize(ctx, match.Topic.Title, claim)
		switch result.Outcome {
		case SynthesisAccepted:
		case SynthesisDeclined:
			topicLog.Debug("Claim declined", "claim_id", claim.ID, "reason", result.Reason)
			continue
		case SynthesisMalformed:
			topicLog.Warn("Synthesis malformed", "claim_id", claim.ID, "reason", result.Reason)
			continue
		case SynthesisRejected:
			topicLog.Debug("Question rejected", "claim_id", claim.ID, "reason", result.Reason)
			continue
		default:
			continue
		}

		assessment := s.gate.Assess(result.Question, claim)
		question := s.buildQuestion(material, match, claim, result.Question, assessment)

		if _, err := s.questionRepo.Create(ctx, nil, []*types.Question{question}); err != nil {
			topicLog.Warn("Failed to persist question; skipping", "claim_id", claim.ID, "error", err.Error())
			continue
		}
		generated++
	}

	return generated
}

func (s *questionGenerationService) buildQuestion(
	material *types.Material,
	match TopicMatch,
	claim TestableClaim,
	q *GeneratedQuestion,
	assessment QualityAssessment,
) *types.Question {
	provenance := map[string]any{
		"claim_id":              claim.ID,
		"claim":                 claim.Claim,
		"claim_type":            claim.Type,
		"chunk_index":           claim.ChunkIndex,
		"chunk_label":           claim.ChunkLabel,
		"claim_evidence":        claim.Evidence,
		"evidence_spans":        q.EvidenceSpans,
		"option_audit":          q.OptionAudit,
		"distractor_rationales": q.DistractorRationales,
		"match_rule":            match.Rule,
		"match_score":           match.Score,
	}

	return &types.Question{
		ID:              uuid.New(),
		OwnerUserID:     material.OwnerUserID,
		MaterialID:      material.ID,
		TopicID:         match.Topic.ID,
		Stem:            q.Stem,
		Choices:         datatypes.JSON(mustJSON(q.Choices)),
		CorrectChoice:   q.Correct,
		SolutionMD:      q.Explanation,
		Difficulty:      q.Difficulty,
		Tags:            datatypes.JSON(mustJSON([]string{claim.Type})),
		QualityScore:    assessment.Score,
		QualityFlags:    datatypes.JSON(mustJSON(assessment.Flags)),
		Provenance:      datatypes.JSON(mustJSON(provenance)),
		PipelineVersion: s.cfg.PipelineVersion,
		Status:          types.QuestionStatusNeedsReview,
	}
}
