package services

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/examwell/examwell-backend/internal/sse"
	"github.com/examwell/examwell-backend/internal/types"
)

type fakeMaterialRepo struct {
	materials map[uuid.UUID]*types.Material
}

func (f *fakeMaterialRepo) Create(ctx context.Context, tx *gorm.DB, materials []*types.Material) ([]*types.Material, error) {
	return materials, nil
}

func (f *fakeMaterialRepo) GetByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) ([]*types.Material, error) {
	var out []*types.Material
	for _, id := range ids {
		if m, ok := f.materials[id]; ok {
			out = append(out, m)
		}
	}
	return out, nil
}

type fakeAnalysisRepo struct {
	latest *types.MaterialAnalysis
}

func (f *fakeAnalysisRepo) Create(ctx context.Context, tx *gorm.DB, analyses []*types.MaterialAnalysis) ([]*types.MaterialAnalysis, error) {
	return analyses, nil
}

func (f *fakeAnalysisRepo) GetLatestByMaterialID(ctx context.Context, tx *gorm.DB, materialID uuid.UUID) (*types.MaterialAnalysis, error) {
	return f.latest, nil
}

type fakeTopicRepo struct {
	topics []*types.Topic
}

func (f *fakeTopicRepo) GetByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) ([]*types.Topic, error) {
	var out []*types.Topic
	for _, id := range ids {
		for _, t := range f.topics {
			if t.ID == id {
				out = append(out, t)
			}
		}
	}
	return out, nil
}

func (f *fakeTopicRepo) GetByCourseIDs(ctx context.Context, tx *gorm.DB, courseIDs []uuid.UUID) ([]*types.Topic, error) {
	var out []*types.Topic
	for _, id := range courseIDs {
		for _, t := range f.topics {
			if t.CourseID == id {
				out = append(out, t)
			}
		}
	}
	return out, nil
}

type fakeQuestionRepo struct {
	created  []*types.Question
	failCall int // 1-based call index that errors; 0 disables
	calls    int
}

func (f *fakeQuestionRepo) Create(ctx context.Context, tx *gorm.DB, questions []*types.Question) ([]*types.Question, error) {
	f.calls++
	if f.failCall != 0 && f.calls == f.failCall {
		return nil, fmt.Errorf("insert failed")
	}
	f.created = append(f.created, questions...)
	return questions, nil
}

func (f *fakeQuestionRepo) GetByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) ([]*types.Question, error) {
	return nil, nil
}

func (f *fakeQuestionRepo) GetByMaterialIDs(ctx context.Context, tx *gorm.DB, materialIDs []uuid.UUID) ([]*types.Question, error) {
	return f.created, nil
}

type fakeJobRepo struct {
	state   map[string]interface{}
	history []map[string]interface{}
}

func newFakeJobRepo() *fakeJobRepo {
	return &fakeJobRepo{state: map[string]interface{}{}}
}

func (f *fakeJobRepo) Create(ctx context.Context, tx *gorm.DB, jobs []*types.QuestionGenerationJob) ([]*types.QuestionGenerationJob, error) {
	return jobs, nil
}

func (f *fakeJobRepo) GetByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) ([]*types.QuestionGenerationJob, error) {
	return nil, nil
}

func (f *fakeJobRepo) GetLatestByMaterialID(ctx context.Context, tx *gorm.DB, materialID uuid.UUID) (*types.QuestionGenerationJob, error) {
	return nil, nil
}

func (f *fakeJobRepo) ClaimNextRunnable(ctx context.Context, tx *gorm.DB, maxAttempts int, retryDelay, staleRunning time.Duration) (*types.QuestionGenerationJob, error) {
	return nil, nil
}

func (f *fakeJobRepo) UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, updates map[string]interface{}) error {
	snapshot := map[string]interface{}{}
	for k, v := range updates {
		f.state[k] = v
		snapshot[k] = v
	}
	f.history = append(f.history, snapshot)
	return nil
}

func (f *fakeJobRepo) Heartbeat(ctx context.Context, tx *gorm.DB, id uuid.UUID) error {
	return nil
}

type stubExtractor struct {
	claims []TestableClaim
}

func (s *stubExtractor) Extract(ctx context.Context, topicTitle string, chunk SelectedChunk) []TestableClaim {
	return s.claims
}

type stubSynthesizer struct {
	results []SynthesisResult
	calls   int
}

func (s *stubSynthesizer) Synthesize(ctx context.Context, topicTitle string, claim TestableClaim) SynthesisResult {
	idx := s.calls
	s.calls++
	if idx < len(s.results) {
		return s.results[idx]
	}
	return SynthesisResult{Outcome: SynthesisDeclined, Reason: "exhausted"}
}

type pipelineFixture struct {
	svc      *questionGenerationService
	job      *types.QuestionGenerationJob
	jobs     *fakeJobRepo
	question *fakeQuestionRepo
	material *types.Material
}

func analysisDocJSON(t *testing.T, topicTitle string) datatypes.JSON {
	t.Helper()
	doc := map[string]any{
		"schema_version": 4,
		"topics": []any{
			map[string]any{
				"title":             topicTitle,
				"supporting_chunks": []any{0},
			},
		},
		"chunks": []any{
			map[string]any{"index": 0, "page": 1, "text": "Quicksort has average complexity O(n log n)."},
		},
	}
	b, err := json.Marshal(doc)
	if err != nil {
		t.Fatalf("marshal doc: %v", err)
	}
	return datatypes.JSON(b)
}

func newPipelineFixture(t *testing.T, docTopicTitle string, extractor ClaimExtractorService, synthesizer McqSynthesizerService, qRepo *fakeQuestionRepo) *pipelineFixture {
	t.Helper()
	log := testLogger(t)
	cfg := testConfig()
	cfg.MaxQuestionsPerTopic = 2

	userID := uuid.New()
	courseID := uuid.New()
	material := &types.Material{
		ID:          uuid.New(),
		OwnerUserID: userID,
		CourseID:    courseID,
		Title:       "Algorithms notes",
		Status:      "analyzed",
	}
	topic := &types.Topic{
		ID:          uuid.New(),
		OwnerUserID: userID,
		CourseID:    courseID,
		Title:       "Sorting",
	}

	jobs := newFakeJobRepo()
	if qRepo == nil {
		qRepo = &fakeQuestionRepo{}
	}

	svc := NewQuestionGenerationService(
		log,
		nil,
		cfg,
		&fakeMaterialRepo{materials: map[uuid.UUID]*types.Material{material.ID: material}},
		&fakeAnalysisRepo{latest: &types.MaterialAnalysis{
			ID:            uuid.New(),
			MaterialID:    material.ID,
			SchemaVersion: 4,
			Document:      analysisDocJSON(t, docTopicTitle),
		}},
		&fakeTopicRepo{topics: []*types.Topic{topic}},
		qRepo,
		jobs,
		NewTopicMatcherService(log),
		NewChunkSelectorService(log, &fakeEmbedder{}, cfg),
		extractor,
		synthesizer,
		NewQualityGateService(log, cfg),
		sse.NewSSEHub(log),
	).(*questionGenerationService)

	job := &types.QuestionGenerationJob{
		ID:          uuid.New(),
		OwnerUserID: userID,
		MaterialID:  material.ID,
		Status:      types.JobStatusRunning,
		Stage:       stageSetup,
	}

	return &pipelineFixture{svc: svc, job: job, jobs: jobs, question: qRepo, material: material}
}

func sampleClaim() TestableClaim {
	return TestableClaim{
		ID:         "c1",
		Claim:      "Quicksort averages O(n log n).",
		Type:       ClaimTypeFormula,
		Evidence:   []EvidenceQuote{{Quote: "average complexity O(n log n)", Page: 1}},
		ChunkIndex: 0,
		ChunkLabel: "p.1",
		ChunkText:  "Quicksort has average complexity O(n log n).",
	}
}

func acceptedResult() SynthesisResult {
	return SynthesisResult{Outcome: SynthesisAccepted, Question: acceptedQuestion()}
}

func TestProcessJobNoMatchedTopicsFails(t *testing.T) {
	fx := newPipelineFixture(t, "Organic Chemistry", &stubExtractor{}, &stubSynthesizer{}, nil)

	fx.svc.processJob(context.Background(), fx.job)

	if fx.jobs.state["status"] != types.JobStatusFailed {
		t.Fatalf("expected failed status, got %#v", fx.jobs.state)
	}
	if fx.jobs.state["finished_at"] == nil {
		t.Fatalf("finished_at should be set on failure")
	}
}

func TestProcessJobZeroQuestionsStillCompletes(t *testing.T) {
	fx := newPipelineFixture(t, "Sorting",
		&stubExtractor{claims: []TestableClaim{sampleClaim()}},
		&stubSynthesizer{results: []SynthesisResult{{Outcome: SynthesisDeclined, Reason: "unquizzable"}}},
		nil,
	)

	fx.svc.processJob(context.Background(), fx.job)

	if fx.jobs.state["status"] != types.JobStatusCompleted {
		t.Fatalf("expected completed, got %#v", fx.jobs.state["status"])
	}
	if fx.jobs.state["questions_generated"] != 0 {
		t.Fatalf("expected 0 questions, got %#v", fx.jobs.state["questions_generated"])
	}
	if fx.jobs.state["stage"] != stageDone {
		t.Fatalf("expected done stage, got %#v", fx.jobs.state["stage"])
	}
}

func TestProcessJobGeneratesAndPersists(t *testing.T) {
	synth := &stubSynthesizer{results: []SynthesisResult{acceptedResult(), acceptedResult()}}
	fx := newPipelineFixture(t, "Sorting",
		&stubExtractor{claims: []TestableClaim{sampleClaim(), sampleClaim(), sampleClaim()}},
		synth,
		nil,
	)

	fx.svc.processJob(context.Background(), fx.job)

	if fx.jobs.state["status"] != types.JobStatusCompleted {
		t.Fatalf("expected completed, got %#v", fx.jobs.state["status"])
	}
	// MaxQuestionsPerTopic is 2, so the third claim is never attempted.
	if len(fx.question.created) != 2 {
		t.Fatalf("expected 2 persisted questions, got %d", len(fx.question.created))
	}
	if synth.calls != 2 {
		t.Fatalf("quota should stop synthesis, got %d calls", synth.calls)
	}

	q := fx.question.created[0]
	if q.Status != types.QuestionStatusNeedsReview {
		t.Fatalf("questions must land in review, got %q", q.Status)
	}
	if q.PipelineVersion != "qgen-v1" {
		t.Fatalf("pipeline version missing: %#v", q)
	}
	if q.MaterialID != fx.material.ID || q.OwnerUserID != fx.material.OwnerUserID {
		t.Fatalf("ownership not carried: %#v", q)
	}
	if q.QualityScore <= 0 {
		t.Fatalf("quality score not set: %v", q.QualityScore)
	}
}

func TestProcessJobInsertFailureIsSoft(t *testing.T) {
	qRepo := &fakeQuestionRepo{failCall: 1}
	synth := &stubSynthesizer{results: []SynthesisResult{acceptedResult(), acceptedResult()}}
	fx := newPipelineFixture(t, "Sorting",
		&stubExtractor{claims: []TestableClaim{sampleClaim(), sampleClaim()}},
		synth,
		qRepo,
	)

	fx.svc.processJob(context.Background(), fx.job)

	if fx.jobs.state["status"] != types.JobStatusCompleted {
		t.Fatalf("insert failure must not fail the job: %#v", fx.jobs.state["status"])
	}
	if len(qRepo.created) != 1 {
		t.Fatalf("expected 1 surviving question, got %d", len(qRepo.created))
	}
	if fx.jobs.state["questions_generated"] != 1 {
		t.Fatalf("counter should reflect persisted questions only: %#v", fx.jobs.state["questions_generated"])
	}
}

func TestProcessJobProgressUpdates(t *testing.T) {
	fx := newPipelineFixture(t, "Sorting",
		&stubExtractor{claims: []TestableClaim{sampleClaim()}},
		&stubSynthesizer{results: []SynthesisResult{acceptedResult()}},
		nil,
	)

	fx.svc.processJob(context.Background(), fx.job)

	sawTopicsStage := false
	sawPerTopic := false
	for _, u := range fx.jobs.history {
		if u["stage"] == stageTopics && u["topics_matched"] == 1 && u["topics_total"] == 1 {
			sawTopicsStage = true
		}
		if u["topics_completed"] == 1 && u["current_topic"] == "Sorting" {
			sawPerTopic = true
		}
	}
	if !sawTopicsStage {
		t.Fatalf("missing topics-stage progress update: %#v", fx.jobs.history)
	}
	if !sawPerTopic {
		t.Fatalf("missing per-topic progress update: %#v", fx.jobs.history)
	}
}
