package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/examwell/examwell-backend/internal/logger"
)

var choiceLetters = []string{"A", "B", "C", "D"}

type OptionAudit struct {
	Verdict  string `json:"verdict"`
	Why      string `json:"why"`
	Evidence string `json:"evidence"`
}

type DistractorRationale struct {
	Choice string `json:"choice"`
	Kind   string `json:"kind"`
	Note   string `json:"note"`
}

// GeneratedQuestion is a fully audited draft question. Everything needed for
// persistence and quality scoring lives here; nothing refers back to the
// model conversation.
type GeneratedQuestion struct {
	Stem                 string                 `json:"stem"`
	Choices              map[string]string      `json:"choices"`
	Correct              string                 `json:"correct"`
	Explanation          string                 `json:"explanation"`
	EvidenceSpans        []string               `json:"evidence_spans"`
	OptionAudit          map[string]OptionAudit `json:"option_audit"`
	Difficulty           int                    `json:"difficulty"` // 1-5
	Confidence           float64                `json:"confidence"` // 0-1
	DistractorRationales []DistractorRationale  `json:"distractor_rationales"`
}

type SynthesisOutcome string

const (
	// SynthesisAccepted means the draft passed every gate.
	SynthesisAccepted SynthesisOutcome = "accepted"
	// SynthesisDeclined means the model judged the claim unquizzable.
	SynthesisDeclined SynthesisOutcome = "declined"
	// SynthesisMalformed means the call failed or the payload was unusable.
	SynthesisMalformed SynthesisOutcome = "malformed"
	// SynthesisRejected means a quality gate turned the draft away.
	SynthesisRejected SynthesisOutcome = "rejected"
)

type SynthesisResult struct {
	Outcome  SynthesisOutcome
	Question *GeneratedQuestion
	Reason   string
}

type McqSynthesizerService interface {
	Synthesize(ctx context.Context, topicTitle string, claim TestableClaim) SynthesisResult
}

type mcqSynthesizerService struct {
	log *logger.Logger
	ai  OpenAIClient
	cfg GenerationConfig
}

func NewMcqSynthesizerService(baseLog *logger.Logger, ai OpenAIClient, cfg GenerationConfig) McqSynthesizerService {
	return &mcqSynthesizerService{
		log: baseLog.With("service", "McqSynthesizerService"),
		ai:  ai,
		cfg: cfg,
	}
}

func (s *mcqSynthesizerService) Synthesize(ctx context.Context, topicTitle string, claim TestableClaim) SynthesisResult {
	system := "You write multiple-choice questions grounded strictly in provided course material. " +
		"Every question has exactly four options labeled A-D with exactly one correct answer. " +
		"Distractors must be plausible mistakes, not jokes or obvious throwaways. " +
		"Audit every option against the source text. Quote evidence verbatim from the source. " +
		"If your own audit finds more than one defensible answer, rewrite the question once to remove the ambiguity before responding. " +
		"If the claim still cannot support a fair, unambiguous question, set cannot_create to true instead of forcing one."

	var confusions string
	if len(claim.CommonConfusions) > 0 {
		confusions = "\nCommon confusions: " + strings.Join(claim.CommonConfusions, "; ")
	}

	user := fmt.Sprintf(
		"Topic: %s\nClaim (%s): %s%s\n\nSource (%s):\n%s\n\nWrite one multiple-choice question testing this claim.",
		topicTitle, claim.Type, claim.Claim, confusions, claim.ChunkLabel, truncate(claim.ChunkText, 8000),
	)

	obj, err := s.ai.GenerateJSON(ctx, system, user, "mcq_draft", mcqSchema())
	if err != nil {
		return SynthesisResult{Outcome: SynthesisMalformed, Reason: err.Error()}
	}

	if boolFromAny(obj["cannot_create"]) {
		reason := strings.TrimSpace(stringFromAny(obj["reason"]))
		if reason == "" {
			reason = "model declined"
		}
		return SynthesisResult{Outcome: SynthesisDeclined, Reason: reason}
	}

	q := parseGeneratedQuestion(obj)

	if reason := structuralProblem(q); reason != "" {
		return SynthesisResult{Outcome: SynthesisMalformed, Reason: reason}
	}

	if reason := auditProblem(q); reason != "" {
		return SynthesisResult{Outcome: SynthesisRejected, Question: q, Reason: reason}
	}

	if q.Confidence < s.cfg.MinConfidence {
		return SynthesisResult{
			Outcome:  SynthesisRejected,
			Question: q,
			Reason:   fmt.Sprintf("confidence %.2f below %.2f", q.Confidence, s.cfg.MinConfidence),
		}
	}

	if s.cfg.EvidenceCheck {
		if reason := evidenceProblem(q, claim); reason != "" {
			return SynthesisResult{Outcome: SynthesisRejected, Question: q, Reason: reason}
		}
	}

	return SynthesisResult{Outcome: SynthesisAccepted, Question: q}
}

func parseGeneratedQuestion(obj map[string]any) *GeneratedQuestion {
	q := &GeneratedQuestion{
		Stem:          strings.TrimSpace(stringFromAny(obj["stem"])),
		Correct:       strings.ToUpper(strings.TrimSpace(stringFromAny(obj["correct"]))),
		Explanation:   strings.TrimSpace(stringFromAny(obj["explanation"])),
		EvidenceSpans: toStringSlice(obj["evidence_spans"]),
		Difficulty:    clampDifficulty(intFromAny(obj["difficulty_1to5"])),
		Confidence:    floatFromAny(obj["confidence_0to1"]),
		Choices:       make(map[string]string),
		OptionAudit:   make(map[string]OptionAudit),
	}

	for letter, v := range toStringMap(obj["choices"]) {
		q.Choices[strings.ToUpper(letter)] = strings.TrimSpace(stringFromAny(v))
	}

	for letter, v := range toStringMap(obj["option_audit"]) {
		m := toStringMap(v)
		q.OptionAudit[strings.ToUpper(letter)] = OptionAudit{
			Verdict:  strings.ToLower(strings.TrimSpace(stringFromAny(m["verdict"]))),
			Why:      strings.TrimSpace(stringFromAny(m["why"])),
			Evidence: strings.TrimSpace(stringFromAny(m["evidence"])),
		}
	}

	for _, m := range toMapSlice(obj["distractor_rationales"]) {
		q.DistractorRationales = append(q.DistractorRationales, DistractorRationale{
			Choice: strings.ToUpper(strings.TrimSpace(stringFromAny(m["choice"]))),
			Kind:   strings.TrimSpace(stringFromAny(m["kind"])),
			Note:   strings.TrimSpace(stringFromAny(m["note"])),
		})
	}

	return q
}

func structuralProblem(q *GeneratedQuestion) string {
	if q.Stem == "" {
		return "empty stem"
	}
	if q.Explanation == "" {
		return "empty explanation"
	}
	for _, letter := range choiceLetters {
		if strings.TrimSpace(q.Choices[letter]) == "" {
			return "missing choice " + letter
		}
	}
	if len(q.Choices) != len(choiceLetters) {
		return fmt.Sprintf("expected %d choices, got %d", len(choiceLetters), len(q.Choices))
	}
	validCorrect := false
	for _, letter := range choiceLetters {
		if q.Correct == letter {
			validCorrect = true
		}
	}
	if !validCorrect {
		return "correct answer is not one of A-D"
	}
	for _, letter := range choiceLetters {
		if _, ok := q.OptionAudit[letter]; !ok {
			return "missing audit for choice " + letter
		}
	}
	return ""
}

// auditProblem enforces that the audit marks exactly one option correct and
// that it agrees with the declared answer key.
func auditProblem(q *GeneratedQuestion) string {
	correctCount := 0
	correctLetter := ""
	for _, letter := range choiceLetters {
		if q.OptionAudit[letter].Verdict == "correct" {
			correctCount++
			correctLetter = letter
		}
	}
	if correctCount != 1 {
		return fmt.Sprintf("audit marks %d options correct, want exactly 1", correctCount)
	}
	if correctLetter != q.Correct {
		return fmt.Sprintf("audit says %s is correct but answer key says %s", correctLetter, q.Correct)
	}
	return ""
}

// evidenceProblem verifies every quote the draft leans on actually appears in
// the chunk: the question's evidence spans, each option audit's cited
// evidence, and the claim's own quotes. Empty citations are allowed; an audit
// may state absence of evidence in its justification instead.
func evidenceProblem(q *GeneratedQuestion, claim TestableClaim) string {
	if len(q.EvidenceSpans) == 0 {
		return "no evidence spans cited"
	}
	haystack := foldForMatch(claim.ChunkText)
	for _, span := range q.EvidenceSpans {
		needle := foldForMatch(span)
		if needle == "" {
			continue
		}
		if !strings.Contains(haystack, needle) {
			return fmt.Sprintf("evidence span not found in source: %q", truncate(span, 120))
		}
	}
	for _, letter := range choiceLetters {
		cited := q.OptionAudit[letter].Evidence
		needle := foldForMatch(cited)
		if needle == "" {
			continue
		}
		if !strings.Contains(haystack, needle) {
			return fmt.Sprintf("audit evidence for option %s not found in source: %q", letter, truncate(cited, 120))
		}
	}
	for _, ev := range claim.Evidence {
		needle := foldForMatch(ev.Quote)
		if needle == "" {
			continue
		}
		if !strings.Contains(haystack, needle) {
			return fmt.Sprintf("claim quote not found in source: %q", truncate(ev.Quote, 120))
		}
	}
	return ""
}

// foldForMatch lowercases and collapses runs of whitespace so quotes survive
// line wrapping in the source.
func foldForMatch(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

func clampDifficulty(d int) int {
	if d < 1 {
		return 3
	}
	if d > 5 {
		return 5
	}
	return d
}

func mcqSchema() map[string]any {
	auditEntry := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"verdict":  map[string]any{"type": "string", "enum": []string{"correct", "incorrect"}},
			"why":      map[string]any{"type": "string"},
			"evidence": map[string]any{"type": "string"},
		},
		"required":             []string{"verdict", "why", "evidence"},
		"additionalProperties": false,
	}

	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"cannot_create": map[string]any{"type": "boolean"},
			"reason":        map[string]any{"type": "string"},
			"stem":          map[string]any{"type": "string"},
			"choices": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"A": map[string]any{"type": "string"},
					"B": map[string]any{"type": "string"},
					"C": map[string]any{"type": "string"},
					"D": map[string]any{"type": "string"},
				},
				"required":             []string{"A", "B", "C", "D"},
				"additionalProperties": false,
			},
			"correct":     map[string]any{"type": "string", "enum": []string{"A", "B", "C", "D"}},
			"explanation": map[string]any{"type": "string"},
			"evidence_spans": map[string]any{
				"type":  "array",
				"items": map[string]any{"type": "string"},
			},
			"option_audit": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"A": auditEntry,
					"B": auditEntry,
					"C": auditEntry,
					"D": auditEntry,
				},
				"required":             []string{"A", "B", "C", "D"},
				"additionalProperties": false,
			},
			"difficulty_1to5": map[string]any{"type": "integer", "minimum": 1, "maximum": 5},
			"confidence_0to1": map[string]any{"type": "number", "minimum": 0, "maximum": 1},
			"distractor_rationales": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"choice": map[string]any{"type": "string"},
						"kind":   map[string]any{"type": "string"},
						"note":   map[string]any{"type": "string"},
					},
					"required":             []string{"choice", "kind", "note"},
					"additionalProperties": false,
				},
			},
		},
		"required": []string{
			"cannot_create", "reason", "stem", "choices", "correct",
			"explanation", "evidence_spans", "option_audit", "difficulty_1to5",
			"confidence_0to1", "distractor_rationales",
		},
		"additionalProperties": false,
	}
}
