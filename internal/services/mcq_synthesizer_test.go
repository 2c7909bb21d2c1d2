package services

import (
	"context"
	"fmt"
	"testing"
)

func validMcqPayload() map[string]any {
	return map[string]any{
		"cannot_create": false,
		"reason":        "",
		"stem":          "What is the average time complexity of quicksort?",
		"choices": map[string]any{
			"A": "O(n log n)",
			"B": "O(n^2)",
			"C": "O(log n)",
			"D": "O(n)",
		},
		"correct":        "A",
		"explanation":    "Quicksort averages O(n log n) because each partition halves the work.",
		"evidence_spans": []any{"average complexity O(n log n)"},
		"option_audit": map[string]any{
			"A": map[string]any{"verdict": "correct", "why": "matches the source", "evidence": "average complexity O(n log n)"},
			"B": map[string]any{"verdict": "incorrect", "why": "that is the worst case", "evidence": "worst case degrades to O(n^2)"},
			"C": map[string]any{"verdict": "incorrect", "why": "confuses with binary search", "evidence": ""},
			"D": map[string]any{"verdict": "incorrect", "why": "ignores the log factor", "evidence": ""},
		},
		"difficulty_1to5": float64(3),
		"confidence_0to1": 0.9,
		"distractor_rationales": []any{
			map[string]any{"choice": "B", "kind": "adjacent_fact", "note": "worst case complexity"},
		},
	}
}

func testClaim() TestableClaim {
	return TestableClaim{
		ID:    "claim-1",
		Claim: "Quicksort averages O(n log n).",
		Type:  ClaimTypeFormula,
		Evidence: []EvidenceQuote{
			{Quote: "average complexity O(n log n)", Page: 4},
		},
		ChunkIndex: 0,
		ChunkLabel: "p.4",
		ChunkText:  "Quicksort has average complexity O(n log n), though the worst case degrades to O(n^2).",
	}
}

func TestSynthesizeAccepted(t *testing.T) {
	ai := &fakeGenerator{responses: []map[string]any{validMcqPayload()}}
	svc := NewMcqSynthesizerService(testLogger(t), ai, testConfig())

	res := svc.Synthesize(context.Background(), "Sorting", testClaim())
	if res.Outcome != SynthesisAccepted {
		t.Fatalf("expected accepted, got %s (%s)", res.Outcome, res.Reason)
	}
	if res.Question == nil || res.Question.Correct != "A" {
		t.Fatalf("question not populated: %#v", res.Question)
	}
	if len(res.Question.DistractorRationales) != 1 {
		t.Fatalf("distractor rationales lost: %#v", res.Question)
	}
}

func TestSynthesizeDeclined(t *testing.T) {
	payload := validMcqPayload()
	payload["cannot_create"] = true
	payload["reason"] = "claim too vague"
	ai := &fakeGenerator{responses: []map[string]any{payload}}
	svc := NewMcqSynthesizerService(testLogger(t), ai, testConfig())

	res := svc.Synthesize(context.Background(), "T", testClaim())
	if res.Outcome != SynthesisDeclined {
		t.Fatalf("expected declined, got %s", res.Outcome)
	}
	if res.Reason != "claim too vague" {
		t.Fatalf("decline reason lost: %q", res.Reason)
	}
}

func TestSynthesizeMalformedOnModelError(t *testing.T) {
	ai := &fakeGenerator{errs: []error{fmt.Errorf("timeout")}}
	svc := NewMcqSynthesizerService(testLogger(t), ai, testConfig())

	res := svc.Synthesize(context.Background(), "T", testClaim())
	if res.Outcome != SynthesisMalformed {
		t.Fatalf("expected malformed, got %s", res.Outcome)
	}
}

func TestSynthesizeMalformedOnMissingChoice(t *testing.T) {
	payload := validMcqPayload()
	payload["choices"] = map[string]any{"A": "only one"}
	ai := &fakeGenerator{responses: []map[string]any{payload}}
	svc := NewMcqSynthesizerService(testLogger(t), ai, testConfig())

	res := svc.Synthesize(context.Background(), "T", testClaim())
	if res.Outcome != SynthesisMalformed {
		t.Fatalf("expected malformed, got %s (%s)", res.Outcome, res.Reason)
	}
}

func TestSynthesizeRejectedOnAuditMismatch(t *testing.T) {
	payload := validMcqPayload()
	audit := payload["option_audit"].(map[string]any)
	audit["B"] = map[string]any{"verdict": "correct", "why": "also plausible", "evidence": ""}
	ai := &fakeGenerator{responses: []map[string]any{payload}}
	svc := NewMcqSynthesizerService(testLogger(t), ai, testConfig())

	res := svc.Synthesize(context.Background(), "T", testClaim())
	if res.Outcome != SynthesisRejected {
		t.Fatalf("expected rejected, got %s (%s)", res.Outcome, res.Reason)
	}
}

func TestSynthesizeRejectedOnLowConfidence(t *testing.T) {
	payload := validMcqPayload()
	payload["confidence_0to1"] = 0.5
	ai := &fakeGenerator{responses: []map[string]any{payload}}
	svc := NewMcqSynthesizerService(testLogger(t), ai, testConfig())

	res := svc.Synthesize(context.Background(), "T", testClaim())
	if res.Outcome != SynthesisRejected {
		t.Fatalf("expected rejected, got %s", res.Outcome)
	}
}

func TestSynthesizeRejectedOnFabricatedEvidence(t *testing.T) {
	payload := validMcqPayload()
	payload["evidence_spans"] = []any{"a quote that appears nowhere"}
	ai := &fakeGenerator{responses: []map[string]any{payload}}
	svc := NewMcqSynthesizerService(testLogger(t), ai, testConfig())

	res := svc.Synthesize(context.Background(), "T", testClaim())
	if res.Outcome != SynthesisRejected {
		t.Fatalf("expected rejected, got %s", res.Outcome)
	}
}

func TestSynthesizeRejectedOnFabricatedAuditEvidence(t *testing.T) {
	payload := validMcqPayload()
	audit := payload["option_audit"].(map[string]any)
	audit["B"] = map[string]any{"verdict": "incorrect", "why": "that is the worst case", "evidence": "a citation from some other chapter"}
	ai := &fakeGenerator{responses: []map[string]any{payload}}
	svc := NewMcqSynthesizerService(testLogger(t), ai, testConfig())

	res := svc.Synthesize(context.Background(), "T", testClaim())
	if res.Outcome != SynthesisRejected {
		t.Fatalf("expected rejected, got %s (%s)", res.Outcome, res.Reason)
	}
}

func TestSynthesizeRejectedOnFabricatedClaimQuote(t *testing.T) {
	ai := &fakeGenerator{responses: []map[string]any{validMcqPayload()}}
	svc := NewMcqSynthesizerService(testLogger(t), ai, testConfig())

	claim := testClaim()
	claim.Evidence = []EvidenceQuote{{Quote: "a quote the chunk never contained", Page: 4}}

	res := svc.Synthesize(context.Background(), "T", claim)
	if res.Outcome != SynthesisRejected {
		t.Fatalf("expected rejected, got %s (%s)", res.Outcome, res.Reason)
	}
}

func TestSynthesizeEvidenceCheckDisabled(t *testing.T) {
	payload := validMcqPayload()
	payload["evidence_spans"] = []any{"a quote that appears nowhere"}
	ai := &fakeGenerator{responses: []map[string]any{payload}}
	cfg := testConfig()
	cfg.EvidenceCheck = false
	svc := NewMcqSynthesizerService(testLogger(t), ai, cfg)

	res := svc.Synthesize(context.Background(), "T", testClaim())
	if res.Outcome != SynthesisAccepted {
		t.Fatalf("expected accepted with check disabled, got %s (%s)", res.Outcome, res.Reason)
	}
}

func TestSynthesizeEvidenceWhitespaceFolded(t *testing.T) {
	payload := validMcqPayload()
	payload["evidence_spans"] = []any{"Average   COMPLEXITY\nO(n log n)"}
	ai := &fakeGenerator{responses: []map[string]any{payload}}
	svc := NewMcqSynthesizerService(testLogger(t), ai, testConfig())

	res := svc.Synthesize(context.Background(), "T", testClaim())
	if res.Outcome != SynthesisAccepted {
		t.Fatalf("whitespace/case folding should match, got %s (%s)", res.Outcome, res.Reason)
	}
}
