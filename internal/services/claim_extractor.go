package services

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/examwell/examwell-backend/internal/logger"
)

const (
	ClaimTypeProcedure  = "procedure"
	ClaimTypeFormula    = "formula"
	ClaimTypeConceptual = "conceptual"
	ClaimTypeExample    = "example"
	ClaimTypePitfall    = "pitfall"
	ClaimTypeDefinition = "definition"
)

// claimTypeRank orders claims by how well each type tends to produce
// discriminating questions. Unknown types sort last.
var claimTypeRank = map[string]int{
	ClaimTypeProcedure:  0,
	ClaimTypeFormula:    1,
	ClaimTypeConceptual: 2,
	ClaimTypeExample:    3,
	ClaimTypePitfall:    4,
	ClaimTypeDefinition: 5,
}

type EvidenceQuote struct {
	Quote string `json:"quote"`
	Page  int    `json:"page,omitempty"`
}

// TestableClaim is a single fact mined from a chunk, carrying enough context
// for the synthesizer to write and audit a question without re-reading the
// document.
type TestableClaim struct {
	ID               string          `json:"id"`
	Claim            string          `json:"claim"`
	Type             string          `json:"type"`
	Evidence         []EvidenceQuote `json:"evidence"`
	CommonConfusions []string        `json:"common_confusions"`
	ChunkIndex       int             `json:"chunk_index"`
	ChunkText        string          `json:"-"`
	ChunkLabel       string          `json:"chunk_label"`
}

type ClaimExtractorService interface {
	Extract(ctx context.Context, topicTitle string, chunk SelectedChunk) []TestableClaim
}

type claimExtractorService struct {
	log *logger.Logger
	ai  OpenAIClient
	cfg GenerationConfig
}

func NewClaimExtractorService(baseLog *logger.Logger, ai OpenAIClient, cfg GenerationConfig) ClaimExtractorService {
	return &claimExtractorService{
		log: baseLog.With("service", "ClaimExtractorService"),
		ai:  ai,
		cfg: cfg,
	}
}

// Extract mines one chunk for testable claims. Failures are soft: a broken
// model call yields an empty list and the pipeline moves to the next chunk.
func (s *claimExtractorService) Extract(ctx context.Context, topicTitle string, chunk SelectedChunk) []TestableClaim {
	system := "You extract testable claims from course material for question generation. " +
		"A testable claim is a single, self-contained fact a student could be quizzed on. " +
		"Only extract claims directly supported by the provided text. Quote evidence verbatim."

	user := fmt.Sprintf(
		"Topic: %s\nSource (%s):\n%s\n\nExtract at most %d testable claims. For each claim, classify its type as one of: procedure, formula, conceptual, example, pitfall, definition. Include 1-2 verbatim evidence quotes and any confusions students commonly have.",
		topicTitle, chunk.Label, truncate(chunk.Text, 8000), s.cfg.MaxClaimsPerChunk,
	)

	obj, err := s.ai.GenerateJSON(ctx, system, user, "testable_claims", claimExtractionSchema())
	if err != nil {
		s.log.Warn("Claim extraction failed; skipping chunk",
			"topic", topicTitle,
			"chunk", chunk.Label,
			"error", err.Error(),
		)
		return nil
	}

	raw := toMapSlice(obj["claims"])
	claims := make([]TestableClaim, 0, len(raw))
	for _, m := range raw {
		claimText := strings.TrimSpace(stringFromAny(m["claim"]))
		if claimText == "" {
			continue
		}

		var evidence []EvidenceQuote
		for _, ev := range toMapSlice(m["evidence"]) {
			quote := strings.TrimSpace(stringFromAny(ev["quote"]))
			if quote == "" {
				continue
			}
			evidence = append(evidence, EvidenceQuote{
				Quote: quote,
				Page:  intFromAny(ev["page"]),
			})
		}
		if len(evidence) == 0 {
			continue
		}

		id := strings.TrimSpace(stringFromAny(m["claim_id"]))
		if id == "" {
			id = uuid.NewString()
		}
		claims = append(claims, TestableClaim{
			ID:               id,
			Claim:            claimText,
			Type:             normalizeClaimType(stringFromAny(m["claim_type"])),
			Evidence:         evidence,
			CommonConfusions: toStringSlice(m["common_confusions"]),
			ChunkIndex:       chunk.Index,
			ChunkText:        chunk.Text,
			ChunkLabel:       chunk.Label,
		})
		if len(claims) >= s.cfg.MaxClaimsPerChunk {
			break
		}
	}

	return claims
}

func normalizeClaimType(t string) string {
	t = strings.ToLower(strings.TrimSpace(t))
	if _, ok := claimTypeRank[t]; ok {
		return t
	}
	return ClaimTypeConceptual
}

// SortClaimsByPriority orders claims by type rank, keeping the original order
// within each type.
func SortClaimsByPriority(claims []TestableClaim) {
	sort.SliceStable(claims, func(i, j int) bool {
		ri, ok := claimTypeRank[claims[i].Type]
		if !ok {
			ri = len(claimTypeRank)
		}
		rj, ok := claimTypeRank[claims[j].Type]
		if !ok {
			rj = len(claimTypeRank)
		}
		return ri < rj
	})
}

func claimExtractionSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"claims": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"claim_id": map[string]any{"type": "string"},
						"claim":    map[string]any{"type": "string"},
						"claim_type": map[string]any{
							"type": "string",
							"enum": []string{
								ClaimTypeProcedure, ClaimTypeFormula, ClaimTypeConceptual,
								ClaimTypeExample, ClaimTypePitfall, ClaimTypeDefinition,
							},
						},
						"evidence": map[string]any{
							"type": "array",
							"items": map[string]any{
								"type": "object",
								"properties": map[string]any{
									"quote": map[string]any{"type": "string"},
									"page":  map[string]any{"type": "integer"},
								},
								"required":             []string{"quote", "page"},
								"additionalProperties": false,
							},
						},
						"common_confusions": map[string]any{
							"type":  "array",
							"items": map[string]any{"type": "string"},
						},
					},
					"required":             []string{"claim_id", "claim", "claim_type", "evidence", "common_confusions"},
					"additionalProperties": false,
				},
			},
		},
		"required":             []string{"claims"},
		"additionalProperties": false,
	}
}
