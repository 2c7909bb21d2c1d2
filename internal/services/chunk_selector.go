package services

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/examwell/examwell-backend/internal/analysis"
	"github.com/examwell/examwell-backend/internal/logger"
)

// SelectedChunk is a piece of source text the extractor will mine for claims.
// Label is a human-readable citation like "p.12" or "chunk 3".
type SelectedChunk struct {
	Index int
	Label string
	Text  string
}

type ChunkSelectorService interface {
	Select(ctx context.Context, doc *analysis.Document, topic analysis.Topic) []SelectedChunk
}

type chunkSelectorService struct {
	log *logger.Logger
	ai  OpenAIClient
	cfg GenerationConfig
}

func NewChunkSelectorService(baseLog *logger.Logger, ai OpenAIClient, cfg GenerationConfig) ChunkSelectorService {
	return &chunkSelectorService{
		log: baseLog.With("service", "ChunkSelectorService"),
		ai:  ai,
		cfg: cfg,
	}
}

// Select resolves the chunks to mine for a topic. Resolution tiers:
//
//	a. the topic's supporting chunk indices, resolved against the document
//	b. the first FallbackChunkCount raw chunks when none resolve
//	c. a synthesized pseudo-chunk from summaries and key terms when the
//	   document carries no raw chunk text at all
//
// Tier (a) results beyond MaxChunksPerTopic are ranked by embedding
// similarity to the topic description before truncation; if embedding fails
// or no description exists, document order wins.
func (s *chunkSelectorService) Select(ctx context.Context, doc *analysis.Document, topic analysis.Topic) []SelectedChunk {
	byIndex := make(map[int]analysis.Chunk, len(doc.Chunks))
	for _, ch := range doc.Chunks {
		byIndex[ch.Index] = ch
	}

	var selected []SelectedChunk
	seen := make(map[int]bool)
	for _, idx := range topic.SupportingChunks {
		ch, ok := byIndex[idx]
		if !ok || seen[idx] {
			continue
		}
		if strings.TrimSpace(ch.Text) == "" {
			continue
		}
		seen[idx] = true
		selected = append(selected, chunkToSelected(ch))
	}

	if len(selected) > 0 {
		if len(selected) > s.cfg.MaxChunksPerTopic {
			selected = s.rankAndTruncate(ctx, selected, topic)
		}
		return selected
	}

	// Tier b: no supporting chunks resolved; take the leading raw chunks.
	for _, ch := range doc.Chunks {
		if len(selected) >= s.cfg.FallbackChunkCount {
			break
		}
		if strings.TrimSpace(ch.Text) == "" {
			continue
		}
		selected = append(selected, chunkToSelected(ch))
	}
	if len(selected) > 0 {
		return selected
	}

	// Tier c: summary-only documents. Synthesize one pseudo-chunk so the
	// extractor still has something grounded to work from.
	if synth := synthesizeFromSummaries(doc, topic); synth != "" {
		return []SelectedChunk{{Index: -1, Label: "summary", Text: synth}}
	}

	return nil
}

func (s *chunkSelectorService) rankAndTruncate(ctx context.Context, chunks []SelectedChunk, topic analysis.Topic) []SelectedChunk {
	bound := s.cfg.MaxChunksPerTopic
	desc := strings.TrimSpace(topic.Description)
	if desc == "" || s.ai == nil {
		return chunks[:bound]
	}

	inputs := make([]string, 0, len(chunks)+1)
	inputs = append(inputs, desc)
	for _, ch := range chunks {
		inputs = append(inputs, truncate(ch.Text, 2000))
	}

	vecs, err := s.ai.Embed(ctx, inputs)
	if err != nil || len(vecs) != len(inputs) {
		s.log.Warn("Chunk embedding failed; falling back to document order", "topic", topic.Title, "error", fmt.Sprintf("%v", err))
		return chunks[:bound]
	}

	type scored struct {
		chunk SelectedChunk
		score float64
		pos   int
	}
	ranked := make([]scored, len(chunks))
	for i, ch := range chunks {
		ranked[i] = scored{chunk: ch, score: cosine(vecs[0], vecs[i+1]), pos: i}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].score > ranked[j].score
	})
	ranked = ranked[:bound]

	// Restore document order among the survivors so citations read naturally.
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].pos < ranked[j].pos
	})

	out := make([]SelectedChunk, bound)
	for i, r := range ranked {
		out[i] = r.chunk
	}
	return out
}

func chunkToSelected(ch analysis.Chunk) SelectedChunk {
	label := fmt.Sprintf("chunk %d", ch.Index)
	if ch.Page > 0 {
		label = fmt.Sprintf("p.%d", ch.Page)
	}
	return SelectedChunk{Index: ch.Index, Label: label, Text: ch.Text}
}

func synthesizeFromSummaries(doc *analysis.Document, topic analysis.Topic) string {
	var b strings.Builder

	wanted := make(map[int]bool, len(topic.SupportingChunks))
	for _, idx := range topic.SupportingChunks {
		wanted[idx] = true
	}

	appendSummary := func(sum analysis.ChunkSummary) {
		text := strings.TrimSpace(sum.Summary)
		if text == "" {
			return
		}
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(text)
		if len(sum.KeyTerms) > 0 {
			b.WriteString("\nKey terms: ")
			b.WriteString(strings.Join(sum.KeyTerms, ", "))
		}
	}

	// Prefer summaries that belong to the topic's chunks; fall back to all.
	matched := false
	for _, sum := range doc.Summaries {
		if wanted[sum.Index] {
			appendSummary(sum)
			matched = true
		}
	}
	if !matched {
		for _, sum := range doc.Summaries {
			appendSummary(sum)
		}
	}

	if b.Len() == 0 && len(topic.KeyTerms) > 0 {
		b.WriteString(strings.TrimSpace(topic.Description))
		b.WriteString("\nKey terms: ")
		b.WriteString(strings.Join(topic.KeyTerms, ", "))
	}

	return strings.TrimSpace(b.String())
}

func cosine(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
