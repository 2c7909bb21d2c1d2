package analysis

import (
	"encoding/json"
	"fmt"
	"strings"
)

// rawDocument accepts every shape the analysis step has produced so far:
// v1 (topics + chunks), v2 (+topic codes), v3 (+chunk summaries, key terms),
// v4 (+chunk kinds and page numbers).
type rawDocument struct {
	SchemaVersion int            `json:"schema_version"`
	Topics        []rawTopic     `json:"topics"`
	Chunks        []rawChunk     `json:"chunks"`
	Summaries     []rawSummary   `json:"chunk_summaries"`
	Meta          map[string]any `json:"meta"`
}

type rawTopic struct {
	Title            string   `json:"title"`
	Code             string   `json:"code"`
	Description      string   `json:"description"`
	SupportingChunks []int    `json:"supporting_chunks"`
	KeyTerms         []string `json:"key_terms"`
}

type rawChunk struct {
	Index int    `json:"index"`
	Kind  string `json:"type"`
	Page  int    `json:"page"`
	Text  string `json:"text"`
}

type rawSummary struct {
	Index    int      `json:"index"`
	Summary  string   `json:"summary"`
	KeyTerms []string `json:"key_terms"`
}

// Normalize decodes a stored analysis document into the canonical shape.
// Fields absent in older schema versions come back empty, never nil slices.
func Normalize(raw []byte) (*Document, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("empty analysis document")
	}

	var rd rawDocument
	if err := json.Unmarshal(raw, &rd); err != nil {
		return nil, fmt.Errorf("decode analysis document: %w", err)
	}

	doc := &Document{
		SchemaVersion: rd.SchemaVersion,
		Topics:        make([]Topic, 0, len(rd.Topics)),
		Chunks:        make([]Chunk, 0, len(rd.Chunks)),
		Summaries:     make([]ChunkSummary, 0, len(rd.Summaries)),
	}
	if doc.SchemaVersion < 1 {
		doc.SchemaVersion = 1
	}

	for _, t := range rd.Topics {
		title := strings.TrimSpace(t.Title)
		if title == "" {
			continue
		}
		topic := Topic{
			Title:            title,
			Code:             strings.TrimSpace(t.Code),
			Description:      strings.TrimSpace(t.Description),
			SupportingChunks: t.SupportingChunks,
			KeyTerms:         t.KeyTerms,
		}
		if topic.SupportingChunks == nil {
			topic.SupportingChunks = []int{}
		}
		if topic.KeyTerms == nil {
			topic.KeyTerms = []string{}
		}
		doc.Topics = append(doc.Topics, topic)
	}

	for i, c := range rd.Chunks {
		idx := c.Index
		if idx == 0 && i > 0 {
			// v1 payloads omit indices; fall back to position.
			idx = i
		}
		text := strings.TrimSpace(c.Text)
		if text == "" {
			continue
		}
		doc.Chunks = append(doc.Chunks, Chunk{
			Index: idx,
			Kind:  strings.TrimSpace(c.Kind),
			Page:  c.Page,
			Text:  text,
		})
	}

	for _, s := range rd.Summaries {
		summary := strings.TrimSpace(s.Summary)
		if summary == "" {
			continue
		}
		terms := s.KeyTerms
		if terms == nil {
			terms = []string{}
		}
		doc.Summaries = append(doc.Summaries, ChunkSummary{
			Index:    s.Index,
			Summary:  summary,
			KeyTerms: terms,
		})
	}

	return doc, nil
}
