package services

import (
	"strings"
	"unicode"

	"github.com/examwell/examwell-backend/internal/analysis"
	"github.com/examwell/examwell-backend/internal/logger"
	"github.com/examwell/examwell-backend/internal/types"
)

// TopicMatch pairs a platform topic with the analysis topic it matched and
// records which rule produced the match.
type TopicMatch struct {
	Topic    *types.Topic
	Analysis analysis.Topic
	Score    float64
	Rule     string
}

type TopicMatcherService interface {
	Match(platformTopics []*types.Topic, docTopics []analysis.Topic) []TopicMatch
}

type topicMatcherService struct {
	log *logger.Logger
}

func NewTopicMatcherService(baseLog *logger.Logger) TopicMatcherService {
	return &topicMatcherService{log: baseLog.With("service", "TopicMatcherService")}
}

// Match resolves each platform topic against the full document topic list.
// Rules are tried in order and the first hit wins:
//  1. exact case-insensitive title match
//  2. normalized code match (lowercase alphanumerics only)
//  3. title substring containment either direction
//  4. title keyword overlap scoring, accepted only above 0.3
//
// A document topic may serve several platform topics.
func (s *topicMatcherService) Match(platformTopics []*types.Topic, docTopics []analysis.Topic) []TopicMatch {
	matches := make([]TopicMatch, 0, len(platformTopics))

	for _, pt := range platformTopics {
		if pt == nil {
			continue
		}
		idx, score, rule := s.matchOne(pt, docTopics)
		if idx < 0 {
			continue
		}
		matches = append(matches, TopicMatch{
			Topic:    pt,
			Analysis: docTopics[idx],
			Score:    score,
			Rule:     rule,
		})
	}

	return matches
}

func (s *topicMatcherService) matchOne(pt *types.Topic, docTopics []analysis.Topic) (int, float64, string) {
	ptTitle := strings.ToLower(strings.TrimSpace(pt.Title))
	ptCode := normalizeCode(pt.Code)

	for i, dt := range docTopics {
		if ptTitle != "" && ptTitle == strings.ToLower(strings.TrimSpace(dt.Title)) {
			return i, 1.0, "exact_title"
		}
	}

	if ptCode != "" {
		for i, dt := range docTopics {
			if normalizeCode(dt.Code) == ptCode {
				return i, 1.0, "code"
			}
		}
	}

	for i, dt := range docTopics {
		dtTitle := strings.ToLower(strings.TrimSpace(dt.Title))
		if ptTitle == "" || dtTitle == "" {
			continue
		}
		if strings.Contains(dtTitle, ptTitle) || strings.Contains(ptTitle, dtTitle) {
			return i, 0.9, "substring"
		}
	}

	// Keyword overlap over title tokens only, weighted by a smaller
	// contribution from description overlap.
	ptTokens := tokenSet(pt.Title)
	ptDesc := tokenSet(pt.Description)

	bestIdx := -1
	bestScore := 0.0
	for i, dt := range docTopics {
		score := overlap(ptTokens, tokenSet(dt.Title))
		score += 0.5 * overlap(ptDesc, tokenSet(dt.Description))
		if score > bestScore {
			bestScore = score
			bestIdx = i
		}
	}

	if bestIdx >= 0 && bestScore > 0.3 {
		if bestScore > 1.0 {
			bestScore = 1.0
		}
		return bestIdx, bestScore, "keywords"
	}

	return -1, 0, ""
}

// normalizeCode strips everything but letters and digits and lowercases, so
// "CS-101", "cs 101" and "cs101" all compare equal.
func normalizeCode(code string) string {
	var b strings.Builder
	for _, r := range code {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(unicode.ToLower(r))
		}
	}
	return b.String()
}

func tokenSet(s string) map[string]bool {
	out := make(map[string]bool)
	var cur strings.Builder
	flush := func() {
		if cur.Len() > 2 {
			out[cur.String()] = true
		}
		cur.Reset()
	}
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			cur.WriteRune(r)
		} else {
			flush()
		}
	}
	flush()
	return out
}

func overlap(a, b map[string]bool) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	common := 0
	for tok := range a {
		if b[tok] {
			common++
		}
	}
	denom := len(a)
	if len(b) > denom {
		denom = len(b)
	}
	return float64(common) / float64(denom)
}
