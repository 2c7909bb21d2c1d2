package services

import (
	"github.com/examwell/examwell-backend/internal/logger"
	"github.com/examwell/examwell-backend/internal/utils"
)

// GenerationConfig carries every pipeline tunable. It is built once at wiring
// time and passed by value; the pipeline never reads the environment itself.
type GenerationConfig struct {
	MaxClaimsPerChunk    int
	MaxQuestionsPerTopic int
	MaxChunksPerTopic    int
	FallbackChunkCount   int
	MinConfidence        float64
	EvidenceCheck        bool
	PipelineVersion      string
}

func LoadGenerationConfig(log *logger.Logger) GenerationConfig {
	return GenerationConfig{
		MaxClaimsPerChunk:    utils.GetEnvAsInt("GEN_MAX_CLAIMS_PER_CHUNK", 12, log),
		MaxQuestionsPerTopic: utils.GetEnvAsInt("GEN_MAX_QUESTIONS_PER_TOPIC", 8, log),
		MaxChunksPerTopic:    utils.GetEnvAsInt("GEN_MAX_CHUNKS_PER_TOPIC", 6, log),
		FallbackChunkCount:   utils.GetEnvAsInt("GEN_FALLBACK_CHUNK_COUNT", 3, log),
		MinConfidence:        utils.GetEnvAsFloat("GEN_MIN_CONFIDENCE", 0.7, log),
		EvidenceCheck:        utils.GetEnvAsBool("GEN_EVIDENCE_CHECK", true, log),
		PipelineVersion:      utils.GetEnv("GEN_PIPELINE_VERSION", "qgen-v1", log),
	}
}
