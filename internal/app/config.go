package app

import (
	"github.com/careerlens/careerlens-backend/internal/pkg/logger"
	"github.com/careerlens/careerlens-backend/internal/utils"
)

type Config struct {
	MaxTokensPerChunk int
	MetadataMaxBytes  int
	UpsertBatchSize   int
	EmbedBatchSize    int
	EmbedConcurrency  int
	RetrievalTopK     int

	CompetencyFile      string
	CompetencyThreshold float64
	CompetencyMaxTags   int

	WorkerQueueSize   int
	WorkerConcurrency int
}

func LoadConfig(log *logger.Logger) Config {
	return Config{
		MaxTokensPerChunk: utils.GetEnvAsInt("MAX_TOKENS_PER_CHUNK", 400, log),
		MetadataMaxBytes:  utils.GetEnvAsInt("METADATA_MAX_BYTES", 40960, log),
		UpsertBatchSize:   utils.GetEnvAsInt("UPSERT_BATCH_SIZE", 100, log),
		EmbedBatchSize:    utils.GetEnvAsInt("EMBED_BATCH_SIZE", 96, log),
		EmbedConcurrency:  utils.GetEnvAsInt("EMBED_CONCURRENCY", 4, log),
		RetrievalTopK:     utils.GetEnvAsInt("RETRIEVAL_TOP_K", 5, log),

		CompetencyFile:      utils.GetEnv("COMPETENCY_FILE", "", log),
		CompetencyThreshold: float64(utils.GetEnvAsInt("COMPETENCY_THRESHOLD_PCT", 25, log)) / 100,
		CompetencyMaxTags:   utils.GetEnvAsInt("COMPETENCY_MAX_TAGS", 3, log),

		WorkerQueueSize:   utils.GetEnvAsInt("WORKER_QUEUE_SIZE", 64, log),
		WorkerConcurrency: utils.GetEnvAsInt("WORKER_CONCURRENCY", 4, log),
	}
}
