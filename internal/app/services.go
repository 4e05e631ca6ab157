package app

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/careerlens/careerlens-backend/internal/jobs"
	"github.com/careerlens/careerlens-backend/internal/pkg/logger"
	"github.com/careerlens/careerlens-backend/internal/rag"
	"github.com/careerlens/careerlens-backend/internal/repos"
	"github.com/careerlens/careerlens-backend/internal/transcript"
)

type Repos struct {
	IngestRun repos.IngestRunRepo
}

type Services struct {
	Ingest    jobs.IngestService
	Retriever *rag.ContextAssembler
	Worker    *jobs.Worker
}

func wireRepos(db *gorm.DB, log *logger.Logger) Repos {
	return Repos{
		IngestRun: repos.NewIngestRunRepo(db, log),
	}
}

func wireServices(log *logger.Logger, cfg Config, clients Clients, reposet Repos) (Services, error) {
	log.Info("Wiring services...")

	tokenizer := rag.NewTokenizer()
	chunker := rag.NewChunker(log, tokenizer, cfg.MaxTokensPerChunk)
	embedder := rag.NewEmbedder(log, clients.Cohere, cfg.EmbedBatchSize, cfg.EmbedConcurrency)
	guard := rag.NewMetadataGuard(log, cfg.MetadataMaxBytes, nil)
	writer := rag.NewIndexWriter(log, clients.VectorStore, guard, cfg.UpsertBatchSize)
	retriever := rag.NewContextAssembler(log, embedder, clients.VectorStore, cfg.RetrievalTopK)

	var tagger *rag.CompetencyTagger
	if cfg.CompetencyFile != "" {
		defs, err := rag.LoadCompetencyDefinitions(cfg.CompetencyFile)
		if err != nil {
			return Services{}, fmt.Errorf("load competency definitions: %w", err)
		}
		tagger = rag.NewCompetencyTagger(log, embedder, defs, cfg.CompetencyThreshold, cfg.CompetencyMaxTags)
	}

	worker := jobs.NewWorker(log, cfg.WorkerQueueSize, cfg.WorkerConcurrency)
	status := jobs.NewStatusStore(log, reposet.IngestRun, clients.StatusBus)

	ingest := jobs.NewIngestService(
		log,
		worker,
		status,
		clients.GcsBucket,
		transcript.NewExtractor(log),
		transcript.NewNormalizer(log),
		chunker,
		embedder,
		tagger,
		writer,
		clients.Cohere.Model(),
	)

	return Services{
		Ingest:    ingest,
		Retriever: retriever,
		Worker:    worker,
	}, nil
}
