package app

import (
	"fmt"
	"os"
	"strings"

	"github.com/careerlens/careerlens-backend/internal/clients/cohere"
	"github.com/careerlens/careerlens-backend/internal/clients/gcp"
	"github.com/careerlens/careerlens-backend/internal/clients/pinecone"
	"github.com/careerlens/careerlens-backend/internal/clients/redis"
	"github.com/careerlens/careerlens-backend/internal/pkg/logger"
)

type Clients struct {
	Cohere      cohere.Client
	Pinecone    pinecone.Client
	VectorStore pinecone.VectorStore
	GcsBucket   gcp.BucketService
	StatusBus   redis.StatusBus
}

func wireClients(log *logger.Logger) (Clients, error) {
	log.Info("Wiring clients...")

	// Redis is optional: without it, status transitions only hit Postgres.
	var bus redis.StatusBus
	if strings.TrimSpace(os.Getenv("REDIS_ADDR")) != "" {
		b, err := redis.NewStatusBus(log)
		if err != nil {
			return Clients{}, fmt.Errorf("init redis status bus: %w", err)
		}
		bus = b
	}

	bucket, err := gcp.NewBucketService(log)
	if err != nil {
		return Clients{}, fmt.Errorf("init bucket client: %w", err)
	}

	cohereClient, err := cohere.New(log, cohere.Config{
		APIKey:  os.Getenv("COHERE_API_KEY"),
		BaseURL: os.Getenv("COHERE_BASE_URL"),
		Model:   os.Getenv("COHERE_EMBED_MODEL"),
	})
	if err != nil {
		return Clients{}, fmt.Errorf("init cohere client: %w", err)
	}

	pineconeClient, err := pinecone.New(log, pinecone.Config{
		APIKey: os.Getenv("PINECONE_API_KEY"),
	})
	if err != nil {
		return Clients{}, fmt.Errorf("init pinecone client: %w", err)
	}

	store, err := pinecone.NewVectorStore(log, pineconeClient)
	if err != nil {
		return Clients{}, fmt.Errorf("init pinecone vector store: %w", err)
	}

	return Clients{
		Cohere:      cohereClient,
		Pinecone:    pineconeClient,
		VectorStore: store,
		GcsBucket:   bucket,
		StatusBus:   bus,
	}, nil
}

func (c *Clients) Close() {
	if c == nil {
		return
	}
	if c.StatusBus != nil {
		_ = c.StatusBus.Close()
	}
	if c.GcsBucket != nil {
		_ = c.GcsBucket.Close()
	}
}
