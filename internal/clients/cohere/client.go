package cohere

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/careerlens/careerlens-backend/internal/pkg/logger"
)

// Client calls the Cohere embed endpoint. Input type is passed through
// untouched: ingestion uses "search_document", retrieval "search_query".
type Client interface {
	Embed(ctx context.Context, texts []string, inputType string) ([][]float32, error)
	Model() string
}

type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
	// HTTPClient overrides the default client; tests stub the transport here.
	HTTPClient *http.Client
}

type client struct {
	log  *logger.Logger
	cfg  Config
	http *http.Client
}

func New(log *logger.Logger, cfg Config) (Client, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("missing Cohere API key")
	}
	if strings.TrimSpace(cfg.BaseURL) == "" {
		cfg.BaseURL = "https://api.cohere.com"
	}
	if strings.TrimSpace(cfg.Model) == "" {
		cfg.Model = "embed-multilingual-v3.0"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	return &client{
		log:  log.With("client", "CohereClient"),
		cfg:  cfg,
		http: httpClient,
	}, nil
}

func (c *client) Model() string { return c.cfg.Model }

type embedRequest struct {
	Model     string   `json:"model"`
	InputType string   `json:"input_type"`
	Texts     []string `json:"texts"`
	Truncate  string   `json:"truncate,omitempty"`
}

type embedResponse struct {
	ID         string      `json:"id"`
	Embeddings [][]float64 `json:"embeddings"`
}

func (c *client) Embed(ctx context.Context, texts []string, inputType string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	if strings.TrimSpace(inputType) == "" {
		inputType = "search_document"
	}

	req := embedRequest{
		Model:     c.cfg.Model,
		InputType: inputType,
		Texts:     texts,
		Truncate:  "END",
	}

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(req); err != nil {
		return nil, err
	}

	u := strings.TrimRight(c.cfg.BaseURL, "/") + "/v1/embed"
	httpReq, err := http.NewRequestWithContext(ctx, "POST", u, &buf)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("cohere embed http %d: %s", resp.StatusCode, string(raw))
	}

	var out embedResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("cohere embed decode: %w", err)
	}
	if len(out.Embeddings) != len(texts) {
		return nil, fmt.Errorf("cohere embed returned %d embeddings for %d texts", len(out.Embeddings), len(texts))
	}

	vectors := make([][]float32, len(out.Embeddings))
	for i, emb := range out.Embeddings {
		vec := make([]float32, len(emb))
		for j, f := range emb {
			vec[j] = float32(f)
		}
		vectors[i] = vec
	}
	return vectors, nil
}
