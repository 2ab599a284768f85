package embed

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

const (
	// DefaultOpenAIModel is used when the config names no model.
	DefaultOpenAIModel = "text-embedding-3-small"

	// DefaultDimensions matches text-embedding-3-small.
	DefaultDimensions = 1536

	defaultMaxRetries = 3
)

// OpenAIConfig configures an OpenAI-backed embedder.
type OpenAIConfig struct {
	APIKey     string
	BaseURL    string // optional, for API-compatible endpoints
	Model      string
	Dimensions int
	MaxRetries int
}

// OpenAIEmbedder calls the OpenAI embeddings API.
type OpenAIEmbedder struct {
	client     *openai.Client
	model      string
	dimensions int
	maxRetries int
	logger     *slog.Logger
}

var _ Embedder = (*OpenAIEmbedder)(nil)

// NewOpenAIEmbedder builds an embedder from cfg. The API key is required;
// everything else falls back to defaults.
func NewOpenAIEmbedder(cfg OpenAIConfig, logger *slog.Logger) (*OpenAIEmbedder, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("embed: openai api key is required")
	}
	if cfg.Model == "" {
		cfg.Model = DefaultOpenAIModel
	}
	if cfg.Dimensions <= 0 {
		cfg.Dimensions = DefaultDimensions
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = defaultMaxRetries
	}
	if logger == nil {
		logger = slog.Default()
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	return &OpenAIEmbedder{
		client:     openai.NewClientWithConfig(clientCfg),
		model:      cfg.Model,
		dimensions: cfg.Dimensions,
		maxRetries: cfg.MaxRetries,
		logger:     logger.With("component", "embed.openai"),
	}, nil
}

// embeddingRequest builds the API request. Dimensions is always sent so
// the returned vectors match what the store metadata records.
func (e *OpenAIEmbedder) embeddingRequest(texts []string) openai.EmbeddingRequest {
	return openai.EmbeddingRequest{
		Model:      openai.EmbeddingModel(e.model),
		Input:      texts,
		Dimensions: e.dimensions,
	}
}

// EmbedBatch embeds all texts in one API request, retrying transient
// failures with exponential backoff.
func (e *OpenAIEmbedder) EmbedBatch(ctx context.Context, texts []string) (*Batch, error) {
	if len(texts) == 0 {
		return nil, ErrEmptyInput
	}

	req := e.embeddingRequest(texts)

	var resp openai.EmbeddingResponse
	var err error
	for attempt := 0; attempt <= e.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(100<<attempt) * time.Millisecond
			e.logger.Debug("embed_retry",
				slog.Int("attempt", attempt),
				slog.Duration("backoff", backoff))
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		}
		resp, err = e.client.CreateEmbeddings(ctx, req)
		if err == nil {
			break
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, fmt.Errorf("embed: create embeddings: %w", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("embed: got %d embeddings for %d texts", len(resp.Data), len(texts))
	}

	batch := &Batch{
		Embeddings:  make([][]float32, len(resp.Data)),
		TotalTokens: resp.Usage.TotalTokens,
	}
	for i, d := range resp.Data {
		batch.Embeddings[i] = d.Embedding
	}
	return batch, nil
}

// Embed embeds a single text.
func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	batch, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return batch.Embeddings[0], nil
}

func (e *OpenAIEmbedder) Dimensions() int   { return e.dimensions }
func (e *OpenAIEmbedder) ModelName() string { return e.model }
func (e *OpenAIEmbedder) Provider() string  { return "openai" }
