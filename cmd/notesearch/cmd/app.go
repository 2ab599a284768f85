package cmd

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/notesearch/internal/chunk"
	"github.com/Aman-CERP/notesearch/internal/config"
	"github.com/Aman-CERP/notesearch/internal/embed"
	"github.com/Aman-CERP/notesearch/internal/index"
	"github.com/Aman-CERP/notesearch/internal/keyvalue"
	"github.com/Aman-CERP/notesearch/internal/source"
	"github.com/Aman-CERP/notesearch/internal/vector"
)

// app bundles the wired components behind a command.
type app struct {
	cfg     *config.Config
	src     *source.Source
	kv      *keyvalue.Store
	vectors *vector.Store
	manager *index.Manager
}

// newApp wires a Manager from configuration. The caller must Close it.
func newApp(offline bool) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	src, err := source.New(cfg.Vault.Root, cfg.Vault.ExcludeFolders, nil)
	if err != nil {
		return nil, err
	}

	kv, err := keyvalue.Open(cfg.Vault.StateDir)
	if err != nil {
		return nil, fmt.Errorf("open state dir: %w", err)
	}

	embedder, err := buildEmbedder(cfg, offline)
	if err != nil {
		_ = kv.Close()
		return nil, err
	}

	var vectors *vector.Store
	if embedder != nil {
		vectors = vector.NewStore(kv, vector.Config{
			Provider:   embedder.Provider(),
			Model:      embedder.ModelName(),
			Dimensions: embedder.Dimensions(),
		})
		if err := vectors.LoadMetadata(); err != nil {
			_ = kv.Close()
			return nil, fmt.Errorf("load vector metadata: %w", err)
		}
		if vectors.IsModelChanged() {
			slog.Warn("embedding_model_changed", slog.String("model", embedder.ModelName()))
			if err := vectors.Clear(); err != nil {
				_ = kv.Close()
				return nil, fmt.Errorf("reset vector store: %w", err)
			}
		}
	}

	manager := index.New(index.Config{
		ChunkStrategy:    chunk.Strategy(cfg.Chunking.Strategy),
		ChunkMaxTokens:   cfg.Chunking.MaxTokens,
		ExcludeFolders:   cfg.Vault.ExcludeFolders,
		ProximityEnabled: cfg.Proximity.Enabled,
		BoostFactor:      cfg.Proximity.BoostFactor,
	}, src, vectors, embedder, kv, nil)
	manager.SetEmbeddingEnabled(embedder != nil)

	return &app{cfg: cfg, src: src, kv: kv, vectors: vectors, manager: manager}, nil
}

// buildEmbedder returns nil when embeddings are disabled; offline mode
// swaps in the deterministic static provider.
func buildEmbedder(cfg *config.Config, offline bool) (embed.Embedder, error) {
	if offline {
		return embed.NewCachedEmbedder(embed.NewStaticEmbedder(), 0, nil)
	}
	if !cfg.Embeddings.Enabled {
		return nil, nil
	}
	inner, err := embed.NewOpenAIEmbedder(embed.OpenAIConfig{
		APIKey:     cfg.Embeddings.APIKey,
		BaseURL:    cfg.Embeddings.BaseURL,
		Model:      cfg.Embeddings.Model,
		Dimensions: cfg.Embeddings.Dimensions,
	}, nil)
	if err != nil {
		return nil, err
	}
	return embed.NewCachedEmbedder(inner, 0, nil)
}

// restoreOrBuild prefers the persisted cache and falls back to a full
// rebuild when it cannot be used.
func (a *app) restoreOrBuild(cmd *cobra.Command) error {
	ctx := cmd.Context()
	err := a.manager.BuildIndexFromCache(ctx)
	if err == nil {
		return nil
	}
	if !errors.Is(err, index.ErrCacheInvalid) {
		return err
	}
	return a.manager.BuildIndex(ctx)
}

func (a *app) Close() {
	a.manager.Close()
	if err := a.kv.Close(); err != nil {
		slog.Warn("state_close_failed", slog.String("error", err.Error()))
	}
}
