// chartdex indexes clinical text chunks and answers relevance queries
// with multi-hop retrieval. This entrypoint wires the driven adapters
// (embedding, vector index, metadata store, keyword index) into the
// core services and hands control to the CLI.
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"

	"github.com/custodia-labs/chartdex/internal/adapters/driven/config/file"
	"github.com/custodia-labs/chartdex/internal/adapters/driven/embedding/ollama"
	"github.com/custodia-labs/chartdex/internal/adapters/driven/embedding/openai"
	"github.com/custodia-labs/chartdex/internal/adapters/driven/keyword"
	"github.com/custodia-labs/chartdex/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/chartdex/internal/adapters/driven/vector"
	"github.com/custodia-labs/chartdex/internal/adapters/driving/cli"
	"github.com/custodia-labs/chartdex/internal/core/cache"
	"github.com/custodia-labs/chartdex/internal/core/ports/driven"
	"github.com/custodia-labs/chartdex/internal/core/services"
	"github.com/custodia-labs/chartdex/internal/logger"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Optional .env for local development; absence is not an error.
	_ = godotenv.Load()

	cfg, err := file.NewConfigStore("")
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	dataDir := cfg.GetString(file.KeyDataDir)
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("resolving home directory: %w", err)
		}
		dataDir = filepath.Join(home, ".chartdex", "data")
	}
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}

	embedder, err := newEmbedder(cfg)
	if err != nil {
		return err
	}
	defer embedder.Close()

	vectors, err := vector.New(filepath.Join(dataDir, "vectors"), embedder.Dimensions())
	if err != nil {
		return fmt.Errorf("opening vector index: %w", err)
	}
	defer vectors.Close()

	keywords, err := keyword.New(dataDir)
	if err != nil {
		return fmt.Errorf("opening keyword index: %w", err)
	}
	defer keywords.Close()

	metaStore, err := sqlite.NewStore(dataDir)
	if err != nil {
		return fmt.Errorf("opening metadata store: %w", err)
	}
	defer metaStore.Close()

	metaCache := cache.New()
	snapshotPath := filepath.Join(dataDir, "cache.json")

	pipeline := services.NewIndexingPipeline(embedder, vectors, metaStore, keywords, metaCache, snapshotPath)
	if err := pipeline.WarmStart(context.Background()); err != nil {
		// A corrupt or stale on-disk state should not block the CLI;
		// the index simply starts cold.
		logger.Warn("Warm start failed, starting cold: %v", err)
	}

	retriever := services.NewMultiHopRetriever(embedder, vectors, metaStore, keywords, metaCache)

	cli.SetServices(pipeline, retriever)
	return cli.Execute()
}

// newEmbedder selects the embedding provider. An explicit config entry
// wins; otherwise OPENAI_API_KEY selects OpenAI and Ollama is the
// local fallback.
func newEmbedder(cfg *file.ConfigStore) (driven.EmbeddingService, error) {
	provider := cfg.GetString(file.KeyEmbeddingProvider)
	apiKey := os.Getenv("OPENAI_API_KEY")
	if provider == "" {
		if apiKey != "" {
			provider = "openai"
		} else {
			provider = "ollama"
		}
	}

	switch provider {
	case "openai":
		svc, err := openai.NewEmbeddingService(openai.Config{
			APIKey:            apiKey,
			BaseURL:           cfg.GetString(file.KeyEmbeddingBaseURL),
			Model:             cfg.GetString(file.KeyEmbeddingModel),
			Dimensions:        cfg.GetInt(file.KeyEmbeddingDims),
			RequestsPerSecond: cfg.GetFloat(file.KeyRequestsPerSecond),
		})
		if err != nil {
			return nil, fmt.Errorf("configuring openai embeddings: %w", err)
		}
		return svc, nil
	case "ollama":
		return ollama.NewEmbeddingService(ollama.Config{
			BaseURL:    cfg.GetString(file.KeyEmbeddingBaseURL),
			Model:      cfg.GetString(file.KeyEmbeddingModel),
			Dimensions: cfg.GetInt(file.KeyEmbeddingDims),
		}), nil
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", provider)
	}
}
