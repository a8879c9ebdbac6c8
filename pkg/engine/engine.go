// Package engine builds the callctx component graph from a resolved Config.
//
// Every command that touches embeddings or the vector store goes through
// Open, so the server and the local CLI paths share one wiring.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/papercomputeco/callctx/pkg/cache"
	cacheutils "github.com/papercomputeco/callctx/pkg/cache/utils"
	"github.com/papercomputeco/callctx/pkg/config"
	"github.com/papercomputeco/callctx/pkg/dotdir"
	"github.com/papercomputeco/callctx/pkg/embeddings/service"
	embeddingutils "github.com/papercomputeco/callctx/pkg/embeddings/utils"
	"github.com/papercomputeco/callctx/pkg/eventstream"
	"github.com/papercomputeco/callctx/pkg/eventstream/kafka"
	"github.com/papercomputeco/callctx/pkg/ingest"
	"github.com/papercomputeco/callctx/pkg/retrieval"
	"github.com/papercomputeco/callctx/pkg/vector"
	vectorutils "github.com/papercomputeco/callctx/pkg/vector/utils"
)

// Options tune Open beyond what the Config carries.
type Options struct {
	// ConfigDir overrides .callctx/ resolution for default SQLite paths.
	ConfigDir string

	// WithPublisher enables the Kafka publisher when brokers are configured.
	WithPublisher bool
}

// Engine holds the wired components. Close releases them in reverse order of
// construction.
type Engine struct {
	Config     *config.Config
	Cache      *cache.Store
	Embeddings *service.Service
	Store      vector.Store
	Retriever  *retrieval.Retriever
	Publisher  eventstream.Publisher

	logger *slog.Logger
}

// Open wires an Engine for cfg. Connections to the cache and model backends
// are opened lazily on first use; the vector store connects immediately.
func Open(ctx context.Context, cfg *config.Config, opts Options, logger *slog.Logger) (*Engine, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if logger == nil {
		return nil, errors.New("logger is required")
	}

	e := &Engine{Config: cfg, logger: logger}

	cacheTarget, err := resolveSQLiteTarget(cfg.Cache.Target, opts.ConfigDir, dotdir.CacheDB)
	if err != nil {
		return nil, err
	}
	e.Cache, err = cacheutils.NewStore(&cacheutils.NewStoreOpts{
		Target:    cacheTarget,
		Namespace: cfg.Cache.Namespace,
		TTL:       time.Duration(cfg.Cache.TTLSeconds) * time.Second,
		Logger:    logger,
	})
	if err != nil {
		return nil, fmt.Errorf("creating embedding cache: %w", err)
	}

	ch, err := embeddingutils.NewChain(&embeddingutils.NewChainOpts{
		RemoteTarget:   cfg.Embedding.RemoteTarget,
		RemoteProvider: cfg.Embedding.RemoteProvider,
		RemoteAPIKey:   cfg.Embedding.RemoteAPIKey,
		LocalGPU:       cfg.Embedding.LocalGPU,
		LocalTarget:    cfg.Embedding.LocalTarget,
		Model:          cfg.Embedding.Model,
		Dimensions:     cfg.Embedding.Dimensions,
		Timeout:        time.Duration(cfg.Embedding.TimeoutMS) * time.Millisecond,
		Logger:         logger,
	})
	if err != nil {
		_ = e.Cache.Close()
		return nil, fmt.Errorf("creating embedding chain: %w", err)
	}

	e.Embeddings = service.New(service.Config{
		Encoder: ch,
		Cache:   e.Cache,
		Model:   cfg.Embedding.Model,
		Logger:  logger,
	})

	storeTarget := cfg.VectorStore.Target
	if cfg.VectorStore.Provider == "sqlite" {
		if storeTarget == "" {
			storeTarget = "sqlite"
		}
		storeTarget, err = resolveSQLiteTarget(storeTarget, opts.ConfigDir, dotdir.VectorsDB)
		if err != nil {
			_ = e.Embeddings.Close()
			return nil, err
		}
	}

	e.Store, err = vectorutils.NewVectorStore(ctx, &vectorutils.NewVectorStoreOpts{
		ProviderType: cfg.VectorStore.Provider,
		Target:       storeTarget,
		APIKey:       cfg.VectorStore.APIKey,
		Dimensions:   cfg.Embedding.Dimensions,
		Logger:       logger,
	})
	if err != nil {
		_ = e.Embeddings.Close()
		return nil, fmt.Errorf("creating vector store: %w", err)
	}

	e.Retriever = retrieval.NewRetriever(e.Store, e.Embeddings, retrieval.Options{
		TopK:           int(cfg.Context.TopK),
		TokenBudget:    int(cfg.Context.TokenBudget),
		CandidateLimit: int(cfg.Context.CandidateLimit),
	}, logger)

	if opts.WithPublisher {
		if brokers := SplitBrokers(cfg.Events.Brokers); len(brokers) > 0 {
			e.Publisher, err = kafka.NewPublisher(kafka.Config{
				Brokers: brokers,
				Topic:   cfg.Events.Topic,
			}, logger)
			if err != nil {
				_ = e.Close()
				return nil, fmt.Errorf("creating event publisher: %w", err)
			}
		}
	}

	logger.Info("engine ready",
		"model", cfg.Embedding.Model,
		"cache_enabled", e.Cache.Enabled(),
		"vector_store", cfg.VectorStore.Provider,
		"events", e.Publisher != nil,
	)

	return e, nil
}

// NewIngestPool returns a worker pool writing into the engine's store.
func (e *Engine) NewIngestPool() (*ingest.Pool, error) {
	return ingest.NewPool(&ingest.Config{
		Store:      e.Store,
		Generator:  e.Embeddings,
		Publisher:  e.Publisher,
		Model:      e.Config.Embedding.Model,
		NumWorkers: e.Config.Ingest.Workers,
		QueueSize:  e.Config.Ingest.QueueSize,
		Logger:     e.logger,
	})
}

// Close releases the publisher, the vector store and the embedding service.
func (e *Engine) Close() error {
	var errs []error
	if e.Publisher != nil {
		errs = append(errs, e.Publisher.Close())
	}
	if e.Store != nil {
		errs = append(errs, e.Store.Close())
	}
	if e.Embeddings != nil {
		errs = append(errs, e.Embeddings.Close())
	}
	return errors.Join(errs...)
}

// SplitBrokers parses a comma-separated broker list, dropping blanks.
func SplitBrokers(s string) []string {
	var out []string
	for _, b := range strings.Split(s, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}

// resolveSQLiteTarget turns the bare "sqlite" target into a database file
// under the .callctx/ directory. Other targets, including the empty one, pass
// through unchanged.
func resolveSQLiteTarget(target, configDir, file string) (string, error) {
	if target != "sqlite" && target != "sqlite://" {
		return target, nil
	}
	t, err := dotdir.NewManager().SQLiteTarget(configDir, file)
	if err != nil {
		return "", fmt.Errorf("resolving %s: %w", file, err)
	}
	return t, nil
}
