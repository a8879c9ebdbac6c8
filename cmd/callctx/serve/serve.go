// Package servecmder provides the serve command that runs the callctx API
// and MCP server.
package servecmder

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/callctx/api"
	"github.com/papercomputeco/callctx/api/mcp"
	"github.com/papercomputeco/callctx/pkg/config"
	"github.com/papercomputeco/callctx/pkg/engine"
	"github.com/papercomputeco/callctx/pkg/logger"
)

type ServeCommander struct {
	flags     serveFlags
	configDir string
	debug     bool
	logFile   string
	logger    *slog.Logger
}

// serveFlags only hold flag storage; values are read back through config.Resolve.
type serveFlags struct {
	listen         string
	remoteTarget   string
	remoteProvider string
	localGPU       bool
	localTarget    string
	model          string
	dimensions     uint
	cacheTarget    string
	cacheTTL       uint
	storeProvider  string
	storeTarget    string
	tokenBudget    uint
	topK           uint
	eventBrokers   string
}

var serveFlagKeys = []string{
	config.FlagAPIListen,
	config.FlagRemoteTarget,
	config.FlagRemoteProvider,
	config.FlagLocalGPU,
	config.FlagLocalTarget,
	config.FlagEmbeddingModel,
	config.FlagEmbeddingDims,
	config.FlagCacheTarget,
	config.FlagCacheTTL,
	config.FlagVectorStoreProv,
	config.FlagVectorStoreTgt,
	config.FlagTokenBudget,
	config.FlagTopK,
	config.FlagEventBrokers,
}

const serveLongDesc string = `Run the callctx server.

The server exposes the embedding, ingest and context endpoints over HTTP
and the search_customer_context tool over MCP at /mcp.

Embeddings are generated by the first healthy backend in the chain: the
remote service when --remote-target is set, the local GPU backend when
--local-gpu is enabled, then the CPU backend, which is always available.

Examples:
  callctx serve
  callctx serve --listen :9000 --cache-target memory://
  callctx serve --log-file ~/.callctx/serve.log
  callctx serve --remote-target http://gpu-box:8000 --vector-store-provider qdrant --vector-store-target localhost:6334`

const serveShortDesc string = "Run the callctx server"

func NewServeCmd() *cobra.Command {
	cmder := &ServeCommander{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: serveShortDesc,
		Long:  serveLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %w", err)
			}
			cmder.configDir, _ = cmd.Flags().GetString("config-dir")

			cfg, err := config.Resolve(cmd, cmder.configDir, serveFlagKeys...)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			return cmder.run(cmd.Context(), cfg)
		},
	}

	f := &cmder.flags
	config.AddStringFlag(cmd, config.Flags, config.FlagAPIListen, &f.listen)
	config.AddStringFlag(cmd, config.Flags, config.FlagRemoteTarget, &f.remoteTarget)
	config.AddStringFlag(cmd, config.Flags, config.FlagRemoteProvider, &f.remoteProvider)
	config.AddBoolFlag(cmd, config.Flags, config.FlagLocalGPU, &f.localGPU)
	config.AddStringFlag(cmd, config.Flags, config.FlagLocalTarget, &f.localTarget)
	config.AddStringFlag(cmd, config.Flags, config.FlagEmbeddingModel, &f.model)
	config.AddUintFlag(cmd, config.Flags, config.FlagEmbeddingDims, &f.dimensions)
	config.AddStringFlag(cmd, config.Flags, config.FlagCacheTarget, &f.cacheTarget)
	config.AddUintFlag(cmd, config.Flags, config.FlagCacheTTL, &f.cacheTTL)
	config.AddStringFlag(cmd, config.Flags, config.FlagVectorStoreProv, &f.storeProvider)
	config.AddStringFlag(cmd, config.Flags, config.FlagVectorStoreTgt, &f.storeTarget)
	config.AddUintFlag(cmd, config.Flags, config.FlagTokenBudget, &f.tokenBudget)
	config.AddUintFlag(cmd, config.Flags, config.FlagTopK, &f.topK)
	config.AddStringFlag(cmd, config.Flags, config.FlagEventBrokers, &f.eventBrokers)
	cmd.Flags().StringVar(&cmder.logFile, "log-file", "", "Also write JSON logs to this file")

	return cmd
}

// setupLogger builds the pretty terminal logger and, with --log-file, tees
// every record into a JSON file as well.
func (c *ServeCommander) setupLogger(stdout io.Writer) (func(), error) {
	term := logger.New(logger.WithWriter(stdout), logger.WithDebug(c.debug), logger.WithPretty(true))
	if c.logFile == "" {
		c.logger = term
		return func() {}, nil
	}

	fileLog, closer, err := logger.OpenFile(c.logFile, logger.WithDebug(c.debug))
	if err != nil {
		return nil, err
	}
	c.logger = logger.Multi(term, fileLog)
	return func() { _ = closer.Close() }, nil
}

func (c *ServeCommander) run(ctx context.Context, cfg *config.Config) error {
	if ctx == nil {
		ctx = context.Background()
	}
	closeLog, err := c.setupLogger(os.Stdout)
	if err != nil {
		return err
	}
	defer closeLog()

	eng, err := engine.Open(ctx, cfg, engine.Options{
		ConfigDir:     c.configDir,
		WithPublisher: true,
	}, c.logger)
	if err != nil {
		return err
	}

	pool, err := eng.NewIngestPool()
	if err != nil {
		_ = eng.Close()
		return fmt.Errorf("creating ingest pool: %w", err)
	}

	mcpServer, err := mcp.NewServer(mcp.Config{
		Searcher: eng.Retriever,
		Logger:   c.logger,
	})
	if err != nil {
		pool.Close()
		_ = eng.Close()
		return fmt.Errorf("creating MCP server: %w", err)
	}

	server, err := api.NewServer(api.Config{ListenAddr: cfg.API.Listen}, api.Deps{
		Embeddings: eng.Embeddings,
		Ingester:   pool,
		Retriever:  eng.Retriever,
		MCP:        mcpServer.Handler(),
	}, c.logger)
	if err != nil {
		pool.Close()
		_ = eng.Close()
		return fmt.Errorf("creating API server: %w", err)
	}

	c.logger.Info("callctx ready",
		"api_addr", cfg.API.Listen,
		"model", cfg.Embedding.Model,
		"vector_store", cfg.VectorStore.Provider,
	)

	// Channel to capture errors from the server goroutine
	errChan := make(chan error, 1)

	go func() {
		if err := server.Run(); err != nil {
			errChan <- fmt.Errorf("API server error: %w", err)
		}
	}()

	// Wait for interrupt signal or error
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	var runErr error
	select {
	case runErr = <-errChan:
	case sig := <-sigChan:
		c.logger.Info("received signal, shutting down", "signal", sig.String())
	case <-ctx.Done():
	}

	// Stop accepting requests, drain queued ingest jobs, then release stores.
	shutdownErr := server.Shutdown()
	pool.Close()
	closeErr := eng.Close()

	return errors.Join(runErr, shutdownErr, closeErr)
}
