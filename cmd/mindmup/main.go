package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/dshills/mindmup-mcp/internal/cache"
	"github.com/dshills/mindmup-mcp/internal/chunker"
	"github.com/dshills/mindmup-mcp/internal/config"
	"github.com/dshills/mindmup-mcp/internal/fetcher"
	"github.com/dshills/mindmup-mcp/internal/httpapi"
	"github.com/dshills/mindmup-mcp/internal/logger"
	"github.com/dshills/mindmup-mcp/internal/mcp"
	"github.com/dshills/mindmup-mcp/internal/metrics"
	"github.com/dshills/mindmup-mcp/internal/mindmap"
	"github.com/dshills/mindmup-mcp/internal/parser"
	"github.com/dshills/mindmup-mcp/internal/remote"
	"github.com/dshills/mindmup-mcp/internal/storage"
	"github.com/dshills/mindmup-mcp/internal/strategy"
	"github.com/dshills/mindmup-mcp/pkg/types"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

const usage = `Usage:
  mindmup [serve]                      run the MCP server (transport from config)
  mindmup import [-id ID] [-parent FOLDER] FILE...
                                       validate and store mind map files in the SQLite store
  mindmup --version                    print build information
`

func main() {
	args := os.Args[1:]
	cmd := "serve"
	if len(args) > 0 {
		cmd, args = args[0], args[1:]
	}

	var err error
	switch cmd {
	case "--version", "version":
		printVersion()
		return
	case "serve":
		err = serve()
	case "import":
		err = importFiles(args)
	case "-h", "--help", "help":
		fmt.Fprint(os.Stderr, usage)
		return
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", cmd, usage)
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "mindmup: %v\n", err)
		os.Exit(1)
	}
}

func printVersion() {
	fmt.Printf("MindMup MCP Server\n")
	fmt.Printf("Version: %s\n", version)
	fmt.Printf("Build Time: %s\n", buildTime)
	fmt.Printf("Build Mode: %s\n", storage.BuildMode)
	fmt.Printf("SQLite Driver: %s\n", storage.DriverName)
}

// setup loads configuration and builds the logger. Logs go to stderr;
// stdout is reserved for the MCP protocol.
func setup() (config.Config, *zap.Logger, error) {
	env := config.GetEnv()
	cfg, err := config.Load(env)
	if err != nil {
		return cfg, nil, fmt.Errorf("failed to load config: %w", err)
	}
	log, err := logger.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		return cfg, nil, fmt.Errorf("failed to create logger: %w", err)
	}
	return cfg, log, nil
}

// openStore opens the configured document store. The returned close func is never nil.
func openStore(cfg config.Config, log *zap.Logger) (remote.Store, mcp.Options, func() error, error) {
	opts := mcp.Options{
		StoreDriver:      cfg.Store.Driver,
		SearchMaxResults: cfg.Search.MaxResults,
	}

	switch cfg.Store.Driver {
	case "http":
		hs, err := remote.NewHTTPStore(cfg.HTTPStoreConfig(), log.Named("store"))
		if err != nil {
			return nil, opts, nil, err
		}
		opts.StoreStatus = func(context.Context) map[string]interface{} {
			return map[string]interface{}{"url": cfg.Store.URL, "breaker": hs.State()}
		}
		return hs, opts, func() error { return nil }, nil
	default:
		db, err := storage.NewSQLiteStorage(cfg.Store.DBPath)
		if err != nil {
			return nil, opts, nil, err
		}
		opts.StoreStatus = func(ctx context.Context) map[string]interface{} {
			status := map[string]interface{}{
				"db_path":    cfg.Store.DBPath,
				"build_mode": storage.BuildMode,
			}
			n, err := db.CountDocuments(ctx)
			if err != nil {
				status["error"] = err.Error()
			} else {
				status["documents"] = n
			}
			return status
		}
		return db, opts, db.Close, nil
	}
}

func serve() error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	log.Info("MindMup MCP server starting",
		zap.String("version", version),
		zap.String("build_mode", storage.BuildMode),
		zap.String("driver", cfg.Store.Driver),
		zap.String("transport", cfg.Server.Transport))

	metrics.Register()

	store, opts, closeStore, err := openStore(cfg, log)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer func() {
		if err := closeStore(); err != nil {
			log.Warn("failed to close store", zap.Error(err))
		}
	}()

	payloads, err := cache.New[*types.Payload](cfg.CacheTTL(), cfg.Cache.Capacity, cache.WithLogger(log.Named("cache")))
	if err != nil {
		return fmt.Errorf("failed to create cache: %w", err)
	}
	ch, err := chunker.New(cfg.ChunkerConfig())
	if err != nil {
		return fmt.Errorf("failed to create chunker: %w", err)
	}
	sel, err := strategy.New(cfg.Thresholds(), ch, cfg.Limits(), log.Named("strategy"))
	if err != nil {
		return fmt.Errorf("failed to create strategy selector: %w", err)
	}

	f := fetcher.New(store, payloads, cfg.FetcherConfig(), log.Named("fetcher"))
	svc := mindmap.New(store, f, parser.New(parser.WithMaxDepth(cfg.Parser.MaxDepth)), sel, mindmap.Config{
		Limits:       cfg.Limits(),
		MaxScenarios: cfg.Search.MaxScenarios,
	}, log.Named("mindmap"))
	mcpServer := mcp.NewServer(svc, payloads, opts, log.Named("mcp"))

	// Set up graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	errChan := make(chan error, 2)

	var httpServer *httpapi.Server
	if cfg.Server.HTTPAddr != "" {
		routerOpts := []httpapi.Option{httpapi.WithServerName(mcp.ServerName)}
		if cfg.Server.Transport == "sse" {
			var sseOpts []server.SSEOption
			if cfg.Server.BaseURL != "" {
				sseOpts = append(sseOpts, server.WithBaseURL(cfg.Server.BaseURL))
			}
			routerOpts = append(routerOpts, httpapi.WithSSE(server.NewSSEServer(mcpServer.MCPServer(), sseOpts...)))
		}
		httpServer = httpapi.NewServer(cfg.Server.HTTPAddr, httpapi.NewRouter(mcpServer, log.Named("http"), routerOpts...), log)
		go func() {
			errChan <- httpServer.ListenAndServe()
		}()
	}

	if cfg.Server.Transport == "stdio" {
		go func() {
			log.Info("MCP server ready, listening on stdio")
			errChan <- mcpServer.Serve(ctx)
		}()
	}

	select {
	case sig := <-sigChan:
		log.Info("received signal, shutting down", zap.String("signal", sig.String()))
		cancel()
	case err = <-errChan:
		if err != nil && !errors.Is(err, context.Canceled) {
			log.Error("server error", zap.Error(err))
		}
	}

	if httpServer != nil {
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancelShutdown()
		if serr := httpServer.Shutdown(shutdownCtx); serr != nil {
			log.Error("error during HTTP shutdown", zap.Error(serr))
		}
	}

	log.Info("server stopped")
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func importFiles(args []string) error {
	fs := flag.NewFlagSet("import", flag.ContinueOnError)
	id := fs.String("id", "", "document id (single file only; defaults to the file name)")
	parent := fs.String("parent", "", "folder id to file the documents under")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		return errors.New("import needs at least one file")
	}

	cfg, log, err := setup()
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	if cfg.Store.Driver != "sqlite" {
		return fmt.Errorf("import writes to the sqlite store; configured driver is %q", cfg.Store.Driver)
	}
	db, err := storage.NewSQLiteStorage(cfg.Store.DBPath)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer db.Close()

	results, err := db.ImportFiles(context.Background(), fs.Args(), storage.ImportOptions{ID: *id, ParentID: *parent})
	if err != nil {
		return err
	}
	for _, r := range results {
		log.Info("imported document",
			zap.String("id", r.ID),
			zap.String("path", r.Path),
			zap.Int("nodes", r.NodeCount),
			zap.Bool("changed", r.Changed))
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(results)
}
