package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/mark3labs/mcp-go/server"
	"golang.org/x/sync/errgroup"

	"github.com/btouchard/tablecast/internal/auth"
	"github.com/btouchard/tablecast/internal/config"
	"github.com/btouchard/tablecast/internal/event"
	"github.com/btouchard/tablecast/internal/eventlog"
	"github.com/btouchard/tablecast/internal/listener"
	tablecastmcp "github.com/btouchard/tablecast/internal/mcp"
	authmw "github.com/btouchard/tablecast/internal/mcp/middleware"
	"github.com/btouchard/tablecast/internal/metrics"
	"github.com/btouchard/tablecast/internal/notify"
	"github.com/btouchard/tablecast/internal/service"
	"github.com/btouchard/tablecast/internal/store"
)

var version = "dev"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "serve":
		cmdServe(os.Args[2:])
	case "version":
		fmt.Printf("tablecast %s\n", version)
	case "check":
		cmdCheck(os.Args[2:])
	case "token":
		cmdToken()
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintf(os.Stderr, "Usage: tablecast <command> [flags]\n\n")
	fmt.Fprintf(os.Stderr, "Commands:\n")
	fmt.Fprintf(os.Stderr, "  serve     Start the tablecast daemon\n")
	fmt.Fprintf(os.Stderr, "  check     Validate configuration\n")
	fmt.Fprintf(os.Stderr, "  token     Generate an MCP API token\n")
	fmt.Fprintf(os.Stderr, "  version   Print version\n")
}

func cmdServe(args []string) {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	configPath := fs.String("config", "", "path to config file")
	_ = fs.Parse(args) // ExitOnError handles errors

	cfg, err := loadConfig(*configPath)
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	base := setupLogging(cfg)

	slog.Info("starting tablecast",
		"version", version,
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"instance", cfg.Listener.Instance)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	if err := run(ctx, cfg, base); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}

func cmdCheck(args []string) {
	fs := flag.NewFlagSet("check", flag.ExitOnError)
	configPath := fs.String("config", "", "path to config file")
	_ = fs.Parse(args) // ExitOnError handles errors

	_, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("configuration is valid")
}

func cmdToken() {
	token, hash, err := auth.GenerateToken()
	if err != nil {
		fmt.Fprintf(os.Stderr, "token generation failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("token: %s\n\n", token)
	fmt.Println("Add to tablecast.yaml:")
	fmt.Println("mcp:")
	fmt.Println("  api_tokens:")
	fmt.Println(`    - name: "default"`)
	fmt.Printf("      token_hash: %q\n", hash)
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFromFile(path)
	}
	return config.Load()
}

// setupLogging installs the stdout (and optional file) JSON handlers as the
// default logger and returns them. The returned handlers never feed the
// listener storage, so the storage itself logs through them.
func setupLogging(cfg *config.Config) []slog.Handler {
	level, _ := config.ParseLevel(cfg.Server.LogLevel)

	handlers := []slog.Handler{
		slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}),
	}

	if cfg.Server.LogFile != "" {
		f, err := os.OpenFile(cfg.Server.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0640)
		if err != nil {
			slog.Warn("failed to open log file, using stdout only", "path", cfg.Server.LogFile, "error", err)
		} else {
			handlers = append(handlers, slog.NewJSONHandler(f, &slog.HandlerOptions{Level: level}))
		}
	}

	slog.SetDefault(slog.New(slog.NewMultiHandler(handlers...)))
	return handlers
}

// bridgeLogging adds the log-message bridge to the default logger. The
// bridge stays idle while the hub reports no log subscribers.
func bridgeLogging(cfg *config.Config, base []slog.Handler, s *listener.Storage, hub *service.Hub) {
	if cfg.Listener.LogEventsLevel == "" {
		return
	}
	level, _ := config.ParseLevel(cfg.Listener.LogEventsLevel)
	bridge := eventlog.NewHandler(s, level, eventlog.WithSubscribers(hub))
	handlers := append(append([]slog.Handler(nil), base...), bridge)
	slog.SetDefault(slog.New(slog.NewMultiHandler(handlers...)))
}

func run(ctx context.Context, cfg *config.Config, base []slog.Handler) error {
	// --- SQLite Store ---
	db, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() { _ = db.Close() }()

	slog.Info("database opened", "path", cfg.Database.Path)

	// --- Listener Storage ---
	plain := slog.New(slog.NewMultiHandler(base...))
	opts := []listener.Option{
		listener.WithLogger(plain),
	}
	var collector *metrics.Collector
	if cfg.Metrics.Enabled {
		collector = metrics.New()
		opts = append(opts, listener.WithRecorder(collector))
	}
	storage := listener.New(cfg.Listener.Instance, opts...)
	hub := service.NewHub(storage, db, service.WithLogger(plain))

	bridgeLogging(cfg, base, storage, hub)

	// --- MCP Server ---
	var mcpHTTP http.Handler
	if cfg.MCP.Enabled {
		mcpServer := tablecastmcp.NewServer(&tablecastmcp.Deps{
			Hub:     hub,
			Version: version,
		})
		mcpHTTP = server.NewStreamableHTTPServer(mcpServer)

		notifications := notify.NewHub(notify.NewMCPNotifier(mcpServer, time.Second))
		hub.Subscribe(event.Connection|event.Topic|event.LogMessage, notifications.Notify)
	}

	tokens, skipped := auth.NewTokenSet(tokenHashes(cfg))
	if cfg.MCP.Enabled && tokens.Len() == 0 {
		slog.Warn("no MCP API tokens configured, /mcp will reject every request")
	}
	if skipped > 0 {
		slog.Warn("ignoring malformed MCP token hashes", "count", skipped)
	}

	// --- HTTP Server ---
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      newRouter(hub, collector, mcpHTTP, tokens),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  2 * time.Minute,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("tablecast is ready", "addr", addr, "run_id", hub.RunID())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		retention := time.Duration(cfg.Database.RetentionDays) * 24 * time.Hour
		return hub.RunCleanup(gctx, retention, time.Hour)
	})
	if level, ok := event.ParseLevel(cfg.Listener.ArchiveLevel); ok {
		g.Go(func() error {
			return hub.ArchiveLogs(gctx, level, event.LevelCritical)
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	err = g.Wait()

	if storage.Stats().Callbacks > 0 && !storage.WaitForListenerQueue(cfg.Listener.FlushTimeout) {
		slog.Warn("listener callbacks not flushed before shutdown", "timeout", cfg.Listener.FlushTimeout)
	}
	if cerr := storage.Close(); cerr != nil {
		slog.Warn("stopping listener dispatcher", "error", cerr)
	}

	return err
}

func tokenHashes(cfg *config.Config) []string {
	hashes := make([]string, 0, len(cfg.MCP.APITokens))
	for _, tok := range cfg.MCP.APITokens {
		hashes = append(hashes, tok.TokenHash)
	}
	return hashes
}

// newRouter builds the HTTP routes. collector and mcpHTTP are optional.
func newRouter(hub *service.Hub, collector *metrics.Collector, mcpHTTP http.Handler, tokens *auth.TokenSet) http.Handler {
	r := chi.NewRouter()

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Get("/stats", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(hub.Stats()); err != nil {
			slog.Debug("writing stats", "error", err)
		}
	})

	if collector != nil {
		r.Handle("/metrics", collector.Handler())
	}

	// MCP endpoint (Bearer token required)
	if mcpHTTP != nil {
		r.Group(func(r chi.Router) {
			r.Use(authmw.BearerAuth(tokens))
			r.Handle("/mcp", mcpHTTP)
		})
	}

	return r
}
