// Briefd is a daemon that aggregates user activity from email, calendar,
// and GitHub into structured daily briefings, with a conversational query
// endpoint over workspace event feeds.
//
// Configuration is loaded from a YAML file and environment variables. See
// internal/config for details.
//
// Usage:
//
//	# Start the daemon with defaults
//	briefd serve
//
//	# Configure via file and environment
//	briefd serve --config /etc/briefd/config.yaml
//	SERVER_PORT=9090 MODEL_API_KEY=... briefd serve
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/briefd/internal/briefing"
	"github.com/fyrsmithlabs/briefd/internal/compress"
	"github.com/fyrsmithlabs/briefd/internal/config"
	"github.com/fyrsmithlabs/briefd/internal/genai"
	"github.com/fyrsmithlabs/briefd/internal/logging"
	"github.com/fyrsmithlabs/briefd/internal/providers"
	"github.com/fyrsmithlabs/briefd/internal/query"
	"github.com/fyrsmithlabs/briefd/internal/server"
	"github.com/fyrsmithlabs/briefd/internal/telemetry"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "briefd",
	Short: "Daily briefing daemon",
	Long: `briefd aggregates a user's email, calendar, and GitHub activity into a
structured daily briefing, and answers ad-hoc questions about workspace
activity through a query endpoint.`,
	Version: version,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the briefd HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return run(ctx)
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("briefd by Fyrsmith Labs\n")
		fmt.Printf("Version:    %s\n", version)
		fmt.Printf("Commit:     %s\n", gitCommit)
		fmt.Printf("Build Date: %s\n", buildDate)
	},
}

func init() {
	serveCmd.Flags().StringVar(&configPath, "config", "", "path to config file (YAML)")
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// run starts the briefd server and blocks until the context is cancelled.
//
// Initialization order:
//  1. Load and validate configuration
//  2. Initialize logger
//  3. Create the compression and model clients
//  4. Create provider fetchers (disconnected stand-ins when unconfigured)
//  5. Wire the briefing pipeline and query engine
//  6. Start the HTTP server, shut down gracefully on signal
func run(ctx context.Context) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	logger, err := logging.New(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		return fmt.Errorf("initialize logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("starting briefd",
		zap.String("version", version),
		zap.String("commit", gitCommit))

	tel, err := telemetry.New(ctx, telemetry.Config{
		ServiceName:    "briefd",
		ServiceVersion: version,
		TraceEndpoint:  cfg.Telemetry.TraceEndpoint,
		Insecure:       cfg.Telemetry.Insecure,
	})
	if err != nil {
		return fmt.Errorf("initialize telemetry: %w", err)
	}
	defer func() { _ = tel.Shutdown(context.Background()) }()
	if reason := tel.DegradedReason(); reason != "" {
		logger.Warn("telemetry degraded", zap.String("reason", reason))
	}

	compressor, err := compress.NewClient(compress.Config{
		BaseURL:        cfg.Compression.BaseURL,
		APIKey:         cfg.Compression.APIKey,
		Model:          cfg.Compression.Model,
		Timeout:        time.Duration(cfg.Compression.Timeout),
		MaxConcurrency: cfg.Compression.MaxConcurrency,
		CacheTTL:       time.Duration(cfg.Compression.CacheTTL),
	}, logger)
	if err != nil {
		return fmt.Errorf("create compression client: %w", err)
	}

	llm, err := genai.NewHTTPClient(genai.Config{
		BaseURL:   cfg.Model.BaseURL,
		APIKey:    cfg.Model.APIKey,
		Model:     cfg.Model.Model,
		RateLimit: cfg.Model.RateLimit,
		Timeout:   time.Duration(cfg.Model.Timeout),
	})
	if err != nil {
		return fmt.Errorf("create model client: %w", err)
	}

	email, calendar, code, err := buildFetchers(ctx, cfg, logger)
	if err != nil {
		return err
	}

	generator, err := briefing.NewGenerator(llm, logger)
	if err != nil {
		return fmt.Errorf("create briefing generator: %w", err)
	}

	briefings, err := briefing.NewService(email, calendar, code, compressor, generator,
		briefing.ServiceConfig{
			Aggressiveness:  cfg.Compression.Aggressiveness,
			CacheTTL:        time.Duration(cfg.Briefing.CacheTTL),
			RequestDeadline: time.Duration(cfg.Briefing.RequestDeadline),
		}, logger)
	if err != nil {
		return fmt.Errorf("create briefing service: %w", err)
	}

	engine, err := buildQueryEngine(cfg, llm, logger)
	if err != nil {
		return err
	}

	srv, err := server.NewServer(briefings, engine, logger, &server.Config{
		Host: cfg.Server.Host,
		Port: cfg.Server.Port,
	})
	if err != nil {
		return fmt.Errorf("create server: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()
	logger.Info("server started",
		zap.String("host", cfg.Server.Host),
		zap.Int("port", cfg.Server.Port))

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Server.ShutdownTimeout))
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// buildFetchers creates the three provider fetchers, substituting
// disconnected stand-ins for any provider missing its configuration so the
// pipeline always has a full set.
func buildFetchers(ctx context.Context, cfg *config.Config, logger *zap.Logger) (
	briefing.EmailFetcher, briefing.CalendarFetcher, briefing.CodeFetcher, error) {

	var email briefing.EmailFetcher = providers.DisconnectedEmail{}
	if cfg.Providers.GmailURL != "" {
		f, err := providers.NewGmailFetcher(cfg.Providers.GmailURL, logger)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("create gmail fetcher: %w", err)
		}
		email = f
	}

	var calendar briefing.CalendarFetcher = providers.DisconnectedCalendar{}
	if cfg.Providers.CalendarURL != "" {
		f, err := providers.NewCalendarFetcher(cfg.Providers.CalendarURL, logger)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("create calendar fetcher: %w", err)
		}
		calendar = f
	}

	var code briefing.CodeFetcher = providers.DisconnectedCode{}
	if cfg.Providers.GitHubToken.IsSet() {
		f, err := providers.NewGitHubFetcher(ctx, cfg.Providers.GitHubToken, logger)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("create github fetcher: %w", err)
		}
		code = f
	}

	return email, calendar, code, nil
}

// buildQueryEngine assembles the query path from the configured event
// feeds. Source order is fixed by name so runs are deterministic.
func buildQueryEngine(cfg *config.Config, llm genai.Client, logger *zap.Logger) (*query.Engine, error) {
	names := make([]string, 0, len(cfg.Providers.QuerySources))
	for name := range cfg.Providers.QuerySources {
		names = append(names, name)
	}
	sort.Strings(names)

	sources := make([]query.Source, 0, len(names))
	for _, name := range names {
		src, err := query.NewHTTPSource(name, cfg.Providers.QuerySources[name])
		if err != nil {
			return nil, fmt.Errorf("create query source %q: %w", name, err)
		}
		sources = append(sources, src)
	}

	aggregator, err := query.NewAggregator(sources, logger)
	if err != nil {
		return nil, fmt.Errorf("create aggregator: %w", err)
	}
	engine, err := query.NewEngine(aggregator, llm, logger)
	if err != nil {
		return nil, fmt.Errorf("create query engine: %w", err)
	}
	return engine, nil
}
