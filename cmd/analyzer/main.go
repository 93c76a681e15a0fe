package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"tokenwatch/internal/aggregator"
	"tokenwatch/internal/alert"
	"tokenwatch/internal/config"
	"tokenwatch/internal/delivery"
	"tokenwatch/internal/engine"
	"tokenwatch/internal/feed"
	"tokenwatch/internal/observability"
	"tokenwatch/internal/scorer"
	"tokenwatch/internal/source"
	"tokenwatch/internal/storage"
	chstore "tokenwatch/internal/storage/clickhouse"
	"tokenwatch/internal/storage/memory"
	"tokenwatch/internal/storage/migrations"
	pgstore "tokenwatch/internal/storage/postgres"
)

func main() {
	configPath := flag.String("config", "", "Path to YAML config file (defaults apply when empty)")
	feedURL := flag.String("feed-url", "", "Detection feed websocket endpoint (overrides config)")
	metricsAddr := flag.String("metrics-addr", "", "Prometheus metrics HTTP address (overrides config, empty keeps config value)")
	flag.Parse()

	logger := log.New(os.Stdout, "[analyzer] ", log.LstdFlags|log.Lshortfile)

	// .env is optional; real env vars win either way.
	_ = godotenv.Load()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		logger.Fatalf("Config error: %v", err)
	}
	if *feedURL != "" {
		cfg.Feed.URL = *feedURL
	}
	if *metricsAddr != "" {
		cfg.Metrics.ListenAddr = *metricsAddr
	}
	if cfg.Feed.URL == "" {
		logger.Fatal("No feed endpoint configured. Use --feed-url or feed.url in the config file")
	}

	metrics := observability.NewMetrics("tokenwatch")

	// Start metrics server if enabled
	if cfg.Metrics.ListenAddr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", metrics.Handler())
			mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
				w.Write([]byte("ok"))
			})
			logger.Printf("Starting metrics server on %s", cfg.Metrics.ListenAddr)
			if err := http.ListenAndServe(cfg.Metrics.ListenAddr, mux); err != nil && err != http.ErrServerClosed {
				logger.Printf("Metrics server error: %v", err)
			}
		}()
	}

	ctx, cancel := context.WithCancel(context.Background())

	// Handle shutdown signals with graceful timeout
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	done := make(chan error, 1)

	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, initiating graceful shutdown...", sig)
		cancel()

		select {
		case sig := <-sigCh:
			logger.Printf("Received second signal %v, forcing immediate shutdown", sig)
			os.Exit(1)
		case <-time.After(30 * time.Second):
			logger.Println("Graceful shutdown timed out after 30s, forcing exit")
			os.Exit(1)
		case <-done:
			// Normal shutdown completed
		}
	}()

	err = run(ctx, logger, metrics, cfg)

	done <- err
	cancel()

	if err != nil && err != context.Canceled {
		logger.Fatalf("Error: %v", err)
	}

	logger.Println("Shutdown complete")
}

// loadConfig loads from path, or returns defaults when no path is given.
func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Default(), nil
	}
	return config.Load(path)
}

// run wires storage, sources, the engine and the feed, then consumes
// detections until the context ends.
func run(ctx context.Context, logger *log.Logger, metrics *observability.Metrics, cfg *config.Config) error {
	// Create stores (use interfaces)
	var scoreStore storage.ScoreStore = memory.NewScoreStore()
	var snapshotStore storage.SnapshotStore = memory.NewSnapshotStore()

	if cfg.Storage.PostgresDSN != "" {
		pool, err := pgstore.NewPool(ctx, cfg.Storage.PostgresDSN)
		if err != nil {
			return fmt.Errorf("connect to postgres: %w", err)
		}
		defer pool.Close()

		if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
			return fmt.Errorf("run postgres migrations: %w", err)
		}
		scoreStore = pgstore.NewScoreStore(pool)
		logger.Println("Score storage: PostgreSQL")
	} else {
		logger.Println("Score storage: in-memory (no postgres_dsn configured)")
	}

	if cfg.Storage.ClickHouseDSN != "" {
		conn, err := migrations.RunClickhouseMigrations(ctx, cfg.Storage.ClickHouseDSN)
		if err != nil {
			return fmt.Errorf("run clickhouse migrations: %w", err)
		}
		defer conn.Close()

		snapshotStore = chstore.NewSnapshotStore(conn)
		logger.Println("Snapshot archive: ClickHouse")
	} else {
		logger.Println("Snapshot archive: in-memory (no clickhouse_dsn configured)")
	}

	clients, err := buildClients(cfg, metrics, logger)
	if err != nil {
		return err
	}
	logger.Printf("Enabled sources: %d", len(clients))

	sc, err := scorer.New(cfg.Scorer)
	if err != nil {
		return fmt.Errorf("create scorer: %w", err)
	}

	var deliverer delivery.Deliverer
	if cfg.Delivery.WebhookURL != "" {
		deliverer, err = delivery.NewWebhook(cfg.Delivery,
			delivery.WithMetrics(metrics),
			delivery.WithLogger(logger),
		)
		if err != nil {
			return fmt.Errorf("create webhook deliverer: %w", err)
		}
		logger.Println("Alert delivery: webhook")
	} else {
		deliverer = delivery.NewLogDeliverer(logger, metrics)
		logger.Println("Alert delivery: log only (no webhook_url configured)")
	}

	eng, err := engine.New(engine.Options{
		Aggregator: aggregator.New(cfg.Aggregator, clients,
			aggregator.WithMetrics(metrics),
			aggregator.WithLogger(logger),
		),
		Scorer:        sc,
		Formatter:     alert.NewFormatter(cfg.Alert),
		Deliverer:     deliverer,
		ScoreStore:    scoreStore,
		SnapshotStore: snapshotStore,
		Metrics:       metrics,
		Logger:        logger,
	})
	if err != nil {
		return fmt.Errorf("create engine: %w", err)
	}

	sub, err := feed.NewSubscriber(ctx, cfg.Feed,
		feed.WithMetrics(metrics),
		feed.WithLogger(logger),
	)
	if err != nil {
		return fmt.Errorf("connect detection feed: %w", err)
	}
	defer sub.Close()

	logger.Printf("Watching detection feed %s", cfg.Feed.URL)
	return eng.Run(ctx, sub.Tokens())
}

// buildClients constructs one client per enabled source, in stable order.
func buildClients(cfg *config.Config, metrics *observability.Metrics, logger *log.Logger) ([]source.Client, error) {
	constructors := map[string]func(config.SourceConfig, source.HTTPDoer, ...source.PipelineOption) *source.Pipeline{
		"birdeye":     source.NewBirdeye,
		"dexscreener": source.NewDexScreener,
		"rugcheck":    source.NewRugCheck,
		"pumpfun":     source.NewPumpFun,
		"social":      source.NewSocial,
	}

	names := cfg.EnabledSources()
	sort.Strings(names)

	var clients []source.Client
	for _, name := range names {
		construct, ok := constructors[name]
		if !ok {
			return nil, fmt.Errorf("unknown source %q in config", name)
		}
		src := cfg.Sources[name]
		clients = append(clients, construct(src, &http.Client{},
			source.WithMetrics(metrics),
			source.WithLogger(logger),
		))
	}
	if len(clients) == 0 {
		return nil, fmt.Errorf("no sources enabled")
	}
	return clients, nil
}
