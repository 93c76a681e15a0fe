// Command analyze runs the pipeline once for a single token and prints
// the formatted alert to stdout.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"sort"
	"time"

	"github.com/joho/godotenv"

	"tokenwatch/internal/aggregator"
	"tokenwatch/internal/alert"
	"tokenwatch/internal/config"
	"tokenwatch/internal/domain"
	"tokenwatch/internal/engine"
	"tokenwatch/internal/scorer"
	"tokenwatch/internal/source"
)

func main() {
	configPath := flag.String("config", "", "Path to YAML config file (defaults apply when empty)")
	token := flag.String("token", "", "Token mint address to analyze")
	symbol := flag.String("symbol", "", "Optional token symbol for the alert header")
	alertType := flag.String("type", "new_detection", "Alert type: new_detection, price_move, momentum_shift, large_transaction")
	verbose := flag.Bool("verbose", false, "Log pipeline internals to stderr")
	flag.Parse()

	logger := log.New(io.Discard, "[analyze] ", log.LstdFlags)
	if *verbose {
		logger.SetOutput(os.Stderr)
	}

	_ = godotenv.Load()

	if *token == "" {
		fmt.Fprintln(os.Stderr, "Error: --token is required")
		flag.Usage()
		os.Exit(2)
	}
	if err := domain.ValidateAddress(*token); err != nil {
		fmt.Fprintf(os.Stderr, "Error: invalid token address: %v\n", err)
		os.Exit(2)
	}

	typ := domain.AlertType(*alertType)
	if !typ.IsValid() {
		fmt.Fprintf(os.Stderr, "Error: unknown alert type %q\n", *alertType)
		os.Exit(2)
	}

	cfg := config.Default()
	if *configPath != "" {
		var err error
		cfg, err = config.Load(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Config error: %v\n", err)
			os.Exit(1)
		}
	}

	if err := run(cfg, logger, *token, *symbol, typ); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *log.Logger, address, symbol string, typ domain.AlertType) error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Aggregator.TimeoutSeconds+5)*time.Second)
	defer cancel()

	clients, err := buildClients(cfg, logger)
	if err != nil {
		return err
	}

	sc, err := scorer.New(cfg.Scorer)
	if err != nil {
		return fmt.Errorf("create scorer: %w", err)
	}

	eng, err := engine.New(engine.Options{
		Aggregator: aggregator.New(cfg.Aggregator, clients, aggregator.WithLogger(logger)),
		Scorer:     sc,
		Formatter:  alert.NewFormatter(cfg.Alert),
		Logger:     logger,
	})
	if err != nil {
		return fmt.Errorf("create engine: %w", err)
	}

	res, err := eng.Analyze(ctx, domain.TokenIdentifier{
		Address: address,
		Chain:   domain.ChainSolana,
		Symbol:  symbol,
	}, typ)
	if err != nil {
		return err
	}

	fmt.Println(res.Message)
	fmt.Printf("\nsafety=%.1f hype=%.1f verdict=%s confidence=%.2f sources_ok=%d/%d\n",
		res.Score.SafetyScore, res.Score.HypeScore, res.Score.Verdict,
		res.Score.Confidence, res.Snapshot.SourcesOK, len(res.Snapshot.Sources))
	return nil
}

func buildClients(cfg *config.Config, logger *log.Logger) ([]source.Client, error) {
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
		clients = append(clients, construct(cfg.Sources[name], &http.Client{},
			source.WithLogger(logger),
		))
	}
	if len(clients) == 0 {
		return nil, fmt.Errorf("no sources enabled")
	}
	return clients, nil
}
