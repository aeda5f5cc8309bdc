// Package main provides the unified arbitrage bot that runs all components
// together:
// - Discovery (scheduled): adaptive threshold → route scan → prioritization
// - Execution (per cycle): conflict-free batches through the swap pipeline
// - Learning (continuous): outcome recording, snapshot persistence
// It also serves health, learning and Prometheus metrics over HTTP.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/shopspring/decimal"

	"github.com/shoeman22/billionaire-bot-sub000/internal/breaker"
	"github.com/shoeman22/billionaire-bot-sub000/internal/discovery"
	"github.com/shoeman22/billionaire-bot-sub000/internal/domain"
	"github.com/shoeman22/billionaire-bot-sub000/internal/engine"
	"github.com/shoeman22/billionaire-bot-sub000/internal/executor"
	"github.com/shoeman22/billionaire-bot-sub000/internal/gswap"
	"github.com/shoeman22/billionaire-bot-sub000/internal/learning"
	"github.com/shoeman22/billionaire-bot-sub000/internal/observability"
	"github.com/shoeman22/billionaire-bot-sub000/internal/probe"
	"github.com/shoeman22/billionaire-bot-sub000/internal/scheduler"
	"github.com/shoeman22/billionaire-bot-sub000/internal/storage"
	chstore "github.com/shoeman22/billionaire-bot-sub000/internal/storage/clickhouse"
	filestore "github.com/shoeman22/billionaire-bot-sub000/internal/storage/file"
	"github.com/shoeman22/billionaire-bot-sub000/internal/storage/memory"
	"github.com/shoeman22/billionaire-bot-sub000/internal/storage/migrations"
	pgstore "github.com/shoeman22/billionaire-bot-sub000/internal/storage/postgres"
)

// Known venue tokens mapped to composite keys and decimals.
var tokenUniverse = map[string]domain.Token{
	"GALA":  {Symbol: "GALA", Key: "GALA|Unit|none|none", Decimals: 8},
	"GUSDC": {Symbol: "GUSDC", Key: "GUSDC|Unit|none|none", Decimals: 6},
	"GUSDT": {Symbol: "GUSDT", Key: "GUSDT|Unit|none|none", Decimals: 6},
	"GWETH": {Symbol: "GWETH", Key: "GWETH|Unit|none|none", Decimals: 8},
	"GWBTC": {Symbol: "GWBTC", Key: "GWBTC|Unit|none|none", Decimals: 8},
	"GSOL":  {Symbol: "GSOL", Key: "GSOL|Unit|none|none", Decimals: 8},
	"GTON":  {Symbol: "GTON", Key: "GTON|Unit|none|none", Decimals: 8},
}

func main() {
	// Load .env file if exists
	loadEnvFile()

	// Parse flags (env vars as defaults)
	venueEndpoint := flag.String("venue-endpoint", os.Getenv("VENUE_API_ENDPOINT"), "Swap venue HTTP API endpoint")
	wsEndpoint := flag.String("ws-endpoint", os.Getenv("VENUE_WS_ENDPOINT"), "Swap venue WebSocket endpoint for tx status (optional)")
	privateKey := flag.String("private-key", os.Getenv("VENUE_PRIVATE_KEY"), "Base58-encoded ed25519 private key for swap signing")
	postgresDSN := flag.String("postgres-dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL connection string")
	clickhouseDSN := flag.String("clickhouse-dsn", os.Getenv("CLICKHOUSE_DSN"), "ClickHouse connection string for outcome history (optional)")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage instead of file/PostgreSQL")
	snapshotFile := flag.String("snapshot-file", "data/learning.json", "Learning snapshot file (used when no --postgres-dsn)")

	baseToken := flag.String("base", "GALA", "Base asset every route starts and ends in")
	candidates := flag.String("candidates", "GUSDC,GUSDT,GWETH,GWBTC,GSOL", "Comma-separated intermediate candidates (symbol or SYMBOL:KEY:DECIMALS)")
	coreTokens := flag.String("core", "GUSDC,GWETH", "High-liquidity core symbols used at depth >= 5")
	minHops := flag.Int("min-hops", 3, "Minimum route length in hops")
	maxHops := flag.Int("max-hops", 4, "Maximum route length in hops (up to 6)")
	minProfit := flag.Float64("min-profit", 1.0, "Base minimum net profit percent before adaptation")
	inputAmount := flag.Float64("input-amount", 100, "Position size routes are quoted and executed at, in base units")
	maxRoutes := flag.Int("max-routes", 3, "Maximum routes executed per cycle (0 = unlimited)")
	scanInterval := flag.Duration("scan-interval", 60*time.Second, "Interval between discovery cycles")

	gasStrategyName := flag.String("gas-strategy", "static", "Gas bid strategy: static or escalating")
	gasBid := flag.Float64("gas-bid", 1, "Gas bid per hop (escalating: base bid)")
	gasStep := flag.Float64("gas-step", 25, "Escalating strategy: bid increase percent per hop")

	dryRun := flag.Bool("dry-run", false, "Quote every hop but submit nothing")
	verbose := flag.Bool("verbose", false, "Log per-candidate discovery detail")
	httpAddr := flag.String("http-addr", ":9090", "HTTP address for health/learning/metrics endpoints")

	flag.Parse()

	// Setup logger
	logger := log.New(os.Stdout, "[bot] ", log.LstdFlags|log.Lshortfile)

	// Validate required flags
	if *venueEndpoint == "" {
		logger.Fatal("--venue-endpoint is required")
	}
	if *privateKey == "" && !*dryRun {
		logger.Fatal("--private-key is required (use --dry-run to run without one)")
	}
	if *minHops < 3 || *maxHops > 6 || *minHops > *maxHops {
		logger.Fatalf("invalid hop range [%d, %d]: must satisfy 3 <= min <= max <= 6", *minHops, *maxHops)
	}

	base, err := resolveToken(*baseToken)
	if err != nil {
		logger.Fatalf("Invalid base token: %v", err)
	}
	candidateTokens, err := resolveTokens(*candidates)
	if err != nil {
		logger.Fatalf("Invalid candidates: %v", err)
	}
	if len(candidateTokens) == 0 {
		logger.Fatal("No candidate tokens specified. Use --candidates")
	}
	logger.Printf("Trading %s through %d candidates, depth [%d, %d]", base, len(candidateTokens), *minHops, *maxHops)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())

	// Create stores
	snapshots, outcomes, cleanup, err := createStores(ctx, *postgresDSN, *clickhouseDSN, *snapshotFile, *useMemory)
	if err != nil {
		logger.Fatalf("Failed to create stores: %v", err)
	}
	defer cleanup()

	// Create the venue client
	var signer gswap.Signer
	if *privateKey != "" {
		signer, err = gswap.NewEd25519SignerFromBase58(*privateKey)
		if err != nil {
			logger.Fatalf("Failed to create signer: %v", err)
		}
	}
	var client gswap.Client = gswap.NewHTTPClient(*venueEndpoint, signer)
	if *wsEndpoint != "" {
		stream, err := gswap.NewStatusStream(ctx, *wsEndpoint, nil)
		if err != nil {
			logger.Fatalf("Failed to connect status stream: %v", err)
		}
		defer stream.Close()
		client = &streamingClient{Client: client, stream: stream}
		logger.Printf("Using WebSocket confirmations via %s", *wsEndpoint)
	}

	// Circuit breakers shared by probe and executor
	registry := breaker.NewRegistry(breaker.DefaultConfig(), log.New(os.Stdout, "[breaker] ", log.LstdFlags))

	// Liquidity probe + discovery
	quotes := probe.New(client, registry.Get(executor.BreakerQuotes), probe.DefaultConfig(), log.New(os.Stdout, "[probe] ", log.LstdFlags))
	discCfg := discovery.DefaultConfig()
	discCfg.Candidates = candidateTokens
	discCfg.HighLiquidityCore = splitSymbols(*coreTokens)
	discCfg.InputAmount = decimal.NewFromFloat(*inputAmount)
	discCfg.Verbose = *verbose
	disc := discovery.New(quotes, discCfg, log.New(os.Stdout, "[discovery] ", log.LstdFlags))

	// Learning store, warmed from the last snapshot
	learn := learning.New(snapshots, learning.DefaultConfig(), log.New(os.Stdout, "[learning] ", log.LstdFlags))
	if err := learn.Load(ctx); err != nil {
		logger.Fatalf("Failed to load learning snapshot: %v", err)
	}

	// Execution pipeline
	execCfg := executor.DefaultConfig()
	execCfg.DryRun = *dryRun
	exec := executor.New(client, registry, gasStrategy(*gasStrategyName, *gasBid, *gasStep), execCfg, log.New(os.Stdout, "[executor] ", log.LstdFlags))

	eng := engine.New(engine.Options{
		Discovery:            disc,
		Learning:             learn,
		Scheduler:            scheduler.New(log.New(os.Stdout, "[scheduler] ", log.LstdFlags)),
		Executor:             exec,
		Breakers:             registry,
		Outcomes:             outcomes,
		BaseToken:            base,
		DepthRange:           discovery.DepthRange{Min: *minHops, Max: *maxHops},
		BaseThresholdPercent: decimal.NewFromFloat(*minProfit),
		ScanInterval:         *scanInterval,
		MaxRoutesPerCycle:    *maxRoutes,
		Verbose:              *verbose,
	}, log.New(os.Stdout, "[engine] ", log.LstdFlags))

	// Channel to signal completion
	done := make(chan error, 1)

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, initiating graceful shutdown...", sig)
		cancel()

		// Wait for second signal for immediate shutdown
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

	// Start HTTP server
	go startHTTPServer(*httpAddr, registry, learn, logger)

	if *dryRun {
		logger.Println("Dry-run mode: routes will be quoted but never submitted")
	}

	// Run the trading loop
	err = eng.Run(ctx)
	done <- err
	cancel()

	if err != nil && err != context.Canceled {
		logger.Fatalf("Engine error: %v", err)
	}

	logger.Println("Shutdown complete")
}

// streamingClient overrides confirmation waits with the WebSocket status
// stream while keeping HTTP for quotes, swaps and balances.
type streamingClient struct {
	gswap.Client
	stream *gswap.StatusStream
}

func (c *streamingClient) AwaitConfirmation(ctx context.Context, handle *gswap.TxHandle, timeout time.Duration) (*domain.Confirmation, error) {
	return c.stream.AwaitConfirmation(ctx, handle, timeout)
}

// createStores selects the snapshot store and the outcome history sink.
// PostgreSQL carries both when configured; ClickHouse takes over the outcome
// sink when its DSN is set. Without either, the snapshot lives in a locked
// JSON file and outcomes stay in memory.
func createStores(ctx context.Context, postgresDSN, clickhouseDSN, snapshotFile string, useMemory bool) (storage.SnapshotStore, storage.OutcomeStore, func(), error) {
	var (
		snapshots storage.SnapshotStore
		outcomes  storage.OutcomeStore
		cleanups  []func()
	)
	cleanup := func() {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
	}

	switch {
	case useMemory:
		snapshots = memory.NewSnapshotStore()
		outcomes = memory.NewOutcomeStore()
	case postgresDSN != "":
		pool, err := pgstore.NewPool(ctx, postgresDSN)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("connect to postgres: %w", err)
		}
		cleanups = append(cleanups, pool.Close)
		if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
			cleanup()
			return nil, nil, nil, fmt.Errorf("run postgres migrations: %w", err)
		}
		snapshots = pgstore.NewSnapshotStore(pool)
		outcomes = pgstore.NewOutcomeStore(pool)
	default:
		snapshots = filestore.NewSnapshotStore(snapshotFile, filestore.DefaultLockConfig())
		outcomes = memory.NewOutcomeStore()
	}

	if clickhouseDSN != "" {
		conn, err := migrations.RunClickhouseMigrations(ctx, clickhouseDSN)
		if err != nil {
			cleanup()
			return nil, nil, nil, fmt.Errorf("run clickhouse migrations: %w", err)
		}
		cleanups = append(cleanups, func() { _ = conn.Close() })
		outcomes = chstore.NewOutcomeHistoryStore(conn)
	}

	return snapshots, outcomes, cleanup, nil
}

// gasStrategy resolves the configured bid strategy.
func gasStrategy(name string, bid, step float64) gswap.GasStrategy {
	if strings.EqualFold(name, "escalating") {
		return gswap.EscalatingGasStrategy{
			Base:        decimal.NewFromFloat(bid),
			StepPercent: decimal.NewFromFloat(step),
		}
	}
	return gswap.StaticGasStrategy{Amount: decimal.NewFromFloat(bid)}
}

// resolveToken resolves a known symbol or parses SYMBOL:KEY:DECIMALS.
func resolveToken(s string) (domain.Token, error) {
	s = strings.TrimSpace(s)
	if t, ok := tokenUniverse[strings.ToUpper(s)]; ok {
		return t, nil
	}

	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return domain.Token{}, fmt.Errorf("unknown token %q: use a known symbol or SYMBOL:KEY:DECIMALS", s)
	}
	decimals, err := strconv.Atoi(parts[2])
	if err != nil {
		return domain.Token{}, fmt.Errorf("token %q: invalid decimals: %w", s, err)
	}
	t := domain.Token{Symbol: parts[0], Key: parts[1], Decimals: decimals}
	if err := t.Validate(); err != nil {
		return domain.Token{}, err
	}
	return t, nil
}

// resolveTokens parses a comma-separated token list.
func resolveTokens(csv string) ([]domain.Token, error) {
	var tokens []domain.Token
	seen := make(map[string]bool)
	for _, entry := range strings.Split(csv, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		t, err := resolveToken(entry)
		if err != nil {
			return nil, err
		}
		if seen[t.Symbol] {
			continue
		}
		seen[t.Symbol] = true
		tokens = append(tokens, t)
	}
	return tokens, nil
}

// splitSymbols parses a comma-separated symbol list.
func splitSymbols(csv string) []string {
	var symbols []string
	for _, s := range strings.Split(csv, ",") {
		if s = strings.TrimSpace(strings.ToUpper(s)); s != "" {
			symbols = append(symbols, s)
		}
	}
	return symbols
}

// startHTTPServer serves health, learning and Prometheus metrics endpoints.
func startHTTPServer(addr string, registry *breaker.Registry, learn *learning.Store, logger *log.Logger) {
	mux := http.NewServeMux()

	// Breaker health summary
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		summary := registry.HealthSummary()
		w.Header().Set("Content-Type", "application/json")
		if !summary.Healthy {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		json.NewEncoder(w).Encode(summary)
	})

	// Learning aggregates
	mux.HandleFunc("/learning/stats", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(learn.Statistics())
	})

	// Best-performing routes, ?limit=N
	mux.HandleFunc("/learning/top", func(w http.ResponseWriter, r *http.Request) {
		limit := 10
		if raw := r.URL.Query().Get("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n < 1 {
				http.Error(w, "invalid limit", http.StatusBadRequest)
				return
			}
			limit = n
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(learn.TopPerformingRoutes(limit))
	})

	// Prometheus metrics
	mux.Handle("/metrics", observability.Handler())

	logger.Printf("Starting HTTP server on %s", addr)
	if err := http.ListenAndServe(addr, mux); err != nil && err != http.ErrServerClosed {
		logger.Printf("HTTP server error: %v", err)
	}
}

// loadEnvFile loads environment variables from .env file if it exists.
func loadEnvFile() {
	data, err := os.ReadFile(".env")
	if err != nil {
		return // File doesn't exist, use system env vars
	}

	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		// Don't override existing env vars
		if os.Getenv(key) == "" {
			os.Setenv(key, value)
		}
	}
}
