// Package main provides a one-shot route scan: run discovery once against
// the venue (or a scripted stub), print ranked candidates, exit.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
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
	"github.com/shoeman22/billionaire-bot-sub000/internal/executor"
	"github.com/shoeman22/billionaire-bot-sub000/internal/gswap"
	"github.com/shoeman22/billionaire-bot-sub000/internal/gswap/stub"
	"github.com/shoeman22/billionaire-bot-sub000/internal/probe"
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
	// Parse flags
	venueEndpoint := flag.String("venue-endpoint", os.Getenv("VENUE_API_ENDPOINT"), "Swap venue HTTP API endpoint")
	useStub := flag.Bool("use-stub", false, "Scan a scripted in-process venue instead of the real one")
	baseToken := flag.String("base", "GALA", "Base asset every route starts and ends in")
	candidates := flag.String("candidates", "GUSDC,GUSDT,GWETH,GWBTC,GSOL", "Comma-separated intermediate candidates (symbol or SYMBOL:KEY:DECIMALS)")
	coreTokens := flag.String("core", "GUSDC,GWETH", "High-liquidity core symbols used at depth >= 5")
	minHops := flag.Int("min-hops", 3, "Minimum route length in hops")
	maxHops := flag.Int("max-hops", 4, "Maximum route length in hops (up to 6)")
	minProfit := flag.Float64("min-profit", 1.0, "Minimum net profit percent")
	inputAmount := flag.Float64("input-amount", 100, "Position size routes are quoted at, in base units")
	timeout := flag.Duration("timeout", 2*time.Minute, "Scan deadline")
	outputJSON := flag.Bool("json", false, "Output as JSON")
	verbose := flag.Bool("verbose", false, "Log per-candidate discovery detail")

	flag.Parse()

	// Setup structured logger
	logger := log.New(os.Stderr, "[scan] ", log.LstdFlags)

	// Validate required flags
	if *venueEndpoint == "" && !*useStub {
		logger.Fatal("--venue-endpoint is required (or --use-stub)")
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

	// Create context with cancellation and deadline
	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, shutting down...", sig)
		cancel()
	}()

	// Pick the venue: real client or scripted stub
	var quoter gswap.Quoter
	if *useStub {
		quoter = demoVenue()
		logger.Println("Scanning scripted stub venue")
	} else {
		quoter = gswap.NewHTTPClient(*venueEndpoint, nil)
	}

	// Breaker-gated probe + discovery
	registry := breaker.NewRegistry(breaker.DefaultConfig(), logger)
	quotes := probe.New(quoter, registry.Get(executor.BreakerQuotes), probe.DefaultConfig(), logger)

	discCfg := discovery.DefaultConfig()
	discCfg.Candidates = candidateTokens
	discCfg.HighLiquidityCore = splitSymbols(*coreTokens)
	discCfg.InputAmount = decimal.NewFromFloat(*inputAmount)
	discCfg.Verbose = *verbose
	disc := discovery.New(quotes, discCfg, logger)

	start := time.Now()
	routes, err := disc.Discover(ctx, base, discovery.DepthRange{Min: *minHops, Max: *maxHops}, decimal.NewFromFloat(*minProfit))
	if err != nil {
		logger.Fatalf("Scan failed: %v", err)
	}
	logger.Printf("Scan finished in %v: %d routes above %.2f%%", time.Since(start).Round(time.Millisecond), len(routes), *minProfit)

	if *outputJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(routes); err != nil {
			logger.Fatalf("Encode routes: %v", err)
		}
		return
	}

	printRoutes(routes)
}

// printRoutes renders the ranked scan result as a table.
func printRoutes(routes []*domain.Route) {
	if len(routes) == 0 {
		fmt.Println("No profitable routes found.")
		return
	}

	fmt.Printf("%-4s %-40s %-6s %10s %12s %12s %s\n",
		"#", "PATH", "HOPS", "NET %", "NET PROFIT", "GAS", "CONFIDENCE")
	for i, r := range routes {
		fmt.Printf("%-4d %-40s %-6d %9s%% %12s %12s %s\n",
			i+1,
			r.PathString(),
			r.Hops(),
			r.NetProfitPercent.StringFixed(3),
			r.NetProfit.StringFixed(4),
			r.EstimatedGas.StringFixed(2),
			r.Confidence)
	}
}

// demoVenue scripts a small venue with one triangular inefficiency so the
// scanner can be exercised without network access.
func demoVenue() *stub.Venue {
	venue := stub.NewVenue()
	venue.AddPair("GALA", "GUSDC", domain.FeeTierMedium, decimal.NewFromFloat(0.02))
	venue.AddPair("GALA", "GWETH", domain.FeeTierMedium, decimal.NewFromFloat(0.000008))
	venue.AddPair("GUSDC", "GWETH", domain.FeeTierMedium, decimal.NewFromFloat(0.00042))
	venue.SetBalance("GALA", decimal.NewFromInt(10000))
	return venue
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
