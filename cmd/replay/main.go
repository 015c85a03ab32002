// Package main provides the replay verification entry point: it restores a
// persisted snapshot, replays the archived ticks that followed it, and
// reports whether the stored trade log is reproduced exactly.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"spread-strategy-lab/internal/config"
	"spread-strategy-lab/internal/lab"
	"spread-strategy-lab/internal/storage/clickhouse"
	pgstore "spread-strategy-lab/internal/storage/postgres"
	"spread-strategy-lab/internal/verification"
)

func main() {
	configPath := flag.String("config", os.Getenv("LAB_CONFIG"), "YAML config file path (must match the verified run)")
	generation := flag.Int("generation", 0, "Snapshot generation to replay from (required)")
	endTime := flag.String("end-time", "", "Replay window end (RFC3339); defaults to now")
	postgresDSN := flag.String("postgres-dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL connection string")
	clickhouseDSN := flag.String("clickhouse-dsn", os.Getenv("CLICKHOUSE_DSN"), "ClickHouse connection string")
	batchSize := flag.Int("batch-size", 1000, "Replayed tick batch size")
	outputJSON := flag.Bool("json", false, "Output as JSON")

	flag.Parse()

	logger := log.New(os.Stderr, "[replay] ", log.LstdFlags)

	if *generation <= 0 {
		logger.Fatal("--generation is required")
	}
	if *postgresDSN == "" || *clickhouseDSN == "" {
		logger.Fatal("--postgres-dsn and --clickhouse-dsn are required")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}

	end := time.Now().UnixMilli()
	if *endTime != "" {
		t, err := time.Parse(time.RFC3339, *endTime)
		if err != nil {
			logger.Fatalf("parse end-time: %v", err)
		}
		end = t.UnixMilli()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, shutting down...", sig)
		cancel()
	}()

	pool, err := pgstore.NewPool(ctx, *postgresDSN)
	if err != nil {
		logger.Fatalf("connect to postgres: %v", err)
	}
	defer pool.Close()

	chConn, err := clickhouse.NewConn(ctx, *clickhouseDSN)
	if err != nil {
		logger.Fatalf("connect to clickhouse: %v", err)
	}
	defer chConn.Close()

	verifier := verification.NewReplayVerifier(verification.ReplayVerifierOptions{
		SnapshotStore: pgstore.NewSnapshotStore(pool),
		TradeStore:    pgstore.NewTradeLogStore(pool),
		TickStore:     clickhouse.NewTickStore(chConn),
		LabOptions: lab.Options{
			Signal:    cfg.Signal,
			Risk:      cfg.Risk,
			Evolution: cfg.Evolution,
			Eval:      cfg.EvalConfig(),
			Bounds:    cfg.Bounds,
			Logger:    logger,
		},
		BatchSize: *batchSize,
	})

	report, err := verifier.VerifyGeneration(ctx, *generation, cfg.InstrumentID, end)
	if err != nil {
		logger.Fatalf("verification failed: %v", err)
	}

	if *outputJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			logger.Fatalf("encode report: %v", err)
		}
	} else {
		printReport(report)
	}

	if !report.Clean() {
		os.Exit(1)
	}
}

func printReport(report *verification.Report) {
	fmt.Printf("Replay verification, generation %d\n", report.Generation)
	fmt.Printf("  Stored trades:    %d\n", report.TotalTrades)
	fmt.Printf("  Matched:          %d\n", report.MatchedTrades)
	fmt.Printf("  Divergent:        %d\n", report.DivergentTrades)
	fmt.Printf("  Missing:          %d\n", report.MissingTrades)
	fmt.Printf("  Extra (replayed): %d\n", report.ExtraTrades)

	for _, r := range report.Results {
		if r.Match {
			continue
		}
		fmt.Printf("\n  trade %s (agent %s):\n", r.TradeID, r.AgentID)
		for _, d := range r.Divergences {
			fmt.Printf("    %-14s expected=%v actual=%v\n", d.Field, d.Expected, d.Actual)
		}
	}

	if report.Clean() {
		fmt.Println("\nResult: clean replay")
	} else {
		fmt.Println("\nResult: DIVERGENT")
	}
}
