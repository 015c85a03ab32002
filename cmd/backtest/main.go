// Package main provides the offline backtest entry point: it runs the full
// lab over a recorded tick file, firing an evolution cycle every fixed
// number of samples, and prints the final ranking.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"spread-strategy-lab/internal/config"
	"spread-strategy-lab/internal/domain"
	"spread-strategy-lab/internal/lab"
)

func main() {
	configPath := flag.String("config", os.Getenv("LAB_CONFIG"), "YAML config file path")
	ticksPath := flag.String("ticks", "", "JSONL tick file, one tick object per line (required)")
	cycleEvery := flag.Int("cycle-every", 5000, "Samples between evolution cycles")
	batchSize := flag.Int("batch-size", 500, "Ticks per Advance call")
	outputJSON := flag.Bool("json", false, "Output final ranking as JSON")
	verbose := flag.Bool("verbose", false, "Verbose output")

	flag.Parse()

	logger := log.New(os.Stderr, "[backtest] ", log.LstdFlags)

	if *ticksPath == "" {
		logger.Fatal("--ticks is required")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, stopping backtest...", sig)
		cancel()
	}()

	l, err := lab.New(lab.Options{
		Signal:    cfg.Signal,
		Risk:      cfg.Risk,
		Evolution: cfg.Evolution,
		Eval:      cfg.EvalConfig(),
		Bounds:    cfg.Bounds,
		Logger:    logger,
		Verbose:   *verbose,
	})
	if err != nil {
		logger.Fatalf("create lab: %v", err)
	}

	file, err := os.Open(*ticksPath)
	if err != nil {
		logger.Fatalf("open tick file: %v", err)
	}
	defer file.Close()

	var (
		batch        []*domain.Tick
		ticksIn      int
		samplesTotal int64
		sinceCycle   int64
		cycles       int
	)

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		res, err := l.Advance(ctx, batch)
		if err != nil {
			return err
		}
		batch = batch[:0]
		samplesTotal += int64(res.Samples)
		sinceCycle += int64(res.Samples)

		if sinceCycle >= int64(*cycleEvery) {
			sinceCycle = 0
			result, err := l.RunEvolutionCycle()
			if err != nil {
				return fmt.Errorf("evolution cycle: %w", err)
			}
			cycles++
			logger.Printf("cycle %d: generation %d, champion %s",
				cycles, result.Generation, result.ChampionID)
		}
		return nil
	}

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 1<<20), 1<<20)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var tick domain.Tick
		if err := json.Unmarshal(line, &tick); err != nil {
			logger.Fatalf("parse tick at line %d: %v", ticksIn+1, err)
		}
		ticksIn++
		batch = append(batch, &tick)

		if len(batch) >= *batchSize {
			if err := flush(); err != nil {
				logger.Fatalf("advance: %v", err)
			}
		}
	}
	if err := scanner.Err(); err != nil {
		logger.Fatalf("read tick file: %v", err)
	}
	if err := flush(); err != nil {
		logger.Fatalf("advance: %v", err)
	}

	samples, gaps := l.PipelineStats()
	logger.Printf("backtest done: %d ticks, %d samples, %d gaps, %d cycles",
		ticksIn, samples, gaps, cycles)

	printRanking(l, *outputJSON)
}

// printRanking prints the population sorted by equity, champion first on ties.
func printRanking(l *lab.Lab, asJSON bool) {
	views := l.PopulationView()
	sort.Slice(views, func(i, j int) bool {
		if views[i].Equity != views[j].Equity {
			return views[i].Equity > views[j].Equity
		}
		return views[i].IsChampion
	})

	if asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		enc.Encode(views)
		return
	}

	fmt.Printf("%-12s %-4s %12s %8s %8s %s\n", "AGENT", "GEN", "EQUITY", "TRADES", "FAULTED", "CHAMPION")
	for _, v := range views {
		champion := ""
		if v.IsChampion {
			champion = "*"
		}
		fmt.Printf("%-12s %-4d %12.2f %8d %8v %s\n",
			v.Genome.ID, v.Genome.Generation, v.Equity, v.TradeCount, v.Faulted, champion)
	}
}
