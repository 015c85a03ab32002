// Package main provides the unified lab server:
// - Feed (continuous): WebSocket ticks → signal pipeline → simulation
// - Evolution (scheduled): evaluate → rank → retire → refill
// - Persistence: snapshots and trade log to PostgreSQL, ticks to ClickHouse
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"spread-strategy-lab/internal/config"
	"spread-strategy-lab/internal/domain"
	"spread-strategy-lab/internal/feed"
	"spread-strategy-lab/internal/lab"
	"spread-strategy-lab/internal/observability"
	"spread-strategy-lab/internal/storage"
	chstore "spread-strategy-lab/internal/storage/clickhouse"
	"spread-strategy-lab/internal/storage/memory"
	"spread-strategy-lab/internal/storage/migrations"
	pgstore "spread-strategy-lab/internal/storage/postgres"
)

// Server holds all components of the lab service.
type Server struct {
	cfg    *config.Config
	lab    *lab.Lab
	stores *allStores
	logger *log.Logger

	// State
	mu           sync.Mutex
	started      time.Time
	lastCycleRun time.Time
	cycleRuns    int
	tradesSaved  int
}

// allStores holds all storage implementations.
type allStores struct {
	snapshotStore storage.SnapshotStore
	tradeStore    storage.TradeLogStore
	tickStore     storage.TickStore
}

func main() {
	loadEnvFile()

	// Parse flags (env vars as defaults)
	configPath := flag.String("config", os.Getenv("LAB_CONFIG"), "YAML config file path")
	wsEndpoint := flag.String("ws-endpoint", os.Getenv("FEED_WS_ENDPOINT"), "Tick feed WebSocket endpoint")
	postgresDSN := flag.String("postgres-dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL connection string")
	clickhouseDSN := flag.String("clickhouse-dsn", os.Getenv("CLICKHOUSE_DSN"), "ClickHouse connection string")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage instead of PostgreSQL/ClickHouse")
	listenAddr := flag.String("listen-addr", "", "HTTP listen address (overrides config)")
	restore := flag.Bool("restore", true, "Restore the latest snapshot on start")
	verbose := flag.Bool("verbose", false, "Verbose output")

	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lshortfile)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatalf("Failed to load config: %v", err)
	}
	if *wsEndpoint != "" {
		cfg.Feed.WSEndpoint = *wsEndpoint
	}
	if *postgresDSN != "" {
		cfg.Storage.PostgresDSN = *postgresDSN
	}
	if *clickhouseDSN != "" {
		cfg.Storage.ClickhouseDSN = *clickhouseDSN
	}
	if *listenAddr != "" {
		cfg.Server.ListenAddr = *listenAddr
	}
	if *verbose {
		cfg.Server.Verbose = true
	}

	if cfg.Feed.WSEndpoint == "" {
		logger.Fatal("--ws-endpoint is required")
	}
	if !*useMemory && (cfg.Storage.PostgresDSN == "" || cfg.Storage.ClickhouseDSN == "") {
		logger.Fatal("--postgres-dsn and --clickhouse-dsn are required (use --use-memory for in-memory storage)")
	}

	ctx, cancel := context.WithCancel(context.Background())

	stores, cleanup, err := createStores(ctx, cfg.Storage, *useMemory)
	if err != nil {
		logger.Fatalf("Failed to create stores: %v", err)
	}
	defer cleanup()

	l, err := lab.New(lab.Options{
		Signal:    cfg.Signal,
		Risk:      cfg.Risk,
		Evolution: cfg.Evolution,
		Eval:      cfg.EvalConfig(),
		Bounds:    cfg.Bounds,
		Logger:    logger,
		Verbose:   cfg.Server.Verbose,
	})
	if err != nil {
		logger.Fatalf("Failed to create lab: %v", err)
	}

	if *restore {
		snap, err := stores.snapshotStore.GetLatest(ctx)
		switch {
		case err == nil:
			if err := l.Restore(snap); err != nil {
				logger.Fatalf("Failed to restore snapshot: %v", err)
			}
			logger.Printf("Restored snapshot at generation %d", snap.Generation)
		case errors.Is(err, storage.ErrNotFound):
			logger.Println("No snapshot found, starting fresh")
		default:
			logger.Fatalf("Failed to load latest snapshot: %v", err)
		}
	}

	server := &Server{
		cfg:     cfg,
		lab:     l,
		stores:  stores,
		logger:  logger,
		started: time.Now(),
	}

	done := make(chan error, 1)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

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
		}
	}()

	go server.startHTTPServer(cfg.Server.ListenAddr)

	err = server.Run(ctx)
	done <- err
	cancel()

	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatalf("Server error: %v", err)
	}

	// Final snapshot before exit
	if err := server.persistSnapshot(context.Background()); err != nil {
		logger.Printf("Final snapshot failed: %v", err)
	}

	logger.Println("Shutdown complete")
}

// createStores creates all required stores.
func createStores(ctx context.Context, cfg config.StorageConfig, useMemory bool) (*allStores, func(), error) {
	if useMemory {
		stores := &allStores{
			snapshotStore: memory.NewSnapshotStore(),
			tradeStore:    memory.NewTradeLogStore(),
			tickStore:     memory.NewTickStore(),
		}
		return stores, func() {}, nil
	}

	pool, err := pgstore.NewPool(ctx, cfg.PostgresDSN)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("postgres migrations: %w", err)
	}

	chConn, err := migrations.RunClickhouseMigrations(ctx, cfg.ClickhouseDSN)
	if err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("clickhouse migrations: %w", err)
	}

	stores := &allStores{
		snapshotStore: pgstore.NewSnapshotStore(pool),
		tradeStore:    pgstore.NewTradeLogStore(pool),
		tickStore:     chstore.NewTickStore(chConn),
	}

	cleanup := func() {
		chConn.Close()
		pool.Close()
	}
	return stores, cleanup, nil
}

// Run starts the feed consumer and the evolution scheduler.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Println("Starting lab server...")

	errCh := make(chan error, 2)

	go func() {
		err := s.runFeed(ctx)
		if err != nil && !errors.Is(err, context.Canceled) {
			errCh <- fmt.Errorf("feed: %w", err)
		}
	}()

	go func() {
		err := s.runCycleScheduler(ctx)
		if err != nil && !errors.Is(err, context.Canceled) {
			errCh <- fmt.Errorf("cycle scheduler: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

// runFeed consumes live ticks, batching them into Advance calls and
// persisting the raw ticks and the closed trades each batch produced.
func (s *Server) runFeed(ctx context.Context) error {
	s.logger.Printf("Connecting to tick feed %s...", s.cfg.Feed.WSEndpoint)

	wsFeed, err := feed.NewWSFeed(ctx, s.cfg.Feed.WSEndpoint, nil, s.logger)
	if err != nil {
		return fmt.Errorf("connect tick feed: %w", err)
	}
	defer wsFeed.Close()
	s.logger.Println("Feed connected")

	batchWindow := time.Duration(s.cfg.Feed.BatchMs) * time.Millisecond
	if batchWindow <= 0 {
		batchWindow = 250 * time.Millisecond
	}
	ticker := time.NewTicker(batchWindow)
	defer ticker.Stop()

	var batch []*domain.Tick
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case tick, ok := <-wsFeed.Ticks():
			if !ok {
				return errors.New("feed channel closed")
			}
			batch = append(batch, tick)
		case <-ticker.C:
			if len(batch) == 0 {
				continue
			}
			s.processBatch(ctx, batch)
			batch = nil
		}
	}
}

// processBatch advances the lab over one tick batch and persists results.
func (s *Server) processBatch(ctx context.Context, batch []*domain.Tick) {
	start := time.Now()
	if err := s.stores.tickStore.InsertBulk(ctx, batch); err != nil && !errors.Is(err, storage.ErrDuplicateKey) {
		s.logger.Printf("Tick archive write failed: %v", err)
	}
	observability.RecordDBQuery("clickhouse", "insert_ticks", time.Since(start).Seconds(), nil)

	res, err := s.lab.Advance(ctx, batch)
	if err != nil {
		if errors.Is(err, lab.ErrPaused) {
			return
		}
		s.logger.Printf("Advance failed: %v", err)
		return
	}

	if len(res.ClosedTrades) > 0 {
		start = time.Now()
		err := s.stores.tradeStore.InsertBulk(ctx, res.ClosedTrades)
		observability.RecordDBQuery("postgres", "insert_trades", time.Since(start).Seconds(), err)
		if err != nil {
			s.logger.Printf("Trade log write failed: %v", err)
			return
		}
		s.mu.Lock()
		s.tradesSaved += len(res.ClosedTrades)
		s.mu.Unlock()
	}
}

// runCycleScheduler runs evolution cycles on schedule, plus a daily reset
// of the risk counters at UTC midnight.
func (s *Server) runCycleScheduler(ctx context.Context) error {
	interval := time.Duration(s.cfg.Server.CycleIntervalSec) * time.Second
	if interval <= 0 {
		s.logger.Println("Cycle scheduler disabled (cycle_interval_sec = 0)")
		<-ctx.Done()
		return ctx.Err()
	}
	s.logger.Printf("Starting cycle scheduler (interval: %v)...", interval)

	cycleTicker := time.NewTicker(interval)
	defer cycleTicker.Stop()

	dailyTimer := time.NewTimer(untilNextUTCMidnight(time.Now()))
	defer dailyTimer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-cycleTicker.C:
			s.runCycle(ctx)
		case <-dailyTimer.C:
			s.lab.ResetDaily()
			dailyTimer.Reset(untilNextUTCMidnight(time.Now()))
		}
	}
}

// runCycle executes one evolution cycle and persists a snapshot when due.
func (s *Server) runCycle(ctx context.Context) {
	result, err := s.lab.RunEvolutionCycle()
	if err != nil {
		s.logger.Printf("Evolution cycle failed: %v", err)
		return
	}
	s.logger.Printf("Cycle complete: generation %d, champion %s, retired %d",
		result.Generation, result.ChampionID, len(result.RetiredIDs))

	s.mu.Lock()
	s.lastCycleRun = time.Now()
	s.cycleRuns++
	cycles := s.cycleRuns
	s.mu.Unlock()

	if every := s.cfg.Server.SnapshotEvery; every > 0 && cycles%every == 0 {
		if err := s.persistSnapshot(ctx); err != nil {
			s.logger.Printf("Snapshot failed: %v", err)
		}
	}
}

// persistSnapshot stores the current lab state, skipping generations that
// already have one.
func (s *Server) persistSnapshot(ctx context.Context) error {
	snap, err := s.lab.Snapshot()
	if err != nil {
		return err
	}

	start := time.Now()
	err = s.stores.snapshotStore.Insert(ctx, snap)
	observability.RecordDBQuery("postgres", "insert_snapshot", time.Since(start).Seconds(), err)
	if errors.Is(err, storage.ErrDuplicateKey) {
		return nil
	}
	if err != nil {
		return err
	}

	observability.RecordSnapshot(time.Now().Unix())
	s.logger.Printf("Snapshot persisted for generation %d", snap.Generation)
	return nil
}

// startHTTPServer starts the HTTP server for health/metrics/queries/control.
func (s *Server) startHTTPServer(addr string) {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.Handle("GET /metrics", observability.Handler())
	mux.HandleFunc("GET /status", s.handleStatus)

	// Queries
	mux.HandleFunc("GET /population", s.handlePopulation)
	mux.HandleFunc("GET /champion", s.handleChampion)
	mux.HandleFunc("GET /risk", s.handleRisk)
	mux.HandleFunc("GET /mirror", s.handleMirror)
	mux.HandleFunc("GET /agents/{id}/trades", s.handleAgentTrades)
	mux.HandleFunc("GET /agents/{id}/equity", s.handleAgentEquity)

	// Controls
	mux.HandleFunc("POST /control/pause", s.handlePause)
	mux.HandleFunc("POST /control/resume", s.handleResume)
	mux.HandleFunc("POST /control/kill-switch/engage", s.handleKillEngage)
	mux.HandleFunc("POST /control/kill-switch/reset", s.handleKillReset)
	mux.HandleFunc("POST /control/cycle", s.handleCycle)
	mux.HandleFunc("POST /control/snapshot", s.handleSnapshot)
	mux.HandleFunc("POST /control/reset-daily", s.handleResetDaily)

	s.logger.Printf("Starting HTTP server on %s", addr)
	if err := http.ListenAndServe(addr, mux); err != nil && !errors.Is(err, http.ErrServerClosed) {
		s.logger.Printf("HTTP server error: %v", err)
	}
}

// StatusResponse is the JSON response for the /status endpoint.
type StatusResponse struct {
	Status       string    `json:"status"`
	Uptime       string    `json:"uptime"`
	Generation   int       `json:"generation"`
	ChampionID   string    `json:"champion_id,omitempty"`
	Paused       bool      `json:"paused"`
	Samples      int64     `json:"samples"`
	DataGaps     int64     `json:"data_gaps"`
	CycleRuns    int       `json:"cycle_runs"`
	LastCycleRun time.Time `json:"last_cycle_run,omitempty"`
	TradesSaved  int       `json:"trades_saved"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	samples, gaps := s.lab.PipelineStats()

	s.mu.Lock()
	resp := StatusResponse{
		Status:       "running",
		Uptime:       time.Since(s.started).String(),
		Generation:   s.lab.Generation(),
		ChampionID:   s.lab.ChampionID(),
		Paused:       s.lab.Paused(),
		Samples:      samples,
		DataGaps:     gaps,
		CycleRuns:    s.cycleRuns,
		LastCycleRun: s.lastCycleRun,
		TradesSaved:  s.tradesSaved,
	}
	s.mu.Unlock()

	writeJSON(w, resp)
}

func (s *Server) handlePopulation(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.lab.PopulationView())
}

func (s *Server) handleChampion(w http.ResponseWriter, r *http.Request) {
	id := s.lab.ChampionID()
	if id == "" {
		http.Error(w, "no champion designated yet", http.StatusNotFound)
		return
	}
	for _, member := range s.lab.PopulationView() {
		if member.IsChampion {
			writeJSON(w, member)
			return
		}
	}
	http.Error(w, "champion not in population", http.StatusInternalServerError)
}

func (s *Server) handleRisk(w http.ResponseWriter, r *http.Request) {
	snap, reason := s.lab.RiskStatus()
	writeJSON(w, struct {
		domain.RiskLedgerSnapshot
		KillSwitchReason string `json:"kill_switch_reason,omitempty"`
	}{snap, reason})
}

func (s *Server) handleMirror(w http.ResponseWriter, r *http.Request) {
	state, championID := s.lab.MirrorState()
	if state == nil {
		http.Error(w, "mirror not active yet", http.StatusNotFound)
		return
	}
	writeJSON(w, struct {
		ChampionID string             `json:"champion_id"`
		State      *domain.AgentState `json:"state"`
	}{championID, state})
}

func (s *Server) handleAgentTrades(w http.ResponseWriter, r *http.Request) {
	trades, err := s.lab.AgentTrades(r.PathValue("id"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	writeJSON(w, trades)
}

func (s *Server) handleAgentEquity(w http.ResponseWriter, r *http.Request) {
	curve, err := s.lab.AgentEquity(r.PathValue("id"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	writeJSON(w, curve)
}

func (s *Server) handlePause(w http.ResponseWriter, r *http.Request) {
	s.lab.Pause()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleResume(w http.ResponseWriter, r *http.Request) {
	s.lab.Resume()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleKillEngage(w http.ResponseWriter, r *http.Request) {
	reason := r.URL.Query().Get("reason")
	if reason == "" {
		reason = "manual"
	}
	s.lab.EngageKillSwitch(reason)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleKillReset(w http.ResponseWriter, r *http.Request) {
	s.lab.ResetKillSwitch()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleCycle(w http.ResponseWriter, r *http.Request) {
	result, err := s.lab.RunEvolutionCycle()
	if err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}
	s.mu.Lock()
	s.lastCycleRun = time.Now()
	s.cycleRuns++
	s.mu.Unlock()
	writeJSON(w, result)
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	if err := s.persistSnapshot(r.Context()); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleResetDaily(w http.ResponseWriter, r *http.Request) {
	s.lab.ResetDaily()
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

// untilNextUTCMidnight returns the wait until the next UTC day boundary.
func untilNextUTCMidnight(now time.Time) time.Duration {
	next := now.UTC().Truncate(24 * time.Hour).Add(24 * time.Hour)
	return next.Sub(now.UTC())
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

		if os.Getenv(key) == "" {
			os.Setenv(key, value)
		}
	}
}
