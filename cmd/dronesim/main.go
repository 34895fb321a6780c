package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/net/netutil"

	"dronesim/internal/api"
	"dronesim/pkg/config"
	"dronesim/pkg/db"
	"dronesim/pkg/db/maintenance"
	"dronesim/pkg/link"
	"dronesim/pkg/logging"
	"dronesim/pkg/model"
	"dronesim/pkg/probe"
	"dronesim/pkg/sim"
	"dronesim/pkg/store"
	"dronesim/pkg/version"
)

var (
	configPath  = flag.String("config", "configs/dronesim.yaml", "Path to the config file")
	initConfig  = flag.Bool("init-config", false, "Generate default config file and exit")
	missionFile = flag.String("mission", "", "Start this mission (JSON descriptor) on launch")
	exportRun   = flag.String("export", "", "Write the recorded telemetry of a run as CSV to stdout and exit")
)

func main() {
	flag.Parse()

	// A missing .env is normal outside containers
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "Failed to load .env: %v\n", err)
	}

	// Handle --init-config flag
	if *initConfig {
		if err := config.GenerateDefault(*configPath); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to generate config: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Config file generated: %s\n", *configPath)
		return
	}

	if *exportRun != "" {
		if err := export(context.Background(), *configPath, *exportRun); err != nil {
			fmt.Fprintf(os.Stderr, "Export failed: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if err := run(context.Background(), *configPath); err != nil {
		fmt.Fprintf(os.Stderr, "CRITICAL ERROR: Application failed: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, configPath string) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	appCfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	cleanupLogs, err := logging.Init(&appCfg.Log)
	if err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	defer cleanupLogs()

	slog.Info("Drone simulator started", "version", version.Version, "tick_rate_hz", appCfg.Sim.TickRateHz)

	var wg sync.WaitGroup
	linkCtx, stopLink := context.WithCancel(ctx)
	defer stopLink()

	// The link needs the simulator as dispatcher and the simulator needs the
	// link as sink; sinkRelay breaks the cycle.
	sinks := sim.MultiSink{logging.EventSink{}}
	var recorder *store.Recorder
	var flightsH *api.FlightsHandler
	var dbConn *db.DB

	if appCfg.Recorder.Enabled {
		dbConn, err = db.Init(appCfg.DB.Path)
		if err != nil {
			return fmt.Errorf("failed to initialize database: %w", err)
		}
		defer dbConn.Close()

		if err := maintenance.Run(ctx, dbConn, appCfg.DB.Retention.Std()); err != nil {
			slog.Error("Maintenance tasks failed", "error", err)
		}

		st := store.NewSQLiteStore(dbConn)
		recorder = store.NewRecorder(st, &appCfg.Recorder)
		flightsH = api.NewFlightsHandler(st)
		sinks = append(sinks, recorder)

		recCtx, stopRecorder := context.WithCancel(context.Background())
		go recorder.Run(recCtx)
		defer func() {
			stopRecorder()
			<-recorder.Done()
		}()
	}

	if err := probe.AnalyzeResults(probe.Run(ctx, probe.Startup(appCfg, dbConn))); err != nil {
		return fmt.Errorf("startup checks failed: %w", err)
	}

	relay := &sinkRelay{}
	sinks = append(sinks, relay)
	simulator := sim.New(&appCfg.Sim, sim.WithSink(sinks))

	linkClient := link.NewClient(&appCfg.Link, simulator)
	relay.set(linkClient)

	wg.Add(2)
	go func() {
		defer wg.Done()
		if err := linkClient.Run(linkCtx); err != nil {
			slog.Error("Control link stopped", "error", err)
		}
	}()
	simCtx, stopSim := context.WithCancel(ctx)
	go func() {
		defer wg.Done()
		if err := simulator.Run(simCtx); err != nil {
			slog.Error("Simulator stopped", "error", err)
		}
	}()
	// Tick loop stops before the link so final events still go out
	defer func() {
		stopSim()
		stopLink()
		wg.Wait()
	}()

	if *missionFile != "" {
		if err := startMission(simulator, *missionFile); err != nil {
			return err
		}
	}

	var recStats api.RecorderStats
	if recorder != nil {
		recStats = recorder
	}
	return runServer(ctx, appCfg, simulator, linkClient, flightsH, recStats)
}

// sinkRelay forwards to a sink that is attached after the simulator exists.
type sinkRelay struct {
	mu   sync.RWMutex
	sink sim.EventSink
}

func (r *sinkRelay) set(s sim.EventSink) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sink = s
}

func (r *sinkRelay) PublishTelemetry(t *model.Telemetry) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.sink != nil {
		r.sink.PublishTelemetry(t)
	}
}

func (r *sinkRelay) PublishStatus(ev *model.StatusEvent) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.sink != nil {
		r.sink.PublishStatus(ev)
	}
}

func startMission(s *sim.Simulator, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read mission file: %w", err)
	}
	var d model.MissionDescriptor
	if err := json.Unmarshal(data, &d); err != nil {
		return fmt.Errorf("failed to parse mission file: %w", err)
	}
	id := d.MissionID
	cmd := model.Command{Action: model.ActionStart, MissionID: &id, MissionDescriptor: d}
	if !s.Submit(cmd) {
		return fmt.Errorf("simulator rejected mission from %s", path)
	}
	slog.Info("Mission queued from file", "path", path, "mission_id", id, "waypoints", len(d.Waypoints))
	return nil
}

func runServer(ctx context.Context, cfg *config.Config, s *sim.Simulator, l *link.Client, flightsH *api.FlightsHandler, rec api.RecorderStats) error {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(quit)
	shutdownFunc := func() { quit <- syscall.SIGTERM }

	if cfg.Server.Address == "" {
		slog.Info("Local API disabled")
		select {
		case <-quit:
		case <-ctx.Done():
		}
		return nil
	}

	srv := api.NewServer(cfg.Server.Address,
		api.NewTelemetryHandler(s, l),
		api.NewMissionHandler(s),
		flightsH,
		api.NewStatsHandler(l, rec),
		shutdownFunc,
	)
	srv.Handler = loggingMiddleware(srv.Handler)
	return runServerLifecycle(ctx, srv, cfg.Server.MaxConnections, quit)
}

func runServerLifecycle(ctx context.Context, srv *http.Server, maxConns int, quit chan os.Signal) error {
	l, err := net.Listen("tcp", srv.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", srv.Addr, err)
	}
	if maxConns > 0 {
		l = netutil.LimitListener(l, maxConns)
	}

	slog.Info("Starting server", "addr", srv.Addr, "max_connections", maxConns)
	serverErrors := make(chan error, 1)
	go func() {
		if err := srv.Serve(l); err != nil && err != http.ErrServerClosed {
			serverErrors <- err
		}
	}()
	select {
	case <-quit:
		slog.Info("Shutting down server...")
	case <-ctx.Done():
		slog.Info("Context cancelled, shutting down...")
	case err := <-serverErrors:
		return fmt.Errorf("server failed: %w", err)
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		logging.RequestLogger.Info("Request Processed", "method", r.Method, "path", r.URL.Path, "duration", time.Since(start))
	})
}

func export(ctx context.Context, configPath, runID string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	d, err := db.Init(cfg.DB.Path)
	if err != nil {
		return err
	}
	defer d.Close()

	n, err := maintenance.ExportCSV(ctx, d, runID, os.Stdout)
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("no telemetry recorded for run %s", runID)
	}
	fmt.Fprintf(os.Stderr, "Exported %d rows\n", n)
	return nil
}
