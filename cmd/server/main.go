package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"mazecraft.ai/internal/persistence/indexdb"
	persistlog "mazecraft.ai/internal/persistence/log"
	"mazecraft.ai/internal/persistence/snapshot"
	"mazecraft.ai/internal/sim/engine"
	"mazecraft.ai/internal/sim/maze"
	"mazecraft.ai/internal/sim/perceive"
	"mazecraft.ai/internal/sim/persona"
	"mazecraft.ai/internal/sim/tuning"
	"mazecraft.ai/internal/transport/ws"
)

func main() {
	var (
		addr       = flag.String("addr", ":8080", "http listen address")
		mazeID     = flag.String("maze", "maze_1", "maze id")
		dataDir    = flag.String("data", "./data", "runtime data directory")
		tuningPath = flag.String("tuning", "./configs/tuning.yaml", "path to tuning.yaml")
		mazePath   = flag.String("maze_file", "", "path to maze.json (default: tuning maze_path)")
		disableDB  = flag.Bool("disable_db", false, "disable the sqlite perception index")

		snapPath   = flag.String("snapshot", "", "path to snapshot to load (optional)")
		loadLatest = flag.Bool("load_latest_snapshot", true, "load latest snapshot from data dir if present (when -snapshot is empty)")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lmicroseconds)

	tune, err := tuning.Load(*tuningPath)
	if err != nil {
		if os.IsNotExist(err) {
			logger.Printf("tuning not found (%s); using defaults", *tuningPath)
			tune = tuning.Defaults()
		} else {
			logger.Fatalf("load tuning: %v", err)
		}
	}

	mazeDir := filepath.Join(*dataDir, "mazes", *mazeID)
	_ = os.MkdirAll(mazeDir, 0o755)

	var idx *indexdb.SQLiteIndex
	if !*disableDB {
		idx, err = indexdb.OpenSQLite(filepath.Join(mazeDir, "index.db"))
		if err != nil {
			logger.Fatalf("open index: %v", err)
		}
		defer idx.Close()
	}

	// Resume from snapshot when one exists, otherwise load the maze file
	// (falling back to the 10x10 default on any load failure).
	m, scratches := openMaze(*snapPath, *loadLatest, mazeDir, *mazePath, tune, logger)
	m.SetLogger(logger)

	cfg := engine.Config{
		MazeID:       *mazeID,
		TickRateHz:   tune.TickRateHz,
		VisionR:      tune.VisionR,
		AttBandwidth: tune.AttBandwidth,
		Retention:    tune.Retention,
	}

	perceptionLog := persistlog.NewPerceptionLogger(mazeDir)
	defer perceptionLog.Close()

	sinks := []engine.ObsSink{perceptionLog}
	if idx != nil {
		sinks = append(sinks, idx)
	}

	eng := engine.New(cfg, m, perceive.FlatScorer(1), logger, sinks...)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// The loop outlives the signal context so the final snapshot below can
	// still reach it.
	engineCtx, stopEngine := context.WithCancel(context.Background())
	defer stopEngine()
	go eng.Run(engineCtx)

	// Re-join agents restored from the snapshot.
	for _, s := range scratches {
		if _, err := eng.RequestJoin(ctx, s.Name, s); err != nil {
			logger.Printf("rejoin %s: %v", s.Name, err)
		}
	}

	// Periodic snapshots.
	if tune.SnapshotEveryTicks > 0 && tune.TickRateHz > 0 {
		interval := time.Duration(tune.SnapshotEveryTicks) * time.Second / time.Duration(tune.TickRateHz)
		go func() {
			t := time.NewTicker(interval)
			defer t.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-t.C:
					writeSnapshot(ctx, eng, idx, mazeDir, logger)
				}
			}
		}()
	}

	wsServer := ws.NewServer(eng, logger)
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/ws", wsServer.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	srv := &http.Server{Addr: *addr, Handler: mux}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Printf("maze %s (%dx%d) listening on %s", *mazeID, m.Width(), m.Height(), *addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("serve: %v", err)
	}

	// Final snapshot on clean shutdown.
	writeSnapshot(context.Background(), eng, idx, mazeDir, logger)
	stopEngine()
}

func openMaze(snapPath string, loadLatest bool, mazeDir, mazePath string, tune tuning.Tuning, logger *log.Logger) (*maze.Maze, []*persona.Scratch) {
	p := strings.TrimSpace(snapPath)
	if p == "" && loadLatest {
		p = latestSnapshot(mazeDir)
	}
	if p != "" {
		snap, err := snapshot.Read(p)
		if err != nil {
			logger.Printf("read snapshot %s: %v; starting fresh", p, err)
		} else {
			m, scratches, err := engine.RestoreMaze(snap)
			if err != nil {
				logger.Printf("restore snapshot %s: %v; starting fresh", p, err)
			} else {
				logger.Printf("resumed from snapshot %s (tick %d)", p, snap.Header.Tick)
				return m, scratches
			}
		}
	}

	mp := strings.TrimSpace(mazePath)
	if mp == "" {
		mp = tune.MazePath
	}
	if mp == "" {
		logger.Printf("no maze file configured; using default 10x10")
		return maze.Default(), nil
	}
	return maze.LoadOrDefault(mp, tune.SchemaPath, logger), nil
}

func latestSnapshot(mazeDir string) string {
	entries, err := os.ReadDir(filepath.Join(mazeDir, "snapshots"))
	if err != nil {
		return ""
	}
	best := ""
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".snap.zst") {
			continue
		}
		if e.Name() > best {
			best = e.Name()
		}
	}
	if best == "" {
		return ""
	}
	return filepath.Join(mazeDir, "snapshots", best)
}

func writeSnapshot(ctx context.Context, eng *engine.Engine, idx *indexdb.SQLiteIndex, mazeDir string, logger *log.Logger) {
	snapCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	snap, err := eng.RequestSnapshot(snapCtx)
	if err != nil {
		logger.Printf("snapshot: %v", err)
		return
	}
	path := filepath.Join(mazeDir, "snapshots", fmt.Sprintf("%012d.snap.zst", snap.Header.Tick))
	if err := snapshot.Write(path, snap); err != nil {
		logger.Printf("write snapshot: %v", err)
		return
	}
	if idx != nil {
		idx.RecordSnapshot(path, snap)
	}
	logger.Printf("snapshot written: %s", path)
}
