package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"creepair.dev/internal/mend"
	persistlog "creepair.dev/internal/persistence/log"
	"creepair.dev/internal/persistence/snapshot"
	"creepair.dev/internal/sim/catalogs"
	"creepair.dev/internal/sim/tuning"
	"creepair.dev/internal/sim/world"
	"creepair.dev/internal/transport/console"
)

func main() {
	var (
		addr       = flag.String("addr", "127.0.0.1:8080", "http listen address")
		worldID    = flag.String("world", "", "world id (default: tuning world_id)")
		seed       = flag.Int64("seed", 0, "world seed for a fresh world (default: tuning seed)")
		configDir  = flag.String("configs", "./configs", "config directory")
		dataDir    = flag.String("data", "./data", "runtime data directory")
		tuningPath = flag.String("tuning", "", "path to tuning.yaml (default: <configs>/tuning.yaml)")
		disableDB  = flag.Bool("disable_db", false, "disable the sqlite mend index")

		snapPath   = flag.String("snapshot", "", "path to snapshot to load (optional)")
		loadLatest = flag.Bool("load_latest_snapshot", true, "load latest snapshot from data dir if present (when -snapshot is empty)")
		autosave   = flag.Duration("autosave", 5*time.Minute, "snapshot interval (0 disables)")

		allowRemote = flag.Bool("allow_remote_console", false, "accept console connections from non-loopback addresses")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lmicroseconds)

	cats, err := catalogs.Load(*configDir)
	if err != nil {
		logger.Fatalf("load catalogs: %v", err)
	}

	tp := strings.TrimSpace(*tuningPath)
	if tp == "" {
		tp = filepath.Join(*configDir, "tuning.yaml")
	}
	tune, err := tuning.Load(tp)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Fatalf("load tuning: %v", err)
		}
		logger.Printf("tuning not found (%s); using defaults", tp)
		tune = tuning.Defaults()
	}
	if *worldID != "" {
		tune.WorldID = *worldID
	}
	if *seed != 0 {
		tune.Seed = *seed
	}
	if unknown := cats.Blocks.Unknown(tune.Mend.ProtectedTypes); len(unknown) > 0 {
		logger.Printf("protected types not in block catalog (ignored by the world): %s", strings.Join(unknown, ", "))
	}

	worldDir := filepath.Join(*dataDir, "worlds", tune.WorldID)
	_ = os.MkdirAll(worldDir, 0o755)

	idx, err := openIndex(worldDir, *disableDB)
	if err != nil {
		logger.Fatalf("open index: %v", err)
	}
	if idx != nil {
		defer idx.Close()
		if err := idx.UpsertCatalogs(*configDir, cats, tune); err != nil {
			logger.Printf("index: upsert catalogs: %v", err)
		}
	}

	snapshotToLoad := strings.TrimSpace(*snapPath)
	if snapshotToLoad == "" && *loadLatest {
		snapshotToLoad = latestSnapshot(worldDir)
	}
	cfg := worldConfig(tune)
	var snap snapshot.SnapshotV1
	if snapshotToLoad != "" {
		snap, err = snapshot.ReadSnapshot(snapshotToLoad)
		if err != nil {
			logger.Fatalf("read snapshot: %v", err)
		}
		if snap.Header.WorldID != "" && snap.Header.WorldID != cfg.ID {
			logger.Fatalf("snapshot world id mismatch: world=%s snap=%s", cfg.ID, snap.Header.WorldID)
		}
		// Terrain shape comes from the snapshot; behaviour from tuning.
		cfg.Seed = snap.Seed
		cfg.Height = snap.Height
		cfg.SurfaceY = snap.SurfaceY
		cfg.BoundaryR = snap.BoundaryR
	}

	w, err := world.New(cfg, cats, log.New(os.Stdout, "[world] ", log.LstdFlags|log.Lmicroseconds))
	if err != nil {
		logger.Fatalf("world: %v", err)
	}
	if snapshotToLoad != "" {
		if err := w.ImportSnapshot(snap); err != nil {
			logger.Fatalf("import snapshot: %v", err)
		}
		logger.Printf("resumed from snapshot=%s tick=%d", filepath.Base(snapshotToLoad), w.CurrentTick())
	}

	mendJournal := persistlog.NewMendJournal(worldDir, logger)
	defer mendJournal.Close()

	mendLog := log.New(os.Stdout, "[mend] ", log.LstdFlags|log.Lmicroseconds)
	coord := mend.NewCoordinator(mend.Config{
		ProtectedTypes: tune.Mend.ProtectedTypes,
		PeriodTicks:    tune.Mend.PeriodTicks,
		MaxPerTick:     tune.Mend.MaxPerTick,
		Restorer:       w,
		Logger:         mendLog,
		Verbose:        tune.Mend.Verbose,
		Journal:        journals(mendJournal, idx),
	})
	mend.Attach(w.Events(), coord, mendLog, tune.Mend.SourceKinds...)
	// The loop is not running yet, so this goroutine still owns the scheduler.
	coord.Start(w.Scheduler())
	logger.Printf("mending %v explosions every %d ticks, %d blocks per record",
		tune.Mend.SourceKinds, tune.Mend.PeriodTicks, tune.Mend.MaxPerTick)

	saver := &snapshotSaver{w: w, worldDir: worldDir, idx: idx, log: logger}

	ctx, cancel := signalContext()
	defer cancel()

	worldDone := make(chan struct{})
	go func() {
		defer close(worldDone)
		if err := w.Run(ctx); err != nil && err != context.Canceled {
			logger.Printf("world stopped: %v", err)
		}
	}()

	if *autosave > 0 {
		go func() {
			t := time.NewTicker(*autosave)
			defer t.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-t.C:
					sctx, scancel := context.WithTimeout(ctx, 10*time.Second)
					if _, err := saver.Save(sctx); err != nil && ctx.Err() == nil {
						logger.Printf("autosave: %v", err)
					}
					scancel()
				}
			}
		}()
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(200)
		_, _ = rw.Write([]byte("ok"))
	})
	console.NewServer(console.Config{
		World:       w,
		Mend:        coord,
		Save:        saver.Save,
		Logger:      log.New(os.Stdout, "[console] ", log.LstdFlags|log.Lmicroseconds),
		AllowRemote: *allowRemote,
	}).Routes(mux)
	if envBool("CP_ENABLE_PPROF_HTTP", false) {
		mux.HandleFunc("/debug/pprof/", pprof.Index)
		mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	} else {
		logger.Printf("pprof endpoints disabled (CP_ENABLE_PPROF_HTTP=false)")
	}

	srv := &http.Server{
		Addr:              *addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		_ = srv.Shutdown(ctx2)
	}()

	logger.Printf("listening on %s", *addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		cancel()
		<-worldDone
		logger.Fatalf("ListenAndServe: %v", err)
	}
	cancel()
	<-worldDone

	// Pending mends are not persisted: finish them before the final snapshot.
	n := coord.Drain()
	coord.Stop()
	logger.Printf("shutdown: drained %d pending blocks", n)
	if _, err := saver.SaveStopped(); err != nil {
		logger.Printf("shutdown snapshot: %v", err)
	}
}

func worldConfig(t tuning.Tuning) world.WorldConfig {
	return world.WorldConfig{
		ID:               t.WorldID,
		TickRateHz:       t.TickRateHz,
		Seed:             t.Seed,
		Height:           t.Height,
		SurfaceY:         t.SurfaceY,
		BoundaryR:        t.BoundaryR,
		TreePermille:     t.TreePermille,
		DesertRegionSize: t.DesertRegionSize,
		CreeperRadius:    t.Mend.CreeperRadius,
		CreeperFuseTicks: t.Mend.CreeperFuseTicks,
		DecayDelayTicks:  t.DecayDelayTicks,
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}
