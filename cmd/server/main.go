// Command server runs a single authoritative world simulation and exposes
// the read-only observer endpoints. The sim loop owns all world state; HTTP
// handlers only ever touch it through the observer fan-out and the save DB.
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
	"strconv"
	"strings"
	"syscall"
	"time"

	"runnervale.ai/internal/persistence/savedb"
	"runnervale.ai/internal/protocol"
	"runnervale.ai/internal/persistence/snapshot"
	"runnervale.ai/internal/sim/catalogs"
	"runnervale.ai/internal/sim/events"
	"runnervale.ai/internal/sim/rules"
	"runnervale.ai/internal/sim/tasks"
	"runnervale.ai/internal/sim/tuning"
	"runnervale.ai/internal/sim/world"
	"runnervale.ai/internal/transport/observer"
)

func main() {
	var (
		addr       = flag.String("addr", "127.0.0.1:8787", "listen address (observer + health)")
		worldID    = flag.String("world", "w1", "world id")
		seed       = flag.Int64("seed", 1, "world seed for a fresh world")
		configDir  = flag.String("configs", "./configs", "config directory (items.yaml, worldmap.yaml, tuning.yaml)")
		dataDir    = flag.String("data", "./data", "data directory (snapshots, save db)")
		snapPath   = flag.String("snapshot", "", "resume from this snapshot file")
		loadLatest = flag.Bool("load_latest_snapshot", false, "resume from the newest snapshot under the world data dir")
		runnerN    = flag.Int("runners", 1, "runners to create in a fresh world")
		disableDB  = flag.Bool("disable_db", false, "skip the sqlite save/event database")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lmicroseconds)

	cats, err := catalogs.Load(*configDir)
	if err != nil {
		logger.Fatalf("load catalogs: %v", err)
	}
	logger.Printf("catalogs: %d items, %d nodes (hub=%s)", len(cats.Items.Defs), len(cats.Map.NodeIDs()), cats.Map.HubNodeID())

	tun := tuning.Default()
	tuningPath := filepath.Join(*configDir, "tuning.yaml")
	if _, statErr := os.Stat(tuningPath); statErr == nil {
		tun, err = tuning.Load(tuningPath)
		if err != nil {
			logger.Fatalf("load tuning: %v", err)
		}
	} else {
		logger.Printf("no tuning.yaml, using defaults")
	}

	worldDir := filepath.Join(*dataDir, *worldID)

	resume := *snapPath
	if resume == "" && *loadLatest {
		resume = latestSnapshot(worldDir)
	}

	bus := events.NewBus()

	var db *savedb.DB
	if !*disableDB {
		db, err = savedb.Open(filepath.Join(worldDir, "world.sqlite"))
		if err != nil {
			logger.Fatalf("open save db: %v", err)
		}
		defer db.Close()
	}

	var w *world.World
	if resume != "" {
		snap, err := snapshot.ReadFile(resume)
		if err != nil {
			logger.Fatalf("read snapshot %s: %v", resume, err)
		}
		w, err = world.Load(world.WorldConfig{ID: snap.Header.WorldID, Seed: snap.Seed}, tun, cats.Map, &cats.Items, bus, snap)
		if err != nil {
			logger.Fatalf("load snapshot: %v", err)
		}
		logger.Printf("resumed world=%s tick=%d from %s", snap.Header.WorldID, w.CurrentTick(), resume)
	} else {
		w, err = world.New(world.WorldConfig{ID: *worldID, Seed: *seed}, tun, cats.Map, &cats.Items, bus)
		if err != nil {
			logger.Fatalf("new world: %v", err)
		}
		if err := w.RegisterStarter(starterSequences(cats), starterRulesets()); err != nil {
			logger.Fatalf("register starter definitions: %v", err)
		}
		for i := 1; i <= *runnerN; i++ {
			if _, err := w.AddRunner(fmt.Sprintf("Runner %d", i), ""); err != nil {
				logger.Fatalf("add runner: %v", err)
			}
		}
		logger.Printf("fresh world=%s seed=%d runners=%d", *worldID, *seed, *runnerN)
	}

	// The bus dispatches synchronously on the sim goroutine, so reading the
	// current tick inside the handler is race-free.
	if db != nil {
		bus.Subscribe(events.TypeAll, func(ev protocol.Event) {
			db.LogEvent(w.CurrentTick(), ev)
		})
	}

	obs := observer.NewServer(w, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("/observer/ws", obs.WSHandler())
	mux.HandleFunc("/observer/bootstrap", obs.BootstrapHandler())
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, _ *http.Request) {
		rw.WriteHeader(http.StatusOK)
		_, _ = rw.Write([]byte("ok\n"))
	})

	srv := &http.Server{Addr: *addr, Handler: mux}
	go func() {
		logger.Printf("listening on %s", *addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("http: %v", err)
		}
	}()

	ctx, cancel := signalContext()
	defer cancel()

	runLoop(ctx, logger, w, tun, worldDir, db)

	tick := w.CurrentTick()
	if path, err := writeSnapshot(w, worldDir, tick); err != nil {
		logger.Printf("shutdown snapshot: %v", err)
	} else {
		logger.Printf("shutdown snapshot tick=%d -> %s", tick, path)
		recordSave(db, "shutdown", w, tick, path, logger)
	}

	shutCtx, shutCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutCancel()
	_ = srv.Shutdown(shutCtx)
	logger.Printf("bye")
}

// runLoop steps the world at the configured rate until ctx is canceled,
// writing an automatic snapshot every SnapshotEveryTicks ticks.
func runLoop(ctx context.Context, logger *log.Logger, w *world.World, tun tuning.Tuning, worldDir string, db *savedb.DB) {
	interval := time.Second / time.Duration(tun.TickRateHz)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	every := uint64(tun.SnapshotEveryTicks)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.Step()
			tick := w.CurrentTick()
			if every > 0 && tick%every == 0 {
				path, err := writeSnapshot(w, worldDir, tick)
				if err != nil {
					logger.Printf("snapshot tick=%d: %v", tick, err)
					continue
				}
				logger.Printf("snapshot tick=%d -> %s", tick, path)
				recordSave(db, "auto", w, tick, path, logger)
			}
		}
	}
}

func writeSnapshot(w *world.World, worldDir string, tick uint64) (string, error) {
	path := filepath.Join(worldDir, "snapshots", fmt.Sprintf("%d.snap.zst", tick))
	if err := snapshot.WriteFile(path, w.ExportSnapshot(tick)); err != nil {
		return "", err
	}
	return path, nil
}

func recordSave(db *savedb.DB, slot string, w *world.World, tick uint64, path string, logger *log.Logger) {
	if db == nil {
		return
	}
	err := db.RecordSave(savedb.SaveInfo{
		Slot:    slot,
		WorldID: w.Config().ID,
		Tick:    tick,
		Digest:  w.StateDigest(tick),
		Path:    path,
	})
	if err != nil {
		logger.Printf("record save slot=%s: %v", slot, err)
	}
}

// starterSequences builds one work-at loop per gatherable node so a fresh
// world has something in the library to assign.
func starterSequences(cats *catalogs.Catalogs) []*tasks.Sequence {
	var seqs []*tasks.Sequence
	for _, id := range cats.Map.NodeIDs() {
		node := cats.Map.GetNode(id)
		if node == nil || len(node.Gatherables) == 0 {
			continue
		}
		seqs = append(seqs, &tasks.Sequence{
			ID:         "starter-workat-" + id,
			Name:       "Work at " + node.Name,
			TargetNode: id,
			Loop:       true,
			Steps: []tasks.Step{
				{Kind: tasks.StepTravelTo, TargetNode: id},
				{Kind: tasks.StepWork},
				{Kind: tasks.StepTravelTo, TargetNode: cats.Map.HubNodeID()},
				{Kind: tasks.StepDeposit},
			},
		})
	}
	return seqs
}

func starterRulesets() []*rules.Ruleset {
	return []*rules.Ruleset{
		{
			ID:       "starter-gather-any",
			Name:     "Gather anything",
			Category: rules.CategoryMicro,
			Rules: []rules.Rule{
				{Label: "fill up, then move on", Enabled: true,
					Conditions: []rules.Condition{{Kind: rules.CondInventoryFree, Op: rules.OpEQ, Value: 0}},
					Action:     rules.Action{Kind: rules.ActFinishTask}},
				{Label: "gather whatever is here", Enabled: true,
					Action: rules.Action{Kind: rules.ActGatherAny}},
			},
		},
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

// latestSnapshot returns the snapshot file with the highest tick under the
// world data dir, or "" when none exist.
func latestSnapshot(worldDir string) string {
	dir := filepath.Join(worldDir, "snapshots")
	ents, err := os.ReadDir(dir)
	if err != nil {
		return ""
	}
	var best string
	var bestTick uint64
	for _, e := range ents {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if !strings.HasSuffix(name, ".snap.zst") {
			continue
		}
		tick, err := strconv.ParseUint(strings.TrimSuffix(name, ".snap.zst"), 10, 64)
		if err != nil {
			continue
		}
		if best == "" || tick > bestTick {
			bestTick = tick
			best = filepath.Join(dir, name)
		}
	}
	return best
}
