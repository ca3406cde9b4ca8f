package world

import (
	"fmt"

	"runnervale.ai/internal/protocol"
	"runnervale.ai/internal/sim/catalogs"
	"runnervale.ai/internal/sim/events"
	"runnervale.ai/internal/sim/rules"
	"runnervale.ai/internal/sim/tasks"
	"runnervale.ai/internal/sim/tuning"
)

type WorldConfig struct {
	ID   string
	Seed int64
}

// MapProvider is the world-map surface the core needs. Distances are opaque;
// the core never computes paths itself.
type MapProvider interface {
	FindPath(from, to string) (float64, bool)
	GetNode(id string) *catalogs.Node
	HubNodeID() string
}

// ItemRegistry resolves item ids to definitions.
type ItemRegistry interface {
	Get(id string) *catalogs.ItemDef
}

// World is the single-threaded authoritative simulation. All state must be
// accessed only from the goroutine driving Step; external callers serialize
// every command with tick execution.
type World struct {
	cfg   WorldConfig
	tun   tuning.Tuning
	wmap  MapProvider
	items ItemRegistry
	bus   *events.Bus

	tick    uint64
	elapsed float64 // seconds of simulated time

	runners     []*Runner // fixed iteration order
	runnersByID map[string]*Runner
	bank        map[string]int

	seqs      map[string]*tasks.Sequence
	macroSets map[string]*rules.Ruleset
	microSets map[string]*rules.Ruleset

	defaults *starterDefs

	nextRunnerNum uint64
}

// New builds an empty world. Starter definitions and runners are added
// through the command surface so game setup and runtime creation share one
// path.
func New(cfg WorldConfig, tun tuning.Tuning, wmap MapProvider, items ItemRegistry, bus *events.Bus) (*World, error) {
	if wmap == nil {
		return nil, fmt.Errorf("world: map provider is required")
	}
	if wmap.GetNode(wmap.HubNodeID()) == nil {
		return nil, fmt.Errorf("world: hub node %q does not resolve", wmap.HubNodeID())
	}
	if bus == nil {
		bus = events.NewBus()
	}
	return &World{
		cfg:         cfg,
		tun:         tun,
		wmap:        wmap,
		items:       items,
		bus:         bus,
		runnersByID: map[string]*Runner{},
		bank:        map[string]int{},
		seqs:        map[string]*tasks.Sequence{},
		macroSets:   map[string]*rules.Ruleset{},
		microSets:   map[string]*rules.Ruleset{},
	}, nil
}

func (w *World) Config() WorldConfig   { return w.cfg }
func (w *World) Tuning() tuning.Tuning { return w.tun }
func (w *World) Bus() *events.Bus      { return w.bus }
func (w *World) CurrentTick() uint64   { return w.tick }
func (w *World) HubNodeID() string     { return w.wmap.HubNodeID() }
func (w *World) Elapsed() float64      { return w.elapsed }

// BankCount returns the banked amount of an item.
func (w *World) BankCount(item string) int { return w.bank[item] }

func (w *World) Runner(id string) *Runner { return w.runnersByID[id] }

func (w *World) RunnerIDs() []string {
	out := make([]string, 0, len(w.runners))
	for _, r := range w.runners {
		out = append(out, r.ID)
	}
	return out
}

// Step advances the simulation by exactly one tick: every runner in list
// order, then the end-of-tick digest event. No operation yields mid-tick.
func (w *World) Step() {
	now := w.tick
	for _, r := range w.runners {
		w.tickRunner(r, now)
	}
	w.elapsed += 1.0 / float64(w.tun.TickRateHz)
	digest := w.StateDigest(now)
	w.publish(protocol.TickCompleted{Type: protocol.EvTickCompleted, Tick: now, Digest: digest})
	w.tick++
}

func (w *World) publish(ev protocol.Event) { w.bus.Publish(ev) }

func (w *World) tickRunner(r *Runner, now uint64) {
	switch r.Activity {
	case tasks.ActivityIdle:
		w.idleTick(r, now)
	case tasks.ActivityTraveling:
		w.evalMacro(r, now, TriggerTick, 0)
		if r.Activity == tasks.ActivityTraveling {
			w.tickTravel(r, now)
		}
	case tasks.ActivityGathering:
		w.evalMacro(r, now, TriggerTick, 0)
		if r.Activity == tasks.ActivityGathering {
			w.tickGather(r, now)
		}
	case tasks.ActivityDepositing:
		w.evalMacro(r, now, TriggerTick, 0)
		if r.Activity == tasks.ActivityDepositing {
			w.tickDeposit(r, now)
		}
	}
}

// RegisterStarter installs starter definitions and keeps pristine clones so
// reset-to-default can restore them later. Called once at new-game.
func (w *World) RegisterStarter(seqs []*tasks.Sequence, rulesets []*rules.Ruleset) error {
	w.defaults = &starterDefs{
		seqs:   map[string]*tasks.Sequence{},
		macros: map[string]*rules.Ruleset{},
		micros: map[string]*rules.Ruleset{},
	}
	for _, s := range seqs {
		if _, err := w.CreateSequence(s); err != nil {
			return err
		}
		w.defaults.seqs[s.ID] = s.Clone()
	}
	for _, rs := range rulesets {
		if _, err := w.CreateRuleset(rs); err != nil {
			return err
		}
		switch rs.Category {
		case rules.CategoryMacro:
			w.defaults.macros[rs.ID] = rs.Clone()
		case rules.CategoryMicro:
			w.defaults.micros[rs.ID] = rs.Clone()
		}
	}
	return nil
}

// AddRunner creates a runner at nodeID (hub when empty) and publishes the
// creation event. Used both at game start and at runtime.
func (w *World) AddRunner(name, nodeID string) (*Runner, error) {
	if nodeID == "" {
		nodeID = w.wmap.HubNodeID()
	}
	if w.wmap.GetNode(nodeID) == nil {
		return nil, fmt.Errorf("add runner: unknown node %q", nodeID)
	}
	w.nextRunnerNum++
	r := newRunner(fmt.Sprintf("R%d", w.nextRunnerNum), name, nodeID, w.tun)
	w.runners = append(w.runners, r)
	w.runnersByID[r.ID] = r
	w.publish(protocol.RunnerCreated{
		Type: protocol.EvRunnerCreated, Tick: w.tick,
		RunnerID: r.ID, Name: r.Name, NodeID: r.NodeID,
	})
	return r, nil
}
