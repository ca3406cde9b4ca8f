package world

import (
	"testing"

	"runnervale.ai/internal/protocol"
	"runnervale.ai/internal/sim/rules"
	"runnervale.ai/internal/sim/tasks"
)

// assignWorkStep parks the runner at nodeID on a looping single Work step
// bound to the given micro ruleset.
func assignWorkStep(t *testing.T, w *World, r *Runner, nodeID, microID string) {
	t.Helper()
	seqID, err := w.CreateSequence(&tasks.Sequence{
		ID: "work-" + nodeID, Name: "Work", Loop: true,
		Steps: []tasks.Step{{Kind: tasks.StepWork, MicroRulesetID: microID}},
	})
	if err != nil {
		t.Fatalf("create sequence: %v", err)
	}
	if err := w.AssignRunner(r.ID, seqID, "test"); err != nil {
		t.Fatalf("assign: %v", err)
	}
	if r.Activity != tasks.ActivityGathering {
		t.Fatalf("activity = %s, want GATHERING", r.Activity)
	}
}

// A referenced ruleset with no matching rule freezes the runner at the step.
// The gap event collapses: one per trigger, not one per tick.
func TestMicroNoMatchFreezesRunner(t *testing.T) {
	w := newTestWorld(t)
	log := recordEvents(w)
	r, _ := w.AddRunner("Ada", "mine")

	microID, _ := w.CreateRuleset(&rules.Ruleset{
		ID: "stuck", Category: rules.CategoryMicro,
	})
	assignWorkStep(t, w, r, "mine", microID)

	stepN(w, 10)
	if r.Activity != tasks.ActivityGathering {
		t.Fatalf("activity = %s, want frozen GATHERING", r.Activity)
	}
	if got := r.Inventory.Total(); got != 0 {
		t.Fatalf("frozen runner gathered %d items", got)
	}
	if got := log.count(protocol.EvItemGathered); got != 0 {
		t.Fatalf("ItemGathered = %d, want 0", got)
	}
	noMatch := log.ofType(protocol.EvRuleNoMatch)
	if len(noMatch) != 1 {
		t.Fatalf("RuleNoMatch events = %d, want 1 (collapsed)", len(noMatch))
	}
	if ev := noMatch[0].(protocol.RuleNoMatch); ev.Layer != protocol.LayerMicro || ev.RulesetID != microID {
		t.Fatalf("unexpected no-match payload %+v", ev)
	}

	// Fixing the ruleset unfreezes on the next tick.
	if err := w.AddRule(rules.CategoryMicro, microID, 0, rules.Rule{
		Enabled: true, Action: rules.Action{Kind: rules.ActGatherAny},
	}); err != nil {
		t.Fatalf("add rule: %v", err)
	}
	stepN(w, 3)
	if got := log.count(protocol.EvItemGathered); got != 1 {
		t.Fatalf("ItemGathered after fix = %d, want 1", got)
	}
}

func TestMicroGatherItemPicksNamedResource(t *testing.T) {
	w := newTestWorld(t)
	log := recordEvents(w)
	r, _ := w.AddRunner("Ada", "forest")

	microID, _ := w.CreateRuleset(&rules.Ruleset{
		ID: "oak-only", Category: rules.CategoryMicro,
		Rules: []rules.Rule{{
			Enabled: true, Action: rules.Action{Kind: rules.ActGatherItem, Param: "oak_log"},
		}},
	})
	assignWorkStep(t, w, r, "forest", microID)

	stepN(w, 6) // three items at 2 ticks each
	if got := r.Inventory.Count("oak_log"); got != 3 {
		t.Fatalf("oak_log = %d, want 3", got)
	}
	if got := r.Inventory.Count("birch_log"); got != 0 {
		t.Fatalf("birch_log = %d, want 0", got)
	}
	// The winning rule fired once, not once per tick.
	if got := log.count(protocol.EvRuleFired); got != 1 {
		t.Fatalf("RuleFired = %d, want 1 (collapsed)", got)
	}
}

func TestMicroGatherItemUnknownAtNodeFails(t *testing.T) {
	w := newTestWorld(t)
	log := recordEvents(w)
	r, _ := w.AddRunner("Ada", "forest")

	microID, _ := w.CreateRuleset(&rules.Ruleset{
		ID: "wrong-node", Category: rules.CategoryMicro,
		Rules: []rules.Rule{{
			Enabled: true, Action: rules.Action{Kind: rules.ActGatherItem, Param: "iron_ore"},
		}},
	})
	assignWorkStep(t, w, r, "forest", microID)

	stepN(w, 5)
	if got := r.Inventory.Total(); got != 0 {
		t.Fatalf("gathered %d items from a node without the resource", got)
	}
	fails := log.ofType(protocol.EvGatheringFailed)
	if len(fails) != 1 {
		t.Fatalf("GatheringFailed = %d, want 1 (collapsed)", len(fails))
	}
	if ev := fails[0].(protocol.GatheringFailed); ev.Reason != protocol.FailUnknownItem {
		t.Fatalf("fail reason = %q, want %q", ev.Reason, protocol.FailUnknownItem)
	}
}

func TestMicroGatherIndexOutOfRangeFails(t *testing.T) {
	w := newTestWorld(t)
	log := recordEvents(w)
	r, _ := w.AddRunner("Ada", "forest")

	microID, _ := w.CreateRuleset(&rules.Ruleset{
		ID: "bad-index", Category: rules.CategoryMicro,
		Rules: []rules.Rule{{
			Enabled: true, Action: rules.Action{Kind: rules.ActGatherIndex, IntParam: 7},
		}},
	})
	assignWorkStep(t, w, r, "forest", microID)

	stepN(w, 3)
	fails := log.ofType(protocol.EvGatheringFailed)
	if len(fails) != 1 || fails[0].(protocol.GatheringFailed).Reason != protocol.FailBadIndex {
		t.Fatalf("want one BAD_INDEX failure, got %v", fails)
	}
}

func TestMicroUnderLeveledGatherFails(t *testing.T) {
	w := newTestWorld(t)
	log := recordEvents(w)
	r, _ := w.AddRunner("Ada", "forest")

	// birch_log requires woodcutting 5; the runner is level 1.
	microID, _ := w.CreateRuleset(&rules.Ruleset{
		ID: "birch", Category: rules.CategoryMicro,
		Rules: []rules.Rule{{
			Enabled: true, Action: rules.Action{Kind: rules.ActGatherItem, Param: "birch_log"},
		}},
	})
	assignWorkStep(t, w, r, "forest", microID)

	stepN(w, 5)
	fails := log.ofType(protocol.EvGatheringFailed)
	if len(fails) != 1 || fails[0].(protocol.GatheringFailed).Reason != protocol.FailUnderLeveled {
		t.Fatalf("want one UNDER_LEVELED failure, got %v", fails)
	}
	if got := r.Inventory.Total(); got != 0 {
		t.Fatalf("under-leveled runner gathered %d items", got)
	}

	// Levelling past the requirement clears the failure.
	r.Skills["woodcutting"].Level = 5
	stepN(w, 3)
	if got := r.Inventory.Count("birch_log"); got == 0 {
		t.Fatalf("no birch gathered after reaching required level")
	}
}

// FINISH_TASK ends the Work step through the micro layer before the
// inventory is anywhere near full.
func TestMicroFinishTaskEndsWorkStep(t *testing.T) {
	w := newTestWorld(t)
	log := recordEvents(w)
	r, _ := w.AddRunner("Ada", "mine")

	microID, _ := w.CreateRuleset(&rules.Ruleset{
		ID: "two-then-stop", Category: rules.CategoryMicro,
		Rules: []rules.Rule{
			{
				Enabled: true,
				Conditions: []rules.Condition{
					{Kind: rules.CondInventoryCount, Op: rules.OpGE, Item: "iron_ore", Value: 2},
				},
				Action: rules.Action{Kind: rules.ActFinishTask},
			},
			{Enabled: true, Action: rules.Action{Kind: rules.ActGatherAny}},
		},
	})
	seqID, _ := w.CreateSequence(&tasks.Sequence{
		ID: "short-shift", Name: "Short shift",
		Steps: []tasks.Step{
			{Kind: tasks.StepWork, MicroRulesetID: microID},
			{Kind: tasks.StepTravelTo, TargetNode: "hub"},
		},
	})
	if err := w.AssignRunner(r.ID, seqID, "test"); err != nil {
		t.Fatalf("assign: %v", err)
	}

	stepN(w, 8)
	if got := r.Inventory.Count("iron_ore"); got != 2 {
		t.Fatalf("iron_ore = %d, want exactly 2", got)
	}
	if r.Activity != tasks.ActivityTraveling && r.NodeID != "hub" {
		t.Fatalf("work step did not advance after finish (activity %s at %s)", r.Activity, r.NodeID)
	}
	if got := log.count(protocol.EvSequenceAdvanced); got == 0 {
		t.Fatalf("sequence never advanced past the work step")
	}
}

// A macro verb inside a micro ruleset is an authoring gap, treated like no
// match: freeze and surface.
func TestMicroMacroActionIsAuthoringGap(t *testing.T) {
	w := newTestWorld(t)
	log := recordEvents(w)
	r, _ := w.AddRunner("Ada", "mine")

	microID, _ := w.CreateRuleset(&rules.Ruleset{
		ID: "confused", Category: rules.CategoryMicro,
		Rules: []rules.Rule{{
			Enabled: true, Action: rules.Action{Kind: rules.ActFleeToHub},
		}},
	})
	assignWorkStep(t, w, r, "mine", microID)

	stepN(w, 5)
	if r.Activity != tasks.ActivityGathering || r.NodeID != "mine" {
		t.Fatalf("macro verb leaked into micro layer: (%s, %s)", r.Activity, r.NodeID)
	}
	if got := log.count(protocol.EvRuleNoMatch); got != 1 {
		t.Fatalf("RuleNoMatch = %d, want 1", got)
	}
}

// The default behavior of a Work step without a micro ruleset: gather
// whatever the node offers until the inventory fills, deterministically.
func TestBuiltInGatherAnyIsDeterministic(t *testing.T) {
	run := func() []string {
		w := newTestWorld(t)
		r, _ := w.AddRunner("Ada", "forest")
		seqID, _ := w.CreateSequence(&tasks.Sequence{
			ID: "free-gather", Name: "Free", Loop: true,
			Steps: []tasks.Step{{Kind: tasks.StepWork}},
		})
		if err := w.AssignRunner(r.ID, seqID, "test"); err != nil {
			t.Fatalf("assign: %v", err)
		}
		log := recordEvents(w)
		stepN(w, 12)
		var picks []string
		for _, ev := range log.ofType(protocol.EvGatheringStarted) {
			picks = append(picks, ev.(protocol.GatheringStarted).ItemID)
		}
		return picks
	}
	a, b := run(), run()
	if len(a) == 0 {
		t.Fatalf("no picks recorded")
	}
	if len(a) != len(b) {
		t.Fatalf("pick counts differ: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("pick %d differs: %q vs %q", i, a[i], b[i])
		}
	}
}
