package world

import (
	"testing"

	"runnervale.ai/internal/protocol"
	"runnervale.ai/internal/sim/rules"
	"runnervale.ai/internal/sim/tasks"
)

func workAtMine(t *testing.T, w *World, r *Runner) {
	t.Helper()
	id := w.ensureWorkAtSequence("mine")
	if err := w.AssignRunner(r.ID, id, "test"); err != nil {
		t.Fatalf("assign: %v", err)
	}
}

func stepUntilActivity(t *testing.T, w *World, r *Runner, act tasks.ActivityState, deadline int) {
	t.Helper()
	for i := 0; i < deadline; i++ {
		if r.Activity == act {
			return
		}
		w.Step()
	}
	t.Fatalf("runner never reached %s (stuck in %s)", act, r.Activity)
}

// A boundary-tagged rule stages its reassignment and stays quiet until the
// deposit completes; the switch happens exactly at the loop boundary.
func TestDeferredReassignmentAppliesAtDepositBoundary(t *testing.T) {
	w := newTestWorld(t)
	log := recordEvents(w)
	r, _ := w.AddRunner("Ada", "")
	workAtMine(t, w, r)

	otherID := w.ensureWorkAtSequence("forest")
	rsID, _ := w.CreateRuleset(&rules.Ruleset{
		ID: "switch", Category: rules.CategoryMacro,
		Rules: []rules.Rule{{
			Enabled: true,
			Conditions: []rules.Condition{
				{Kind: rules.CondInventoryCount, Op: rules.OpGE, Item: "iron_ore", Value: 2},
			},
			Action:             rules.Action{Kind: rules.ActAssignSequence, Param: otherID},
			DeferUntilBoundary: true,
		}},
	})
	w.SetMacroRuleset(r.ID, rsID)

	// Run until the rule fires mid-gather.
	for i := 0; i < 100 && !r.PendingSet; i++ {
		w.Step()
	}
	if !r.PendingSet || r.PendingSequenceID != otherID {
		t.Fatalf("pending = (%v, %q), want (true, %q)", r.PendingSet, r.PendingSequenceID, otherID)
	}
	if !r.MacroSuspendedUntilLoop {
		t.Fatalf("macro evaluation not suspended while a reassignment is pending")
	}
	if r.SequenceID != "workat-mine" {
		t.Fatalf("active sequence switched early to %q", r.SequenceID)
	}
	if r.Activity != tasks.ActivityGathering {
		t.Fatalf("deferral interrupted gathering (activity %s)", r.Activity)
	}
	fired := log.ofType(protocol.EvRuleFired)
	if len(fired) != 1 || !fired[0].(protocol.RuleFired).Deferred {
		t.Fatalf("want exactly one deferred RuleFired, got %d", len(fired))
	}

	// The current loop finishes: inventory fills, the runner hauls home and
	// deposits, and only then the staged sequence takes over.
	for i := 0; i < 200 && log.count(protocol.EvDeposited) == 0; i++ {
		w.Step()
	}
	if log.count(protocol.EvDeposited) != 1 {
		t.Fatalf("deposit never completed")
	}
	if r.SequenceID != otherID {
		t.Fatalf("sequence after boundary = %q, want %q", r.SequenceID, otherID)
	}
	if r.PendingSet || r.PendingSequenceID != "" || r.MacroSuspendedUntilLoop {
		t.Fatalf("pending state not cleared after boundary apply")
	}
	// The deferred rule fired exactly once; the suspension swallowed the
	// per-tick re-matches in between.
	if got := log.count(protocol.EvRuleFired); got != 1 {
		t.Fatalf("RuleFired events = %d, want 1", got)
	}
}

// Flee-to-hub ignores the boundary flag: the emergency cancels in-flight
// work immediately.
func TestFleeToHubIsImmediate(t *testing.T) {
	w := newTestWorld(t)
	r, _ := w.AddRunner("Ada", "")
	workAtMine(t, w, r)
	stepUntilActivity(t, w, r, tasks.ActivityGathering, 50)

	rsID, _ := w.CreateRuleset(&rules.Ruleset{
		ID: "panic", Category: rules.CategoryMacro,
		Rules: []rules.Rule{{
			Enabled:            true,
			Action:             rules.Action{Kind: rules.ActFleeToHub},
			DeferUntilBoundary: true, // ignored for flee
		}},
	})
	w.SetMacroRuleset(r.ID, rsID)
	w.Step()

	if r.SequenceID != "return-hub" {
		t.Fatalf("sequence = %q, want return-hub", r.SequenceID)
	}
	if r.Activity != tasks.ActivityTraveling {
		t.Fatalf("activity = %s, want TRAVELING", r.Activity)
	}
	if r.PendingSet {
		t.Fatalf("flee must not stage a pending reassignment")
	}

	// The cascade terminates: once home and the sequence completes, the flee
	// rule still matches but the runner settles idle at the hub.
	stepN(w, 20)
	if r.NodeID != "hub" || r.Activity != tasks.ActivityIdle {
		t.Fatalf("runner = (%s, %s), want idle at hub", r.NodeID, r.Activity)
	}
}

// A completed sequence must not instantly re-trigger a rule targeting the
// node it just finished at; without suppression a work-at rule would bounce
// the runner forever on the completion trigger.
func TestCompletionDoesNotRetriggerSameTarget(t *testing.T) {
	w := newTestWorld(t)
	r, _ := w.AddRunner("Ada", "hub")

	seqID, _ := w.CreateSequence(&tasks.Sequence{
		ID: "visit-mine", Name: "Visit", TargetNode: "mine",
		Steps: []tasks.Step{{Kind: tasks.StepTravelTo, TargetNode: "mine"}},
	})
	rsID, _ := w.CreateRuleset(&rules.Ruleset{
		ID: "goto-mine", Category: rules.CategoryMacro,
		Rules: []rules.Rule{{
			Enabled: true,
			Conditions: []rules.Condition{
				{Kind: rules.CondAtNode, Op: rules.OpNE, Str: "mine"},
			},
			Action: rules.Action{Kind: rules.ActAssignSequence, Param: seqID},
		}},
	})
	w.SetMacroRuleset(r.ID, rsID)

	stepN(w, 10)
	if r.NodeID != "mine" {
		t.Fatalf("runner node = %q, want mine", r.NodeID)
	}
	if r.Activity != tasks.ActivityIdle || r.SequenceID != "" {
		t.Fatalf("runner should settle idle after completing, got (%s, %q)", r.Activity, r.SequenceID)
	}
	if r.LastCompletedTargetNode != "mine" {
		t.Fatalf("LastCompletedTargetNode = %q, want mine", r.LastCompletedTargetNode)
	}
}

func TestGoIdleCancelsAndStays(t *testing.T) {
	w := newTestWorld(t)
	log := recordEvents(w)
	r, _ := w.AddRunner("Ada", "")
	workAtMine(t, w, r)
	stepUntilActivity(t, w, r, tasks.ActivityGathering, 50)

	rsID, _ := w.CreateRuleset(&rules.Ruleset{
		ID: "stop", Category: rules.CategoryMacro,
		Rules: []rules.Rule{{
			Enabled: true,
			Action:  rules.Action{Kind: rules.ActGoIdle},
		}},
	})
	w.SetMacroRuleset(r.ID, rsID)
	before := log.count(protocol.EvRuleFired)
	w.Step()
	if r.SequenceID != "" || r.Activity != tasks.ActivityIdle {
		t.Fatalf("go-idle did not clear the runner, got (%q, %s)", r.SequenceID, r.Activity)
	}
	// Already idle-clean: the rule keeps matching but stops firing.
	stepN(w, 5)
	if got := log.count(protocol.EvRuleFired) - before; got != 1 {
		t.Fatalf("RuleFired after go-idle = %d, want 1", got)
	}
}

// Macro gaps surface on boundary triggers only; a runner parked idle on
// purpose does not spam no-match events every tick.
func TestMacroNoMatchOnlyOnBoundaries(t *testing.T) {
	w := newTestWorld(t)
	log := recordEvents(w)
	r, _ := w.AddRunner("Ada", "")
	rsID, _ := w.CreateRuleset(&rules.Ruleset{
		ID: "empty", Category: rules.CategoryMacro,
	})
	w.SetMacroRuleset(r.ID, rsID)

	stepN(w, 10)
	if got := log.count(protocol.EvRuleNoMatch); got != 0 {
		t.Fatalf("idle ticks produced %d no-match events, want 0", got)
	}

	// An arrival is a boundary: the gap is reported there.
	if err := w.CommandTravel(r.ID, "mine"); err != nil {
		t.Fatalf("travel: %v", err)
	}
	stepN(w, 5)
	if r.NodeID != "mine" {
		t.Fatalf("runner did not arrive")
	}
	if got := log.count(protocol.EvRuleNoMatch); got != 1 {
		t.Fatalf("no-match events after arrival = %d, want 1", got)
	}
}

func TestRuleActionUnknownTargetsAreNoOps(t *testing.T) {
	w := newTestWorld(t)
	log := recordEvents(w)
	r, _ := w.AddRunner("Ada", "")
	rsID, _ := w.CreateRuleset(&rules.Ruleset{
		ID: "bad", Category: rules.CategoryMacro,
		Rules: []rules.Rule{
			{Enabled: true, Action: rules.Action{Kind: rules.ActAssignSequence, Param: "no-such-seq"}},
			{Enabled: true, Action: rules.Action{Kind: rules.ActWorkAtNode, Param: "no-such-node"}},
		},
	})
	w.SetMacroRuleset(r.ID, rsID)
	stepN(w, 5)
	if r.SequenceID != "" || r.Activity != tasks.ActivityIdle {
		t.Fatalf("unknown targets must not move the runner")
	}
	// First-match-wins picks the dangling assign every tick; it resolves to
	// nothing and fires no event.
	if got := log.count(protocol.EvRuleFired); got != 0 {
		t.Fatalf("RuleFired = %d, want 0", got)
	}
}

func TestDisabledRulesAreSkipped(t *testing.T) {
	w := newTestWorld(t)
	r, _ := w.AddRunner("Ada", "")
	rsID, _ := w.CreateRuleset(&rules.Ruleset{
		ID: "half-off", Category: rules.CategoryMacro,
		Rules: []rules.Rule{
			{Enabled: false, Action: rules.Action{Kind: rules.ActWorkAtNode, Param: "mine"}},
			{Enabled: true, Action: rules.Action{Kind: rules.ActWorkAtNode, Param: "forest"}},
		},
	})
	w.SetMacroRuleset(r.ID, rsID)
	w.Step()
	if r.SequenceID != "workat-forest" {
		t.Fatalf("sequence = %q, want workat-forest (disabled rule must be skipped)", r.SequenceID)
	}
}
