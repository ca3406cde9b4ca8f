package world

import (
	"runnervale.ai/internal/protocol"
	"runnervale.ai/internal/sim/rules"
	"runnervale.ai/internal/sim/tasks"
)

// Macro evaluation trigger reasons, carried on rule events for diagnostics.
const (
	TriggerTick        = "tick"
	TriggerIdle        = "idle"
	TriggerArrival     = "arrival"
	TriggerBeforeStep  = "before_step"
	TriggerSequenceDone = "sequence_completed"
	TriggerDepositDone = "deposit_completed"
)

// evalMacro runs the runner's macro ruleset at one of the defined trigger
// points. depth guards rule->assign->instant-completion->rule cascades; at
// the limit the evaluation degrades to "no further rule change this tick".
func (w *World) evalMacro(r *Runner, now uint64, trigger string, depth int) {
	if depth >= w.tun.RuleDepthMax {
		return
	}
	if r.MacroSuspendedUntilLoop {
		return
	}
	rs := w.macroSets[r.MacroRulesetID]
	if rs == nil {
		return
	}
	idx, ok := rules.Evaluate(rs, ruleContext{w: w, r: r})
	if !ok {
		// Only boundary triggers surface macro gaps; a per-tick stream of
		// no-match events for an intentionally idle runner is noise.
		switch trigger {
		case TriggerArrival, TriggerSequenceDone, TriggerDepositDone:
			w.publish(protocol.RuleNoMatch{
				Type: protocol.EvRuleNoMatch, Tick: now,
				RunnerID: r.ID, Layer: protocol.LayerMacro,
				RulesetID: rs.ID, Trigger: trigger,
			})
		}
		return
	}
	w.applyMacroAction(r, rs, idx, trigger, now, depth)
}

func (w *World) applyMacroAction(r *Runner, rs *rules.Ruleset, idx int, trigger string, now uint64, depth int) {
	rule := &rs.Rules[idx]

	var targetSeqID string
	switch rule.Action.Kind {
	case rules.ActAssignSequence:
		if w.seqs[rule.Action.Param] == nil {
			return
		}
		targetSeqID = rule.Action.Param
	case rules.ActWorkAtNode:
		if w.wmap.GetNode(rule.Action.Param) == nil {
			return
		}
		targetSeqID = w.ensureWorkAtSequence(rule.Action.Param)
	case rules.ActGoIdle:
		targetSeqID = ""
	case rules.ActFleeToHub, rules.ActReturnToHubOnce:
		targetSeqID = w.ensureReturnHubSequence()
	default:
		// Micro vocabulary inside a macro ruleset is an authoring gap;
		// surfaced as a no-op, never guessed at.
		return
	}

	// A matched action that is already in effect is a no-op; without this the
	// per-tick re-evaluation would cancel in-flight work every tick.
	if rule.Action.Kind == rules.ActGoIdle {
		if r.SequenceID == "" && !r.PendingSet && r.Activity == tasks.ActivityIdle {
			return
		}
	} else if targetSeqID == r.SequenceID {
		return
	}
	if r.PendingSet && r.PendingSequenceID == targetSeqID {
		return
	}

	// Oscillation suppression: a completed sequence must not immediately
	// re-trigger work at the node it just finished at.
	if trigger == TriggerSequenceDone && targetSeqID != "" {
		if seq := w.seqs[targetSeqID]; seq != nil && seq.TargetNode != "" &&
			seq.TargetNode == r.LastCompletedTargetNode {
			return
		}
	}

	// Flee-to-hub is always immediate. Deferral is meaningless without an
	// active sequence to finish.
	deferred := rule.DeferUntilBoundary &&
		rule.Action.Kind != rules.ActFleeToHub &&
		r.SequenceID != ""

	w.publish(protocol.RuleFired{
		Type: protocol.EvRuleFired, Tick: now,
		RunnerID: r.ID, Layer: protocol.LayerMacro,
		RulesetID: rs.ID, RuleIndex: idx, Label: rule.Label,
		Trigger: trigger, Deferred: deferred,
	})

	if deferred {
		r.PendingSequenceID = targetSeqID
		r.PendingSet = true
		r.MacroSuspendedUntilLoop = true
		w.publish(protocol.SequenceAssigned{
			Type: protocol.EvSequenceAssigned, Tick: now,
			RunnerID: r.ID, SequenceID: targetSeqID,
			Reason: "rule:" + trigger, Deferred: true,
		})
		return
	}
	w.assignSequence(r, targetSeqID, "rule:"+trigger, now, depth)
}

// assignSequence is the single mutation point for the runner's active
// sequence: it cancels any in-flight activity, resets the cursor, clears
// pending state and immediately begins execution.
func (w *World) assignSequence(r *Runner, id, reason string, now uint64, depth int) {
	prev := r.SequenceID
	r.cancelActivity()
	r.SequenceID = id
	r.Cursor = 0
	r.PendingSet = false
	r.PendingSequenceID = ""
	r.MacroSuspendedUntilLoop = false
	if id != "" && id != prev {
		r.LastCompletedTargetNode = ""
	}
	w.publish(protocol.SequenceAssigned{
		Type: protocol.EvSequenceAssigned, Tick: now,
		RunnerID: r.ID, SequenceID: id, Reason: reason,
	})
	if id != "" {
		w.executeCurrentStep(r, now, depth)
	}
}

// ensureWorkAtSequence returns the shared generated loop for working a node,
// creating it in the library on first use: travel there, work, haul back to
// the hub, deposit, repeat.
func (w *World) ensureWorkAtSequence(nodeID string) string {
	id := "workat-" + nodeID
	if w.seqs[id] != nil {
		return id
	}
	name := nodeID
	if n := w.wmap.GetNode(nodeID); n != nil && n.Name != "" {
		name = n.Name
	}
	hub := w.wmap.HubNodeID()
	w.seqs[id] = &tasks.Sequence{
		ID:         id,
		Name:       "Work at " + name,
		TargetNode: nodeID,
		Loop:       true,
		Steps: []tasks.Step{
			{Kind: tasks.StepTravelTo, TargetNode: nodeID},
			{Kind: tasks.StepWork},
			{Kind: tasks.StepTravelTo, TargetNode: hub},
			{Kind: tasks.StepDeposit},
		},
	}
	return id
}

// ensureReturnHubSequence returns the shared one-shot travel-home sequence.
func (w *World) ensureReturnHubSequence() string {
	const id = "return-hub"
	if w.seqs[id] != nil {
		return id
	}
	hub := w.wmap.HubNodeID()
	w.seqs[id] = &tasks.Sequence{
		ID:         id,
		Name:       "Return to hub",
		TargetNode: hub,
		Steps: []tasks.Step{
			{Kind: tasks.StepTravelTo, TargetNode: hub},
		},
	}
	return id
}
