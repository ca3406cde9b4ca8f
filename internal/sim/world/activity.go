package world

import (
	"math"

	"runnervale.ai/internal/protocol"
	"runnervale.ai/internal/sim/catalogs"
	"runnervale.ai/internal/sim/tasks"
	"runnervale.ai/internal/sim/tuning"
)

func (w *World) idleTick(r *Runner, now uint64) {
	w.evalMacro(r, now, TriggerIdle, 0)
	if r.Activity != tasks.ActivityIdle {
		return
	}
	w.executeCurrentStep(r, now, 0)
}

func (w *World) tickTravel(r *Runner, now uint64) {
	tr := r.Travel
	ath := w.effectiveLevel(r.Skills[SkillAthletics])
	speed := w.tun.Travel.BaseSpeed + float64(ath-1)*w.tun.Travel.PerLevelBonus
	w.grantXP(r, SkillAthletics, w.tun.Travel.AthleticsXPTick, now)

	tr.Covered += speed
	if tr.Covered < tr.Total {
		return
	}
	dest := tr.ToNode
	r.NodeID = dest
	r.cancelActivity()
	w.publish(protocol.Arrived{
		Type: protocol.EvArrived, Tick: now,
		RunnerID: r.ID, NodeID: dest,
	})
	// Macro rules react to arrival before the idle branch runs again next
	// tick; the cursor stays on an in-progress TravelTo step, which resolves
	// as a no-op on the next idle execution.
	w.evalMacro(r, now, TriggerArrival, 0)
}

func (w *World) tickGather(r *Runner, now uint64) {
	g := r.Gathering
	node := w.wmap.GetNode(g.NodeID)
	if node == nil || len(node.Gatherables) == 0 {
		w.gatherFail(r, now, g.NodeID, protocol.FailNoGatherables, "")
		return
	}
	seq, step := w.currentStep(r)
	if seq == nil || step == nil || step.Kind != tasks.StepWork {
		// The sequence changed underneath the work; drop the stale activity.
		r.cancelActivity()
		return
	}

	// Micro rules run every tick so condition changes are caught immediately.
	outcome := w.evalMicro(r, g, node, step, now)
	switch outcome {
	case microFreeze:
		return
	case microFinish:
		r.cancelActivity()
		w.advanceStep(r, seq, now, 0)
		return
	}

	gat := &node.Gatherables[g.GatherIndex]
	skill := r.Skills[gat.Skill]
	if skill != nil && skill.Level < gat.MinLevel {
		w.gatherFail(r, now, g.NodeID, protocol.FailUnderLeveled, gat.ItemID)
		return
	}
	if !r.Inventory.CanAdd(gat.ItemID) {
		r.cancelActivity()
		w.advanceStep(r, seq, now, 0)
		return
	}
	r.gatherFailSeen = ""

	w.grantXP(r, gat.Skill, gat.XPPerTick, now)
	g.Accum++
	if g.Accum < w.ticksRequired(r, gat) {
		return
	}
	g.Accum = 0
	r.Inventory.Add(gat.ItemID)
	w.publish(protocol.ItemGathered{
		Type: protocol.EvItemGathered, Tick: now,
		RunnerID: r.ID, NodeID: g.NodeID, ItemID: gat.ItemID, Count: 1,
	})
	if !r.Inventory.CanAdd(gat.ItemID) {
		w.publish(protocol.InventoryFull{Type: protocol.EvInventoryFull, Tick: now, RunnerID: r.ID})
	}
	// A unit just completed; the next pick starts fresh (GATHER_ANY re-rolls
	// here and only here).
	g.GatherIndex = -1
}

func (w *World) tickDeposit(r *Runner, now uint64) {
	d := r.Depositing
	d.TicksLeft--
	if d.TicksLeft > 0 {
		return
	}
	nodeID := r.NodeID
	moved := r.Inventory.DepositAll(w.bank)
	r.cancelActivity()
	w.publish(protocol.Deposited{
		Type: protocol.EvDeposited, Tick: now,
		RunnerID: r.ID, NodeID: nodeID, Count: moved,
	})

	// The canonical loop boundary: deferred reassignments apply here, before
	// anything else about the sequence moves.
	r.MacroSuspendedUntilLoop = false
	if r.PendingSet {
		id := r.PendingSequenceID
		r.PendingSet = false
		r.PendingSequenceID = ""
		w.assignSequence(r, id, "deferred", now, 0)
		return
	}
	if seq := w.resolveSequence(r.SequenceID); seq != nil {
		w.advanceStep(r, seq, now, 0)
	}
	if r.SequenceID != "" {
		w.evalMacro(r, now, TriggerDepositDone, 0)
	}
}

// ticksRequired recomputes the ticks for one gather unit from the live
// effective level; never cached, since the level can change mid-gather.
func (w *World) ticksRequired(r *Runner, gat *catalogs.Gatherable) int {
	lvl := w.effectiveLevel(r.Skills[gat.Skill])
	factor := 1.0
	switch w.tun.Gather.Curve {
	case tuning.CurveFlat:
		factor = 1.0
	case tuning.CurvePower:
		factor = math.Pow(float64(lvl), w.tun.Gather.Exponent)
	case tuning.CurveHyperbolic:
		factor = 1 + float64(lvl-1)*w.tun.Gather.PerLevel
	}
	if factor < 1 {
		factor = 1
	}
	req := int(math.Ceil(float64(gat.BaseTicks) / factor))
	if req < 1 {
		req = 1
	}
	return req
}

func (w *World) gatherFail(r *Runner, now uint64, nodeID, reason, itemID string) {
	if r.gatherFailSeen == reason {
		return
	}
	r.gatherFailSeen = reason
	w.publish(protocol.GatheringFailed{
		Type: protocol.EvGatheringFailed, Tick: now,
		RunnerID: r.ID, NodeID: nodeID, Reason: reason, ItemID: itemID,
	})
}
