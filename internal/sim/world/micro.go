package world

import (
	"hash/fnv"
	"strconv"

	"runnervale.ai/internal/protocol"
	"runnervale.ai/internal/sim/catalogs"
	"runnervale.ai/internal/sim/rules"
	"runnervale.ai/internal/sim/tasks"
)

type microOutcome int

const (
	microGather microOutcome = iota
	microFinish
	microFreeze
)

// evalMicro resolves what the runner gathers this tick, or whether the Work
// step ends. "No match" freezes the runner at the step: player-authored rules
// are authoritative and gaps are surfaced, never patched.
func (w *World) evalMicro(r *Runner, g *tasks.GatheringState, node *catalogs.Node, step *tasks.Step, now uint64) microOutcome {
	if step.MicroRulesetID == "" {
		// Generated work-at sequences carry no micro ruleset; their built-in
		// behavior is gather-any until the inventory fills.
		if g.GatherIndex < 0 || g.GatherIndex >= len(node.Gatherables) {
			w.setGatherPick(r, g, node, w.pickAny(now, r.ID, len(node.Gatherables)), now)
		}
		return microGather
	}

	rs := w.microSets[step.MicroRulesetID]
	if rs == nil {
		w.microNoMatch(r, step.MicroRulesetID, now)
		return microFreeze
	}
	idx, ok := rules.Evaluate(rs, ruleContext{w: w, r: r})
	if !ok {
		w.microNoMatch(r, rs.ID, now)
		return microFreeze
	}
	r.microNoMatchSeen = false
	r.microNoMatchRuleset = ""

	rule := &rs.Rules[idx]
	w.microRuleFired(r, rs, idx, rule.Label, now)

	switch rule.Action.Kind {
	case rules.ActFinishTask:
		return microFinish
	case rules.ActGatherItem:
		for i := range node.Gatherables {
			if node.Gatherables[i].ItemID == rule.Action.Param {
				w.setGatherPick(r, g, node, i, now)
				return microGather
			}
		}
		w.gatherFail(r, now, g.NodeID, protocol.FailUnknownItem, rule.Action.Param)
		return microFreeze
	case rules.ActGatherIndex:
		i := rule.Action.IntParam
		if i < 0 || i >= len(node.Gatherables) {
			w.gatherFail(r, now, g.NodeID, protocol.FailBadIndex, "")
			return microFreeze
		}
		w.setGatherPick(r, g, node, i, now)
		return microGather
	case rules.ActGatherAny:
		// Keep the current pick mid-gather; re-roll only on a fresh pick so
		// the choice does not flicker every tick.
		if g.GatherIndex >= 0 && g.GatherIndex < len(node.Gatherables) {
			return microGather
		}
		w.setGatherPick(r, g, node, w.pickAny(now, r.ID, len(node.Gatherables)), now)
		return microGather
	}
	// A macro action in a micro ruleset is an authoring gap.
	w.microNoMatch(r, rs.ID, now)
	return microFreeze
}

func (w *World) setGatherPick(r *Runner, g *tasks.GatheringState, node *catalogs.Node, idx int, now uint64) {
	if g.GatherIndex == idx {
		return
	}
	g.GatherIndex = idx
	g.Accum = 0
	gat := &node.Gatherables[idx]
	w.publish(protocol.GatheringStarted{
		Type: protocol.EvGatheringStarted, Tick: now,
		RunnerID: r.ID, NodeID: node.ID, ItemID: gat.ItemID, Skill: gat.Skill,
	})
}

// pickAny chooses uniformly among n gatherables, derived deterministically
// from the world seed so replays reproduce it without stored RNG state.
func (w *World) pickAny(now uint64, runnerID string, n int) int {
	if n <= 1 {
		return 0
	}
	h := fnv.New64a()
	h.Write([]byte(strconv.FormatInt(w.cfg.Seed, 10)))
	h.Write([]byte{0})
	h.Write([]byte(strconv.FormatUint(now, 10)))
	h.Write([]byte{0})
	h.Write([]byte(runnerID))
	return int(h.Sum64() % uint64(n))
}

// microNoMatch surfaces a micro-layer gap once per evaluation trigger: the
// event collapses while the same ruleset keeps failing tick after tick.
func (w *World) microNoMatch(r *Runner, rulesetID string, now uint64) {
	if r.microNoMatchSeen && r.microNoMatchRuleset == rulesetID {
		return
	}
	r.microNoMatchSeen = true
	r.microNoMatchRuleset = rulesetID
	w.publish(protocol.RuleNoMatch{
		Type: protocol.EvRuleNoMatch, Tick: now,
		RunnerID: r.ID, Layer: protocol.LayerMicro,
		RulesetID: rulesetID, Trigger: "work",
	})
}

// microRuleFired collapses the per-tick re-evaluation into one event per
// distinct winning rule.
func (w *World) microRuleFired(r *Runner, rs *rules.Ruleset, idx int, label string, now uint64) {
	if r.Gathering == nil {
		return
	}
	if r.Gathering.LastRule != nil && *r.Gathering.LastRule == idx {
		return
	}
	v := idx
	r.Gathering.LastRule = &v
	w.publish(protocol.RuleFired{
		Type: protocol.EvRuleFired, Tick: now,
		RunnerID: r.ID, Layer: protocol.LayerMicro,
		RulesetID: rs.ID, RuleIndex: idx, Label: label, Trigger: "work",
	})
}
