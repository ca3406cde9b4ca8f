package world

import (
	"fmt"
	"math"

	"runnervale.ai/internal/protocol"
	"runnervale.ai/internal/sim/catalogs"
	"runnervale.ai/internal/sim/tasks"
)

// AssignRunner immediately puts the runner on a sequence (empty id goes
// idle), cancelling any in-flight activity and resetting the cursor.
func (w *World) AssignRunner(runnerID, sequenceID, reason string) error {
	r := w.runnersByID[runnerID]
	if r == nil {
		return fmt.Errorf("assign: unknown runner %q", runnerID)
	}
	if sequenceID != "" && w.seqs[sequenceID] == nil {
		return fmt.Errorf("assign: unknown sequence %q", sequenceID)
	}
	w.assignSequence(r, sequenceID, reason, w.tick, 0)
	return nil
}

// SetMacroRuleset points the runner at a macro ruleset (empty id detaches).
func (w *World) SetMacroRuleset(runnerID, rulesetID string) error {
	r := w.runnersByID[runnerID]
	if r == nil {
		return fmt.Errorf("set macro ruleset: unknown runner %q", runnerID)
	}
	if rulesetID != "" && w.macroSets[rulesetID] == nil {
		return fmt.Errorf("set macro ruleset: unknown ruleset %q", rulesetID)
	}
	r.MacroRulesetID = rulesetID
	return nil
}

// SetPassion toggles the passion flag for one of the runner's skills.
func (w *World) SetPassion(runnerID, skill string, passion bool) error {
	r := w.runnersByID[runnerID]
	if r == nil {
		return fmt.Errorf("set passion: unknown runner %q", runnerID)
	}
	s := r.Skills[skill]
	if s == nil {
		return fmt.Errorf("set passion: unknown skill %q", skill)
	}
	s.Passion = passion
	return nil
}

// CommandTravel sends the runner toward a node. Mid-flight redirection
// recomputes the remaining distance from the runner's interpolated virtual
// position so its logical position stays continuous; it never snaps back to
// the original origin. An optional explicit distance overrides the provider.
func (w *World) CommandTravel(runnerID, targetNode string, distance ...float64) error {
	r := w.runnersByID[runnerID]
	if r == nil {
		return fmt.Errorf("travel: unknown runner %q", runnerID)
	}
	target := w.wmap.GetNode(targetNode)
	if target == nil {
		return fmt.Errorf("travel: unknown node %q", targetNode)
	}

	var explicit float64 = -1
	if len(distance) > 0 {
		explicit = distance[0]
	}

	if r.Activity == tasks.ActivityTraveling {
		tr := r.Travel
		if tr.ToNode == targetNode {
			return nil
		}
		vs := w.virtualPos(tr)
		total := explicit
		if total < 0 {
			total = catalogs.Dist(vs, target.Pos)
		}
		if math.IsNaN(total) || total < 0 {
			total = 0
		}
		r.Travel = &tasks.TravelState{
			FromNode:     tr.FromNode,
			ToNode:       targetNode,
			Total:        total,
			VirtualStart: &vs,
		}
		w.publish(protocol.TravelRedirected{
			Type: protocol.EvTravelRedirected, Tick: w.tick,
			RunnerID: r.ID, ToNode: targetNode, NewDistance: total,
		})
		return nil
	}

	if r.NodeID == targetNode {
		return nil
	}
	total := explicit
	if total < 0 {
		d, ok := w.wmap.FindPath(r.NodeID, targetNode)
		if !ok {
			return fmt.Errorf("travel: no path from %q to %q", r.NodeID, targetNode)
		}
		total = d
	}
	w.startTravel(r, targetNode, total, w.tick)
	return nil
}

// virtualPos interpolates the runner's coordinates along the current leg.
func (w *World) virtualPos(tr *tasks.TravelState) [2]float64 {
	var from [2]float64
	if tr.VirtualStart != nil {
		from = *tr.VirtualStart
	} else if n := w.wmap.GetNode(tr.FromNode); n != nil {
		from = n.Pos
	}
	var to [2]float64
	if n := w.wmap.GetNode(tr.ToNode); n != nil {
		to = n.Pos
	}
	p := tr.Progress()
	return [2]float64{
		from[0] + (to[0]-from[0])*p,
		from[1] + (to[1]-from[1])*p,
	}
}
