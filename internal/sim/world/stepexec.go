package world

import (
	"runnervale.ai/internal/protocol"
	"runnervale.ai/internal/sim/tasks"
)

// maxStepChain bounds how many already-satisfied steps (no-op travels, empty
// sequences) resolve within a single tick.
const maxStepChain = 16

func (w *World) resolveSequence(id string) *tasks.Sequence {
	if id == "" {
		return nil
	}
	return w.seqs[id]
}

// currentStep returns the runner's live sequence and the step under its
// cursor; either may be nil.
func (w *World) currentStep(r *Runner) (*tasks.Sequence, *tasks.Step) {
	seq := w.resolveSequence(r.SequenceID)
	if seq == nil {
		return nil, nil
	}
	return seq, seq.StepAt(r.Cursor)
}

// executeCurrentStep drives the runner through its sequence while it stays
// Idle: no-op travels and empty sequences resolve immediately (bounded by
// maxStepChain); a real step transitions the runner out of Idle and returns.
func (w *World) executeCurrentStep(r *Runner, now uint64, depth int) {
	for chain := 0; chain < maxStepChain; chain++ {
		if r.Activity != tasks.ActivityIdle {
			return
		}
		seq := w.resolveSequence(r.SequenceID)
		if seq == nil {
			return
		}

		// Macro rules get a look before each step begins.
		prevSeq, prevCursor := r.SequenceID, r.Cursor
		w.evalMacro(r, now, TriggerBeforeStep, depth+1)
		if r.SequenceID != prevSeq || r.Cursor != prevCursor || r.Activity != tasks.ActivityIdle {
			return
		}

		if seq.Completed(r.Cursor) {
			w.completeSequence(r, seq, now, depth)
			continue
		}
		step := seq.StepAt(r.Cursor)

		switch step.Kind {
		case tasks.StepTravelTo:
			if r.NodeID == step.TargetNode {
				// Already there: the step resolves without travel.
				w.advanceStep(r, seq, now, depth)
				continue
			}
			dist, ok := w.wmap.FindPath(r.NodeID, step.TargetNode)
			if !ok {
				// Unroutable target is an authoring gap; freeze in place.
				return
			}
			w.startTravel(r, step.TargetNode, dist, now)
			return
		case tasks.StepWork:
			r.Activity = tasks.ActivityGathering
			r.Gathering = &tasks.GatheringState{NodeID: r.NodeID, GatherIndex: -1}
			return
		case tasks.StepDeposit:
			r.Activity = tasks.ActivityDepositing
			r.Depositing = &tasks.DepositingState{TicksLeft: w.tun.Deposit.Ticks}
			w.publish(protocol.DepositStarted{
				Type: protocol.EvDepositStarted, Tick: now,
				RunnerID: r.ID, NodeID: r.NodeID, Ticks: w.tun.Deposit.Ticks,
			})
			return
		default:
			return
		}
	}
}

// advanceStep moves the cursor past the current step; completion of a
// non-looping sequence clears the active id, publishes exactly one completion
// event and immediately offers the macro layer a chance to react.
func (w *World) advanceStep(r *Runner, seq *tasks.Sequence, now uint64, depth int) bool {
	prev := r.Cursor
	next, ok := seq.Advance(r.Cursor)
	if ok {
		r.Cursor = next
		w.publish(protocol.SequenceAdvanced{
			Type: protocol.EvSequenceAdvanced, Tick: now,
			RunnerID: r.ID, SequenceID: seq.ID, StepIndex: next,
			Wrapped: next == 0 && prev == len(seq.Steps)-1,
		})
		return true
	}
	r.Cursor = len(seq.Steps)
	w.completeSequence(r, seq, now, depth)
	return false
}

func (w *World) completeSequence(r *Runner, seq *tasks.Sequence, now uint64, depth int) {
	r.LastCompletedTargetNode = seq.TargetNode
	r.SequenceID = ""
	r.Cursor = 0
	w.publish(protocol.SequenceCompleted{
		Type: protocol.EvSequenceCompleted, Tick: now,
		RunnerID: r.ID, SequenceID: seq.ID,
	})
	// The runner is idle with nothing queued; macro rules may assign the next
	// sequence right away. Depth-guarded: a generated sequence completing the
	// instant it is assigned must not cascade forever.
	w.evalMacro(r, now, TriggerSequenceDone, depth+1)
}

func (w *World) startTravel(r *Runner, toNode string, distance float64, now uint64) {
	fromNode := r.NodeID
	r.cancelActivity()
	r.Activity = tasks.ActivityTraveling
	r.Travel = &tasks.TravelState{FromNode: fromNode, ToNode: toNode, Total: distance}
	r.LastCompletedTargetNode = ""
	w.publish(protocol.TravelStarted{
		Type: protocol.EvTravelStarted, Tick: now,
		RunnerID: r.ID, FromNode: fromNode, ToNode: toNode, Distance: distance,
	})
}
