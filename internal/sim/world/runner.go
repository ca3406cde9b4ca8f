package world

import (
	"runnervale.ai/internal/sim/tasks"
	"runnervale.ai/internal/sim/tuning"
)

type Runner struct {
	ID   string
	Name string

	Skills map[string]*Skill // full roster, keyed by skill id
	NodeID string

	Activity   tasks.ActivityState
	Travel     *tasks.TravelState
	Gathering  *tasks.GatheringState
	Depositing *tasks.DepositingState

	Inventory *Inventory

	SequenceID string
	Cursor     int

	// Deferred reassignment staged by a boundary-tagged macro rule. The set
	// flag distinguishes "pending go-idle" (empty id) from "nothing pending".
	PendingSequenceID string
	PendingSet        bool

	MacroRulesetID          string
	MacroSuspendedUntilLoop bool

	// Set when a non-looping sequence completes; suppresses a work-at rule
	// re-targeting the same node on the completion trigger.
	LastCompletedTargetNode string

	// Diagnostic collapse state (not persisted; re-emitted after load).
	microNoMatchRuleset string
	microNoMatchSeen    bool
	gatherFailSeen      string
}

func newRunner(id, name, nodeID string, tun tuning.Tuning) *Runner {
	r := &Runner{
		ID:        id,
		Name:      name,
		NodeID:    nodeID,
		Activity:  tasks.ActivityIdle,
		Skills:    map[string]*Skill{},
		Inventory: NewInventory(tun.InventorySlots, tun.StackSize),
	}
	for _, s := range SkillRoster {
		r.Skills[s] = &Skill{Level: 1}
	}
	return r
}

// cancelActivity unconditionally discards any in-flight travel, gathering or
// depositing payload and returns the runner to Idle. No partial refunds.
func (r *Runner) cancelActivity() {
	r.Activity = tasks.ActivityIdle
	r.Travel = nil
	r.Gathering = nil
	r.Depositing = nil
	r.microNoMatchSeen = false
	r.microNoMatchRuleset = ""
	r.gatherFailSeen = ""
}

// ruleContext is the read-only snapshot a rule condition evaluates against.
type ruleContext struct {
	w *World
	r *Runner
}

func (c ruleContext) SkillLevel(skill string) int {
	s := c.r.Skills[skill]
	if s == nil {
		return 0
	}
	return s.Level
}

func (c ruleContext) InventoryFreeSlots() int        { return c.r.Inventory.FreeSlots() }
func (c ruleContext) InventoryCount(item string) int { return c.r.Inventory.Count(item) }
func (c ruleContext) BankCount(item string) int      { return c.w.bank[item] }
func (c ruleContext) NodeID() string                 { return c.r.NodeID }
func (c ruleContext) Activity() string               { return string(c.r.Activity) }
