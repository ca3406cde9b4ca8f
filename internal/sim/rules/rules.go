// Package rules implements the player-authored condition/action rule model
// and its evaluator. A ruleset is an ordered priority list: the first rule
// whose conditions all hold wins. The engine never mutates anything; actions
// are interpreted by the caller (macro layer picks task sequences, micro
// layer picks in-step gathering behavior).
package rules

// Category separates the two rule vocabularies sharing this engine.
type Category string

const (
	CategoryMacro Category = "MACRO"
	CategoryMicro Category = "MICRO"
)

type Ruleset struct {
	ID       string
	Name     string
	Category Category
	Rules    []Rule
}

type Rule struct {
	Label              string
	Enabled            bool
	Conditions         []Condition
	Action             Action
	DeferUntilBoundary bool
}

// ConditionKind is the closed set of condition types.
type ConditionKind string

const (
	CondSkillLevel     ConditionKind = "SKILL_LEVEL"
	CondInventoryFree  ConditionKind = "INVENTORY_FREE_SLOTS"
	CondInventoryCount ConditionKind = "INVENTORY_COUNT"
	CondBankCount      ConditionKind = "BANK_COUNT"
	CondAtNode         ConditionKind = "AT_NODE"
	CondActivity       ConditionKind = "ACTIVITY"
)

// Op is a comparison operator. String-valued conditions (AT_NODE, ACTIVITY)
// accept only OpEQ/OpNE.
type Op string

const (
	OpGT Op = ">"
	OpGE Op = ">="
	OpLT Op = "<"
	OpLE Op = "<="
	OpEQ Op = "=="
	OpNE Op = "!="
)

// Condition holds the operands for its kind: Skill for SKILL_LEVEL, Item for
// the count conditions, Str for AT_NODE/ACTIVITY, Value for every numeric
// comparison.
type Condition struct {
	Kind  ConditionKind
	Op    Op
	Skill string
	Item  string
	Str   string
	Value int
}

// ActionKind is the closed set of rule actions across both vocabularies.
type ActionKind string

const (
	// Macro actions.
	ActAssignSequence  ActionKind = "ASSIGN_SEQUENCE"
	ActWorkAtNode      ActionKind = "WORK_AT_NODE"
	ActGoIdle          ActionKind = "GO_IDLE"
	ActFleeToHub       ActionKind = "FLEE_TO_HUB"
	ActReturnToHubOnce ActionKind = "RETURN_TO_HUB_ONCE"

	// Micro actions.
	ActFinishTask  ActionKind = "FINISH_TASK"
	ActGatherItem  ActionKind = "GATHER_ITEM"
	ActGatherIndex ActionKind = "GATHER_INDEX"
	ActGatherAny   ActionKind = "GATHER_ANY"
)

type Action struct {
	Kind     ActionKind
	Param    string // sequence id, node id, or item id depending on Kind
	IntParam int    // gatherable index for GATHER_INDEX
}

// MacroAction reports whether k belongs to the macro vocabulary.
func MacroAction(k ActionKind) bool {
	switch k {
	case ActAssignSequence, ActWorkAtNode, ActGoIdle, ActFleeToHub, ActReturnToHubOnce:
		return true
	}
	return false
}

func (rs *Ruleset) Clone() *Ruleset {
	if rs == nil {
		return nil
	}
	cp := *rs
	cp.Rules = make([]Rule, len(rs.Rules))
	copy(cp.Rules, rs.Rules)
	for i := range cp.Rules {
		conds := make([]Condition, len(rs.Rules[i].Conditions))
		copy(conds, rs.Rules[i].Conditions)
		cp.Rules[i].Conditions = conds
	}
	return &cp
}
