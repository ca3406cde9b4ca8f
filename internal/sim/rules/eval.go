package rules

// Context is the read-only snapshot of world/runner state a condition sees.
// The world facade implements it per runner; the engine never reaches past
// this interface.
type Context interface {
	SkillLevel(skill string) int
	InventoryFreeSlots() int
	InventoryCount(item string) int
	BankCount(item string) int
	NodeID() string
	Activity() string
}

// NoMatch is the index returned when no rule matched.
const NoMatch = -1

// Evaluate walks enabled rules in order and returns the index of the first
// rule whose conditions all hold. A nil or empty ruleset, or one where every
// rule fails, returns (NoMatch, false).
func Evaluate(rs *Ruleset, ctx Context) (int, bool) {
	if rs == nil {
		return NoMatch, false
	}
	for i := range rs.Rules {
		r := &rs.Rules[i]
		if !r.Enabled {
			continue
		}
		if matches(r, ctx) {
			return i, true
		}
	}
	return NoMatch, false
}

func matches(r *Rule, ctx Context) bool {
	for _, c := range r.Conditions {
		if !evalCondition(c, ctx) {
			return false
		}
	}
	return true
}

func evalCondition(c Condition, ctx Context) bool {
	switch c.Kind {
	case CondSkillLevel:
		return compareInt(c.Op, ctx.SkillLevel(c.Skill), c.Value)
	case CondInventoryFree:
		return compareInt(c.Op, ctx.InventoryFreeSlots(), c.Value)
	case CondInventoryCount:
		return compareInt(c.Op, ctx.InventoryCount(c.Item), c.Value)
	case CondBankCount:
		return compareInt(c.Op, ctx.BankCount(c.Item), c.Value)
	case CondAtNode:
		return compareStr(c.Op, ctx.NodeID(), c.Str)
	case CondActivity:
		return compareStr(c.Op, ctx.Activity(), c.Str)
	}
	// Unknown kinds never match; authored data is surfaced, not guessed at.
	return false
}

func compareInt(op Op, a, b int) bool {
	switch op {
	case OpGT:
		return a > b
	case OpGE:
		return a >= b
	case OpLT:
		return a < b
	case OpLE:
		return a <= b
	case OpEQ:
		return a == b
	case OpNE:
		return a != b
	}
	return false
}

func compareStr(op Op, a, b string) bool {
	switch op {
	case OpEQ:
		return a == b
	case OpNE:
		return a != b
	}
	return false
}
