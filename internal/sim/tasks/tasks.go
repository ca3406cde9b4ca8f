package tasks

// StepKind is the closed set of task step types.
type StepKind string

const (
	StepTravelTo StepKind = "TRAVEL_TO"
	StepWork     StepKind = "WORK"
	StepDeposit  StepKind = "DEPOSIT"
)

// Step is one entry in a task sequence. Exactly the fields for its kind are
// meaningful: TargetNode for TRAVEL_TO, MicroRulesetID for WORK.
type Step struct {
	Kind           StepKind
	TargetNode     string
	MicroRulesetID string
}

// Sequence is a shared, optionally looping, ordered list of steps. Runners
// reference sequences by id; edits through the library are visible to every
// referencing runner immediately.
type Sequence struct {
	ID         string
	Name       string
	TargetNode string // hint: the node this sequence works at, if any
	Steps      []Step
	Loop       bool
}

// StepAt returns the step under the cursor, or nil when the cursor is parked
// one-past-the-end (completed, not looping) or the sequence is empty.
func (s *Sequence) StepAt(cursor int) *Step {
	if s == nil || cursor < 0 || cursor >= len(s.Steps) {
		return nil
	}
	return &s.Steps[cursor]
}

// Advance moves the cursor past the current step. A looping sequence wraps to
// 0 and reports true; a non-looping sequence that runs past the last step
// parks at len(Steps) and reports false, signaling completion. An empty
// sequence always reports false.
func (s *Sequence) Advance(cursor int) (int, bool) {
	if s == nil || len(s.Steps) == 0 {
		return 0, false
	}
	cursor++
	if cursor < len(s.Steps) {
		return cursor, true
	}
	if s.Loop {
		return 0, true
	}
	return len(s.Steps), false
}

// Completed reports whether the cursor is parked one-past-the-end.
func (s *Sequence) Completed(cursor int) bool {
	if s == nil {
		return true
	}
	return cursor >= len(s.Steps)
}

func (s *Sequence) Clone() *Sequence {
	if s == nil {
		return nil
	}
	cp := *s
	cp.Steps = make([]Step, len(s.Steps))
	copy(cp.Steps, s.Steps)
	return &cp
}
