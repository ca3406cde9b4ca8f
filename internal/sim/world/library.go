package world

import (
	"fmt"
	"sort"

	"github.com/google/uuid"

	"runnervale.ai/internal/sim/rules"
	"runnervale.ai/internal/sim/tasks"
)

// The shared definition library: id-keyed stores of sequences and rulesets.
// Runners hold ids, never copies, so edits here are visible to every
// referencing runner immediately. Deletion actively repairs references
// instead of leaving them dangling.

// Starter definitions registered at game start; reset-to-default restores
// from these pristine copies.
type starterDefs struct {
	seqs   map[string]*tasks.Sequence
	macros map[string]*rules.Ruleset
	micros map[string]*rules.Ruleset
}

func (w *World) rulesetMap(cat rules.Category) (map[string]*rules.Ruleset, error) {
	switch cat {
	case rules.CategoryMacro:
		return w.macroSets, nil
	case rules.CategoryMicro:
		return w.microSets, nil
	}
	return nil, fmt.Errorf("unknown ruleset category %q", cat)
}

// CreateSequence adds a sequence to the library, assigning a fresh id when
// none is set.
func (w *World) CreateSequence(seq *tasks.Sequence) (string, error) {
	if seq == nil {
		return "", fmt.Errorf("create sequence: nil definition")
	}
	if seq.ID == "" {
		seq.ID = "seq-" + uuid.NewString()
	}
	if w.seqs[seq.ID] != nil {
		return "", fmt.Errorf("create sequence: id %q already exists", seq.ID)
	}
	w.seqs[seq.ID] = seq
	return seq.ID, nil
}

// DeleteSequence removes the entry and repairs every reference: active
// runners go idle with their in-flight activity cancelled, pending
// reassignments to it are dropped.
func (w *World) DeleteSequence(id string) error {
	if w.seqs[id] == nil {
		return fmt.Errorf("delete sequence: unknown id %q", id)
	}
	delete(w.seqs, id)
	for _, r := range w.runners {
		if r.PendingSet && r.PendingSequenceID == id {
			r.PendingSet = false
			r.PendingSequenceID = ""
			r.MacroSuspendedUntilLoop = false
		}
		if r.SequenceID == id {
			w.assignSequence(r, "", "sequence_deleted", w.tick, 0)
		}
	}
	return nil
}

// CloneSequence deep-copies a definition under a fresh id and "(copy)" name.
func (w *World) CloneSequence(id string) (string, error) {
	src := w.seqs[id]
	if src == nil {
		return "", fmt.Errorf("clone sequence: unknown id %q", id)
	}
	cp := src.Clone()
	cp.ID = "seq-" + uuid.NewString()
	cp.Name = src.Name + " (copy)"
	w.seqs[cp.ID] = cp
	return cp.ID, nil
}

func (w *World) RenameSequence(id, name string) error {
	seq := w.seqs[id]
	if seq == nil {
		return fmt.Errorf("rename sequence: unknown id %q", id)
	}
	seq.Name = name
	return nil
}

func (w *World) SetSequenceLoop(id string, loop bool) error {
	seq := w.seqs[id]
	if seq == nil {
		return fmt.Errorf("set loop: unknown id %q", id)
	}
	seq.Loop = loop
	return nil
}

// AddStep inserts a step at index (len appends). Active cursors at or past
// the insertion point shift right so every runner stays on the step it was
// on.
func (w *World) AddStep(seqID string, index int, step tasks.Step) error {
	seq := w.seqs[seqID]
	if seq == nil {
		return fmt.Errorf("add step: unknown sequence %q", seqID)
	}
	if index < 0 || index > len(seq.Steps) {
		return fmt.Errorf("add step: index %d out of range", index)
	}
	if step.Kind == tasks.StepTravelTo && w.wmap.GetNode(step.TargetNode) == nil {
		return fmt.Errorf("add step: unknown travel target %q", step.TargetNode)
	}
	if step.Kind == tasks.StepWork && step.MicroRulesetID != "" && w.microSets[step.MicroRulesetID] == nil {
		return fmt.Errorf("add step: unknown micro ruleset %q", step.MicroRulesetID)
	}
	seq.Steps = append(seq.Steps, tasks.Step{})
	copy(seq.Steps[index+1:], seq.Steps[index:])
	seq.Steps[index] = step

	for _, r := range w.runners {
		if r.SequenceID == seqID && index <= r.Cursor {
			r.Cursor++
		}
	}
	return nil
}

// RemoveStep deletes the step at index. Cursors before it are untouched,
// cursors past it shift left, and a cursor on it clamps to the new length
// with the in-flight activity cancelled (the step it was doing no longer
// exists; an emptied sequence forces the runner idle via normal execution).
func (w *World) RemoveStep(seqID string, index int) error {
	seq := w.seqs[seqID]
	if seq == nil {
		return fmt.Errorf("remove step: unknown sequence %q", seqID)
	}
	if index < 0 || index >= len(seq.Steps) {
		return fmt.Errorf("remove step: index %d out of range", index)
	}
	seq.Steps = append(seq.Steps[:index], seq.Steps[index+1:]...)

	for _, r := range w.runners {
		if r.SequenceID != seqID {
			continue
		}
		switch {
		case index < r.Cursor:
			r.Cursor--
		case index == r.Cursor:
			r.cancelActivity()
		}
		if r.Cursor > len(seq.Steps) {
			r.Cursor = len(seq.Steps)
		}
	}
	return nil
}

// MoveStep relocates a step; cursors follow the step they were on, or shift
// by one when the move crosses them.
func (w *World) MoveStep(seqID string, from, to int) error {
	seq := w.seqs[seqID]
	if seq == nil {
		return fmt.Errorf("move step: unknown sequence %q", seqID)
	}
	n := len(seq.Steps)
	if from < 0 || from >= n || to < 0 || to >= n {
		return fmt.Errorf("move step: index out of range (%d -> %d)", from, to)
	}
	if from == to {
		return nil
	}
	st := seq.Steps[from]
	seq.Steps = append(seq.Steps[:from], seq.Steps[from+1:]...)
	seq.Steps = append(seq.Steps, tasks.Step{})
	copy(seq.Steps[to+1:], seq.Steps[to:])
	seq.Steps[to] = st

	for _, r := range w.runners {
		if r.SequenceID != seqID {
			continue
		}
		switch {
		case r.Cursor == from:
			r.Cursor = to
		case from < r.Cursor && to >= r.Cursor:
			r.Cursor--
		case from > r.Cursor && to <= r.Cursor:
			r.Cursor++
		}
	}
	return nil
}

// CreateRuleset adds a ruleset, routed by category, assigning an id when
// absent.
func (w *World) CreateRuleset(rs *rules.Ruleset) (string, error) {
	if rs == nil {
		return "", fmt.Errorf("create ruleset: nil definition")
	}
	m, err := w.rulesetMap(rs.Category)
	if err != nil {
		return "", fmt.Errorf("create ruleset: %w", err)
	}
	if rs.ID == "" {
		rs.ID = "rs-" + uuid.NewString()
	}
	if m[rs.ID] != nil {
		return "", fmt.Errorf("create ruleset: id %q already exists", rs.ID)
	}
	m[rs.ID] = rs
	return rs.ID, nil
}

// DeleteRuleset removes the entry and clears every reference to it: runner
// macro ids for macro rulesets, Work-step micro ids for micro rulesets.
func (w *World) DeleteRuleset(cat rules.Category, id string) error {
	m, err := w.rulesetMap(cat)
	if err != nil {
		return fmt.Errorf("delete ruleset: %w", err)
	}
	if m[id] == nil {
		return fmt.Errorf("delete ruleset: unknown id %q", id)
	}
	delete(m, id)
	switch cat {
	case rules.CategoryMacro:
		for _, r := range w.runners {
			if r.MacroRulesetID == id {
				r.MacroRulesetID = ""
			}
		}
	case rules.CategoryMicro:
		for _, seq := range w.seqs {
			for i := range seq.Steps {
				if seq.Steps[i].Kind == tasks.StepWork && seq.Steps[i].MicroRulesetID == id {
					seq.Steps[i].MicroRulesetID = ""
				}
			}
		}
	}
	return nil
}

func (w *World) CloneRuleset(cat rules.Category, id string) (string, error) {
	m, err := w.rulesetMap(cat)
	if err != nil {
		return "", fmt.Errorf("clone ruleset: %w", err)
	}
	src := m[id]
	if src == nil {
		return "", fmt.Errorf("clone ruleset: unknown id %q", id)
	}
	cp := src.Clone()
	cp.ID = "rs-" + uuid.NewString()
	cp.Name = src.Name + " (copy)"
	m[cp.ID] = cp
	return cp.ID, nil
}

func (w *World) RenameRuleset(cat rules.Category, id, name string) error {
	rs, err := w.findRuleset(cat, id)
	if err != nil {
		return fmt.Errorf("rename ruleset: %w", err)
	}
	rs.Name = name
	return nil
}

func (w *World) findRuleset(cat rules.Category, id string) (*rules.Ruleset, error) {
	m, err := w.rulesetMap(cat)
	if err != nil {
		return nil, err
	}
	rs := m[id]
	if rs == nil {
		return nil, fmt.Errorf("unknown ruleset %q", id)
	}
	return rs, nil
}

func (w *World) AddRule(cat rules.Category, rsID string, index int, rule rules.Rule) error {
	rs, err := w.findRuleset(cat, rsID)
	if err != nil {
		return fmt.Errorf("add rule: %w", err)
	}
	if index < 0 || index > len(rs.Rules) {
		return fmt.Errorf("add rule: index %d out of range", index)
	}
	rs.Rules = append(rs.Rules, rules.Rule{})
	copy(rs.Rules[index+1:], rs.Rules[index:])
	rs.Rules[index] = rule
	return nil
}

func (w *World) RemoveRule(cat rules.Category, rsID string, index int) error {
	rs, err := w.findRuleset(cat, rsID)
	if err != nil {
		return fmt.Errorf("remove rule: %w", err)
	}
	if index < 0 || index >= len(rs.Rules) {
		return fmt.Errorf("remove rule: index %d out of range", index)
	}
	rs.Rules = append(rs.Rules[:index], rs.Rules[index+1:]...)
	return nil
}

func (w *World) MoveRule(cat rules.Category, rsID string, from, to int) error {
	rs, err := w.findRuleset(cat, rsID)
	if err != nil {
		return fmt.Errorf("move rule: %w", err)
	}
	n := len(rs.Rules)
	if from < 0 || from >= n || to < 0 || to >= n {
		return fmt.Errorf("move rule: index out of range (%d -> %d)", from, to)
	}
	if from == to {
		return nil
	}
	rl := rs.Rules[from]
	rs.Rules = append(rs.Rules[:from], rs.Rules[from+1:]...)
	rs.Rules = append(rs.Rules, rules.Rule{})
	copy(rs.Rules[to+1:], rs.Rules[to:])
	rs.Rules[to] = rl
	return nil
}

func (w *World) ToggleRule(cat rules.Category, rsID string, index int, enabled bool) error {
	rs, err := w.findRuleset(cat, rsID)
	if err != nil {
		return fmt.Errorf("toggle rule: %w", err)
	}
	if index < 0 || index >= len(rs.Rules) {
		return fmt.Errorf("toggle rule: index %d out of range", index)
	}
	rs.Rules[index].Enabled = enabled
	return nil
}

func (w *World) UpdateRule(cat rules.Category, rsID string, index int, rule rules.Rule) error {
	rs, err := w.findRuleset(cat, rsID)
	if err != nil {
		return fmt.Errorf("update rule: %w", err)
	}
	if index < 0 || index >= len(rs.Rules) {
		return fmt.Errorf("update rule: index %d out of range", index)
	}
	rs.Rules[index] = rule
	return nil
}

// ResetRuleset restores a starter ruleset to its registered default; entries
// without a default are cleared to an empty rule list.
func (w *World) ResetRuleset(cat rules.Category, id string) error {
	rs, err := w.findRuleset(cat, id)
	if err != nil {
		return fmt.Errorf("reset ruleset: %w", err)
	}
	var def *rules.Ruleset
	if w.defaults != nil {
		switch cat {
		case rules.CategoryMacro:
			def = w.defaults.macros[id]
		case rules.CategoryMicro:
			def = w.defaults.micros[id]
		}
	}
	if def != nil {
		cp := def.Clone()
		*rs = *cp
		return nil
	}
	rs.Rules = nil
	return nil
}

// Query helpers.

// Sequence returns the live library entry (mutations through the command
// surface are visible to every referencing runner).
func (w *World) Sequence(id string) *tasks.Sequence { return w.seqs[id] }

func (w *World) Ruleset(cat rules.Category, id string) *rules.Ruleset {
	m, err := w.rulesetMap(cat)
	if err != nil {
		return nil
	}
	return m[id]
}

func (w *World) SequenceIDs() []string {
	out := make([]string, 0, len(w.seqs))
	for id := range w.seqs {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func (w *World) RulesetIDs(cat rules.Category) []string {
	m, err := w.rulesetMap(cat)
	if err != nil {
		return nil
	}
	out := make([]string, 0, len(m))
	for id := range m {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// SequenceUsage counts runners referencing the sequence, active or pending.
func (w *World) SequenceUsage(id string) int {
	n := 0
	for _, r := range w.runners {
		if r.SequenceID == id || (r.PendingSet && r.PendingSequenceID == id) {
			n++
		}
	}
	return n
}

// RulesetUsage counts references: runners for macro rulesets, Work steps for
// micro rulesets.
func (w *World) RulesetUsage(cat rules.Category, id string) int {
	n := 0
	switch cat {
	case rules.CategoryMacro:
		for _, r := range w.runners {
			if r.MacroRulesetID == id {
				n++
			}
		}
	case rules.CategoryMicro:
		for _, seq := range w.seqs {
			for i := range seq.Steps {
				if seq.Steps[i].MicroRulesetID == id {
					n++
				}
			}
		}
	}
	return n
}
