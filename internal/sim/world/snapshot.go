package world

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"runnervale.ai/internal/persistence/snapshot"
	"runnervale.ai/internal/sim/events"
	"runnervale.ai/internal/sim/rules"
	"runnervale.ai/internal/sim/tasks"
	"runnervale.ai/internal/sim/tuning"
)

// ExportSnapshot captures the full GameState graph in its versioned
// persisted shape. Collections are emitted in deterministic order so the
// same state always serializes to the same bytes.
func (w *World) ExportSnapshot(now uint64) *snapshot.SnapshotV1 {
	s := &snapshot.SnapshotV1{
		Header:        snapshot.Header{Version: 1, WorldID: w.cfg.ID, Tick: now},
		Seed:          w.cfg.Seed,
		TickRate:      w.tun.TickRateHz,
		Elapsed:       w.elapsed,
		Bank:          map[string]int{},
		NextRunnerNum: w.nextRunnerNum,
	}
	for k, v := range w.bank {
		if v != 0 {
			s.Bank[k] = v
		}
	}
	for _, r := range w.runners {
		s.Runners = append(s.Runners, exportRunner(r))
	}
	for _, id := range w.SequenceIDs() {
		s.Sequences = append(s.Sequences, exportSequence(w.seqs[id]))
	}
	for _, id := range w.RulesetIDs(rules.CategoryMacro) {
		s.MacroRulesets = append(s.MacroRulesets, exportRuleset(w.macroSets[id]))
	}
	for _, id := range w.RulesetIDs(rules.CategoryMicro) {
		s.MicroRulesets = append(s.MicroRulesets, exportRuleset(w.microSets[id]))
	}
	return s
}

// StateDigest is the sha256 of the canonical snapshot encoding; replays and
// determinism tests compare these.
func (w *World) StateDigest(now uint64) string {
	b, err := json.Marshal(w.ExportSnapshot(now))
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

func exportRunner(r *Runner) snapshot.RunnerV1 {
	v := snapshot.RunnerV1{
		ID:                      r.ID,
		Name:                    r.Name,
		NodeID:                  r.NodeID,
		Activity:                string(r.Activity),
		Skills:                  map[string]snapshot.SkillV1{},
		SequenceID:              r.SequenceID,
		Cursor:                  r.Cursor,
		PendingSet:              r.PendingSet,
		PendingSequenceID:       r.PendingSequenceID,
		MacroRulesetID:          r.MacroRulesetID,
		MacroSuspendedUntilLoop: r.MacroSuspendedUntilLoop,
		LastCompletedTargetNode: r.LastCompletedTargetNode,
	}
	for name, s := range r.Skills {
		v.Skills[name] = snapshot.SkillV1{Level: s.Level, XP: s.XP, Passion: s.Passion}
	}
	for _, st := range r.Inventory.Slots {
		v.Inventory = append(v.Inventory, snapshot.StackV1{Item: st.Item, Count: st.Count})
	}
	if r.Travel != nil {
		v.Travel = &snapshot.TravelV1{
			FromNode: r.Travel.FromNode, ToNode: r.Travel.ToNode,
			Total: r.Travel.Total, Covered: r.Travel.Covered,
			VirtualStart: r.Travel.VirtualStart,
		}
	}
	if r.Gathering != nil {
		v.Gathering = &snapshot.GatheringV1{
			NodeID: r.Gathering.NodeID, GatherIndex: r.Gathering.GatherIndex,
			Accum: r.Gathering.Accum,
		}
	}
	if r.Depositing != nil {
		v.Depositing = &snapshot.DepositingV1{TicksLeft: r.Depositing.TicksLeft}
	}
	return v
}

func exportSequence(seq *tasks.Sequence) snapshot.SequenceV1 {
	v := snapshot.SequenceV1{
		ID: seq.ID, Name: seq.Name, TargetNode: seq.TargetNode, Loop: seq.Loop,
		Steps: make([]snapshot.StepV1, 0, len(seq.Steps)),
	}
	for _, st := range seq.Steps {
		v.Steps = append(v.Steps, snapshot.StepV1{
			Kind: string(st.Kind), TargetNode: st.TargetNode, MicroRulesetID: st.MicroRulesetID,
		})
	}
	return v
}

func exportRuleset(rs *rules.Ruleset) snapshot.RulesetV1 {
	v := snapshot.RulesetV1{
		ID: rs.ID, Name: rs.Name, Category: string(rs.Category),
		Rules: make([]snapshot.RuleV1, 0, len(rs.Rules)),
	}
	for _, rl := range rs.Rules {
		rv := snapshot.RuleV1{
			Label: rl.Label, Enabled: rl.Enabled,
			Action: snapshot.ActionV1{
				Kind: string(rl.Action.Kind), Param: rl.Action.Param, IntParam: rl.Action.IntParam,
			},
			DeferUntilBoundary: rl.DeferUntilBoundary,
		}
		for _, c := range rl.Conditions {
			rv.Conditions = append(rv.Conditions, snapshot.ConditionV1{
				Kind: string(c.Kind), Op: string(c.Op),
				Skill: c.Skill, Item: c.Item, Str: c.Str, Value: c.Value,
			})
		}
		v.Rules = append(v.Rules, rv)
	}
	return v
}

// Load replaces the GameState wholesale from a snapshot. Legacy embedded
// definitions are migrated into library entries once (the transform is
// idempotent: a re-exported snapshot carries no legacy fields), and every
// dangling id is normalized to absent.
func Load(cfg WorldConfig, tun tuning.Tuning, wmap MapProvider, items ItemRegistry, bus *events.Bus, s *snapshot.SnapshotV1) (*World, error) {
	w, err := New(cfg, tun, wmap, items, bus)
	if err != nil {
		return nil, err
	}
	if err := w.ImportSnapshot(s); err != nil {
		return nil, err
	}
	return w, nil
}

// ImportSnapshot loads state into an empty world.
func (w *World) ImportSnapshot(s *snapshot.SnapshotV1) error {
	if s == nil {
		return fmt.Errorf("import: nil snapshot")
	}
	if len(w.runners) != 0 {
		return fmt.Errorf("import: world is not empty")
	}
	w.tick = s.Header.Tick
	w.elapsed = s.Elapsed
	w.nextRunnerNum = s.NextRunnerNum
	for k, v := range s.Bank {
		w.bank[k] = v
	}
	for i := range s.Sequences {
		seq := importSequence(&s.Sequences[i])
		w.seqs[seq.ID] = seq
	}
	for i := range s.MacroRulesets {
		rs := importRuleset(&s.MacroRulesets[i], rules.CategoryMacro)
		w.macroSets[rs.ID] = rs
	}
	for i := range s.MicroRulesets {
		rs := importRuleset(&s.MicroRulesets[i], rules.CategoryMicro)
		w.microSets[rs.ID] = rs
	}
	for i := range s.Runners {
		r, err := w.importRunner(&s.Runners[i])
		if err != nil {
			return err
		}
		w.runners = append(w.runners, r)
		w.runnersByID[r.ID] = r
	}
	w.normalizeReferences()
	return nil
}

func (w *World) importRunner(v *snapshot.RunnerV1) (*Runner, error) {
	if v.ID == "" {
		return nil, fmt.Errorf("import: runner with empty id")
	}
	if w.wmap.GetNode(v.NodeID) == nil {
		return nil, fmt.Errorf("import: runner %s at unknown node %q", v.ID, v.NodeID)
	}
	r := newRunner(v.ID, v.Name, v.NodeID, w.tun)
	for name, sk := range v.Skills {
		if r.Skills[name] == nil {
			continue // unknown skill in save data; roster is closed
		}
		r.Skills[name] = &Skill{Level: sk.Level, XP: sk.XP, Passion: sk.Passion}
		if r.Skills[name].Level < 1 {
			r.Skills[name].Level = 1
		}
	}
	for i, st := range v.Inventory {
		if i >= len(r.Inventory.Slots) {
			break
		}
		r.Inventory.Slots[i] = ItemStack{Item: st.Item, Count: st.Count}
	}
	r.SequenceID = v.SequenceID
	r.Cursor = v.Cursor
	r.PendingSet = v.PendingSet
	r.PendingSequenceID = v.PendingSequenceID
	r.MacroRulesetID = v.MacroRulesetID
	r.MacroSuspendedUntilLoop = v.MacroSuspendedUntilLoop
	r.LastCompletedTargetNode = v.LastCompletedTargetNode

	w.migrateLegacy(r, v)

	// Restore the activity payload; the invariant that exactly the matching
	// payload is set for a non-idle state is enforced, not trusted.
	switch tasks.ActivityState(v.Activity) {
	case tasks.ActivityTraveling:
		if v.Travel != nil {
			r.Activity = tasks.ActivityTraveling
			r.Travel = &tasks.TravelState{
				FromNode: v.Travel.FromNode, ToNode: v.Travel.ToNode,
				Total: v.Travel.Total, Covered: v.Travel.Covered,
				VirtualStart: v.Travel.VirtualStart,
			}
		}
	case tasks.ActivityGathering:
		if v.Gathering != nil {
			r.Activity = tasks.ActivityGathering
			r.Gathering = &tasks.GatheringState{
				NodeID: v.Gathering.NodeID, GatherIndex: v.Gathering.GatherIndex,
				Accum: v.Gathering.Accum,
			}
		}
	case tasks.ActivityDepositing:
		if v.Depositing != nil {
			r.Activity = tasks.ActivityDepositing
			r.Depositing = &tasks.DepositingState{TicksLeft: v.Depositing.TicksLeft}
		}
	}
	return r, nil
}

// migrateLegacy lifts pre-library inline definitions into library entries.
// Runs once per load; migrated state never writes legacy fields back.
func (w *World) migrateLegacy(r *Runner, v *snapshot.RunnerV1) {
	if v.LegacySequence != nil {
		lv := *v.LegacySequence
		if lv.ID == "" {
			lv.ID = "legacy-seq-" + r.ID
		}
		if w.seqs[lv.ID] == nil {
			w.seqs[lv.ID] = importSequence(&lv)
		}
		if r.SequenceID == "" {
			r.SequenceID = lv.ID
		}
	}
	if v.LegacyMacroRules != nil {
		lv := *v.LegacyMacroRules
		if lv.ID == "" {
			lv.ID = "legacy-macro-" + r.ID
		}
		if w.macroSets[lv.ID] == nil {
			w.macroSets[lv.ID] = importRuleset(&lv, rules.CategoryMacro)
		}
		if r.MacroRulesetID == "" {
			r.MacroRulesetID = lv.ID
		}
	}
}

// normalizeReferences nulls every id that does not resolve in its library
// and clamps cursors, upholding the no-dangling-ids invariant on load.
func (w *World) normalizeReferences() {
	for _, r := range w.runners {
		if r.SequenceID != "" && w.seqs[r.SequenceID] == nil {
			r.SequenceID = ""
			r.Cursor = 0
			r.cancelActivity()
		}
		if r.PendingSet && r.PendingSequenceID != "" && w.seqs[r.PendingSequenceID] == nil {
			r.PendingSet = false
			r.PendingSequenceID = ""
		}
		if r.MacroRulesetID != "" && w.macroSets[r.MacroRulesetID] == nil {
			r.MacroRulesetID = ""
		}
		if seq := w.seqs[r.SequenceID]; seq != nil {
			if r.Cursor < 0 {
				r.Cursor = 0
			}
			if r.Cursor > len(seq.Steps) {
				r.Cursor = len(seq.Steps)
			}
		}
	}
	for _, seq := range w.seqs {
		for i := range seq.Steps {
			if id := seq.Steps[i].MicroRulesetID; id != "" && w.microSets[id] == nil {
				seq.Steps[i].MicroRulesetID = ""
			}
		}
	}
}

func importSequence(v *snapshot.SequenceV1) *tasks.Sequence {
	seq := &tasks.Sequence{
		ID: v.ID, Name: v.Name, TargetNode: v.TargetNode, Loop: v.Loop,
		Steps: make([]tasks.Step, 0, len(v.Steps)),
	}
	for _, st := range v.Steps {
		seq.Steps = append(seq.Steps, tasks.Step{
			Kind: tasks.StepKind(st.Kind), TargetNode: st.TargetNode, MicroRulesetID: st.MicroRulesetID,
		})
	}
	return seq
}

func importRuleset(v *snapshot.RulesetV1, cat rules.Category) *rules.Ruleset {
	rs := &rules.Ruleset{
		ID: v.ID, Name: v.Name, Category: cat,
		Rules: make([]rules.Rule, 0, len(v.Rules)),
	}
	for _, rl := range v.Rules {
		nr := rules.Rule{
			Label: rl.Label, Enabled: rl.Enabled,
			Action: rules.Action{
				Kind: rules.ActionKind(rl.Action.Kind), Param: rl.Action.Param, IntParam: rl.Action.IntParam,
			},
			DeferUntilBoundary: rl.DeferUntilBoundary,
		}
		for _, c := range rl.Conditions {
			nr.Conditions = append(nr.Conditions, rules.Condition{
				Kind: rules.ConditionKind(c.Kind), Op: rules.Op(c.Op),
				Skill: c.Skill, Item: c.Item, Str: c.Str, Value: c.Value,
			})
		}
		rs.Rules = append(rs.Rules, nr)
	}
	return rs
}
