// Package snapshot defines the versioned persisted shape of the game state
// and compressed file round-trip helpers. Any structured serialization that
// preserves id references works; this one is canonical JSON inside zstd.
package snapshot

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"
)

type Header struct {
	Version int    `json:"version"`
	WorldID string `json:"world_id"`
	Tick    uint64 `json:"tick"`
}

type SnapshotV1 struct {
	Header Header `json:"header"`

	Seed     int64   `json:"seed"`
	TickRate int     `json:"tick_rate_hz"`
	Elapsed  float64 `json:"elapsed_seconds"`

	Bank map[string]int `json:"bank"`

	Runners       []RunnerV1   `json:"runners"`
	Sequences     []SequenceV1 `json:"sequences"`
	MacroRulesets []RulesetV1  `json:"macro_rulesets"`
	MicroRulesets []RulesetV1  `json:"micro_rulesets"`

	NextRunnerNum uint64 `json:"next_runner_num"`
}

type SkillV1 struct {
	Level   int     `json:"level"`
	XP      float64 `json:"xp"`
	Passion bool    `json:"passion,omitempty"`
}

type StackV1 struct {
	Item  string `json:"item,omitempty"`
	Count int    `json:"count,omitempty"`
}

type TravelV1 struct {
	FromNode     string      `json:"from_node"`
	ToNode       string      `json:"to_node"`
	Total        float64     `json:"total"`
	Covered      float64     `json:"covered"`
	VirtualStart *[2]float64 `json:"virtual_start,omitempty"`
}

type GatheringV1 struct {
	NodeID      string `json:"node_id"`
	GatherIndex int    `json:"gather_index"`
	Accum       int    `json:"accum"`
}

type DepositingV1 struct {
	TicksLeft int `json:"ticks_left"`
}

type RunnerV1 struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	NodeID string `json:"node_id"`

	Activity   string        `json:"activity"`
	Travel     *TravelV1     `json:"travel,omitempty"`
	Gathering  *GatheringV1  `json:"gathering,omitempty"`
	Depositing *DepositingV1 `json:"depositing,omitempty"`

	Skills    map[string]SkillV1 `json:"skills"`
	Inventory []StackV1          `json:"inventory"`

	SequenceID        string `json:"sequence_id,omitempty"`
	Cursor            int    `json:"cursor"`
	PendingSet        bool   `json:"pending_set,omitempty"`
	PendingSequenceID string `json:"pending_sequence_id,omitempty"`

	MacroRulesetID          string `json:"macro_ruleset_id,omitempty"`
	MacroSuspendedUntilLoop bool   `json:"macro_suspended_until_loop,omitempty"`
	LastCompletedTargetNode string `json:"last_completed_target_node,omitempty"`

	// Legacy embedded definitions from older saves; migrated into library
	// entries on load and never written back.
	LegacySequence   *SequenceV1 `json:"legacy_sequence,omitempty"`
	LegacyMacroRules *RulesetV1  `json:"legacy_macro_rules,omitempty"`
}

type StepV1 struct {
	Kind           string `json:"kind"`
	TargetNode     string `json:"target_node,omitempty"`
	MicroRulesetID string `json:"micro_ruleset_id,omitempty"`
}

type SequenceV1 struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	TargetNode string   `json:"target_node,omitempty"`
	Loop       bool     `json:"loop,omitempty"`
	Steps      []StepV1 `json:"steps"`
}

type ConditionV1 struct {
	Kind  string `json:"kind"`
	Op    string `json:"op"`
	Skill string `json:"skill,omitempty"`
	Item  string `json:"item,omitempty"`
	Str   string `json:"str,omitempty"`
	Value int    `json:"value,omitempty"`
}

type ActionV1 struct {
	Kind     string `json:"kind"`
	Param    string `json:"param,omitempty"`
	IntParam int    `json:"int_param,omitempty"`
}

type RuleV1 struct {
	Label              string        `json:"label,omitempty"`
	Enabled            bool          `json:"enabled"`
	Conditions         []ConditionV1 `json:"conditions"`
	Action             ActionV1      `json:"action"`
	DeferUntilBoundary bool          `json:"defer_until_boundary,omitempty"`
}

type RulesetV1 struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Category string   `json:"category"`
	Rules    []RuleV1 `json:"rules"`
}

// WriteFile writes the snapshot as zstd-compressed JSON, creating parent
// directories as needed.
func WriteFile(path string, s *SnapshotV1) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	bw := bufio.NewWriter(f)
	enc, err := zstd.NewWriter(bw, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return err
	}
	if err := json.NewEncoder(enc).Encode(s); err != nil {
		_ = enc.Close()
		return fmt.Errorf("encode snapshot: %w", err)
	}
	if err := enc.Close(); err != nil {
		return err
	}
	if err := bw.Flush(); err != nil {
		return err
	}
	return f.Sync()
}

// ReadFile loads a snapshot written by WriteFile.
func ReadFile(path string) (*SnapshotV1, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(bufio.NewReader(f))
	if err != nil {
		return nil, err
	}
	defer dec.Close()

	var s SnapshotV1
	if err := json.NewDecoder(dec).Decode(&s); err != nil {
		return nil, fmt.Errorf("decode snapshot %s: %w", filepath.Base(path), err)
	}
	if s.Header.Version != 1 {
		return nil, fmt.Errorf("unsupported snapshot version %d", s.Header.Version)
	}
	return &s, nil
}
