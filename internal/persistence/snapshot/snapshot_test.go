package snapshot

import (
	"path/filepath"
	"reflect"
	"testing"
)

func sample() *SnapshotV1 {
	return &SnapshotV1{
		Header:   Header{Version: 1, WorldID: "w1", Tick: 4242},
		Seed:     7,
		TickRate: 10,
		Elapsed:  424.2,
		Bank:     map[string]int{"iron_ore": 12},
		Runners: []RunnerV1{{
			ID: "R1", Name: "Ada", NodeID: "mine", Activity: "GATHERING",
			Gathering: &GatheringV1{NodeID: "mine", GatherIndex: 0, Accum: 1},
			Skills:    map[string]SkillV1{"mining": {Level: 3, XP: 41, Passion: true}},
			Inventory: []StackV1{{Item: "iron_ore", Count: 2}, {}},
			SequenceID: "workat-mine", Cursor: 1,
			MacroRulesetID: "default-macro",
		}},
		Sequences: []SequenceV1{{
			ID: "workat-mine", Name: "Work at Mine", TargetNode: "mine", Loop: true,
			Steps: []StepV1{
				{Kind: "TRAVEL_TO", TargetNode: "mine"},
				{Kind: "WORK"},
				{Kind: "TRAVEL_TO", TargetNode: "hub"},
				{Kind: "DEPOSIT"},
			},
		}},
		MacroRulesets: []RulesetV1{{
			ID: "default-macro", Name: "Default", Category: "MACRO",
			Rules: []RuleV1{{
				Enabled: true,
				Conditions: []ConditionV1{
					{Kind: "INVENTORY_FREE_SLOTS", Op: "==", Value: 0},
				},
				Action:             ActionV1{Kind: "ASSIGN_SEQUENCE", Param: "return-hub"},
				DeferUntilBoundary: true,
			}},
		}},
		NextRunnerNum: 1,
	}
}

func TestFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "saves", "snap-4242.json.zst")
	want := sample()
	if err := WriteFile(path, want); err != nil {
		t.Fatalf("write: %v", err)
	}
	got, err := ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("round trip mismatch:\ngot  %+v\nwant %+v", got, want)
	}
}

func TestReadRejectsWrongVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snap.json.zst")
	s := sample()
	s.Header.Version = 99
	if err := WriteFile(path, s); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := ReadFile(path); err == nil {
		t.Fatalf("version 99 accepted")
	}
}

func TestReadMissingFile(t *testing.T) {
	if _, err := ReadFile(filepath.Join(t.TempDir(), "absent.json.zst")); err == nil {
		t.Fatalf("missing file accepted")
	}
}
