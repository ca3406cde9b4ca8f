package tuning

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Tuning is the immutable gameplay configuration passed at construction.
// Nothing in the core reads it from an ambient location.
type Tuning struct {
	ProtocolVersion string `yaml:"protocol_version"`

	TickRateHz         int `yaml:"tick_rate_hz"`
	SnapshotEveryTicks int `yaml:"snapshot_every_ticks"`

	InventorySlots int `yaml:"inventory_slots"`
	StackSize      int `yaml:"stack_size"`

	XP      XPTuning      `yaml:"xp"`
	Travel  TravelTuning  `yaml:"travel"`
	Gather  GatherTuning  `yaml:"gather"`
	Deposit DepositTuning `yaml:"deposit"`

	// RuleDepthMax bounds rule->assign->complete->rule cascades within a tick.
	RuleDepthMax int `yaml:"rule_depth_max"`
}

type XPTuning struct {
	// XP to go from level L to L+1 is int(Base * L^Growth), min 1.
	Base   float64 `yaml:"base"`
	Growth float64 `yaml:"growth"`

	PassionXPMult    float64 `yaml:"passion_xp_mult"`
	PassionLevelMult float64 `yaml:"passion_level_mult"`
}

type TravelTuning struct {
	BaseSpeed       float64 `yaml:"base_speed"`
	PerLevelBonus   float64 `yaml:"per_level_bonus"`
	AthleticsXPTick float64 `yaml:"athletics_xp_per_tick"`
}

// Gather speed curves.
const (
	CurveFlat       = "flat"
	CurvePower      = "power"
	CurveHyperbolic = "hyperbolic"
)

type GatherTuning struct {
	// Curve maps effective level to a speed factor; ticks required for one
	// unit is ceil(baseTicks / factor), recomputed every tick.
	Curve    string  `yaml:"curve"`
	Exponent float64 `yaml:"exponent"`  // power: level^exponent
	PerLevel float64 `yaml:"per_level"` // hyperbolic: 1 + (level-1)*per_level
}

type DepositTuning struct {
	Ticks int `yaml:"ticks"`
}

func Load(path string) (Tuning, error) {
	var t Tuning
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	t.applyDefaults()
	return t, nil
}

// Default returns the tuning used when no config file is supplied (tests,
// replay). Values match configs/tuning.yaml.
func Default() Tuning {
	var t Tuning
	t.applyDefaults()
	return t
}

func (t *Tuning) applyDefaults() {
	if t.TickRateHz == 0 {
		t.TickRateHz = 10
	}
	if t.SnapshotEveryTicks == 0 {
		t.SnapshotEveryTicks = 6000
	}
	if t.InventorySlots == 0 {
		t.InventorySlots = 12
	}
	if t.StackSize == 0 {
		t.StackSize = 10
	}
	if t.XP.Base == 0 {
		t.XP.Base = 100
	}
	if t.XP.Growth == 0 {
		t.XP.Growth = 1.5
	}
	if t.XP.PassionXPMult == 0 {
		t.XP.PassionXPMult = 1.5
	}
	if t.XP.PassionLevelMult == 0 {
		t.XP.PassionLevelMult = 1.25
	}
	if t.Travel.BaseSpeed == 0 {
		t.Travel.BaseSpeed = 1.0
	}
	if t.Travel.PerLevelBonus == 0 {
		t.Travel.PerLevelBonus = 0.05
	}
	if t.Travel.AthleticsXPTick == 0 {
		t.Travel.AthleticsXPTick = 1
	}
	if t.Gather.Curve == "" {
		t.Gather.Curve = CurveHyperbolic
	}
	if t.Gather.Exponent == 0 {
		t.Gather.Exponent = 0.6
	}
	if t.Gather.PerLevel == 0 {
		t.Gather.PerLevel = 0.04
	}
	if t.Deposit.Ticks == 0 {
		t.Deposit.Ticks = 5
	}
	if t.RuleDepthMax == 0 {
		t.RuleDepthMax = 3
	}
}
