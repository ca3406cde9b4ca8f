package world

import (
	"math"

	"runnervale.ai/internal/protocol"
)

// SkillRoster is the fixed set of 15 runner skills.
var SkillRoster = []string{
	"athletics",
	"mining",
	"woodcutting",
	"fishing",
	"foraging",
	"farming",
	"hunting",
	"smithing",
	"cooking",
	"alchemy",
	"masonry",
	"carpentry",
	"weaving",
	"trading",
	"lore",
}

const SkillAthletics = "athletics"

type Skill struct {
	Level   int
	XP      float64
	Passion bool
}

// xpForNext is the XP needed to go from level to level+1.
func (w *World) xpForNext(level int) float64 {
	req := math.Trunc(w.tun.XP.Base * math.Pow(float64(level), w.tun.XP.Growth))
	if req < 1 {
		req = 1
	}
	return req
}

// effectiveLevel is the level used in gameplay formulas; passion scales it.
func (w *World) effectiveLevel(s *Skill) int {
	if s == nil {
		return 1
	}
	lvl := s.Level
	if s.Passion {
		lvl = int(float64(s.Level) * w.tun.XP.PassionLevelMult)
	}
	if lvl < 1 {
		lvl = 1
	}
	return lvl
}

// grantXP adds experience (passion-multiplied) and applies as many level-ups
// as the total covers, publishing one event per level gained.
func (w *World) grantXP(r *Runner, skill string, amount float64, now uint64) {
	s := r.Skills[skill]
	if s == nil || amount <= 0 {
		return
	}
	if s.Passion {
		amount *= w.tun.XP.PassionXPMult
	}
	s.XP += amount
	for s.XP >= w.xpForNext(s.Level) {
		s.XP -= w.xpForNext(s.Level)
		s.Level++
		w.publish(protocol.SkillLevelUp{
			Type: protocol.EvSkillLevelUp, Tick: now,
			RunnerID: r.ID, Skill: skill, Level: s.Level,
		})
	}
}
