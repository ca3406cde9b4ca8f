package tasks

// ActivityState is the runner's coarse activity. Crafting, Fighting and Dead
// are reserved for future systems; the core never enters them.
type ActivityState string

const (
	ActivityIdle       ActivityState = "IDLE"
	ActivityTraveling  ActivityState = "TRAVELING"
	ActivityGathering  ActivityState = "GATHERING"
	ActivityDepositing ActivityState = "DEPOSITING"
	ActivityCrafting   ActivityState = "CRAFTING"
	ActivityFighting   ActivityState = "FIGHTING"
	ActivityDead       ActivityState = "DEAD"
)

// TravelState is the payload while ActivityTraveling. When travel is
// redirected mid-flight, VirtualStart holds the interpolated coordinates the
// new leg measures from, so position stays continuous.
type TravelState struct {
	FromNode     string
	ToNode       string
	Total        float64
	Covered      float64
	VirtualStart *[2]float64
}

// Progress is covered/total clamped to [0,1]; zero-length travel counts as
// done.
func (t *TravelState) Progress() float64 {
	if t.Total <= 0 {
		return 1
	}
	p := t.Covered / t.Total
	if p < 0 {
		return 0
	}
	if p > 1 {
		return 1
	}
	return p
}

// GatheringState is the payload while ActivityGathering. Ticks-required is
// recomputed from the live skill level every tick and deliberately not
// stored here.
type GatheringState struct {
	NodeID      string
	GatherIndex int
	Accum       int

	// LastRule collapses repeated micro rule-fired diagnostics; nil until a
	// rule wins for this gathering session.
	LastRule *int
}

// DepositingState is the payload while ActivityDepositing.
type DepositingState struct {
	TicksLeft int
}
