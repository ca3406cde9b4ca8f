package protocol

// Event is any simulation event published on the core's bus. The concrete
// structs below are the stable wire shapes; fields are additive-only.
type Event interface {
	EventType() string
}

const (
	EvRunnerCreated     = "RUNNER_CREATED"
	EvTravelStarted     = "TRAVEL_STARTED"
	EvTravelRedirected  = "TRAVEL_REDIRECTED"
	EvArrived           = "ARRIVED"
	EvGatheringStarted  = "GATHERING_STARTED"
	EvGatheringFailed   = "GATHERING_FAILED"
	EvItemGathered      = "ITEM_GATHERED"
	EvInventoryFull     = "INVENTORY_FULL"
	EvDepositStarted    = "DEPOSIT_STARTED"
	EvDeposited         = "DEPOSITED"
	EvSequenceAssigned  = "SEQUENCE_ASSIGNED"
	EvSequenceAdvanced  = "SEQUENCE_ADVANCED"
	EvSequenceCompleted = "SEQUENCE_COMPLETED"
	EvRuleFired         = "RULE_FIRED"
	EvRuleNoMatch       = "RULE_NO_MATCH"
	EvSkillLevelUp      = "SKILL_LEVEL_UP"
	EvTickCompleted     = "TICK_COMPLETED"
)

type RunnerCreated struct {
	Type     string `json:"type"`
	Tick     uint64 `json:"tick"`
	RunnerID string `json:"runner_id"`
	Name     string `json:"name"`
	NodeID   string `json:"node_id"`
}

func (e RunnerCreated) EventType() string { return EvRunnerCreated }

type TravelStarted struct {
	Type     string  `json:"type"`
	Tick     uint64  `json:"tick"`
	RunnerID string  `json:"runner_id"`
	FromNode string  `json:"from_node"`
	ToNode   string  `json:"to_node"`
	Distance float64 `json:"distance"`
}

func (e TravelStarted) EventType() string { return EvTravelStarted }

type TravelRedirected struct {
	Type        string  `json:"type"`
	Tick        uint64  `json:"tick"`
	RunnerID    string  `json:"runner_id"`
	ToNode      string  `json:"to_node"`
	NewDistance float64 `json:"new_distance"`
}

func (e TravelRedirected) EventType() string { return EvTravelRedirected }

type Arrived struct {
	Type     string `json:"type"`
	Tick     uint64 `json:"tick"`
	RunnerID string `json:"runner_id"`
	NodeID   string `json:"node_id"`
}

func (e Arrived) EventType() string { return EvArrived }

type GatheringStarted struct {
	Type     string `json:"type"`
	Tick     uint64 `json:"tick"`
	RunnerID string `json:"runner_id"`
	NodeID   string `json:"node_id"`
	ItemID   string `json:"item_id"`
	Skill    string `json:"skill"`
}

func (e GatheringStarted) EventType() string { return EvGatheringStarted }

// GatheringFailed reasons.
const (
	FailNoGatherables = "NO_GATHERABLES"
	FailUnderLeveled  = "UNDER_LEVELED"
	FailUnknownItem   = "UNKNOWN_ITEM"
	FailBadIndex      = "BAD_INDEX"
)

type GatheringFailed struct {
	Type     string `json:"type"`
	Tick     uint64 `json:"tick"`
	RunnerID string `json:"runner_id"`
	NodeID   string `json:"node_id"`
	Reason   string `json:"reason"`
	ItemID   string `json:"item_id,omitempty"`
}

func (e GatheringFailed) EventType() string { return EvGatheringFailed }

type ItemGathered struct {
	Type     string `json:"type"`
	Tick     uint64 `json:"tick"`
	RunnerID string `json:"runner_id"`
	NodeID   string `json:"node_id"`
	ItemID   string `json:"item_id"`
	Count    int    `json:"count"`
}

func (e ItemGathered) EventType() string { return EvItemGathered }

type InventoryFull struct {
	Type     string `json:"type"`
	Tick     uint64 `json:"tick"`
	RunnerID string `json:"runner_id"`
}

func (e InventoryFull) EventType() string { return EvInventoryFull }

type DepositStarted struct {
	Type     string `json:"type"`
	Tick     uint64 `json:"tick"`
	RunnerID string `json:"runner_id"`
	NodeID   string `json:"node_id"`
	Ticks    int    `json:"ticks"`
}

func (e DepositStarted) EventType() string { return EvDepositStarted }

type Deposited struct {
	Type     string `json:"type"`
	Tick     uint64 `json:"tick"`
	RunnerID string `json:"runner_id"`
	NodeID   string `json:"node_id"`
	Count    int    `json:"count"`
}

func (e Deposited) EventType() string { return EvDeposited }

type SequenceAssigned struct {
	Type       string `json:"type"`
	Tick       uint64 `json:"tick"`
	RunnerID   string `json:"runner_id"`
	SequenceID string `json:"sequence_id"` // empty means cleared/idle
	Reason     string `json:"reason"`
	Deferred   bool   `json:"deferred,omitempty"`
}

func (e SequenceAssigned) EventType() string { return EvSequenceAssigned }

type SequenceAdvanced struct {
	Type       string `json:"type"`
	Tick       uint64 `json:"tick"`
	RunnerID   string `json:"runner_id"`
	SequenceID string `json:"sequence_id"`
	StepIndex  int    `json:"step_index"`
	Wrapped    bool   `json:"wrapped,omitempty"`
}

func (e SequenceAdvanced) EventType() string { return EvSequenceAdvanced }

type SequenceCompleted struct {
	Type       string `json:"type"`
	Tick       uint64 `json:"tick"`
	RunnerID   string `json:"runner_id"`
	SequenceID string `json:"sequence_id"`
}

func (e SequenceCompleted) EventType() string { return EvSequenceCompleted }

// Rule layers.
const (
	LayerMacro = "MACRO"
	LayerMicro = "MICRO"
)

type RuleFired struct {
	Type      string `json:"type"`
	Tick      uint64 `json:"tick"`
	RunnerID  string `json:"runner_id"`
	Layer     string `json:"layer"`
	RulesetID string `json:"ruleset_id"`
	RuleIndex int    `json:"rule_index"`
	Label     string `json:"label,omitempty"`
	Trigger   string `json:"trigger"`
	Deferred  bool   `json:"deferred,omitempty"`
}

func (e RuleFired) EventType() string { return EvRuleFired }

type RuleNoMatch struct {
	Type      string `json:"type"`
	Tick      uint64 `json:"tick"`
	RunnerID  string `json:"runner_id"`
	Layer     string `json:"layer"`
	RulesetID string `json:"ruleset_id,omitempty"`
	Trigger   string `json:"trigger"`
}

func (e RuleNoMatch) EventType() string { return EvRuleNoMatch }

type SkillLevelUp struct {
	Type     string `json:"type"`
	Tick     uint64 `json:"tick"`
	RunnerID string `json:"runner_id"`
	Skill    string `json:"skill"`
	Level    int    `json:"level"`
}

func (e SkillLevelUp) EventType() string { return EvSkillLevelUp }

type TickCompleted struct {
	Type   string `json:"type"`
	Tick   uint64 `json:"tick"`
	Digest string `json:"digest"`
}

func (e TickCompleted) EventType() string { return EvTickCompleted }
