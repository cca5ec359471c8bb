package domain

import "time"

// EventType identifies the kind of an audit event.
type EventType string

// Run lifecycle events.
const (
	// TypeRunStarted records the creation of a run.
	TypeRunStarted EventType = "run.started"
	// TypeSceneCompleted records a scene-completing transition.
	TypeSceneCompleted EventType = "run.scene_completed"
)

// Action events.
const (
	// TypeActionResolved records a resolved action. Exactly one is appended
	// per resolved action; its payload tags feed the history-based branch
	// condition evaluators.
	TypeActionResolved EventType = "action.resolved"
	// TypeDifficultySnapshot records the computed difficulty inputs for an
	// action, independent of the downstream outcome.
	TypeDifficultySnapshot EventType = "action.difficulty_snapshot"
	// TypeAfkForced records a turn force-resolved by the AFK sweep.
	TypeAfkForced EventType = "action.afk_forced"
)

// Routing events.
const (
	// TypeBranchDecision records a branch routing decision with its full
	// context snapshot.
	TypeBranchDecision EventType = "route.branch_decision"
)

// Event is an append-only audit record. It is the sole input to
// history-based condition evaluators.
type Event struct {
	ID          string
	RunID       string
	UserID      string
	Type        EventType
	PayloadJSON []byte
	At          time.Time
}

// Choice tags recognized by history evaluators on action.resolved payloads.
const (
	TagChaos           = "chaos"
	TagMoralGood       = "moral_good"
	TagMoralBad        = "moral_bad"
	TagRoleInteraction = "role_interaction"
	TagGremlin         = "gremlin"
	TagNeutral         = "neutral"
)

// ActionResolvedPayload is the payload for TypeActionResolved events.
type ActionResolvedPayload struct {
	ActionID string   `json:"action_id"`
	Roll     int      `json:"roll"`
	Outcome  string   `json:"outcome"`
	Effects  []string `json:"effects,omitempty"`
	Flavor   string   `json:"flavor,omitempty"`
	Tags     []string `json:"tags,omitempty"`
	Autop    bool     `json:"autop,omitempty"`
	Reason   string   `json:"reason,omitempty"`
}

// DifficultySnapshotPayload is the payload for TypeDifficultySnapshot events.
type DifficultySnapshotPayload struct {
	Tier       string  `json:"tier"`
	TierOffset int     `json:"tier_offset"`
	AvgLevel   float64 `json:"avg_level"`
	AvgPower   float64 `json:"avg_power"`
	DebuffBias float64 `json:"debuff_bias"`
	GuildBias  float64 `json:"guild_bias"`
}

// BranchDecisionPayload is the payload for TypeBranchDecision events.
type BranchDecisionPayload struct {
	Engine   string         `json:"engine"`
	SceneID  string         `json:"scene_id"`
	Target   string         `json:"target"`
	Fallback bool           `json:"fallback,omitempty"`
	Context  map[string]any `json:"context,omitempty"`
}

// SceneCompletedPayload is the payload for TypeSceneCompleted events.
type SceneCompletedPayload struct {
	SceneID      string `json:"scene_id"`
	NextSceneID  string `json:"next_scene_id"`
	FinalSleight int    `json:"final_sleight"`
}

// AfkForcedPayload is the payload for TypeAfkForced events.
type AfkForcedPayload struct {
	UserID   string `json:"user_id"`
	ActionID string `json:"action_id"`
	Misses   int    `json:"misses"`
}
