package domain

import (
	"strings"

	"github.com/emberline/saga/internal/core/dice"
)

// EffectKind identifies the resource or list an effect mutates.
type EffectKind string

const (
	EffectHP       EffectKind = "hp"
	EffectFocus    EffectKind = "focus"
	EffectCoins    EffectKind = "coins"
	EffectXP       EffectKind = "xp"
	EffectFlag     EffectKind = "flag"
	EffectItem     EffectKind = "item"
	EffectFragment EffectKind = "fragment"
	EffectGem      EffectKind = "gem"
	EffectBuff     EffectKind = "buff"
	EffectDebuff   EffectKind = "debuff"
)

// EffectOp is the operator applied to an effect value.
type EffectOp string

const (
	OpAdd      EffectOp = "+"
	OpSubtract EffectOp = "-"
	OpSet      EffectOp = "="
)

// Effect is one content-authored mutation applied when an outcome resolves.
// Numeric kinds use Op and Amount; flag effects assign Value under Key;
// item/buff/debuff effects append Key to the matching per-user list.
type Effect struct {
	Kind   EffectKind `json:"kind"`
	Op     EffectOp   `json:"op,omitempty"`
	Amount int        `json:"amount,omitempty"`
	Key    string     `json:"key,omitempty"`
	Value  string     `json:"value,omitempty"`
}

// Outcome carries the ordered effect list for one roll kind.
type Outcome struct {
	Kind    dice.Kind `json:"kind"`
	Effects []Effect  `json:"effects,omitempty"`
	Flavor  string    `json:"flavor,omitempty"`
}

// RollSpec marks an action as roll-bearing. Tags scope which equipment
// bonuses apply to the check.
type RollSpec struct {
	Tags []string `json:"tags,omitempty"`
}

// ActionDef is one content-authored action offered by a round.
type ActionDef struct {
	ID       string                `json:"id"`
	Label    string                `json:"label,omitempty"`
	Tags     []string              `json:"tags,omitempty"`
	Roll     *RollSpec             `json:"roll,omitempty"`
	Outcomes map[dice.Kind]Outcome `json:"outcomes,omitempty"`
}

// HasTag reports whether the action carries the given tag.
func (a ActionDef) HasTag(tag string) bool {
	for _, t := range a.Tags {
		if strings.EqualFold(t, tag) {
			return true
		}
	}
	return false
}

// PickOutcome returns the outcome for kind, falling back to success, then
// fail, then an empty-effect outcome. The fallback order is load-bearing:
// content frequently authors only success/fail branches and relies on crits
// landing on them.
func (a ActionDef) PickOutcome(kind dice.Kind) Outcome {
	if outcome, ok := a.Outcomes[kind]; ok {
		return outcome
	}
	if outcome, ok := a.Outcomes[dice.KindSuccess]; ok {
		return outcome
	}
	if outcome, ok := a.Outcomes[dice.KindFail]; ok {
		return outcome
	}
	return Outcome{Kind: kind}
}

// Round offers an ordered list of actions.
type Round struct {
	ID      string      `json:"id"`
	Actions []ActionDef `json:"actions"`
}

// Action returns the action with the given id.
func (r Round) Action(id string) (ActionDef, bool) {
	for _, action := range r.Actions {
		if action.ID == id {
			return action, true
		}
	}
	return ActionDef{}, false
}

// DefaultAction returns the action used when a turn is force-resolved: the
// first "neutral"-tagged action, else the round's first action. This is a
// documented content contract, not a validated one.
func (r Round) DefaultAction() (ActionDef, bool) {
	for _, action := range r.Actions {
		if action.HasTag("neutral") {
			return action, true
		}
	}
	if len(r.Actions) > 0 {
		return r.Actions[0], true
	}
	return ActionDef{}, false
}

// ThresholdReward grants resources when the scene's closing sleight score
// meets the threshold. Only the highest threshold met applies.
type ThresholdReward struct {
	Threshold int `json:"threshold"`
	Coins     int `json:"coins,omitempty"`
	XP        int `json:"xp,omitempty"`
	Fragments int `json:"fragments,omitempty"`
}

// Arrival maps a completed scene's flags to the next scene id. The first
// arrival whose flag is truthy wins; an arrival with Flag "else" is the
// unconditional fallback.
type Arrival struct {
	Flag   string `json:"flag"`
	Target string `json:"target"`
}

// ArrivalElse marks the unconditional fallback arrival.
const ArrivalElse = "else"

// Scene is one content-authored scene with ordered rounds.
type Scene struct {
	ID               string            `json:"id"`
	Rounds           []Round           `json:"rounds"`
	ThresholdRewards []ThresholdReward `json:"threshold_rewards,omitempty"`
	Arrivals         []Arrival         `json:"arrivals,omitempty"`
}

// Round returns the round with the given id and its position.
func (s Scene) Round(id string) (Round, int, bool) {
	for i, round := range s.Rounds {
		if round.ID == id {
			return round, i, true
		}
	}
	return Round{}, 0, false
}

// Manifest describes one content pack.
type Manifest struct {
	ContentID  string `json:"content_id"`
	Version    string `json:"version"`
	EntryScene string `json:"entry_scene,omitempty"`
}
