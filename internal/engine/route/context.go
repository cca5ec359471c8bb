package route

import (
	"encoding/json"
	"math"
	"strings"

	"github.com/emberline/saga/internal/engine/domain"
)

// History aggregates the tagged prior choices found in a run's audit log.
// It feeds the choice-history, karma, and counter condition kinds.
type History struct {
	ChaosCount          int
	MoralScore          int
	RoleInteractions    int
	GremlinInteractions int
	Counters            map[string]int

	// recentMoral records moral choice signs newest-last; only the tail is
	// consulted, for the redemption-arc check.
	recentMoral []bool
}

// Aggregate names recognized by choice-history conditions.
const (
	AggregateChaosCount = "chaos_count"
	AggregateMoralScore = "moral_score"
)

func (h *History) aggregate(name string) (int, bool) {
	switch name {
	case AggregateChaosCount:
		return h.ChaosCount, true
	case AggregateMoralScore:
		return h.MoralScore, true
	}
	return 0, false
}

// RedemptionArc reports whether the run qualifies for a redemption route:
// deeply negative alignment with the three most recent moral choices all
// good.
func (h *History) RedemptionArc() bool {
	if h.MoralScore >= -3 {
		return false
	}
	if len(h.recentMoral) < 3 {
		return false
	}
	for _, good := range h.recentMoral[len(h.recentMoral)-3:] {
		if !good {
			return false
		}
	}
	return true
}

// BuildHistory scans action.resolved events for choice tags. Events of other
// types are skipped; malformed payloads are skipped rather than surfaced.
func BuildHistory(events []domain.Event) *History {
	history := &History{Counters: map[string]int{}}
	for _, event := range events {
		if event.Type != domain.TypeActionResolved {
			continue
		}
		var payload domain.ActionResolvedPayload
		if err := json.Unmarshal(event.PayloadJSON, &payload); err != nil {
			continue
		}
		for _, tag := range payload.Tags {
			switch tag {
			case domain.TagChaos:
				history.ChaosCount++
			case domain.TagMoralGood:
				history.MoralScore++
				history.recentMoral = append(history.recentMoral, true)
			case domain.TagMoralBad:
				history.MoralScore--
				history.recentMoral = append(history.recentMoral, false)
			case domain.TagRoleInteraction:
				history.RoleInteractions++
			case domain.TagGremlin:
				history.GremlinInteractions++
			}
			history.Counters[tag]++
		}
	}
	return history
}

// Stats carries the actor's live resource values for stat conditions.
type Stats struct {
	Level    int
	HP       int
	HPMax    int
	Focus    int
	FocusMax int
	Coins    int
	Gems     int
	XP       int
}

// StatsFromProfile copies the condition-visible stats out of a profile.
func StatsFromProfile(profile *domain.Profile) Stats {
	return Stats{
		Level:    profile.EffectiveLevel(),
		HP:       profile.HP,
		HPMax:    profile.HPMax,
		Focus:    profile.Focus,
		FocusMax: profile.FocusMax,
		Coins:    profile.Coins,
		Gems:     profile.Gems,
		XP:       profile.XP,
	}
}

// PartyMember is a party snapshot entry feeding the checkpoint aggregates.
type PartyMember struct {
	Level  int
	HP     int
	Downed bool
}

// Context is the evaluation input for both routing engines. The static
// engine fills the base fields; the checkpoint engine additionally fills
// the enhanced block via Enhance.
type Context struct {
	RunID       string
	SceneID     string
	UserID      string
	Flags       map[string]string
	Sleight     int
	Transitions int
	PartySize   int
	RoundIndex  int
	Class       string
	Role        string
	Items       map[string]int
	History     *History

	Stats Stats

	// Enhanced checkpoint fields.
	PartyDeaths   int
	PartyStrength float64
}

// NewContext builds a base routing context. A nil history is replaced with
// an empty one so evaluation never nil-checks.
func NewContext(run *domain.Run, userID string, stats Stats, items map[string]int, roundIndex int, history *History) *Context {
	if history == nil {
		history = &History{Counters: map[string]int{}}
	}
	if items == nil {
		items = map[string]int{}
	}
	return &Context{
		RunID:       run.ID,
		SceneID:     run.SceneID,
		UserID:      userID,
		Flags:       run.Flags,
		Sleight:     run.Sleight,
		Transitions: run.Transitions,
		PartySize:   len(run.PartyIDs),
		RoundIndex:  roundIndex,
		Items:       items,
		History:     history,
	}
}

// Enhance fills the checkpoint-only aggregates from a party snapshot.
// Party strength weights each standing member by level, discounting
// members below full combat health.
func (c *Context) Enhance(party []PartyMember) *Context {
	c.PartyDeaths = 0
	c.PartyStrength = 0
	for _, member := range party {
		if member.Downed {
			c.PartyDeaths++
			continue
		}
		level := member.Level
		if level < 1 {
			level = 1
		}
		c.PartyStrength += math.Min(float64(member.HP)/20, 1) * float64(level) * 10
	}
	return c
}

// Threshold field names. FieldPartyStrength is float-valued and compared
// through CompareFloat; the rest are integers.
const (
	FieldSleight       = "sleight"
	FieldTransitions   = "transitions"
	FieldPartySize     = "party_size"
	FieldRound         = "round"
	FieldPartyDeaths   = "party_deaths"
	FieldPartyStrength = "party_strength"
)

func (c *Context) thresholdField(name string) int {
	switch name {
	case FieldSleight:
		return c.Sleight
	case FieldTransitions:
		return c.Transitions
	case FieldPartySize:
		return c.PartySize
	case FieldRound:
		return c.RoundIndex
	case FieldPartyDeaths:
		return c.PartyDeaths
	}
	return 0
}

func (c *Context) itemCount(name string) int {
	if name == LegendaryCountField {
		count := 0
		for item, n := range c.Items {
			if strings.HasPrefix(strings.ToLower(item), "legendary") {
				count += n
			}
		}
		return count
	}
	return c.Items[name]
}

// Stat field names, including the derived percentage fields.
const (
	StatLevel           = "level"
	StatHP              = "hp"
	StatFocus           = "focus"
	StatCoins           = "coins"
	StatGems            = "gems"
	StatXP              = "xp"
	StatHPPercentage    = "hp_percentage"
	StatFocusPercentage = "focus_percentage"
)

func (c *Context) statField(name string) (int, bool) {
	switch name {
	case StatLevel:
		return c.Stats.Level, true
	case StatHP:
		return c.Stats.HP, true
	case StatFocus:
		return c.Stats.Focus, true
	case StatCoins:
		return c.Stats.Coins, true
	case StatGems:
		return c.Stats.Gems, true
	case StatXP:
		return c.Stats.XP, true
	case StatHPPercentage:
		return percentage(c.Stats.HP, c.Stats.HPMax), true
	case StatFocusPercentage:
		return percentage(c.Stats.Focus, c.Stats.FocusMax), true
	}
	return 0, false
}

func percentage(value, max int) int {
	if max <= 0 {
		return 0
	}
	return value * 100 / max
}

// Snapshot renders the context as a flat map for audit payloads.
func (c *Context) Snapshot() map[string]any {
	return map[string]any{
		"scene_id":       c.SceneID,
		"user_id":        c.UserID,
		"sleight":        c.Sleight,
		"transitions":    c.Transitions,
		"party_size":     c.PartySize,
		"round":          c.RoundIndex,
		"chaos_count":    c.History.ChaosCount,
		"moral_score":    c.History.MoralScore,
		"party_deaths":   c.PartyDeaths,
		"party_strength": c.PartyStrength,
		"redemption_arc": c.History.RedemptionArc(),
	}
}
