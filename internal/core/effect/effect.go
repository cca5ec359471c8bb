// Package effect folds content-authored effect lists into a scratch state
// that is committed to the profile store in a separate step.
package effect

import (
	"fmt"

	"github.com/emberline/saga/internal/engine/domain"
)

// Vitals holds the live, clamped stats inside a scratch. Values are
// floor-clamped at 0 during application; the ceiling clamp against the
// profile's maxima happens at commit.
type Vitals struct {
	HP    int
	Focus int
}

// Deltas accumulates signed resource totals that are applied to the profile
// at commit. They are never clamped inside the scratch.
type Deltas struct {
	Coins     int
	XP        int
	Fragments int
	Gems      int
}

// Scratch is the mutable working state for one action resolution. Vitals are
// authoritative (already seeded from the live profile); Deltas are pending.
type Scratch struct {
	Vitals  Vitals
	Deltas  Deltas
	Flags   map[string]string
	Items   []string
	Buffs   []string
	Debuffs []string
}

// NewScratch seeds a scratch from live hp and focus values.
func NewScratch(hp, focus int) *Scratch {
	return &Scratch{
		Vitals: Vitals{HP: hp, Focus: focus},
		Flags:  make(map[string]string),
	}
}

// Apply folds the ordered effect list into the scratch and returns a
// human-readable delta summary. The summary is for audit and UI use only;
// no engine logic may consult it.
func Apply(scratch *Scratch, effects []domain.Effect) []string {
	summary := make([]string, 0, len(effects))
	for _, eff := range effects {
		switch eff.Kind {
		case domain.EffectHP:
			scratch.Vitals.HP = applyNumeric(scratch.Vitals.HP, eff)
			if scratch.Vitals.HP < 0 {
				scratch.Vitals.HP = 0
			}
			summary = append(summary, fmt.Sprintf("hp %s%d", signFor(eff), eff.Amount))
		case domain.EffectFocus:
			scratch.Vitals.Focus = applyNumeric(scratch.Vitals.Focus, eff)
			if scratch.Vitals.Focus < 0 {
				scratch.Vitals.Focus = 0
			}
			summary = append(summary, fmt.Sprintf("focus %s%d", signFor(eff), eff.Amount))
		case domain.EffectCoins:
			scratch.Deltas.Coins += signedAmount(eff)
			summary = append(summary, fmt.Sprintf("coins %s%d", signFor(eff), eff.Amount))
		case domain.EffectXP:
			scratch.Deltas.XP += signedAmount(eff)
			summary = append(summary, fmt.Sprintf("xp %s%d", signFor(eff), eff.Amount))
		case domain.EffectFragment:
			scratch.Deltas.Fragments += signedAmount(eff)
			summary = append(summary, fmt.Sprintf("fragments %s%d", signFor(eff), eff.Amount))
		case domain.EffectGem:
			scratch.Deltas.Gems += signedAmount(eff)
			summary = append(summary, fmt.Sprintf("gems %s%d", signFor(eff), eff.Amount))
		case domain.EffectFlag:
			if scratch.Flags == nil {
				scratch.Flags = make(map[string]string)
			}
			scratch.Flags[eff.Key] = eff.Value
			summary = append(summary, fmt.Sprintf("flag %s=%s", eff.Key, eff.Value))
		case domain.EffectItem:
			scratch.Items = append(scratch.Items, eff.Key)
			summary = append(summary, fmt.Sprintf("item %s", eff.Key))
		case domain.EffectBuff:
			scratch.Buffs = append(scratch.Buffs, eff.Key)
			summary = append(summary, fmt.Sprintf("buff %s", eff.Key))
		case domain.EffectDebuff:
			scratch.Debuffs = append(scratch.Debuffs, eff.Key)
			summary = append(summary, fmt.Sprintf("debuff %s", eff.Key))
		}
	}
	return summary
}

func applyNumeric(current int, eff domain.Effect) int {
	switch eff.Op {
	case domain.OpSet:
		return eff.Amount
	case domain.OpSubtract:
		return current - eff.Amount
	default:
		return current + eff.Amount
	}
}

func signedAmount(eff domain.Effect) int {
	if eff.Op == domain.OpSubtract {
		return -eff.Amount
	}
	return eff.Amount
}

func signFor(eff domain.Effect) string {
	switch eff.Op {
	case domain.OpSubtract:
		return "-"
	case domain.OpSet:
		return "="
	default:
		return "+"
	}
}
