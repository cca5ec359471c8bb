// Package difficulty derives the hidden challenge tier from live party state.
package difficulty

import (
	"math"

	"github.com/emberline/saga/internal/engine/domain"
	"github.com/emberline/saga/internal/engine/equipment"
)

// Tier is the hidden difficulty label applied as a DC offset. It is never
// shown to players directly.
type Tier string

const (
	TierNormal Tier = "normal"
	TierTough  Tier = "tough"
	TierEpic   Tier = "epic"
	TierMythic Tier = "mythic"
)

// Offset returns the DC offset contributed by the tier.
func (t Tier) Offset() int {
	switch t {
	case TierTough:
		return 2
	case TierEpic:
		return 5
	case TierMythic:
		return 7
	default:
		return 0
	}
}

const goldenRatio = 1.618

// Tier staircase bounds over the computed scale.
const (
	toughScale  = 1.2
	epicScale   = 2.0
	mythicScale = 2.8
)

// Equipment power weights. Flat terms cover the boolean loadout perks.
const (
	dcOffsetWeight        = 40
	dcShiftWeight         = 25
	focusBonusWeight      = 15
	hpBonusWeight         = 6
	sleightBonusWeight    = 20
	rerollFlat            = 30
	neutralizeFlat        = 25
	fragmentBoostFlat     = 10
	coinProtectionFlat    = 8
	advantageTagWeight    = 6
	disadvantageTagWeight = 4
)

// Debuff bias parameters: members below lowRatio on hp or focus accrue a
// penalty linear in the shortfall; downed members add a flat term.
const (
	lowRatio       = 0.6
	shortfallSlope = 5.0
	downedFlatBias = 3.0
)

// MemberInput holds the per-member values feeding the party aggregate.
type MemberInput struct {
	Level      int
	HPRatio    float64
	FocusRatio float64
	Downed     bool
	Power      float64
}

// PartyInputs are the aggregated scaling inputs for the hidden tier.
type PartyInputs struct {
	AvgLevel   float64
	AvgPower   float64
	DebuffBias float64
}

// Loadout carries the equipment facts that feed a member's power score.
type Loadout struct {
	State              equipment.AdvantageState
	SleightBonus       int
	RerollOnFail       bool
	NeutralizeCritFail bool
	FragmentBoost      bool
	CoinProtection     bool
}

// MemberPower computes the weighted equipment power score for one member.
func MemberPower(loadout Loadout) float64 {
	power := math.Abs(float64(loadout.State.DcOffset))*dcOffsetWeight +
		math.Abs(float64(loadout.State.DcShift))*dcShiftWeight +
		float64(loadout.State.FocusBonus)*focusBonusWeight +
		float64(loadout.State.HpBonus)*hpBonusWeight +
		float64(loadout.SleightBonus)*sleightBonusWeight
	if loadout.RerollOnFail {
		power += rerollFlat
	}
	if loadout.NeutralizeCritFail {
		power += neutralizeFlat
	}
	if loadout.FragmentBoost {
		power += fragmentBoostFlat
	}
	if loadout.CoinProtection {
		power += coinProtectionFlat
	}
	power += float64(loadout.State.AdvantageTags) * advantageTagWeight
	power -= float64(loadout.State.DisadvantageTags) * disadvantageTagWeight
	return power
}

// MemberFromProfile derives the per-member input from a live profile and its
// computed power score. Levels default to 1 when unset.
func MemberFromProfile(profile *domain.Profile, power float64) MemberInput {
	return MemberInput{
		Level:      profile.EffectiveLevel(),
		HPRatio:    profile.HPRatio(),
		FocusRatio: profile.FocusRatio(),
		Downed:     profile.Downed(),
		Power:      power,
	}
}

// Aggregate folds the member inputs into party means. An empty party yields
// zero inputs.
func Aggregate(members []MemberInput) PartyInputs {
	if len(members) == 0 {
		return PartyInputs{}
	}
	var inputs PartyInputs
	for _, member := range members {
		inputs.AvgLevel += float64(member.Level)
		inputs.AvgPower += member.Power
		inputs.DebuffBias += memberBias(member)
	}
	count := float64(len(members))
	inputs.AvgLevel /= count
	inputs.AvgPower /= count
	inputs.DebuffBias /= count
	return inputs
}

func memberBias(member MemberInput) float64 {
	var bias float64
	if member.HPRatio < lowRatio {
		bias += (lowRatio - member.HPRatio) * shortfallSlope
	}
	if member.FocusRatio < lowRatio {
		bias += (lowRatio - member.FocusRatio) * shortfallSlope
	}
	if member.Downed {
		bias += downedFlatBias
	}
	return bias
}

// HiddenTier maps the party inputs and guild bias onto the tier staircase.
// The mapping is monotone: a higher scale never yields a lower DC offset.
func HiddenTier(inputs PartyInputs, guildBias float64) Tier {
	scale := (inputs.AvgLevel+inputs.AvgPower/100)/10/goldenRatio -
		inputs.DebuffBias*0.2 + guildBias
	switch {
	case scale > mythicScale:
		return TierMythic
	case scale > epicScale:
		return TierEpic
	case scale > toughScale:
		return TierTough
	default:
		return TierNormal
	}
}
