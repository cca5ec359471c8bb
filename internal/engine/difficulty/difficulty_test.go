package difficulty

import (
	"testing"
	"time"

	"github.com/emberline/saga/internal/engine/domain"
	"github.com/emberline/saga/internal/engine/equipment"
)

func TestTierOffsetsMonotone(t *testing.T) {
	offsets := []int{TierNormal.Offset(), TierTough.Offset(), TierEpic.Offset(), TierMythic.Offset()}
	for i := 1; i < len(offsets); i++ {
		if offsets[i] <= offsets[i-1] {
			t.Fatalf("expected strictly increasing offsets, got %v", offsets)
		}
	}
}

func TestHiddenTierStaircase(t *testing.T) {
	tests := []struct {
		name      string
		inputs    PartyInputs
		guildBias float64
		want      Tier
	}{
		{name: "fresh party", inputs: PartyInputs{AvgLevel: 1}, want: TierNormal},
		{name: "mid party", inputs: PartyInputs{AvgLevel: 12, AvgPower: 900}, want: TierTough},
		{name: "strong party", inputs: PartyInputs{AvgLevel: 20, AvgPower: 1500}, want: TierEpic},
		{name: "overwhelming party", inputs: PartyInputs{AvgLevel: 30, AvgPower: 2000}, want: TierMythic},
		{name: "debuffs pull back down", inputs: PartyInputs{AvgLevel: 12, AvgPower: 900, DebuffBias: 6}, want: TierNormal},
		{name: "guild bias pushes up", inputs: PartyInputs{AvgLevel: 1}, guildBias: 2.5, want: TierEpic},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := HiddenTier(tt.inputs, tt.guildBias); got != tt.want {
				t.Fatalf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestHiddenTierMonotoneInScale(t *testing.T) {
	previous := 0
	for level := 0; level <= 60; level++ {
		tier := HiddenTier(PartyInputs{AvgLevel: float64(level)}, 0)
		if tier.Offset() < previous {
			t.Fatalf("offset decreased at level %d", level)
		}
		previous = tier.Offset()
	}
}

func TestMemberPowerWeights(t *testing.T) {
	loadout := Loadout{
		State: equipment.AdvantageState{
			DcOffset:         -2, // magnitude counts, not sign
			DcShift:          1,
			FocusBonus:       2,
			HpBonus:          3,
			AdvantageTags:    2,
			DisadvantageTags: 1,
		},
		SleightBonus:       1,
		RerollOnFail:       true,
		NeutralizeCritFail: true,
		FragmentBoost:      true,
		CoinProtection:     true,
	}

	want := 2.0*40 + 1*25 + 2*15 + 3*6 + 1*20 + 30 + 25 + 10 + 8 + 2*6 - 1*4
	if got := MemberPower(loadout); got != want {
		t.Fatalf("expected power %v, got %v", want, got)
	}
}

func TestAggregateDebuffBias(t *testing.T) {
	healthy := MemberInput{Level: 2, HPRatio: 1, FocusRatio: 1}
	hurt := MemberInput{Level: 2, HPRatio: 0.2, FocusRatio: 1}
	downedAt := time.Now()
	_ = downedAt

	inputs := Aggregate([]MemberInput{healthy, hurt})
	if inputs.AvgLevel != 2 {
		t.Fatalf("expected avg level 2, got %v", inputs.AvgLevel)
	}
	wantBias := ((0.6 - 0.2) * 5.0) / 2
	if diff := inputs.DebuffBias - wantBias; diff > 1e-9 || diff < -1e-9 {
		t.Fatalf("expected bias %v, got %v", wantBias, inputs.DebuffBias)
	}

	downed := MemberInput{Level: 2, HPRatio: 0, FocusRatio: 0, Downed: true}
	soloInputs := Aggregate([]MemberInput{downed})
	wantSolo := 0.6*5 + 0.6*5 + 3
	if diff := soloInputs.DebuffBias - wantSolo; diff > 1e-9 || diff < -1e-9 {
		t.Fatalf("expected bias %v, got %v", wantSolo, soloInputs.DebuffBias)
	}
}

func TestMemberFromProfileDefaults(t *testing.T) {
	profile := &domain.Profile{HP: 10, HPMax: 20, Focus: 5, FocusMax: 10}
	member := MemberFromProfile(profile, 12)
	if member.Level != 1 {
		t.Fatalf("expected default level 1, got %d", member.Level)
	}
	if member.HPRatio != 0.5 || member.FocusRatio != 0.5 {
		t.Fatalf("unexpected ratios: %+v", member)
	}
	if member.Power != 12 {
		t.Fatalf("expected power carried through, got %v", member.Power)
	}
}

func TestAggregateEmptyParty(t *testing.T) {
	inputs := Aggregate(nil)
	if inputs != (PartyInputs{}) {
		t.Fatalf("expected zero inputs, got %+v", inputs)
	}
}
