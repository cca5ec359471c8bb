package route

import (
	"testing"
)

func testContext() *Context {
	return &Context{
		SceneID:     "2.3",
		UserID:      "u1",
		Flags:       map[string]string{"met_sage": "true", "shards": "4"},
		Sleight:     6,
		Transitions: 2,
		PartySize:   3,
		RoundIndex:  1,
		Class:       "rogue",
		Role:        "scout",
		Items:       map[string]int{"rope": 2, "legendary blade": 1, "Legendary Crown": 1},
		History: &History{
			ChaosCount: 4,
			MoralScore: -5,
			Counters:   map[string]int{"gremlin": 2},
		},
		Stats:         Stats{Level: 5, HP: 10, HPMax: 40, Focus: 9, FocusMax: 10, Coins: 120, XP: 300},
		PartyStrength: 62.5,
	}
}

func TestEvalLeafConditions(t *testing.T) {
	ctx := testContext()

	tests := []struct {
		name string
		cond Condition
		want bool
	}{
		{name: "flag string eq", cond: FlagCondition{Key: "met_sage", Op: OpEq, Value: "true"}, want: true},
		{name: "flag string neq", cond: FlagCondition{Key: "met_sage", Op: OpNeq, Value: "false"}, want: true},
		{name: "flag numeric gte", cond: FlagCondition{Key: "shards", Op: OpGte, Value: "3"}, want: true},
		{name: "flag ordering needs numbers", cond: FlagCondition{Key: "met_sage", Op: OpGt, Value: "a"}, want: false},
		{name: "threshold sleight", cond: ThresholdCondition{Field: FieldSleight, Op: OpGte, Value: 5}, want: true},
		{name: "threshold unknown field", cond: ThresholdCondition{Field: "bogus", Op: OpEq, Value: 0}, want: true},
		{name: "threshold party strength compares floats", cond: ThresholdCondition{Field: FieldPartyStrength, Op: OpGt, Value: 62}, want: true},
		{name: "threshold party strength fractional margin", cond: ThresholdCondition{Field: FieldPartyStrength, Op: OpGte, Value: 63}, want: false},
		{name: "item count", cond: ItemCondition{Name: "rope", Op: OpEq, Count: 2}, want: true},
		{name: "item legendary derived", cond: ItemCondition{Name: LegendaryCountField, Op: OpEq, Count: 2}, want: true},
		{name: "stat hp percentage", cond: StatCondition{Stat: StatHPPercentage, Op: OpLte, Value: 25}, want: true},
		{name: "stat unknown", cond: StatCondition{Stat: "bogus", Op: OpEq, Value: 0}, want: false},
		{name: "choice history chaos", cond: ChoiceHistoryCondition{Aggregate: AggregateChaosCount, Op: OpGt, Value: 3}, want: true},
		{name: "choice history unknown", cond: ChoiceHistoryCondition{Aggregate: "bogus", Op: OpEq, Value: 0}, want: false},
		{name: "class match", cond: ClassCondition{Class: "rogue"}, want: true},
		{name: "class mismatch", cond: ClassCondition{Class: "mage"}, want: false},
		{name: "karma below", cond: KarmaCondition{Op: OpLt, Value: -3}, want: true},
		{name: "role match", cond: RoleCondition{Role: "scout"}, want: true},
		{name: "history counter", cond: HistoryCounterCondition{Counter: "gremlin", Op: OpEq, Value: 2}, want: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Eval(tt.cond, ctx); got != tt.want {
				t.Fatalf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestEvalCombinators(t *testing.T) {
	ctx := testContext()

	all := AllCondition{Conditions: []Condition{
		ClassCondition{Class: "rogue"},
		ThresholdCondition{Field: FieldSleight, Op: OpGte, Value: 5},
	}}
	if !Eval(all, ctx) {
		t.Fatal("expected all-condition to match")
	}

	all.Conditions = append(all.Conditions, RoleCondition{Role: "healer"})
	if Eval(all, ctx) {
		t.Fatal("expected all-condition to fail on the role mismatch")
	}

	any := AnyCondition{Conditions: []Condition{
		RoleCondition{Role: "healer"},
		KarmaCondition{Op: OpLt, Value: 0},
	}}
	if !Eval(any, ctx) {
		t.Fatal("expected any-condition to match on karma")
	}
	if Eval(AnyCondition{}, ctx) {
		t.Fatal("expected empty any-condition to fail")
	}
	if !Eval(AllCondition{}, ctx) {
		t.Fatal("expected empty all-condition to match")
	}
}
