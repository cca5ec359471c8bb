package orchestrator

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"github.com/emberline/saga/internal/core/dice"
	"github.com/emberline/saga/internal/engine/domain"
	"github.com/emberline/saga/internal/errors"
)

func strikeAction() domain.ActionDef {
	return domain.ActionDef{
		ID:   "strike",
		Tags: []string{"combat"},
		Roll: &domain.RollSpec{Tags: []string{"combat"}},
		Outcomes: map[dice.Kind]domain.Outcome{
			dice.KindSuccess: {Kind: dice.KindSuccess, Effects: []domain.Effect{
				{Kind: domain.EffectCoins, Op: domain.OpAdd, Amount: 10},
				{Kind: domain.EffectFlag, Key: "struck", Value: "true"},
			}},
			dice.KindFail: {Kind: dice.KindFail, Effects: []domain.Effect{
				{Kind: domain.EffectHP, Op: domain.OpSubtract, Amount: 5},
				{Kind: domain.EffectCoins, Op: domain.OpSubtract, Amount: 8},
			}},
		},
	}
}

func waitAction() domain.ActionDef {
	return domain.ActionDef{ID: "wait", Tags: []string{"neutral"}}
}

func twoRoundScene() domain.Scene {
	return domain.Scene{
		ID: "1.1",
		Rounds: []domain.Round{
			{ID: "1.1-R1", Actions: []domain.ActionDef{strikeAction(), waitAction()}},
			{ID: "1.1-R2", Actions: []domain.ActionDef{strikeAction(), waitAction()}},
		},
	}
}

func seedParty(store *fakeStore) {
	store.profiles["u1"] = domain.Profile{UserID: "u1", HP: 20, HPMax: 20, Focus: 10, FocusMax: 10, Coins: 100, Level: 1}
	store.profiles["u2"] = domain.Profile{UserID: "u2", HP: 20, HPMax: 20, Focus: 10, FocusMax: 10, Coins: 100, Level: 1}
}

func seedRun(store *fakeStore, sceneID string) domain.Run {
	expiry := testClock.Add(domain.TurnTTL)
	run := domain.Run{
		ID:            "run-1",
		GuildID:       "g1",
		PartyIDs:      []string{"u1", "u2"},
		ContentID:     "emberfall",
		SceneID:       sceneID,
		RoundID:       sceneID + "-R1",
		Flags:         map[string]string{},
		TurnOrder:     []string{"u1", "u2"},
		ActiveUserID:  "u1",
		TurnExpiresAt: &expiry,
		AfkMisses:     map[string]int{"u1": 2},
		CreatedAt:     testClock,
		UpdatedAt:     testClock,
	}
	store.runs[run.ID] = run
	return run
}

func newTestEngine(rng *rand.Rand, equip *fakeEquipment, scenes map[string]domain.Scene) (*Orchestrator, *fakeStore) {
	store := newFakeStore()
	seedParty(store)
	o := New(Config{
		Store:     store,
		Content:   &fakeContent{manifest: domain.Manifest{ContentID: "emberfall"}, scenes: scenes},
		Equipment: equip,
		Rng:       rng,
		Now:       fixedNow,
		NewID:     sequentialIDs("id"),
	})
	return o, store
}

func TestHandleActionAutoSuccessWithoutRoll(t *testing.T) {
	equip := &fakeEquipment{}
	o, store := newTestEngine(scriptedRolls(1), equip, map[string]domain.Scene{"1.1": twoRoundScene()})
	seedRun(store, "1.1")

	result, err := o.HandleAction(context.Background(), ActionRequest{RunID: "run-1", UserID: "u1", ActionID: "wait"})
	if err != nil {
		t.Fatalf("handle action: %v", err)
	}
	if result.Roll != 0 || result.Outcome != dice.KindSuccess {
		t.Fatalf("expected auto-success with roll 0, got %+v", result)
	}
	if result.CompletedScene {
		t.Fatal("expected no scene completion mid-scene")
	}

	run := store.runs["run-1"]
	if run.Sleight != 1 {
		t.Fatalf("expected sleight 1, got %d", run.Sleight)
	}
	if run.RoundID != "1.1-R2" {
		t.Fatalf("expected round advance, got %q", run.RoundID)
	}
	if _, pending := run.AfkMisses["u1"]; pending {
		t.Fatal("expected afk counter cleared by a player-submitted action")
	}
	if run.ActiveUserID != "u2" {
		t.Fatalf("expected turn rotation to u2, got %q", run.ActiveUserID)
	}
	if run.TurnExpiresAt == nil || !run.TurnExpiresAt.Equal(testClock.Add(domain.TurnTTL)) {
		t.Fatalf("expected refreshed expiry, got %v", run.TurnExpiresAt)
	}
	if equip.durabilityTicks != 1 {
		t.Fatalf("expected one durability tick, got %d", equip.durabilityTicks)
	}
	if snapshots := store.eventsOfType(domain.TypeDifficultySnapshot); len(snapshots) != 1 {
		t.Fatalf("expected one difficulty snapshot, got %d", len(snapshots))
	}
	if resolved := store.eventsOfType(domain.TypeActionResolved); len(resolved) != 1 {
		t.Fatalf("expected one action.resolved event, got %d", len(resolved))
	}
}

func TestHandleActionTurnViolation(t *testing.T) {
	o, store := newTestEngine(scriptedRolls(10), &fakeEquipment{}, map[string]domain.Scene{"1.1": twoRoundScene()})
	before := seedRun(store, "1.1")

	_, err := o.HandleAction(context.Background(), ActionRequest{RunID: "run-1", UserID: "u2", ActionID: "strike"})
	if !errors.IsCode(err, errors.CodeTurnViolation) {
		t.Fatalf("expected turn violation, got %v", err)
	}
	if store.runs["run-1"].RoundID != before.RoundID || len(store.events) != 0 {
		t.Fatal("expected no mutation on rejection")
	}
}

func TestHandleActionRejectsNonMember(t *testing.T) {
	o, store := newTestEngine(scriptedRolls(10), &fakeEquipment{}, map[string]domain.Scene{"1.1": twoRoundScene()})
	seedRun(store, "1.1")
	store.profiles["ghost"] = domain.Profile{UserID: "ghost", HP: 20, HPMax: 20, Level: 1}

	// Membership is checked before the active-turn rule, so even an autop
	// submission from outside the turn order is rejected.
	_, err := o.HandleAction(context.Background(), ActionRequest{RunID: "run-1", UserID: "ghost", ActionID: "strike", Autop: true})
	if !errors.IsCode(err, errors.CodeTurnViolation) {
		t.Fatalf("expected turn violation for non-member, got %v", err)
	}
	if len(store.events) != 0 {
		t.Fatal("expected no mutation on rejection")
	}
}

func TestHandleActionDownedViolation(t *testing.T) {
	o, store := newTestEngine(scriptedRolls(10), &fakeEquipment{}, map[string]domain.Scene{"1.1": twoRoundScene()})
	seedRun(store, "1.1")
	downed := testClock.Add(-time.Hour)
	profile := store.profiles["u1"]
	profile.HP = 0
	profile.DownedAt = &downed
	store.profiles["u1"] = profile

	_, err := o.HandleAction(context.Background(), ActionRequest{RunID: "run-1", UserID: "u1", ActionID: "wait"})
	if !errors.IsCode(err, errors.CodeDownedViolation) {
		t.Fatalf("expected downed violation, got %v", err)
	}

	// Autop submissions bypass the downed check.
	if _, err := o.HandleAction(context.Background(), ActionRequest{
		RunID: "run-1", UserID: "u1", ActionID: "wait", Autop: true, ForcedKind: dice.KindFail,
	}); err != nil {
		t.Fatalf("expected autop to bypass downed check: %v", err)
	}
}

func TestHandleActionUnknownIDs(t *testing.T) {
	o, store := newTestEngine(scriptedRolls(10), &fakeEquipment{}, map[string]domain.Scene{"1.1": twoRoundScene()})
	seedRun(store, "1.1")

	if _, err := o.HandleAction(context.Background(), ActionRequest{RunID: "missing", UserID: "u1", ActionID: "wait"}); !errors.IsCode(err, errors.CodeRunNotFound) {
		t.Fatalf("expected run not found, got %v", err)
	}
	if _, err := o.HandleAction(context.Background(), ActionRequest{RunID: "run-1", UserID: "u1", ActionID: "bogus"}); !errors.IsCode(err, errors.CodeActionNotFound) {
		t.Fatalf("expected action not found, got %v", err)
	}
}

func TestHandleActionCritSuccessSleight(t *testing.T) {
	equip := &fakeEquipment{sleightBonus: 1}
	o, store := newTestEngine(scriptedRolls(20), equip, map[string]domain.Scene{"1.1": twoRoundScene()})
	seedRun(store, "1.1")

	result, err := o.HandleAction(context.Background(), ActionRequest{RunID: "run-1", UserID: "u1", ActionID: "strike"})
	if err != nil {
		t.Fatalf("handle action: %v", err)
	}
	if result.Roll != 20 || result.Outcome != dice.KindCritSuccess {
		t.Fatalf("expected natural 20 crit, got %+v", result)
	}
	// +2 for the crit plus the equipment bonus gated to successes.
	if run := store.runs["run-1"]; run.Sleight != 3 {
		t.Fatalf("expected sleight 3, got %d", run.Sleight)
	}
	// Crit falls back to the success outcome: coins +10, flag merged.
	if store.profiles["u1"].Coins != 110 {
		t.Fatalf("expected coins 110, got %d", store.profiles["u1"].Coins)
	}
	if run := store.runs["run-1"]; !run.FlagTruthy("struck") {
		t.Fatal("expected merged flag")
	}
}

func TestHandleActionFailEffects(t *testing.T) {
	o, store := newTestEngine(scriptedRolls(5), &fakeEquipment{}, map[string]domain.Scene{"1.1": twoRoundScene()})
	seedRun(store, "1.1")

	result, err := o.HandleAction(context.Background(), ActionRequest{RunID: "run-1", UserID: "u1", ActionID: "strike"})
	if err != nil {
		t.Fatalf("handle action: %v", err)
	}
	if result.Outcome != dice.KindFail {
		t.Fatalf("expected fail at dc 13, got %+v", result)
	}
	profile := store.profiles["u1"]
	if profile.HP != 15 {
		t.Fatalf("expected hp 15, got %d", profile.HP)
	}
	if profile.Coins != 92 {
		t.Fatalf("expected coins 92, got %d", profile.Coins)
	}
	if run := store.runs["run-1"]; run.Sleight != 0 {
		t.Fatalf("expected no sleight change on plain fail, got %d", run.Sleight)
	}
}

func TestHandleActionCoinLossProtection(t *testing.T) {
	o, store := newTestEngine(scriptedRolls(5), &fakeEquipment{coinProtection: true}, map[string]domain.Scene{"1.1": twoRoundScene()})
	seedRun(store, "1.1")

	if _, err := o.HandleAction(context.Background(), ActionRequest{RunID: "run-1", UserID: "u1", ActionID: "strike"}); err != nil {
		t.Fatalf("handle action: %v", err)
	}
	if coins := store.profiles["u1"].Coins; coins != 100 {
		t.Fatalf("expected protected coins, got %d", coins)
	}
}

func TestHandleActionCritFailNeutralized(t *testing.T) {
	o, store := newTestEngine(scriptedRolls(1), &fakeEquipment{neutralize: true}, map[string]domain.Scene{"1.1": twoRoundScene()})
	seedRun(store, "1.1")

	result, err := o.HandleAction(context.Background(), ActionRequest{RunID: "run-1", UserID: "u1", ActionID: "strike"})
	if err != nil {
		t.Fatalf("handle action: %v", err)
	}
	if result.Outcome != dice.KindFail {
		t.Fatalf("expected crit fail downgraded to fail, got %+v", result)
	}
	if run := store.runs["run-1"]; run.Sleight != 0 {
		t.Fatalf("expected no sleight penalty after neutralization, got %d", run.Sleight)
	}
}

func TestHandleActionRerollOnFail(t *testing.T) {
	o, store := newTestEngine(scriptedRolls(5, 18), &fakeEquipment{reroll: true}, map[string]domain.Scene{"1.1": twoRoundScene()})
	seedRun(store, "1.1")

	result, err := o.HandleAction(context.Background(), ActionRequest{RunID: "run-1", UserID: "u1", ActionID: "strike"})
	if err != nil {
		t.Fatalf("handle action: %v", err)
	}
	// The reroll's raw 18 is strictly higher and meets the DC; the kind is
	// re-derived, never forced.
	if result.Roll != 18 || result.Outcome != dice.KindSuccess {
		t.Fatalf("expected rerolled success, got %+v", result)
	}
	if store.profiles["u1"].Coins != 110 {
		t.Fatalf("expected success effects after reroll, got %d coins", store.profiles["u1"].Coins)
	}
}

func TestHandleActionAdvantageKeepsHigherRawRoll(t *testing.T) {
	equip := &fakeEquipment{}
	equip.state.Advantage = true
	o, store := newTestEngine(scriptedRolls(2, 15), equip, map[string]domain.Scene{"1.1": twoRoundScene()})
	seedRun(store, "1.1")

	result, err := o.HandleAction(context.Background(), ActionRequest{RunID: "run-1", UserID: "u1", ActionID: "strike"})
	if err != nil {
		t.Fatalf("handle action: %v", err)
	}
	if result.Roll != 15 || result.Outcome != dice.KindSuccess {
		t.Fatalf("expected advantage to keep the 15, got %+v", result)
	}
}

func TestHandleActionAdvantageDisadvantageCancel(t *testing.T) {
	equip := &fakeEquipment{}
	equip.state.Advantage = true
	equip.state.Disadvantage = true
	o, store := newTestEngine(scriptedRolls(2, 20), equip, map[string]domain.Scene{"1.1": twoRoundScene()})
	seedRun(store, "1.1")

	result, err := o.HandleAction(context.Background(), ActionRequest{RunID: "run-1", UserID: "u1", ActionID: "strike"})
	if err != nil {
		t.Fatalf("handle action: %v", err)
	}
	// A second draw would have surfaced the scripted 20.
	if result.Roll != 2 || result.Outcome != dice.KindFail {
		t.Fatalf("expected a single raw roll of 2, got %+v", result)
	}
}

func TestHandleActionForcedKind(t *testing.T) {
	o, store := newTestEngine(scriptedRolls(20), &fakeEquipment{}, map[string]domain.Scene{"1.1": twoRoundScene()})
	seedRun(store, "1.1")

	result, err := o.HandleAction(context.Background(), ActionRequest{
		RunID: "run-1", UserID: "u1", ActionID: "strike",
		ForcedKind: dice.KindFail, Autop: true, Reason: "afk_timeout",
	})
	if err != nil {
		t.Fatalf("handle action: %v", err)
	}
	if result.Roll != 0 || result.Outcome != dice.KindFail {
		t.Fatalf("expected forced fail with roll 0, got %+v", result)
	}
	// Autop actions must not clear the sweep's miss counter.
	if misses := store.runs["run-1"].AfkMisses["u1"]; misses != 2 {
		t.Fatalf("expected afk misses preserved, got %d", misses)
	}
}

func TestHandleActionRollMatchesOutcomeAcrossSeeds(t *testing.T) {
	for seed := int64(0); seed < 20; seed++ {
		o, store := newTestEngine(rand.New(rand.NewSource(seed)), &fakeEquipment{}, map[string]domain.Scene{"1.1": twoRoundScene()})
		seedRun(store, "1.1")

		result, err := o.HandleAction(context.Background(), ActionRequest{RunID: "run-1", UserID: "u1", ActionID: "strike"})
		if err != nil {
			t.Fatalf("seed %d: %v", seed, err)
		}
		if result.Roll < 1 || result.Roll > dice.Sides {
			t.Fatalf("seed %d: roll %d out of range", seed, result.Roll)
		}
		if want := dice.Classify(result.Roll, baseDC); result.Outcome != want {
			t.Fatalf("seed %d: outcome %q does not match roll %d (want %q)", seed, result.Outcome, result.Roll, want)
		}
	}
}
