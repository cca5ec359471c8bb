package orchestrator

import (
	"context"
	stderrors "errors"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/emberline/saga/internal/core/dice"
	"github.com/emberline/saga/internal/core/effect"
	"github.com/emberline/saga/internal/engine/difficulty"
	"github.com/emberline/saga/internal/engine/domain"
	"github.com/emberline/saga/internal/engine/equipment"
	"github.com/emberline/saga/internal/errors"
	"github.com/emberline/saga/internal/storage"
)

// tracer resolves through the global provider registered at process start.
var tracer = otel.Tracer("github.com/emberline/saga/internal/engine/orchestrator")

// Base difficulty class before shifts and offsets.
const baseDC = 13

// Sleight deltas by outcome kind.
const (
	sleightCritSuccess = 2
	sleightSuccess     = 1
	sleightCritFail    = -1
)

// ActionRequest describes one action submission. ForcedKind and Autop are
// set only by the AFK sweep.
type ActionRequest struct {
	RunID      string
	UserID     string
	ActionID   string
	ForcedKind dice.Kind
	Autop      bool
	Reason     string
}

// ActionResult is the caller-visible outcome of a resolved action.
type ActionResult struct {
	Roll           int
	Outcome        dice.Kind
	EffectSummary  []string
	Flavor         string
	Tier           difficulty.Tier
	CompletedScene bool
	NextSceneID    string
}

// HandleAction resolves one submitted action: validate, roll, apply
// effects, advance the round or scene, and rotate the turn. All validation
// happens before the first write, so rejections are always retryable. Once
// effect application begins the call runs to completion; a mid-sequence
// store failure can leave partially-applied state.
func (o *Orchestrator) HandleAction(ctx context.Context, req ActionRequest) (ActionResult, error) {
	ctx, span := tracer.Start(ctx, "orchestrator.HandleAction")
	defer span.End()
	span.SetAttributes(
		attribute.String("run.id", req.RunID),
		attribute.String("action.id", req.ActionID),
		attribute.Bool("action.autop", req.Autop),
	)

	run, err := o.store.GetRun(ctx, req.RunID)
	if err != nil {
		if stderrors.Is(err, storage.ErrNotFound) {
			return ActionResult{}, errors.WithMetadata(errors.CodeRunNotFound, "run not found",
				map[string]string{"run_id": req.RunID})
		}
		return ActionResult{}, errors.Wrap(errors.CodeStoreUnavailable, "load run", err)
	}

	scene, err := o.content.GetScene(ctx, run.ContentID, run.SceneID)
	if err != nil {
		return ActionResult{}, err
	}
	round, roundIndex, ok := scene.Round(run.RoundID)
	if !ok {
		return ActionResult{}, errors.WithMetadata(errors.CodeRoundNotFound, "round not found",
			map[string]string{"run_id": run.ID, "round_id": run.RoundID})
	}
	action, ok := round.Action(req.ActionID)
	if !ok {
		return ActionResult{}, errors.WithMetadata(errors.CodeActionNotFound, "action not found",
			map[string]string{"run_id": run.ID, "action_id": req.ActionID})
	}

	if !run.IsMember(req.UserID) {
		return ActionResult{}, errors.WithMetadata(errors.CodeTurnViolation, "user is not in the run",
			map[string]string{"run_id": run.ID, "user_id": req.UserID})
	}
	if run.ActiveUserID != "" && run.ActiveUserID != req.UserID && !req.Autop {
		return ActionResult{}, errors.WithMetadata(errors.CodeTurnViolation, "not your turn",
			map[string]string{"active_user_id": run.ActiveUserID})
	}

	profiles, err := o.loadPartyProfiles(ctx, &run)
	if err != nil {
		return ActionResult{}, err
	}
	actor, ok := profiles[req.UserID]
	if !ok {
		return ActionResult{}, errors.WithMetadata(errors.CodeProfileNotFound, "profile not found",
			map[string]string{"user_id": req.UserID})
	}
	if actor.Downed() && !req.Autop {
		return ActionResult{}, errors.New(errors.CodeDownedViolation, "actor is downed")
	}

	// Difficulty inputs and the action-scoped advantage state. The snapshot
	// is persisted unconditionally; it is an audit value, independent of
	// whatever the roll produces downstream.
	advState, err := o.equipment.AdvantageState(ctx, req.UserID, action.Tags)
	if err != nil {
		return ActionResult{}, fmt.Errorf("equipment advantage state: %w", err)
	}
	tier, inputs, guildBias, err := o.partyTier(ctx, &run, profiles)
	if err != nil {
		return ActionResult{}, err
	}
	o.appendEvent(ctx, run.ID, req.UserID, domain.TypeDifficultySnapshot, domain.DifficultySnapshotPayload{
		Tier:       string(tier),
		TierOffset: tier.Offset(),
		AvgLevel:   inputs.AvgLevel,
		AvgPower:   inputs.AvgPower,
		DebuffBias: inputs.DebuffBias,
		GuildBias:  guildBias,
	})

	dc := baseDC + advState.DcShift
	totalOffset := tier.Offset() + advState.DcOffset

	roll, kind, err := o.resolveRoll(ctx, req, action, advState, dc, totalOffset)
	if err != nil {
		return ActionResult{}, err
	}

	outcome := action.PickOutcome(kind)
	scratch := effect.NewScratch(actor.HP+advState.HpBonus, actor.Focus+advState.FocusBonus)
	summary := effect.Apply(scratch, outcome.Effects)

	if err := o.commitScratch(ctx, actor, scratch); err != nil {
		return ActionResult{}, err
	}

	run.MergeFlags(scratch.Flags)

	sleightDelta, err := o.sleightDelta(ctx, req.UserID, kind)
	if err != nil {
		return ActionResult{}, err
	}
	run.RecordSleight(req.UserID, sleightDelta, o.now())

	result := ActionResult{
		Roll:          roll,
		Outcome:       kind,
		EffectSummary: summary,
		Flavor:        outcome.Flavor,
		Tier:          tier,
	}

	if roundIndex+1 < len(scene.Rounds) {
		run.RoundID = scene.Rounds[roundIndex+1].ID
	} else {
		next, err := o.completeScene(ctx, &run, scene, req.UserID, profiles)
		if err != nil {
			return ActionResult{}, err
		}
		result.CompletedScene = true
		result.NextSceneID = next
	}

	// The sweep's AFK-miss increment must survive the forced resolution, so
	// only player-submitted actions clear the counter.
	if !req.Autop {
		delete(run.AfkMisses, req.UserID)
	}
	if err := o.equipment.TickDurability(ctx, req.UserID, 1); err != nil {
		return ActionResult{}, fmt.Errorf("tick durability: %w", err)
	}

	o.appendEvent(ctx, run.ID, req.UserID, domain.TypeActionResolved, domain.ActionResolvedPayload{
		ActionID: action.ID,
		Roll:     roll,
		Outcome:  string(kind),
		Effects:  summary,
		Flavor:   outcome.Flavor,
		Tags:     action.Tags,
		Autop:    req.Autop,
		Reason:   req.Reason,
	})

	run.AdvanceTurn(func(userID string) bool {
		profile, ok := profiles[userID]
		return ok && profile.Downed()
	}, o.now())
	run.UpdatedAt = o.now().UTC()
	if err := o.store.PutRun(ctx, run); err != nil {
		return ActionResult{}, errors.Wrap(errors.CodeStoreUnavailable, "persist run", err)
	}

	o.metrics.ActionsResolved.WithLabelValues(string(kind)).Inc()
	return result, nil
}

func (o *Orchestrator) loadPartyProfiles(ctx context.Context, run *domain.Run) (map[string]*domain.Profile, error) {
	profiles := make(map[string]*domain.Profile, len(run.PartyIDs))
	for _, userID := range run.PartyIDs {
		profile, err := o.store.GetProfile(ctx, userID)
		if err != nil {
			if stderrors.Is(err, storage.ErrNotFound) {
				continue
			}
			return nil, errors.Wrap(errors.CodeStoreUnavailable, "load profile", err)
		}
		p := profile
		profiles[userID] = &p
	}
	return profiles, nil
}

func (o *Orchestrator) partyTier(ctx context.Context, run *domain.Run, profiles map[string]*domain.Profile) (difficulty.Tier, difficulty.PartyInputs, float64, error) {
	members := make([]difficulty.MemberInput, 0, len(run.PartyIDs))
	for _, userID := range run.PartyIDs {
		profile, ok := profiles[userID]
		if !ok {
			continue
		}
		loadout, err := o.memberLoadout(ctx, userID)
		if err != nil {
			return "", difficulty.PartyInputs{}, 0, err
		}
		members = append(members, difficulty.MemberFromProfile(profile, difficulty.MemberPower(loadout)))
	}

	settings, err := o.store.GetGuildSettings(ctx, run.GuildID)
	if err != nil {
		return "", difficulty.PartyInputs{}, 0, errors.Wrap(errors.CodeStoreUnavailable, "load guild settings", err)
	}
	inputs := difficulty.Aggregate(members)
	return difficulty.HiddenTier(inputs, settings.DifficultyBias), inputs, settings.DifficultyBias, nil
}

func (o *Orchestrator) memberLoadout(ctx context.Context, userID string) (difficulty.Loadout, error) {
	state, err := o.equipment.AdvantageState(ctx, userID, nil)
	if err != nil {
		return difficulty.Loadout{}, fmt.Errorf("equipment advantage state: %w", err)
	}
	sleightBonus, err := o.equipment.SleightBonus(ctx, userID)
	if err != nil {
		return difficulty.Loadout{}, fmt.Errorf("equipment sleight bonus: %w", err)
	}
	reroll, err := o.equipment.ShouldRerollFails(ctx, userID)
	if err != nil {
		return difficulty.Loadout{}, fmt.Errorf("equipment reroll: %w", err)
	}
	neutralize, err := o.equipment.NeutralizesCritFail(ctx, userID)
	if err != nil {
		return difficulty.Loadout{}, fmt.Errorf("equipment neutralize: %w", err)
	}
	fragBoost, err := o.equipment.FragmentsBoost(ctx, userID)
	if err != nil {
		return difficulty.Loadout{}, fmt.Errorf("equipment fragment boost: %w", err)
	}
	coinProtection, err := o.equipment.HasCoinLossProtection(ctx, userID)
	if err != nil {
		return difficulty.Loadout{}, fmt.Errorf("equipment coin protection: %w", err)
	}
	return difficulty.Loadout{
		State:              state,
		SleightBonus:       sleightBonus,
		RerollOnFail:       reroll,
		NeutralizeCritFail: neutralize,
		FragmentBoost:      fragBoost > 0,
		CoinProtection:     coinProtection,
	}, nil
}

// resolveRoll runs the roll pipeline in its fixed order: the forced-kind
// override, auto-success without a roll spec, advantage/disadvantage as one
// extra raw roll, crit-fail neutralization, and the reroll-on-fail bonus
// (suppressed for autop actions).
func (o *Orchestrator) resolveRoll(ctx context.Context, req ActionRequest, action domain.ActionDef, advState equipment.AdvantageState, dc, totalOffset int) (int, dice.Kind, error) {
	// The forced kind wins over everything, including the no-roll
	// auto-success: the sweep's forced fail must land even on roll-less
	// default actions.
	if req.ForcedKind != "" {
		if !req.ForcedKind.Valid() {
			return 0, "", errors.WithMetadata(errors.CodeContentInvalid, "invalid forced outcome kind",
				map[string]string{"kind": string(req.ForcedKind)})
		}
		return 0, req.ForcedKind, nil
	}

	if action.Roll == nil {
		return 0, dice.KindSuccess, nil
	}

	roll := dice.Roll(o.rng)
	switch {
	case advState.Advantage && !advState.Disadvantage:
		if extra := dice.Roll(o.rng); extra > roll {
			roll = extra
		}
	case advState.Disadvantage && !advState.Advantage:
		if extra := dice.Roll(o.rng); extra < roll {
			roll = extra
		}
	}
	kind := dice.Classify(roll, dc+totalOffset)

	if kind == dice.KindCritFail {
		neutralize, err := o.equipment.NeutralizesCritFail(ctx, req.UserID)
		if err != nil {
			return 0, "", fmt.Errorf("equipment neutralize: %w", err)
		}
		if neutralize {
			kind = dice.KindFail
		}
	}

	if kind == dice.KindFail && !req.Autop {
		reroll, err := o.equipment.ShouldRerollFails(ctx, req.UserID)
		if err != nil {
			return 0, "", fmt.Errorf("equipment reroll: %w", err)
		}
		if reroll {
			if extra := dice.Roll(o.rng); extra > roll {
				roll = extra
				kind = dice.Classify(roll, dc+totalOffset)
			}
		}
	}
	return roll, kind, nil
}

// commitScratch writes the actor's scratch back to the profile store:
// vitals clamp to [0, max] with the downed timestamp maintained, protected
// coin losses are skipped, fragment gains receive the equipment boost, and
// item/buff/debuff appends land as inventory rows.
func (o *Orchestrator) commitScratch(ctx context.Context, actor *domain.Profile, scratch *effect.Scratch) error {
	actor.SetVitals(scratch.Vitals.HP, scratch.Vitals.Focus, o.now())

	coinDelta := scratch.Deltas.Coins
	if coinDelta < 0 {
		protected, err := o.equipment.HasCoinLossProtection(ctx, actor.UserID)
		if err != nil {
			return fmt.Errorf("equipment coin protection: %w", err)
		}
		if protected {
			coinDelta = 0
		}
	}
	actor.Coins += coinDelta
	if actor.Coins < 0 {
		actor.Coins = 0
	}

	fragDelta := scratch.Deltas.Fragments
	if fragDelta > 0 {
		boost, err := o.equipment.FragmentsBoost(ctx, actor.UserID)
		if err != nil {
			return fmt.Errorf("equipment fragment boost: %w", err)
		}
		fragDelta += boost
	}
	actor.Fragments += fragDelta
	if actor.Fragments < 0 {
		actor.Fragments = 0
	}

	actor.XP += scratch.Deltas.XP
	if actor.XP < 0 {
		actor.XP = 0
	}
	actor.Gems += scratch.Deltas.Gems
	if actor.Gems < 0 {
		actor.Gems = 0
	}

	if err := o.store.PutProfile(ctx, *actor); err != nil {
		return errors.Wrap(errors.CodeStoreUnavailable, "persist profile", err)
	}

	for _, item := range scratch.Items {
		if err := o.store.AddInventoryItem(ctx, actor.UserID, storage.InventoryKindItem, item, 1); err != nil {
			return errors.Wrap(errors.CodeStoreUnavailable, "persist item", err)
		}
	}
	for _, buff := range scratch.Buffs {
		if err := o.store.AddInventoryItem(ctx, actor.UserID, storage.InventoryKindBuff, buff, 1); err != nil {
			return errors.Wrap(errors.CodeStoreUnavailable, "persist buff", err)
		}
	}
	for _, debuff := range scratch.Debuffs {
		if err := o.store.AddInventoryItem(ctx, actor.UserID, storage.InventoryKindDebuff, debuff, 1); err != nil {
			return errors.Wrap(errors.CodeStoreUnavailable, "persist debuff", err)
		}
	}
	return nil
}

func (o *Orchestrator) sleightDelta(ctx context.Context, userID string, kind dice.Kind) (int, error) {
	var delta int
	switch kind {
	case dice.KindCritSuccess:
		delta = sleightCritSuccess
	case dice.KindSuccess:
		delta = sleightSuccess
	case dice.KindCritFail:
		delta = sleightCritFail
	}
	if kind.Succeeded() {
		bonus, err := o.equipment.SleightBonus(ctx, userID)
		if err != nil {
			return 0, fmt.Errorf("equipment sleight bonus: %w", err)
		}
		delta += bonus
	}
	return delta, nil
}
