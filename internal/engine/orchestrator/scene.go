package orchestrator

import (
	"context"

	"github.com/emberline/saga/internal/engine/domain"
	"github.com/emberline/saga/internal/engine/route"
	"github.com/emberline/saga/internal/errors"
	"github.com/emberline/saga/internal/storage"
)

// Party-wide scene-completion bonuses.
const (
	fullPartyBonusCoins = 25
	fullPartyBonusXP    = 50

	loneSurvivorBonusCoins = 40
	loneSurvivorBonusXP    = 75
)

// defaultArrivalTarget is the hardcoded fallback when a scene declares no
// usable arrival. The legacy letter code is resolved through the alias
// table once, here, not on the hot path.
var defaultArrivalTarget = route.NormalizeSceneCode("2A")

// Branch engine labels used in audit payloads.
const (
	engineWeighted = "weighted"
	engineStatic   = "static"
	engineArrivals = "arrivals"
	engineDefault  = "default"
)

// completeScene applies threshold and party rewards, resolves the next
// scene, and moves the run. The round pointer resets to the new scene's
// first round and the sleight score drops to zero.
func (o *Orchestrator) completeScene(ctx context.Context, run *domain.Run, scene domain.Scene, actorID string, profiles map[string]*domain.Profile) (string, error) {
	finalSleight := run.Sleight

	if err := o.applySceneRewards(ctx, run, scene, actorID, profiles); err != nil {
		return "", err
	}

	target, engine, fallback, routeCtx, err := o.resolveNextScene(ctx, run, scene, actorID, profiles)
	if err != nil {
		return "", err
	}

	payload := domain.BranchDecisionPayload{
		Engine:   engine,
		SceneID:  run.SceneID,
		Target:   target,
		Fallback: fallback,
	}
	if routeCtx != nil {
		payload.Context = routeCtx.Snapshot()
	}
	o.appendEvent(ctx, run.ID, actorID, domain.TypeBranchDecision, payload)

	completed := run.SceneID
	run.CompleteScene(target)
	o.metrics.SceneTransitions.Inc()
	o.appendEvent(ctx, run.ID, actorID, domain.TypeSceneCompleted, domain.SceneCompletedPayload{
		SceneID:      completed,
		NextSceneID:  target,
		FinalSleight: finalSleight,
	})
	return target, nil
}

// applySceneRewards grants the highest met sleight threshold to the actor,
// then the party-wide bonus: full-party survival pays the actor, a sole
// standing member collects the lone-survivor bonus instead.
func (o *Orchestrator) applySceneRewards(ctx context.Context, run *domain.Run, scene domain.Scene, actorID string, profiles map[string]*domain.Profile) error {
	actor := profiles[actorID]
	if actor == nil {
		return nil
	}

	var best *domain.ThresholdReward
	for i := range scene.ThresholdRewards {
		reward := &scene.ThresholdRewards[i]
		if run.Sleight < reward.Threshold {
			continue
		}
		if best == nil || reward.Threshold > best.Threshold {
			best = reward
		}
	}
	if best != nil {
		actor.Coins += best.Coins
		actor.XP += best.XP
		actor.Fragments += best.Fragments
	}

	standing := make([]*domain.Profile, 0, len(run.PartyIDs))
	for _, userID := range run.PartyIDs {
		profile, ok := profiles[userID]
		if !ok {
			continue
		}
		if !profile.Downed() {
			standing = append(standing, profile)
		}
	}

	touched := map[string]*domain.Profile{actor.UserID: actor}
	switch {
	case len(standing) == len(profiles) && len(standing) > 0:
		actor.Coins += fullPartyBonusCoins
		actor.XP += fullPartyBonusXP
	case len(standing) == 1:
		survivor := standing[0]
		survivor.Coins += loneSurvivorBonusCoins
		survivor.XP += loneSurvivorBonusXP
		touched[survivor.UserID] = survivor
	}

	for _, profile := range touched {
		if err := o.store.PutProfile(ctx, *profile); err != nil {
			return errors.Wrap(errors.CodeStoreUnavailable, "persist scene rewards", err)
		}
	}
	return nil
}

// resolveNextScene picks the next scene id. Registered checkpoint routes
// win over static routes, which win over the content's arrivals table; the
// hardcoded default is last. The returned context is nil when no routing
// engine evaluated one.
func (o *Orchestrator) resolveNextScene(ctx context.Context, run *domain.Run, scene domain.Scene, actorID string, profiles map[string]*domain.Profile) (string, string, bool, *route.Context, error) {
	hasWeighted := o.weighted.Has(run.SceneID)
	hasStatic := o.static.Has(run.SceneID)

	if hasWeighted || hasStatic {
		routeCtx, err := o.buildRouteContext(ctx, run, scene, actorID, profiles)
		if err != nil {
			return "", "", false, nil, err
		}
		if hasWeighted {
			decision := o.weighted.Resolve(run.SceneID, routeCtx)
			return decision.Target, engineWeighted, decision.Fallback, routeCtx, nil
		}
		decision := o.static.Resolve(run.SceneID, routeCtx)
		return decision.Target, engineStatic, decision.Fallback, routeCtx, nil
	}

	var elseTarget string
	for _, arrival := range scene.Arrivals {
		if arrival.Flag == domain.ArrivalElse {
			if elseTarget == "" {
				elseTarget = arrival.Target
			}
			continue
		}
		if run.FlagTruthy(arrival.Flag) {
			return arrival.Target, engineArrivals, false, nil, nil
		}
	}
	if elseTarget != "" {
		return elseTarget, engineArrivals, true, nil, nil
	}
	return defaultArrivalTarget, engineDefault, true, nil, nil
}

func (o *Orchestrator) buildRouteContext(ctx context.Context, run *domain.Run, scene domain.Scene, actorID string, profiles map[string]*domain.Profile) (*route.Context, error) {
	events, err := o.store.ListEvents(ctx, storage.EventQuery{
		RunID: run.ID,
		Types: []domain.EventType{domain.TypeActionResolved},
	})
	if err != nil {
		return nil, errors.Wrap(errors.CodeStoreUnavailable, "load run history", err)
	}
	history := route.BuildHistory(events)

	items := map[string]int{}
	inventory, err := o.store.ListInventory(ctx, actorID)
	if err != nil {
		return nil, errors.Wrap(errors.CodeStoreUnavailable, "load inventory", err)
	}
	for _, entry := range inventory {
		if entry.Kind == storage.InventoryKindItem {
			items[entry.Name] += entry.Quantity
		}
	}

	var stats route.Stats
	var class, role string
	if actor, ok := profiles[actorID]; ok {
		stats = route.StatsFromProfile(actor)
		class = actor.Class
		role = actor.Role
	}

	routeCtx := route.NewContext(run, actorID, stats, items, len(scene.Rounds)-1, history)
	routeCtx.Class = class
	routeCtx.Role = role

	members := make([]route.PartyMember, 0, len(run.PartyIDs))
	for _, userID := range run.PartyIDs {
		profile, ok := profiles[userID]
		if !ok {
			continue
		}
		members = append(members, route.PartyMember{
			Level:  profile.EffectiveLevel(),
			HP:     profile.HP,
			Downed: profile.Downed(),
		})
	}
	routeCtx.Enhance(members)
	return routeCtx, nil
}
