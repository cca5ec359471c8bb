package orchestrator

import (
	"context"
	"fmt"
	"log"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/emberline/saga/internal/core/dice"
	"github.com/emberline/saga/internal/engine/domain"
	"github.com/emberline/saga/internal/storage"
)

// sweepBatchSize caps the number of expired runs handled per sweep pass.
const sweepBatchSize = 100

// NotificationKindAfkForced marks outbox records produced by the sweep.
const NotificationKindAfkForced = "afk_forced"

// SweepResult summarizes one sweep pass.
type SweepResult struct {
	Swept  int
	Failed int
}

// ProcessAfkTimeouts force-resolves every run whose turn expiry has
// elapsed. Each run is re-fetched and re-checked before resolution so an
// overlapping sweep never double-processes a timeout the first pass already
// cleared. A failure on one run is logged and counted; the sweep continues.
func (o *Orchestrator) ProcessAfkTimeouts(ctx context.Context, now time.Time) (SweepResult, error) {
	ctx, span := tracer.Start(ctx, "orchestrator.ProcessAfkTimeouts")
	defer span.End()

	o.metrics.SweepRuns.Inc()

	expired, err := o.store.ListExpiredRuns(ctx, now, sweepBatchSize)
	if err != nil {
		return SweepResult{}, fmt.Errorf("list expired runs: %w", err)
	}

	var result SweepResult
	for _, stale := range expired {
		if err := o.forceResolveTimeout(ctx, stale.ID, now); err != nil {
			log.Printf("afk sweep: run %s: %v", stale.ID, err)
			o.metrics.SweepFailures.Inc()
			result.Failed++
			continue
		}
		result.Swept++
	}
	span.SetAttributes(
		attribute.Int("sweep.swept", result.Swept),
		attribute.Int("sweep.failed", result.Failed),
	)
	return result, nil
}

func (o *Orchestrator) forceResolveTimeout(ctx context.Context, runID string, now time.Time) error {
	// Re-fetch: the listing snapshot may be stale by the time this run is
	// reached, and a concurrent sweep may already have cleared the timeout.
	run, err := o.store.GetRun(ctx, runID)
	if err != nil {
		return fmt.Errorf("reload run: %w", err)
	}
	if run.TurnExpiresAt == nil || run.TurnExpiresAt.After(now) {
		return nil
	}
	userID := run.ActiveUserID
	if userID == "" {
		return nil
	}

	scene, err := o.content.GetScene(ctx, run.ContentID, run.SceneID)
	if err != nil {
		return fmt.Errorf("load scene: %w", err)
	}
	round, _, ok := scene.Round(run.RoundID)
	if !ok {
		return fmt.Errorf("round %s not found", run.RoundID)
	}
	action, ok := round.DefaultAction()
	if !ok {
		return fmt.Errorf("round %s has no actions", run.RoundID)
	}

	// The miss counter is persisted before the forced action so it survives
	// the run rewrite inside HandleAction, which skips the AFK reset for
	// autop submissions.
	if run.AfkMisses == nil {
		run.AfkMisses = make(map[string]int)
	}
	run.AfkMisses[userID]++
	misses := run.AfkMisses[userID]
	run.UpdatedAt = o.now().UTC()
	if err := o.store.PutRun(ctx, run); err != nil {
		return fmt.Errorf("persist afk miss: %w", err)
	}

	if _, err := o.HandleAction(ctx, ActionRequest{
		RunID:      run.ID,
		UserID:     userID,
		ActionID:   action.ID,
		ForcedKind: dice.KindFail,
		Autop:      true,
		Reason:     "afk_timeout",
	}); err != nil {
		return fmt.Errorf("force resolve: %w", err)
	}
	o.metrics.SweepTimeouts.Inc()

	o.appendEvent(ctx, run.ID, userID, domain.TypeAfkForced, domain.AfkForcedPayload{
		UserID:   userID,
		ActionID: action.ID,
		Misses:   misses,
	})

	notificationID, err := o.newID()
	if err != nil {
		return fmt.Errorf("generate notification id: %w", err)
	}
	notification := storage.Notification{
		ID:        notificationID,
		RunID:     run.ID,
		UserID:    userID,
		Kind:      NotificationKindAfkForced,
		Body:      fmt.Sprintf("your turn timed out and %q was played for you", action.ID),
		CreatedAt: o.now().UTC(),
	}
	if err := o.store.EnqueueNotification(ctx, notification); err != nil {
		return fmt.Errorf("enqueue notification: %w", err)
	}
	return nil
}
