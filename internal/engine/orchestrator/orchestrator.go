// Package orchestrator drives the run lifecycle: starting runs, resolving
// actions, advancing scenes, and sweeping expired turns.
package orchestrator

import (
	"context"
	"encoding/json"
	"log"
	"math/rand"
	"time"

	"github.com/emberline/saga/internal/content"
	"github.com/emberline/saga/internal/engine/domain"
	"github.com/emberline/saga/internal/engine/equipment"
	"github.com/emberline/saga/internal/engine/route"
	"github.com/emberline/saga/internal/id"
	"github.com/emberline/saga/internal/platform/metrics"
	"github.com/emberline/saga/internal/random"
	"github.com/emberline/saga/internal/storage"
)

// Orchestrator coordinates stores, content, equipment, and the routing
// registries. It is safe for concurrent use across runs; within one run,
// callers are serialized by turn validation, not by a lock.
type Orchestrator struct {
	store     storage.Store
	content   content.Provider
	equipment equipment.Provider
	static    *route.StaticRegistry
	weighted  *route.WeightedRegistry
	metrics   *metrics.Engine

	rng   *rand.Rand
	now   func() time.Time
	newID func() (string, error)
}

// Config carries the orchestrator dependencies. Store, Content, and
// Equipment are required; the rest default.
type Config struct {
	Store     storage.Store
	Content   content.Provider
	Equipment equipment.Provider
	Static    *route.StaticRegistry
	Weighted  *route.WeightedRegistry
	Metrics   *metrics.Engine

	Rng   *rand.Rand
	Now   func() time.Time
	NewID func() (string, error)
}

// New builds an orchestrator, filling defaults for optional dependencies.
func New(cfg Config) *Orchestrator {
	o := &Orchestrator{
		store:     cfg.Store,
		content:   cfg.Content,
		equipment: cfg.Equipment,
		static:    cfg.Static,
		weighted:  cfg.Weighted,
		metrics:   cfg.Metrics,
		rng:       cfg.Rng,
		now:       cfg.Now,
		newID:     cfg.NewID,
	}
	if o.equipment == nil {
		o.equipment = equipment.NoopProvider{}
	}
	if o.static == nil {
		o.static = route.NewStaticRegistry(nil)
	}
	if o.weighted == nil {
		o.weighted = route.NewWeightedRegistry(nil)
	}
	if o.metrics == nil {
		o.metrics = metrics.New()
	}
	if o.rng == nil {
		o.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if o.now == nil {
		o.now = time.Now
	}
	if o.newID == nil {
		o.newID = id.NewID
	}
	return o
}

// StartRun validates the party, resolves the content manifest, and persists
// a new run with its opening audit event.
func (o *Orchestrator) StartRun(ctx context.Context, input domain.StartRunInput) (domain.Run, error) {
	manifest, err := o.content.GetManifest(ctx, input.ContentID)
	if err != nil {
		return domain.Run{}, err
	}
	if input.ContentVersion == "" {
		input.ContentVersion = manifest.Version
	}
	if input.StartScene == "" {
		input.StartScene = manifest.EntryScene
	}
	input.StartScene = route.NormalizeSceneCode(input.StartScene)
	if input.Seed == 0 {
		seed, err := random.NewSeed()
		if err != nil {
			return domain.Run{}, err
		}
		input.Seed = seed
	}

	run, err := domain.StartRun(input, o.now, o.newID)
	if err != nil {
		return domain.Run{}, err
	}
	if err := o.store.PutRun(ctx, run); err != nil {
		return domain.Run{}, err
	}
	o.appendEvent(ctx, run.ID, "", domain.TypeRunStarted, map[string]any{
		"content_id":  run.ContentID,
		"start_scene": run.SceneID,
		"party_size":  len(run.PartyIDs),
	})
	return run, nil
}

// appendEvent writes one audit event. Audit failures are logged, never
// propagated: the log must not veto state that is already committed.
func (o *Orchestrator) appendEvent(ctx context.Context, runID, userID string, eventType domain.EventType, payload any) {
	raw, err := json.Marshal(payload)
	if err != nil {
		log.Printf("marshal %s event for run %s: %v", eventType, runID, err)
		return
	}
	eventID, err := o.newID()
	if err != nil {
		log.Printf("generate event id for run %s: %v", runID, err)
		return
	}
	event := domain.Event{
		ID:          eventID,
		RunID:       runID,
		UserID:      userID,
		Type:        eventType,
		PayloadJSON: raw,
		At:          o.now().UTC(),
	}
	if err := o.store.AppendEvent(ctx, event); err != nil {
		log.Printf("append %s event for run %s: %v", eventType, runID, err)
	}
}
