package domain

import (
	"fmt"
	"time"

	"github.com/emberline/saga/internal/errors"
	"github.com/emberline/saga/internal/id"
)

// TurnTTL is how long the active player has to act before the AFK sweep
// force-resolves their turn.
const TurnTTL = 24 * time.Hour

// SleightHistoryLimit bounds the per-run sleight delta history.
const SleightHistoryLimit = 50

var (
	// ErrEmptyParty indicates a run was started with no party members.
	ErrEmptyParty = errors.New(errors.CodeRunEmptyParty, "party is required")
	// ErrEmptyContentID indicates a run was started without content.
	ErrEmptyContentID = errors.New(errors.CodeRunEmptyContentID, "content id is required")
)

// SleightDelta records one sleight score change.
type SleightDelta struct {
	UserID string    `json:"user_id"`
	Delta  int       `json:"delta"`
	At     time.Time `json:"at"`
}

// Run is one active multiplayer session progressing through scenes.
//
// Runs are created by StartRun and mutated only by the orchestrator. They are
// never deleted: campaign end is a content-defined terminal scene, not a run
// state.
type Run struct {
	ID             string
	GuildID        string
	ChannelID      string
	PartyIDs       []string
	ContentID      string
	ContentVersion string
	SceneID        string
	RoundID        string
	Transitions    int
	Seed           int64
	Flags          map[string]string
	Sleight        int
	SleightHistory []SleightDelta
	TurnOrder      []string
	ActiveUserID   string
	TurnExpiresAt  *time.Time
	AfkMisses      map[string]int
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// StartRunInput describes the metadata needed to start a run.
type StartRunInput struct {
	GuildID        string
	ChannelID      string
	PartyIDs       []string
	ContentID      string
	ContentVersion string
	StartScene     string
	Seed           int64
}

// StartRun creates a new run with a generated ID and timestamps.
//
// Party ids are deduplicated preserving first-seen order; if dedup would
// empty the list the raw list is kept. Turn order is the deduped party, the
// active user is the first member, and the turn expiry is set iff an active
// user exists.
func StartRun(input StartRunInput, now func() time.Time, idGenerator func() (string, error)) (Run, error) {
	if now == nil {
		now = time.Now
	}
	if idGenerator == nil {
		idGenerator = id.NewID
	}

	if len(input.PartyIDs) == 0 {
		return Run{}, ErrEmptyParty
	}
	if input.ContentID == "" {
		return Run{}, ErrEmptyContentID
	}

	party := dedupePreservingOrder(input.PartyIDs)
	if len(party) == 0 {
		party = input.PartyIDs
	}

	runID, err := idGenerator()
	if err != nil {
		return Run{}, fmt.Errorf("generate run id: %w", err)
	}

	createdAt := now().UTC()
	run := Run{
		ID:             runID,
		GuildID:        input.GuildID,
		ChannelID:      input.ChannelID,
		PartyIDs:       party,
		ContentID:      input.ContentID,
		ContentVersion: input.ContentVersion,
		SceneID:        input.StartScene,
		RoundID:        input.StartScene + "-R1",
		Seed:           input.Seed,
		Flags:          make(map[string]string),
		TurnOrder:      append([]string(nil), party...),
		AfkMisses:      make(map[string]int),
		CreatedAt:      createdAt,
		UpdatedAt:      createdAt,
	}
	if len(run.TurnOrder) > 0 {
		run.ActiveUserID = run.TurnOrder[0]
		expiry := createdAt.Add(TurnTTL)
		run.TurnExpiresAt = &expiry
	}
	return run, nil
}

func dedupePreservingOrder(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, value := range ids {
		if value == "" || seen[value] {
			continue
		}
		seen[value] = true
		out = append(out, value)
	}
	return out
}

// IsMember reports whether the user is part of the turn order.
func (r *Run) IsMember(userID string) bool {
	for _, member := range r.TurnOrder {
		if member == userID {
			return true
		}
	}
	return false
}

// MergeFlags merges transient flags into the run's flag map. The merge is
// append-only: existing keys are overwritten by new values but never removed.
func (r *Run) MergeFlags(flags map[string]string) {
	if len(flags) == 0 {
		return
	}
	if r.Flags == nil {
		r.Flags = make(map[string]string, len(flags))
	}
	for key, value := range flags {
		r.Flags[key] = value
	}
}

// FlagTruthy reports whether a flag is set to a truthy value.
func (r *Run) FlagTruthy(key string) bool {
	value, ok := r.Flags[key]
	if !ok {
		return false
	}
	return value != "" && value != "false" && value != "0"
}

// RecordSleight applies a sleight delta and appends it to the bounded
// history. Zero deltas still count as history entries.
func (r *Run) RecordSleight(userID string, delta int, at time.Time) {
	r.Sleight += delta
	r.SleightHistory = append(r.SleightHistory, SleightDelta{
		UserID: userID,
		Delta:  delta,
		At:     at.UTC(),
	})
	if len(r.SleightHistory) > SleightHistoryLimit {
		r.SleightHistory = r.SleightHistory[len(r.SleightHistory)-SleightHistoryLimit:]
	}
}

// CompleteScene moves the run to the next scene, resetting the round pointer
// and zeroing the sleight score. This is the only place sleight resets.
func (r *Run) CompleteScene(target string) {
	r.SceneID = target
	r.RoundID = target + "-R1"
	r.Transitions++
	r.Sleight = 0
}

// AdvanceTurn rotates the active user to the next turn-order member that is
// not downed, refreshing the turn expiry. If an entire lap finds no eligible
// member the active user is kept, but the expiry still refreshes so a fully
// downed party cannot lock the turn forever.
func (r *Run) AdvanceTurn(downed func(userID string) bool, now time.Time) {
	if len(r.TurnOrder) == 0 {
		r.ActiveUserID = ""
		r.TurnExpiresAt = nil
		return
	}

	start := 0
	for i, member := range r.TurnOrder {
		if member == r.ActiveUserID {
			start = i
			break
		}
	}
	for offset := 1; offset <= len(r.TurnOrder); offset++ {
		candidate := r.TurnOrder[(start+offset)%len(r.TurnOrder)]
		if downed != nil && downed(candidate) {
			continue
		}
		r.ActiveUserID = candidate
		break
	}
	expiry := now.UTC().Add(TurnTTL)
	r.TurnExpiresAt = &expiry
}
