// Package storage defines persistence contracts for engine state.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/emberline/saga/internal/engine/domain"
)

var (
	// ErrNotFound indicates a requested record is missing.
	ErrNotFound = errors.New("record not found")
	// ErrAlreadyExists indicates a uniqueness-constrained record already exists.
	ErrAlreadyExists = errors.New("record already exists")
)

// RunStore persists run state.
type RunStore interface {
	PutRun(ctx context.Context, run domain.Run) error
	GetRun(ctx context.Context, id string) (domain.Run, error)
	// ListExpiredRuns returns runs whose turn expiry is at or before now,
	// oldest expiry first.
	ListExpiredRuns(ctx context.Context, now time.Time, limit int) ([]domain.Run, error)
}

// ProfileStore persists long-lived player resource pools.
type ProfileStore interface {
	GetProfile(ctx context.Context, userID string) (domain.Profile, error)
	PutProfile(ctx context.Context, profile domain.Profile) error
}

// EventQuery filters the audit log.
type EventQuery struct {
	RunID string
	Types []domain.EventType
	Since time.Time
	Until time.Time
	Limit int
}

// EventStore is the append-only audit log.
type EventStore interface {
	AppendEvent(ctx context.Context, event domain.Event) error
	// ListEvents returns matching events ordered by time ascending.
	ListEvents(ctx context.Context, query EventQuery) ([]domain.Event, error)
}

// GuildSettings carries per-guild engine tuning.
type GuildSettings struct {
	GuildID        string
	DifficultyBias float64
	UpdatedAt      time.Time
}

// GuildSettingsStore persists per-guild settings. Missing guilds resolve to
// zero-valued settings, not ErrNotFound.
type GuildSettingsStore interface {
	GetGuildSettings(ctx context.Context, guildID string) (GuildSettings, error)
	PutGuildSettings(ctx context.Context, settings GuildSettings) error
}

// Notification is one outbox record for delivery outside the engine.
type Notification struct {
	ID        string
	RunID     string
	UserID    string
	Kind      string
	Body      string
	CreatedAt time.Time
	SentAt    *time.Time
}

// NotificationStore is the delivery outbox.
type NotificationStore interface {
	EnqueueNotification(ctx context.Context, notification Notification) error
	ListPendingNotifications(ctx context.Context, limit int) ([]Notification, error)
	MarkNotificationSent(ctx context.Context, id string, sentAt time.Time) error
}

// Inventory entry kinds.
const (
	InventoryKindItem   = "item"
	InventoryKindBuff   = "buff"
	InventoryKindDebuff = "debuff"
)

// InventoryItem is one per-user inventory entry.
type InventoryItem struct {
	UserID    string
	Kind      string
	Name      string
	Quantity  int
	UpdatedAt time.Time
}

// InventoryStore persists per-user item, buff, and debuff lists.
type InventoryStore interface {
	// AddInventoryItem adds quantity to the named entry, creating it when
	// missing.
	AddInventoryItem(ctx context.Context, userID, kind, name string, quantity int) error
	ListInventory(ctx context.Context, userID string) ([]InventoryItem, error)
}

// Store is the full persistence surface the orchestrator depends on.
type Store interface {
	RunStore
	ProfileStore
	EventStore
	GuildSettingsStore
	NotificationStore
	InventoryStore
}
