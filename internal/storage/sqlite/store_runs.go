package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/emberline/saga/internal/engine/domain"
	"github.com/emberline/saga/internal/storage"
)

// PutRun upserts one run record. Collection fields are stored as JSON text.
func (s *Store) PutRun(ctx context.Context, run domain.Run) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.ready(); err != nil {
		return err
	}
	if strings.TrimSpace(run.ID) == "" {
		return fmt.Errorf("run id is required")
	}

	partyIDs, err := json.Marshal(run.PartyIDs)
	if err != nil {
		return fmt.Errorf("marshal party ids: %w", err)
	}
	flags, err := json.Marshal(emptyFlagMap(run.Flags))
	if err != nil {
		return fmt.Errorf("marshal flags: %w", err)
	}
	sleightHistory, err := json.Marshal(emptySleightHistory(run.SleightHistory))
	if err != nil {
		return fmt.Errorf("marshal sleight history: %w", err)
	}
	turnOrder, err := json.Marshal(run.TurnOrder)
	if err != nil {
		return fmt.Errorf("marshal turn order: %w", err)
	}
	afkMisses, err := json.Marshal(emptyMissMap(run.AfkMisses))
	if err != nil {
		return fmt.Errorf("marshal afk misses: %w", err)
	}

	var turnExpiresAt sql.NullInt64
	if run.TurnExpiresAt != nil {
		turnExpiresAt = sql.NullInt64{Int64: toMillis(*run.TurnExpiresAt), Valid: true}
	}

	_, err = s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO runs (
		   id, guild_id, channel_id, party_ids, content_id, content_version,
		   scene_id, round_id, transitions, seed, flags, sleight,
		   sleight_history, turn_order, active_user_id, turn_expires_at,
		   afk_misses, created_at, updated_at
		 ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET
		   guild_id = excluded.guild_id,
		   channel_id = excluded.channel_id,
		   party_ids = excluded.party_ids,
		   content_id = excluded.content_id,
		   content_version = excluded.content_version,
		   scene_id = excluded.scene_id,
		   round_id = excluded.round_id,
		   transitions = excluded.transitions,
		   seed = excluded.seed,
		   flags = excluded.flags,
		   sleight = excluded.sleight,
		   sleight_history = excluded.sleight_history,
		   turn_order = excluded.turn_order,
		   active_user_id = excluded.active_user_id,
		   turn_expires_at = excluded.turn_expires_at,
		   afk_misses = excluded.afk_misses,
		   updated_at = excluded.updated_at`,
		run.ID,
		run.GuildID,
		run.ChannelID,
		string(partyIDs),
		run.ContentID,
		run.ContentVersion,
		run.SceneID,
		run.RoundID,
		run.Transitions,
		run.Seed,
		string(flags),
		run.Sleight,
		string(sleightHistory),
		string(turnOrder),
		run.ActiveUserID,
		turnExpiresAt,
		string(afkMisses),
		toMillis(run.CreatedAt),
		toMillis(run.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("put run: %w", err)
	}
	return nil
}

// GetRun returns one run by id.
func (s *Store) GetRun(ctx context.Context, id string) (domain.Run, error) {
	if err := ctx.Err(); err != nil {
		return domain.Run{}, err
	}
	if err := s.ready(); err != nil {
		return domain.Run{}, err
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return domain.Run{}, fmt.Errorf("run id is required")
	}

	row := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT id, guild_id, channel_id, party_ids, content_id, content_version,
		        scene_id, round_id, transitions, seed, flags, sleight,
		        sleight_history, turn_order, active_user_id, turn_expires_at,
		        afk_misses, created_at, updated_at
		   FROM runs
		  WHERE id = ?`,
		id,
	)
	run, err := scanRun(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Run{}, storage.ErrNotFound
		}
		return domain.Run{}, fmt.Errorf("get run: %w", err)
	}
	return run, nil
}

// ListExpiredRuns returns runs whose turn expiry is at or before now.
func (s *Store) ListExpiredRuns(ctx context.Context, now time.Time, limit int) ([]domain.Run, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := s.ready(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be greater than zero")
	}

	rows, err := s.sqlDB.QueryContext(
		ctx,
		`SELECT id, guild_id, channel_id, party_ids, content_id, content_version,
		        scene_id, round_id, transitions, seed, flags, sleight,
		        sleight_history, turn_order, active_user_id, turn_expires_at,
		        afk_misses, created_at, updated_at
		   FROM runs
		  WHERE turn_expires_at IS NOT NULL AND turn_expires_at <= ?
		  ORDER BY turn_expires_at ASC
		  LIMIT ?`,
		toMillis(now),
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list expired runs: %w", err)
	}
	defer rows.Close()

	var runs []domain.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("list expired runs: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list expired runs: %w", err)
	}
	return runs, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (domain.Run, error) {
	var run domain.Run
	var partyIDs, flags, sleightHistory, turnOrder, afkMisses string
	var turnExpiresAt sql.NullInt64
	var createdAt, updatedAt int64

	if err := row.Scan(
		&run.ID,
		&run.GuildID,
		&run.ChannelID,
		&partyIDs,
		&run.ContentID,
		&run.ContentVersion,
		&run.SceneID,
		&run.RoundID,
		&run.Transitions,
		&run.Seed,
		&flags,
		&run.Sleight,
		&sleightHistory,
		&turnOrder,
		&run.ActiveUserID,
		&turnExpiresAt,
		&afkMisses,
		&createdAt,
		&updatedAt,
	); err != nil {
		return domain.Run{}, err
	}

	if err := json.Unmarshal([]byte(partyIDs), &run.PartyIDs); err != nil {
		return domain.Run{}, fmt.Errorf("unmarshal party ids: %w", err)
	}
	if err := json.Unmarshal([]byte(flags), &run.Flags); err != nil {
		return domain.Run{}, fmt.Errorf("unmarshal flags: %w", err)
	}
	if err := json.Unmarshal([]byte(sleightHistory), &run.SleightHistory); err != nil {
		return domain.Run{}, fmt.Errorf("unmarshal sleight history: %w", err)
	}
	if err := json.Unmarshal([]byte(turnOrder), &run.TurnOrder); err != nil {
		return domain.Run{}, fmt.Errorf("unmarshal turn order: %w", err)
	}
	if err := json.Unmarshal([]byte(afkMisses), &run.AfkMisses); err != nil {
		return domain.Run{}, fmt.Errorf("unmarshal afk misses: %w", err)
	}
	if turnExpiresAt.Valid {
		expiry := fromMillis(turnExpiresAt.Int64)
		run.TurnExpiresAt = &expiry
	}
	run.CreatedAt = fromMillis(createdAt)
	run.UpdatedAt = fromMillis(updatedAt)
	return run, nil
}

func emptyFlagMap(flags map[string]string) map[string]string {
	if flags == nil {
		return map[string]string{}
	}
	return flags
}

func emptyMissMap(misses map[string]int) map[string]int {
	if misses == nil {
		return map[string]int{}
	}
	return misses
}

func emptySleightHistory(history []domain.SleightDelta) []domain.SleightDelta {
	if history == nil {
		return []domain.SleightDelta{}
	}
	return history
}
