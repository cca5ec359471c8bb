package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/emberline/saga/internal/engine/domain"
	"github.com/emberline/saga/internal/storage"
)

// GetProfile returns one profile by user id.
func (s *Store) GetProfile(ctx context.Context, userID string) (domain.Profile, error) {
	if err := ctx.Err(); err != nil {
		return domain.Profile{}, err
	}
	if err := s.ready(); err != nil {
		return domain.Profile{}, err
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return domain.Profile{}, fmt.Errorf("user id is required")
	}

	row := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT user_id, hp, hp_max, focus, focus_max, coins, gems, fragments,
		        xp, downed_at, level, class, role
		   FROM profiles
		  WHERE user_id = ?`,
		userID,
	)

	var profile domain.Profile
	var downedAt sql.NullInt64
	err := row.Scan(
		&profile.UserID,
		&profile.HP,
		&profile.HPMax,
		&profile.Focus,
		&profile.FocusMax,
		&profile.Coins,
		&profile.Gems,
		&profile.Fragments,
		&profile.XP,
		&downedAt,
		&profile.Level,
		&profile.Class,
		&profile.Role,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Profile{}, storage.ErrNotFound
		}
		return domain.Profile{}, fmt.Errorf("get profile: %w", err)
	}
	if downedAt.Valid {
		at := fromMillis(downedAt.Int64)
		profile.DownedAt = &at
	}
	return profile, nil
}

// PutProfile upserts one profile record.
func (s *Store) PutProfile(ctx context.Context, profile domain.Profile) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.ready(); err != nil {
		return err
	}
	if strings.TrimSpace(profile.UserID) == "" {
		return fmt.Errorf("user id is required")
	}

	var downedAt sql.NullInt64
	if profile.DownedAt != nil {
		downedAt = sql.NullInt64{Int64: toMillis(*profile.DownedAt), Valid: true}
	}

	_, err := s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO profiles (
		   user_id, hp, hp_max, focus, focus_max, coins, gems, fragments,
		   xp, downed_at, level, class, role
		 ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (user_id) DO UPDATE SET
		   hp = excluded.hp,
		   hp_max = excluded.hp_max,
		   focus = excluded.focus,
		   focus_max = excluded.focus_max,
		   coins = excluded.coins,
		   gems = excluded.gems,
		   fragments = excluded.fragments,
		   xp = excluded.xp,
		   downed_at = excluded.downed_at,
		   level = excluded.level,
		   class = excluded.class,
		   role = excluded.role`,
		profile.UserID,
		profile.HP,
		profile.HPMax,
		profile.Focus,
		profile.FocusMax,
		profile.Coins,
		profile.Gems,
		profile.Fragments,
		profile.XP,
		downedAt,
		profile.Level,
		profile.Class,
		profile.Role,
	)
	if err != nil {
		return fmt.Errorf("put profile: %w", err)
	}
	return nil
}
