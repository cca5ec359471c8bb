package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/emberline/saga/internal/storage"
)

// GetGuildSettings returns the settings for one guild. Missing guilds
// resolve to zero-valued settings so callers never special-case defaults.
func (s *Store) GetGuildSettings(ctx context.Context, guildID string) (storage.GuildSettings, error) {
	if err := ctx.Err(); err != nil {
		return storage.GuildSettings{}, err
	}
	if err := s.ready(); err != nil {
		return storage.GuildSettings{}, err
	}
	guildID = strings.TrimSpace(guildID)
	if guildID == "" {
		return storage.GuildSettings{}, nil
	}

	row := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT guild_id, difficulty_bias, updated_at
		   FROM guild_settings
		  WHERE guild_id = ?`,
		guildID,
	)

	var settings storage.GuildSettings
	var updatedAt int64
	err := row.Scan(&settings.GuildID, &settings.DifficultyBias, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.GuildSettings{GuildID: guildID}, nil
		}
		return storage.GuildSettings{}, fmt.Errorf("get guild settings: %w", err)
	}
	settings.UpdatedAt = fromMillis(updatedAt)
	return settings, nil
}

// PutGuildSettings upserts one guild settings record.
func (s *Store) PutGuildSettings(ctx context.Context, settings storage.GuildSettings) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.ready(); err != nil {
		return err
	}
	if strings.TrimSpace(settings.GuildID) == "" {
		return fmt.Errorf("guild id is required")
	}

	_, err := s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO guild_settings (guild_id, difficulty_bias, updated_at)
		 VALUES (?, ?, ?)
		 ON CONFLICT (guild_id) DO UPDATE SET
		   difficulty_bias = excluded.difficulty_bias,
		   updated_at = excluded.updated_at`,
		settings.GuildID,
		settings.DifficultyBias,
		toMillis(settings.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("put guild settings: %w", err)
	}
	return nil
}
