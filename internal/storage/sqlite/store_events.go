package sqlite

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/emberline/saga/internal/engine/domain"
	"github.com/emberline/saga/internal/storage"
	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"
)

// AppendEvent inserts one audit event. Events are never updated.
func (s *Store) AppendEvent(ctx context.Context, event domain.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.ready(); err != nil {
		return err
	}
	if strings.TrimSpace(event.ID) == "" {
		return fmt.Errorf("event id is required")
	}
	if strings.TrimSpace(event.RunID) == "" {
		return fmt.Errorf("run id is required")
	}
	payload := event.PayloadJSON
	if len(payload) == 0 {
		payload = []byte("{}")
	}

	_, err := s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO events (id, run_id, user_id, type, payload, at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		event.ID,
		event.RunID,
		event.UserID,
		string(event.Type),
		string(payload),
		toMillis(event.At),
	)
	if err != nil {
		if isEventUniqueViolation(err) {
			return storage.ErrAlreadyExists
		}
		return fmt.Errorf("append event: %w", err)
	}
	return nil
}

// ListEvents returns matching events ordered by time ascending.
func (s *Store) ListEvents(ctx context.Context, query storage.EventQuery) ([]domain.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := s.ready(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(query.RunID) == "" {
		return nil, fmt.Errorf("run id is required")
	}

	clauses := []string{"run_id = ?"}
	args := []any{query.RunID}
	if len(query.Types) > 0 {
		placeholders := make([]string, len(query.Types))
		for i, eventType := range query.Types {
			placeholders[i] = "?"
			args = append(args, string(eventType))
		}
		clauses = append(clauses, "type IN ("+strings.Join(placeholders, ", ")+")")
	}
	if !query.Since.IsZero() {
		clauses = append(clauses, "at >= ?")
		args = append(args, toMillis(query.Since))
	}
	if !query.Until.IsZero() {
		clauses = append(clauses, "at <= ?")
		args = append(args, toMillis(query.Until))
	}

	stmt := `SELECT id, run_id, user_id, type, payload, at
	           FROM events
	          WHERE ` + strings.Join(clauses, " AND ") + `
	          ORDER BY at ASC, id ASC`
	if query.Limit > 0 {
		stmt += " LIMIT ?"
		args = append(args, query.Limit)
	}

	rows, err := s.sqlDB.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var events []domain.Event
	for rows.Next() {
		var event domain.Event
		var eventType, payload string
		var at int64
		if err := rows.Scan(&event.ID, &event.RunID, &event.UserID, &eventType, &payload, &at); err != nil {
			return nil, fmt.Errorf("list events: %w", err)
		}
		event.Type = domain.EventType(eventType)
		event.PayloadJSON = []byte(payload)
		event.At = fromMillis(at)
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	return events, nil
}

func isEventUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE:
			return true
		}
	}
	message := strings.ToLower(err.Error())
	return strings.Contains(message, "unique constraint failed") &&
		strings.Contains(message, "events.id")
}
