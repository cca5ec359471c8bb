package sqlite

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/emberline/saga/internal/storage"
)

// AddInventoryItem adds quantity to the named entry, creating it when
// missing.
func (s *Store) AddInventoryItem(ctx context.Context, userID, kind, name string, quantity int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.ready(); err != nil {
		return err
	}
	userID = strings.TrimSpace(userID)
	name = strings.TrimSpace(name)
	if userID == "" {
		return fmt.Errorf("user id is required")
	}
	if name == "" {
		return fmt.Errorf("item name is required")
	}
	switch kind {
	case storage.InventoryKindItem, storage.InventoryKindBuff, storage.InventoryKindDebuff:
	default:
		return fmt.Errorf("unknown inventory kind %q", kind)
	}

	_, err := s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO inventory (user_id, kind, name, quantity, updated_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (user_id, kind, name) DO UPDATE SET
		   quantity = quantity + excluded.quantity,
		   updated_at = excluded.updated_at`,
		userID,
		kind,
		name,
		quantity,
		toMillis(time.Now()),
	)
	if err != nil {
		return fmt.Errorf("add inventory item: %w", err)
	}
	return nil
}

// ListInventory returns every inventory entry for one user.
func (s *Store) ListInventory(ctx context.Context, userID string) ([]storage.InventoryItem, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := s.ready(); err != nil {
		return nil, err
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, fmt.Errorf("user id is required")
	}

	rows, err := s.sqlDB.QueryContext(
		ctx,
		`SELECT user_id, kind, name, quantity, updated_at
		   FROM inventory
		  WHERE user_id = ?
		  ORDER BY kind ASC, name ASC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list inventory: %w", err)
	}
	defer rows.Close()

	var items []storage.InventoryItem
	for rows.Next() {
		var item storage.InventoryItem
		var updatedAt int64
		if err := rows.Scan(&item.UserID, &item.Kind, &item.Name, &item.Quantity, &updatedAt); err != nil {
			return nil, fmt.Errorf("list inventory: %w", err)
		}
		item.UpdatedAt = fromMillis(updatedAt)
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list inventory: %w", err)
	}
	return items, nil
}
