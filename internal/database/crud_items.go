// TripSync - Group Trip Planning with Real-Time Coordination
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tripsync

package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/tomtom215/tripsync/internal/metrics"
	"github.com/tomtom215/tripsync/internal/models"
)

// CreateGroceryItem persists a grocery-list entry.
func (db *DB) CreateGroceryItem(ctx context.Context, item *models.GroceryItem) (*models.GroceryItem, error) {
	start := time.Now()
	defer metrics.ObserveQuery("insert", "grocery_items", start)

	row := db.conn.QueryRowContext(ctx,
		`INSERT INTO grocery_items (trip_id, name, quantity, added_by)
		 VALUES (?, ?, ?, ?) RETURNING id, created_at`,
		item.TripID, item.Name, item.Quantity, item.AddedBy,
	)
	if err := row.Scan(&item.ID, &item.CreatedAt); err != nil {
		return nil, fmt.Errorf("insert grocery item: %w", err)
	}
	return item, nil
}

// SetGroceryItemCompleted flips the completed flag; unknown IDs are ErrNotFound.
func (db *DB) SetGroceryItemCompleted(ctx context.Context, id int64, completed bool) error {
	start := time.Now()
	defer metrics.ObserveQuery("update", "grocery_items", start)

	res, err := db.conn.ExecContext(ctx,
		`UPDATE grocery_items SET completed = ? WHERE id = ?`, completed, id)
	return checkAffected(res, err, "grocery item", id)
}

// ListGroceryItems returns the trip's grocery list in creation order.
func (db *DB) ListGroceryItems(ctx context.Context, tripID int64) ([]*models.GroceryItem, error) {
	start := time.Now()
	defer metrics.ObserveQuery("select", "grocery_items", start)

	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, trip_id, name, quantity, completed, added_by, created_at
		 FROM grocery_items WHERE trip_id = ? ORDER BY id`, tripID)
	if err != nil {
		return nil, fmt.Errorf("list grocery items: %w", err)
	}
	defer rows.Close() //nolint:errcheck // read-only cursor

	var items []*models.GroceryItem
	for rows.Next() {
		var item models.GroceryItem
		if err := rows.Scan(&item.ID, &item.TripID, &item.Name, &item.Quantity,
			&item.Completed, &item.AddedBy, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan grocery item: %w", err)
		}
		items = append(items, &item)
	}
	return items, rows.Err()
}

// CreatePackingItem persists a packing-list entry.
func (db *DB) CreatePackingItem(ctx context.Context, item *models.PackingItem) (*models.PackingItem, error) {
	start := time.Now()
	defer metrics.ObserveQuery("insert", "packing_items", start)

	row := db.conn.QueryRowContext(ctx,
		`INSERT INTO packing_items (trip_id, name, added_by)
		 VALUES (?, ?, ?) RETURNING id, created_at`,
		item.TripID, item.Name, item.AddedBy,
	)
	if err := row.Scan(&item.ID, &item.CreatedAt); err != nil {
		return nil, fmt.Errorf("insert packing item: %w", err)
	}
	return item, nil
}

// SetPackingItemPacked flips the packed flag; unknown IDs are ErrNotFound.
func (db *DB) SetPackingItemPacked(ctx context.Context, id int64, packed bool) error {
	start := time.Now()
	defer metrics.ObserveQuery("update", "packing_items", start)

	res, err := db.conn.ExecContext(ctx,
		`UPDATE packing_items SET packed = ? WHERE id = ?`, packed, id)
	return checkAffected(res, err, "packing item", id)
}

// ListPackingItems returns the trip's packing list in creation order.
func (db *DB) ListPackingItems(ctx context.Context, tripID int64) ([]*models.PackingItem, error) {
	start := time.Now()
	defer metrics.ObserveQuery("select", "packing_items", start)

	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, trip_id, name, packed, added_by, created_at
		 FROM packing_items WHERE trip_id = ? ORDER BY id`, tripID)
	if err != nil {
		return nil, fmt.Errorf("list packing items: %w", err)
	}
	defer rows.Close() //nolint:errcheck // read-only cursor

	var items []*models.PackingItem
	for rows.Next() {
		var item models.PackingItem
		if err := rows.Scan(&item.ID, &item.TripID, &item.Name, &item.Packed,
			&item.AddedBy, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan packing item: %w", err)
		}
		items = append(items, &item)
	}
	return items, rows.Err()
}

// CreateExpense persists a shared expense.
func (db *DB) CreateExpense(ctx context.Context, expense *models.Expense) (*models.Expense, error) {
	start := time.Now()
	defer metrics.ObserveQuery("insert", "expenses", start)

	if expense.Currency == "" {
		expense.Currency = "USD"
	}

	row := db.conn.QueryRowContext(ctx,
		`INSERT INTO expenses (trip_id, paid_by, description, amount_cents, currency)
		 VALUES (?, ?, ?, ?, ?) RETURNING id, created_at`,
		expense.TripID, expense.PaidBy, expense.Description, expense.AmountCents, expense.Currency,
	)
	if err := row.Scan(&expense.ID, &expense.CreatedAt); err != nil {
		return nil, fmt.Errorf("insert expense: %w", err)
	}
	return expense, nil
}

// ListExpenses returns the trip's expenses, newest first.
func (db *DB) ListExpenses(ctx context.Context, tripID int64) ([]*models.Expense, error) {
	start := time.Now()
	defer metrics.ObserveQuery("select", "expenses", start)

	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, trip_id, paid_by, description, amount_cents, currency, created_at
		 FROM expenses WHERE trip_id = ? ORDER BY id DESC`, tripID)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	defer rows.Close() //nolint:errcheck // read-only cursor

	var expenses []*models.Expense
	for rows.Next() {
		var e models.Expense
		if err := rows.Scan(&e.ID, &e.TripID, &e.PaidBy, &e.Description,
			&e.AmountCents, &e.Currency, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan expense: %w", err)
		}
		expenses = append(expenses, &e)
	}
	return expenses, rows.Err()
}

// checkAffected converts a zero-row UPDATE into ErrNotFound.
func checkAffected(res sql.Result, err error, entity string, id int64) error {
	if err != nil {
		return fmt.Errorf("update %s %d: %w", entity, id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update %s %d: %w", entity, id, err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}
