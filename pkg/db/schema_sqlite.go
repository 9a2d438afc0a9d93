package db

import (
	"context"
	"fmt"

	"gorm.io/gorm"
)

// SQLiteSchema mirrors the goose migrations for the embedded sqlite driver,
// which cannot run the postgres specific DDL (arrays, jsonb, partial indexes
// with casts). Arrays and json columns are stored as TEXT.
var SQLiteSchema = []string{
	`CREATE TABLE IF NOT EXISTS price_list_items (
  id TEXT PRIMARY KEY,
  category_code TEXT NOT NULL,
  name TEXT NOT NULL,
  unit_price_cents INTEGER NOT NULL,
  unit TEXT NOT NULL DEFAULT 'piece',
  active INTEGER NOT NULL DEFAULT 1,
  created_at DATETIME,
  updated_at DATETIME
)`,
	`CREATE TABLE IF NOT EXISTS modifiers (
  code TEXT PRIMARY KEY,
  name TEXT NOT NULL,
  type TEXT NOT NULL,
  value TEXT NOT NULL,
  min_value TEXT,
  max_value TEXT,
  is_discount INTEGER NOT NULL DEFAULT 0,
  is_percentage INTEGER NOT NULL DEFAULT 0,
  category_scope TEXT,
  active INTEGER NOT NULL DEFAULT 1,
  sort_order INTEGER NOT NULL DEFAULT 0,
  created_at DATETIME,
  updated_at DATETIME
)`,
	`CREATE TABLE IF NOT EXISTS item_sessions (
  id TEXT PRIMARY KEY,
  order_id TEXT NOT NULL UNIQUE,
  state TEXT NOT NULL,
  wizard_mode TEXT NOT NULL DEFAULT 'inactive',
  editing_item_id TEXT,
  total_amount_cents INTEGER NOT NULL DEFAULT 0,
  item_count INTEGER NOT NULL DEFAULT 0,
  can_proceed INTEGER NOT NULL DEFAULT 0,
  currency TEXT NOT NULL,
  version INTEGER NOT NULL DEFAULT 1,
  completed_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME
)`,
	`CREATE TABLE IF NOT EXISTS session_items (
  id TEXT PRIMARY KEY,
  session_id TEXT NOT NULL REFERENCES item_sessions(id) ON DELETE CASCADE,
  position INTEGER NOT NULL,
  price_list_item_id TEXT NOT NULL,
  category_code TEXT NOT NULL,
  name TEXT NOT NULL,
  quantity TEXT NOT NULL,
  unit_price_cents INTEGER NOT NULL,
  characteristics TEXT,
  stains TEXT,
  other_stains TEXT,
  defects TEXT,
  has_stains INTEGER NOT NULL DEFAULT 0,
  has_no_guarantee INTEGER NOT NULL DEFAULT 0,
  no_guarantee_explanation TEXT,
  risk_flags TEXT,
  client_acknowledgment INTEGER NOT NULL DEFAULT 0,
  applied_modifiers TEXT,
  modifiers_impact TEXT,
  modifiers_total_cents INTEGER NOT NULL DEFAULT 0,
  total_price_cents INTEGER NOT NULL,
  created_at DATETIME,
  updated_at DATETIME
)`,
	`CREATE TABLE IF NOT EXISTS outbox_events (
  id TEXT PRIMARY KEY,
  event_type TEXT NOT NULL,
  aggregate_type TEXT NOT NULL,
  aggregate_id TEXT NOT NULL,
  payload TEXT NOT NULL,
  created_at DATETIME,
  published_at DATETIME,
  attempt_count INTEGER NOT NULL DEFAULT 0,
  last_error TEXT
)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS ux_outbox_events_event_aggregate
  ON outbox_events (event_type, aggregate_id)
  WHERE event_type IN ('item_session_started', 'item_session_completed')`,
	`CREATE TABLE IF NOT EXISTS outbox_dlq (
  id TEXT PRIMARY KEY,
  event_id TEXT NOT NULL,
  event_type TEXT NOT NULL,
  aggregate_type TEXT NOT NULL,
  aggregate_id TEXT NOT NULL,
  payload_json TEXT NOT NULL,
  error_reason TEXT NOT NULL,
  error_message TEXT,
  attempt_count INTEGER NOT NULL DEFAULT 0,
  failed_at DATETIME,
  created_at DATETIME
)`,
}

// ApplySQLiteSchema creates every table on a sqlite connection.
func ApplySQLiteSchema(ctx context.Context, conn *gorm.DB) error {
	if ctx == nil {
		ctx = context.Background()
	}
	for i, stmt := range SQLiteSchema {
		if err := conn.WithContext(ctx).Exec(stmt).Error; err != nil {
			return fmt.Errorf("sqlite schema statement %d: %w", i, err)
		}
	}
	return nil
}
