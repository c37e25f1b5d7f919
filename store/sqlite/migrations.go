package sqlite

import (
	"context"

	"github.com/xraph/grove/migrate"
)

// Migrations is the grove migration group for the Credits store (SQLite).
var Migrations = migrate.NewGroup("credits")

func init() {
	Migrations.MustRegister(
		&migrate.Migration{
			Name:    "create_credits_workspaces",
			Version: "20250101000001",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS credits_workspaces (
    id              TEXT PRIMARY KEY,
    name            TEXT NOT NULL DEFAULT '',
    balance_micros  INTEGER NOT NULL DEFAULT 0,
    currency        TEXT NOT NULL DEFAULT 'usd',
    version         INTEGER NOT NULL DEFAULT 0,
    spending_limits TEXT NOT NULL DEFAULT '[]',
    created_at      TEXT NOT NULL DEFAULT (datetime('now')),
    updated_at      TEXT NOT NULL DEFAULT (datetime('now'))
);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS credits_workspaces`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_credits_agents",
			Version: "20250101000002",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS credits_agents (
    id              TEXT PRIMARY KEY,
    workspace_id    TEXT NOT NULL DEFAULT '',
    name            TEXT NOT NULL DEFAULT '',
    spending_limits TEXT NOT NULL DEFAULT '[]',
    created_at      TEXT NOT NULL DEFAULT (datetime('now')),
    updated_at      TEXT NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_credits_agents_workspace ON credits_agents (workspace_id);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS credits_agents`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_credits_reservations",
			Version: "20250101000003",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS credits_reservations (
    id               TEXT PRIMARY KEY,
    workspace_id     TEXT NOT NULL DEFAULT '',
    reserved_micros  INTEGER NOT NULL DEFAULT 0,
    estimated_micros INTEGER NOT NULL DEFAULT 0,
    currency         TEXT NOT NULL DEFAULT 'usd',
    expires_at       TEXT NOT NULL,
    hour_bucket      TEXT NOT NULL DEFAULT '',
    created_at       TEXT NOT NULL DEFAULT (datetime('now')),
    updated_at       TEXT NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_credits_reservations_workspace ON credits_reservations (workspace_id);
CREATE INDEX IF NOT EXISTS idx_credits_reservations_expires ON credits_reservations (expires_at);
CREATE INDEX IF NOT EXISTS idx_credits_reservations_bucket ON credits_reservations (hour_bucket);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS credits_reservations`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_credits_transactions",
			Version: "20250101000004",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS credits_transactions (
    id              TEXT PRIMARY KEY,
    workspace_id    TEXT NOT NULL DEFAULT '',
    agent_id        TEXT NOT NULL DEFAULT '',
    conversation_id TEXT NOT NULL DEFAULT '',
    source          TEXT NOT NULL DEFAULT '',
    supplier        TEXT NOT NULL DEFAULT '',
    tool_call       TEXT NOT NULL DEFAULT '',
    description     TEXT NOT NULL DEFAULT '',
    amount_micros   INTEGER NOT NULL DEFAULT 0,
    currency        TEXT NOT NULL DEFAULT 'usd',
    created_at      TEXT NOT NULL DEFAULT (datetime('now')),
    updated_at      TEXT NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_credits_txns_workspace_time ON credits_transactions (workspace_id, created_at);
CREATE INDEX IF NOT EXISTS idx_credits_txns_agent_time ON credits_transactions (workspace_id, agent_id, created_at);
CREATE INDEX IF NOT EXISTS idx_credits_txns_source ON credits_transactions (workspace_id, source);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS credits_transactions`)
				return err
			},
		},
	)
}
