package db

import (
	"context"
	"database/sql"
	"embed"
	"fmt"

	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaFS embed.FS

func Open(path string) (*sql.DB, error) {
	if path == "" {
		return nil, fmt.Errorf("db path is required")
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// A second connection to ":memory:" would see an empty database.
	db.SetMaxOpenConns(1)

	if err := applySchema(context.Background(), db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return db, nil
}

func applySchema(ctx context.Context, db *sql.DB) error {
	schemaSQL, err := schemaFS.ReadFile("schema.sql")
	if err != nil {
		return fmt.Errorf("read schema: %w", err)
	}

	if _, err := db.ExecContext(ctx, string(schemaSQL)); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}

	if err := ensureDeadlineColumn(ctx, db); err != nil {
		return err
	}

	return nil
}

// ensureDeadlineColumn upgrades databases created before tasks carried a
// deadline.
func ensureDeadlineColumn(ctx context.Context, db *sql.DB) error {
	var exists int
	err := db.QueryRowContext(ctx, "SELECT 1 FROM pragma_table_info('tasks') WHERE name = 'deadline' LIMIT 1").Scan(&exists)
	if err == nil {
		return createDeadlineIndex(ctx, db)
	}
	if err != sql.ErrNoRows {
		return fmt.Errorf("check tasks.deadline column: %w", err)
	}

	if _, err := db.ExecContext(ctx, "ALTER TABLE tasks ADD COLUMN deadline TEXT"); err != nil {
		return fmt.Errorf("add tasks.deadline column: %w", err)
	}

	return createDeadlineIndex(ctx, db)
}

func createDeadlineIndex(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, "CREATE INDEX IF NOT EXISTS idx_tasks_deadline ON tasks(deadline)"); err != nil {
		return fmt.Errorf("create idx_tasks_deadline: %w", err)
	}
	return nil
}
