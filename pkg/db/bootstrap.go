package db

import (
	"context"
	"database/sql"
	"fmt"
)

// DefaultProfileName is the profile created on first run.
const DefaultProfileName = "default"

// Bootstrap creates the default profile and API server address on an empty
// database. When endpoint is set it also saves it as the default printer.
func (db *DB) Bootstrap(ctx context.Context, endpoint string) error {
	needs, err := db.NeedsBootstrap(ctx)
	if err != nil {
		return fmt.Errorf("failed to check profiles: %w", err)
	}
	if !needs {
		return nil
	}

	return db.Tx(ctx, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx,
			`INSERT INTO profiles (name, is_active) VALUES (?, 1)`, DefaultProfileName)
		if err != nil {
			return fmt.Errorf("failed to create default profile: %w", err)
		}
		profileID, err := result.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to get profile ID: %w", err)
		}

		if _, err := tx.ExecContext(ctx,
			`INSERT INTO api_servers (profile_id, host, port) VALUES (?, ?, ?)`,
			profileID, DefaultAPIHost, DefaultAPIPort); err != nil {
			return fmt.Errorf("failed to create default API server: %w", err)
		}

		if endpoint == "" {
			return nil
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO printers (profile_id, name, endpoint, is_default) VALUES (?, ?, ?, 1)`,
			profileID, "default", endpoint); err != nil {
			return fmt.Errorf("failed to create default printer: %w", err)
		}
		return nil
	})
}

// NeedsBootstrap reports whether no profile exists yet.
func (db *DB) NeedsBootstrap(ctx context.Context) (bool, error) {
	var count int
	err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM profiles`).Scan(&count)
	if err != nil {
		return false, err
	}
	return count == 0, nil
}
