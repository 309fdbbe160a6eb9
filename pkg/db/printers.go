package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

var ErrPrinterNotFound = errors.New("printer not found")

// Printer is a saved Moonraker endpoint.
type Printer struct {
	ID        int64
	ProfileID int64
	Name      string
	Endpoint  string
	Policy    string
	IsDefault bool
	CreatedAt time.Time
}

type PrinterStore interface {
	Get(ctx context.Context, id int64) (*Printer, error)
	GetByName(ctx context.Context, profileID int64, name string) (*Printer, error)
	GetDefault(ctx context.Context, profileID int64) (*Printer, error)
	List(ctx context.Context, profileID int64) ([]*Printer, error)
	// Create inserts p; the first printer of a profile becomes its default.
	Create(ctx context.Context, p *Printer) error
	SetDefault(ctx context.Context, id int64) error
	Delete(ctx context.Context, id int64) error
}

func (db *DB) Printers() PrinterStore {
	return &printerStore{db: db}
}

type printerStore struct {
	db *DB
}

const printerColumns = `id, profile_id, name, endpoint, policy, is_default, created_at`

func scanPrinter(row rowScanner) (*Printer, error) {
	p := &Printer{}
	var createdAt string
	err := row.Scan(&p.ID, &p.ProfileID, &p.Name, &p.Endpoint, &p.Policy, &p.IsDefault, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrPrinterNotFound
	}
	if err != nil {
		return nil, err
	}
	p.CreatedAt, _ = time.Parse(time.DateTime, createdAt)
	return p, nil
}

func (s *printerStore) Get(ctx context.Context, id int64) (*Printer, error) {
	return scanPrinter(s.db.QueryRowContext(ctx,
		`SELECT `+printerColumns+` FROM printers WHERE id = ?`, id))
}

func (s *printerStore) GetByName(ctx context.Context, profileID int64, name string) (*Printer, error) {
	return scanPrinter(s.db.QueryRowContext(ctx,
		`SELECT `+printerColumns+` FROM printers WHERE profile_id = ? AND name = ?`, profileID, name))
}

func (s *printerStore) GetDefault(ctx context.Context, profileID int64) (*Printer, error) {
	return scanPrinter(s.db.QueryRowContext(ctx,
		`SELECT `+printerColumns+` FROM printers WHERE profile_id = ? AND is_default = 1 LIMIT 1`, profileID))
}

func (s *printerStore) List(ctx context.Context, profileID int64) ([]*Printer, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+printerColumns+` FROM printers WHERE profile_id = ? ORDER BY name`, profileID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var printers []*Printer
	for rows.Next() {
		p, err := scanPrinter(rows)
		if err != nil {
			return nil, err
		}
		printers = append(printers, p)
	}
	return printers, rows.Err()
}

func (s *printerStore) Create(ctx context.Context, p *Printer) error {
	if p.Policy == "" {
		p.Policy = "unlimited"
	}
	return s.db.Tx(ctx, func(tx *sql.Tx) error {
		var existing int
		if err := tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM printers WHERE profile_id = ?`, p.ProfileID,
		).Scan(&existing); err != nil {
			return err
		}
		if existing == 0 {
			p.IsDefault = true
		} else if p.IsDefault {
			if _, err := tx.ExecContext(ctx,
				`UPDATE printers SET is_default = 0 WHERE profile_id = ?`, p.ProfileID); err != nil {
				return err
			}
		}

		result, err := tx.ExecContext(ctx, `
			INSERT INTO printers (profile_id, name, endpoint, policy, is_default)
			VALUES (?, ?, ?, ?, ?)
		`, p.ProfileID, p.Name, p.Endpoint, p.Policy, p.IsDefault)
		if err != nil {
			return fmt.Errorf("failed to create printer: %w", err)
		}
		p.ID, err = result.LastInsertId()
		return err
	})
}

func (s *printerStore) SetDefault(ctx context.Context, id int64) error {
	return s.db.Tx(ctx, func(tx *sql.Tx) error {
		var profileID int64
		err := tx.QueryRowContext(ctx, `SELECT profile_id FROM printers WHERE id = ?`, id).Scan(&profileID)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrPrinterNotFound
		}
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE printers SET is_default = (id = ?) WHERE profile_id = ?`, id, profileID); err != nil {
			return err
		}
		return nil
	})
}

func (s *printerStore) Delete(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM printers WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return requireRow(result, ErrPrinterNotFound)
}
