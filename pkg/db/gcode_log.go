package db

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/urmzd/moonctl/pkg/printer"
)

// GCodeLogStore persists console lines per printer.
type GCodeLogStore interface {
	Append(ctx context.Context, printerID int64, entry printer.GCodeEntry) error
	// Recent returns up to limit of the newest entries, oldest first.
	Recent(ctx context.Context, printerID int64, limit int) ([]printer.GCodeEntry, error)
	// Prune keeps the newest keep entries and returns how many were removed.
	Prune(ctx context.Context, printerID int64, keep int) (int64, error)
}

func (db *DB) GCodeLog() GCodeLogStore {
	return &gcodeLogStore{db: db}
}

type gcodeLogStore struct {
	db *DB
}

func (s *gcodeLogStore) Append(ctx context.Context, printerID int64, entry printer.GCodeEntry) error {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO gcode_log (id, printer_id, message, type, time)
		VALUES (?, ?, ?, ?, ?)
	`, entry.ID.String(), printerID, entry.Message, entry.Type.String(), entry.Time)
	if err != nil {
		return fmt.Errorf("failed to append gcode log: %w", err)
	}
	return nil
}

func (s *gcodeLogStore) Recent(ctx context.Context, printerID int64, limit int) ([]printer.GCodeEntry, error) {
	if limit <= 0 {
		limit = printer.DefaultGCodeLogSize
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, message, type, time FROM (
			SELECT id, message, type, time, rowid AS seq FROM gcode_log
			WHERE printer_id = ? ORDER BY time DESC, seq DESC LIMIT ?
		) ORDER BY time ASC, seq ASC
	`, printerID, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var entries []printer.GCodeEntry
	for rows.Next() {
		var id, typ string
		var e printer.GCodeEntry
		if err := rows.Scan(&id, &e.Message, &typ, &e.Time); err != nil {
			return nil, err
		}
		e.ID, _ = uuid.Parse(id)
		e.Type = printer.ParseGCodeType(typ)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (s *gcodeLogStore) Prune(ctx context.Context, printerID int64, keep int) (int64, error) {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM gcode_log WHERE printer_id = ? AND rowid NOT IN (
			SELECT rowid FROM gcode_log WHERE printer_id = ?
			ORDER BY time DESC, rowid DESC LIMIT ?
		)
	`, printerID, printerID, keep)
	if err != nil {
		return 0, fmt.Errorf("failed to prune gcode log: %w", err)
	}
	return result.RowsAffected()
}

// PrinterHistory is a GCodeLogStore view bound to one printer.
type PrinterHistory struct {
	store     GCodeLogStore
	printerID int64
}

func (db *DB) History(printerID int64) *PrinterHistory {
	return &PrinterHistory{store: db.GCodeLog(), printerID: printerID}
}

func (h *PrinterHistory) Recent(ctx context.Context, limit int) ([]printer.GCodeEntry, error) {
	return h.store.Recent(ctx, h.printerID, limit)
}
