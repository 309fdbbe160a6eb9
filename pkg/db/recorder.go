package db

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/urmzd/moonctl/pkg/printer"
)

// RecordGCodes appends every console line event to the printer's log until
// ctx ends or events is closed. Every keep appends the log is pruned back to
// keep rows; keep <= 0 disables pruning.
func (db *DB) RecordGCodes(ctx context.Context, printerID int64, events <-chan printer.Event, keep int) {
	store := db.GCodeLog()
	appended := 0
	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-events:
			if !ok {
				return
			}
			if evt.Type != printer.EventGCode || evt.GCode == nil {
				continue
			}
			if err := store.Append(ctx, printerID, *evt.GCode); err != nil {
				log.Warn().Err(err).Msg("Failed to persist gcode line")
				continue
			}
			appended++
			if keep > 0 && appended >= keep {
				appended = 0
				if n, err := store.Prune(ctx, printerID, keep); err != nil {
					log.Warn().Err(err).Msg("Failed to prune gcode log")
				} else if n > 0 {
					log.Debug().Int64("removed", n).Msg("Pruned gcode log")
				}
			}
		}
	}
}
