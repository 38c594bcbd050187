// Package repository stores the scored rows shown for each game.
package repository

import (
	"context"

	"github.com/okian/icexg/internal/domain/model"
	"github.com/okian/icexg/internal/domain/types"
)

// Table is the accumulated scored table of one game. Rows are unique by
// event id and kept in arrival order.
type Table interface {
	// Merge appends rows whose event id is not yet present. When ids
	// collide the row already in the table wins. Returns the number added.
	Merge(ctx context.Context, rows []model.ScoredRow) (int, error)

	// Rows returns a copy of the table in arrival order.
	Rows(ctx context.Context) ([]model.ScoredRow, error)

	// Summary sums xG and goals per side.
	Summary(ctx context.Context) (types.Summary, error)

	// Len returns the number of rows.
	Len(ctx context.Context) (int, error)

	// Model returns the tag of the model that scored the rows, empty when
	// the table was never stamped.
	Model(ctx context.Context) (string, error)

	// SetModel stamps the table with the tag of the model scoring its rows.
	SetModel(ctx context.Context, tag string) error

	// Reset empties the table and clears its model stamp.
	Reset(ctx context.Context) error
}

// Store hands out per-game tables.
type Store interface {
	// Table returns the table for gameID, creating it on first use.
	Table(gameID string) Table

	// Has reports whether the store holds rows for gameID.
	Has(ctx context.Context, gameID string) (bool, error)

	// Drop removes a game's table.
	Drop(ctx context.Context, gameID string) error

	Close() error
}
