// Package repository persists pairwise preference records.
package repository

import (
	"context"

	"github.com/okian/prefrank/internal/domain/model"
)

// Store provides read/write access to preference records. A user holds at
// most one record per unordered item pair; the record carries the winner
// and the polarity it was judged under.
type Store interface {
	// Preferences returns the user's records for polarity as edges, in the
	// order they were first written.
	Preferences(ctx context.Context, userID model.UserID, polarity model.Polarity) ([]model.Edge, error)

	// Upsert writes one record per edge. An existing record for the pair is
	// updated in place; identical records are left untouched.
	Upsert(ctx context.Context, userID model.UserID, polarity model.Polarity, edges []model.Edge) error

	// Delete removes the records matching edges. A record is only removed
	// when its stored winner and polarity still match. Returns how many
	// records were removed.
	Delete(ctx context.Context, userID model.UserID, polarity model.Polarity, edges []model.Edge) (int, error)

	// Count returns the number of stored records across all users.
	Count(ctx context.Context) int
}
