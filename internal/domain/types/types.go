// Package types contains common types used across the application
package types

import (
	"strconv"

	"github.com/okian/prefrank/internal/domain/model"
)

// UnrankedLabel is reported for items that were never compared.
const UnrankedLabel = "?"

// Entry represents one row of a user's standings
type Entry struct {
	Position int          `json:"position"`
	ItemID   model.ItemID `json:"item_id"`
	Rank     string       `json:"rank"`
}

// RankedEntry builds an entry for an item holding a numeric rank.
func RankedEntry(position int, id model.ItemID, rank int) Entry {
	return Entry{Position: position, ItemID: id, Rank: strconv.Itoa(rank)}
}

// UnrankedEntry builds an entry for an item with no recorded preference.
func UnrankedEntry(position int, id model.ItemID) Entry {
	return Entry{Position: position, ItemID: id, Rank: UnrankedLabel}
}

// Ranked reports whether the entry carries a numeric rank.
func (e Entry) Ranked() bool {
	return e.Rank != UnrankedLabel && e.Rank != ""
}
