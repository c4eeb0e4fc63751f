// Package model contains domain value types passed between layers.
package model

import (
	"fmt"
	"strings"
)

// ItemID identifies a rankable entity (a movie). It carries no meaning
// beyond identity; zero is reserved as the "no item" sentinel.
type ItemID int64

// UserID identifies the owner of a set of preferences.
type UserID string

// Polarity partitions a user's preferences into independent graphs.
type Polarity string

// Known polarities.
const (
	Liked    Polarity = "liked"
	Disliked Polarity = "disliked"
)

// Valid reports whether p is one of the known polarities.
func (p Polarity) Valid() bool {
	return p == Liked || p == Disliked
}

// Opposite returns the other polarity. Unknown values map to themselves.
func (p Polarity) Opposite() Polarity {
	switch p {
	case Liked:
		return Disliked
	case Disliked:
		return Liked
	default:
		return p
	}
}

// ParsePolarity parses a polarity name case-insensitively.
func ParsePolarity(s string) (Polarity, bool) {
	p := Polarity(strings.ToLower(strings.TrimSpace(s)))
	return p, p.Valid()
}

// Edge is a recorded preference: Winner is preferred over Loser.
type Edge struct {
	Winner ItemID `json:"winner_id"`
	Loser  ItemID `json:"loser_id"`
}

// Reverse returns the edge with its direction flipped.
func (e Edge) Reverse() Edge {
	return Edge{Winner: e.Loser, Loser: e.Winner}
}

// Pair returns the endpoints ordered by id, identifying the unordered pair.
func (e Edge) Pair() (ItemID, ItemID) {
	if e.Winner < e.Loser {
		return e.Winner, e.Loser
	}
	return e.Loser, e.Winner
}

func (e Edge) String() string {
	return fmt.Sprintf("%d>%d", e.Winner, e.Loser)
}

// Matchup is a suggested comparison between two items.
type Matchup struct {
	A ItemID `json:"item_a"`
	B ItemID `json:"item_b"`
}

// Key scopes a preference graph to one user and polarity.
type Key struct {
	UserID   UserID
	Polarity Polarity
}

func (k Key) String() string {
	return string(k.UserID) + ":" + string(k.Polarity)
}

// Other returns the same user's key for the opposite polarity.
func (k Key) Other() Key {
	return Key{UserID: k.UserID, Polarity: k.Polarity.Opposite()}
}
