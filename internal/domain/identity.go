package domain

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
)

// FoldKey normalizes a game key or player name for case-insensitive lookup.
// Casers are stateful, so each call builds its own.
func FoldKey(s string) string {
	return cases.Fold().String(strings.TrimSpace(s))
}

// PlayerIdentity names one player within one game. Display casing is kept;
// comparisons go through Key.
type PlayerIdentity struct {
	Game   string `json:"game"`
	Player string `json:"player"`
}

// Key returns the folded lookup key.
func (id PlayerIdentity) Key() string {
	return FoldKey(id.Game) + "\x00" + FoldKey(id.Player)
}

// Same reports whether two identities refer to the same player.
func (id PlayerIdentity) Same(other PlayerIdentity) bool {
	return id.Key() == other.Key()
}

func (id PlayerIdentity) String() string {
	return fmt.Sprintf("%s/%s", id.Game, id.Player)
}
