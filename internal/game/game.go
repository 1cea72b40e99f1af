// Package game defines the contract concrete games satisfy and the
// process-wide registry of known game classes.
//
// Grounded on original_source/server/abstract_game.py and games_list.py: the
// framework never constructs a game by reflection, only ever by looking up a
// name in a fixed, start-up-populated table (§9/§11 of the spec).
package game

import "fmt"

// Game is the interface a single running game instance satisfies. The
// framework and Session packages only ever talk to a game through this
// interface.
type Game interface {
	// CurrentPlayer returns the IDs allowed to move right now. It may be
	// empty (nobody can act, e.g. the game just ended) or contain more than
	// one ID (e.g. a chat-like game where every participant is "current").
	CurrentPlayer() []int

	// Move applies a player's move. ok is false when the move was illegal;
	// errPayload then carries the error to surface to the client (a string
	// or any JSON-marshalable structured value). When ok is true, errPayload
	// is ignored.
	Move(args map[string]interface{}, playerID int) (errPayload interface{}, ok bool)

	// State returns the view of the game for a single player.
	State(playerID int) map[string]interface{}

	// GameOver reports whether the game has concluded.
	GameOver() bool

	// Snapshot returns an independent copy of the game's observable state,
	// used to retain the pre-restart game for the previous-game delivery
	// mechanism (spec §4.4, §11). Mutating the original after Snapshot
	// returns must never affect the copy, and vice versa.
	Snapshot() Game
}

// Class is a game's constructor plus its player-count bounds. Concrete
// games register a Class under a name at start-up (see NewRegistry).
type Class struct {
	// New constructs a fresh game instance for the given number of players.
	New func(players int) Game

	// MinPlayers and MaxPlayers bound the players argument accepted by join.
	MinPlayers int
	MaxPlayers int
}

// Registry is a process-wide, name-keyed table of game classes. It is
// populated once at start-up and never mutated afterwards, matching
// game_framework.py's _build_game_class_dict.
type Registry struct {
	classes map[string]Class
}

// NewRegistry builds a Registry from a fixed list of (name, class) pairs.
func NewRegistry(classes map[string]Class) *Registry {
	copied := make(map[string]Class, len(classes))
	for name, class := range classes {
		copied[name] = class
	}
	return &Registry{classes: copied}
}

// Lookup returns the class registered under name, if any.
func (r *Registry) Lookup(name string) (Class, bool) {
	c, ok := r.classes[name]
	return c, ok
}

// Names returns the registered game names, for diagnostics.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.classes))
	for name := range r.classes {
		names = append(names, name)
	}
	return names
}

// ValidatePlayerCount checks players against a class's bounds.
func (c Class) ValidatePlayerCount(players int) error {
	if players < c.MinPlayers || players > c.MaxPlayers {
		return fmt.Errorf("invalid number of players: must be between %d and %d", c.MinPlayers, c.MaxPlayers)
	}
	return nil
}
