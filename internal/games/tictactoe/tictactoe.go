// Package tictactoe is a reference Game implementation bundled purely to
// exercise the session engine end-to-end, in the session, framework and
// server tests and in cmd/server. It carries none of the spec's invariants itself — concrete
// game rules are explicitly out of scope (spec §1) — it exists only because
// the engine needs a live game behind its interface.
//
// Translated from original_source/server/tictactoe.py into the shape
// internal/game.Game expects.
package tictactoe

import (
	"encoding/json"

	"turnserver/internal/game"
)

const empty = -1

var winLines = [8][3]int{
	{0, 1, 2}, {3, 4, 5}, {6, 7, 8},
	{0, 3, 6}, {1, 4, 7}, {2, 5, 8},
	{0, 4, 8}, {2, 4, 6},
}

// TicTacToe implements internal/game.Game for a standard two-player
// tic-tac-toe board.
type TicTacToe struct {
	board   [9]int
	current int
	over    bool
	winner  *int
}

// New constructs a new TicTacToe game. players is not checked here; the
// bounds in Class (exactly 2) are checked by the framework before New runs.
func New(players int) game.Game {
	t := &TicTacToe{}
	for i := range t.board {
		t.board[i] = empty
	}
	return t
}

// Class is the registry entry for this game.
var Class = game.Class{
	New:        New,
	MinPlayers: 2,
	MaxPlayers: 2,
}

func (t *TicTacToe) CurrentPlayer() []int {
	if t.over {
		return nil
	}
	return []int{t.current}
}

func (t *TicTacToe) Move(args map[string]interface{}, playerID int) (interface{}, bool) {
	raw, present := args["position"]
	if !present {
		return "keyword argument 'position' of type int missing", false
	}

	pos, ok := asInt(raw)
	if !ok {
		return "type of argument 'position' must be int", false
	}

	if pos < 0 || pos > 8 {
		return "value must be 0..8", false
	}
	if t.board[pos] != empty {
		return "position already occupied", false
	}

	t.board[pos] = t.current
	t.checkWin()
	t.checkFull()
	t.current ^= 1
	return nil, true
}

func (t *TicTacToe) State(playerID int) map[string]interface{} {
	board := make([]int, len(t.board))
	copy(board, t.board[:])

	var winner interface{}
	if t.winner != nil {
		winner = *t.winner
	}

	return map[string]interface{}{
		"board":  board,
		"winner": winner,
	}
}

func (t *TicTacToe) GameOver() bool { return t.over }

func (t *TicTacToe) Snapshot() game.Game {
	copyBoard := t.board
	var winner *int
	if t.winner != nil {
		w := *t.winner
		winner = &w
	}
	return &TicTacToe{board: copyBoard, current: t.current, over: t.over, winner: winner}
}

func (t *TicTacToe) checkWin() {
	b := t.board
	for _, line := range winLines {
		i, j, k := line[0], line[1], line[2]
		if b[i] == b[j] && b[j] == b[k] && b[i] == t.current {
			winner := t.current
			t.winner = &winner
			t.over = true
			return
		}
	}
}

func (t *TicTacToe) checkFull() {
	for _, v := range t.board {
		if v == empty {
			return
		}
	}
	t.over = true
}

func asInt(v interface{}) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return 0, false
		}
		return int(i), true
	default:
		return 0, false
	}
}
