package session_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"turnserver/internal/games/tictactoe"
	"turnserver/internal/session"
)

func newTTTSession() *session.Session {
	return session.New(tictactoe.Class, 2)
}

func TestNextID_AssignsSequentialIDsAndKeys(t *testing.T) {
	s := newTTTSession()

	id0, key0, err := s.NextID("alice")
	require.NoError(t, err)
	assert.Equal(t, 0, id0)
	assert.Len(t, key0, 5)

	id1, key1, err := s.NextID("bob")
	require.NoError(t, err)
	assert.Equal(t, 1, id1)
	assert.NotEqual(t, key0, key1)

	assert.True(t, s.Full())
}

func TestNextID_RejectsDuplicateName(t *testing.T) {
	s := newTTTSession()
	_, _, err := s.NextID("alice")
	require.NoError(t, err)

	_, _, err = s.NextID("alice")
	assert.ErrorIs(t, err, session.ErrNameInUse)
}

func TestNextID_AllowsRepeatedEmptyName(t *testing.T) {
	s := newTTTSession()
	_, _, err := s.NextID("")
	require.NoError(t, err)
	_, _, err = s.NextID("")
	require.NoError(t, err)
}

func TestKeyValid(t *testing.T) {
	s := newTTTSession()
	id, key, err := s.NextID("alice")
	require.NoError(t, err)

	assert.True(t, s.KeyValid(id, key))
	assert.False(t, s.KeyValid(id, "wrong"))
	assert.False(t, s.KeyValid(id+1, key))
}

func TestState_ColdStartDoesNotBlock(t *testing.T) {
	s := newTTTSession()
	_, _, _ = s.NextID("alice")
	_, _, _ = s.NextID("bob")

	done := make(chan map[string]interface{}, 1)
	go func() { done <- s.State(1, false) }()

	select {
	case state := <-done:
		assert.Equal(t, []int{0}, state["current"])
		assert.False(t, state["gameover"].(bool))
	case <-time.After(time.Second):
		t.Fatal("cold-start state read blocked unexpectedly")
	}
}

func TestState_CurrentPlayerNeverBlocks(t *testing.T) {
	s := newTTTSession()
	_, _, _ = s.NextID("alice")
	_, _, _ = s.NextID("bob")

	// Drain the cold-start no-delay entries first.
	_ = s.State(0, false)
	_ = s.State(1, false)

	done := make(chan map[string]interface{}, 1)
	go func() { done <- s.State(0, false) }() // it is player 0's turn

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("current player's state read blocked")
	}
}

func TestState_BlocksThenWakesOnMove(t *testing.T) {
	s := newTTTSession()
	_, _, _ = s.NextID("alice")
	_, _, _ = s.NextID("bob")
	_ = s.State(0, false)
	_ = s.State(1, false) // drain cold-start no-delay for both

	done := make(chan map[string]interface{}, 1)
	go func() { done <- s.State(1, false) }() // player 1 is not current; must block

	select {
	case <-done:
		t.Fatal("state read returned before any move")
	case <-time.After(100 * time.Millisecond):
	}

	errPayload, ok := s.Move(map[string]interface{}{"position": 0}, 0)
	require.True(t, ok, "%v", errPayload)

	select {
	case state := <-done:
		assert.Equal(t, []int{1}, state["current"])
	case <-time.After(time.Second):
		t.Fatal("state read did not wake up after move")
	}
}

func TestRestart_DeliversPreviousGameStateExactlyOnceToNonStarters(t *testing.T) {
	s := newTTTSession()
	_, _, _ = s.NextID("alice")
	_, _, _ = s.NextID("bob")
	_ = s.State(0, false)
	_ = s.State(1, false)

	// Drive the game to a win for player 0: 0,1,2 row.
	moves := []struct {
		player, pos int
	}{{0, 0}, {1, 3}, {0, 1}, {1, 4}, {0, 2}}
	for _, m := range moves {
		_, ok := s.Move(map[string]interface{}{"position": m.pos}, m.player)
		require.True(t, ok)
	}
	require.True(t, s.GameOver())

	// drain the end-of-game no-delay wakeups for both ids.
	term0 := s.State(0, false)
	term1 := s.State(1, false)
	assert.True(t, term0["gameover"].(bool))
	assert.True(t, term1["gameover"].(bool))

	s.Restart(0) // player 0 is the starter

	// Starter should NOT receive the previous game again: its next read
	// blocks until it observes the fresh (non-game-over) state.
	done0 := make(chan map[string]interface{}, 1)
	go func() { done0 <- s.State(0, false) }()
	select {
	case state := <-done0:
		assert.False(t, state["gameover"].(bool), "starter must see the new game, not the previous one")
	case <-time.After(time.Second):
		t.Fatal("starter's post-restart read never returned")
	}

	// The non-starter receives the previous game's terminal state exactly
	// once, then the new game on the read after that.
	prevState := s.State(1, false)
	assert.True(t, prevState["gameover"].(bool), "non-starter must see the previous terminal state once")

	newState := s.State(1, false)
	assert.False(t, newState["gameover"].(bool), "subsequent reads must see the new game")
}

func TestState_ObserverEffectiveIDIsIndependentOfPlayerID(t *testing.T) {
	s := newTTTSession()
	_, _, _ = s.NextID("alice")
	_, _, _ = s.NextID("bob")

	// Drain the cold-start no-delay entries for both real ids (0, 1) and
	// both observer effective ids (0+2=2, 1+2=3).
	_ = s.State(0, false)
	_ = s.State(1, false)
	_ = s.State(0, true)
	_ = s.State(1, true)

	errPayload, ok := s.Move(map[string]interface{}{"position": 0}, 0)
	require.True(t, ok, "%v", errPayload)

	// Move only seeds noDelay for the mover's own id (0), not for the
	// observer effective id watching that same player (eid 2): player 0's
	// own next read must not block, but an observer reading player 0's
	// seat must still wait for the next change.
	done := make(chan map[string]interface{}, 1)
	go func() { done <- s.State(0, false) }()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("player 0's own state read blocked after its own move")
	}

	obsDone := make(chan map[string]interface{}, 1)
	go func() { obsDone <- s.State(0, true) }()
	select {
	case <-obsDone:
		t.Fatal("observer effective id must not be released by the player's own move")
	case <-time.After(100 * time.Millisecond):
	}

	// A further move broadcasts a state change that does wake the pending
	// observer read, confirming it was genuinely blocked, not stalled.
	errPayload, ok = s.Move(map[string]interface{}{"position": 3}, 1)
	require.True(t, ok, "%v", errPayload)

	select {
	case state := <-obsDone:
		assert.Equal(t, []int{0}, state["current"])
	case <-time.After(time.Second):
		t.Fatal("observer effective id never woke after a subsequent move")
	}
}

func TestOverwritten_WakesWaiters(t *testing.T) {
	s := newTTTSession()
	baseline := s.Version()

	woke := make(chan struct{})
	go func() {
		s.WaitForChange(baseline)
		close(woke)
	}()

	time.Sleep(50 * time.Millisecond)
	s.MarkOverwritten()

	select {
	case <-woke:
	case <-time.After(time.Second):
		t.Fatal("MarkOverwritten did not wake a waiter")
	}
	assert.True(t, s.Overwritten())
}
