// Package session implements the per-(game-name, token) coordination object:
// admission, authenticated moves, long-poll state reads, and restart with a
// previous-game snapshot.
//
// This is the heart of the engine (spec §4.4, ~35% of the core). It is
// grounded on two sources: the concurrency shape — a struct guarded by a
// mutex, exposing methods that return (result, error) — follows the
// teacher's internal/server/game_manager.go; the exact admission / move /
// long-poll / restart algorithm follows
// original_source/server/game_session.py, translated from Python's
// threading.Event to a Go broadcast condition variable.
package session

import (
	"crypto/rand"
	"fmt"
	"sync"
	"time"

	"turnserver/internal/game"
)

const keyAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
const keyLength = 5

// ErrNameInUse is returned by NextID when a non-empty player name is already
// registered in this session.
var ErrNameInUse = fmt.Errorf("name already in use")

// Session holds one running (or lobby-stage) game and everything needed to
// admit players, authenticate them, and coordinate blocking state reads.
type Session struct {
	class    game.Class
	nPlayers int

	mu           sync.Mutex
	game         game.Game
	nextID       int
	playerIDs    map[string]int
	keys         map[int]string
	lastAccess   time.Time
	noDelay      map[int]bool
	overwritten  bool
	timedOut     bool

	// stateChanged is broadcast whenever a mutation (move, restart, or
	// overwrite) may unblock a waiting reader. Go has no direct analogue of
	// Python's threading.Event; a version counter plus condition variable
	// gives the same broadcast-wakeup semantics without losing wakeups that
	// arrive between a waiter checking state and calling Wait.
	cond    *sync.Cond
	version uint64

	// inPreviousGame / previousGame implement the one-shot terminal-state
	// delivery after a restart. prevMu guards just this pair, kept separate
	// from mu per spec §5 so the lock-free previous-game read path in
	// State never contends with a concurrent Move.
	prevMu         sync.Mutex
	inPreviousGame map[int]bool
	previousGame   game.Game
}

// New creates a fresh session for the given game class and player count,
// seeding noDelay with every effective id so a cold-start read (before any
// move) never blocks.
func New(class game.Class, nPlayers int) *Session {
	s := &Session{
		class:     class,
		nPlayers:  nPlayers,
		playerIDs: make(map[string]int),
		keys:      make(map[int]string),
		lastAccess: time.Now(),
	}
	s.cond = sync.NewCond(&s.mu)
	s.inPreviousGame = make(map[int]bool)
	s.newGame()
	return s
}

func (s *Session) newGame() {
	s.game = s.class.New(s.nPlayers)
	s.noDelay = make(map[int]bool, s.nPlayers*2)
	for id := 0; id < s.nPlayers*2; id++ {
		s.noDelay[id] = true
	}
}

// Full reports whether every player slot has been claimed.
func (s *Session) Full() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nextID == s.nPlayers
}

// NPlayers returns the number of player slots this session was created with.
func (s *Session) NPlayers() int { return s.nPlayers }

// LastAccess returns the time of the last read/write that touched this
// session.
func (s *Session) LastAccess() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastAccess
}

// NextID assigns an id and key to a newly admitted player. A non-empty name
// must be unique within the session.
func (s *Session) NextID(name string) (id int, key string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if name != "" {
		if _, exists := s.playerIDs[name]; exists {
			return 0, "", ErrNameInUse
		}
	}

	id = s.nextID
	s.nextID++

	if name != "" {
		s.playerIDs[name] = id
	}

	key, err = generateKey()
	if err != nil {
		return 0, "", err
	}
	s.keys[id] = key

	s.updateLastAccessLocked()
	return id, key, nil
}

// LookupByName returns the id and key previously assigned to name, used by
// the observe handler.
func (s *Session) LookupByName(name string) (id int, key string, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok = s.playerIDs[name]
	if !ok {
		return 0, "", false
	}
	return id, s.keys[id], true
}

// KeyValid checks a player's admission credential.
func (s *Session) KeyValid(id int, key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	k, ok := s.keys[id]
	return ok && k == key
}

// GameOver reports whether the current game instance has concluded.
func (s *Session) GameOver() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.game.GameOver()
}

// CurrentPlayer returns the ids allowed to move right now.
func (s *Session) CurrentPlayer() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.game.CurrentPlayer()
}

// MarkOverwritten flags the session as replaced by a fresh one under the
// same (game, token) key, and wakes any admission/state waiters so they can
// observe the flag and return an error.
func (s *Session) MarkOverwritten() {
	s.mu.Lock()
	s.overwritten = true
	s.mu.Unlock()
	s.WakeWaiters()
}

// Overwritten reports whether this session has been superseded.
func (s *Session) Overwritten() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.overwritten
}

// MarkTimedOut flags the session as expired by the admission wait or the
// reaper.
func (s *Session) MarkTimedOut() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.timedOut = true
}

// TimedOut reports whether this session has expired.
func (s *Session) TimedOut() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.timedOut
}

// WakeWaiters broadcasts the state-change condition, releasing every
// goroutine currently blocked in WaitForChange.
func (s *Session) WakeWaiters() {
	s.mu.Lock()
	s.version++
	s.mu.Unlock()
	s.cond.Broadcast()
}

// WaitForChange blocks the caller until WakeWaiters is next called (or has
// already been called since baseline). It is used both by the admission
// wait in join and by the long-poll state read.
func (s *Session) WaitForChange(baseline uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for s.version == baseline {
		s.cond.Wait()
	}
}

// Version returns the current state-change version, to be passed as the
// baseline to a subsequent WaitForChange call.
func (s *Session) Version() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.version
}

// Move applies a player's move under the session lock, updates lastAccess,
// seeds noDelay (every effective id if the game just ended, otherwise just
// the mover), and wakes waiters. It mirrors game_session.py's game_move.
func (s *Session) Move(move map[string]interface{}, playerID int) (errPayload interface{}, ok bool) {
	s.mu.Lock()
	errPayload, ok = s.game.Move(move, playerID)
	s.updateLastAccessLocked()

	if s.game.GameOver() {
		for id := 0; id < s.nPlayers*2; id++ {
			s.noDelay[id] = true
		}
	} else {
		s.noDelay[playerID] = true
	}
	s.version++
	s.mu.Unlock()

	s.cond.Broadcast()
	return errPayload, ok
}

// State implements the long-poll state read described in spec §4.4. id is
// the player's own id; observer selects whether the effective id is id or
// id+nPlayers. The call blocks until the state has changed, unless the
// effective id is allowed to proceed immediately (it is this client's turn,
// a previous-game snapshot is owed, or a still-unobserved event is
// pending).
func (s *Session) State(id int, observer bool) map[string]interface{} {
	eid := id
	if observer {
		eid += s.nPlayers
	}

	s.mu.Lock()
	mustWait := !containsInt(s.game.CurrentPlayer(), eid) && !s.noDelay[eid] && !s.owesPreviousGame(eid)
	baseline := s.version
	s.mu.Unlock()

	if mustWait {
		s.WaitForChange(baseline)
	}

	// Lock-free previous-game path: deliberately does not take s.mu so a
	// concurrent Move is never forced to wait on readers draining their
	// one-shot prior-state view (spec §5, §11).
	if prev, ok := s.takePreviousGameIfOwed(eid); ok {
		return assemble(prev, id)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.updateLastAccessLocked()
	delete(s.noDelay, eid)
	return assemble(s.game, id)
}

func (s *Session) owesPreviousGame(eid int) bool {
	s.prevMu.Lock()
	defer s.prevMu.Unlock()
	return s.inPreviousGame[eid]
}

func (s *Session) takePreviousGameIfOwed(eid int) (game.Game, bool) {
	s.prevMu.Lock()
	defer s.prevMu.Unlock()
	if !s.inPreviousGame[eid] {
		return nil, false
	}
	delete(s.inPreviousGame, eid)
	return s.previousGame, true
}

// Restart resets the game instance. If the current game has ended, a
// snapshot of it is retained so that every other effective id receives its
// terminal state exactly once (spec §4.4, §11).
func (s *Session) Restart(starterID int) {
	s.mu.Lock()
	if s.game.GameOver() {
		s.prevMu.Lock()
		s.previousGame = s.game.Snapshot()
		s.inPreviousGame = make(map[int]bool, s.nPlayers*2)
		for id := 0; id < s.nPlayers*2; id++ {
			if id != starterID {
				s.inPreviousGame[id] = true
			}
		}
		s.prevMu.Unlock()
	}
	s.newGame()
	s.mu.Unlock()

	s.WakeWaiters()
}

func (s *Session) updateLastAccessLocked() {
	s.lastAccess = time.Now()
}

// Touch records an access without mutating game state, keeping a session
// alive for the reaper. No handler in the framework calls it.
func (s *Session) Touch() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updateLastAccessLocked()
}

func assemble(g game.Game, playerID int) map[string]interface{} {
	state := g.State(playerID)
	out := make(map[string]interface{}, len(state)+2)
	for k, v := range state {
		out[k] = v
	}
	out["current"] = g.CurrentPlayer()
	out["gameover"] = g.GameOver()
	return out
}

func containsInt(xs []int, x int) bool {
	for _, v := range xs {
		if v == x {
			return true
		}
	}
	return false
}

func generateKey() (string, error) {
	b := make([]byte, keyLength)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("session: failed to generate key: %w", err)
	}
	for i := range b {
		b[i] = keyAlphabet[int(b[i])%len(keyAlphabet)]
	}
	return string(b), nil
}
