// Package framework routes client requests to session operations: join,
// move, state, observe, restart. It owns the game registry and the
// (game-name, token) -> Session table, including admission waits and the
// idle-session reaper.
//
// Grounded on the teacher's internal/server/game_manager.go and
// session_manager.go (an RWMutex-guarded map with Create/Get/Remove-style
// methods) and, for the exact per-request algorithms, on
// original_source/server/game_framework.py and utility.check_dict.
package framework

import (
	"runtime/debug"
	"sync"
	"time"

	"turnserver/internal/apperr"
	"turnserver/internal/game"
	"turnserver/internal/logging"
	"turnserver/internal/session"
)

type sessionKey struct {
	gameName string
	token    string
}

// Framework dispatches requests by type and owns the registry of active
// sessions.
type Framework struct {
	registry *game.Registry
	logs     logging.Loggers

	gameTimeout    time.Duration
	requestSizeMax int

	mu       sync.RWMutex
	sessions map[sessionKey]*session.Session
}

// New builds a Framework around a pre-populated game registry.
func New(registry *game.Registry, gameTimeout time.Duration, requestSizeMax int, logs logging.Loggers) *Framework {
	return &Framework{
		registry:       registry,
		logs:           logs,
		gameTimeout:    gameTimeout,
		requestSizeMax: requestSizeMax,
		sessions:       make(map[sessionKey]*session.Session),
	}
}

// Handle dispatches a decoded request and returns the response envelope
// ({"status": ..., "data"/"message": ...}) ready to be written back over the
// wire. It never panics outward: an unexpected error is converted to a
// framework: internal error response and logged.
func (f *Framework) Handle(req map[string]interface{}) (resp map[string]interface{}) {
	defer func() {
		if r := recover(); r != nil {
			f.logs.ServerError.Error().Interface("panic", r).Str("stack", string(debug.Stack())).Msg("recovered panic while handling request")
			resp = errorResponse(apperr.New(apperr.Framework, "internal error"))
		}
	}()

	f.logs.FrameworkRequest.Info().Interface("request", req).Msg("request")

	typ, ok := req["type"].(string)
	if !ok {
		resp = errorResponse(apperr.New(apperr.Framework, "key 'type' of type str missing"))
		f.logs.FrameworkResponse.Info().Interface("response", resp).Msg("response")
		return resp
	}

	var appErr *apperr.Error
	var data interface{}

	switch typ {
	case "join":
		data, appErr = f.handleJoin(req)
	case "move":
		data, appErr = f.handleMove(req)
	case "state":
		data, appErr = f.handleState(req)
	case "observe":
		data, appErr = f.handleObserve(req)
	case "restart":
		data, appErr = f.handleRestart(req)
	default:
		appErr = apperr.New(apperr.Framework, "unknown request type '%s'", typ)
	}

	if appErr != nil {
		resp = errorResponse(appErr)
	} else {
		resp = okResponse(data)
	}

	f.logs.FrameworkResponse.Info().Interface("response", resp).Msg("response")
	return resp
}

func okResponse(data interface{}) map[string]interface{} {
	return map[string]interface{}{"status": "ok", "data": data}
}

func errorResponse(err *apperr.Error) map[string]interface{} {
	return map[string]interface{}{"status": "error", "message": err.Payload()}
}

// --- join ---------------------------------------------------------------

func (f *Framework) handleJoin(req map[string]interface{}) (interface{}, *apperr.Error) {
	gameName, token, err := requireGameToken(req)
	if err != nil {
		return nil, err
	}
	name, _ := optionalString(req, "name")

	class, ok := f.registry.Lookup(gameName)
	if !ok {
		return nil, apperr.New(apperr.Framework, "no such game")
	}

	players, hasPlayers, typeErr := optionalPositiveInt(req, "players")
	if typeErr != nil {
		return nil, typeErr
	}

	key := sessionKey{gameName: gameName, token: token}

	sess, created, err := f.getOrCreateSession(key, class, players, hasPlayers)
	if err != nil {
		return nil, err
	}

	if !created && sess.Full() {
		if !hasPlayers {
			return nil, apperr.New(apperr.Framework, "game is already full")
		}
		sess.MarkOverwritten()

		newSess := session.New(class, players)
		f.mu.Lock()
		f.sessions[key] = newSess
		f.mu.Unlock()
		sess = newSess
	}

	playerID, playerKey, err := f.admit(sess, name)
	if err != nil {
		return nil, err
	}

	if err := f.awaitAdmission(key, sess); err != nil {
		return nil, err
	}

	return map[string]interface{}{
		"player_id":        playerID,
		"key":              playerKey,
		"request_size_max": f.requestSizeMax,
	}, nil
}

func (f *Framework) getOrCreateSession(key sessionKey, class game.Class, players int, hasPlayers bool) (*session.Session, bool, *apperr.Error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if sess, ok := f.sessions[key]; ok {
		return sess, false, nil
	}

	if !hasPlayers {
		return nil, false, apperr.New(apperr.Framework, "no such game session")
	}
	if err := class.ValidatePlayerCount(players); err != nil {
		return nil, false, apperr.New(apperr.Framework, "%s", err.Error())
	}

	sess := session.New(class, players)
	f.sessions[key] = sess
	return sess, true, nil
}

func (f *Framework) admit(sess *session.Session, name string) (int, string, *apperr.Error) {
	id, key, err := sess.NextID(name)
	if err != nil {
		return 0, "", apperr.New(apperr.Framework, "%s", err.Error())
	}
	return id, key, nil
}

// awaitAdmission blocks until sess is full, overwritten, or gameTimeout has
// elapsed since its last access (game_framework.py's _await_game_start,
// generalized from polling to a condition-variable wait).
func (f *Framework) awaitAdmission(key sessionKey, sess *session.Session) *apperr.Error {
	for {
		if sess.Overwritten() {
			return apperr.New(apperr.Framework, "game session overwritten")
		}
		if sess.Full() {
			return nil
		}

		deadline := sess.LastAccess().Add(f.gameTimeout)
		remaining := time.Until(deadline)
		if remaining <= 0 {
			f.expireSession(key, sess)
			return apperr.New(apperr.Framework, "timeout while waiting for others to join")
		}

		baseline := sess.Version()
		woke := make(chan struct{})
		go func() {
			sess.WaitForChange(baseline)
			close(woke)
		}()

		select {
		case <-woke:
			// loop around and re-check full/overwritten/deadline
		case <-time.After(remaining):
			if !sess.Full() && !sess.Overwritten() {
				f.expireSession(key, sess)
				return apperr.New(apperr.Framework, "timeout while waiting for others to join")
			}
		}
	}
}

func (f *Framework) expireSession(key sessionKey, sess *session.Session) {
	f.mu.Lock()
	if f.sessions[key] == sess {
		delete(f.sessions, key)
	}
	f.mu.Unlock()
	sess.MarkTimedOut()
	sess.WakeWaiters()
}

// --- move -----------------------------------------------------------------

func (f *Framework) handleMove(req map[string]interface{}) (interface{}, *apperr.Error) {
	sess, playerID, appErr := f.authenticate(req)
	if appErr != nil {
		return nil, appErr
	}

	move, moveErr := requiredMap(req, "move")
	if moveErr != nil {
		return nil, moveErr
	}

	if sess.GameOver() {
		return nil, apperr.New(apperr.Framework, "game has ended")
	}
	if !containsInt(sess.CurrentPlayer(), playerID) {
		return nil, apperr.New(apperr.Framework, "not your turn")
	}

	errPayload, ok := sess.Move(move, playerID)
	if !ok {
		return nil, apperr.NewGamePayload(errPayload)
	}
	return nil, nil
}

// --- state ------------------------------------------------------------

func (f *Framework) handleState(req map[string]interface{}) (interface{}, *apperr.Error) {
	sess, playerID, appErr := f.authenticate(req)
	if appErr != nil {
		return nil, appErr
	}

	rawObserver, present := req["observer"]
	if !present {
		return nil, apperr.New(apperr.Framework, "key 'observer' of type bool missing")
	}
	observer, ok := rawObserver.(bool)
	if !ok {
		return nil, apperr.New(apperr.Framework, "key 'observer' of type bool invalid")
	}

	state := sess.State(playerID, observer)
	if sess.Overwritten() {
		return nil, apperr.New(apperr.Framework, "game session overwritten")
	}
	return state, nil
}

// --- observe ------------------------------------------------------------

func (f *Framework) handleObserve(req map[string]interface{}) (interface{}, *apperr.Error) {
	gameName, token, err := requireGameToken(req)
	if err != nil {
		return nil, err
	}
	name, nameErr := requiredNonEmptyString(req, "name")
	if nameErr != nil {
		return nil, nameErr
	}

	sess, ok := f.lookupSession(gameName, token)
	if !ok {
		return nil, apperr.New(apperr.Framework, "no such game session")
	}
	if !sess.Full() {
		return nil, apperr.New(apperr.Framework, "game has not yet started")
	}

	id, key, ok := sess.LookupByName(name)
	if !ok {
		return nil, apperr.New(apperr.Framework, "no such player")
	}

	return map[string]interface{}{"player_id": id, "key": key}, nil
}

// --- restart ------------------------------------------------------------

func (f *Framework) handleRestart(req map[string]interface{}) (interface{}, *apperr.Error) {
	sess, playerID, appErr := f.authenticate(req)
	if appErr != nil {
		return nil, appErr
	}
	if playerID != 0 {
		return nil, apperr.New(apperr.Framework, "game can only be restarted by starter")
	}

	sess.Restart(playerID)
	return nil, nil
}

// --- shared auth/lookup --------------------------------------------------

func (f *Framework) authenticate(req map[string]interface{}) (*session.Session, int, *apperr.Error) {
	gameName, token, err := requireGameToken(req)
	if err != nil {
		return nil, 0, err
	}
	playerID, err := requiredInt(req, "player_id")
	if err != nil {
		return nil, 0, err
	}
	key, err := requiredString(req, "key")
	if err != nil {
		return nil, 0, err
	}

	sess, ok := f.lookupSession(gameName, token)
	if !ok {
		return nil, 0, apperr.New(apperr.Framework, "no such game session")
	}
	if sess.Overwritten() {
		return nil, 0, apperr.New(apperr.Framework, "game session overwritten")
	}
	if !sess.KeyValid(playerID, key) {
		return nil, 0, apperr.New(apperr.Framework, "invalid key")
	}

	return sess, playerID, nil
}

func (f *Framework) lookupSession(gameName, token string) (*session.Session, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	sess, ok := f.sessions[sessionKey{gameName: gameName, token: token}]
	return sess, ok
}

// --- reaper ---------------------------------------------------------------

// Reap removes every session whose last access is older than gameTimeout,
// marking each timed out and waking anyone still blocked in a long-poll
// against it.
func (f *Framework) Reap(now time.Time) int {
	f.mu.Lock()
	var expired []*session.Session
	for key, sess := range f.sessions {
		if now.Sub(sess.LastAccess()) >= f.gameTimeout {
			expired = append(expired, sess)
			delete(f.sessions, key)
		}
	}
	f.mu.Unlock()

	for _, sess := range expired {
		sess.MarkTimedOut()
		sess.WakeWaiters()
	}

	return len(expired)
}

// RunReaper blocks, waking every gameTimeout to reap idle sessions, until
// stop is closed.
func (f *Framework) RunReaper(stop <-chan struct{}) {
	ticker := time.NewTicker(f.gameTimeout)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			n := f.Reap(time.Now())
			if n > 0 {
				f.logs.FrameworkInfo.Info().Int("count", n).Msg("reaped idle sessions")
			}
		case <-stop:
			return
		}
	}
}

// SessionCount reports the number of active sessions, for diagnostics/tests.
func (f *Framework) SessionCount() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.sessions)
}

func containsInt(xs []int, x int) bool {
	for _, v := range xs {
		if v == x {
			return true
		}
	}
	return false
}
