// Package apperr builds the tagged error envelope returned to clients.
//
// Grounded on original_source/server/utility.py's generic_error / server_error
// / framework_error / game_error helpers: every error response is
// {status:"error", message:"<source>: <text>"}, except a game error whose
// message is not a string, which is passed through verbatim with no prefix.
package apperr

import "fmt"

// Source identifies which layer of the server detected an error.
type Source string

const (
	Server    Source = "server"
	Framework Source = "framework"
	Game      Source = "game"
)

// Error is the tagged error the framework and server hand back to a
// connection handler. Message may be any JSON-marshalable value; Error()
// is the canonical text used for Go's error interface and for logging.
type Error struct {
	Src     Source
	Message interface{}
}

// New builds an Error whose message is a source-prefixed string.
func New(src Source, format string, args ...interface{}) *Error {
	return &Error{Src: src, Message: fmt.Sprintf(format, args...)}
}

// NewGamePayload builds a game-sourced error whose message is an arbitrary
// JSON value (e.g. the struct or tuple a concrete game returned from Move).
// Per the wire contract (spec §4.2), a non-string game message is never
// prefixed with "game: ".
func NewGamePayload(message interface{}) *Error {
	return &Error{Src: Game, Message: message}
}

// Error implements the error interface.
func (e *Error) Error() string {
	if s, ok := e.Message.(string); ok {
		return prefixed(e.Src, s)
	}
	return fmt.Sprintf("%s: %v", e.Src, e.Message)
}

// Payload returns the value that belongs in the response envelope's
// "message" field: a source-prefixed string for string messages, or the
// message verbatim for anything else (so structured game errors survive
// JSON-encoding unprefixed and unmodified).
func (e *Error) Payload() interface{} {
	if s, ok := e.Message.(string); ok {
		return prefixed(e.Src, s)
	}
	return e.Message
}

func prefixed(src Source, s string) string {
	return string(src) + ": " + s
}
