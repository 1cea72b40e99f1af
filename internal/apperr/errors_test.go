package apperr

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNew_PrefixesStringMessage(t *testing.T) {
	err := New(Framework, "not your turn")
	assert.Equal(t, "framework: not your turn", err.Error())
	assert.Equal(t, "framework: not your turn", err.Payload())
}

func TestNew_Formats(t *testing.T) {
	err := New(Framework, "key '%s' of type %s missing", "player_id", "int")
	assert.Equal(t, "framework: key 'player_id' of type int missing", err.Error())
}

func TestNewGamePayload_StringStillPrefixed(t *testing.T) {
	err := NewGamePayload("position already occupied")
	assert.Equal(t, "game: position already occupied", err.Payload())
}

func TestNewGamePayload_StructuredMessageBypassesPrefix(t *testing.T) {
	payload := map[string]interface{}{"code": "OCCUPIED", "position": 4}
	err := NewGamePayload(payload)
	assert.Equal(t, payload, err.Payload())
}
