package logging

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"

	"turnserver/internal/config"
)

func TestNew_DisabledCategoryProducesNoOutput(t *testing.T) {
	cfg := config.Default()
	cfg.LogServerInfo = false

	logs := New(cfg)

	var buf bytes.Buffer
	logs.ServerInfo = logs.ServerInfo.Output(&buf)
	logs.ServerInfo.Info().Msg("should not appear")

	assert.Empty(t, buf.String())
}

func TestNew_EnabledCategoryWrites(t *testing.T) {
	cfg := config.Default()
	cfg.LogFrameworkRequest = true

	logs := New(cfg)

	var buf bytes.Buffer
	logs.FrameworkRequest = logs.FrameworkRequest.Output(&buf)
	logs.FrameworkRequest.Info().Msg("join received")

	assert.Contains(t, buf.String(), "join received")
}
