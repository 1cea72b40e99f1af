package server_test

import (
	"context"
	"encoding/json"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"turnserver/internal/framework"
	"turnserver/internal/game"
	"turnserver/internal/games/tictactoe"
	"turnserver/internal/logging"
	"turnserver/internal/server"
	"turnserver/internal/wire"
)

func startTestServer(t *testing.T) (addr string, shutdown func()) {
	t.Helper()
	return startTestServerWithTimeout(t, 2*time.Second)
}

func startTestServerWithTimeout(t *testing.T, connectionTimeout time.Duration) (addr string, shutdown func()) {
	t.Helper()
	registry := game.NewRegistry(map[string]game.Class{"TicTacToe": tictactoe.Class})
	fw := framework.New(registry, time.Second, 1<<16, logging.Loggers{})
	srv := server.New("127.0.0.1:0", fw, 4096, 1<<20, connectionTimeout, logging.Loggers{})

	require.NoError(t, srv.Listen())
	addr = srv.Addr().String()

	done := make(chan struct{})
	go func() {
		srv.Run()
		close(done)
	}()

	return addr, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		srv.Shutdown(ctx)
		<-done
	}
}

func roundTrip(t *testing.T, addr string, req map[string]interface{}) map[string]interface{} {
	t.Helper()
	conn, err := net.DialTimeout("tcp", addr, time.Second)
	require.NoError(t, err)
	defer conn.Close()

	payload, err := wire.EncodeRequest(req)
	require.NoError(t, err)
	_, err = conn.Write(payload)
	require.NoError(t, err)

	dec := json.NewDecoder(conn)
	var resp map[string]interface{}
	require.NoError(t, dec.Decode(&resp))
	return resp
}

func TestServer_UnknownRequestTypeRoundTrip(t *testing.T) {
	addr, shutdown := startTestServer(t)
	defer shutdown()

	resp := roundTrip(t, addr, map[string]interface{}{"type": "nonsense"})
	assert.Equal(t, "error", resp["status"])
	assert.Equal(t, "framework: unknown request type 'nonsense'", resp["message"])
}

func TestServer_ClosesConnectionAfterOneResponse(t *testing.T) {
	addr, shutdown := startTestServer(t)
	defer shutdown()

	conn, err := net.DialTimeout("tcp", addr, time.Second)
	require.NoError(t, err)
	defer conn.Close()

	payload, err := wire.EncodeRequest(map[string]interface{}{"type": "nonsense"})
	require.NoError(t, err)
	_, err = conn.Write(payload)
	require.NoError(t, err)

	dec := json.NewDecoder(conn)
	var resp map[string]interface{}
	require.NoError(t, dec.Decode(&resp))

	buf := make([]byte, 16)
	conn.SetReadDeadline(time.Now().Add(time.Second))
	n, err := conn.Read(buf)
	assert.Equal(t, 0, n)
	assert.Error(t, err, "server must close the connection after its one response")
}

func TestServer_ReadDeadlineProducesTimeoutMessage(t *testing.T) {
	addr, shutdown := startTestServerWithTimeout(t, 20*time.Millisecond)
	defer shutdown()

	conn, err := net.DialTimeout("tcp", addr, time.Second)
	require.NoError(t, err)
	defer conn.Close()

	// Connect but never send the sentinel, so the server's read deadline is
	// what ends the request, not a client disconnect or a parse error.

	dec := json.NewDecoder(conn)
	var resp map[string]interface{}
	require.NoError(t, dec.Decode(&resp))
	assert.Equal(t, "error", resp["status"])
	assert.Equal(t, "server: connection timed out on server", resp["message"])
}
