// Package server runs the TCP accept loop: one request per connection,
// length-delimited by internal/wire, dispatched through internal/framework,
// and answered with a single response before the connection closes.
//
// Grounded on the teacher's internal/server/server.go for the overall shape
// (NewServer wiring dependencies, background goroutines, a Shutdown(ctx)
// that the entrypoint calls from its signal handler) and on
// other_examples/458f0dc1_fouadkhalied-microserversProjectv2 for the
// raw net.Listener accept/handle loop itself, since the teacher's transport
// was websocket-over-HTTP and has no net.Listener analogue to adapt.
package server

import (
	"context"
	"errors"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"

	"turnserver/internal/apperr"
	"turnserver/internal/framework"
	"turnserver/internal/logging"
	"turnserver/internal/wire"
)

// Server accepts TCP connections and dispatches each decoded request to a
// Framework.
type Server struct {
	addr              string
	fw                *framework.Framework
	logs              logging.Loggers
	bufferSize        int
	requestSizeMax    int
	connectionTimeout time.Duration

	listener net.Listener

	wg       sync.WaitGroup
	stopOnce sync.Once
	stopReap chan struct{}
}

// New builds a Server bound to addr (host:port). It does not start
// listening until Run is called.
func New(addr string, fw *framework.Framework, bufferSize, requestSizeMax int, connectionTimeout time.Duration, logs logging.Loggers) *Server {
	return &Server{
		addr:              addr,
		fw:                fw,
		logs:              logs,
		bufferSize:        bufferSize,
		requestSizeMax:    requestSizeMax,
		connectionTimeout: connectionTimeout,
		stopReap:          make(chan struct{}),
	}
}

// Listen binds the listening socket without accepting connections yet, so
// callers (and tests) can discover the bound address when addr uses an
// ephemeral port (":0").
func (s *Server) Listen() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	s.listener = ln
	return nil
}

// Addr returns the bound address. Valid only after Listen has succeeded.
func (s *Server) Addr() net.Addr {
	return s.listener.Addr()
}

// Run binds the listening socket if not already bound, starts the idle-
// session reaper, and accepts connections until the listener is closed by
// Shutdown.
func (s *Server) Run() error {
	if s.listener == nil {
		if err := s.Listen(); err != nil {
			return err
		}
	}
	ln := s.listener

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.fw.RunReaper(s.stopReap)
	}()

	s.logs.ServerInfo.Info().Str("addr", ln.Addr().String()).Msg("listening")

	for {
		conn, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			s.logs.ServerError.Error().Err(err).Msg("accept failed")
			continue
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handleConnection(conn)
		}()
	}
}

func (s *Server) handleConnection(conn net.Conn) {
	connID := uuid.NewString()
	defer conn.Close()

	if s.connectionTimeout > 0 {
		_ = conn.SetDeadline(time.Now().Add(s.connectionTimeout))
	}

	req, err := wire.ReadRequest(conn, s.bufferSize, s.requestSizeMax)
	if err != nil {
		if errors.Is(err, wire.ErrClientDisconnect) {
			return
		}
		s.logs.ServerError.Error().Str("conn", connID).Err(err).Msg("failed to read request")
		if s.connectionTimeout > 0 {
			// The read may have consumed the whole deadline; give the error
			// response its own write window.
			_ = conn.SetWriteDeadline(time.Now().Add(s.connectionTimeout))
		}
		_ = wire.WriteResponse(conn, errorResponse(err))
		return
	}

	resp := s.fw.Handle(req)

	if err := wire.WriteResponse(conn, resp); err != nil {
		if isTimeout(err) {
			s.logs.ServerError.Error().Str("conn", connID).Err(err).Msg("timed out writing response")
			return
		}
		s.logs.ServerError.Error().Str("conn", connID).Err(err).Msg("failed to write response")
	}
}

// errorResponse builds the transport-layer error envelope for a failed
// read, substituting the spec's literal timeout message for Go's raw
// net.Error text when the deadline set in handleConnection was the cause.
func errorResponse(err error) map[string]interface{} {
	if isTimeout(err) {
		return map[string]interface{}{"status": "error", "message": apperr.New(apperr.Server, "connection timed out on server").Payload()}
	}
	return map[string]interface{}{"status": "error", "message": apperr.New(apperr.Server, "%s", err.Error()).Payload()}
}

func isTimeout(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// Shutdown stops accepting new connections and waits for in-flight
// connections and the reaper to exit, or for ctx to expire.
func (s *Server) Shutdown(ctx context.Context) error {
	s.stopOnce.Do(func() {
		if s.listener != nil {
			_ = s.listener.Close()
		}
		close(s.stopReap)
	})

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
