// Package web exposes the controller to the simulator over its websocket
// protocol: telemetry events in, steer or manual events out.
package web

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/edaniels/golog"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"go.viam.com/utils"

	"go.viam.com/mpc/pilot"
)

// statusPage answers plain HTTP probes on the root path.
const statusPage = "<h1>Hello world!</h1>"

// Commander turns one telemetry sample into one command.
type Commander interface {
	Cycle(ctx context.Context, tel pilot.Telemetry) (*pilot.Command, error)
}

// Server accepts simulator websocket connections and runs the commander
// once per telemetry event.
type Server struct {
	commander Commander
	logger    golog.Logger
	upgrader  websocket.Upgrader

	mu    sync.Mutex
	conns map[*websocket.Conn]struct{}
}

// NewServer wires a server to the given commander.
func NewServer(commander Commander, logger golog.Logger) *Server {
	return &Server{
		commander: commander,
		logger:    logger,
		upgrader: websocket.Upgrader{
			// The simulator connects without an Origin header.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		conns: map[*websocket.Conn]struct{}{},
	}
}

// Run listens on the given port and serves until the context is done.
func (s *Server) Run(ctx context.Context, port int) error {
	listener, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return err
	}
	return s.Serve(ctx, listener)
}

// Serve serves on the listener until the context is done. Open websocket
// connections are closed on the way out.
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	httpServer := &http.Server{
		Addr:           listener.Addr().String(),
		ReadTimeout:    10 * time.Second,
		MaxHeaderBytes: 1 << 20,
		Handler:        s,
		BaseContext:    func(net.Listener) context.Context { return ctx },
	}
	utils.PanicCapturingGo(func() {
		<-ctx.Done()
		if err := httpServer.Shutdown(context.Background()); err != nil {
			s.logger.Errorw("error shutting down", "error", err)
		}
		s.closeConns()
	})
	s.logger.Infow("serving", "url", fmt.Sprintf("http://%s", listener.Addr().String()))
	if err := httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if websocket.IsWebSocketUpgrade(r) {
		conn, err := s.upgrader.Upgrade(w, r, nil)
		if err != nil {
			s.logger.Errorw("websocket upgrade failed", "error", err)
			return
		}
		s.serveConn(r.Context(), conn)
		return
	}
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	if _, err := w.Write([]byte(statusPage)); err != nil {
		s.logger.Debugw("error writing status page", "error", err)
	}
}

// serveConn reads frames until the connection drops, answering each one.
func (s *Server) serveConn(ctx context.Context, conn *websocket.Conn) {
	s.trackConn(conn, true)
	defer s.trackConn(conn, false)
	defer utils.UncheckedErrorFunc(conn.Close)
	s.logger.Infow("simulator connected", "remote", conn.RemoteAddr())
	defer s.logger.Infow("simulator disconnected", "remote", conn.RemoteAddr())

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Debugw("connection read failed", "error", err)
			}
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}
		reply := s.handleFrame(ctx, data)
		if reply == nil {
			continue
		}
		if err := conn.WriteMessage(websocket.TextMessage, reply); err != nil {
			s.logger.Debugw("connection write failed", "error", err)
			return
		}
	}
}

// handleFrame maps one inbound frame to its reply. Frames that are not
// events get no reply; events that cannot drive a control cycle get the
// manual frame so the simulator stays under external control.
func (s *Server) handleFrame(ctx context.Context, data []byte) []byte {
	event, payload, err := parseEventFrame(data)
	if err != nil {
		return nil
	}
	if event != telemetryEvent || len(payload) == 0 {
		return manualFrame
	}
	tel, err := decodeTelemetry(payload)
	if err != nil {
		s.logger.Warnw("undecodable telemetry", "error", err)
		return manualFrame
	}
	cmd, err := s.commander.Cycle(ctx, tel)
	if err != nil {
		s.logger.Warnw("cycle produced no command", "error", err)
		return manualFrame
	}
	reply, err := encodeSteer(cmd)
	if err != nil {
		s.logger.Errorw("could not encode command", "error", err)
		return manualFrame
	}
	return reply
}

func (s *Server) trackConn(conn *websocket.Conn, add bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if add {
		s.conns[conn] = struct{}{}
		return
	}
	delete(s.conns, conn)
}

func (s *Server) closeConns() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for conn := range s.conns {
		utils.UncheckedError(conn.Close())
	}
}
