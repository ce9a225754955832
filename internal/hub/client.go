package hub

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"creditwatch/internal/auth"
)

const (
	// writeTimeout is the deadline for a single write to a client. A write
	// that misses it abandons the connection; real-time delivery has no
	// retry contract.
	writeTimeout = 10 * time.Second

	// pongWait is how long to wait for a pong response before treating the
	// connection as dead.
	pongWait = 60 * time.Second

	// pingPeriod controls how often the server sends WebSocket ping frames.
	// Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// sendBufSize is the per-client outgoing message buffer depth.
	sendBufSize = 16

	// maxCommandSize bounds inbound client command frames.
	maxCommandSize = 512
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// Origin checks belong to the reverse proxy in front of this service.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// command is the JSON frame clients send to manage their subscriptions.
type command struct {
	Action    string `json:"action"`
	AccountID int    `json:"account_id"`
}

// AccountStatusLookup answers request_status commands. Injected so the hub
// does not own account state.
type AccountStatusLookup func(accountID int) AccountStatusPayload

// Server exposes the hub over WebSocket. Each accepted connection is
// authenticated, registered with a fresh connection id, and served by a
// read pump (client commands) and a write pump (event delivery).
type Server struct {
	hub    *Hub
	authn  auth.Authenticator
	status AccountStatusLookup
}

// NewServer creates the WebSocket front end for the hub. A nil status
// lookup answers request_status with an unknown status.
func NewServer(h *Hub, authn auth.Authenticator, status AccountStatusLookup) *Server {
	if status == nil {
		status = func(accountID int) AccountStatusPayload {
			return AccountStatusPayload{AccountID: accountID, NewStatus: "Unknown", Timestamp: time.Now().UTC()}
		}
	}
	return &Server{hub: h, authn: authn, status: status}
}

// ServeHTTP authenticates the request, upgrades it, and serves the
// connection until it closes.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	principal, err := s.authn.Authenticate(r)
	if err != nil {
		slog.Warn("Rejected unauthenticated hub connection", "remote", r.RemoteAddr, "error", err)
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// upgrader has already written the error response.
		return
	}

	connID := uuid.New().String()
	send := make(chan []byte, sendBufSize)
	s.hub.OnConnect(connID, principal, send)
	defer s.hub.OnDisconnect(connID)

	go writePump(conn, send)
	s.readPump(conn, connID) // blocks until the connection closes
}

// readPump reads command frames until the connection closes. Malformed
// frames are ignored; unknown connections downstream are no-ops.
func (s *Server) readPump(conn *websocket.Conn, connID string) {
	defer conn.Close()
	conn.SetReadLimit(maxCommandSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var cmd command
		if err := json.Unmarshal(data, &cmd); err != nil {
			slog.Debug("Ignoring malformed hub command", "connection_id", connID, "error", err)
			continue
		}
		s.handleCommand(connID, cmd)
	}
}

// handleCommand applies one client command.
func (s *Server) handleCommand(connID string, cmd command) {
	switch cmd.Action {
	case "join_account":
		s.hub.JoinAccountGroup(connID, cmd.AccountID)
	case "leave_account":
		s.hub.LeaveAccountGroup(connID, cmd.AccountID)
	case "request_status":
		// Answer only the caller.
		s.hub.DeliverToConnection(connID, Event{
			Event: EventAccountStatusReceived,
			Data:  s.status(cmd.AccountID),
		})
	default:
		slog.Debug("Unknown hub command", "connection_id", connID, "action", cmd.Action)
	}
}

// writePump drains the connection's send channel onto the socket and keeps
// the connection alive with periodic pings. Runs in its own goroutine per
// client; exits when the channel is closed or a write fails.
func writePump(conn *websocket.Conn, send <-chan []byte) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case msg, ok := <-send:
			conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if !ok {
				// Channel closed: the hub removed this connection.
				conn.WriteMessage(websocket.CloseMessage, []byte{}) //nolint:errcheck
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}

		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
