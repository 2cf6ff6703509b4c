package websocket

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/classrelay/relay/internal/router"
	"github.com/classrelay/relay/pkg/interfaces"
	"github.com/classrelay/relay/pkg/types"
)

// readWait is how long a connection may stay silent before the transport
// considers it dead. pingInterval must stay comfortably below it so the
// server's own pings keep resetting the deadline on healthy peers.
const (
	readWait        = 60 * time.Second
	pingInterval    = 30 * time.Second
	writeBufferSize = 256
)

var upgrader = websocket.Upgrader{
	CheckOrigin:      func(r *http.Request) bool { return true },
	HandshakeTimeout: 10 * time.Second,
}

// DrainNotifier is the subset of session.Service the handler needs to
// start the grace window when a session's last student leaves while a
// teacher remains, to end the session once that window lapses, and to
// decrement the student count (spec.md §4.9). A narrow interface here keeps this package
// from depending on internal/session's full surface.
type DrainNotifier interface {
	BeginDrain(sessionID string, onExpire func())
	EndSession(ctx context.Context, sessionID string) (*types.Session, error)
	IncrementStudents(ctx context.Context, sessionID string, delta int) error
}

// ClassroomNotifier lets the handler flip a classroom code's
// teacherConnected flag when its teacher's socket drops (spec.md §4.11),
// without pulling in the rest of classroom.Service.
type ClassroomNotifier interface {
	SetTeacherConnected(ctx context.Context, sessionID string, connected bool) error
}

// Handler upgrades incoming HTTP requests to WebSocket connections, wires
// each one into the registry, and dispatches every subsequent frame
// through Router until the connection closes.
type Handler struct {
	registry   *Registry
	router     *router.Router
	drain      DrainNotifier
	classrooms ClassroomNotifier
}

func NewHandler(registry *Registry, rtr *router.Router, drain DrainNotifier, classrooms ClassroomNotifier) *Handler {
	return &Handler{registry: registry, router: rtr, drain: drain, classrooms: classrooms}
}

// ServeHTTP upgrades the request, registers a Peer with no role assigned
// yet, and starts its read pump. Role and session membership are only
// established once the client sends a register frame (spec.md §4.1).
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("websocket: upgrade failed: %v", err)
		return
	}

	peer := NewPeer(conn, uuid.New().String(), writeBufferSize)
	if err := h.registry.Register(peer); err != nil {
		log.Printf("websocket: failed to register peer: %v", err)
		_ = peer.Close(websocket.CloseInternalServerErr, "registration failed")
		return
	}

	go h.readPump(peer)
}

// readPump owns the connection's read deadline, transport-level
// ping/pong liveness, and message dispatch. One goroutine per connection,
// matching the teacher's single-goroutine-per-socket shape.
func (h *Handler) readPump(peer *Peer) {
	defer h.cleanup(peer)

	conn := peer.conn
	_ = conn.SetReadDeadline(time.Now().Add(readWait))
	conn.SetPongHandler(func(string) error {
		peer.MarkAlive()
		return conn.SetReadDeadline(time.Now().Add(readWait))
	})

	go h.pingLoop(peer)

	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("websocket: read error for %s: %v", peer.Handle(), err)
			}
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := h.router.Route(ctx, peer, data); err != nil {
			log.Printf("websocket: routing error for %s: %v", peer.Handle(), err)
		}
		cancel()
	}
}

// pingLoop sends transport-level pings on a fixed interval, independent
// of the application-level ping/pong frames handlers.Ping answers
// (spec.md §4.10 distinguishes the two).
func (h *Handler) pingLoop(peer *Peer) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := peer.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(10*time.Second)); err != nil {
				return
			}
		case <-peer.ctx.Done():
			return
		}
	}
}

// cleanup unregisters the peer and then drives the rs/rt teardown matrix
// (spec.md §4.11): with no teachers and no students left the session ends
// immediately, with a teacher but no students a grace timer gives a
// reconnecting student a window to resume, and with students but no
// teacher the session is simply left open for the grace/cleanup path.
func (h *Handler) cleanup(peer *Peer) {
	h.registry.Unregister(peer)
	_ = peer.Close(websocket.CloseNormalClosure, "connection closed")

	sessionID := peer.SessionID()
	if sessionID == "" || h.drain == nil {
		return
	}

	if peer.Role() == string(types.RoleStudent) && peer.Counted() {
		if err := h.drain.IncrementStudents(context.Background(), sessionID, -1); err != nil {
			log.Printf("websocket: failed to decrement studentsCount for session %s: %v", sessionID, err)
		}
	}

	rs := len(h.registry.SessionStudents(sessionID, ""))
	rt := len(h.registry.SessionTeachers(sessionID))

	if peer.Role() == string(types.RoleTeacher) && rt == 0 && h.classrooms != nil {
		if err := h.classrooms.SetTeacherConnected(context.Background(), sessionID, false); err != nil {
			log.Printf("websocket: failed to mark teacher disconnected for session %s: %v", sessionID, err)
		}
	}

	switch {
	case rs == 0 && rt == 0:
		if _, err := h.drain.EndSession(context.Background(), sessionID); err != nil {
			log.Printf("websocket: failed to end abandoned session %s: %v", sessionID, err)
		}
	case rs == 0 && rt > 0:
		h.drain.BeginDrain(sessionID, func() {
			if _, err := h.drain.EndSession(context.Background(), sessionID); err != nil {
				log.Printf("websocket: failed to end drained session %s: %v", sessionID, err)
			}
			h.registry.CloseSession(sessionID, websocket.CloseNormalClosure, "session ended")
		})
	}
	// rt==0 && rs>0 leaves the session open for the grace/cleanup path.
}

var _ interfaces.Peer = (*Peer)(nil)
