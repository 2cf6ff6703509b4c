package interfaces

import "time"

// Peer is the narrow view of a live connection that handlers, the router,
// FanOutService, and ResponseWriter depend on. It is implemented by
// *websocket.Peer; tests substitute a fake.
//
// WriteJSON must be safe for concurrent use and must preserve per-peer
// outbound ordering (spec.md §5): implementations serialize writes through
// a single writer goroutine rather than locking around the socket.
type Peer interface {
	Handle() string
	SessionID() string
	SetSessionID(id string)
	Role() string
	SetRole(role string)
	Language() string
	SetLanguage(lang string)
	Name() string
	SetName(name string)
	Settings() map[string]interface{}
	SetSettings(settings map[string]interface{})
	MergeSettings(settings map[string]interface{})
	Counted() bool
	SetCounted(counted bool)

	MarkAlive()
	IsAlive() bool
	MarkDead()

	WriteJSON(v interface{}) error
	Close(code int, reason string) error

	LastSeen() time.Time
}
