package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// closeRequest carries the close code/reason from Close into the writer
// goroutine, which is the only goroutine allowed to touch conn so a
// pending frame queued just before Close (an error frame, typically)
// still reaches the client before the close frame (spec.md §7).
type closeRequest struct {
	code   int
	reason string
}

// Peer wraps a single gorilla/websocket connection and implements
// interfaces.Peer. Writes are serialized through a single writer goroutine
// so concurrent callers (handlers, fan-out legs, the health sweep) never
// race on the underlying socket (spec.md §5).
type Peer struct {
	conn    *websocket.Conn
	handle  string
	writeCh chan []byte
	closeCh chan closeRequest
	done    chan struct{}

	ctx    context.Context
	cancel context.CancelFunc
	closeOnce sync.Once
	closeErr  error

	mu        sync.RWMutex
	sessionID string
	role      string
	language  string
	name      string
	settings  map[string]interface{}
	counted   bool
	lastSeen  time.Time

	alive int32 // atomic bool
}

// NewPeer wraps conn and starts its writer goroutine. handle is a unique,
// caller-assigned identifier (typically a uuid) distinct from any
// application-level id.
func NewPeer(conn *websocket.Conn, handle string, bufferSize int) *Peer {
	ctx, cancel := context.WithCancel(context.Background())
	p := &Peer{
		conn:     conn,
		handle:   handle,
		writeCh:  make(chan []byte, bufferSize),
		closeCh:  make(chan closeRequest, 1),
		done:     make(chan struct{}),
		ctx:      ctx,
		cancel:   cancel,
		settings: make(map[string]interface{}),
		lastSeen: time.Now(),
		alive:    1,
	}

	go p.writeLoop()
	return p
}

func (p *Peer) writeLoop() {
	defer close(p.done)
	defer func() {
		for len(p.writeCh) > 0 {
			<-p.writeCh
		}
		close(p.writeCh)
	}()

	for {
		select {
		case data, ok := <-p.writeCh:
			if !ok {
				return
			}
			if err := p.conn.SetWriteDeadline(time.Now().Add(5 * time.Second)); err != nil {
				return
			}
			if err := p.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case req := <-p.closeCh:
			p.flushAndClose(req)
			return
		case <-p.ctx.Done():
			return
		}
	}
}

// flushAndClose drains any frames still sitting in writeCh before sending
// the close control frame, so Close never races a just-queued WriteJSON.
func (p *Peer) flushAndClose(req closeRequest) {
	for {
		select {
		case data := <-p.writeCh:
			if err := p.conn.SetWriteDeadline(time.Now().Add(5 * time.Second)); err != nil {
				continue
			}
			_ = p.conn.WriteMessage(websocket.TextMessage, data)
		default:
			deadline := time.Now().Add(time.Second)
			closeMsg := websocket.FormatCloseMessage(req.code, req.reason)
			_ = p.conn.WriteControl(websocket.CloseMessage, closeMsg, deadline)
			p.closeErr = p.conn.Close()
			return
		}
	}
}

func (p *Peer) WriteJSON(v interface{}) error {
	select {
	case <-p.ctx.Done():
		return ErrConnectionClosed
	default:
	}

	data, err := json.Marshal(v)
	if err != nil {
		return ErrInvalidJSON
	}

	select {
	case p.writeCh <- data:
		return nil
	case <-time.After(5 * time.Second):
		return ErrWriteTimeout
	case <-p.ctx.Done():
		return ErrConnectionClosed
	}
}

// Close asks the writer goroutine to flush any pending frames, send the
// close control frame, and tear down the connection. It blocks briefly
// so a caller doing SendErrorAndClose can rely on the error frame having
// already reached the client once Close returns.
func (p *Peer) Close(code int, reason string) error {
	p.closeOnce.Do(func() {
		atomic.StoreInt32(&p.alive, 0)
		select {
		case p.closeCh <- closeRequest{code: code, reason: reason}:
		default:
		}
		select {
		case <-p.done:
		case <-time.After(2 * time.Second):
		}
		p.cancel()
	})
	return p.closeErr
}

func (p *Peer) Handle() string { return p.handle }

func (p *Peer) SessionID() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.sessionID
}

func (p *Peer) SetSessionID(id string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sessionID = id
}

func (p *Peer) Role() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.role
}

func (p *Peer) SetRole(role string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.role = role
}

func (p *Peer) Language() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.language
}

func (p *Peer) SetLanguage(lang string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.language = lang
}

func (p *Peer) Name() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.name
}

func (p *Peer) SetName(name string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.name = name
}

func (p *Peer) Settings() map[string]interface{} {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make(map[string]interface{}, len(p.settings))
	for k, v := range p.settings {
		out[k] = v
	}
	return out
}

func (p *Peer) SetSettings(settings map[string]interface{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.settings = settings
}

// MergeSettings applies a partial settings update (spec.md §4.8), leaving
// keys not present in settings untouched.
func (p *Peer) MergeSettings(settings map[string]interface{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.settings == nil {
		p.settings = make(map[string]interface{})
	}
	for k, v := range settings {
		p.settings[k] = v
	}
}

func (p *Peer) Counted() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.counted
}

func (p *Peer) SetCounted(counted bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.counted = counted
}

func (p *Peer) MarkAlive() {
	atomic.StoreInt32(&p.alive, 1)
	p.mu.Lock()
	p.lastSeen = time.Now()
	p.mu.Unlock()
}

func (p *Peer) IsAlive() bool {
	return atomic.LoadInt32(&p.alive) == 1
}

func (p *Peer) MarkDead() {
	atomic.StoreInt32(&p.alive, 0)
}

func (p *Peer) LastSeen() time.Time {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.lastSeen
}
