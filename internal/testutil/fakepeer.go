package testutil

import (
	"sync"
	"time"
)

// FakePeer implements interfaces.Peer without a real socket.
type FakePeer struct {
	mu sync.Mutex

	handle    string
	sessionID string
	role      string
	language  string
	name      string
	settings  map[string]interface{}
	counted   bool
	alive     bool
	lastSeen  time.Time
	closed    bool
	closeCode int
	closeMsg  string

	Sent []interface{}
}

func NewFakePeer(handle string) *FakePeer {
	return &FakePeer{
		handle:   handle,
		settings: make(map[string]interface{}),
		alive:    true,
		lastSeen: time.Now(),
	}
}

func (p *FakePeer) Handle() string { return p.handle }

func (p *FakePeer) SessionID() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.sessionID
}

func (p *FakePeer) SetSessionID(id string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sessionID = id
}

func (p *FakePeer) Role() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.role
}

func (p *FakePeer) SetRole(role string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.role = role
}

func (p *FakePeer) Language() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.language
}

func (p *FakePeer) SetLanguage(lang string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.language = lang
}

func (p *FakePeer) Name() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.name
}

func (p *FakePeer) SetName(name string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.name = name
}

func (p *FakePeer) Settings() map[string]interface{} {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make(map[string]interface{}, len(p.settings))
	for k, v := range p.settings {
		out[k] = v
	}
	return out
}

func (p *FakePeer) SetSettings(settings map[string]interface{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.settings = settings
}

func (p *FakePeer) MergeSettings(settings map[string]interface{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for k, v := range settings {
		p.settings[k] = v
	}
}

func (p *FakePeer) Counted() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.counted
}

func (p *FakePeer) SetCounted(counted bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.counted = counted
}

func (p *FakePeer) MarkAlive() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.alive = true
	p.lastSeen = time.Now()
}

func (p *FakePeer) IsAlive() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.alive
}

func (p *FakePeer) MarkDead() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.alive = false
}

func (p *FakePeer) LastSeen() time.Time {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastSeen
}

func (p *FakePeer) WriteJSON(v interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Sent = append(p.Sent, v)
	return nil
}

func (p *FakePeer) Close(code int, reason string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	p.closeCode = code
	p.closeMsg = reason
	p.alive = false
	return nil
}

func (p *FakePeer) Closed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}
