package websocket

import (
	"log"
	"sync"

	"github.com/classrelay/relay/pkg/interfaces"
	"github.com/classrelay/relay/pkg/types"
)

// Registry tracks every live peer and indexes it by session for fan-out.
// Pure bookkeeping: it never inspects message contents and never talks to
// the durable store.
type Registry struct {
	mu sync.RWMutex

	global          map[string]interfaces.Peer            // handle -> peer
	sessionTeachers map[string]map[string]interfaces.Peer // sessionID -> handle -> peer
	sessionStudents map[string]map[string]interfaces.Peer // sessionID -> handle -> peer
}

func NewRegistry() *Registry {
	return &Registry{
		global:          make(map[string]interfaces.Peer),
		sessionTeachers: make(map[string]map[string]interfaces.Peer),
		sessionStudents: make(map[string]map[string]interfaces.Peer),
	}
}

// Register adds peer to the global index and, once it has a session and
// role assigned, to the session-role index too. Once a register frame
// assigns the session/role, the register handler calls Reindex rather
// than Register (spec.md §4.1).
func (r *Registry) Register(peer interfaces.Peer) error {
	if peer == nil {
		return ErrNilPeer
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, exists := r.global[peer.Handle()]; exists && existing != peer {
		return ErrDuplicateHandle
	}

	r.global[peer.Handle()] = peer
	r.indexBySessionLocked(peer)
	return nil
}

// Reindex moves peer's session-role index entry, used after a register
// frame assigns role/session to a peer that was already tracked globally.
func (r *Registry) Reindex(peer interfaces.Peer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removeFromSessionIndexesLocked(peer)
	r.indexBySessionLocked(peer)
}

func (r *Registry) indexBySessionLocked(peer interfaces.Peer) {
	sessionID := peer.SessionID()
	if sessionID == "" {
		return
	}
	switch types.Role(peer.Role()) {
	case types.RoleTeacher:
		if r.sessionTeachers[sessionID] == nil {
			r.sessionTeachers[sessionID] = make(map[string]interfaces.Peer)
		}
		r.sessionTeachers[sessionID][peer.Handle()] = peer
	case types.RoleStudent:
		if r.sessionStudents[sessionID] == nil {
			r.sessionStudents[sessionID] = make(map[string]interfaces.Peer)
		}
		r.sessionStudents[sessionID][peer.Handle()] = peer
	}
}

func (r *Registry) removeFromSessionIndexesLocked(peer interfaces.Peer) {
	sessionID := peer.SessionID()
	if sessionID == "" {
		return
	}
	if teachers, ok := r.sessionTeachers[sessionID]; ok {
		delete(teachers, peer.Handle())
		if len(teachers) == 0 {
			delete(r.sessionTeachers, sessionID)
		}
	}
	if students, ok := r.sessionStudents[sessionID]; ok {
		delete(students, peer.Handle())
		if len(students) == 0 {
			delete(r.sessionStudents, sessionID)
		}
	}
}

// Unregister removes peer from every index. Idempotent and safe to call
// from both the reader goroutine's defer and the health sweep.
func (r *Registry) Unregister(peer interfaces.Peer) {
	if peer == nil {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	registered, exists := r.global[peer.Handle()]
	if !exists || registered != peer {
		return
	}

	delete(r.global, peer.Handle())
	r.removeFromSessionIndexesLocked(peer)
}

func (r *Registry) Get(handle string) (interfaces.Peer, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	peer, ok := r.global[handle]
	return peer, ok
}

// SessionPeers returns every peer (teacher and students) in sessionID.
func (r *Registry) SessionPeers(sessionID string) []interfaces.Peer {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var peers []interfaces.Peer
	for _, p := range r.sessionTeachers[sessionID] {
		peers = append(peers, p)
	}
	for _, p := range r.sessionStudents[sessionID] {
		peers = append(peers, p)
	}
	return peers
}

func (r *Registry) SessionTeachers(sessionID string) []interfaces.Peer {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var peers []interfaces.Peer
	for _, p := range r.sessionTeachers[sessionID] {
		peers = append(peers, p)
	}
	return peers
}

// SessionStudents returns students in sessionID, optionally filtered by
// language (used by FanOutService to target one language group; spec.md
// §4.6). An empty language returns every student.
func (r *Registry) SessionStudents(sessionID, language string) []interfaces.Peer {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var peers []interfaces.Peer
	for _, p := range r.sessionStudents[sessionID] {
		if language == "" || p.Language() == language {
			peers = append(peers, p)
		}
	}
	return peers
}

// SessionLanguages returns the distinct set of languages students in
// sessionID have requested.
func (r *Registry) SessionLanguages(sessionID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[string]bool)
	var langs []string
	for _, p := range r.sessionStudents[sessionID] {
		lang := p.Language()
		if lang == "" || seen[lang] {
			continue
		}
		seen[lang] = true
		langs = append(langs, lang)
	}
	return langs
}

// All returns every live peer, used by the health sweep.
func (r *Registry) All() []interfaces.Peer {
	r.mu.RLock()
	defer r.mu.RUnlock()

	peers := make([]interfaces.Peer, 0, len(r.global))
	for _, p := range r.global {
		peers = append(peers, p)
	}
	return peers
}

// Snapshot implements interfaces.ActiveStateProvider, reporting only live
// in-process peer counts. It never mixes in durable session counts
// (spec.md §9).
func (r *Registry) Snapshot() interfaces.LiveState {
	r.mu.RLock()
	defer r.mu.RUnlock()

	state := interfaces.LiveState{
		LivePeers: len(r.global),
	}

	seenLangs := make(map[string]bool)
	for _, p := range r.global {
		switch types.Role(p.Role()) {
		case types.RoleTeacher:
			state.Teachers++
		case types.RoleStudent:
			state.Students++
		}
		if lang := p.Language(); lang != "" && !seenLangs[lang] {
			seenLangs[lang] = true
			state.LanguagesInUse = append(state.LanguagesInUse, lang)
		}
	}

	return state
}

// CloseSession forcibly closes every peer in sessionID, used when a
// session is ended (spec.md §4.9).
func (r *Registry) CloseSession(sessionID string, code int, reason string) {
	for _, peer := range r.SessionPeers(sessionID) {
		go func(p interfaces.Peer) {
			if err := p.Close(code, reason); err != nil {
				log.Printf("websocket: error closing peer %s: %v", p.Handle(), err)
			}
		}(peer)
	}
}
