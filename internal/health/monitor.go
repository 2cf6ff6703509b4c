// Package health runs the periodic liveness sweep over live peers,
// adapted from the teacher's hub goroutine-plus-shutdown-channel lifecycle
// (internal/hub.Hub.Start/Stop/run) but scoped to a single concern:
// terminate peers whose last sign of life is too old. The monitor sends
// no pings itself; transport pings come from the websocket handler's
// per-connection ping loop, whose pong handler refreshes LastSeen.
package health

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/classrelay/relay/pkg/interfaces"
)

// PeerSource is the narrow registry view the monitor needs to enumerate
// live peers without depending on internal/websocket's full surface.
type PeerSource interface {
	All() []interfaces.Peer
}

// Monitor periodically scans every live peer and closes ones that have
// not answered a ping within staleAfter (spec.md §5's liveness
// requirement, generalized from the teacher's per-connection pong
// handler into a centralized sweep so a hung writer goroutine cannot
// hide a dead socket indefinitely).
type Monitor struct {
	peers      PeerSource
	interval   time.Duration
	staleAfter time.Duration

	mu         sync.Mutex
	running    bool
	shutdownCh chan struct{}
}

func NewMonitor(peers PeerSource, interval, staleAfter time.Duration) *Monitor {
	return &Monitor{
		peers:      peers,
		interval:   interval,
		staleAfter: staleAfter,
	}
}

// Start begins the sweep loop in a background goroutine. Calling Start
// twice without an intervening Stop returns ErrAlreadyRunning.
func (m *Monitor) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return ErrAlreadyRunning
	}
	m.running = true
	m.shutdownCh = make(chan struct{})
	shutdownCh := m.shutdownCh
	m.mu.Unlock()

	go m.run(ctx, shutdownCh)
	return nil
}

// Stop signals the sweep loop to exit. Safe to call even if Start was
// never called, mirroring the teacher's idempotent-close pattern.
func (m *Monitor) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.running {
		return ErrNotRunning
	}
	m.running = false
	close(m.shutdownCh)
	return nil
}

func (m *Monitor) run(ctx context.Context, shutdownCh chan struct{}) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.sweep()
		case <-shutdownCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

// sweep closes every peer whose last activity is older than staleAfter.
// A peer that is still alive but simply quiet is left alone; staleness
// is judged purely by LastSeen so a busy writer queue never counts
// against it.
func (m *Monitor) sweep() {
	for _, peer := range m.peers.All() {
		if time.Since(peer.LastSeen()) <= m.staleAfter {
			continue
		}
		peer.MarkDead()
		if err := peer.Close(1001, "ping timeout"); err != nil {
			log.Printf("health: failed to close stale peer %s: %v", peer.Handle(), err)
		}
	}
}
