package interfaces

// LiveState is a read-only snapshot of in-process peer state, exposed to
// the diagnostics aggregator. It deliberately never mixes in durable
// session counts (spec.md §9 open question): DurableActiveSessions is
// filled in by whoever composes this with a SessionRepository count, not
// by the registry itself.
type LiveState struct {
	LivePeers       int
	Teachers        int
	Students        int
	LanguagesInUse  []string
}

// ActiveStateProvider is the read-only view the core exposes so the
// diagnostics aggregator never needs a mutable reference into
// ConnectionRegistry (spec.md §9 redesign note on global live state).
type ActiveStateProvider interface {
	Snapshot() LiveState
}
