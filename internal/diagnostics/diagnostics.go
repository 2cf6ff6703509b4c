// Package diagnostics composes the in-process live state (from
// websocket.Registry) with the durable session count (from the store)
// into a single report, keeping the two counters visibly distinct rather
// than merging them into one misleading total (spec.md §9 open question
// on global live state).
package diagnostics

import (
	"context"

	"github.com/classrelay/relay/pkg/interfaces"
)

// Report is the combined view the health/diagnostics HTTP endpoint
// returns.
type Report struct {
	Live                  interfaces.LiveState `json:"live"`
	DurableActiveSessions int                  `json:"durableActiveSessions"`
}

// Service reads from an ActiveStateProvider (typically *websocket.Registry)
// and a SessionRepository to build a Report on demand.
type Service struct {
	state interfaces.ActiveStateProvider
	repo  interfaces.SessionRepository
}

func NewService(state interfaces.ActiveStateProvider, repo interfaces.SessionRepository) *Service {
	return &Service{state: state, repo: repo}
}

// Report builds the combined snapshot. A store failure is surfaced as an
// error rather than silently reporting a zero count, since a caller
// checking system health needs to know the durable count is unavailable.
func (s *Service) Report(ctx context.Context) (Report, error) {
	durable, err := s.repo.CountActiveSessions(ctx)
	if err != nil {
		return Report{}, err
	}
	return Report{
		Live:                  s.state.Snapshot(),
		DurableActiveSessions: durable,
	}, nil
}
