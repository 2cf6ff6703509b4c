// Package router dispatches inbound frames to per-type handlers. This
// replaces the teacher's role-based GetRecipients switch with a handler
// registry keyed by the frame's "type" tag, so adding a new inbound
// message never touches routing logic (spec.md §9 redesign note).
package router

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/classrelay/relay/pkg/interfaces"
	"github.com/classrelay/relay/pkg/types"
)

// HandlerFunc processes one decoded frame for peer. raw is the original
// message bytes so the handler can decode its own payload shape.
type HandlerFunc func(ctx context.Context, peer interfaces.Peer, raw []byte) error

// Router dispatches by frame type and enforces the session-active gate
// that applies to every non-exempt inbound type (spec.md §4.3).
type Router struct {
	handlers map[string]HandlerFunc
	sessions interfaces.SessionRepository
}

func NewRouter(sessions interfaces.SessionRepository) *Router {
	return &Router{
		handlers: make(map[string]HandlerFunc),
		sessions: sessions,
	}
}

// Register binds a handler to a frame type. Re-registering a type
// overwrites the previous handler; callers typically register once at
// startup.
func (r *Router) Register(frameType string, handler HandlerFunc) {
	r.handlers[frameType] = handler
}

// Route parses the frame envelope, enforces the session-active gate, and
// dispatches to the registered handler. Malformed JSON and unknown types
// are reported to the caller rather than silently dropped so the caller
// can decide whether to warn the peer or close the connection.
func (r *Router) Route(ctx context.Context, peer interfaces.Peer, raw []byte) error {
	var frame types.InboundFrame
	if err := json.Unmarshal(raw, &frame); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}

	handler, ok := r.handlers[frame.Type]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownMessageType, frame.Type)
	}

	if !types.ExemptTypes[frame.Type] {
		sessionID := peer.SessionID()
		if sessionID != "" {
			session, err := r.sessions.GetSession(ctx, sessionID)
			if err != nil {
				log.Printf("router: session lookup failed for %s: %v", sessionID, err)
				return err
			}
			if !session.IsActive {
				return ErrSessionInactive
			}
		}
	}

	return handler(ctx, peer, raw)
}
