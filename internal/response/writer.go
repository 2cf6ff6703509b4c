// Package response centralizes how handlers talk back to a peer, so every
// error frame and close code is shaped the same way across the codebase.
package response

import (
	"log"

	"github.com/classrelay/relay/pkg/interfaces"
	"github.com/classrelay/relay/pkg/types"
)

// ErrorPayload is the body of every outbound "error" frame (spec.md §7).
type ErrorPayload struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Writer wraps a single peer with the frame shapes handlers send back.
type Writer struct {
	peer interfaces.Peer
}

func New(peer interfaces.Peer) *Writer {
	return &Writer{peer: peer}
}

// Send writes an arbitrary outbound payload, logging (not panicking) on
// failure since a write failure just means the peer is already gone.
func (w *Writer) Send(payload interface{}) {
	if err := w.peer.WriteJSON(payload); err != nil {
		log.Printf("response: write failed for peer %s: %v", w.peer.Handle(), err)
	}
}

// SendError writes a structured error frame without closing the
// connection.
func (w *Writer) SendError(code, message string) {
	w.Send(ErrorPayload{Type: types.TypeError, Code: code, Message: message})
}

// SendErrorAndClose writes the error frame then closes the connection
// with closeCode, for violations severe enough to end the session
// (spec.md §7).
func (w *Writer) SendErrorAndClose(code, message string, closeCode int) {
	w.SendError(code, message)
	if err := w.peer.Close(closeCode, message); err != nil {
		log.Printf("response: close failed for peer %s: %v", w.peer.Handle(), err)
	}
}
