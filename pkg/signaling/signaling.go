// Package signaling implements the WebSocket signaling channel used to
// exchange session descriptions and ICE candidates with the remote-display
// server. Negotiation itself is owned by the embedding application; this
// package only moves messages.
package signaling

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/gorilla/websocket"
)

// Message kinds.
const (
	KindSDP = "sdp"
	KindICE = "ice"
)

// ErrClosed is returned once the signaling channel has been closed by
// either side.
var ErrClosed = errors.New("signaling: connection closed")

// Message is the JSON envelope exchanged with the server. Exactly one of
// the payload fields is set, according to Kind.
type Message struct {
	Kind      string          `json:"kind"`
	SDP       json.RawMessage `json:"sdp,omitempty"`
	Candidate json.RawMessage `json:"candidate,omitempty"`
}

// Signaler is a bidirectional signaling channel.
type Signaler interface {
	// Recv blocks until the next message arrives or the channel closes.
	Recv(ctx context.Context) (Message, error)

	// Send writes one message.
	Send(ctx context.Context, msg Message) error

	// Close tears the channel down.
	Close() error
}

// WebSocketSignaler is a Signaler over a WebSocket connection, mirroring
// the server's channel: one JSON message per WebSocket text frame.
type WebSocketSignaler struct {
	conn *websocket.Conn

	// gorilla/websocket allows one concurrent writer; reads have a single
	// owner by contract.
	writeMu sync.Mutex
}

// Dial connects to the signaling server at addr (host:port).
func Dial(ctx context.Context, addr string) (*WebSocketSignaler, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, "ws://"+addr, nil)
	if err != nil {
		return nil, fmt.Errorf("signaling: dialing %s: %w", addr, err)
	}
	return &WebSocketSignaler{conn: conn}, nil
}

// Recv reads the next message. Context cancellation closes the connection,
// since a blocked WebSocket read cannot otherwise be interrupted.
func (s *WebSocketSignaler) Recv(ctx context.Context) (Message, error) {
	if deadline, ok := ctx.Deadline(); ok {
		_ = s.conn.SetReadDeadline(deadline)
	}
	stop := context.AfterFunc(ctx, func() { _ = s.conn.Close() })
	defer stop()

	var msg Message
	if err := s.conn.ReadJSON(&msg); err != nil {
		if ctx.Err() != nil {
			return Message{}, ctx.Err()
		}
		if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
			return Message{}, ErrClosed
		}
		return Message{}, fmt.Errorf("signaling: read: %w", err)
	}
	return msg, nil
}

// Send writes one message as a JSON text frame.
func (s *WebSocketSignaler) Send(ctx context.Context, msg Message) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if deadline, ok := ctx.Deadline(); ok {
		_ = s.conn.SetWriteDeadline(deadline)
	}
	if err := s.conn.WriteJSON(msg); err != nil {
		return fmt.Errorf("signaling: write: %w", err)
	}
	return nil
}

// Close sends a close frame and tears down the connection.
func (s *WebSocketSignaler) Close() error {
	s.writeMu.Lock()
	_ = s.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	s.writeMu.Unlock()
	return s.conn.Close()
}

// SDPMessage wraps a session description into a Message.
func SDPMessage(sdp any) (Message, error) {
	raw, err := json.Marshal(sdp)
	if err != nil {
		return Message{}, err
	}
	return Message{Kind: KindSDP, SDP: raw}, nil
}

// ICEMessage wraps an ICE candidate into a Message.
func ICEMessage(candidate any) (Message, error) {
	raw, err := json.Marshal(candidate)
	if err != nil {
		return Message{}, err
	}
	return Message{Kind: KindICE, Candidate: raw}, nil
}
