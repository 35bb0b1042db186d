package session

import (
	"errors"
	"fmt"
)

// State is the lifecycle state of a Channel.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateClosed
	StateErrored
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateClosed:
		return "closed"
	case StateErrored:
		return "errored"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Event is delivered on Channel.Events in arrival order.
type Event interface {
	isEvent()
}

// SnapshotEvent carries a full or partial model push.
type SnapshotEvent struct {
	Snapshot Snapshot
}

// PeerErrorEvent carries an error reported by the watcher.
type PeerErrorEvent struct {
	Err *PeerError
}

// ClearEvent asks the editor to drop the current model.
type ClearEvent struct{}

// ProtocolErrorEvent reports an inbound message that could not be understood.
// The connection stays up.
type ProtocolErrorEvent struct {
	Err *ProtocolError
}

// ClosedEvent reports the end of a connection. Err is nil for a clean close.
type ClosedEvent struct {
	State State
	Err   error
}

func (SnapshotEvent) isEvent()      {}
func (PeerErrorEvent) isEvent()     {}
func (ClearEvent) isEvent()         {}
func (ProtocolErrorEvent) isEvent() {}
func (ClosedEvent) isEvent()        {}

// ErrNotConnected is returned by Send when no connection is open.
var ErrNotConnected = errors.New("session: not connected")

// ErrAlreadyOpen is returned by Open when the channel is already connecting
// or connected.
var ErrAlreadyOpen = errors.New("session: already open")

// ProtocolError describes an inbound message that is not valid JSON or does
// not match any known shape.
type ProtocolError struct {
	Reason string
	Err    error
	Raw    []byte
}

func (e *ProtocolError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("protocol error: %s: %v", e.Reason, e.Err)
	}
	return "protocol error: " + e.Reason
}

func (e *ProtocolError) Unwrap() error { return e.Err }

// PeerError is an error message sent by the watcher, typically a failed
// source rewrite.
type PeerError struct {
	Message string
}

func (e *PeerError) Error() string { return "watcher: " + e.Message }

func eventKind(ev Event) string {
	switch ev := ev.(type) {
	case SnapshotEvent:
		if ev.Snapshot.Partial {
			return "file_snapshot"
		}
		return "snapshot"
	case PeerErrorEvent:
		return "error"
	case ClearEvent:
		return "clear"
	case ProtocolErrorEvent:
		return "protocol_error"
	case ClosedEvent:
		return "closed"
	default:
		return "unknown"
	}
}
