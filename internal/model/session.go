package model

import "time"

// State adalah posisi sesi WhatsApp dalam lifecycle-nya.
type State int

const (
	StateUninitialized State = iota
	StateAwaitingAuth
	StateAuthenticated
	StateReady
	StateDisconnected
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateAwaitingAuth:
		return "awaiting_auth"
	case StateAuthenticated:
		return "authenticated"
	case StateReady:
		return "ready"
	case StateDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

// EventKind is one of the lifecycle notifications an automation client emits.
type EventKind int

const (
	EventQR EventKind = iota
	EventAuthenticated
	EventReady
	EventAuthFailure
	EventDisconnected
)

func (k EventKind) String() string {
	switch k {
	case EventQR:
		return "qr"
	case EventAuthenticated:
		return "authenticated"
	case EventReady:
		return "ready"
	case EventAuthFailure:
		return "auth_failure"
	case EventDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

type LifecycleEvent struct {
	Kind EventKind
	// QRCode dan QRTimeout hanya terisi untuk EventQR
	QRCode    string
	QRTimeout time.Duration
	Reason    string
}

// transitions lists the target state per event and the source states it is
// accepted from. QR never moves the machine.
var transitions = map[EventKind]struct {
	to   State
	from []State
}{
	EventAuthenticated: {StateAuthenticated, []State{StateAwaitingAuth}},
	EventReady:         {StateReady, []State{StateAwaitingAuth, StateAuthenticated}},
	EventAuthFailure:   {StateDisconnected, nil},
	EventDisconnected:  {StateDisconnected, nil},
}

// Next returns the state reached from s when evt happens, and whether the
// event is accepted in s. A nil source list means "from any state".
func (s State) Next(evt EventKind) (State, bool) {
	t, ok := transitions[evt]
	if !ok {
		return s, false
	}
	if t.from == nil {
		return t.to, true
	}
	for _, from := range t.from {
		if from == s {
			return t.to, true
		}
	}
	return s, false
}

// SendResult is what the client reports back after a successful send.
type SendResult struct {
	MessageID string
	Timestamp time.Time
}
