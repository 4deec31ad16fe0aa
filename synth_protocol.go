// synth_protocol.go - Control/render message protocol and mailbox

/*
(c) 2024 - 2026 Zayn Otley
https://github.com/IntuitionAmiga/FMStation
License: GPLv3 or later
*/

package main

import "sync"

// ControlKind tags a ControlMessage variant.
type ControlKind int

const (
	CtrlInit ControlKind = iota
	CtrlPower
	CtrlNoteOn
	CtrlNoteOff
	CtrlCycleWaveform
	CtrlSetRoutingMatrix
	CtrlSetOperatorParam
)

func (k ControlKind) String() string {
	switch k {
	case CtrlInit:
		return "Init"
	case CtrlPower:
		return "Power"
	case CtrlNoteOn:
		return "NoteOn"
	case CtrlNoteOff:
		return "NoteOff"
	case CtrlCycleWaveform:
		return "CycleWaveform"
	case CtrlSetRoutingMatrix:
		return "SetRoutingMatrix"
	case CtrlSetOperatorParam:
		return "SetOperatorParam"
	default:
		return "Unknown"
	}
}

// ControlMessage crosses the control->render boundary. Only the fields of
// the active Kind are meaningful. Messages are immutable once constructed
// and consumed exactly once, in send order.
type ControlMessage struct {
	Kind ControlKind

	// CtrlInit
	SampleRate  int
	ModuleBytes []byte

	// CtrlPower
	On bool

	// CtrlNoteOn / CtrlNoteOff
	Note     uint8
	Velocity uint8

	// CtrlCycleWaveform
	Direction CycleDirection

	// CtrlSetRoutingMatrix (full matrix, never a delta)
	Matrix RoutingMatrix

	// CtrlSetOperatorParam
	OpIndex int
	Param   OperatorParams
}

// RenderKind tags a RenderMessage variant.
type RenderKind int

const (
	RenderInitialized RenderKind = iota
	RenderInitFailed
	RenderProcessingError
)

func (k RenderKind) String() string {
	switch k {
	case RenderInitialized:
		return "Initialized"
	case RenderInitFailed:
		return "InitFailed"
	case RenderProcessingError:
		return "ProcessingError"
	default:
		return "Unknown"
	}
}

// RenderMessage crosses the render->control boundary. It carries one-shot
// readiness signaling and diagnostics only; audio timing never depends
// on it.
type RenderMessage struct {
	Kind        RenderKind
	MessageKind ControlKind // for RenderProcessingError: the message that failed
	Reason      string
}

// Mailbox is the single channel between the control and render contexts:
// an ordered, asynchronous, single-producer/single-consumer queue. Sends
// never block; a full or closed mailbox rejects the message so the caller
// can roll its own state back.
type Mailbox struct {
	mu     sync.Mutex
	ch     chan ControlMessage
	closed bool
}

// NewMailbox creates a mailbox holding up to depth pending messages.
func NewMailbox(depth int) *Mailbox {
	return &Mailbox{ch: make(chan ControlMessage, depth)}
}

// TrySend enqueues a message without blocking. Returns false if the
// mailbox is closed or full; the message is then not delivered.
func (m *Mailbox) TrySend(msg ControlMessage) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return false
	}
	select {
	case m.ch <- msg:
		return true
	default:
		return false
	}
}

// TryRecv dequeues the next pending message without blocking. The render
// side is the only caller.
func (m *Mailbox) TryRecv() (ControlMessage, bool) {
	select {
	case msg, ok := <-m.ch:
		if !ok {
			return ControlMessage{}, false
		}
		return msg, true
	default:
		return ControlMessage{}, false
	}
}

// Close rejects all further sends. Already-queued messages still drain
// from the receive side. Idempotent.
func (m *Mailbox) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	m.closed = true
	close(m.ch)
}

// moveBytes transfers ownership of a byte payload: the source reference is
// invalidated so a multi-hundred-kilobyte module can never be sent twice.
func moveBytes(src *[]byte) []byte {
	b := *src
	*src = nil
	return b
}
