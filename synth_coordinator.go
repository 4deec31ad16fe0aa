// synth_coordinator.go - Engine lifecycle coordinator and render-side dispatch

/*
(c) 2024 - 2026 Zayn Otley
https://github.com/IntuitionAmiga/FMStation
License: GPLv3 or later
*/

package main

import (
	"fmt"
	"sync"
	"sync/atomic"
)

// CoordinatorState is the lifecycle state of the synthesizer runtime.
type CoordinatorState int32

const (
	StateUninitialized CoordinatorState = iota
	StateLoading
	StateReady
	StatePoweredOn
	StatePoweredOff
	StateFailed
	StateClosed
)

func (s CoordinatorState) String() string {
	switch s {
	case StateUninitialized:
		return "Uninitialized"
	case StateLoading:
		return "Loading"
	case StateReady:
		return "Ready"
	case StatePoweredOn:
		return "PoweredOn"
	case StatePoweredOff:
		return "PoweredOff"
	case StateFailed:
		return "Failed"
	case StateClosed:
		return "Closed"
	default:
		return "Unknown"
	}
}

const notifyDepth = 16

// Coordinator owns the engine lifecycle and is the single consumer of the
// control mailbox. The engine handle is private to the render context:
// only the Loading bootstrap and RenderQuantum ever touch it. All other
// components query State() instead of re-deriving readiness.
type Coordinator struct {
	mailbox *Mailbox
	notify  chan RenderMessage

	state atomic.Int32

	// Control-side load-once bookkeeping
	mu      sync.Mutex
	loaded  bool
	loadErr error

	closeOnce sync.Once

	// Render-context-owned; never accessed from the control context
	engine     *FMEngine
	pipeline   *RenderPipeline
	sampleRate int
	sounding   map[uint8]bool
}

// NewCoordinator creates an Uninitialized coordinator with an empty
// mailbox.
func NewCoordinator() *Coordinator {
	return &Coordinator{
		mailbox:  NewMailbox(MailboxDepth),
		notify:   make(chan RenderMessage, notifyDepth),
		sounding: make(map[uint8]bool),
	}
}

// State returns the current lifecycle state.
func (c *Coordinator) State() CoordinatorState {
	return CoordinatorState(c.state.Load())
}

func (c *Coordinator) setState(s CoordinatorState) {
	c.state.Store(int32(s))
}

// Notifications is the render->control diagnostic channel: Initialized,
// InitFailed and ProcessingError messages for display. Never load-bearing
// for audio timing; overflow is dropped.
func (c *Coordinator) Notifications() <-chan RenderMessage {
	return c.notify
}

// Load transfers the engine bank module into the render context and
// instantiates it. The payload is moved: *moduleBytes is set nil so it
// cannot be sent twice. At most one Load succeeds per coordinator; a
// repeat call is a no-op returning the existing outcome, except that a
// Failed coordinator accepts a fresh attempt.
//
// Load runs the render-context bootstrap inline: periodic callbacks have
// not started yet, so engine instantiation happens here, never inside the
// real-time callback.
func (c *Coordinator) Load(sampleRate int, moduleBytes *[]byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.State() == StateClosed {
		return fmt.Errorf("coordinator closed")
	}
	if c.loaded && c.loadErr == nil {
		return nil
	}

	c.loaded = true
	c.setState(StateLoading)

	payload := moveBytes(moduleBytes)
	if !c.mailbox.TrySend(ControlMessage{
		Kind:        CtrlInit,
		SampleRate:  sampleRate,
		ModuleBytes: payload,
	}) {
		c.loadErr = fmt.Errorf("mailbox rejected init")
		c.setState(StateFailed)
		return c.loadErr
	}

	// Bootstrap: consume pending messages (Init first, per protocol)
	for {
		msg, ok := c.mailbox.TryRecv()
		if !ok {
			break
		}
		c.processMessage(msg)
	}

	switch c.State() {
	case StateReady:
		c.loadErr = nil
	case StateFailed:
		// loadErr set by processInit
	default:
		c.loadErr = fmt.Errorf("load ended in state %s", c.State())
	}
	return c.loadErr
}

// Send enqueues a control message for the render side. Returns false when
// the pipeline is not usable (before Ready, after Close or failure) or the
// mailbox is full, so callers can roll back local state.
func (c *Coordinator) Send(msg ControlMessage) bool {
	if msg.Kind == CtrlInit {
		return false // Init only travels through Load
	}
	switch c.State() {
	case StateReady, StatePoweredOn, StatePoweredOff:
		return c.mailbox.TrySend(msg)
	default:
		return false
	}
}

// RenderQuantum is the periodic render callback body: drain and process
// pending control messages in order, then produce one quantum of audio.
// Every state other than PoweredOn takes the zero-fill fast path without
// touching the engine.
func (c *Coordinator) RenderQuantum(dst []float32) {
	for {
		msg, ok := c.mailbox.TryRecv()
		if !ok {
			break
		}
		c.processMessage(msg)
	}

	if c.State() == StatePoweredOn && c.pipeline != nil {
		c.pipeline.Fill(dst)
		return
	}
	fillSilence(dst)
}

// Close marks the coordinator Closed and rejects all further messages.
// Idempotent; callable from any state. The engine handle is released by
// Release once the host has stopped invoking callbacks.
func (c *Coordinator) Close() {
	c.closeOnce.Do(func() {
		c.setState(StateClosed)
		c.mailbox.Close()
	})
}

// Release drops the engine handle. Call only after the audio backend has
// been stopped, so no callback can race the teardown.
func (c *Coordinator) Release() {
	c.engine = nil
	c.pipeline = nil
	c.sounding = make(map[uint8]bool)
}

func (c *Coordinator) processMessage(msg ControlMessage) {
	st := c.State()
	if st == StateClosed {
		c.post(RenderMessage{
			Kind:        RenderProcessingError,
			MessageKind: msg.Kind,
			Reason:      "message after close",
		})
		return
	}

	if msg.Kind == CtrlInit {
		c.processInit(msg, st)
		return
	}

	switch st {
	case StateReady, StatePoweredOn, StatePoweredOff:
		// usable
	default:
		c.post(RenderMessage{
			Kind:        RenderProcessingError,
			MessageKind: msg.Kind,
			Reason:      fmt.Sprintf("message in state %s before init completed", st),
		})
		return
	}

	switch msg.Kind {
	case CtrlPower:
		if msg.On {
			c.setState(StatePoweredOn)
		} else {
			c.allNotesOff()
			c.setState(StatePoweredOff)
		}
	case CtrlNoteOn:
		if st != StatePoweredOn {
			return // powered off: notes are no-ops, parameters still apply
		}
		c.engine.NoteOn(msg.Note, msg.Velocity)
		c.sounding[msg.Note] = true
	case CtrlNoteOff:
		if st != StatePoweredOn {
			return
		}
		c.engine.NoteOff(msg.Note)
		delete(c.sounding, msg.Note)
	case CtrlCycleWaveform:
		c.engine.CycleWaveform(msg.Direction)
	case CtrlSetRoutingMatrix:
		c.engine.SetRoutingMatrix(msg.Matrix)
	case CtrlSetOperatorParam:
		if err := c.engine.SetOperatorParam(msg.OpIndex, msg.Param); err != nil {
			c.post(RenderMessage{
				Kind:        RenderProcessingError,
				MessageKind: msg.Kind,
				Reason:      err.Error(),
			})
		}
	}
}

func (c *Coordinator) processInit(msg ControlMessage, st CoordinatorState) {
	if st != StateLoading {
		c.post(RenderMessage{
			Kind:        RenderProcessingError,
			MessageKind: CtrlInit,
			Reason:      fmt.Sprintf("unexpected Init in state %s", st),
		})
		return
	}

	engine, err := InstantiateEngine(msg.ModuleBytes, msg.SampleRate)
	if err != nil {
		c.loadErr = err
		c.setState(StateFailed)
		c.post(RenderMessage{Kind: RenderInitFailed, Reason: err.Error()})
		return
	}

	c.engine = engine
	c.sampleRate = msg.SampleRate
	c.pipeline = NewRenderPipeline(engine, BatchFrames)
	c.setState(StateReady)
	c.post(RenderMessage{Kind: RenderInitialized})
}

// allNotesOff synthesizes a note-off for every sounding note so a power
// cycle never leaks held notes.
func (c *Coordinator) allNotesOff() {
	for note := range c.sounding {
		c.engine.NoteOff(note)
	}
	clear(c.sounding)
}

func (c *Coordinator) post(msg RenderMessage) {
	select {
	case c.notify <- msg:
	default:
	}
}
