// input_arbiter.go - Merges keyboard, pointer and MIDI input into one note stream

/*
(c) 2024 - 2026 Zayn Otley
https://github.com/IntuitionAmiga/FMStation
License: GPLv3 or later
*/

package main

import "sync"

// NoteSource identifies where a note event originated.
type NoteSource int

const (
	SourceKeyboard NoteSource = iota
	SourcePointer
	SourceMidi
	numSources
)

func (s NoteSource) String() string {
	switch s {
	case SourceKeyboard:
		return "keyboard"
	case SourcePointer:
		return "pointer"
	case SourceMidi:
		return "midi"
	default:
		return "unknown"
	}
}

// NoteEvent is the arbitrated note surface shared by all input sources.
type NoteEvent struct {
	Note     uint8
	Velocity uint8
	Source   NoteSource
}

// InputArbiter deduplicates press/release transitions per source before
// they reach the control protocol. Each source keeps a set of
// currently-down physical identifiers (key codes, MIDI note numbers,
// pointer target ids): a press is forwarded only if its identifier is not
// already down, a release only if it was. This is arbitration bookkeeping,
// not synthesizer state.
//
// A forwarded event the protocol refuses (engine not ready, mailbox full)
// rolls the press-state flip back, so a retry stays possible and UI
// feedback matches the synthesizer.
type InputArbiter struct {
	mu      sync.Mutex
	pressed [numSources]map[uint32]uint8 // physical id -> sounding note
	forward func(on bool, ev NoteEvent) bool
}

// NewInputArbiter creates an arbiter. forward delivers an arbitrated event
// towards the render boundary and reports whether the send was accepted.
func NewInputArbiter(forward func(on bool, ev NoteEvent) bool) *InputArbiter {
	a := &InputArbiter{forward: forward}
	for i := range a.pressed {
		a.pressed[i] = make(map[uint32]uint8)
	}
	return a
}

// NoteMessage arbitrates one raw press/release from a source. A "note-on"
// with velocity 0 is normalized to a note-off before arbitration, per MIDI
// convention. Returns whether an event was forwarded and accepted.
func (a *InputArbiter) NoteMessage(source NoteSource, physicalID uint32, on bool, note, velocity uint8) bool {
	if on && velocity == 0 {
		on = false
	}
	if on {
		return a.press(source, physicalID, note, velocity)
	}
	return a.release(source, physicalID)
}

func (a *InputArbiter) press(source NoteSource, physicalID uint32, note, velocity uint8) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	set := a.pressed[source]
	if _, down := set[physicalID]; down {
		return false // auto-repeat or duplicate drag: suppressed
	}
	set[physicalID] = note
	if !a.forward(true, NoteEvent{Note: note, Velocity: velocity, Source: source}) {
		delete(set, physicalID) // roll back so a retry is possible
		return false
	}
	return true
}

func (a *InputArbiter) release(source NoteSource, physicalID uint32) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	set := a.pressed[source]
	note, down := set[physicalID]
	if !down {
		return false
	}
	delete(set, physicalID)
	if !a.forward(false, NoteEvent{Note: note, Source: source}) {
		set[physicalID] = note
		return false
	}
	return true
}

// Held reports how many identifiers a source currently has down.
func (a *InputArbiter) Held(source NoteSource) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.pressed[source])
}

// ReleaseAll forwards a note-off for everything a source holds and clears
// its press set regardless of delivery, for input-subsystem teardown
// (device unplug, raw-mode exit).
func (a *InputArbiter) ReleaseAll(source NoteSource) {
	a.mu.Lock()
	defer a.mu.Unlock()

	set := a.pressed[source]
	for id, note := range set {
		a.forward(false, NoteEvent{Note: note, Source: source})
		delete(set, id)
	}
}
