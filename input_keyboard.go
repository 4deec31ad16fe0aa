// input_keyboard.go - Raw-mode terminal keyboard note source

/*
(c) 2024 - 2026 Zayn Otley
https://github.com/IntuitionAmiga/FMStation
License: GPLv3 or later
*/

package main

import (
	"fmt"
	"os"
	"sync"
	"time"

	"golang.org/x/term"
)

// Two piano rows: z..m is the lower octave from C, q..u the upper one,
// with the number/letter rows supplying the sharps.
var keyToSemitone = map[byte]int{
	'z': 0, 's': 1, 'x': 2, 'd': 3, 'c': 4, 'v': 5, 'g': 6,
	'b': 7, 'h': 8, 'n': 9, 'j': 10, 'm': 11,
	'q': 12, '2': 13, 'w': 14, '3': 15, 'e': 16, 'r': 17, '5': 18,
	't': 19, '6': 20, 'y': 21, '7': 22, 'u': 23,
}

const (
	kbdBaseNote = 48 // C3
	kbdVelocity = 100

	// Terminals report no key-up events; a held key refreshes via
	// auto-repeat, and release is synthesized when refreshes stop.
	kbdHoldWindow = 250 * time.Millisecond
)

// KeyboardInput reads single keystrokes from a raw-mode terminal and
// feeds them through the arbiter. The arbiter's press set absorbs the
// auto-repeat duplicates.
type KeyboardInput struct {
	arbiter *InputArbiter
	onQuit  func()

	mu       sync.Mutex
	oldState *term.State
	timers   map[byte]*time.Timer
	octave   int
	done     chan struct{}
}

// NewKeyboardInput creates a keyboard source. onQuit is invoked when the
// user presses ESC or Ctrl-C.
func NewKeyboardInput(arbiter *InputArbiter, onQuit func()) *KeyboardInput {
	return &KeyboardInput{
		arbiter: arbiter,
		onQuit:  onQuit,
		timers:  make(map[byte]*time.Timer),
		done:    make(chan struct{}),
	}
}

// Start switches stdin to raw mode and begins the read loop.
func (k *KeyboardInput) Start() error {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return fmt.Errorf("stdin is not a terminal")
	}
	oldState, err := term.MakeRaw(fd)
	if err != nil {
		return fmt.Errorf("raw mode: %w", err)
	}
	k.oldState = oldState
	go k.readLoop()
	return nil
}

// Close restores the terminal, releases held notes and stops the loop.
func (k *KeyboardInput) Close() {
	select {
	case <-k.done:
	default:
		close(k.done)
	}
	k.mu.Lock()
	for key, t := range k.timers {
		t.Stop()
		delete(k.timers, key)
	}
	k.mu.Unlock()
	k.arbiter.ReleaseAll(SourceKeyboard)
	if k.oldState != nil {
		term.Restore(int(os.Stdin.Fd()), k.oldState)
	}
}

func (k *KeyboardInput) readLoop() {
	buf := make([]byte, 1)
	for {
		select {
		case <-k.done:
			return
		default:
		}
		n, err := os.Stdin.Read(buf)
		if err != nil || n == 0 {
			return
		}
		k.handleKey(buf[0])
	}
}

func (k *KeyboardInput) handleKey(key byte) {
	switch key {
	case 27, 3: // ESC, Ctrl-C
		if k.onQuit != nil {
			k.onQuit()
		}
		return
	case '+', '=':
		k.shiftOctave(1)
		return
	case '-', '_':
		k.shiftOctave(-1)
		return
	}

	semitone, ok := keyToSemitone[key]
	if !ok {
		return
	}

	k.mu.Lock()
	octave := k.octave
	k.mu.Unlock()

	note := kbdBaseNote + octave*12 + semitone
	if note < MIDI_NOTE_MIN || note > MIDI_NOTE_MAX {
		return
	}

	// First press forwards a note-on; auto-repeat presses are suppressed
	// by the arbiter and only re-arm the release timer.
	k.arbiter.NoteMessage(SourceKeyboard, uint32(key), true, uint8(note), kbdVelocity)
	k.armRelease(key)
}

func (k *KeyboardInput) armRelease(key byte) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if t, ok := k.timers[key]; ok {
		t.Reset(kbdHoldWindow)
		return
	}
	k.timers[key] = time.AfterFunc(kbdHoldWindow, func() {
		k.mu.Lock()
		delete(k.timers, key)
		k.mu.Unlock()
		k.arbiter.NoteMessage(SourceKeyboard, uint32(key), false, 0, 0)
	})
}

// shiftOctave releases held notes first so the octave change cannot strand
// a note-off at the old pitch.
func (k *KeyboardInput) shiftOctave(delta int) {
	k.arbiter.ReleaseAll(SourceKeyboard)
	k.mu.Lock()
	defer k.mu.Unlock()
	k.octave += delta
	if k.octave > 4 {
		k.octave = 4
	} else if k.octave < -2 {
		k.octave = -2
	}
}
