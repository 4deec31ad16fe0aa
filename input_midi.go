//go:build !headless

// input_midi.go - MIDI input source with hot-plug watching

/*
(c) 2024 - 2026 Zayn Otley
https://github.com/IntuitionAmiga/FMStation
License: GPLv3 or later
*/

package main

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
	"gitlab.com/gomidi/midi/v2/drivers/rtmididrv"
)

// Ports matching these patterns are picked first / never auto-connected.
var (
	midiPreferredPatterns = []string{"Launchkey", "Keystation", "MiniLab"}
	midiExcludedPatterns  = []string{"Midi Through", "Through Port", "Dummy"}
)

const midiRescanInterval = time.Second

// MIDIInput feeds MIDI note messages into the arbiter. It watches the
// available input ports, auto-connects to a preferred device and handles
// hot-unplug by releasing everything the MIDI source holds.
type MIDIInput struct {
	mu           sync.Mutex
	drv          *rtmididrv.Driver
	inPort       drivers.In
	stopFn       func()
	connected    bool
	selectedName string

	arbiter *InputArbiter
	ticker  *time.Ticker
	done    chan struct{}
}

// NewMIDIInput initialises the rtmidi driver. Call Start to begin watching
// and Close when done.
func NewMIDIInput(arbiter *InputArbiter) (*MIDIInput, error) {
	drv, err := rtmididrv.New()
	if err != nil {
		return nil, fmt.Errorf("rtmididrv: %w", err)
	}
	return &MIDIInput{
		drv:     drv,
		arbiter: arbiter,
		done:    make(chan struct{}),
	}, nil
}

// Start begins the periodic device scan in a goroutine.
func (m *MIDIInput) Start() {
	m.ticker = time.NewTicker(midiRescanInterval)
	go func() {
		m.tick()
		for {
			select {
			case <-m.ticker.C:
				m.tick()
			case <-m.done:
				return
			}
		}
	}()
}

// Close shuts down the watcher, the active connection and the driver.
func (m *MIDIInput) Close() {
	if m.ticker != nil {
		m.ticker.Stop()
	}
	close(m.done)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.closeConn()
	m.drv.Close()
}

func (m *MIDIInput) tick() {
	m.mu.Lock()
	defer m.mu.Unlock()

	inputs := m.listInputs()

	if m.connected {
		for _, n := range inputs {
			if n == m.selectedName {
				return // still present
			}
		}
		fmt.Printf("MIDI device disappeared: %s\n", m.selectedName)
		m.closeConn()
		go m.arbiter.ReleaseAll(SourceMidi)
		return
	}

	if len(inputs) == 0 {
		return
	}
	cand, ok := m.pickPreferred(inputs)
	if !ok {
		return
	}
	if err := m.openByName(cand); err != nil {
		fmt.Printf("MIDI connect failed (%s): %v\n", cand, err)
	}
}

func (m *MIDIInput) listInputs() []string {
	ins, err := m.drv.Ins()
	if err != nil {
		return nil
	}
	var names []string
	for _, in := range ins {
		name := in.String()
		excluded := false
		for _, pat := range midiExcludedPatterns {
			if containsCI(name, pat) {
				excluded = true
				break
			}
		}
		if !excluded {
			names = append(names, name)
		}
	}
	return names
}

func (m *MIDIInput) pickPreferred(inputs []string) (string, bool) {
	for _, pat := range midiPreferredPatterns {
		for _, name := range inputs {
			if containsCI(name, pat) {
				return name, true
			}
		}
	}
	if len(inputs) >= 1 {
		return inputs[0], true
	}
	return "", false
}

func (m *MIDIInput) closeConn() {
	if m.stopFn != nil {
		m.stopFn()
		m.stopFn = nil
	}
	if m.inPort != nil {
		_ = m.inPort.Close()
		m.inPort = nil
	}
	m.connected = false
	m.selectedName = ""
}

func (m *MIDIInput) openByName(name string) error {
	ins, err := m.drv.Ins()
	if err != nil {
		return err
	}
	var found drivers.In
	for _, in := range ins {
		if in.String() == name {
			found = in
			break
		}
	}
	if found == nil {
		return fmt.Errorf("input %q not found", name)
	}
	if err := found.Open(); err != nil {
		return fmt.Errorf("open %q: %w", name, err)
	}

	stop, err := midi.ListenTo(found, func(msg midi.Message, _ int32) {
		var ch, key, vel uint8
		// GetNoteOn (not GetNoteStart) so a velocity-0 note-on reaches the
		// arbiter as sent and is normalized there, per MIDI convention.
		if msg.GetNoteOn(&ch, &key, &vel) {
			m.arbiter.NoteMessage(SourceMidi, uint32(key), true, key, vel)
		} else if msg.GetNoteOff(&ch, &key, &vel) {
			m.arbiter.NoteMessage(SourceMidi, uint32(key), false, key, 0)
		}
	}, midi.HandleError(func(listenErr error) {
		fmt.Printf("MIDI listener error (%s): %v\n", name, listenErr)
		// Never tear down from the listener goroutine; the next tick
		// observes the dead port and reconnects.
	}))
	if err != nil {
		_ = found.Close()
		return fmt.Errorf("listen %q: %w", name, err)
	}

	m.inPort = found
	m.stopFn = stop
	m.connected = true
	m.selectedName = name
	fmt.Printf("MIDI connected: %s\n", name)
	return nil
}

func containsCI(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
