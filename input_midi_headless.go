//go:build headless

// input_midi_headless.go - No-op MIDI input for tests and CI

package main

type MIDIInput struct{}

func NewMIDIInput(arbiter *InputArbiter) (*MIDIInput, error) {
	return &MIDIInput{}, nil
}

func (m *MIDIInput) Start() {}

func (m *MIDIInput) Close() {}
