// fm_constants.go - Shared constants for the FM Station synthesizer runtime

/*
(c) 2024 - 2026 Zayn Otley
https://github.com/IntuitionAmiga/FMStation
License: GPLv3 or later
*/

package main

const (
	// NumOperators is the fixed FM operator count. The routing matrix has
	// NumOperators rows and NumOperators+1 columns; the extra column is the
	// audible output mix.
	NumOperators = 4

	// OutputColumn addresses the output mix column of the routing matrix.
	OutputColumn = NumOperators
)

const (
	DEFAULT_SAMPLE_RATE = 44100

	// QuantumFrames is the frame count the audio host requests per periodic
	// callback. BatchFrames is the frame count the engine renders per
	// internal call; one batch serves BatchFrames/QuantumFrames callbacks.
	QuantumFrames = 128
	BatchFrames   = 512

	// MailboxDepth bounds the control->render mailbox. Deep enough that a
	// burst of input events never blocks the control side under normal
	// operation.
	MailboxDepth = 256
)

const (
	MIDI_NOTE_MIN = 0
	MIDI_NOTE_MAX = 127

	// A4 = MIDI note 69 = 440 Hz
	TUNING_REF_NOTE = 69
	TUNING_REF_HZ   = 440.0

	// Lowest note a PitchedComb delay line must accommodate (A0, 27.5 Hz).
	PITCHED_COMB_MIN_HZ = 27.5
)

const (
	MIX_LEVEL  = 1.0 / NumOperators // Output column mix per operator
	MAX_SAMPLE = 1.0
	MIN_SAMPLE = -1.0
)

// Waveform selects an operator's oscillator shape.
type Waveform int

const (
	WaveSine Waveform = iota
	WaveSquare
	WaveSaw
	WaveTriangle
	WaveNoise
	waveformCount
)

func (w Waveform) String() string {
	switch w {
	case WaveSine:
		return "sine"
	case WaveSquare:
		return "square"
	case WaveSaw:
		return "saw"
	case WaveTriangle:
		return "triangle"
	case WaveNoise:
		return "noise"
	default:
		return "unknown"
	}
}

// CycleDirection steps the waveform selection backwards or forwards.
type CycleDirection int

const (
	CyclePrev CycleDirection = iota
	CycleNext
)

// Version of the FM Station runtime.
const Version = "0.3.1"
