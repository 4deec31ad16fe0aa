// fm_engine_test.go - FM synthesis engine tests

package main

import (
	"math"
	"testing"
)

func renderEnergy(e *FMEngine, frames int) float64 {
	dst := make([]float32, frames)
	e.Render(dst)
	var sum float64
	for _, s := range dst {
		sum += math.Abs(float64(s))
	}
	return sum
}

func TestNoteToHz(t *testing.T) {
	cases := []struct {
		note uint8
		want float64
	}{
		{69, 440.0},
		{57, 220.0},
		{81, 880.0},
		{60, 261.6255653},
	}
	for _, c := range cases {
		got := noteToHz(c.note)
		if math.Abs(got-c.want) > 1e-4 {
			t.Errorf("noteToHz(%d) = %v, want %v", c.note, got, c.want)
		}
	}
}

func TestEngine_SilentUntilNoteOn(t *testing.T) {
	e := NewFMEngine(DEFAULT_SAMPLE_RATE)
	e.SetRoutingMatrix(DefaultRoutingMatrix())
	if energy := renderEnergy(e, BatchFrames); energy != 0 {
		t.Fatalf("engine not silent before any note: energy %v", energy)
	}

	e.NoteOn(60, 100)
	if !e.Sounding() {
		t.Fatal("Sounding false after NoteOn")
	}
	if energy := renderEnergy(e, BatchFrames); energy == 0 {
		t.Error("engine silent after NoteOn")
	}
}

func TestEngine_NoOutputColumnMeansSilence(t *testing.T) {
	e := NewFMEngine(DEFAULT_SAMPLE_RATE)
	var m RoutingMatrix
	m[1][0] = true // modulation routed, but nothing mixed out
	e.SetRoutingMatrix(m)
	e.NoteOn(60, 127)
	if energy := renderEnergy(e, BatchFrames); energy != 0 {
		t.Errorf("output with empty output column: energy %v", energy)
	}
}

func TestEngine_SelfFeedbackStaysBounded(t *testing.T) {
	e := NewFMEngine(DEFAULT_SAMPLE_RATE)
	var m RoutingMatrix
	m[0][0] = true // self-feedback
	m[0][OutputColumn] = true
	e.SetRoutingMatrix(m)

	p := DefaultOperatorParams()
	p.ModulationIndex = 8.0
	if err := e.SetOperatorParam(0, p); err != nil {
		t.Fatal(err)
	}
	e.NoteOn(48, 127)

	dst := make([]float32, DEFAULT_SAMPLE_RATE) // one full second
	e.Render(dst)
	for i, s := range dst {
		if math.IsNaN(float64(s)) || math.IsInf(float64(s), 0) {
			t.Fatalf("sample %d is %v", i, s)
		}
		if s > MAX_SAMPLE || s < MIN_SAMPLE {
			t.Fatalf("sample %d = %v outside [%v,%v]", i, s, MIN_SAMPLE, MAX_SAMPLE)
		}
	}
}

func TestEngine_ModulationCycleStaysBounded(t *testing.T) {
	// 0 -> 1 and 1 -> 0 simultaneously: resolves to one-sample-delayed
	// feedback, never a rejection or a runaway.
	e := NewFMEngine(DEFAULT_SAMPLE_RATE)
	var m RoutingMatrix
	m[0][1] = true
	m[1][0] = true
	m[0][OutputColumn] = true
	e.SetRoutingMatrix(m)
	e.NoteOn(60, 127)

	dst := make([]float32, DEFAULT_SAMPLE_RATE/2)
	e.Render(dst)
	for i, s := range dst {
		if math.IsNaN(float64(s)) || s > MAX_SAMPLE || s < MIN_SAMPLE {
			t.Fatalf("sample %d = %v", i, s)
		}
	}
}

func TestEngine_LastNotePriority(t *testing.T) {
	e := NewFMEngine(DEFAULT_SAMPLE_RATE)
	e.SetRoutingMatrix(DefaultRoutingMatrix())

	e.NoteOn(60, 100)
	e.NoteOn(67, 100)

	// Releasing the superseded note must not cut the sounding one.
	e.NoteOff(60)
	if !e.Sounding() {
		t.Fatal("NoteOff of a superseded note released the voice")
	}
	e.NoteOff(67)
	if e.Sounding() {
		t.Fatal("NoteOff of the sounding note did not release the voice")
	}
}

func TestEngine_ReleaseDecaysToSilence(t *testing.T) {
	e := NewFMEngine(DEFAULT_SAMPLE_RATE)
	e.SetRoutingMatrix(DefaultRoutingMatrix())

	p := DefaultOperatorParams()
	p.Envelope.Release = 0.05
	for i := 0; i < NumOperators; i++ {
		if err := e.SetOperatorParam(i, p); err != nil {
			t.Fatal(err)
		}
	}

	e.NoteOn(60, 100)
	renderEnergy(e, DEFAULT_SAMPLE_RATE/10)
	e.NoteOff(60)

	// Skip past the release tail, then expect silence.
	renderEnergy(e, DEFAULT_SAMPLE_RATE/5)
	if energy := renderEnergy(e, BatchFrames); energy > 1e-6 {
		t.Errorf("voice still audible after release: energy %v", energy)
	}
}

func TestEngine_CycleWaveformWrapsAllOperators(t *testing.T) {
	e := NewFMEngine(DEFAULT_SAMPLE_RATE)
	start := make([]Waveform, NumOperators)
	for i := 0; i < NumOperators; i++ {
		start[i] = e.OperatorParam(i).Waveform
	}

	e.CycleWaveform(CycleNext)
	for i := 0; i < NumOperators; i++ {
		want := (start[i] + 1) % waveformCount
		if got := e.OperatorParam(i).Waveform; got != want {
			t.Errorf("op %d waveform after next = %s, want %s", i, got, want)
		}
	}

	e.CycleWaveform(CyclePrev)
	for i := 0; i < NumOperators; i++ {
		if got := e.OperatorParam(i).Waveform; got != start[i] {
			t.Errorf("op %d waveform did not wrap back: %s", i, got)
		}
	}

	// A full lap lands where it started.
	for n := 0; n < int(waveformCount); n++ {
		e.CycleWaveform(CyclePrev)
	}
	for i := 0; i < NumOperators; i++ {
		if got := e.OperatorParam(i).Waveform; got != start[i] {
			t.Errorf("op %d waveform after full lap = %s, want %s", i, got, start[i])
		}
	}
}

func TestEngine_SetOperatorParamValidates(t *testing.T) {
	e := NewFMEngine(DEFAULT_SAMPLE_RATE)

	if err := e.SetOperatorParam(NumOperators, DefaultOperatorParams()); err == nil {
		t.Error("out-of-range operator index accepted")
	}

	bad := DefaultOperatorParams()
	bad.Envelope.Sustain = 1.5
	if err := e.SetOperatorParam(0, bad); err == nil {
		t.Error("sustain > 1 accepted")
	}
	if got := e.OperatorParam(0).Envelope.Sustain; got != DefaultOperatorParams().Envelope.Sustain {
		t.Errorf("rejected update still changed operator: sustain %v", got)
	}
}

func TestEngine_PitchedCombTracksNote(t *testing.T) {
	e := NewFMEngine(DEFAULT_SAMPLE_RATE)
	p := DefaultOperatorParams()
	p.Filters = []FilterSpec{{Kind: FilterPitchedComb, Alpha: 0.6}}
	if err := e.SetOperatorParam(0, p); err != nil {
		t.Fatal(err)
	}

	e.NoteOn(69, 100) // A4, 440 Hz
	sr := float64(DEFAULT_SAMPLE_RATE)
	want := int(sr/440.0 + 0.5)
	if got := e.ops[0].filters[0].length; got != want {
		t.Errorf("pitched comb delay = %d samples at 440 Hz, want %d", got, want)
	}

	e.NoteOn(57, 100) // A3, 220 Hz: delay doubles
	want = int(sr/220.0 + 0.5)
	if got := e.ops[0].filters[0].length; got != want {
		t.Errorf("pitched comb delay = %d samples at 220 Hz, want %d", got, want)
	}
}

func TestEngine_LowPassAttenuatesHighRatio(t *testing.T) {
	// Same patch with and without a low cutoff: the filtered operator must
	// carry less energy.
	build := func(filters []FilterSpec) *FMEngine {
		e := NewFMEngine(DEFAULT_SAMPLE_RATE)
		var m RoutingMatrix
		m[0][OutputColumn] = true
		e.SetRoutingMatrix(m)
		p := DefaultOperatorParams()
		p.Ratio = 8.0
		p.Filters = filters
		if err := e.SetOperatorParam(0, p); err != nil {
			t.Fatal(err)
		}
		e.NoteOn(69, 127)
		return e
	}

	raw := build(nil)
	filtered := build([]FilterSpec{{Kind: FilterLowPass, Cutoff: 200, Q: 0.7}})

	frames := DEFAULT_SAMPLE_RATE / 4
	rawEnergy := renderEnergy(raw, frames)
	filteredEnergy := renderEnergy(filtered, frames)
	if filteredEnergy >= rawEnergy/2 {
		t.Errorf("lowpass barely attenuated: raw %v, filtered %v", rawEnergy, filteredEnergy)
	}
}
