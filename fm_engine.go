// fm_engine.go - Four-operator FM synthesis engine

/*
(c) 2024 - 2026 Zayn Otley
https://github.com/IntuitionAmiga/FMStation
License: GPLv3 or later
*/

package main

import (
	"fmt"
	"math"
)

const (
	envIdle = iota
	envAttack
	envDecay
	envSustain
	envRelease
)

const (
	NOISE_LFSR_SEED = 0x7FFFFF // 23-bit LFSR seed
	NOISE_LFSR_MASK = 0x7FFFFF
)

// filterNode is the runtime state of one FilterSpec in an operator's chain.
type filterNode struct {
	spec FilterSpec

	// State-variable filter state (LowPass)
	lp float64
	bp float64

	// Delay line (Comb, PitchedComb)
	delay  []float64
	length int // active delay length, <= len(delay)
	pos    int
}

// fmOperator is one oscillator + envelope + filter chain unit.
type fmOperator struct {
	params OperatorParams

	phase       float64 // Current oscillator phase in radians [0, 2pi)
	envLevel    float64 // Current envelope amplitude (0.0-1.0)
	envStage    int     // Current envelope stage
	releaseStep float64 // Per-sample decrement while in release
	output      float64 // Previous-sample output, read by modulation targets
	noiseSR     uint32  // Noise shift register state
	filters     []filterNode
}

// FMEngine is the synthesis engine behind the lifecycle coordinator.
// It is owned by the render context: the coordinator serializes all access,
// so no locking happens in the sample loop. Single voice, last-note
// priority.
type FMEngine struct {
	sampleRate int
	ops        [NumOperators]*fmOperator
	matrix     RoutingMatrix

	note     int // Currently sounding MIDI note, -1 when none
	baseFreq float64
	velocity float64
	gate     bool
}

// NewFMEngine creates an engine with default operators and an empty
// routing matrix. Callers normally go through InstantiateEngine instead.
func NewFMEngine(sampleRate int) *FMEngine {
	e := &FMEngine{
		sampleRate: sampleRate,
		note:       -1,
	}
	for i := range e.ops {
		e.ops[i] = &fmOperator{
			params:  DefaultOperatorParams(),
			noiseSR: NOISE_LFSR_SEED,
		}
	}
	return e
}

// SetRoutingMatrix replaces the whole algorithm grid.
func (e *FMEngine) SetRoutingMatrix(m RoutingMatrix) {
	e.matrix = m
}

// Matrix returns the engine's current view of the algorithm grid.
func (e *FMEngine) Matrix() RoutingMatrix {
	return e.matrix
}

// SetOperatorParam replaces one operator's parameter record and rebuilds
// its filter chain. Delay lines are sized here, outside the sample loop.
func (e *FMEngine) SetOperatorParam(opIndex int, p OperatorParams) error {
	if opIndex < 0 || opIndex >= NumOperators {
		return fmt.Errorf("operator index %d out of range", opIndex)
	}
	if err := p.Validate(); err != nil {
		return fmt.Errorf("operator %d: %w", opIndex, err)
	}
	op := e.ops[opIndex]
	op.params = p
	op.filters = make([]filterNode, len(p.Filters))
	for i, spec := range p.Filters {
		node := filterNode{spec: spec}
		switch spec.Kind {
		case FilterComb:
			node.delay = make([]float64, spec.K)
			node.length = spec.K
		case FilterPitchedComb:
			// Sized for the lowest supported pitch; the active length
			// tracks the sounding note.
			maxLen := int(math.Ceil(float64(e.sampleRate) / PITCHED_COMB_MIN_HZ))
			node.delay = make([]float64, maxLen)
			node.length = maxLen
		}
		op.filters[i] = node
	}
	if e.note >= 0 {
		op.retunePitchedCombs(e.baseFreq, e.sampleRate)
	}
	return nil
}

// OperatorParam returns the current record of one operator.
func (e *FMEngine) OperatorParam(opIndex int) OperatorParams {
	return e.ops[opIndex].params
}

// CycleWaveform steps every operator's waveform selection in lockstep.
func (e *FMEngine) CycleWaveform(dir CycleDirection) {
	for _, op := range e.ops {
		switch dir {
		case CycleNext:
			op.params.Waveform = (op.params.Waveform + 1) % waveformCount
		case CyclePrev:
			op.params.Waveform = (op.params.Waveform + waveformCount - 1) % waveformCount
		}
	}
}

// NoteOn starts the voice at the given MIDI note. A note already sounding
// is replaced (last-note priority); envelopes retrigger from their current
// level to avoid clicks.
func (e *FMEngine) NoteOn(note, velocity uint8) {
	e.note = int(note)
	e.baseFreq = noteToHz(note)
	e.velocity = float64(velocity) / 127.0
	e.gate = true
	for _, op := range e.ops {
		op.envStage = envAttack
		op.retunePitchedCombs(e.baseFreq, e.sampleRate)
	}
}

// NoteOff releases the voice if the given note is the one sounding.
func (e *FMEngine) NoteOff(note uint8) {
	if e.note != int(note) {
		return
	}
	e.gate = false
	for _, op := range e.ops {
		op.enterRelease(e.sampleRate)
	}
}

// Sounding reports whether a gated note is active.
func (e *FMEngine) Sounding() bool {
	return e.gate
}

// Render fills dst with mono samples. Called by the render pipeline once
// per batch; never allocates.
func (e *FMEngine) Render(dst []float32) {
	for i := range dst {
		dst[i] = e.renderSample()
	}
}

// renderSample evaluates the routing matrix for one output sample.
// Operator j reads same-sample output from modulators i < j and
// previous-sample output from modulators i >= j, so self-feedback and any
// off-diagonal cycle resolve to one-sample-delayed feedback instead of
// being rejected.
func (e *FMEngine) renderSample() float32 {
	var cur [NumOperators]float64
	for j := 0; j < NumOperators; j++ {
		var mod float64
		for i := 0; i < NumOperators; i++ {
			if !e.matrix[i][j] {
				continue
			}
			if i < j {
				mod += cur[i] * e.ops[i].params.ModulationIndex
			} else {
				mod += e.ops[i].output * e.ops[i].params.ModulationIndex
			}
		}
		cur[j] = e.ops[j].renderSample(e.baseFreq, mod, e.sampleRate)
	}

	var mix float64
	for i := 0; i < NumOperators; i++ {
		e.ops[i].output = cur[i]
		if e.matrix[i][OutputColumn] {
			mix += cur[i]
		}
	}
	mix *= MIX_LEVEL * e.velocity

	if mix > MAX_SAMPLE {
		mix = MAX_SAMPLE
	} else if mix < MIN_SAMPLE {
		mix = MIN_SAMPLE
	}
	return float32(mix)
}

func (op *fmOperator) renderSample(baseFreq, mod float64, sampleRate int) float64 {
	op.updateEnvelope(sampleRate)

	freq := baseFreq * op.params.Ratio
	phaseInc := freq * 2 * math.Pi / float64(sampleRate)

	var raw float64
	ph := math.Mod(op.phase+mod, 2*math.Pi)
	if ph < 0 {
		ph += 2 * math.Pi
	}
	switch op.params.Waveform {
	case WaveSine:
		raw = math.Sin(ph)
	case WaveSquare:
		if ph < math.Pi {
			raw = 1.0
		} else {
			raw = -1.0
		}
	case WaveSaw:
		raw = ph/math.Pi - 1.0
	case WaveTriangle:
		raw = 2.0*math.Abs(ph/math.Pi-1.0) - 1.0
	case WaveNoise:
		// Taps 23,18 for a maximal-length sequence, as in classic PSGs
		newBit := ((op.noiseSR >> 22) ^ (op.noiseSR >> 17)) & 1
		op.noiseSR = ((op.noiseSR << 1) | newBit) & NOISE_LFSR_MASK
		raw = float64(op.noiseSR&1)*2 - 1
	}

	op.phase += phaseInc
	if op.phase >= 2*math.Pi {
		op.phase -= 2 * math.Pi
	}

	sample := raw * op.envLevel
	for i := range op.filters {
		sample = op.filters[i].process(sample, sampleRate)
	}
	return sample
}

func (op *fmOperator) updateEnvelope(sampleRate int) {
	env := op.params.Envelope
	switch op.envStage {
	case envAttack:
		attackSamples := env.Attack * float64(sampleRate)
		if attackSamples < 1 {
			op.envLevel = 1.0
			op.envStage = envDecay
			return
		}
		op.envLevel += 1.0 / attackSamples
		if op.envLevel >= 1.0 {
			op.envLevel = 1.0
			op.envStage = envDecay
		}
	case envDecay:
		decaySamples := env.Decay * float64(sampleRate)
		if decaySamples < 1 {
			op.envLevel = env.Sustain
			op.envStage = envSustain
			return
		}
		op.envLevel -= (1.0 - env.Sustain) / decaySamples
		if op.envLevel <= env.Sustain {
			op.envLevel = env.Sustain
			op.envStage = envSustain
		}
	case envSustain:
		// Held until NoteOff moves the operator into release
	case envRelease:
		op.envLevel -= op.releaseStep
		if op.envLevel <= 0 {
			op.envLevel = 0
			op.envStage = envIdle
		}
	}
}

func (op *fmOperator) enterRelease(sampleRate int) {
	if op.envStage == envIdle {
		return
	}
	releaseSamples := op.params.Envelope.Release * float64(sampleRate)
	if releaseSamples < 1 {
		op.envLevel = 0
		op.envStage = envIdle
		return
	}
	op.releaseStep = op.envLevel / releaseSamples
	op.envStage = envRelease
}

func (op *fmOperator) retunePitchedCombs(freq float64, sampleRate int) {
	for i := range op.filters {
		node := &op.filters[i]
		if node.spec.Kind != FilterPitchedComb || freq <= 0 {
			continue
		}
		n := int(float64(sampleRate)/freq + 0.5)
		if n < 1 {
			n = 1
		}
		if n > len(node.delay) {
			n = len(node.delay)
		}
		node.length = n
	}
}

func (fn *filterNode) process(in float64, sampleRate int) float64 {
	switch fn.spec.Kind {
	case FilterLowPass:
		// Chamberlin state-variable filter, low-pass tap
		f := 2 * math.Sin(math.Pi*fn.spec.Cutoff/float64(sampleRate))
		if f > 1.5 {
			f = 1.5
		}
		fn.lp += f * fn.bp
		hp := in - fn.lp - fn.bp/fn.spec.Q
		fn.bp += f * hp
		if fn.lp > MAX_SAMPLE {
			fn.lp = MAX_SAMPLE
		} else if fn.lp < MIN_SAMPLE {
			fn.lp = MIN_SAMPLE
		}
		return fn.lp
	case FilterComb, FilterPitchedComb:
		if fn.pos >= fn.length {
			fn.pos = 0
		}
		out := in + fn.spec.Alpha*fn.delay[fn.pos]
		fn.delay[fn.pos] = out
		fn.pos++
		return out
	default:
		return in
	}
}

// noteToHz converts a MIDI note number to equal-tempered frequency.
func noteToHz(note uint8) float64 {
	return TUNING_REF_HZ * math.Pow(2, (float64(note)-TUNING_REF_NOTE)/12.0)
}
