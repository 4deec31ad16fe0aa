//go:build !headless

// audio_backend_oto.go - OTO v3 audio output implementation

/*
(c) 2024 - 2026 Zayn Otley
https://github.com/IntuitionAmiga/FMStation
License: GPLv3 or later
*/

package main

import (
	"sync"
	"sync/atomic"
	"unsafe"

	"github.com/ebitengine/oto/v3"
)

func init() {
	compiledFeatures = append(compiledFeatures, "audio:oto")
}

// OtoPlayer drives the render context: oto pulls bytes through Read, and
// Read walks quantum-sized slices through the coordinator.
type OtoPlayer struct {
	ctx     *oto.Context
	player  *oto.Player
	coord   atomic.Pointer[Coordinator] // Atomic for lock-free Read()
	quantum []float32                   // Pre-allocated quantum buffer
	started bool
	mutex   sync.Mutex // Only for setup/control operations
}

func NewOtoPlayer(sampleRate int) (*OtoPlayer, error) {
	op := &oto.NewContextOptions{
		SampleRate:   sampleRate,
		ChannelCount: 1,
		Format:       oto.FormatFloat32LE,
		BufferSize:   4,
	}

	ctx, ready, err := oto.NewContext(op)
	if err != nil {
		return nil, err
	}
	<-ready

	return &OtoPlayer{
		ctx:     ctx,
		started: false,
	}, nil
}

// SetupPlayer attaches the coordinator whose RenderQuantum feeds playback.
func (op *OtoPlayer) SetupPlayer(coord *Coordinator) {
	op.mutex.Lock()
	defer op.mutex.Unlock()

	op.coord.Store(coord)
	op.player = op.ctx.NewPlayer(op)
	op.quantum = make([]float32, QuantumFrames)
}

func (op *OtoPlayer) Read(p []byte) (n int, err error) {
	// Load coordinator pointer atomically - no lock needed for the hot path
	coord := op.coord.Load()
	if coord == nil {
		for i := range p {
			p[i] = 0
		}
		return len(p), nil
	}

	numSamples := len(p) / 4
	offset := 0
	for offset < numSamples {
		chunk := numSamples - offset
		if chunk > QuantumFrames {
			chunk = QuantumFrames
		}
		dst := op.quantum[:chunk]
		coord.RenderQuantum(dst)
		copy(p[offset*4:], (*[1 << 30]byte)(unsafe.Pointer(&dst[0]))[:chunk*4])
		offset += chunk
	}
	return len(p), nil
}

func (op *OtoPlayer) Start() {
	op.mutex.Lock()
	defer op.mutex.Unlock()

	if !op.started && op.player != nil {
		op.player.Play()
		op.started = true
	}
}

func (op *OtoPlayer) Stop() {
	op.mutex.Lock()
	defer op.mutex.Unlock()

	if op.started && op.player != nil {
		op.player.Close()
		op.started = false
	}
}

func (op *OtoPlayer) Close() {
	op.Stop()
	op.mutex.Lock()
	defer op.mutex.Unlock()

	if op.player != nil {
		op.player.Close()
		op.player = nil
	}
}

func (op *OtoPlayer) IsStarted() bool {
	op.mutex.Lock()
	defer op.mutex.Unlock()
	return op.started
}
