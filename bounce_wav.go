// bounce_wav.go - Offline bounce of a note sequence to a WAV file

/*
(c) 2024 - 2026 Zayn Otley
https://github.com/IntuitionAmiga/FMStation
License: GPLv3 or later
*/

package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/cwbudde/wav"
	"github.com/go-audio/audio"
)

// BounceNote schedules one note within a bounce, frame offsets relative to
// the start of the render.
type BounceNote struct {
	Note       uint8
	Velocity   uint8
	StartFrame int
	EndFrame   int
}

// DefaultBounceSequence is a C minor arpeggio, one second per note.
func DefaultBounceSequence(sampleRate int) ([]BounceNote, int) {
	sec := sampleRate
	notes := []uint8{48, 55, 60, 63, 67, 72}
	seq := make([]BounceNote, len(notes))
	for i, n := range notes {
		seq[i] = BounceNote{
			Note:       n,
			Velocity:   100,
			StartFrame: i * sec / 2,
			EndFrame:   i*sec/2 + sec/3,
		}
	}
	total := len(notes)*sec/2 + sec
	return seq, total
}

// BounceToWAV renders a note sequence through the full coordinator
// pipeline (load, power, mailbox, quantum buffering) without an audio
// device and writes the result as 16-bit mono WAV.
func BounceToWAV(path string, patch *PatchState, sampleRate int, notes []BounceNote, totalFrames int) error {
	coord := NewCoordinator()
	module := DefaultModuleBytes()
	if err := coord.Load(sampleRate, &module); err != nil {
		return fmt.Errorf("bounce: %w", err)
	}
	defer func() {
		coord.Close()
		coord.Release()
	}()

	if patch != nil {
		matrixModel := NewMatrixModel(patch.Algorithm, func(m RoutingMatrix) bool {
			return coord.Send(ControlMessage{Kind: CtrlSetRoutingMatrix, Matrix: m})
		})
		if !ApplyPatch(coord, matrixModel, patch) {
			return fmt.Errorf("bounce: patch rejected")
		}
	}
	if !coord.Send(ControlMessage{Kind: CtrlPower, On: true}) {
		return fmt.Errorf("bounce: power-on rejected")
	}

	out := make([]float32, 0, totalFrames)
	quantum := make([]float32, QuantumFrames)
	for frame := 0; frame < totalFrames; frame += QuantumFrames {
		for _, n := range notes {
			if n.StartFrame >= frame && n.StartFrame < frame+QuantumFrames {
				coord.Send(ControlMessage{Kind: CtrlNoteOn, Note: n.Note, Velocity: n.Velocity})
			}
			if n.EndFrame >= frame && n.EndFrame < frame+QuantumFrames {
				coord.Send(ControlMessage{Kind: CtrlNoteOff, Note: n.Note})
			}
		}
		coord.RenderQuantum(quantum)
		remain := totalFrames - frame
		if remain > QuantumFrames {
			remain = QuantumFrames
		}
		out = append(out, quantum[:remain]...)
	}

	return writeMonoWAV(path, out, sampleRate)
}

func writeMonoWAV(path string, data []float32, sampleRate int) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	enc := wav.NewEncoder(f, sampleRate, 16, 1, 1)
	defer enc.Close()

	buf := &audio.Float32Buffer{
		Format: &audio.Format{
			SampleRate:  sampleRate,
			NumChannels: 1,
		},
		Data:           data,
		SourceBitDepth: 16,
	}
	return enc.Write(buf)
}
