// patch_file_test.go - Patch persistence tests

package main

import (
	"path/filepath"
	"testing"
)

func TestPatchFile_SaveLoadRoundTrip(t *testing.T) {
	p, err := DefaultPatchState()
	if err != nil {
		t.Fatalf("DefaultPatchState: %v", err)
	}
	p.Operators[2].Ratio = 7.0
	p.Operators[2].Filters = []FilterSpec{
		{Kind: FilterComb, Alpha: 0.5, K: 441},
		{Kind: FilterLowPass, Cutoff: 1200, Q: 1.2},
	}
	p.Algorithm[2][OutputColumn] = true

	path := filepath.Join(t.TempDir(), "roundtrip.fmp")
	if err := SavePatchFile(path, p); err != nil {
		t.Fatalf("save: %v", err)
	}
	back, err := LoadPatchFile(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if back.Algorithm != p.Algorithm {
		t.Errorf("algorithm changed: %v -> %v", p.Algorithm, back.Algorithm)
	}
	if got := back.Operators[2].Ratio; got != 7.0 {
		t.Errorf("operator 2 ratio = %v, want 7.0", got)
	}
	if got := len(back.Operators[2].Filters); got != 2 {
		t.Fatalf("operator 2 filter count = %d, want 2", got)
	}
	if f := back.Operators[2].Filters[0]; f.Kind != FilterComb || f.K != 441 {
		t.Errorf("comb filter lost: %+v", f)
	}
}

func TestPatchFile_LoadRejectsInvalid(t *testing.T) {
	dir := t.TempDir()

	if _, err := LoadPatchFile(filepath.Join(dir, "missing.fmp")); err == nil {
		t.Error("load of missing file succeeded")
	}

	p, err := DefaultPatchState()
	if err != nil {
		t.Fatal(err)
	}
	p.Operators[0].Ratio = 0
	if err := SavePatchFile(filepath.Join(dir, "bad.fmp"), p); err == nil {
		t.Error("save of invalid patch succeeded")
	}
}

func TestIsPatchExtension(t *testing.T) {
	cases := []struct {
		path string
		want bool
	}{
		{"lead.fmp", true},
		{"lead.FMP", true},
		{"bank.json", true},
		{"/abs/path/pad.fmp", true},
		{"song.wav", false},
		{"noext", false},
	}
	for _, c := range cases {
		if got := isPatchExtension(c.path); got != c.want {
			t.Errorf("isPatchExtension(%q) = %v, want %v", c.path, got, c.want)
		}
	}
}

func TestApplyPatch_ReachesEngine(t *testing.T) {
	coord := newReadyCoordinator(t)
	mm := NewMatrixModel(DefaultRoutingMatrix(), func(m RoutingMatrix) bool {
		return coord.Send(ControlMessage{Kind: CtrlSetRoutingMatrix, Matrix: m})
	})

	p, err := DefaultPatchState()
	if err != nil {
		t.Fatal(err)
	}
	p.Operators[3].Waveform = WaveTriangle
	p.Algorithm[3][OutputColumn] = true

	if !ApplyPatch(coord, mm, p) {
		t.Fatal("ApplyPatch rejected")
	}
	coord.RenderQuantum(make([]float32, QuantumFrames))

	if got := coord.engine.OperatorParam(3).Waveform; got != WaveTriangle {
		t.Errorf("operator 3 waveform = %s, want triangle", got)
	}
	if !coord.engine.Matrix().Cell(3, OutputColumn) {
		t.Error("patched algorithm did not reach the engine")
	}
}
