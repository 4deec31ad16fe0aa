// operator_params.go - Per-operator parameter records and filter specs

/*
(c) 2024 - 2026 Zayn Otley
https://github.com/IntuitionAmiga/FMStation
License: GPLv3 or later
*/

package main

import (
	"encoding/json"
	"fmt"
)

// FilterKind discriminates the FilterSpec variant.
type FilterKind int

const (
	FilterLowPass FilterKind = iota
	FilterComb
	FilterPitchedComb
)

func (k FilterKind) String() string {
	switch k {
	case FilterLowPass:
		return "lowpass"
	case FilterComb:
		return "comb"
	case FilterPitchedComb:
		return "pitched_comb"
	default:
		return "unknown"
	}
}

// FilterSpec is one element of an operator's ordered filter chain.
// Only the fields of the active Kind are meaningful:
//
//	LowPass:     Cutoff (Hz), Q
//	Comb:        Alpha (feedback), K (delay in samples)
//	PitchedComb: Alpha (feedback); delay tracks the sounding note
type FilterSpec struct {
	Kind   FilterKind
	Cutoff float64
	Q      float64
	Alpha  float64
	K      int
}

type filterSpecJSON struct {
	Type   string   `json:"type"`
	Cutoff *float64 `json:"cutoff,omitempty"`
	Q      *float64 `json:"q,omitempty"`
	Alpha  *float64 `json:"alpha,omitempty"`
	K      *int     `json:"k,omitempty"`
}

func (f FilterSpec) MarshalJSON() ([]byte, error) {
	out := filterSpecJSON{Type: f.Kind.String()}
	switch f.Kind {
	case FilterLowPass:
		out.Cutoff = &f.Cutoff
		out.Q = &f.Q
	case FilterComb:
		out.Alpha = &f.Alpha
		out.K = &f.K
	case FilterPitchedComb:
		out.Alpha = &f.Alpha
	default:
		return nil, fmt.Errorf("unknown filter kind %d", f.Kind)
	}
	return json.Marshal(out)
}

func (f *FilterSpec) UnmarshalJSON(data []byte) error {
	var in filterSpecJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	switch in.Type {
	case "lowpass":
		f.Kind = FilterLowPass
		if in.Cutoff != nil {
			f.Cutoff = *in.Cutoff
		}
		if in.Q != nil {
			f.Q = *in.Q
		}
	case "comb":
		f.Kind = FilterComb
		if in.Alpha != nil {
			f.Alpha = *in.Alpha
		}
		if in.K != nil {
			f.K = *in.K
		}
	case "pitched_comb":
		f.Kind = FilterPitchedComb
		if in.Alpha != nil {
			f.Alpha = *in.Alpha
		}
	default:
		return fmt.Errorf("unknown filter type %q", in.Type)
	}
	return nil
}

// Validate checks a filter spec against its kind's parameter ranges.
func (f FilterSpec) Validate() error {
	switch f.Kind {
	case FilterLowPass:
		if f.Cutoff <= 0 {
			return fmt.Errorf("lowpass cutoff must be > 0, got %v", f.Cutoff)
		}
		if f.Q <= 0 {
			return fmt.Errorf("lowpass q must be > 0, got %v", f.Q)
		}
	case FilterComb:
		if f.Alpha < -1 || f.Alpha > 1 {
			return fmt.Errorf("comb alpha must be in [-1,1], got %v", f.Alpha)
		}
		if f.K < 1 {
			return fmt.Errorf("comb k must be >= 1, got %d", f.K)
		}
	case FilterPitchedComb:
		if f.Alpha < -1 || f.Alpha > 1 {
			return fmt.Errorf("pitched comb alpha must be in [-1,1], got %v", f.Alpha)
		}
	default:
		return fmt.Errorf("unknown filter kind %d", f.Kind)
	}
	return nil
}

// EnvelopeParams is a per-operator ADSR envelope, times in seconds.
type EnvelopeParams struct {
	Attack  float64 `json:"attack"`
	Decay   float64 `json:"decay"`
	Sustain float64 `json:"sustain"`
	Release float64 `json:"release"`
}

// OperatorParams is the complete parameter record of one FM operator.
type OperatorParams struct {
	Ratio           float64        `json:"ratio"`
	ModulationIndex float64        `json:"modulation_index"`
	Waveform        Waveform       `json:"waveform"`
	Envelope        EnvelopeParams `json:"envelope"`
	Filters         []FilterSpec   `json:"filters,omitempty"`
}

// DefaultOperatorParams returns a plain sine operator with a short
// percussive envelope and no filters.
func DefaultOperatorParams() OperatorParams {
	return OperatorParams{
		Ratio:           1.0,
		ModulationIndex: 1.0,
		Waveform:        WaveSine,
		Envelope: EnvelopeParams{
			Attack:  0.005,
			Decay:   0.1,
			Sustain: 0.7,
			Release: 0.3,
		},
	}
}

// Validate checks the operator record against the documented ranges:
// ratio > 0, modulation index >= 0, sustain in [0,1], envelope times >= 0.
func (p OperatorParams) Validate() error {
	if p.Ratio <= 0 {
		return fmt.Errorf("ratio must be > 0, got %v", p.Ratio)
	}
	if p.ModulationIndex < 0 {
		return fmt.Errorf("modulation index must be >= 0, got %v", p.ModulationIndex)
	}
	if p.Waveform < 0 || p.Waveform >= waveformCount {
		return fmt.Errorf("unknown waveform %d", p.Waveform)
	}
	env := p.Envelope
	if env.Attack < 0 || env.Decay < 0 || env.Release < 0 {
		return fmt.Errorf("envelope times must be >= 0")
	}
	if env.Sustain < 0 || env.Sustain > 1 {
		return fmt.Errorf("sustain must be in [0,1], got %v", env.Sustain)
	}
	for i, f := range p.Filters {
		if err := f.Validate(); err != nil {
			return fmt.Errorf("filter %d: %w", i, err)
		}
	}
	return nil
}
