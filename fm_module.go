// fm_module.go - Engine bank module parsing and instantiation

/*
(c) 2024 - 2026 Zayn Otley
https://github.com/IntuitionAmiga/FMStation
License: GPLv3 or later
*/

package main

import (
	_ "embed"
	"encoding/json"
	"fmt"
)

//go:embed banks/default_bank.json
var defaultBankJSON []byte

// moduleFile is the JSON schema of an engine bank module: the payload
// carried by the Init message and instantiated inside the render context.
type moduleFile struct {
	Name      string           `json:"name"`
	Algorithm RoutingMatrix    `json:"algorithm"`
	Operators []OperatorParams `json:"operators"`
}

// DefaultModuleBytes returns a fresh copy of the embedded default bank.
// A copy, because Init transfers the payload by ownership move and the
// embedded original must stay intact.
func DefaultModuleBytes() []byte {
	out := make([]byte, len(defaultBankJSON))
	copy(out, defaultBankJSON)
	return out
}

// InstantiateEngine parses a bank module and builds a ready FMEngine.
// This is the unbounded-work step of the Loading state; it never runs
// inside the periodic render callback.
func InstantiateEngine(moduleBytes []byte, sampleRate int) (*FMEngine, error) {
	if len(moduleBytes) == 0 {
		return nil, fmt.Errorf("empty module payload")
	}
	if sampleRate <= 0 {
		return nil, fmt.Errorf("invalid sample rate %d", sampleRate)
	}

	var mod moduleFile
	if err := json.Unmarshal(moduleBytes, &mod); err != nil {
		return nil, fmt.Errorf("parse bank module: %w", err)
	}
	if len(mod.Operators) != NumOperators {
		return nil, fmt.Errorf("bank module must define %d operators, got %d", NumOperators, len(mod.Operators))
	}

	engine := NewFMEngine(sampleRate)
	for i, p := range mod.Operators {
		if err := engine.SetOperatorParam(i, p); err != nil {
			return nil, fmt.Errorf("bank module: %w", err)
		}
	}
	engine.SetRoutingMatrix(mod.Algorithm)
	return engine, nil
}
