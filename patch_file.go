// patch_file.go - Patch persistence: the {algorithm, operators} record

/*
(c) 2024 - 2026 Zayn Otley
https://github.com/IntuitionAmiga/FMStation
License: GPLv3 or later
*/

package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// PatchState is the structural record shared with external persistence
// (patch files, URL/state modules): the full routing matrix plus every
// operator's parameters.
type PatchState struct {
	Algorithm RoutingMatrix    `json:"algorithm"`
	Operators []OperatorParams `json:"operators"`
}

// Validate checks the record is applicable to this engine.
func (p *PatchState) Validate() error {
	if len(p.Operators) != NumOperators {
		return fmt.Errorf("patch must define %d operators, got %d", NumOperators, len(p.Operators))
	}
	for i, op := range p.Operators {
		if err := op.Validate(); err != nil {
			return fmt.Errorf("operator %d: %w", i, err)
		}
	}
	return nil
}

// DefaultPatchState mirrors the embedded default bank.
func DefaultPatchState() (*PatchState, error) {
	var mod moduleFile
	if err := json.Unmarshal(defaultBankJSON, &mod); err != nil {
		return nil, fmt.Errorf("parse embedded bank: %w", err)
	}
	return &PatchState{Algorithm: mod.Algorithm, Operators: mod.Operators}, nil
}

// LoadPatchFile reads and validates a patch JSON file.
func LoadPatchFile(path string) (*PatchState, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read patch: %w", err)
	}
	var p PatchState
	if err := json.Unmarshal(b, &p); err != nil {
		return nil, fmt.Errorf("parse patch %s: %w", path, err)
	}
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("patch %s: %w", path, err)
	}
	return &p, nil
}

// SavePatchFile writes the record as indented JSON.
func SavePatchFile(path string, p *PatchState) error {
	if err := p.Validate(); err != nil {
		return err
	}
	b, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(b, '\n'), 0o644)
}

// isPatchExtension reports whether a path looks like a patch file.
func isPatchExtension(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".fmp", ".json":
		return true
	default:
		return false
	}
}

// ApplyPatch pushes a patch through the control protocol: every operator
// record, then the full matrix. Returns false on the first rejected send.
func ApplyPatch(coord *Coordinator, matrixModel *MatrixModel, p *PatchState) bool {
	for i, op := range p.Operators {
		if !coord.Send(ControlMessage{Kind: CtrlSetOperatorParam, OpIndex: i, Param: op}) {
			return false
		}
	}
	return matrixModel.SetMatrix(p.Algorithm)
}
