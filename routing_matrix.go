// routing_matrix.go - Modulation routing matrix model

/*
(c) 2024 - 2026 Zayn Otley
https://github.com/IntuitionAmiga/FMStation
License: GPLv3 or later
*/

package main

import (
	"encoding/json"
	"fmt"
	"sync"
)

// RoutingMatrix is the algorithm grid: cell (i,j) with j < NumOperators
// means "operator i modulates operator j" (i == j is self-feedback),
// and cell (i, OutputColumn) means "operator i is mixed into the output".
//
// It is a value type: assignment copies the whole grid, so a published
// matrix is always a self-consistent snapshot.
type RoutingMatrix [NumOperators][NumOperators + 1]bool

// Cell reports whether the given cell is set. Row selects the modulating
// operator, column the modulated operator or OutputColumn.
func (m RoutingMatrix) Cell(row, col int) bool {
	return m[row][col]
}

// MarshalJSON encodes the matrix as the persistence-boundary form:
// an array of NumOperators rows of NumOperators+1 zero/one values.
func (m RoutingMatrix) MarshalJSON() ([]byte, error) {
	rows := make([][]int, NumOperators)
	for i := range m {
		rows[i] = make([]int, NumOperators+1)
		for j, set := range m[i] {
			if set {
				rows[i][j] = 1
			}
		}
	}
	return json.Marshal(rows)
}

func (m *RoutingMatrix) UnmarshalJSON(data []byte) error {
	var rows [][]int
	if err := json.Unmarshal(data, &rows); err != nil {
		return err
	}
	if len(rows) != NumOperators {
		return fmt.Errorf("algorithm must have %d rows, got %d", NumOperators, len(rows))
	}
	var out RoutingMatrix
	for i, row := range rows {
		if len(row) != NumOperators+1 {
			return fmt.Errorf("algorithm row %d must have %d columns, got %d", i, NumOperators+1, len(row))
		}
		for j, v := range row {
			out[i][j] = v != 0
		}
	}
	*m = out
	return nil
}

// MatrixModel holds the control-side authoritative routing matrix and
// republishes the entire grid on every single-cell toggle. The render side
// therefore never observes a partial update, and a lost publish is healed
// by the next one.
type MatrixModel struct {
	mu      sync.Mutex
	matrix  RoutingMatrix
	publish func(RoutingMatrix) bool
}

// NewMatrixModel creates a model seeded with the given matrix. publish
// sends a full-matrix snapshot towards the render side and reports whether
// the send was accepted.
func NewMatrixModel(initial RoutingMatrix, publish func(RoutingMatrix) bool) *MatrixModel {
	return &MatrixModel{matrix: initial, publish: publish}
}

// Matrix returns a snapshot of the current grid.
func (mm *MatrixModel) Matrix() RoutingMatrix {
	mm.mu.Lock()
	defer mm.mu.Unlock()
	return mm.matrix
}

// ToggleCell flips one cell and publishes the full matrix. Returns false
// if the cell address is out of range or the publish was not accepted;
// a rejected publish rolls the flip back so the model stays consistent
// with what the render side last saw.
func (mm *MatrixModel) ToggleCell(row, col int) bool {
	if row < 0 || row >= NumOperators || col < 0 || col > OutputColumn {
		return false
	}
	mm.mu.Lock()
	defer mm.mu.Unlock()
	mm.matrix[row][col] = !mm.matrix[row][col]
	if !mm.publish(mm.matrix) {
		mm.matrix[row][col] = !mm.matrix[row][col]
		return false
	}
	return true
}

// SetMatrix replaces the whole grid (patch load) and publishes it.
func (mm *MatrixModel) SetMatrix(m RoutingMatrix) bool {
	mm.mu.Lock()
	defer mm.mu.Unlock()
	prev := mm.matrix
	mm.matrix = m
	if !mm.publish(mm.matrix) {
		mm.matrix = prev
		return false
	}
	return true
}

// Republish resends the current matrix without changing it. Used after the
// engine (re)initializes so its view matches the model.
func (mm *MatrixModel) Republish() bool {
	mm.mu.Lock()
	defer mm.mu.Unlock()
	return mm.publish(mm.matrix)
}

// DefaultRoutingMatrix routes operator 1 into operator 0 and operator 0
// into the output: the minimal two-operator FM patch.
func DefaultRoutingMatrix() RoutingMatrix {
	var m RoutingMatrix
	m[1][0] = true
	m[0][OutputColumn] = true
	return m
}
