// Package couplings holds the precomputed pairwise statistical model
// (single-position fields h and pair couplings J) consumed read-only by
// problem preparation.
package couplings

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"deimmu/internal/alphabet"
)

// ErrColumnNotMapped marks a lookup for a sequence position the model's
// column mapping does not cover. Preparation treats it as a fatal
// configuration inconsistency: the wildtype-to-model mapping is broken and
// continuing would yield a structurally incomplete problem.
var ErrColumnNotMapped = errors.New("position not mapped to a model column")

// Model is a pairwise coupling model over alignment columns. Fields is
// indexed [model column][symbol index], Couplings
// [column i][column j][symbol i][symbol j]. Indices lists, per model column,
// the target-numbering position it covers.
type Model struct {
	Alphabet  string          `json:"alphabet"`
	Indices   []int           `json:"indices"`
	Fields    [][]float64     `json:"fields"`
	Couplings [][][][]float64 `json:"couplings"`

	alphabetMap map[byte]int
	columnMap   map[int]int
}

// NewModel builds an in-memory model and validates its dimensions.
func NewModel(alpha string, indices []int, fields [][]float64, pairCouplings [][][][]float64) (*Model, error) {
	m := &Model{Alphabet: alpha, Indices: indices, Fields: fields, Couplings: pairCouplings}
	if err := m.init(); err != nil {
		return nil, err
	}
	return m, nil
}

// Load reads a coupling model from its JSON interchange form and validates
// its dimensions.
func Load(path string) (*Model, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var m Model
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decode coupling model %s: %w", path, err)
	}
	if err := m.init(); err != nil {
		return nil, fmt.Errorf("coupling model %s: %w", path, err)
	}
	return &m, nil
}

func (m *Model) init() error {
	if m.Alphabet == "" {
		return errors.New("alphabet is required")
	}
	q := len(m.Alphabet)
	l := len(m.Indices)
	if len(m.Fields) != l {
		return fmt.Errorf("field table has %d columns, index list has %d", len(m.Fields), l)
	}
	for i, row := range m.Fields {
		if len(row) != q {
			return fmt.Errorf("field row %d has %d symbols, alphabet has %d", i, len(row), q)
		}
	}
	if len(m.Couplings) != l {
		return fmt.Errorf("coupling table has %d columns, index list has %d", len(m.Couplings), l)
	}
	for i, plane := range m.Couplings {
		if len(plane) != l {
			return fmt.Errorf("coupling table row %d has %d columns, want %d", i, len(plane), l)
		}
		for j, block := range plane {
			if len(block) != q {
				return fmt.Errorf("coupling block (%d,%d) has %d rows, want %d", i, j, len(block), q)
			}
			for _, row := range block {
				if len(row) != q {
					return fmt.Errorf("coupling block (%d,%d) has a row of %d symbols, want %d", i, j, len(row), q)
				}
			}
		}
	}

	m.alphabetMap = alphabet.Map(m.Alphabet)
	m.columnMap = make(map[int]int, l)
	for col, target := range m.Indices {
		if prev, dup := m.columnMap[target]; dup {
			return fmt.Errorf("target position %d mapped to columns %d and %d", target, prev, col)
		}
		m.columnMap[target] = col
	}
	return nil
}

// NumSymbols is the alphabet size q.
func (m *Model) NumSymbols() int { return len(m.Alphabet) }

// AlphabetMap returns the symbol-to-index mapping.
func (m *Model) AlphabetMap() map[byte]int { return m.alphabetMap }

// SymbolIndex resolves a residue to its alphabet index.
func (m *Model) SymbolIndex(aa byte) (int, bool) {
	s, ok := m.alphabetMap[aa]
	return s, ok
}

// Column resolves a target-numbering position to its model column.
func (m *Model) Column(target int) (int, error) {
	col, ok := m.columnMap[target]
	if !ok {
		return 0, fmt.Errorf("target position %d: %w", target, ErrColumnNotMapped)
	}
	return col, nil
}

// Field returns h[col][symbol].
func (m *Model) Field(col, symbol int) float64 {
	return m.Fields[col][symbol]
}

// Coupling returns J[ci][cj][si][sj].
func (m *Model) Coupling(ci, cj, si, sj int) float64 {
	return m.Couplings[ci][cj][si][sj]
}
