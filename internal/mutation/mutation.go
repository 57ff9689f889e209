// Package mutation defines the mutation-selection policy contract. The
// numerical core depends only on the Policy interface, keeping the search
// space strategy pluggable.
package mutation

import (
	"gonum.org/v1/gonum/mat"

	"deimmu/internal/alphabet"
	"deimmu/internal/wildtype"
)

// Policy yields, for every wildtype position, the non-empty set of residues
// allowed there. The wildtype residue is always a member and the returned
// order is stable across calls.
type Policy interface {
	Mutations(pos int) []string
}

// Fixed is a static per-position policy.
type Fixed [][]string

func (f Fixed) Mutations(pos int) []string { return f[pos] }

// ObservedPolicy admits residues seen in the alignment column at or above a
// relative-frequency cutoff, with the wildtype residue always included.
// Residues are emitted in model alphabet order, so the search space is
// deterministic for a given alignment.
type ObservedPolicy struct {
	allowed [][]string
}

// NewObservedPolicy derives the search space from the column frequency matrix.
// freq is indexed by alignment column; positions resolve through the wildtype's
// column mapping.
func NewObservedPolicy(freq *mat.Dense, wt *wildtype.Wildtype, alpha string, minFreq float64) *ObservedPolicy {
	alphaMap := alphabet.Map(alpha)
	allowed := make([][]string, wt.Len())
	for pos := 0; pos < wt.Len(); pos++ {
		col := wt.Column(pos)
		wtAA := wt.Sequence[pos]

		var set []string
		for i := 0; i < len(alpha); i++ {
			c := alpha[i]
			if c == alphabet.Gap {
				continue
			}
			if c == wtAA || freq.At(col, alphaMap[c]) >= minFreq {
				set = append(set, string(c))
			}
		}
		allowed[pos] = set
	}
	return &ObservedPolicy{allowed: allowed}
}

func (p *ObservedPolicy) Mutations(pos int) []string { return p.allowed[pos] }
