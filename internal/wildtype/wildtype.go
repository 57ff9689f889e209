// Package wildtype derives the target sequence and its position bookkeeping
// from the first record of a focus-mode alignment: which positions the
// coupling model covers natively, which are insertion columns, and how each
// position maps back to target numbering and alignment columns.
package wildtype

import (
	"fmt"
	"strings"

	"deimmu/internal/alphabet"
	"deimmu/internal/msa"
)

// Wildtype is the sequence to be redesigned. Positions are 0-based over the
// ungapped residue sequence. Upper lists positions at alignment match columns
// (natively represented in the coupling model); Lower lists insertion-column
// positions, covered only by the fallback single-site model.
type Wildtype struct {
	Name     string
	Sequence string
	Upper    []int
	Lower    []int

	numbering []int
	columns   []int
}

// FromAlignment builds the wildtype from the alignment's first record.
// Upper-case letters are match states and consume a target-numbering slot,
// lower-case letters are insertions, '-' consumes a numbering slot without a
// residue, and '.' is padding. The numbering offset comes from the record's
// header range, defaulting to 1.
func FromAlignment(a *msa.Alignment) (*Wildtype, error) {
	if len(a.Records) == 0 {
		return nil, fmt.Errorf("alignment has no records")
	}
	rec := a.Records[0]

	start := rec.Start
	if start == 0 {
		start = 1
	}

	wt := &Wildtype{Name: rec.ID}
	var seq strings.Builder
	target := start
	for col := 0; col < len(rec.Seq); col++ {
		c := rec.Seq[col]
		switch {
		case c >= 'A' && c <= 'Z':
			pos := seq.Len()
			seq.WriteByte(c)
			wt.Upper = append(wt.Upper, pos)
			wt.numbering = append(wt.numbering, target)
			wt.columns = append(wt.columns, col)
			target++
		case c >= 'a' && c <= 'z':
			pos := seq.Len()
			seq.WriteByte(alphabet.Upper(c))
			wt.Lower = append(wt.Lower, pos)
			wt.numbering = append(wt.numbering, -1)
			wt.columns = append(wt.columns, col)
		case c == '-':
			target++
		case c == '.':
			// alignment padding, nothing to consume
		default:
			return nil, fmt.Errorf("record %s: unexpected symbol %q at column %d", rec.ID, c, col)
		}
	}

	wt.Sequence = seq.String()
	if wt.Sequence == "" {
		return nil, fmt.Errorf("record %s has no residues", rec.ID)
	}
	return wt, nil
}

// Len is the number of wildtype residues.
func (w *Wildtype) Len() int { return len(w.Sequence) }

// Residue returns the residue at pos as a one-letter string.
func (w *Wildtype) Residue(pos int) string { return string(w.Sequence[pos]) }

// MapToTarget resolves a wildtype position to its target numbering. The
// second return is false for insertion positions, which have no slot in the
// coupling model's numbering.
func (w *Wildtype) MapToTarget(pos int) (int, bool) {
	n := w.numbering[pos]
	return n, n >= 0
}

// Column returns the alignment column a wildtype position came from. The
// single-site frequency and field tables are indexed by alignment column, so
// fallback lookups go through here.
func (w *Wildtype) Column(pos int) int { return w.columns[pos] }
