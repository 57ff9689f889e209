// Package alphabet defines the protein alphabets shared by the alignment,
// coupling-model and problem-preparation packages.
package alphabet

import "strings"

const (
	// Protein is the 20-letter amino-acid alphabet without the gap symbol,
	// in the fixed order used throughout serialized output.
	Protein = "ACDEFGHIKLMNPQRSTVWY"

	// ProteinGapped is the gapped comparison alphabet used by coupling models.
	ProteinGapped = "-" + Protein

	// Gap is the canonical gap symbol.
	Gap = '-'
)

// excluded holds symbols outside the comparison alphabet: gaps and the
// ambiguity codes carried by alignment files. They are skipped entirely
// during frequency counting, never mapped to a substitute bucket.
const excluded = "-.XBZ"

// Excluded reports whether c is a gap or ambiguity symbol.
func Excluded(c byte) bool {
	return strings.IndexByte(excluded, upper(c)) >= 0
}

// Map builds a symbol-to-index lookup for the given alphabet string.
func Map(alpha string) map[byte]int {
	m := make(map[byte]int, len(alpha))
	for i := 0; i < len(alpha); i++ {
		m[alpha[i]] = i
	}
	return m
}

// Symbols splits an alphabet string into single-letter symbols, dropping
// the gap when withGap is false.
func Symbols(alpha string, withGap bool) []string {
	out := make([]string, 0, len(alpha))
	for i := 0; i < len(alpha); i++ {
		if !withGap && alpha[i] == Gap {
			continue
		}
		out = append(out, string(alpha[i]))
	}
	return out
}

func upper(c byte) byte {
	if c >= 'a' && c <= 'z' {
		return c - 'a' + 'A'
	}
	return c
}

// Upper exposes ASCII upper-casing for single residues.
func Upper(c byte) byte { return upper(c) }
