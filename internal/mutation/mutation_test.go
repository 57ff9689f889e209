package mutation

import (
	"strings"
	"testing"

	"gonum.org/v1/gonum/mat"

	"deimmu/internal/msa"
	"deimmu/internal/wildtype"
)

func TestObservedPolicyIncludesWildtypeAndFrequentResidues(t *testing.T) {
	aln, err := msa.Read(strings.NewReader(">WT\nAC\n>H1\nCC\n>H2\nCA\n>H3\nCC\n"))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	wt, err := wildtype.FromAlignment(aln)
	if err != nil {
		t.Fatalf("wildtype: %v", err)
	}

	// Column 0: A at 0.25, C at 0.75. Column 1: A at 0.25, C at 0.75.
	freq := mat.NewDense(2, 3, []float64{
		0, 0.25, 0.75,
		0, 0.25, 0.75,
	})

	policy := NewObservedPolicy(freq, wt, "-AC", 0.5)

	// Position 0: C passes the cutoff, A only survives as wildtype.
	if got := policy.Mutations(0); len(got) != 2 || got[0] != "A" || got[1] != "C" {
		t.Fatalf("mutations(0) = %v, want [A C]", got)
	}
	// Position 1: wildtype C passes on its own; A stays below the cutoff.
	if got := policy.Mutations(1); len(got) != 1 || got[0] != "C" {
		t.Fatalf("mutations(1) = %v, want [C]", got)
	}
}

func TestObservedPolicyNeverEmitsGap(t *testing.T) {
	aln, err := msa.Read(strings.NewReader(">WT\nA\n>H1\n-\n>H2\n-\n"))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	wt, err := wildtype.FromAlignment(aln)
	if err != nil {
		t.Fatalf("wildtype: %v", err)
	}
	freq := mat.NewDense(1, 3, []float64{0.67, 0.33, 0})

	policy := NewObservedPolicy(freq, wt, "-AC", 0.1)
	for _, aa := range policy.Mutations(0) {
		if aa == "-" {
			t.Fatal("gap must never enter a mutation set")
		}
	}
}

func TestFixedPolicy(t *testing.T) {
	policy := Fixed{{"A"}, {"A", "C"}}
	if got := policy.Mutations(1); len(got) != 2 || got[1] != "C" {
		t.Fatalf("mutations(1) = %v", got)
	}
}
