package prep

import (
	"errors"
	"strings"
	"testing"

	"gonum.org/v1/gonum/mat"

	"deimmu/internal/alleles"
	"deimmu/internal/couplings"
	"deimmu/internal/msa"
	"deimmu/internal/mutation"
	"deimmu/internal/wildtype"
)

func testWildtype(t *testing.T, fasta string) *wildtype.Wildtype {
	t.Helper()
	aln, err := msa.Read(strings.NewReader(fasta))
	if err != nil {
		t.Fatalf("read alignment: %v", err)
	}
	wt, err := wildtype.FromAlignment(aln)
	if err != nil {
		t.Fatalf("wildtype: %v", err)
	}
	return wt
}

// testModel covers three native columns over alphabet -AC with distinct field
// values per column and couplings J[0][1][A][A] = 0.3, J[0][1][A][C] = -0.2.
func testModel(t *testing.T) *couplings.Model {
	t.Helper()
	q := 3
	l := 3
	fields := [][]float64{
		{0, 0.7, -0.7},
		{0, 0.1, -0.1},
		{0, 0.4, -0.4},
	}
	j := make([][][][]float64, l)
	for ci := range j {
		j[ci] = make([][][]float64, l)
		for cj := range j[ci] {
			block := make([][]float64, q)
			for si := range block {
				block[si] = make([]float64, q)
			}
			j[ci][cj] = block
		}
	}
	j[0][1][1][1] = 0.3
	j[0][1][1][2] = -0.2
	j[1][0][1][1] = 0.3
	j[1][0][2][1] = -0.2

	m, err := couplings.NewModel("-AC", []int{1, 2, 3}, fields, j)
	if err != nil {
		t.Fatalf("new model: %v", err)
	}
	return m
}

func testAlleles() *alleles.Collection {
	return &alleles.Collection{Alleles: []alleles.Allele{{
		Name:        "DRB1_0101",
		PSSMThresh:  2.5,
		Probability: 1,
		PSSM: map[string][]float64{
			"A": {0.5, -0.5},
			"C": {0, 1},
		},
	}}}
}

func baseConfig() Config {
	return Config{NumMutations: 2, EpitopeLength: 2}
}

func allowAC(length int) mutation.Fixed {
	sets := make(mutation.Fixed, length)
	for i := range sets {
		sets[i] = []string{"A", "C"}
	}
	return sets
}

func TestExtractParametersEndToEnd(t *testing.T) {
	wt := testWildtype(t, ">WT/1-3\nACA\n>H1\nCCA\n>H2\nAAA\n>H3\nCCC\n")
	p, err := New(baseConfig(), wt, testAlleles(), allowAC(3))
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	model := testModel(t)
	if err := p.ExtractParameters(model); err != nil {
		t.Fatalf("extract: %v", err)
	}

	if len(p.HiIndices) != 3 || p.HiIndices[0] != 0 || p.HiIndices[2] != 2 {
		t.Fatalf("hi indices = %v, want [0 1 2]", p.HiIndices)
	}
	wantPairs := []PairKey{{0, 1}, {0, 2}, {1, 2}}
	if len(p.EijIndices) != 3 {
		t.Fatalf("eij indices = %v, want %v", p.EijIndices, wantPairs)
	}
	for n, pair := range wantPairs {
		if p.EijIndices[n] != pair {
			t.Fatalf("eij indices = %v, want %v", p.EijIndices, wantPairs)
		}
	}

	// Energies are the pure negation of the model terms.
	if got := p.Hi[FieldKey{Pos: 0, AA: "A"}]; got != -0.7 {
		t.Fatalf("hi(1, A) = %v, want -0.7", got)
	}
	if got := p.Hi[FieldKey{Pos: 2, AA: "C"}]; got != 0.4 {
		t.Fatalf("hi(3, C) = %v, want 0.4", got)
	}
	if got := p.Eij[CouplingKey{I: 0, J: 1, AI: "A", AJ: "A"}]; got != -0.3 {
		t.Fatalf("eij(1,2,A,A) = %v, want -0.3", got)
	}
	if got := p.Eij[CouplingKey{I: 0, J: 1, AI: "A", AJ: "C"}]; got != 0.2 {
		t.Fatalf("eij(1,2,A,C) = %v, want 0.2", got)
	}
}

func TestExtractParametersHonorsIgnoreSet(t *testing.T) {
	wt := testWildtype(t, ">WT/1-3\nACA\n")
	cfg := baseConfig()
	cfg.IgnoredPositions = []int{0}
	p, err := New(cfg, wt, testAlleles(), allowAC(3))
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if err := p.ExtractParameters(testModel(t)); err != nil {
		t.Fatalf("extract: %v", err)
	}

	if len(p.HiIndices) != 2 || p.HiIndices[0] != 1 || p.HiIndices[1] != 2 {
		t.Fatalf("hi indices = %v, want [1 2]", p.HiIndices)
	}
	if _, ok := p.Hi[FieldKey{Pos: 0, AA: "A"}]; ok {
		t.Fatal("ignored position must not carry a field energy")
	}
	// Pairs with one ignored endpoint survive.
	if len(p.EijIndices) != 3 {
		t.Fatalf("eij indices = %v, want all three pairs", p.EijIndices)
	}
}

func TestExtractParametersDropsFullyIgnoredPairs(t *testing.T) {
	wt := testWildtype(t, ">WT/1-3\nACA\n")
	cfg := baseConfig()
	cfg.IgnoredPositions = []int{0, 1}
	p, err := New(cfg, wt, testAlleles(), allowAC(3))
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if err := p.ExtractParameters(testModel(t)); err != nil {
		t.Fatalf("extract: %v", err)
	}

	for _, pair := range p.EijIndices {
		if pair.I == 0 && pair.J == 1 {
			t.Fatalf("pair with both endpoints ignored must be dropped: %v", p.EijIndices)
		}
	}
	if len(p.EijIndices) != 2 {
		t.Fatalf("eij indices = %v, want [(0,2) (1,2)]", p.EijIndices)
	}
}

func TestExtractParametersFallbackUsesFittedFields(t *testing.T) {
	// Position 1 is a lower-case insertion column: native coverage is column
	// 0 only, the fallback model supplies position 1.
	wt := testWildtype(t, ">WT/1-1\nAc\n")
	cfg := baseConfig()
	cfg.UseSingleSiteModel = true
	cfg.LambdaH = 0.5
	p, err := New(cfg, wt, testAlleles(), allowAC(2))
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	fields := [][]float64{{0, 0.7, -0.7}}
	j := [][][][]float64{{{{0, 0, 0}, {0, 0, 0}, {0, 0, 0}}}}
	model, err := couplings.NewModel("-AC", []int{1}, fields, j)
	if err != nil {
		t.Fatalf("new model: %v", err)
	}

	single := mat.NewDense(2, 3, []float64{
		0, 0, 0,
		0, 1.25, -1.25,
	})
	p.SetSingleSiteFields(single)

	if err := p.ExtractParameters(model); err != nil {
		t.Fatalf("extract: %v", err)
	}
	if len(p.HiIndices) != 2 {
		t.Fatalf("hi indices = %v, want [0 1]", p.HiIndices)
	}
	if got := p.Hi[FieldKey{Pos: 1, AA: "A"}]; got != -1.25 {
		t.Fatalf("fallback hi(2, A) = %v, want -1.25", got)
	}
	if got := p.Hi[FieldKey{Pos: 1, AA: "C"}]; got != 1.25 {
		t.Fatalf("fallback hi(2, C) = %v, want 1.25", got)
	}
}

func TestExtractParametersFailsWithoutFittedFields(t *testing.T) {
	wt := testWildtype(t, ">WT/1-1\nAc\n")
	cfg := baseConfig()
	cfg.UseSingleSiteModel = true
	cfg.LambdaH = 0.5
	p, err := New(cfg, wt, testAlleles(), allowAC(2))
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	fields := [][]float64{{0, 0.7, -0.7}}
	j := [][][][]float64{{{{0, 0, 0}, {0, 0, 0}, {0, 0, 0}}}}
	model, err := couplings.NewModel("-AC", []int{1}, fields, j)
	if err != nil {
		t.Fatalf("new model: %v", err)
	}
	if err := p.ExtractParameters(model); err == nil {
		t.Fatal("expected error for missing fitted fields")
	}
}

func TestExtractParametersUnmappedColumnIsFatal(t *testing.T) {
	wt := testWildtype(t, ">WT/1-3\nACA\n")
	p, err := New(baseConfig(), wt, testAlleles(), allowAC(3))
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	// Model only maps targets 1 and 2; wildtype position 3 has target 3.
	fields := [][]float64{{0, 0.7, -0.7}, {0, 0.1, -0.1}}
	j := make([][][][]float64, 2)
	for ci := range j {
		j[ci] = make([][][]float64, 2)
		for cj := range j[ci] {
			j[ci][cj] = [][]float64{{0, 0, 0}, {0, 0, 0}, {0, 0, 0}}
		}
	}
	model, err := couplings.NewModel("-AC", []int{1, 2}, fields, j)
	if err != nil {
		t.Fatalf("new model: %v", err)
	}

	err = p.ExtractParameters(model)
	if !errors.Is(err, couplings.ErrColumnNotMapped) {
		t.Fatalf("expected ErrColumnNotMapped, got %v", err)
	}
}

func TestNewRejectsBadMutationSets(t *testing.T) {
	wt := testWildtype(t, ">WT/1-2\nAC\n")

	if _, err := New(baseConfig(), wt, testAlleles(), mutation.Fixed{{"A"}, nil}); err == nil {
		t.Fatal("expected error for empty mutation set")
	}
	if _, err := New(baseConfig(), wt, testAlleles(), mutation.Fixed{{"A"}, {"A"}}); err == nil {
		t.Fatal("expected error for mutation set omitting wildtype residue")
	}
}

func TestNewRejectsOutOfRangePositions(t *testing.T) {
	wt := testWildtype(t, ">WT/1-2\nAC\n")
	cfg := baseConfig()
	cfg.IgnoredPositions = []int{5}
	if _, err := New(cfg, wt, testAlleles(), allowAC(2)); err == nil {
		t.Fatal("expected out-of-range error")
	}
}
