package wildtype

import (
	"strings"
	"testing"

	"deimmu/internal/msa"
)

func mustRead(t *testing.T, fasta string) *msa.Alignment {
	t.Helper()
	aln, err := msa.Read(strings.NewReader(fasta))
	if err != nil {
		t.Fatalf("read alignment: %v", err)
	}
	return aln
}

func TestFromAlignmentSplitsUpperAndLower(t *testing.T) {
	aln := mustRead(t, ">WT/10-14\nAkC-E\n>H1\nAaCDE\n")
	wt, err := FromAlignment(aln)
	if err != nil {
		t.Fatalf("from alignment: %v", err)
	}

	if wt.Name != "WT" {
		t.Fatalf("name = %q, want WT", wt.Name)
	}
	if wt.Sequence != "AKCE" {
		t.Fatalf("sequence = %q, want AKCE", wt.Sequence)
	}
	if len(wt.Upper) != 3 || wt.Upper[0] != 0 || wt.Upper[1] != 2 || wt.Upper[2] != 3 {
		t.Fatalf("upper = %v, want [0 2 3]", wt.Upper)
	}
	if len(wt.Lower) != 1 || wt.Lower[0] != 1 {
		t.Fatalf("lower = %v, want [1]", wt.Lower)
	}
}

func TestMapToTargetSkipsDeletions(t *testing.T) {
	aln := mustRead(t, ">WT/10-14\nAkC-E\n")
	wt, err := FromAlignment(aln)
	if err != nil {
		t.Fatalf("from alignment: %v", err)
	}

	// A is the first match state: numbering 10. The '-' consumes 12, so E
	// lands on 13. The insertion k has no numbering slot.
	cases := []struct {
		pos    int
		target int
		ok     bool
	}{
		{0, 10, true},
		{1, 0, false},
		{2, 11, true},
		{3, 13, true},
	}
	for _, tc := range cases {
		target, ok := wt.MapToTarget(tc.pos)
		if ok != tc.ok || (ok && target != tc.target) {
			t.Errorf("MapToTarget(%d) = (%d, %t), want (%d, %t)", tc.pos, target, ok, tc.target, tc.ok)
		}
	}
}

func TestColumnTracksAlignment(t *testing.T) {
	aln := mustRead(t, ">WT\n.A-cD\n")
	wt, err := FromAlignment(aln)
	if err != nil {
		t.Fatalf("from alignment: %v", err)
	}
	if wt.Sequence != "ACD" {
		t.Fatalf("sequence = %q, want ACD", wt.Sequence)
	}
	want := []int{1, 3, 4}
	for pos, col := range want {
		if wt.Column(pos) != col {
			t.Errorf("Column(%d) = %d, want %d", pos, wt.Column(pos), col)
		}
	}
}

func TestDefaultNumberingStartsAtOne(t *testing.T) {
	aln := mustRead(t, ">WT\nAC\n")
	wt, err := FromAlignment(aln)
	if err != nil {
		t.Fatalf("from alignment: %v", err)
	}
	if target, ok := wt.MapToTarget(0); !ok || target != 1 {
		t.Fatalf("MapToTarget(0) = (%d, %t), want (1, true)", target, ok)
	}
}

func TestFromAlignmentRejectsUnknownSymbols(t *testing.T) {
	aln := mustRead(t, ">WT\nA*C\n")
	if _, err := FromAlignment(aln); err == nil {
		t.Fatal("expected symbol error")
	}
}
