package datafile

import (
	"strings"
	"testing"
)

func TestEntryTerminates(t *testing.T) {
	got := Entry("set", "SIGMA", "A C D")
	if got != "set SIGMA := A C D;\n" {
		t.Fatalf("unexpected entry: %q", got)
	}
}

func TestOpenLeavesStatementUnterminated(t *testing.T) {
	got := Open("[1,2,*,*]:", "A\tC", "\nA\t0.5\t-0.5\n")
	if strings.Contains(got, ";") {
		t.Fatalf("slice block must not be terminated: %q", got)
	}
	if !strings.HasPrefix(got, "[1,2,*,*]: A\tC := ") {
		t.Fatalf("unexpected slice header: %q", got)
	}
}

func TestBannerShape(t *testing.T) {
	got := Banner("Sets I")
	want := "##################################\n#\n# Sets I\n#\n##################################\n\n"
	if got != want {
		t.Fatalf("unexpected banner:\n%q\nwant:\n%q", got, want)
	}
}

func TestFloatShortestForm(t *testing.T) {
	if got := Float(-0.5); got != "-0.5" {
		t.Fatalf("Float(-0.5) = %q", got)
	}
	if got := Float(2); got != "2" {
		t.Fatalf("Float(2) = %q", got)
	}
}
