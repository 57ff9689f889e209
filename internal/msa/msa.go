// Package msa holds the read-only sequence alignment consumed by problem
// preparation and computes per-column symbol frequencies from it.
package msa

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/mat"

	"deimmu/internal/alphabet"
)

// Record is one aligned sequence. Start and End carry the target-numbering
// range parsed from a focus-mode header of the form "id/start-end"; both are
// zero when the header has no range.
type Record struct {
	ID    string
	Start int
	End   int
	Seq   string
}

// Alignment is an ordered, equal-length collection of aligned sequences.
// It is immutable for the duration of a preparation run.
type Alignment struct {
	Records []Record
	Length  int
}

// Read parses a FASTA alignment. All sequences must have equal length.
func Read(r io.Reader) (*Alignment, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	aln := &Alignment{}
	var current *Record
	var seq strings.Builder

	flush := func() error {
		if current == nil {
			return nil
		}
		current.Seq = seq.String()
		if current.Seq == "" {
			return fmt.Errorf("record %s has no sequence", current.ID)
		}
		if aln.Length == 0 {
			aln.Length = len(current.Seq)
		} else if len(current.Seq) != aln.Length {
			return fmt.Errorf("record %s length %d differs from alignment length %d",
				current.ID, len(current.Seq), aln.Length)
		}
		aln.Records = append(aln.Records, *current)
		current = nil
		seq.Reset()
		return nil
	}

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, ">") {
			if err := flush(); err != nil {
				return nil, err
			}
			rec := parseHeader(line[1:])
			current = &rec
			continue
		}
		if current == nil {
			return nil, fmt.Errorf("sequence data before first header")
		}
		seq.WriteString(line)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if err := flush(); err != nil {
		return nil, err
	}
	if len(aln.Records) == 0 {
		return nil, fmt.Errorf("alignment is empty")
	}
	return aln, nil
}

// Open reads a FASTA alignment from disk.
func Open(path string) (*Alignment, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	aln, err := Read(f)
	if err != nil {
		return nil, fmt.Errorf("read alignment %s: %w", path, err)
	}
	return aln, nil
}

func parseHeader(header string) Record {
	fields := strings.Fields(header)
	id := header
	if len(fields) > 0 {
		id = fields[0]
	}
	rec := Record{ID: id}

	slash := strings.LastIndexByte(id, '/')
	if slash < 0 {
		return rec
	}
	dash := strings.IndexByte(id[slash+1:], '-')
	if dash < 0 {
		return rec
	}
	start, err1 := strconv.Atoi(id[slash+1 : slash+1+dash])
	end, err2 := strconv.Atoi(id[slash+1+dash+1:])
	if err1 != nil || err2 != nil {
		return rec
	}
	rec.ID = id[:slash]
	rec.Start = start
	rec.End = end
	return rec
}

// Frequencies counts per-column relative symbol frequencies over the
// comparison alphabet given by alphaMap. Gap and ambiguity symbols are
// skipped entirely, and counts are divided by the total sequence count N
// rather than the per-column count of retained symbols: excluded symbols
// leave missing mass in their column instead of being renormalized away.
// Columns dominated by excluded symbols therefore sum to less than 1.
func (a *Alignment) Frequencies(alphaMap map[byte]int, numSymbols int) *mat.Dense {
	n := float64(len(a.Records))
	freq := mat.NewDense(a.Length, numSymbols, nil)
	for _, rec := range a.Records {
		for i := 0; i < a.Length; i++ {
			c := alphabet.Upper(rec.Seq[i])
			if alphabet.Excluded(c) {
				continue
			}
			s, ok := alphaMap[c]
			if !ok {
				continue
			}
			freq.Set(i, s, freq.At(i, s)+1)
		}
	}
	freq.Scale(1/n, freq)
	return freq
}
