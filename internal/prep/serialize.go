package prep

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"deimmu/internal/datafile"
)

// Render produces the complete solver data file as a string. Section order,
// 1-based indexing and the dense-versus-sparse table conventions are a
// compatibility contract with the solver; the traversal order is fully
// determined by the sorted index sets, so identical inputs render
// byte-identically.
func (p *Preparation) Render() string {
	var b strings.Builder

	b.WriteString(datafile.Banner("Sets I"))
	b.WriteString(datafile.Entry("set", "SIGMA", strings.Join(p.sigma, " ")))
	b.WriteString(datafile.Entry("set", "A", p.coll.SetA()) + "\n")

	b.WriteString(datafile.Banner("Params I"))
	b.WriteString(datafile.Entry("param", "N", datafile.Int(p.wt.Len())))
	b.WriteString(datafile.Entry("param", "eN", datafile.Int(p.cfg.EpitopeLength)))
	b.WriteString(datafile.Entry("param", "k", datafile.Int(p.cfg.NumMutations)))
	b.WriteString(datafile.Entry("param", "pssm_thresh", p.coll.ParamPSSMThresh()) + "\n")
	b.WriteString(datafile.Entry("param", "p", p.coll.ParamP()) + "\n")
	b.WriteString(datafile.Entry("param", "pssm", p.coll.ParamPSSM(p.cfg.EpitopeLength, p.sigma)) + "\n")

	b.WriteString(datafile.Banner("Sets II"))
	b.WriteString(datafile.Entry("set", "Eij", p.formatEijIndices()))
	b.WriteString(datafile.Entry("set", "E", p.formatHiIndices()) + "\n")
	for i := 0; i < p.wt.Len(); i++ {
		b.WriteString(datafile.Entry("set", fmt.Sprintf("WT[%d]", i+1), p.wt.Residue(i)))
	}
	for i := 0; i < p.wt.Len(); i++ {
		b.WriteString(datafile.Entry("set", fmt.Sprintf("M[%d]", i+1), strings.Join(p.Mutations[i], " ")))
	}
	b.WriteString("\n")

	b.WriteString(datafile.Banner("Params II"))
	b.WriteString(datafile.Entry("param", "h: "+strings.Join(p.sigma, " "), p.formatHi()) + "\n")
	b.WriteString(datafile.Entry("param", "eij", p.formatEij()))
	b.WriteString(datafile.End())

	return b.String()
}

// WriteDataFile writes the rendered problem to path. The file handle is
// released on every exit path; write failures surface with the destination.
func (p *Preparation) WriteDataFile(path string) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("write data file %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("write data file %s: %w", path, cerr)
		}
	}()

	w := bufio.NewWriter(f)
	if _, werr := w.WriteString(p.Render()); werr != nil {
		return fmt.Errorf("write data file %s: %w", path, werr)
	}
	if werr := w.Flush(); werr != nil {
		return fmt.Errorf("write data file %s: %w", path, werr)
	}
	return nil
}

func (p *Preparation) formatEijIndices() string {
	parts := make([]string, len(p.EijIndices))
	for n, pair := range p.EijIndices {
		parts[n] = datafile.Int(pair.I+1) + " " + datafile.Int(pair.J+1)
	}
	return strings.Join(parts, "\t")
}

func (p *Preparation) formatHiIndices() string {
	parts := make([]string, len(p.HiIndices))
	for n, pos := range p.HiIndices {
		parts[n] = datafile.Int(pos + 1)
	}
	return strings.Join(parts, "\t")
}

// formatHi renders one dense row per retained position over the full
// comparison alphabet.
func (p *Preparation) formatHi() string {
	var b strings.Builder
	for _, pos := range p.HiIndices {
		cells := make([]string, len(p.sigma))
		for n, aa := range p.sigma {
			cells[n] = datafile.Float(p.Hi[FieldKey{Pos: pos, AA: aa}])
		}
		b.WriteString("\n" + datafile.Int(pos+1) + " " + strings.Join(cells, " "))
	}
	return b.String()
}

// formatEij renders one labeled slice block per retained pair, dense over the
// pair's two allowed-mutation sets.
func (p *Preparation) formatEij() string {
	var b strings.Builder
	b.WriteString("\n")
	for _, pair := range p.EijIndices {
		header := strings.Join(p.Mutations[pair.J], "\t")

		var rows strings.Builder
		rows.WriteString("\n")
		for _, ai := range p.Mutations[pair.I] {
			cells := make([]string, len(p.Mutations[pair.J]))
			for n, aj := range p.Mutations[pair.J] {
				cells[n] = datafile.Float(p.Eij[CouplingKey{I: pair.I, J: pair.J, AI: ai, AJ: aj}])
			}
			rows.WriteString(ai + "\t" + strings.Join(cells, "\t") + "\n")
		}

		label := fmt.Sprintf("[%d,%d,*,*]:", pair.I+1, pair.J+1)
		b.WriteString(datafile.Open(label, header, rows.String()))
	}
	return b.String()
}
