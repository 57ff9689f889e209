// Package prep assembles the de-immunization optimization problem: it
// reconciles the coupling model's native positions, the user's ignore set and
// the injected mutation search space into consistent index sets and signed
// energy tables, and serializes them into the solver's data-file format.
package prep

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/mat"

	"deimmu/internal/alleles"
	"deimmu/internal/alphabet"
	"deimmu/internal/couplings"
	"deimmu/internal/mutation"
	"deimmu/internal/wildtype"
)

// FieldKey addresses a single-position energy: 0-based position and residue.
type FieldKey struct {
	Pos int
	AA  string
}

// PairKey addresses a retained position pair, always with I < J.
type PairKey struct {
	I, J int
}

// CouplingKey addresses a pairwise energy for residues AI at I and AJ at J.
type CouplingKey struct {
	I, J   int
	AI, AJ string
}

// Preparation holds one problem instance. All tables are derived once from
// immutable inputs and never mutated afterwards.
type Preparation struct {
	cfg  Config
	wt   *wildtype.Wildtype
	coll *alleles.Collection

	// Mutations is the resolved allowed-mutation set per wildtype position.
	Mutations [][]string

	// sigma is the gap-free comparison alphabet in model order, fixed during
	// extraction and reused verbatim by serialization.
	sigma []string

	singleFields *mat.Dense

	// HiIndices and EijIndices are the retained 0-based index sets;
	// Hi and Eij the sign-flipped energy tables over them.
	HiIndices  []int
	Hi         map[FieldKey]float64
	EijIndices []PairKey
	Eij        map[CouplingKey]float64
}

// New resolves the mutation search space and validates it against the
// wildtype: every position needs a non-empty set containing the wildtype
// residue, and configured position lists must stay within the sequence.
func New(cfg Config, wt *wildtype.Wildtype, coll *alleles.Collection, policy mutation.Policy) (*Preparation, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	for _, p := range cfg.IgnoredPositions {
		if p >= wt.Len() {
			return nil, fmt.Errorf("ignored position %d outside sequence of length %d", p+1, wt.Len())
		}
	}
	for _, p := range cfg.ExcludedPositions {
		if p >= wt.Len() {
			return nil, fmt.Errorf("excluded position %d outside sequence of length %d", p+1, wt.Len())
		}
	}

	mutations := make([][]string, wt.Len())
	for pos := 0; pos < wt.Len(); pos++ {
		set := policy.Mutations(pos)
		if len(set) == 0 {
			return nil, fmt.Errorf("position %d has an empty mutation set", pos+1)
		}
		found := false
		for _, aa := range set {
			if aa == wt.Residue(pos) {
				found = true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("position %d mutation set %v omits wildtype residue %s",
				pos+1, set, wt.Residue(pos))
		}
		mutations[pos] = set
	}

	return &Preparation{
		cfg:       cfg,
		wt:        wt,
		coll:      coll,
		Mutations: mutations,
	}, nil
}

// Config returns the preparation parameters.
func (p *Preparation) Config() Config { return p.cfg }

// Wildtype returns the sequence under preparation.
func (p *Preparation) Wildtype() *wildtype.Wildtype { return p.wt }

// SetSingleSiteFields installs the fitted fallback field table, indexed by
// alignment column and model symbol index.
func (p *Preparation) SetSingleSiteFields(fields *mat.Dense) {
	p.singleFields = fields
}

// ExtractParameters builds the index sets and signed energy tables from the
// coupling model. Energies are framed as costs, so every stored value is the
// negated model term. A wildtype position missing from the model's column
// mapping aborts the extraction: continuing would silently produce a
// structurally incomplete problem.
func (p *Preparation) ExtractParameters(m *couplings.Model) error {
	p.sigma = alphabet.Symbols(m.Alphabet, false)

	ignored := make(map[int]bool, len(p.cfg.IgnoredPositions))
	for _, pos := range p.cfg.IgnoredPositions {
		ignored[pos] = true
	}

	p.HiIndices = p.HiIndices[:0]
	p.Hi = make(map[FieldKey]float64)

	for _, pos := range p.wt.Upper {
		if ignored[pos] {
			continue
		}
		col, err := p.modelColumn(m, pos)
		if err != nil {
			return err
		}
		p.HiIndices = append(p.HiIndices, pos)
		for _, aa := range p.sigma {
			s, ok := m.SymbolIndex(aa[0])
			if !ok {
				return fmt.Errorf("residue %s missing from model alphabet", aa)
			}
			p.Hi[FieldKey{Pos: pos, AA: aa}] = -m.Field(col, s)
		}
	}

	if p.cfg.UseSingleSiteModel {
		if p.singleFields == nil {
			return fmt.Errorf("single-site model enabled but no fitted fields installed")
		}
		for _, pos := range p.wt.Lower {
			if ignored[pos] {
				continue
			}
			p.HiIndices = append(p.HiIndices, pos)
			col := p.wt.Column(pos)
			for _, aa := range p.sigma {
				s, ok := m.SymbolIndex(aa[0])
				if !ok {
					return fmt.Errorf("residue %s missing from model alphabet", aa)
				}
				p.Hi[FieldKey{Pos: pos, AA: aa}] = -p.singleFields.At(col, s)
			}
		}
	}
	sort.Ints(p.HiIndices)

	// Pairs run over native positions only, smaller index first, and a pair
	// survives as long as at least one endpoint is not ignored.
	p.EijIndices = p.EijIndices[:0]
	for a := 0; a < len(p.wt.Upper); a++ {
		for b := a + 1; b < len(p.wt.Upper); b++ {
			i, j := p.wt.Upper[a], p.wt.Upper[b]
			if i > j {
				i, j = j, i
			}
			if ignored[i] && ignored[j] {
				continue
			}
			p.EijIndices = append(p.EijIndices, PairKey{I: i, J: j})
		}
	}
	sort.Slice(p.EijIndices, func(a, b int) bool {
		if p.EijIndices[a].I != p.EijIndices[b].I {
			return p.EijIndices[a].I < p.EijIndices[b].I
		}
		return p.EijIndices[a].J < p.EijIndices[b].J
	})

	p.Eij = make(map[CouplingKey]float64)
	for _, pair := range p.EijIndices {
		ci, err := p.modelColumn(m, pair.I)
		if err != nil {
			return err
		}
		cj, err := p.modelColumn(m, pair.J)
		if err != nil {
			return err
		}
		for _, ai := range p.Mutations[pair.I] {
			si, ok := m.SymbolIndex(ai[0])
			if !ok {
				return fmt.Errorf("position %d: residue %s missing from model alphabet", pair.I+1, ai)
			}
			for _, aj := range p.Mutations[pair.J] {
				sj, ok := m.SymbolIndex(aj[0])
				if !ok {
					return fmt.Errorf("position %d: residue %s missing from model alphabet", pair.J+1, aj)
				}
				key := CouplingKey{I: pair.I, J: pair.J, AI: ai, AJ: aj}
				p.Eij[key] = -m.Coupling(ci, cj, si, sj)
			}
		}
	}
	return nil
}

func (p *Preparation) modelColumn(m *couplings.Model, pos int) (int, error) {
	target, ok := p.wt.MapToTarget(pos)
	if !ok {
		return 0, fmt.Errorf("position %d has no target numbering: %w", pos+1, couplings.ErrColumnNotMapped)
	}
	col, err := m.Column(target)
	if err != nil {
		return 0, fmt.Errorf("position %d: %w", pos+1, err)
	}
	return col, nil
}
