// Package alleles carries the immunogenicity collaborator's precomputed data:
// per-allele PSSM thresholds, population probabilities and per-position scores.
// The core never computes epitope scores itself; it loads this table and asks
// the collection to render its own sets/params blocks for the data file.
package alleles

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"deimmu/internal/datafile"
)

// Allele is one MHC allele with its immunogenicity parameters. PSSM maps a
// residue to its score at each position inside an epitope window.
type Allele struct {
	Name        string               `json:"name"`
	PSSMThresh  float64              `json:"pssm_thresh"`
	Probability float64              `json:"probability"`
	PSSM        map[string][]float64 `json:"pssm"`
}

// Collection is the ordered set of alleles considered by the optimization.
type Collection struct {
	Alleles []Allele `json:"alleles"`
}

// Load reads an allele collection from JSON.
func Load(path string) (*Collection, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var coll Collection
	if err := json.Unmarshal(data, &coll); err != nil {
		return nil, fmt.Errorf("decode allele collection %s: %w", path, err)
	}
	if len(coll.Alleles) == 0 {
		return nil, fmt.Errorf("allele collection %s is empty", path)
	}
	return &coll, nil
}

// Validate checks that every allele scores every residue of sigma at every
// position of an epitope window.
func (c *Collection) Validate(epitopeLength int, sigma []string) error {
	if epitopeLength <= 0 {
		return errors.New("epitope length must be positive")
	}
	for _, allele := range c.Alleles {
		if allele.Name == "" {
			return errors.New("allele name is required")
		}
		for _, aa := range sigma {
			scores, ok := allele.PSSM[aa]
			if !ok {
				return fmt.Errorf("allele %s: no scores for residue %s", allele.Name, aa)
			}
			if len(scores) != epitopeLength {
				return fmt.Errorf("allele %s residue %s: %d scores, epitope length is %d",
					allele.Name, aa, len(scores), epitopeLength)
			}
		}
	}
	return nil
}

// SetA renders the allele name set content.
func (c *Collection) SetA() string {
	names := make([]string, len(c.Alleles))
	for i, allele := range c.Alleles {
		names[i] = allele.Name
	}
	return strings.Join(names, " ")
}

// ParamPSSMThresh renders per-allele threshold rows.
func (c *Collection) ParamPSSMThresh() string {
	var b strings.Builder
	for _, allele := range c.Alleles {
		b.WriteString("\n" + allele.Name + " " + datafile.Float(allele.PSSMThresh))
	}
	return b.String()
}

// ParamP renders per-allele probability rows.
func (c *Collection) ParamP() string {
	var b strings.Builder
	for _, allele := range c.Alleles {
		b.WriteString("\n" + allele.Name + " " + datafile.Float(allele.Probability))
	}
	return b.String()
}

// ParamPSSM renders one dense slice block per allele: rows are residues in
// sigma order, columns the 1-based positions inside an epitope window.
func (c *Collection) ParamPSSM(epitopeLength int, sigma []string) string {
	header := make([]string, epitopeLength)
	for j := 0; j < epitopeLength; j++ {
		header[j] = datafile.Int(j + 1)
	}

	var b strings.Builder
	b.WriteString("\n")
	for _, allele := range c.Alleles {
		var rows strings.Builder
		rows.WriteString("\n")
		for _, aa := range sigma {
			scores := allele.PSSM[aa]
			cells := make([]string, epitopeLength)
			for j := 0; j < epitopeLength; j++ {
				cells[j] = datafile.Float(scores[j])
			}
			rows.WriteString(aa + "\t" + strings.Join(cells, "\t") + "\n")
		}
		b.WriteString(datafile.Open("["+allele.Name+",*,*]:", strings.Join(header, "\t"), rows.String()))
	}
	return b.String()
}
