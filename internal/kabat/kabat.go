// Package kabat numbers an antibody variable domain by querying the Abysis
// abnum web service. It is a standalone lookup tool with no dependency on
// problem preparation.
package kabat

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"unicode"
)

// DefaultBaseURL is the abnum CGI endpoint.
const DefaultBaseURL = "http://www.bioinf.org.uk/cgi-bin/abnum/abnum.pl"

// Scheme identifiers accepted by the service.
const (
	SchemeKabat   = "-k"
	SchemeChothia = "-c"
)

// Entry is one numbered position: the scheme identifier (e.g. H100A) and the
// residue placed there, "-" when the scheme position is not occupied.
type Entry struct {
	Identifier string
	Residue    string
}

// Key addresses a scheme position by number and optional insertion letter.
type Key struct {
	Number int
	Letter string
}

// Numbering is a parsed service response.
type Numbering struct {
	Entries []Entry
	Raw     string

	index map[Key]int
}

// Lookup numbers sequence against the given scheme. The client may be nil,
// in which case http.DefaultClient is used.
func Lookup(ctx context.Context, client *http.Client, baseURL, sequence, scheme string) (*Numbering, error) {
	if client == nil {
		client = http.DefaultClient
	}
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if scheme == "" {
		scheme = SchemeKabat
	}

	query := url.Values{}
	query.Set("plain", "1")
	query.Set("aaseq", sequence)
	query.Set("scheme", scheme)
	target := baseURL + "?" + query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("numbering request %s: %w", baseURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("numbering request %s: unexpected status %s", baseURL, resp.Status)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("numbering request %s: %w", baseURL, err)
	}
	return Parse(string(body))
}

// Parse reads the plain-text service output: one "identifier residue" pair
// per line, e.g. "H26 G". Lines that do not look like numbering entries are
// skipped, which tolerates surrounding markup.
func Parse(raw string) (*Numbering, error) {
	n := &Numbering{Raw: raw, index: make(map[Key]int)}

	residueNum := 0
	for _, line := range strings.Split(raw, "\n") {
		fields := strings.Fields(line)
		if len(fields) != 2 {
			continue
		}
		identifier, residue := fields[0], fields[1]
		key, ok := parseIdentifier(identifier)
		if !ok {
			continue
		}
		n.Entries = append(n.Entries, Entry{Identifier: identifier, Residue: residue})
		if residue != "-" {
			residueNum++
			n.index[key] = residueNum
		}
	}
	if len(n.Entries) == 0 {
		return nil, fmt.Errorf("no numbering entries in response; sequence may not be a variable antibody domain")
	}
	return n, nil
}

// parseIdentifier splits e.g. "H100A" into Key{100, "A"}; the leading chain
// letter is dropped.
func parseIdentifier(id string) (Key, bool) {
	if len(id) < 2 {
		return Key{}, false
	}
	chain := rune(id[0])
	if chain != 'H' && chain != 'L' {
		return Key{}, false
	}
	rest := id[1:]

	letter := ""
	if last := rune(rest[len(rest)-1]); unicode.IsLetter(last) {
		letter = string(last)
		rest = rest[:len(rest)-1]
	}
	number, err := strconv.Atoi(rest)
	if err != nil {
		return Key{}, false
	}
	return Key{Number: number, Letter: letter}, true
}

// ResidueIndex maps a scheme position to the 1-based residue number of the
// submitted sequence. The second return is false for unoccupied positions.
func (n *Numbering) ResidueIndex(number int, letter string) (int, bool) {
	idx, ok := n.index[Key{Number: number, Letter: letter}]
	return idx, ok
}

// WriteReport writes the numbering with a comment header identifying the
// sequence.
func (n *Numbering) WriteReport(w io.Writer, id, description string) error {
	var b strings.Builder
	b.WriteString("# Kabat numbering\n")
	b.WriteString("# id: " + id + "\n")
	b.WriteString("# description: " + description + "\n")
	for _, entry := range n.Entries {
		b.WriteString(entry.Identifier + " " + entry.Residue + "\n")
	}
	_, err := io.WriteString(w, b.String())
	return err
}
