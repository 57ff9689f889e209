// Package datafile renders the solver's plain-text sets/parameters syntax.
// The byte-level shape of this format is a compatibility contract with the
// external optimization solver, so every helper is deterministic.
package datafile

import "strconv"

const bannerRule = "##################################"

// Entry renders a terminated statement: "<keyword> <name> := <content>;\n".
func Entry(keyword, name, content string) string {
	return keyword + " " + name + " := " + content + ";\n"
}

// Open renders an unterminated statement used for slice blocks nested inside
// a multi-index parameter: "<keyword> <name> := <content>".
func Open(keyword, name, content string) string {
	return keyword + " " + name + " := " + content
}

// Banner renders a section header comment.
func Banner(title string) string {
	return bannerRule + "\n#\n# " + title + "\n#\n" + bannerRule + "\n\n"
}

// End renders the data-file terminator.
func End() string {
	return "\nend;\n\n"
}

// Float renders a numeric value in the shortest round-trip form.
func Float(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// Int renders an integer value.
func Int(v int) string {
	return strconv.Itoa(v)
}
