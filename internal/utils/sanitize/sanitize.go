// Package sanitize turns user supplied note text into the plain text the
// repositories store.
package sanitize

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// plain drops every tag and attribute. A bluemonday.Policy is safe for
// concurrent use only while nobody mutates it, so it is never touched after
// construction.
var plain = func() *bluemonday.Policy {
	p := bluemonday.StrictPolicy()
	p.AddSpaceWhenStrippingTag(true)
	return p
}()

// strip removes markup and decodes the entities bluemonday leaves behind,
// so "a &amp; b" and "a & b" store the same text.
func strip(s string) string {
	s = html.UnescapeString(plain.Sanitize(s))
	return strings.ReplaceAll(s, "\u00a0", " ")
}

// Title returns s as a single line of plain text.
//
//   - "<b>Groceries</b>" -> "Groceries"
//   - "Meeting\nnotes" -> "Meeting notes"
func Title(s string) string {
	return strings.Join(strings.Fields(strip(s)), " ")
}

// Content returns s as plain text. Line breaks survive; runs of blanks
// inside a line collapse to one space and blank lines at either end are
// dropped.
//
//   - "<p>Hello</p>   <p>World</p>" -> "Hello World"
//   - "• Milk\n•   Bread" -> "• Milk\n• Bread"
func Content(s string) string {
	lines := strings.Split(strip(s), "\n")
	for i, line := range lines {
		lines[i] = strings.Join(strings.Fields(line), " ")
	}
	return strings.Trim(strings.Join(lines, "\n"), "\n")
}
