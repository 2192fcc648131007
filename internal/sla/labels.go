package sla

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// NormalizeLabel folds accents, case and inner whitespace so that
// "San Martín" and "SAN MARTIN" compare equal.
func NormalizeLabel(label string) string {
	folder := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(folder, label)
	if err != nil {
		folded = label
	}
	return strings.Join(strings.Fields(strings.ToUpper(folded)), " ")
}
