package domain

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// MatchKey identifies a (title, artist) pair independent of case, accents
// and whitespace.
type MatchKey string

// NewMatchKey builds the key for a title and artist.
func NewMatchKey(title, artist string) MatchKey {
	return MatchKey(foldText(title) + "\x00" + foldText(artist))
}

func foldText(s string) string {
	// transformers and casers are stateful, build them per call
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	stripped, _, err := transform.String(t, s)
	if err != nil {
		stripped = s
	}
	return strings.Join(strings.Fields(cases.Fold().String(stripped)), " ")
}
