package extractor

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Fold lowercases s and strips combining marks ("Beneficiário" -> "beneficiario").
func Fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}
	return strings.ToLower(folded)
}

// foldWithOffsets folds s rune by rune and returns, for every byte of the
// folded string, the byte offset in s of the rune it came from. The slice has
// one extra element holding len(s).
func foldWithOffsets(s string) (string, []int) {
	var b strings.Builder
	b.Grow(len(s))
	offsets := make([]int, 0, len(s)+1)

	for i, r := range s {
		var folded string
		if r < utf8.RuneSelf {
			folded = string(unicode.ToLower(r))
		} else {
			var fb strings.Builder
			for _, d := range norm.NFD.String(string(r)) {
				if unicode.Is(unicode.Mn, d) {
					continue
				}
				fb.WriteRune(unicode.ToLower(d))
			}
			folded = fb.String()
		}
		for j := 0; j < len(folded); j++ {
			offsets = append(offsets, i)
		}
		b.WriteString(folded)
	}
	offsets = append(offsets, len(s))
	return b.String(), offsets
}
