package textutil

import (
	"regexp"
	"strings"

	"github.com/antzucaro/matchr"
)

var whitespaceRegex = regexp.MustCompile(`\s+`)

// NormalizeName lowercases name and removes all whitespace, listing titles
// on the portal are not consistent about either.
func NormalizeName(name string) string {
	name = strings.ToLower(name)
	name = strings.Trim(name, " \n\t")
	name = whitespaceRegex.ReplaceAllString(name, "")
	return name
}

func SameName(a, b string) bool {
	return NormalizeName(a) == NormalizeName(b)
}

// ClosestName returns the candidate most similar to name (Jaro-Winkler on
// normalized names) and its similarity, or "" and 0 when there are no
// candidates.
func ClosestName(name string, candidates []string) (string, float64) {
	target := NormalizeName(name)

	var mostSimilarity float64
	var mostSimilar string
	for _, c := range candidates {
		similarity := matchr.JaroWinkler(target, NormalizeName(c), false)
		if similarity > mostSimilarity {
			mostSimilarity = similarity
			mostSimilar = c
		}
	}
	return mostSimilar, mostSimilarity
}
