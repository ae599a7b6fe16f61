package match

import (
	"strings"

	"github.com/rotisserie/eris"
)

const (
	winklerPrefixMax   = 4
	winklerScaleFactor = 0.1
)

// JaroWinkler returns the similarity of two strings in [0,1]. Strings equal
// after lower-casing and trimming score 1; an empty input scores 0.
func JaroWinkler(s1, s2 string) float64 {
	if s1 == "" || s2 == "" {
		return 0
	}
	if s1 == s2 {
		return 1
	}

	a := []rune(strings.ToLower(strings.TrimSpace(s1)))
	b := []rune(strings.ToLower(strings.TrimSpace(s2)))
	if string(a) == string(b) {
		return 1
	}
	// Greedy matching depends on argument order; a fixed order keeps the
	// score symmetric.
	if string(a) > string(b) {
		a, b = b, a
	}

	window := max(len(a), len(b))/2 - 1
	if window < 0 {
		return 0
	}

	aMatched := make([]bool, len(a))
	bMatched := make([]bool, len(b))
	matches := 0
	for i := range a {
		lo := max(0, i-window)
		hi := min(i+window+1, len(b))
		for j := lo; j < hi; j++ {
			if bMatched[j] || a[i] != b[j] {
				continue
			}
			aMatched[i] = true
			bMatched[j] = true
			matches++
			break
		}
	}
	if matches == 0 {
		return 0
	}

	transpositions := 0
	k := 0
	for i := range a {
		if !aMatched[i] {
			continue
		}
		for !bMatched[k] {
			k++
		}
		if a[i] != b[k] {
			transpositions++
		}
		k++
	}

	m := float64(matches)
	jaro := (m/float64(len(a)) + m/float64(len(b)) + (m-float64(transpositions)/2)/m) / 3

	prefix := 0
	for prefix < min(winklerPrefixMax, len(a), len(b)) && a[prefix] == b[prefix] {
		prefix++
	}

	return min(1, jaro+float64(prefix)*winklerScaleFactor*(1-jaro))
}

// AverageSimilarity pairs values1[i] with values2[i] and returns the mean
// Jaro-Winkler score as a percentage. Empty inputs score 0.
func AverageSimilarity(values1, values2 []string) (float64, error) {
	scores, err := FieldSimilarities(values1, values2)
	if err != nil {
		return 0, err
	}
	return mean(scores), nil
}

// FieldSimilarities pairs values1[i] with values2[i] and returns each
// Jaro-Winkler score as a percentage.
func FieldSimilarities(values1, values2 []string) ([]float64, error) {
	if len(values1) != len(values2) {
		return nil, eris.Wrapf(ErrInvalidArgument, "match: value arrays must have the same length (%d != %d)",
			len(values1), len(values2))
	}
	scores := make([]float64, len(values1))
	for i := range values1 {
		scores[i] = JaroWinkler(values1[i], values2[i]) * 100
	}
	return scores, nil
}

func mean(scores []float64) float64 {
	if len(scores) == 0 {
		return 0
	}
	var total float64
	for _, s := range scores {
		total += s
	}
	return total / float64(len(scores))
}
