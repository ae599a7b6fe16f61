package match

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

type rewrite struct {
	re   *regexp.Regexp
	repl string
}

// metaphoneRules are applied in order to the upper-cased input.
var metaphoneRules = []rewrite{
	{regexp.MustCompile(`^KN`), "N"},
	{regexp.MustCompile(`^GN`), "N"},
	{regexp.MustCompile(`^PN`), "N"},
	{regexp.MustCompile(`^WR`), "R"},
	{regexp.MustCompile(`^WH`), "W"},
	{regexp.MustCompile(`X`), "K"},
	{regexp.MustCompile(`Q`), "K"},
	{regexp.MustCompile(`C([EIY])`), "S$1"},
	{regexp.MustCompile(`CH`), "X"},
	{regexp.MustCompile(`C`), "K"},
	{regexp.MustCompile(`DG[EIY]`), "J"},
	{regexp.MustCompile(`PH`), "F"},
	{regexp.MustCompile(`H([^AEIOU])`), "$1"},
	{regexp.MustCompile(`G([^EY])`), "K$1"},
	{regexp.MustCompile(`S([IO])`), "X$1"},
	{regexp.MustCompile(`SH`), "X"},
	{regexp.MustCompile(`T([IO])`), "X$1"},
	{regexp.MustCompile(`TH`), "0"},
	{regexp.MustCompile(`V`), "F"},
	{regexp.MustCompile(`Z`), "S"},
}

//                     ABCDEFGHIJKLMNOPQRSTUVWXYZ
const soundexClasses = "01230120022455012623010202"

// foldAccents strips diacritics. Chained transformers hold state, so each
// call builds its own.
func foldAccents(s string) string {
	for _, r := range s {
		if r > unicode.MaxASCII {
			t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
			if folded, _, err := transform.String(t, s); err == nil {
				return folded
			}
			return s
		}
	}
	return s
}

// phoneticPrep trims, strips diacritics and upper-cases s.
func phoneticPrep(s string) string {
	return strings.ToUpper(foldAccents(strings.TrimSpace(s)))
}

// Metaphone returns a simplified English Metaphone code for s. Characters
// outside the rule set, including spaces, pass through unchanged.
func Metaphone(s string) string {
	cur := phoneticPrep(s)
	if cur == "" {
		return ""
	}
	for _, r := range metaphoneRules {
		cur = r.re.ReplaceAllString(cur, r.repl)
	}

	var b strings.Builder
	var prev rune
	for i, c := range []rune(cur) {
		if c != prev && (i == 0 || !strings.ContainsRune("AEIOU", c)) {
			b.WriteRune(c)
		}
		prev = c
	}
	return b.String()
}

func soundexClass(r rune) byte {
	if r >= 'A' && r <= 'Z' {
		if c := soundexClasses[r-'A']; c != '0' {
			return c
		}
	}
	return 0
}

// Soundex returns the four character Soundex code for s: the first character
// followed by three class digits, zero padded. Letters without a class are
// skipped and do not separate repeated classes. The empty string yields ""
// and whitespace-only input yields "0000".
func Soundex(s string) string {
	if s == "" {
		return ""
	}
	rs := []rune(phoneticPrep(s))
	if len(rs) == 0 {
		return "0000"
	}

	code := make([]byte, 0, 4)
	code = append(code, string(rs[0])...)
	prev := soundexClass(rs[0])
	digits := 0
	for _, r := range rs[1:] {
		if digits == 3 {
			break
		}
		c := soundexClass(r)
		if c == 0 || c == prev {
			continue
		}
		code = append(code, c)
		prev = c
		digits++
	}
	for ; digits < 3; digits++ {
		code = append(code, '0')
	}
	return string(code)
}

// PhoneticKey buckets a record by the sound of its selected columns. The raw
// cell text is space-joined before encoding.
func PhoneticKey(r Record, columns []string) string {
	joined := strings.Join(r.Values(columns), " ")
	return Metaphone(joined) + "|" + Soundex(joined)
}
