package match

import "strings"

// keySeparator joins per-column values inside a hash key. Control characters
// do not occur in spreadsheet text, so column boundaries cannot collide.
const keySeparator = "\x1e\x1f\x1e"

// HashKey canonicalizes the selected columns of a record into one comparable
// string. Blank cells contribute "". It never fails; a record whose selected
// columns are all blank yields a key of separators only.
func HashKey(r Record, columns []string, caseSensitive, trimWhitespace bool) string {
	var b strings.Builder
	for i, col := range columns {
		if i > 0 {
			b.WriteString(keySeparator)
		}
		v := r.Get(col).String()
		if !caseSensitive {
			v = strings.ToLower(v)
		}
		if trimWhitespace {
			v = strings.TrimSpace(v)
		}
		b.WriteString(v)
	}
	return b.String()
}
