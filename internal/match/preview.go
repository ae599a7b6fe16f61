package match

import (
	"sort"
	"strings"

	"github.com/adrg/strutil"
	"github.com/adrg/strutil/metrics"
)

// DefaultPreviewRows is the sample size used when the caller asks for none.
const DefaultPreviewRows = 3

// DefaultPairScore is the minimum header similarity for a suggested pair.
const DefaultPairScore = 0.8

// Preview is a lightweight description of a record set.
type Preview struct {
	TotalRows  int      `json:"totalRows"`
	Columns    []string `json:"columns"`
	SampleRows []Record `json:"sampleData"`
}

// PreviewFirstRows returns the row count, columns and the first n records.
func PreviewFirstRows(rs *RecordSet, n int) Preview {
	if n <= 0 {
		n = DefaultPreviewRows
	}
	p := Preview{TotalRows: rs.Len(), Columns: rs.Columns(), SampleRows: []Record{}}
	if p.Columns == nil {
		p.Columns = []string{}
	}
	if rs.Len() > 0 {
		p.SampleRows = append(p.SampleRows, rs.Records[:min(n, rs.Len())]...)
	}
	return p
}

// ColumnPair is a suggested master/secondary column pairing.
type ColumnPair struct {
	Master    string  `json:"master"`
	Secondary string  `json:"secondary"`
	Score     float64 `json:"score"`
}

var headerMetric = func() *metrics.JaroWinkler {
	jw := metrics.NewJaroWinkler()
	jw.CaseSensitive = false
	return jw
}()

func headerKey(name string) string {
	name = strings.NewReplacer("_", " ", "-", " ", ".", " ").Replace(strings.ToLower(foldAccents(name)))
	return strings.Join(strings.Fields(name), " ")
}

// SuggestPairs proposes which secondary column to compare with each master
// column, by header-name similarity. Each secondary column is used at most
// once; the strongest pairs are assigned first. Pairs scoring below minScore
// are dropped. The result follows master column order.
func SuggestPairs(masterColumns, secondaryColumns []string, minScore float64) []ColumnPair {
	if minScore <= 0 {
		minScore = DefaultPairScore
	}

	var all []ColumnPair
	for _, mc := range masterColumns {
		for _, sc := range secondaryColumns {
			s := strutil.Similarity(headerKey(mc), headerKey(sc), headerMetric)
			if s >= minScore {
				all = append(all, ColumnPair{Master: mc, Secondary: sc, Score: s})
			}
		}
	}
	sort.SliceStable(all, func(i, j int) bool { return all[i].Score > all[j].Score })

	usedMaster := make(map[string]bool)
	usedSecondary := make(map[string]bool)
	chosen := make(map[string]ColumnPair)
	for _, p := range all {
		if usedMaster[p.Master] || usedSecondary[p.Secondary] {
			continue
		}
		usedMaster[p.Master] = true
		usedSecondary[p.Secondary] = true
		chosen[p.Master] = p
	}

	out := make([]ColumnPair, 0, len(chosen))
	for _, mc := range masterColumns {
		if p, ok := chosen[mc]; ok {
			out = append(out, p)
			delete(chosen, mc)
		}
	}
	return out
}
