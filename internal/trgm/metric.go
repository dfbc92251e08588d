package trgm

import (
	"fmt"
	"strings"

	"github.com/adrg/strutil"
	"github.com/adrg/strutil/metrics"
)

// Func scores two strings in [0,1].
type Func func(a, b string) float64

const (
	MetricTrigram      = "trigram"
	MetricJaccard      = "jaccard"
	MetricSorensenDice = "sorensen-dice"
	MetricJaroWinkler  = "jaro-winkler"
	MetricLevenshtein  = "levenshtein"
)

// Metric resolves a configured metric name. Only "trigram" matches postgres
// exactly; the others trade that for different fuzziness on the SQLite backend.
func Metric(name string) (Func, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", MetricTrigram:
		return Similarity, nil
	case MetricJaccard:
		m := metrics.NewJaccard()
		m.CaseSensitive = false
		m.NgramSize = 3
		return wrap(m), nil
	case MetricSorensenDice:
		m := metrics.NewSorensenDice()
		m.CaseSensitive = false
		return wrap(m), nil
	case MetricJaroWinkler:
		m := metrics.NewJaroWinkler()
		m.CaseSensitive = false
		return wrap(m), nil
	case MetricLevenshtein:
		m := metrics.NewLevenshtein()
		m.CaseSensitive = false
		return wrap(m), nil
	default:
		return nil, fmt.Errorf("unsupported similarity metric: %s", name)
	}
}

func wrap(m strutil.StringMetric) Func {
	return func(a, b string) float64 {
		if a == "" || b == "" {
			return 0
		}
		return strutil.Similarity(a, b, m)
	}
}
