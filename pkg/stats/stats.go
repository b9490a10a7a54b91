// Package stats computes the peer-group aggregates the outlier detectors
// read: medians, MAD, quartiles and IQR fences, all via exact sort.
package stats

import (
	"math"
	"sort"

	"github.com/claimsight-ai/platform/pkg/claims"
)

// madScale makes the MAD consistent with the standard deviation under
// normality.
const madScale = 1.4826

// zMADConstant rescales deviations from the median into z-score units.
const zMADConstant = 0.6745

// Summary holds the robust aggregates for one cohort.
type Summary struct {
	Count  int
	Mean   float64
	Median float64
	MAD    float64
	Q1     float64
	Q3     float64
}

// Fence is an outlier boundary derived from the interquartile range.
type Fence struct {
	Lower float64
	Upper float64
}

// Summarize computes the cohort summary for a set of values. The input
// slice is not modified.
func Summarize(values []float64) Summary {
	n := len(values)
	if n == 0 {
		return Summary{}
	}

	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	var sum float64
	for _, v := range sorted {
		sum += v
	}

	median := medianSorted(sorted)

	deviations := make([]float64, n)
	for i, v := range sorted {
		deviations[i] = math.Abs(v - median)
	}
	sort.Float64s(deviations)

	q1, q3 := quartilesSorted(sorted)

	return Summary{
		Count:  n,
		Mean:   sum / float64(n),
		Median: median,
		MAD:    madScale * medianSorted(deviations),
		Q1:     q1,
		Q3:     q3,
	}
}

// IQRFence returns [Q1 - m*IQR, Q3 + m*IQR].
func (s Summary) IQRFence(multiplier float64) Fence {
	iqr := s.Q3 - s.Q1
	return Fence{
		Lower: s.Q1 - multiplier*iqr,
		Upper: s.Q3 + multiplier*iqr,
	}
}

// Outside reports whether v falls outside the fence.
func (f Fence) Outside(v float64) bool {
	return v < f.Lower || v > f.Upper
}

// ZMAD returns the robust z-score of v against the cohort. The second
// return is false when MAD is zero, in which case no z-based outlier
// call is possible for the cohort.
func ZMAD(v float64, s Summary) (float64, bool) {
	if s.MAD == 0 {
		return 0, false
	}
	return zMADConstant * (v - s.Median) / s.MAD, true
}

func medianSorted(sorted []float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

// quartilesSorted uses linear interpolation between order statistics.
func quartilesSorted(sorted []float64) (float64, float64) {
	return quantileSorted(sorted, 0.25), quantileSorted(sorted, 0.75)
}

func quantileSorted(sorted []float64, q float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n == 1 {
		return sorted[0]
	}
	pos := q * float64(n-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	frac := pos - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}

// GroupValues buckets one metric across rows by cohort key. Rows for
// which valueFn reports false are skipped. Returned keys are unordered;
// callers that need determinism must sort them.
func GroupValues(rows []claims.Row, keyFn func(*claims.Row) string, valueFn func(*claims.Row) (float64, bool)) map[string][]float64 {
	groups := make(map[string][]float64)
	for i := range rows {
		key := keyFn(&rows[i])
		if key == "" {
			continue
		}
		if v, ok := valueFn(&rows[i]); ok {
			groups[key] = append(groups[key], v)
		}
	}
	return groups
}

// SummarizeGroups computes a Summary per cohort key.
func SummarizeGroups(groups map[string][]float64) map[string]Summary {
	out := make(map[string]Summary, len(groups))
	for key, values := range groups {
		out[key] = Summarize(values)
	}
	return out
}

// SortedKeys returns the cohort keys in lexical order so detector output
// is deterministic run to run.
func SortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
