package outlier

import (
	"fmt"
	"math"

	"github.com/claimsight-ai/platform/pkg/claims"
	"github.com/claimsight-ai/platform/pkg/rules"
	"github.com/claimsight-ai/platform/pkg/stats"
)

// RevisionOptions sets the floor a month-over-revision delta must clear
// on both scales before it is flagged.
type RevisionOptions struct {
	MinAbsoluteDelta float64
	MinPercentDelta  float64
}

// CompareRevisions diffs the monthly paid rollups of the current vendor
// file against an earlier revision and flags cohort-months whose paid
// total moved by more than both thresholds. Months present in only one
// revision are compared against zero.
func CompareRevisions(current, previous stats.MonthlyRollup, source claims.Source, opts RevisionOptions) []rules.Finding {
	var findings []rules.Finding
	for _, cohort := range unionKeys(current, previous) {
		curSeries := current[cohort]
		prevSeries := previous[cohort]

		for _, month := range unionMonths(curSeries, prevSeries) {
			cur := curSeries[month]
			prev := prevSeries[month]
			delta := cur - prev
			if math.Abs(delta) < opts.MinAbsoluteDelta {
				continue
			}
			base := math.Abs(prev)
			if base > 0 && math.Abs(delta)/base*100 < opts.MinPercentDelta {
				continue
			}
			findings = append(findings, rules.Finding{
				Stage:    rules.StageAnalytics,
				Rule:     rules.RuleVendorRevisionDelta,
				Source:   source,
				RowIndex: -1,
				Cohort:   cohort + "|" + month,
				Description: fmt.Sprintf(
					"paid total for cohort %s in %s moved from %.2f to %.2f between vendor revisions (delta %+.2f)",
					cohort, month, prev, cur, delta),
			})
		}
	}
	return findings
}

func unionKeys(a, b stats.MonthlyRollup) []string {
	merged := make(map[string][]float64, len(a)+len(b))
	for k := range a {
		merged[k] = nil
	}
	for k := range b {
		merged[k] = nil
	}
	return stats.SortedKeys(merged)
}

func unionMonths(a, b map[string]float64) []string {
	merged := make(map[string]float64, len(a)+len(b))
	for k := range a {
		merged[k] = 0
	}
	for k := range b {
		merged[k] = 0
	}
	return stats.SortedKeys(merged)
}
