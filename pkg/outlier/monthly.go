package outlier

import (
	"fmt"
	"math"

	"github.com/claimsight-ai/platform/pkg/claims"
	"github.com/claimsight-ai/platform/pkg/rules"
	"github.com/claimsight-ai/platform/pkg/stats"
)

// MonthlyOutliers flags months whose paid total deviates from the
// cohort's own monthly history by a robust z-score strictly above the
// threshold. Cohorts with fewer observed months than minMonths are
// skipped, as are cohorts whose history has MAD 0.
func MonthlyOutliers(rollup stats.MonthlyRollup, source claims.Source, minMonths int, threshold float64) []rules.Finding {
	var findings []rules.Finding
	for _, cohort := range stats.SortedKeys(rollup) {
		series := rollup[cohort]
		if len(series) < minMonths {
			continue
		}

		months := stats.SortedKeys(series)
		values := make([]float64, len(months))
		for i, month := range months {
			values[i] = series[month]
		}
		summary := stats.Summarize(values)

		for i, month := range months {
			z, ok := stats.ZMAD(values[i], summary)
			if !ok || math.Abs(z) <= threshold {
				continue
			}
			findings = append(findings, rules.Finding{
				Stage:    rules.StageAnalytics,
				Rule:     rules.RuleMonthlyZScore,
				Source:   source,
				RowIndex: -1,
				Cohort:   cohort + "|" + month,
				Description: fmt.Sprintf(
					"paid total %.2f for cohort %s in %s deviates from its monthly median %.2f (|zMAD|=%.2f)",
					values[i], cohort, month, summary.Median, math.Abs(z)),
			})
		}
	}
	return findings
}
