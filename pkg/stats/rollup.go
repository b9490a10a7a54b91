package stats

import (
	"github.com/claimsight-ai/platform/pkg/claims"
)

// MonthlyRollup maps cohort key -> "YYYY-MM" -> paid total.
type MonthlyRollup map[string]map[string]float64

// MonthlyPaid sums paid amounts per cohort per calendar month. Rows with
// no usable date or an empty cohort key are skipped.
func MonthlyPaid(rows []claims.Row, keyFn func(*claims.Row) string) MonthlyRollup {
	rollup := make(MonthlyRollup)
	for i := range rows {
		row := &rows[i]
		key := keyFn(&rows[i])
		if key == "" {
			continue
		}
		date := row.PrimaryDate()
		if date.IsZero() {
			continue
		}
		month := date.Format("2006-01")
		if rollup[key] == nil {
			rollup[key] = make(map[string]float64)
		}
		rollup[key][month] += row.PaidAmount
	}
	return rollup
}

// ProviderDrugKey is the cohort key function for provider×drug rollups.
func ProviderDrugKey(row *claims.Row) string {
	drug := claims.NormalizeDrugName(row.DrugName)
	provider := row.Prescriber()
	if drug == "" || provider == "" {
		return ""
	}
	return provider + "|" + drug
}

// DrugKey is the cohort key function for national per-drug rollups.
func DrugKey(row *claims.Row) string {
	return claims.NormalizeDrugName(row.DrugName)
}
