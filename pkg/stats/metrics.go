package stats

import (
	"sort"

	"github.com/claimsight-ai/platform/pkg/claims"
)

// ProviderDrugMetrics is one provider's aggregate position for one drug,
// the unit of comparison for every peer-outlier detector.
type ProviderDrugMetrics struct {
	Provider string
	Drug     string

	Claims int
	Paid   float64
	Units  float64
	Days   float64

	CostPerClaim float64
	PaidMedian   float64
	PaidPerUnit  float64
	PaidPerDay   float64
}

// BuildProviderDrugMetrics aggregates rows into provider×drug metrics.
// Output order is deterministic: sorted by drug, then provider.
func BuildProviderDrugMetrics(rows []claims.Row) []ProviderDrugMetrics {
	type acc struct {
		claims int
		paid   float64
		units  float64
		days   float64
		paids  []float64
	}

	byKey := make(map[[2]string]*acc)
	for i := range rows {
		row := &rows[i]
		drug := claims.NormalizeDrugName(row.DrugName)
		provider := row.Prescriber()
		if drug == "" || provider == "" {
			continue
		}
		key := [2]string{drug, provider}
		a := byKey[key]
		if a == nil {
			a = &acc{}
			byKey[key] = a
		}
		a.claims++
		a.paid += row.PaidAmount
		a.units += row.Quantity
		a.days += row.DaysSupply
		a.paids = append(a.paids, row.PaidAmount)
	}

	keys := make([][2]string, 0, len(byKey))
	for key := range byKey {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i][0] != keys[j][0] {
			return keys[i][0] < keys[j][0]
		}
		return keys[i][1] < keys[j][1]
	})

	out := make([]ProviderDrugMetrics, 0, len(keys))
	for _, key := range keys {
		a := byKey[key]
		m := ProviderDrugMetrics{
			Drug:     key[0],
			Provider: key[1],
			Claims:   a.claims,
			Paid:     a.paid,
			Units:    a.units,
			Days:     a.days,
		}
		m.CostPerClaim = a.paid / float64(a.claims)
		m.PaidMedian = Summarize(a.paids).Median
		if a.units > 0 {
			m.PaidPerUnit = a.paid / a.units
		}
		if a.days > 0 {
			m.PaidPerDay = a.paid / a.days
		}
		out = append(out, m)
	}
	return out
}

// GroupMetricsByDrug buckets provider×drug metrics into per-drug peer
// groups, preserving the deterministic provider order within each drug.
func GroupMetricsByDrug(metrics []ProviderDrugMetrics) map[string][]ProviderDrugMetrics {
	byDrug := make(map[string][]ProviderDrugMetrics)
	for _, m := range metrics {
		byDrug[m.Drug] = append(byDrug[m.Drug], m)
	}
	return byDrug
}
