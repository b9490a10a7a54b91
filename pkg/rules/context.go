package rules

import (
	"github.com/claimsight-ai/platform/pkg/claims"
	"github.com/claimsight-ai/platform/pkg/stats"
)

// Context is the read-only evaluation state shared by every row rule for
// one dataset: the dataset itself, the claim-ID multiset, peer charge
// medians, the reference tables and the configured thresholds.
type Context struct {
	Dataset *claims.Dataset
	Ref     *Reference
	Limits  Thresholds

	claimIDCounts      map[string]int
	chargeMedianByDrug map[string]float64
	chargeMedianAll    float64
}

// NewContext runs the pre-passes the row rules depend on. The dataset is
// never mutated afterwards.
func NewContext(ds *claims.Dataset, ref *Reference, limits Thresholds) *Context {
	ctx := &Context{
		Dataset:       ds,
		Ref:           ref,
		Limits:        limits,
		claimIDCounts: make(map[string]int, len(ds.Rows)),
	}

	for i := range ds.Rows {
		if id := ds.Rows[i].ClaimID; id != "" {
			ctx.claimIDCounts[id]++
		}
	}

	if ds.Has(claims.ColChargeAmount) {
		charges := make([]float64, 0, len(ds.Rows))
		byDrug := stats.GroupValues(ds.Rows,
			func(r *claims.Row) string { return claims.NormalizeDrugName(r.DrugName) },
			func(r *claims.Row) (float64, bool) { return r.ChargeAmount, r.ChargeAmount > 0 })
		for i := range ds.Rows {
			if ds.Rows[i].ChargeAmount > 0 {
				charges = append(charges, ds.Rows[i].ChargeAmount)
			}
		}
		ctx.chargeMedianAll = stats.Summarize(charges).Median
		ctx.chargeMedianByDrug = make(map[string]float64, len(byDrug))
		for drug, values := range byDrug {
			ctx.chargeMedianByDrug[drug] = stats.Summarize(values).Median
		}
	}

	return ctx
}

// ClaimIDCount reports how many rows in the dataset share the claim ID.
func (c *Context) ClaimIDCount(id string) int {
	return c.claimIDCounts[id]
}

// PeerMedianCharge returns the charge median of the row's drug peer
// group, falling back to the dataset-wide median when the dataset has no
// usable drug grouping.
func (c *Context) PeerMedianCharge(row *claims.Row) float64 {
	if drug := claims.NormalizeDrugName(row.DrugName); drug != "" {
		if median, ok := c.chargeMedianByDrug[drug]; ok {
			return median
		}
	}
	return c.chargeMedianAll
}
