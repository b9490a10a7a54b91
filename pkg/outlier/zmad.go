// Package outlier holds the cohort-level detectors of the analytics
// stage. Every detector consumes pre-computed cohort statistics and
// emits findings in a deterministic order.
package outlier

import (
	"fmt"
	"math"
	"sort"

	"github.com/claimsight-ai/platform/pkg/claims"
	"github.com/claimsight-ai/platform/pkg/common/logger"
	"github.com/claimsight-ai/platform/pkg/rules"
	"github.com/claimsight-ai/platform/pkg/stats"
)

// peerMetrics are the provider×drug metrics compared against drug peers,
// in declared order.
var peerMetrics = []struct {
	name  string
	value func(stats.ProviderDrugMetrics) float64
}{
	{"cost_per_claim", func(m stats.ProviderDrugMetrics) float64 { return m.CostPerClaim }},
	{"paid_per_unit", func(m stats.ProviderDrugMetrics) float64 { return m.PaidPerUnit }},
	{"paid_per_day", func(m stats.ProviderDrugMetrics) float64 { return m.PaidPerDay }},
}

// PeerZMAD flags provider×drug metrics whose robust z-score against the
// drug's peer group strictly exceeds the threshold. Cohorts smaller than
// minCohort are excluded; so are cohorts with MAD 0, where no robust
// z-score is defined.
func PeerZMAD(metrics []stats.ProviderDrugMetrics, source claims.Source, minCohort int, threshold float64) []rules.Finding {
	byDrug := stats.GroupMetricsByDrug(metrics)

	var findings []rules.Finding
	for _, drug := range stats.SortedKeys(byDrug) {
		peers := byDrug[drug]
		if len(peers) < minCohort {
			logger.Log.WithFields(map[string]interface{}{
				"drug":  drug,
				"count": len(peers),
			}).Debug("cohort below minimum size, excluded from zMAD rules")
			continue
		}

		for _, metric := range peerMetrics {
			values := make([]float64, len(peers))
			for i, peer := range peers {
				values[i] = metric.value(peer)
			}
			summary := stats.Summarize(values)

			for i, peer := range peers {
				z, ok := stats.ZMAD(values[i], summary)
				if !ok || math.Abs(z) <= threshold {
					continue
				}
				findings = append(findings, rules.Finding{
					Stage:    rules.StageAnalytics,
					Rule:     rules.RulePeerZMADOutlier,
					Source:   source,
					RowIndex: -1,
					Cohort:   peer.Provider + "|" + drug + "|" + metric.name,
					Description: fmt.Sprintf(
						"provider %s %s %.2f is far from the peer median %.2f for drug '%s' (|zMAD|=%.2f)",
						peer.Provider, metric.name, values[i], summary.Median, drug, math.Abs(z)),
				})
			}
		}
	}
	return findings
}

// PeerIQR covers the cohorts PeerZMAD cannot: when more than half the
// peers share one value the MAD degenerates to zero and no robust
// z-score exists, so values outside the cohort's IQR fence are flagged
// instead. Cohorts with a nonzero MAD are left to PeerZMAD.
func PeerIQR(metrics []stats.ProviderDrugMetrics, source claims.Source, minCohort int, iqrMultiplier float64) []rules.Finding {
	byDrug := stats.GroupMetricsByDrug(metrics)

	var findings []rules.Finding
	for _, drug := range stats.SortedKeys(byDrug) {
		peers := byDrug[drug]
		if len(peers) < minCohort {
			continue
		}

		for _, metric := range peerMetrics {
			values := make([]float64, len(peers))
			for i, peer := range peers {
				values[i] = metric.value(peer)
			}
			summary := stats.Summarize(values)
			if summary.MAD != 0 {
				continue
			}
			fence := summary.IQRFence(iqrMultiplier)

			for i, peer := range peers {
				if !fence.Outside(values[i]) {
					continue
				}
				findings = append(findings, rules.Finding{
					Stage:    rules.StageAnalytics,
					Rule:     rules.RulePeerIQROutlier,
					Source:   source,
					RowIndex: -1,
					Cohort:   peer.Provider + "|" + drug + "|" + metric.name,
					Description: fmt.Sprintf(
						"provider %s %s %.2f is outside the peer IQR fence [%.2f, %.2f] for drug '%s'",
						peer.Provider, metric.name, values[i], fence.Lower, fence.Upper, drug),
				})
			}
		}
	}
	return findings
}

// AbnormalQuantity flags rows whose dispensed quantity lies outside the
// product's IQR fence. Rows with no recorded quantity are ignored.
func AbnormalQuantity(ds *claims.Dataset, iqrMultiplier float64) []rules.Finding {
	byDrug := stats.GroupValues(ds.Rows,
		func(r *claims.Row) string { return claims.NormalizeDrugName(r.DrugName) },
		func(r *claims.Row) (float64, bool) { return r.Quantity, r.Quantity > 0 })
	fences := make(map[string]stats.Fence, len(byDrug))
	for drug, values := range byDrug {
		fences[drug] = stats.Summarize(values).IQRFence(iqrMultiplier)
	}

	var findings []rules.Finding
	for i := range ds.Rows {
		row := &ds.Rows[i]
		if row.Quantity <= 0 {
			continue
		}
		drug := claims.NormalizeDrugName(row.DrugName)
		fence, ok := fences[drug]
		if !ok || !fence.Outside(row.Quantity) {
			continue
		}
		findings = append(findings, rules.Finding{
			Stage:    rules.StageAnalytics,
			Rule:     rules.RuleAbnormalQuantity,
			Source:   ds.Source,
			RowIndex: i,
			Description: fmt.Sprintf(
				"Quantity %.1f for drug '%s' is outside the IQR fence [%.1f, %.1f]",
				row.Quantity, row.DrugName, fence.Lower, fence.Upper),
		})
	}
	return findings
}

// ForestConfig tunes the multivariate isolation detector.
type ForestConfig struct {
	Trees          int
	SampleSize     int
	ScoreThreshold float64
	Seed           int64
}

// featureNames matches the feature-vector layout built from the
// peer-normalized metrics.
var featureNames = []string{
	"cost_per_claim", "paid_median", "paid_per_unit", "paid_per_day", "claim_volume", "days_supply",
}

// IsolationOutliers scores each provider×drug point against its drug
// peers using peer-normalized features and an isolation forest. The
// single feature with the highest absolute z-value is surfaced as the
// explanation.
func IsolationOutliers(metrics []stats.ProviderDrugMetrics, source claims.Source, minCohort int, cfg ForestConfig) []rules.Finding {
	byDrug := stats.GroupMetricsByDrug(metrics)

	var findings []rules.Finding
	for _, drug := range stats.SortedKeys(byDrug) {
		peers := byDrug[drug]
		if len(peers) < minCohort {
			continue
		}

		vectors := featureVectors(peers)
		forest := FitForest(vectors, ForestOptions{
			Trees:      cfg.Trees,
			SampleSize: cfg.SampleSize,
			Seed:       cfg.Seed,
		})

		for i, peer := range peers {
			score := forest.Score(vectors[i])
			if score <= cfg.ScoreThreshold {
				continue
			}
			topFeature, topZ := dominantFeature(vectors[i])
			findings = append(findings, rules.Finding{
				Stage:    rules.StageAnalytics,
				Rule:     rules.RuleIsolationForest,
				Source:   source,
				RowIndex: -1,
				Cohort:   peer.Provider + "|" + drug,
				Description: fmt.Sprintf(
					"unusual combination of peer-normalized features for provider %s on drug '%s' (score %.3f); top deviating feature is %s with |z|=%.2f",
					peer.Provider, drug, score, topFeature, math.Abs(topZ)),
			})
		}
	}
	return findings
}

// featureVectors builds the peer-normalized z-score matrix for one drug
// cohort. Features with MAD 0 contribute 0.
func featureVectors(peers []stats.ProviderDrugMetrics) [][]float64 {
	extract := []func(stats.ProviderDrugMetrics) float64{
		func(m stats.ProviderDrugMetrics) float64 { return m.CostPerClaim },
		func(m stats.ProviderDrugMetrics) float64 { return m.PaidMedian },
		func(m stats.ProviderDrugMetrics) float64 { return m.PaidPerUnit },
		func(m stats.ProviderDrugMetrics) float64 { return m.PaidPerDay },
		func(m stats.ProviderDrugMetrics) float64 { return float64(m.Claims) },
		func(m stats.ProviderDrugMetrics) float64 { return m.Days },
	}

	vectors := make([][]float64, len(peers))
	for i := range vectors {
		vectors[i] = make([]float64, len(extract))
	}

	for f, fn := range extract {
		values := make([]float64, len(peers))
		for i, peer := range peers {
			values[i] = fn(peer)
		}
		summary := stats.Summarize(values)
		for i := range peers {
			if z, ok := stats.ZMAD(values[i], summary); ok {
				vectors[i][f] = z
			}
		}
	}
	return vectors
}

func dominantFeature(vector []float64) (string, float64) {
	best := 0
	for i := 1; i < len(vector); i++ {
		if math.Abs(vector[i]) > math.Abs(vector[best]) {
			best = i
		}
	}
	return featureNames[best], vector[best]
}

// sortedGroupKeys is a convenience for detectors that bucket rows by an
// ad hoc key.
func sortedGroupKeys(m map[string][]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
