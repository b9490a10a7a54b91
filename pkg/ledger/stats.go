package ledger

import (
	"sort"

	"github.com/claimsight-ai/platform/pkg/claims"
	"github.com/claimsight-ai/platform/pkg/rules"
)

// Stats is the run-level summary the dashboard's health panel reads.
// Row totals come from the run's per-source row counts; a healthy row
// is one no anomaly is anchored on.
type Stats struct {
	TotalAnomalies int            `json:"total_anomalies"`
	TotalRows      int            `json:"total_rows"`
	HealthyRows    int            `json:"healthy_rows"`
	HealthyPercent float64        `json:"healthy_percent"`
	ByStage        map[string]int `json:"by_stage"`
	ByRule         map[string]int `json:"by_rule"`
	BySource       map[string]int `json:"by_source"`
	RowsAffected   int            `json:"rows_affected"`
	CohortFindings int            `json:"cohort_findings"`
}

// Stats aggregates the ledger against the run's row counts. Every stage
// appears in ByStage even when its count is zero, so the panel renders
// a stable set of bars.
func (l *Ledger) Stats(rowCounts map[claims.Source]int) Stats {
	s := Stats{
		TotalAnomalies: len(l.anomalies),
		ByStage:        make(map[string]int, 4),
		ByRule:         make(map[string]int),
		BySource:       make(map[string]int, 3),
	}
	for _, stage := range rules.Stages() {
		s.ByStage[DisplayStage(stage)] = 0
	}

	rowsSeen := make(map[string]bool)
	for _, a := range l.anomalies {
		s.ByStage[a.StageName]++
		s.ByRule[a.Rule]++
		s.BySource[string(a.Source)]++
		if a.RowIndex >= 0 {
			rowsSeen[rowKey(a.Source, a.RowIndex)] = true
		} else {
			s.CohortFindings++
		}
	}
	s.RowsAffected = len(rowsSeen)

	for _, count := range rowCounts {
		s.TotalRows += count
	}
	if s.TotalRows > 0 {
		s.HealthyRows = s.TotalRows - s.RowsAffected
		if s.HealthyRows < 0 {
			s.HealthyRows = 0
		}
		s.HealthyPercent = 100 * float64(s.HealthyRows) / float64(s.TotalRows)
	}
	return s
}

// StageRuleCounts breaks the ledger down per stage per rule, preserving
// registry rule order inside each stage for stable rendering.
func (l *Ledger) StageRuleCounts() map[string]map[string]int {
	out := make(map[string]map[string]int, 4)
	for _, a := range l.anomalies {
		if out[a.StageName] == nil {
			out[a.StageName] = make(map[string]int)
		}
		out[a.StageName][a.Rule]++
	}
	return out
}

// RuleCount pairs a rule identifier with its anomaly count.
type RuleCount struct {
	Rule  string `json:"rule"`
	Count int    `json:"count"`
}

// TopRules returns the n most frequent rules, counts descending. Ties
// break on the rule identifier so the order is stable run to run.
func (l *Ledger) TopRules(n int) []RuleCount {
	counts := make(map[string]int)
	for _, a := range l.anomalies {
		counts[a.Rule]++
	}
	out := make([]RuleCount, 0, len(counts))
	for rule, count := range counts {
		out = append(out, RuleCount{Rule: rule, Count: count})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Rule < out[j].Rule
	})
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

// DatasetStats is the per-source slice of the health panel.
type DatasetStats struct {
	RowCount       int     `json:"row_count"`
	Anomalies      int     `json:"anomalies"`
	AnomalousRows  int     `json:"anomalous_rows"`
	HealthyRows    int     `json:"healthy_rows"`
	HealthyPercent float64 `json:"healthy_percent"`
}

// DatasetStats breaks the ledger down per source dataset. Only sources
// present in rowCounts appear; cohort findings count toward Anomalies
// but not toward AnomalousRows.
func (l *Ledger) DatasetStats(rowCounts map[claims.Source]int) map[string]DatasetStats {
	anomalies := make(map[claims.Source]int)
	rowsSeen := make(map[claims.Source]map[int]bool)
	for _, a := range l.anomalies {
		anomalies[a.Source]++
		if a.RowIndex < 0 {
			continue
		}
		if rowsSeen[a.Source] == nil {
			rowsSeen[a.Source] = make(map[int]bool)
		}
		rowsSeen[a.Source][a.RowIndex] = true
	}

	out := make(map[string]DatasetStats, len(rowCounts))
	for source, count := range rowCounts {
		affected := len(rowsSeen[source])
		healthy := count - affected
		if healthy < 0 {
			healthy = 0
		}
		ds := DatasetStats{
			RowCount:      count,
			Anomalies:     anomalies[source],
			AnomalousRows: affected,
			HealthyRows:   healthy,
		}
		if count > 0 {
			ds.HealthyPercent = 100 * float64(healthy) / float64(count)
		}
		out[string(source)] = ds
	}
	return out
}
