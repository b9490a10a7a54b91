package metrics

import (
	"fmt"
	"net/http"
	"sync/atomic"
)

var (
	runsCompleted      atomic.Int64
	runDurationMillis  atomic.Int64
	anomaliesTotal     atomic.Int64
	rowsAffectedTotal  atomic.Int64
	rulePanicsTotal    atomic.Int64
	dataQualityCount   atomic.Int64
	smartDQCount       atomic.Int64
	businessCount      atomic.Int64
	analyticsCount     atomic.Int64
	statsCacheHits     atomic.Int64
	statsCacheMisses   atomic.Int64
)

func Init() {}

// ObserveRun records the outcome of the latest detection run.
func ObserveRun(durationMillis int64, anomalies, rowsAffected, rulePanics int) {
	runsCompleted.Add(1)
	runDurationMillis.Store(durationMillis)
	anomaliesTotal.Store(int64(anomalies))
	rowsAffectedTotal.Store(int64(rowsAffected))
	rulePanicsTotal.Add(int64(rulePanics))
}

// ObserveStageCounts records the latest per-stage anomaly totals.
func ObserveStageCounts(dataQuality, smartDQ, business, analytics int) {
	dataQualityCount.Store(int64(dataQuality))
	smartDQCount.Store(int64(smartDQ))
	businessCount.Store(int64(business))
	analyticsCount.Store(int64(analytics))
}

func ObserveStatsCacheHit()  { statsCacheHits.Add(1) }
func ObserveStatsCacheMiss() { statsCacheMisses.Add(1) }

func WritePrometheus(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	fmt.Fprintf(w, "# HELP claimsight_detection_runs_total Number of detection runs completed since startup.\n")
	fmt.Fprintf(w, "# TYPE claimsight_detection_runs_total counter\n")
	fmt.Fprintf(w, "claimsight_detection_runs_total %d\n", runsCompleted.Load())

	fmt.Fprintf(w, "# HELP claimsight_detection_run_duration_ms Duration of the latest detection run in milliseconds.\n")
	fmt.Fprintf(w, "# TYPE claimsight_detection_run_duration_ms gauge\n")
	fmt.Fprintf(w, "claimsight_detection_run_duration_ms %d\n", runDurationMillis.Load())

	fmt.Fprintf(w, "# HELP claimsight_detection_anomalies Number of anomalies in the latest ledger.\n")
	fmt.Fprintf(w, "# TYPE claimsight_detection_anomalies gauge\n")
	fmt.Fprintf(w, "claimsight_detection_anomalies %d\n", anomaliesTotal.Load())

	fmt.Fprintf(w, "# HELP claimsight_detection_rows_affected Number of distinct rows carrying at least one anomaly in the latest ledger.\n")
	fmt.Fprintf(w, "# TYPE claimsight_detection_rows_affected gauge\n")
	fmt.Fprintf(w, "claimsight_detection_rows_affected %d\n", rowsAffectedTotal.Load())

	fmt.Fprintf(w, "# HELP claimsight_detection_rule_panics_total Number of recovered rule evaluator panics since startup.\n")
	fmt.Fprintf(w, "# TYPE claimsight_detection_rule_panics_total counter\n")
	fmt.Fprintf(w, "claimsight_detection_rule_panics_total %d\n", rulePanicsTotal.Load())

	fmt.Fprintf(w, "# HELP claimsight_detection_stage_data_quality Anomalies in the data-quality stage of the latest ledger.\n")
	fmt.Fprintf(w, "# TYPE claimsight_detection_stage_data_quality gauge\n")
	fmt.Fprintf(w, "claimsight_detection_stage_data_quality %d\n", dataQualityCount.Load())

	fmt.Fprintf(w, "# HELP claimsight_detection_stage_smart_data_quality Anomalies in the smart data-quality stage of the latest ledger.\n")
	fmt.Fprintf(w, "# TYPE claimsight_detection_stage_smart_data_quality gauge\n")
	fmt.Fprintf(w, "claimsight_detection_stage_smart_data_quality %d\n", smartDQCount.Load())

	fmt.Fprintf(w, "# HELP claimsight_detection_stage_business Anomalies in the business stage of the latest ledger.\n")
	fmt.Fprintf(w, "# TYPE claimsight_detection_stage_business gauge\n")
	fmt.Fprintf(w, "claimsight_detection_stage_business %d\n", businessCount.Load())

	fmt.Fprintf(w, "# HELP claimsight_detection_stage_analytics Anomalies in the pharmacy-analytics stage of the latest ledger.\n")
	fmt.Fprintf(w, "# TYPE claimsight_detection_stage_analytics gauge\n")
	fmt.Fprintf(w, "claimsight_detection_stage_analytics %d\n", analyticsCount.Load())

	fmt.Fprintf(w, "# HELP claimsight_stats_cache_hits_total Number of stats responses served from Redis.\n")
	fmt.Fprintf(w, "# TYPE claimsight_stats_cache_hits_total counter\n")
	fmt.Fprintf(w, "claimsight_stats_cache_hits_total %d\n", statsCacheHits.Load())

	fmt.Fprintf(w, "# HELP claimsight_stats_cache_misses_total Number of stats responses recomputed from the ledger.\n")
	fmt.Fprintf(w, "# TYPE claimsight_stats_cache_misses_total counter\n")
	fmt.Fprintf(w, "claimsight_stats_cache_misses_total %d\n", statsCacheMisses.Load())
}
