package serving

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/claimsight-ai/platform/pkg/claims"
	"github.com/claimsight-ai/platform/pkg/common/logger"
	"github.com/claimsight-ai/platform/pkg/detect"
	"github.com/claimsight-ai/platform/pkg/ledger"
)

type HTTPHandler struct {
	service *Service
}

func NewHTTPHandler(service *Service) *HTTPHandler {
	return &HTTPHandler{service: service}
}

func (h *HTTPHandler) Register(router *mux.Router) {
	router.HandleFunc("/anomalies", h.handleListAnomalies).Methods(http.MethodGet)
	router.HandleFunc("/anomalies/{id:[0-9]+}", h.handleGetAnomaly).Methods(http.MethodGet)
	router.HandleFunc("/rows/{source}/{index:[0-9]+}/anomalies", h.handleRowAnomalies).Methods(http.MethodGet)
	router.HandleFunc("/stats", h.handleStats).Methods(http.MethodGet)
	router.HandleFunc("/stats/stages", h.handleStageStats).Methods(http.MethodGet)
	router.HandleFunc("/stats/rules", h.handleRuleStats).Methods(http.MethodGet)
	router.HandleFunc("/stats/health", h.handleHealthStats).Methods(http.MethodGet)
	router.HandleFunc("/stats/datasets", h.handleDatasetStats).Methods(http.MethodGet)
	router.HandleFunc("/export", h.handleExport).Methods(http.MethodGet)
	router.HandleFunc("/refresh", h.handleRefresh).Methods(http.MethodPost)
}

func (h *HTTPHandler) ledgerOr503(w http.ResponseWriter) (*ledger.Ledger, bool) {
	l, err := h.service.Ledger()
	if err != nil {
		http.Error(w, "detection has not completed yet", http.StatusServiceUnavailable)
		return nil, false
	}
	return l, true
}

func (h *HTTPHandler) handleListAnomalies(w http.ResponseWriter, r *http.Request) {
	l, ok := h.ledgerOr503(w)
	if !ok {
		return
	}

	opts := ledger.FilterOptions{}
	q := r.URL.Query()
	if stageName := q.Get("stage"); stageName != "" {
		stage, ok := ledger.ParseDisplayStage(stageName)
		if !ok {
			http.Error(w, "unknown stage", http.StatusBadRequest)
			return
		}
		opts.Stage = &stage
	}
	if ruleID := q.Get("rule"); ruleID != "" {
		opts.Rule = ruleID
	}
	if sourceName := q.Get("source"); sourceName != "" {
		source, err := claims.ParseSource(sourceName)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		opts.Source = source
	}
	opts.Limit = intQuery(q.Get("limit"), 100)
	opts.Offset = intQuery(q.Get("offset"), 0)

	anomalies := l.Filter(opts)
	writeJSON(w, map[string]interface{}{
		"total":     l.Len(),
		"returned":  len(anomalies),
		"anomalies": anomalies,
	})
}

func (h *HTTPHandler) handleGetAnomaly(w http.ResponseWriter, r *http.Request) {
	l, ok := h.ledgerOr503(w)
	if !ok {
		return
	}

	id, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "invalid anomaly id", http.StatusBadRequest)
		return
	}
	anomaly, err := l.GetByID(id)
	if err != nil {
		http.Error(w, "anomaly not found", http.StatusNotFound)
		return
	}
	writeJSON(w, anomaly)
}

func (h *HTTPHandler) handleRowAnomalies(w http.ResponseWriter, r *http.Request) {
	l, ok := h.ledgerOr503(w)
	if !ok {
		return
	}

	vars := mux.Vars(r)
	source, err := claims.ParseSource(vars["source"])
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	index, err := strconv.Atoi(vars["index"])
	if err != nil {
		http.Error(w, "invalid row index", http.StatusBadRequest)
		return
	}

	anomalies := l.GetForRow(source, index)
	writeJSON(w, map[string]interface{}{
		"source":    source,
		"row_index": index,
		"count":     len(anomalies),
		"anomalies": anomalies,
	})
}

func (h *HTTPHandler) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.Stats(r.Context())
	if err != nil {
		if errors.Is(err, ErrNoLedger) {
			http.Error(w, "detection has not completed yet", http.StatusServiceUnavailable)
			return
		}
		logger.Log.WithError(err).Error("failed to compute stats")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, stats)
}

func (h *HTTPHandler) handleStageStats(w http.ResponseWriter, r *http.Request) {
	l, ok := h.ledgerOr503(w)
	if !ok {
		return
	}
	writeJSON(w, l.StageRuleCounts())
}

func (h *HTTPHandler) handleRuleStats(w http.ResponseWriter, r *http.Request) {
	l, ok := h.ledgerOr503(w)
	if !ok {
		return
	}
	limit := intQuery(r.URL.Query().Get("limit"), 10)
	writeJSON(w, map[string]interface{}{
		"rules": l.TopRules(limit),
	})
}

func (h *HTTPHandler) handleHealthStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.Stats(r.Context())
	if err != nil {
		if errors.Is(err, ErrNoLedger) {
			http.Error(w, "detection has not completed yet", http.StatusServiceUnavailable)
			return
		}
		logger.Log.WithError(err).Error("failed to compute stats")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]interface{}{
		"total_rows":      stats.TotalRows,
		"healthy_rows":    stats.HealthyRows,
		"anomalous_rows":  stats.RowsAffected,
		"healthy_percent": stats.HealthyPercent,
		"total_anomalies": stats.TotalAnomalies,
	})
}

func (h *HTTPHandler) handleDatasetStats(w http.ResponseWriter, r *http.Request) {
	datasets, err := h.service.DatasetStats()
	if err != nil {
		http.Error(w, "detection has not completed yet", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, datasets)
}

func (h *HTTPHandler) handleExport(w http.ResponseWriter, r *http.Request) {
	l, ok := h.ledgerOr503(w)
	if !ok {
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="anomalies_output.csv"`)
	if err := l.WriteCSV(w); err != nil {
		logger.Log.WithError(err).Error("failed to stream export")
	}
}

func (h *HTTPHandler) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Refresh(r.Context()); err != nil {
		var cfgErr *detect.ConfigError
		if errors.As(err, &cfgErr) {
			http.Error(w, cfgErr.Error(), http.StatusBadRequest)
			return
		}
		logger.Log.WithError(err).Error("refresh failed")
		http.Error(w, "refresh failed", http.StatusInternalServerError)
		return
	}

	stats, err := h.service.Stats(r.Context())
	if err != nil {
		http.Error(w, "refresh completed but stats unavailable", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	writeJSONBody(w, stats)
}

func intQuery(raw string, fallback int) int {
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return fallback
	}
	return n
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	writeJSONBody(w, v)
}

func writeJSONBody(w http.ResponseWriter, v interface{}) {
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Log.WithError(err).Error("failed to encode response")
	}
}
