package serving

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gorilla/mux"

	"github.com/claimsight-ai/platform/pkg/common/config"
	"github.com/claimsight-ai/platform/pkg/common/logger"
	"github.com/claimsight-ai/platform/pkg/detect"
	"github.com/claimsight-ai/platform/pkg/ledger"
	"github.com/claimsight-ai/platform/pkg/rules"
)

func TestMain(m *testing.M) {
	logger.Init()
	os.Exit(m.Run())
}

const pharmacyCSV = `Patient_ID,Claim_ID,Prescriber_NPI,Drug_Name,Drug_HCPCS_Code,Fill_Date,Quantity,Days_Supply,Charge_Amount,Allowed_Amount,Paid_Amount,Patient_Responsibility,Adjustment_Amount,Claim_Submission_Date,Claim_Adjudication_Date,Claim_Status,Patient_Age,Patient_Gender,Patient_ZIP,State
P1,C1,N1,DrugA,J1234,2022-03-01,10,30,100,95,80,10,5,2022-03-02,2022-03-05,Paid,60,M,10001,NY
P2,C2,N1,DrugA,J1234,2022-03-01,10,30,-40,95,80,10,5,2022-03-02,2022-03-05,Paid,55,F,10002,NY
P3,C3,N1,DrugA,J1234,2022-03-01,10,30,120,90,200,10,5,2022-03-02,2022-03-05,Denied,130,F,10003,NY
`

func newTestService(t *testing.T) *Service {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "pharmacy.csv"), []byte(pharmacyCSV), 0o644); err != nil {
		t.Fatalf("failed to write fixture: %v", err)
	}

	cfg := &config.Config{
		DataDir:      dir,
		PharmacyFile: "pharmacy.csv",
		MedicalFile:  "medical.csv",
		JoinedFile:   "joined.csv",
	}
	detectCfg := detect.Default()
	runner := detect.NewRunner(detectCfg, rules.DefaultReference())
	return NewService(cfg, runner, Options{})
}

func refreshedHandler(t *testing.T) (*Service, http.Handler) {
	t.Helper()
	service := newTestService(t)
	if err := service.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh failed: %v", err)
	}
	router := mux.NewRouter()
	NewHTTPHandler(service).Register(router.PathPrefix("/api/v1").Subrouter())
	return service, router
}

func TestServiceNotReadyBeforeFirstRun(t *testing.T) {
	service := newTestService(t)
	if service.Ready() {
		t.Fatal("service must not be ready before the first run")
	}
	if _, err := service.Ledger(); err == nil {
		t.Fatal("expected ErrNoLedger before the first run")
	}
}

func TestListAnomaliesEndpoint(t *testing.T) {
	_, handler := refreshedHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/anomalies?stage=Data+Quality", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Total     int             `json:"total"`
		Anomalies []ledger.Anomaly `json:"anomalies"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid response: %v", err)
	}
	if len(resp.Anomalies) == 0 {
		t.Fatal("expected data-quality anomalies from the seeded defects")
	}
	for _, a := range resp.Anomalies {
		if a.StageName != "Data Quality" {
			t.Fatalf("stage filter leaked: %+v", a)
		}
	}
}

func TestRowAnomaliesEndpoint(t *testing.T) {
	service, handler := refreshedHandler(t)
	l, err := service.Ledger()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// row 1 carries the negative charge
	want := l.GetForRow("pharmacy", 1)
	if len(want) == 0 {
		t.Fatal("fixture row 1 should carry anomalies")
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/rows/pharmacy/1/anomalies", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp struct {
		Count int `json:"count"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid response: %v", err)
	}
	if resp.Count != len(want) {
		t.Fatalf("expected %d anomalies, got %d", len(want), resp.Count)
	}
}

func TestGetAnomalyEndpoint(t *testing.T) {
	_, handler := refreshedHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/anomalies/1", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var a ledger.Anomaly
	if err := json.Unmarshal(rec.Body.Bytes(), &a); err != nil {
		t.Fatalf("invalid response: %v", err)
	}
	if a.ID != 1 {
		t.Fatalf("expected anomaly 1, got %+v", a)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/anomalies/99999", nil)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestExportEndpoint(t *testing.T) {
	_, handler := refreshedHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/export", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/csv" {
		t.Fatalf("expected text/csv, got %s", ct)
	}
	if !strings.HasPrefix(rec.Body.String(), "anomaly_id,stage,rule,source,row_index,description") {
		t.Fatalf("unexpected export header: %s", rec.Body.String())
	}
}

func TestStatsEndpointWithoutRedis(t *testing.T) {
	_, handler := refreshedHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/stats", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var stats ledger.Stats
	if err := json.Unmarshal(rec.Body.Bytes(), &stats); err != nil {
		t.Fatalf("invalid response: %v", err)
	}
	if stats.TotalAnomalies == 0 {
		t.Fatal("expected anomalies in stats")
	}
}

func TestHealthStatsEndpoint(t *testing.T) {
	_, handler := refreshedHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/stats/health", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp struct {
		TotalRows      int     `json:"total_rows"`
		HealthyRows    int     `json:"healthy_rows"`
		AnomalousRows  int     `json:"anomalous_rows"`
		HealthyPercent float64 `json:"healthy_percent"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid response: %v", err)
	}
	if resp.TotalRows != 3 {
		t.Fatalf("expected the 3 fixture rows counted, got %d", resp.TotalRows)
	}
	if resp.HealthyRows+resp.AnomalousRows != resp.TotalRows {
		t.Fatalf("healthy and anomalous rows must partition the dataset: %+v", resp)
	}
	if resp.AnomalousRows == 0 {
		t.Fatal("the seeded defects must mark rows anomalous")
	}
}

func TestRuleStatsEndpoint(t *testing.T) {
	_, handler := refreshedHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/stats/rules?limit=3", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp struct {
		Rules []ledger.RuleCount `json:"rules"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid response: %v", err)
	}
	if len(resp.Rules) == 0 || len(resp.Rules) > 3 {
		t.Fatalf("expected at most 3 rules, got %+v", resp.Rules)
	}
	for i := 1; i < len(resp.Rules); i++ {
		if resp.Rules[i].Count > resp.Rules[i-1].Count {
			t.Fatalf("rule counts must be sorted descending: %+v", resp.Rules)
		}
	}
}

func TestDatasetStatsEndpoint(t *testing.T) {
	_, handler := refreshedHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/stats/datasets", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp map[string]ledger.DatasetStats
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid response: %v", err)
	}
	pharmacy, ok := resp["pharmacy"]
	if !ok || pharmacy.RowCount != 3 {
		t.Fatalf("expected pharmacy dataset stats: %+v", resp)
	}
	if pharmacy.HealthyRows+pharmacy.AnomalousRows != pharmacy.RowCount {
		t.Fatalf("healthy and anomalous rows must partition the dataset: %+v", pharmacy)
	}
}

func TestEndpointsBeforeFirstRun(t *testing.T) {
	service := newTestService(t)
	router := mux.NewRouter()
	NewHTTPHandler(service).Register(router.PathPrefix("/api/v1").Subrouter())

	paths := []string{
		"/api/v1/anomalies", "/api/v1/stats", "/api/v1/export",
		"/api/v1/stats/rules", "/api/v1/stats/health", "/api/v1/stats/datasets",
	}
	for _, path := range paths {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		if rec.Code != http.StatusServiceUnavailable {
			t.Fatalf("%s: expected 503 before first run, got %d", path, rec.Code)
		}
	}
}
