package detect

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/claimsight-ai/platform/pkg/claims"
	"github.com/claimsight-ai/platform/pkg/common/logger"
	"github.com/claimsight-ai/platform/pkg/ledger"
	"github.com/claimsight-ai/platform/pkg/rules"
	"github.com/claimsight-ai/platform/pkg/schema"
)

func TestMain(m *testing.M) {
	logger.Init()
	os.Exit(m.Run())
}

func pharmacyColumns() map[string]bool {
	cols := make(map[string]bool)
	for _, c := range schema.Required[claims.SourcePharmacy] {
		cols[c] = true
	}
	return cols
}

func testPharmacy() *claims.Dataset {
	fill := time.Date(2022, 3, 1, 0, 0, 0, 0, time.UTC)
	rows := []claims.Row{
		{PatientID: "P1", ClaimID: "C1", PrescriberNPI: "N1", DrugName: "druga",
			FillDate: fill, ChargeAmount: 100, PaidAmount: 80, Quantity: 10, DaysSupply: 30,
			PatientAge: 60, PatientGender: "M", PatientZIP: "10001", State: "NY",
			ClaimStatus: claims.StatusPaid},
		{PatientID: "P2", ClaimID: "C2", PrescriberNPI: "N1", DrugName: "druga",
			FillDate: fill, ChargeAmount: -40, PaidAmount: 80, Quantity: 10, DaysSupply: 30,
			PatientAge: 55, PatientGender: "F", PatientZIP: "10002", State: "NY",
			ClaimStatus: claims.StatusPaid},
		{PatientID: "P3", ClaimID: "C2", PrescriberNPI: "N1", DrugName: "druga",
			FillDate: fill, ChargeAmount: 120, PaidAmount: 200, AllowedAmount: 90,
			Quantity: 10, DaysSupply: 30, PatientAge: 130, PatientGender: "F",
			PatientZIP: "10003", State: "NY", ClaimStatus: claims.StatusPaid},
	}
	return &claims.Dataset{Source: claims.SourcePharmacy, Rows: rows, Columns: pharmacyColumns()}
}

func newTestRunner(t *testing.T) *Runner {
	t.Helper()
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config must validate: %v", err)
	}
	return NewRunner(cfg, rules.DefaultReference())
}

func TestRunProducesFindings(t *testing.T) {
	runner := newTestRunner(t)
	result, err := runner.Run(context.Background(), Inputs{Pharmacy: testPharmacy()})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Ledger.Len() == 0 {
		t.Fatal("expected anomalies from the seeded defects")
	}

	wantRules := map[string]bool{
		rules.RuleNegativeAmount:   false,
		rules.RuleDuplicateClaimID: false,
		rules.RuleAgeOutOfRange:    false,
		rules.RuleAllowedBelowPaid: false,
	}
	for _, a := range result.Ledger.All() {
		if _, ok := wantRules[a.Rule]; ok {
			wantRules[a.Rule] = true
		}
	}
	for rule, seen := range wantRules {
		if !seen {
			t.Fatalf("expected a %s finding, ledger: %+v", rule, result.Ledger.All())
		}
	}
	if result.RowCounts[claims.SourcePharmacy] != 3 {
		t.Fatalf("expected the pharmacy row count recorded, got %+v", result.RowCounts)
	}
}

func TestRunFlagsNationalMonthlySpike(t *testing.T) {
	// One claim per provider per month: every provider's own series is
	// too short to score, but the per-drug series spans six months.
	paids := []float64{100, 105, 95, 102, 98, 90000}
	rows := make([]claims.Row, len(paids))
	for i, paid := range paids {
		rows[i] = claims.Row{
			PatientID: fmt.Sprintf("P%d", i), ClaimID: fmt.Sprintf("C%d", i),
			PrescriberNPI: fmt.Sprintf("N%d", i), DrugName: "druga",
			FillDate:     time.Date(2022, time.Month(i+1), 1, 0, 0, 0, 0, time.UTC),
			ChargeAmount: paid, PaidAmount: paid, Quantity: 10, DaysSupply: 30,
			PatientAge: 60, PatientGender: "M", PatientZIP: "10001", State: "NY",
			ClaimStatus: claims.StatusPaid,
		}
	}
	ds := &claims.Dataset{Source: claims.SourcePharmacy, Rows: rows, Columns: pharmacyColumns()}

	runner := newTestRunner(t)
	result, err := runner.Run(context.Background(), Inputs{Pharmacy: ds})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var national bool
	for _, a := range result.Ledger.All() {
		if a.Rule == rules.RuleMonthlyZScore && a.Cohort == "druga|2022-06" {
			national = true
		}
	}
	if !national {
		t.Fatal("expected the June spike flagged on the per-drug monthly series")
	}
}

func TestRunFlagsDegenerateCohortByIQR(t *testing.T) {
	// Four identical peers and one extreme one: the cohort MAD is zero,
	// so the zMAD rule stays silent and the IQR fence must take over.
	paids := []float64{10, 10, 10, 10, 1000}
	rows := make([]claims.Row, len(paids))
	for i, paid := range paids {
		rows[i] = claims.Row{
			PatientID: fmt.Sprintf("P%d", i), ClaimID: fmt.Sprintf("C%d", i),
			PrescriberNPI: fmt.Sprintf("N%d", i), DrugName: "druga",
			FillDate:     time.Date(2022, 3, 1, 0, 0, 0, 0, time.UTC),
			ChargeAmount: paid, PaidAmount: paid, Quantity: 10, DaysSupply: 30,
			PatientAge: 60, PatientGender: "M", PatientZIP: "10001", State: "NY",
			ClaimStatus: claims.StatusPaid,
		}
	}
	ds := &claims.Dataset{Source: claims.SourcePharmacy, Rows: rows, Columns: pharmacyColumns()}

	runner := newTestRunner(t)
	result, err := runner.Run(context.Background(), Inputs{Pharmacy: ds})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var zmad, iqr bool
	for _, a := range result.Ledger.All() {
		switch a.Rule {
		case rules.RulePeerZMADOutlier:
			zmad = true
		case rules.RulePeerIQROutlier:
			iqr = true
		}
	}
	if zmad {
		t.Fatal("no zMAD finding is possible when the cohort MAD is zero")
	}
	if !iqr {
		t.Fatal("expected the extreme provider flagged by the IQR fence")
	}
}

func TestRunIdempotent(t *testing.T) {
	runner := newTestRunner(t)

	var exports [2]bytes.Buffer
	for i := 0; i < 2; i++ {
		result, err := runner.Run(context.Background(), Inputs{Pharmacy: testPharmacy()})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if err := result.Ledger.WriteCSV(&exports[i]); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if !bytes.Equal(exports[0].Bytes(), exports[1].Bytes()) {
		t.Fatal("identical inputs must produce byte-identical exports")
	}
}

func TestRunStageOrdering(t *testing.T) {
	runner := newTestRunner(t)
	result, err := runner.Run(context.Background(), Inputs{Pharmacy: testPharmacy()})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	lastStage := rules.StageDataQuality
	for _, a := range result.Ledger.All() {
		if a.Stage < lastStage {
			t.Fatalf("anomaly %d in stage %s appears after stage %s", a.ID, a.Stage, lastStage)
		}
		lastStage = a.Stage
	}
}

func TestRunMissingColumnSkipsDependentRules(t *testing.T) {
	ds := testPharmacy()
	delete(ds.Columns, claims.ColChargeAmount)

	runner := newTestRunner(t)
	result, err := runner.Run(context.Background(), Inputs{Pharmacy: ds})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var missingCols []ledger.Anomaly
	for _, a := range result.Ledger.All() {
		switch a.Rule {
		case rules.RuleMissingColumns:
			missingCols = append(missingCols, a)
		case rules.RuleNegativeAmount, rules.RuleChargeMagnified, rules.RuleAllowedExceedsCharge:
			t.Fatalf("rule %s reads Charge_Amount and must be skipped: %+v", a.Rule, a)
		}
	}
	if len(missingCols) != 1 {
		t.Fatalf("expected exactly one missing_columns anomaly, got %d", len(missingCols))
	}
	if missingCols[0].RowIndex != -1 {
		t.Fatal("schema findings are dataset-level")
	}
	if missingCols[0].ID != 1 {
		t.Fatalf("schema findings must lead the ledger, got id %d", missingCols[0].ID)
	}
}

func TestRunRequiresPharmacy(t *testing.T) {
	runner := newTestRunner(t)
	if _, err := runner.Run(context.Background(), Inputs{}); err == nil {
		t.Fatal("expected error without pharmacy dataset")
	}
}

func TestRunRejectsInvalidConfig(t *testing.T) {
	cfg := Default()
	cfg.ZMADThreshold = -1
	runner := NewRunner(cfg, rules.DefaultReference())

	_, err := runner.Run(context.Background(), Inputs{Pharmacy: testPharmacy()})
	var cfgErr *ConfigError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigError, got %v", err)
	}
	if cfgErr.Field != "zmad_threshold" {
		t.Fatalf("expected zmad_threshold rejected, got %s", cfgErr.Field)
	}
}

func TestConfigValidation(t *testing.T) {
	cases := []struct {
		mutate func(*Config)
		field  string
	}{
		{func(c *Config) { c.ChargeMultiplier = 1 }, "charge_multiplier"},
		{func(c *Config) { c.MinCohortSize = 1 }, "min_cohort_size"},
		{func(c *Config) { c.DateWindowStart = "not-a-date" }, "date_window_start"},
		{func(c *Config) { c.DateWindowEnd = "2019-01-01" }, "date_window_end"},
		{func(c *Config) { c.Forest.ScoreThreshold = 1.5 }, "isolation_forest.score_threshold"},
	}
	for _, tc := range cases {
		cfg := Default()
		tc.mutate(cfg)
		err := cfg.Validate()
		var cfgErr *ConfigError
		if !errors.As(err, &cfgErr) {
			t.Fatalf("expected ConfigError for %s, got %v", tc.field, err)
		}
		if cfgErr.Field != tc.field {
			t.Fatalf("expected field %s, got %s", tc.field, cfgErr.Field)
		}
	}
}

func TestLoadConfigMissingFileFallsBack(t *testing.T) {
	cfg, err := LoadConfig("/nonexistent/detection.yaml")
	if err != nil {
		t.Fatalf("missing file must fall back to defaults: %v", err)
	}
	if cfg.ChargeMultiplier != 10 {
		t.Fatalf("expected default tuning, got %+v", cfg)
	}
}
