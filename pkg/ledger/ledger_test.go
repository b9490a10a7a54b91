package ledger

import (
	"bytes"
	"strings"
	"testing"

	"github.com/claimsight-ai/platform/pkg/claims"
	"github.com/claimsight-ai/platform/pkg/rules"
)

func sampleFindings() []rules.Finding {
	return []rules.Finding{
		{Stage: rules.StageDataQuality, Rule: rules.RuleNegativeAmount, Source: claims.SourcePharmacy, RowIndex: 3, Description: "negative amounts: Paid_Amount=-5.00"},
		{Stage: rules.StageDataQuality, Rule: rules.RuleNegativeAmount, Source: claims.SourcePharmacy, RowIndex: 7, Description: "negative amounts: Charge_Amount=-1.00"},
		{Stage: rules.StageBusiness, Rule: rules.RuleMaleFemaleDiagnosis, Source: claims.SourceMedical, RowIndex: 3, Description: "male patient with female-only diagnosis Z34.1"},
		{Stage: rules.StageAnalytics, Rule: rules.RulePeerZMADOutlier, Source: claims.SourceJoined, RowIndex: -1, Cohort: "N1|druga|cost_per_claim", Description: "provider N1 is an outlier"},
		{Stage: rules.StageAnalytics, Rule: rules.RulePeerZMADOutlier, Source: claims.SourceJoined, RowIndex: -1, Cohort: "N2|druga|cost_per_claim", Description: "provider N2 is an outlier"},
	}
}

func TestBuildAssignsSequentialIDs(t *testing.T) {
	l := Build(sampleFindings())
	if l.Len() != 5 {
		t.Fatalf("expected 5 anomalies, got %d", l.Len())
	}
	for i, a := range l.All() {
		if a.ID != i+1 {
			t.Fatalf("identifiers must be sequential from 1, got %d at position %d", a.ID, i)
		}
	}
}

func TestBuildDeduplicates(t *testing.T) {
	findings := sampleFindings()
	findings = append(findings, findings[0]) // exact duplicate
	l := Build(findings)
	if l.Len() != 5 {
		t.Fatalf("duplicate findings must collapse, got %d anomalies", l.Len())
	}
}

func TestCohortFindingsNotCollapsed(t *testing.T) {
	l := Build(sampleFindings())
	var cohortCount int
	for _, a := range l.All() {
		if a.RowIndex == -1 {
			cohortCount++
		}
	}
	if cohortCount != 2 {
		t.Fatalf("distinct cohorts sharing row index -1 must stay distinct, got %d", cohortCount)
	}
}

func TestGetByID(t *testing.T) {
	l := Build(sampleFindings())
	a, err := l.GetByID(3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.Rule != rules.RuleMaleFemaleDiagnosis {
		t.Fatalf("wrong anomaly for id 3: %+v", a)
	}
	if _, err := l.GetByID(99); err == nil {
		t.Fatal("expected error for unknown id")
	}
}

func TestGetForRow(t *testing.T) {
	l := Build(sampleFindings())
	anomalies := l.GetForRow(claims.SourcePharmacy, 3)
	if len(anomalies) != 1 || anomalies[0].Rule != rules.RuleNegativeAmount {
		t.Fatalf("unexpected row lookup result: %+v", anomalies)
	}
	// same index, different source
	anomalies = l.GetForRow(claims.SourceMedical, 3)
	if len(anomalies) != 1 || anomalies[0].Rule != rules.RuleMaleFemaleDiagnosis {
		t.Fatalf("row lookups must be source-scoped: %+v", anomalies)
	}
	if got := l.GetForRow(claims.SourcePharmacy, 999); len(got) != 0 {
		t.Fatalf("expected empty result, got %+v", got)
	}
}

func TestFilter(t *testing.T) {
	l := Build(sampleFindings())
	stage := rules.StageAnalytics
	got := l.Filter(FilterOptions{Stage: &stage})
	if len(got) != 2 {
		t.Fatalf("expected 2 analytics anomalies, got %d", len(got))
	}
	got = l.Filter(FilterOptions{Rule: rules.RuleNegativeAmount, Limit: 1})
	if len(got) != 1 || got[0].ID != 1 {
		t.Fatalf("limit must cut after the first match: %+v", got)
	}
	got = l.Filter(FilterOptions{Rule: rules.RuleNegativeAmount, Offset: 1})
	if len(got) != 1 || got[0].ID != 2 {
		t.Fatalf("offset must skip the first match: %+v", got)
	}
}

func TestStats(t *testing.T) {
	l := Build(sampleFindings())
	s := l.Stats(map[claims.Source]int{
		claims.SourcePharmacy: 10,
		claims.SourceMedical:  5,
	})
	if s.TotalAnomalies != 5 {
		t.Fatalf("expected 5 total, got %d", s.TotalAnomalies)
	}
	if s.TotalRows != 15 || s.HealthyRows != 12 {
		t.Fatalf("expected 12/15 healthy rows, got %d/%d", s.HealthyRows, s.TotalRows)
	}
	if s.HealthyPercent != 80 {
		t.Fatalf("expected 80%% healthy, got %f", s.HealthyPercent)
	}
	if s.ByStage["Data Quality"] != 2 || s.ByStage["Pharmacy Analytics"] != 2 {
		t.Fatalf("unexpected stage counts: %v", s.ByStage)
	}
	if s.ByStage["Smart Data Quality"] != 0 {
		t.Fatal("stages with no anomalies must still appear")
	}
	if s.RowsAffected != 3 {
		t.Fatalf("expected 3 distinct rows, got %d", s.RowsAffected)
	}
	if s.CohortFindings != 2 {
		t.Fatalf("expected 2 cohort findings, got %d", s.CohortFindings)
	}
}

func TestTopRules(t *testing.T) {
	l := Build(sampleFindings())
	top := l.TopRules(2)
	if len(top) != 2 {
		t.Fatalf("expected 2 entries, got %+v", top)
	}
	// negative_amount and peer_zmad_outlier tie at 2; ties break on the
	// rule identifier.
	if top[0].Rule != rules.RuleNegativeAmount || top[0].Count != 2 {
		t.Fatalf("unexpected leader: %+v", top)
	}
	if top[1].Rule != rules.RulePeerZMADOutlier || top[1].Count != 2 {
		t.Fatalf("unexpected runner-up: %+v", top)
	}
}

func TestDatasetStats(t *testing.T) {
	l := Build(sampleFindings())
	ds := l.DatasetStats(map[claims.Source]int{
		claims.SourcePharmacy: 10,
		claims.SourceMedical:  5,
		claims.SourceJoined:   0,
	})

	pharmacy := ds["pharmacy"]
	if pharmacy.RowCount != 10 || pharmacy.Anomalies != 2 || pharmacy.AnomalousRows != 2 {
		t.Fatalf("unexpected pharmacy stats: %+v", pharmacy)
	}
	if pharmacy.HealthyRows != 8 || pharmacy.HealthyPercent != 80 {
		t.Fatalf("unexpected pharmacy health: %+v", pharmacy)
	}

	joined := ds["joined"]
	if joined.Anomalies != 2 || joined.AnomalousRows != 0 {
		t.Fatalf("cohort findings must not count as anomalous rows: %+v", joined)
	}
}

func TestWriteCSV(t *testing.T) {
	l := Build(sampleFindings())
	var buf bytes.Buffer
	if err := l.WriteCSV(&buf); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 6 {
		t.Fatalf("expected header plus 5 rows, got %d lines", len(lines))
	}
	if lines[0] != "anomaly_id,stage,rule,source,row_index,description" {
		t.Fatalf("unexpected header: %s", lines[0])
	}
	if !strings.HasPrefix(lines[1], "1,Data Quality,negative_amount,pharmacy,3,") {
		t.Fatalf("unexpected first row: %s", lines[1])
	}
}

func TestWriteCSVDeterministic(t *testing.T) {
	l1 := Build(sampleFindings())
	l2 := Build(sampleFindings())
	var a, b bytes.Buffer
	if err := l1.WriteCSV(&a); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := l2.WriteCSV(&b); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !bytes.Equal(a.Bytes(), b.Bytes()) {
		t.Fatal("identical findings must export byte-identical ledgers")
	}
}

func TestParseDisplayStage(t *testing.T) {
	for _, name := range []string{"Pharmacy Analytics", "Analytics"} {
		stage, ok := ParseDisplayStage(name)
		if !ok || stage != rules.StageAnalytics {
			t.Fatalf("ParseDisplayStage(%q) failed", name)
		}
	}
	if _, ok := ParseDisplayStage("bogus"); ok {
		t.Fatal("expected failure for unknown stage name")
	}
}
