package claims

import (
	"testing"
	"time"
)

func day(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func pharmacyDataset(rows ...Row) *Dataset {
	return &Dataset{
		Source: SourcePharmacy,
		Rows:   rows,
		Columns: map[string]bool{
			ColPatientID: true, ColPrescriberNPI: true, ColDrugName: true, ColFillDate: true,
		},
	}
}

func medicalDataset(rows ...Row) *Dataset {
	return &Dataset{
		Source: SourceMedical,
		Rows:   rows,
		Columns: map[string]bool{
			ColPatientID: true, ColProviderID: true, ColDrugName: true,
			ColServiceFromDate: true, ColDiagnosisPrimary: true,
		},
	}
}

func TestBuildJoinedStrictMatch(t *testing.T) {
	ph := pharmacyDataset(Row{
		PatientID: "P1", PrescriberNPI: "NPI9", DrugName: "Tamsulosin", FillDate: day("2022-01-10"),
	})
	med := medicalDataset(Row{
		PatientID: "P1", ProviderID: "NPI9", DrugName: "TAMSULOSIN",
		ServiceFromDate: day("2022-01-09"), DiagnosisPrimary: "N40.0",
	})

	joined := BuildJoined(ph, med)
	if len(joined.Rows) != 1 {
		t.Fatalf("expected 1 joined row, got %d", len(joined.Rows))
	}
	row := joined.Rows[0]
	if row.Extra[ColJoinType] != JoinStrict {
		t.Fatalf("expected strict join, got %q", row.Extra[ColJoinType])
	}
	if row.DiagnosisPrimary != "N40.0" {
		t.Fatalf("medical fields not merged: %+v", row)
	}
	if row.FillDate != day("2022-01-10") {
		t.Fatal("pharmacy fields must survive the merge")
	}
	if !joined.Has(ColJoinType) {
		t.Fatal("joined dataset must declare the join-type column")
	}
}

func TestBuildJoinedRelaxedWindow(t *testing.T) {
	ph := pharmacyDataset(Row{
		PatientID: "P1", PrescriberNPI: "NPI1", DrugName: "Letrozole", FillDate: day("2022-06-01"),
	})
	med := medicalDataset(
		Row{PatientID: "P1", ProviderID: "OTHER", DrugName: "Letrozole",
			ServiceFromDate: day("2022-06-10"), DiagnosisPrimary: "C50.9"},
		Row{PatientID: "P1", ProviderID: "OTHER", DrugName: "Letrozole",
			ServiceFromDate: day("2022-06-03"), DiagnosisPrimary: "C50.1"},
	)

	joined := BuildJoined(ph, med)
	if len(joined.Rows) != 1 {
		t.Fatalf("expected 1 joined row, got %d", len(joined.Rows))
	}
	row := joined.Rows[0]
	if row.Extra[ColJoinType] != JoinRelaxed {
		t.Fatalf("expected relaxed join, got %q", row.Extra[ColJoinType])
	}
	// nearest service date wins
	if row.DiagnosisPrimary != "C50.1" {
		t.Fatalf("expected nearest match C50.1, got %s", row.DiagnosisPrimary)
	}
}

func TestBuildJoinedOutsideWindowOmitted(t *testing.T) {
	ph := pharmacyDataset(Row{
		PatientID: "P1", PrescriberNPI: "NPI1", DrugName: "Letrozole", FillDate: day("2022-06-01"),
	})
	med := medicalDataset(Row{
		PatientID: "P1", ProviderID: "OTHER", DrugName: "Letrozole",
		ServiceFromDate: day("2022-07-15"),
	})

	joined := BuildJoined(ph, med)
	if len(joined.Rows) != 0 {
		t.Fatalf("expected inner-join to omit unmatched pharmacy rows, got %d", len(joined.Rows))
	}
}

func TestBuildJoinedMedicalRowUsedOnce(t *testing.T) {
	ph := pharmacyDataset(
		Row{PatientID: "P1", PrescriberNPI: "NPI1", DrugName: "Letrozole", FillDate: day("2022-06-01")},
		Row{PatientID: "P1", PrescriberNPI: "NPI1", DrugName: "Letrozole", FillDate: day("2022-06-02")},
	)
	med := medicalDataset(Row{
		PatientID: "P1", ProviderID: "NPI1", DrugName: "Letrozole",
		ServiceFromDate: day("2022-06-01"),
	})

	joined := BuildJoined(ph, med)
	if len(joined.Rows) != 1 {
		t.Fatalf("a medical claim must match at most one pharmacy claim, got %d rows", len(joined.Rows))
	}
}
