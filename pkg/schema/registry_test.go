package schema

import (
	"strings"
	"testing"

	"github.com/claimsight-ai/platform/pkg/claims"
)

func fullColumns(source claims.Source) map[string]bool {
	cols := make(map[string]bool)
	for _, c := range Required[source] {
		cols[c] = true
	}
	return cols
}

func TestValidateClean(t *testing.T) {
	ds := &claims.Dataset{Source: claims.SourcePharmacy, Columns: fullColumns(claims.SourcePharmacy)}
	if drift := Validate(ds); drift != nil {
		t.Fatalf("expected no drift, got %v", drift)
	}
}

func TestValidateMissingColumns(t *testing.T) {
	cols := fullColumns(claims.SourcePharmacy)
	delete(cols, claims.ColChargeAmount)
	delete(cols, claims.ColPaidAmount)
	ds := &claims.Dataset{Source: claims.SourcePharmacy, Columns: cols}

	drift := Validate(ds)
	if drift == nil {
		t.Fatal("expected drift")
	}
	if len(drift.Columns) != 2 {
		t.Fatalf("expected 2 missing columns, got %v", drift.Columns)
	}
	if !strings.Contains(drift.Description(), claims.ColChargeAmount) {
		t.Fatalf("description must name the missing columns: %s", drift.Description())
	}
}

func TestValidateUnknownSource(t *testing.T) {
	ds := &claims.Dataset{Source: claims.Source("mystery"), Columns: map[string]bool{}}
	if drift := Validate(ds); drift == nil {
		t.Fatal("expected drift for unregistered source")
	}
}

func TestValidateExtraColumnsIgnored(t *testing.T) {
	cols := fullColumns(claims.SourceMedical)
	cols["Vendor_Batch"] = true
	ds := &claims.Dataset{Source: claims.SourceMedical, Columns: cols}
	if drift := Validate(ds); drift != nil {
		t.Fatalf("extra columns must not trip validation: %v", drift)
	}
}
