// Package schema declares the expected shape of each claims dataset and
// reports schema drift once per dataset rather than once per row.
package schema

import (
	"fmt"
	"strings"

	"github.com/claimsight-ai/platform/pkg/claims"
)

// Required lists the columns every dataset version must carry. The lists
// are fixed per dataset; anything else travels in the row's Extra map.
var Required = map[claims.Source][]string{
	claims.SourcePharmacy: {
		claims.ColPatientID,
		claims.ColClaimID,
		claims.ColPrescriberNPI,
		claims.ColDrugName,
		claims.ColDrugHCPCS,
		claims.ColFillDate,
		claims.ColQuantity,
		claims.ColDaysSupply,
		claims.ColChargeAmount,
		claims.ColAllowedAmount,
		claims.ColPaidAmount,
		claims.ColPatientResp,
		claims.ColAdjustmentAmount,
		claims.ColSubmissionDate,
		claims.ColAdjudicationDate,
		claims.ColClaimStatus,
		claims.ColPatientAge,
		claims.ColPatientGender,
		claims.ColPatientZIP,
		claims.ColState,
	},
	claims.SourceMedical: {
		claims.ColPatientID,
		claims.ColClaimID,
		claims.ColProviderID,
		claims.ColDiagnosisPrimary,
		claims.ColPlaceOfService,
		claims.ColServiceFromDate,
		claims.ColServiceToDate,
		claims.ColAdmissionDate,
		claims.ColDischargeDate,
		claims.ColChargeAmount,
		claims.ColAllowedAmount,
		claims.ColPaidAmount,
		claims.ColPatientResp,
		claims.ColAdjustmentAmount,
		claims.ColSubmissionDate,
		claims.ColAdjudicationDate,
		claims.ColClaimStatus,
		claims.ColPatientAge,
		claims.ColPatientGender,
		claims.ColPatientZIP,
		claims.ColState,
	},
	claims.SourceJoined: {
		claims.ColPatientID,
		claims.ColClaimID,
		claims.ColProviderID,
		claims.ColPrescriberNPI,
		claims.ColDrugName,
		claims.ColDrugHCPCS,
		claims.ColDiagnosisPrimary,
		claims.ColPlaceOfService,
		claims.ColFillDate,
		claims.ColServiceFromDate,
		claims.ColServiceToDate,
		claims.ColChargeAmount,
		claims.ColAllowedAmount,
		claims.ColPaidAmount,
		claims.ColPatientResp,
		claims.ColAdjustmentAmount,
		claims.ColSubmissionDate,
		claims.ColAdjudicationDate,
		claims.ColClaimStatus,
		claims.ColPatientAge,
		claims.ColPatientGender,
		claims.ColPatientZIP,
		claims.ColState,
	},
}

// Drift describes the missing required columns of one dataset. A nil
// Drift means the dataset matches its registered schema.
type Drift struct {
	Source  claims.Source
	Columns []string
}

func (d *Drift) Error() string {
	return fmt.Sprintf("dataset %s missing required columns: %s", d.Source, strings.Join(d.Columns, ", "))
}

// Description is the human-readable text carried on the dataset-level
// finding for this drift.
func (d *Drift) Description() string {
	return fmt.Sprintf("required columns absent from %s dataset: %s", d.Source, strings.Join(d.Columns, ", "))
}

// Validate checks the dataset against its registered column list. Pure;
// it never mutates the dataset.
func Validate(ds *claims.Dataset) *Drift {
	required, ok := Required[ds.Source]
	if !ok {
		return &Drift{Source: ds.Source, Columns: []string{"<unknown dataset>"}}
	}

	var missing []string
	for _, col := range required {
		if !ds.Columns[col] {
			missing = append(missing, col)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	return &Drift{Source: ds.Source, Columns: missing}
}
