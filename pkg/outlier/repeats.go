package outlier

import (
	"fmt"
	"strings"

	"github.com/claimsight-ai/platform/pkg/claims"
	"github.com/claimsight-ai/platform/pkg/rules"
)

// RepeatedClaims groups rows that look like the same claim billed more
// than once: same patient, prescriber, drug, service date, quantity and
// days supply but distinct claim identifiers. One finding is raised per
// group, anchored on the group's first row.
func RepeatedClaims(ds *claims.Dataset) []rules.Finding {
	groups := make(map[string][]int)
	for i := range ds.Rows {
		row := &ds.Rows[i]
		date := row.PrimaryDate()
		if row.PatientID == "" || row.DrugName == "" || date.IsZero() {
			continue
		}
		key := strings.Join([]string{
			row.PatientID,
			row.Prescriber(),
			claims.NormalizeDrugName(row.DrugName),
			date.Format("2006-01-02"),
			fmt.Sprintf("%g", row.Quantity),
			fmt.Sprintf("%g", row.DaysSupply),
		}, "\x00")
		groups[key] = append(groups[key], i)
	}

	var findings []rules.Finding
	for _, key := range sortedGroupKeys(groups) {
		indices := groups[key]
		if len(indices) < 2 {
			continue
		}
		if !distinctClaimIDs(ds.Rows, indices) {
			continue
		}

		claimIDs := make([]string, len(indices))
		rowRefs := make([]string, len(indices))
		for i, idx := range indices {
			claimIDs[i] = ds.Rows[idx].ClaimID
			rowRefs[i] = fmt.Sprintf("%d", idx)
		}
		first := &ds.Rows[indices[0]]
		findings = append(findings, rules.Finding{
			Stage:    rules.StageAnalytics,
			Rule:     rules.RuleRepeatedClaim,
			Source:   ds.Source,
			RowIndex: indices[0],
			Description: fmt.Sprintf(
				"%d near-identical claims for patient %s, drug '%s' on %s (rows %s; claim ids %s)",
				len(indices), first.PatientID, first.DrugName,
				first.PrimaryDate().Format("2006-01-02"),
				strings.Join(rowRefs, ","), strings.Join(claimIDs, ",")),
		})
	}
	return findings
}

// distinctClaimIDs reports whether at least two rows in the group carry
// different claim identifiers. Rows re-read from the same claim are the
// duplicate_claim_id rule's business, not this one's.
func distinctClaimIDs(rows []claims.Row, indices []int) bool {
	first := rows[indices[0]].ClaimID
	for _, idx := range indices[1:] {
		if rows[idx].ClaimID != first {
			return true
		}
	}
	return false
}
