// Package ledger turns raw rule findings into the numbered anomaly
// ledger the product serves: stable identifiers, row lookups, summary
// statistics and the export file.
package ledger

import (
	"strconv"
	"strings"

	"github.com/claimsight-ai/platform/pkg/claims"
	"github.com/claimsight-ai/platform/pkg/rules"
)

// Anomaly is one deduplicated, numbered finding. Identifiers start at 1
// and increase strictly in evaluation order, so two runs over the same
// inputs produce identical ledgers.
type Anomaly struct {
	ID          int           `json:"anomaly_id"`
	Stage       rules.Stage   `json:"-"`
	StageName   string        `json:"stage"`
	Rule        string        `json:"rule"`
	Source      claims.Source `json:"source"`
	RowIndex    int           `json:"row_index"`
	Cohort      string        `json:"cohort,omitempty"`
	Description string        `json:"description"`
}

// dedupKey identifies a finding independent of its description text.
// Cohort findings share RowIndex -1, so the cohort key participates.
func dedupKey(f rules.Finding) string {
	return strings.Join([]string{
		f.Rule,
		string(f.Source),
		strconv.Itoa(f.RowIndex),
		f.Cohort,
	}, "\x00")
}
