package ledger

import (
	"fmt"
	"strconv"

	"github.com/claimsight-ai/platform/pkg/claims"
	"github.com/claimsight-ai/platform/pkg/rules"
)

// Ledger is the immutable result of one detection run.
type Ledger struct {
	anomalies []Anomaly
	byID      map[int]int
	byRow     map[string][]int
}

// Build numbers the findings in their given order, dropping exact
// duplicates. The caller is responsible for passing findings in the
// pipeline's evaluation order; identifiers are assigned positionally.
func Build(findings []rules.Finding) *Ledger {
	l := &Ledger{
		byID:  make(map[int]int, len(findings)),
		byRow: make(map[string][]int),
	}

	seen := make(map[string]bool, len(findings))
	for _, f := range findings {
		key := dedupKey(f)
		if seen[key] {
			continue
		}
		seen[key] = true

		id := len(l.anomalies) + 1
		l.anomalies = append(l.anomalies, Anomaly{
			ID:          id,
			Stage:       f.Stage,
			StageName:   DisplayStage(f.Stage),
			Rule:        f.Rule,
			Source:      f.Source,
			RowIndex:    f.RowIndex,
			Cohort:      f.Cohort,
			Description: f.Description,
		})
		l.byID[id] = id - 1

		if f.RowIndex >= 0 {
			l.byRow[rowKey(f.Source, f.RowIndex)] = append(l.byRow[rowKey(f.Source, f.RowIndex)], id)
		}
	}
	return l
}

func rowKey(source claims.Source, index int) string {
	return string(source) + "\x00" + strconv.Itoa(index)
}

// All returns every anomaly in identifier order.
func (l *Ledger) All() []Anomaly {
	return l.anomalies
}

// Len reports the anomaly count.
func (l *Ledger) Len() int {
	return len(l.anomalies)
}

// GetByID resolves an anomaly identifier.
func (l *Ledger) GetByID(id int) (Anomaly, error) {
	idx, ok := l.byID[id]
	if !ok {
		return Anomaly{}, fmt.Errorf("anomaly %d not found", id)
	}
	return l.anomalies[idx], nil
}

// GetForRow lists the anomalies anchored on one dataset row, in
// identifier order. Cohort- and dataset-level anomalies are not
// attributed to rows.
func (l *Ledger) GetForRow(source claims.Source, index int) []Anomaly {
	ids := l.byRow[rowKey(source, index)]
	out := make([]Anomaly, 0, len(ids))
	for _, id := range ids {
		out = append(out, l.anomalies[l.byID[id]])
	}
	return out
}

// Filter returns the anomalies matching every set field of the options,
// in identifier order, honoring limit and offset.
func (l *Ledger) Filter(opts FilterOptions) []Anomaly {
	var out []Anomaly
	skipped := 0
	for _, a := range l.anomalies {
		if !opts.matches(a) {
			continue
		}
		if skipped < opts.Offset {
			skipped++
			continue
		}
		out = append(out, a)
		if opts.Limit > 0 && len(out) >= opts.Limit {
			break
		}
	}
	return out
}

// FilterOptions narrows a ledger listing. Zero values mean "any".
type FilterOptions struct {
	Stage  *rules.Stage
	Rule   string
	Source claims.Source
	Limit  int
	Offset int
}

func (o FilterOptions) matches(a Anomaly) bool {
	if o.Stage != nil && a.Stage != *o.Stage {
		return false
	}
	if o.Rule != "" && a.Rule != o.Rule {
		return false
	}
	if o.Source != "" && a.Source != o.Source {
		return false
	}
	return true
}
