package claims

import (
	"math"
	"time"
)

// Join matching as documented for the vendor feed: a strict pass on
// patient + prescriber + normalized drug, then a relaxed pass on
// patient + normalized drug inside a date window.
const (
	JoinStrict  = "strict"
	JoinRelaxed = "relaxed"

	// ColJoinType is a derived column carried on joined rows.
	ColJoinType = "Join_Type"

	relaxedWindowDays = 14
)

type medicalRef struct {
	row  *Row
	used bool
}

// BuildJoined links pharmacy and medical claims into the joined dataset.
// A pharmacy claim is the base of each joined row; the matched medical
// claim contributes its diagnosis, place of service and stay dates.
// Pharmacy rows with no medical match are omitted, matching the vendor's
// inner-join output. Row order follows pharmacy file order, so joined row
// indexes are stable given stable inputs.
func BuildJoined(pharmacy, medical *Dataset) *Dataset {
	joined := &Dataset{
		Source:  SourceJoined,
		Columns: make(map[string]bool, len(pharmacy.Columns)+len(medical.Columns)+1),
	}
	for col := range pharmacy.Columns {
		joined.Columns[col] = true
	}
	for col := range medical.Columns {
		joined.Columns[col] = true
	}
	joined.Columns[ColJoinType] = true

	strictIdx := make(map[string][]*medicalRef)
	relaxedIdx := make(map[string][]*medicalRef)
	for i := range medical.Rows {
		ref := &medicalRef{row: &medical.Rows[i]}
		strictIdx[strictKey(ref.row)] = append(strictIdx[strictKey(ref.row)], ref)
		relaxedIdx[relaxedKey(ref.row)] = append(relaxedIdx[relaxedKey(ref.row)], ref)
	}

	for i := range pharmacy.Rows {
		ph := &pharmacy.Rows[i]

		if match := takeFirst(strictIdx[strictKey(ph)]); match != nil {
			joined.Rows = append(joined.Rows, mergeRows(ph, match, JoinStrict))
			continue
		}
		if match := takeNearest(relaxedIdx[relaxedKey(ph)], ph.PrimaryDate()); match != nil {
			joined.Rows = append(joined.Rows, mergeRows(ph, match, JoinRelaxed))
		}
	}

	return joined
}

// drugKey prefers the normalized drug name and falls back to the HCPCS
// code for feeds that omit names on medical claims.
func drugKey(r *Row) string {
	if name := NormalizeDrugName(r.DrugName); name != "" {
		return name
	}
	return NormalizeDrugName(r.DrugHCPCS)
}

func strictKey(r *Row) string {
	return r.PatientID + "\x00" + r.Prescriber() + "\x00" + drugKey(r)
}

func relaxedKey(r *Row) string {
	return r.PatientID + "\x00" + drugKey(r)
}

func takeFirst(refs []*medicalRef) *Row {
	for _, ref := range refs {
		if !ref.used {
			ref.used = true
			return ref.row
		}
	}
	return nil
}

func takeNearest(refs []*medicalRef, anchor time.Time) *Row {
	if anchor.IsZero() {
		return nil
	}
	var best *medicalRef
	bestGap := math.MaxFloat64
	for _, ref := range refs {
		if ref.used {
			continue
		}
		d := ref.row.PrimaryDate()
		if d.IsZero() {
			continue
		}
		gap := math.Abs(anchor.Sub(d).Hours() / 24)
		if gap <= relaxedWindowDays && gap < bestGap {
			best = ref
			bestGap = gap
		}
	}
	if best == nil {
		return nil
	}
	best.used = true
	return best.row
}

func mergeRows(ph *Row, med *Row, joinType string) Row {
	merged := *ph
	merged.ProviderID = med.ProviderID
	merged.DiagnosisPrimary = med.DiagnosisPrimary
	merged.PlaceOfService = med.PlaceOfService
	merged.ServiceFromDate = med.ServiceFromDate
	merged.ServiceToDate = med.ServiceToDate
	merged.AdmissionDate = med.AdmissionDate
	merged.DischargeDate = med.DischargeDate

	merged.Extra = make(map[string]string, len(ph.Extra)+len(med.Extra)+1)
	for k, v := range med.Extra {
		merged.Extra[k] = v
	}
	for k, v := range ph.Extra {
		merged.Extra[k] = v
	}
	merged.Extra[ColJoinType] = joinType

	merged.BadCells = append(append([]BadCell(nil), ph.BadCells...), med.BadCells...)
	return merged
}
