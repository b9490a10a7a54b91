package claims

import (
	"fmt"
	"strings"
	"time"
)

// Source identifies which dataset a row came from.
type Source string

const (
	SourcePharmacy Source = "pharmacy"
	SourceMedical  Source = "medical"
	SourceJoined   Source = "joined"
)

// ParseSource maps external dataset names (including legacy synonyms such
// as "join") onto the closed Source set.
func ParseSource(name string) (Source, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "pharmacy":
		return SourcePharmacy, nil
	case "medical":
		return SourceMedical, nil
	case "joined", "join":
		return SourceJoined, nil
	}
	return "", fmt.Errorf("unknown dataset source '%s'", name)
}

// Claim status values as they appear in the vendor files.
const (
	StatusPaid     = "Paid"
	StatusDenied   = "Denied"
	StatusReversed = "Reversed"
	StatusPending  = "Pending"
)

// Column names shared by the schema registry, the CSV provider and the
// rule declarations.
const (
	ColPatientID            = "Patient_ID"
	ColClaimID              = "Claim_ID"
	ColProviderID           = "Provider_ID"
	ColPrescriberNPI        = "Prescriber_NPI"
	ColDrugName             = "Drug_Name"
	ColDrugHCPCS            = "Drug_HCPCS_Code"
	ColDiagnosisPrimary     = "Diagnosis_Code_Primary"
	ColPlaceOfService       = "Place_of_Service_Code"
	ColFillDate             = "Fill_Date"
	ColServiceFromDate      = "Service_From_Date"
	ColServiceToDate        = "Service_To_Date"
	ColSubmissionDate       = "Claim_Submission_Date"
	ColAdjudicationDate     = "Claim_Adjudication_Date"
	ColAdmissionDate        = "Admission_Date"
	ColDischargeDate        = "Discharge_Date"
	ColChargeAmount         = "Charge_Amount"
	ColAllowedAmount        = "Allowed_Amount"
	ColPaidAmount           = "Paid_Amount"
	ColPatientResp          = "Patient_Responsibility"
	ColAdjustmentAmount     = "Adjustment_Amount"
	ColQuantity             = "Quantity"
	ColDaysSupply           = "Days_Supply"
	ColClaimStatus          = "Claim_Status"
	ColPatientAge           = "Patient_Age"
	ColPatientGender        = "Patient_Gender"
	ColPatientZIP           = "Patient_ZIP"
	ColState                = "State"
)

// BadCell records a cell that could not be coerced to its expected type.
// The row is still processed; a data-quality finding is raised for it.
type BadCell struct {
	Column string
	Raw    string
}

// Row is one claim record with a fixed typed schema. Columns outside the
// schema are preserved in Extra for forward compatibility. Zero values
// mean the cell was empty or the column absent from the file.
type Row struct {
	PatientID     string
	ClaimID       string
	ProviderID    string
	PrescriberNPI string

	DrugName         string
	DrugHCPCS        string
	DiagnosisPrimary string
	PlaceOfService   string

	FillDate         time.Time
	ServiceFromDate  time.Time
	ServiceToDate    time.Time
	SubmissionDate   time.Time
	AdjudicationDate time.Time
	AdmissionDate    time.Time
	DischargeDate    time.Time

	ChargeAmount          float64
	AllowedAmount         float64
	PaidAmount            float64
	PatientResponsibility float64
	AdjustmentAmount      float64
	Quantity              float64
	DaysSupply            float64

	PatientAge    int
	PatientGender string
	PatientZIP    string
	State         string
	ClaimStatus   string

	Extra    map[string]string
	BadCells []BadCell
}

// Prescriber returns whichever provider identifier the row carries.
func (r *Row) Prescriber() string {
	if r.PrescriberNPI != "" {
		return r.PrescriberNPI
	}
	return r.ProviderID
}

// ClaimDates lists every populated date on the row, labelled by column.
func (r *Row) ClaimDates() map[string]time.Time {
	dates := make(map[string]time.Time, 7)
	add := func(col string, t time.Time) {
		if !t.IsZero() {
			dates[col] = t
		}
	}
	add(ColFillDate, r.FillDate)
	add(ColServiceFromDate, r.ServiceFromDate)
	add(ColServiceToDate, r.ServiceToDate)
	add(ColSubmissionDate, r.SubmissionDate)
	add(ColAdjudicationDate, r.AdjudicationDate)
	add(ColAdmissionDate, r.AdmissionDate)
	add(ColDischargeDate, r.DischargeDate)
	return dates
}

// PrimaryDate is the service anchor used for cohort rollups: fill date
// for pharmacy rows, service-from for medical rows.
func (r *Row) PrimaryDate() time.Time {
	if !r.FillDate.IsZero() {
		return r.FillDate
	}
	return r.ServiceFromDate
}

// Dataset is an immutable, ordered snapshot of one source file. Row order
// is stable: row index equals the 0-based position in the file.
type Dataset struct {
	Source  Source
	Rows    []Row
	Columns map[string]bool
}

// Has reports whether every named column was present in the source file.
func (d *Dataset) Has(cols ...string) bool {
	for _, col := range cols {
		if !d.Columns[col] {
			return false
		}
	}
	return true
}
