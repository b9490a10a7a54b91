// Package rules declares every detection check as a descriptor in a
// fixed, ordered registry. Evaluation order is part of the product
// contract: anomaly identifiers depend on it.
package rules

import (
	"time"

	"github.com/claimsight-ai/platform/pkg/claims"
)

// Stage is the closed set of detection stages. Display names for the
// dashboard live at the service boundary, never here.
type Stage int

const (
	StageDataQuality Stage = iota
	StageSmartDataQuality
	StageBusiness
	StageAnalytics
)

func (s Stage) String() string {
	switch s {
	case StageDataQuality:
		return "DataQuality"
	case StageSmartDataQuality:
		return "SmartDataQuality"
	case StageBusiness:
		return "Business"
	case StageAnalytics:
		return "Analytics"
	}
	return "Unknown"
}

// Stages lists the stages in pipeline order.
func Stages() []Stage {
	return []Stage{StageDataQuality, StageSmartDataQuality, StageBusiness, StageAnalytics}
}

type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

type Granularity int

const (
	GranularityRow Granularity = iota
	GranularityCohort
)

// Finding is one raw rule hit, before the aggregator assigns an anomaly
// identifier. RowIndex is -1 for dataset- and cohort-level findings, in
// which case Cohort carries the peer-group key instead.
type Finding struct {
	Stage       Stage
	Rule        string
	Source      claims.Source
	RowIndex    int
	Cohort      string
	Description string
}

// RowEvaluator checks a single row. Implementations must be pure: no
// shared mutable state beyond the read-only Context.
type RowEvaluator func(ctx *Context, row *claims.Row, idx int) []Finding

// Descriptor is one registered rule. Columns lists the typed columns the
// evaluator reads; the rule is skipped for datasets missing any of them.
type Descriptor struct {
	ID          string
	Stage       Stage
	Granularity Granularity
	Severity    Severity
	Columns     []string
	Evaluate    RowEvaluator
}

// Rule identifiers. Stable across runs; anomaly identity depends on them.
const (
	RuleMissingColumns     = "missing_columns"
	RuleUnparseableField   = "unparseable_field"
	RuleDuplicateClaimID   = "duplicate_claim_id"
	RuleNegativeAmount     = "negative_amount"
	RuleChargeMagnified    = "charge_magnified"
	RuleInvalidICD10       = "invalid_icd10"
	RuleInvalidHCPCS       = "invalid_hcpcs"
	RuleInvalidPOS         = "invalid_pos"
	RuleAgeOutOfRange      = "age_out_of_range"
	RuleGenderInvalid      = "gender_invalid"
	RuleDateOutsideWindow  = "date_outside_window"
	RuleZIPOutOfState      = "zip_out_of_state"

	RuleServiceIntervalReversed    = "service_interval_reversed"
	RuleAdjudicatedBeforeSubmitted = "adjudicated_before_submitted"
	RuleAdmissionAfterDischarge    = "admission_after_discharge"
	RuleLengthOfStayExcessive      = "length_of_stay_excessive"
	RuleStateZIPMismatch           = "state_zip_mismatch"
	RuleAllowedExceedsCharge       = "allowed_exceeds_charge"
	RuleAllowedBelowPaid           = "allowed_below_paid"
	RulePaidAdjustmentExceedsCharge = "paid_plus_adjustment_exceeds_charge"
	RuleReversedNonzeroAmount      = "reversed_nonzero_amount"
	RuleDeniedWithPayment          = "denied_with_payment"

	RuleMaleFemaleDiagnosis    = "male_female_diagnosis_mismatch"
	RuleFemaleMaleDiagnosis    = "female_male_diagnosis_mismatch"
	RuleFemaleMaleDrug         = "female_male_drug_mismatch"
	RuleMaleFemaleDrug         = "male_female_drug_mismatch"
	RuleDrugDiagnosisMismatch  = "drug_diagnosis_mismatch"
	RulePediatricUrologyDrug   = "pediatric_adult_urology_drug"

	RuleRepeatedClaim        = "repeated_claim"
	RuleAbnormalQuantity     = "abnormal_quantity"
	RuleInactivityGap        = "provider_inactivity_gap"
	RuleClaimBurst           = "provider_claim_burst"
	RuleMonthlyZScore        = "monthly_zscore_outlier"
	RuleVendorRevisionDelta  = "vendor_revision_delta"
	RulePeerZMADOutlier      = "peer_zmad_outlier"
	RulePeerIQROutlier       = "peer_iqr_outlier"
	RuleIsolationForest      = "isolation_forest_outlier"
)

// Thresholds carries the row-rule tunables out of the detection config.
type Thresholds struct {
	ChargeMultiplier float64
	DateWindowStart  time.Time
	DateWindowEnd    time.Time
}

// Registry returns every row-granularity rule in declared evaluation
// order: data quality, then cross-field, then business. The analytics
// stage runs through the outlier detectors, in the runner's declared
// order, under the same rule identifier scheme.
func Registry() []Descriptor {
	var out []Descriptor
	out = append(out, dataQualityRules()...)
	out = append(out, smartDataQualityRules()...)
	out = append(out, businessRules()...)
	return out
}
