package rules

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/claimsight-ai/platform/pkg/claims"
)

var (
	icd10Pattern = regexp.MustCompile(`^[A-Z][0-9][0-9A-Z](\.[0-9A-Z]{1,4})?$`)
	hcpcsPattern = regexp.MustCompile(`^([A-Z][0-9]{4}|[0-9]{5})$`)
)

func dataQualityRules() []Descriptor {
	return []Descriptor{
		{
			ID:       RuleUnparseableField,
			Stage:    StageDataQuality,
			Severity: SeverityMedium,
			Evaluate: evalUnparseableField,
		},
		{
			ID:       RuleDuplicateClaimID,
			Stage:    StageDataQuality,
			Severity: SeverityHigh,
			Columns:  []string{claims.ColClaimID},
			Evaluate: evalDuplicateClaimID,
		},
		{
			ID:       RuleNegativeAmount,
			Stage:    StageDataQuality,
			Severity: SeverityHigh,
			Columns: []string{
				claims.ColChargeAmount, claims.ColAllowedAmount, claims.ColPaidAmount,
				claims.ColPatientResp, claims.ColAdjustmentAmount,
			},
			Evaluate: evalNegativeAmount,
		},
		{
			ID:       RuleChargeMagnified,
			Stage:    StageDataQuality,
			Severity: SeverityMedium,
			Columns:  []string{claims.ColChargeAmount},
			Evaluate: evalChargeMagnified,
		},
		{
			ID:       RuleInvalidICD10,
			Stage:    StageDataQuality,
			Severity: SeverityHigh,
			Columns:  []string{claims.ColDiagnosisPrimary},
			Evaluate: evalInvalidICD10,
		},
		{
			ID:       RuleInvalidHCPCS,
			Stage:    StageDataQuality,
			Severity: SeverityHigh,
			Columns:  []string{claims.ColDrugHCPCS},
			Evaluate: evalInvalidHCPCS,
		},
		{
			ID:       RuleInvalidPOS,
			Stage:    StageDataQuality,
			Severity: SeverityMedium,
			Columns:  []string{claims.ColPlaceOfService},
			Evaluate: evalInvalidPOS,
		},
		{
			ID:       RuleAgeOutOfRange,
			Stage:    StageDataQuality,
			Severity: SeverityMedium,
			Columns:  []string{claims.ColPatientAge},
			Evaluate: evalAgeOutOfRange,
		},
		{
			ID:       RuleGenderInvalid,
			Stage:    StageDataQuality,
			Severity: SeverityMedium,
			Columns:  []string{claims.ColPatientGender},
			Evaluate: evalGenderInvalid,
		},
		{
			ID:       RuleDateOutsideWindow,
			Stage:    StageDataQuality,
			Severity: SeverityMedium,
			Evaluate: evalDateOutsideWindow,
		},
		{
			ID:       RuleZIPOutOfState,
			Stage:    StageDataQuality,
			Severity: SeverityMedium,
			Columns:  []string{claims.ColState, claims.ColPatientZIP},
			Evaluate: evalZIPOutOfState,
		},
	}
}

func finding(ctx *Context, rule string, stage Stage, idx int, format string, args ...interface{}) Finding {
	return Finding{
		Stage:       stage,
		Rule:        rule,
		Source:      ctx.Dataset.Source,
		RowIndex:    idx,
		Description: fmt.Sprintf(format, args...),
	}
}

func evalUnparseableField(ctx *Context, row *claims.Row, idx int) []Finding {
	if len(row.BadCells) == 0 {
		return nil
	}
	parts := make([]string, len(row.BadCells))
	for i, cell := range row.BadCells {
		parts[i] = fmt.Sprintf("%s='%s'", cell.Column, cell.Raw)
	}
	return []Finding{finding(ctx, RuleUnparseableField, StageDataQuality, idx,
		"cells could not be coerced to their expected types: %s", strings.Join(parts, ", "))}
}

func evalDuplicateClaimID(ctx *Context, row *claims.Row, idx int) []Finding {
	if row.ClaimID == "" || ctx.ClaimIDCount(row.ClaimID) <= 1 {
		return nil
	}
	return []Finding{finding(ctx, RuleDuplicateClaimID, StageDataQuality, idx,
		"Claim_ID %s appears on %d rows", row.ClaimID, ctx.ClaimIDCount(row.ClaimID))}
}

func evalNegativeAmount(ctx *Context, row *claims.Row, idx int) []Finding {
	amounts := []struct {
		col   string
		value float64
	}{
		{claims.ColChargeAmount, row.ChargeAmount},
		{claims.ColAllowedAmount, row.AllowedAmount},
		{claims.ColPaidAmount, row.PaidAmount},
		{claims.ColPatientResp, row.PatientResponsibility},
		{claims.ColAdjustmentAmount, row.AdjustmentAmount},
	}
	var offending []string
	for _, a := range amounts {
		if a.value < 0 {
			offending = append(offending, fmt.Sprintf("%s=%.2f", a.col, a.value))
		}
	}
	if len(offending) == 0 {
		return nil
	}
	return []Finding{finding(ctx, RuleNegativeAmount, StageDataQuality, idx,
		"negative amounts: %s", strings.Join(offending, ", "))}
}

func evalChargeMagnified(ctx *Context, row *claims.Row, idx int) []Finding {
	median := ctx.PeerMedianCharge(row)
	if median <= 0 || row.ChargeAmount <= median*ctx.Limits.ChargeMultiplier {
		return nil
	}
	return []Finding{finding(ctx, RuleChargeMagnified, StageDataQuality, idx,
		"Charge_Amount %.2f exceeds %.0fx the peer median charge %.2f",
		row.ChargeAmount, ctx.Limits.ChargeMultiplier, median)}
}

func evalInvalidICD10(ctx *Context, row *claims.Row, idx int) []Finding {
	code := row.DiagnosisPrimary
	if code == "" {
		return nil
	}
	for _, invalid := range ctx.Ref.InvalidICD10Codes {
		if code == invalid {
			return []Finding{finding(ctx, RuleInvalidICD10, StageDataQuality, idx,
				"Diagnosis_Code_Primary '%s' is a known-invalid ICD-10 code", code)}
		}
	}
	if !icd10Pattern.MatchString(code) {
		return []Finding{finding(ctx, RuleInvalidICD10, StageDataQuality, idx,
			"Diagnosis_Code_Primary '%s' does not match the ICD-10 code format", code)}
	}
	return nil
}

func evalInvalidHCPCS(ctx *Context, row *claims.Row, idx int) []Finding {
	code := row.DrugHCPCS
	if code == "" {
		return nil
	}
	for _, invalid := range ctx.Ref.InvalidHCPCSCodes {
		if code == invalid {
			return []Finding{finding(ctx, RuleInvalidHCPCS, StageDataQuality, idx,
				"Drug_HCPCS_Code '%s' is a known-invalid HCPCS code", code)}
		}
	}
	if !hcpcsPattern.MatchString(code) {
		return []Finding{finding(ctx, RuleInvalidHCPCS, StageDataQuality, idx,
			"Drug_HCPCS_Code '%s' does not match the HCPCS code format", code)}
	}
	return nil
}

func evalInvalidPOS(ctx *Context, row *claims.Row, idx int) []Finding {
	code := row.PlaceOfService
	if code == "" {
		return nil
	}
	for _, valid := range ctx.Ref.ValidPlaceOfService {
		if code == valid {
			return nil
		}
	}
	return []Finding{finding(ctx, RuleInvalidPOS, StageDataQuality, idx,
		"Place_of_Service_Code '%s' is not an enumerated CMS place-of-service code", code)}
}

func evalAgeOutOfRange(ctx *Context, row *claims.Row, idx int) []Finding {
	if row.PatientAge >= 0 && row.PatientAge <= 120 {
		return nil
	}
	return []Finding{finding(ctx, RuleAgeOutOfRange, StageDataQuality, idx,
		"Patient_Age %d is outside the plausible range [0, 120]", row.PatientAge)}
}

func evalGenderInvalid(ctx *Context, row *claims.Row, idx int) []Finding {
	if row.PatientGender == "" || row.PatientGender == "M" || row.PatientGender == "F" {
		return nil
	}
	return []Finding{finding(ctx, RuleGenderInvalid, StageDataQuality, idx,
		"Patient_Gender '%s' is not in {M, F}", row.PatientGender)}
}

func evalDateOutsideWindow(ctx *Context, row *claims.Row, idx int) []Finding {
	dates := row.ClaimDates()
	var offending []string
	for col, date := range dates {
		if date.Before(ctx.Limits.DateWindowStart) || date.After(ctx.Limits.DateWindowEnd) {
			offending = append(offending, fmt.Sprintf("%s=%s", col, date.Format("2006-01-02")))
		}
	}
	if len(offending) == 0 {
		return nil
	}
	sort.Strings(offending)
	return []Finding{finding(ctx, RuleDateOutsideWindow, StageDataQuality, idx,
		"claim dates outside the study window [%s, %s]: %s",
		ctx.Limits.DateWindowStart.Format("2006-01-02"),
		ctx.Limits.DateWindowEnd.Format("2006-01-02"),
		strings.Join(offending, ", "))}
}

func evalZIPOutOfState(ctx *Context, row *claims.Row, idx int) []Finding {
	if row.State != "NY" || row.PatientZIP == "" {
		return nil
	}
	if ctx.Ref.ZIPInNY(row.PatientZIP) {
		return nil
	}
	return []Finding{finding(ctx, RuleZIPOutOfState, StageDataQuality, idx,
		"State is NY but ZIP %s is not in the New York ZIP range", row.PatientZIP)}
}
