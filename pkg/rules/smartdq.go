package rules

import (
	"fmt"
	"strings"

	"github.com/claimsight-ai/platform/pkg/claims"
)

// maxLengthOfStayDays is the inpatient-stay plausibility ceiling.
const maxLengthOfStayDays = 365

func smartDataQualityRules() []Descriptor {
	return []Descriptor{
		{
			ID:       RuleServiceIntervalReversed,
			Stage:    StageSmartDataQuality,
			Severity: SeverityHigh,
			Columns:  []string{claims.ColServiceFromDate, claims.ColServiceToDate},
			Evaluate: evalServiceIntervalReversed,
		},
		{
			ID:       RuleAdjudicatedBeforeSubmitted,
			Stage:    StageSmartDataQuality,
			Severity: SeverityHigh,
			Columns:  []string{claims.ColSubmissionDate, claims.ColAdjudicationDate},
			Evaluate: evalAdjudicatedBeforeSubmitted,
		},
		{
			ID:       RuleAdmissionAfterDischarge,
			Stage:    StageSmartDataQuality,
			Severity: SeverityHigh,
			Columns:  []string{claims.ColAdmissionDate, claims.ColDischargeDate},
			Evaluate: evalAdmissionAfterDischarge,
		},
		{
			ID:       RuleLengthOfStayExcessive,
			Stage:    StageSmartDataQuality,
			Severity: SeverityMedium,
			Columns:  []string{claims.ColAdmissionDate, claims.ColDischargeDate},
			Evaluate: evalLengthOfStayExcessive,
		},
		{
			ID:       RuleStateZIPMismatch,
			Stage:    StageSmartDataQuality,
			Severity: SeverityMedium,
			Columns:  []string{claims.ColState, claims.ColPatientZIP},
			Evaluate: evalStateZIPMismatch,
		},
		{
			ID:       RuleAllowedExceedsCharge,
			Stage:    StageSmartDataQuality,
			Severity: SeverityHigh,
			Columns:  []string{claims.ColAllowedAmount, claims.ColChargeAmount},
			Evaluate: evalAllowedExceedsCharge,
		},
		{
			ID:       RuleAllowedBelowPaid,
			Stage:    StageSmartDataQuality,
			Severity: SeverityHigh,
			Columns:  []string{claims.ColAllowedAmount, claims.ColPaidAmount},
			Evaluate: evalAllowedBelowPaid,
		},
		{
			ID:       RulePaidAdjustmentExceedsCharge,
			Stage:    StageSmartDataQuality,
			Severity: SeverityHigh,
			Columns:  []string{claims.ColPaidAmount, claims.ColAdjustmentAmount, claims.ColChargeAmount},
			Evaluate: evalPaidAdjustmentExceedsCharge,
		},
		{
			ID:       RuleReversedNonzeroAmount,
			Stage:    StageSmartDataQuality,
			Severity: SeverityHigh,
			Columns: []string{
				claims.ColClaimStatus, claims.ColChargeAmount, claims.ColAllowedAmount,
				claims.ColPaidAmount, claims.ColPatientResp, claims.ColAdjustmentAmount,
			},
			Evaluate: evalReversedNonzeroAmount,
		},
		{
			ID:       RuleDeniedWithPayment,
			Stage:    StageSmartDataQuality,
			Severity: SeverityHigh,
			Columns:  []string{claims.ColClaimStatus, claims.ColPaidAmount},
			Evaluate: evalDeniedWithPayment,
		},
	}
}

func evalServiceIntervalReversed(ctx *Context, row *claims.Row, idx int) []Finding {
	if row.ServiceFromDate.IsZero() || row.ServiceToDate.IsZero() {
		return nil
	}
	if !row.ServiceToDate.Before(row.ServiceFromDate) {
		return nil
	}
	return []Finding{finding(ctx, RuleServiceIntervalReversed, StageSmartDataQuality, idx,
		"Service_To_Date %s is earlier than Service_From_Date %s",
		row.ServiceToDate.Format("2006-01-02"), row.ServiceFromDate.Format("2006-01-02"))}
}

func evalAdjudicatedBeforeSubmitted(ctx *Context, row *claims.Row, idx int) []Finding {
	if row.SubmissionDate.IsZero() || row.AdjudicationDate.IsZero() {
		return nil
	}
	if !row.AdjudicationDate.Before(row.SubmissionDate) {
		return nil
	}
	return []Finding{finding(ctx, RuleAdjudicatedBeforeSubmitted, StageSmartDataQuality, idx,
		"Claim_Adjudication_Date %s precedes Claim_Submission_Date %s",
		row.AdjudicationDate.Format("2006-01-02"), row.SubmissionDate.Format("2006-01-02"))}
}

func evalAdmissionAfterDischarge(ctx *Context, row *claims.Row, idx int) []Finding {
	if row.AdmissionDate.IsZero() || row.DischargeDate.IsZero() {
		return nil
	}
	if !row.AdmissionDate.After(row.DischargeDate) {
		return nil
	}
	return []Finding{finding(ctx, RuleAdmissionAfterDischarge, StageSmartDataQuality, idx,
		"Admission_Date %s is after Discharge_Date %s",
		row.AdmissionDate.Format("2006-01-02"), row.DischargeDate.Format("2006-01-02"))}
}

func evalLengthOfStayExcessive(ctx *Context, row *claims.Row, idx int) []Finding {
	if row.AdmissionDate.IsZero() || row.DischargeDate.IsZero() {
		return nil
	}
	days := int(row.DischargeDate.Sub(row.AdmissionDate).Hours() / 24)
	if days <= maxLengthOfStayDays {
		return nil
	}
	return []Finding{finding(ctx, RuleLengthOfStayExcessive, StageSmartDataQuality, idx,
		"length of stay %d days exceeds %d days", days, maxLengthOfStayDays)}
}

func evalStateZIPMismatch(ctx *Context, row *claims.Row, idx int) []Finding {
	if row.State == "" || row.PatientZIP == "" || row.State == "NY" {
		return nil
	}
	if !ctx.Ref.ZIPInNY(row.PatientZIP) {
		return nil
	}
	return []Finding{finding(ctx, RuleStateZIPMismatch, StageSmartDataQuality, idx,
		"ZIP %s is in the New York range but State is '%s'", row.PatientZIP, row.State)}
}

func evalAllowedExceedsCharge(ctx *Context, row *claims.Row, idx int) []Finding {
	if row.AllowedAmount <= row.ChargeAmount {
		return nil
	}
	return []Finding{finding(ctx, RuleAllowedExceedsCharge, StageSmartDataQuality, idx,
		"Allowed_Amount %.2f exceeds Charge_Amount %.2f", row.AllowedAmount, row.ChargeAmount)}
}

func evalAllowedBelowPaid(ctx *Context, row *claims.Row, idx int) []Finding {
	if row.AllowedAmount >= row.PaidAmount {
		return nil
	}
	return []Finding{finding(ctx, RuleAllowedBelowPaid, StageSmartDataQuality, idx,
		"Allowed_Amount %.2f is less than Paid_Amount %.2f", row.AllowedAmount, row.PaidAmount)}
}

func evalPaidAdjustmentExceedsCharge(ctx *Context, row *claims.Row, idx int) []Finding {
	total := row.PaidAmount + row.AdjustmentAmount
	if total <= row.ChargeAmount {
		return nil
	}
	return []Finding{finding(ctx, RulePaidAdjustmentExceedsCharge, StageSmartDataQuality, idx,
		"Paid_Amount %.2f + Adjustment_Amount %.2f exceeds Charge_Amount %.2f",
		row.PaidAmount, row.AdjustmentAmount, row.ChargeAmount)}
}

func evalReversedNonzeroAmount(ctx *Context, row *claims.Row, idx int) []Finding {
	if row.ClaimStatus != claims.StatusReversed {
		return nil
	}
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
	var nonzero []string
	for _, a := range amounts {
		if a.value != 0 {
			nonzero = append(nonzero, fmt.Sprintf("%s=%.2f", a.col, a.value))
		}
	}
	if len(nonzero) == 0 {
		return nil
	}
	return []Finding{finding(ctx, RuleReversedNonzeroAmount, StageSmartDataQuality, idx,
		"Claim_Status is Reversed but amounts are non-zero: %s", strings.Join(nonzero, ", "))}
}

func evalDeniedWithPayment(ctx *Context, row *claims.Row, idx int) []Finding {
	if row.ClaimStatus != claims.StatusDenied || row.PaidAmount <= 0 {
		return nil
	}
	return []Finding{finding(ctx, RuleDeniedWithPayment, StageSmartDataQuality, idx,
		"Claim_Status is Denied but Paid_Amount is %.2f", row.PaidAmount)}
}
