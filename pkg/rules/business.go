package rules

import (
	"strings"

	"github.com/claimsight-ai/platform/pkg/claims"
)

func businessRules() []Descriptor {
	return []Descriptor{
		{
			ID:       RuleMaleFemaleDiagnosis,
			Stage:    StageBusiness,
			Severity: SeverityCritical,
			Columns:  []string{claims.ColPatientGender, claims.ColDiagnosisPrimary},
			Evaluate: evalMaleFemaleDiagnosis,
		},
		{
			ID:       RuleFemaleMaleDiagnosis,
			Stage:    StageBusiness,
			Severity: SeverityCritical,
			Columns:  []string{claims.ColPatientGender, claims.ColDiagnosisPrimary},
			Evaluate: evalFemaleMaleDiagnosis,
		},
		{
			ID:       RuleFemaleMaleDrug,
			Stage:    StageBusiness,
			Severity: SeverityHigh,
			Columns:  []string{claims.ColPatientGender, claims.ColDrugName},
			Evaluate: evalFemaleMaleDrug,
		},
		{
			ID:       RuleMaleFemaleDrug,
			Stage:    StageBusiness,
			Severity: SeverityHigh,
			Columns:  []string{claims.ColPatientGender, claims.ColDrugName},
			Evaluate: evalMaleFemaleDrug,
		},
		{
			ID:       RuleDrugDiagnosisMismatch,
			Stage:    StageBusiness,
			Severity: SeverityHigh,
			Columns:  []string{claims.ColDrugName, claims.ColDiagnosisPrimary},
			Evaluate: evalDrugDiagnosisMismatch,
		},
		{
			ID:       RulePediatricUrologyDrug,
			Stage:    StageBusiness,
			Severity: SeverityCritical,
			Columns:  []string{claims.ColPatientAge, claims.ColDrugName},
			Evaluate: evalPediatricUrologyDrug,
		},
	}
}

func matchesAnyPrefix(code string, prefixes []string) (string, bool) {
	for _, prefix := range prefixes {
		if strings.HasPrefix(code, prefix) {
			return prefix, true
		}
	}
	return "", false
}

func evalMaleFemaleDiagnosis(ctx *Context, row *claims.Row, idx int) []Finding {
	if row.PatientGender != "M" || row.DiagnosisPrimary == "" {
		return nil
	}
	prefix, ok := matchesAnyPrefix(row.DiagnosisPrimary, ctx.Ref.FemaleOnlyDiagnosisPrefixes)
	if !ok {
		return nil
	}
	return []Finding{finding(ctx, RuleMaleFemaleDiagnosis, StageBusiness, idx,
		"male patient with female-only diagnosis %s (family %s)", row.DiagnosisPrimary, prefix)}
}

func evalFemaleMaleDiagnosis(ctx *Context, row *claims.Row, idx int) []Finding {
	if row.PatientGender != "F" || row.DiagnosisPrimary == "" {
		return nil
	}
	prefix, ok := matchesAnyPrefix(row.DiagnosisPrimary, ctx.Ref.MaleOnlyDiagnosisPrefixes)
	if !ok {
		return nil
	}
	return []Finding{finding(ctx, RuleFemaleMaleDiagnosis, StageBusiness, idx,
		"female patient with male-only diagnosis %s (family %s)", row.DiagnosisPrimary, prefix)}
}

func evalFemaleMaleDrug(ctx *Context, row *claims.Row, idx int) []Finding {
	if row.PatientGender != "F" || !ctx.Ref.IsMaleOnlyDrug(row.DrugName) {
		return nil
	}
	return []Finding{finding(ctx, RuleFemaleMaleDrug, StageBusiness, idx,
		"female patient on male-only urology drug '%s'", row.DrugName)}
}

func evalMaleFemaleDrug(ctx *Context, row *claims.Row, idx int) []Finding {
	if row.PatientGender != "M" || !ctx.Ref.IsFemaleAssociatedDrug(row.DrugName) {
		return nil
	}
	return []Finding{finding(ctx, RuleMaleFemaleDrug, StageBusiness, idx,
		"male patient on female-associated drug '%s'", row.DrugName)}
}

func evalDrugDiagnosisMismatch(ctx *Context, row *claims.Row, idx int) []Finding {
	if row.DrugName == "" || row.DiagnosisPrimary == "" {
		return nil
	}
	expected, ok := ctx.Ref.ExpectedDiagnosisPrefixes(row.DrugName)
	if !ok {
		return nil
	}
	if _, matched := matchesAnyPrefix(row.DiagnosisPrimary, expected); matched {
		return nil
	}
	return []Finding{finding(ctx, RuleDrugDiagnosisMismatch, StageBusiness, idx,
		"drug '%s' is not paired with its expected diagnosis family %s (got %s)",
		row.DrugName, strings.Join(expected, "/"), row.DiagnosisPrimary)}
}

func evalPediatricUrologyDrug(ctx *Context, row *claims.Row, idx int) []Finding {
	minAge, ok := ctx.Ref.MinimumAge(row.DrugName)
	if !ok {
		// Urology drugs without an explicit entry fall back to the
		// table-wide pediatric threshold.
		if !ctx.Ref.IsMaleOnlyDrug(row.DrugName) || ctx.Ref.PediatricAgeThreshold <= 0 {
			return nil
		}
		minAge = ctx.Ref.PediatricAgeThreshold
	}
	if row.PatientAge < 0 || row.PatientAge >= minAge {
		return nil
	}
	return []Finding{finding(ctx, RulePediatricUrologyDrug, StageBusiness, idx,
		"patient age %d is below the minimum age %d for adult urology drug '%s'",
		row.PatientAge, minAge, row.DrugName)}
}
