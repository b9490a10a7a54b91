package rules

import (
	"errors"
	"io/ioutil"
	"path/filepath"

	"github.com/claimsight-ai/platform/pkg/claims"
	"gopkg.in/yaml.v3"
)

// Reference holds the static clinical lookup tables the business rules
// read. Drug keys are stored normalized; Lookup helpers normalize their
// input so callers never have to.
type Reference struct {
	FemaleOnlyDiagnosisPrefixes []string            `yaml:"female_only_diagnosis_prefixes" json:"female_only_diagnosis_prefixes"`
	MaleOnlyDiagnosisPrefixes   []string            `yaml:"male_only_diagnosis_prefixes" json:"male_only_diagnosis_prefixes"`
	MaleOnlyDrugs               []string            `yaml:"male_only_drugs" json:"male_only_drugs"`
	FemaleAssociatedDrugs       []string            `yaml:"female_associated_drugs" json:"female_associated_drugs"`
	DrugDiagnosisFamilies       map[string][]string `yaml:"drug_diagnosis_families" json:"drug_diagnosis_families"`
	DrugMinimumAges             map[string]int      `yaml:"drug_minimum_ages" json:"drug_minimum_ages"`
	PediatricAgeThreshold       int                 `yaml:"pediatric_age_threshold" json:"pediatric_age_threshold"`

	InvalidICD10Codes    []string `yaml:"invalid_icd10_codes" json:"invalid_icd10_codes"`
	InvalidHCPCSCodes    []string `yaml:"invalid_hcpcs_codes" json:"invalid_hcpcs_codes"`
	ValidPlaceOfService  []string `yaml:"valid_place_of_service" json:"valid_place_of_service"`
	NYZIPPrefixes        []string `yaml:"ny_zip_prefixes" json:"ny_zip_prefixes"`
}

// LoadReference reads the reference tables from YAML, falling back to
// the built-in defaults when no path is configured. On any failure the
// returned Reference is the usable default set alongside the error, so
// callers that only warn never run with nil tables.
func LoadReference(path string) (*Reference, error) {
	if path == "" {
		return DefaultReference(), nil
	}
	content, err := ioutil.ReadFile(filepath.Clean(path))
	if err != nil {
		return DefaultReference(), err
	}

	var ref Reference
	if err := yaml.Unmarshal(content, &ref); err != nil {
		return DefaultReference(), err
	}
	if len(ref.FemaleOnlyDiagnosisPrefixes) == 0 && len(ref.DrugDiagnosisFamilies) == 0 {
		return DefaultReference(), errors.New("reference tables empty")
	}
	ref.normalize()
	return &ref, nil
}

func (r *Reference) normalize() {
	for i, d := range r.MaleOnlyDrugs {
		r.MaleOnlyDrugs[i] = claims.NormalizeDrugName(d)
	}
	for i, d := range r.FemaleAssociatedDrugs {
		r.FemaleAssociatedDrugs[i] = claims.NormalizeDrugName(d)
	}
	families := make(map[string][]string, len(r.DrugDiagnosisFamilies))
	for drug, prefixes := range r.DrugDiagnosisFamilies {
		families[claims.NormalizeDrugName(drug)] = prefixes
	}
	r.DrugDiagnosisFamilies = families
	ages := make(map[string]int, len(r.DrugMinimumAges))
	for drug, age := range r.DrugMinimumAges {
		ages[claims.NormalizeDrugName(drug)] = age
	}
	r.DrugMinimumAges = ages
}

// IsMaleOnlyDrug reports whether the drug is typically male-only urology
// therapy. The input need not be pre-normalized.
func (r *Reference) IsMaleOnlyDrug(name string) bool {
	return containsDrug(r.MaleOnlyDrugs, name)
}

// IsFemaleAssociatedDrug reports whether the drug is associated with
// female oncology or endocrine care.
func (r *Reference) IsFemaleAssociatedDrug(name string) bool {
	return containsDrug(r.FemaleAssociatedDrugs, name)
}

// ExpectedDiagnosisPrefixes returns the diagnosis family the drug is
// expected to treat.
func (r *Reference) ExpectedDiagnosisPrefixes(name string) ([]string, bool) {
	prefixes, ok := r.DrugDiagnosisFamilies[claims.NormalizeDrugName(name)]
	return prefixes, ok
}

// MinimumAge returns the configured minimum patient age for the drug.
func (r *Reference) MinimumAge(name string) (int, bool) {
	age, ok := r.DrugMinimumAges[claims.NormalizeDrugName(name)]
	return age, ok
}

func containsDrug(list []string, name string) bool {
	normalized := claims.NormalizeDrugName(name)
	for _, d := range list {
		if d == normalized {
			return true
		}
	}
	return false
}

// DefaultReference mirrors the documented NY oncology rule set.
func DefaultReference() *Reference {
	urologyDrugs := []string{"tamsulosin", "finasteride", "dutasteride", "alfuzosin", "silodosin"}
	prostateFamily := []string{"N40", "C61", "Z12.5"}
	breastFamily := []string{"C50", "Z17"}

	minimumAges := make(map[string]int, len(urologyDrugs))
	families := make(map[string][]string)
	for _, drug := range urologyDrugs {
		minimumAges[drug] = 13
		families[drug] = prostateFamily
	}
	for _, drug := range []string{"tamoxifen", "letrozole", "anastrozole"} {
		families[drug] = breastFamily
	}

	nyPrefixes := []string{"004", "005"}
	for p := 100; p <= 149; p++ {
		nyPrefixes = append(nyPrefixes, formatPrefix(p))
	}

	return &Reference{
		FemaleOnlyDiagnosisPrefixes: []string{"O", "Z34", "Z12.31", "N60", "N63"},
		MaleOnlyDiagnosisPrefixes:   []string{"C61", "N40", "Z12.5"},
		MaleOnlyDrugs:               urologyDrugs,
		FemaleAssociatedDrugs:       []string{"tamoxifen", "letrozole", "anastrozole", "clomiphene", "medroxyprogesterone"},
		DrugDiagnosisFamilies:       families,
		DrugMinimumAges:             minimumAges,
		PediatricAgeThreshold:       13,

		InvalidICD10Codes: []string{"X999"},
		InvalidHCPCSCodes: []string{"ZZZ99"},
		ValidPlaceOfService: []string{
			"01", "02", "04", "09", "11", "12", "13", "14", "15", "17", "19", "20",
			"21", "22", "23", "24", "25", "26", "31", "32", "33", "34", "41", "42",
			"49", "50", "51", "52", "53", "54", "55", "56", "60", "61", "62", "65",
			"71", "72", "81",
		},
		NYZIPPrefixes: nyPrefixes,
	}
}

func formatPrefix(p int) string {
	digits := []byte{'0', '0', '0'}
	for i := 2; i >= 0 && p > 0; i-- {
		digits[i] = byte('0' + p%10)
		p /= 10
	}
	return string(digits)
}

// ZIPInNY reports whether the ZIP's three-digit prefix belongs to the
// New York range.
func (r *Reference) ZIPInNY(zip string) bool {
	if len(zip) < 3 {
		return false
	}
	prefix := zip[:3]
	for _, p := range r.NYZIPPrefixes {
		if p == prefix {
			return true
		}
	}
	return false
}
