package claims

import "strings"

// NormalizeDrugName canonicalizes a drug name before any lookup or join:
// trim, lowercase, collapse internal whitespace. The joiner and the
// business rules must agree on this, so it lives here and nowhere else.
func NormalizeDrugName(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(name)), " ")
}
