package ledger

import "github.com/claimsight-ai/platform/pkg/rules"

// DisplayStage maps internal stage values onto the names the dashboard
// shows. Everything inside the pipeline uses the enum; only the serving
// surface speaks these strings.
func DisplayStage(s rules.Stage) string {
	switch s {
	case rules.StageDataQuality:
		return "Data Quality"
	case rules.StageSmartDataQuality:
		return "Smart Data Quality"
	case rules.StageBusiness:
		return "Business"
	case rules.StageAnalytics:
		return "Pharmacy Analytics"
	}
	return "Unknown"
}

// ParseDisplayStage accepts either a display name or the internal enum
// name, for query parameters.
func ParseDisplayStage(name string) (rules.Stage, bool) {
	for _, s := range rules.Stages() {
		if name == DisplayStage(s) || name == s.String() {
			return s, true
		}
	}
	return 0, false
}
