package outlier

import (
	"fmt"
	"sort"
	"time"

	"github.com/claimsight-ai/platform/pkg/claims"
	"github.com/claimsight-ai/platform/pkg/rules"
)

// ActivityOptions tunes the per-provider temporal detectors.
type ActivityOptions struct {
	// GapDays is the minimum quiet stretch between two consecutive
	// claims that counts as an inactivity gap.
	GapDays int
	// BurstWindowDays and BurstCount define a burst: BurstCount or more
	// claims inside a sliding window of BurstWindowDays.
	BurstWindowDays int
	BurstCount      int
}

// ProviderActivity scans each provider's claim-date timeline for long
// inactivity gaps followed by renewed billing, and for short bursts of
// claims. Both patterns are cohort findings keyed by provider.
func ProviderActivity(ds *claims.Dataset, opts ActivityOptions) []rules.Finding {
	byProvider := make(map[string][]time.Time)
	for i := range ds.Rows {
		row := &ds.Rows[i]
		provider := row.Prescriber()
		date := row.PrimaryDate()
		if provider == "" || date.IsZero() {
			continue
		}
		byProvider[provider] = append(byProvider[provider], date)
	}

	providers := make([]string, 0, len(byProvider))
	for p := range byProvider {
		providers = append(providers, p)
	}
	sort.Strings(providers)

	var findings []rules.Finding
	for _, provider := range providers {
		dates := byProvider[provider]
		sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })

		findings = append(findings, inactivityGaps(ds.Source, provider, dates, opts.GapDays)...)
		findings = append(findings, claimBursts(ds.Source, provider, dates, opts)...)
	}
	return findings
}

func inactivityGaps(source claims.Source, provider string, dates []time.Time, gapDays int) []rules.Finding {
	var findings []rules.Finding
	for i := 1; i < len(dates); i++ {
		gap := int(dates[i].Sub(dates[i-1]).Hours() / 24)
		if gap < gapDays {
			continue
		}
		findings = append(findings, rules.Finding{
			Stage:    rules.StageAnalytics,
			Rule:     rules.RuleInactivityGap,
			Source:   source,
			RowIndex: -1,
			Cohort:   provider + "|" + dates[i-1].Format("2006-01-02"),
			Description: fmt.Sprintf(
				"provider %s resumed billing on %s after %d days of inactivity since %s",
				provider, dates[i].Format("2006-01-02"), gap, dates[i-1].Format("2006-01-02")),
		})
	}
	return findings
}

// claimBursts reports windows holding an unusual density of claims. Once
// a window is flagged the scan resumes past it so one hot stretch does
// not produce a finding per claim.
func claimBursts(source claims.Source, provider string, dates []time.Time, opts ActivityOptions) []rules.Finding {
	if opts.BurstCount <= 0 {
		return nil
	}
	window := time.Duration(opts.BurstWindowDays) * 24 * time.Hour

	var findings []rules.Finding
	for start := 0; start+opts.BurstCount <= len(dates); {
		end := start
		for end+1 < len(dates) && dates[end+1].Sub(dates[start]) <= window {
			end++
		}
		count := end - start + 1
		if count < opts.BurstCount {
			start++
			continue
		}
		findings = append(findings, rules.Finding{
			Stage:    rules.StageAnalytics,
			Rule:     rules.RuleClaimBurst,
			Source:   source,
			RowIndex: -1,
			Cohort:   provider + "|" + dates[start].Format("2006-01-02"),
			Description: fmt.Sprintf(
				"provider %s filed %d claims within %d days starting %s",
				provider, count, opts.BurstWindowDays, dates[start].Format("2006-01-02")),
		})
		start = end + 1
	}
	return findings
}
