package detect

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/claimsight-ai/platform/pkg/claims"
	"github.com/claimsight-ai/platform/pkg/common/logger"
	"github.com/claimsight-ai/platform/pkg/ledger"
	"github.com/claimsight-ai/platform/pkg/outlier"
	"github.com/claimsight-ai/platform/pkg/rules"
	"github.com/claimsight-ai/platform/pkg/schema"
	"github.com/claimsight-ai/platform/pkg/stats"
)

// sourceOrder fixes the dataset evaluation order inside every rule.
var sourceOrder = []claims.Source{claims.SourcePharmacy, claims.SourceMedical, claims.SourceJoined}

// Inputs are the datasets of one run. Pharmacy is mandatory; the rest
// are optional and simply skipped when nil.
type Inputs struct {
	Pharmacy *claims.Dataset
	Medical  *claims.Dataset
	Joined   *claims.Dataset

	// Revision is an earlier vendor cut of the pharmacy file, used only
	// by the revision-delta detector.
	Revision *claims.Dataset
}

func (in Inputs) dataset(source claims.Source) *claims.Dataset {
	switch source {
	case claims.SourcePharmacy:
		return in.Pharmacy
	case claims.SourceMedical:
		return in.Medical
	case claims.SourceJoined:
		return in.Joined
	}
	return nil
}

// Result is one completed run.
type Result struct {
	Ledger      *ledger.Ledger
	StartedAt   time.Time
	CompletedAt time.Time

	// RowCounts records the evaluated row count per source dataset, so
	// downstream health statistics can relate anomalies to dataset size.
	RowCounts map[claims.Source]int

	// RulePanics counts evaluator panics that were recovered and logged.
	// The affected row keeps its other findings.
	RulePanics int
}

// Runner executes the four detection stages in declared order.
type Runner struct {
	cfg *Config
	ref *rules.Reference
}

func NewRunner(cfg *Config, ref *rules.Reference) *Runner {
	return &Runner{cfg: cfg, ref: ref}
}

// Run evaluates every stage over the inputs and builds the ledger. The
// finding order, and therefore every anomaly identifier, is fully
// determined by the inputs and the config.
func (r *Runner) Run(ctx context.Context, in Inputs) (*Result, error) {
	if err := r.cfg.Validate(); err != nil {
		return nil, err
	}
	if in.Pharmacy == nil {
		return nil, errors.New("pharmacy dataset is required")
	}

	result := &Result{
		StartedAt: time.Now().UTC(),
		RowCounts: make(map[claims.Source]int),
	}
	for _, source := range sourceOrder {
		if ds := in.dataset(source); ds != nil {
			result.RowCounts[source] = len(ds.Rows)
		}
	}
	var findings []rules.Finding

	findings = append(findings, r.schemaFindings(in)...)
	rowFindings, panics := r.rowStages(ctx, in)
	findings = append(findings, rowFindings...)
	result.RulePanics = panics

	analyticsFindings, err := r.analyticsStage(ctx, in)
	if err != nil {
		return nil, err
	}
	findings = append(findings, analyticsFindings...)

	result.Ledger = ledger.Build(findings)
	result.CompletedAt = time.Now().UTC()

	logger.WithFields(logrus.Fields{
		"anomalies":   result.Ledger.Len(),
		"rule_panics": result.RulePanics,
		"duration":    result.CompletedAt.Sub(result.StartedAt).String(),
	}).Info("detection run completed")
	return result, nil
}

// schemaFindings emits one dataset-level finding per dataset with
// missing required columns. These lead the data-quality stage so their
// identifiers precede every row finding.
func (r *Runner) schemaFindings(in Inputs) []rules.Finding {
	var findings []rules.Finding
	for _, source := range sourceOrder {
		ds := in.dataset(source)
		if ds == nil {
			continue
		}
		drift := schema.Validate(ds)
		if drift == nil {
			continue
		}
		logger.WithFields(logrus.Fields{
			"source":  string(source),
			"columns": drift.Columns,
		}).Warn("schema drift detected")
		findings = append(findings, rules.Finding{
			Stage:       rules.StageDataQuality,
			Rule:        rules.RuleMissingColumns,
			Source:      source,
			RowIndex:    -1,
			Description: drift.Description(),
		})
	}
	return findings
}

// rowStages runs every registered row rule over every dataset. Rules
// reading columns a dataset never had are skipped for that dataset
// rather than flagged per row.
func (r *Runner) rowStages(ctx context.Context, in Inputs) ([]rules.Finding, int) {
	limits := r.cfg.Thresholds()

	contexts := make(map[claims.Source]*rules.Context)
	for _, source := range sourceOrder {
		if ds := in.dataset(source); ds != nil {
			contexts[source] = rules.NewContext(ds, r.ref, limits)
		}
	}

	var findings []rules.Finding
	panics := 0
	for _, desc := range rules.Registry() {
		for _, source := range sourceOrder {
			rctx := contexts[source]
			if rctx == nil {
				continue
			}
			ds := rctx.Dataset
			if len(desc.Columns) > 0 && !ds.Has(desc.Columns...) {
				logger.WithFields(logrus.Fields{
					"rule":   desc.ID,
					"source": string(source),
				}).Debug("rule skipped, dataset lacks required columns")
				continue
			}
			for i := range ds.Rows {
				hits, panicked := evalRow(desc, rctx, &ds.Rows[i], i)
				if panicked {
					panics++
				}
				findings = append(findings, hits...)
			}
		}
	}
	return findings, panics
}

// evalRow shields the pipeline from a misbehaving evaluator. A panic is
// logged with enough context to reproduce and costs only that one
// rule-row evaluation.
func evalRow(desc rules.Descriptor, rctx *rules.Context, row *claims.Row, idx int) (hits []rules.Finding, panicked bool) {
	defer func() {
		if rec := recover(); rec != nil {
			panicked = true
			hits = nil
			logger.WithFields(logrus.Fields{
				"rule":      desc.ID,
				"source":    string(rctx.Dataset.Source),
				"row_index": idx,
				"panic":     fmt.Sprintf("%v", rec),
			}).Error("rule evaluator panicked")
		}
	}()
	return desc.Evaluate(rctx, row, idx), false
}

// analyticsStage runs the cohort detectors in declared order. Peer
// metrics come from the joined dataset when present, otherwise from
// pharmacy alone.
func (r *Runner) analyticsStage(ctx context.Context, in Inputs) ([]rules.Finding, error) {
	var findings []rules.Finding

	for _, source := range sourceOrder {
		ds := in.dataset(source)
		if ds == nil {
			continue
		}
		findings = append(findings, outlier.RepeatedClaims(ds)...)
	}

	for _, source := range sourceOrder {
		ds := in.dataset(source)
		if ds == nil || !ds.Has(claims.ColQuantity, claims.ColDrugName) {
			continue
		}
		findings = append(findings, outlier.AbnormalQuantity(ds, r.cfg.IQRMultiplier)...)
	}

	for _, source := range sourceOrder {
		ds := in.dataset(source)
		if ds == nil || source == claims.SourceJoined {
			continue
		}
		findings = append(findings, outlier.ProviderActivity(ds, r.cfg.ActivityOptions())...)
	}

	peerDS := in.Joined
	if peerDS == nil {
		peerDS = in.Pharmacy
	}

	rollup := stats.MonthlyPaid(peerDS.Rows, stats.ProviderDrugKey)
	findings = append(findings, outlier.MonthlyOutliers(rollup, peerDS.Source, r.cfg.MinCohortSize, r.cfg.MonthlyZThreshold)...)

	// National per-drug series catch month spikes spread across providers
	// whose individual series are too short to score.
	national := stats.MonthlyPaid(peerDS.Rows, stats.DrugKey)
	findings = append(findings, outlier.MonthlyOutliers(national, peerDS.Source, r.cfg.MinCohortSize, r.cfg.MonthlyZThreshold)...)

	if in.Revision != nil {
		current := stats.MonthlyPaid(in.Pharmacy.Rows, stats.ProviderDrugKey)
		previous := stats.MonthlyPaid(in.Revision.Rows, stats.ProviderDrugKey)
		findings = append(findings, outlier.CompareRevisions(current, previous, claims.SourcePharmacy, r.cfg.RevisionOptions())...)
	}

	metrics := stats.BuildProviderDrugMetrics(peerDS.Rows)
	findings = append(findings, outlier.PeerZMAD(metrics, peerDS.Source, r.cfg.MinCohortSize, r.cfg.ZMADThreshold)...)
	findings = append(findings, outlier.PeerIQR(metrics, peerDS.Source, r.cfg.MinCohortSize, r.cfg.IQRMultiplier)...)
	findings = append(findings, outlier.IsolationOutliers(metrics, peerDS.Source, r.cfg.MinCohortSize, r.cfg.ForestConfig())...)

	return findings, ctx.Err()
}
