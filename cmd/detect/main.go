// Command detect runs the detection pipeline once over the configured
// dataset files and writes the anomaly export CSV.
package main

import (
	"context"
	"flag"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/claimsight-ai/platform/pkg/common/config"
	"github.com/claimsight-ai/platform/pkg/common/logger"
	"github.com/claimsight-ai/platform/pkg/detect"
	"github.com/claimsight-ai/platform/pkg/rules"
)

func main() {
	logger.Init()
	cfg := config.Load()

	dataDir := flag.String("data", cfg.DataDir, "directory holding the vendor CSV files")
	configPath := flag.String("config", cfg.DetectionConfigPath, "detection tuning YAML (optional)")
	referencePath := flag.String("reference", cfg.ReferencePath, "clinical reference tables YAML (optional)")
	exportPath := flag.String("out", cfg.ExportPath, "anomaly export CSV path")
	flag.Parse()

	cfg.DataDir = *dataDir
	cfg.DetectionConfigPath = *configPath
	cfg.ReferencePath = *referencePath
	cfg.ExportPath = *exportPath

	detectCfg, err := detect.LoadConfig(cfg.DetectionConfigPath)
	if err != nil {
		logger.Log.WithError(err).Fatal("invalid detection config")
	}

	ref, err := rules.LoadReference(cfg.ReferencePath)
	if err != nil {
		logger.Log.WithError(err).Warn("reference tables fell back to defaults")
	}

	ctx := context.Background()
	inputs, err := detect.LoadInputs(ctx, cfg)
	if err != nil {
		logger.Log.WithError(err).Fatal("failed to load datasets")
	}

	runner := detect.NewRunner(detectCfg, ref)
	result, err := runner.Run(ctx, inputs)
	if err != nil {
		logger.Log.WithError(err).Fatal("detection run failed")
	}

	if err := result.Ledger.ExportFile(cfg.ExportPath); err != nil {
		logger.Log.WithError(err).Fatal("failed to write export")
	}

	stats := result.Ledger.Stats(result.RowCounts)
	logger.Log.WithFields(logrus.Fields{
		"anomalies":       stats.TotalAnomalies,
		"rows_affected":   stats.RowsAffected,
		"healthy_percent": stats.HealthyPercent,
		"export":          cfg.ExportPath,
	}).Info("detection complete")

	if result.RulePanics > 0 {
		logger.Log.WithField("rule_panics", result.RulePanics).Warn("some rule evaluations were skipped")
		os.Exit(2)
	}
}
