package ledger

import (
	"context"
	"fmt"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// DetectionRun is one persisted run summary. Full ledgers stay in the
// export file; the database keeps the aggregate for trend queries.
type DetectionRun struct {
	ID             uint              `gorm:"primaryKey" json:"id"`
	StartedAt      time.Time         `json:"started_at"`
	CompletedAt    time.Time         `json:"completed_at"`
	TotalAnomalies int               `json:"total_anomalies"`
	RowsAffected   int               `json:"rows_affected"`
	StageCounts    datatypes.JSONMap `json:"stage_counts"`
	RuleCounts     datatypes.JSONMap `json:"rule_counts"`
	CreatedAt      time.Time         `json:"created_at"`
}

func (DetectionRun) TableName() string {
	return "detection_runs"
}

// Repository persists run summaries.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Migrate creates the detection_runs table.
func (r *Repository) Migrate() error {
	if err := r.db.AutoMigrate(&DetectionRun{}); err != nil {
		return fmt.Errorf("failed to migrate detection runs: %w", err)
	}
	return nil
}

// SaveRun records the summary of a completed run.
func (r *Repository) SaveRun(ctx context.Context, startedAt, completedAt time.Time, l *Ledger) (*DetectionRun, error) {
	stats := l.Stats(nil)

	stageCounts := make(datatypes.JSONMap, len(stats.ByStage))
	for stage, count := range stats.ByStage {
		stageCounts[stage] = count
	}
	ruleCounts := make(datatypes.JSONMap, len(stats.ByRule))
	for rule, count := range stats.ByRule {
		ruleCounts[rule] = count
	}

	run := &DetectionRun{
		StartedAt:      startedAt,
		CompletedAt:    completedAt,
		TotalAnomalies: stats.TotalAnomalies,
		RowsAffected:   stats.RowsAffected,
		StageCounts:    stageCounts,
		RuleCounts:     ruleCounts,
	}
	if err := r.db.WithContext(ctx).Create(run).Error; err != nil {
		return nil, fmt.Errorf("failed to save detection run: %w", err)
	}
	return run, nil
}

// RecentRuns lists the latest run summaries, newest first.
func (r *Repository) RecentRuns(ctx context.Context, limit int) ([]DetectionRun, error) {
	if limit <= 0 {
		limit = 20
	}
	var runs []DetectionRun
	if err := r.db.WithContext(ctx).Order("id DESC").Limit(limit).Find(&runs).Error; err != nil {
		return nil, fmt.Errorf("failed to list detection runs: %w", err)
	}
	return runs, nil
}
