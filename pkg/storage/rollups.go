package storage

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/carescope-ai/platform/pkg/common/models"
)

// ScoreRollup is one region x specialty reachability measurement kept
// for trend queries across analysis runs.
type ScoreRollup struct {
	ID            string            `gorm:"primaryKey;column:id"`
	RunID         string            `gorm:"column:run_id"`
	Region        string            `gorm:"column:region"`
	Specialty     string            `gorm:"column:specialty"`
	CombinedScore float64           `gorm:"column:combined_score"`
	LowAccess     bool              `gorm:"column:low_access"`
	Detail        datatypes.JSONMap `gorm:"column:detail"`
	EventTime     time.Time         `gorm:"column:event_time"`
	CreatedAt     time.Time         `gorm:"column:created_at"`
}

func (ScoreRollup) TableName() string {
	return "score_rollups"
}

type RollupWriter struct {
	db *gorm.DB
}

func NewRollupWriter(db *gorm.DB) *RollupWriter {
	return &RollupWriter{db: db}
}

func (w *RollupWriter) AutoMigrate() error {
	return w.db.AutoMigrate(&ScoreRollup{})
}

// WriteScores persists one rollup row per scored pair of a completed run.
func (w *RollupWriter) WriteScores(ctx context.Context, runID string, scores []models.ReachabilityScore) error {
	if len(scores) == 0 {
		return nil
	}
	now := time.Now().UTC()
	rows := make([]ScoreRollup, 0, len(scores))
	for _, score := range scores {
		rows = append(rows, ScoreRollup{
			ID:            uuid.New().String(),
			RunID:         runID,
			Region:        score.Region,
			Specialty:     score.Specialty,
			CombinedScore: score.CombinedScore,
			LowAccess:     score.LowAccess,
			Detail: datatypes.JSONMap{
				"geographic_factor": score.GeographicFactor,
				"capability_factor": score.CapabilityFactor,
				"facility_count":    score.FacilityCount,
				"verified_count":    score.VerifiedCount,
			},
			EventTime: now,
			CreatedAt: now,
		})
	}
	return w.db.WithContext(ctx).CreateInBatches(rows, 100).Error
}

// RecentScores returns the latest rollups, optionally filtered by region
// and specialty.
func (w *RollupWriter) RecentScores(ctx context.Context, region, specialty string, limit int) ([]ScoreRollup, error) {
	if limit <= 0 || limit > 200 {
		limit = 200
	}
	tx := w.db.WithContext(ctx)
	if region != "" {
		tx = tx.Where("region = ?", region)
	}
	if specialty != "" {
		tx = tx.Where("specialty = ?", specialty)
	}
	var rows []ScoreRollup
	if err := tx.Order("event_time desc").Limit(limit).Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
