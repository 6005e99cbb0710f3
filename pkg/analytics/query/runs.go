package query

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/carescope-ai/platform/pkg/common/models"
)

const (
	RunStatusQueued    = "queued"
	RunStatusRunning   = "running"
	RunStatusCompleted = "completed"
	RunStatusFailed    = "failed"
)

var ErrRunNotFound = errors.New("analysis run not found")

type runModel struct {
	ID           uuid.UUID      `gorm:"primaryKey;column:id"`
	Query        string         `gorm:"column:query"`
	Stages       datatypes.JSON `gorm:"column:stages"`
	Scope        datatypes.JSON `gorm:"column:scope"`
	Status       string         `gorm:"column:status"`
	ResultCount  int            `gorm:"column:result_count"`
	SkippedCount int            `gorm:"column:skipped_count"`
	ErrorMessage string         `gorm:"column:error_message"`
	RequestedBy  string         `gorm:"column:requested_by"`
	Result       datatypes.JSON `gorm:"column:result"`
	CreatedAt    time.Time      `gorm:"column:created_at"`
	StartedAt    *time.Time     `gorm:"column:started_at"`
	CompletedAt  *time.Time     `gorm:"column:completed_at"`
}

func (runModel) TableName() string {
	return "analysis_runs"
}

type RunRepository struct {
	db *gorm.DB
}

func NewRunRepository(db *gorm.DB) *RunRepository {
	return &RunRepository{db: db}
}

func (r *RunRepository) AutoMigrate() error {
	return r.db.AutoMigrate(&runModel{})
}

func (r *RunRepository) Create(ctx context.Context, model *runModel) error {
	return r.db.WithContext(ctx).Create(model).Error
}

func (r *RunRepository) Update(ctx context.Context, id uuid.UUID, updates map[string]interface{}) error {
	return r.db.WithContext(ctx).Model(&runModel{}).Where("id = ?", id).Updates(updates).Error
}

func (r *RunRepository) Get(ctx context.Context, id uuid.UUID) (*runModel, error) {
	var model runModel
	result := r.db.WithContext(ctx).First(&model, "id = ?", id)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, ErrRunNotFound
	}
	return &model, result.Error
}

func (r *RunRepository) List(ctx context.Context, limit int) ([]runModel, error) {
	if limit <= 0 {
		limit = 50
	}
	var records []runModel
	err := r.db.WithContext(ctx).Order("created_at DESC").Limit(limit).Find(&records).Error
	return records, err
}

func runToDomain(model *runModel) models.AnalysisRun {
	var stages []string
	if len(model.Stages) > 0 {
		_ = json.Unmarshal(model.Stages, &stages)
	}
	var runScope models.Scope
	if len(model.Scope) > 0 {
		_ = json.Unmarshal(model.Scope, &runScope)
	}
	run := models.AnalysisRun{
		ID:           model.ID,
		Query:        model.Query,
		Stages:       stages,
		Scope:        runScope,
		Status:       model.Status,
		ResultCount:  model.ResultCount,
		SkippedCount: model.SkippedCount,
		ErrorMessage: model.ErrorMessage,
		RequestedBy:  model.RequestedBy,
		CreatedAt:    model.CreatedAt,
		StartedAt:    model.StartedAt,
		CompletedAt:  model.CompletedAt,
	}
	if len(model.Result) > 0 {
		var result models.AnalysisResult
		if err := json.Unmarshal(model.Result, &result); err == nil {
			run.Result = &result
		}
	}
	return run
}
