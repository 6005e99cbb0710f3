package facility

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/carescope-ai/platform/pkg/common/models"
)

var ErrNotFound = errors.New("facility not found")

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) AutoMigrate() error {
	return r.db.AutoMigrate(&Record{})
}

// Upsert inserts a facility or replaces the stored version when the id
// already exists, so registry re-submissions converge on the latest data.
func (r *Repository) Upsert(ctx context.Context, rec *Record) error {
	now := time.Now().UTC()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	rec.UpdatedAt = now
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			UpdateAll: true,
		}).
		Create(rec).Error
}

func (r *Repository) Get(ctx context.Context, id string) (*Record, error) {
	var rec Record
	result := r.db.WithContext(ctx).First(&rec, "id = ?", id)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	return &rec, result.Error
}

func (r *Repository) List(ctx context.Context, state string, limit, offset int) ([]Record, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	tx := r.db.WithContext(ctx)
	if state != "" {
		tx = tx.Where("state = ?", state)
	}
	var recs []Record
	err := tx.Order("id").Limit(limit).Offset(offset).Find(&recs).Error
	return recs, err
}

// Snapshot loads every stored facility as analysis input. The returned
// slice is a fresh copy each call; pipeline runs never share state.
func (r *Repository) Snapshot(ctx context.Context) ([]models.Facility, error) {
	var recs []Record
	if err := r.db.WithContext(ctx).Order("id").Find(&recs).Error; err != nil {
		return nil, err
	}
	facilities := make([]models.Facility, 0, len(recs))
	for i := range recs {
		facilities = append(facilities, recs[i].ToModel())
	}
	return facilities, nil
}

func (r *Repository) SetVerification(ctx context.Context, id string, verified bool, note string) error {
	result := r.db.WithContext(ctx).Model(&Record{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"verified":    verified,
			"verify_note": note,
			"updated_at":  time.Now().UTC(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Repository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&Record{}).Count(&count).Error
	return count, err
}
