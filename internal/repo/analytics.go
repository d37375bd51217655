package repo

import (
	"Zyncrate/model"
	"context"

	"gorm.io/gorm"
)

// AnalyticsRepo appends access events.
type AnalyticsRepo struct {
	db *gorm.DB
}

// NewAnalyticsRepo creates an AnalyticsRepo.
func NewAnalyticsRepo(db *gorm.DB) *AnalyticsRepo {
	return &AnalyticsRepo{db: db}
}

// Record inserts one event.
func (r *AnalyticsRepo) Record(ctx context.Context, event *model.AnalyticsEvent) error {
	return r.db.WithContext(ctx).Create(event).Error
}

