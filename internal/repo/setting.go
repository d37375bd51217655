package repo

import (
	"Zyncrate/model"
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SettingRepo reads and writes runtime overrides.
type SettingRepo struct {
	db *gorm.DB
}

// NewSettingRepo creates a SettingRepo.
func NewSettingRepo(db *gorm.DB) *SettingRepo {
	return &SettingRepo{db: db}
}

// All returns every override as key -> raw value.
func (r *SettingRepo) All(ctx context.Context) (map[string]string, error) {
	var rows []model.Setting
	if err := r.db.WithContext(ctx).Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make(map[string]string, len(rows))
	for _, row := range rows {
		out[row.Key] = row.Value
	}
	return out, nil
}

// Upsert writes one override.
func (r *SettingRepo) Upsert(ctx context.Context, key, value string) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "key"}},
			DoUpdates: clause.AssignmentColumns([]string{"value"}),
		}).
		Create(&model.Setting{Key: key, Value: value}).Error
}
