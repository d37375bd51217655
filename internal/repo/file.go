package repo

import (
	"Zyncrate/model"
	"context"

	"gorm.io/gorm"
)

// FileRepo is the gorm implementation of lifecycle.FileRepository.
type FileRepo struct {
	db *gorm.DB
}

// NewFileRepo creates a FileRepo.
func NewFileRepo(db *gorm.DB) *FileRepo {
	return &FileRepo{db: db}
}

// Insert creates a file row. A key collision surfaces as gorm.ErrDuplicatedKey.
func (r *FileRepo) Insert(ctx context.Context, file *model.File) error {
	return r.db.WithContext(ctx).Create(file).Error
}

// FindLive returns a non-tombstoned file by public key.
func (r *FileRepo) FindLive(ctx context.Context, key string) (*model.File, error) {
	var file model.File
	err := r.db.WithContext(ctx).
		Where("`key` = ? AND is_deleted = ?", key, false).
		First(&file).Error
	if err != nil {
		return nil, err
	}
	return &file, nil
}

// Find returns a file by public key, tombstoned or not.
func (r *FileRepo) Find(ctx context.Context, key string) (*model.File, error) {
	var file model.File
	if err := r.db.WithContext(ctx).Where("`key` = ?", key).First(&file).Error; err != nil {
		return nil, err
	}
	return &file, nil
}

// IncrementDownload counts one download only while the row still allows it.
func (r *FileRepo) IncrementDownload(ctx context.Context, key string, nowMs int64) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&model.File{}).
		Where("`key` = ? AND is_deleted = ? AND expires_at >= ?", key, false, nowMs).
		Where("(max_downloads <= 0 OR download_count < max_downloads)").
		Where("(one_time = ? OR download_count = 0)", false).
		UpdateColumn("download_count", gorm.Expr("download_count + ?", 1))
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// Tombstone marks the row deleted unless someone already did.
func (r *FileRepo) Tombstone(ctx context.Context, key string, nowMs int64, reason string) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&model.File{}).
		Where("`key` = ? AND is_deleted = ?", key, false).
		UpdateColumns(map[string]interface{}{
			"is_deleted":    true,
			"deleted_at_ms": nowMs,
			"delete_reason": reason,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// ListExpired returns live rows whose expiry passed, oldest first.
func (r *FileRepo) ListExpired(ctx context.Context, nowMs int64, limit int) ([]model.File, error) {
	var files []model.File
	q := r.db.WithContext(ctx).
		Where("is_deleted = ? AND expires_at < ?", false, nowMs).
		Order("expires_at ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&files).Error; err != nil {
		return nil, err
	}
	return files, nil
}

// HasLiveStorageKey reports whether any live row points at storageKey.
func (r *FileRepo) HasLiveStorageKey(ctx context.Context, storageKey string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.File{}).
		Where("storage_key = ? AND is_deleted = ?", storageKey, false).
		Count(&count).Error
	return count > 0, err
}

// ListByOwner returns the live files of a user or guest session, newest first.
func (r *FileRepo) ListByOwner(ctx context.Context, userID, guestID *uint64, limit int) ([]model.File, error) {
	var files []model.File
	q := r.db.WithContext(ctx).Where("is_deleted = ?", false)
	switch {
	case userID != nil:
		q = q.Where("user_id = ?", *userID)
	case guestID != nil:
		q = q.Where("guest_session_id = ?", *guestID)
	default:
		return files, nil
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Order("created_at DESC").Find(&files).Error; err != nil {
		return nil, err
	}
	return files, nil
}
