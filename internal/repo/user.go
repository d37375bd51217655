package repo

import (
	"Zyncrate/model"
	"context"
	"strings"
	"time"

	"gorm.io/gorm"
)

// UserRepo stores registered users.
type UserRepo struct {
	db *gorm.DB
}

// NewUserRepo creates a UserRepo.
func NewUserRepo(db *gorm.DB) *UserRepo {
	return &UserRepo{db: db}
}

// Create inserts a user; a taken email surfaces as gorm.ErrDuplicatedKey.
func (r *UserRepo) Create(ctx context.Context, user *model.User) error {
	user.Email = strings.ToLower(strings.TrimSpace(user.Email))
	return r.db.WithContext(ctx).Create(user).Error
}

// FindByEmail looks a user up case-insensitively.
func (r *UserRepo) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	var user model.User
	err := r.db.WithContext(ctx).
		Where("email = ?", strings.ToLower(strings.TrimSpace(email))).
		First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// GuestRepo stores guest sessions.
type GuestRepo struct {
	db *gorm.DB
}

// NewGuestRepo creates a GuestRepo.
func NewGuestRepo(db *gorm.DB) *GuestRepo {
	return &GuestRepo{db: db}
}

// Create inserts a guest session.
func (r *GuestRepo) Create(ctx context.Context, guest *model.Guest) error {
	return r.db.WithContext(ctx).Create(guest).Error
}

// Touch records activity on a guest session.
func (r *GuestRepo) Touch(ctx context.Context, id uint64, now time.Time) error {
	return r.db.WithContext(ctx).
		Model(&model.Guest{}).
		Where("id = ?", id).
		UpdateColumn("last_activity", now).Error
}

// DeleteExpired removes guest sessions past their expiry.
func (r *GuestRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Where("expires_at <= ?", now).Delete(&model.Guest{})
	return res.RowsAffected, res.Error
}
