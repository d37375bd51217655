package model

import (
	"time"
)

const (
	PlanFree = "free"
	PlanPro  = "pro"
)

type User struct {
	ID uint64 `gorm:"primaryKey" json:"id"`

	Email string `gorm:"column:email;type:varchar(255);not null;unique" json:"email"`

	PasswordHash string `gorm:"column:password_hash;type:varchar(255);not null" json:"-"`

	Plan string `gorm:"column:plan;type:varchar(16);not null;default:'free'" json:"plan"`

	CreatedAt time.Time `json:"created_at"`
}

// TableName returns the database table name.
func (User) TableName() string {
	return "users"
}

// Guest is an anonymous upload session keyed by an opaque token.
type Guest struct {
	ID uint64 `gorm:"primaryKey" json:"id"`

	Token string `gorm:"column:temp_token;size:36;uniqueIndex;not null" json:"-"`

	IPAddress    string    `gorm:"column:ip_address;size:64" json:"-"`
	UserAgent    string    `gorm:"column:user_agent;size:512" json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	ExpiresAt    time.Time `gorm:"column:expires_at;index" json:"expires_at"`
	LastActivity time.Time `gorm:"column:last_activity" json:"-"`
}

// TableName returns the database table name.
func (Guest) TableName() string {
	return "guests"
}
