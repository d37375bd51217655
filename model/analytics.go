package model

const (
	ActionUpload   = "upload"
	ActionDownload = "download"
)

// AnalyticsEvent is an append-only access log row. Never updated.
type AnalyticsEvent struct {
	ID uint64 `gorm:"primaryKey"`

	FileKey string `gorm:"column:file_key;size:32;index;not null"`

	UserID         *uint64 `gorm:"column:user_id"`
	GuestSessionID *uint64 `gorm:"column:guest_session_id"`

	Action    string `gorm:"column:action;size:16;not null"`
	Timestamp int64  `gorm:"column:timestamp;not null"`

	IPAddress string `gorm:"column:ip_address;size:64"`
	UserAgent string `gorm:"column:user_agent;size:512"`
}

// TableName returns the database table name.
func (AnalyticsEvent) TableName() string {
	return "analytics"
}
