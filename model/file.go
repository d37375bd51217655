package model

// File is one uploaded file. Timestamps are milliseconds since epoch.
type File struct {
	ID uint64 `gorm:"primaryKey" json:"-"`

	Key        string `gorm:"column:key;size:32;uniqueIndex;not null" json:"key"`
	StorageKey string `gorm:"column:storage_key;size:255;index;not null" json:"-"`

	FileName string `gorm:"column:file_name;size:255;not null" json:"file_name"`
	MimeType string `gorm:"column:mime_type;size:255;not null;default:''" json:"mime_type"`
	FileSize int64  `gorm:"column:file_size;not null" json:"file_size"`

	CreatedAt int64 `gorm:"column:created_at;not null" json:"created_at"`
	ExpiresAt int64 `gorm:"column:expires_at;not null;index:idx_files_sweep,priority:2" json:"expires_at"`

	DownloadCount int  `gorm:"column:download_count;not null;default:0" json:"download_count"`
	MaxDownloads  int  `gorm:"column:max_downloads;not null;default:0" json:"max_downloads"` // 0 unlimited
	OneTime       bool `gorm:"column:one_time;not null;default:false" json:"one_time"`

	Locked      bool   `gorm:"column:locked;not null;default:false" json:"locked"`
	LockKeyHash string `gorm:"column:lock_key_hash;size:64;not null;default:''" json:"-"`

	IsDeleted    bool   `gorm:"column:is_deleted;not null;default:false;index:idx_files_sweep,priority:1" json:"-"`
	DeletedAt    int64  `gorm:"column:deleted_at_ms;not null;default:0" json:"-"`
	DeleteReason string `gorm:"column:delete_reason;size:16;not null;default:''" json:"-"`

	UserID         *uint64 `gorm:"column:user_id;index" json:"-"`
	GuestSessionID *uint64 `gorm:"column:guest_session_id;index" json:"-"`
}

// TableName returns the database table name.
func (File) TableName() string {
	return "files"
}

// Unlimited reports whether the file has no download ceiling.
func (f *File) Unlimited() bool {
	return f.MaxDownloads <= 0
}

// ExpiredAt reports whether the file is past its expiry at nowMs.
func (f *File) ExpiredAt(nowMs int64) bool {
	return nowMs > f.ExpiresAt
}

// Exhausted reports whether no further download may be counted.
func (f *File) Exhausted() bool {
	if f.OneTime && f.DownloadCount >= 1 {
		return true
	}
	return !f.Unlimited() && f.DownloadCount >= f.MaxDownloads
}

/*
CreatedAt/ExpiresAt 使用 int64 毫秒而不是 time.Time
gorm 只会在字段为零值时自动填充 CreatedAt 所以这里总是显式赋值
*/
