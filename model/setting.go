package model

// Setting overrides one dotted config path, e.g. "limits.user_pro.max_expiry_hours".
type Setting struct {
	Key   string `gorm:"column:key;size:128;primaryKey"`
	Value string `gorm:"column:value;size:1024;not null"`
}

// TableName returns the database table name.
func (Setting) TableName() string {
	return "settings"
}
