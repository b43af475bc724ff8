package models

import "time"

// APIKey guards the bulk-import surface. The full key is shown once at
// creation; only a bcrypt hash and a short prefix for lookup are stored.
type APIKey struct {
	ID          uint       `gorm:"primarykey" json:"id"`
	CreatedAt   time.Time  `json:"created_at"`
	KeyPrefix   string     `gorm:"index;not null" json:"key_prefix"`
	KeyHash     string     `gorm:"not null" json:"-"`
	Description string     `json:"description"`
	LastUsedAt  *time.Time `json:"last_used_at"`
}
