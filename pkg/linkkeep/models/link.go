package models

import "time"

// Link is a saved URL. The URL string is the logical identity: adding the
// same URL to any number of categories always resolves to this one record,
// so favorite/opened/memo edits are visible from every category that holds
// it. The numeric id is not stable across UpdateLink (delete and recreate);
// callers must key on URL only.
type Link struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	URL       string    `gorm:"uniqueIndex;not null" json:"url"`
	Title     string    `json:"title"`

	// Memo is user-authored; Description comes from the metadata resolver.
	// They are distinct columns and must never overwrite each other.
	Memo        *string `json:"memo,omitempty"`
	Description *string `json:"description,omitempty"`

	Favorite  bool       `gorm:"default:false" json:"favorite"`
	Opened    bool       `gorm:"default:false" json:"opened"`
	OpenCount uint       `gorm:"default:0" json:"open_count"`
	Deadline  *time.Time `json:"deadline,omitempty"`

	// Relationships
	Categories []Category `gorm:"many2many:category_links;" json:"categories,omitempty"`
}
