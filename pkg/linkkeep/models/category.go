package models

import "time"

// ReservedCategory is the always-present default category. It is created on
// first launch and can never be deleted or renamed.
const ReservedCategory = "General"

// Category is a named bucket of links. Names are unique across all
// categories (exact match). A link may be referenced by many categories
// through the category_links join table; the link record itself is shared,
// never copied.
type Category struct {
	ID         uint      `gorm:"primarykey" json:"id"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
	Name       string    `gorm:"uniqueIndex;not null" json:"name"`
	ColorIndex int       `gorm:"default:0" json:"color_index"`
	Icon       string    `json:"icon"`

	// Relationships
	Links []Link `gorm:"many2many:category_links;" json:"links,omitempty"`
}

// IsReserved reports whether this is the protected default category.
func (c *Category) IsReserved() bool {
	return c.Name == ReservedCategory
}
