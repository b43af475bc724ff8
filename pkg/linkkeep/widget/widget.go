// Package widget provides a read-only view over the link database for
// surfaces that run outside the main server process, such as a home
// screen widget renderer. It reads straight from the database so it
// never depends on the server's in-memory state.
package widget

import (
	"time"

	"gorm.io/gorm"

	"github.com/linkkeep/linkkeep/pkg/linkkeep/models"
)

// Reader reads link data directly from the database.
type Reader struct {
	db *gorm.DB
}

// NewReader creates a new widget reader.
func NewReader(db *gorm.DB) *Reader {
	return &Reader{db: db}
}

// Recent returns the n most recently added links, newest first.
func (r *Reader) Recent(n int) ([]models.Link, error) {
	if n <= 0 {
		return []models.Link{}, nil
	}
	var links []models.Link
	if err := r.db.Preload("Categories").Order("created_at DESC").Limit(n).Find(&links).Error; err != nil {
		return nil, err
	}
	return links, nil
}

// DueSoon returns links whose deadline falls inside the due window
// anchored at now, soonest deadline first.
func (r *Reader) DueSoon(now time.Time) ([]models.Link, error) {
	start, end := models.DueWindow(now)
	var links []models.Link
	if err := r.db.Preload("Categories").
		Where("deadline IS NOT NULL AND deadline >= ? AND deadline < ?", start, end).
		Order("deadline ASC").
		Find(&links).Error; err != nil {
		return nil, err
	}
	return links, nil
}

// DueSoonCount returns the number of links inside the due window.
func (r *Reader) DueSoonCount(now time.Time) (int, error) {
	start, end := models.DueWindow(now)
	var count int64
	if err := r.db.Model(&models.Link{}).
		Where("deadline IS NOT NULL AND deadline >= ? AND deadline < ?", start, end).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return int(count), nil
}
