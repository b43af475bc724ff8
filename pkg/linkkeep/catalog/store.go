// Package catalog is the durable store for categories and links. It is the
// only component allowed to mutate persisted state. Each operation runs in
// one all-or-nothing transaction and, when it changes user-visible catalog
// state, publishes a change-bus event after commit.
package catalog

import (
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/linkkeep/linkkeep/pkg/linkkeep/bus"
	"github.com/linkkeep/linkkeep/pkg/linkkeep/models"
)

// Store owns persisted Category and Link records.
type Store struct {
	db  *gorm.DB
	bus *bus.Bus
	log *zap.Logger
}

// New creates a catalog store over db, publishing change events to b.
func New(db *gorm.DB, b *bus.Bus, log *zap.Logger) *Store {
	return &Store{db: db, bus: b, log: log}
}

// CreateCategory inserts a new category. Returns false without error when the
// name is already taken (exact match).
func (s *Store) CreateCategory(name string, colorIndex int, icon string) (bool, error) {
	created := false
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var existing models.Category
		err := tx.Where("name = ?", name).First(&existing).Error
		if err == nil {
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		cat := models.Category{Name: name, ColorIndex: colorIndex, Icon: icon}
		if err := tx.Create(&cat).Error; err != nil {
			return err
		}
		created = true
		return nil
	})
	if err != nil {
		return false, persistence("create category", err)
	}
	if created {
		s.bus.Publish(EventCategoryCreated)
	}
	return created, nil
}

// EnsureDefaultCategory creates the reserved category if it is absent.
// Idempotent; safe to call on every startup.
func (s *Store) EnsureDefaultCategory() error {
	created, err := s.CreateCategory(models.ReservedCategory, 0, "folder")
	if err != nil {
		return err
	}
	if created {
		s.log.Info("created reserved category", zap.String("name", models.ReservedCategory))
	}
	return nil
}

// FindCategory returns the category with the given name, or nil when absent.
func (s *Store) FindCategory(name string) (*models.Category, error) {
	var cat models.Category
	err := s.db.Preload("Links").Where("name = ?", name).First(&cat).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, persistence("find category", err)
	}
	return &cat, nil
}

// ListCategories returns all categories with their links preloaded, oldest
// category first.
func (s *Store) ListCategories() ([]models.Category, error) {
	var cats []models.Category
	if err := s.db.Preload("Links").Order("created_at ASC").Find(&cats).Error; err != nil {
		return nil, persistence("list categories", err)
	}
	return cats, nil
}

// CountCategories returns the number of categories.
func (s *Store) CountCategories() (int, error) {
	var count int64
	if err := s.db.Model(&models.Category{}).Count(&count).Error; err != nil {
		return 0, persistence("count categories", err)
	}
	return int(count), nil
}

// AddLinkParams carries the fields for AddLink. CreatedAt defaults to now
// when zero.
type AddLinkParams struct {
	Title        string
	URL          string
	Memo         *string
	Description  *string
	CategoryName string
	Deadline     *time.Time
	Favorite     bool
	Opened       bool
	OpenCount    uint
	CreatedAt    time.Time
}

// AddLink adds a URL to a category. An unknown category or a URL already
// present in that category is a logged no-op. When the URL already exists in
// any other category, the existing record is attached by reference rather
// than duplicated, so a URL maps to exactly one link record system-wide.
func (s *Store) AddLink(p AddLinkParams) error {
	attached := false
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var cat models.Category
		err := tx.Where("name = ?", p.CategoryName).First(&cat).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			s.log.Warn("add link rejected: unknown category",
				zap.String("category", p.CategoryName),
				zap.String("url", p.URL))
			return nil
		}
		if err != nil {
			return err
		}

		var inCategory int64
		err = tx.Table("category_links").
			Joins("JOIN links ON links.id = category_links.link_id").
			Where("category_links.category_id = ? AND links.url = ?", cat.ID, p.URL).
			Count(&inCategory).Error
		if err != nil {
			return err
		}
		if inCategory > 0 {
			s.log.Debug("add link skipped: url already in category",
				zap.String("category", p.CategoryName),
				zap.String("url", p.URL))
			return nil
		}

		var link models.Link
		err = tx.Where("url = ?", p.URL).First(&link).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			link = models.Link{
				Title:       p.Title,
				URL:         p.URL,
				Memo:        p.Memo,
				Description: p.Description,
				Favorite:    p.Favorite,
				Opened:      p.Opened,
				OpenCount:   p.OpenCount,
				Deadline:    p.Deadline,
			}
			if !p.CreatedAt.IsZero() {
				link.CreatedAt = p.CreatedAt
			}
			if err := tx.Create(&link).Error; err != nil {
				return err
			}
		} else if err != nil {
			return err
		}

		if err := tx.Model(&cat).Association("Links").Append(&link); err != nil {
			return err
		}
		attached = true
		return nil
	})
	if err != nil {
		return persistence("add link", err)
	}
	if attached {
		s.bus.Publish(EventLinkCreated)
	}
	return nil
}

// UpdateLinkParams carries the fields for UpdateLink. CategoryNames becomes
// the exact new membership set. The Preserve flags carry the named field
// forward from the current record; CreatedAt is always preserved.
type UpdateLinkParams struct {
	Title             string
	Memo              *string
	Description       *string
	CategoryNames     []string
	Deadline          *time.Time
	PreserveFavorite  bool
	PreserveOpened    bool
	PreserveOpenCount bool
}

// UpdateLink reassigns a link: the old record is deleted together with its
// cross-category references and a fresh record is attached to every listed
// category. The record id therefore changes; callers must key on the URL,
// never hold the id across an update. A missing URL is a no-op.
func (s *Store) UpdateLink(url string, p UpdateLinkParams) error {
	var changed bool
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var old models.Link
		err := tx.Where("url = ?", url).First(&old).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			s.log.Warn("update link skipped: url not found", zap.String("url", url))
			return nil
		}
		if err != nil {
			return err
		}

		fresh := models.Link{
			Title:       p.Title,
			URL:         url,
			Memo:        p.Memo,
			Description: p.Description,
			Deadline:    p.Deadline,
			CreatedAt:   old.CreatedAt,
		}
		if p.PreserveFavorite {
			fresh.Favorite = old.Favorite
		}
		if p.PreserveOpened {
			fresh.Opened = old.Opened
		}
		if p.PreserveOpenCount {
			fresh.OpenCount = old.OpenCount
		}

		if err := tx.Model(&old).Association("Categories").Clear(); err != nil {
			return err
		}
		if err := tx.Delete(&old).Error; err != nil {
			return err
		}
		if err := tx.Create(&fresh).Error; err != nil {
			return err
		}

		for _, name := range p.CategoryNames {
			var cat models.Category
			err := tx.Where("name = ?", name).First(&cat).Error
			if errors.Is(err, gorm.ErrRecordNotFound) {
				s.log.Warn("update link: skipping unknown category",
					zap.String("category", name),
					zap.String("url", url))
				continue
			}
			if err != nil {
				return err
			}
			if err := tx.Model(&cat).Association("Links").Append(&fresh); err != nil {
				return err
			}
		}
		changed = true
		return nil
	})
	if err != nil {
		return persistence("update link", err)
	}
	if changed {
		s.bus.Publish(EventLinkDeleted)
		s.bus.Publish(EventLinkCreated)
	}
	return nil
}

// DeleteLink removes the link from every category that references it and
// deletes the record. Safe to call when the URL does not exist.
func (s *Store) DeleteLink(url string) error {
	deleted := false
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var link models.Link
		err := tx.Where("url = ?", url).First(&link).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if err := tx.Model(&link).Association("Categories").Clear(); err != nil {
			return err
		}
		if err := tx.Delete(&link).Error; err != nil {
			return err
		}
		deleted = true
		return nil
	})
	if err != nil {
		return persistence("delete link", err)
	}
	if deleted {
		s.bus.Publish(EventLinkDeleted)
	}
	return nil
}

// GetLink returns the shared record for a URL, or nil when absent.
func (s *Store) GetLink(url string) (*models.Link, error) {
	var link models.Link
	err := s.db.Preload("Categories").Where("url = ?", url).First(&link).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, persistence("get link", err)
	}
	return &link, nil
}

// UpdateLinkTitleAndDescription mutates the shared record in place without
// touching category membership or the toggle fields. No-op when absent.
func (s *Store) UpdateLinkTitleAndDescription(url, title string, memo, description *string) error {
	updated := false
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var link models.Link
		err := tx.Where("url = ?", url).First(&link).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		err = tx.Model(&link).Updates(map[string]interface{}{
			"title":       title,
			"memo":        memo,
			"description": description,
		}).Error
		if err != nil {
			return err
		}
		updated = true
		return nil
	})
	if err != nil {
		return persistence("update link title", err)
	}
	if updated {
		s.bus.Publish(EventLinkUpdated)
	}
	return nil
}

// ToggleFavorite flips the favorite flag on the shared record. No-op when
// the URL is absent.
func (s *Store) ToggleFavorite(url string) error {
	return s.toggleField(url, "favorite", func(l *models.Link) bool { return l.Favorite })
}

// ToggleOpened flips the opened flag on the shared record. No-op when the
// URL is absent.
func (s *Store) ToggleOpened(url string) error {
	return s.toggleField(url, "opened", func(l *models.Link) bool { return l.Opened })
}

func (s *Store) toggleField(url, column string, current func(*models.Link) bool) error {
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var link models.Link
		err := tx.Where("url = ?", url).First(&link).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		return tx.Model(&link).Update(column, !current(&link)).Error
	})
	return persistence("toggle "+column, err)
}

// IncrementOpenCount bumps the open counter and marks the link opened.
// No-op when the URL is absent.
func (s *Store) IncrementOpenCount(url string) error {
	updated := false
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var link models.Link
		err := tx.Where("url = ?", url).First(&link).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		err = tx.Model(&link).Updates(map[string]interface{}{
			"open_count": gorm.Expr("open_count + 1"),
			"opened":     true,
		}).Error
		if err != nil {
			return err
		}
		updated = true
		return nil
	})
	if err != nil {
		return persistence("increment open count", err)
	}
	if updated {
		s.bus.Publish(EventLinkUpdated)
	}
	return nil
}

// UniqueLinkCount counts distinct URLs in a category. Returns 0 for an
// unknown category.
func (s *Store) UniqueLinkCount(categoryName string) (int, error) {
	var cat models.Category
	err := s.db.Where("name = ?", categoryName).First(&cat).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, persistence("unique link count", err)
	}

	var count int64
	err = s.db.Table("category_links").
		Joins("JOIN links ON links.id = category_links.link_id").
		Where("category_links.category_id = ?", cat.ID).
		Distinct("links.url").
		Count(&count).Error
	if err != nil {
		return 0, persistence("unique link count", err)
	}
	return int(count), nil
}

// UpdateCategory renames and restyles a category. Returns false when oldName
// does not exist, when newName collides with a different category, or when
// the rename would take the reserved category's name away. Self-rename (same
// name, new color/icon) is allowed, including for the reserved category.
func (s *Store) UpdateCategory(oldName, newName string, colorIndex int, icon string) (bool, error) {
	if oldName == models.ReservedCategory && newName != models.ReservedCategory {
		return false, nil
	}
	updated := false
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var cat models.Category
		err := tx.Where("name = ?", oldName).First(&cat).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return err
		}

		if newName != oldName {
			var clash models.Category
			err := tx.Where("name = ?", newName).First(&clash).Error
			if err == nil {
				return nil
			}
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return err
			}
		}

		err = tx.Model(&cat).Updates(map[string]interface{}{
			"name":        newName,
			"color_index": colorIndex,
			"icon":        icon,
		}).Error
		if err != nil {
			return err
		}
		updated = true
		return nil
	})
	if err != nil {
		return false, persistence("update category", err)
	}
	if updated {
		s.bus.Publish(EventCategoryUpdated)
	}
	return updated, nil
}

// DeleteCategory removes a category. The reserved category is protected.
// Links referenced only by this category move into the reserved category
// first, except URLs already present there, so no category ever holds the
// same URL twice.
func (s *Store) DeleteCategory(name string) (bool, error) {
	if name == models.ReservedCategory {
		s.log.Warn("delete rejected: reserved category", zap.String("name", name))
		return false, nil
	}
	deleted := false
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var cat models.Category
		err := tx.Preload("Links").Where("name = ?", name).First(&cat).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return err
		}

		var reserved models.Category
		if err := tx.Where("name = ?", models.ReservedCategory).First(&reserved).Error; err != nil {
			return err
		}

		for i := range cat.Links {
			link := cat.Links[i]
			assoc := tx.Model(&link).Association("Categories")
			refs := assoc.Count()
			if assoc.Error != nil {
				return assoc.Error
			}
			if refs != 1 {
				continue
			}
			var inReserved int64
			err := tx.Table("category_links").
				Where("category_id = ? AND link_id = ?", reserved.ID, link.ID).
				Count(&inReserved).Error
			if err != nil {
				return err
			}
			if inReserved > 0 {
				continue
			}
			if err := tx.Model(&reserved).Association("Links").Append(&link); err != nil {
				return err
			}
		}

		if err := tx.Model(&cat).Association("Links").Clear(); err != nil {
			return err
		}
		if err := tx.Delete(&cat).Error; err != nil {
			return err
		}
		deleted = true
		return nil
	})
	if err != nil {
		return false, persistence("delete category", err)
	}
	if deleted {
		s.bus.Publish(EventCategoryDeleted)
	}
	return deleted, nil
}
