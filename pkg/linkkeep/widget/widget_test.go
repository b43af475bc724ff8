package widget

import (
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/linkkeep/linkkeep/pkg/linkkeep/models"
)

func setupTestReader(t *testing.T) (*Reader, *gorm.DB) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	if err := models.AutoMigrate(db); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	return NewReader(db), db
}

func insertLink(t *testing.T, db *gorm.DB, url string, createdAt time.Time, deadline *time.Time) {
	t.Helper()
	link := models.Link{
		URL:      url,
		Title:    url,
		Deadline: deadline,
	}
	if err := db.Create(&link).Error; err != nil {
		t.Fatalf("failed to create link: %v", err)
	}
	if err := db.Model(&link).Update("created_at", createdAt).Error; err != nil {
		t.Fatalf("failed to set created_at: %v", err)
	}
}

func TestRecentOrdering(t *testing.T) {
	reader, db := setupTestReader(t)

	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	insertLink(t, db, "https://old.example.com", base, nil)
	insertLink(t, db, "https://mid.example.com", base.Add(time.Hour), nil)
	insertLink(t, db, "https://new.example.com", base.Add(2*time.Hour), nil)

	links, err := reader.Recent(2)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(links) != 2 {
		t.Fatalf("expected 2 links, got %d", len(links))
	}
	if links[0].URL != "https://new.example.com" {
		t.Errorf("expected newest first, got %s", links[0].URL)
	}
	if links[1].URL != "https://mid.example.com" {
		t.Errorf("expected mid second, got %s", links[1].URL)
	}
}

func TestRecentZeroCount(t *testing.T) {
	reader, db := setupTestReader(t)
	insertLink(t, db, "https://example.com", time.Now(), nil)

	links, err := reader.Recent(0)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(links) != 0 {
		t.Errorf("expected no links for n=0, got %d", len(links))
	}
}

func TestDueSoonWindow(t *testing.T) {
	reader, db := setupTestReader(t)

	now := time.Date(2024, 3, 10, 15, 30, 0, 0, time.UTC)
	earlierToday := time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC)
	inTwoDays := now.Add(48 * time.Hour)
	inFiveDays := now.Add(5 * 24 * time.Hour)
	yesterday := now.Add(-24 * time.Hour)

	insertLink(t, db, "https://today.example.com", now, &earlierToday)
	insertLink(t, db, "https://soon.example.com", now, &inTwoDays)
	insertLink(t, db, "https://far.example.com", now, &inFiveDays)
	insertLink(t, db, "https://past.example.com", now, &yesterday)
	insertLink(t, db, "https://none.example.com", now, nil)

	links, err := reader.DueSoon(now)
	if err != nil {
		t.Fatalf("DueSoon failed: %v", err)
	}
	if len(links) != 2 {
		t.Fatalf("expected 2 due links, got %d", len(links))
	}
	if links[0].URL != "https://today.example.com" {
		t.Errorf("expected soonest deadline first, got %s", links[0].URL)
	}
	if links[1].URL != "https://soon.example.com" {
		t.Errorf("expected two-day deadline second, got %s", links[1].URL)
	}

	count, err := reader.DueSoonCount(now)
	if err != nil {
		t.Fatalf("DueSoonCount failed: %v", err)
	}
	if count != 2 {
		t.Errorf("expected count 2, got %d", count)
	}
}
