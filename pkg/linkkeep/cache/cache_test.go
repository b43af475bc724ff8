package cache

import (
	"context"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/linkkeep/linkkeep/pkg/linkkeep/bus"
	"github.com/linkkeep/linkkeep/pkg/linkkeep/catalog"
	"github.com/linkkeep/linkkeep/pkg/linkkeep/models"
	"github.com/linkkeep/linkkeep/pkg/linkkeep/resolver"
)

type stubResolver struct {
	mu      sync.Mutex
	meta    resolver.Metadata
	release chan struct{} // when non-nil, Resolve blocks until closed
	calls   []string
}

func (r *stubResolver) Resolve(_ context.Context, url string) resolver.Metadata {
	r.mu.Lock()
	r.calls = append(r.calls, url)
	release := r.release
	r.mu.Unlock()
	if release != nil {
		<-release
	}
	return r.meta
}

func (r *stubResolver) callCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

type recordingScheduler struct {
	mu        sync.Mutex
	cancelled []string
}

func (s *recordingScheduler) Schedule(key, title string, fireAt time.Time) {}

func (s *recordingScheduler) Cancel(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelled = append(s.cancelled, key)
}

func (s *recordingScheduler) cancelledKeys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.cancelled...)
}

type fixture struct {
	db        *gorm.DB
	store     *catalog.Store
	cache     *Cache
	bus       *bus.Bus
	resolver  *stubResolver
	scheduler *recordingScheduler
}

func setupCache(t *testing.T) *fixture {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}
	if err := models.AutoMigrate(db); err != nil {
		t.Fatalf("Failed to migrate: %v", err)
	}

	b := bus.New(zap.NewNop())
	store := catalog.New(db, b, zap.NewNop())

	images, err := NewImageCache(16)
	if err != nil {
		t.Fatalf("Failed to create image cache: %v", err)
	}
	res := &stubResolver{meta: resolver.Metadata{
		Title:       "Resolved Title",
		Description: "resolved description",
		Thumbnail:   []byte{1},
	}}
	sched := &recordingScheduler{}
	c := New(store, res, images, sched, zap.NewNop())
	c.Bind(b)

	if err := store.EnsureDefaultCategory(); err != nil {
		t.Fatalf("EnsureDefaultCategory error: %v", err)
	}
	return &fixture{db: db, store: store, cache: c, bus: b, resolver: res, scheduler: sched}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("Timed out waiting for %s", what)
}

func addLink(t *testing.T, f *fixture, url, category string) {
	t.Helper()
	if err := f.store.AddLink(catalog.AddLinkParams{
		Title: "", URL: url, CategoryName: category,
	}); err != nil {
		t.Fatalf("AddLink error: %v", err)
	}
}

func TestRefreshDeduplicatesAcrossCategories(t *testing.T) {
	f := setupCache(t)
	f.store.CreateCategory("A", 1, "")
	f.store.CreateCategory("B", 2, "")

	url := "https://example.com/shared"
	addLink(t, f, url, "A")
	addLink(t, f, url, "B")

	if f.cache.TotalCount() != 1 {
		t.Errorf("Expected 1 entry for a shared URL, got %d", f.cache.TotalCount())
	}
	e, ok := f.cache.Lookup(url)
	if !ok {
		t.Fatal("Entry missing")
	}
	if len(e.Categories) != 2 {
		t.Errorf("Expected 2 category refs, got %d", len(e.Categories))
	}
}

func TestAsyncMetadataPatch(t *testing.T) {
	f := setupCache(t)
	f.store.CreateCategory("A", 1, "")

	url := "https://example.com/patchme"
	addLink(t, f, url, "A")

	waitFor(t, "resolver patch", func() bool {
		e, ok := f.cache.Lookup(url)
		return ok && e.Description != nil && *e.Description == "resolved description"
	})
	e, _ := f.cache.Lookup(url)
	if e.Title != "Resolved Title" {
		t.Errorf("Empty title should be filled from the resolver, got %q", e.Title)
	}
}

func TestMetadataDoesNotOverwriteUserFields(t *testing.T) {
	f := setupCache(t)
	f.store.CreateCategory("A", 1, "")

	url := "https://example.com/titled"
	memo := "my memo"
	if err := f.store.AddLink(catalog.AddLinkParams{
		Title: "User Title", URL: url, Memo: &memo, CategoryName: "A",
	}); err != nil {
		t.Fatalf("AddLink error: %v", err)
	}

	waitFor(t, "resolver call", func() bool { return f.resolver.callCount() > 0 })
	waitFor(t, "description patch", func() bool {
		e, _ := f.cache.Lookup(url)
		return e.Description != nil
	})

	e, _ := f.cache.Lookup(url)
	if e.Title != "User Title" {
		t.Errorf("Resolver must not overwrite a user title, got %q", e.Title)
	}
	if e.Memo == nil || *e.Memo != memo {
		t.Error("Resolver must never touch the user memo")
	}
}

func TestStalePatchSuppression(t *testing.T) {
	f := setupCache(t)
	f.store.CreateCategory("A", 1, "")

	// Block resolution so the delete happens while it is in flight.
	release := make(chan struct{})
	f.resolver.mu.Lock()
	f.resolver.release = release
	f.resolver.mu.Unlock()

	url := "https://example.com/doomed"
	addLink(t, f, url, "A")
	waitFor(t, "resolution start", func() bool { return f.resolver.callCount() > 0 })

	if err := f.cache.Delete(url); err != nil {
		t.Fatalf("Delete error: %v", err)
	}
	close(release)

	// The late completion must not resurrect the URL.
	time.Sleep(100 * time.Millisecond)
	if _, ok := f.cache.Lookup(url); ok {
		t.Error("Deleted URL reappeared from a stale resolver completion")
	}
	for _, e := range f.cache.Snapshot() {
		if e.URL == url {
			t.Error("Deleted URL present in the snapshot")
		}
	}
}

func TestToggleFavoritePatchesLocally(t *testing.T) {
	f := setupCache(t)
	f.store.CreateCategory("A", 1, "")

	url := "https://example.com/fav"
	addLink(t, f, url, "A")

	if err := f.cache.ToggleFavorite(url); err != nil {
		t.Fatalf("ToggleFavorite error: %v", err)
	}
	e, _ := f.cache.Lookup(url)
	if !e.Favorite {
		t.Error("Cached entry should reflect the flip")
	}
	link, _ := f.store.GetLink(url)
	if !link.Favorite {
		t.Error("Durable record should reflect the flip")
	}

	if err := f.cache.ToggleFavorite(url); err != nil {
		t.Fatalf("ToggleFavorite error: %v", err)
	}
	e, _ = f.cache.Lookup(url)
	if e.Favorite {
		t.Error("Second toggle should restore the original value")
	}
}

func TestDeleteCancelsNotificationAndEvicts(t *testing.T) {
	f := setupCache(t)
	f.store.CreateCategory("A", 1, "")

	url := "https://example.com/notified"
	addLink(t, f, url, "A")
	f.cache.Images().Add(url, []byte{9})

	if err := f.cache.Delete(url); err != nil {
		t.Fatalf("Delete error: %v", err)
	}

	keys := f.scheduler.cancelledKeys()
	if len(keys) != 1 || keys[0] != url {
		t.Errorf("Expected notification cancel for %s, got %v", url, keys)
	}
	if _, ok := f.cache.Lookup(url); ok {
		t.Error("Entry should be evicted")
	}
	if f.cache.Images().Contains(url) {
		t.Error("Thumbnail should be evicted")
	}
	if link, _ := f.store.GetLink(url); link != nil {
		t.Error("Durable record should be gone")
	}
}

func TestRecentOrdering(t *testing.T) {
	f := setupCache(t)
	f.store.CreateCategory("A", 1, "")

	now := time.Now()
	for i, u := range []string{"https://a.com/1", "https://a.com/2", "https://a.com/3"} {
		if err := f.store.AddLink(catalog.AddLinkParams{
			Title: "t", URL: u, CategoryName: "A",
			CreatedAt: now.Add(time.Duration(i) * time.Minute),
		}); err != nil {
			t.Fatalf("AddLink error: %v", err)
		}
	}

	recent := f.cache.Recent(2)
	if len(recent) != 2 {
		t.Fatalf("Expected 2 entries, got %d", len(recent))
	}
	if recent[0].URL != "https://a.com/3" || recent[1].URL != "https://a.com/2" {
		t.Errorf("Expected newest first, got %s, %s", recent[0].URL, recent[1].URL)
	}
}

func TestDueSoonCountWindow(t *testing.T) {
	f := setupCache(t)
	f.store.CreateCategory("A", 1, "")

	now := time.Now()
	inWindow := models.StartOfDay(now).Add(26 * time.Hour)        // tomorrow
	outWindow := models.StartOfDay(now).AddDate(0, 0, 5)          // past the window
	past := models.StartOfDay(now).Add(-2 * time.Hour)            // yesterday
	edge := models.StartOfDay(now).AddDate(0, 0, 3).Add(time.Hour) // third day out

	cases := []struct {
		url      string
		deadline *time.Time
	}{
		{"https://d.com/in", &inWindow},
		{"https://d.com/out", &outWindow},
		{"https://d.com/past", &past},
		{"https://d.com/edge", &edge},
		{"https://d.com/none", nil},
	}
	for _, tc := range cases {
		if err := f.store.AddLink(catalog.AddLinkParams{
			Title: "t", URL: tc.url, CategoryName: "A", Deadline: tc.deadline,
		}); err != nil {
			t.Fatalf("AddLink error: %v", err)
		}
	}

	if got := f.cache.DueSoonCount(now); got != 2 {
		t.Errorf("Expected 2 links due soon, got %d", got)
	}
	due := f.cache.DueSoon(now)
	if len(due) != 2 || due[0].URL != "https://d.com/in" {
		t.Errorf("Expected soonest-first ordering, got %v", due)
	}
}

func TestCategoryEventTriggersRefresh(t *testing.T) {
	f := setupCache(t)
	f.store.CreateCategory("A", 1, "")

	url := "https://example.com/recolor"
	addLink(t, f, url, "A")

	// Restyle the category; the cache should pick up the new color via its
	// unconditional refresh on category events.
	if _, err := f.store.UpdateCategory("A", "A", 9, "flame"); err != nil {
		t.Fatalf("UpdateCategory error: %v", err)
	}

	e, ok := f.cache.Lookup(url)
	if !ok {
		t.Fatal("Entry missing after category update")
	}
	if len(e.Categories) != 1 || e.Categories[0].ColorIndex != 9 {
		t.Errorf("Expected refreshed category color 9, got %v", e.Categories)
	}
}

func TestSubscribeReceivesSnapshots(t *testing.T) {
	f := setupCache(t)
	f.store.CreateCategory("A", 1, "")

	ch := f.cache.Subscribe()
	addLink(t, f, "https://example.com/sub", "A")

	waitFor(t, "published snapshot", func() bool {
		select {
		case snap := <-ch:
			for _, e := range snap {
				if e.URL == "https://example.com/sub" {
					return true
				}
			}
			return false
		default:
			return false
		}
	})
}

func TestToggleUnknownURLLeavesSnapshotAlone(t *testing.T) {
	f := setupCache(t)

	before := f.cache.TotalCount()
	if err := f.cache.ToggleFavorite("https://example.com/ghost"); err != nil {
		t.Fatalf("Toggle of unknown URL should not error, got %v", err)
	}
	if f.cache.TotalCount() != before {
		t.Error("Snapshot must not change for an unknown URL")
	}
}

func TestInPlaceTextUpdateRefreshesSnapshot(t *testing.T) {
	f := setupCache(t)
	url := "https://example.com/text"
	if err := f.store.AddLink(catalog.AddLinkParams{
		Title: "Old Title", URL: url, CategoryName: models.ReservedCategory,
	}); err != nil {
		t.Fatalf("AddLink error: %v", err)
	}

	// The in-place text path is what the bulk importer uses for URLs it
	// already knows; the cache must pick it up without any other write.
	if err := f.store.UpdateLinkTitleAndDescription(url, "New Title", nil, nil); err != nil {
		t.Fatalf("UpdateLinkTitleAndDescription error: %v", err)
	}

	e, ok := f.cache.Lookup(url)
	if !ok {
		t.Fatal("Entry missing after text update")
	}
	if e.Title != "New Title" {
		t.Errorf("Cache still serves stale title %q after text update", e.Title)
	}
}

func TestOpenCountBumpRefreshesSnapshot(t *testing.T) {
	f := setupCache(t)
	url := "https://example.com/opened"
	if err := f.store.AddLink(catalog.AddLinkParams{
		Title: "Opened", URL: url, CategoryName: models.ReservedCategory,
	}); err != nil {
		t.Fatalf("AddLink error: %v", err)
	}

	if err := f.store.IncrementOpenCount(url); err != nil {
		t.Fatalf("IncrementOpenCount error: %v", err)
	}

	e, ok := f.cache.Lookup(url)
	if !ok {
		t.Fatal("Entry missing after open")
	}
	if e.OpenCount != 1 || !e.Opened {
		t.Errorf("Cache not refreshed after open: %+v", e)
	}
}

func TestDeleteFailureKeepsNotification(t *testing.T) {
	f := setupCache(t)
	url := "https://example.com/undeletable"
	addLink(t, f, url, models.ReservedCategory)

	sqlDB, err := f.db.DB()
	if err != nil {
		t.Fatalf("Failed to get sql handle: %v", err)
	}
	sqlDB.Close()

	if err := f.cache.Delete(url); err == nil {
		t.Fatal("Delete should surface the store failure")
	}
	if len(f.scheduler.cancelledKeys()) != 0 {
		t.Error("Notification must survive a failed delete")
	}
	if _, ok := f.cache.Lookup(url); !ok {
		t.Error("Entry must survive a failed delete")
	}
}
