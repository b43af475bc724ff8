// Package cache is the in-memory projection of the catalog that the
// presentation layer observes. It rebuilds itself from the store on change
// events, patches in resolver metadata asynchronously, and answers derived
// queries from its snapshot without re-touching the store.
package cache

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/linkkeep/linkkeep/pkg/linkkeep/bus"
	"github.com/linkkeep/linkkeep/pkg/linkkeep/catalog"
	"github.com/linkkeep/linkkeep/pkg/linkkeep/models"
	"github.com/linkkeep/linkkeep/pkg/linkkeep/notify"
	"github.com/linkkeep/linkkeep/pkg/linkkeep/resolver"
)

// CategoryRef is the denormalized (name, color) pair of a category holding
// a link.
type CategoryRef struct {
	Name       string `json:"name"`
	ColorIndex int    `json:"color_index"`
}

// Entry is the cache's view of one URL: durable fields mirrored from the
// link record plus resolved display metadata. Non-authoritative; never the
// sole holder of anything that must survive a restart.
type Entry struct {
	URL          string        `json:"url"`
	Title        string        `json:"title"`
	Memo         *string       `json:"memo,omitempty"`
	Description  *string       `json:"description,omitempty"`
	Favorite     bool          `json:"favorite"`
	Opened       bool          `json:"opened"`
	OpenCount    uint          `json:"open_count"`
	CreatedAt    time.Time     `json:"created_at"`
	Deadline     *time.Time    `json:"deadline,omitempty"`
	Categories   []CategoryRef `json:"categories"`
	HasThumbnail bool          `json:"has_thumbnail"`
}

// MetadataResolver is what the cache needs from the resolver.
type MetadataResolver interface {
	Resolve(ctx context.Context, url string) resolver.Metadata
}

// Cache holds the URL-keyed projection and the snapshot list sorted by
// creation time descending. The snapshot lock is separate from the image
// store's lock so background thumbnail writes do not contend with reads.
type Cache struct {
	store     *catalog.Store
	resolver  MetadataResolver
	images    *ImageCache
	scheduler notify.Scheduler
	log       *zap.Logger

	mu       sync.RWMutex
	entries  map[string]Entry
	snapshot []Entry

	subMu sync.Mutex
	subs  []chan []Entry
}

// New creates a cache over the given collaborators. Call Bind to hook it to
// the change bus and RefreshFromStore to load the initial projection.
func New(store *catalog.Store, res MetadataResolver, images *ImageCache, scheduler notify.Scheduler, log *zap.Logger) *Cache {
	return &Cache{
		store:     store,
		resolver:  res,
		images:    images,
		scheduler: scheduler,
		log:       log,
		entries:   make(map[string]Entry),
	}
}

// Bind subscribes the cache to catalog change events. Category-level events
// are rare, so each one triggers a full refresh rather than an incremental
// patch; link events (from any mutator, including the bulk importer) do
// the same.
func (c *Cache) Bind(b *bus.Bus) {
	refresh := func() { c.RefreshFromStore() }
	b.Subscribe(catalog.EventCategoryCreated, refresh)
	b.Subscribe(catalog.EventCategoryUpdated, refresh)
	b.Subscribe(catalog.EventCategoryDeleted, refresh)
	b.Subscribe(catalog.EventLinkCreated, refresh)
	b.Subscribe(catalog.EventLinkUpdated, refresh)
	b.Subscribe(catalog.EventLinkDeleted, refresh)
}

// Images exposes the thumbnail store (shared with the resolver).
func (c *Cache) Images() *ImageCache {
	return c.images
}

// RefreshFromStore rebuilds the whole projection from the catalog, grouping
// links by URL across categories. URLs without a cached thumbnail get an
// asynchronous resolver call whose result is patched in out of band. A store
// failure keeps the previous snapshot (degrade, never corrupt).
func (c *Cache) RefreshFromStore() {
	cats, err := c.store.ListCategories()
	if err != nil {
		c.log.Error("cache refresh failed, keeping previous snapshot", zap.Error(err))
		return
	}

	merged := make(map[string]Entry)
	for _, cat := range cats {
		ref := CategoryRef{Name: cat.Name, ColorIndex: cat.ColorIndex}
		for _, link := range cat.Links {
			e, ok := merged[link.URL]
			if !ok {
				e = entryFromLink(link)
			}
			e.Categories = append(e.Categories, ref)
			merged[link.URL] = e
		}
	}

	var missing []string
	for url, e := range merged {
		e.HasThumbnail = c.images.Contains(url)
		merged[url] = e
		if !e.HasThumbnail {
			missing = append(missing, url)
		}
	}

	c.mu.Lock()
	c.entries = merged
	c.rebuildSnapshotLocked()
	c.mu.Unlock()
	c.publish()

	for _, url := range missing {
		go c.resolveAndPatch(url)
	}
}

func entryFromLink(l models.Link) Entry {
	return Entry{
		URL:         l.URL,
		Title:       l.Title,
		Memo:        l.Memo,
		Description: l.Description,
		Favorite:    l.Favorite,
		Opened:      l.Opened,
		OpenCount:   l.OpenCount,
		CreatedAt:   l.CreatedAt,
		Deadline:    l.Deadline,
	}
}

func (c *Cache) resolveAndPatch(url string) {
	meta := c.resolver.Resolve(context.Background(), url)
	c.applyMetadata(url, meta)
}

// applyMetadata patches resolver results into the snapshot. The snapshot map
// is authoritative: a completion for a URL that has since been deleted (or
// superseded) is dropped rather than resurrecting stale data.
func (c *Cache) applyMetadata(url string, meta resolver.Metadata) {
	c.mu.Lock()
	e, ok := c.entries[url]
	if !ok {
		c.mu.Unlock()
		c.log.Debug("dropping stale metadata for evicted url", zap.String("url", url))
		return
	}
	if e.Title == "" {
		e.Title = meta.Title
	}
	if e.Description == nil && meta.Description != "" {
		d := meta.Description
		e.Description = &d
	}
	e.HasThumbnail = c.images.Contains(url)
	c.entries[url] = e
	c.rebuildSnapshotLocked()
	c.mu.Unlock()
	c.publish()
}

// AddOrUpdate upserts an entry by URL, re-sorts, and republishes. This is
// the only write path observers ever see.
func (c *Cache) AddOrUpdate(e Entry) {
	c.mu.Lock()
	c.entries[e.URL] = e
	c.rebuildSnapshotLocked()
	c.mu.Unlock()
	c.publish()
}

// ToggleFavorite flips the favorite flag durably, then patches the cached
// entry in place instead of doing a full refresh. On store failure the
// snapshot is left untouched and the error is returned.
func (c *Cache) ToggleFavorite(url string) error {
	if err := c.store.ToggleFavorite(url); err != nil {
		return err
	}
	c.flipLocal(url, func(e *Entry) { e.Favorite = !e.Favorite })
	return nil
}

// ToggleOpened is ToggleFavorite for the opened flag.
func (c *Cache) ToggleOpened(url string) error {
	if err := c.store.ToggleOpened(url); err != nil {
		return err
	}
	c.flipLocal(url, func(e *Entry) { e.Opened = !e.Opened })
	return nil
}

func (c *Cache) flipLocal(url string, flip func(*Entry)) {
	c.mu.Lock()
	if e, ok := c.entries[url]; ok {
		flip(&e)
		c.entries[url] = e
		c.rebuildSnapshotLocked()
	}
	c.mu.Unlock()
	c.publish()
}

// Delete removes the URL durably, cancels any pending deadline notification,
// and evicts it from both maps. A failed store delete leaves the notification
// standing, matching the record that still exists. An in-flight resolution
// for the URL is left to complete; its patch becomes a no-op.
func (c *Cache) Delete(url string) error {
	if err := c.store.DeleteLink(url); err != nil {
		return err
	}
	c.scheduler.Cancel(url)
	c.mu.Lock()
	delete(c.entries, url)
	c.rebuildSnapshotLocked()
	c.mu.Unlock()
	c.images.Remove(url)
	c.publish()
	return nil
}

// Lookup returns the cached entry for a URL.
func (c *Cache) Lookup(url string) (Entry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[url]
	return e, ok
}

// Snapshot returns a copy of the current snapshot, newest first.
func (c *Cache) Snapshot() []Entry {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]Entry(nil), c.snapshot...)
}

// Recent returns the n most recently created entries.
func (c *Cache) Recent(n int) []Entry {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if n > len(c.snapshot) {
		n = len(c.snapshot)
	}
	return append([]Entry(nil), c.snapshot[:n]...)
}

// TotalCount returns the number of distinct URLs in the snapshot.
func (c *Cache) TotalCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// DueSoon returns entries whose deadline falls in the expiring-soon window,
// soonest deadline first.
func (c *Cache) DueSoon(now time.Time) []Entry {
	c.mu.RLock()
	var due []Entry
	for _, e := range c.snapshot {
		if e.Deadline != nil && models.InDueWindow(*e.Deadline, now) {
			due = append(due, e)
		}
	}
	c.mu.RUnlock()

	sort.Slice(due, func(i, j int) bool { return due[i].Deadline.Before(*due[j].Deadline) })
	return due
}

// DueSoonCount counts entries whose deadline falls in the expiring-soon
// window.
func (c *Cache) DueSoonCount(now time.Time) int {
	return len(c.DueSoon(now))
}

// Subscribe returns a channel carrying snapshot copies. A slow consumer
// loses intermediate snapshots rather than blocking publication.
func (c *Cache) Subscribe() <-chan []Entry {
	ch := make(chan []Entry, 1)
	c.subMu.Lock()
	c.subs = append(c.subs, ch)
	c.subMu.Unlock()
	return ch
}

func (c *Cache) publish() {
	snap := c.Snapshot()
	c.subMu.Lock()
	defer c.subMu.Unlock()
	for _, ch := range c.subs {
		select {
		case ch <- snap:
		default:
			// Drop the stale snapshot, then try once more.
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- snap:
			default:
			}
		}
	}
}

// rebuildSnapshotLocked resorts the snapshot; callers hold c.mu.
func (c *Cache) rebuildSnapshotLocked() {
	snap := make([]Entry, 0, len(c.entries))
	for _, e := range c.entries {
		snap = append(snap, e)
	}
	sort.Slice(snap, func(i, j int) bool {
		if !snap[i].CreatedAt.Equal(snap[j].CreatedAt) {
			return snap[i].CreatedAt.After(snap[j].CreatedAt)
		}
		return snap[i].URL < snap[j].URL
	})
	c.snapshot = snap
}
