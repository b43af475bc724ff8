package links

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/linkkeep/linkkeep/pkg/linkkeep/cache"
	"github.com/linkkeep/linkkeep/pkg/linkkeep/catalog"
	"github.com/linkkeep/linkkeep/pkg/linkkeep/notify"
)

// Handler handles link-related requests. Reads come from the cache snapshot;
// writes go through the store (or the cache, for single-field toggles).
type Handler struct {
	store     *catalog.Store
	cache     *cache.Cache
	scheduler notify.Scheduler
}

// NewHandler creates a new links handler
func NewHandler(store *catalog.Store, c *cache.Cache, scheduler notify.Scheduler) *Handler {
	return &Handler{store: store, cache: c, scheduler: scheduler}
}

// CreateLinkRequest represents the request to save a link into a category
type CreateLinkRequest struct {
	URL         string     `json:"url" binding:"required,url"`
	Title       string     `json:"title"`
	Memo        *string    `json:"memo"`
	Description *string    `json:"description"`
	Category    string     `json:"category" binding:"required"`
	Deadline    *time.Time `json:"deadline"`
	Favorite    bool       `json:"favorite"`
}

// UpdateLinkRequest represents the request to edit a link. Categories becomes
// the exact new membership set.
type UpdateLinkRequest struct {
	URL        string     `json:"url" binding:"required,url"`
	Title      string     `json:"title"`
	Memo       *string    `json:"memo"`
	Categories []string   `json:"categories" binding:"required,min=1"`
	Deadline   *time.Time `json:"deadline"`
}

// Create saves a URL into a category. Adding a URL that already exists
// elsewhere attaches the existing shared record rather than duplicating it.
func (h *Handler) Create(c *gin.Context) {
	var req CreateLinkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	cat, err := h.store.FindCategory(req.Category)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch category"})
		return
	}
	if cat == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Category not found"})
		return
	}

	err = h.store.AddLink(catalog.AddLinkParams{
		Title:        req.Title,
		URL:          req.URL,
		Memo:         req.Memo,
		Description:  req.Description,
		CategoryName: req.Category,
		Deadline:     req.Deadline,
		Favorite:     req.Favorite,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save link"})
		return
	}

	if req.Deadline != nil {
		h.scheduler.Schedule(req.URL, req.Title, *req.Deadline)
	}

	entry, _ := h.cache.Lookup(req.URL)
	c.JSON(http.StatusCreated, entry)
}

// Get returns the cached entry for a URL
func (h *Handler) Get(c *gin.Context) {
	url := c.Query("url")
	if url == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "url query parameter required"})
		return
	}
	entry, ok := h.cache.Lookup(url)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Link not found"})
		return
	}
	c.JSON(http.StatusOK, entry)
}

// Update edits a link: new title/memo/deadline and an exact new category
// membership set. Favorite, opened state and the open counter survive the
// edit; the record id does not, so clients must keep referring to the URL.
func (h *Handler) Update(c *gin.Context) {
	var req UpdateLinkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	link, err := h.store.GetLink(req.URL)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch link"})
		return
	}
	if link == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Link not found"})
		return
	}

	err = h.store.UpdateLink(req.URL, catalog.UpdateLinkParams{
		Title:             req.Title,
		Memo:              req.Memo,
		Description:       link.Description,
		CategoryNames:     req.Categories,
		Deadline:          req.Deadline,
		PreserveFavorite:  true,
		PreserveOpened:    true,
		PreserveOpenCount: true,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update link"})
		return
	}

	// Reschedule under the same URL key; a changed deadline replaces the
	// previous notification, a removed one just cancels.
	h.scheduler.Cancel(req.URL)
	if req.Deadline != nil {
		h.scheduler.Schedule(req.URL, req.Title, *req.Deadline)
	}

	entry, _ := h.cache.Lookup(req.URL)
	c.JSON(http.StatusOK, entry)
}

// Delete removes a link from every category that references it
func (h *Handler) Delete(c *gin.Context) {
	url := c.Query("url")
	if url == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "url query parameter required"})
		return
	}
	if _, ok := h.cache.Lookup(url); !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Link not found"})
		return
	}
	if err := h.cache.Delete(url); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete link"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Link deleted"})
}

// ToggleFavorite flips the favorite flag
func (h *Handler) ToggleFavorite(c *gin.Context) {
	h.toggle(c, h.cache.ToggleFavorite)
}

// ToggleOpened flips the opened flag
func (h *Handler) ToggleOpened(c *gin.Context) {
	h.toggle(c, h.cache.ToggleOpened)
}

func (h *Handler) toggle(c *gin.Context, flip func(string) error) {
	url := c.Query("url")
	if url == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "url query parameter required"})
		return
	}
	if _, ok := h.cache.Lookup(url); !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Link not found"})
		return
	}
	if err := flip(url); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to toggle"})
		return
	}
	entry, _ := h.cache.Lookup(url)
	c.JSON(http.StatusOK, entry)
}

// Open records a link being opened: bumps the counter, marks it opened
func (h *Handler) Open(c *gin.Context) {
	url := c.Query("url")
	if url == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "url query parameter required"})
		return
	}
	link, err := h.store.GetLink(url)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch link"})
		return
	}
	if link == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Link not found"})
		return
	}
	if err := h.store.IncrementOpenCount(url); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to record open"})
		return
	}
	entry, _ := h.cache.Lookup(url)
	c.JSON(http.StatusOK, entry)
}

// List returns the snapshot, optionally filtered by category name or a
// free-text query over title, memo and URL
func (h *Handler) List(c *gin.Context) {
	snap := h.cache.Snapshot()

	if category := c.Query("category"); category != "" {
		snap = filter(snap, func(e cache.Entry) bool {
			for _, ref := range e.Categories {
				if ref.Name == category {
					return true
				}
			}
			return false
		})
	}
	if q := strings.ToLower(c.Query("q")); q != "" {
		snap = filter(snap, func(e cache.Entry) bool {
			if strings.Contains(strings.ToLower(e.Title), q) ||
				strings.Contains(strings.ToLower(e.URL), q) {
				return true
			}
			return e.Memo != nil && strings.Contains(strings.ToLower(*e.Memo), q)
		})
	}
	if favorite := c.Query("favorite"); favorite != "" {
		want := favorite == "true"
		snap = filter(snap, func(e cache.Entry) bool { return e.Favorite == want })
	}

	c.JSON(http.StatusOK, snap)
}

// Recent returns the n most recently saved links
func (h *Handler) Recent(c *gin.Context) {
	n := 10
	if v := c.Query("n"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 && parsed <= 100 {
			n = parsed
		}
	}
	c.JSON(http.StatusOK, h.cache.Recent(n))
}

// DueSoon returns links whose deadline falls within today plus the next
// three days, soonest first
func (h *Handler) DueSoon(c *gin.Context) {
	now := time.Now()
	due := h.cache.DueSoon(now)
	c.JSON(http.StatusOK, gin.H{
		"count": len(due),
		"links": due,
	})
}

// Stats returns snapshot-level counts
func (h *Handler) Stats(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"total":    h.cache.TotalCount(),
		"due_soon": h.cache.DueSoonCount(time.Now()),
	})
}

// Thumbnail serves the cached thumbnail for a URL
func (h *Handler) Thumbnail(c *gin.Context) {
	url := c.Query("url")
	if url == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "url query parameter required"})
		return
	}
	img, ok := h.cache.Images().Get(url)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "No thumbnail"})
		return
	}
	c.Data(http.StatusOK, http.DetectContentType(img), img)
}

func filter(entries []cache.Entry, keep func(cache.Entry) bool) []cache.Entry {
	out := entries[:0:0]
	for _, e := range entries {
		if keep(e) {
			out = append(out, e)
		}
	}
	return out
}

// RegisterRoutes registers link routes
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/links", h.List)
	rg.POST("/links", h.Create)
	rg.PUT("/links", h.Update)
	rg.DELETE("/links", h.Delete)

	rg.GET("/links/one", h.Get)
	rg.GET("/links/recent", h.Recent)
	rg.GET("/links/due-soon", h.DueSoon)
	rg.GET("/links/stats", h.Stats)
	rg.GET("/links/thumbnail", h.Thumbnail)

	rg.POST("/links/favorite", h.ToggleFavorite)
	rg.POST("/links/opened", h.ToggleOpened)
	rg.POST("/links/open", h.Open)
}
