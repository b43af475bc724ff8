package importer

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/linkkeep/linkkeep/pkg/linkkeep/catalog"
	"github.com/linkkeep/linkkeep/pkg/linkkeep/models"
)

// Handler handles bulk import requests
type Handler struct {
	store *catalog.Store
}

// NewHandler creates a new import handler
func NewHandler(store *catalog.Store) *Handler {
	return &Handler{store: store}
}

// ImportItem represents a single link in an import payload
type ImportItem struct {
	URL         string `json:"url" binding:"required"`
	Title       string `json:"title"`
	Memo        string `json:"memo"`
	Description string `json:"description"`
	Category    string `json:"category"`
	Deadline    string `json:"deadline"`
	Favorite    bool   `json:"favorite"`
	CreatedAt   string `json:"created_at"`
}

// ImportRequest represents an import request
type ImportRequest struct {
	Links []ImportItem `json:"links" binding:"required"`
}

// ImportResult represents the result of an import operation
type ImportResult struct {
	Imported int      `json:"imported"`
	Updated  int      `json:"updated"`
	Skipped  int      `json:"skipped"`
	Errors   []string `json:"errors,omitempty"`
}

func parseItemTime(value string) (time.Time, error) {
	if value == "" {
		return time.Now(), nil
	}
	parsed, err := time.Parse(time.RFC3339, value)
	if err != nil {
		// Try date-only format
		parsed, err = time.Parse("2006-01-02", value)
		if err != nil {
			return time.Time{}, err
		}
	}
	return parsed, nil
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// Import imports links in bulk. Items are processed independently so one
// bad item never aborts the batch.
func (h *Handler) Import(c *gin.Context) {
	var req ImportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result := ImportResult{
		Errors: []string{},
	}

	for i, item := range req.Links {
		createdAt, err := parseItemTime(item.CreatedAt)
		if err != nil {
			result.Errors = append(result.Errors, "link "+strconv.Itoa(i)+": invalid created_at format")
			result.Skipped++
			continue
		}

		var deadline *time.Time
		if item.Deadline != "" {
			parsed, err := parseItemTime(item.Deadline)
			if err != nil {
				result.Errors = append(result.Errors, "link "+strconv.Itoa(i)+": invalid deadline format")
				result.Skipped++
				continue
			}
			deadline = &parsed
		}

		// Existing links get their text refreshed in place, keeping their
		// category memberships and flags.
		existing, err := h.store.GetLink(item.URL)
		if err != nil {
			result.Errors = append(result.Errors, "link "+strconv.Itoa(i)+": "+err.Error())
			result.Skipped++
			continue
		}
		if existing != nil {
			title := item.Title
			if title == "" {
				title = existing.Title
			}
			// Absent fields keep their stored values; the memo in
			// particular is user-authored and must survive a re-import.
			memo := existing.Memo
			if item.Memo != "" {
				memo = optional(item.Memo)
			}
			description := existing.Description
			if item.Description != "" {
				description = optional(item.Description)
			}
			if err := h.store.UpdateLinkTitleAndDescription(item.URL, title, memo, description); err != nil {
				result.Errors = append(result.Errors, "link "+strconv.Itoa(i)+": "+err.Error())
				result.Skipped++
				continue
			}
			result.Updated++
			continue
		}

		categoryName := item.Category
		if categoryName == "" {
			categoryName = models.ReservedCategory
		}
		category, err := h.store.FindCategory(categoryName)
		if err != nil {
			result.Errors = append(result.Errors, "link "+strconv.Itoa(i)+": "+err.Error())
			result.Skipped++
			continue
		}
		if category == nil {
			if _, err := h.store.CreateCategory(categoryName, 0, ""); err != nil {
				result.Errors = append(result.Errors, "link "+strconv.Itoa(i)+": "+err.Error())
				result.Skipped++
				continue
			}
		}

		params := catalog.AddLinkParams{
			Title:        item.Title,
			URL:          item.URL,
			Memo:         optional(item.Memo),
			Description:  optional(item.Description),
			CategoryName: categoryName,
			Deadline:     deadline,
			Favorite:     item.Favorite,
			CreatedAt:    createdAt,
		}
		if err := h.store.AddLink(params); err != nil {
			result.Errors = append(result.Errors, "link "+strconv.Itoa(i)+": "+err.Error())
			result.Skipped++
			continue
		}
		result.Imported++
	}

	c.JSON(http.StatusOK, result)
}

// RegisterRoutes registers import routes
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/import", h.Import)
}
