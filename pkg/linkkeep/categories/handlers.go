package categories

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/linkkeep/linkkeep/pkg/linkkeep/catalog"
	"github.com/linkkeep/linkkeep/pkg/linkkeep/models"
)

// Handler handles category-related requests
type Handler struct {
	store *catalog.Store
}

// NewHandler creates a new categories handler
func NewHandler(store *catalog.Store) *Handler {
	return &Handler{store: store}
}

// CreateCategoryRequest represents the request to create a category
type CreateCategoryRequest struct {
	Name       string `json:"name" binding:"required"`
	ColorIndex int    `json:"color_index"`
	Icon       string `json:"icon"`
}

// UpdateCategoryRequest represents the request to update a category
type UpdateCategoryRequest struct {
	Name       string `json:"name" binding:"required"`
	ColorIndex int    `json:"color_index"`
	Icon       string `json:"icon"`
}

// CategoryResponse represents a category in API responses
type CategoryResponse struct {
	ID         uint   `json:"id"`
	Name       string `json:"name"`
	ColorIndex int    `json:"color_index"`
	Icon       string `json:"icon"`
	LinkCount  int    `json:"link_count"`
	Reserved   bool   `json:"reserved"`
	CreatedAt  string `json:"created_at"`
}

func (h *Handler) categoryToResponse(cat models.Category) CategoryResponse {
	count, _ := h.store.UniqueLinkCount(cat.Name)
	return CategoryResponse{
		ID:         cat.ID,
		Name:       cat.Name,
		ColorIndex: cat.ColorIndex,
		Icon:       cat.Icon,
		LinkCount:  count,
		Reserved:   cat.IsReserved(),
		CreatedAt:  cat.CreatedAt.Format("2006-01-02T15:04:05Z"),
	}
}

// List returns all categories
func (h *Handler) List(c *gin.Context) {
	cats, err := h.store.ListCategories()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch categories"})
		return
	}

	responses := make([]CategoryResponse, len(cats))
	for i, cat := range cats {
		responses[i] = h.categoryToResponse(cat)
	}
	c.JSON(http.StatusOK, responses)
}

// Create creates a new category
func (h *Handler) Create(c *gin.Context) {
	var req CreateCategoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ok, err := h.store.CreateCategory(req.Name, req.ColorIndex, req.Icon)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create category"})
		return
	}
	if !ok {
		c.JSON(http.StatusConflict, gin.H{"error": "A category with this name already exists"})
		return
	}

	cat, err := h.store.FindCategory(req.Name)
	if err != nil || cat == nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch created category"})
		return
	}
	c.JSON(http.StatusCreated, h.categoryToResponse(*cat))
}

// Update renames/restyles a category
func (h *Handler) Update(c *gin.Context) {
	name := c.Param("name")

	var req UpdateCategoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	cat, err := h.store.FindCategory(name)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch category"})
		return
	}
	if cat == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Category not found"})
		return
	}

	ok, err := h.store.UpdateCategory(name, req.Name, req.ColorIndex, req.Icon)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update category"})
		return
	}
	if !ok {
		c.JSON(http.StatusConflict, gin.H{"error": "Rename rejected"})
		return
	}

	updated, err := h.store.FindCategory(req.Name)
	if err != nil || updated == nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch updated category"})
		return
	}
	c.JSON(http.StatusOK, h.categoryToResponse(*updated))
}

// Delete removes a category, cascading its exclusive links into the
// reserved category
func (h *Handler) Delete(c *gin.Context) {
	name := c.Param("name")

	if name == models.ReservedCategory {
		c.JSON(http.StatusBadRequest, gin.H{"error": "The reserved category cannot be deleted"})
		return
	}

	cat, err := h.store.FindCategory(name)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch category"})
		return
	}
	if cat == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Category not found"})
		return
	}

	ok, err := h.store.DeleteCategory(name)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete category"})
		return
	}
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Category cannot be deleted"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Category deleted"})
}

// RegisterRoutes registers category routes
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/categories", h.List)
	rg.POST("/categories", h.Create)
	rg.PUT("/categories/:name", h.Update)
	rg.DELETE("/categories/:name", h.Delete)
}
