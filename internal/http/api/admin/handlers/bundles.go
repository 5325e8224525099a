package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/visorry/flash-invite-sub001/internal/models"
)

// BundleHandler manages token bundle CRUD endpoints.
type BundleHandler struct {
	db *gorm.DB // Database handle for token bundles.
}

// NewBundleHandler constructs a bundle handler.
func NewBundleHandler(db *gorm.DB) *BundleHandler {
	return &BundleHandler{db: db}
}

// createBundleRequest captures the payload for creating a bundle.
type createBundleRequest struct {
	Name        string   `json:"name"`         // Display name, required.
	Tokens      *int64   `json:"tokens"`       // Tokens granted, required, positive.
	BonusTokens int64    `json:"bonus_tokens"` // Promotional extra tokens.
	Price       *float64 `json:"price"`        // Price, required, non-negative.
	IsActive    *bool    `json:"is_active"`    // Optional, defaults to true.
}

// Create validates input and inserts a bundle.
func (h *BundleHandler) Create(c *gin.Context) {
	var body createBundleRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	name := strings.TrimSpace(body.Name)
	if name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name is required"})
		return
	}
	if body.Tokens == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "tokens is required"})
		return
	}
	if *body.Tokens <= 0 {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "tokens must be positive"})
		return
	}
	if body.BonusTokens < 0 {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "bonus_tokens cannot be negative"})
		return
	}
	if body.Price == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "price is required"})
		return
	}
	if *body.Price < 0 {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "price cannot be negative"})
		return
	}

	isActive := true
	if body.IsActive != nil {
		isActive = *body.IsActive
	}
	now := time.Now().UTC()
	bundle := models.TokenBundle{
		Name:        name,
		Tokens:      *body.Tokens,
		BonusTokens: body.BonusTokens,
		Price:       *body.Price,
		IsActive:    isActive,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if errCreate := h.db.WithContext(c.Request.Context()).Create(&bundle).Error; errCreate != nil {
		c.JSON(http.StatusConflict, gin.H{"error": "bundle name already exists"})
		return
	}
	c.JSON(http.StatusCreated, bundle)
}

// List returns token bundles, optionally filtered by active state.
func (h *BundleHandler) List(c *gin.Context) {
	q := h.db.WithContext(c.Request.Context()).Model(&models.TokenBundle{})
	switch strings.TrimSpace(c.Query("is_active")) {
	case "true", "1":
		q = q.Where("is_active = ?", true)
	case "false", "0":
		q = q.Where("is_active = ?", false)
	}
	var rows []models.TokenBundle
	if errFind := q.Order("price ASC").Find(&rows).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list bundles failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"token_bundles": rows})
}

// updateBundleRequest captures optional fields for bundle updates.
type updateBundleRequest struct {
	Name        *string  `json:"name"`         // Optional new name.
	Tokens      *int64   `json:"tokens"`       // Optional token amount.
	BonusTokens *int64   `json:"bonus_tokens"` // Optional bonus amount.
	Price       *float64 `json:"price"`        // Optional price.
	IsActive    *bool    `json:"is_active"`    // Optional active flag.
}

// Update validates and applies bundle changes.
func (h *BundleHandler) Update(c *gin.Context) {
	id, errParse := strconv.ParseUint(strings.TrimSpace(c.Param("id")), 10, 64)
	if errParse != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	var body updateBundleRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	var existing models.TokenBundle
	if errFind := h.db.WithContext(c.Request.Context()).First(&existing, id).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}

	updates := map[string]any{"updated_at": time.Now().UTC()}
	if body.Name != nil {
		name := strings.TrimSpace(*body.Name)
		if name == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "name cannot be empty"})
			return
		}
		updates["name"] = name
	}
	if body.Tokens != nil {
		if *body.Tokens <= 0 {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "tokens must be positive"})
			return
		}
		updates["tokens"] = *body.Tokens
	}
	if body.BonusTokens != nil {
		if *body.BonusTokens < 0 {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "bonus_tokens cannot be negative"})
			return
		}
		updates["bonus_tokens"] = *body.BonusTokens
	}
	if body.Price != nil {
		if *body.Price < 0 {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "price cannot be negative"})
			return
		}
		updates["price"] = *body.Price
	}
	if body.IsActive != nil {
		updates["is_active"] = *body.IsActive
	}

	if errSave := h.db.WithContext(c.Request.Context()).Model(&models.TokenBundle{}).
		Where("id = ?", id).
		Updates(updates).Error; errSave != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// Delete removes a bundle by ID.
func (h *BundleHandler) Delete(c *gin.Context) {
	id, errParse := strconv.ParseUint(strings.TrimSpace(c.Param("id")), 10, 64)
	if errParse != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	res := h.db.WithContext(c.Request.Context()).Delete(&models.TokenBundle{}, id)
	if res.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "delete failed"})
		return
	}
	if res.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	c.Status(http.StatusNoContent)
}

// Toggle flips a bundle's purchasable state.
func (h *BundleHandler) Toggle(c *gin.Context) {
	id, errParse := strconv.ParseUint(strings.TrimSpace(c.Param("id")), 10, 64)
	if errParse != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	res := h.db.WithContext(c.Request.Context()).Model(&models.TokenBundle{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"is_active":  gorm.Expr("NOT is_active"),
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update failed"})
		return
	}
	if res.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}
