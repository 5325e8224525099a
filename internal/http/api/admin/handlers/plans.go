package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/visorry/flash-invite-sub001/internal/models"
)

// PlanHandler manages subscription plan CRUD endpoints.
type PlanHandler struct {
	db *gorm.DB // Database handle for plans.
}

// NewPlanHandler constructs a plan handler.
func NewPlanHandler(db *gorm.DB) *PlanHandler {
	return &PlanHandler{db: db}
}

// createPlanRequest captures the payload for creating a plan.
type createPlanRequest struct {
	Name             string   `json:"name"`                // Display name, required.
	Description      string   `json:"description"`         // Optional marketing copy.
	Interval         int      `json:"interval"`            // Billing cadence, 0-2.
	Price            *float64 `json:"price"`               // Price, required, non-negative.
	TokensIncluded   int64    `json:"tokens_included"`     // One-time token grant.
	DailyTokens      int64    `json:"daily_tokens"`        // Recurring daily grant.
	MaxGroups        *int     `json:"max_groups"`          // Optional group cap.
	MaxInvitesPerDay *int     `json:"max_invites_per_day"` // Optional daily invite cap.
	Features         []string `json:"features"`            // Feature labels.
	IsActive         *bool    `json:"is_active"`           // Optional, defaults to true.
}

// Create validates input and inserts a plan.
func (h *PlanHandler) Create(c *gin.Context) {
	var body createPlanRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	name := strings.TrimSpace(body.Name)
	if name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name is required"})
		return
	}
	interval := models.PlanInterval(body.Interval)
	if !interval.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "interval must be 0 (monthly), 1 (yearly) or 2 (lifetime)"})
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
	if body.TokensIncluded < 0 || body.DailyTokens < 0 {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "token grants cannot be negative"})
		return
	}

	features := body.Features
	if features == nil {
		features = []string{}
	}
	featuresJSON, errEncode := json.Marshal(features)
	if errEncode != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid features"})
		return
	}

	isActive := true
	if body.IsActive != nil {
		isActive = *body.IsActive
	}

	now := time.Now().UTC()
	plan := models.Plan{
		Name:             name,
		Description:      strings.TrimSpace(body.Description),
		Interval:         interval,
		Price:            *body.Price,
		TokensIncluded:   body.TokensIncluded,
		DailyTokens:      body.DailyTokens,
		MaxGroups:        body.MaxGroups,
		MaxInvitesPerDay: body.MaxInvitesPerDay,
		Features:         datatypes.JSON(featuresJSON),
		IsActive:         isActive,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if errCreate := h.db.WithContext(c.Request.Context()).Create(&plan).Error; errCreate != nil {
		c.JSON(http.StatusConflict, gin.H{"error": "plan name already exists"})
		return
	}
	c.JSON(http.StatusCreated, plan)
}

// List returns plans, optionally filtered by active state.
func (h *PlanHandler) List(c *gin.Context) {
	q := h.db.WithContext(c.Request.Context()).Model(&models.Plan{})
	switch strings.TrimSpace(c.Query("is_active")) {
	case "true", "1":
		q = q.Where("is_active = ?", true)
	case "false", "0":
		q = q.Where("is_active = ?", false)
	}
	var rows []models.Plan
	if errFind := q.Order("price ASC").Find(&rows).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list plans failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"plans": rows})
}

// Get fetches one plan by ID.
func (h *PlanHandler) Get(c *gin.Context) {
	id, errParse := strconv.ParseUint(strings.TrimSpace(c.Param("id")), 10, 64)
	if errParse != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	var plan models.Plan
	if errFind := h.db.WithContext(c.Request.Context()).First(&plan, id).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	c.JSON(http.StatusOK, plan)
}

// updatePlanRequest captures optional fields for plan updates.
type updatePlanRequest struct {
	Name             *string   `json:"name"`                // Optional new name.
	Description      *string   `json:"description"`         // Optional copy.
	Interval         *int      `json:"interval"`            // Optional cadence.
	Price            *float64  `json:"price"`               // Optional price.
	TokensIncluded   *int64    `json:"tokens_included"`     // Optional token grant.
	DailyTokens      *int64    `json:"daily_tokens"`        // Optional daily grant.
	MaxGroups        *int      `json:"max_groups"`          // Optional group cap.
	MaxInvitesPerDay *int      `json:"max_invites_per_day"` // Optional invite cap.
	Features         *[]string `json:"features"`            // Optional feature labels.
	IsActive         *bool     `json:"is_active"`           // Optional active flag.
}

// Update validates and applies plan changes.
func (h *PlanHandler) Update(c *gin.Context) {
	id, errParse := strconv.ParseUint(strings.TrimSpace(c.Param("id")), 10, 64)
	if errParse != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	var body updatePlanRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	var existing models.Plan
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
	if body.Description != nil {
		updates["description"] = strings.TrimSpace(*body.Description)
	}
	if body.Interval != nil {
		interval := models.PlanInterval(*body.Interval)
		if !interval.Valid() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "interval must be 0 (monthly), 1 (yearly) or 2 (lifetime)"})
			return
		}
		updates["interval"] = interval
	}
	if body.Price != nil {
		if *body.Price < 0 {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "price cannot be negative"})
			return
		}
		updates["price"] = *body.Price
	}
	if body.TokensIncluded != nil {
		if *body.TokensIncluded < 0 {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "tokens_included cannot be negative"})
			return
		}
		updates["tokens_included"] = *body.TokensIncluded
	}
	if body.DailyTokens != nil {
		if *body.DailyTokens < 0 {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "daily_tokens cannot be negative"})
			return
		}
		updates["daily_tokens"] = *body.DailyTokens
	}
	if body.MaxGroups != nil {
		updates["max_groups"] = body.MaxGroups
	}
	if body.MaxInvitesPerDay != nil {
		updates["max_invites_per_day"] = body.MaxInvitesPerDay
	}
	if body.Features != nil {
		featuresJSON, errEncode := json.Marshal(*body.Features)
		if errEncode != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid features"})
			return
		}
		updates["features"] = datatypes.JSON(featuresJSON)
	}
	if body.IsActive != nil {
		updates["is_active"] = *body.IsActive
	}

	if errSave := h.db.WithContext(c.Request.Context()).Model(&models.Plan{}).
		Where("id = ?", id).
		Updates(updates).Error; errSave != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// Delete removes a plan by ID.
func (h *PlanHandler) Delete(c *gin.Context) {
	id, errParse := strconv.ParseUint(strings.TrimSpace(c.Param("id")), 10, 64)
	if errParse != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	res := h.db.WithContext(c.Request.Context()).Delete(&models.Plan{}, id)
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

// Toggle flips a plan's purchasable state.
func (h *PlanHandler) Toggle(c *gin.Context) {
	id, errParse := strconv.ParseUint(strings.TrimSpace(c.Param("id")), 10, 64)
	if errParse != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	res := h.db.WithContext(c.Request.Context()).Model(&models.Plan{}).
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
