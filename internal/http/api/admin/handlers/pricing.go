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

// PricingHandler manages token pricing and automation pricing tables.
type PricingHandler struct {
	db *gorm.DB // Database handle for pricing rows.
}

// NewPricingHandler constructs a pricing handler.
func NewPricingHandler(db *gorm.DB) *PricingHandler {
	return &PricingHandler{db: db}
}

// ListTokenPricing returns all configured duration-unit prices.
func (h *PricingHandler) ListTokenPricing(c *gin.Context) {
	var rows []models.TokenPricing
	if errFind := h.db.WithContext(c.Request.Context()).
		Order("duration_unit ASC").
		Find(&rows).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list token pricing failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"token_pricing": rows})
}

// upsertTokenPricingRequest carries one duration-unit price.
type upsertTokenPricingRequest struct {
	DurationUnit int      `json:"duration_unit"` // Priced unit, 0-4.
	CostPerUnit  *float64 `json:"cost_per_unit"` // Tokens per unit, required, non-negative.
}

// UpsertTokenPricing creates or replaces the price for one duration unit.
func (h *PricingHandler) UpsertTokenPricing(c *gin.Context) {
	var body upsertTokenPricingRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	unit := models.DurationUnit(body.DurationUnit)
	if !unit.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "duration_unit must be 0 (minute) through 4 (year)"})
		return
	}
	if body.CostPerUnit == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "cost_per_unit is required"})
		return
	}
	if *body.CostPerUnit < 0 {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "cost_per_unit cannot be negative"})
		return
	}

	now := time.Now().UTC()
	var existing models.TokenPricing
	errFind := h.db.WithContext(c.Request.Context()).
		Where("duration_unit = ?", unit).
		First(&existing).Error
	switch {
	case errFind == nil:
		if errSave := h.db.WithContext(c.Request.Context()).Model(&existing).
			Updates(map[string]any{"cost_per_unit": *body.CostPerUnit, "updated_at": now}).Error; errSave != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "update token pricing failed"})
			return
		}
		existing.CostPerUnit = *body.CostPerUnit
		c.JSON(http.StatusOK, existing)
	case errors.Is(errFind, gorm.ErrRecordNotFound):
		row := models.TokenPricing{DurationUnit: unit, CostPerUnit: *body.CostPerUnit, CreatedAt: now, UpdatedAt: now}
		if errCreate := h.db.WithContext(c.Request.Context()).Create(&row).Error; errCreate != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "create token pricing failed"})
			return
		}
		c.JSON(http.StatusCreated, row)
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
	}
}

// DeleteTokenPricing removes the price for one duration unit.
func (h *PricingHandler) DeleteTokenPricing(c *gin.Context) {
	raw, errParse := strconv.Atoi(strings.TrimSpace(c.Param("durationUnit")))
	if errParse != nil || !models.DurationUnit(raw).Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid duration unit"})
		return
	}
	res := h.db.WithContext(c.Request.Context()).
		Where("duration_unit = ?", models.DurationUnit(raw)).
		Delete(&models.TokenPricing{})
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

// ListAutomationPricing returns per-feature automation prices.
func (h *PricingHandler) ListAutomationPricing(c *gin.Context) {
	var rows []models.AutomationPricing
	if errFind := h.db.WithContext(c.Request.Context()).
		Order("feature_type ASC").
		Find(&rows).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list automation pricing failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"automation_pricing": rows})
}

// upsertAutomationPricingRequest carries one feature price.
type upsertAutomationPricingRequest struct {
	FeatureType      int      `json:"feature_type"`       // Priced feature, 0-1.
	CostPerRule      *float64 `json:"cost_per_rule"`      // Tokens per rule, required, non-negative.
	FreeRulesAllowed *int     `json:"free_rules_allowed"` // Optional free allowance, non-negative.
}

// UpsertAutomationPricing creates or replaces the price for one feature.
func (h *PricingHandler) UpsertAutomationPricing(c *gin.Context) {
	var body upsertAutomationPricingRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	feature := models.FeatureType(body.FeatureType)
	if !feature.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "feature_type must be 0 (auto approval) or 1 (forward rule)"})
		return
	}
	if body.CostPerRule == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "cost_per_rule is required"})
		return
	}
	if *body.CostPerRule < 0 {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "cost_per_rule cannot be negative"})
		return
	}
	freeAllowed := 0
	if body.FreeRulesAllowed != nil {
		if *body.FreeRulesAllowed < 0 {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "free_rules_allowed cannot be negative"})
			return
		}
		freeAllowed = *body.FreeRulesAllowed
	}

	now := time.Now().UTC()
	var existing models.AutomationPricing
	errFind := h.db.WithContext(c.Request.Context()).
		Where("feature_type = ?", feature).
		First(&existing).Error
	switch {
	case errFind == nil:
		updates := map[string]any{"cost_per_rule": *body.CostPerRule, "updated_at": now}
		if body.FreeRulesAllowed != nil {
			updates["free_rules_allowed"] = freeAllowed
		}
		if errSave := h.db.WithContext(c.Request.Context()).Model(&existing).Updates(updates).Error; errSave != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "update automation pricing failed"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"ok": true})
	case errors.Is(errFind, gorm.ErrRecordNotFound):
		row := models.AutomationPricing{
			FeatureType:      feature,
			CostPerRule:      *body.CostPerRule,
			FreeRulesAllowed: freeAllowed,
			CreatedAt:        now,
			UpdatedAt:        now,
		}
		if errCreate := h.db.WithContext(c.Request.Context()).Create(&row).Error; errCreate != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "create automation pricing failed"})
			return
		}
		c.JSON(http.StatusCreated, row)
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
	}
}

// DeleteAutomationPricing removes the price for one feature.
func (h *PricingHandler) DeleteAutomationPricing(c *gin.Context) {
	raw, errParse := strconv.Atoi(strings.TrimSpace(c.Param("featureType")))
	if errParse != nil || !models.FeatureType(raw).Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid feature type"})
		return
	}
	res := h.db.WithContext(c.Request.Context()).
		Where("feature_type = ?", models.FeatureType(raw)).
		Delete(&models.AutomationPricing{})
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
