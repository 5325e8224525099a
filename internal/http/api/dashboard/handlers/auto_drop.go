package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	apihttp "github.com/visorry/flash-invite-sub001/internal/http"
	"github.com/visorry/flash-invite-sub001/internal/models"
)

// AutoDropHandler manages auto-drop rules for dashboard users.
type AutoDropHandler struct {
	db *gorm.DB // Database handle for auto-drop rules.
}

// NewAutoDropHandler constructs an auto-drop handler.
func NewAutoDropHandler(db *gorm.DB) *AutoDropHandler {
	return &AutoDropHandler{db: db}
}

// createAutoDropRequest captures the payload for creating a rule.
type createAutoDropRequest struct {
	BotID               uint64 `json:"bot_id"`                // Executing bot, required.
	Name                string `json:"name"`                  // Display name, required.
	SourceEntityID      uint64 `json:"source_entity_id"`      // Post source, required.
	DestinationEntityID uint64 `json:"destination_entity_id"` // Drop target, required, distinct from source.

	BatchSize    int    `json:"batch_size"`    // Posts per drop, within [1,10].
	DropInterval int    `json:"drop_interval"` // Interval value, >= 1.
	DropUnit     string `json:"drop_unit"`     // Interval unit.

	StartPostID *int64 `json:"start_post_id"` // Range start, required.
	EndPostID   *int64 `json:"end_post_id"`   // Range end, required, >= start.
}

// Create validates input and inserts a stopped rule.
func (h *AutoDropHandler) Create(c *gin.Context) {
	userID := apihttp.UserID(c)
	var body createAutoDropRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	name := strings.TrimSpace(body.Name)
	if name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name is required"})
		return
	}
	if body.BotID == 0 || body.SourceEntityID == 0 || body.DestinationEntityID == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bot_id, source_entity_id and destination_entity_id are required"})
		return
	}
	if body.SourceEntityID == body.DestinationEntityID {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "source and destination must differ"})
		return
	}
	if body.BatchSize < models.AutoDropMinBatchSize || body.BatchSize > models.AutoDropMaxBatchSize {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "batch_size must be between 1 and 10"})
		return
	}
	if body.DropInterval < 1 {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "drop_interval must be at least 1"})
		return
	}
	dropUnit := models.DropUnit(strings.TrimSpace(body.DropUnit))
	if !dropUnit.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "drop_unit must be seconds, minutes, hours or days"})
		return
	}
	if body.StartPostID == nil || body.EndPostID == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "start_post_id and end_post_id are required"})
		return
	}
	if *body.EndPostID < *body.StartPostID {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "end_post_id must not precede start_post_id"})
		return
	}

	ctx := c.Request.Context()
	var bot models.Bot
	if errFind := h.db.WithContext(ctx).
		Where("id = ? AND owner_id = ?", body.BotID, userID).
		First(&bot).Error; errFind != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "bot not found"})
		return
	}
	for _, entityID := range []uint64{body.SourceEntityID, body.DestinationEntityID} {
		var entity models.TelegramEntity
		if errFind := h.db.WithContext(ctx).
			Where("id = ? AND owner_id = ? AND bot_id = ?", entityID, userID, body.BotID).
			First(&entity).Error; errFind != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "entity not found"})
			return
		}
	}

	now := time.Now().UTC()
	rule := models.AutoDropRule{
		OwnerID:             userID,
		BotID:               body.BotID,
		Name:                name,
		SourceEntityID:      body.SourceEntityID,
		DestinationEntityID: body.DestinationEntityID,
		Status:              models.AutoDropStopped,
		BatchSize:           body.BatchSize,
		DropInterval:        body.DropInterval,
		DropUnit:            dropUnit,
		StartPostID:         body.StartPostID,
		EndPostID:           body.EndPostID,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	if errCreate := h.db.WithContext(ctx).Create(&rule).Error; errCreate != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create rule failed"})
		return
	}
	c.JSON(http.StatusCreated, h.formatRule(&rule))
}

// List returns the user's auto-drop rules.
func (h *AutoDropHandler) List(c *gin.Context) {
	userID := apihttp.UserID(c)
	var rows []models.AutoDropRule
	if errFind := h.db.WithContext(c.Request.Context()).
		Where("owner_id = ?", userID).
		Order("created_at DESC").
		Find(&rows).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list rules failed"})
		return
	}
	out := make([]gin.H, 0, len(rows))
	for i := range rows {
		out = append(out, h.formatRule(&rows[i]))
	}
	c.JSON(http.StatusOK, gin.H{"auto_drop_rules": out})
}

// Get fetches one rule owned by the user.
func (h *AutoDropHandler) Get(c *gin.Context) {
	rule, ok := h.ownedRule(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, h.formatRule(rule))
}

// updateAutoDropRequest captures mutable rule fields.
type updateAutoDropRequest struct {
	Name         *string `json:"name"`          // Optional new name.
	BatchSize    *int    `json:"batch_size"`    // Optional batch size.
	DropInterval *int    `json:"drop_interval"` // Optional interval value.
	DropUnit     *string `json:"drop_unit"`     // Optional interval unit.
	StartPostID  *int64  `json:"start_post_id"` // Optional range start.
	EndPostID    *int64  `json:"end_post_id"`   // Optional range end.
}

// Update validates and applies rule changes. A running rule must be paused
// or stopped first.
func (h *AutoDropHandler) Update(c *gin.Context) {
	rule, ok := h.ownedRule(c)
	if !ok {
		return
	}
	if rule.Status == models.AutoDropRunning {
		c.JSON(http.StatusConflict, gin.H{"error": "pause the rule before editing it"})
		return
	}
	var body updateAutoDropRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
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
	if body.BatchSize != nil {
		if *body.BatchSize < models.AutoDropMinBatchSize || *body.BatchSize > models.AutoDropMaxBatchSize {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "batch_size must be between 1 and 10"})
			return
		}
		updates["batch_size"] = *body.BatchSize
	}
	if body.DropInterval != nil {
		if *body.DropInterval < 1 {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "drop_interval must be at least 1"})
			return
		}
		updates["drop_interval"] = *body.DropInterval
	}
	if body.DropUnit != nil {
		unit := models.DropUnit(strings.TrimSpace(*body.DropUnit))
		if !unit.Valid() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid drop_unit"})
			return
		}
		updates["drop_unit"] = unit
	}
	newStart := rule.StartPostID
	if body.StartPostID != nil {
		newStart = body.StartPostID
		updates["start_post_id"] = body.StartPostID
	}
	newEnd := rule.EndPostID
	if body.EndPostID != nil {
		newEnd = body.EndPostID
		updates["end_post_id"] = body.EndPostID
	}
	if newStart != nil && newEnd != nil && *newEnd < *newStart {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "end_post_id must not precede start_post_id"})
		return
	}

	if errSave := h.db.WithContext(c.Request.Context()).Model(&models.AutoDropRule{}).
		Where("id = ?", rule.ID).
		Updates(updates).Error; errSave != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// Delete removes a rule that is not running.
func (h *AutoDropHandler) Delete(c *gin.Context) {
	rule, ok := h.ownedRule(c)
	if !ok {
		return
	}
	if rule.Status == models.AutoDropRunning {
		c.JSON(http.StatusConflict, gin.H{"error": "pause the rule before deleting it"})
		return
	}
	if errDelete := h.db.WithContext(c.Request.Context()).
		Delete(&models.AutoDropRule{}, rule.ID).Error; errDelete != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "delete failed"})
		return
	}
	c.Status(http.StatusNoContent)
}

// Toggle arms or disarms the rule. Disarming a running rule also stops it.
func (h *AutoDropHandler) Toggle(c *gin.Context) {
	rule, ok := h.ownedRule(c)
	if !ok {
		return
	}
	updates := map[string]any{
		"is_active":  !rule.IsActive,
		"updated_at": time.Now().UTC(),
	}
	if rule.IsActive && rule.Status == models.AutoDropRunning {
		updates["status"] = models.AutoDropStopped
	}
	if errSave := h.db.WithContext(c.Request.Context()).Model(&models.AutoDropRule{}).
		Where("id = ?", rule.ID).
		Updates(updates).Error; errSave != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"is_active": !rule.IsActive})
}

// Start begins dropping for an armed, stopped rule.
func (h *AutoDropHandler) Start(c *gin.Context) {
	h.transition(c, func(rule *models.AutoDropRule) bool { return rule.CanStart() },
		models.AutoDropRunning, "rule cannot be started in its current state")
}

// Pause suspends a running rule.
func (h *AutoDropHandler) Pause(c *gin.Context) {
	h.transition(c, func(rule *models.AutoDropRule) bool { return rule.CanPause() },
		models.AutoDropPaused, "rule cannot be paused in its current state")
}

// Resume continues a paused rule.
func (h *AutoDropHandler) Resume(c *gin.Context) {
	h.transition(c, func(rule *models.AutoDropRule) bool { return rule.CanResume() },
		models.AutoDropRunning, "rule cannot be resumed in its current state")
}

// Reset stops the rule and clears its cursor.
func (h *AutoDropHandler) Reset(c *gin.Context) {
	rule, ok := h.ownedRule(c)
	if !ok {
		return
	}
	if !rule.CanReset() {
		c.JSON(http.StatusConflict, gin.H{"error": "rule cannot be reset in its current state"})
		return
	}
	if errSave := h.db.WithContext(c.Request.Context()).Model(&models.AutoDropRule{}).
		Where("id = ?", rule.ID).
		Updates(map[string]any{
			"status":          models.AutoDropStopped,
			"current_post_id": nil,
			"last_drop_at":    nil,
			"updated_at":      time.Now().UTC(),
		}).Error; errSave != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": models.AutoDropStopped.String()})
}

// transition applies a guarded status change, returning 409 when the guard
// rejects it.
func (h *AutoDropHandler) transition(c *gin.Context, guard func(*models.AutoDropRule) bool, next models.AutoDropStatus, conflictMsg string) {
	rule, ok := h.ownedRule(c)
	if !ok {
		return
	}
	if !guard(rule) {
		c.JSON(http.StatusConflict, gin.H{"error": conflictMsg})
		return
	}
	if errSave := h.db.WithContext(c.Request.Context()).Model(&models.AutoDropRule{}).
		Where("id = ?", rule.ID).
		Updates(map[string]any{
			"status":     next,
			"updated_at": time.Now().UTC(),
		}).Error; errSave != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": next.String()})
}

// ownedRule loads the rule in :id scoped to the authenticated user.
func (h *AutoDropHandler) ownedRule(c *gin.Context) (*models.AutoDropRule, bool) {
	id, errParse := strconv.ParseUint(strings.TrimSpace(c.Param("id")), 10, 64)
	if errParse != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return nil, false
	}
	var rule models.AutoDropRule
	errFind := h.db.WithContext(c.Request.Context()).
		Where("id = ? AND owner_id = ?", id, apihttp.UserID(c)).
		First(&rule).Error
	if errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return nil, false
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return nil, false
	}
	return &rule, true
}

// formatRule converts a rule into a response payload with the derived
// progress percentage.
func (h *AutoDropHandler) formatRule(rule *models.AutoDropRule) gin.H {
	return gin.H{
		"id":                    rule.ID,
		"bot_id":                rule.BotID,
		"name":                  rule.Name,
		"source_entity_id":      rule.SourceEntityID,
		"destination_entity_id": rule.DestinationEntityID,
		"is_active":             rule.IsActive,
		"status":                rule.Status.String(),
		"batch_size":            rule.BatchSize,
		"drop_interval":         rule.DropInterval,
		"drop_unit":             rule.DropUnit,
		"start_post_id":         rule.StartPostID,
		"end_post_id":           rule.EndPostID,
		"current_post_id":       rule.CurrentPostID,
		"progress":              rule.Progress(),
		"last_drop_at":          rule.LastDropAt,
		"created_at":            rule.CreatedAt,
		"updated_at":            rule.UpdatedAt,
	}
}
