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

	"github.com/visorry/flash-invite-sub001/internal/billing"
	apihttp "github.com/visorry/flash-invite-sub001/internal/http"
	"github.com/visorry/flash-invite-sub001/internal/models"
	"github.com/visorry/flash-invite-sub001/internal/util"
)

// ForwardRuleHandler manages forwarding rules for dashboard users.
type ForwardRuleHandler struct {
	db *gorm.DB // Database handle for forward rules.
}

// NewForwardRuleHandler constructs a forward rule handler.
func NewForwardRuleHandler(db *gorm.DB) *ForwardRuleHandler {
	return &ForwardRuleHandler{db: db}
}

// keywordList accepts either a JSON array of keywords or a single
// comma-separated string, normalizing both into a trimmed list.
type keywordList []string

// UnmarshalJSON implements the dual representation.
func (k *keywordList) UnmarshalJSON(data []byte) error {
	var list []string
	if errList := json.Unmarshal(data, &list); errList == nil {
		out := make([]string, 0, len(list))
		for _, kw := range list {
			if trimmed := strings.TrimSpace(kw); trimmed != "" {
				out = append(out, trimmed)
			}
		}
		*k = out
		return nil
	}
	var raw string
	if errStr := json.Unmarshal(data, &raw); errStr != nil {
		return errStr
	}
	*k = util.SplitKeywords(raw)
	return nil
}

// encode renders the list as stored JSON, with nil becoming an empty array.
func (k keywordList) encode() datatypes.JSON {
	if k == nil {
		k = keywordList{}
	}
	encoded, _ := json.Marshal([]string(k))
	return datatypes.JSON(encoded)
}

// createForwardRuleRequest captures the payload for creating a rule.
type createForwardRuleRequest struct {
	BotID               uint64 `json:"bot_id"`                // Executing bot, required.
	Name                string `json:"name"`                  // Display name, required.
	SourceEntityID      uint64 `json:"source_entity_id"`      // Source entity, required.
	DestinationEntityID uint64 `json:"destination_entity_id"` // Destination entity, required, distinct from source.

	ScheduleMode int `json:"schedule_mode"` // 0 realtime, 1 scheduled.

	BatchSize        int    `json:"batch_size"`         // Scheduled batch size, >= 1.
	PostInterval     int    `json:"post_interval"`      // Scheduled interval value, >= 1.
	PostIntervalUnit string `json:"post_interval_unit"` // Scheduled interval unit.

	DeleteAfterEnabled bool   `json:"delete_after_enabled"` // Delete forwarded posts later.
	DeleteInterval     int    `json:"delete_interval"`      // Delete delay value.
	DeleteIntervalUnit string `json:"delete_interval_unit"` // Delete delay unit, "never" allowed.

	BroadcastEnabled            bool   `json:"broadcast_enabled"`              // Post a message after each batch.
	BroadcastText               string `json:"broadcast_text"`                 // Post-batch message text.
	BroadcastDeleteInterval     int    `json:"broadcast_delete_interval"`      // Notice delete delay.
	BroadcastDeleteIntervalUnit string `json:"broadcast_delete_interval_unit"` // Notice delete unit.

	StartFromMessageID *int64 `json:"start_from_message_id"` // Optional range start.
	EndAtMessageID     *int64 `json:"end_at_message_id"`     // Optional range end.

	Shuffle        bool `json:"shuffle"`          // Randomize batch order.
	RepeatWhenDone bool `json:"repeat_when_done"` // Restart after the range completes.

	ForwardMedia     *bool `json:"forward_media"`     // Content filters, default true.
	ForwardText      *bool `json:"forward_text"`      //
	ForwardDocuments *bool `json:"forward_documents"` //
	ForwardStickers  *bool `json:"forward_stickers"`  //
	ForwardPolls     *bool `json:"forward_polls"`     //

	RemoveLinks         bool   `json:"remove_links"`          // Strip URLs.
	AddWatermark        bool   `json:"add_watermark"`         // Append watermark.
	WatermarkText       string `json:"watermark_text"`        // Watermark content.
	DeleteWatermark     string `json:"delete_watermark"`      // Watermark to strip.
	HideSenderName      bool   `json:"hide_sender_name"`      // Drop forward header.
	HideAuthorSignature bool   `json:"hide_author_signature"` // Drop signatures.
	CopyMode            bool   `json:"copy_mode"`             // Copy instead of forward.

	IncludeKeywords keywordList `json:"include_keywords"` // Only forward matching posts.
	ExcludeKeywords keywordList `json:"exclude_keywords"` // Skip matching posts.
}

// Create validates input, charges the automation cost and inserts a rule.
func (h *ForwardRuleHandler) Create(c *gin.Context) {
	userID := apihttp.UserID(c)
	var body createForwardRuleRequest
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
	mode := models.ScheduleMode(body.ScheduleMode)
	if !mode.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "schedule_mode must be 0 (realtime) or 1 (scheduled)"})
		return
	}

	batchSize := body.BatchSize
	postInterval := body.PostInterval
	postIntervalUnit := models.IntervalUnit(strings.TrimSpace(body.PostIntervalUnit))
	if mode == models.ScheduleModeScheduled {
		if batchSize < 1 {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "batch_size must be at least 1"})
			return
		}
		if postInterval < 1 {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "post_interval must be at least 1"})
			return
		}
		if !postIntervalUnit.Valid() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "post_interval_unit must be seconds, minutes, hours, days or months"})
			return
		}
		if body.StartFromMessageID != nil && body.EndAtMessageID != nil &&
			*body.EndAtMessageID < *body.StartFromMessageID {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "end_at_message_id must not precede start_from_message_id"})
			return
		}
	} else {
		if batchSize < 1 {
			batchSize = 1
		}
		if postInterval < 1 {
			postInterval = 1
		}
		if postIntervalUnit == "" {
			postIntervalUnit = models.IntervalMinutes
		}
	}

	deleteIntervalUnit := models.IntervalNever
	if body.DeleteAfterEnabled {
		deleteIntervalUnit = models.IntervalUnit(strings.TrimSpace(body.DeleteIntervalUnit))
		if !deleteIntervalUnit.ValidForDelete() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid delete_interval_unit"})
			return
		}
		if deleteIntervalUnit != models.IntervalNever && body.DeleteInterval < 1 {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "delete_interval must be at least 1"})
			return
		}
	}
	broadcastDeleteUnit := models.IntervalNever
	if body.BroadcastEnabled {
		if strings.TrimSpace(body.BroadcastText) == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "broadcast_text is required when broadcast_enabled"})
			return
		}
		if raw := strings.TrimSpace(body.BroadcastDeleteIntervalUnit); raw != "" {
			broadcastDeleteUnit = models.IntervalUnit(raw)
			if !broadcastDeleteUnit.ValidForDelete() {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid broadcast_delete_interval_unit"})
				return
			}
		}
	}

	ctx := c.Request.Context()
	if !h.ownsBotAndEntities(c, userID, body.BotID, body.SourceEntityID, body.DestinationEntityID) {
		return
	}

	var existingRules int64
	if errCount := h.db.WithContext(ctx).Model(&models.ForwardRule{}).
		Where("owner_id = ?", userID).
		Count(&existingRules).Error; errCount != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	cost, errCost := billing.AutomationCost(ctx, h.db, models.FeatureForwardRule, existingRules)
	if errCost != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "automation cost unavailable"})
		return
	}

	boolOr := func(v *bool, fallback bool) bool {
		if v == nil {
			return fallback
		}
		return *v
	}

	now := time.Now().UTC()
	rule := models.ForwardRule{
		OwnerID:             userID,
		BotID:               body.BotID,
		Name:                name,
		SourceEntityID:      body.SourceEntityID,
		DestinationEntityID: body.DestinationEntityID,
		ScheduleMode:        mode,
		ScheduleStatus:      models.ScheduleStatusIdle,
		BatchSize:           batchSize,
		PostInterval:        postInterval,
		PostIntervalUnit:    postIntervalUnit,
		DeleteAfterEnabled:  body.DeleteAfterEnabled,
		DeleteInterval:      body.DeleteInterval,
		DeleteIntervalUnit:  deleteIntervalUnit,

		BroadcastEnabled:            body.BroadcastEnabled,
		BroadcastText:               strings.TrimSpace(body.BroadcastText),
		BroadcastDeleteInterval:     body.BroadcastDeleteInterval,
		BroadcastDeleteIntervalUnit: broadcastDeleteUnit,

		StartFromMessageID: body.StartFromMessageID,
		EndAtMessageID:     body.EndAtMessageID,
		Shuffle:            body.Shuffle,
		RepeatWhenDone:     body.RepeatWhenDone,

		ForwardMedia:     boolOr(body.ForwardMedia, true),
		ForwardText:      boolOr(body.ForwardText, true),
		ForwardDocuments: boolOr(body.ForwardDocuments, true),
		ForwardStickers:  boolOr(body.ForwardStickers, true),
		ForwardPolls:     boolOr(body.ForwardPolls, true),

		RemoveLinks:         body.RemoveLinks,
		AddWatermark:        body.AddWatermark,
		WatermarkText:       strings.TrimSpace(body.WatermarkText),
		DeleteWatermark:     strings.TrimSpace(body.DeleteWatermark),
		HideSenderName:      body.HideSenderName,
		HideAuthorSignature: body.HideAuthorSignature,
		CopyMode:            body.CopyMode,

		IncludeKeywords: body.IncludeKeywords.encode(),
		ExcludeKeywords: body.ExcludeKeywords.encode(),

		CreatedAt: now,
		UpdatedAt: now,
	}

	errTx := h.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if errCreate := tx.Create(&rule).Error; errCreate != nil {
			return errCreate
		}
		if cost > 0 {
			return billing.Charge(ctx, tx, userID, cost, models.TokenTxAutomation,
				"forward_rule:"+strconv.FormatUint(rule.ID, 10))
		}
		return nil
	})
	if errTx != nil {
		var insufficient *billing.InsufficientBalanceError
		if errors.As(errTx, &insufficient) {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": insufficient.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create rule failed"})
		return
	}
	c.JSON(http.StatusCreated, rule)
}

// ownsBotAndEntities verifies the bot and both entities belong to the user
// and the entities belong to the bot. Responds and returns false on failure.
func (h *ForwardRuleHandler) ownsBotAndEntities(c *gin.Context, userID, botID, sourceID, destinationID uint64) bool {
	ctx := c.Request.Context()
	var bot models.Bot
	if errFind := h.db.WithContext(ctx).
		Where("id = ? AND owner_id = ?", botID, userID).
		First(&bot).Error; errFind != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "bot not found"})
		return false
	}
	for _, entityID := range []uint64{sourceID, destinationID} {
		var entity models.TelegramEntity
		if errFind := h.db.WithContext(ctx).
			Where("id = ? AND owner_id = ? AND bot_id = ?", entityID, userID, botID).
			First(&entity).Error; errFind != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "entity not found"})
			return false
		}
	}
	return true
}

// List returns the user's rules, optionally filtered by schedule mode.
func (h *ForwardRuleHandler) List(c *gin.Context) {
	userID := apihttp.UserID(c)
	q := h.db.WithContext(c.Request.Context()).Model(&models.ForwardRule{}).
		Where("owner_id = ?", userID)
	if raw := strings.TrimSpace(c.Query("schedule_mode")); raw != "" {
		if mode, errParse := strconv.Atoi(raw); errParse == nil && models.ScheduleMode(mode).Valid() {
			q = q.Where("schedule_mode = ?", mode)
		}
	}
	var rows []models.ForwardRule
	if errFind := q.Order("created_at DESC").Find(&rows).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list rules failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"forward_rules": rows})
}

// Get fetches one rule owned by the user.
func (h *ForwardRuleHandler) Get(c *gin.Context) {
	rule, ok := h.ownedRule(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, rule)
}

// updateForwardRuleRequest captures mutable rule fields. Source, destination
// and bot are fixed at creation and cannot be changed here.
type updateForwardRuleRequest struct {
	Name *string `json:"name"` // Optional new name.

	BotID               *uint64 `json:"bot_id"`                // Rejected when present.
	SourceEntityID      *uint64 `json:"source_entity_id"`      // Rejected when present.
	DestinationEntityID *uint64 `json:"destination_entity_id"` // Rejected when present.

	BatchSize        *int    `json:"batch_size"`         // Optional batch size.
	PostInterval     *int    `json:"post_interval"`      // Optional interval value.
	PostIntervalUnit *string `json:"post_interval_unit"` // Optional interval unit.

	DeleteAfterEnabled *bool   `json:"delete_after_enabled"` // Optional delete toggle.
	DeleteInterval     *int    `json:"delete_interval"`      // Optional delete value.
	DeleteIntervalUnit *string `json:"delete_interval_unit"` // Optional delete unit.

	BroadcastEnabled            *bool   `json:"broadcast_enabled"`              // Optional notice toggle.
	BroadcastText               *string `json:"broadcast_text"`                 // Optional notice text.
	BroadcastDeleteInterval     *int    `json:"broadcast_delete_interval"`      // Optional notice delete value.
	BroadcastDeleteIntervalUnit *string `json:"broadcast_delete_interval_unit"` // Optional notice delete unit.

	StartFromMessageID *int64 `json:"start_from_message_id"` // Optional range start.
	EndAtMessageID     *int64 `json:"end_at_message_id"`     // Optional range end.

	Shuffle        *bool `json:"shuffle"`          // Optional shuffle flag.
	RepeatWhenDone *bool `json:"repeat_when_done"` // Optional repeat flag.

	ForwardMedia     *bool `json:"forward_media"`     // Optional content filters.
	ForwardText      *bool `json:"forward_text"`      //
	ForwardDocuments *bool `json:"forward_documents"` //
	ForwardStickers  *bool `json:"forward_stickers"`  //
	ForwardPolls     *bool `json:"forward_polls"`     //

	RemoveLinks         *bool   `json:"remove_links"`          // Optional modification flags.
	AddWatermark        *bool   `json:"add_watermark"`         //
	WatermarkText       *string `json:"watermark_text"`        //
	DeleteWatermark     *string `json:"delete_watermark"`      //
	HideSenderName      *bool   `json:"hide_sender_name"`      //
	HideAuthorSignature *bool   `json:"hide_author_signature"` //
	CopyMode            *bool   `json:"copy_mode"`             //

	IncludeKeywords *keywordList `json:"include_keywords"` // Optional include list.
	ExcludeKeywords *keywordList `json:"exclude_keywords"` // Optional exclude list.
}

// Update validates and applies rule changes.
func (h *ForwardRuleHandler) Update(c *gin.Context) {
	rule, ok := h.ownedRule(c)
	if !ok {
		return
	}
	var body updateForwardRuleRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if body.BotID != nil || body.SourceEntityID != nil || body.DestinationEntityID != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "bot and endpoints cannot be changed after creation"})
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
		if *body.BatchSize < 1 {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "batch_size must be at least 1"})
			return
		}
		updates["batch_size"] = *body.BatchSize
	}
	if body.PostInterval != nil {
		if *body.PostInterval < 1 {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "post_interval must be at least 1"})
			return
		}
		updates["post_interval"] = *body.PostInterval
	}
	if body.PostIntervalUnit != nil {
		unit := models.IntervalUnit(strings.TrimSpace(*body.PostIntervalUnit))
		if !unit.Valid() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid post_interval_unit"})
			return
		}
		updates["post_interval_unit"] = unit
	}
	if body.DeleteAfterEnabled != nil {
		updates["delete_after_enabled"] = *body.DeleteAfterEnabled
	}
	if body.DeleteInterval != nil {
		if *body.DeleteInterval < 0 {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "delete_interval cannot be negative"})
			return
		}
		updates["delete_interval"] = *body.DeleteInterval
	}
	if body.DeleteIntervalUnit != nil {
		unit := models.IntervalUnit(strings.TrimSpace(*body.DeleteIntervalUnit))
		if !unit.ValidForDelete() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid delete_interval_unit"})
			return
		}
		updates["delete_interval_unit"] = unit
	}
	if body.BroadcastEnabled != nil {
		updates["broadcast_enabled"] = *body.BroadcastEnabled
	}
	if body.BroadcastText != nil {
		updates["broadcast_text"] = strings.TrimSpace(*body.BroadcastText)
	}
	if body.BroadcastDeleteInterval != nil {
		updates["broadcast_delete_interval"] = *body.BroadcastDeleteInterval
	}
	if body.BroadcastDeleteIntervalUnit != nil {
		unit := models.IntervalUnit(strings.TrimSpace(*body.BroadcastDeleteIntervalUnit))
		if !unit.ValidForDelete() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid broadcast_delete_interval_unit"})
			return
		}
		updates["broadcast_delete_interval_unit"] = unit
	}
	newStart := rule.StartFromMessageID
	if body.StartFromMessageID != nil {
		newStart = body.StartFromMessageID
	}
	newEnd := rule.EndAtMessageID
	if body.EndAtMessageID != nil {
		newEnd = body.EndAtMessageID
	}
	if newStart != nil && newEnd != nil && *newEnd < *newStart {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "end_at_message_id must not precede start_from_message_id"})
		return
	}
	if body.StartFromMessageID != nil {
		updates["start_from_message_id"] = body.StartFromMessageID
	}
	if body.EndAtMessageID != nil {
		updates["end_at_message_id"] = body.EndAtMessageID
	}
	if body.Shuffle != nil {
		updates["shuffle"] = *body.Shuffle
	}
	if body.RepeatWhenDone != nil {
		updates["repeat_when_done"] = *body.RepeatWhenDone
	}
	for column, value := range map[string]*bool{
		"forward_media":         body.ForwardMedia,
		"forward_text":          body.ForwardText,
		"forward_documents":     body.ForwardDocuments,
		"forward_stickers":      body.ForwardStickers,
		"forward_polls":         body.ForwardPolls,
		"remove_links":          body.RemoveLinks,
		"add_watermark":         body.AddWatermark,
		"hide_sender_name":      body.HideSenderName,
		"hide_author_signature": body.HideAuthorSignature,
		"copy_mode":             body.CopyMode,
	} {
		if value != nil {
			updates[column] = *value
		}
	}
	if body.WatermarkText != nil {
		updates["watermark_text"] = strings.TrimSpace(*body.WatermarkText)
	}
	if body.DeleteWatermark != nil {
		updates["delete_watermark"] = strings.TrimSpace(*body.DeleteWatermark)
	}
	if body.IncludeKeywords != nil {
		updates["include_keywords"] = body.IncludeKeywords.encode()
	}
	if body.ExcludeKeywords != nil {
		updates["exclude_keywords"] = body.ExcludeKeywords.encode()
	}

	if errSave := h.db.WithContext(c.Request.Context()).Model(&models.ForwardRule{}).
		Where("id = ?", rule.ID).
		Updates(updates).Error; errSave != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// Delete removes a rule owned by the user.
func (h *ForwardRuleHandler) Delete(c *gin.Context) {
	rule, ok := h.ownedRule(c)
	if !ok {
		return
	}
	if errDelete := h.db.WithContext(c.Request.Context()).
		Delete(&models.ForwardRule{}, rule.ID).Error; errDelete != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "delete failed"})
		return
	}
	c.Status(http.StatusNoContent)
}

// Toggle flips a realtime rule's active switch.
func (h *ForwardRuleHandler) Toggle(c *gin.Context) {
	rule, ok := h.ownedRule(c)
	if !ok {
		return
	}
	if errSave := h.db.WithContext(c.Request.Context()).Model(&models.ForwardRule{}).
		Where("id = ?", rule.ID).
		Updates(map[string]any{
			"is_active":  !rule.IsActive,
			"updated_at": time.Now().UTC(),
		}).Error; errSave != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"is_active": !rule.IsActive})
}

// Start moves an idle scheduled rule into the running state.
func (h *ForwardRuleHandler) Start(c *gin.Context) {
	h.transition(c, func(rule *models.ForwardRule) bool { return rule.CanStart() },
		models.ScheduleStatusRunning, "rule cannot be started in its current state")
}

// Pause suspends a running scheduled rule.
func (h *ForwardRuleHandler) Pause(c *gin.Context) {
	h.transition(c, func(rule *models.ForwardRule) bool { return rule.CanPause() },
		models.ScheduleStatusPaused, "rule cannot be paused in its current state")
}

// Resume continues a paused scheduled rule.
func (h *ForwardRuleHandler) Resume(c *gin.Context) {
	h.transition(c, func(rule *models.ForwardRule) bool { return rule.CanResume() },
		models.ScheduleStatusRunning, "rule cannot be resumed in its current state")
}

// Reset returns a rule to idle and clears its cursor.
func (h *ForwardRuleHandler) Reset(c *gin.Context) {
	rule, ok := h.ownedRule(c)
	if !ok {
		return
	}
	if !rule.CanReset() {
		c.JSON(http.StatusConflict, gin.H{"error": "rule cannot be reset in its current state"})
		return
	}
	if errSave := h.db.WithContext(c.Request.Context()).Model(&models.ForwardRule{}).
		Where("id = ?", rule.ID).
		Updates(map[string]any{
			"schedule_status":    models.ScheduleStatusIdle,
			"current_message_id": nil,
			"last_run_at":        nil,
			"updated_at":         time.Now().UTC(),
		}).Error; errSave != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"schedule_status": models.ScheduleStatusIdle})
}

// transition applies a guarded status change, returning 409 when the guard
// rejects it.
func (h *ForwardRuleHandler) transition(c *gin.Context, guard func(*models.ForwardRule) bool, next models.ScheduleStatus, conflictMsg string) {
	rule, ok := h.ownedRule(c)
	if !ok {
		return
	}
	if !guard(rule) {
		c.JSON(http.StatusConflict, gin.H{"error": conflictMsg})
		return
	}
	if errSave := h.db.WithContext(c.Request.Context()).Model(&models.ForwardRule{}).
		Where("id = ?", rule.ID).
		Updates(map[string]any{
			"schedule_status": next,
			"updated_at":      time.Now().UTC(),
		}).Error; errSave != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"schedule_status": next})
}

// ownedRule loads the rule in :id scoped to the authenticated user. On
// failure it responds and returns false.
func (h *ForwardRuleHandler) ownedRule(c *gin.Context) (*models.ForwardRule, bool) {
	id, errParse := strconv.ParseUint(strings.TrimSpace(c.Param("id")), 10, 64)
	if errParse != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return nil, false
	}
	var rule models.ForwardRule
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
