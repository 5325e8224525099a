package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/visorry/flash-invite-sub001/internal/broadcast"
	apihttp "github.com/visorry/flash-invite-sub001/internal/http"
	"github.com/visorry/flash-invite-sub001/internal/models"
)

// BroadcastHandler manages subscriber broadcasts for dashboard users.
type BroadcastHandler struct {
	db         *gorm.DB              // Database handle for broadcasts.
	dispatcher *broadcast.Dispatcher // Delivery worker.
}

// NewBroadcastHandler constructs a broadcast handler.
func NewBroadcastHandler(db *gorm.DB, dispatcher *broadcast.Dispatcher) *BroadcastHandler {
	return &BroadcastHandler{db: db, dispatcher: dispatcher}
}

// createBroadcastRequest captures the payload for creating a broadcast.
// Either a message body or a source post reference is required.
type createBroadcastRequest struct {
	BotID           uint64  `json:"bot_id"`            // Sending bot, required.
	Title           string  `json:"title"`             // Display title, required.
	Message         string  `json:"message"`           // Message body.
	ParseMode       string  `json:"parse_mode"`        // Optional Telegram parse mode.
	SourceEntityID  *uint64 `json:"source_entity_id"`  // Optional source group.
	SourceMessageID *int64  `json:"source_message_id"` // Optional post to forward.
}

// Create validates input and inserts a pending broadcast.
func (h *BroadcastHandler) Create(c *gin.Context) {
	userID := apihttp.UserID(c)
	var body createBroadcastRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	title := strings.TrimSpace(body.Title)
	if title == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "title is required"})
		return
	}
	if body.BotID == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bot_id is required"})
		return
	}
	message := strings.TrimSpace(body.Message)
	hasSource := body.SourceEntityID != nil && body.SourceMessageID != nil
	if message == "" && !hasSource {
		c.JSON(http.StatusBadRequest, gin.H{"error": "message or source post is required"})
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
	if hasSource {
		var entity models.TelegramEntity
		if errFind := h.db.WithContext(ctx).
			Where("id = ? AND owner_id = ? AND bot_id = ?", *body.SourceEntityID, userID, body.BotID).
			First(&entity).Error; errFind != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "source entity not found"})
			return
		}
	}

	now := time.Now().UTC()
	b := models.Broadcast{
		OwnerID:         userID,
		BotID:           body.BotID,
		Title:           title,
		Message:         message,
		ParseMode:       strings.TrimSpace(body.ParseMode),
		SourceEntityID:  body.SourceEntityID,
		SourceMessageID: body.SourceMessageID,
		Status:          models.BroadcastPending,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if errCreate := h.db.WithContext(ctx).Create(&b).Error; errCreate != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create broadcast failed"})
		return
	}
	c.JSON(http.StatusCreated, h.formatBroadcast(&b))
}

// List returns the user's broadcasts, newest first.
func (h *BroadcastHandler) List(c *gin.Context) {
	userID := apihttp.UserID(c)
	q := h.db.WithContext(c.Request.Context()).Model(&models.Broadcast{}).
		Where("owner_id = ?", userID)
	if raw := strings.TrimSpace(c.Query("status")); raw != "" {
		if status, errParse := strconv.Atoi(raw); errParse == nil {
			q = q.Where("status = ?", status)
		}
	}
	var rows []models.Broadcast
	if errFind := q.Order("created_at DESC").Find(&rows).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list broadcasts failed"})
		return
	}
	out := make([]gin.H, 0, len(rows))
	for i := range rows {
		out = append(out, h.formatBroadcast(&rows[i]))
	}
	c.JSON(http.StatusOK, gin.H{"broadcasts": out})
}

// Get fetches one broadcast owned by the user.
func (h *BroadcastHandler) Get(c *gin.Context) {
	b, ok := h.ownedBroadcast(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, h.formatBroadcast(b))
}

// updateBroadcastRequest captures mutable broadcast fields. Only pending
// broadcasts accept changes; sent ones are revised via Duplicate.
type updateBroadcastRequest struct {
	Title           *string `json:"title"`             // Optional new title.
	Message         *string `json:"message"`           // Optional new body.
	ParseMode       *string `json:"parse_mode"`        // Optional parse mode.
	SourceEntityID  *uint64 `json:"source_entity_id"`  // Optional source group.
	SourceMessageID *int64  `json:"source_message_id"` // Optional source post.
}

// Update applies changes to a pending broadcast.
func (h *BroadcastHandler) Update(c *gin.Context) {
	b, ok := h.ownedBroadcast(c)
	if !ok {
		return
	}
	if !b.CanUpdate() {
		c.JSON(http.StatusConflict, gin.H{"error": "only pending broadcasts can be edited; duplicate to revise"})
		return
	}
	var body updateBroadcastRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	updates := map[string]any{"updated_at": time.Now().UTC()}
	if body.Title != nil {
		title := strings.TrimSpace(*body.Title)
		if title == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "title cannot be empty"})
			return
		}
		updates["title"] = title
	}
	if body.Message != nil {
		updates["message"] = strings.TrimSpace(*body.Message)
	}
	if body.ParseMode != nil {
		updates["parse_mode"] = strings.TrimSpace(*body.ParseMode)
	}
	if body.SourceEntityID != nil {
		updates["source_entity_id"] = body.SourceEntityID
	}
	if body.SourceMessageID != nil {
		updates["source_message_id"] = body.SourceMessageID
	}

	if errSave := h.db.WithContext(c.Request.Context()).Model(&models.Broadcast{}).
		Where("id = ? AND status = ?", b.ID, models.BroadcastPending).
		Updates(updates).Error; errSave != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// Delete removes a broadcast that is not currently delivering.
func (h *BroadcastHandler) Delete(c *gin.Context) {
	b, ok := h.ownedBroadcast(c)
	if !ok {
		return
	}
	if b.Status == models.BroadcastInProgress {
		c.JSON(http.StatusConflict, gin.H{"error": "cancel the broadcast before deleting it"})
		return
	}
	if errDelete := h.db.WithContext(c.Request.Context()).
		Delete(&models.Broadcast{}, b.ID).Error; errDelete != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "delete failed"})
		return
	}
	c.Status(http.StatusNoContent)
}

// Send starts delivery of a pending broadcast in the background.
func (h *BroadcastHandler) Send(c *gin.Context) {
	b, ok := h.ownedBroadcast(c)
	if !ok {
		return
	}
	if !b.CanSend() {
		c.JSON(http.StatusConflict, gin.H{"error": "broadcast cannot be sent in its current state"})
		return
	}
	id := b.ID
	go func() {
		if errDispatch := h.dispatcher.Dispatch(contextWithoutCancel(c), id); errDispatch != nil {
			log.WithError(errDispatch).Errorf("broadcast %d dispatch failed", id)
		}
	}()
	c.JSON(http.StatusAccepted, gin.H{"status": models.BroadcastInProgress})
}

// Cancel stops a pending or in-progress broadcast.
func (h *BroadcastHandler) Cancel(c *gin.Context) {
	b, ok := h.ownedBroadcast(c)
	if !ok {
		return
	}
	if !b.CanCancel() {
		c.JSON(http.StatusConflict, gin.H{"error": "broadcast cannot be cancelled in its current state"})
		return
	}
	now := time.Now().UTC()
	if errSave := h.db.WithContext(c.Request.Context()).Model(&models.Broadcast{}).
		Where("id = ? AND status IN ?", b.ID, []models.BroadcastStatus{models.BroadcastPending, models.BroadcastInProgress}).
		Updates(map[string]any{
			"status":      models.BroadcastCancelled,
			"finished_at": now,
			"updated_at":  now,
		}).Error; errSave != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": models.BroadcastCancelled})
}

// Duplicate clones a broadcast into a fresh pending one, preserving its
// message settings and recording the lineage. This is how a sent broadcast
// is revised.
func (h *BroadcastHandler) Duplicate(c *gin.Context) {
	b, ok := h.ownedBroadcast(c)
	if !ok {
		return
	}
	now := time.Now().UTC()
	clone := models.Broadcast{
		OwnerID:          b.OwnerID,
		BotID:            b.BotID,
		Title:            b.Title + " (copy)",
		Message:          b.Message,
		ParseMode:        b.ParseMode,
		SourceEntityID:   b.SourceEntityID,
		SourceMessageID:  b.SourceMessageID,
		Status:           models.BroadcastPending,
		DuplicatedFromID: &b.ID,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if errCreate := h.db.WithContext(c.Request.Context()).Create(&clone).Error; errCreate != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "duplicate failed"})
		return
	}
	c.JSON(http.StatusCreated, h.formatBroadcast(&clone))
}

// Preview returns the rendered message and the current recipient count
// without sending anything.
func (h *BroadcastHandler) Preview(c *gin.Context) {
	b, ok := h.ownedBroadcast(c)
	if !ok {
		return
	}
	var recipients int64
	if errCount := h.db.WithContext(c.Request.Context()).Model(&models.Subscriber{}).
		Where("bot_id = ? AND is_blocked = ?", b.BotID, false).
		Count(&recipients).Error; errCount != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"title":      b.Title,
		"message":    b.Message,
		"parse_mode": b.ParseMode,
		"recipients": recipients,
	})
}

// BotsWithSubscribers lists the user's bots that have at least one
// unblocked subscriber, with counts.
func (h *BroadcastHandler) BotsWithSubscribers(c *gin.Context) {
	userID := apihttp.UserID(c)
	type row struct {
		BotID       uint64 `json:"bot_id"`
		Username    string `json:"username"`
		Subscribers int64  `json:"subscribers"`
	}
	var rows []row
	errFind := h.db.WithContext(c.Request.Context()).
		Table("bots").
		Select("bots.id AS bot_id, bots.username AS username, COUNT(subscribers.id) AS subscribers").
		Joins("JOIN subscribers ON subscribers.bot_id = bots.id AND subscribers.is_blocked = ?", false).
		Where("bots.owner_id = ?", userID).
		Group("bots.id, bots.username").
		Scan(&rows).Error
	if errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"bots": rows})
}

// SourceGroups lists a bot's linked entities usable as broadcast sources.
func (h *BroadcastHandler) SourceGroups(c *gin.Context) {
	botID, ok := h.ownedBotID(c)
	if !ok {
		return
	}
	var entities []models.TelegramEntity
	if errFind := h.db.WithContext(c.Request.Context()).
		Where("bot_id = ? AND is_linked = ?", botID, true).
		Order("title ASC").
		Find(&entities).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"entities": entities})
}

// Subscribers lists a bot's subscribers with pagination.
func (h *BroadcastHandler) Subscribers(c *gin.Context) {
	botID, ok := h.ownedBotID(c)
	if !ok {
		return
	}
	page, pageSize := pagination(c)

	var total int64
	q := h.db.WithContext(c.Request.Context()).Model(&models.Subscriber{}).
		Where("bot_id = ?", botID)
	if errCount := q.Count(&total).Error; errCount != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	var rows []models.Subscriber
	if errFind := q.Order("subscribed_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&rows).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"subscribers": rows,
		"total":       total,
		"page":        page,
		"page_size":   pageSize,
	})
}

// SubscriberStats aggregates subscriber counts for a bot.
func (h *BroadcastHandler) SubscriberStats(c *gin.Context) {
	botID, ok := h.ownedBotID(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	base := h.db.WithContext(ctx).Model(&models.Subscriber{}).Where("bot_id = ?", botID)

	var total, blocked, recent int64
	if errCount := base.Session(&gorm.Session{}).Count(&total).Error; errCount != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	if errCount := base.Session(&gorm.Session{}).Where("is_blocked = ?", true).Count(&blocked).Error; errCount != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	weekAgo := time.Now().UTC().AddDate(0, 0, -7)
	if errCount := base.Session(&gorm.Session{}).Where("subscribed_at >= ?", weekAgo).Count(&recent).Error; errCount != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"total":          total,
		"blocked":        blocked,
		"reachable":      total - blocked,
		"new_last_7days": recent,
	})
}

// ownedBotID parses :botID and verifies ownership.
func (h *BroadcastHandler) ownedBotID(c *gin.Context) (uint64, bool) {
	botID, errParse := strconv.ParseUint(strings.TrimSpace(c.Param("botID")), 10, 64)
	if errParse != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid bot id"})
		return 0, false
	}
	var bot models.Bot
	if errFind := h.db.WithContext(c.Request.Context()).
		Where("id = ? AND owner_id = ?", botID, apihttp.UserID(c)).
		First(&bot).Error; errFind != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "bot not found"})
		return 0, false
	}
	return botID, true
}

// ownedBroadcast loads the broadcast in :id scoped to the authenticated
// user. On failure it responds and returns false.
func (h *BroadcastHandler) ownedBroadcast(c *gin.Context) (*models.Broadcast, bool) {
	id, errParse := strconv.ParseUint(strings.TrimSpace(c.Param("id")), 10, 64)
	if errParse != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return nil, false
	}
	var b models.Broadcast
	errFind := h.db.WithContext(c.Request.Context()).
		Where("id = ? AND owner_id = ?", id, apihttp.UserID(c)).
		First(&b).Error
	if errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return nil, false
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return nil, false
	}
	return &b, true
}

// formatBroadcast converts a broadcast into a response payload with the
// derived progress percentage.
func (h *BroadcastHandler) formatBroadcast(b *models.Broadcast) gin.H {
	return gin.H{
		"id":                 b.ID,
		"bot_id":             b.BotID,
		"title":              b.Title,
		"message":            b.Message,
		"parse_mode":         b.ParseMode,
		"source_entity_id":   b.SourceEntityID,
		"source_message_id":  b.SourceMessageID,
		"status":             b.Status,
		"total_recipients":   b.TotalRecipients,
		"sent_count":         b.SentCount,
		"failed_count":       b.FailedCount,
		"blocked_count":      b.BlockedCount,
		"progress":           b.Progress(),
		"duplicated_from_id": b.DuplicatedFromID,
		"started_at":         b.StartedAt,
		"finished_at":        b.FinishedAt,
		"last_error":         b.LastError,
		"created_at":         b.CreatedAt,
		"updated_at":         b.UpdatedAt,
	}
}
