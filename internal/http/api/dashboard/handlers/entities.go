package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	apihttp "github.com/visorry/flash-invite-sub001/internal/http"
	"github.com/visorry/flash-invite-sub001/internal/models"
)

// EntityHandler serves the user's linked Telegram entities.
type EntityHandler struct {
	db *gorm.DB // Database handle for entities.
}

// NewEntityHandler constructs an entity handler.
func NewEntityHandler(db *gorm.DB) *EntityHandler {
	return &EntityHandler{db: db}
}

// List returns the user's entities, optionally filtered by bot or type.
func (h *EntityHandler) List(c *gin.Context) {
	userID := apihttp.UserID(c)
	q := h.db.WithContext(c.Request.Context()).Model(&models.TelegramEntity{}).
		Where("owner_id = ?", userID)
	if raw := strings.TrimSpace(c.Query("bot_id")); raw != "" {
		if botID, errParse := strconv.ParseUint(raw, 10, 64); errParse == nil {
			q = q.Where("bot_id = ?", botID)
		}
	}
	if entityType := strings.TrimSpace(c.Query("type")); entityType != "" {
		q = q.Where("type = ?", entityType)
	}
	var rows []models.TelegramEntity
	if errFind := q.Order("title ASC").Find(&rows).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list entities failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"telegram_entities": rows})
}

// Get fetches one entity owned by the user.
func (h *EntityHandler) Get(c *gin.Context) {
	id, errParse := strconv.ParseUint(strings.TrimSpace(c.Param("id")), 10, 64)
	if errParse != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	var entity models.TelegramEntity
	errFind := h.db.WithContext(c.Request.Context()).
		Where("id = ? AND owner_id = ?", id, apihttp.UserID(c)).
		First(&entity).Error
	if errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	c.JSON(http.StatusOK, entity)
}
