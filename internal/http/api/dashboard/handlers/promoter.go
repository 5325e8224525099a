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

// PromoterHandler manages per-bot promoter mode configuration.
type PromoterHandler struct {
	db *gorm.DB // Database handle for promoter configs.
}

// NewPromoterHandler constructs a promoter handler.
func NewPromoterHandler(db *gorm.DB) *PromoterHandler {
	return &PromoterHandler{db: db}
}

// promoterRequest carries the writable promoter config fields. Pointer fields
// are optional on update.
type promoterRequest struct {
	BotID             uint64 `json:"bot_id"`              // Bot to run promoter mode on, create only.
	VaultEntityID     uint64 `json:"vault_entity_id"`     // Content source entity.
	MarketingEntityID uint64 `json:"marketing_entity_id"` // Advertising entity.

	CTATemplate     string `json:"cta_template"`      // Must contain the {link} placeholder.
	TokenExpiryDays *int   `json:"token_expiry_days"` // Deep-link validity in days.

	MarketingDeleteInterval     *int    `json:"marketing_delete_interval"`      // Marketing post delete delay.
	MarketingDeleteIntervalUnit *string `json:"marketing_delete_interval_unit"` // "never" disables.
	ContentDeleteInterval       *int    `json:"content_delete_interval"`        // Delivered content delete delay.
	ContentDeleteIntervalUnit   *string `json:"content_delete_interval_unit"`   // "never" disables.

	RemoveLinks    *bool   `json:"remove_links"`     // Strip URLs from delivered content.
	AddWatermark   *bool   `json:"add_watermark"`    // Append watermark text.
	WatermarkText  *string `json:"watermark_text"`   // Watermark content.
	HideSenderName *bool   `json:"hide_sender_name"` // Drop the forward header.
	CopyMode       *bool   `json:"copy_mode"`        // Copy instead of forward.

	IsActive *bool `json:"is_active"` // Arm or disarm promoter mode.
}

// List returns the user's promoter configs, optionally filtered by bot.
func (h *PromoterHandler) List(c *gin.Context) {
	userID := apihttp.UserID(c)
	q := h.db.WithContext(c.Request.Context()).
		Where("owner_id = ?", userID)
	if raw := strings.TrimSpace(c.Query("bot_id")); raw != "" {
		if botID, errParse := strconv.ParseUint(raw, 10, 64); errParse == nil {
			q = q.Where("bot_id = ?", botID)
		}
	}
	var configs []models.PromoterConfig
	if errFind := q.Order("created_at DESC").Find(&configs).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list promoter configs failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"promoter_configs": configs})
}

// Get fetches one promoter config owned by the user.
func (h *PromoterHandler) Get(c *gin.Context) {
	cfg, ok := h.ownedConfig(c, apihttp.UserID(c))
	if !ok {
		return
	}
	c.JSON(http.StatusOK, cfg)
}

// Create sets up promoter mode for a bot. A bot carries at most one config.
func (h *PromoterHandler) Create(c *gin.Context) {
	userID := apihttp.UserID(c)
	var body promoterRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if body.BotID == 0 || body.VaultEntityID == 0 || body.MarketingEntityID == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bot_id, vault_entity_id and marketing_entity_id are required"})
		return
	}
	body.CTATemplate = strings.TrimSpace(body.CTATemplate)
	if body.CTATemplate == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "cta_template is required"})
		return
	}
	if !strings.Contains(body.CTATemplate, models.CTALinkPlaceholder) {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "cta_template must contain the {link} placeholder"})
		return
	}
	if body.VaultEntityID == body.MarketingEntityID {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "vault and marketing entities must differ"})
		return
	}

	ctx := c.Request.Context()
	if !h.ownsBotAndEntities(c, userID, body.BotID, body.VaultEntityID, body.MarketingEntityID) {
		return
	}

	cfg := models.PromoterConfig{
		OwnerID:           userID,
		BotID:             body.BotID,
		VaultEntityID:     body.VaultEntityID,
		MarketingEntityID: body.MarketingEntityID,
		CTATemplate:       body.CTATemplate,
		TokenExpiryDays:   1,
	}
	if !applyPromoterOptions(c, &cfg, &body) {
		return
	}

	var existing int64
	if errCount := h.db.WithContext(ctx).Model(&models.PromoterConfig{}).
		Where("bot_id = ?", body.BotID).
		Count(&existing).Error; errCount != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	if existing > 0 {
		c.JSON(http.StatusConflict, gin.H{"error": "bot already has a promoter config"})
		return
	}
	if errCreate := h.db.WithContext(ctx).Create(&cfg).Error; errCreate != nil {
		c.JSON(http.StatusConflict, gin.H{"error": "bot already has a promoter config"})
		return
	}
	c.JSON(http.StatusCreated, cfg)
}

// Update edits an existing config. The bot binding is immutable; entities may
// be repointed as long as they stay distinct and owned.
func (h *PromoterHandler) Update(c *gin.Context) {
	userID := apihttp.UserID(c)
	cfg, ok := h.ownedConfig(c, userID)
	if !ok {
		return
	}
	var body promoterRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if body.BotID != 0 && body.BotID != cfg.BotID {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "bot cannot be changed after creation"})
		return
	}
	if body.VaultEntityID != 0 {
		cfg.VaultEntityID = body.VaultEntityID
	}
	if body.MarketingEntityID != 0 {
		cfg.MarketingEntityID = body.MarketingEntityID
	}
	if cfg.VaultEntityID == cfg.MarketingEntityID {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "vault and marketing entities must differ"})
		return
	}
	if body.VaultEntityID != 0 || body.MarketingEntityID != 0 {
		if !h.ownsBotAndEntities(c, userID, cfg.BotID, cfg.VaultEntityID, cfg.MarketingEntityID) {
			return
		}
	}
	if raw := strings.TrimSpace(body.CTATemplate); raw != "" {
		if !strings.Contains(raw, models.CTALinkPlaceholder) {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "cta_template must contain the {link} placeholder"})
			return
		}
		cfg.CTATemplate = raw
	}
	if !applyPromoterOptions(c, cfg, &body) {
		return
	}
	cfg.UpdatedAt = time.Now().UTC()
	if errSave := h.db.WithContext(c.Request.Context()).Save(cfg).Error; errSave != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update promoter config failed"})
		return
	}
	c.JSON(http.StatusOK, cfg)
}

// Delete removes a promoter config.
func (h *PromoterHandler) Delete(c *gin.Context) {
	userID := apihttp.UserID(c)
	res := h.db.WithContext(c.Request.Context()).
		Where("id = ? AND owner_id = ?", c.Param("id"), userID).
		Delete(&models.PromoterConfig{})
	if res.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "delete promoter config failed"})
		return
	}
	if res.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "promoter config not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": true})
}

// Toggle arms or disarms promoter mode.
func (h *PromoterHandler) Toggle(c *gin.Context) {
	userID := apihttp.UserID(c)
	cfg, ok := h.ownedConfig(c, userID)
	if !ok {
		return
	}
	if errUpdate := h.db.WithContext(c.Request.Context()).Model(cfg).
		Updates(map[string]any{
			"is_active":  gorm.Expr("NOT is_active"),
			"updated_at": time.Now().UTC(),
		}).Error; errUpdate != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "toggle promoter config failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"is_active": !cfg.IsActive})
}

// applyPromoterOptions validates and copies the optional fields onto cfg.
// It writes the error response and returns false on validation failure.
func applyPromoterOptions(c *gin.Context, cfg *models.PromoterConfig, body *promoterRequest) bool {
	if body.TokenExpiryDays != nil {
		if *body.TokenExpiryDays < 1 {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "token_expiry_days must be at least 1"})
			return false
		}
		cfg.TokenExpiryDays = *body.TokenExpiryDays
	}
	if body.MarketingDeleteIntervalUnit != nil {
		unit := models.IntervalUnit(*body.MarketingDeleteIntervalUnit)
		if !unit.ValidForDelete() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid marketing_delete_interval_unit"})
			return false
		}
		cfg.MarketingDeleteIntervalUnit = unit
	}
	if body.MarketingDeleteInterval != nil {
		if *body.MarketingDeleteInterval < 0 {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "marketing_delete_interval must not be negative"})
			return false
		}
		cfg.MarketingDeleteInterval = *body.MarketingDeleteInterval
	}
	if body.ContentDeleteIntervalUnit != nil {
		unit := models.IntervalUnit(*body.ContentDeleteIntervalUnit)
		if !unit.ValidForDelete() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid content_delete_interval_unit"})
			return false
		}
		cfg.ContentDeleteIntervalUnit = unit
	}
	if body.ContentDeleteInterval != nil {
		if *body.ContentDeleteInterval < 0 {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "content_delete_interval must not be negative"})
			return false
		}
		cfg.ContentDeleteInterval = *body.ContentDeleteInterval
	}
	if body.RemoveLinks != nil {
		cfg.RemoveLinks = *body.RemoveLinks
	}
	if body.AddWatermark != nil {
		cfg.AddWatermark = *body.AddWatermark
	}
	if body.WatermarkText != nil {
		cfg.WatermarkText = strings.TrimSpace(*body.WatermarkText)
	}
	if body.HideSenderName != nil {
		cfg.HideSenderName = *body.HideSenderName
	}
	if body.CopyMode != nil {
		cfg.CopyMode = *body.CopyMode
	}
	if body.IsActive != nil {
		cfg.IsActive = *body.IsActive
	}
	return true
}

// ownsBotAndEntities verifies the bot belongs to the user and both entities
// belong to the user and are linked to that bot. Writes 404 and returns false
// otherwise.
func (h *PromoterHandler) ownsBotAndEntities(c *gin.Context, userID, botID, vaultID, marketingID uint64) bool {
	ctx := c.Request.Context()
	var bot models.Bot
	if errFind := h.db.WithContext(ctx).
		Where("id = ? AND owner_id = ?", botID, userID).
		First(&bot).Error; errFind != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "bot not found"})
		return false
	}
	var count int64
	if errCount := h.db.WithContext(ctx).Model(&models.TelegramEntity{}).
		Where("id IN ? AND owner_id = ? AND bot_id = ?", []uint64{vaultID, marketingID}, userID, botID).
		Count(&count).Error; errCount != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return false
	}
	if count != 2 {
		c.JSON(http.StatusNotFound, gin.H{"error": "entity not found"})
		return false
	}
	return true
}

func (h *PromoterHandler) ownedConfig(c *gin.Context, userID uint64) (*models.PromoterConfig, bool) {
	var cfg models.PromoterConfig
	errFind := h.db.WithContext(c.Request.Context()).
		Where("id = ? AND owner_id = ?", c.Param("id"), userID).
		First(&cfg).Error
	if errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "promoter config not found"})
		} else {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		}
		return nil, false
	}
	return &cfg, true
}
