package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/visorry/flash-invite-sub001/internal/settings"
	"github.com/visorry/flash-invite-sub001/internal/telegram"
	"github.com/visorry/flash-invite-sub001/internal/util"
)

// ConfigHandler serves the platform configuration stored in the settings
// table.
type ConfigHandler struct {
	db      *gorm.DB          // Database handle for settings.
	manager *telegram.Manager // Used to validate bot tokens on save.
}

// NewConfigHandler constructs a config handler.
func NewConfigHandler(db *gorm.DB, manager *telegram.Manager) *ConfigHandler {
	return &ConfigHandler{db: db, manager: manager}
}

// Get returns the admin view of platform configuration. The platform bot
// token is masked.
func (h *ConfigHandler) Get(c *gin.Context) {
	token := settings.StringValue(settings.PlatformBotTokenKey, "")
	c.JSON(http.StatusOK, gin.H{
		"site_name":                    settings.StringValue(settings.SiteNameKey, settings.DefaultSiteName),
		"platform_bot_username":        settings.StringValue(settings.PlatformBotUsernameKey, ""),
		"platform_bot_token_hint":      util.HideBotToken(token),
		"health_poll_interval_seconds": settings.IntValue(settings.HealthPollIntervalSecondsKey, settings.DefaultHealthPollIntervalSeconds),
		"broadcast_rate_per_second":    settings.IntValue(settings.BroadcastRatePerSecondKey, settings.DefaultBroadcastRatePerSecond),
	})
}

// updateConfigRequest captures optional configuration changes.
type updateConfigRequest struct {
	SiteName                  *string `json:"site_name"`                    // Optional site name.
	PlatformBotToken          *string `json:"platform_bot_token"`           // Optional bot token, validated against Telegram.
	HealthPollIntervalSeconds *int    `json:"health_poll_interval_seconds"` // Optional poll interval.
	BroadcastRatePerSecond    *int    `json:"broadcast_rate_per_second"`    // Optional send rate.
}

// Update validates and persists configuration changes. Saving a bot token
// verifies it against the Bot API and records the bot's username alongside.
func (h *ConfigHandler) Update(c *gin.Context) {
	var body updateConfigRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	ctx := c.Request.Context()

	if body.SiteName != nil {
		name := strings.TrimSpace(*body.SiteName)
		if name == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "site_name cannot be empty"})
			return
		}
		if errSave := settings.Upsert(ctx, h.db, settings.SiteNameKey, name); errSave != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "save failed"})
			return
		}
	}
	if body.PlatformBotToken != nil {
		token := strings.TrimSpace(*body.PlatformBotToken)
		if token == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "platform_bot_token cannot be empty"})
			return
		}
		username, errValidate := h.manager.ValidateToken(token)
		if errValidate != nil {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "bot token rejected by telegram"})
			return
		}
		if errSave := settings.Upsert(ctx, h.db, settings.PlatformBotTokenKey, token); errSave != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "save failed"})
			return
		}
		if errSave := settings.Upsert(ctx, h.db, settings.PlatformBotUsernameKey, username); errSave != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "save failed"})
			return
		}
	}
	if body.HealthPollIntervalSeconds != nil {
		if *body.HealthPollIntervalSeconds < 5 {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "health_poll_interval_seconds must be at least 5"})
			return
		}
		if errSave := settings.Upsert(ctx, h.db, settings.HealthPollIntervalSecondsKey, *body.HealthPollIntervalSeconds); errSave != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "save failed"})
			return
		}
	}
	if body.BroadcastRatePerSecond != nil {
		if *body.BroadcastRatePerSecond < 1 {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "broadcast_rate_per_second must be at least 1"})
			return
		}
		if errSave := settings.Upsert(ctx, h.db, settings.BroadcastRatePerSecondKey, *body.BroadcastRatePerSecond); errSave != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "save failed"})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// Public returns the configuration exposed without authentication.
func (h *ConfigHandler) Public(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"site_name":             settings.StringValue(settings.SiteNameKey, settings.DefaultSiteName),
		"platform_bot_username": settings.StringValue(settings.PlatformBotUsernameKey, ""),
	})
}
