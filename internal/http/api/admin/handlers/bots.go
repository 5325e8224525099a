package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/visorry/flash-invite-sub001/internal/cache"
	"github.com/visorry/flash-invite-sub001/internal/models"
	"github.com/visorry/flash-invite-sub001/internal/telegram"
	"github.com/visorry/flash-invite-sub001/internal/util"
)

// BotAdminHandler serves the bot fleet operator console.
type BotAdminHandler struct {
	db      *gorm.DB          // Database handle for bots.
	manager *telegram.Manager // Connected fleet manager.
	cache   *cache.Cache      // Optional stats cache.
}

// NewBotAdminHandler constructs a bot admin handler.
func NewBotAdminHandler(db *gorm.DB, manager *telegram.Manager, cacheClient *cache.Cache) *BotAdminHandler {
	return &BotAdminHandler{db: db, manager: manager, cache: cacheClient}
}

// List returns the fleet with health filters, sorting and aggregate stats.
func (h *BotAdminHandler) List(c *gin.Context) {
	var (
		healthStatusQ = strings.TrimSpace(c.Query("health_status"))
		modeQ         = strings.TrimSpace(c.Query("mode"))
		sortBy        = strings.TrimSpace(c.Query("sort_by"))
		sortOrder     = strings.TrimSpace(c.Query("sort_order"))
	)

	q := h.db.WithContext(c.Request.Context()).Model(&models.Bot{})
	switch healthStatusQ {
	case models.BotHealthy, models.BotUnhealthy, models.BotHealthUnknown:
		q = q.Where("health_status = ?", healthStatusQ)
	case "":
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "health_status must be healthy, unhealthy or unknown"})
		return
	}
	switch modeQ {
	case models.BotModePolling, models.BotModeWebhook:
		q = q.Where("mode = ?", modeQ)
	case "":
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "mode must be polling or webhook"})
		return
	}

	column := "created_at"
	switch sortBy {
	case "", "created_at":
	case "username":
		column = "username"
	case "health_status":
		column = "health_status"
	case "restart_count":
		column = "restart_count"
	case "last_health_check_at":
		column = "last_health_check_at"
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "unsupported sort_by"})
		return
	}
	direction := "DESC"
	if strings.EqualFold(sortOrder, "asc") {
		direction = "ASC"
	}

	var bots []models.Bot
	if errFind := q.Order(column + " " + direction).Find(&bots).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list bots failed"})
		return
	}

	stats, errStats := h.fleetStats(c)
	if errStats != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "stats failed"})
		return
	}

	out := make([]gin.H, 0, len(bots))
	for i := range bots {
		out = append(out, h.formatBot(&bots[i]))
	}
	c.JSON(http.StatusOK, gin.H{"bots": out, "stats": stats})
}

// fleetStats loads stats through the cache when available.
func (h *BotAdminHandler) fleetStats(c *gin.Context) (models.FleetStats, error) {
	ctx := c.Request.Context()
	var stats models.FleetStats
	if h.cache.GetJSON(ctx, cache.FleetStatsKey(), &stats) {
		return stats, nil
	}
	stats, errStats := telegram.Stats(ctx, h.db)
	if errStats != nil {
		return stats, errStats
	}
	h.cache.SetJSON(ctx, cache.FleetStatsKey(), stats, cache.FleetStatsTTL)
	return stats, nil
}

// HealthCheck runs an immediate health sweep across the active fleet.
func (h *BotAdminHandler) HealthCheck(c *gin.Context) {
	if errCheck := h.manager.CheckFleet(c.Request.Context(), h.db); errCheck != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "health check failed"})
		return
	}
	h.cache.Invalidate(c.Request.Context(), cache.FleetStatsKey())
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// Restart restarts one bot by ID.
func (h *BotAdminHandler) Restart(c *gin.Context) {
	id, errParse := strconv.ParseUint(strings.TrimSpace(c.Param("id")), 10, 64)
	if errParse != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	if errRestart := h.manager.Restart(c.Request.Context(), h.db, id); errRestart != nil {
		if errors.Is(errRestart, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "restart failed"})
		return
	}
	h.cache.Invalidate(c.Request.Context(), cache.FleetStatsKey())
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// restartMultipleRequest carries the target bot IDs.
type restartMultipleRequest struct {
	IDs []uint64 `json:"ids"` // Bots to restart.
}

// RestartMultiple restarts a set of bots, reporting per-ID failures.
func (h *BotAdminHandler) RestartMultiple(c *gin.Context) {
	var body restartMultipleRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if len(body.IDs) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "ids is required"})
		return
	}
	restarted, failed := h.manager.RestartMany(c.Request.Context(), h.db, body.IDs)
	h.cache.Invalidate(c.Request.Context(), cache.FleetStatsKey())
	c.JSON(http.StatusOK, gin.H{"restarted": restarted, "failed": failed})
}

// RestartUnhealthy restarts every active bot marked unhealthy.
func (h *BotAdminHandler) RestartUnhealthy(c *gin.Context) {
	restarted, failed, errRestart := h.manager.RestartUnhealthy(c.Request.Context(), h.db)
	if errRestart != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "restart unhealthy failed"})
		return
	}
	h.cache.Invalidate(c.Request.Context(), cache.FleetStatsKey())
	c.JSON(http.StatusOK, gin.H{"restarted": restarted, "failed": failed})
}

// ResyncAll refreshes entity metadata for the whole fleet.
func (h *BotAdminHandler) ResyncAll(c *gin.Context) {
	if errSync := h.manager.ResyncAll(c.Request.Context(), h.db); errSync != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "resync failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// formatBot converts a bot into an admin console payload. The token is
// masked, never returned in full.
func (h *BotAdminHandler) formatBot(bot *models.Bot) gin.H {
	return gin.H{
		"id":                   bot.ID,
		"owner_id":             bot.OwnerID,
		"username":             bot.Username,
		"token_hint":           util.HideBotToken(bot.Token),
		"mode":                 bot.Mode,
		"is_active":            bot.IsActive,
		"health_status":        bot.HealthStatus,
		"last_health_check_at": bot.LastHealthCheckAt,
		"last_health_error":    bot.LastHealthError,
		"restart_count":        bot.RestartCount,
		"created_at":           bot.CreatedAt,
		"updated_at":           bot.UpdatedAt,
	}
}
