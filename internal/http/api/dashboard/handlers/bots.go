package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"gorm.io/gorm"

	apihttp "github.com/visorry/flash-invite-sub001/internal/http"
	"github.com/visorry/flash-invite-sub001/internal/models"
	"github.com/visorry/flash-invite-sub001/internal/telegram"
	"github.com/visorry/flash-invite-sub001/internal/util"
)

// BotHandler manages a user's own bots and their entity links.
type BotHandler struct {
	db      *gorm.DB
	manager *telegram.Manager
}

// NewBotHandler constructs a dashboard bot handler.
func NewBotHandler(db *gorm.DB, manager *telegram.Manager) *BotHandler {
	return &BotHandler{db: db, manager: manager}
}

// createBotRequest registers a new bot token.
type createBotRequest struct {
	Token string `json:"token"` // Bot API token, required.
	Mode  string `json:"mode"`  // polling or webhook, defaults to polling.
}

// Create validates the token against Telegram and registers the bot.
func (h *BotHandler) Create(c *gin.Context) {
	userID := apihttp.UserID(c)
	var body createBotRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	body.Token = strings.TrimSpace(body.Token)
	if body.Token == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "token is required"})
		return
	}
	mode := strings.TrimSpace(body.Mode)
	if mode == "" {
		mode = models.BotModePolling
	}
	if mode != models.BotModePolling && mode != models.BotModeWebhook {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid mode"})
		return
	}

	username, errValidate := h.manager.ValidateToken(body.Token)
	if errValidate != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "telegram rejected the token"})
		return
	}

	ctx := c.Request.Context()
	var existing int64
	if errCount := h.db.WithContext(ctx).Model(&models.Bot{}).
		Where("token = ?", body.Token).
		Count(&existing).Error; errCount != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	if existing > 0 {
		c.JSON(http.StatusConflict, gin.H{"error": "bot is already registered"})
		return
	}

	bot := models.Bot{
		OwnerID:      userID,
		Token:        body.Token,
		Username:     username,
		Mode:         mode,
		IsActive:     true,
		HealthStatus: models.BotHealthUnknown,
	}
	if errCreate := h.db.WithContext(ctx).Create(&bot).Error; errCreate != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create bot failed"})
		return
	}
	c.JSON(http.StatusCreated, formatOwnedBot(&bot))
}

// List returns the user's bots.
func (h *BotHandler) List(c *gin.Context) {
	userID := apihttp.UserID(c)
	var bots []models.Bot
	if errFind := h.db.WithContext(c.Request.Context()).
		Where("owner_id = ?", userID).
		Order("created_at DESC").
		Find(&bots).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list bots failed"})
		return
	}
	out := make([]gin.H, 0, len(bots))
	for i := range bots {
		out = append(out, formatOwnedBot(&bots[i]))
	}
	c.JSON(http.StatusOK, gin.H{"bots": out})
}

// Get returns one of the user's bots.
func (h *BotHandler) Get(c *gin.Context) {
	userID := apihttp.UserID(c)
	bot, ok := h.ownedBot(c, userID)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, formatOwnedBot(bot))
}

// Delete unregisters a bot along with its entity links.
func (h *BotHandler) Delete(c *gin.Context) {
	userID := apihttp.UserID(c)
	bot, ok := h.ownedBot(c, userID)
	if !ok {
		return
	}
	errTx := h.db.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		if errDel := tx.Where("bot_id = ?", bot.ID).Delete(&models.TelegramEntity{}).Error; errDel != nil {
			return errDel
		}
		return tx.Delete(bot).Error
	})
	if errTx != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "delete bot failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": true})
}

// Chats lists the chats the bot can see that are not yet linked as entities.
// It relies on live chat lookups for entities already stored and returns the
// linked set plus any stored-but-unlinked rows.
func (h *BotHandler) Chats(c *gin.Context) {
	userID := apihttp.UserID(c)
	bot, ok := h.ownedBot(c, userID)
	if !ok {
		return
	}
	var entities []models.TelegramEntity
	if errFind := h.db.WithContext(c.Request.Context()).
		Where("bot_id = ?", bot.ID).
		Order("title ASC").
		Find(&entities).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list chats failed"})
		return
	}
	linked := make([]models.TelegramEntity, 0, len(entities))
	unlinked := make([]models.TelegramEntity, 0)
	for _, e := range entities {
		if e.IsLinked {
			linked = append(linked, e)
		} else {
			unlinked = append(unlinked, e)
		}
	}
	c.JSON(http.StatusOK, gin.H{"linked": linked, "unlinked": unlinked})
}

// linkEntityRequest identifies a chat to link to the bot.
type linkEntityRequest struct {
	ChatID int64 `json:"chat_id"` // Telegram chat identifier, required.
}

// LinkEntity links a chat to the bot, creating the entity row on first link.
// The chat is resolved live so the title, type and member count are fresh.
func (h *BotHandler) LinkEntity(c *gin.Context) {
	userID := apihttp.UserID(c)
	bot, ok := h.ownedBot(c, userID)
	if !ok {
		return
	}
	var body linkEntityRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if body.ChatID == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "chat_id is required"})
		return
	}

	client, errClient := h.manager.ClientFor(bot)
	if errClient != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "bot is unreachable"})
		return
	}
	chat, errChat := client.GetChat(tgbotapi.ChatInfoConfig{
		ChatConfig: tgbotapi.ChatConfig{ChatID: body.ChatID},
	})
	if errChat != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "bot cannot access this chat"})
		return
	}
	members, _ := client.GetChatMembersCount(tgbotapi.ChatMemberCountConfig{
		ChatConfig: tgbotapi.ChatConfig{ChatID: body.ChatID},
	})

	ctx := c.Request.Context()
	now := time.Now().UTC()
	var entity models.TelegramEntity
	errFind := h.db.WithContext(ctx).
		Where("bot_id = ? AND chat_id = ?", bot.ID, body.ChatID).
		First(&entity).Error
	switch {
	case errFind == nil:
		if errUpdate := h.db.WithContext(ctx).Model(&entity).Updates(map[string]any{
			"is_linked":    true,
			"title":        chat.Title,
			"username":     chat.UserName,
			"type":         chat.Type,
			"member_count": members,
			"updated_at":   now,
		}).Error; errUpdate != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "link entity failed"})
			return
		}
		entity.IsLinked = true
		c.JSON(http.StatusOK, entity)
	case errors.Is(errFind, gorm.ErrRecordNotFound):
		entity = models.TelegramEntity{
			BotID:       bot.ID,
			OwnerID:     userID,
			ChatID:      body.ChatID,
			Type:        chat.Type,
			Title:       chat.Title,
			Username:    chat.UserName,
			IsLinked:    true,
			MemberCount: members,
		}
		if errCreate := h.db.WithContext(ctx).Create(&entity).Error; errCreate != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "link entity failed"})
			return
		}
		c.JSON(http.StatusCreated, entity)
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
	}
}

// UnlinkEntity marks an entity link inactive without deleting its history.
func (h *BotHandler) UnlinkEntity(c *gin.Context) {
	userID := apihttp.UserID(c)
	bot, ok := h.ownedBot(c, userID)
	if !ok {
		return
	}
	var body linkEntityRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	res := h.db.WithContext(c.Request.Context()).Model(&models.TelegramEntity{}).
		Where("bot_id = ? AND chat_id = ? AND is_linked = ?", bot.ID, body.ChatID, true).
		Updates(map[string]any{"is_linked": false, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "unlink entity failed"})
		return
	}
	if res.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "linked entity not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"unlinked": true})
}

func (h *BotHandler) ownedBot(c *gin.Context, userID uint64) (*models.Bot, bool) {
	var bot models.Bot
	errFind := h.db.WithContext(c.Request.Context()).
		Where("id = ? AND owner_id = ?", c.Param("id"), userID).
		First(&bot).Error
	if errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "bot not found"})
		} else {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		}
		return nil, false
	}
	return &bot, true
}

// formatOwnedBot serializes a bot for its owner with the token masked.
func formatOwnedBot(bot *models.Bot) gin.H {
	return gin.H{
		"id":                   bot.ID,
		"username":             bot.Username,
		"token_hint":           util.HideBotToken(bot.Token),
		"mode":                 bot.Mode,
		"is_active":            bot.IsActive,
		"health_status":        bot.HealthStatus,
		"last_health_check_at": bot.LastHealthCheckAt,
		"restart_count":        bot.RestartCount,
		"created_at":           bot.CreatedAt,
	}
}
