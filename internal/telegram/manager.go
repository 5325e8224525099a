package telegram

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/visorry/flash-invite-sub001/internal/models"
	"github.com/visorry/flash-invite-sub001/internal/util"
)

// Client is the slice of the Bot API surface the platform uses. *tgbotapi.BotAPI
// satisfies it; tests substitute fakes.
type Client interface {
	GetMe() (tgbotapi.User, error)
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetChat(config tgbotapi.ChatInfoConfig) (tgbotapi.Chat, error)
	GetChatMembersCount(config tgbotapi.ChatMemberCountConfig) (int, error)
	GetUpdates(config tgbotapi.UpdateConfig) ([]tgbotapi.Update, error)
	StopReceivingUpdates()
}

// ClientFactory builds a Client from a bot token.
type ClientFactory func(token string) (Client, error)

// DefaultClientFactory connects to the real Bot API.
func DefaultClientFactory(token string) (Client, error) {
	bot, errNew := tgbotapi.NewBotAPI(token)
	if errNew != nil {
		return nil, errNew
	}
	return bot, nil
}

// instance is one connected bot.
type instance struct {
	botID  uint64
	client Client
}

// Manager owns the connected bot fleet: one Client per active bot, health
// probing, restarts and entity resync.
type Manager struct {
	mu        sync.RWMutex
	instances map[uint64]*instance
	factory   ClientFactory
}

// NewManager constructs a Manager. A nil factory uses the real Bot API.
func NewManager(factory ClientFactory) *Manager {
	if factory == nil {
		factory = DefaultClientFactory
	}
	return &Manager{
		instances: make(map[uint64]*instance),
		factory:   factory,
	}
}

// ValidateToken verifies a token against the Bot API and returns the bot's
// username.
func (m *Manager) ValidateToken(token string) (string, error) {
	client, errNew := m.factory(token)
	if errNew != nil {
		return "", fmt.Errorf("telegram: invalid token: %w", errNew)
	}
	me, errMe := client.GetMe()
	if errMe != nil {
		return "", fmt.Errorf("telegram: getMe: %w", errMe)
	}
	return me.UserName, nil
}

// ClientFor returns the connected client for a bot, connecting on demand.
func (m *Manager) ClientFor(bot *models.Bot) (Client, error) {
	m.mu.RLock()
	existing, ok := m.instances[bot.ID]
	m.mu.RUnlock()
	if ok {
		return existing.client, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok = m.instances[bot.ID]; ok {
		return existing.client, nil
	}
	client, errNew := m.factory(bot.Token)
	if errNew != nil {
		return nil, fmt.Errorf("telegram: connect bot %d: %w", bot.ID, errNew)
	}
	m.instances[bot.ID] = &instance{botID: bot.ID, client: client}
	return client, nil
}

// drop disconnects a bot's client if present.
func (m *Manager) drop(botID uint64) {
	m.mu.Lock()
	existing, ok := m.instances[botID]
	if ok {
		delete(m.instances, botID)
	}
	m.mu.Unlock()
	if ok {
		existing.client.StopReceivingUpdates()
	}
}

// CheckBot probes one bot with getMe and persists the outcome.
func (m *Manager) CheckBot(ctx context.Context, db *gorm.DB, bot *models.Bot) error {
	now := time.Now().UTC()
	updates := map[string]any{
		"last_health_check_at": now,
		"updated_at":           now,
	}

	client, errClient := m.ClientFor(bot)
	var probeErr error
	if errClient != nil {
		probeErr = errClient
	} else if _, errMe := client.GetMe(); errMe != nil {
		probeErr = errMe
	}

	if probeErr != nil {
		updates["health_status"] = models.BotUnhealthy
		updates["last_health_error"] = probeErr.Error()
		log.WithError(probeErr).Warnf("telegram: bot %s unhealthy", util.HideBotToken(bot.Token))
	} else {
		updates["health_status"] = models.BotHealthy
		updates["last_health_error"] = ""
	}

	if errSave := db.WithContext(ctx).Model(&models.Bot{}).
		Where("id = ?", bot.ID).
		Updates(updates).Error; errSave != nil {
		return fmt.Errorf("telegram: persist health for bot %d: %w", bot.ID, errSave)
	}
	return probeErr
}

// CheckFleet probes every active bot. Errors are reflected in each bot's row
// rather than aborting the sweep.
func (m *Manager) CheckFleet(ctx context.Context, db *gorm.DB) error {
	var bots []models.Bot
	if errFind := db.WithContext(ctx).Where("is_active = ?", true).Find(&bots).Error; errFind != nil {
		return fmt.Errorf("telegram: load fleet: %w", errFind)
	}
	for i := range bots {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		_ = m.CheckBot(ctx, db, &bots[i])
	}
	return nil
}

// Restart drops a bot's connection, reconnects and re-probes it. The
// operation is idempotent: restarting a stopped bot simply starts it.
func (m *Manager) Restart(ctx context.Context, db *gorm.DB, botID uint64) error {
	var bot models.Bot
	if errFind := db.WithContext(ctx).First(&bot, botID).Error; errFind != nil {
		return errFind
	}

	m.drop(bot.ID)
	if errIncr := db.WithContext(ctx).Model(&models.Bot{}).
		Where("id = ?", bot.ID).
		Update("restart_count", gorm.Expr("restart_count + 1")).Error; errIncr != nil {
		return errIncr
	}
	return m.CheckBot(ctx, db, &bot)
}

// RestartMany restarts the given bots, returning how many succeeded.
func (m *Manager) RestartMany(ctx context.Context, db *gorm.DB, botIDs []uint64) (restarted int, failed []uint64) {
	for _, id := range botIDs {
		if errRestart := m.Restart(ctx, db, id); errRestart != nil {
			failed = append(failed, id)
			continue
		}
		restarted++
	}
	return restarted, failed
}

// RestartUnhealthy restarts every active bot currently marked unhealthy.
func (m *Manager) RestartUnhealthy(ctx context.Context, db *gorm.DB) (restarted int, failed []uint64, err error) {
	var bots []models.Bot
	if errFind := db.WithContext(ctx).
		Where("is_active = ? AND health_status = ?", true, models.BotUnhealthy).
		Find(&bots).Error; errFind != nil {
		return 0, nil, fmt.Errorf("telegram: load unhealthy: %w", errFind)
	}
	ids := make([]uint64, 0, len(bots))
	for _, bot := range bots {
		ids = append(ids, bot.ID)
	}
	restarted, failed = m.RestartMany(ctx, db, ids)
	return restarted, failed, nil
}

// ResyncAll refreshes linked entity titles and member counts from Telegram
// for every active bot.
func (m *Manager) ResyncAll(ctx context.Context, db *gorm.DB) error {
	var entities []models.TelegramEntity
	if errFind := db.WithContext(ctx).
		Joins("JOIN bots ON bots.id = telegram_entities.bot_id AND bots.is_active = ?", true).
		Where("telegram_entities.is_linked = ?", true).
		Find(&entities).Error; errFind != nil {
		return fmt.Errorf("telegram: load entities: %w", errFind)
	}

	for i := range entities {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if errSync := m.resyncEntity(ctx, db, &entities[i]); errSync != nil {
			log.WithError(errSync).Warnf("telegram: resync entity %d failed", entities[i].ID)
		}
	}
	return nil
}

// resyncEntity refreshes one entity's metadata.
func (m *Manager) resyncEntity(ctx context.Context, db *gorm.DB, entity *models.TelegramEntity) error {
	var bot models.Bot
	if errFind := db.WithContext(ctx).First(&bot, entity.BotID).Error; errFind != nil {
		return errFind
	}
	client, errClient := m.ClientFor(&bot)
	if errClient != nil {
		return errClient
	}

	chat, errChat := client.GetChat(tgbotapi.ChatInfoConfig{
		ChatConfig: tgbotapi.ChatConfig{ChatID: entity.ChatID},
	})
	if errChat != nil {
		return errChat
	}
	count, errCount := client.GetChatMembersCount(tgbotapi.ChatMemberCountConfig{
		ChatConfig: tgbotapi.ChatConfig{ChatID: entity.ChatID},
	})
	if errCount != nil {
		count = entity.MemberCount
	}

	return db.WithContext(ctx).Model(&models.TelegramEntity{}).
		Where("id = ?", entity.ID).
		Updates(map[string]any{
			"title":        chat.Title,
			"username":     chat.UserName,
			"member_count": count,
			"updated_at":   time.Now().UTC(),
		}).Error
}

// Stats aggregates fleet health counts.
func Stats(ctx context.Context, db *gorm.DB) (models.FleetStats, error) {
	var stats models.FleetStats
	base := db.WithContext(ctx).Model(&models.Bot{})

	if errCount := base.Session(&gorm.Session{}).Count(&stats.Total).Error; errCount != nil {
		return stats, errCount
	}
	if errCount := base.Session(&gorm.Session{}).Where("is_active = ?", true).Count(&stats.Active).Error; errCount != nil {
		return stats, errCount
	}
	counts := map[string]*int64{
		models.BotHealthy:       &stats.Healthy,
		models.BotUnhealthy:     &stats.Unhealthy,
		models.BotHealthUnknown: &stats.Unknown,
	}
	for status, target := range counts {
		if errCount := base.Session(&gorm.Session{}).Where("health_status = ?", status).Count(target).Error; errCount != nil {
			return stats, errCount
		}
	}
	return stats, nil
}

// IsBlockedErr reports whether a send failure means the user blocked the bot.
func IsBlockedErr(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "blocked by the user") || strings.Contains(msg, "user is deactivated")
}
