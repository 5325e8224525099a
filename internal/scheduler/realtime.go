package scheduler

import (
	"context"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/visorry/flash-invite-sub001/internal/models"
	"github.com/visorry/flash-invite-sub001/internal/telegram"
)

// pumpPollInterval is how often the pump fetches pending updates per bot.
const pumpPollInterval = 2 * time.Second

// Pump consumes incoming updates for bots that carry active realtime forward
// rules and relays matching posts to each rule's destination. One update
// offset is tracked per bot so posts are seen once.
type Pump struct {
	db      *gorm.DB
	manager *telegram.Manager
	offsets map[uint64]int
}

// NewPump constructs a realtime forward pump.
func NewPump(db *gorm.DB, manager *telegram.Manager) *Pump {
	return &Pump{db: db, manager: manager, offsets: make(map[uint64]int)}
}

// Start runs the poll loop until ctx is canceled. Call in its own goroutine.
func (p *Pump) Start(ctx context.Context) {
	log.Info("pump: started")
	timer := time.NewTimer(pumpPollInterval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("pump: stopped")
			return
		case <-timer.C:
		}

		p.pollBots(ctx)

		timer.Reset(pumpPollInterval)
	}
}

// pollBots drains pending updates for every active polling bot that has at
// least one armed realtime rule.
func (p *Pump) pollBots(ctx context.Context) {
	var bots []models.Bot
	if errFind := p.db.WithContext(ctx).
		Where("is_active = ? AND mode = ?", true, models.BotModePolling).
		Find(&bots).Error; errFind != nil {
		log.WithError(errFind).Error("pump: load bots failed")
		return
	}

	for i := range bots {
		if ctx.Err() != nil {
			return
		}
		bot := &bots[i]

		var armed int64
		if errCount := p.db.WithContext(ctx).Model(&models.ForwardRule{}).
			Where("bot_id = ? AND schedule_mode = ? AND is_active = ?",
				bot.ID, models.ScheduleModeRealtime, true).
			Count(&armed).Error; errCount != nil || armed == 0 {
			continue
		}

		if errPoll := p.pollBot(ctx, bot); errPoll != nil {
			log.WithError(errPoll).Warnf("pump: bot %d poll failed", bot.ID)
		}
	}
}

// pollBot fetches one batch of updates for a bot and relays each post.
func (p *Pump) pollBot(ctx context.Context, bot *models.Bot) error {
	client, errClient := p.manager.ClientFor(bot)
	if errClient != nil {
		return errClient
	}

	updates, errGet := client.GetUpdates(tgbotapi.UpdateConfig{
		Offset:         p.offsets[bot.ID],
		Timeout:        0,
		AllowedUpdates: []string{"message", "channel_post"},
	})
	if errGet != nil {
		return errGet
	}

	for i := range updates {
		update := &updates[i]
		if update.UpdateID >= p.offsets[bot.ID] {
			p.offsets[bot.ID] = update.UpdateID + 1
		}
		post := update.ChannelPost
		if post == nil {
			post = update.Message
		}
		if post == nil || post.Chat == nil {
			continue
		}
		p.relayPost(ctx, client, bot, post)
	}
	return nil
}

// relayPost fans one incoming post out to every armed realtime rule whose
// source entity is the post's chat.
func (p *Pump) relayPost(ctx context.Context, client telegram.Client, bot *models.Bot, post *tgbotapi.Message) {
	var source models.TelegramEntity
	if errFind := p.db.WithContext(ctx).
		Where("bot_id = ? AND chat_id = ?", bot.ID, post.Chat.ID).
		First(&source).Error; errFind != nil {
		return
	}

	var rules []models.ForwardRule
	if errFind := p.db.WithContext(ctx).
		Where("source_entity_id = ? AND schedule_mode = ? AND is_active = ?",
			source.ID, models.ScheduleModeRealtime, true).
		Find(&rules).Error; errFind != nil {
		log.WithError(errFind).Error("pump: load rules failed")
		return
	}

	kind, text := classifyPost(post)
	for i := range rules {
		rule := &rules[i]
		if !ShouldForward(rule, kind, text) {
			continue
		}
		if errRelay := p.deliverRealtime(ctx, client, rule, source.ChatID, post, kind, text); errRelay != nil {
			log.WithError(errRelay).Warnf("pump: rule %d message %d skipped", rule.ID, post.MessageID)
		}
	}
}

// deliverRealtime sends one post through a rule. Text posts whose rule
// rewrites content are re-sent as fresh messages; everything else is copied
// or forwarded like a scheduled batch.
func (p *Pump) deliverRealtime(ctx context.Context, client telegram.Client, rule *models.ForwardRule, sourceChatID int64, post *tgbotapi.Message, kind PostKind, text string) error {
	var destination models.TelegramEntity
	if errFind := p.db.WithContext(ctx).First(&destination, rule.DestinationEntityID).Error; errFind != nil {
		return errFind
	}

	var sentID int
	if kind == PostText && rewritesText(rule) {
		sent, errSend := client.Send(tgbotapi.NewMessage(destination.ChatID, TransformText(rule, text)))
		if errSend != nil {
			return errSend
		}
		sentID = sent.MessageID
	} else {
		var errSend error
		sentID, errSend = deliverPost(client, rule, sourceChatID, destination.ChatID, int64(post.MessageID))
		if errSend != nil {
			return errSend
		}
	}

	if rule.DeleteAfterEnabled {
		scheduleDeletes(client, destination.ChatID, []int{sentID},
			rule.DeleteIntervalUnit.Seconds(rule.DeleteInterval))
	}

	now := time.Now().UTC()
	return p.db.WithContext(ctx).Model(&models.ForwardRule{}).
		Where("id = ?", rule.ID).
		Updates(map[string]any{"last_run_at": now, "updated_at": now}).Error
}

// rewritesText reports whether the rule changes post text, which forces a
// fresh message instead of a copy.
func rewritesText(rule *models.ForwardRule) bool {
	return rule.RemoveLinks || rule.DeleteWatermark != "" ||
		(rule.AddWatermark && rule.WatermarkText != "")
}

// classifyPost maps an incoming message to a content kind and its text.
func classifyPost(post *tgbotapi.Message) (PostKind, string) {
	switch {
	case post.Poll != nil:
		return PostPoll, post.Poll.Question
	case post.Sticker != nil:
		return PostSticker, ""
	case post.Document != nil:
		return PostDocument, post.Caption
	case len(post.Photo) > 0 || post.Video != nil:
		return PostMedia, post.Caption
	default:
		return PostText, post.Text
	}
}
