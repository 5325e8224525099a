package scheduler

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	log "github.com/sirupsen/logrus"

	"github.com/visorry/flash-invite-sub001/internal/models"
	"github.com/visorry/flash-invite-sub001/internal/telegram"
)

// runDueForwardRules executes one batch for every scheduled rule whose
// interval has elapsed.
func (s *Scheduler) runDueForwardRules(ctx context.Context) {
	var rules []models.ForwardRule
	if errFind := s.db.WithContext(ctx).
		Where("schedule_mode = ? AND schedule_status = ?", models.ScheduleModeScheduled, models.ScheduleStatusRunning).
		Find(&rules).Error; errFind != nil {
		log.WithError(errFind).Error("scheduler: load forward rules failed")
		return
	}

	now := time.Now().UTC()
	for i := range rules {
		if ctx.Err() != nil {
			return
		}
		rule := &rules[i]
		if !forwardRuleDue(rule, now) {
			continue
		}
		if errRun := s.runForwardBatch(ctx, rule); errRun != nil {
			log.WithError(errRun).Warnf("scheduler: forward rule %d batch failed", rule.ID)
		}
	}
}

// forwardRuleDue reports whether the rule's post interval has elapsed.
func forwardRuleDue(rule *models.ForwardRule, now time.Time) bool {
	if rule.LastRunAt == nil {
		return true
	}
	interval := rule.PostIntervalUnit.Seconds(rule.PostInterval)
	if interval <= 0 {
		return false
	}
	return now.Sub(*rule.LastRunAt) >= time.Duration(interval)*time.Second
}

// runForwardBatch copies or forwards one batch of posts and advances the
// cursor, completing or wrapping the rule at the end of its range.
func (s *Scheduler) runForwardBatch(ctx context.Context, rule *models.ForwardRule) error {
	client, errClient := s.clientForBot(ctx, rule.BotID)
	if errClient != nil {
		return errClient
	}

	var source, destination models.TelegramEntity
	if errFind := s.db.WithContext(ctx).First(&source, rule.SourceEntityID).Error; errFind != nil {
		return fmt.Errorf("scheduler: source entity: %w", errFind)
	}
	if errFind := s.db.WithContext(ctx).First(&destination, rule.DestinationEntityID).Error; errFind != nil {
		return fmt.Errorf("scheduler: destination entity: %w", errFind)
	}

	messageIDs, next, exhausted := nextForwardBatch(rule)
	var delivered []int
	for _, messageID := range messageIDs {
		sent, errSend := deliverPost(client, rule, source.ChatID, destination.ChatID, messageID)
		if errSend != nil {
			log.WithError(errSend).Debugf("scheduler: rule %d message %d skipped", rule.ID, messageID)
			continue
		}
		delivered = append(delivered, sent)
	}

	if rule.DeleteAfterEnabled {
		scheduleDeletes(client, destination.ChatID, delivered,
			rule.DeleteIntervalUnit.Seconds(rule.DeleteInterval))
	}
	if rule.BroadcastEnabled && rule.BroadcastText != "" && len(delivered) > 0 {
		s.sendBatchNotice(client, rule, destination.ChatID)
	}

	now := time.Now().UTC()
	updates := map[string]any{
		"last_run_at": now,
		"updated_at":  now,
	}
	if next != nil {
		updates["current_message_id"] = *next
	}
	if exhausted {
		if rule.RepeatWhenDone && rule.StartFromMessageID != nil {
			updates["current_message_id"] = nil
		} else {
			updates["schedule_status"] = models.ScheduleStatusCompleted
		}
	}
	return s.db.WithContext(ctx).Model(&models.ForwardRule{}).
		Where("id = ?", rule.ID).
		Updates(updates).Error
}

// nextForwardBatch computes the message IDs for the next batch, the advanced
// cursor and whether the configured range is exhausted afterwards. Rules
// without a range walk forward from message 1 and never exhaust.
func nextForwardBatch(rule *models.ForwardRule) (ids []int64, next *int64, exhausted bool) {
	batch := rule.BatchSize
	if batch < 1 {
		batch = 1
	}

	start := int64(1)
	if rule.StartFromMessageID != nil {
		start = *rule.StartFromMessageID
	}
	cursor := start
	if rule.CurrentMessageID != nil {
		cursor = *rule.CurrentMessageID + 1
	}

	var end *int64
	if rule.EndAtMessageID != nil {
		end = rule.EndAtMessageID
	}

	if rule.Shuffle && end != nil {
		span := *end - start + 1
		if span < 1 {
			return nil, nil, true
		}
		for i := 0; i < batch; i++ {
			ids = append(ids, start+rand.Int63n(span))
		}
		last := cursor + int64(batch) - 1
		if last >= *end {
			last = *end
		}
		return ids, &last, last >= *end
	}

	for i := 0; i < batch; i++ {
		id := cursor + int64(i)
		if end != nil && id > *end {
			break
		}
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return nil, nil, true
	}
	last := ids[len(ids)-1]
	return ids, &last, end != nil && last >= *end
}

// deliverPost forwards or copies one post per the rule's delivery flags and
// returns the destination message ID.
func deliverPost(client telegram.Client, rule *models.ForwardRule, sourceChatID, destChatID int64, messageID int64) (int, error) {
	if rule.CopyMode || rule.HideSenderName {
		copyCfg := tgbotapi.NewCopyMessage(destChatID, sourceChatID, int(messageID))
		sent, errSend := client.Send(copyCfg)
		if errSend != nil {
			return 0, errSend
		}
		return sent.MessageID, nil
	}
	forward := tgbotapi.NewForward(destChatID, sourceChatID, int(messageID))
	sent, errSend := client.Send(forward)
	if errSend != nil {
		return 0, errSend
	}
	return sent.MessageID, nil
}

// sendBatchNotice posts the rule's follow-up message after a batch, deleting
// it later when configured.
func (s *Scheduler) sendBatchNotice(client telegram.Client, rule *models.ForwardRule, destChatID int64) {
	msg := tgbotapi.NewMessage(destChatID, rule.BroadcastText)
	sent, errSend := client.Send(msg)
	if errSend != nil {
		log.WithError(errSend).Warnf("scheduler: rule %d batch notice failed", rule.ID)
		return
	}
	scheduleDeletes(client, destChatID, []int{sent.MessageID},
		rule.BroadcastDeleteIntervalUnit.Seconds(rule.BroadcastDeleteInterval))
}

// scheduleDeletes queues best-effort deletion of messages after a delay.
// A non-positive delay means never.
func scheduleDeletes(client telegram.Client, chatID int64, messageIDs []int, delaySeconds int64) {
	if delaySeconds <= 0 || len(messageIDs) == 0 {
		return
	}
	ids := append([]int(nil), messageIDs...)
	time.AfterFunc(time.Duration(delaySeconds)*time.Second, func() {
		for _, id := range ids {
			if _, errDel := client.Request(tgbotapi.NewDeleteMessage(chatID, id)); errDel != nil {
				log.WithError(errDel).Debugf("scheduler: delete message %d in chat %d failed", id, chatID)
			}
		}
	})
}
