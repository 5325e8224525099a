package scheduler

import (
	"context"
	"fmt"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	log "github.com/sirupsen/logrus"

	"github.com/visorry/flash-invite-sub001/internal/models"
)

// runDueAutoDrops executes one drop for every running rule whose interval has
// elapsed.
func (s *Scheduler) runDueAutoDrops(ctx context.Context) {
	var rules []models.AutoDropRule
	if errFind := s.db.WithContext(ctx).
		Where("status = ?", models.AutoDropRunning).
		Find(&rules).Error; errFind != nil {
		log.WithError(errFind).Error("scheduler: load auto-drop rules failed")
		return
	}

	now := time.Now().UTC()
	for i := range rules {
		if ctx.Err() != nil {
			return
		}
		rule := &rules[i]
		if !autoDropDue(rule, now) {
			continue
		}
		if errRun := s.runDrop(ctx, rule); errRun != nil {
			log.WithError(errRun).Warnf("scheduler: auto-drop rule %d failed", rule.ID)
		}
	}
}

// autoDropDue reports whether the rule's drop interval has elapsed.
func autoDropDue(rule *models.AutoDropRule, now time.Time) bool {
	if rule.LastDropAt == nil {
		return true
	}
	interval := rule.DropUnit.Seconds(rule.DropInterval)
	if interval <= 0 {
		return false
	}
	return now.Sub(*rule.LastDropAt) >= time.Duration(interval)*time.Second
}

// runDrop copies the next batch of posts from the source range into the
// destination and advances the cursor, completing the rule at the range end.
func (s *Scheduler) runDrop(ctx context.Context, rule *models.AutoDropRule) error {
	if rule.StartPostID == nil || rule.EndPostID == nil {
		return fmt.Errorf("scheduler: auto-drop rule %d has no post range", rule.ID)
	}

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

	batch := rule.BatchSize
	if batch < models.AutoDropMinBatchSize {
		batch = models.AutoDropMinBatchSize
	}
	if batch > models.AutoDropMaxBatchSize {
		batch = models.AutoDropMaxBatchSize
	}

	cursor := *rule.StartPostID
	if rule.CurrentPostID != nil {
		cursor = *rule.CurrentPostID + 1
	}

	last := cursor - 1
	for i := 0; i < batch; i++ {
		postID := cursor + int64(i)
		if postID > *rule.EndPostID {
			break
		}
		copyCfg := tgbotapi.NewCopyMessage(destination.ChatID, source.ChatID, int(postID))
		if _, errSend := client.Send(copyCfg); errSend != nil {
			log.WithError(errSend).Debugf("scheduler: auto-drop rule %d post %d skipped", rule.ID, postID)
		}
		last = postID
	}

	now := time.Now().UTC()
	updates := map[string]any{
		"last_drop_at": now,
		"updated_at":   now,
	}
	if last >= cursor {
		updates["current_post_id"] = last
	}
	if last >= *rule.EndPostID {
		updates["status"] = models.AutoDropCompleted
	}
	return s.db.WithContext(ctx).Model(&models.AutoDropRule{}).
		Where("id = ?", rule.ID).
		Updates(updates).Error
}
