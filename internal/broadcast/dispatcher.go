package broadcast

import (
	"context"
	"errors"
	"fmt"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
	"gorm.io/gorm"

	"github.com/visorry/flash-invite-sub001/internal/models"
	"github.com/visorry/flash-invite-sub001/internal/settings"
	"github.com/visorry/flash-invite-sub001/internal/telegram"
)

// ErrNotPending is returned when dispatch is requested for a broadcast that
// already left the Pending state.
var ErrNotPending = errors.New("broadcast: not pending")

// Dispatcher delivers pending broadcasts to bot subscribers under a global
// per-second rate limit.
type Dispatcher struct {
	db      *gorm.DB
	manager *telegram.Manager
}

// NewDispatcher constructs a Dispatcher.
func NewDispatcher(db *gorm.DB, manager *telegram.Manager) *Dispatcher {
	return &Dispatcher{db: db, manager: manager}
}

// Dispatch runs one broadcast to completion. It moves the broadcast to
// InProgress, snapshots the recipient set, delivers with a rate limiter and
// records per-recipient outcomes. A cancel (status flipped to Cancelled by
// the API while we run) is honored between sends.
func (d *Dispatcher) Dispatch(ctx context.Context, broadcastID uint64) error {
	var b models.Broadcast
	if errFind := d.db.WithContext(ctx).First(&b, broadcastID).Error; errFind != nil {
		return errFind
	}
	if !b.CanSend() {
		return ErrNotPending
	}

	var recipients []models.Subscriber
	if errFind := d.db.WithContext(ctx).
		Where("bot_id = ? AND is_blocked = ?", b.BotID, false).
		Order("id ASC").
		Find(&recipients).Error; errFind != nil {
		return fmt.Errorf("broadcast: load recipients: %w", errFind)
	}

	now := time.Now().UTC()
	claim := d.db.WithContext(ctx).Model(&models.Broadcast{}).
		Where("id = ? AND status = ?", b.ID, models.BroadcastPending).
		Updates(map[string]any{
			"status":           models.BroadcastInProgress,
			"total_recipients": len(recipients),
			"started_at":       now,
			"updated_at":       now,
		})
	if claim.Error != nil {
		return claim.Error
	}
	if claim.RowsAffected == 0 {
		return ErrNotPending
	}

	var bot models.Bot
	if errFind := d.db.WithContext(ctx).First(&bot, b.BotID).Error; errFind != nil {
		return d.finish(ctx, b.ID, models.BroadcastFailed, errFind.Error())
	}
	client, errClient := d.manager.ClientFor(&bot)
	if errClient != nil {
		return d.finish(ctx, b.ID, models.BroadcastFailed, errClient.Error())
	}

	limiter := rate.NewLimiter(rate.Limit(d.ratePerSecond()), 1)
	var sent, failed, blocked int

	for i := range recipients {
		if cancelled, errCheck := d.isCancelled(ctx, b.ID); errCheck != nil || cancelled {
			if cancelled {
				log.Infof("broadcast %d cancelled after %d deliveries", b.ID, sent+failed+blocked)
				return d.flushCounters(ctx, b.ID, sent, failed, blocked)
			}
			return errCheck
		}
		if errWait := limiter.Wait(ctx); errWait != nil {
			return d.flushCounters(ctx, b.ID, sent, failed, blocked)
		}

		errSend := d.deliver(client, &b, &recipients[i])
		switch {
		case errSend == nil:
			sent++
		case telegram.IsBlockedErr(errSend):
			blocked++
			d.markBlocked(ctx, recipients[i].ID)
		default:
			failed++
		}

		// Periodic counter flushes keep progress visible mid-run.
		if (sent+failed+blocked)%50 == 0 {
			if errFlush := d.flushCounters(ctx, b.ID, sent, failed, blocked); errFlush != nil {
				log.WithError(errFlush).Warnf("broadcast %d counter flush failed", b.ID)
			}
		}
	}

	if errFlush := d.flushCounters(ctx, b.ID, sent, failed, blocked); errFlush != nil {
		return errFlush
	}
	status := models.BroadcastCompleted
	lastError := ""
	if sent == 0 && len(recipients) > 0 {
		status = models.BroadcastFailed
		lastError = "broadcast: all deliveries failed"
	}
	return d.finish(ctx, b.ID, status, lastError)
}

// deliver sends one message, forwarding from the source entity when the
// broadcast references one.
func (d *Dispatcher) deliver(client telegram.Client, b *models.Broadcast, sub *models.Subscriber) error {
	if b.SourceEntityID != nil && b.SourceMessageID != nil {
		var source models.TelegramEntity
		if errFind := d.db.First(&source, *b.SourceEntityID).Error; errFind != nil {
			return errFind
		}
		forward := tgbotapi.NewForward(sub.TelegramUserID, source.ChatID, int(*b.SourceMessageID))
		_, errSend := client.Send(forward)
		return errSend
	}

	msg := tgbotapi.NewMessage(sub.TelegramUserID, b.Message)
	msg.ParseMode = b.ParseMode
	_, errSend := client.Send(msg)
	return errSend
}

// isCancelled re-reads the broadcast status so API cancellation takes effect
// between sends.
func (d *Dispatcher) isCancelled(ctx context.Context, id uint64) (bool, error) {
	var status models.BroadcastStatus
	row := d.db.WithContext(ctx).Model(&models.Broadcast{}).
		Where("id = ?", id).
		Select("status").
		Scan(&status)
	if row.Error != nil {
		return false, row.Error
	}
	return status == models.BroadcastCancelled, nil
}

// markBlocked flags a subscriber so future broadcasts skip them.
func (d *Dispatcher) markBlocked(ctx context.Context, subscriberID uint64) {
	if errSave := d.db.WithContext(ctx).Model(&models.Subscriber{}).
		Where("id = ?", subscriberID).
		Update("is_blocked", true).Error; errSave != nil {
		log.WithError(errSave).Warnf("broadcast: mark subscriber %d blocked failed", subscriberID)
	}
}

// flushCounters persists delivery counters.
func (d *Dispatcher) flushCounters(ctx context.Context, id uint64, sent, failed, blocked int) error {
	return d.db.WithContext(ctx).Model(&models.Broadcast{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"sent_count":    sent,
			"failed_count":  failed,
			"blocked_count": blocked,
			"updated_at":    time.Now().UTC(),
		}).Error
}

// finish records the terminal state unless the broadcast was cancelled
// concurrently.
func (d *Dispatcher) finish(ctx context.Context, id uint64, status models.BroadcastStatus, lastError string) error {
	now := time.Now().UTC()
	return d.db.WithContext(ctx).Model(&models.Broadcast{}).
		Where("id = ? AND status = ?", id, models.BroadcastInProgress).
		Updates(map[string]any{
			"status":      status,
			"last_error":  lastError,
			"finished_at": now,
			"updated_at":  now,
		}).Error
}

// ratePerSecond reads the tunable send rate, falling back to the platform
// default.
func (d *Dispatcher) ratePerSecond() int {
	return settings.IntValue(settings.BroadcastRatePerSecondKey, settings.DefaultBroadcastRatePerSecond)
}
