package telegram

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/visorry/flash-invite-sub001/internal/models"
	"github.com/visorry/flash-invite-sub001/internal/settings"
)

// HealthPoller periodically probes every active bot and records the result.
// The sweep interval and probe concurrency are tunable through settings.
type HealthPoller struct {
	db      *gorm.DB
	manager *Manager
}

// NewHealthPoller constructs a HealthPoller.
func NewHealthPoller(db *gorm.DB, manager *Manager) *HealthPoller {
	return &HealthPoller{db: db, manager: manager}
}

// Start runs the poll loop until ctx is canceled. Call in its own goroutine.
func (p *HealthPoller) Start(ctx context.Context) {
	log.Info("telegram: health poller started")
	timer := time.NewTimer(p.interval())
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("telegram: health poller stopped")
			return
		case <-timer.C:
		}

		p.sweep(ctx)

		timer.Reset(p.interval())
	}
}

// interval re-reads the poll interval so settings changes apply on the next
// cycle without a restart.
func (p *HealthPoller) interval() time.Duration {
	seconds := settings.IntValue(settings.HealthPollIntervalSecondsKey, settings.DefaultHealthPollIntervalSeconds)
	return time.Duration(seconds) * time.Second
}

// sweep probes all active bots with bounded concurrency.
func (p *HealthPoller) sweep(ctx context.Context) {
	var bots []models.Bot
	if errFind := p.db.WithContext(ctx).Where("is_active = ?", true).Find(&bots).Error; errFind != nil {
		log.WithError(errFind).Error("telegram: health sweep load failed")
		return
	}
	if len(bots) == 0 {
		return
	}

	maxConcurrency := settings.IntValue(settings.HealthPollMaxConcurrencyKey, settings.DefaultHealthPollMaxConcurrency)
	sem := make(chan struct{}, maxConcurrency)
	var wg sync.WaitGroup

	for i := range bots {
		if ctx.Err() != nil {
			break
		}
		bot := bots[i]
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			_ = p.manager.CheckBot(ctx, p.db, &bot)
		}()
	}
	wg.Wait()
}
