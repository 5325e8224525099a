package scheduler

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/visorry/flash-invite-sub001/internal/models"
	"github.com/visorry/flash-invite-sub001/internal/telegram"
)

// tickInterval is how often the scheduler scans for due work. Individual
// rules gate themselves on their own intervals.
const tickInterval = 30 * time.Second

// Scheduler drives scheduled forward rules and auto-drop rules from a single
// scan loop.
type Scheduler struct {
	db      *gorm.DB
	manager *telegram.Manager
}

// New constructs a Scheduler.
func New(db *gorm.DB, manager *telegram.Manager) *Scheduler {
	return &Scheduler{db: db, manager: manager}
}

// Start runs the scan loop until ctx is canceled. Call in its own goroutine.
func (s *Scheduler) Start(ctx context.Context) {
	log.Info("scheduler: started")
	timer := time.NewTimer(tickInterval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("scheduler: stopped")
			return
		case <-timer.C:
		}

		s.runDueForwardRules(ctx)
		s.runDueAutoDrops(ctx)

		timer.Reset(tickInterval)
	}
}

// clientForBot loads a bot row and returns its connected client.
func (s *Scheduler) clientForBot(ctx context.Context, botID uint64) (telegram.Client, error) {
	var bot models.Bot
	if errFind := s.db.WithContext(ctx).First(&bot, botID).Error; errFind != nil {
		return nil, errFind
	}
	return s.manager.ClientFor(&bot)
}
