package handlers

import (
	"fmt"
	"net/http"
	"testing"

	"gorm.io/gorm"

	"github.com/visorry/flash-invite-sub001/internal/broadcast"
	"github.com/visorry/flash-invite-sub001/internal/models"
	"github.com/visorry/flash-invite-sub001/internal/telegram"
)

func newBroadcastHandler(db *gorm.DB) *BroadcastHandler {
	manager := telegram.NewManager(func(token string) (telegram.Client, error) {
		return nil, fmt.Errorf("no live clients in tests")
	})
	return NewBroadcastHandler(db, broadcast.NewDispatcher(db, manager))
}

func seedBroadcast(t *testing.T, db *gorm.DB, botID uint64, status models.BroadcastStatus) *models.Broadcast {
	t.Helper()
	b := models.Broadcast{
		OwnerID:   testUserID,
		BotID:     botID,
		Title:     "launch",
		Message:   "we are live",
		ParseMode: "HTML",
		Status:    status,
	}
	if errCreate := db.Create(&b).Error; errCreate != nil {
		t.Fatalf("create broadcast: %v", errCreate)
	}
	return &b
}

func TestUpdateBroadcastOnlyWhilePending(t *testing.T) {
	db := setupDashboardDB(t)
	botID, _, _ := seedFleet(t, db)
	sent := seedBroadcast(t, db, botID, models.BroadcastCompleted)

	router := authedRouter()
	handler := newBroadcastHandler(db)
	router.PUT("/broadcast/:id", handler.Update)

	w := performJSON(t, router, http.MethodPut, fmt.Sprintf("/broadcast/%d", sent.ID), `{"title":"revised"}`)
	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409 for completed broadcast, got %d: %s", w.Code, w.Body.String())
	}

	var reloaded models.Broadcast
	if errFind := db.First(&reloaded, sent.ID).Error; errFind != nil {
		t.Fatalf("reload broadcast: %v", errFind)
	}
	if reloaded.Title != "launch" {
		t.Fatalf("completed broadcast was edited to %q", reloaded.Title)
	}
}

func TestDuplicateBroadcastPreservesSettings(t *testing.T) {
	db := setupDashboardDB(t)
	botID, sourceID, _ := seedFleet(t, db)
	messageID := int64(77)
	original := models.Broadcast{
		OwnerID:         testUserID,
		BotID:           botID,
		Title:           "launch",
		Message:         "we are live",
		ParseMode:       "MarkdownV2",
		SourceEntityID:  &sourceID,
		SourceMessageID: &messageID,
		Status:          models.BroadcastCompleted,
		SentCount:       10,
	}
	if errCreate := db.Create(&original).Error; errCreate != nil {
		t.Fatalf("create broadcast: %v", errCreate)
	}

	router := authedRouter()
	handler := newBroadcastHandler(db)
	router.POST("/broadcast/:id/duplicate", handler.Duplicate)

	w := performJSON(t, router, http.MethodPost, fmt.Sprintf("/broadcast/%d/duplicate", original.ID), "")
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}

	var clone models.Broadcast
	if errFind := db.Where("duplicated_from_id = ?", original.ID).First(&clone).Error; errFind != nil {
		t.Fatalf("load clone: %v", errFind)
	}
	if clone.Title != "launch (copy)" {
		t.Fatalf("expected copy title, got %q", clone.Title)
	}
	if clone.Message != original.Message || clone.ParseMode != original.ParseMode {
		t.Fatalf("clone lost message settings: %+v", clone)
	}
	if clone.SourceEntityID == nil || *clone.SourceEntityID != sourceID {
		t.Fatalf("clone lost source entity")
	}
	if clone.SourceMessageID == nil || *clone.SourceMessageID != messageID {
		t.Fatalf("clone lost source message")
	}
	if clone.Status != models.BroadcastPending {
		t.Fatalf("expected clone pending, got %d", clone.Status)
	}
	if clone.SentCount != 0 {
		t.Fatalf("expected clone counters reset, got sent=%d", clone.SentCount)
	}
}

func TestSendBroadcastRejectsNonPending(t *testing.T) {
	db := setupDashboardDB(t)
	botID, _, _ := seedFleet(t, db)
	cancelled := seedBroadcast(t, db, botID, models.BroadcastCancelled)

	router := authedRouter()
	handler := newBroadcastHandler(db)
	router.POST("/broadcast/:id/send", handler.Send)

	w := performJSON(t, router, http.MethodPost, fmt.Sprintf("/broadcast/%d/send", cancelled.ID), "")
	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d: %s", w.Code, w.Body.String())
	}
}

func TestCancelBroadcastGuards(t *testing.T) {
	db := setupDashboardDB(t)
	botID, _, _ := seedFleet(t, db)
	pending := seedBroadcast(t, db, botID, models.BroadcastPending)
	done := seedBroadcast(t, db, botID, models.BroadcastCompleted)

	router := authedRouter()
	handler := newBroadcastHandler(db)
	router.POST("/broadcast/:id/cancel", handler.Cancel)

	if w := performJSON(t, router, http.MethodPost, fmt.Sprintf("/broadcast/%d/cancel", pending.ID), ""); w.Code != http.StatusOK {
		t.Fatalf("cancel pending: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var reloaded models.Broadcast
	if errFind := db.First(&reloaded, pending.ID).Error; errFind != nil {
		t.Fatalf("reload broadcast: %v", errFind)
	}
	if reloaded.Status != models.BroadcastCancelled {
		t.Fatalf("expected cancelled, got %d", reloaded.Status)
	}

	if w := performJSON(t, router, http.MethodPost, fmt.Sprintf("/broadcast/%d/cancel", done.ID), ""); w.Code != http.StatusConflict {
		t.Fatalf("cancel completed: expected 409, got %d", w.Code)
	}
}
