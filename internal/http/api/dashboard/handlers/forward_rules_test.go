package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"

	apihttp "github.com/visorry/flash-invite-sub001/internal/http"
	"github.com/visorry/flash-invite-sub001/internal/models"
)

const testUserID = uint64(1)

func setupDashboardDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:dashboard_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, errOpen := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if errOpen != nil {
		t.Fatalf("open db: %v", errOpen)
	}
	errMigrate := db.AutoMigrate(
		&models.User{}, &models.TokenAccount{}, &models.TokenTransaction{},
		&models.Bot{}, &models.TelegramEntity{}, &models.Subscriber{},
		&models.ForwardRule{}, &models.Broadcast{}, &models.AutoDropRule{},
		&models.Invite{}, &models.Member{}, &models.PromoterConfig{},
		&models.TokenPricing{}, &models.AutomationPricing{},
	)
	if errMigrate != nil {
		t.Fatalf("migrate db: %v", errMigrate)
	}
	return db
}

// seedFleet creates a user, one bot and two linked entities, returning the
// bot and entity IDs in creation order.
func seedFleet(t *testing.T, db *gorm.DB) (botID, sourceID, destinationID uint64) {
	t.Helper()
	user := models.User{Username: "owner", Email: "owner@example.com", Password: "x"}
	if errCreate := db.Create(&user).Error; errCreate != nil {
		t.Fatalf("create user: %v", errCreate)
	}
	bot := models.Bot{OwnerID: user.ID, Token: "12345:abc", Username: "flash_test_bot", Mode: models.BotModePolling, IsActive: true}
	if errCreate := db.Create(&bot).Error; errCreate != nil {
		t.Fatalf("create bot: %v", errCreate)
	}
	source := models.TelegramEntity{BotID: bot.ID, OwnerID: user.ID, ChatID: -1001, Type: "channel", Title: "Source"}
	destination := models.TelegramEntity{BotID: bot.ID, OwnerID: user.ID, ChatID: -1002, Type: "supergroup", Title: "Destination"}
	if errCreate := db.Create(&source).Error; errCreate != nil {
		t.Fatalf("create source: %v", errCreate)
	}
	if errCreate := db.Create(&destination).Error; errCreate != nil {
		t.Fatalf("create destination: %v", errCreate)
	}
	return bot.ID, source.ID, destination.ID
}

// authedRouter returns a fresh engine whose requests carry the test user.
func authedRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(func(c *gin.Context) {
		c.Set(apihttp.ContextUserIDKey, testUserID)
		c.Next()
	})
	return router
}

func performJSON(t *testing.T, router *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Buffer
	if body == "" {
		reader = bytes.NewBuffer(nil)
	} else {
		reader = bytes.NewBufferString(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func registerForwardRuleRoutes(router *gin.Engine, handler *ForwardRuleHandler) {
	router.POST("/forward-rules", handler.Create)
	router.PUT("/forward-rules/:id", handler.Update)
	router.POST("/forward-rules/:id/start", handler.Start)
	router.POST("/forward-rules/:id/pause", handler.Pause)
	router.POST("/forward-rules/:id/resume", handler.Resume)
	router.POST("/forward-rules/:id/reset", handler.Reset)
}

func TestCreateForwardRuleRejectsSameSourceAndDestination(t *testing.T) {
	db := setupDashboardDB(t)
	botID, sourceID, _ := seedFleet(t, db)

	router := authedRouter()
	registerForwardRuleRoutes(router, NewForwardRuleHandler(db))

	body := fmt.Sprintf(`{"name":"loop","bot_id":%d,"source_entity_id":%d,"destination_entity_id":%d,"schedule_mode":0}`,
		botID, sourceID, sourceID)
	w := performJSON(t, router, http.MethodPost, "/forward-rules", body)
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d: %s", w.Code, w.Body.String())
	}

	var count int64
	if errCount := db.Model(&models.ForwardRule{}).Count(&count).Error; errCount != nil {
		t.Fatalf("count rules: %v", errCount)
	}
	if count != 0 {
		t.Fatalf("expected no rule persisted, found %d", count)
	}
}

func TestCreateForwardRuleChargesAutomationCost(t *testing.T) {
	db := setupDashboardDB(t)
	botID, sourceID, destinationID := seedFleet(t, db)
	if errSeed := db.Create(&models.AutomationPricing{FeatureType: models.FeatureForwardRule, CostPerRule: 5}).Error; errSeed != nil {
		t.Fatalf("seed pricing: %v", errSeed)
	}
	if errSeed := db.Create(&models.TokenAccount{UserID: testUserID, Balance: 12}).Error; errSeed != nil {
		t.Fatalf("seed account: %v", errSeed)
	}

	router := authedRouter()
	registerForwardRuleRoutes(router, NewForwardRuleHandler(db))

	body := fmt.Sprintf(`{"name":"mirror","bot_id":%d,"source_entity_id":%d,"destination_entity_id":%d,"schedule_mode":0}`,
		botID, sourceID, destinationID)
	w := performJSON(t, router, http.MethodPost, "/forward-rules", body)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}

	var account models.TokenAccount
	if errFind := db.Where("user_id = ?", testUserID).First(&account).Error; errFind != nil {
		t.Fatalf("load account: %v", errFind)
	}
	if account.Balance != 7 {
		t.Fatalf("expected balance 7 after charge, got %.2f", account.Balance)
	}
	var tx models.TokenTransaction
	if errFind := db.Where("user_id = ? AND kind = ?", testUserID, models.TokenTxAutomation).First(&tx).Error; errFind != nil {
		t.Fatalf("load transaction: %v", errFind)
	}
	if tx.Amount != -5 {
		t.Fatalf("expected ledger amount -5, got %.2f", tx.Amount)
	}
}

func TestCreateForwardRuleInsufficientBalanceRollsBack(t *testing.T) {
	db := setupDashboardDB(t)
	botID, sourceID, destinationID := seedFleet(t, db)
	if errSeed := db.Create(&models.AutomationPricing{FeatureType: models.FeatureForwardRule, CostPerRule: 5}).Error; errSeed != nil {
		t.Fatalf("seed pricing: %v", errSeed)
	}
	if errSeed := db.Create(&models.TokenAccount{UserID: testUserID, Balance: 2}).Error; errSeed != nil {
		t.Fatalf("seed account: %v", errSeed)
	}

	router := authedRouter()
	registerForwardRuleRoutes(router, NewForwardRuleHandler(db))

	body := fmt.Sprintf(`{"name":"mirror","bot_id":%d,"source_entity_id":%d,"destination_entity_id":%d,"schedule_mode":0}`,
		botID, sourceID, destinationID)
	w := performJSON(t, router, http.MethodPost, "/forward-rules", body)
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d: %s", w.Code, w.Body.String())
	}

	var response struct {
		Error string `json:"error"`
	}
	if errDecode := json.Unmarshal(w.Body.Bytes(), &response); errDecode != nil {
		t.Fatalf("decode response: %v", errDecode)
	}
	if response.Error != "billing: cost 5.00 exceeds balance 2.00" {
		t.Fatalf("expected cost/balance detail, got %q", response.Error)
	}

	var count int64
	if errCount := db.Model(&models.ForwardRule{}).Count(&count).Error; errCount != nil {
		t.Fatalf("count rules: %v", errCount)
	}
	if count != 0 {
		t.Fatalf("expected charge rollback to remove the rule, found %d", count)
	}
}

func TestCreateForwardRuleFailsClosedWithoutPricing(t *testing.T) {
	db := setupDashboardDB(t)
	botID, sourceID, destinationID := seedFleet(t, db)

	router := authedRouter()
	registerForwardRuleRoutes(router, NewForwardRuleHandler(db))

	body := fmt.Sprintf(`{"name":"mirror","bot_id":%d,"source_entity_id":%d,"destination_entity_id":%d,"schedule_mode":0}`,
		botID, sourceID, destinationID)
	w := performJSON(t, router, http.MethodPost, "/forward-rules", body)
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 when pricing is not configured, got %d: %s", w.Code, w.Body.String())
	}
}

func TestUpdateForwardRuleKeepsEndpointsImmutable(t *testing.T) {
	db := setupDashboardDB(t)
	botID, sourceID, destinationID := seedFleet(t, db)
	rule := models.ForwardRule{
		OwnerID: testUserID, BotID: botID, Name: "mirror",
		SourceEntityID: sourceID, DestinationEntityID: destinationID,
	}
	if errCreate := db.Create(&rule).Error; errCreate != nil {
		t.Fatalf("create rule: %v", errCreate)
	}

	router := authedRouter()
	registerForwardRuleRoutes(router, NewForwardRuleHandler(db))

	body := fmt.Sprintf(`{"source_entity_id":%d}`, destinationID)
	w := performJSON(t, router, http.MethodPut, fmt.Sprintf("/forward-rules/%d", rule.ID), body)
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d: %s", w.Code, w.Body.String())
	}

	var reloaded models.ForwardRule
	if errFind := db.First(&reloaded, rule.ID).Error; errFind != nil {
		t.Fatalf("reload rule: %v", errFind)
	}
	if reloaded.SourceEntityID != sourceID {
		t.Fatalf("source entity changed to %d", reloaded.SourceEntityID)
	}
}

func TestUpdateForwardRuleRejectsInvertedMessageRange(t *testing.T) {
	db := setupDashboardDB(t)
	botID, sourceID, destinationID := seedFleet(t, db)
	end := int64(100)
	rule := models.ForwardRule{
		OwnerID: testUserID, BotID: botID, Name: "mirror",
		SourceEntityID: sourceID, DestinationEntityID: destinationID,
		EndAtMessageID: &end,
	}
	if errCreate := db.Create(&rule).Error; errCreate != nil {
		t.Fatalf("create rule: %v", errCreate)
	}

	router := authedRouter()
	registerForwardRuleRoutes(router, NewForwardRuleHandler(db))

	w := performJSON(t, router, http.MethodPut, fmt.Sprintf("/forward-rules/%d", rule.ID),
		`{"start_from_message_id":500,"end_at_message_id":10}`)
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d: %s", w.Code, w.Body.String())
	}

	// The check covers the merged range too: a new start past the stored end.
	w = performJSON(t, router, http.MethodPut, fmt.Sprintf("/forward-rules/%d", rule.ID),
		`{"start_from_message_id":500}`)
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 against the stored end, got %d: %s", w.Code, w.Body.String())
	}

	var reloaded models.ForwardRule
	if errFind := db.First(&reloaded, rule.ID).Error; errFind != nil {
		t.Fatalf("reload rule: %v", errFind)
	}
	if reloaded.StartFromMessageID != nil {
		t.Fatalf("start persisted as %d despite rejection", *reloaded.StartFromMessageID)
	}
	if reloaded.EndAtMessageID == nil || *reloaded.EndAtMessageID != end {
		t.Fatalf("stored end changed: %v", reloaded.EndAtMessageID)
	}
}

func TestForwardRuleLifecycleGuards(t *testing.T) {
	db := setupDashboardDB(t)
	botID, sourceID, destinationID := seedFleet(t, db)
	cursor := int64(42)
	rule := models.ForwardRule{
		OwnerID: testUserID, BotID: botID, Name: "drip",
		SourceEntityID: sourceID, DestinationEntityID: destinationID,
		ScheduleMode: models.ScheduleModeScheduled, ScheduleStatus: models.ScheduleStatusIdle,
		BatchSize: 3, PostInterval: 1, PostIntervalUnit: models.IntervalHours,
		CurrentMessageID: &cursor,
	}
	if errCreate := db.Create(&rule).Error; errCreate != nil {
		t.Fatalf("create rule: %v", errCreate)
	}

	router := authedRouter()
	registerForwardRuleRoutes(router, NewForwardRuleHandler(db))
	path := func(action string) string { return fmt.Sprintf("/forward-rules/%d/%s", rule.ID, action) }

	// Pausing an idle rule is a state conflict.
	if w := performJSON(t, router, http.MethodPost, path("pause"), ""); w.Code != http.StatusConflict {
		t.Fatalf("pause idle: expected 409, got %d", w.Code)
	}
	if w := performJSON(t, router, http.MethodPost, path("start"), ""); w.Code != http.StatusOK {
		t.Fatalf("start idle: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if w := performJSON(t, router, http.MethodPost, path("start"), ""); w.Code != http.StatusConflict {
		t.Fatalf("start running: expected 409, got %d", w.Code)
	}
	if w := performJSON(t, router, http.MethodPost, path("resume"), ""); w.Code != http.StatusConflict {
		t.Fatalf("resume running: expected 409, got %d", w.Code)
	}
	if w := performJSON(t, router, http.MethodPost, path("pause"), ""); w.Code != http.StatusOK {
		t.Fatalf("pause running: expected 200, got %d", w.Code)
	}
	if w := performJSON(t, router, http.MethodPost, path("resume"), ""); w.Code != http.StatusOK {
		t.Fatalf("resume paused: expected 200, got %d", w.Code)
	}
	if w := performJSON(t, router, http.MethodPost, path("reset"), ""); w.Code != http.StatusOK {
		t.Fatalf("reset running: expected 200, got %d", w.Code)
	}

	var reloaded models.ForwardRule
	if errFind := db.First(&reloaded, rule.ID).Error; errFind != nil {
		t.Fatalf("reload rule: %v", errFind)
	}
	if reloaded.ScheduleStatus != models.ScheduleStatusIdle {
		t.Fatalf("expected idle after reset, got %d", reloaded.ScheduleStatus)
	}
	if reloaded.CurrentMessageID != nil {
		t.Fatalf("expected cursor cleared after reset, got %d", *reloaded.CurrentMessageID)
	}
}
