package telegram

import (
	"context"
	"errors"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"github.com/visorry/flash-invite-sub001/internal/models"
)

type fakeClient struct {
	username    string
	getMeErr    error
	sendErr     error
	sent        []tgbotapi.Chattable
	chatTitle   string
	memberCount int
	stopped     bool
}

func (f *fakeClient) GetMe() (tgbotapi.User, error) {
	if f.getMeErr != nil {
		return tgbotapi.User{}, f.getMeErr
	}
	return tgbotapi.User{UserName: f.username, IsBot: true}, nil
}

func (f *fakeClient) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	if f.sendErr != nil {
		return tgbotapi.Message{}, f.sendErr
	}
	f.sent = append(f.sent, c)
	return tgbotapi.Message{MessageID: len(f.sent)}, nil
}

func (f *fakeClient) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (f *fakeClient) GetChat(config tgbotapi.ChatInfoConfig) (tgbotapi.Chat, error) {
	return tgbotapi.Chat{Title: f.chatTitle}, nil
}

func (f *fakeClient) GetChatMembersCount(config tgbotapi.ChatMemberCountConfig) (int, error) {
	return f.memberCount, nil
}

func (f *fakeClient) GetUpdates(tgbotapi.UpdateConfig) ([]tgbotapi.Update, error) {
	return nil, nil
}

func (f *fakeClient) StopReceivingUpdates() { f.stopped = true }

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	conn, errOpen := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if errOpen != nil {
		t.Fatalf("open sqlite: %v", errOpen)
	}
	if errMigrate := conn.AutoMigrate(&models.Bot{}, &models.TelegramEntity{}); errMigrate != nil {
		t.Fatalf("migrate: %v", errMigrate)
	}
	return conn
}

func seedBot(t *testing.T, conn *gorm.DB, token string) *models.Bot {
	t.Helper()
	bot := &models.Bot{
		OwnerID:      1,
		Token:        token,
		Username:     "fleet_bot",
		Mode:         models.BotModePolling,
		IsActive:     true,
		HealthStatus: models.BotHealthUnknown,
	}
	if errCreate := conn.Create(bot).Error; errCreate != nil {
		t.Fatalf("seed bot: %v", errCreate)
	}
	return bot
}

func TestValidateToken(t *testing.T) {
	manager := NewManager(func(token string) (Client, error) {
		if token != "good" {
			return nil, errors.New("401 unauthorized")
		}
		return &fakeClient{username: "flash_bot"}, nil
	})

	username, errValidate := manager.ValidateToken("good")
	if errValidate != nil {
		t.Fatalf("ValidateToken: %v", errValidate)
	}
	if username != "flash_bot" {
		t.Fatalf("username = %q, want flash_bot", username)
	}

	if _, errBad := manager.ValidateToken("bad"); errBad == nil {
		t.Fatal("expected error for bad token")
	}
}

func TestCheckBotRecordsHealth(t *testing.T) {
	conn := openTestDB(t)
	client := &fakeClient{username: "flash_bot"}
	manager := NewManager(func(string) (Client, error) { return client, nil })
	bot := seedBot(t, conn, "tok-1")

	if errCheck := manager.CheckBot(context.Background(), conn, bot); errCheck != nil {
		t.Fatalf("CheckBot: %v", errCheck)
	}
	var stored models.Bot
	if errFind := conn.First(&stored, bot.ID).Error; errFind != nil {
		t.Fatalf("reload: %v", errFind)
	}
	if stored.HealthStatus != models.BotHealthy {
		t.Fatalf("health = %q, want healthy", stored.HealthStatus)
	}
	if stored.LastHealthCheckAt == nil {
		t.Fatal("expected last_health_check_at to be set")
	}

	client.getMeErr = errors.New("telegram: 502")
	_ = manager.CheckBot(context.Background(), conn, bot)
	if errFind := conn.First(&stored, bot.ID).Error; errFind != nil {
		t.Fatalf("reload: %v", errFind)
	}
	if stored.HealthStatus != models.BotUnhealthy {
		t.Fatalf("health = %q, want unhealthy", stored.HealthStatus)
	}
	if stored.LastHealthError == "" {
		t.Fatal("expected last_health_error to be recorded")
	}
}

func TestRestartIncrementsCounterAndReconnects(t *testing.T) {
	conn := openTestDB(t)
	connects := 0
	manager := NewManager(func(string) (Client, error) {
		connects++
		return &fakeClient{username: "flash_bot"}, nil
	})
	bot := seedBot(t, conn, "tok-1")

	// First contact connects once.
	if _, errClient := manager.ClientFor(bot); errClient != nil {
		t.Fatalf("ClientFor: %v", errClient)
	}
	if errRestart := manager.Restart(context.Background(), conn, bot.ID); errRestart != nil {
		t.Fatalf("Restart: %v", errRestart)
	}
	if connects != 2 {
		t.Fatalf("connects = %d, want 2", connects)
	}

	var stored models.Bot
	if errFind := conn.First(&stored, bot.ID).Error; errFind != nil {
		t.Fatalf("reload: %v", errFind)
	}
	if stored.RestartCount != 1 {
		t.Fatalf("restart_count = %d, want 1", stored.RestartCount)
	}

	// Restarting again while already connected is still fine.
	if errRestart := manager.Restart(context.Background(), conn, bot.ID); errRestart != nil {
		t.Fatalf("second Restart: %v", errRestart)
	}
	if errFind := conn.First(&stored, bot.ID).Error; errFind != nil {
		t.Fatalf("reload: %v", errFind)
	}
	if stored.RestartCount != 2 {
		t.Fatalf("restart_count = %d, want 2", stored.RestartCount)
	}
}

func TestRestartUnhealthyTargetsOnlyUnhealthy(t *testing.T) {
	conn := openTestDB(t)
	manager := NewManager(func(string) (Client, error) {
		return &fakeClient{username: "flash_bot"}, nil
	})

	healthy := seedBot(t, conn, "tok-healthy")
	conn.Model(healthy).Update("health_status", models.BotHealthy)
	sick := seedBot(t, conn, "tok-sick")
	conn.Model(sick).Update("health_status", models.BotUnhealthy)

	restarted, failed, errRestart := manager.RestartUnhealthy(context.Background(), conn)
	if errRestart != nil {
		t.Fatalf("RestartUnhealthy: %v", errRestart)
	}
	if restarted != 1 || len(failed) != 0 {
		t.Fatalf("restarted = %d failed = %v, want 1 restarts and no failures", restarted, failed)
	}

	var stored models.Bot
	if errFind := conn.First(&stored, healthy.ID).Error; errFind != nil {
		t.Fatalf("reload: %v", errFind)
	}
	if stored.RestartCount != 0 {
		t.Fatal("healthy bot must not be restarted")
	}
}

func TestStats(t *testing.T) {
	conn := openTestDB(t)
	seedBot(t, conn, "tok-1")
	sick := seedBot(t, conn, "tok-2")
	conn.Model(sick).Update("health_status", models.BotUnhealthy)
	off := seedBot(t, conn, "tok-3")
	conn.Model(off).Updates(map[string]any{"is_active": false, "health_status": models.BotHealthy})

	stats, errStats := Stats(context.Background(), conn)
	if errStats != nil {
		t.Fatalf("Stats: %v", errStats)
	}
	if stats.Total != 3 || stats.Active != 2 || stats.Healthy != 1 || stats.Unhealthy != 1 || stats.Unknown != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}

func TestIsBlockedErr(t *testing.T) {
	if !IsBlockedErr(errors.New("Forbidden: bot was blocked by the user")) {
		t.Fatal("blocked error not detected")
	}
	if IsBlockedErr(errors.New("Too Many Requests: retry after 5")) {
		t.Fatal("rate limit error misclassified as blocked")
	}
	if IsBlockedErr(nil) {
		t.Fatal("nil error misclassified")
	}
}
