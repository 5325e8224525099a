package scheduler

import (
	"context"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"github.com/visorry/flash-invite-sub001/internal/models"
	"github.com/visorry/flash-invite-sub001/internal/telegram"
)

type fakeClient struct {
	copied    []int
	forwarded []int
	messages  []string
	updates   []tgbotapi.Update
}

func (f *fakeClient) GetMe() (tgbotapi.User, error) { return tgbotapi.User{IsBot: true}, nil }

func (f *fakeClient) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	switch m := c.(type) {
	case tgbotapi.CopyMessageConfig:
		f.copied = append(f.copied, m.MessageID)
	case tgbotapi.ForwardConfig:
		f.forwarded = append(f.forwarded, m.MessageID)
	case tgbotapi.MessageConfig:
		f.messages = append(f.messages, m.Text)
	}
	return tgbotapi.Message{MessageID: len(f.copied) + len(f.forwarded) + len(f.messages)}, nil
}

func (f *fakeClient) Request(tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (f *fakeClient) GetChat(tgbotapi.ChatInfoConfig) (tgbotapi.Chat, error) {
	return tgbotapi.Chat{}, nil
}

func (f *fakeClient) GetChatMembersCount(tgbotapi.ChatMemberCountConfig) (int, error) {
	return 0, nil
}

func (f *fakeClient) GetUpdates(tgbotapi.UpdateConfig) ([]tgbotapi.Update, error) {
	pending := f.updates
	f.updates = nil
	return pending, nil
}

func (f *fakeClient) StopReceivingUpdates() {}

func setupScheduler(t *testing.T, client telegram.Client) (*Scheduler, *gorm.DB, *models.Bot, *models.TelegramEntity, *models.TelegramEntity) {
	t.Helper()
	conn, errOpen := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if errOpen != nil {
		t.Fatalf("open sqlite: %v", errOpen)
	}
	if errMigrate := conn.AutoMigrate(
		&models.Bot{}, &models.TelegramEntity{}, &models.ForwardRule{}, &models.AutoDropRule{},
	); errMigrate != nil {
		t.Fatalf("migrate: %v", errMigrate)
	}

	bot := &models.Bot{OwnerID: 1, Token: "tok", Username: "flash_bot", Mode: models.BotModePolling, IsActive: true}
	if errCreate := conn.Create(bot).Error; errCreate != nil {
		t.Fatalf("seed bot: %v", errCreate)
	}
	source := &models.TelegramEntity{BotID: bot.ID, OwnerID: 1, ChatID: -1001, Type: "channel", Title: "vault", IsLinked: true}
	dest := &models.TelegramEntity{BotID: bot.ID, OwnerID: 1, ChatID: -1002, Type: "channel", Title: "public", IsLinked: true}
	conn.Create(source)
	conn.Create(dest)

	manager := telegram.NewManager(func(string) (telegram.Client, error) { return client, nil })
	return New(conn, manager), conn, bot, source, dest
}

func int64p(v int64) *int64 { return &v }

func TestForwardBatchAdvancesCursor(t *testing.T) {
	client := &fakeClient{}
	s, conn, bot, source, dest := setupScheduler(t, client)

	rule := models.ForwardRule{
		OwnerID: 1, BotID: bot.ID, Name: "drip",
		SourceEntityID: source.ID, DestinationEntityID: dest.ID,
		ScheduleMode: models.ScheduleModeScheduled, ScheduleStatus: models.ScheduleStatusRunning,
		BatchSize: 3, PostInterval: 1, PostIntervalUnit: models.IntervalMinutes,
		StartFromMessageID: int64p(10), EndAtMessageID: int64p(20),
		CopyMode: true,
	}
	conn.Create(&rule)

	if errRun := s.runForwardBatch(context.Background(), &rule); errRun != nil {
		t.Fatalf("runForwardBatch: %v", errRun)
	}

	if len(client.copied) != 3 || client.copied[0] != 10 || client.copied[2] != 12 {
		t.Fatalf("copied = %v, want [10 11 12]", client.copied)
	}
	var stored models.ForwardRule
	conn.First(&stored, rule.ID)
	if stored.CurrentMessageID == nil || *stored.CurrentMessageID != 12 {
		t.Fatalf("cursor = %v, want 12", stored.CurrentMessageID)
	}
	if stored.ScheduleStatus != models.ScheduleStatusRunning {
		t.Fatalf("status = %v, want still running", stored.ScheduleStatus)
	}
	if stored.LastRunAt == nil {
		t.Fatal("expected last_run_at to be set")
	}
}

func TestForwardBatchCompletesAtRangeEnd(t *testing.T) {
	client := &fakeClient{}
	s, conn, bot, source, dest := setupScheduler(t, client)

	rule := models.ForwardRule{
		OwnerID: 1, BotID: bot.ID, Name: "drip",
		SourceEntityID: source.ID, DestinationEntityID: dest.ID,
		ScheduleMode: models.ScheduleModeScheduled, ScheduleStatus: models.ScheduleStatusRunning,
		BatchSize: 5, PostInterval: 1, PostIntervalUnit: models.IntervalMinutes,
		StartFromMessageID: int64p(10), EndAtMessageID: int64p(12),
		CurrentMessageID:   int64p(10),
	}
	conn.Create(&rule)

	if errRun := s.runForwardBatch(context.Background(), &rule); errRun != nil {
		t.Fatalf("runForwardBatch: %v", errRun)
	}
	if len(client.forwarded) != 2 {
		t.Fatalf("forwarded = %v, want messages 11 and 12", client.forwarded)
	}
	var stored models.ForwardRule
	conn.First(&stored, rule.ID)
	if stored.ScheduleStatus != models.ScheduleStatusCompleted {
		t.Fatalf("status = %v, want completed", stored.ScheduleStatus)
	}
}

func TestForwardBatchRepeatsWhenDone(t *testing.T) {
	client := &fakeClient{}
	s, conn, bot, source, dest := setupScheduler(t, client)

	rule := models.ForwardRule{
		OwnerID: 1, BotID: bot.ID, Name: "loop",
		SourceEntityID: source.ID, DestinationEntityID: dest.ID,
		ScheduleMode: models.ScheduleModeScheduled, ScheduleStatus: models.ScheduleStatusRunning,
		BatchSize: 5, PostInterval: 1, PostIntervalUnit: models.IntervalMinutes,
		StartFromMessageID: int64p(10), EndAtMessageID: int64p(12),
		CurrentMessageID:   int64p(11), RepeatWhenDone: true,
	}
	conn.Create(&rule)

	if errRun := s.runForwardBatch(context.Background(), &rule); errRun != nil {
		t.Fatalf("runForwardBatch: %v", errRun)
	}
	var stored models.ForwardRule
	conn.First(&stored, rule.ID)
	if stored.ScheduleStatus != models.ScheduleStatusRunning {
		t.Fatalf("status = %v, want running", stored.ScheduleStatus)
	}
	if stored.CurrentMessageID != nil {
		t.Fatalf("cursor = %v, want reset to nil", stored.CurrentMessageID)
	}
}

func TestForwardBatchPostsNoticeAfterBatch(t *testing.T) {
	client := &fakeClient{}
	s, conn, bot, source, dest := setupScheduler(t, client)

	rule := models.ForwardRule{
		OwnerID: 1, BotID: bot.ID, Name: "noticed",
		SourceEntityID: source.ID, DestinationEntityID: dest.ID,
		ScheduleMode: models.ScheduleModeScheduled, ScheduleStatus: models.ScheduleStatusRunning,
		BatchSize: 1, PostInterval: 1, PostIntervalUnit: models.IntervalMinutes,
		StartFromMessageID: int64p(1), EndAtMessageID: int64p(5),
		BroadcastEnabled:   true, BroadcastText: "fresh drop above",
	}
	conn.Create(&rule)

	if errRun := s.runForwardBatch(context.Background(), &rule); errRun != nil {
		t.Fatalf("runForwardBatch: %v", errRun)
	}
	if len(client.messages) != 1 || client.messages[0] != "fresh drop above" {
		t.Fatalf("notices = %v", client.messages)
	}
}

func TestAutoDropAdvancesAndCompletes(t *testing.T) {
	client := &fakeClient{}
	s, conn, bot, source, dest := setupScheduler(t, client)

	rule := models.AutoDropRule{
		OwnerID: 1, BotID: bot.ID, Name: "drops",
		SourceEntityID: source.ID, DestinationEntityID: dest.ID,
		IsActive: true, Status: models.AutoDropRunning,
		BatchSize: 2, DropInterval: 1, DropUnit: models.DropHours,
		StartPostID: int64p(1), EndPostID: int64p(3),
	}
	conn.Create(&rule)

	if errRun := s.runDrop(context.Background(), &rule); errRun != nil {
		t.Fatalf("runDrop: %v", errRun)
	}
	var stored models.AutoDropRule
	conn.First(&stored, rule.ID)
	if stored.CurrentPostID == nil || *stored.CurrentPostID != 2 {
		t.Fatalf("cursor = %v, want 2", stored.CurrentPostID)
	}
	if stored.Status != models.AutoDropRunning {
		t.Fatalf("status = %v, want running", stored.Status)
	}

	if errRun := s.runDrop(context.Background(), &stored); errRun != nil {
		t.Fatalf("second runDrop: %v", errRun)
	}
	conn.First(&stored, rule.ID)
	if stored.Status != models.AutoDropCompleted {
		t.Fatalf("status = %v, want completed", stored.Status)
	}
	if len(client.copied) != 3 {
		t.Fatalf("copied = %v, want posts 1..3", client.copied)
	}
}

func TestPumpRelaysRealtimePosts(t *testing.T) {
	client := &fakeClient{}
	s, conn, bot, source, dest := setupScheduler(t, client)

	rule := models.ForwardRule{
		OwnerID: 1, BotID: bot.ID, Name: "live",
		SourceEntityID: source.ID, DestinationEntityID: dest.ID,
		ScheduleMode: models.ScheduleModeRealtime, IsActive: true,
		ForwardText:     true,
		ExcludeKeywords: []byte(`["spam"]`),
		RemoveLinks:     true, AddWatermark: true, WatermarkText: "via @flash_bot",
	}
	conn.Create(&rule)

	client.updates = []tgbotapi.Update{
		{UpdateID: 7, ChannelPost: &tgbotapi.Message{
			MessageID: 100, Chat: &tgbotapi.Chat{ID: source.ChatID},
			Text: "deal https://example.com today",
		}},
		{UpdateID: 8, ChannelPost: &tgbotapi.Message{
			MessageID: 101, Chat: &tgbotapi.Chat{ID: source.ChatID},
			Text: "pure spam",
		}},
	}

	pump := NewPump(conn, s.manager)
	pump.pollBots(context.Background())

	if len(client.messages) != 1 {
		t.Fatalf("relayed = %v, want one rewritten post", client.messages)
	}
	want := "deal  today\n\nvia @flash_bot"
	if client.messages[0] != want {
		t.Fatalf("relayed %q, want %q", client.messages[0], want)
	}
	if pump.offsets[bot.ID] != 9 {
		t.Fatalf("offset = %d, want 9", pump.offsets[bot.ID])
	}
	var stored models.ForwardRule
	conn.First(&stored, rule.ID)
	if stored.LastRunAt == nil {
		t.Fatal("expected last_run_at to be set")
	}
}

func TestPumpCopiesWhenRuleDoesNotRewrite(t *testing.T) {
	client := &fakeClient{}
	s, conn, bot, source, dest := setupScheduler(t, client)

	rule := models.ForwardRule{
		OwnerID: 1, BotID: bot.ID, Name: "mirror",
		SourceEntityID: source.ID, DestinationEntityID: dest.ID,
		ScheduleMode: models.ScheduleModeRealtime, IsActive: true,
		ForwardText: true, CopyMode: true,
	}
	conn.Create(&rule)

	client.updates = []tgbotapi.Update{
		{UpdateID: 1, ChannelPost: &tgbotapi.Message{
			MessageID: 55, Chat: &tgbotapi.Chat{ID: source.ChatID},
			Text: "fresh drop",
		}},
	}

	NewPump(conn, s.manager).pollBots(context.Background())

	if len(client.copied) != 1 || client.copied[0] != 55 {
		t.Fatalf("copied = %v, want [55]", client.copied)
	}
	if len(client.messages) != 0 {
		t.Fatalf("unexpected rewritten messages: %v", client.messages)
	}
}

func TestPumpIgnoresDisarmedRules(t *testing.T) {
	client := &fakeClient{}
	s, conn, bot, source, dest := setupScheduler(t, client)

	rule := models.ForwardRule{
		OwnerID: 1, BotID: bot.ID, Name: "off",
		SourceEntityID: source.ID, DestinationEntityID: dest.ID,
		ScheduleMode: models.ScheduleModeRealtime, IsActive: false,
		ForwardText: true,
	}
	conn.Create(&rule)

	client.updates = []tgbotapi.Update{
		{UpdateID: 1, ChannelPost: &tgbotapi.Message{
			MessageID: 9, Chat: &tgbotapi.Chat{ID: source.ChatID},
			Text: "should stay put",
		}},
	}

	NewPump(conn, s.manager).pollBots(context.Background())

	if len(client.copied)+len(client.forwarded)+len(client.messages) != 0 {
		t.Fatalf("disarmed rule relayed: copied=%v forwarded=%v messages=%v",
			client.copied, client.forwarded, client.messages)
	}
}

func TestShouldForwardFiltersKindsAndKeywords(t *testing.T) {
	rule := &models.ForwardRule{
		ForwardText: true, ForwardMedia: false,
		IncludeKeywords: []byte(`["deal"]`),
		ExcludeKeywords: []byte(`["spam"]`),
	}

	if ShouldForward(rule, PostMedia, "big DEAL today") {
		t.Fatal("media must be filtered out")
	}
	if !ShouldForward(rule, PostText, "big DEAL today") {
		t.Fatal("matching text must pass")
	}
	if ShouldForward(rule, PostText, "no keywords here") {
		t.Fatal("text without include keyword must be dropped")
	}
	if ShouldForward(rule, PostText, "deal but also spam") {
		t.Fatal("exclude keyword must win")
	}
}

func TestShouldForwardWithoutKeywordFilters(t *testing.T) {
	rule := &models.ForwardRule{ForwardText: true}
	if !ShouldForward(rule, PostText, "anything goes") {
		t.Fatal("no keyword filters means pass")
	}
}

func TestTransformText(t *testing.T) {
	rule := &models.ForwardRule{
		RemoveLinks:     true,
		AddWatermark:    true,
		WatermarkText:   "via @flash_bot",
		DeleteWatermark: "via @other_bot",
	}
	got := TransformText(rule, "check https://example.com now via @other_bot")
	want := "check  now\n\nvia @flash_bot"
	if got != want {
		t.Fatalf("TransformText = %q, want %q", got, want)
	}
}
