package models

import "time"

// Bot health states reported by the fleet poller.
const (
	// BotHealthy means the last getMe round trip succeeded.
	BotHealthy = "healthy"
	// BotUnhealthy means the last getMe round trip failed.
	BotUnhealthy = "unhealthy"
	// BotHealthUnknown means the bot has not been checked yet.
	BotHealthUnknown = "unknown"
)

// Bot run modes.
const (
	// BotModePolling consumes updates via long polling.
	BotModePolling = "polling"
	// BotModeWebhook consumes updates via webhook.
	BotModeWebhook = "webhook"
)

// Bot is a managed Telegram bot in the fleet.
type Bot struct {
	ID uint64 `gorm:"primaryKey;autoIncrement" json:"id"` // Primary key.

	OwnerID  uint64 `gorm:"not null;index" json:"owner_id"`                  // Owning user.
	Token    string `gorm:"type:text;not null;uniqueIndex" json:"-"`         // Bot API token, never serialized.
	Username string `gorm:"type:text;not null;index" json:"username"`        // Telegram bot username.
	Mode     string `gorm:"type:text;not null;default:polling" json:"mode"`  // polling or webhook.
	IsActive bool   `gorm:"not null;default:true" json:"is_active"`          // Whether the bot should run.

	HealthStatus      string     `gorm:"type:text;not null;default:unknown;index" json:"health_status"` // healthy, unhealthy or unknown.
	LastHealthCheckAt *time.Time `json:"last_health_check_at"`                                          // Last health probe time.
	LastHealthError   string     `gorm:"type:text" json:"last_health_error,omitempty"`                  // Last probe failure message.
	RestartCount      int        `gorm:"not null;default:0" json:"restart_count"`                       // Lifetime restart counter.

	CreatedAt time.Time `gorm:"not null;autoCreateTime" json:"created_at"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime" json:"updated_at"` // Last update timestamp.
}

// TableName pins the bots table name.
func (Bot) TableName() string { return "bots" }

// FleetStats aggregates bot health for the admin console.
type FleetStats struct {
	Total     int64 `json:"total"`     // All bots.
	Active    int64 `json:"active"`    // Bots with is_active=true.
	Healthy   int64 `json:"healthy"`   // Bots whose last probe succeeded.
	Unhealthy int64 `json:"unhealthy"` // Bots whose last probe failed.
	Unknown   int64 `json:"unknown"`   // Bots never probed.
}

// TelegramEntity is a group or channel a bot is linked to.
type TelegramEntity struct {
	ID uint64 `gorm:"primaryKey;autoIncrement" json:"id"` // Primary key.

	BotID    uint64 `gorm:"not null;index" json:"bot_id"`              // Managing bot.
	OwnerID  uint64 `gorm:"not null;index" json:"owner_id"`            // Owning user.
	ChatID   int64  `gorm:"not null;index" json:"chat_id"`             // Telegram chat identifier.
	Type     string `gorm:"type:text;not null" json:"type"`            // group, supergroup or channel.
	Title    string `gorm:"type:text;not null" json:"title"`           // Chat title.
	Username string `gorm:"type:text" json:"username,omitempty"`       // Public username when present.
	IsLinked bool   `gorm:"not null;default:true" json:"is_linked"`    // Whether the link is active.

	MemberCount int `gorm:"not null;default:0" json:"member_count"` // Last synced member count.

	CreatedAt time.Time `gorm:"not null;autoCreateTime" json:"created_at"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime" json:"updated_at"` // Last update timestamp.
}

// TableName pins the telegram entities table name.
func (TelegramEntity) TableName() string { return "telegram_entities" }

// Subscriber is a Telegram user who started a bot and can receive broadcasts.
type Subscriber struct {
	ID uint64 `gorm:"primaryKey;autoIncrement" json:"id"` // Primary key.

	BotID          uint64 `gorm:"not null;index:idx_subscribers_bot_user,unique" json:"bot_id"`            // Subscribed bot.
	TelegramUserID int64  `gorm:"not null;index:idx_subscribers_bot_user,unique" json:"telegram_user_id"`  // Telegram user identifier.
	Username       string `gorm:"type:text" json:"username,omitempty"`                                     // Telegram username.
	FirstName      string `gorm:"type:text" json:"first_name,omitempty"`                                   // Telegram first name.
	IsBlocked      bool   `gorm:"not null;default:false;index" json:"is_blocked"`                          // Whether the user blocked the bot.

	SubscribedAt time.Time `gorm:"not null;autoCreateTime" json:"subscribed_at"` // First /start time.
	UpdatedAt    time.Time `gorm:"not null;autoUpdateTime" json:"updated_at"`    // Last update timestamp.
}

// TableName pins the subscribers table name.
func (Subscriber) TableName() string { return "subscribers" }
