package models

import (
	"math"
	"time"
)

// Broadcast is a one-shot message delivery to a bot's subscribers. Once a
// broadcast leaves Pending it becomes immutable; revision happens by
// duplicating it into a fresh Pending broadcast, preserving audit history.
type Broadcast struct {
	ID uint64 `gorm:"primaryKey;autoIncrement" json:"id"` // Primary key.

	OwnerID uint64 `gorm:"not null;index" json:"owner_id"` // Owning user.
	BotID   uint64 `gorm:"not null;index" json:"bot_id"`   // Sending bot.

	Title     string `gorm:"type:text;not null" json:"title"`                // Display title.
	Message   string `gorm:"type:text;not null" json:"message"`              // Message body.
	ParseMode string `gorm:"type:text;not null;default:''" json:"parse_mode,omitempty"` // Telegram parse mode, empty for plain text.

	// Optional source entity whose post is forwarded instead of Message.
	SourceEntityID  *uint64 `json:"source_entity_id,omitempty"`  // Source group for forwarded broadcasts.
	SourceMessageID *int64  `json:"source_message_id,omitempty"` // Message to forward from the source.

	Status BroadcastStatus `gorm:"not null;default:0;index" json:"status"` // Lifecycle state.

	TotalRecipients int `gorm:"not null;default:0" json:"total_recipients"` // Snapshot of subscriber count at send time.
	SentCount       int `gorm:"not null;default:0" json:"sent_count"`       // Successful deliveries.
	FailedCount     int `gorm:"not null;default:0" json:"failed_count"`     // Failed deliveries.
	BlockedCount    int `gorm:"not null;default:0" json:"blocked_count"`    // Deliveries rejected because the user blocked the bot.

	DuplicatedFromID *uint64 `gorm:"index" json:"duplicated_from_id,omitempty"` // Broadcast this one was revised from.

	StartedAt  *time.Time `json:"started_at,omitempty"`  // Dispatch start time.
	FinishedAt *time.Time `json:"finished_at,omitempty"` // Dispatch end time.
	LastError  string     `gorm:"type:text" json:"last_error,omitempty"` // Failure detail when Status is Failed.

	CreatedAt time.Time `gorm:"not null;autoCreateTime" json:"created_at"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime" json:"updated_at"` // Last update timestamp.
}

// TableName pins the broadcasts table name.
func (Broadcast) TableName() string { return "broadcasts" }

// CanSend reports whether dispatch may begin.
func (b *Broadcast) CanSend() bool { return b.Status == BroadcastPending }

// CanCancel reports whether the broadcast may be cancelled.
func (b *Broadcast) CanCancel() bool {
	return b.Status == BroadcastPending || b.Status == BroadcastInProgress
}

// CanUpdate reports whether the broadcast is still mutable.
func (b *Broadcast) CanUpdate() bool { return b.Status == BroadcastPending }

// Processed returns the number of attempted deliveries.
func (b *Broadcast) Processed() int {
	return b.SentCount + b.FailedCount + b.BlockedCount
}

// Progress returns delivery progress in whole percent. A broadcast with no
// recipients short-circuits to zero.
func (b *Broadcast) Progress() int {
	if b.TotalRecipients <= 0 {
		return 0
	}
	pct := float64(b.Processed()) / float64(b.TotalRecipients) * 100
	return int(math.Round(pct))
}
