package models

import (
	"time"

	"gorm.io/datatypes"
)

// ForwardRule copies or forwards posts from a source entity to a destination
// entity, either in realtime or in scheduled batches. Source and destination
// are fixed at creation time and must differ.
type ForwardRule struct {
	ID uint64 `gorm:"primaryKey;autoIncrement" json:"id"` // Primary key.

	OwnerID uint64 `gorm:"not null;index" json:"owner_id"` // Owning user.
	BotID   uint64 `gorm:"not null;index" json:"bot_id"`   // Executing bot.
	Name    string `gorm:"type:text;not null" json:"name"` // Display name.

	SourceEntityID      uint64 `gorm:"not null;index" json:"source_entity_id"`      // Immutable source entity.
	DestinationEntityID uint64 `gorm:"not null;index" json:"destination_entity_id"` // Immutable destination entity.

	ScheduleMode   ScheduleMode   `gorm:"not null;default:0" json:"schedule_mode"`   // Realtime or scheduled.
	IsActive       bool           `gorm:"not null;default:false" json:"is_active"`   // Realtime on/off switch.
	ScheduleStatus ScheduleStatus `gorm:"not null;default:0" json:"schedule_status"` // Scheduled runner state.

	// Scheduled-mode configuration.
	BatchSize        int          `gorm:"not null;default:1" json:"batch_size"`               // Posts per batch, >= 1.
	PostInterval     int          `gorm:"not null;default:1" json:"post_interval"`            // Interval between batches, >= 1.
	PostIntervalUnit IntervalUnit `gorm:"type:text;not null;default:minutes" json:"post_interval_unit"` // Interval unit.

	DeleteAfterEnabled bool         `gorm:"not null;default:false" json:"delete_after_enabled"`        // Delete forwarded posts later.
	DeleteInterval     int          `gorm:"not null;default:0" json:"delete_interval"`                 // Delete delay value.
	DeleteIntervalUnit IntervalUnit `gorm:"type:text;not null;default:never" json:"delete_interval_unit"` // "never" disables the value.

	BroadcastEnabled            bool         `gorm:"not null;default:false" json:"broadcast_enabled"`             // Post a message after each batch.
	BroadcastText               string       `gorm:"type:text" json:"broadcast_text,omitempty"`                   // Post-batch message text.
	BroadcastDeleteInterval     int          `gorm:"not null;default:0" json:"broadcast_delete_interval"`         // Post-batch message delete delay.
	BroadcastDeleteIntervalUnit IntervalUnit `gorm:"type:text;not null;default:never" json:"broadcast_delete_interval_unit"` // Delete unit, "never" disables.

	StartFromMessageID *int64 `json:"start_from_message_id,omitempty"` // Optional range start.
	EndAtMessageID     *int64 `json:"end_at_message_id,omitempty"`     // Optional range end, >= start when both set.
	CurrentMessageID   *int64 `json:"current_message_id,omitempty"`    // Runner cursor within the range.

	Shuffle        bool `gorm:"not null;default:false" json:"shuffle"`          // Randomize batch order.
	RepeatWhenDone bool `gorm:"not null;default:false" json:"repeat_when_done"` // Restart from range start after completion.

	// Content filters, independent booleans.
	ForwardMedia     bool `gorm:"not null;default:true" json:"forward_media"`     // Photos and videos.
	ForwardText      bool `gorm:"not null;default:true" json:"forward_text"`      // Text posts.
	ForwardDocuments bool `gorm:"not null;default:true" json:"forward_documents"` // Documents.
	ForwardStickers  bool `gorm:"not null;default:true" json:"forward_stickers"`  // Stickers.
	ForwardPolls     bool `gorm:"not null;default:true" json:"forward_polls"`     // Polls.

	// Modification flags applied to forwarded content.
	RemoveLinks         bool   `gorm:"not null;default:false" json:"remove_links"`          // Strip URLs from text.
	AddWatermark        bool   `gorm:"not null;default:false" json:"add_watermark"`         // Append watermark text.
	WatermarkText       string `gorm:"type:text" json:"watermark_text,omitempty"`           // Watermark content.
	DeleteWatermark     string `gorm:"type:text" json:"delete_watermark,omitempty"`         // Existing watermark to strip.
	HideSenderName      bool   `gorm:"not null;default:false" json:"hide_sender_name"`      // Drop the forward header.
	HideAuthorSignature bool   `gorm:"not null;default:false" json:"hide_author_signature"` // Drop channel signatures.
	CopyMode            bool   `gorm:"not null;default:false" json:"copy_mode"`             // Copy instead of forward.

	IncludeKeywords datatypes.JSON `gorm:"type:jsonb;not null;default:'[]'" json:"include_keywords"` // Only forward matching posts.
	ExcludeKeywords datatypes.JSON `gorm:"type:jsonb;not null;default:'[]'" json:"exclude_keywords"` // Skip matching posts.

	LastRunAt *time.Time `json:"last_run_at,omitempty"` // Last batch execution time.

	CreatedAt time.Time `gorm:"not null;autoCreateTime" json:"created_at"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime" json:"updated_at"` // Last update timestamp.
}

// TableName pins the forward rules table name.
func (ForwardRule) TableName() string { return "forward_rules" }

// Scheduled reports whether the rule runs in scheduled mode.
func (r *ForwardRule) Scheduled() bool { return r.ScheduleMode == ScheduleModeScheduled }

// CanStart reports whether the scheduled runner may be started.
func (r *ForwardRule) CanStart() bool {
	return r.Scheduled() && r.ScheduleStatus == ScheduleStatusIdle
}

// CanPause reports whether the scheduled runner may be paused.
func (r *ForwardRule) CanPause() bool {
	return r.Scheduled() && r.ScheduleStatus == ScheduleStatusRunning
}

// CanResume reports whether the scheduled runner may be resumed.
func (r *ForwardRule) CanResume() bool {
	return r.Scheduled() && r.ScheduleStatus == ScheduleStatusPaused
}

// CanReset reports whether the scheduled runner may be reset to idle.
func (r *ForwardRule) CanReset() bool {
	if !r.Scheduled() {
		return false
	}
	switch r.ScheduleStatus {
	case ScheduleStatusRunning, ScheduleStatusPaused, ScheduleStatusCompleted:
		return true
	}
	return false
}
