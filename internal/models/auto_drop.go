package models

import "time"

// Auto-drop batch size bounds.
const (
	AutoDropMinBatchSize = 1
	AutoDropMaxBatchSize = 10
)

// AutoDropRule drips stored posts from a source entity into a destination
// entity in fixed-size batches on a timer.
type AutoDropRule struct {
	ID uint64 `gorm:"primaryKey;autoIncrement" json:"id"` // Primary key.

	OwnerID uint64 `gorm:"not null;index" json:"owner_id"` // Owning user.
	BotID   uint64 `gorm:"not null;index" json:"bot_id"`   // Executing bot.
	Name    string `gorm:"type:text;not null" json:"name"` // Display name.

	SourceEntityID      uint64 `gorm:"not null;index" json:"source_entity_id"`      // Post source.
	DestinationEntityID uint64 `gorm:"not null;index" json:"destination_entity_id"` // Drop target.

	IsActive bool           `gorm:"not null;default:false" json:"is_active"`              // Rule armed switch; start requires it.
	Status   AutoDropStatus `gorm:"type:text;not null;index" json:"status"` // Runner state, string on the wire; zero value is stopped.

	BatchSize    int      `gorm:"not null;default:1" json:"batch_size"`               // Posts per drop, within [1,10].
	DropInterval int      `gorm:"not null;default:1" json:"drop_interval"`            // Interval between drops, >= 1.
	DropUnit     DropUnit `gorm:"type:text;not null;default:hours" json:"drop_unit"`  // Interval unit.

	StartPostID   *int64 `json:"start_post_id,omitempty"`   // First post of the range.
	EndPostID     *int64 `json:"end_post_id,omitempty"`     // Last post of the range.
	CurrentPostID *int64 `json:"current_post_id,omitempty"` // Runner cursor, last dropped post.

	LastDropAt *time.Time `json:"last_drop_at,omitempty"` // Last batch execution time.

	CreatedAt time.Time `gorm:"not null;autoCreateTime" json:"created_at"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime" json:"updated_at"` // Last update timestamp.
}

// TableName pins the auto-drop rules table name.
func (AutoDropRule) TableName() string { return "auto_drop_rules" }

// CanStart reports whether the runner may be started. Starting additionally
// requires the rule to be armed via IsActive.
func (r *AutoDropRule) CanStart() bool {
	return r.IsActive && r.Status == AutoDropStopped
}

// CanPause reports whether the runner may be paused.
func (r *AutoDropRule) CanPause() bool { return r.Status == AutoDropRunning }

// CanResume reports whether the runner may be resumed.
func (r *AutoDropRule) CanResume() bool { return r.Status == AutoDropPaused }

// CanReset reports whether the runner may be reset to stopped.
func (r *AutoDropRule) CanReset() bool {
	return r.Status == AutoDropPaused || r.Status == AutoDropCompleted
}

// Progress returns drop progress in whole percent, clamped to [0,100].
// Rules without a complete start/end/current triple report zero.
func (r *AutoDropRule) Progress() int {
	if r.StartPostID == nil || r.EndPostID == nil || r.CurrentPostID == nil {
		return 0
	}
	start, end, current := *r.StartPostID, *r.EndPostID, *r.CurrentPostID
	span := end - start
	if span <= 0 {
		if current >= start {
			return 100
		}
		return 0
	}
	pct := float64((current-start+1)*100) / float64(span)
	if pct < 0 {
		return 0
	}
	if pct > 100 {
		return 100
	}
	return int(pct)
}
