package models

import "time"

// Invite is a paid, expiring Telegram invite link for an entity.
type Invite struct {
	ID uint64 `gorm:"primaryKey;autoIncrement" json:"id"` // Primary key.

	OwnerID  uint64 `gorm:"not null;index" json:"owner_id"`  // Purchasing user.
	EntityID uint64 `gorm:"not null;index" json:"entity_id"` // Target entity.

	Token      string `gorm:"type:text;not null;uniqueIndex" json:"token"` // Opaque public token.
	InviteLink string `gorm:"type:text" json:"invite_link,omitempty"`      // Telegram invite link URL.

	DurationValue   int          `gorm:"not null" json:"duration_value"`   // Value part of the requested duration.
	DurationUnit    DurationUnit `gorm:"not null" json:"duration_unit"`    // Unit part of the requested duration.
	DurationSeconds int64        `gorm:"not null" json:"duration_seconds"` // value x unit multiplier, capped at two years.

	MemberLimit int     `gorm:"not null;default:1" json:"member_limit"` // Joins allowed, defaults to one-time use.
	Cost        float64 `gorm:"not null;type:decimal(12,4)" json:"cost"` // Tokens charged at creation.

	UsedCount int        `gorm:"not null;default:0" json:"used_count"` // Joins consumed so far.
	ExpiresAt time.Time  `gorm:"not null;index" json:"expires_at"`     // Link expiry instant.
	RevokedAt *time.Time `json:"revoked_at,omitempty"`                 // Set when the link was revoked early.

	CreatedAt time.Time `gorm:"not null;autoCreateTime" json:"created_at"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime" json:"updated_at"` // Last update timestamp.
}

// TableName pins the invites table name.
func (Invite) TableName() string { return "invites" }

// Member is a user admitted to an entity through an invite.
type Member struct {
	ID uint64 `gorm:"primaryKey;autoIncrement" json:"id"` // Primary key.

	EntityID       uint64  `gorm:"not null;index" json:"entity_id"`          // Entity joined.
	InviteID       *uint64 `gorm:"index" json:"invite_id,omitempty"`         // Invite used, when known.
	TelegramUserID int64   `gorm:"not null;index" json:"telegram_user_id"`   // Telegram user identifier.
	Username       string  `gorm:"type:text" json:"username,omitempty"`      // Telegram username.

	JoinedAt  time.Time  `gorm:"not null;autoCreateTime" json:"joined_at"` // Admission time.
	ExpiresAt *time.Time `gorm:"index" json:"expires_at,omitempty"`        // Membership expiry when time-boxed.
	RemovedAt *time.Time `json:"removed_at,omitempty"`                     // Set after eviction.
}

// TableName pins the members table name.
func (Member) TableName() string { return "members" }
