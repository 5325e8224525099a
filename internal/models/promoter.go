package models

import "time"

// CTALinkPlaceholder must appear in a promoter CTA template; it is replaced
// with the generated deep link at posting time.
const CTALinkPlaceholder = "{link}"

// PromoterConfig wires one bot into promoter mode: content is pulled from a
// vault entity and advertised in a distinct marketing entity with a
// call-to-action deep link.
type PromoterConfig struct {
	ID uint64 `gorm:"primaryKey;autoIncrement" json:"id"` // Primary key.

	OwnerID uint64 `gorm:"not null;index" json:"owner_id"`       // Owning user.
	BotID   uint64 `gorm:"not null;uniqueIndex" json:"bot_id"`   // One promoter config per bot.

	VaultEntityID     uint64 `gorm:"not null;index" json:"vault_entity_id"`     // Content source entity.
	MarketingEntityID uint64 `gorm:"not null;index" json:"marketing_entity_id"` // Advertising entity, distinct from vault.

	CTATemplate     string `gorm:"type:text;not null" json:"cta_template"`      // Must contain the {link} placeholder.
	TokenExpiryDays int    `gorm:"not null;default:1" json:"token_expiry_days"` // Deep-link token validity window.

	// Independent auto-delete timers for marketing posts and delivered content.
	MarketingDeleteInterval     int          `gorm:"not null;default:0" json:"marketing_delete_interval"`                   // Marketing post delete delay.
	MarketingDeleteIntervalUnit IntervalUnit `gorm:"type:text;not null;default:never" json:"marketing_delete_interval_unit"` // "never" disables.
	ContentDeleteInterval       int          `gorm:"not null;default:0" json:"content_delete_interval"`                     // Delivered content delete delay.
	ContentDeleteIntervalUnit   IntervalUnit `gorm:"type:text;not null;default:never" json:"content_delete_interval_unit"`   // "never" disables.

	// Delivery-modification flags mirroring ForwardRule's.
	RemoveLinks    bool   `gorm:"not null;default:false" json:"remove_links"`     // Strip URLs from delivered content.
	AddWatermark   bool   `gorm:"not null;default:false" json:"add_watermark"`    // Append watermark text.
	WatermarkText  string `gorm:"type:text" json:"watermark_text,omitempty"`      // Watermark content.
	HideSenderName bool   `gorm:"not null;default:false" json:"hide_sender_name"` // Drop the forward header.
	CopyMode       bool   `gorm:"not null;default:false" json:"copy_mode"`        // Copy instead of forward.

	IsActive bool `gorm:"not null;default:false" json:"is_active"` // Whether promoter mode runs.

	CreatedAt time.Time `gorm:"not null;autoCreateTime" json:"created_at"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime" json:"updated_at"` // Last update timestamp.
}

// TableName pins the promoter configs table name.
func (PromoterConfig) TableName() string { return "promoter_configs" }
