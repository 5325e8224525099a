package models

import (
	"time"

	"gorm.io/datatypes"
)

// Plan is a purchasable subscription plan.
type Plan struct {
	ID uint64 `gorm:"primaryKey;autoIncrement" json:"id"` // Primary key.

	Name        string       `gorm:"type:text;not null;uniqueIndex" json:"name"` // Display name.
	Description string       `gorm:"type:text" json:"description,omitempty"`     // Optional marketing copy.
	Interval    PlanInterval `gorm:"not null" json:"interval"`                   // Billing cadence.
	Price       float64      `gorm:"not null;type:decimal(12,2)" json:"price"`   // Price per interval, non-negative.

	TokensIncluded   int64          `gorm:"not null;default:0" json:"tokens_included"`      // One-time token grant.
	DailyTokens      int64          `gorm:"not null;default:0" json:"daily_tokens"`         // Recurring daily token grant.
	MaxGroups        *int           `json:"max_groups,omitempty"`                           // Optional group cap.
	MaxInvitesPerDay *int           `json:"max_invites_per_day,omitempty"`                  // Optional daily invite cap.
	Features         datatypes.JSON `gorm:"type:jsonb;not null;default:'[]'" json:"features"` // Feature labels in JSON.

	IsActive bool `gorm:"not null;default:true" json:"is_active"` // Whether the plan is purchasable.

	CreatedAt time.Time `gorm:"not null;autoCreateTime" json:"created_at"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime" json:"updated_at"` // Last update timestamp.
}

// TableName pins the plans table name.
func (Plan) TableName() string { return "plans" }

// TokenBundle is a one-off token top-up product.
type TokenBundle struct {
	ID uint64 `gorm:"primaryKey;autoIncrement" json:"id"` // Primary key.

	Name        string  `gorm:"type:text;not null;uniqueIndex" json:"name"` // Display name.
	Tokens      int64   `gorm:"not null" json:"tokens"`                     // Tokens granted, positive.
	BonusTokens int64   `gorm:"not null;default:0" json:"bonus_tokens"`     // Promotional extra tokens.
	Price       float64 `gorm:"not null;type:decimal(12,2)" json:"price"`   // Purchase price, non-negative.

	IsActive bool `gorm:"not null;default:true" json:"is_active"` // Whether the bundle is purchasable.

	CreatedAt time.Time `gorm:"not null;autoCreateTime" json:"created_at"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime" json:"updated_at"` // Last update timestamp.
}

// TableName pins the token bundles table name.
func (TokenBundle) TableName() string { return "token_bundles" }

// TokenPricing sets the token cost of one invite-duration unit.
type TokenPricing struct {
	ID uint64 `gorm:"primaryKey;autoIncrement" json:"id"` // Primary key.

	DurationUnit DurationUnit `gorm:"not null;uniqueIndex" json:"duration_unit"`        // Priced unit (0-4).
	CostPerUnit  float64      `gorm:"not null;type:decimal(12,4)" json:"cost_per_unit"` // Tokens per unit, non-negative.

	CreatedAt time.Time `gorm:"not null;autoCreateTime" json:"created_at"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime" json:"updated_at"` // Last update timestamp.
}

// TableName pins the token pricing table name.
func (TokenPricing) TableName() string { return "token_pricing" }

// AutomationPricing sets the token cost of automation features.
type AutomationPricing struct {
	ID uint64 `gorm:"primaryKey;autoIncrement" json:"id"` // Primary key.

	FeatureType      FeatureType `gorm:"not null;uniqueIndex" json:"feature_type"`         // Priced feature (0-1).
	CostPerRule      float64     `gorm:"not null;type:decimal(12,4)" json:"cost_per_rule"` // Tokens per rule, non-negative.
	FreeRulesAllowed int         `gorm:"not null;default:0" json:"free_rules_allowed"`     // Rules exempt from charging.

	CreatedAt time.Time `gorm:"not null;autoCreateTime" json:"created_at"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime" json:"updated_at"` // Last update timestamp.
}

// TableName pins the automation pricing table name.
func (AutomationPricing) TableName() string { return "automation_pricing" }

// PaymentGateway is a configured payment provider. At most one gateway may
// be the default, and only an active gateway can hold the default flag.
type PaymentGateway struct {
	ID uint64 `gorm:"primaryKey;autoIncrement" json:"id"` // Primary key.

	Gateway     Gateway        `gorm:"type:text;not null;uniqueIndex" json:"gateway"`  // Provider identifier.
	DisplayName string         `gorm:"type:text;not null" json:"display_name"`         // UI label.
	IsActive    bool           `gorm:"not null;default:false" json:"is_active"`        // Whether the gateway accepts payments.
	IsDefault   bool           `gorm:"not null;default:false" json:"is_default"`       // Preselected gateway for checkout.
	Credentials datatypes.JSON `gorm:"type:jsonb;not null;default:'{}'" json:"-"`      // Provider credentials, never serialized.

	CreatedAt time.Time `gorm:"not null;autoCreateTime" json:"created_at"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime" json:"updated_at"` // Last update timestamp.
}

// TableName pins the payment gateways table name.
func (PaymentGateway) TableName() string { return "payment_gateways" }
