package models

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
)

// User is a dashboard end user who owns bots, rules and token balances.
type User struct {
	ID uint64 `gorm:"primaryKey;autoIncrement" json:"id"` // Primary key.

	Username string `gorm:"type:text;not null;uniqueIndex" json:"username"` // Unique login name.
	Email    string `gorm:"type:text;not null;uniqueIndex" json:"email"`    // Contact and recovery address.
	Password string `gorm:"type:text;not null" json:"-"`                    // Hashed password.

	PlanID   *uint64 `gorm:"index" json:"plan_id,omitempty"`        // Active subscription plan.
	Disabled bool    `gorm:"not null;default:false" json:"disabled"` // Blocks sign-in when true.

	CreatedAt time.Time `gorm:"not null;autoCreateTime" json:"created_at"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime" json:"updated_at"` // Last update timestamp.
}

// TableName pins the users table name.
func (User) TableName() string { return "users" }

// TokenAccount holds a user's spendable token balance.
type TokenAccount struct {
	ID uint64 `gorm:"primaryKey;autoIncrement" json:"id"` // Primary key.

	UserID  uint64  `gorm:"not null;uniqueIndex" json:"user_id"`        // Account owner.
	Balance float64 `gorm:"not null;default:0;type:decimal(14,4)" json:"balance"` // Current balance.

	CreatedAt time.Time `gorm:"not null;autoCreateTime" json:"created_at"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime" json:"updated_at"` // Last update timestamp.
}

// TableName pins the token accounts table name.
func (TokenAccount) TableName() string { return "token_accounts" }

// Token transaction kinds.
const (
	// TokenTxPurchase credits tokens from a bundle or plan purchase.
	TokenTxPurchase = "purchase"
	// TokenTxDailyGrant credits a plan's daily token grant.
	TokenTxDailyGrant = "daily_grant"
	// TokenTxInvite debits the cost of an invite link.
	TokenTxInvite = "invite"
	// TokenTxAutomation debits the cost of an automation rule.
	TokenTxAutomation = "automation"
	// TokenTxAdjustment records a manual admin adjustment.
	TokenTxAdjustment = "adjustment"
)

// TokenTransaction is one signed movement on a token account.
type TokenTransaction struct {
	ID uint64 `gorm:"primaryKey;autoIncrement" json:"id"` // Primary key.

	UserID    uint64  `gorm:"not null;index" json:"user_id"`              // Account owner.
	Amount    float64 `gorm:"not null;type:decimal(14,4)" json:"amount"`  // Signed token amount.
	Kind      string  `gorm:"type:text;not null;index" json:"kind"`       // Transaction kind.
	Reference string  `gorm:"type:text" json:"reference,omitempty"`       // Related resource, e.g. invite id.

	CreatedAt time.Time `gorm:"not null;autoCreateTime" json:"created_at"` // Creation timestamp.
}

// TableName pins the token transactions table name.
func (TokenTransaction) TableName() string { return "token_transactions" }

// Admin represents an administrator account.
type Admin struct {
	ID uint64 `gorm:"primaryKey;autoIncrement" json:"id"` // Primary key.

	Username string `gorm:"type:text;not null;uniqueIndex" json:"username"` // Unique login name.
	Password string `gorm:"type:text;not null" json:"-"`                    // Hashed password.

	Active bool `gorm:"not null" json:"active"` // Whether the admin can sign in; set explicitly on create.

	Permissions datatypes.JSON `gorm:"type:jsonb;not null;default:'[]'" json:"permissions"` // Permission keys in JSON.

	TOTPSecret string `gorm:"type:text" json:"-"` // TOTP secret for MFA, empty when disabled.

	CreatedAt time.Time `gorm:"not null;autoCreateTime" json:"created_at"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime" json:"updated_at"` // Last update timestamp.
}

// TableName pins the admins table name.
func (Admin) TableName() string { return "admins" }

// Setting stores a key/value configuration entry in the database.
type Setting struct {
	Key       string          `gorm:"type:varchar(255);primaryKey"`                      // Configuration key.
	Value     json.RawMessage `gorm:"type:jsonb"`                                        // JSON-encoded value.
	UpdatedAt time.Time       `gorm:"not null;autoUpdateTime;default:CURRENT_TIMESTAMP"` // Last update timestamp.
}

// TableName pins the settings table name.
func (Setting) TableName() string { return "settings" }
