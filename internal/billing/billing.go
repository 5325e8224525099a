package billing

import (
	"context"
	"errors"
	"fmt"
	"math"

	"gorm.io/gorm"

	"github.com/visorry/flash-invite-sub001/internal/models"
)

// Billing errors surfaced to handlers.
var (
	// ErrDurationTooLong rejects durations above the two-year cap.
	ErrDurationTooLong = errors.New("billing: duration exceeds the two year maximum")
	// ErrInvalidDuration rejects non-positive duration values.
	ErrInvalidDuration = errors.New("billing: duration value must be positive")
	// ErrNoPricing means no token pricing rows exist; cost cannot be known.
	// Creation must fail closed rather than default to a free invite.
	ErrNoPricing = errors.New("billing: token pricing is not configured")
)

// InsufficientBalanceError reports a blocked charge with both numbers, so
// callers can surface "cost X exceeds balance Y" verbatim.
type InsufficientBalanceError struct {
	Cost    float64
	Balance float64
}

// Error formats the cost/balance pair.
func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("billing: cost %.2f exceeds balance %.2f", e.Cost, e.Balance)
}

// DurationSeconds converts a value/unit pair into seconds, enforcing the
// positive-value rule and the two-year cap.
func DurationSeconds(value int, unit models.DurationUnit) (int64, error) {
	if value <= 0 {
		return 0, ErrInvalidDuration
	}
	if !unit.Valid() {
		return 0, fmt.Errorf("billing: invalid duration unit %d", unit)
	}
	seconds := int64(value) * unit.Seconds()
	if seconds > models.MaxInviteDurationSeconds {
		return 0, ErrDurationTooLong
	}
	return seconds, nil
}

// InviteCost prices a duration in tokens. The largest configured unit that
// evenly measures the duration wins; when none divides it evenly the
// smallest configured unit is used with the unit count rounded up. An empty
// pricing table is an error, never a zero cost.
func InviteCost(ctx context.Context, db *gorm.DB, durationSeconds int64) (float64, error) {
	if durationSeconds <= 0 {
		return 0, ErrInvalidDuration
	}
	if durationSeconds > models.MaxInviteDurationSeconds {
		return 0, ErrDurationTooLong
	}

	var rows []models.TokenPricing
	if errFind := db.WithContext(ctx).Order("duration_unit DESC").Find(&rows).Error; errFind != nil {
		return 0, fmt.Errorf("billing: load pricing: %w", errFind)
	}
	if len(rows) == 0 {
		return 0, ErrNoPricing
	}

	// Rows arrive largest unit first.
	for _, row := range rows {
		multiplier := row.DurationUnit.Seconds()
		if multiplier <= 0 || multiplier > durationSeconds {
			continue
		}
		if durationSeconds%multiplier == 0 {
			return float64(durationSeconds/multiplier) * row.CostPerUnit, nil
		}
	}

	smallest := rows[len(rows)-1]
	units := math.Ceil(float64(durationSeconds) / float64(smallest.DurationUnit.Seconds()))
	return units * smallest.CostPerUnit, nil
}

// AutomationCost prices creating one more rule of the given feature type.
// Rules within the free allowance cost nothing.
func AutomationCost(ctx context.Context, db *gorm.DB, feature models.FeatureType, existingRules int64) (float64, error) {
	if !feature.Valid() {
		return 0, fmt.Errorf("billing: invalid feature type %d", feature)
	}

	var row models.AutomationPricing
	if errFind := db.WithContext(ctx).Where("feature_type = ?", feature).First(&row).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return 0, ErrNoPricing
		}
		return 0, fmt.Errorf("billing: load automation pricing: %w", errFind)
	}

	if existingRules < int64(row.FreeRulesAllowed) {
		return 0, nil
	}
	return row.CostPerRule, nil
}

// Balance returns the user's current token balance, creating the account row
// on first read.
func Balance(ctx context.Context, db *gorm.DB, userID uint64) (float64, error) {
	account, errLoad := loadAccount(ctx, db, userID)
	if errLoad != nil {
		return 0, errLoad
	}
	return account.Balance, nil
}

// Charge debits cost tokens from the user inside a transaction, recording a
// ledger entry. It fails with InsufficientBalanceError when the balance does
// not cover the cost.
func Charge(ctx context.Context, db *gorm.DB, userID uint64, cost float64, kind, reference string) error {
	if cost < 0 {
		return fmt.Errorf("billing: negative charge %.4f", cost)
	}
	if cost == 0 {
		return nil
	}

	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		account, errLoad := loadAccount(ctx, tx, userID)
		if errLoad != nil {
			return errLoad
		}
		if account.Balance < cost {
			return &InsufficientBalanceError{Cost: cost, Balance: account.Balance}
		}

		if errDebit := tx.Model(&models.TokenAccount{}).
			Where("id = ? AND balance >= ?", account.ID, cost).
			Update("balance", gorm.Expr("balance - ?", cost)); errDebit.Error != nil {
			return errDebit.Error
		} else if errDebit.RowsAffected == 0 {
			return &InsufficientBalanceError{Cost: cost, Balance: account.Balance}
		}

		entry := models.TokenTransaction{
			UserID:    userID,
			Amount:    -cost,
			Kind:      kind,
			Reference: reference,
		}
		return tx.Create(&entry).Error
	})
}

// Credit adds tokens to the user with a ledger entry.
func Credit(ctx context.Context, db *gorm.DB, userID uint64, amount float64, kind, reference string) error {
	if amount <= 0 {
		return fmt.Errorf("billing: non-positive credit %.4f", amount)
	}
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		account, errLoad := loadAccount(ctx, tx, userID)
		if errLoad != nil {
			return errLoad
		}
		if errCredit := tx.Model(&models.TokenAccount{}).
			Where("id = ?", account.ID).
			Update("balance", gorm.Expr("balance + ?", amount)).Error; errCredit != nil {
			return errCredit
		}
		entry := models.TokenTransaction{
			UserID:    userID,
			Amount:    amount,
			Kind:      kind,
			Reference: reference,
		}
		return tx.Create(&entry).Error
	})
}

// loadAccount fetches or creates the token account row for a user.
func loadAccount(ctx context.Context, db *gorm.DB, userID uint64) (*models.TokenAccount, error) {
	var account models.TokenAccount
	errFind := db.WithContext(ctx).Where("user_id = ?", userID).First(&account).Error
	if errFind == nil {
		return &account, nil
	}
	if !errors.Is(errFind, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("billing: load account: %w", errFind)
	}

	account = models.TokenAccount{UserID: userID}
	if errCreate := db.WithContext(ctx).Create(&account).Error; errCreate != nil {
		return nil, fmt.Errorf("billing: create account: %w", errCreate)
	}
	return &account, nil
}
