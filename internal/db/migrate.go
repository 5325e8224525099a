package db

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/visorry/flash-invite-sub001/internal/models"
)

// Migrate applies the schema and seeds rows that the platform assumes exist:
// one payment-gateway row per supported provider and one automation-pricing
// row per feature type.
func Migrate(conn *gorm.DB) error {
	if conn == nil {
		return fmt.Errorf("db: nil connection")
	}

	if errMigrate := conn.AutoMigrate(
		&models.Admin{},
		&models.User{},
		&models.Setting{},
		&models.Bot{},
		&models.TelegramEntity{},
		&models.Subscriber{},
		&models.Plan{},
		&models.TokenBundle{},
		&models.TokenPricing{},
		&models.AutomationPricing{},
		&models.PaymentGateway{},
		&models.ForwardRule{},
		&models.Broadcast{},
		&models.AutoDropRule{},
		&models.Invite{},
		&models.Member{},
		&models.PromoterConfig{},
		&models.TokenAccount{},
		&models.TokenTransaction{},
	); errMigrate != nil {
		return fmt.Errorf("db: migrate: %w", errMigrate)
	}

	if errSeed := seedPaymentGateways(conn); errSeed != nil {
		return errSeed
	}
	return seedAutomationPricing(conn)
}

// seedPaymentGateways ensures a row exists for every supported gateway.
func seedPaymentGateways(conn *gorm.DB) error {
	seeds := []models.PaymentGateway{
		{Gateway: models.GatewayCashfree, DisplayName: "Cashfree"},
		{Gateway: models.GatewayPhonePe, DisplayName: "PhonePe"},
	}
	for _, seed := range seeds {
		var count int64
		if errCount := conn.Model(&models.PaymentGateway{}).
			Where("gateway = ?", seed.Gateway).
			Count(&count).Error; errCount != nil {
			return fmt.Errorf("db: seed gateways: %w", errCount)
		}
		if count > 0 {
			continue
		}
		if errCreate := conn.Create(&seed).Error; errCreate != nil {
			return fmt.Errorf("db: seed gateway %s: %w", seed.Gateway, errCreate)
		}
	}
	return nil
}

// seedAutomationPricing ensures a zero-cost row exists per feature type so
// pricing lookups never come up empty.
func seedAutomationPricing(conn *gorm.DB) error {
	for _, feature := range []models.FeatureType{models.FeatureAutoApproval, models.FeatureForwardRule} {
		var count int64
		if errCount := conn.Model(&models.AutomationPricing{}).
			Where("feature_type = ?", feature).
			Count(&count).Error; errCount != nil {
			return fmt.Errorf("db: seed automation pricing: %w", errCount)
		}
		if count > 0 {
			continue
		}
		row := models.AutomationPricing{FeatureType: feature}
		if errCreate := conn.Create(&row).Error; errCreate != nil {
			return fmt.Errorf("db: seed automation pricing %d: %w", feature, errCreate)
		}
	}
	return nil
}
