package db

import (
	"testing"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"github.com/visorry/flash-invite-sub001/internal/models"
)

func TestMigrateSQLiteCreatesCoreTables(t *testing.T) {
	conn, errOpen := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if errOpen != nil {
		t.Fatalf("open sqlite: %v", errOpen)
	}

	if errMigrate := Migrate(conn); errMigrate != nil {
		t.Fatalf("migrate: %v", errMigrate)
	}

	for _, table := range []string{
		"bots", "telegram_entities", "subscribers", "plans", "token_bundles",
		"token_pricing", "automation_pricing", "payment_gateways",
		"forward_rules", "broadcasts", "auto_drop_rules", "invites",
		"members", "promoter_configs", "token_accounts", "token_transactions",
	} {
		if !conn.Migrator().HasTable(table) {
			t.Fatalf("missing table %s", table)
		}
	}
}

func TestMigrateSeedsGatewayAndPricingRows(t *testing.T) {
	conn, errOpen := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if errOpen != nil {
		t.Fatalf("open sqlite: %v", errOpen)
	}
	if errMigrate := Migrate(conn); errMigrate != nil {
		t.Fatalf("migrate: %v", errMigrate)
	}

	var gateways int64
	if errCount := conn.Model(&models.PaymentGateway{}).Count(&gateways).Error; errCount != nil {
		t.Fatalf("count gateways: %v", errCount)
	}
	if gateways != 2 {
		t.Fatalf("gateway rows = %d, want 2", gateways)
	}

	var pricing int64
	if errCount := conn.Model(&models.AutomationPricing{}).Count(&pricing).Error; errCount != nil {
		t.Fatalf("count automation pricing: %v", errCount)
	}
	if pricing != 2 {
		t.Fatalf("automation pricing rows = %d, want 2", pricing)
	}

	// Re-running the migration must not duplicate seed rows.
	if errMigrate := Migrate(conn); errMigrate != nil {
		t.Fatalf("re-migrate: %v", errMigrate)
	}
	if errCount := conn.Model(&models.PaymentGateway{}).Count(&gateways).Error; errCount != nil {
		t.Fatalf("recount gateways: %v", errCount)
	}
	if gateways != 2 {
		t.Fatalf("gateway rows after re-migrate = %d, want 2", gateways)
	}
}
