package billing

import (
	"context"
	"errors"
	"testing"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"github.com/visorry/flash-invite-sub001/internal/models"
)

func setupBillingDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, errOpen := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if errOpen != nil {
		t.Fatalf("open db: %v", errOpen)
	}
	if errMigrate := db.AutoMigrate(
		&models.TokenPricing{}, &models.AutomationPricing{},
		&models.TokenAccount{}, &models.TokenTransaction{},
	); errMigrate != nil {
		t.Fatalf("migrate: %v", errMigrate)
	}
	return db
}

func TestDurationSeconds(t *testing.T) {
	cases := []struct {
		value int
		unit  models.DurationUnit
		want  int64
	}{
		{1, models.DurationMinute, 60},
		{2, models.DurationDay, 172800},
		{3, models.DurationMonth, 7776000},
		{2, models.DurationYear, 63072000},
	}
	for _, tc := range cases {
		got, errConv := DurationSeconds(tc.value, tc.unit)
		if errConv != nil {
			t.Fatalf("convert %d %s: %v", tc.value, tc.unit, errConv)
		}
		if got != tc.want {
			t.Fatalf("%d %s = %d seconds, want %d", tc.value, tc.unit, got, tc.want)
		}
	}
}

func TestDurationSecondsRejectsOverCap(t *testing.T) {
	if _, errConv := DurationSeconds(3, models.DurationYear); !errors.Is(errConv, ErrDurationTooLong) {
		t.Fatalf("3 years must exceed the cap, got %v", errConv)
	}
	if _, errConv := DurationSeconds(0, models.DurationDay); !errors.Is(errConv, ErrInvalidDuration) {
		t.Fatalf("zero value must be rejected, got %v", errConv)
	}
	if _, errConv := DurationSeconds(-4, models.DurationHour); !errors.Is(errConv, ErrInvalidDuration) {
		t.Fatalf("negative value must be rejected, got %v", errConv)
	}
}

func TestInviteCostUsesLargestEvenUnit(t *testing.T) {
	db := setupBillingDB(t)
	ctx := context.Background()
	seed := []models.TokenPricing{
		{DurationUnit: models.DurationMinute, CostPerUnit: 0.1},
		{DurationUnit: models.DurationHour, CostPerUnit: 5},
		{DurationUnit: models.DurationDay, CostPerUnit: 100},
	}
	for i := range seed {
		if errCreate := db.Create(&seed[i]).Error; errCreate != nil {
			t.Fatalf("seed pricing: %v", errCreate)
		}
	}

	// 2 days divide evenly by the day multiplier.
	cost, errCost := InviteCost(ctx, db, 2*models.SecondsPerDay)
	if errCost != nil {
		t.Fatalf("cost: %v", errCost)
	}
	if cost != 200 {
		t.Fatalf("2 days cost = %v, want 200", cost)
	}

	// 90 minutes do not divide by hour or day; minutes price them.
	cost, errCost = InviteCost(ctx, db, 90*60)
	if errCost != nil {
		t.Fatalf("cost: %v", errCost)
	}
	if cost != 9 {
		t.Fatalf("90 minutes cost = %v, want 9", cost)
	}
}

func TestInviteCostFailsClosedWithoutPricing(t *testing.T) {
	db := setupBillingDB(t)
	if _, errCost := InviteCost(context.Background(), db, 3600); !errors.Is(errCost, ErrNoPricing) {
		t.Fatalf("empty pricing must fail closed, got %v", errCost)
	}
}

func TestAutomationCostHonorsFreeAllowance(t *testing.T) {
	db := setupBillingDB(t)
	ctx := context.Background()
	row := models.AutomationPricing{
		FeatureType:      models.FeatureForwardRule,
		CostPerRule:      25,
		FreeRulesAllowed: 2,
	}
	if errCreate := db.Create(&row).Error; errCreate != nil {
		t.Fatalf("seed: %v", errCreate)
	}

	cost, errCost := AutomationCost(ctx, db, models.FeatureForwardRule, 1)
	if errCost != nil || cost != 0 {
		t.Fatalf("second rule should be free, got %v %v", cost, errCost)
	}
	cost, errCost = AutomationCost(ctx, db, models.FeatureForwardRule, 2)
	if errCost != nil || cost != 25 {
		t.Fatalf("third rule should cost 25, got %v %v", cost, errCost)
	}
}

func TestChargeBlocksInsufficientBalance(t *testing.T) {
	db := setupBillingDB(t)
	ctx := context.Background()
	account := models.TokenAccount{UserID: 7, Balance: 30}
	if errCreate := db.Create(&account).Error; errCreate != nil {
		t.Fatalf("seed account: %v", errCreate)
	}

	errCharge := Charge(ctx, db, 7, 50, models.TokenTxInvite, "invite:1")
	var insufficient *InsufficientBalanceError
	if !errors.As(errCharge, &insufficient) {
		t.Fatalf("expected InsufficientBalanceError, got %v", errCharge)
	}
	if insufficient.Cost != 50 || insufficient.Balance != 30 {
		t.Fatalf("error must carry both numbers: %+v", insufficient)
	}

	// Balance untouched, no ledger entry written.
	var reloaded models.TokenAccount
	if errFind := db.Where("user_id = ?", 7).First(&reloaded).Error; errFind != nil {
		t.Fatalf("reload: %v", errFind)
	}
	if reloaded.Balance != 30 {
		t.Fatalf("balance changed to %v", reloaded.Balance)
	}
	var entries int64
	if errCount := db.Model(&models.TokenTransaction{}).Count(&entries).Error; errCount != nil {
		t.Fatalf("count: %v", errCount)
	}
	if entries != 0 {
		t.Fatalf("ledger entries = %d, want 0", entries)
	}
}

func TestChargeAndCreditLedger(t *testing.T) {
	db := setupBillingDB(t)
	ctx := context.Background()

	if errCredit := Credit(ctx, db, 9, 100, models.TokenTxPurchase, "bundle:3"); errCredit != nil {
		t.Fatalf("credit: %v", errCredit)
	}
	if errCharge := Charge(ctx, db, 9, 40, models.TokenTxInvite, "invite:5"); errCharge != nil {
		t.Fatalf("charge: %v", errCharge)
	}

	balance, errBalance := Balance(ctx, db, 9)
	if errBalance != nil {
		t.Fatalf("balance: %v", errBalance)
	}
	if balance != 60 {
		t.Fatalf("balance = %v, want 60", balance)
	}

	var entries []models.TokenTransaction
	if errFind := db.Order("id ASC").Find(&entries).Error; errFind != nil {
		t.Fatalf("find entries: %v", errFind)
	}
	if len(entries) != 2 || entries[0].Amount != 100 || entries[1].Amount != -40 {
		t.Fatalf("unexpected ledger: %+v", entries)
	}
}
