package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"testing"

	"github.com/visorry/flash-invite-sub001/internal/models"
)

func TestCreateInviteFailsClosedWithoutPricing(t *testing.T) {
	db := setupDashboardDB(t)
	_, sourceID, _ := seedFleet(t, db)

	router := authedRouter()
	handler := NewInviteHandler(db, nil)
	router.POST("/invites", handler.Create)

	body := fmt.Sprintf(`{"entity_id":%d,"duration_value":1,"duration_unit":2}`, sourceID)
	w := performJSON(t, router, http.MethodPost, "/invites", body)
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 without pricing, got %d: %s", w.Code, w.Body.String())
	}

	var count int64
	if errCount := db.Model(&models.Invite{}).Count(&count).Error; errCount != nil {
		t.Fatalf("count invites: %v", errCount)
	}
	if count != 0 {
		t.Fatalf("expected no invite without a priced cost, found %d", count)
	}
}

func TestCreateInviteRejectsDurationBeyondTwoYears(t *testing.T) {
	db := setupDashboardDB(t)
	_, sourceID, _ := seedFleet(t, db)
	if errSeed := db.Create(&models.TokenPricing{DurationUnit: models.DurationDay, CostPerUnit: 1}).Error; errSeed != nil {
		t.Fatalf("seed pricing: %v", errSeed)
	}

	router := authedRouter()
	handler := NewInviteHandler(db, nil)
	router.POST("/invites", handler.Create)

	body := fmt.Sprintf(`{"entity_id":%d,"duration_value":3,"duration_unit":4}`, sourceID)
	w := performJSON(t, router, http.MethodPost, "/invites", body)
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 over the cap, got %d: %s", w.Code, w.Body.String())
	}
}

func TestCreateInviteChargesAndRecordsLedger(t *testing.T) {
	db := setupDashboardDB(t)
	_, sourceID, _ := seedFleet(t, db)
	if errSeed := db.Create(&models.TokenPricing{DurationUnit: models.DurationDay, CostPerUnit: 2}).Error; errSeed != nil {
		t.Fatalf("seed pricing: %v", errSeed)
	}
	if errSeed := db.Create(&models.TokenAccount{UserID: testUserID, Balance: 10}).Error; errSeed != nil {
		t.Fatalf("seed account: %v", errSeed)
	}

	router := authedRouter()
	handler := NewInviteHandler(db, nil)
	router.POST("/invites", handler.Create)

	body := fmt.Sprintf(`{"entity_id":%d,"duration_value":3,"duration_unit":2,"member_limit":5}`, sourceID)
	w := performJSON(t, router, http.MethodPost, "/invites", body)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}

	var invite models.Invite
	if errDecode := json.Unmarshal(w.Body.Bytes(), &invite); errDecode != nil {
		t.Fatalf("decode invite: %v", errDecode)
	}
	if invite.Token == "" {
		t.Fatalf("expected a generated token")
	}
	if invite.DurationSeconds != 3*models.SecondsPerDay {
		t.Fatalf("expected %d seconds, got %d", 3*models.SecondsPerDay, invite.DurationSeconds)
	}
	if invite.Cost != 6 {
		t.Fatalf("expected cost 6, got %.2f", invite.Cost)
	}

	var account models.TokenAccount
	if errFind := db.Where("user_id = ?", testUserID).First(&account).Error; errFind != nil {
		t.Fatalf("load account: %v", errFind)
	}
	if account.Balance != 4 {
		t.Fatalf("expected balance 4 after charge, got %.2f", account.Balance)
	}
}

func TestCreateInviteInsufficientBalance(t *testing.T) {
	db := setupDashboardDB(t)
	_, sourceID, _ := seedFleet(t, db)
	if errSeed := db.Create(&models.TokenPricing{DurationUnit: models.DurationDay, CostPerUnit: 2}).Error; errSeed != nil {
		t.Fatalf("seed pricing: %v", errSeed)
	}
	if errSeed := db.Create(&models.TokenAccount{UserID: testUserID, Balance: 1}).Error; errSeed != nil {
		t.Fatalf("seed account: %v", errSeed)
	}

	router := authedRouter()
	handler := NewInviteHandler(db, nil)
	router.POST("/invites", handler.Create)

	body := fmt.Sprintf(`{"entity_id":%d,"duration_value":3,"duration_unit":2}`, sourceID)
	w := performJSON(t, router, http.MethodPost, "/invites", body)
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d: %s", w.Code, w.Body.String())
	}

	var response struct {
		Error string `json:"error"`
	}
	if errDecode := json.Unmarshal(w.Body.Bytes(), &response); errDecode != nil {
		t.Fatalf("decode response: %v", errDecode)
	}
	if response.Error != "billing: cost 6.00 exceeds balance 1.00" {
		t.Fatalf("expected cost/balance detail, got %q", response.Error)
	}

	var count int64
	if errCount := db.Model(&models.Invite{}).Count(&count).Error; errCount != nil {
		t.Fatalf("count invites: %v", errCount)
	}
	if count != 0 {
		t.Fatalf("expected rollback to remove the invite, found %d", count)
	}
}
