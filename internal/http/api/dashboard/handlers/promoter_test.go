package handlers

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/visorry/flash-invite-sub001/internal/models"
)

func TestCreatePromoterRequiresLinkPlaceholder(t *testing.T) {
	db := setupDashboardDB(t)
	botID, vaultID, marketingID := seedFleet(t, db)

	router := authedRouter()
	handler := NewPromoterHandler(db)
	router.POST("/promoter", handler.Create)

	body := fmt.Sprintf(`{"bot_id":%d,"vault_entity_id":%d,"marketing_entity_id":%d,"cta_template":"tap here"}`,
		botID, vaultID, marketingID)
	w := performJSON(t, router, http.MethodPost, "/promoter", body)
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 without {link}, got %d: %s", w.Code, w.Body.String())
	}

	body = fmt.Sprintf(`{"bot_id":%d,"vault_entity_id":%d,"marketing_entity_id":%d,"cta_template":"unlock: {link}"}`,
		botID, vaultID, marketingID)
	if w := performJSON(t, router, http.MethodPost, "/promoter", body); w.Code != http.StatusCreated {
		t.Fatalf("expected 201 with {link}, got %d: %s", w.Code, w.Body.String())
	}
}

func TestCreatePromoterRejectsSameVaultAndMarketing(t *testing.T) {
	db := setupDashboardDB(t)
	botID, vaultID, _ := seedFleet(t, db)

	router := authedRouter()
	handler := NewPromoterHandler(db)
	router.POST("/promoter", handler.Create)

	body := fmt.Sprintf(`{"bot_id":%d,"vault_entity_id":%d,"marketing_entity_id":%d,"cta_template":"get it: {link}"}`,
		botID, vaultID, vaultID)
	w := performJSON(t, router, http.MethodPost, "/promoter", body)
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d: %s", w.Code, w.Body.String())
	}
}

func TestCreatePromoterOnePerBot(t *testing.T) {
	db := setupDashboardDB(t)
	botID, vaultID, marketingID := seedFleet(t, db)
	existing := models.PromoterConfig{
		OwnerID: testUserID, BotID: botID,
		VaultEntityID: vaultID, MarketingEntityID: marketingID,
		CTATemplate: "join: {link}", TokenExpiryDays: 1,
	}
	if errCreate := db.Create(&existing).Error; errCreate != nil {
		t.Fatalf("create config: %v", errCreate)
	}

	router := authedRouter()
	handler := NewPromoterHandler(db)
	router.POST("/promoter", handler.Create)

	body := fmt.Sprintf(`{"bot_id":%d,"vault_entity_id":%d,"marketing_entity_id":%d,"cta_template":"get it: {link}"}`,
		botID, vaultID, marketingID)
	w := performJSON(t, router, http.MethodPost, "/promoter", body)
	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409 for second config, got %d: %s", w.Code, w.Body.String())
	}
}

func TestGetPromoterConfigScopedToOwner(t *testing.T) {
	db := setupDashboardDB(t)
	botID, vaultID, marketingID := seedFleet(t, db)
	cfg := models.PromoterConfig{
		OwnerID: testUserID, BotID: botID,
		VaultEntityID: vaultID, MarketingEntityID: marketingID,
		CTATemplate: "join: {link}", TokenExpiryDays: 1,
	}
	if errCreate := db.Create(&cfg).Error; errCreate != nil {
		t.Fatalf("create config: %v", errCreate)
	}
	other := models.PromoterConfig{
		OwnerID: testUserID + 1, BotID: botID,
		VaultEntityID: vaultID, MarketingEntityID: marketingID,
		CTATemplate: "join: {link}", TokenExpiryDays: 1,
	}
	if errCreate := db.Create(&other).Error; errCreate != nil {
		t.Fatalf("create other config: %v", errCreate)
	}

	router := authedRouter()
	handler := NewPromoterHandler(db)
	router.GET("/promoter/:id", handler.Get)

	w := performJSON(t, router, http.MethodGet, fmt.Sprintf("/promoter/%d", cfg.ID), "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	w = performJSON(t, router, http.MethodGet, fmt.Sprintf("/promoter/%d", other.ID), "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for another owner's config, got %d: %s", w.Code, w.Body.String())
	}
}

func TestUpdatePromoterKeepsBotImmutable(t *testing.T) {
	db := setupDashboardDB(t)
	botID, vaultID, marketingID := seedFleet(t, db)
	cfg := models.PromoterConfig{
		OwnerID: testUserID, BotID: botID,
		VaultEntityID: vaultID, MarketingEntityID: marketingID,
		CTATemplate: "join: {link}", TokenExpiryDays: 1,
	}
	if errCreate := db.Create(&cfg).Error; errCreate != nil {
		t.Fatalf("create config: %v", errCreate)
	}

	router := authedRouter()
	handler := NewPromoterHandler(db)
	router.PUT("/promoter/:id", handler.Update)

	body := fmt.Sprintf(`{"bot_id":%d}`, botID+1)
	w := performJSON(t, router, http.MethodPut, fmt.Sprintf("/promoter/%d", cfg.ID), body)
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d: %s", w.Code, w.Body.String())
	}
}
