package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"github.com/visorry/flash-invite-sub001/internal/models"
	"github.com/visorry/flash-invite-sub001/internal/security"
)

func setupAdminAuthDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:adminauth_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, errOpen := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if errOpen != nil {
		t.Fatalf("open db: %v", errOpen)
	}
	if errMigrate := db.AutoMigrate(&models.Admin{}); errMigrate != nil {
		t.Fatalf("migrate db: %v", errMigrate)
	}
	return db
}

func seedAdmin(t *testing.T, db *gorm.DB, totpSecret string) {
	t.Helper()
	hash, errHash := security.HashPassword("s3cret-pass")
	if errHash != nil {
		t.Fatalf("hash password: %v", errHash)
	}
	admin := models.Admin{Username: "root", Password: hash, Active: true, TOTPSecret: totpSecret}
	if errCreate := db.Create(&admin).Error; errCreate != nil {
		t.Fatalf("create admin: %v", errCreate)
	}
}

func adminLogin(t *testing.T, db *gorm.DB, body string) *httptest.ResponseRecorder {
	t.Helper()
	gin.SetMode(gin.TestMode)
	router := gin.New()
	handler := NewAuthHandler(db, "test-secret", time.Hour)
	router.POST("/login", handler.Login)
	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestAdminLoginSuccess(t *testing.T) {
	db := setupAdminAuthDB(t)
	seedAdmin(t, db, "")

	w := adminLogin(t, db, `{"username":"root","password":"s3cret-pass"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var response struct {
		Token string `json:"token"`
		Admin struct {
			Username string `json:"username"`
		} `json:"admin"`
	}
	if errDecode := json.Unmarshal(w.Body.Bytes(), &response); errDecode != nil {
		t.Fatalf("decode response: %v", errDecode)
	}
	if response.Token == "" {
		t.Fatalf("expected a token")
	}
	claims, errParse := security.ParseAdminToken("test-secret", response.Token)
	if errParse != nil {
		t.Fatalf("parse token: %v", errParse)
	}
	if claims.Username != "root" {
		t.Fatalf("expected claims for root, got %q", claims.Username)
	}
}

func TestAdminLoginRejectsBadPassword(t *testing.T) {
	db := setupAdminAuthDB(t)
	seedAdmin(t, db, "")

	w := adminLogin(t, db, `{"username":"root","password":"wrong"}`)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}

func TestAdminLoginUnknownUserSameStatus(t *testing.T) {
	db := setupAdminAuthDB(t)
	seedAdmin(t, db, "")

	w := adminLogin(t, db, `{"username":"ghost","password":"s3cret-pass"}`)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for unknown user, got %d", w.Code)
	}
}

func TestAdminLoginDemandsTOTPWhenEnrolled(t *testing.T) {
	db := setupAdminAuthDB(t)
	seedAdmin(t, db, "JBSWY3DPEHPK3PXP")

	w := adminLogin(t, db, `{"username":"root","password":"s3cret-pass"}`)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without totp, got %d", w.Code)
	}
	var response struct {
		TOTPRequired bool `json:"totp_required"`
	}
	if errDecode := json.Unmarshal(w.Body.Bytes(), &response); errDecode != nil {
		t.Fatalf("decode response: %v", errDecode)
	}
	if !response.TOTPRequired {
		t.Fatalf("expected totp_required flag")
	}

	w = adminLogin(t, db, `{"username":"root","password":"s3cret-pass","totp_code":"000000"}`)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for bogus totp, got %d", w.Code)
	}
}

func TestAdminLoginInactiveAccount(t *testing.T) {
	db := setupAdminAuthDB(t)
	hash, _ := security.HashPassword("s3cret-pass")
	admin := models.Admin{Username: "retired", Password: hash, Active: false}
	if errCreate := db.Create(&admin).Error; errCreate != nil {
		t.Fatalf("create admin: %v", errCreate)
	}

	w := adminLogin(t, db, `{"username":"retired","password":"s3cret-pass"}`)
	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", w.Code)
	}
}
