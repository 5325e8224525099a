package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/visorry/flash-invite-sub001/internal/models"
	"github.com/visorry/flash-invite-sub001/internal/security"
)

// AuthHandler serves admin authentication endpoints.
type AuthHandler struct {
	db        *gorm.DB      // Database handle for admin accounts.
	jwtSecret string        // Signing secret for admin tokens.
	jwtExpiry time.Duration // Token lifetime.
}

// NewAuthHandler constructs an admin auth handler.
func NewAuthHandler(db *gorm.DB, jwtSecret string, jwtExpiry time.Duration) *AuthHandler {
	return &AuthHandler{db: db, jwtSecret: jwtSecret, jwtExpiry: jwtExpiry}
}

// loginRequest captures admin credentials. TOTPCode is required only when the
// account has MFA enrolled.
type loginRequest struct {
	Username string `json:"username"`  // Admin login name.
	Password string `json:"password"`  // Plain password.
	TOTPCode string `json:"totp_code"` // One-time code when MFA is enabled.
}

// Login verifies credentials, enforces TOTP when enrolled and issues a JWT.
func (h *AuthHandler) Login(c *gin.Context) {
	var body loginRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	username := strings.TrimSpace(body.Username)
	if username == "" || body.Password == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "username and password are required"})
		return
	}

	var admin models.Admin
	errFind := h.db.WithContext(c.Request.Context()).
		Where("username = ?", username).
		First(&admin).Error
	if errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	if !admin.Active {
		c.JSON(http.StatusForbidden, gin.H{"error": "account disabled"})
		return
	}
	if !security.CheckPassword(admin.Password, body.Password) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}

	if admin.TOTPSecret != "" {
		code := strings.TrimSpace(body.TOTPCode)
		if code == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "totp_code required", "totp_required": true})
			return
		}
		if !security.ValidateTOTP(admin.TOTPSecret, code) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid totp code"})
			return
		}
	}

	token, errSign := security.GenerateAdminToken(h.jwtSecret, admin.ID, admin.Username, h.jwtExpiry)
	if errSign != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "sign token failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"token": token,
		"admin": gin.H{
			"id":       admin.ID,
			"username": admin.Username,
		},
	})
}
