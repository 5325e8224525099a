package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/visorry/flash-invite-sub001/internal/models"
)

// GatewayHandler manages payment gateway configuration. Gateways are seeded
// by migration; this surface updates, toggles and promotes them.
type GatewayHandler struct {
	db *gorm.DB // Database handle for payment gateways.
}

// NewGatewayHandler constructs a gateway handler.
func NewGatewayHandler(db *gorm.DB) *GatewayHandler {
	return &GatewayHandler{db: db}
}

// List returns all configured gateways.
func (h *GatewayHandler) List(c *gin.Context) {
	var rows []models.PaymentGateway
	if errFind := h.db.WithContext(c.Request.Context()).
		Order("gateway ASC").
		Find(&rows).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list gateways failed"})
		return
	}
	out := make([]gin.H, 0, len(rows))
	for i := range rows {
		out = append(out, h.formatGateway(&rows[i]))
	}
	c.JSON(http.StatusOK, gin.H{"payment_gateways": out})
}

// updateGatewayRequest captures optional gateway changes. Credentials are
// stored verbatim as provider-specific JSON.
type updateGatewayRequest struct {
	DisplayName *string         `json:"display_name"` // Optional UI label.
	Credentials json.RawMessage `json:"credentials"`  // Optional provider credentials.
}

// Update applies display and credential changes to a gateway.
func (h *GatewayHandler) Update(c *gin.Context) {
	id, errParse := strconv.ParseUint(strings.TrimSpace(c.Param("id")), 10, 64)
	if errParse != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	var body updateGatewayRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	updates := map[string]any{"updated_at": time.Now().UTC()}
	if body.DisplayName != nil {
		name := strings.TrimSpace(*body.DisplayName)
		if name == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "display_name cannot be empty"})
			return
		}
		updates["display_name"] = name
	}
	if len(body.Credentials) > 0 {
		if !json.Valid(body.Credentials) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "credentials must be valid json"})
			return
		}
		updates["credentials"] = datatypes.JSON(body.Credentials)
	}

	res := h.db.WithContext(c.Request.Context()).Model(&models.PaymentGateway{}).
		Where("id = ?", id).
		Updates(updates)
	if res.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update failed"})
		return
	}
	if res.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// Toggle flips a gateway's active state. Deactivating the default gateway
// also drops its default flag so checkout never preselects a dead gateway.
func (h *GatewayHandler) Toggle(c *gin.Context) {
	id, errParse := strconv.ParseUint(strings.TrimSpace(c.Param("id")), 10, 64)
	if errParse != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	errTx := h.db.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		var gateway models.PaymentGateway
		if errFind := tx.First(&gateway, id).Error; errFind != nil {
			return errFind
		}
		now := time.Now().UTC()
		updates := map[string]any{
			"is_active":  !gateway.IsActive,
			"updated_at": now,
		}
		if gateway.IsActive && gateway.IsDefault {
			updates["is_default"] = false
		}
		return tx.Model(&models.PaymentGateway{}).Where("id = ?", id).Updates(updates).Error
	})
	if errTx != nil {
		if errors.Is(errTx, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// SetDefault promotes a gateway to the checkout default. Only an active,
// non-default gateway qualifies; any previous default is cleared in the same
// transaction.
func (h *GatewayHandler) SetDefault(c *gin.Context) {
	id, errParse := strconv.ParseUint(strings.TrimSpace(c.Param("id")), 10, 64)
	if errParse != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	errTx := h.db.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		var gateway models.PaymentGateway
		if errFind := tx.First(&gateway, id).Error; errFind != nil {
			return errFind
		}
		if !gateway.IsActive {
			return errGatewayInactive
		}
		if gateway.IsDefault {
			return errGatewayAlreadyDefault
		}
		now := time.Now().UTC()
		if errClear := tx.Model(&models.PaymentGateway{}).
			Where("is_default = ?", true).
			Updates(map[string]any{"is_default": false, "updated_at": now}).Error; errClear != nil {
			return errClear
		}
		return tx.Model(&models.PaymentGateway{}).
			Where("id = ?", id).
			Updates(map[string]any{"is_default": true, "updated_at": now}).Error
	})
	switch {
	case errTx == nil:
		c.JSON(http.StatusOK, gin.H{"ok": true})
	case errors.Is(errTx, gorm.ErrRecordNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.Is(errTx, errGatewayInactive):
		c.JSON(http.StatusConflict, gin.H{"error": "gateway is not active"})
	case errors.Is(errTx, errGatewayAlreadyDefault):
		c.JSON(http.StatusConflict, gin.H{"error": "gateway is already the default"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update failed"})
	}
}

var (
	errGatewayInactive       = errors.New("gateway inactive")
	errGatewayAlreadyDefault = errors.New("gateway already default")
)

// formatGateway converts a gateway into a response payload. Credentials are
// reported only as a configured flag.
func (h *GatewayHandler) formatGateway(gateway *models.PaymentGateway) gin.H {
	configured := len(gateway.Credentials) > 0 && string(gateway.Credentials) != "{}"
	return gin.H{
		"id":                     gateway.ID,
		"gateway":                gateway.Gateway,
		"display_name":           gateway.DisplayName,
		"is_active":              gateway.IsActive,
		"is_default":             gateway.IsDefault,
		"credentials_configured": configured,
		"created_at":             gateway.CreatedAt,
		"updated_at":             gateway.UpdatedAt,
	}
}
