package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/visorry/flash-invite-sub001/internal/billing"
	"github.com/visorry/flash-invite-sub001/internal/cache"
	apihttp "github.com/visorry/flash-invite-sub001/internal/http"
	"github.com/visorry/flash-invite-sub001/internal/models"
)

// TokenHandler serves token balance and cost estimation endpoints.
type TokenHandler struct {
	db    *gorm.DB     // Database handle for token accounts.
	cache *cache.Cache // Short-lived balance cache.
}

// NewTokenHandler constructs a token handler.
func NewTokenHandler(db *gorm.DB, cacheClient *cache.Cache) *TokenHandler {
	return &TokenHandler{db: db, cache: cacheClient}
}

// Balance returns the user's current token balance.
func (h *TokenHandler) Balance(c *gin.Context) {
	userID := apihttp.UserID(c)
	ctx := c.Request.Context()

	var balance float64
	if h.cache.GetJSON(ctx, cache.BalanceKey(userID), &balance) {
		c.JSON(http.StatusOK, gin.H{"balance": balance})
		return
	}
	balance, errBalance := billing.Balance(ctx, h.db, userID)
	if errBalance != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	h.cache.SetJSON(ctx, cache.BalanceKey(userID), balance, cache.BalanceTTL)
	c.JSON(http.StatusOK, gin.H{"balance": balance})
}

// calculateCostRequest captures a duration for cost estimation. Either a
// precomputed seconds figure or a value/unit pair is accepted.
type calculateCostRequest struct {
	DurationSeconds *int64 `json:"duration_seconds"` // Precomputed duration.
	DurationValue   *int   `json:"duration_value"`   // Duration value.
	DurationUnit    *int   `json:"duration_unit"`    // Duration unit, 0-4.
}

// CalculateCost estimates the invite cost for a duration without charging.
func (h *TokenHandler) CalculateCost(c *gin.Context) {
	var body calculateCostRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	var seconds int64
	switch {
	case body.DurationSeconds != nil:
		seconds = *body.DurationSeconds
		if seconds <= 0 {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "duration_seconds must be positive"})
			return
		}
		if seconds > models.MaxInviteDurationSeconds {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "duration exceeds the two year maximum"})
			return
		}
	case body.DurationValue != nil && body.DurationUnit != nil:
		unit := models.DurationUnit(*body.DurationUnit)
		if !unit.Valid() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "duration_unit must be 0 (minute) through 4 (year)"})
			return
		}
		var errSeconds error
		seconds, errSeconds = billing.DurationSeconds(*body.DurationValue, unit)
		if errSeconds != nil {
			if errors.Is(errSeconds, billing.ErrDurationTooLong) {
				c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "duration exceeds the two year maximum"})
				return
			}
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "duration_value must be positive"})
			return
		}
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "duration_seconds or duration_value with duration_unit is required"})
		return
	}

	cost, errCost := billing.InviteCost(c.Request.Context(), h.db, seconds)
	if errCost != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "invite pricing is not configured"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"cost": cost, "duration_seconds": seconds})
}
