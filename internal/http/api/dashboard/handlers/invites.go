package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/visorry/flash-invite-sub001/internal/billing"
	"github.com/visorry/flash-invite-sub001/internal/cache"
	apihttp "github.com/visorry/flash-invite-sub001/internal/http"
	"github.com/visorry/flash-invite-sub001/internal/models"
	"github.com/visorry/flash-invite-sub001/internal/security"
)

// InviteHandler sells expiring invite links for entities.
type InviteHandler struct {
	db    *gorm.DB     // Database handle for invites.
	cache *cache.Cache // Balance cache, invalidated on charge.
}

// NewInviteHandler constructs an invite handler.
func NewInviteHandler(db *gorm.DB, cacheClient *cache.Cache) *InviteHandler {
	return &InviteHandler{db: db, cache: cacheClient}
}

// createInviteRequest captures the payload for purchasing an invite.
type createInviteRequest struct {
	EntityID      uint64 `json:"entity_id"`      // Target entity, required.
	DurationValue int    `json:"duration_value"` // Duration value, required, positive.
	DurationUnit  int    `json:"duration_unit"`  // Duration unit, 0-4.
	MemberLimit   int    `json:"member_limit"`   // Joins allowed, defaults to 1.
}

// Create runs the duration, cost and balance pipeline, charges the user and
// issues the invite. Validation happens strictly before any charge.
func (h *InviteHandler) Create(c *gin.Context) {
	userID := apihttp.UserID(c)
	var body createInviteRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if body.EntityID == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "entity_id is required"})
		return
	}
	unit := models.DurationUnit(body.DurationUnit)
	if !unit.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "duration_unit must be 0 (minute) through 4 (year)"})
		return
	}
	seconds, errSeconds := billing.DurationSeconds(body.DurationValue, unit)
	if errSeconds != nil {
		if errors.Is(errSeconds, billing.ErrDurationTooLong) {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "duration exceeds the two year maximum"})
			return
		}
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "duration_value must be positive"})
		return
	}
	memberLimit := body.MemberLimit
	if memberLimit == 0 {
		memberLimit = 1
	}
	if memberLimit < 1 {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "member_limit must be at least 1"})
		return
	}

	ctx := c.Request.Context()
	var entity models.TelegramEntity
	if errFind := h.db.WithContext(ctx).
		Where("id = ? AND owner_id = ?", body.EntityID, userID).
		First(&entity).Error; errFind != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "entity not found"})
		return
	}

	cost, errCost := billing.InviteCost(ctx, h.db, seconds)
	if errCost != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "invite pricing is not configured"})
		return
	}

	now := time.Now().UTC()
	invite := models.Invite{
		OwnerID:         userID,
		EntityID:        body.EntityID,
		Token:           security.NewInviteToken(),
		DurationValue:   body.DurationValue,
		DurationUnit:    unit,
		DurationSeconds: seconds,
		MemberLimit:     memberLimit,
		Cost:            cost,
		ExpiresAt:       now.Add(time.Duration(seconds) * time.Second),
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	errTx := h.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if errCreate := tx.Create(&invite).Error; errCreate != nil {
			return errCreate
		}
		if cost > 0 {
			return billing.Charge(ctx, tx, userID, cost, models.TokenTxInvite,
				"invite:"+strconv.FormatUint(invite.ID, 10))
		}
		return nil
	})
	if errTx != nil {
		var insufficient *billing.InsufficientBalanceError
		if errors.As(errTx, &insufficient) {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": insufficient.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create invite failed"})
		return
	}
	h.cache.Invalidate(ctx, cache.BalanceKey(userID))
	c.JSON(http.StatusCreated, invite)
}

// List returns the user's invites, newest first. expired=true narrows to
// lapsed links.
func (h *InviteHandler) List(c *gin.Context) {
	userID := apihttp.UserID(c)
	q := h.db.WithContext(c.Request.Context()).Model(&models.Invite{}).
		Where("owner_id = ?", userID)
	switch strings.TrimSpace(c.Query("expired")) {
	case "true", "1":
		q = q.Where("expires_at < ?", time.Now().UTC())
	case "false", "0":
		q = q.Where("expires_at >= ?", time.Now().UTC())
	}
	var rows []models.Invite
	if errFind := q.Order("created_at DESC").Find(&rows).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list invites failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"invites": rows})
}
