package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	apihttp "github.com/visorry/flash-invite-sub001/internal/http"
	"github.com/visorry/flash-invite-sub001/internal/models"
)

// MemberHandler serves entity membership records.
type MemberHandler struct {
	db *gorm.DB // Database handle for members.
}

// NewMemberHandler constructs a member handler.
func NewMemberHandler(db *gorm.DB) *MemberHandler {
	return &MemberHandler{db: db}
}

// List returns members of the user's entities with pagination.
func (h *MemberHandler) List(c *gin.Context) {
	userID := apihttp.UserID(c)
	page, pageSize := pagination(c)

	q := h.db.WithContext(c.Request.Context()).Model(&models.Member{}).
		Joins("JOIN telegram_entities ON telegram_entities.id = members.entity_id").
		Where("telegram_entities.owner_id = ?", userID)
	if raw := strings.TrimSpace(c.Query("entity_id")); raw != "" {
		if entityID, errParse := strconv.ParseUint(raw, 10, 64); errParse == nil {
			q = q.Where("members.entity_id = ?", entityID)
		}
	}
	switch strings.TrimSpace(c.Query("active")) {
	case "true", "1":
		q = q.Where("members.removed_at IS NULL")
	case "false", "0":
		q = q.Where("members.removed_at IS NOT NULL")
	}

	var total int64
	if errCount := q.Count(&total).Error; errCount != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	var rows []models.Member
	if errFind := q.Order("members.joined_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&rows).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list members failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"members":   rows,
		"total":     total,
		"page":      page,
		"page_size": pageSize,
	})
}

// createMemberRequest captures a manual member admission.
type createMemberRequest struct {
	EntityID       uint64  `json:"entity_id"`        // Entity joined, required.
	InviteID       *uint64 `json:"invite_id"`        // Optional invite consumed.
	TelegramUserID int64   `json:"telegram_user_id"` // Telegram user, required.
	Username       string  `json:"username"`         // Optional Telegram username.
}

// Create admits a member to one of the user's entities. When an invite is
// referenced its usage counter advances and its member limit is enforced.
func (h *MemberHandler) Create(c *gin.Context) {
	userID := apihttp.UserID(c)
	var body createMemberRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if body.EntityID == 0 || body.TelegramUserID == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "entity_id and telegram_user_id are required"})
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

	now := time.Now().UTC()
	member := models.Member{
		EntityID:       body.EntityID,
		InviteID:       body.InviteID,
		TelegramUserID: body.TelegramUserID,
		Username:       strings.TrimSpace(body.Username),
		JoinedAt:       now,
	}

	errTx := h.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if body.InviteID != nil {
			var invite models.Invite
			if errFind := tx.
				Where("id = ? AND owner_id = ? AND entity_id = ?", *body.InviteID, userID, body.EntityID).
				First(&invite).Error; errFind != nil {
				return errFind
			}
			if invite.RevokedAt != nil || now.After(invite.ExpiresAt) {
				return errInviteExpired
			}
			if invite.UsedCount >= invite.MemberLimit {
				return errInviteExhausted
			}
			expiresAt := invite.ExpiresAt
			member.ExpiresAt = &expiresAt
			claim := tx.Model(&models.Invite{}).
				Where("id = ? AND used_count < member_limit", invite.ID).
				Updates(map[string]any{
					"used_count": gorm.Expr("used_count + 1"),
					"updated_at": now,
				})
			if claim.Error != nil {
				return claim.Error
			}
			if claim.RowsAffected == 0 {
				return errInviteExhausted
			}
		}
		return tx.Create(&member).Error
	})
	switch {
	case errTx == nil:
		c.JSON(http.StatusCreated, member)
	case errors.Is(errTx, gorm.ErrRecordNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "invite not found"})
	case errors.Is(errTx, errInviteExpired):
		c.JSON(http.StatusConflict, gin.H{"error": "invite is expired or revoked"})
	case errors.Is(errTx, errInviteExhausted):
		c.JSON(http.StatusConflict, gin.H{"error": "invite member limit reached"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create member failed"})
	}
}

var (
	errInviteExpired   = errors.New("invite expired")
	errInviteExhausted = errors.New("invite exhausted")
)
