package security

import (
	"strings"

	"github.com/google/uuid"
)

// NewInviteToken returns an opaque token for a public invite link. UUIDs are
// stripped of dashes so the token survives Telegram deep-link payload rules.
func NewInviteToken() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}
