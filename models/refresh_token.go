package models

import "time"

// RefreshTokenStatus is the rotation state of a refresh token.
//
//	issued ──redeem──▶ redeemed
//	   │                  │ presented again
//	   ├──past expiry──▶ expired
//	   └──────────────▶ revoked ◀── whole family
type RefreshTokenStatus string

const (
	RefreshIssued   RefreshTokenStatus = "issued"
	RefreshRedeemed RefreshTokenStatus = "redeemed"
	RefreshExpired  RefreshTokenStatus = "expired"
	RefreshRevoked  RefreshTokenStatus = "revoked"
)

// RefreshToken is one link in a rotation family. Only the keyed hash of the
// opaque token is stored.
type RefreshToken struct {
	ID         string             `json:"id"`
	FamilyID   string             `json:"family_id"`
	UserID     string             `json:"user_id"`
	TokenHash  string             `json:"-"`
	Status     RefreshTokenStatus `json:"status"`
	ExpiresAt  time.Time          `json:"expires_at"`
	RedeemedAt *time.Time         `json:"redeemed_at"`
	CreatedAt  time.Time          `json:"created_at"`
}

// Expired reports whether the token is past its expiry at now.
func (t *RefreshToken) Expired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}
