package models

import "time"

// User tiers. Premium tooling is unlocked for pro and enterprise.
const (
	TierFree       = "free"
	TierPro        = "pro"
	TierEnterprise = "enterprise"
)

// User is an API identity. OSINT data itself is never tied to a user record;
// users exist only for auth and premium gating.
type User struct {
	ID           string    `json:"id" db:"id"`
	Email        string    `json:"email" db:"email"`
	PasswordHash string    `json:"-" db:"password_hash"`
	Tier         string    `json:"tier" db:"tier"`
	Credits      int       `json:"credits" db:"credits"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

// IsPremiumTier returns true for tiers that unlock premium-only tools.
func (u *User) IsPremiumTier() bool {
	return u.Tier == TierPro || u.Tier == TierEnterprise
}
