package domain

import "time"

// Account is the identity record. PasswordHash is empty for accounts that
// only ever authenticated through Google.
type Account struct {
	ID           uint       `gorm:"primaryKey" json:"id"`
	Email        string     `gorm:"uniqueIndex;size:255;not null" json:"email"`
	Name         string     `gorm:"size:255" json:"name"`
	PasswordHash string     `gorm:"size:1024" json:"-"`
	OAuthLinked  bool       `gorm:"not null;default:false" json:"oauth_linked"`
	Verified     bool       `gorm:"not null;default:false" json:"verified"`
	VerifiedAt   *time.Time `json:"verified_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// HasPassword reports whether the account can attempt password login at all.
func (a *Account) HasPassword() bool {
	return a != nil && a.PasswordHash != ""
}
