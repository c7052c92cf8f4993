package models

import (
	"time"
)

// Role is the closed set of authorization roles a user can hold.
type Role string

const (
	RoleUser  Role = "USER"
	RoleAdmin Role = "ADMIN"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAdmin:
		return true
	}
	return false
}

// User is the identity record. Secrets (password hash, verification token,
// two-factor code) never leave the service layer.
type User struct {
	ID                     uint       `gorm:"primaryKey;autoIncrement" json:"id"`
	Email                  string     `gorm:"not null;size:255;uniqueIndex" json:"email"`
	PasswordHash           string     `gorm:"not null" json:"-"`
	Role                   Role       `gorm:"size:20;not null;default:'USER'" json:"role"`
	IsEmailVerified        bool       `gorm:"not null;default:false" json:"is_email_verified"`
	EmailVerificationToken *string    `gorm:"size:64;uniqueIndex" json:"-"`
	TwoFactorCode          *string    `gorm:"size:6" json:"-"`
	TwoFactorExpiry        *time.Time `json:"-"`
	CreatedAt              time.Time  `json:"created_at"`
	UpdatedAt              time.Time  `json:"updated_at"`
}

// HasPendingTwoFactor reports whether a code is stored and still inside its
// validity window at now. Expiry is exclusive.
func (u *User) HasPendingTwoFactor(now time.Time) bool {
	if u.TwoFactorCode == nil || u.TwoFactorExpiry == nil {
		return false
	}
	return now.Before(*u.TwoFactorExpiry)
}
