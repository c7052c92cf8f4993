// Package store persists user records and the two derived secrets of the
// auth flow: the email-verification token and the pending two-factor code.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/ahmetcoskunkizilkaya/watchlist-backend/internal/models"
)

var (
	ErrAlreadyExists = errors.New("user already exists")
	ErrNotFound      = errors.New("user not found")
)

// UserStore is the credential store. Every mutation is a single-row atomic
// update; no method spans more than one user.
type UserStore interface {
	Create(ctx context.Context, email, passwordHash string, role models.Role, verificationToken string) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByID(ctx context.Context, id uint) (*models.User, error)
	FindByVerificationToken(ctx context.Context, token string) (*models.User, error)

	// MarkVerified sets the verified flag and clears the token. It returns
	// ErrNotFound if the user is missing or already verified.
	MarkVerified(ctx context.Context, id uint) error

	// UpdatePasswordHash replaces the stored hash, used to upgrade hashes
	// made with an older cost.
	UpdatePasswordHash(ctx context.Context, id uint, passwordHash string) error

	// SetTwoFactor overwrites any pending code unconditionally.
	SetTwoFactor(ctx context.Context, id uint, code string, expiry time.Time) error

	// ClearTwoFactor clears code and expiry only while the stored code still
	// equals code. It returns ErrNotFound when nothing was cleared.
	ClearTwoFactor(ctx context.Context, id uint, code string) error
}
