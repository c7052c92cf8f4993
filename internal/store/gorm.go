package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ahmetcoskunkizilkaya/watchlist-backend/internal/models"
	"gorm.io/gorm"
)

type GormUserStore struct {
	db *gorm.DB
}

func NewGormUserStore(db *gorm.DB) *GormUserStore {
	return &GormUserStore{db: db}
}

func (s *GormUserStore) Create(ctx context.Context, email, passwordHash string, role models.Role, verificationToken string) (*models.User, error) {
	if !role.Valid() {
		return nil, fmt.Errorf("invalid role %q", role)
	}

	var count int64
	if err := s.db.WithContext(ctx).Model(&models.User{}).Where("email = ?", email).Count(&count).Error; err != nil {
		return nil, fmt.Errorf("failed to check existing user: %w", err)
	}
	if count > 0 {
		return nil, ErrAlreadyExists
	}

	user := models.User{
		Email:        email,
		PasswordHash: passwordHash,
		Role:         role,
	}
	if verificationToken != "" {
		user.EmailVerificationToken = &verificationToken
	}

	if err := s.db.WithContext(ctx).Create(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrAlreadyExists
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return &user, nil
}

func (s *GormUserStore) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.first(ctx, "email = ?", email)
}

func (s *GormUserStore) FindByID(ctx context.Context, id uint) (*models.User, error) {
	return s.first(ctx, "id = ?", id)
}

func (s *GormUserStore) FindByVerificationToken(ctx context.Context, token string) (*models.User, error) {
	if token == "" {
		return nil, ErrNotFound
	}
	return s.first(ctx, "email_verification_token = ?", token)
}

func (s *GormUserStore) MarkVerified(ctx context.Context, id uint) error {
	result := s.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ? AND is_email_verified = ?", id, false).
		Updates(map[string]interface{}{
			"is_email_verified":        true,
			"email_verification_token": nil,
		})
	return rowsOrNotFound(result, "mark user verified")
}

func (s *GormUserStore) UpdatePasswordHash(ctx context.Context, id uint, passwordHash string) error {
	result := s.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", id).
		Update("password_hash", passwordHash)
	return rowsOrNotFound(result, "update password hash")
}

func (s *GormUserStore) SetTwoFactor(ctx context.Context, id uint, code string, expiry time.Time) error {
	result := s.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"two_factor_code":   code,
			"two_factor_expiry": expiry.UTC(),
		})
	return rowsOrNotFound(result, "store two-factor code")
}

func (s *GormUserStore) ClearTwoFactor(ctx context.Context, id uint, code string) error {
	result := s.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ? AND two_factor_code = ?", id, code).
		Updates(map[string]interface{}{
			"two_factor_code":   nil,
			"two_factor_expiry": nil,
		})
	return rowsOrNotFound(result, "clear two-factor code")
}

func (s *GormUserStore) first(ctx context.Context, query string, arg interface{}) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).Where(query, arg).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	return &user, nil
}

func rowsOrNotFound(result *gorm.DB, action string) error {
	if result.Error != nil {
		return fmt.Errorf("failed to %s: %w", action, result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
