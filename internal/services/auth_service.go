package services

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/ahmetcoskunkizilkaya/watchlist-backend/internal/config"
	"github.com/ahmetcoskunkizilkaya/watchlist-backend/internal/dto"
	"github.com/ahmetcoskunkizilkaya/watchlist-backend/internal/hasher"
	"github.com/ahmetcoskunkizilkaya/watchlist-backend/internal/models"
	"github.com/ahmetcoskunkizilkaya/watchlist-backend/internal/notify"
	"github.com/ahmetcoskunkizilkaya/watchlist-backend/internal/store"
	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidInput             = errors.New("email and password are required")
	ErrPasswordTooLong          = errors.New("password must be at most 72 bytes")
	ErrEmailTaken               = errors.New("user already exists")
	ErrInvalidVerificationToken = errors.New("invalid verification token")
	ErrInvalidCredentials       = errors.New("invalid credentials")
	ErrInvalidTwoFactorCode     = errors.New("invalid or expired 2fa code")
	ErrUserNotFound             = errors.New("user not found")
)

const (
	msgRegistered    = "Registration successful. Please check your email to verify your account."
	msgEmailVerified = "Email verified successfully. You can now log in."
	msgCodeSent      = "Login successful. Please check your email for the 2FA code."
	msgAuthenticated = "Authentication successful"

	verificationTokenBytes = 32
	twoFactorMin           = 100000
	twoFactorSpan          = 900000
)

// AuthService drives registration, email verification and the two-step
// login. It keeps no per-user state of its own; everything lives in the store.
type AuthService struct {
	users    store.UserStore
	hasher   hasher.Hasher
	notifier notify.Notifier
	cfg      *config.Config
	logger   *slog.Logger
	now      func() time.Time
	random   io.Reader

	dummyOnce sync.Once
	dummyHash string
}

type Option func(*AuthService)

// WithClock replaces time.Now, used for expiry checks and token timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *AuthService) { s.now = now }
}

// WithRandom replaces crypto/rand as the source for tokens and codes.
func WithRandom(r io.Reader) Option {
	return func(s *AuthService) { s.random = r }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *AuthService) { s.logger = l }
}

func NewAuthService(users store.UserStore, h hasher.Hasher, n notify.Notifier, cfg *config.Config, opts ...Option) *AuthService {
	s := &AuthService{
		users:    users,
		hasher:   h,
		notifier: n,
		cfg:      cfg,
		logger:   slog.Default(),
		now:      time.Now,
		random:   rand.Reader,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *AuthService) Register(ctx context.Context, email, password string) (*dto.MessageResponse, error) {
	if email == "" || password == "" {
		return nil, ErrInvalidInput
	}

	if _, err := s.users.FindByEmail(ctx, email); err == nil {
		return nil, ErrEmailTaken
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}

	hash, err := s.hashPassword(password)
	if err != nil {
		return nil, err
	}

	token, err := s.verificationToken()
	if err != nil {
		return nil, err
	}

	user, err := s.users.Create(ctx, email, hash, models.RoleUser, token)
	if err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return nil, ErrEmailTaken
		}
		return nil, err
	}

	link := s.cfg.AppBaseURL + "/auth/verify-email?token=" + url.QueryEscape(token)
	if err := s.notifier.SendVerification(ctx, user.Email, link); err != nil {
		s.logger.ErrorContext(ctx, "failed to send verification email",
			"action", "auth.register", "user_id", user.ID, "error", err)
	}

	s.logger.InfoContext(ctx, "user registered", "action", "auth.register", "user_id", user.ID)
	return &dto.MessageResponse{Message: msgRegistered}, nil
}

func (s *AuthService) VerifyEmail(ctx context.Context, token string) (*dto.MessageResponse, error) {
	user, err := s.users.FindByVerificationToken(ctx, token)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrInvalidVerificationToken
		}
		return nil, err
	}

	if err := s.users.MarkVerified(ctx, user.ID); err != nil {
		// a concurrent request consumed the token first
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrInvalidVerificationToken
		}
		return nil, err
	}

	s.logger.InfoContext(ctx, "email verified", "action", "auth.verify_email", "user_id", user.ID)
	return &dto.MessageResponse{Message: msgEmailVerified}, nil
}

// Login is step one: it checks the password and mails a fresh code. Every
// failure returns the same error so the caller cannot tell the causes apart.
func (s *AuthService) Login(ctx context.Context, email, password string) (*dto.MessageResponse, error) {
	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("failed to look up user: %w", err)
		}
		// spend the same bcrypt work as a real comparison
		s.hasher.Verify(password, s.dummy())
		s.logger.InfoContext(ctx, "login rejected", "action", "auth.login", "reason", "unknown_email")
		return nil, ErrInvalidCredentials
	}

	passwordOK := s.hasher.Verify(password, user.PasswordHash)
	if !user.IsEmailVerified {
		s.logger.InfoContext(ctx, "login rejected", "action", "auth.login", "reason", "email_not_verified", "user_id", user.ID)
		return nil, ErrInvalidCredentials
	}
	if !passwordOK {
		s.logger.InfoContext(ctx, "login rejected", "action", "auth.login", "reason", "wrong_password", "user_id", user.ID)
		return nil, ErrInvalidCredentials
	}

	if s.hasher.NeedsRehash(user.PasswordHash) {
		s.rehash(ctx, user.ID, password)
	}

	code, err := s.twoFactorCode()
	if err != nil {
		return nil, err
	}
	expiry := s.now().Add(s.cfg.TwoFactorTTL)

	if err := s.users.SetTwoFactor(ctx, user.ID, code, expiry); err != nil {
		return nil, fmt.Errorf("failed to store 2fa code: %w", err)
	}

	if err := s.notifier.SendTwoFactorCode(ctx, user.Email, code); err != nil {
		s.logger.ErrorContext(ctx, "failed to send 2fa code",
			"action", "auth.login", "user_id", user.ID, "error", err)
	}

	return &dto.MessageResponse{Message: msgCodeSent}, nil
}

// Verify2FA is step two. A matching, unexpired code is consumed and the
// caller receives the identity assertion plus a signed access token.
func (s *AuthService) Verify2FA(ctx context.Context, email, code string) (*dto.AuthResponse, error) {
	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrInvalidTwoFactorCode
		}
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}

	now := s.now()
	if !user.HasPendingTwoFactor(now) {
		s.logger.InfoContext(ctx, "2fa rejected", "action", "auth.verify_2fa", "reason", "no_pending_code", "user_id", user.ID)
		return nil, ErrInvalidTwoFactorCode
	}
	if subtle.ConstantTimeCompare([]byte(*user.TwoFactorCode), []byte(code)) != 1 {
		s.logger.InfoContext(ctx, "2fa rejected", "action", "auth.verify_2fa", "reason", "code_mismatch", "user_id", user.ID)
		return nil, ErrInvalidTwoFactorCode
	}

	if err := s.users.ClearTwoFactor(ctx, user.ID, code); err != nil {
		// replaced by a newer login or consumed by a concurrent verify
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrInvalidTwoFactorCode
		}
		return nil, fmt.Errorf("failed to clear 2fa code: %w", err)
	}

	assertion := toUserResponse(user)
	accessToken, err := s.generateAccessToken(assertion, now)
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "user authenticated", "action", "auth.verify_2fa", "user_id", user.ID)
	return &dto.AuthResponse{
		Message:     msgAuthenticated,
		User:        assertion,
		AccessToken: accessToken,
		TokenType:   "Bearer",
		ExpiresIn:   int64(s.cfg.JWTAccessExpiry.Seconds()),
	}, nil
}

// Me reloads the caller's identity from the store.
func (s *AuthService) Me(ctx context.Context, userID uint) (*dto.UserResponse, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	resp := toUserResponse(user)
	return &resp, nil
}

// SeedAdmin creates a verified administrator unless the email is already
// registered. It reports whether an account was created.
func (s *AuthService) SeedAdmin(ctx context.Context, email, password string) (bool, error) {
	if email == "" || password == "" {
		return false, ErrInvalidInput
	}
	if _, err := s.users.FindByEmail(ctx, email); err == nil {
		return false, nil
	} else if !errors.Is(err, store.ErrNotFound) {
		return false, fmt.Errorf("failed to look up admin: %w", err)
	}

	hash, err := s.hashPassword(password)
	if err != nil {
		return false, err
	}
	token, err := s.verificationToken()
	if err != nil {
		return false, err
	}

	user, err := s.users.Create(ctx, email, hash, models.RoleAdmin, token)
	if err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return false, nil
		}
		return false, err
	}
	if err := s.users.MarkVerified(ctx, user.ID); err != nil {
		return false, fmt.Errorf("failed to verify admin: %w", err)
	}

	s.logger.InfoContext(ctx, "admin account seeded", "action", "auth.seed_admin", "user_id", user.ID)
	return true, nil
}

func (s *AuthService) hashPassword(password string) (string, error) {
	hash, err := s.hasher.Hash(password)
	if err != nil {
		if errors.Is(err, hasher.ErrPasswordTooLong) {
			return "", ErrPasswordTooLong
		}
		return "", err
	}
	return hash, nil
}

// rehash upgrades a hash made with an older cost. Failure only costs the
// upgrade; the login itself already succeeded.
func (s *AuthService) rehash(ctx context.Context, userID uint, password string) {
	hash, err := s.hasher.Hash(password)
	if err == nil {
		err = s.users.UpdatePasswordHash(ctx, userID, hash)
	}
	if err != nil {
		s.logger.WarnContext(ctx, "password rehash failed", "action", "auth.login", "user_id", userID, "error", err)
		return
	}
	s.logger.InfoContext(ctx, "password rehashed", "action", "auth.login", "user_id", userID)
}

func (s *AuthService) generateAccessToken(u dto.UserResponse, now time.Time) (string, error) {
	claims := jwt.MapClaims{
		"sub":            strconv.FormatUint(uint64(u.ID), 10),
		"email":          u.Email,
		"role":           string(u.Role),
		"email_verified": u.IsEmailVerified,
		"iat":            now.Unix(),
		"exp":            now.Add(s.cfg.JWTAccessExpiry).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.cfg.JWTSecret))
	if err != nil {
		return "", fmt.Errorf("failed to sign access token: %w", err)
	}
	return signed, nil
}

func (s *AuthService) verificationToken() (string, error) {
	raw := make([]byte, verificationTokenBytes)
	if _, err := io.ReadFull(s.random, raw); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}
	return hex.EncodeToString(raw), nil
}

// twoFactorCode draws uniformly from [100000, 999999], so the code always
// has exactly six digits.
func (s *AuthService) twoFactorCode() (string, error) {
	n, err := rand.Int(s.random, big.NewInt(twoFactorSpan))
	if err != nil {
		return "", fmt.Errorf("failed to generate 2fa code: %w", err)
	}
	return strconv.FormatInt(n.Int64()+twoFactorMin, 10), nil
}

func (s *AuthService) dummy() string {
	s.dummyOnce.Do(func() {
		raw := make([]byte, 16)
		_, _ = io.ReadFull(rand.Reader, raw)
		if h, err := s.hasher.Hash(hex.EncodeToString(raw)); err == nil {
			s.dummyHash = h
		}
	})
	return s.dummyHash
}

func toUserResponse(u *models.User) dto.UserResponse {
	return dto.UserResponse{
		ID:              u.ID,
		Email:           u.Email,
		Role:            u.Role,
		IsEmailVerified: u.IsEmailVerified,
	}
}
