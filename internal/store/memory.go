package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ahmetcoskunkizilkaya/watchlist-backend/internal/models"
)

// MemoryUserStore keeps users in process memory. Returned users are copies,
// so callers never alias stored state.
type MemoryUserStore struct {
	mu     sync.Mutex
	nextID uint
	users  map[uint]*models.User
	now    func() time.Time
}

func NewMemoryUserStore() *MemoryUserStore {
	return &MemoryUserStore{
		nextID: 1,
		users:  make(map[uint]*models.User),
		now:    time.Now,
	}
}

func (s *MemoryUserStore) Create(_ context.Context, email, passwordHash string, role models.Role, verificationToken string) (*models.User, error) {
	if !role.Valid() {
		return nil, fmt.Errorf("invalid role %q", role)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.users {
		if u.Email == email {
			return nil, ErrAlreadyExists
		}
	}

	now := s.now()
	user := &models.User{
		ID:           s.nextID,
		Email:        email,
		PasswordHash: passwordHash,
		Role:         role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if verificationToken != "" {
		token := verificationToken
		user.EmailVerificationToken = &token
	}
	s.users[user.ID] = user
	s.nextID++

	return clone(user), nil
}

func (s *MemoryUserStore) FindByEmail(_ context.Context, email string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Email == email {
			return clone(u), nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryUserStore) FindByID(_ context.Context, id uint) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	return clone(u), nil
}

func (s *MemoryUserStore) FindByVerificationToken(_ context.Context, token string) (*models.User, error) {
	if token == "" {
		return nil, ErrNotFound
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.EmailVerificationToken != nil && *u.EmailVerificationToken == token {
			return clone(u), nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryUserStore) MarkVerified(_ context.Context, id uint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok || u.IsEmailVerified {
		return ErrNotFound
	}
	u.IsEmailVerified = true
	u.EmailVerificationToken = nil
	u.UpdatedAt = s.now()
	return nil
}

func (s *MemoryUserStore) UpdatePasswordHash(_ context.Context, id uint, passwordHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return ErrNotFound
	}
	u.PasswordHash = passwordHash
	u.UpdatedAt = s.now()
	return nil
}

func (s *MemoryUserStore) SetTwoFactor(_ context.Context, id uint, code string, expiry time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return ErrNotFound
	}
	c, e := code, expiry
	u.TwoFactorCode = &c
	u.TwoFactorExpiry = &e
	u.UpdatedAt = s.now()
	return nil
}

func (s *MemoryUserStore) ClearTwoFactor(_ context.Context, id uint, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok || u.TwoFactorCode == nil || *u.TwoFactorCode != code {
		return ErrNotFound
	}
	u.TwoFactorCode = nil
	u.TwoFactorExpiry = nil
	u.UpdatedAt = s.now()
	return nil
}

func clone(u *models.User) *models.User {
	c := *u
	if u.EmailVerificationToken != nil {
		t := *u.EmailVerificationToken
		c.EmailVerificationToken = &t
	}
	if u.TwoFactorCode != nil {
		code := *u.TwoFactorCode
		c.TwoFactorCode = &code
	}
	if u.TwoFactorExpiry != nil {
		e := *u.TwoFactorExpiry
		c.TwoFactorExpiry = &e
	}
	return &c
}
