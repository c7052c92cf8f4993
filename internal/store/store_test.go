package store

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/ahmetcoskunkizilkaya/watchlist-backend/internal/models"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newGormStore(t *testing.T) UserStore {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(&models.User{}))
	return NewGormUserStore(db)
}

func newMemoryStore(t *testing.T) UserStore {
	t.Helper()
	return NewMemoryUserStore()
}

var implementations = map[string]func(t *testing.T) UserStore{
	"gorm":   newGormStore,
	"memory": newMemoryStore,
}

func forEachStore(t *testing.T, fn func(t *testing.T, s UserStore)) {
	for name, build := range implementations {
		t.Run(name, func(t *testing.T) {
			fn(t, build(t))
		})
	}
}

func TestCreate_AssignsIDAndStoresToken(t *testing.T) {
	forEachStore(t, func(t *testing.T, s UserStore) {
		ctx := context.Background()

		u, err := s.Create(ctx, "a@x.com", "hash", models.RoleUser, "tok-1")
		require.NoError(t, err)
		assert.NotZero(t, u.ID)
		assert.Equal(t, models.RoleUser, u.Role)
		assert.False(t, u.IsEmailVerified)
		require.NotNil(t, u.EmailVerificationToken)
		assert.Equal(t, "tok-1", *u.EmailVerificationToken)
		assert.Nil(t, u.TwoFactorCode)
		assert.Nil(t, u.TwoFactorExpiry)

		other, err := s.Create(ctx, "b@x.com", "hash", models.RoleAdmin, "tok-2")
		require.NoError(t, err)
		assert.NotEqual(t, u.ID, other.ID)
	})
}

func TestCreate_DuplicateEmail(t *testing.T) {
	forEachStore(t, func(t *testing.T, s UserStore) {
		ctx := context.Background()

		_, err := s.Create(ctx, "a@x.com", "first", models.RoleUser, "tok-1")
		require.NoError(t, err)

		_, err = s.Create(ctx, "a@x.com", "second", models.RoleUser, "tok-2")
		require.ErrorIs(t, err, ErrAlreadyExists)

		u, err := s.FindByEmail(ctx, "a@x.com")
		require.NoError(t, err)
		assert.Equal(t, "first", u.PasswordHash)
	})
}

func TestCreate_RejectsUnknownRole(t *testing.T) {
	forEachStore(t, func(t *testing.T, s UserStore) {
		_, err := s.Create(context.Background(), "a@x.com", "hash", models.Role("root"), "tok")
		require.Error(t, err)
	})
}

func TestFind_ExactMatchOnly(t *testing.T) {
	forEachStore(t, func(t *testing.T, s UserStore) {
		ctx := context.Background()
		created, err := s.Create(ctx, "a@x.com", "hash", models.RoleUser, "abcdef")
		require.NoError(t, err)

		_, err = s.FindByEmail(ctx, "A@x.com")
		assert.ErrorIs(t, err, ErrNotFound)
		_, err = s.FindByEmail(ctx, "a@x")
		assert.ErrorIs(t, err, ErrNotFound)

		_, err = s.FindByVerificationToken(ctx, "abc")
		assert.ErrorIs(t, err, ErrNotFound)
		_, err = s.FindByVerificationToken(ctx, "")
		assert.ErrorIs(t, err, ErrNotFound)

		byToken, err := s.FindByVerificationToken(ctx, "abcdef")
		require.NoError(t, err)
		assert.Equal(t, created.ID, byToken.ID)

		byID, err := s.FindByID(ctx, created.ID)
		require.NoError(t, err)
		assert.Equal(t, "a@x.com", byID.Email)

		_, err = s.FindByID(ctx, created.ID+100)
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestMarkVerified_IsSingleUse(t *testing.T) {
	forEachStore(t, func(t *testing.T, s UserStore) {
		ctx := context.Background()
		u, err := s.Create(ctx, "a@x.com", "hash", models.RoleUser, "tok")
		require.NoError(t, err)

		require.NoError(t, s.MarkVerified(ctx, u.ID))

		got, err := s.FindByID(ctx, u.ID)
		require.NoError(t, err)
		assert.True(t, got.IsEmailVerified)
		assert.Nil(t, got.EmailVerificationToken)

		_, err = s.FindByVerificationToken(ctx, "tok")
		assert.ErrorIs(t, err, ErrNotFound)

		assert.ErrorIs(t, s.MarkVerified(ctx, u.ID), ErrNotFound)
		assert.ErrorIs(t, s.MarkVerified(ctx, u.ID+100), ErrNotFound)
	})
}

func TestSetTwoFactor_OverwritesPreviousCode(t *testing.T) {
	forEachStore(t, func(t *testing.T, s UserStore) {
		ctx := context.Background()
		u, err := s.Create(ctx, "a@x.com", "hash", models.RoleUser, "tok")
		require.NoError(t, err)

		expiry := time.Now().Add(5 * time.Minute).Truncate(time.Second)
		require.NoError(t, s.SetTwoFactor(ctx, u.ID, "111111", expiry))
		require.NoError(t, s.SetTwoFactor(ctx, u.ID, "222222", expiry.Add(time.Minute)))

		got, err := s.FindByID(ctx, u.ID)
		require.NoError(t, err)
		require.NotNil(t, got.TwoFactorCode)
		require.NotNil(t, got.TwoFactorExpiry)
		assert.Equal(t, "222222", *got.TwoFactorCode)
		assert.WithinDuration(t, expiry.Add(time.Minute), *got.TwoFactorExpiry, time.Second)

		assert.ErrorIs(t, s.SetTwoFactor(ctx, u.ID+100, "333333", expiry), ErrNotFound)
	})
}

func TestClearTwoFactor_CompareAndClear(t *testing.T) {
	forEachStore(t, func(t *testing.T, s UserStore) {
		ctx := context.Background()
		u, err := s.Create(ctx, "a@x.com", "hash", models.RoleUser, "tok")
		require.NoError(t, err)
		require.NoError(t, s.SetTwoFactor(ctx, u.ID, "123456", time.Now().Add(time.Minute)))

		assert.ErrorIs(t, s.ClearTwoFactor(ctx, u.ID, "654321"), ErrNotFound)

		got, err := s.FindByID(ctx, u.ID)
		require.NoError(t, err)
		require.NotNil(t, got.TwoFactorCode)

		require.NoError(t, s.ClearTwoFactor(ctx, u.ID, "123456"))

		got, err = s.FindByID(ctx, u.ID)
		require.NoError(t, err)
		assert.Nil(t, got.TwoFactorCode)
		assert.Nil(t, got.TwoFactorExpiry)

		assert.ErrorIs(t, s.ClearTwoFactor(ctx, u.ID, "123456"), ErrNotFound)
	})
}

func TestClearTwoFactor_ConcurrentClearsHaveOneWinner(t *testing.T) {
	forEachStore(t, func(t *testing.T, s UserStore) {
		ctx := context.Background()
		u, err := s.Create(ctx, "a@x.com", "hash", models.RoleUser, "tok")
		require.NoError(t, err)
		require.NoError(t, s.SetTwoFactor(ctx, u.ID, "123456", time.Now().Add(time.Minute)))

		var (
			wg   sync.WaitGroup
			mu   sync.Mutex
			wins int
		)
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if s.ClearTwoFactor(ctx, u.ID, "123456") == nil {
					mu.Lock()
					wins++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()

		assert.Equal(t, 1, wins)
	})
}

func TestMemoryStore_ReturnsCopies(t *testing.T) {
	s := NewMemoryUserStore()
	ctx := context.Background()
	u, err := s.Create(ctx, "a@x.com", "hash", models.RoleUser, "tok")
	require.NoError(t, err)

	*u.EmailVerificationToken = "tampered"
	u.IsEmailVerified = true

	got, err := s.FindByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "tok", *got.EmailVerificationToken)
	assert.False(t, got.IsEmailVerified)
}

func TestUpdatePasswordHash(t *testing.T) {
	forEachStore(t, func(t *testing.T, s UserStore) {
		ctx := context.Background()
		u, err := s.Create(ctx, "a@x.com", "old", models.RoleUser, "tok")
		require.NoError(t, err)

		require.NoError(t, s.UpdatePasswordHash(ctx, u.ID, "new"))

		got, err := s.FindByID(ctx, u.ID)
		require.NoError(t, err)
		assert.Equal(t, "new", got.PasswordHash)

		assert.ErrorIs(t, s.UpdatePasswordHash(ctx, u.ID+100, "x"), ErrNotFound)
	})
}
