package authz

import (
	"testing"

	"github.com/ahmetcoskunkizilkaya/watchlist-backend/internal/models"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanAccess(t *testing.T) {
	admin := Caller{ID: 1, Role: models.RoleAdmin}
	user := Caller{ID: 7, Role: models.RoleUser}

	tests := []struct {
		name    string
		caller  Caller
		ownerID uint
		want    bool
	}{
		{"admin own", admin, 1, true},
		{"admin other", admin, 7, true},
		{"admin any", admin, 9999, true},
		{"user own", user, 7, true},
		{"user other", user, 8, false},
		{"user zero owner", user, 0, false},
		{"zero-id user", Caller{Role: models.RoleUser}, 0, false},
		{"unknown role", Caller{ID: 7, Role: models.Role("root")}, 7, false},
		{"empty role", Caller{ID: 7}, 7, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CanAccess(tt.caller, tt.ownerID))
		})
	}
}

func TestCanListAll(t *testing.T) {
	assert.True(t, CanListAll(Caller{ID: 1, Role: models.RoleAdmin}))
	assert.False(t, CanListAll(Caller{ID: 1, Role: models.RoleUser}))
	assert.False(t, CanListAll(Caller{ID: 1, Role: models.Role("ADMIN ")}))
}

func TestCallerFromClaims(t *testing.T) {
	c, err := CallerFromClaims(jwt.MapClaims{"sub": "42", "email": "a@x.com", "role": "ADMIN"})
	require.NoError(t, err)
	assert.Equal(t, Caller{ID: 42, Email: "a@x.com", Role: models.RoleAdmin}, c)

	bad := []jwt.MapClaims{
		{"email": "a@x.com", "role": "USER"},
		{"sub": "abc", "role": "USER"},
		{"sub": "0", "role": "USER"},
		{"sub": "42", "role": "superuser"},
		{"sub": "42"},
	}
	for _, claims := range bad {
		_, err := CallerFromClaims(claims)
		assert.Error(t, err, "%v", claims)
	}
}
