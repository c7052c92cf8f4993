// Package authz decides whether a caller may touch a resource owned by a
// given user. The predicates are pure; they do no I/O.
package authz

import "github.com/ahmetcoskunkizilkaya/watchlist-backend/internal/models"

// Caller is the identity a request acts as, derived from a verified token.
type Caller struct {
	ID    uint
	Email string
	Role  models.Role
}

// CanAccess reports whether caller may read or write a record owned by ownerID.
func CanAccess(caller Caller, ownerID uint) bool {
	switch caller.Role {
	case models.RoleAdmin:
		return true
	case models.RoleUser:
		return caller.ID != 0 && caller.ID == ownerID
	}
	return false
}

// CanListAll reports whether caller may list records of every owner.
func CanListAll(caller Caller) bool {
	switch caller.Role {
	case models.RoleAdmin:
		return true
	case models.RoleUser:
		return false
	}
	return false
}
