package auth

import "context"

// UserStore describes the credential-store lookups the auth subsystem needs.
// The relational schema behind it is owned by the application; this interface
// deliberately stays read-mostly.
type UserStore interface {
	// Find returns the user by id, or ErrNotFound.
	Find(ctx context.Context, id string) (*User, error)
	// FindByEmail returns the user by email, or ErrNotFound.
	FindByEmail(ctx context.Context, email string) (*User, error)
	// RolePermissions returns the stored permission override for a role.
	// An empty slice with nil error means "no override"; callers fall back to
	// the builtin role table.
	RolePermissions(ctx context.Context, role string) ([]string, error)
	// UpdateRole changes a user's role. Callers must invalidate the user's
	// permission cache afterwards.
	UpdateRole(ctx context.Context, userID, role string) error
}
