package identity

import (
	"context"
	"errors"

	"github.com/mircoferri/taskhub/internal/auth"
)

// Member is one entry of a role-membership listing.
type Member struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
}

// ErrRoleNotFound reports that a role group is absent from the identity
// store altogether, which is a misconfiguration distinct from the group
// simply having no members.
var ErrRoleNotFound = errors.New("role group not found")

// Store is the read-only view of the external identity store: users, role
// groups, and issued bearer tokens. This service never writes to it.
type Store interface {
	auth.CredentialStore

	// UsersInRole lists members of a role group ordered by id. It returns
	// ErrRoleNotFound when the group row itself is absent. When
	// excludeStaff is set, staff and superuser accounts are omitted.
	UsersInRole(ctx context.Context, role string, excludeStaff bool) ([]Member, error)

	UserExists(ctx context.Context, id int64) (bool, error)
	UserInRole(ctx context.Context, id int64, role string) (bool, error)

	Close() error
}
