package auth

import "errors"

var (
	ErrUnauthorized = errors.New("authentication required")
	ErrForbidden    = errors.New("permission denied")
)

const (
	// GroupAdmin and GroupUser are the role group names managed by the
	// external identity store.
	GroupAdmin = "admin"
	GroupUser  = "user"
)

// User is a record read from the external identity store.
type User struct {
	ID          int64    `json:"id"`
	Username    string   `json:"username"`
	IsStaff     bool     `json:"is_staff"`
	IsSuperuser bool     `json:"is_superuser"`
	Groups      []string `json:"groups"`
}

// Identity is the resolved principal for one request or connection.
// The zero value is the anonymous identity.
type Identity struct {
	UserID        int64
	Username      string
	IsStaff       bool
	IsSuperuser   bool
	Groups        []string
	Authenticated bool
}

func Anonymous() Identity {
	return Identity{}
}

func identityOf(u User) Identity {
	return Identity{
		UserID:        u.ID,
		Username:      u.Username,
		IsStaff:       u.IsStaff,
		IsSuperuser:   u.IsSuperuser,
		Groups:        u.Groups,
		Authenticated: true,
	}
}

// IsAdmin is the single role derivation every gated operation consults.
func (id Identity) IsAdmin() bool {
	return id.IsSuperuser || id.IsStaff || id.InGroup(GroupAdmin)
}

func (id Identity) InGroup(name string) bool {
	for _, g := range id.Groups {
		if g == name {
			return true
		}
	}
	return false
}
