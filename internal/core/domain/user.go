package domain

import (
	"strconv"
	"time"
)

type UserID int64

func (id UserID) String() string {
	return strconv.FormatInt(int64(id), 10)
}

type Role string

const (
	RoleAdmin    Role = "admin"
	RoleStreamer Role = "streamer"
	RoleViewer   Role = "viewer"
)

func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleStreamer, RoleViewer:
		return true
	}
	return false
}

// Identity is a registered account.
type Identity struct {
	ID           UserID    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         Role      `json:"role"`
	IsActive     bool      `json:"is_active"`
	IsSuperuser  bool      `json:"is_superuser"`
	CreatedAt    time.Time `json:"created_at"`
}

// IsAdmin treats superusers as admins.
func (i *Identity) IsAdmin() bool {
	return i.Role == RoleAdmin || i.IsSuperuser
}

// Actor is the authenticated caller of an operation, taken from verified
// access token claims.
type Actor struct {
	ID        UserID
	Email     string
	Role      Role
	Superuser bool
}

// IsAdmin treats superusers as admins, like Identity.IsAdmin.
func (a Actor) IsAdmin() bool {
	return a.Role == RoleAdmin || a.Superuser
}
