package domain

import "time"

// TokenPair is the credential pair minted by the backend. It only ever
// travels between the gateway and the backend, and into HttpOnly cookies.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// Valid reports whether both tokens are present.
func (p TokenPair) Valid() bool {
	return p.AccessToken != "" && p.RefreshToken != ""
}

// Session is a point-in-time view of the authentication state.
//
// IsAuthenticated is true iff User is non-nil, and Permissions is always the
// union implied by User.Roles. Verified is false while the view comes from
// the persisted cache and has not yet been reconciled with the backend.
type Session struct {
	User            *User         `json:"user"`
	IsAuthenticated bool          `json:"isAuthenticated"`
	IsLoading       bool          `json:"isLoading"`
	Verified        bool          `json:"verified"`
	Permissions     PermissionSet `json:"-"`
}

// HasRole reports whether the session user holds r.
func (s Session) HasRole(r Role) bool {
	return s.User.HasRole(r)
}

// HasPermission reports whether the session grants p.
func (s Session) HasPermission(p Permission) bool {
	return s.Permissions.Has(p)
}

// PersistedSession is the non-sensitive subset written to durable storage.
// It must never carry tokens.
type PersistedSession struct {
	User            *User        `json:"user"`
	IsAuthenticated bool         `json:"isAuthenticated"`
	Permissions     []Permission `json:"permissions"`
	SavedAt         time.Time    `json:"savedAt"`
}
