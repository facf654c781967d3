package auth

import (
	"context"
	"strings"

	"github.com/google/uuid"
)

// AuthenticatedUser is the resolved identity attached to a request's
// context by the Auth Gate. Unlike a JWT claim set, every field here is
// read fresh from the database on each request (the session token itself
// carries nothing but an opaque session id).
type AuthenticatedUser struct {
	UserID      uuid.UUID
	Email       string
	DisplayName string
	IsAdmin     bool
	Permissions []string
	SessionID   string
}

// HasPermission reports whether the user holds perm, with admin always
// short-circuiting to true.
func (u *AuthenticatedUser) HasPermission(perm string) bool {
	if u.IsAdmin {
		return true
	}
	for _, p := range u.Permissions {
		if p == perm {
			return true
		}
	}
	return false
}

// HasAppAccess reports whether the user may reach the named app, either
// via the admin wildcard or an explicit "app.<name>" grant.
func (u *AuthenticatedUser) HasAppAccess(appName string) bool {
	if u.IsAdmin {
		return true
	}
	want := "app." + appName
	for _, p := range u.Permissions {
		if p == want || p == AppWildcard {
			return true
		}
	}
	return false
}

// AppNames returns the set of app names the user has explicit access to,
// derived from its "app.<name>" permissions. Admins get ["*"].
func (u *AuthenticatedUser) AppNames() []string {
	if u.IsAdmin {
		return []string{"*"}
	}
	var names []string
	for _, p := range u.Permissions {
		if name, ok := strings.CutPrefix(p, "app."); ok {
			names = append(names, name)
		}
	}
	return names
}

type contextKey int

const userContextKey contextKey = iota

// NewContext attaches user to ctx.
func NewContext(ctx context.Context, user *AuthenticatedUser) context.Context {
	return context.WithValue(ctx, userContextKey, user)
}

// FromContext retrieves the authenticated user attached by the Auth Gate,
// or nil if the request reached this point unauthenticated.
func FromContext(ctx context.Context) *AuthenticatedUser {
	u, _ := ctx.Value(userContextKey).(*AuthenticatedUser)
	return u
}
