// ABOUTME: Request context plumbing for the authenticated user
// ABOUTME: Provides WithUser/UserFromContext used by the HTTP middleware

package auth

import (
	"context"

	"github.com/lunarch/parley/internal/store"
)

// userContextKey is the key type for storing the authenticated user.
type userContextKey struct{}

// WithUser returns a new context with the authenticated user attached.
func WithUser(ctx context.Context, user *store.User) context.Context {
	return context.WithValue(ctx, userContextKey{}, user)
}

// UserFromContext retrieves the authenticated user, returning nil if the
// request never passed the auth middleware.
func UserFromContext(ctx context.Context) *store.User {
	user, ok := ctx.Value(userContextKey{}).(*store.User)
	if !ok {
		return nil
	}
	return user
}

// MustUserFromContext retrieves the authenticated user, panicking if not
// present. Only for handlers mounted behind the auth middleware.
func MustUserFromContext(ctx context.Context) *store.User {
	user := UserFromContext(ctx)
	if user == nil {
		panic("auth: user not found in context")
	}
	return user
}
