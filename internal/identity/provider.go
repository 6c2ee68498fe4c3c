// Package identity is the client side of the identity provider: sign-up,
// sign-in, sign-out and auth-state notifications.
package identity

import (
	"context"
	"errors"
)

// ErrNotSignedIn is returned by Token when no user is signed in.
var ErrNotSignedIn = errors.New("not signed in")

// User is the signed-in identity.
type User struct {
	UID   string `json:"uid"`
	Email string `json:"email"`
}

// AuthError is a rejection by the identity provider. Message is the
// provider's text and is shown to the user as is.
type AuthError struct {
	Status  int
	Message string
}

func (e *AuthError) Error() string {
	return e.Message
}

// Provider is an identity provider.
type Provider interface {
	SignIn(ctx context.Context, email, password string) (*User, error)
	SignUp(ctx context.Context, email, password string) (*User, error)
	SignOut(ctx context.Context) error
	// CurrentUser returns the signed-in user or nil.
	CurrentUser() *User
	// OnAuthStateChanged registers fn to be called with the new user, or nil
	// on sign-out, after every change. fn is also called once right away with
	// the current user.
	OnAuthStateChanged(fn func(*User)) (unsubscribe func())
}
