package identity

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeAuthServer accepts one account, reader@example.com / bookworm.
type fakeAuthServer struct {
	mu       sync.Mutex
	revoked  []string
	signouts int
}

func newFakeAuthServer(t *testing.T) (*fakeAuthServer, *httptest.Server) {
	t.Helper()
	f := &fakeAuthServer{}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/auth/signin", func(w http.ResponseWriter, r *http.Request) {
		var creds credentials
		_ = json.NewDecoder(r.Body).Decode(&creds)
		if creds.Email != "reader@example.com" || creds.Password != "bookworm" {
			writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "invalid email or password"})
			return
		}
		writeJSON(w, http.StatusOK, sessionResponse{UID: "u1", Email: creds.Email, Token: "tok-1"})
	})
	mux.HandleFunc("POST /api/auth/signup", func(w http.ResponseWriter, r *http.Request) {
		var creds credentials
		_ = json.NewDecoder(r.Body).Decode(&creds)
		if len(creds.Password) < 6 {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "password should be at least 6 characters"})
			return
		}
		writeJSON(w, http.StatusCreated, sessionResponse{UID: "u2", Email: creds.Email, Token: "tok-2"})
	})
	mux.HandleFunc("POST /api/auth/signout", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.signouts++
		f.revoked = append(f.revoked, r.Header.Get("Authorization"))
		f.mu.Unlock()
		writeJSON(w, http.StatusOK, map[string]string{"message": "signed out"})
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return f, server
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func TestHTTPProvider_SignIn(t *testing.T) {
	_, server := newFakeAuthServer(t)
	provider := NewHTTPProvider(server.URL, time.Second)

	user, err := provider.SignIn(context.Background(), "reader@example.com", "bookworm")
	require.NoError(t, err)
	assert.Equal(t, &User{UID: "u1", Email: "reader@example.com"}, user)
	assert.Equal(t, user, provider.CurrentUser())

	token, err := provider.Token()
	require.NoError(t, err)
	assert.Equal(t, "tok-1", token)
}

func TestHTTPProvider_SignInRejectedCarriesMessage(t *testing.T) {
	_, server := newFakeAuthServer(t)
	provider := NewHTTPProvider(server.URL, time.Second)

	_, err := provider.SignIn(context.Background(), "reader@example.com", "wrong")

	var authErr *AuthError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, "invalid email or password", authErr.Error())
	assert.Equal(t, http.StatusUnauthorized, authErr.Status)
	assert.Nil(t, provider.CurrentUser())

	_, err = provider.Token()
	assert.ErrorIs(t, err, ErrNotSignedIn)
}

func TestHTTPProvider_SignUp(t *testing.T) {
	_, server := newFakeAuthServer(t)
	provider := NewHTTPProvider(server.URL, time.Second)

	user, err := provider.SignUp(context.Background(), "new@example.com", "bookworm")
	require.NoError(t, err)
	assert.Equal(t, "u2", user.UID)

	_, err = provider.SignUp(context.Background(), "new@example.com", "short")
	var authErr *AuthError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, "password should be at least 6 characters", authErr.Message)
}

func TestHTTPProvider_SignOut(t *testing.T) {
	fake, server := newFakeAuthServer(t)
	provider := NewHTTPProvider(server.URL, time.Second)
	ctx := context.Background()

	_, err := provider.SignIn(ctx, "reader@example.com", "bookworm")
	require.NoError(t, err)

	require.NoError(t, provider.SignOut(ctx))
	assert.Nil(t, provider.CurrentUser())
	assert.Equal(t, []string{"Bearer tok-1"}, fake.revoked)

	// Signing out twice does not contact the server again
	require.NoError(t, provider.SignOut(ctx))
	assert.Equal(t, 1, fake.signouts)
}

func TestHTTPProvider_SignOutIsLocalEvenWhenServerIsDown(t *testing.T) {
	_, server := newFakeAuthServer(t)
	provider := NewHTTPProvider(server.URL, time.Second)
	ctx := context.Background()

	_, err := provider.SignIn(ctx, "reader@example.com", "bookworm")
	require.NoError(t, err)
	server.Close()

	err = provider.SignOut(ctx)
	assert.Error(t, err)
	assert.Nil(t, provider.CurrentUser())
}

func TestHTTPProvider_OnAuthStateChanged(t *testing.T) {
	_, server := newFakeAuthServer(t)
	provider := NewHTTPProvider(server.URL, time.Second)
	ctx := context.Background()

	var seen []*User
	unsubscribe := provider.OnAuthStateChanged(func(u *User) {
		seen = append(seen, u)
	})

	_, err := provider.SignIn(ctx, "reader@example.com", "bookworm")
	require.NoError(t, err)
	require.NoError(t, provider.SignOut(ctx))

	unsubscribe()
	_, err = provider.SignIn(ctx, "reader@example.com", "bookworm")
	require.NoError(t, err)

	require.Len(t, seen, 3)
	assert.Nil(t, seen[0], "initial call reports the signed-out state")
	assert.Equal(t, "u1", seen[1].UID)
	assert.Nil(t, seen[2])
}

func TestHTTPProvider_TransportErrorIsNotAuthError(t *testing.T) {
	_, server := newFakeAuthServer(t)
	url := server.URL
	server.Close()
	provider := NewHTTPProvider(url, time.Second)

	_, err := provider.SignIn(context.Background(), "reader@example.com", "bookworm")

	require.Error(t, err)
	var authErr *AuthError
	assert.False(t, errors.As(err, &authErr))
}

func TestHTTPProvider_InvalidateNotifiesWithoutContactingServer(t *testing.T) {
	fake, server := newFakeAuthServer(t)
	provider := NewHTTPProvider(server.URL, time.Second)

	var seen []*User
	provider.OnAuthStateChanged(func(u *User) { seen = append(seen, u) })
	_, err := provider.SignIn(context.Background(), "reader@example.com", "bookworm")
	require.NoError(t, err)

	provider.Invalidate()
	provider.Invalidate()

	assert.Nil(t, provider.CurrentUser())
	_, err = provider.Token()
	assert.ErrorIs(t, err, ErrNotSignedIn)
	assert.Zero(t, fake.signouts)
	require.Len(t, seen, 3, "a second Invalidate is silent")
	assert.Nil(t, seen[2])
}
