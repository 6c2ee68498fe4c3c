package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"
)

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type sessionResponse struct {
	UID   string `json:"uid"`
	Email string `json:"email"`
	Token string `json:"token"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// HTTPProvider signs in against the server's /api/auth endpoints and keeps
// the issued bearer token in memory.
type HTTPProvider struct {
	httpClient *http.Client
	baseURL    string

	mu        sync.Mutex
	user      *User
	token     string
	listeners map[int]func(*User)
	nextID    int
}

var _ Provider = (*HTTPProvider)(nil)

// NewHTTPProvider creates a provider for the server at baseURL.
func NewHTTPProvider(baseURL string, timeout time.Duration) *HTTPProvider {
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &HTTPProvider{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
		listeners:  make(map[int]func(*User)),
	}
}

func (p *HTTPProvider) SignIn(ctx context.Context, email, password string) (*User, error) {
	return p.authenticate(ctx, "/api/auth/signin", email, password)
}

func (p *HTTPProvider) SignUp(ctx context.Context, email, password string) (*User, error) {
	return p.authenticate(ctx, "/api/auth/signup", email, password)
}

// SignOut forgets the local session and then revokes the token remotely.
// The local sign-out always takes effect; a failed revocation is returned.
func (p *HTTPProvider) SignOut(ctx context.Context) error {
	p.mu.Lock()
	token := p.token
	wasSignedIn := p.user != nil
	p.user = nil
	p.token = ""
	p.mu.Unlock()

	if wasSignedIn {
		p.notify(nil)
	}
	if token == "" {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/api/auth/signout", nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("sign out: %w", err)
	}
	defer resp.Body.Close()

	// An already invalid token means the server considers us signed out
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusUnauthorized {
		err := p.authError(resp)
		log.Printf("[IDENTITY] Token revocation failed: %v", err)
		return err
	}
	return nil
}

// Invalidate drops a session the server no longer accepts. Unlike SignOut it
// makes no request, since the token is already dead remotely.
func (p *HTTPProvider) Invalidate() {
	p.mu.Lock()
	wasSignedIn := p.user != nil
	p.user = nil
	p.token = ""
	p.mu.Unlock()

	if wasSignedIn {
		log.Printf("[IDENTITY] Session rejected by server, signing out locally")
		p.notify(nil)
	}
}

func (p *HTTPProvider) CurrentUser() *User {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.user == nil {
		return nil
	}
	u := *p.user
	return &u
}

func (p *HTTPProvider) OnAuthStateChanged(fn func(*User)) func() {
	p.mu.Lock()
	id := p.nextID
	p.nextID++
	p.listeners[id] = fn
	p.mu.Unlock()

	fn(p.CurrentUser())

	return func() {
		p.mu.Lock()
		delete(p.listeners, id)
		p.mu.Unlock()
	}
}

// Token returns the bearer token of the signed-in user.
func (p *HTTPProvider) Token() (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.token == "" {
		return "", ErrNotSignedIn
	}
	return p.token, nil
}

func (p *HTTPProvider) authenticate(ctx context.Context, path, email, password string) (*User, error) {
	body, err := json.Marshal(credentials{Email: email, Password: password})
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("contact identity provider: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, p.authError(resp)
	}

	var session sessionResponse
	if err := json.NewDecoder(resp.Body).Decode(&session); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if session.UID == "" || session.Token == "" {
		return nil, errors.New("identity provider returned an incomplete session")
	}

	user := &User{UID: session.UID, Email: session.Email}
	p.mu.Lock()
	p.user = user
	p.token = session.Token
	p.mu.Unlock()

	p.notify(user)

	u := *user
	return &u, nil
}

// authError turns a non-2xx response into an AuthError carrying the
// server's message, or the status text when the body has none.
func (p *HTTPProvider) authError(resp *http.Response) error {
	var body errorResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil || body.Error == "" {
		return &AuthError{Status: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
	}
	return &AuthError{Status: resp.StatusCode, Message: body.Error}
}

// notify calls listeners outside the lock so they may call back into p.
func (p *HTTPProvider) notify(user *User) {
	p.mu.Lock()
	listeners := make([]func(*User), 0, len(p.listeners))
	for _, fn := range p.listeners {
		listeners = append(listeners, fn)
	}
	p.mu.Unlock()

	for _, fn := range listeners {
		var u *User
		if user != nil {
			copied := *user
			u = &copied
		}
		fn(u)
	}
}
