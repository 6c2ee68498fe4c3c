package collection

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mrlokans/spinestock/internal/entities"
)

var errUnexpectedStatus = errors.New("unexpected status")

// TokenSource supplies the bearer token for the signed-in user.
type TokenSource interface {
	Token() (string, error)
}

// Revoker is implemented by token sources that can drop a session the
// server has rejected with 401.
type Revoker interface {
	Invalidate()
}

// ListResponse is the body of GET /api/users/{uid}/books.
type ListResponse struct {
	Books []entities.Book `json:"books"`
}

// ErrorResponse is the body the server sends with non-2xx statuses.
type ErrorResponse struct {
	Error string `json:"error"`
}

// HTTPStore talks to the reference server's per-user books API.
type HTTPStore struct {
	httpClient *http.Client
	baseURL    string
	tokens     TokenSource
}

var _ Store = (*HTTPStore)(nil)

// NewHTTPStore creates an adapter for the server at baseURL.
func NewHTTPStore(baseURL string, tokens TokenSource, timeout time.Duration) *HTTPStore {
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &HTTPStore{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
		tokens:     tokens,
	}
}

func (s *HTTPStore) List(ctx context.Context, userID string) ([]entities.Book, error) {
	var resp ListResponse
	status, err := s.do(ctx, "list", http.MethodGet, s.booksURL(userID), nil, &resp)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, &StoreError{Op: "list", Status: status, Err: errUnexpectedStatus}
	}
	if resp.Books == nil {
		resp.Books = []entities.Book{}
	}
	return resp.Books, nil
}

func (s *HTTPStore) Create(ctx context.Context, userID string, book entities.Book) (*entities.Book, error) {
	book.ID = ""
	var created entities.Book
	status, err := s.do(ctx, "create", http.MethodPost, s.booksURL(userID), &book, &created)
	if err != nil {
		return nil, err
	}
	if status != http.StatusCreated && status != http.StatusOK {
		return nil, &StoreError{Op: "create", Status: status, Err: errUnexpectedStatus}
	}
	if created.ID == "" {
		return nil, &StoreError{Op: "create", Status: status, Err: errors.New("response has no id")}
	}
	return &created, nil
}

func (s *HTTPStore) Update(ctx context.Context, userID string, book entities.Book) (*entities.Book, error) {
	if book.ID == "" {
		return nil, ErrInvalidBook
	}
	var updated entities.Book
	status, err := s.do(ctx, "update", http.MethodPut, s.bookURL(userID, book.ID), &book, &updated)
	if err != nil {
		return nil, err
	}
	switch status {
	case http.StatusOK:
		return &updated, nil
	case http.StatusNotFound:
		return nil, ErrNotFound
	default:
		return nil, &StoreError{Op: "update", Status: status, Err: errUnexpectedStatus}
	}
}

func (s *HTTPStore) Delete(ctx context.Context, userID, id string) error {
	status, err := s.do(ctx, "delete", http.MethodDelete, s.bookURL(userID, id), nil, nil)
	if err != nil {
		return err
	}
	switch status {
	case http.StatusOK, http.StatusNoContent, http.StatusNotFound:
		return nil
	default:
		return &StoreError{Op: "delete", Status: status, Err: errUnexpectedStatus}
	}
}

func (s *HTTPStore) booksURL(userID string) string {
	return fmt.Sprintf("%s/api/users/%s/books", s.baseURL, url.PathEscape(userID))
}

func (s *HTTPStore) bookURL(userID, id string) string {
	return s.booksURL(userID) + "/" + url.PathEscape(id)
}

// do sends one request and decodes a 2xx body into out. Transport failures
// are returned as *StoreError; non-2xx statuses are returned to the caller
// for mapping, with the server's message attached when it sent one.
func (s *HTTPStore) do(ctx context.Context, op, method, rawURL string, in, out any) (int, error) {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return 0, &StoreError{Op: op, Err: fmt.Errorf("encode request: %w", err)}
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, body)
	if err != nil {
		return 0, &StoreError{Op: op, Err: fmt.Errorf("create request: %w", err)}
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	token, err := s.tokens.Token()
	if err != nil {
		return 0, &StoreError{Op: op, Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return 0, &StoreError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		if r, ok := s.tokens.(Revoker); ok {
			r.Invalidate()
		}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		if resp.StatusCode == http.StatusNotFound {
			return resp.StatusCode, nil
		}
		var apiErr ErrorResponse
		if json.NewDecoder(resp.Body).Decode(&apiErr) == nil && apiErr.Error != "" {
			return resp.StatusCode, &StoreError{Op: op, Status: resp.StatusCode, Err: errors.New(apiErr.Error)}
		}
		return resp.StatusCode, nil
	}

	if out != nil && resp.StatusCode != http.StatusNoContent {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, &StoreError{Op: op, Status: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
		}
	}
	return resp.StatusCode, nil
}
