package collection

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

	"github.com/mrlokans/spinestock/internal/entities"
)

type staticToken string

func (s staticToken) Token() (string, error) { return string(s), nil }

type failingToken struct{}

func (failingToken) Token() (string, error) { return "", errors.New("not signed in") }

// fakeServer is an in-memory stand-in for the books API.
type fakeServer struct {
	mu     sync.Mutex
	books  map[string]entities.Book
	nextID int
	status int
}

func newFakeServer(t *testing.T) (*fakeServer, *httptest.Server) {
	t.Helper()
	f := &fakeServer{books: map[string]entities.Book{}}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/users/{uid}/books", f.list)
	mux.HandleFunc("POST /api/users/{uid}/books", f.create)
	mux.HandleFunc("PUT /api/users/{uid}/books/{id}", f.update)
	mux.HandleFunc("DELETE /api/users/{uid}/books/{id}", f.delete)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer secret" {
			writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "authentication required"})
			return
		}
		f.mu.Lock()
		status := f.status
		f.mu.Unlock()
		if status != 0 {
			writeJSON(w, status, ErrorResponse{Error: "boom"})
			return
		}
		mux.ServeHTTP(w, r)
	}))
	t.Cleanup(server.Close)
	return f, server
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func (f *fakeServer) list(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	resp := ListResponse{Books: []entities.Book{}}
	for _, b := range f.books {
		resp.Books = append(resp.Books, b)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (f *fakeServer) create(w http.ResponseWriter, r *http.Request) {
	var book entities.Book
	if err := json.NewDecoder(r.Body).Decode(&book); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	book.ID = "doc-" + string(rune('0'+f.nextID))
	f.books[book.ID] = book
	writeJSON(w, http.StatusCreated, book)
}

func (f *fakeServer) update(w http.ResponseWriter, r *http.Request) {
	var book entities.Book
	if err := json.NewDecoder(r.Body).Decode(&book); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	id := r.PathValue("id")
	if _, ok := f.books[id]; !ok {
		writeJSON(w, http.StatusNotFound, ErrorResponse{Error: "book not found"})
		return
	}
	book.ID = id
	f.books[id] = book
	writeJSON(w, http.StatusOK, book)
}

func (f *fakeServer) delete(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := r.PathValue("id")
	if _, ok := f.books[id]; !ok {
		writeJSON(w, http.StatusNotFound, ErrorResponse{Error: "book not found"})
		return
	}
	delete(f.books, id)
	w.WriteHeader(http.StatusNoContent)
}

func TestHTTPStore_CreateThenList(t *testing.T) {
	_, server := newFakeServer(t)
	store := NewHTTPStore(server.URL, staticToken("secret"), 0)
	ctx := context.Background()

	created, err := store.Create(ctx, "u1", matilda())
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)

	books, err := store.List(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, books, 1)
	assert.Equal(t, created.ID, books[0].ID)
	assert.Equal(t, "Matilda", books[0].Title)
	assert.Equal(t, "Roald Dahl", books[0].Author)
	assert.Equal(t, "9780140328721", books[0].ISBN)
	assert.Equal(t, matilda().CoverURL, books[0].CoverURL)
}

func TestHTTPStore_UpdateMissingIsNotFound(t *testing.T) {
	_, server := newFakeServer(t)
	store := NewHTTPStore(server.URL, staticToken("secret"), 0)

	book := matilda()
	book.ID = "gone"
	_, err := store.Update(context.Background(), "u1", book)

	assert.ErrorIs(t, err, ErrNotFound)
}

func TestHTTPStore_Update(t *testing.T) {
	_, server := newFakeServer(t)
	store := NewHTTPStore(server.URL, staticToken("secret"), 0)
	ctx := context.Background()

	created, err := store.Create(ctx, "u1", matilda())
	require.NoError(t, err)

	created.Title = "A"
	updated, err := store.Update(ctx, "u1", *created)
	require.NoError(t, err)
	assert.Equal(t, "A", updated.Title)
	assert.Equal(t, created.ID, updated.ID)
}

func TestHTTPStore_DeleteTwiceEqualsOnce(t *testing.T) {
	fake, server := newFakeServer(t)
	store := NewHTTPStore(server.URL, staticToken("secret"), 0)
	ctx := context.Background()

	created, err := store.Create(ctx, "u1", matilda())
	require.NoError(t, err)

	require.NoError(t, store.Delete(ctx, "u1", created.ID))
	require.NoError(t, store.Delete(ctx, "u1", created.ID))
	assert.Empty(t, fake.books)
}

func TestHTTPStore_ServerErrorIsStoreError(t *testing.T) {
	fake, server := newFakeServer(t)
	fake.status = http.StatusInternalServerError
	store := NewHTTPStore(server.URL, staticToken("secret"), 0)

	_, err := store.Create(context.Background(), "u1", matilda())

	var storeErr *StoreError
	require.ErrorAs(t, err, &storeErr)
	assert.Equal(t, "create", storeErr.Op)
	assert.Equal(t, http.StatusInternalServerError, storeErr.Status)
	assert.Contains(t, storeErr.Error(), "boom")
}

func TestHTTPStore_Unauthorized(t *testing.T) {
	_, server := newFakeServer(t)
	store := NewHTTPStore(server.URL, staticToken("wrong"), 0)

	_, err := store.List(context.Background(), "u1")

	var storeErr *StoreError
	require.ErrorAs(t, err, &storeErr)
	assert.Equal(t, http.StatusUnauthorized, storeErr.Status)
}

func TestHTTPStore_NoToken(t *testing.T) {
	_, server := newFakeServer(t)
	store := NewHTTPStore(server.URL, failingToken{}, 0)

	err := store.Delete(context.Background(), "u1", "x")

	var storeErr *StoreError
	require.ErrorAs(t, err, &storeErr)
	assert.Zero(t, storeErr.Status)
}

func TestHTTPStore_TransportError(t *testing.T) {
	_, server := newFakeServer(t)
	url := server.URL
	server.Close()
	store := NewHTTPStore(url, staticToken("secret"), 0)

	_, err := store.List(context.Background(), "u1")

	var storeErr *StoreError
	require.ErrorAs(t, err, &storeErr)
	assert.Equal(t, "list", storeErr.Op)
}

type revocableToken struct {
	staticToken
	invalidated int
}

func (r *revocableToken) Invalidate() { r.invalidated++ }

func TestHTTPStore_UnauthorizedInvalidatesToken(t *testing.T) {
	_, server := newFakeServer(t)
	tokens := &revocableToken{staticToken: "expired"}
	store := NewHTTPStore(server.URL, tokens, time.Second)

	_, err := store.List(context.Background(), "u1")

	var storeErr *StoreError
	require.ErrorAs(t, err, &storeErr)
	assert.Equal(t, http.StatusUnauthorized, storeErr.Status)
	assert.Equal(t, 1, tokens.invalidated)
}

func TestHTTPStore_OtherFailuresKeepToken(t *testing.T) {
	fake, server := newFakeServer(t)
	fake.status = http.StatusInternalServerError
	tokens := &revocableToken{staticToken: "secret"}
	store := NewHTTPStore(server.URL, tokens, time.Second)

	_, err := store.List(context.Background(), "u1")

	require.Error(t, err)
	assert.Zero(t, tokens.invalidated)
}
