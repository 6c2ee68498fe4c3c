package state

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/mrlokans/spinestock/internal/collection"
	"github.com/mrlokans/spinestock/internal/entities"
	"github.com/mrlokans/spinestock/internal/identity"
	"github.com/mrlokans/spinestock/internal/metadata"
)

var (
	// ErrNotSignedIn is returned by library operations without a session.
	ErrNotSignedIn = errors.New("not signed in")
	// ErrDuplicateISBN is returned when adding a book whose ISBN is already
	// in the library.
	ErrDuplicateISBN = errors.New("a book with this ISBN is already in your library")
)

// Lookup finds catalog records to add.
type Lookup interface {
	LookupByISBN(ctx context.Context, isbn string) (*entities.Book, error)
	SearchByTitle(ctx context.Context, title, author string) (*entities.Book, error)
}

// Enricher fills in details for a record.
type Enricher interface {
	Resolve(ctx context.Context, book entities.Book) metadata.Resolution
}

// Store owns the process's single State. Dispatch is the only writer; the
// operations below call collaborators outside the lock and dispatch their
// outcomes, so many requests may be in flight at once.
type Store struct {
	identity identity.Provider
	books    collection.Store
	lookup   Lookup
	enricher Enricher

	mu            sync.Mutex
	state         State
	nextRequestID uint64

	// notifyMu keeps subscriber notifications in transition order. subMu
	// guards the subscriber set only, so a subscriber may unsubscribe from
	// inside its own callback.
	notifyMu    sync.Mutex
	subMu       sync.Mutex
	subscribers map[int]func(State)
	nextSubID   int
}

// NewStore creates a Store in the signed-out state.
func NewStore(provider identity.Provider, books collection.Store, lookup Lookup, enricher Enricher) *Store {
	return &Store{
		identity:    provider,
		books:       books,
		lookup:      lookup,
		enricher:    enricher,
		state:       State{Library: Library{Books: []entities.Book{}}},
		subscribers: make(map[int]func(State)),
	}
}

// Snapshot returns a copy of the current state.
func (s *Store) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Clone()
}

// Subscribe registers fn to receive a snapshot after every dispatched
// action. fn must not call Dispatch synchronously.
func (s *Store) Subscribe(fn func(State)) (unsubscribe func()) {
	s.subMu.Lock()
	id := s.nextSubID
	s.nextSubID++
	s.subscribers[id] = fn
	s.subMu.Unlock()

	return func() {
		s.subMu.Lock()
		delete(s.subscribers, id)
		s.subMu.Unlock()
	}
}

// Dispatch folds action into the state and notifies subscribers.
func (s *Store) Dispatch(action Action) {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	s.mu.Lock()
	if IsStale(s.state, action) {
		log.Printf("[STATE] Discarding %T from a previous session", action)
	}
	s.state = Reduce(s.state, action)
	snapshot := s.state.Clone()
	s.mu.Unlock()

	s.notify(snapshot)
}

// notify runs subscribers on a copy of the subscriber set. Callers hold
// notifyMu.
func (s *Store) notify(snapshot State) {
	s.subMu.Lock()
	subscribers := make([]func(State), 0, len(s.subscribers))
	for _, fn := range s.subscribers {
		subscribers = append(subscribers, fn)
	}
	s.subMu.Unlock()

	for _, fn := range subscribers {
		fn(snapshot.Clone())
	}
}

// requireSession rejects requests made while signed out.
func requireSession(st State) error {
	if !st.Session.SignedIn {
		return ErrNotSignedIn
	}
	return nil
}

// request stamps a Requested action with a fresh request id and the current
// epoch and dispatches it. The returned Meta must be copied into the
// matching outcome. It also returns the uid the request runs for. check,
// when set, sees the state under the same lock that stamps the request; if
// it fails nothing is dispatched.
func (s *Store) request(check func(State) error, build func(Meta) Action) (Meta, string, error) {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	s.mu.Lock()
	if check != nil {
		if err := check(s.state); err != nil {
			s.mu.Unlock()
			return Meta{}, "", err
		}
	}
	s.nextRequestID++
	meta := Meta{RequestID: s.nextRequestID, Epoch: s.state.Session.Epoch}
	uid := s.state.Session.UID()
	s.state = Reduce(s.state, build(meta))
	snapshot := s.state.Clone()
	s.mu.Unlock()

	s.notify(snapshot)
	return meta, uid, nil
}

// FetchBooks replaces the library with the store's current collection.
func (s *Store) FetchBooks(ctx context.Context) error {
	meta, uid, err := s.request(requireSession, func(m Meta) Action { return FetchBooksRequested{Meta: m} })
	if err != nil {
		return err
	}

	books, err := s.books.List(ctx, uid)
	if err != nil {
		s.Dispatch(FetchBooksRejected{Meta: meta, Err: err.Error()})
		return err
	}
	s.Dispatch(FetchBooksFulfilled{Meta: meta, Books: books})
	return nil
}

// AddBook creates book in the store and appends the stored record.
func (s *Store) AddBook(ctx context.Context, book entities.Book) (*entities.Book, error) {
	book.ID = ""
	check := func(st State) error {
		if err := requireSession(st); err != nil {
			return err
		}
		if _, exists := st.Library.FindByISBN(book.ISBN); exists {
			return ErrDuplicateISBN
		}
		return nil
	}
	meta, uid, err := s.request(check, func(m Meta) Action { return AddBookRequested{Meta: m, Book: book} })
	if err != nil {
		return nil, err
	}

	created, err := s.books.Create(ctx, uid, book)
	if err != nil {
		s.Dispatch(AddBookRejected{Meta: meta, Err: err.Error()})
		return nil, err
	}
	s.Dispatch(AddBookFulfilled{Meta: meta, Book: *created})
	return created, nil
}

// UpdateBook overwrites the stored record with book.ID. When two updates of
// the same book overlap, the one that completes last wins.
func (s *Store) UpdateBook(ctx context.Context, book entities.Book) (*entities.Book, error) {
	meta, uid, err := s.request(requireSession, func(m Meta) Action { return UpdateBookRequested{Meta: m, Book: book} })
	if err != nil {
		return nil, err
	}

	updated, err := s.books.Update(ctx, uid, book)
	if err != nil {
		s.Dispatch(UpdateBookRejected{Meta: meta, ID: book.ID, Err: err.Error()})
		return nil, err
	}
	s.Dispatch(UpdateBookFulfilled{Meta: meta, Book: *updated})
	return updated, nil
}

// DeleteBook removes the book. Deleting a book that is already gone
// succeeds.
func (s *Store) DeleteBook(ctx context.Context, id string) error {
	meta, uid, err := s.request(requireSession, func(m Meta) Action { return DeleteBookRequested{Meta: m, ID: id} })
	if err != nil {
		return err
	}

	if err := s.books.Delete(ctx, uid, id); err != nil {
		s.Dispatch(DeleteBookRejected{Meta: meta, ID: id, Err: err.Error()})
		return err
	}
	s.Dispatch(DeleteBookFulfilled{Meta: meta, ID: id})
	return nil
}

// SignIn authenticates and loads the user's library. A sign-in rejected by
// the provider returns its *identity.AuthError unchanged. If sign-in
// succeeds but the fetch fails, the session stays signed in and the fetch
// error is returned.
func (s *Store) SignIn(ctx context.Context, email, password string) error {
	return s.authenticate(ctx, func() (*identity.User, error) {
		return s.identity.SignIn(ctx, email, password)
	})
}

// SignUp creates an account, signs it in and loads its (empty) library.
func (s *Store) SignUp(ctx context.Context, email, password string) error {
	return s.authenticate(ctx, func() (*identity.User, error) {
		return s.identity.SignUp(ctx, email, password)
	})
}

func (s *Store) authenticate(ctx context.Context, call func() (*identity.User, error)) error {
	meta, _, _ := s.request(nil, func(m Meta) Action { return SignInRequested{Meta: m} })

	user, err := call()
	if err != nil {
		s.Dispatch(SignInRejected{Meta: meta, Err: err.Error()})
		return err
	}
	s.Dispatch(SignInFulfilled{Meta: meta, User: *user})

	if err := s.FetchBooks(ctx); err != nil {
		return fmt.Errorf("fetch books: %w", err)
	}
	return nil
}

// SignOut clears the session and library right away, then signs out of the
// provider. Outcomes of requests still in flight are discarded.
func (s *Store) SignOut(ctx context.Context) error {
	s.Dispatch(SignOutRequested{})
	return s.identity.SignOut(ctx)
}

// WatchIdentity follows provider-initiated sign-outs, such as a revoked
// session, by clearing local state.
func (s *Store) WatchIdentity(provider identity.Provider) (unsubscribe func()) {
	return provider.OnAuthStateChanged(func(user *identity.User) {
		if user == nil && s.signedIn() {
			s.Dispatch(SignOutRequested{})
		}
	})
}

// AddByISBN looks isbn up and adds the result. A failed lookup changes
// nothing.
func (s *Store) AddByISBN(ctx context.Context, isbn string) (*entities.Book, error) {
	book, err := s.lookup.LookupByISBN(ctx, isbn)
	if err != nil {
		return nil, err
	}
	return s.AddBook(ctx, *book)
}

// AddByTitle searches by title and optional author and adds the first hit.
func (s *Store) AddByTitle(ctx context.Context, title, author string) (*entities.Book, error) {
	book, err := s.lookup.SearchByTitle(ctx, title, author)
	if err != nil {
		return nil, err
	}
	return s.AddBook(ctx, *book)
}

// OpenDetails resolves display details for book and, when that added
// information to a stored record, writes the merged record back. The
// resolution is returned even if the write fails.
func (s *Store) OpenDetails(ctx context.Context, book entities.Book) (metadata.Resolution, error) {
	res := s.enricher.Resolve(ctx, book)
	if !res.Persist {
		return res, nil
	}

	updated, err := s.UpdateBook(ctx, res.Book)
	if err != nil {
		log.Printf("[STATE] Failed to save details for %s: %v", book.ID, err)
		return res, err
	}
	res.Book = *updated
	return res, nil
}

func (s *Store) signedIn() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Session.SignedIn
}
