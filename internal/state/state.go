// Package state holds the client's session and library and the pure
// reducer that moves them between states. All writes go through Store.
package state

import (
	"github.com/mrlokans/spinestock/internal/entities"
	"github.com/mrlokans/spinestock/internal/identity"
)

// Session is who is signed in. Epoch increases on every sign-in and
// sign-out; results of requests issued under an older epoch are dropped.
type Session struct {
	SignedIn bool
	User     *identity.User
	Epoch    uint64
}

// UID returns the signed-in uid or "".
func (s Session) UID() string {
	if s.User == nil {
		return ""
	}
	return s.User.UID
}

// Library is the signed-in user's collection as last confirmed by the
// store, plus request bookkeeping.
type Library struct {
	Books []entities.Book
	// Loading is true while a fetch is in flight.
	Loading bool
	// Pending counts in-flight add, update and delete requests.
	Pending int
	// Err is the message of the last rejected request, cleared by the next
	// request of any kind.
	Err string
}

// Find returns the first book with id.
func (l Library) Find(id string) (entities.Book, bool) {
	for _, b := range l.Books {
		if b.ID == id {
			return b, true
		}
	}
	return entities.Book{}, false
}

// FindByISBN returns the first book with isbn. An empty isbn never matches.
func (l Library) FindByISBN(isbn string) (entities.Book, bool) {
	if isbn == "" {
		return entities.Book{}, false
	}
	for _, b := range l.Books {
		if b.ISBN == isbn {
			return b, true
		}
	}
	return entities.Book{}, false
}

// State is everything Reduce operates on.
type State struct {
	Session Session
	Library Library
}

// Clone returns a deep copy that shares nothing with s.
func (s State) Clone() State {
	c := s
	if s.Session.User != nil {
		u := *s.Session.User
		c.Session.User = &u
	}
	c.Library.Books = cloneBooks(s.Library.Books)
	return c
}

func cloneBooks(books []entities.Book) []entities.Book {
	out := make([]entities.Book, len(books))
	copy(out, books)
	return out
}
