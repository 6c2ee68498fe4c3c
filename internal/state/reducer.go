package state

import (
	"github.com/mrlokans/spinestock/internal/entities"
)

// Reduce returns the state that results from applying action to s. It is
// pure: s is never modified and the result shares no slices with it.
//
// Outcomes (Fulfilled and Rejected actions) whose epoch differs from the
// current session epoch are ignored, so a response for a previous session
// can never leak into the current one.
func Reduce(s State, action Action) State {
	if IsStale(s, action) {
		return s.Clone()
	}

	next := s.Clone()
	lib := &next.Library

	switch a := action.(type) {
	case FetchBooksRequested:
		lib.Err = ""
		lib.Loading = true
	case FetchBooksFulfilled:
		lib.Books = cloneBooks(a.Books)
		lib.Loading = false
	case FetchBooksRejected:
		lib.Loading = false
		lib.Err = a.Err

	case AddBookRequested, UpdateBookRequested, DeleteBookRequested:
		lib.Err = ""
		lib.Pending++
	case AddBookFulfilled:
		lib.Books = append(lib.Books, a.Book)
		lib.Pending = settle(lib.Pending)
	case UpdateBookFulfilled:
		if i := indexOf(lib.Books, a.Book.ID); i >= 0 {
			lib.Books[i] = a.Book
		}
		lib.Pending = settle(lib.Pending)
	case DeleteBookFulfilled:
		if i := indexOf(lib.Books, a.ID); i >= 0 {
			lib.Books = append(lib.Books[:i], lib.Books[i+1:]...)
		}
		lib.Pending = settle(lib.Pending)
	case AddBookRejected:
		lib.Err = a.Err
		lib.Pending = settle(lib.Pending)
	case UpdateBookRejected:
		lib.Err = a.Err
		lib.Pending = settle(lib.Pending)
	case DeleteBookRejected:
		lib.Err = a.Err
		lib.Pending = settle(lib.Pending)

	case SignInRequested:
		lib.Err = ""
	case SignInFulfilled:
		user := a.User
		next = State{
			Session: Session{SignedIn: true, User: &user, Epoch: s.Session.Epoch + 1},
			Library: Library{Books: []entities.Book{}},
		}
	case SignInRejected:
		lib.Err = a.Err
	case SignOutRequested:
		next = State{
			Session: Session{Epoch: s.Session.Epoch + 1},
			Library: Library{Books: []entities.Book{}},
		}
	}

	return next
}

// IsStale reports whether action is the outcome of a request made under an
// earlier session. Reduce ignores stale actions.
func IsStale(s State, action Action) bool {
	var meta Meta
	switch a := action.(type) {
	case FetchBooksFulfilled:
		meta = a.Meta
	case FetchBooksRejected:
		meta = a.Meta
	case AddBookFulfilled:
		meta = a.Meta
	case AddBookRejected:
		meta = a.Meta
	case UpdateBookFulfilled:
		meta = a.Meta
	case UpdateBookRejected:
		meta = a.Meta
	case DeleteBookFulfilled:
		meta = a.Meta
	case DeleteBookRejected:
		meta = a.Meta
	case SignInRejected:
		meta = a.Meta
	default:
		return false
	}
	return meta.Epoch != s.Session.Epoch
}

func indexOf(books []entities.Book, id string) int {
	if id == "" {
		return -1
	}
	for i, b := range books {
		if b.ID == id {
			return i
		}
	}
	return -1
}

func settle(pending int) int {
	if pending > 0 {
		return pending - 1
	}
	return 0
}
