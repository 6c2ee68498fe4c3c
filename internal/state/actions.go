package state

import (
	"github.com/mrlokans/spinestock/internal/entities"
	"github.com/mrlokans/spinestock/internal/identity"
)

// Action is an event folded into State by Reduce.
type Action interface {
	isAction()
}

// Meta pairs a Requested action with its Fulfilled or Rejected outcome.
// Epoch is the session epoch at the time of the request.
type Meta struct {
	RequestID uint64
	Epoch     uint64
}

type (
	FetchBooksRequested struct{ Meta }
	FetchBooksFulfilled struct {
		Meta
		Books []entities.Book
	}
	FetchBooksRejected struct {
		Meta
		Err string
	}

	AddBookRequested struct {
		Meta
		Book entities.Book
	}
	AddBookFulfilled struct {
		Meta
		Book entities.Book
	}
	AddBookRejected struct {
		Meta
		Err string
	}

	UpdateBookRequested struct {
		Meta
		Book entities.Book
	}
	UpdateBookFulfilled struct {
		Meta
		Book entities.Book
	}
	UpdateBookRejected struct {
		Meta
		ID  string
		Err string
	}

	DeleteBookRequested struct {
		Meta
		ID string
	}
	DeleteBookFulfilled struct {
		Meta
		ID string
	}
	DeleteBookRejected struct {
		Meta
		ID  string
		Err string
	}

	SignInRequested struct{ Meta }
	SignInFulfilled struct {
		Meta
		User identity.User
	}
	SignInRejected struct {
		Meta
		Err string
	}

	SignOutRequested struct{}
)

func (FetchBooksRequested) isAction() {}
func (FetchBooksFulfilled) isAction() {}
func (FetchBooksRejected) isAction()  {}
func (AddBookRequested) isAction()    {}
func (AddBookFulfilled) isAction()    {}
func (AddBookRejected) isAction()     {}
func (UpdateBookRequested) isAction() {}
func (UpdateBookFulfilled) isAction() {}
func (UpdateBookRejected) isAction()  {}
func (DeleteBookRequested) isAction() {}
func (DeleteBookFulfilled) isAction() {}
func (DeleteBookRejected) isAction()  {}
func (SignInRequested) isAction()     {}
func (SignInFulfilled) isAction()     {}
func (SignInRejected) isAction()      {}
func (SignOutRequested) isAction()    {}
