// Package collection reads and writes a user's book documents in the remote
// store. Adapters never touch local state; callers fold results in.
package collection

import (
	"context"
	"errors"
	"fmt"

	"github.com/mrlokans/spinestock/internal/entities"
)

var (
	// ErrNotFound is returned by Update when the document no longer exists.
	ErrNotFound = errors.New("book not found in collection")
	// ErrInvalidBook is returned for a create without a title or an update
	// without an id.
	ErrInvalidBook = errors.New("invalid book")
)

// Store is a per-user book collection. Every call is scoped by userID.
type Store interface {
	// List returns the user's full collection in store-defined order.
	List(ctx context.Context, userID string) ([]entities.Book, error)
	// Create stores book and returns it with the id the store assigned.
	Create(ctx context.Context, userID string, book entities.Book) (*entities.Book, error)
	// Update overwrites the document with book.ID. It checks existence first
	// and returns ErrNotFound when the document is gone.
	Update(ctx context.Context, userID string, book entities.Book) (*entities.Book, error)
	// Delete removes the document. Deleting a missing id succeeds.
	Delete(ctx context.Context, userID, id string) error
}

// StoreError reports a failed store call. Status is the HTTP status for
// remote adapters and zero otherwise.
type StoreError struct {
	Op     string
	Status int
	Err    error
}

func (e *StoreError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("collection %s: status %d: %v", e.Op, e.Status, e.Err)
	}
	return fmt.Sprintf("collection %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}
