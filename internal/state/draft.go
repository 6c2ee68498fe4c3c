package state

import (
	"context"
	"errors"
	"sync"

	"github.com/mrlokans/spinestock/internal/entities"
)

// ErrDraftClosed is returned for lookups that complete after their draft
// was closed. Their results are dropped.
var ErrDraftClosed = errors.New("add-book draft was closed")

// Draft is one add-book session. Lookups started from it are not cancelled
// by Close, but whatever they find afterwards is never added.
type Draft struct {
	store *Store

	mu     sync.Mutex
	closed bool
}

// NewDraft opens a draft against s.
func (s *Store) NewDraft() *Draft {
	return &Draft{store: s}
}

// SubmitISBN looks isbn up and, if the draft is still open, adds the result.
func (d *Draft) SubmitISBN(ctx context.Context, isbn string) (*entities.Book, error) {
	if d.isClosed() {
		return nil, ErrDraftClosed
	}
	book, err := d.store.lookup.LookupByISBN(ctx, isbn)
	return d.finish(ctx, book, err)
}

// SubmitTitle searches by title and optional author and, if the draft is
// still open, adds the first hit.
func (d *Draft) SubmitTitle(ctx context.Context, title, author string) (*entities.Book, error) {
	if d.isClosed() {
		return nil, ErrDraftClosed
	}
	book, err := d.store.lookup.SearchByTitle(ctx, title, author)
	return d.finish(ctx, book, err)
}

// Close marks the draft closed. It is safe to call more than once.
func (d *Draft) Close() {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()
}

func (d *Draft) finish(ctx context.Context, book *entities.Book, err error) (*entities.Book, error) {
	if d.isClosed() {
		return nil, ErrDraftClosed
	}
	if err != nil {
		return nil, err
	}
	return d.store.AddBook(ctx, *book)
}

func (d *Draft) isClosed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed
}
