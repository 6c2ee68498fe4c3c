package tasks

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/mrlokans/spinestock/internal/audit"
	"github.com/mrlokans/spinestock/internal/entities"
	"github.com/mrlokans/spinestock/internal/metadata"
)

// BookStore is the slice of collection.GormStore that enrichment needs.
type BookStore interface {
	Get(ctx context.Context, userID, id string) (*entities.Book, error)
	Update(ctx context.Context, userID string, book entities.Book) (*entities.Book, error)
	ListMissingDetails(ctx context.Context, limit int) ([]entities.Book, error)
	MarkDetailsChecked(ctx context.Context, userID, id string) error
}

// Resolver resolves details for a stored record.
type Resolver interface {
	Resolve(ctx context.Context, book entities.Book) metadata.Resolution
}

// Enricher writes resolved details back into stored books.
type Enricher struct {
	books       BookStore
	resolver    Resolver
	concurrency int
	audit       *audit.Service
}

// SweepResult summarizes one EnrichMissing run.
type SweepResult struct {
	Total    int
	Enriched int
	Skipped  int
	Failed   int
}

func NewEnricher(books BookStore, resolver Resolver, concurrency int) *Enricher {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Enricher{books: books, resolver: resolver, concurrency: concurrency}
}

// SetAuditLog records every write and failed lookup to a.
func (e *Enricher) SetAuditLog(a *audit.Service) {
	e.audit = a
}

// EnrichBook resolves one stored book and saves the merged record when the
// resolver found something new. It reports whether the book was written.
// A catalog miss is not an error; transport failures are, so the queue
// retries them.
func (e *Enricher) EnrichBook(ctx context.Context, userID, bookID string) (bool, error) {
	book, err := e.books.Get(ctx, userID, bookID)
	if err != nil {
		return false, fmt.Errorf("load book %s: %w", bookID, err)
	}
	return e.apply(ctx, *book)
}

// EnrichMissing runs EnrichBook over up to limit books that have an ISBN
// but no description, a few at a time. Individual failures are counted,
// not returned.
func (e *Enricher) EnrichMissing(ctx context.Context, limit int) (SweepResult, error) {
	books, err := e.books.ListMissingDetails(ctx, limit)
	if err != nil {
		return SweepResult{}, fmt.Errorf("list books missing details: %w", err)
	}

	var (
		mu     sync.Mutex
		result = SweepResult{Total: len(books)}
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)

	for _, book := range books {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			written, err := e.apply(gctx, book)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err != nil:
				log.Printf("[ENRICH] Book %s (%s): %v", book.ID, book.Title, err)
				result.Failed++
			case written:
				result.Enriched++
			default:
				result.Skipped++
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return result, err
	}
	return result, nil
}

func (e *Enricher) apply(ctx context.Context, book entities.Book) (bool, error) {
	res := e.resolver.Resolve(ctx, book)
	if res.Err != nil && !errors.Is(res.Err, metadata.ErrNotFound) {
		e.audit.LogEnrich(book.UserID, book.ID, res.Err)
		return false, res.Err
	}
	if !res.Persist {
		e.markChecked(ctx, book)
		return false, nil
	}
	saved, err := e.books.Update(ctx, book.UserID, res.Book)
	if err != nil {
		err = fmt.Errorf("save book %s: %w", book.ID, err)
		e.audit.LogEnrich(book.UserID, book.ID, err)
		return false, err
	}
	e.audit.LogEnrich(book.UserID, book.ID, nil)
	if saved.Description == "" {
		e.markChecked(ctx, book)
	}
	return true, nil
}

// markChecked keeps a book the catalog cannot describe from holding its
// place at the head of every sweep.
func (e *Enricher) markChecked(ctx context.Context, book entities.Book) {
	if err := e.books.MarkDetailsChecked(ctx, book.UserID, book.ID); err != nil {
		log.Printf("[ENRICH] Failed to mark book %s as checked: %v", book.ID, err)
	}
}
