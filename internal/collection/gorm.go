package collection

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mrlokans/spinestock/internal/entities"
)

// bookColumns are the fields a client may write.
var bookColumns = []string{"isbn", "title", "author", "cover_url", "description", "publish_date", "page_count"}

// GormStore keeps book documents in the server database.
type GormStore struct {
	db *gorm.DB
}

var _ Store = (*GormStore)(nil)

// NewGormStore creates a store on top of an open, migrated database.
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) List(ctx context.Context, userID string) ([]entities.Book, error) {
	books := []entities.Book{}
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at ASC, id ASC").
		Find(&books).Error
	if err != nil {
		return nil, &StoreError{Op: "list", Err: err}
	}
	return books, nil
}

func (s *GormStore) Create(ctx context.Context, userID string, book entities.Book) (*entities.Book, error) {
	if strings.TrimSpace(book.Title) == "" {
		return nil, ErrInvalidBook
	}

	book.ID = uuid.NewString()
	book.UserID = userID
	if err := s.db.WithContext(ctx).Create(&book).Error; err != nil {
		return nil, &StoreError{Op: "create", Err: err}
	}
	return &book, nil
}

func (s *GormStore) Update(ctx context.Context, userID string, book entities.Book) (*entities.Book, error) {
	if book.ID == "" {
		return nil, ErrInvalidBook
	}

	existing, err := s.Get(ctx, userID, book.ID)
	if err != nil {
		return nil, err
	}

	// A new ISBN puts the book back at the front of the enrichment sweep
	columns := bookColumns
	if book.ISBN != existing.ISBN {
		columns = append(append([]string{}, bookColumns...), "details_checked_at")
	}

	err = s.db.WithContext(ctx).Model(existing).Select(columns).Updates(&entities.Book{
		ISBN:        book.ISBN,
		Title:       book.Title,
		Author:      book.Author,
		CoverURL:    book.CoverURL,
		Description: book.Description,
		PublishDate: book.PublishDate,
		PageCount:   book.PageCount,
	}).Error
	if err != nil {
		return nil, &StoreError{Op: "update", Err: err}
	}

	return s.Get(ctx, userID, book.ID)
}

func (s *GormStore) Delete(ctx context.Context, userID, id string) error {
	err := s.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		Delete(&entities.Book{}).Error
	if err != nil {
		return &StoreError{Op: "delete", Err: err}
	}
	return nil
}

// Get returns one document or ErrNotFound.
func (s *GormStore) Get(ctx context.Context, userID, id string) (*entities.Book, error) {
	var book entities.Book
	err := s.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).First(&book).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, &StoreError{Op: "get", Err: err}
	}
	return &book, nil
}

// ListMissingDetails returns books across all users that have an ISBN but no
// description yet. Books never checked come first, oldest first, followed by
// the ones checked longest ago. A limit of zero or less means no limit.
func (s *GormStore) ListMissingDetails(ctx context.Context, limit int) ([]entities.Book, error) {
	var books []entities.Book
	query := s.db.WithContext(ctx).
		Where("isbn <> '' AND (description = '' OR description IS NULL)").
		Order("details_checked_at IS NOT NULL, details_checked_at ASC, created_at ASC, id ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&books).Error; err != nil {
		return nil, &StoreError{Op: "list", Err: err}
	}
	return books, nil
}

// MarkDetailsChecked records that a lookup for the book found no
// description, moving it behind unchecked books in ListMissingDetails.
func (s *GormStore) MarkDetailsChecked(ctx context.Context, userID, id string) error {
	err := s.db.WithContext(ctx).
		Model(&entities.Book{}).
		Where("id = ? AND user_id = ?", id, userID).
		UpdateColumn("details_checked_at", time.Now().UTC()).Error
	if err != nil {
		return &StoreError{Op: "mark checked", Err: err}
	}
	return nil
}
