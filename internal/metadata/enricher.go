package metadata

import (
	"context"
	"log"
	"strconv"

	"github.com/mrlokans/spinestock/internal/entities"
)

// DetailsProvider fetches the extended metadata used for enrichment.
type DetailsProvider interface {
	FetchEdition(ctx context.Context, isbn string) (*Edition, error)
	FetchAuthorName(ctx context.Context, authorKey string) (string, error)
}

// Details is the display form of an enriched record. Every field is filled,
// with placeholders standing in for anything unknown.
type Details struct {
	Title       string `json:"title"`
	Author      string `json:"author"`
	Description string `json:"description"`
	PublishDate string `json:"publishDate"`
	PageCount   string `json:"pageCount"`
}

// Resolution is the outcome of resolving one record.
type Resolution struct {
	Details Details
	// Book is the input record with resolved fields merged in.
	Book entities.Book
	// Persist is true when Book differs from the input and the input has
	// already been stored. Unsaved records are never written back.
	Persist bool
	// Err is the lookup failure that forced placeholder details, if any.
	// It is informational; Resolve itself never fails.
	Err error
}

// Resolver augments minimal records with edition details and author names.
type Resolver struct {
	provider DetailsProvider
}

// NewResolver creates a Resolver backed by provider.
func NewResolver(provider DetailsProvider) *Resolver {
	return &Resolver{provider: provider}
}

// Resolve looks up book by its ISBN and merges what it finds. It never
// returns an error: failures degrade to placeholder details and leave the
// record as it was.
func (r *Resolver) Resolve(ctx context.Context, book entities.Book) Resolution {
	if book.ISBN == "" {
		return Resolution{Details: detailsOf(book), Book: book}
	}

	edition, err := r.provider.FetchEdition(ctx, book.ISBN)
	if err != nil {
		log.Printf("[ENRICH] Failed to load details for ISBN %s: %v", book.ISBN, err)
		return Resolution{Details: failedDetails(book), Book: book, Err: err}
	}

	resolved := entities.Book{
		Title:       edition.Title,
		Author:      r.resolveAuthor(ctx, edition),
		Description: string(edition.Description),
		PublishDate: edition.PublishDate,
		PageCount:   edition.NumberOfPages,
	}

	merged := Merge(book, resolved)
	return Resolution{
		Details: detailsOf(merged),
		Book:    merged,
		Persist: book.IsPersisted() && changed(book, merged),
	}
}

// resolveAuthor follows the first author key to a human-readable name.
// A failed secondary lookup yields "" so Merge falls back to the record.
func (r *Resolver) resolveAuthor(ctx context.Context, edition *Edition) string {
	if len(edition.Authors) == 0 {
		return ""
	}
	ref := edition.Authors[0]
	if ref.Key == "" {
		return ref.Name
	}

	name, err := r.provider.FetchAuthorName(ctx, ref.Key)
	if err != nil {
		log.Printf("[ENRICH] Failed to resolve author %s: %v", ref.Key, err)
		return ref.Name
	}
	return name
}

// Merge folds resolved into base field by field. A resolved value is taken
// only if it carries information; otherwise a known base value is kept;
// otherwise the field gets its placeholder. A known value is therefore never
// replaced by a placeholder.
func Merge(base, resolved entities.Book) entities.Book {
	merged := base
	merged.Title = firstKnown(entities.UnknownTitle, resolved.Title, base.Title)
	merged.Author = firstKnown(entities.UnknownAuthor, resolved.Author, base.Author)
	merged.Description = firstKnown(entities.NoDescription, resolved.Description, base.Description)
	merged.PublishDate = firstKnown(entities.UnknownValue, resolved.PublishDate, base.PublishDate)
	if resolved.PageCount > 0 {
		merged.PageCount = resolved.PageCount
	}
	return merged
}

func firstKnown(placeholder string, values ...string) string {
	for _, v := range values {
		if !entities.IsPlaceholder(v) {
			return v
		}
	}
	return placeholder
}

func changed(before, after entities.Book) bool {
	return before.Title != after.Title ||
		before.Author != after.Author ||
		before.Description != after.Description ||
		before.PublishDate != after.PublishDate ||
		before.PageCount != after.PageCount
}

func detailsOf(book entities.Book) Details {
	return Details{
		Title:       firstKnown(entities.UnknownTitle, book.Title),
		Author:      firstKnown(entities.UnknownAuthor, book.Author),
		Description: firstKnown(entities.NoDescription, book.Description),
		PublishDate: firstKnown(entities.UnknownValue, book.PublishDate),
		PageCount:   pageCountText(book.PageCount),
	}
}

func failedDetails(book entities.Book) Details {
	d := detailsOf(book)
	if entities.IsPlaceholder(book.Description) {
		d.Description = entities.DetailsUnavailable
	}
	return d
}

func pageCountText(n int) string {
	if n <= 0 {
		return entities.UnknownValue
	}
	return strconv.Itoa(n)
}
