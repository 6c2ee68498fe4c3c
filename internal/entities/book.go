package entities

import (
	"time"
)

// Placeholders shown in place of metadata that could not be resolved.
const (
	UnknownTitle       = "Unknown Title"
	UnknownAuthor      = "Unknown Author"
	NoDescription      = "No description available."
	DetailsUnavailable = "Failed to load book details."
	UnknownValue       = "Unknown"
)

// Book is a single record in a user's collection. ID is assigned by the
// collection store on creation and is empty until then.
type Book struct {
	ID          string    `gorm:"primaryKey;size:36" json:"id,omitempty"`
	UserID      string    `gorm:"index;size:36" json:"-"`
	ISBN        string    `gorm:"index;size:20" json:"isbn,omitempty"`
	Title       string    `gorm:"size:512" json:"title"`
	Author      string    `gorm:"size:256" json:"author,omitempty"`
	CoverURL    string    `gorm:"size:2048" json:"coverUrl,omitempty"`
	Description string    `gorm:"type:text" json:"description,omitempty"`
	PublishDate string    `gorm:"size:64" json:"publishDate,omitempty"`
	PageCount   int       `json:"pageCount,omitempty"`
	CreatedAt   time.Time `json:"createdAt,omitempty"`
	UpdatedAt   time.Time `json:"updatedAt,omitempty"`

	// DetailsCheckedAt is when background enrichment last looked the book up
	// without finding a description. Server-side only.
	DetailsCheckedAt *time.Time `gorm:"index" json:"-"`
}

func (Book) TableName() string {
	return "books"
}

// IsPersisted reports whether the store has assigned the record an ID.
func (b *Book) IsPersisted() bool {
	return b.ID != ""
}

// IsPlaceholder reports whether s carries no real information: it is empty
// or one of the placeholder strings.
func IsPlaceholder(s string) bool {
	switch s {
	case "", UnknownTitle, UnknownAuthor, NoDescription, DetailsUnavailable, UnknownValue:
		return true
	}
	return false
}
