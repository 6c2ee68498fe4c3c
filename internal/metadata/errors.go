package metadata

import (
	"errors"
	"fmt"
)

// ErrNotFound indicates the catalog has no usable record for the query.
var ErrNotFound = errors.New("book not found")

// ErrInvalidISBN is returned before any request is made when the ISBN is not
// 10 or 13 characters after normalization. It matches ErrNotFound.
var ErrInvalidISBN = fmt.Errorf("%w: invalid ISBN", ErrNotFound)

// ErrTitleRequired is returned by SearchByTitle for an empty title.
var ErrTitleRequired = errors.New("title is required")

// LookupError wraps a network or decoding failure while talking to the catalog.
type LookupError struct {
	Op  string
	Err error
}

func (e *LookupError) Error() string {
	return fmt.Sprintf("lookup %s: %v", e.Op, e.Err)
}

func (e *LookupError) Unwrap() error {
	return e.Err
}
