package metadata

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/mrlokans/spinestock/internal/config"
	"github.com/mrlokans/spinestock/internal/entities"
)

// OpenLibraryClient looks books up in the OpenLibrary catalog. It never
// mutates anything remotely, so every call is safe to retry.
type OpenLibraryClient struct {
	httpClient  *http.Client
	baseURL     string
	coversURL   string
	userAgent   string
	rateLimiter *rateLimiter
}

type rateLimiter struct {
	mu       sync.Mutex
	lastCall time.Time
	interval time.Duration
}

func newRateLimiter(interval time.Duration) *rateLimiter {
	return &rateLimiter{interval: interval}
}

// wait blocks until the caller's turn or until ctx is done. Each caller
// reserves its slot under the lock and sleeps outside it, so concurrent
// callers queue up one interval apart.
func (r *rateLimiter) wait(ctx context.Context) error {
	r.mu.Lock()
	now := time.Now()
	slot := r.lastCall.Add(r.interval)
	if slot.Before(now) {
		slot = now
	}
	r.lastCall = slot
	r.mu.Unlock()

	delay := slot.Sub(now)
	if delay <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// NewOpenLibraryClient creates a new OpenLibrary API client with rate limiting.
func NewOpenLibraryClient(cfg config.Lookup) *OpenLibraryClient {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = config.DefaultLookupBaseURL
	}
	coversURL := cfg.CoversURL
	if coversURL == "" {
		coversURL = config.DefaultCoversBaseURL
	}
	userAgent := cfg.UserAgent
	if userAgent == "" {
		userAgent = config.DefaultUserAgent
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}

	return &OpenLibraryClient{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL:     strings.TrimRight(baseURL, "/"),
		coversURL:   strings.TrimRight(coversURL, "/"),
		userAgent:   userAgent,
		rateLimiter: newRateLimiter(cfg.MinInterval),
	}
}

// LookupByISBN fetches the edition for isbn and returns a partial record with
// title, first author, ISBN and a cover URL derived from the ISBN.
func (c *OpenLibraryClient) LookupByISBN(ctx context.Context, isbn string) (*entities.Book, error) {
	isbn = normalizeISBN(isbn)
	if isbn == "" {
		return nil, ErrInvalidISBN
	}

	var edition Edition
	if err := c.getJSON(ctx, "isbn", fmt.Sprintf("%s/isbn/%s.json", c.baseURL, isbn), &edition); err != nil {
		return nil, err
	}

	title := strings.TrimSpace(edition.Title)
	if entities.IsPlaceholder(title) {
		return nil, ErrNotFound
	}

	book := &entities.Book{
		Title:    title,
		ISBN:     isbn,
		CoverURL: c.ISBNCoverURL(isbn),
	}
	if len(edition.Authors) > 0 {
		book.Author = edition.Authors[0].Name
	}

	return book, nil
}

// SearchByTitle runs a catalog search and takes the first result only. The
// result must carry a title and a cover, otherwise ErrNotFound is returned.
func (c *OpenLibraryClient) SearchByTitle(ctx context.Context, title, author string) (*entities.Book, error) {
	title = strings.TrimSpace(title)
	author = strings.TrimSpace(author)
	if title == "" {
		return nil, ErrTitleRequired
	}

	params := url.Values{}
	params.Set("q", title)
	params.Set("limit", "1")
	params.Set("mode", "everything")
	if author != "" {
		params.Set("author", author)
	}

	var result searchResult
	if err := c.getJSON(ctx, "search", c.baseURL+"/search.json?"+params.Encode(), &result); err != nil {
		return nil, err
	}

	if len(result.Docs) == 0 {
		return nil, ErrNotFound
	}
	doc := result.Docs[0]

	if entities.IsPlaceholder(strings.TrimSpace(doc.Title)) {
		return nil, ErrNotFound
	}

	book := &entities.Book{Title: strings.TrimSpace(doc.Title)}
	if len(doc.AuthorName) > 0 {
		book.Author = doc.AuthorName[0]
	}
	if len(doc.ISBN) > 0 {
		book.ISBN = doc.ISBN[0]
	}

	switch {
	case doc.CoverI > 0:
		book.CoverURL = c.CoverIDURL(doc.CoverI)
	case book.ISBN != "":
		book.CoverURL = c.ISBNCoverURL(book.ISBN)
	default:
		return nil, ErrNotFound
	}

	return book, nil
}

// FetchEdition returns the raw edition payload for isbn.
func (c *OpenLibraryClient) FetchEdition(ctx context.Context, isbn string) (*Edition, error) {
	normalized := normalizeISBN(isbn)
	if normalized == "" {
		return nil, ErrInvalidISBN
	}

	var edition Edition
	if err := c.getJSON(ctx, "edition", fmt.Sprintf("%s/isbn/%s.json", c.baseURL, normalized), &edition); err != nil {
		return nil, err
	}
	return &edition, nil
}

// FetchAuthorName resolves an author key such as "/authors/OL34184A".
func (c *OpenLibraryClient) FetchAuthorName(ctx context.Context, authorKey string) (string, error) {
	if authorKey == "" {
		return "", fmt.Errorf("empty author key")
	}
	if !strings.HasPrefix(authorKey, "/") {
		authorKey = "/" + authorKey
	}

	var author struct {
		Name string `json:"name"`
	}
	if err := c.getJSON(ctx, "author", fmt.Sprintf("%s%s.json", c.baseURL, authorKey), &author); err != nil {
		return "", err
	}
	if author.Name == "" {
		return "", ErrNotFound
	}
	return author.Name, nil
}

// ISBNCoverURL builds the medium-size cover URL for an ISBN. The image itself
// is not checked for existence.
func (c *OpenLibraryClient) ISBNCoverURL(isbn string) string {
	return fmt.Sprintf("%s/b/isbn/%s-M.jpg", c.coversURL, isbn)
}

// CoverIDURL builds the medium-size cover URL for a catalog cover id.
func (c *OpenLibraryClient) CoverIDURL(coverID int) string {
	return fmt.Sprintf("%s/b/id/%d-M.jpg", c.coversURL, coverID)
}

// getJSON performs a rate-limited GET and decodes the body into out.
// A 404 maps to ErrNotFound; everything else that fails is a *LookupError.
func (c *OpenLibraryClient) getJSON(ctx context.Context, op, rawURL string, out any) error {
	if err := c.rateLimiter.wait(ctx); err != nil {
		return &LookupError{Op: op, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return &LookupError{Op: op, Err: fmt.Errorf("create request: %w", err)}
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &LookupError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return &LookupError{Op: op, Err: fmt.Errorf("unexpected status: %d", resp.StatusCode)}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &LookupError{Op: op, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

// normalizeISBN removes hyphens and spaces from ISBN.
func normalizeISBN(isbn string) string {
	isbn = strings.ReplaceAll(isbn, "-", "")
	isbn = strings.ReplaceAll(isbn, " ", "")
	isbn = strings.TrimSpace(isbn)

	// Basic validation: ISBN-10 or ISBN-13
	if len(isbn) != 10 && len(isbn) != 13 {
		return ""
	}

	return isbn
}

// OpenLibrary API response types

// Edition is the payload of /isbn/{isbn}.json.
type Edition struct {
	Key           string      `json:"key"`
	Title         string      `json:"title"`
	Authors       []AuthorRef `json:"authors"`
	Publishers    []string    `json:"publishers"`
	PublishDate   string      `json:"publish_date"`
	NumberOfPages int         `json:"number_of_pages"`
	Description   Description `json:"description"`
}

// AuthorRef is an entry of an edition's authors list. Editions normally
// carry only Key; some payloads inline Name.
type AuthorRef struct {
	Key  string `json:"key"`
	Name string `json:"name"`
}

// Description flattens the two shapes OpenLibrary uses for descriptions:
// a bare string, or an object {"type": "/type/text", "value": "..."}.
type Description string

func (d *Description) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*d = Description(s)
		return nil
	}

	var text struct {
		Value string `json:"value"`
	}
	if err := json.Unmarshal(data, &text); err == nil {
		*d = Description(text.Value)
		return nil
	}

	// Any other shape carries no usable text.
	*d = ""
	return nil
}

type searchResult struct {
	NumFound int         `json:"numFound"`
	Docs     []searchDoc `json:"docs"`
}

type searchDoc struct {
	Key        string   `json:"key"`
	Title      string   `json:"title"`
	AuthorName []string `json:"author_name"`
	ISBN       []string `json:"isbn"`
	CoverI     int      `json:"cover_i"`
}
