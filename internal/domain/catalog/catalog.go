package catalog

import (
	"context"

	"github.com/hcbookstore/storefront/internal/domain/money"
)

// Book is the catalog's display model of a title.
type Book struct {
	Code            string
	Title           string
	Authors         []Person
	Translators     []Person
	Edition         int
	Publisher       string
	PublicationDate string
	Language        string
	PageCount       int
	Description     string
	Images          []Image

	HasPhysicalEdition   bool
	HasElectronicEdition bool

	// Prices are zero when the catalog did not quote one.
	PhysicalPrice   money.VND
	ElectronicPrice money.VND
}

// Person is an author or translator credit.
type Person struct {
	Name        string
	Biography   string
	PhotoURL    string
	Nationality string
}

// Image is a book image; one of them is normally the cover.
type Image struct {
	URL     string
	AltText string
	IsCover bool
}

// CoverURL returns the cover image URL, falling back to the first image.
func (b *Book) CoverURL() string {
	for _, img := range b.Images {
		if img.IsCover {
			return img.URL
		}
	}
	if len(b.Images) > 0 {
		return b.Images[0].URL
	}
	return ""
}

// AuthorNames returns the authors' display names.
func (b *Book) AuthorNames() []string {
	if len(b.Authors) == 0 {
		return nil
	}
	names := make([]string, len(b.Authors))
	for i, a := range b.Authors {
		names[i] = a.Name
	}
	return names
}

// Pagination describes one page of a paged listing.
type Pagination struct {
	CurrentPage  int
	PageSize     int
	TotalResults int
	TotalPages   int
	HasNext      bool
	HasPrevious  bool
}

// Page is one page of books.
type Page struct {
	Books      []Book
	Pagination Pagination
}

// Author is an author profile of the catalog.
type Author struct {
	ID        int64
	Name      string
	Biography string
	Image     Image
}

// AuthorPage is one page of authors.
type AuthorPage struct {
	Authors    []Author
	Pagination Pagination
}

// AuthorBooks is one page of an author's books. Author is nil when the
// catalog did not send the profile along.
type AuthorBooks struct {
	Author     *Author
	Books      []Book
	Pagination Pagination
}

// SearchRequest holds search filters. Zero values are omitted from the query.
type SearchRequest struct {
	Query     string
	Genres    []string
	Languages []string
	Formats   []string
	Cities    []string
	MinPrice  *money.VND
	MaxPrice  *money.VND
	Page      int
	Size      int
	Sort      string
}

// Facet is one facet bucket of a search response.
type Facet struct {
	Value string
	Count int
}

// SearchResult is a page of search hits with facet counts.
type SearchResult struct {
	Books        []Book
	Facets       map[string][]Facet
	Pagination   Pagination
	FallbackUsed bool
}

// Catalog is the remote catalog API.
type Catalog interface {
	// GetBook returns nil without error when the code is unknown.
	GetBook(ctx context.Context, code string) (*Book, error)
	ListBooks(ctx context.Context, page, size int) (*Page, error)
	Search(ctx context.Context, req SearchRequest) (*SearchResult, error)
	Suggest(ctx context.Context, prefix string, limit int) ([]string, error)
	ListAuthors(ctx context.Context, page, size int) (*AuthorPage, error)
	// BooksByAuthor returns nil without error when the author is unknown.
	BooksByAuthor(ctx context.Context, authorID int64, page, size int) (*AuthorBooks, error)
}
