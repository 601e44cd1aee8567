package upstream

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/hcbookstore/storefront/internal/domain/catalog"
)

var _ catalog.Catalog = (*Client)(nil)

// GetBook returns the book with the given code, or nil when it does not exist.
func (c *Client) GetBook(ctx context.Context, code string) (*catalog.Book, error) {
	var b catalog.Book
	err := c.getData(ctx, request{method: http.MethodGet, path: "/books/" + url.PathEscape(code)}, func(d *jx.Decoder) error {
		return decodeBook(d, &b)
	})
	var se *StatusError
	switch {
	case errors.As(err, &se) && se.StatusCode == http.StatusNotFound, errors.Is(err, ErrNoData):
		return nil, nil
	case err != nil:
		return nil, errors.Wrap(err, "get book")
	}
	return &b, nil
}

// ListBooks returns one page of the catalog. The API answers either with a
// bare array or with a {books, pagination} object.
func (c *Client) ListBooks(ctx context.Context, page, size int) (*catalog.Page, error) {
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("size", strconv.Itoa(size))

	var out catalog.Page
	err := c.getData(ctx, request{method: http.MethodGet, path: "/books", query: q}, func(d *jx.Decoder) error {
		if d.Next() == jx.Array {
			return decodeBooks(d, &out.Books)
		}
		return readObject(d, func(d *jx.Decoder, key string) error {
			switch key {
			case "books", "content":
				return decodeBooks(d, &out.Books)
			case "pagination":
				return decodePagination(d, &out.Pagination)
			default:
				return d.Skip()
			}
		})
	})
	if err != nil && !errors.Is(err, ErrNoData) {
		return nil, errors.Wrap(err, "list books")
	}
	if out.Books == nil {
		out.Books = []catalog.Book{}
	}
	if out.Pagination.PageSize == 0 {
		out.Pagination = singlePage(page, size, len(out.Books))
	}
	return &out, nil
}

// Search runs a filtered catalog search. An empty reply yields an empty
// result on page 1.
func (c *Client) Search(ctx context.Context, req catalog.SearchRequest) (*catalog.SearchResult, error) {
	q := url.Values{}
	if req.Query != "" {
		q.Set("q", req.Query)
	}
	for _, v := range req.Genres {
		q.Add("genre", v)
	}
	for _, v := range req.Languages {
		q.Add("language", v)
	}
	for _, v := range req.Formats {
		q.Add("format", v)
	}
	if req.MinPrice != nil {
		q.Set("minPrice", strconv.FormatInt(int64(*req.MinPrice), 10))
	}
	if req.MaxPrice != nil {
		q.Set("maxPrice", strconv.FormatInt(int64(*req.MaxPrice), 10))
	}
	for _, v := range req.Cities {
		q.Add("city", v)
	}
	if req.Page > 0 {
		q.Set("page", strconv.Itoa(req.Page))
	}
	if req.Size > 0 {
		q.Set("size", strconv.Itoa(req.Size))
	}
	if req.Sort != "" {
		q.Set("sort", req.Sort)
	}

	out := catalog.SearchResult{Facets: map[string][]catalog.Facet{}}
	err := c.getData(ctx, request{method: http.MethodGet, path: "/books/search", query: q}, func(d *jx.Decoder) error {
		return readObject(d, func(d *jx.Decoder, key string) error {
			switch key {
			case "books":
				return decodeBooks(d, &out.Books)
			case "facets":
				return decodeFacets(d, out.Facets)
			case "pagination":
				return decodePagination(d, &out.Pagination)
			case "fallbackused":
				v, err := readBool(d)
				out.FallbackUsed = v
				return err
			default:
				return d.Skip()
			}
		})
	})
	if errors.Is(err, ErrNoData) {
		return &catalog.SearchResult{
			Books:      []catalog.Book{},
			Facets:     map[string][]catalog.Facet{},
			Pagination: catalog.Pagination{CurrentPage: 1, PageSize: 20},
		}, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "search books")
	}
	if out.Books == nil {
		out.Books = []catalog.Book{}
	}
	return &out, nil
}

// Suggest returns title suggestions for prefix.
func (c *Client) Suggest(ctx context.Context, prefix string, limit int) ([]string, error) {
	q := url.Values{}
	q.Set("q", prefix)
	q.Set("limit", strconv.Itoa(limit))

	var out []string
	err := c.getData(ctx, request{method: http.MethodGet, path: "/books/search/suggest", query: q}, func(d *jx.Decoder) error {
		return readObject(d, func(d *jx.Decoder, key string) error {
			if key != "suggestions" {
				return d.Skip()
			}
			s, err := readStrings(d)
			out = s
			return err
		})
	})
	if err != nil && !errors.Is(err, ErrNoData) {
		return nil, errors.Wrap(err, "suggest")
	}
	if out == nil {
		out = []string{}
	}
	return out, nil
}

// ListAuthors returns one page of authors.
func (c *Client) ListAuthors(ctx context.Context, page, size int) (*catalog.AuthorPage, error) {
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("size", strconv.Itoa(size))

	out := catalog.AuthorPage{Authors: []catalog.Author{}}
	err := c.getData(ctx, request{method: http.MethodGet, path: "/books/authors", query: q}, func(d *jx.Decoder) error {
		if d.Next() == jx.Array {
			return decodeAuthors(d, &out.Authors)
		}
		return readObject(d, func(d *jx.Decoder, key string) error {
			switch key {
			case "authors", "content":
				return decodeAuthors(d, &out.Authors)
			case "pagination":
				return decodePagination(d, &out.Pagination)
			default:
				return d.Skip()
			}
		})
	})
	if err != nil && !errors.Is(err, ErrNoData) {
		return nil, errors.Wrap(err, "list authors")
	}
	if out.Pagination.PageSize == 0 {
		out.Pagination = singlePage(page, size, len(out.Authors))
	}
	return &out, nil
}

// BooksByAuthor returns one page of an author's books, or nil when the
// author does not exist. The profile is read from an "author" object or
// from name, biography and avatar fields next to the books.
func (c *Client) BooksByAuthor(ctx context.Context, authorID int64, page, size int) (*catalog.AuthorBooks, error) {
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("size", strconv.Itoa(size))

	out := catalog.AuthorBooks{Books: []catalog.Book{}}
	profile := catalog.Author{ID: authorID}
	var hasProfile bool
	path := "/books/authors/" + strconv.FormatInt(authorID, 10) + "/books"
	err := c.getData(ctx, request{method: http.MethodGet, path: path, query: q}, func(d *jx.Decoder) error {
		if d.Next() == jx.Array {
			return decodeBooks(d, &out.Books)
		}
		return readObject(d, func(d *jx.Decoder, key string) error {
			var err error
			switch key {
			case "books", "content":
				err = decodeBooks(d, &out.Books)
			case "pagination":
				err = decodePagination(d, &out.Pagination)
			case "author":
				hasProfile = true
				err = decodeAuthor(d, &profile)
			case "name":
				hasProfile = true
				profile.Name, err = readString(d)
			case "biography":
				hasProfile = true
				profile.Biography, err = readString(d)
			case "avatar":
				hasProfile = true
				profile.Image.URL, err = readString(d)
			default:
				err = d.Skip()
			}
			return errors.Wrap(err, key)
		})
	})
	var se *StatusError
	switch {
	case errors.As(err, &se) && se.StatusCode == http.StatusNotFound, errors.Is(err, ErrNoData):
		return nil, nil
	case err != nil:
		return nil, errors.Wrap(err, "books by author")
	}
	if hasProfile {
		out.Author = &profile
	}
	if out.Pagination.PageSize == 0 {
		out.Pagination = singlePage(page, size, len(out.Books))
	}
	return &out, nil
}

// singlePage describes a reply that carried no pagination.
func singlePage(page, size, n int) catalog.Pagination {
	return catalog.Pagination{CurrentPage: page, PageSize: size, TotalResults: n, TotalPages: 1}
}

func decodeAuthors(d *jx.Decoder, out *[]catalog.Author) error {
	authors := []catalog.Author{}
	if err := readArray(d, func(d *jx.Decoder) error {
		var a catalog.Author
		if err := decodeAuthor(d, &a); err != nil {
			return err
		}
		authors = append(authors, a)
		return nil
	}); err != nil {
		return errors.Wrap(err, "authors")
	}
	*out = authors
	return nil
}

func decodeAuthor(d *jx.Decoder, a *catalog.Author) error {
	return readObject(d, func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "id", "authorid":
			a.ID, err = readInt64(d)
		case "name":
			a.Name, err = readString(d)
		case "biography", "bio":
			a.Biography, err = readString(d)
		case "image":
			err = decodeImage(d, &a.Image)
		case "avatar", "photourl":
			a.Image.URL, err = readString(d)
		default:
			err = d.Skip()
		}
		return errors.Wrap(err, key)
	})
}

func decodeBooks(d *jx.Decoder, out *[]catalog.Book) error {
	books := []catalog.Book{}
	if err := readArray(d, func(d *jx.Decoder) error {
		var b catalog.Book
		if err := decodeBook(d, &b); err != nil {
			return err
		}
		books = append(books, b)
		return nil
	}); err != nil {
		return errors.Wrap(err, "books")
	}
	*out = books
	return nil
}

func decodeBook(d *jx.Decoder, b *catalog.Book) error {
	return readObject(d, func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "code":
			b.Code, err = readString(d)
		case "title":
			b.Title, err = readString(d)
		case "authors":
			b.Authors, err = decodePeople(d)
		case "translators":
			b.Translators, err = decodePeople(d)
		case "edition":
			b.Edition, err = readInt(d)
		case "publisher":
			b.Publisher, err = decodeNamed(d)
		case "publicationdate":
			b.PublicationDate, err = readString(d)
		case "language":
			b.Language, err = readString(d)
		case "pagecount":
			b.PageCount, err = readInt(d)
		case "description":
			b.Description, err = readString(d)
		case "images":
			b.Images, err = decodeImages(d)
		case "hasphysicaledition":
			b.HasPhysicalEdition, err = readBool(d)
		case "haselectricedition", "haselectronicedition":
			b.HasElectronicEdition, err = readBool(d)
		case "physicalprice", "price":
			b.PhysicalPrice, err = readVND(d)
		case "electronicprice", "electricprice":
			b.ElectronicPrice, err = readVND(d)
		default:
			err = d.Skip()
		}
		return errors.Wrap(err, key)
	})
}

// decodeNamed reads either a plain string or an object's name field.
func decodeNamed(d *jx.Decoder) (string, error) {
	if d.Next() != jx.Object {
		return readString(d)
	}
	var name string
	err := readObject(d, func(d *jx.Decoder, key string) error {
		if key != "name" {
			return d.Skip()
		}
		var err error
		name, err = readString(d)
		return err
	})
	return name, err
}

func decodePeople(d *jx.Decoder) ([]catalog.Person, error) {
	var out []catalog.Person
	err := readArray(d, func(d *jx.Decoder) error {
		var p catalog.Person
		if d.Next() == jx.String {
			name, err := d.Str()
			out = append(out, catalog.Person{Name: name})
			return err
		}
		if err := readObject(d, func(d *jx.Decoder, key string) error {
			var err error
			switch key {
			case "name":
				p.Name, err = readString(d)
			case "biography":
				p.Biography, err = readString(d)
			case "photourl":
				p.PhotoURL, err = readString(d)
			case "nationality":
				p.Nationality, err = readString(d)
			default:
				err = d.Skip()
			}
			return err
		}); err != nil {
			return err
		}
		out = append(out, p)
		return nil
	})
	return out, err
}

func decodeImages(d *jx.Decoder) ([]catalog.Image, error) {
	var out []catalog.Image
	err := readArray(d, func(d *jx.Decoder) error {
		var img catalog.Image
		if err := decodeImage(d, &img); err != nil {
			return err
		}
		out = append(out, img)
		return nil
	})
	return out, err
}

func decodeImage(d *jx.Decoder, img *catalog.Image) error {
	return readObject(d, func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "url":
			img.URL, err = readString(d)
		case "alttext":
			img.AltText, err = readString(d)
		case "iscover":
			img.IsCover, err = readBool(d)
		default:
			err = d.Skip()
		}
		return err
	})
}

func decodePagination(d *jx.Decoder, p *catalog.Pagination) error {
	return readObject(d, func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "currentpage":
			p.CurrentPage, err = readInt(d)
		case "pagesize":
			p.PageSize, err = readInt(d)
		case "totalresults":
			p.TotalResults, err = readInt(d)
		case "totalpages":
			p.TotalPages, err = readInt(d)
		case "hasnext":
			p.HasNext, err = readBool(d)
		case "hasprevious":
			p.HasPrevious, err = readBool(d)
		default:
			err = d.Skip()
		}
		return err
	})
}

func decodeFacets(d *jx.Decoder, out map[string][]catalog.Facet) error {
	if d.Next() == jx.Null {
		return d.Null()
	}
	return d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		name := string(key)
		facets := []catalog.Facet{}
		if err := readArray(d, func(d *jx.Decoder) error {
			var f catalog.Facet
			if err := readObject(d, func(d *jx.Decoder, key string) error {
				var err error
				switch key {
				case "value":
					f.Value, err = readString(d)
				case "count":
					f.Count, err = readInt(d)
				default:
					err = d.Skip()
				}
				return err
			}); err != nil {
				return err
			}
			facets = append(facets, f)
			return nil
		}); err != nil {
			return err
		}
		out[name] = facets
		return nil
	})
}
