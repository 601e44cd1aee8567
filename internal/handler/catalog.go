package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/hcbookstore/storefront/internal/domain/catalog"
	"github.com/hcbookstore/storefront/internal/domain/money"
)

type personJSON struct {
	Name        string `json:"name"`
	Biography   string `json:"biography,omitempty"`
	PhotoURL    string `json:"photoUrl,omitempty"`
	Nationality string `json:"nationality,omitempty"`
}

type imageJSON struct {
	URL     string `json:"url"`
	AltText string `json:"altText,omitempty"`
	IsCover bool   `json:"isCover"`
}

type bookJSON struct {
	Code                 string       `json:"code"`
	Title                string       `json:"title"`
	Authors              []personJSON `json:"authors"`
	Translators          []personJSON `json:"translators,omitempty"`
	Edition              int          `json:"edition,omitempty"`
	Publisher            string       `json:"publisher,omitempty"`
	PublicationDate      string       `json:"publicationDate,omitempty"`
	Language             string       `json:"language,omitempty"`
	PageCount            int          `json:"pageCount,omitempty"`
	Description          string       `json:"description,omitempty"`
	Images               []imageJSON  `json:"images"`
	CoverURL             string       `json:"coverUrl,omitempty"`
	HasPhysicalEdition   bool         `json:"hasPhysicalEdition"`
	HasElectronicEdition bool         `json:"hasElectronicEdition"`
	PhysicalPrice        money.VND    `json:"physicalPrice,omitempty"`
	ElectronicPrice      money.VND    `json:"electronicPrice,omitempty"`
}

type paginationJSON struct {
	CurrentPage  int  `json:"currentPage"`
	PageSize     int  `json:"pageSize"`
	TotalResults int  `json:"totalResults"`
	TotalPages   int  `json:"totalPages"`
	HasNext      bool `json:"hasNext"`
	HasPrevious  bool `json:"hasPrevious"`
}

type authorJSON struct {
	ID        int64      `json:"id"`
	Name      string     `json:"name"`
	Biography string     `json:"biography,omitempty"`
	Image     *imageJSON `json:"image,omitempty"`
}

func authorResponse(a catalog.Author) authorJSON {
	out := authorJSON{ID: a.ID, Name: a.Name, Biography: a.Biography}
	if a.Image.URL != "" {
		img := imageJSON(a.Image)
		out.Image = &img
	}
	return out
}

type facetJSON struct {
	Value string `json:"value"`
	Count int    `json:"count"`
}

func people(in []catalog.Person) []personJSON {
	out := make([]personJSON, len(in))
	for i, p := range in {
		out[i] = personJSON(p)
	}
	return out
}

func bookResponse(b catalog.Book) bookJSON {
	images := make([]imageJSON, len(b.Images))
	for i, img := range b.Images {
		images[i] = imageJSON(img)
	}
	return bookJSON{
		Code:                 b.Code,
		Title:                b.Title,
		Authors:              people(b.Authors),
		Translators:          people(b.Translators),
		Edition:              b.Edition,
		Publisher:            b.Publisher,
		PublicationDate:      b.PublicationDate,
		Language:             b.Language,
		PageCount:            b.PageCount,
		Description:          b.Description,
		Images:               images,
		CoverURL:             b.CoverURL(),
		HasPhysicalEdition:   b.HasPhysicalEdition,
		HasElectronicEdition: b.HasElectronicEdition,
		PhysicalPrice:        b.PhysicalPrice,
		ElectronicPrice:      b.ElectronicPrice,
	}
}

func booksResponse(in []catalog.Book) []bookJSON {
	out := make([]bookJSON, len(in))
	for i, b := range in {
		out[i] = bookResponse(b)
	}
	return out
}

// GetBook returns one book.
func (h *Handler) GetBook(w http.ResponseWriter, r *http.Request) {
	b, err := h.deps.Catalog.GetBook(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if b == nil {
		h.fail(w, r, notFound("book not found"))
		return
	}
	writeJSON(w, http.StatusOK, bookResponse(*b))
}

// pageParams reads the page (default 0) and size (default 20) query
// parameters.
func pageParams(r *http.Request) (page, size int, err error) {
	if page, err = queryInt(r, "page", 0); err != nil {
		return 0, 0, err
	}
	if size, err = queryInt(r, "size", 20); err != nil {
		return 0, 0, err
	}
	return page, size, nil
}

// ListBooks returns a page of the catalog.
func (h *Handler) ListBooks(w http.ResponseWriter, r *http.Request) {
	page, size, err := pageParams(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	p, err := h.deps.Catalog.ListBooks(r.Context(), page, size)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Books      []bookJSON     `json:"books"`
		Pagination paginationJSON `json:"pagination"`
	}{booksResponse(p.Books), paginationJSON(p.Pagination)})
}

// ListAuthors returns a page of authors.
func (h *Handler) ListAuthors(w http.ResponseWriter, r *http.Request) {
	page, size, err := pageParams(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	p, err := h.deps.Catalog.ListAuthors(r.Context(), page, size)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	authors := make([]authorJSON, len(p.Authors))
	for i, a := range p.Authors {
		authors[i] = authorResponse(a)
	}
	writeJSON(w, http.StatusOK, struct {
		Authors    []authorJSON   `json:"authors"`
		Pagination paginationJSON `json:"pagination"`
	}{authors, paginationJSON(p.Pagination)})
}

// AuthorBooks returns a page of one author's books with the author profile
// when the catalog provides it.
func (h *Handler) AuthorBooks(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		h.fail(w, r, notFound("author not found"))
		return
	}
	page, size, err := pageParams(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	res, err := h.deps.Catalog.BooksByAuthor(r.Context(), id, page, size)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if res == nil {
		h.fail(w, r, notFound("author not found"))
		return
	}
	var author *authorJSON
	if res.Author != nil {
		a := authorResponse(*res.Author)
		author = &a
	}
	writeJSON(w, http.StatusOK, struct {
		Author     *authorJSON    `json:"author,omitempty"`
		Books      []bookJSON     `json:"books"`
		Pagination paginationJSON `json:"pagination"`
	}{author, booksResponse(res.Books), paginationJSON(res.Pagination)})
}

// Search runs a filtered catalog search.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	req := catalog.SearchRequest{
		Query:     strings.TrimSpace(q.Get("q")),
		Genres:    q["genre"],
		Languages: q["language"],
		Formats:   q["format"],
		Cities:    q["city"],
		Sort:      q.Get("sort"),
	}

	var err error
	if req.Page, err = queryInt(r, "page", 0); err != nil {
		h.fail(w, r, err)
		return
	}
	if req.Size, err = queryInt(r, "size", 0); err != nil {
		h.fail(w, r, err)
		return
	}
	for key, dst := range map[string]**money.VND{"minPrice": &req.MinPrice, "maxPrice": &req.MaxPrice} {
		if q.Get(key) == "" {
			continue
		}
		v, err := money.Parse(q.Get(key))
		if err != nil {
			h.fail(w, r, badRequest(key+" must be a number"))
			return
		}
		*dst = &v
	}

	res, err := h.deps.Catalog.Search(r.Context(), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	facets := make(map[string][]facetJSON, len(res.Facets))
	for name, fs := range res.Facets {
		out := make([]facetJSON, len(fs))
		for i, f := range fs {
			out[i] = facetJSON(f)
		}
		facets[name] = out
	}
	writeJSON(w, http.StatusOK, struct {
		Books        []bookJSON             `json:"books"`
		Facets       map[string][]facetJSON `json:"facets"`
		Pagination   paginationJSON         `json:"pagination"`
		FallbackUsed bool                   `json:"fallbackUsed"`
	}{booksResponse(res.Books), facets, paginationJSON(res.Pagination), res.FallbackUsed})
}

// Suggest returns debounced title suggestions for the search box. A request
// overtaken by a newer one from the same session gets 409.
func (h *Handler) Suggest(w http.ResponseWriter, r *http.Request) {
	out, err := sessionFrom(r).Suggest.Suggest(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if out == nil {
		out = []string{}
	}
	writeJSON(w, http.StatusOK, struct {
		Suggestions []string `json:"suggestions"`
	}{out})
}
