package catalog

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCatalog struct {
	mu      sync.Mutex
	calls   []string
	release map[string]chan struct{}
	err     error
}

func (f *fakeCatalog) GetBook(context.Context, string) (*Book, error) { return nil, nil }
func (f *fakeCatalog) ListBooks(context.Context, int, int) (*Page, error) { return &Page{}, nil }
func (f *fakeCatalog) Search(context.Context, SearchRequest) (*SearchResult, error) {
	return &SearchResult{}, nil
}
func (f *fakeCatalog) ListAuthors(context.Context, int, int) (*AuthorPage, error) {
	return &AuthorPage{}, nil
}
func (f *fakeCatalog) BooksByAuthor(context.Context, int64, int, int) (*AuthorBooks, error) {
	return nil, nil
}

func (f *fakeCatalog) Suggest(ctx context.Context, prefix string, _ int) ([]string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, prefix)
	ch := f.release[prefix]
	f.mu.Unlock()

	if ch != nil {
		<-ch
	}
	if f.err != nil {
		return nil, f.err
	}
	return []string{prefix + " one", prefix + " two"}, nil
}

func (f *fakeCatalog) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func TestSuggest_ShortPrefix(t *testing.T) {
	c := &fakeCatalog{}
	s := NewSuggester(c, time.Millisecond, 0)

	got, err := s.Suggest(context.Background(), " a ")
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Zero(t, c.callCount())
}

func TestSuggest_Debounced(t *testing.T) {
	c := &fakeCatalog{}
	s := NewSuggester(c, 50*time.Millisecond, 5)

	var (
		wg       sync.WaitGroup
		firstErr error
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, firstErr = s.Suggest(context.Background(), "har")
	}()

	// Let the first call start waiting, then overtake it.
	time.Sleep(10 * time.Millisecond)
	got, err := s.Suggest(context.Background(), "harr")
	wg.Wait()

	require.NoError(t, err)
	assert.Equal(t, []string{"harr one", "harr two"}, got)
	require.ErrorIs(t, firstErr, ErrSuperseded)
	assert.Equal(t, 1, c.callCount(), "superseded call must not reach the catalog")
}

func TestSuggest_StaleResponseDiscarded(t *testing.T) {
	slow := make(chan struct{})
	c := &fakeCatalog{release: map[string]chan struct{}{"slow": slow}}
	s := NewSuggester(c, time.Millisecond, 0)

	var (
		wg      sync.WaitGroup
		slowErr error
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, slowErr = s.Suggest(context.Background(), "slow")
	}()

	require.Eventually(t, func() bool { return c.callCount() == 1 }, time.Second, time.Millisecond)

	got, err := s.Suggest(context.Background(), "fast")
	require.NoError(t, err)
	assert.Equal(t, []string{"fast one", "fast two"}, got)

	close(slow)
	wg.Wait()
	require.ErrorIs(t, slowErr, ErrSuperseded)
}

func TestSuggest_UpstreamError(t *testing.T) {
	c := &fakeCatalog{err: errors.New("boom")}
	s := NewSuggester(c, time.Millisecond, 0)

	_, err := s.Suggest(context.Background(), "tolstoy")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrSuperseded)
}

func TestSuggest_CallerCancelled(t *testing.T) {
	c := &fakeCatalog{}
	s := NewSuggester(c, time.Hour, 0)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Suggest(ctx, "tolstoy")
	require.ErrorIs(t, err, context.Canceled)
}
