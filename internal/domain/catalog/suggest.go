package catalog

import (
	"context"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/go-faster/errors"
)

const (
	// DefaultSuggestDelay is the debounce delay before a suggestion fetch.
	DefaultSuggestDelay = 300 * time.Millisecond
	// DefaultSuggestLimit is the number of suggestions requested.
	DefaultSuggestLimit = 10

	minSuggestPrefix = 2
)

// ErrSuperseded is returned to a suggestion request that was overtaken by a
// newer one before its result could be used.
var ErrSuperseded = errors.New("suggestion request superseded")

// Suggester debounces search-box suggestion requests for one session.
//
// Each call cancels the previous pending call and bumps a generation counter;
// a response is only returned if its generation is still the latest, so a slow
// response cannot overwrite a fresher one.
type Suggester struct {
	catalog Catalog
	delay   time.Duration
	limit   int

	mu     sync.Mutex
	gen    uint64
	cancel context.CancelFunc
}

// NewSuggester creates a Suggester. Non-positive delay or limit take the defaults.
func NewSuggester(c Catalog, delay time.Duration, limit int) *Suggester {
	if delay <= 0 {
		delay = DefaultSuggestDelay
	}
	if limit <= 0 {
		limit = DefaultSuggestLimit
	}
	return &Suggester{catalog: c, delay: delay, limit: limit}
}

// Suggest waits for the debounce delay and fetches suggestions for prefix.
// Prefixes shorter than two characters yield no suggestions and no fetch.
func (s *Suggester) Suggest(ctx context.Context, prefix string) ([]string, error) {
	prefix = strings.TrimSpace(prefix)

	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	s.gen++
	gen := s.gen
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.mu.Unlock()
	defer cancel()

	if utf8.RuneCountInString(prefix) < minSuggestPrefix {
		return nil, nil
	}

	timer := time.NewTimer(s.delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		if !s.isCurrent(gen) {
			return nil, ErrSuperseded
		}
		return nil, ctx.Err()
	case <-timer.C:
	}

	suggestions, err := s.catalog.Suggest(ctx, prefix, s.limit)
	if !s.isCurrent(gen) {
		return nil, ErrSuperseded
	}
	if err != nil {
		return nil, errors.Wrap(err, "fetch suggestions")
	}
	return suggestions, nil
}

func (s *Suggester) isCurrent(gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gen == gen
}
