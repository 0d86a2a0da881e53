package typoutil

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/gcbaptista/go-searcher/internal/logging"
)

const (
	defaultCacheSize  = 1000
	defaultTimeLimit  = 50 * time.Millisecond
	defaultMaxResults = 50
)

// Typo is an indexed term close to a query term.
type Typo struct {
	Term     string
	Distance int
}

// TypoFinder scans a term dictionary for near matches. Results are cached
// per (term, distance) until the dictionary is replaced, and each scan is
// bounded by a result count and a time limit.
type TypoFinder struct {
	mu    sync.RWMutex
	terms []string

	cache      *lru.Cache[string, []Typo]
	timeLimit  time.Duration
	maxResults int
	logger     *slog.Logger
}

// Option configures a TypoFinder.
type Option func(*TypoFinder)

// WithTimeLimit bounds how long a single scan may take.
func WithTimeLimit(d time.Duration) Option {
	return func(tf *TypoFinder) { tf.timeLimit = d }
}

// WithMaxResults bounds how many typos a single scan returns.
func WithMaxResults(n int) Option {
	return func(tf *TypoFinder) { tf.maxResults = n }
}

// WithLogger sets the logger used to report truncated scans.
func WithLogger(l *slog.Logger) Option {
	return func(tf *TypoFinder) { tf.logger = l }
}

// NewTypoFinder creates a finder over a copy of terms.
func NewTypoFinder(terms []string, opts ...Option) *TypoFinder {
	cache, _ := lru.New[string, []Typo](defaultCacheSize)
	tf := &TypoFinder{
		cache:      cache,
		timeLimit:  defaultTimeLimit,
		maxResults: defaultMaxResults,
	}
	for _, opt := range opts {
		opt(tf)
	}
	tf.logger = logging.OrDefault(tf.logger)
	tf.UpdateIndexedTerms(terms)
	return tf
}

// UpdateIndexedTerms replaces the dictionary and drops cached results.
func (tf *TypoFinder) UpdateIndexedTerms(terms []string) {
	copied := make([]string, len(terms))
	copy(copied, terms)

	tf.mu.Lock()
	tf.terms = copied
	tf.mu.Unlock()
	tf.cache.Purge()
}

// Len returns the dictionary size.
func (tf *TypoFinder) Len() int {
	tf.mu.RLock()
	defer tf.mu.RUnlock()
	return len(tf.terms)
}

// Find returns dictionary terms at distance 1..maxDistance from term,
// closest first. The term itself is never returned.
func (tf *TypoFinder) Find(term string, maxDistance int) []Typo {
	if maxDistance <= 0 || term == "" {
		return nil
	}

	key := fmt.Sprintf("%s\x00%d", term, maxDistance)
	if cached, ok := tf.cache.Get(key); ok {
		return cached
	}

	typos := tf.scan(term, maxDistance)
	tf.cache.Add(key, typos)
	return typos
}

func (tf *TypoFinder) scan(term string, maxDistance int) []Typo {
	tf.mu.RLock()
	terms := tf.terms
	tf.mu.RUnlock()

	termLen := len([]rune(term))
	start := time.Now()
	var typos []Typo

	for i, candidate := range terms {
		if i%256 == 0 && time.Since(start) >= tf.timeLimit {
			tf.logger.Warn("typo_scan_time_limit",
				slog.String("term", term),
				slog.Int("distance", maxDistance),
				slog.Int("found", len(typos)),
				slog.Int("unchecked", len(terms)-i))
			break
		}
		if candidate == term || abs(len([]rune(candidate))-termLen) > maxDistance {
			continue
		}
		if d := DistanceWithin(term, candidate, maxDistance); d > 0 && d <= maxDistance {
			typos = append(typos, Typo{Term: candidate, Distance: d})
			if tf.maxResults > 0 && len(typos) >= tf.maxResults {
				break
			}
		}
	}

	// Stable by distance; the dictionary order breaks ties
	sortByDistance(typos)
	return typos
}

func sortByDistance(typos []Typo) {
	for i := 1; i < len(typos); i++ {
		for j := i; j > 0 && typos[j].Distance < typos[j-1].Distance; j-- {
			typos[j], typos[j-1] = typos[j-1], typos[j]
		}
	}
}
