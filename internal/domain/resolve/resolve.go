// Package resolve maps free-text labels to canonical catalog entries.
//
// Confidence is a similarity score in [0,100] between the normalized label
// and each normalized canonical name. The canonical-name set is cached with a
// TTL so resolution does not hit durable storage on every vote; the cache is
// swapped atomically on refresh and invalidated when admission creates a new
// entry.
package resolve

import (
	"context"
	"sort"
	"strings"
	"time"
	"unicode"

	gocache "github.com/patrickmn/go-cache"
	fuzzy "github.com/paul-mannino/go-fuzzywuzzy"

	"github.com/okian/tally/pkg/metrics"
)

// Default resolver configuration constants.
const (
	// DefaultThreshold is the inclusive confidence floor for a match.
	DefaultThreshold = 80
	// DefaultCacheTTL bounds staleness of the canonical-name cache.
	DefaultCacheTTL = 300 * time.Second

	maxConfidence = 100
	namesKey      = "names"
)

// Match is a successful resolution.
type Match struct {
	Name       string
	Confidence int
}

// NameSource supplies the current canonical-name set.
type NameSource interface {
	Names(ctx context.Context) ([]string, error)
}

// Resolver resolves raw labels against a cached canonical-name set.
type Resolver struct {
	source NameSource
	ttl    time.Duration
	cache  *gocache.Cache
}

// Option applies a configuration option to the Resolver.
type Option func(*Resolver)

// WithCacheTTL sets the time-to-live of the canonical-name cache.
func WithCacheTTL(ttl time.Duration) Option {
	return func(r *Resolver) {
		if ttl > 0 {
			r.ttl = ttl
		}
	}
}

// New creates a resolver backed by the given name source.
func New(source NameSource, opts ...Option) *Resolver {
	r := &Resolver{
		source: source,
		ttl:    DefaultCacheTTL,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.cache = gocache.New(r.ttl, 2*r.ttl)
	return r
}

// Resolve returns the best-matching canonical name at or above threshold,
// or ErrNoMatch. Ties are broken by shorter name, then lexical order, so the
// result is deterministic for a given catalog snapshot.
func (r *Resolver) Resolve(ctx context.Context, rawLabel string, threshold int) (Match, error) {
	normalized := Normalize(rawLabel)
	if normalized == "" {
		return Match{}, ErrNoMatch
	}

	names, err := r.names(ctx)
	if err != nil {
		return Match{}, err
	}
	if len(names) == 0 {
		return Match{}, ErrNoMatch
	}

	best := Match{Confidence: -1}
	for _, name := range names {
		conf := Confidence(normalized, Normalize(name))
		if conf > best.Confidence ||
			(conf == best.Confidence && len(name) < len(best.Name)) ||
			(conf == best.Confidence && len(name) == len(best.Name) && name < best.Name) {
			best = Match{Name: name, Confidence: conf}
		}
	}

	metrics.RecordResolveConfidence(float64(best.Confidence))

	// Inclusive lower bound: a label scoring exactly threshold matches.
	if best.Confidence < threshold {
		return Match{}, ErrNoMatch
	}
	return best, nil
}

// Invalidate drops the cached name set so the next resolution sees entries
// created after the cache was built.
func (r *Resolver) Invalidate() {
	r.cache.Delete(namesKey)
}

// names returns the cached name set, rebuilding it on miss or expiry.
func (r *Resolver) names(ctx context.Context) ([]string, error) {
	if cached, ok := r.cache.Get(namesKey); ok {
		if names, ok := cached.([]string); ok {
			return names, nil
		}
	}

	names, err := r.source.Names(ctx)
	if err != nil {
		return nil, err
	}
	// Stable iteration order keeps tie-breaking reproducible regardless of
	// how the source orders its result.
	sorted := make([]string, len(names))
	copy(sorted, names)
	sort.Strings(sorted)

	r.cache.Set(namesKey, sorted, gocache.DefaultExpiration)
	metrics.RecordResolveCacheRefresh()
	return sorted, nil
}

// Normalize lower-cases a label and strips punctuation and extra whitespace.
func Normalize(label string) string {
	var b strings.Builder
	b.Grow(len(label))
	lastSpace := true
	for _, r := range strings.ToLower(label) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			lastSpace = false
		case unicode.IsSpace(r) || unicode.IsPunct(r) || unicode.IsSymbol(r):
			if !lastSpace {
				b.WriteRune(' ')
				lastSpace = true
			}
		}
	}
	return strings.TrimRight(b.String(), " ")
}

// Confidence computes the similarity of two normalized strings in [0,100].
func Confidence(a, b string) int {
	if a == b {
		return maxConfidence
	}
	if a == "" || b == "" {
		return 0
	}
	return fuzzy.Ratio(a, b)
}
