package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/scholarmetrics/citegraph/pkg/client"
	"github.com/scholarmetrics/citegraph/pkg/crossref"
	"github.com/scholarmetrics/citegraph/pkg/openalex"
	"github.com/scholarmetrics/citegraph/pkg/work"
)

const (
	providerCrossref = "crossref"
	providerOpenAlex = "openalex"

	// DefaultNegativeTTL bounds how long a not-found answer is served from
	// memory before the provider is asked again.
	DefaultNegativeTTL = 15 * time.Minute
)

// RegistryClient resolves DOIs against the registration agency.
type RegistryClient interface {
	Work(ctx context.Context, doi string) (*crossref.Work, error)
}

// MetadataClient resolves DOIs and citation links against the open
// metadata index.
type MetadataClient interface {
	Work(ctx context.Context, doi string) (*openalex.Work, error)
	Source(ctx context.Context, issn string) (*openalex.Source, error)
	Citing(ctx context.Context, workID string) ([]openalex.Work, error)
}

// entry is one memoized lookup result. A nil value with miss set records
// a provider not-found so repeated lookups skip the network.
type entry[T any] struct {
	val    *T
	miss   bool
	missAt time.Time
}

// memo is a provider-local memoization table. Positive entries never
// expire within a session; negative entries expire after ttl.
type memo[T any] struct {
	mu      sync.RWMutex
	entries map[string]entry[T]
	ttl     time.Duration
}

func newMemo[T any](ttl time.Duration) *memo[T] {
	return &memo[T]{
		entries: make(map[string]entry[T]),
		ttl:     ttl,
	}
}

// get returns (value, negative-hit, found). A stale negative entry is
// treated as absent so the caller refetches.
func (m *memo[T]) get(key string) (*T, bool, bool) {
	m.mu.RLock()
	e, ok := m.entries[key]
	m.mu.RUnlock()
	if !ok {
		return nil, false, false
	}
	if e.miss {
		if time.Since(e.missAt) > m.ttl {
			return nil, false, false
		}
		return nil, true, true
	}
	return e.val, false, true
}

func (m *memo[T]) put(key string, val *T) {
	m.mu.Lock()
	m.entries[key] = entry[T]{val: val}
	m.mu.Unlock()
}

func (m *memo[T]) putNegative(key string) {
	m.mu.Lock()
	m.entries[key] = entry[T]{miss: true, missAt: time.Now()}
	m.mu.Unlock()
}

// RecordCache memoizes provider records for the lifetime of a session.
// Concurrent lookups of the same key are collapsed into a single provider
// call, and an optional persistent Store is consulted before the network.
type RecordCache struct {
	registry RegistryClient
	metadata MetadataClient
	store    Store

	crossref *memo[crossref.Work]
	openalex *memo[openalex.Work]
	sources  *memo[openalex.Source]
	citing   *memo[[]*work.Unified]

	group singleflight.Group
}

// Option configures a RecordCache.
type Option func(*RecordCache)

// WithStore attaches a persistent payload store consulted on memory misses
// and written through on provider fetches.
func WithStore(s Store) Option {
	return func(c *RecordCache) {
		if s != nil {
			c.store = s
		}
	}
}

// WithNegativeTTL overrides how long not-found answers are memoized.
func WithNegativeTTL(ttl time.Duration) Option {
	return func(c *RecordCache) {
		if ttl > 0 {
			c.crossref.ttl = ttl
			c.openalex.ttl = ttl
			c.sources.ttl = ttl
		}
	}
}

// New creates a RecordCache over the two provider clients.
func New(registry RegistryClient, metadata MetadataClient, opts ...Option) *RecordCache {
	if registry == nil || metadata == nil {
		panic("provider clients cannot be nil")
	}
	c := &RecordCache{
		registry: registry,
		metadata: metadata,
		store:    NopStore{},
		crossref: newMemo[crossref.Work](DefaultNegativeTTL),
		openalex: newMemo[openalex.Work](DefaultNegativeTTL),
		sources:  newMemo[openalex.Source](DefaultNegativeTTL),
		citing:   newMemo[[]*work.Unified](DefaultNegativeTTL),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CrossrefWork returns the registry record for a normalized DOI, fetching
// it at most once per session. A provider not-found is memoized and
// returned as client.ErrNotFound.
func (c *RecordCache) CrossrefWork(ctx context.Context, doi string) (*crossref.Work, error) {
	if w, neg, ok := c.crossref.get(doi); ok {
		if neg {
			negativeHits.WithLabelValues(providerCrossref).Inc()
			return nil, fmt.Errorf("crossref %s: %w", doi, client.ErrNotFound)
		}
		cacheHits.WithLabelValues(providerCrossref, "memory").Inc()
		return w, nil
	}
	cacheMisses.WithLabelValues(providerCrossref).Inc()

	v, err, _ := c.group.Do(providerCrossref+":"+doi, func() (interface{}, error) {
		if w, neg, ok := c.crossref.get(doi); ok {
			if neg {
				return nil, client.ErrNotFound
			}
			return w, nil
		}
		if data, err := c.store.Get(ctx, providerCrossref, doi); err == nil {
			var w crossref.Work
			if err := json.Unmarshal(data, &w); err == nil {
				w.Raw = data
				cacheHits.WithLabelValues(providerCrossref, "store").Inc()
				c.crossref.put(doi, &w)
				return &w, nil
			}
			log.Warn().Str("provider", providerCrossref).Str("doi", doi).
				Msg("discarding undecodable stored payload")
		}
		w, err := c.registry.Work(ctx, doi)
		if err != nil {
			if errors.Is(err, client.ErrNotFound) {
				c.crossref.putNegative(doi)
			}
			return nil, err
		}
		c.crossref.put(doi, w)
		if len(w.Raw) > 0 {
			if err := c.store.Put(ctx, providerCrossref, doi, w.Raw); err != nil {
				log.Warn().Err(err).Str("doi", doi).Msg("store write-through failed")
			}
		}
		return w, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*crossref.Work), nil
}

// OpenAlexWork returns the open-metadata record for a normalized DOI with
// the same memoization contract as CrossrefWork.
func (c *RecordCache) OpenAlexWork(ctx context.Context, doi string) (*openalex.Work, error) {
	if w, neg, ok := c.openalex.get(doi); ok {
		if neg {
			negativeHits.WithLabelValues(providerOpenAlex).Inc()
			return nil, fmt.Errorf("openalex %s: %w", doi, client.ErrNotFound)
		}
		cacheHits.WithLabelValues(providerOpenAlex, "memory").Inc()
		return w, nil
	}
	cacheMisses.WithLabelValues(providerOpenAlex).Inc()

	v, err, _ := c.group.Do(providerOpenAlex+":"+doi, func() (interface{}, error) {
		if w, neg, ok := c.openalex.get(doi); ok {
			if neg {
				return nil, client.ErrNotFound
			}
			return w, nil
		}
		if data, err := c.store.Get(ctx, providerOpenAlex, doi); err == nil {
			var w openalex.Work
			if err := json.Unmarshal(data, &w); err == nil {
				w.Raw = data
				cacheHits.WithLabelValues(providerOpenAlex, "store").Inc()
				c.openalex.put(doi, &w)
				return &w, nil
			}
			log.Warn().Str("provider", providerOpenAlex).Str("doi", doi).
				Msg("discarding undecodable stored payload")
		}
		w, err := c.metadata.Work(ctx, doi)
		if err != nil {
			if errors.Is(err, client.ErrNotFound) {
				c.openalex.putNegative(doi)
			}
			return nil, err
		}
		c.openalex.put(doi, w)
		if len(w.Raw) > 0 {
			if err := c.store.Put(ctx, providerOpenAlex, doi, w.Raw); err != nil {
				log.Warn().Err(err).Str("doi", doi).Msg("store write-through failed")
			}
		}
		return w, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*openalex.Work), nil
}

// Unified resolves a DOI against both providers concurrently and merges
// the results. A not-found from one provider is tolerated; only when both
// sides are missing does Unified return client.ErrNotFound. Transient
// failures from either provider abort the lookup.
func (c *RecordCache) Unified(ctx context.Context, doi string) (*work.Unified, error) {
	u := &work.Unified{DOI: doi}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		w, err := c.CrossrefWork(gctx, doi)
		if err != nil {
			if errors.Is(err, client.ErrNotFound) {
				return nil
			}
			return err
		}
		u.Crossref = w
		return nil
	})
	g.Go(func() error {
		w, err := c.OpenAlexWork(gctx, doi)
		if err != nil {
			if errors.Is(err, client.ErrNotFound) {
				return nil
			}
			return err
		}
		u.OpenAlex = w
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if !u.Resolved() {
		return nil, fmt.Errorf("doi %s: %w", doi, client.ErrNotFound)
	}
	return u, nil
}

// Journal returns the open-metadata source record for an ISSN, memoized
// per session.
func (c *RecordCache) Journal(ctx context.Context, issn string) (*openalex.Source, error) {
	if s, neg, ok := c.sources.get(issn); ok {
		if neg {
			negativeHits.WithLabelValues(providerOpenAlex).Inc()
			return nil, fmt.Errorf("source %s: %w", issn, client.ErrNotFound)
		}
		cacheHits.WithLabelValues(providerOpenAlex, "memory").Inc()
		return s, nil
	}
	cacheMisses.WithLabelValues(providerOpenAlex).Inc()

	v, err, _ := c.group.Do("source:"+issn, func() (interface{}, error) {
		if s, neg, ok := c.sources.get(issn); ok {
			if neg {
				return nil, client.ErrNotFound
			}
			return s, nil
		}
		s, err := c.metadata.Source(ctx, issn)
		if err != nil {
			if errors.Is(err, client.ErrNotFound) {
				c.sources.putNegative(issn)
			}
			return nil, err
		}
		c.sources.put(issn, s)
		return s, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*openalex.Source), nil
}

// Citing returns the unified records of every work citing the seed,
// memoized per seed DOI so repeated requests during one session cost one
// traversal. Seeds without an open-metadata record or with a zero citation
// count produce no results, and citing works without a normalizable DOI
// are skipped. Citing works already fetched from the index are seeded
// into the memo so the unified resolution only costs the registry lookup.
// A partial traversal is returned with its error and not cached.
func (c *RecordCache) Citing(ctx context.Context, seed *work.Unified) ([]*work.Unified, error) {
	if seed == nil || seed.OpenAlex == nil || seed.OpenAlex.CitedByCount == 0 {
		return nil, nil
	}
	if lst, _, ok := c.citing.get(seed.DOI); ok {
		cacheHits.WithLabelValues(providerOpenAlex, "memory").Inc()
		return *lst, nil
	}
	cacheMisses.WithLabelValues(providerOpenAlex).Inc()

	v, err, _ := c.group.Do("citing:"+seed.DOI, func() (interface{}, error) {
		if lst, _, ok := c.citing.get(seed.DOI); ok {
			return *lst, nil
		}
		out, err := c.traverseCiting(ctx, seed)
		if err == nil {
			c.citing.put(seed.DOI, &out)
		}
		return out, err
	})
	list, _ := v.([]*work.Unified)
	return list, err
}

func (c *RecordCache) traverseCiting(ctx context.Context, seed *work.Unified) ([]*work.Unified, error) {
	citing, listErr := c.metadata.Citing(ctx, seed.OpenAlex.ShortID())
	if listErr != nil {
		listErr = fmt.Errorf("citing works for %s: %w", seed.DOI, listErr)
		if len(citing) == 0 {
			return nil, listErr
		}
		// A page failure mid-traversal still yields the pages collected
		// before it; resolve those and surface the error alongside.
		log.Warn().Err(listErr).Str("doi", seed.DOI).Int("citing", len(citing)).
			Msg("citing traversal incomplete, keeping collected pages")
	}

	out := make([]*work.Unified, 0, len(citing))
	for i := range citing {
		cw := citing[i]
		doi, nerr := work.Normalize(cw.BareDOI())
		if nerr != nil {
			// Without a resolvable DOI the work cannot become an edge.
			continue
		}
		c.openalex.put(doi, &cw)
		u, err := c.Unified(ctx, doi)
		if err != nil {
			if errors.Is(err, client.ErrNotFound) {
				continue
			}
			return out, err
		}
		out = append(out, u)
	}
	return out, listErr
}
