// Package graph builds seed-to-citing citation graphs from resolved
// bibliographic records.
package graph

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog/log"

	"github.com/scholarmetrics/citegraph/pkg/client"
	"github.com/scholarmetrics/citegraph/pkg/crossref"
	"github.com/scholarmetrics/citegraph/pkg/dispatch"
	"github.com/scholarmetrics/citegraph/pkg/openalex"
	"github.com/scholarmetrics/citegraph/pkg/work"
)

// ErrNoSeeds indicates that no input survived seed validation.
var ErrNoSeeds = errors.New("no valid seeds")

// minSeedYear rejects records with implausible registration dates, which
// show up in registry data as placeholder years.
const minSeedYear = 1900

var (
	seedsResolved = promauto.NewCounter(prometheus.CounterOpts{
		Name: "citegraph_seeds_resolved_total",
		Help: "Total number of seed DOIs successfully resolved",
	})

	seedsSkipped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "citegraph_seeds_skipped_total",
		Help: "Total number of seed DOIs skipped",
	}, []string{"reason"})

	edgesBuilt = promauto.NewCounter(prometheus.CounterOpts{
		Name: "citegraph_edges_total",
		Help: "Total number of citation edges built",
	})
)

// Phase identifies the stage a build is in.
type Phase int

const (
	ResolvingSeeds Phase = iota
	ResolvingCitations
	Done
)

func (p Phase) String() string {
	switch p {
	case ResolvingSeeds:
		return "resolving_seeds"
	case ResolvingCitations:
		return "resolving_citations"
	case Done:
		return "done"
	default:
		return "unknown"
	}
}

// ProgressFunc reports per-phase completion counts.
type ProgressFunc func(phase Phase, completed, total int)

// RecordResolver is the record acquisition layer the builder runs on.
type RecordResolver interface {
	Unified(ctx context.Context, doi string) (*work.Unified, error)
	Citing(ctx context.Context, seed *work.Unified) ([]*work.Unified, error)
	Journal(ctx context.Context, issn string) (*openalex.Source, error)
}

// SeedSource lists the candidate seed works of a journal.
type SeedSource interface {
	WorksByJournal(ctx context.Context, issn, fromDate, untilDate string) ([]crossref.Work, error)
}

// Config tunes a Builder.
type Config struct {
	// MaxWorkers bounds concurrent record resolution. Zero means
	// dispatch.DefaultWorkers.
	MaxWorkers int

	// Progress, when set, receives per-phase completion updates.
	Progress ProgressFunc
}

// SkippedSeed records an input that did not become a seed and why.
type SkippedSeed struct {
	DOI    string
	Reason string
}

// Result is a completed citation graph. Edges point from each citing work
// to the seed it cites; a work citing several seeds contributes one edge
// per seed.
type Result struct {
	Seeds        []*work.Unified
	Edges        []work.CitationEdge
	SkippedSeeds []SkippedSeed
	Journal      *openalex.Source
}

// Builder resolves seed DOIs and walks their citing works.
type Builder struct {
	resolver RecordResolver
	seeds    SeedSource
	cfg      Config
}

// New creates a Builder. The SeedSource may be nil when only Build is
// used; BuildJournal requires it.
func New(resolver RecordResolver, seeds SeedSource, cfg Config) *Builder {
	if resolver == nil {
		panic("record resolver cannot be nil")
	}
	return &Builder{
		resolver: resolver,
		seeds:    seeds,
		cfg:      cfg,
	}
}

func (b *Builder) progress(phase Phase, completed, total int) {
	if b.cfg.Progress != nil {
		b.cfg.Progress(phase, completed, total)
	}
}

// Build resolves the given DOIs into seeds and collects every citation
// edge pointing at them. Inputs that cannot be normalized are reported in
// Result.SkippedSeeds; seeds no provider could resolve are kept with empty
// fields. Per-seed failures never fail the build, only context
// cancellation aborts it.
func (b *Builder) Build(ctx context.Context, dois []string) (*Result, error) {
	res := &Result{}

	normalized := make([]string, 0, len(dois))
	for _, d := range dois {
		nd, err := work.Normalize(d)
		if err != nil {
			seedsSkipped.WithLabelValues("invalid_doi").Inc()
			res.SkippedSeeds = append(res.SkippedSeeds, SkippedSeed{DOI: d, Reason: "invalid DOI"})
			continue
		}
		normalized = append(normalized, nd)
	}
	if len(normalized) == 0 {
		return nil, ErrNoSeeds
	}

	log.Info().Int("seeds", len(normalized)).Msg("resolving seed records")
	resolved, err := dispatch.Map(ctx, normalized, b.cfg.MaxWorkers,
		func(completed, total int) {
			b.progress(ResolvingSeeds, completed, total)
		},
		func(ctx context.Context, doi string) (*work.Unified, error) {
			u, err := b.resolver.Unified(ctx, doi)
			if err != nil && !errors.Is(err, client.ErrNotFound) {
				log.Warn().Err(err).Str("doi", doi).Msg("seed resolution failed")
			}
			return u, err
		})
	if err != nil {
		return nil, fmt.Errorf("resolving seeds: %w", err)
	}

	for i, u := range resolved {
		if u == nil {
			// Unresolved seeds stay in the result with empty fields so
			// downstream record counts remain explainable.
			seedsSkipped.WithLabelValues("unresolved").Inc()
			u = &work.Unified{DOI: normalized[i]}
		} else {
			seedsResolved.Inc()
		}
		res.Seeds = append(res.Seeds, u)
	}

	log.Info().Int("seeds", len(res.Seeds)).Msg("resolving citing works")
	perSeed, err := dispatch.Map(ctx, res.Seeds, b.cfg.MaxWorkers,
		func(completed, total int) {
			b.progress(ResolvingCitations, completed, total)
		},
		func(ctx context.Context, seed *work.Unified) ([]work.CitationEdge, error) {
			citing, err := b.resolver.Citing(ctx, seed)
			if err != nil {
				// Whatever the traversal collected before failing still
				// becomes edges.
				log.Warn().Err(err).Str("doi", seed.DOI).Int("citing", len(citing)).
					Msg("citation traversal incomplete, keeping partial results")
			}
			edges := make([]work.CitationEdge, 0, len(citing))
			for _, cu := range citing {
				edge := work.CitationEdge{
					SeedDOI:   seed.DOI,
					CitingDOI: cu.DOI,
					Crossref:  cu.Crossref,
					OpenAlex:  cu.OpenAlex,
				}
				if cu.OpenAlex != nil && cu.OpenAlex.PublicationDate != "" {
					edge.PublishedDate = cu.OpenAlex.PublicationDate
				} else if t := cu.PublishedTime(); !t.IsZero() {
					edge.PublishedDate = t.Format("2006-01-02")
				}
				edges = append(edges, edge)
			}
			return edges, nil
		})
	if err != nil {
		return nil, fmt.Errorf("resolving citations: %w", err)
	}

	for _, edges := range perSeed {
		res.Edges = append(res.Edges, edges...)
	}
	edgesBuilt.Add(float64(len(res.Edges)))

	b.progress(Done, len(res.Seeds), len(res.Seeds))
	log.Info().
		Int("seeds", len(res.Seeds)).
		Int("edges", len(res.Edges)).
		Int("skipped", len(res.SkippedSeeds)).
		Msg("citation graph built")
	return res, nil
}

// BuildJournal lists a journal's works in the given publication-year range,
// validates them into seeds, and builds the citation graph over them. A
// listing that fails partway still seeds from the works collected before
// the failure. The journal's source record is attached to the result when
// the metadata index knows the ISSN.
func (b *Builder) BuildJournal(ctx context.Context, issn string, fromYear, untilYear int) (*Result, error) {
	if b.seeds == nil {
		return nil, errors.New("no seed source configured")
	}
	if fromYear > untilYear {
		return nil, fmt.Errorf("invalid year range %d-%d", fromYear, untilYear)
	}

	fromDate := strconv.Itoa(fromYear) + "-01-01"
	untilDate := strconv.Itoa(untilYear) + "-12-31"
	works, err := b.seeds.WorksByJournal(ctx, issn, fromDate, untilDate)
	if err != nil {
		if len(works) == 0 {
			return nil, fmt.Errorf("listing journal %s: %w", issn, err)
		}
		log.Warn().Err(err).Str("issn", issn).Int("works", len(works)).
			Msg("journal listing incomplete, seeding from partial results")
	}

	dois := make([]string, 0, len(works))
	var skipped []SkippedSeed
	for i := range works {
		w := &works[i]
		if _, err := work.Normalize(w.DOI); err != nil {
			seedsSkipped.WithLabelValues("invalid_doi").Inc()
			skipped = append(skipped, SkippedSeed{DOI: w.DOI, Reason: "invalid DOI"})
			continue
		}
		if y := seedYear(w); y > 0 && y < minSeedYear {
			seedsSkipped.WithLabelValues("implausible_year").Inc()
			skipped = append(skipped, SkippedSeed{DOI: w.DOI, Reason: "implausible publication year"})
			continue
		}
		dois = append(dois, w.DOI)
	}
	if len(dois) == 0 {
		return nil, fmt.Errorf("journal %s %d-%d: %w", issn, fromYear, untilYear, ErrNoSeeds)
	}

	res, err := b.Build(ctx, dois)
	if err != nil {
		return nil, err
	}
	res.SkippedSeeds = append(skipped, res.SkippedSeeds...)

	src, err := b.resolver.Journal(ctx, issn)
	switch {
	case err == nil:
		res.Journal = src
	case errors.Is(err, client.ErrNotFound):
		log.Debug().Str("issn", issn).Msg("journal has no metadata source record")
	default:
		log.Warn().Err(err).Str("issn", issn).Msg("journal source lookup failed")
	}
	return res, nil
}

func seedYear(w *crossref.Work) int {
	if y := w.Published.Year(); y > 0 {
		return y
	}
	return w.Created.Year()
}
