package graph

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/scholarmetrics/citegraph/pkg/client"
	"github.com/scholarmetrics/citegraph/pkg/crossref"
	"github.com/scholarmetrics/citegraph/pkg/openalex"
	"github.com/scholarmetrics/citegraph/pkg/work"
)

type fakeResolver struct {
	mu        sync.Mutex
	records   map[string]*work.Unified
	citing    map[string][]*work.Unified
	citingErr error
	sources   map[string]*openalex.Source
	err       error
}

func (f *fakeResolver) Unified(ctx context.Context, doi string) (*work.Unified, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.mu.Lock()
	u, ok := f.records[doi]
	f.mu.Unlock()
	if !ok {
		return nil, client.ErrNotFound
	}
	return u, nil
}

func (f *fakeResolver) Citing(ctx context.Context, seed *work.Unified) ([]*work.Unified, error) {
	if seed.OpenAlex == nil || seed.OpenAlex.CitedByCount == 0 {
		return nil, nil
	}
	return f.citing[seed.DOI], f.citingErr
}

func (f *fakeResolver) Journal(ctx context.Context, issn string) (*openalex.Source, error) {
	s, ok := f.sources[issn]
	if !ok {
		return nil, client.ErrNotFound
	}
	return s, nil
}

type fakeSeedSource struct {
	works []crossref.Work
	err   error
}

func (f *fakeSeedSource) WorksByJournal(ctx context.Context, issn, fromDate, untilDate string) ([]crossref.Work, error) {
	return f.works, f.err
}

func unified(doi string, citedBy int) *work.Unified {
	return &work.Unified{
		DOI:      doi,
		Crossref: &crossref.Work{DOI: doi},
		OpenAlex: &openalex.Work{ID: "https://openalex.org/W-" + doi, CitedByCount: citedBy},
	}
}

func TestBuildProducesEdgesPerSeed(t *testing.T) {
	citingX := unified("10.1/x", 0)
	resolver := &fakeResolver{
		records: map[string]*work.Unified{
			"10.1/a": unified("10.1/a", 1),
			"10.1/b": unified("10.1/b", 1),
		},
		// X cites both seeds; one edge per seed is preserved.
		citing: map[string][]*work.Unified{
			"10.1/a": {citingX},
			"10.1/b": {citingX},
		},
	}
	b := New(resolver, nil, Config{MaxWorkers: 2})

	res, err := b.Build(context.Background(), []string{"10.1/a", "10.1/b"})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if len(res.Seeds) != 2 {
		t.Fatalf("got %d seeds, want 2", len(res.Seeds))
	}
	if len(res.Edges) != 2 {
		t.Fatalf("got %d edges, want 2 (one per cited seed)", len(res.Edges))
	}
	seen := map[string]bool{}
	for _, e := range res.Edges {
		if e.CitingDOI != "10.1/x" {
			t.Errorf("edge citing DOI = %q, want 10.1/x", e.CitingDOI)
		}
		seen[e.SeedDOI] = true
	}
	if !seen["10.1/a"] || !seen["10.1/b"] {
		t.Errorf("edges do not cover both seeds: %v", seen)
	}
}

func TestBuildKeepsUnresolvedSeedsEmpty(t *testing.T) {
	resolver := &fakeResolver{
		records: map[string]*work.Unified{
			"10.1/a": unified("10.1/a", 0),
		},
	}
	b := New(resolver, nil, Config{})

	res, err := b.Build(context.Background(), []string{"10.1/a", "not-a-doi", "10.1/ghost"})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	// The unresolvable input is dropped; the unresolved DOI stays as an
	// empty-field seed.
	if len(res.Seeds) != 2 {
		t.Fatalf("got %d seeds, want 2", len(res.Seeds))
	}
	byDOI := map[string]*work.Unified{}
	for _, s := range res.Seeds {
		byDOI[s.DOI] = s
	}
	if ghost, ok := byDOI["10.1/ghost"]; !ok || ghost.Resolved() {
		t.Errorf("unresolved seed = %+v, want kept with empty fields", ghost)
	}
	if len(res.SkippedSeeds) != 1 || res.SkippedSeeds[0].DOI != "not-a-doi" {
		t.Fatalf("skipped = %+v, want only the invalid input", res.SkippedSeeds)
	}
}

func TestBuildNoValidSeeds(t *testing.T) {
	b := New(&fakeResolver{records: map[string]*work.Unified{}}, nil, Config{})

	if _, err := b.Build(context.Background(), []string{"garbage"}); !errors.Is(err, ErrNoSeeds) {
		t.Fatalf("all-invalid input: got %v, want ErrNoSeeds", err)
	}
	if _, err := b.Build(context.Background(), nil); !errors.Is(err, ErrNoSeeds) {
		t.Fatalf("empty input: got %v, want ErrNoSeeds", err)
	}

	// A DOI no provider resolves is still a valid, if empty, dataset.
	res, err := b.Build(context.Background(), []string{"10.1/ghost"})
	if err != nil {
		t.Fatalf("total provider failure must not error: %v", err)
	}
	if len(res.Seeds) != 1 || res.Seeds[0].Resolved() {
		t.Errorf("seeds = %+v, want one empty-field seed", res.Seeds)
	}
	if len(res.Edges) != 0 {
		t.Errorf("edges = %d, want 0", len(res.Edges))
	}
}

func TestBuildKeepsPartialCitations(t *testing.T) {
	resolver := &fakeResolver{
		records: map[string]*work.Unified{
			"10.1/a": unified("10.1/a", 3),
		},
		citing: map[string][]*work.Unified{
			"10.1/a": {unified("10.1/x", 0)},
		},
		citingErr: errors.New("cursor fetch exhausted retries"),
	}
	b := New(resolver, nil, Config{})

	res, err := b.Build(context.Background(), []string{"10.1/a"})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if len(res.Edges) != 1 {
		t.Fatalf("got %d edges, want 1 (partial traversal still yields edges)", len(res.Edges))
	}
	if res.Edges[0].CitingDOI != "10.1/x" {
		t.Errorf("edge = %+v", res.Edges[0])
	}
}

func TestBuildEdgeDateFromMetadataRecord(t *testing.T) {
	citing := &work.Unified{
		DOI:      "10.1/x",
		Crossref: &crossref.Work{DOI: "10.1/x", Published: crossref.DateField{DateParts: [][]int{{2020, 1, 1}}}},
		OpenAlex: &openalex.Work{ID: "https://openalex.org/W-x", PublicationDate: "2021-02-03"},
	}
	registryOnly := &work.Unified{
		DOI:      "10.1/y",
		Crossref: &crossref.Work{DOI: "10.1/y", Published: crossref.DateField{DateParts: [][]int{{2019, 5, 6}}}},
	}
	resolver := &fakeResolver{
		records: map[string]*work.Unified{
			"10.1/a": unified("10.1/a", 2),
		},
		citing: map[string][]*work.Unified{
			"10.1/a": {citing, registryOnly},
		},
	}
	b := New(resolver, nil, Config{})

	res, err := b.Build(context.Background(), []string{"10.1/a"})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	dates := map[string]string{}
	for _, e := range res.Edges {
		dates[e.CitingDOI] = e.PublishedDate
	}
	// The metadata record's publication date wins over the registry parts.
	if dates["10.1/x"] != "2021-02-03" {
		t.Errorf("edge date = %q, want the metadata publication date", dates["10.1/x"])
	}
	// Without a metadata date the registry date fills in.
	if dates["10.1/y"] != "2019-05-06" {
		t.Errorf("edge date = %q, want 2019-05-06", dates["10.1/y"])
	}
}

func TestBuildUncitedSeedsProduceNoEdges(t *testing.T) {
	resolver := &fakeResolver{
		records: map[string]*work.Unified{
			"10.1/a": unified("10.1/a", 0),
		},
	}
	b := New(resolver, nil, Config{})

	res, err := b.Build(context.Background(), []string{"10.1/a"})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if len(res.Edges) != 0 {
		t.Errorf("got %d edges for uncited seed, want 0", len(res.Edges))
	}
}

func TestBuildProgressPhases(t *testing.T) {
	resolver := &fakeResolver{
		records: map[string]*work.Unified{
			"10.1/a": unified("10.1/a", 0),
			"10.1/b": unified("10.1/b", 0),
		},
	}
	var mu sync.Mutex
	phases := map[Phase]int{}
	b := New(resolver, nil, Config{
		Progress: func(phase Phase, completed, total int) {
			mu.Lock()
			phases[phase]++
			mu.Unlock()
		},
	})

	if _, err := b.Build(context.Background(), []string{"10.1/a", "10.1/b"}); err != nil {
		t.Fatalf("build: %v", err)
	}
	if phases[ResolvingSeeds] != 2 {
		t.Errorf("seed phase reported %d times, want 2", phases[ResolvingSeeds])
	}
	if phases[ResolvingCitations] != 2 {
		t.Errorf("citation phase reported %d times, want 2", phases[ResolvingCitations])
	}
	if phases[Done] != 1 {
		t.Errorf("done phase reported %d times, want 1", phases[Done])
	}
}

func TestBuildJournalValidatesSeeds(t *testing.T) {
	resolver := &fakeResolver{
		records: map[string]*work.Unified{
			"10.1/good": unified("10.1/good", 0),
		},
		sources: map[string]*openalex.Source{
			"0028-0836": {ID: "https://openalex.org/S1", DisplayName: "Nature"},
		},
	}
	seeds := &fakeSeedSource{works: []crossref.Work{
		{DOI: "10.1/good", Published: crossref.DateField{DateParts: [][]int{{2020}}}},
		{DOI: "", Published: crossref.DateField{DateParts: [][]int{{2020}}}},
		{DOI: "10.1/ancient", Created: crossref.DateField{DateParts: [][]int{{1823}}}},
	}}
	b := New(resolver, seeds, Config{})

	res, err := b.BuildJournal(context.Background(), "0028-0836", 2019, 2021)
	if err != nil {
		t.Fatalf("build journal: %v", err)
	}
	if len(res.Seeds) != 1 || res.Seeds[0].DOI != "10.1/good" {
		t.Fatalf("seeds = %+v, want only 10.1/good", res.Seeds)
	}
	if len(res.SkippedSeeds) != 2 {
		t.Errorf("got %d skipped, want 2: %+v", len(res.SkippedSeeds), res.SkippedSeeds)
	}
	if res.Journal == nil || res.Journal.DisplayName != "Nature" {
		t.Errorf("journal = %+v, want Nature source attached", res.Journal)
	}
}

func TestBuildJournalSeedsFromPartialListing(t *testing.T) {
	resolver := &fakeResolver{
		records: map[string]*work.Unified{
			"10.1/kept": unified("10.1/kept", 0),
		},
	}
	seeds := &fakeSeedSource{
		works: []crossref.Work{
			{DOI: "10.1/kept", Published: crossref.DateField{DateParts: [][]int{{2020}}}},
		},
		err: errors.New("page fetch exhausted retries"),
	}
	b := New(resolver, seeds, Config{})

	res, err := b.BuildJournal(context.Background(), "0028-0836", 2019, 2021)
	if err != nil {
		t.Fatalf("partial listing must still build: %v", err)
	}
	if len(res.Seeds) != 1 || res.Seeds[0].DOI != "10.1/kept" {
		t.Fatalf("seeds = %+v, want the work collected before the failure", res.Seeds)
	}
}

func TestBuildJournalYearRangeAndSeedSource(t *testing.T) {
	b := New(&fakeResolver{}, &fakeSeedSource{}, Config{})
	if _, err := b.BuildJournal(context.Background(), "0028-0836", 2022, 2020); err == nil {
		t.Error("inverted year range must fail")
	}

	b = New(&fakeResolver{}, nil, Config{})
	if _, err := b.BuildJournal(context.Background(), "0028-0836", 2020, 2021); err == nil {
		t.Error("missing seed source must fail")
	}
}

func TestBuildJournalEmptyListing(t *testing.T) {
	b := New(&fakeResolver{}, &fakeSeedSource{}, Config{})
	if _, err := b.BuildJournal(context.Background(), "0028-0836", 2020, 2021); !errors.Is(err, ErrNoSeeds) {
		t.Fatalf("got %v, want ErrNoSeeds", err)
	}
}
