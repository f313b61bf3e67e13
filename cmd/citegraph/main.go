// Command citegraph builds a citation graph for a set of seed DOIs or for
// a journal's publication window and writes it as JSON.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/scholarmetrics/citegraph/internal/config"
	"github.com/scholarmetrics/citegraph/pkg/cache"
	"github.com/scholarmetrics/citegraph/pkg/client"
	"github.com/scholarmetrics/citegraph/pkg/crossref"
	"github.com/scholarmetrics/citegraph/pkg/graph"
	"github.com/scholarmetrics/citegraph/pkg/logging"
	"github.com/scholarmetrics/citegraph/pkg/openalex"
	"github.com/scholarmetrics/citegraph/pkg/ratelimit"
	"github.com/scholarmetrics/citegraph/pkg/work"
)

func main() {
	var (
		configPath = flag.String("config", "", "path to config file (optional)")
		doisArg    = flag.String("dois", "", "comma-separated seed DOIs")
		issn       = flag.String("issn", "", "journal ISSN to analyze")
		fromYear   = flag.Int("from", 0, "first publication year (journal mode)")
		untilYear  = flag.Int("until", 0, "last publication year (journal mode)")
		outPath    = flag.String("out", "", "output file (default stdout)")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	logging.Setup(logging.Config{
		Level:  logging.LogLevel(cfg.LogLevel),
		Pretty: cfg.LogPretty,
		Output: os.Stderr,
	})

	if *doisArg == "" && *issn == "" {
		fmt.Fprintln(os.Stderr, "usage: citegraph -dois DOI[,DOI...] | -issn ISSN -from YEAR -until YEAR")
		os.Exit(2)
	}
	if *issn != "" && (*fromYear == 0 || *untilYear == 0) {
		fmt.Fprintln(os.Stderr, "journal mode requires -from and -until years")
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	builder := buildPipeline(ctx, cfg)

	if cfg.MetricsAddr != "" {
		go serveMetrics(cfg.MetricsAddr)
	}

	var result *graph.Result
	if *issn != "" {
		result, err = builder.BuildJournal(ctx, *issn, *fromYear, *untilYear)
	} else {
		result, err = builder.Build(ctx, splitDOIs(*doisArg))
	}
	if err != nil {
		log.Fatal().Err(err).Msg("build failed")
	}

	out := io.Writer(os.Stdout)
	if *outPath != "" {
		f, err := os.Create(*outPath)
		if err != nil {
			log.Fatal().Err(err).Str("path", *outPath).Msg("cannot create output file")
		}
		defer f.Close()
		out = f
	}
	if err := writeResult(out, result); err != nil {
		log.Fatal().Err(err).Msg("writing result failed")
	}
}

// buildPipeline wires the shared limiter and backoff, the two provider
// clients, the record cache, and the graph builder from configuration.
func buildPipeline(ctx context.Context, cfg *config.Config) *graph.Builder {
	limiter := ratelimit.NewLimiter(cfg.CallsPerSecond)
	backoff := ratelimit.NewBackoff(ratelimit.DefaultTiers)

	crFetch := client.New(client.Config{
		Provider:   "crossref",
		UserAgent:  cfg.UserAgent,
		MaxRetries: cfg.MaxRetries,
		Timeout:    cfg.CrossrefTimeout,
	}, limiter, backoff)
	oaFetch := client.New(client.Config{
		Provider:   "openalex",
		UserAgent:  cfg.UserAgent,
		MaxRetries: cfg.MaxRetries,
		Timeout:    cfg.OpenAlexTimeout,
	}, limiter, backoff)

	var crOpts []crossref.Option
	if cfg.CrossrefBaseURL != "" {
		crOpts = append(crOpts, crossref.WithBaseURL(cfg.CrossrefBaseURL))
	}
	var oaOpts []openalex.Option
	if cfg.OpenAlexBaseURL != "" {
		oaOpts = append(oaOpts, openalex.WithBaseURL(cfg.OpenAlexBaseURL))
	}
	registry := crossref.New(crFetch, cfg.Mailto, crOpts...)
	metadata := openalex.New(oaFetch, cfg.Mailto, oaOpts...)

	var cacheOpts []cache.Option
	if cfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			log.Warn().Err(err).Str("addr", cfg.RedisAddr).
				Msg("redis unreachable, continuing without persistent store")
		} else {
			log.Info().Str("addr", cfg.RedisAddr).Msg("persistent store enabled")
			cacheOpts = append(cacheOpts, cache.WithStore(cache.NewRedisStore(redisClient, cfg.StoreTTL)))
		}
	}
	records := cache.New(registry, metadata, cacheOpts...)

	return graph.New(records, registry, graph.Config{
		MaxWorkers: cfg.MaxWorkers,
		Progress: func(phase graph.Phase, completed, total int) {
			if completed == total || completed%25 == 0 {
				log.Info().
					Str("phase", phase.String()).
					Int("completed", completed).
					Int("total", total).
					Msg("progress")
			}
		},
	})
}

func serveMetrics(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	log.Info().Str("addr", addr).Msg("serving metrics")
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Error().Err(err).Msg("metrics server failed")
	}
}

func splitDOIs(arg string) []string {
	parts := strings.Split(arg, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// output is the JSON document written for a completed build.
type output struct {
	Journal      *journalOut  `json:"journal,omitempty"`
	Seeds        []seedOut    `json:"seeds"`
	Edges        []edgeOut    `json:"edges"`
	SkippedSeeds []skippedOut `json:"skipped_seeds,omitempty"`
}

type journalOut struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Publisher string `json:"publisher,omitempty"`
}

type seedOut struct {
	DOI          string `json:"doi"`
	Title        string `json:"title,omitempty"`
	CitedByCount int    `json:"cited_by_count"`
	Resolved     bool   `json:"resolved"`
}

type edgeOut struct {
	SeedDOI       string `json:"seed_doi"`
	CitingDOI     string `json:"citing_doi"`
	PublishedDate string `json:"published_date,omitempty"`
}

type skippedOut struct {
	DOI    string `json:"doi"`
	Reason string `json:"reason"`
}

func writeResult(w io.Writer, res *graph.Result) error {
	doc := output{
		Seeds: make([]seedOut, 0, len(res.Seeds)),
		Edges: make([]edgeOut, 0, len(res.Edges)),
	}
	if res.Journal != nil {
		doc.Journal = &journalOut{
			ID:        res.Journal.ID,
			Name:      res.Journal.DisplayName,
			Publisher: res.Journal.Publisher,
		}
	}
	for _, s := range res.Seeds {
		doc.Seeds = append(doc.Seeds, seedOut{
			DOI:          s.DOI,
			Title:        work.Title(s),
			CitedByCount: s.CitedByCount(),
			Resolved:     s.Resolved(),
		})
	}
	for _, e := range res.Edges {
		doc.Edges = append(doc.Edges, edgeOut{
			SeedDOI:       e.SeedDOI,
			CitingDOI:     e.CitingDOI,
			PublishedDate: e.PublishedDate,
		})
	}
	for _, s := range res.SkippedSeeds {
		doc.SkippedSeeds = append(doc.SkippedSeeds, skippedOut{DOI: s.DOI, Reason: s.Reason})
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}
