// Package work defines the normalized data model shared by the acquisition
// pipeline: DOI handling, the unified two-provider record, and citation
// edges.
package work

import (
	"errors"
	"strings"
	"time"

	"github.com/scholarmetrics/citegraph/pkg/crossref"
	"github.com/scholarmetrics/citegraph/pkg/openalex"
)

// ErrInvalidDOI marks a string that cannot be normalized into a DOI.
var ErrInvalidDOI = errors.New("invalid DOI")

// Normalize lower-cases and trims a DOI, strips a doi.org URL prefix, and
// verifies the registrant prefix pattern "10.". The normalized form is the
// cache identity for all records.
func Normalize(doi string) (string, error) {
	d := strings.ToLower(strings.TrimSpace(doi))
	for _, prefix := range []string{"https://doi.org/", "http://doi.org/", "doi.org/", "doi:"} {
		d = strings.TrimPrefix(d, prefix)
	}
	if !strings.HasPrefix(d, "10.") || !strings.Contains(d, "/") {
		return "", ErrInvalidDOI
	}
	return d, nil
}

// Prefix returns the registrant prefix of a DOI ("10.1234" from
// "10.1234/abc"), used by consumers to detect journal self-citations.
func Prefix(doi string) string {
	if doi == "" {
		return ""
	}
	if i := strings.Index(doi, "/"); i >= 0 {
		return doi[:i]
	}
	if len(doi) > 7 {
		return doi[:7]
	}
	return doi
}

// Unified is the merged view of one work across both providers. It is a
// pure function of the two provider records: either side may be nil when
// that provider could not resolve the DOI, and the record is never mutated
// after construction.
type Unified struct {
	DOI      string
	Crossref *crossref.Work
	OpenAlex *openalex.Work
}

// Resolved reports whether at least one provider returned a record.
func (u *Unified) Resolved() bool {
	return u != nil && (u.Crossref != nil || u.OpenAlex != nil)
}

// CitedByCount returns the open-metadata citation count, or the registry
// count when the former is unavailable.
func (u *Unified) CitedByCount() int {
	if u.OpenAlex != nil {
		return u.OpenAlex.CitedByCount
	}
	if u.Crossref != nil {
		return u.Crossref.IsReferencedByCount
	}
	return 0
}

// PublishedTime returns the registry publication date, falling back to the
// open-metadata date. The zero time means no provider carried one.
func (u *Unified) PublishedTime() time.Time {
	if u.Crossref != nil {
		if y, m, d := u.Crossref.Published.Parts(); y > 0 {
			return time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC)
		}
	}
	if u.OpenAlex != nil {
		if t, err := time.Parse("2006-01-02", u.OpenAlex.PublicationDate); err == nil {
			return t
		}
		if u.OpenAlex.PublicationYear > 0 {
			return time.Date(u.OpenAlex.PublicationYear, 1, 1, 0, 0, 0, 0, time.UTC)
		}
	}
	return time.Time{}
}

// CitationEdge is one directed citation from a citing work to the seed it
// cites. A citing work that cites several seeds produces one edge per seed;
// multiplicities are preserved at this layer and collapsed, if at all, by
// downstream consumers.
type CitationEdge struct {
	SeedDOI       string
	CitingDOI     string
	PublishedDate string
	Crossref      *crossref.Work
	OpenAlex      *openalex.Work
}
