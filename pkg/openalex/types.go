package openalex

import (
	"encoding/json"
	"strings"
)

// Work is an OpenAlex work record. Only the fields consumed downstream are
// declared; the full payload is retained in Raw when fetched singly.
type Work struct {
	ID              string       `json:"id"`
	DOI             string       `json:"doi"`
	DisplayName     string       `json:"display_name"`
	CitedByCount    int          `json:"cited_by_count"`
	Authorships     []Authorship `json:"authorships"`
	HostVenue       HostVenue    `json:"host_venue"`
	Concepts        []Concept    `json:"concepts"`
	OpenAccess      OpenAccess   `json:"open_access"`
	PublicationYear int          `json:"publication_year"`
	PublicationDate string       `json:"publication_date"`

	Raw json.RawMessage `json:"-"`
}

// Authorship links one author to their institutional affiliations.
type Authorship struct {
	Author       Author        `json:"author"`
	Institutions []Institution `json:"institutions"`
}

// Author is the display form of one contributor.
type Author struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
}

// Institution is one affiliation entry.
type Institution struct {
	DisplayName string `json:"display_name"`
	CountryCode string `json:"country_code"`
}

// HostVenue is the publication venue of a work.
type HostVenue struct {
	DisplayName string   `json:"display_name"`
	Publisher   string   `json:"publisher"`
	ISSN        []string `json:"issn"`
}

// Concept is one subject tag with its relevance score.
type Concept struct {
	DisplayName string  `json:"display_name"`
	Score       float64 `json:"score"`
}

// OpenAccess carries the work's open-access flags.
type OpenAccess struct {
	IsOA bool `json:"is_oa"`
}

// Source is a journal record from the /sources endpoint.
type Source struct {
	ID          string   `json:"id"`
	DisplayName string   `json:"display_name"`
	ISSN        []string `json:"issn"`
	Publisher   string   `json:"host_organization_name"`
}

// ShortID returns the provider-internal identifier without the URL prefix,
// e.g. "W2741809807" from "https://openalex.org/W2741809807". Citing
// traversals filter on this form.
func (w *Work) ShortID() string {
	if i := strings.LastIndex(w.ID, "/"); i >= 0 {
		return w.ID[i+1:]
	}
	return w.ID
}

// BareDOI strips the DOI URL prefix OpenAlex uses, returning the plain
// registrant form.
func (w *Work) BareDOI() string {
	return strings.TrimPrefix(w.DOI, "https://doi.org/")
}
