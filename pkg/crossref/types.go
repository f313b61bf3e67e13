package crossref

import "encoding/json"

// Work is a Crossref work record. Only the fields consumed downstream are
// declared; the full payload is retained in Raw.
type Work struct {
	DOI                 string      `json:"DOI"`
	Title               []string    `json:"title"`
	Author              []Author    `json:"author"`
	Published           DateField   `json:"published"`
	Created             DateField   `json:"created"`
	ContainerTitle      []string    `json:"container-title"`
	Publisher           string      `json:"publisher"`
	ISSN                []string    `json:"ISSN"`
	Reference           []Reference `json:"reference"`
	ReferenceCount      int         `json:"reference-count"`
	IsReferencedByCount int         `json:"is-referenced-by-count"`
	Type                string      `json:"type"`

	// Raw is the undecoded message payload, populated on single-work
	// fetches so stores can persist the record verbatim.
	Raw json.RawMessage `json:"-"`
}

// Author is one contributor entry.
type Author struct {
	Given  string `json:"given"`
	Family string `json:"family"`
}

// Reference is one entry of a work's reference list. The DOI is optional;
// year arrives as a string in most records.
type Reference struct {
	DOI  string `json:"DOI"`
	Year string `json:"year"`
}

// DateField holds Crossref's date-parts representation:
// [[year, month, day]] with month and day optional.
type DateField struct {
	DateParts [][]int `json:"date-parts"`
}

// Year returns the year component, or 0 when absent.
func (d DateField) Year() int {
	if len(d.DateParts) == 0 || len(d.DateParts[0]) == 0 {
		return 0
	}
	return d.DateParts[0][0]
}

// Parts returns (year, month, day) with month and day defaulting to 1.
func (d DateField) Parts() (int, int, int) {
	year, month, day := 0, 1, 1
	if len(d.DateParts) > 0 {
		p := d.DateParts[0]
		if len(p) > 0 {
			year = p[0]
		}
		if len(p) > 1 {
			month = p[1]
		}
		if len(p) > 2 {
			day = p[2]
		}
	}
	return year, month, day
}

// FirstTitle returns the primary title, or "" when the list is empty.
func (w *Work) FirstTitle() string {
	if len(w.Title) == 0 {
		return ""
	}
	return w.Title[0]
}
