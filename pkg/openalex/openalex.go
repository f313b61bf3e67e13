// Package openalex implements the open-metadata provider contract:
// single-work lookup by DOI, journal source lookup by ISSN, and the
// cursor-paginated "works citing X" traversal.
package openalex

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/scholarmetrics/citegraph/pkg/client"
	"github.com/scholarmetrics/citegraph/pkg/pagination"
)

// DefaultBaseURL is the public OpenAlex REST API.
const DefaultBaseURL = "https://api.openalex.org"

// CitingPerPage is the page size for citing traversals.
const CitingPerPage = 100

// Client queries the OpenAlex endpoints through a shared Fetcher.
type Client struct {
	fetch   *client.Fetcher
	baseURL string
	mailto  string
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL points the client at a different endpoint (for testing).
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = u }
}

// New creates an OpenAlex client. The mailto address joins the polite pool.
func New(fetch *client.Fetcher, mailto string, opts ...Option) *Client {
	c := &Client{
		fetch:   fetch,
		baseURL: DefaultBaseURL,
		mailto:  mailto,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Work fetches one work record by DOI. OpenAlex addresses works by their
// DOI URL form, so bare DOIs are expanded before the call.
func (c *Client) Work(ctx context.Context, doi string) (*Work, error) {
	id := doi
	if !strings.HasPrefix(id, "http") {
		id = "https://doi.org/" + doi
	}
	u := fmt.Sprintf("%s/works/%s", c.baseURL, url.PathEscape(id))
	if c.mailto != "" {
		u += "?mailto=" + url.QueryEscape(c.mailto)
	}

	var raw json.RawMessage
	if err := c.fetch.GetJSON(ctx, u, &raw); err != nil {
		return nil, err
	}

	var w Work
	if err := json.Unmarshal(raw, &w); err != nil {
		return nil, fmt.Errorf("%w: decode work: %v", client.ErrMalformed, err)
	}
	w.Raw = raw
	return &w, nil
}

// sourcesEnvelope wraps a /sources listing response.
type sourcesEnvelope struct {
	Meta struct {
		Count int `json:"count"`
	} `json:"meta"`
	Results []Source `json:"results"`
}

// Source resolves a journal by ISSN. A 200 with zero results maps to
// ErrNotFound, matching the fetcher's taxonomy for empty result sets.
func (c *Client) Source(ctx context.Context, issn string) (*Source, error) {
	u := fmt.Sprintf("%s/sources?filter=issn:%s", c.baseURL, url.QueryEscape(issn))

	var env sourcesEnvelope
	if err := c.fetch.GetJSON(ctx, u, &env); err != nil {
		return nil, err
	}
	if env.Meta.Count == 0 || len(env.Results) == 0 {
		return nil, fmt.Errorf("%w: no source for issn %s", client.ErrNotFound, issn)
	}
	return &env.Results[0], nil
}

// citingEnvelope wraps one page of a citing traversal.
type citingEnvelope struct {
	Meta struct {
		NextCursor *string `json:"next_cursor"`
	} `json:"meta"`
	Results []Work `json:"results"`
}

// Citing lists every work whose reference list includes the given
// provider-internal work ID (the short form, e.g. "W2741809807"),
// paginating until exhaustion. A page failure returns the works collected
// so far with the error.
func (c *Client) Citing(ctx context.Context, workID string) ([]Work, error) {
	return pagination.Collect(ctx, func(ctx context.Context, cursor string) (pagination.Page[Work], error) {
		params := url.Values{
			"filter":   {"cites:" + workID},
			"per-page": {fmt.Sprintf("%d", CitingPerPage)},
			"cursor":   {cursor},
		}
		if c.mailto != "" {
			params.Set("mailto", c.mailto)
		}

		var env citingEnvelope
		if err := c.fetch.GetJSON(ctx, c.baseURL+"/works?"+params.Encode(), &env); err != nil {
			return pagination.Page[Work]{}, err
		}

		page := pagination.Page[Work]{Items: env.Results}
		if env.Meta.NextCursor != nil {
			page.NextCursor = *env.Meta.NextCursor
		}
		return page, nil
	})
}
