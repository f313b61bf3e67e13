// Package crossref implements the bibliographic-registry provider contract:
// single-work lookup by DOI and cursor-paginated bulk listing by ISSN and
// publication-date range.
package crossref

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/scholarmetrics/citegraph/pkg/client"
	"github.com/scholarmetrics/citegraph/pkg/pagination"
)

// DefaultBaseURL is the public Crossref REST API.
const DefaultBaseURL = "https://api.crossref.org"

// ListRows is the page size requested for bulk listings.
const ListRows = 1000

// Client queries the Crossref works endpoints through a shared Fetcher.
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

// New creates a Crossref client. The mailto address joins the polite pool
// and is attached to bulk listing requests as documented by Crossref.
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

// workEnvelope wraps a single-work response.
type workEnvelope struct {
	Message json.RawMessage `json:"message"`
}

// listEnvelope wraps a bulk listing response.
type listEnvelope struct {
	Message struct {
		Items      []Work  `json:"items"`
		NextCursor *string `json:"next-cursor"`
	} `json:"message"`
}

// Work fetches one work record by DOI. The raw message payload is retained
// on the record so caches can persist it verbatim.
func (c *Client) Work(ctx context.Context, doi string) (*Work, error) {
	u := fmt.Sprintf("%s/works/%s", c.baseURL, url.PathEscape(doi))

	var env workEnvelope
	if err := c.fetch.GetJSON(ctx, u, &env); err != nil {
		return nil, err
	}

	var w Work
	if err := json.Unmarshal(env.Message, &w); err != nil {
		return nil, fmt.Errorf("%w: decode work: %v", client.ErrMalformed, err)
	}
	w.Raw = env.Message
	return &w, nil
}

// WorksByJournal lists every work published in the ISSN between the two
// inclusive dates (YYYY-MM-DD), walking the cursor chain to exhaustion.
// A page failure returns the works collected so far with the error.
func (c *Client) WorksByJournal(ctx context.Context, issn, fromDate, untilDate string) ([]Work, error) {
	filter := fmt.Sprintf("issn:%s,from-pub-date:%s,until-pub-date:%s", issn, fromDate, untilDate)

	return pagination.Collect(ctx, func(ctx context.Context, cursor string) (pagination.Page[Work], error) {
		params := url.Values{
			"filter": {filter},
			"rows":   {fmt.Sprintf("%d", ListRows)},
			"cursor": {cursor},
		}
		if c.mailto != "" {
			params.Set("mailto", c.mailto)
		}

		var env listEnvelope
		if err := c.fetch.GetJSON(ctx, c.baseURL+"/works?"+params.Encode(), &env); err != nil {
			return pagination.Page[Work]{}, err
		}

		page := pagination.Page[Work]{Items: env.Message.Items}
		if env.Message.NextCursor != nil {
			page.NextCursor = *env.Message.NextCursor
		}
		return page, nil
	})
}
