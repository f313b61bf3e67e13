// Package pagination drives cursor-based result collection for provider
// "works" endpoints.
//
// Both providers page large result sets behind an opaque cursor: the first
// request carries the root token, each response yields a page of items plus
// a next-cursor (possibly absent), and an empty page or missing cursor
// signals exhaustion. Termination therefore depends on the provider
// eventually sending one of those.
//
// Example usage:
//
//	items, err := pagination.Collect(ctx, func(ctx context.Context, cursor string) (pagination.Page[Work], error) {
//		return listPage(ctx, issn, cursor)
//	})
//
// A page failure (after the fetcher's own retries) ends the loop early with
// everything collected so far; partial results are accepted, not discarded.
package pagination

import (
	"context"

	"github.com/rs/zerolog/log"
)

// RootCursor is the opaque token both providers accept for the first page.
const RootCursor = "*"

// Page is one cursor-paginated response. An empty NextCursor ends the
// traversal, as does an empty Items slice.
type Page[T any] struct {
	Items      []T
	NextCursor string
}

// PageFunc fetches the page for one cursor.
type PageFunc[T any] func(ctx context.Context, cursor string) (Page[T], error)

// Collect walks the cursor chain from RootCursor until exhaustion and
// returns every item seen. On a page error it returns the items collected
// so far together with the error, and callers decide whether the partial
// data is usable.
func Collect[T any](ctx context.Context, fn PageFunc[T]) ([]T, error) {
	var items []T
	cursor := RootCursor
	pages := 0

	for {
		if err := ctx.Err(); err != nil {
			return items, err
		}

		page, err := fn(ctx, cursor)
		items = append(items, page.Items...)
		pages++

		if err != nil {
			log.Warn().
				Err(err).
				Int("pages", pages).
				Int("items", len(items)).
				Msg("Page fetch failed, keeping partial results")
			return items, err
		}

		if page.NextCursor == "" || len(page.Items) == 0 {
			log.Debug().
				Int("pages", pages).
				Int("items", len(items)).
				Msg("Cursor traversal complete")
			return items, nil
		}

		cursor = page.NextCursor
	}
}
