package gallery

import (
	"context"

	"imghost/internal/errs"
	"imghost/pkg/object"
)

// DefaultPageLimit is the page size used when a caller asks for none.
const DefaultPageLimit = 100

// Page is one page of a prefix listing. NextCursor is empty unless
// Truncated is set; a truncated page may have no entries.
type Page struct {
	Entries    []object.Object
	Truncated  bool
	NextCursor string
}

// PageLimit applies the paging rules: zero or negative means
// DefaultPageLimit, anything above object.MaxListLimit is clamped.
func PageLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultPageLimit
	case limit > object.MaxListLimit:
		return object.MaxListLimit
	default:
		return limit
	}
}

// ListPage fetches a single page under prefix. The cursor is passed to the
// store untouched. Store failures come back as StoreUnavailable errors and
// are not retried.
func ListPage(ctx context.Context, store object.Lister, prefix, cursor string, limit int) (Page, error) {
	res, err := store.List(ctx, object.ListOptions{
		Prefix: prefix,
		Cursor: cursor,
		Limit:  PageLimit(limit),
	})
	if err != nil {
		return Page{}, errs.Wrap(errs.KindStoreUnavailable, "list", prefix, err)
	}
	page := Page{Entries: res.Objects, Truncated: res.Truncated}
	if res.Truncated {
		page.NextCursor = res.Cursor
	}
	return page, nil
}

// Walk calls fn for every page under prefix, following cursors until the
// store reports the listing complete. Pages are requested at the store's
// maximum size.
func Walk(ctx context.Context, store object.Lister, prefix string, fn func(Page) error) error {
	cursor := ""
	for {
		page, err := ListPage(ctx, store, prefix, cursor, object.MaxListLimit)
		if err != nil {
			return err
		}
		if err := fn(page); err != nil {
			return err
		}
		if !page.Truncated {
			return nil
		}
		if page.NextCursor == "" || page.NextCursor == cursor {
			return errs.New(errs.KindStoreUnavailable, "list", prefix, "truncated page without a new cursor")
		}
		cursor = page.NextCursor
	}
}
