// Package filters provides the keyed filter-staging store behind every
// paginated or sortable list.
//
// Each key owns a triple of staged values, applied filters and the query
// string derived from the applied filters. Edits can be committed on every
// change or staged and committed later with ApplyValues.
//
// Usage:
//
//	store := filters.NewStore()
//	ctx = filters.WithStore(ctx, store)
//
//	func ReserveList(ctx context.Context) {
//	    b, detach := filters.Use(ctx,
//	        filters.WithKey("reserve-list"),
//	        filters.WithInitialFilters(filters.NewValues(
//	            filters.F("page", 1),
//	            filters.F("limit", 10),
//	        )),
//	    )
//	    defer detach()
//
//	    b.SetFilter("sort", "name")
//	    fetch("/reserve?" + b.Query()) // page=1&limit=10&sort=name
//	}
//
// Staged editing:
//
//	b := filters.NewBinding(store, filters.WithCommitOnChange(false))
//	b.Attach()
//	b.SetFilter("status", "APPROVED") // Values changes, Filters does not
//	b.ApplyValues()                   // Filters and Query catch up
//
// Bindings that share a key share one entry: a write through either is
// visible to both. Bindings without an explicit key get a generated one.
package filters
