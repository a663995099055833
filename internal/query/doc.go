// Package query caches cursor-paginated page lists per scope.
//
// Each scope holds an ordered list of pages plus its loading, error and
// next-page state. Requests for the same scope load sequence are shared: any
// number of concurrent readers cause at most one request. FetchNextPage is a
// no-op while a request is outstanding or once the last page reported no
// next cursor.
//
// Every landed page is published to subscribers as an Event whose Transition
// tells the receiver whether to replace (first page of a fresh sequence),
// extend (later page of the same sequence) or only refresh records (the
// sequence was invalidated while the request was in flight).
//
// Invalidate starts a new load sequence. Scopes currently shown (marked by
// Query, Fetch or FetchNextPage and cleared by Release) are refetched right
// away; others wait for their next read.
package query
