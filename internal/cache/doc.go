// Package cache provides the normalized post store shared by every view.
//
// # Overview
//
// The Store keeps one record per post id plus the ordering indexes that views
// render from:
//
//	byID        id → posts.Post          (last write wins)
//	rootOrder   []id                     (root posts, server order)
//	childrenOf  parentID → []id          (direct replies, server order)
//	cursors     scope key → posts.Cursor (unfetched / more / exhausted)
//
// Scope keys are "root" and "children:<parentID>", see posts.Scope.
//
// # Set vs Append
//
// Set* replaces an index wholesale and is used when the first page of a load
// sequence lands, so ids from an earlier session never linger. Append* merges a
// later page with set-union semantics:
//
//	existing  [a b c]
//	page      [c d a e]
//	result    [a b c d e]
//
// Re-applying the same page is a no-op on the order, which keeps retries and
// overlapping refetches harmless.
//
// # Reads
//
// Ordered reads resolve ids through byID and silently skip ids without a
// record. All reads return copies; callers may modify them freely.
//
// # Lifecycle
//
// One Store is created per session by the app package and injected into the
// synchronizer, the prefetcher and the view layer. Clear is the teardown hook
// (sign-out style reset) and wipes every map under a single lock.
//
// # Concurrency
//
// A sync.RWMutex guards all state. No method performs I/O while holding it.
package cache
