// Package state holds the view snapshot shared between the session and the UI.
//
// The session computes a View whenever the current scope changes and stores
// it with Update; the UI reads copies with Snapshot on its own schedule.
// Update keeps previously shown posts when a load fails so the screen never
// goes blank on a transient error, and counts consecutive failures so the UI
// can tell a hiccup from an outage.
//
// Merge derives the list from the query cache and falls back to the post
// store while the query is still loading, for the root list and reply lists
// alike.
//
// The zero Store is ready to use.
package state
