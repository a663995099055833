// Package api is the HTTP client for the posts collaborator.
//
// # Endpoints
//
//	GET  /posts?cursor=&limit=              root posts, newest first
//	GET  /posts/{id}/children?cursor=&limit= direct replies of id
//	GET  /posts/{id}                        single post (404 → nil)
//	GET  /posts/{id}/parents                ancestor chain, root first
//	POST /posts                             create {value, operation?, parentId?, authorId}
//
// # Pagination
//
// The collaborator fetches limit+1 rows. When the extra row exists its id is
// returned as nextCursor and the row itself is left out of the page. A request
// carrying that cursor starts at the row, so no post is skipped or repeated
// between pages. An absent nextCursor means the scope is exhausted.
//
// # Base URL
//
// NewClient resolves its address from, in order: the configured value, the
// POSTTREE_APP_URL environment variable, and http://localhost:3000. A path
// prefix (for example http://host/api) is preserved.
//
// # Errors
//
// Every non-2xx response becomes a *TransportError carrying the method, path,
// status and the {"error": "..."} message when present. FetchPost and
// FetchAncestors map 404 to an empty result instead. The client never
// retries; callers decide.
//
// CreatePost validates the draft locally and returns *posts.ValidationError
// without touching the network when it is rejected.
package api
