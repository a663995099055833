package state

import (
	"github.com/five82/posttree/internal/posts"
	"github.com/five82/posttree/internal/query"
)

// PostReader is the read side of the post store.
type PostReader interface {
	Post(id string) (posts.Post, bool)
	Ordered(scope posts.Scope) []posts.Post
	Cursor(scope posts.Scope) posts.Cursor
}

// Merge builds the list part of a View from a query result. Fetched pages
// decide the order and each record is read back from the store so later
// refreshes of a post show up. Until the query has pages, whatever the store
// holds for the scope is shown instead.
func Merge(res query.Result, store PostReader) View {
	view := View{
		Scope:        res.Scope,
		Loading:      res.Loading,
		FetchingNext: res.FetchingNext,
	}
	if res.Fetched() {
		page := res.Posts()
		view.Posts = make([]posts.Post, 0, len(page))
		for _, p := range page {
			if stored, ok := store.Post(p.ID); ok {
				p = stored
			}
			view.Posts = append(view.Posts, p)
		}
		view.HasMore = res.HasNextPage
		return view
	}
	view.Posts = store.Ordered(res.Scope)
	view.FromCache = len(view.Posts) > 0
	view.HasMore = store.Cursor(res.Scope).HasMore()
	return view
}
