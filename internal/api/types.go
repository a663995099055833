package api

import (
	"github.com/five82/posttree/internal/posts"
)

// Page is one cursor page of a scope. NextCursor is empty when the scope is
// exhausted.
type Page struct {
	Posts      []posts.Post `json:"posts"`
	NextCursor string       `json:"nextCursor,omitempty"`
}

// HasMore reports whether a further page exists.
func (p Page) HasMore() bool {
	return p.NextCursor != ""
}

// pageResponse mirrors GET /posts and GET /posts/{id}/children. The children
// route names its list "children"; both keys are accepted.
type pageResponse struct {
	Posts      []posts.Post `json:"posts"`
	Children   []posts.Post `json:"children"`
	NextCursor *string      `json:"nextCursor"`
}

func (r pageResponse) page() Page {
	page := Page{Posts: r.Posts}
	if len(page.Posts) == 0 && len(r.Children) > 0 {
		page.Posts = r.Children
	}
	if r.NextCursor != nil {
		page.NextCursor = *r.NextCursor
	}
	return page
}

// parentsResponse mirrors GET /posts/{id}/parents.
type parentsResponse struct {
	Parents []posts.Post `json:"parents"`
}
