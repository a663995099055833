package query

import (
	"time"

	"github.com/five82/posttree/internal/api"
	"github.com/five82/posttree/internal/posts"
)

// Transition says how a cache change relates to what was cached before.
type Transition int

const (
	// Replace is the first page of a fresh load sequence, including the first
	// page after an invalidation.
	Replace Transition = iota + 1
	// Extend is a subsequent page of the same load sequence.
	Extend
	// Refresh is a page from a load sequence that was invalidated while the
	// request was in flight. Only its records are still useful.
	Refresh
)

func (t Transition) String() string {
	switch t {
	case Replace:
		return "replace"
	case Extend:
		return "extend"
	case Refresh:
		return "refresh"
	default:
		return "unknown"
	}
}

// Event is emitted every time a page lands.
type Event struct {
	Scope      posts.Scope
	Transition Transition
	// Page is the page just received.
	Page api.Page
	// Pages holds every page cached for the scope after the change. Empty for
	// Refresh events.
	Pages []api.Page
}

// Result is a point-in-time view of one scope.
type Result struct {
	Scope        posts.Scope
	Pages        []api.Page
	Loading      bool
	FetchingNext bool
	Err          error
	HasNextPage  bool
	UpdatedAt    time.Time
}

// Fetched reports whether at least one page is cached.
func (r Result) Fetched() bool {
	return len(r.Pages) > 0
}

// Posts flattens the pages in order. An id that appears on more than one page
// is kept at its first position.
func (r Result) Posts() []posts.Post {
	if len(r.Pages) == 0 {
		return nil
	}
	seen := make(map[string]struct{})
	var out []posts.Post
	for _, page := range r.Pages {
		for _, post := range page.Posts {
			if _, dup := seen[post.ID]; dup {
				continue
			}
			seen[post.ID] = struct{}{}
			out = append(out, post)
		}
	}
	return out
}

func (e *entry) result() Result {
	res := Result{
		Scope:     e.scope,
		Pages:     clonePages(e.pages),
		Err:       e.err,
		UpdatedAt: e.updatedAt,
	}
	if e.inflight {
		if len(e.pages) == 0 {
			res.Loading = true
		} else {
			res.FetchingNext = true
		}
	}
	if n := len(e.pages); n > 0 {
		res.HasNextPage = e.pages[n-1].HasMore()
	}
	return res
}

func clonePage(p api.Page) api.Page {
	dup := api.Page{NextCursor: p.NextCursor}
	if len(p.Posts) > 0 {
		dup.Posts = make([]posts.Post, len(p.Posts))
		copy(dup.Posts, p.Posts)
	}
	return dup
}

func clonePages(pages []api.Page) []api.Page {
	if len(pages) == 0 {
		return nil
	}
	dup := make([]api.Page, len(pages))
	for i, p := range pages {
		dup[i] = clonePage(p)
	}
	return dup
}
