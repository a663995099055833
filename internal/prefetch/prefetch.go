// Package prefetch warms the post store and query cache ahead of navigation.
//
// Every routine is cache-first: the store is consulted, then the first page
// held by the query cache, and only on a miss is a single request issued.
package prefetch

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/five82/posttree/internal/api"
	"github.com/five82/posttree/internal/cache"
	"github.com/five82/posttree/internal/posts"
	"github.com/five82/posttree/internal/query"
)

// PostFetcher loads individual records.
type PostFetcher interface {
	FetchPost(ctx context.Context, id string) (*posts.Post, error)
	FetchAncestors(ctx context.Context, id string) ([]posts.Post, error)
}

// PageCache is the part of the query cache used for scope prefetches.
type PageCache interface {
	FirstPage(scope posts.Scope) (api.Page, bool)
	Prime(ctx context.Context, scope posts.Scope) (query.Result, error)
}

// Observer counts prefetches by kind and by the layer that answered.
type Observer interface {
	ObservePrefetch(kind, source string)
}

const (
	sourceCache   = "cache"
	sourceNetwork = "network"
)

// Prefetcher issues cache-first prefetches.
type Prefetcher struct {
	store    *cache.Store
	pages    PageCache
	fetcher  PostFetcher
	logger   *log.Logger
	observer Observer
	// base is the context hover prefetches run under.
	base context.Context
}

// New returns a Prefetcher. Hover prefetches run under ctx.
func New(ctx context.Context, store *cache.Store, pages PageCache, fetcher PostFetcher, logger *log.Logger) *Prefetcher {
	if ctx == nil {
		ctx = context.Background()
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Prefetcher{
		store:   store,
		pages:   pages,
		fetcher: fetcher,
		logger:  logger.WithPrefix("prefetch"),
		base:    ctx,
	}
}

// SetObserver installs obs. Call before the first prefetch.
func (p *Prefetcher) SetObserver(obs Observer) {
	p.observer = obs
}

func (p *Prefetcher) observe(kind, source string) {
	if p.observer != nil {
		p.observer.ObservePrefetch(kind, source)
	}
}

// HasData reports whether the store or the query cache already holds posts
// for scope.
func (p *Prefetcher) HasData(scope posts.Scope) bool {
	if len(p.store.OrderIDs(scope)) > 0 {
		return true
	}
	page, ok := p.pages.FirstPage(scope)
	return ok && len(page.Posts) > 0
}

// PrefetchChildren loads the first page of replies of parentID unless it is
// already cached.
func (p *Prefetcher) PrefetchChildren(ctx context.Context, parentID string) error {
	if parentID == "" {
		return fmt.Errorf("parent id required")
	}
	return p.prefetchScope(ctx, posts.ChildrenOf(parentID))
}

// PrefetchRootPosts loads the first page of root posts unless it is already
// cached.
func (p *Prefetcher) PrefetchRootPosts(ctx context.Context) error {
	return p.prefetchScope(ctx, posts.Root())
}

func (p *Prefetcher) prefetchScope(ctx context.Context, scope posts.Scope) error {
	kind := "children"
	if scope.IsRoot() {
		kind = "root"
	}
	if p.HasData(scope) {
		p.logger.Debug("cache hit", "scope", scope.Key())
		p.observe(kind, sourceCache)
		return nil
	}
	p.observe(kind, sourceNetwork)
	if _, err := p.pages.Prime(ctx, scope); err != nil {
		return fmt.Errorf("prefetch %s: %w", scope.Key(), err)
	}
	return nil
}

// PrefetchPost returns the post with id, fetching and storing it on a miss.
// An unknown id yields nil without an error.
func (p *Prefetcher) PrefetchPost(ctx context.Context, id string) (*posts.Post, error) {
	if post, ok := p.store.Post(id); ok {
		p.observe("post", sourceCache)
		return &post, nil
	}
	p.observe("post", sourceNetwork)
	post, err := p.fetcher.FetchPost(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("prefetch post %s: %w", id, err)
	}
	if post != nil {
		p.store.SetPost(*post)
	}
	return post, nil
}

// PrefetchAncestors returns the chain above id, root first. The store answers
// when every link is cached; otherwise the chain is fetched and stored.
func (p *Prefetcher) PrefetchAncestors(ctx context.Context, id string) ([]posts.Post, error) {
	if chain, complete := p.store.Ancestors(id); complete {
		p.observe("ancestors", sourceCache)
		return chain, nil
	}
	p.observe("ancestors", sourceNetwork)
	chain, err := p.fetcher.FetchAncestors(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("prefetch ancestors of %s: %w", id, err)
	}
	p.store.SetPosts(chain)
	return chain, nil
}

// Hover prefetches the replies of parentID in the background. Failures are
// logged and otherwise ignored.
func (p *Prefetcher) Hover(parentID string) {
	if parentID == "" || p.HasData(posts.ChildrenOf(parentID)) {
		return
	}
	go func() {
		if err := p.PrefetchChildren(p.base, parentID); err != nil {
			p.logger.Debug("hover prefetch failed", "parent", parentID, "err", err)
		}
	}()
}

// Route prepares the detail view of id: the post, its ancestors and its first
// page of replies. An empty id prepares the root list. A nil post with a nil
// error means id does not exist.
func (p *Prefetcher) Route(ctx context.Context, id string) (*posts.Post, []posts.Post, error) {
	if id == "" {
		return nil, nil, p.PrefetchRootPosts(ctx)
	}
	post, err := p.PrefetchPost(ctx, id)
	if err != nil || post == nil {
		return nil, nil, err
	}

	// Ancestors and replies are independent once the post is known.
	var chain []posts.Post
	g, gctx := errgroup.WithContext(ctx)
	if !post.IsRoot() {
		g.Go(func() error {
			var err error
			chain, err = p.PrefetchAncestors(gctx, id)
			return err
		})
	}
	g.Go(func() error {
		return p.PrefetchChildren(gctx, id)
	})
	if err := g.Wait(); err != nil {
		return post, chain, err
	}
	return post, chain, nil
}
