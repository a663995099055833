package query

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/singleflight"

	"github.com/five82/posttree/internal/api"
	"github.com/five82/posttree/internal/posts"
)

// PageFetcher is the slice of api.Fetcher the cache needs.
type PageFetcher interface {
	FetchPage(ctx context.Context, scope posts.Scope, cursor string, limit int) (api.Page, error)
}

// Options configure a Cache.
type Options struct {
	// PageSize is sent as the limit of every page request; zero leaves it to
	// the server.
	PageSize int
	Logger   *log.Logger
}

// Cache is a cursor-paginated query cache keyed by scope.
type Cache struct {
	fetcher  PageFetcher
	pageSize int
	logger   *log.Logger
	baseCtx  context.Context
	flights  singleflight.Group

	// emitMu serialises event delivery and is always taken before mu.
	emitMu sync.Mutex

	mu      sync.Mutex
	entries map[string]*entry
	genSeq  uint64
	subs    []subscriber
	subSeq  int
}

type subscriber struct {
	id int
	fn func(Event)
}

type entry struct {
	scope     posts.Scope
	gen       uint64
	pages     []api.Page
	err       error
	inflight  bool
	active    bool
	updatedAt time.Time
}

type fetchMode int

const (
	modeFirst fetchMode = iota
	modeNext
)

// New returns a Cache backed by fetcher. Background refetches triggered by
// Query and Invalidate run under ctx.
func New(ctx context.Context, fetcher PageFetcher, opts Options) *Cache {
	if ctx == nil {
		ctx = context.Background()
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Cache{
		fetcher:  fetcher,
		pageSize: opts.PageSize,
		logger:   logger.WithPrefix("query"),
		baseCtx:  ctx,
		entries:  make(map[string]*entry),
	}
}

// Subscribe registers fn for every cache transition. Events for a scope are
// delivered in the order pages were received, and subscribers are called in
// the order they subscribed. fn must not start fetches synchronously. The
// returned func removes the subscription.
func (c *Cache) Subscribe(fn func(Event)) (unsubscribe func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.subSeq++
	id := c.subSeq
	c.subs = append(c.subs, subscriber{id: id, fn: fn})
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		for i, sub := range c.subs {
			if sub.id == id {
				c.subs = append(c.subs[:i:i], c.subs[i+1:]...)
				return
			}
		}
	}
}

// Query subscribes to scope and returns its current state. The first call for
// an unfetched scope starts the initial page fetch in the background.
func (c *Cache) Query(ctx context.Context, scope posts.Scope) Result {
	c.mu.Lock()
	e := c.entryLocked(scope)
	e.active = true
	start := len(e.pages) == 0 && !e.inflight && e.err == nil
	if start {
		// Mark now so the snapshot below already reports loading.
		e.inflight = true
	}
	res := e.result()
	gen := e.gen
	c.mu.Unlock()

	if start {
		go func() {
			_, _ = c.fetchGen(context.WithoutCancel(ctx), scope, modeFirst, gen)
		}()
	}
	return res
}

// Fetch subscribes to scope and blocks until its first page is cached. A scope
// left in an error state is retried.
func (c *Cache) Fetch(ctx context.Context, scope posts.Scope) (Result, error) {
	c.mu.Lock()
	c.entryLocked(scope).active = true
	c.mu.Unlock()
	return c.run(ctx, scope, modeFirst)
}

// Prime fetches the first page of scope only when nothing is cached for it.
// It does not subscribe.
func (c *Cache) Prime(ctx context.Context, scope posts.Scope) (Result, error) {
	return c.run(ctx, scope, modeFirst)
}

// FetchNextPage requests the page after the last cached one. It is a no-op
// when the scope is unfetched or exhausted, and joins the outstanding request
// when a fetch for the scope is already in flight.
func (c *Cache) FetchNextPage(ctx context.Context, scope posts.Scope) (Result, error) {
	c.mu.Lock()
	c.entryLocked(scope).active = true
	c.mu.Unlock()
	return c.run(ctx, scope, modeNext)
}

// Result returns the state of scope without subscribing or fetching.
func (c *Cache) Result(scope posts.Scope) Result {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[scope.Key()]; ok {
		return e.result()
	}
	return Result{Scope: scope}
}

// FirstPage returns the cached first page of scope.
func (c *Cache) FirstPage(scope posts.Scope) (api.Page, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[scope.Key()]
	if !ok || len(e.pages) == 0 {
		return api.Page{}, false
	}
	return clonePage(e.pages[0]), true
}

// Release marks scope as no longer displayed. Released scopes keep their pages
// but are not refetched eagerly on invalidation.
func (c *Cache) Release(scope posts.Scope) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[scope.Key()]; ok {
		e.active = false
	}
}

// Invalidate drops the cached pages of scope. The next read starts again from
// the first page; a scope that is currently displayed is refetched right away.
func (c *Cache) Invalidate(scope posts.Scope) {
	c.mu.Lock()
	e, ok := c.entries[scope.Key()]
	if !ok {
		c.mu.Unlock()
		return
	}
	refetch := c.resetLocked(e)
	c.mu.Unlock()

	c.logger.Debug("invalidated", "scope", scope.Key(), "refetch", refetch)
	if refetch {
		go func() {
			if _, err := c.run(c.baseCtx, scope, modeFirst); err != nil {
				c.logger.Warn("refetch after invalidate failed", "scope", scope.Key(), "err", err)
			}
		}()
	}
}

// InvalidateAll invalidates every cached scope.
func (c *Cache) InvalidateAll() {
	c.mu.Lock()
	scopes := make([]posts.Scope, 0, len(c.entries))
	for _, e := range c.entries {
		scopes = append(scopes, e.scope)
	}
	c.mu.Unlock()
	for _, scope := range scopes {
		c.Invalidate(scope)
	}
}

// Reset forgets every scope. Results of requests still in flight are
// delivered as Refresh events only.
func (c *Cache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*entry)
}

func (c *Cache) entryLocked(scope posts.Scope) *entry {
	key := scope.Key()
	e, ok := c.entries[key]
	if !ok {
		c.genSeq++
		e = &entry{scope: scope, gen: c.genSeq}
		c.entries[key] = e
	}
	return e
}

// resetLocked starts a new load sequence for e and reports whether it should
// be refetched immediately.
func (c *Cache) resetLocked(e *entry) bool {
	c.genSeq++
	e.gen = c.genSeq
	e.pages = nil
	e.err = nil
	e.inflight = false
	return e.active
}

func (c *Cache) run(ctx context.Context, scope posts.Scope, mode fetchMode) (Result, error) {
	c.mu.Lock()
	gen := c.entryLocked(scope).gen
	c.mu.Unlock()
	return c.fetchGen(ctx, scope, mode, gen)
}

// fetchGen performs at most one request per scope load sequence at a time.
// Callers arriving while a request is outstanding share its outcome.
func (c *Cache) fetchGen(ctx context.Context, scope posts.Scope, mode fetchMode, gen uint64) (Result, error) {
	key := fmt.Sprintf("%s#%d", scope.Key(), gen)
	_, err, _ := c.flights.Do(key, func() (any, error) {
		return nil, c.fetch(ctx, scope, mode, gen)
	})
	return c.Result(scope), err
}

func (c *Cache) fetch(ctx context.Context, scope posts.Scope, mode fetchMode, gen uint64) error {
	c.mu.Lock()
	e, ok := c.entries[scope.Key()]
	if !ok || e.gen != gen {
		c.mu.Unlock()
		return nil
	}
	var (
		cursor     string
		transition Transition
	)
	switch {
	case len(e.pages) == 0 && mode == modeFirst:
		transition = Replace
	case len(e.pages) > 0 && mode == modeNext && e.pages[len(e.pages)-1].HasMore():
		transition = Extend
		cursor = e.pages[len(e.pages)-1].NextCursor
	default:
		// Already fetched, unfetched next-page request, or exhausted.
		e.inflight = false
		if n := len(e.pages); n > 0 && !e.pages[n-1].HasMore() {
			// Nothing is left to load, so no request can still be failing.
			e.err = nil
		}
		c.mu.Unlock()
		return nil
	}
	e.inflight = true
	c.mu.Unlock()

	started := time.Now()
	page, err := c.fetcher.FetchPage(ctx, scope, cursor, c.pageSize)

	c.emitMu.Lock()
	defer c.emitMu.Unlock()

	c.mu.Lock()
	e, ok = c.entries[scope.Key()]
	current := ok && e.gen == gen
	if current {
		e.inflight = false
	}
	if err != nil {
		if current {
			e.err = err
		}
		c.mu.Unlock()
		c.logger.Warn("page fetch failed", "scope", scope.Key(), "cursor", cursor, "err", err)
		return fmt.Errorf("fetch %s: %w", scope.Key(), err)
	}

	ev := Event{Scope: scope, Page: clonePage(page), Transition: Refresh}
	if current {
		e.err = nil
		e.updatedAt = time.Now()
		if transition == Replace {
			e.pages = []api.Page{page}
		} else {
			e.pages = append(e.pages, page)
		}
		ev.Transition = transition
		ev.Pages = clonePages(e.pages)
	}
	subs := make([]func(Event), 0, len(c.subs))
	for _, sub := range c.subs {
		subs = append(subs, sub.fn)
	}
	c.mu.Unlock()

	c.logger.Debug("page fetched",
		"scope", scope.Key(),
		"transition", ev.Transition,
		"posts", len(page.Posts),
		"next", page.NextCursor,
		"took", time.Since(started))
	for _, fn := range subs {
		fn(ev)
	}
	return nil
}
