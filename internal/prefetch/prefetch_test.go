package prefetch

import (
	"context"
	"io"
	"reflect"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	"github.com/five82/posttree/internal/api"
	"github.com/five82/posttree/internal/apitest"
	"github.com/five82/posttree/internal/cache"
	"github.com/five82/posttree/internal/posts"
	"github.com/five82/posttree/internal/query"
	"github.com/five82/posttree/internal/syncer"
)

type harness struct {
	backend *apitest.Backend
	store   *cache.Store
	queries *query.Cache
	pf      *Prefetcher
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	backend := apitest.NewBackend()
	server := apitest.NewServer(backend)
	t.Cleanup(server.Close)

	client, err := api.NewClient(server.URL)
	if err != nil {
		t.Fatalf("NewClient returned error: %v", err)
	}
	logger := log.New(io.Discard)
	store := cache.New()
	queries := query.New(context.Background(), client, query.Options{PageSize: 10, Logger: logger})
	t.Cleanup(syncer.New(store, logger).Attach(queries))

	return &harness{
		backend: backend,
		store:   store,
		queries: queries,
		pf:      New(context.Background(), store, queries, client, logger),
	}
}

func testContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestPrefetchChildren_CachedParentMakesNoRequests(t *testing.T) {
	h := newHarness(t)
	ctx := testContext(t)

	root, _ := h.backend.Create(posts.NewPost{Value: 10, AuthorID: "u"})
	h.backend.Create(posts.NewPost{Value: 3, Operation: posts.OpSubtract, ParentID: root.ID, AuthorID: "u"})

	if err := h.pf.PrefetchChildren(ctx, root.ID); err != nil {
		t.Fatalf("PrefetchChildren returned error: %v", err)
	}
	if got := h.backend.Requests(apitest.RouteChildren); got != 1 {
		t.Fatalf("children requests = %d, want 1", got)
	}
	if len(h.store.Children(root.ID)) != 1 {
		t.Fatalf("store children = %v, want 1 post", h.store.Children(root.ID))
	}

	h.backend.ResetRequests()
	if err := h.pf.PrefetchChildren(ctx, root.ID); err != nil {
		t.Fatalf("PrefetchChildren returned error: %v", err)
	}
	if got := h.backend.TotalRequests(); got != 0 {
		t.Fatalf("requests for cached parent = %d, want 0", got)
	}
}

func TestPrefetchRootPosts_QueryCacheHitMakesNoRequests(t *testing.T) {
	h := newHarness(t)
	ctx := testContext(t)
	h.backend.Create(posts.NewPost{Value: 1, AuthorID: "u"})

	if _, err := h.queries.Prime(ctx, posts.Root()); err != nil {
		t.Fatalf("Prime returned error: %v", err)
	}
	// Only the query cache holds the page now.
	h.store.Clear()
	h.backend.ResetRequests()

	if err := h.pf.PrefetchRootPosts(ctx); err != nil {
		t.Fatalf("PrefetchRootPosts returned error: %v", err)
	}
	if got := h.backend.TotalRequests(); got != 0 {
		t.Fatalf("requests = %d, want 0", got)
	}
	if !h.pf.HasData(posts.Root()) {
		t.Fatal("HasData(root) = false, want true")
	}
	if h.pf.HasData(posts.ChildrenOf("nope")) {
		t.Fatal("HasData(unfetched) = true")
	}
}

func TestPrefetchPost_StoresAndReusesRecord(t *testing.T) {
	h := newHarness(t)
	ctx := testContext(t)
	root, _ := h.backend.Create(posts.NewPost{Value: 10, AuthorID: "u"})

	post, err := h.pf.PrefetchPost(ctx, root.ID)
	if err != nil || post == nil || post.ID != root.ID {
		t.Fatalf("PrefetchPost = %#v, %v; want %s", post, err, root.ID)
	}
	if !h.store.HasPost(root.ID) {
		t.Fatal("fetched post not written to store")
	}
	h.backend.ResetRequests()
	if _, err := h.pf.PrefetchPost(ctx, root.ID); err != nil {
		t.Fatalf("PrefetchPost returned error: %v", err)
	}
	if got := h.backend.TotalRequests(); got != 0 {
		t.Fatalf("requests for cached post = %d, want 0", got)
	}

	missing, err := h.pf.PrefetchPost(ctx, "missing")
	if err != nil || missing != nil {
		t.Fatalf("PrefetchPost(missing) = %#v, %v; want nil, nil", missing, err)
	}
}

func TestPrefetchAncestors_FetchesOnceThenUsesStore(t *testing.T) {
	h := newHarness(t)
	ctx := testContext(t)
	root, _ := h.backend.Create(posts.NewPost{Value: 10, AuthorID: "u"})
	mid, _ := h.backend.Create(posts.NewPost{Value: 2, Operation: posts.OpMultiply, ParentID: root.ID, AuthorID: "u"})
	leaf, _ := h.backend.Create(posts.NewPost{Value: 1, Operation: posts.OpAdd, ParentID: mid.ID, AuthorID: "u"})

	if _, err := h.pf.PrefetchPost(ctx, leaf.ID); err != nil {
		t.Fatalf("PrefetchPost returned error: %v", err)
	}
	chain, err := h.pf.PrefetchAncestors(ctx, leaf.ID)
	if err != nil {
		t.Fatalf("PrefetchAncestors returned error: %v", err)
	}
	want := []string{root.ID, mid.ID}
	if got := posts.IDs(chain); !reflect.DeepEqual(got, want) {
		t.Fatalf("chain = %v, want %v", got, want)
	}

	h.backend.ResetRequests()
	chain, err = h.pf.PrefetchAncestors(ctx, leaf.ID)
	if err != nil {
		t.Fatalf("PrefetchAncestors returned error: %v", err)
	}
	if got := posts.IDs(chain); !reflect.DeepEqual(got, want) {
		t.Fatalf("cached chain = %v, want %v", got, want)
	}
	if got := h.backend.TotalRequests(); got != 0 {
		t.Fatalf("requests for cached chain = %d, want 0", got)
	}
}

func TestRoute_PreparesDetailView(t *testing.T) {
	h := newHarness(t)
	ctx := testContext(t)
	root, _ := h.backend.Create(posts.NewPost{Value: 10, AuthorID: "u"})
	reply, _ := h.backend.Create(posts.NewPost{Value: 3, Operation: posts.OpSubtract, ParentID: root.ID, AuthorID: "u"})
	h.backend.Create(posts.NewPost{Value: 2, Operation: posts.OpMultiply, ParentID: reply.ID, AuthorID: "u"})

	post, chain, err := h.pf.Route(ctx, reply.ID)
	if err != nil {
		t.Fatalf("Route returned error: %v", err)
	}
	if post == nil || post.Result != 7 {
		t.Fatalf("Route post = %#v, want result 7", post)
	}
	if got := posts.IDs(chain); !reflect.DeepEqual(got, []string{root.ID}) {
		t.Fatalf("Route chain = %v, want [%s]", got, root.ID)
	}
	if len(h.store.Children(reply.ID)) != 1 {
		t.Fatalf("children of reply not prefetched")
	}

	post, _, err = h.pf.Route(ctx, "missing")
	if err != nil || post != nil {
		t.Fatalf("Route(missing) = %#v, %v; want nil, nil", post, err)
	}
}

func TestHover_PrefetchesInBackground(t *testing.T) {
	h := newHarness(t)
	root, _ := h.backend.Create(posts.NewPost{Value: 10, AuthorID: "u"})
	h.backend.Create(posts.NewPost{Value: 1, Operation: posts.OpAdd, ParentID: root.ID, AuthorID: "u"})

	h.pf.Hover(root.ID)
	deadline := time.Now().Add(2 * time.Second)
	for !h.pf.HasData(posts.ChildrenOf(root.ID)) {
		if time.Now().After(deadline) {
			t.Fatal("hover prefetch did not populate the cache")
		}
		time.Sleep(5 * time.Millisecond)
	}

	h.backend.ResetRequests()
	h.pf.Hover(root.ID)
	time.Sleep(20 * time.Millisecond)
	if got := h.backend.TotalRequests(); got != 0 {
		t.Fatalf("repeat hover requests = %d, want 0", got)
	}
}

type countingObserver map[string]int

func (c countingObserver) ObservePrefetch(kind, source string) {
	c[kind+"/"+source]++
}

func TestObserverSplitsCacheAndNetwork(t *testing.T) {
	h := newHarness(t)
	ctx := testContext(t)
	obs := countingObserver{}
	h.pf.SetObserver(obs)

	root, _ := h.backend.Create(posts.NewPost{Value: 10, AuthorID: "u"})
	h.backend.Create(posts.NewPost{Value: 3, Operation: posts.OpSubtract, ParentID: root.ID, AuthorID: "u"})

	for range 2 {
		if err := h.pf.PrefetchChildren(ctx, root.ID); err != nil {
			t.Fatalf("PrefetchChildren returned error: %v", err)
		}
		if _, err := h.pf.PrefetchPost(ctx, root.ID); err != nil {
			t.Fatalf("PrefetchPost returned error: %v", err)
		}
	}

	want := countingObserver{
		"children/network": 1,
		"children/cache":   1,
		"post/network":     1,
		"post/cache":       1,
	}
	if !reflect.DeepEqual(obs, want) {
		t.Fatalf("observed = %v, want %v", obs, want)
	}
}
