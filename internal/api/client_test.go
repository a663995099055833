package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"reflect"
	"testing"
	"time"

	"github.com/five82/posttree/internal/apitest"
	"github.com/five82/posttree/internal/posts"
)

func newTestClient(t *testing.T) (*Client, *apitest.Backend) {
	t.Helper()
	backend := apitest.NewBackend()
	server := apitest.NewServer(backend)
	t.Cleanup(server.Close)

	c, err := NewClient(server.URL)
	if err != nil {
		t.Fatalf("NewClient returned error: %v", err)
	}
	return c, backend
}

func testContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestParseBaseURL_DefaultsAndNormalizes(t *testing.T) {
	u, err := parseBaseURL("")
	if err != nil {
		t.Fatalf("parseBaseURL returned error: %v", err)
	}
	if u.Scheme != "http" || u.Host != "localhost:3000" {
		t.Fatalf("url = %q, want http://localhost:3000/", u.String())
	}

	u, err = parseBaseURL("example.com:1234/api/?x=1#frag")
	if err != nil {
		t.Fatalf("parseBaseURL returned error: %v", err)
	}
	if u.Path != "/api" || u.RawQuery != "" || u.Fragment != "" {
		t.Fatalf("url not normalized: %q", u.String())
	}
	if got := u.JoinPath("posts", "a b").String(); got != "http://example.com:1234/api/posts/a%20b" {
		t.Fatalf("JoinPath = %q", got)
	}
}

func TestResolveBaseURL_Fallbacks(t *testing.T) {
	t.Setenv(BaseURLEnv, "")
	if got := ResolveBaseURL(""); got != DefaultBaseURL {
		t.Fatalf("ResolveBaseURL(\"\") = %q, want %q", got, DefaultBaseURL)
	}
	t.Setenv(BaseURLEnv, "http://env.example:9000")
	if got := ResolveBaseURL("  "); got != "http://env.example:9000" {
		t.Fatalf("ResolveBaseURL with env = %q", got)
	}
	if got := ResolveBaseURL("http://cfg.example"); got != "http://cfg.example" {
		t.Fatalf("ResolveBaseURL(configured) = %q", got)
	}
}

func TestClient_FetchPagePaginationScenario(t *testing.T) {
	c, backend := newTestClient(t)
	ctx := testContext(t)

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	backend.Seed(posts.Post{ID: "row3", Value: 3, CreatedAt: base})
	backend.Seed(posts.Post{ID: "row2", Value: 2, CreatedAt: base.Add(time.Minute)})
	backend.Seed(posts.Post{ID: "row1", Value: 1, CreatedAt: base.Add(2 * time.Minute)})

	first, err := c.FetchPage(ctx, posts.Root(), "", 2)
	if err != nil {
		t.Fatalf("FetchPage returned error: %v", err)
	}
	if got := posts.IDs(first.Posts); !reflect.DeepEqual(got, []string{"row1", "row2"}) {
		t.Fatalf("first page = %v, want [row1 row2]", got)
	}
	if first.NextCursor != "row3" || !first.HasMore() {
		t.Fatalf("NextCursor = %q, want row3", first.NextCursor)
	}

	second, err := c.FetchPage(ctx, posts.Root(), first.NextCursor, 2)
	if err != nil {
		t.Fatalf("FetchPage(cursor) returned error: %v", err)
	}
	if got := posts.IDs(second.Posts); !reflect.DeepEqual(got, []string{"row3"}) {
		t.Fatalf("second page = %v, want [row3]", got)
	}
	if second.HasMore() {
		t.Fatalf("second page NextCursor = %q, want empty", second.NextCursor)
	}
}

func TestClient_FetchChildrenAcceptsChildrenKey(t *testing.T) {
	c, backend := newTestClient(t)
	ctx := testContext(t)

	root, _ := backend.Create(posts.NewPost{Value: 10, AuthorID: "u"})
	reply, _ := backend.Create(posts.NewPost{Value: 3, Operation: posts.OpSubtract, ParentID: root.ID, AuthorID: "u"})

	page, err := c.FetchPage(ctx, posts.ChildrenOf(root.ID), "", 0)
	if err != nil {
		t.Fatalf("FetchPage(children) returned error: %v", err)
	}
	if len(page.Posts) != 1 || page.Posts[0].ID != reply.ID {
		t.Fatalf("children page = %#v, want [%s]", page.Posts, reply.ID)
	}
	if page.Posts[0].Result != 7 {
		t.Fatalf("reply Result = %v, want 7", page.Posts[0].Result)
	}
	if backend.Requests(apitest.RouteChildren) != 1 {
		t.Fatalf("children requests = %d, want 1", backend.Requests(apitest.RouteChildren))
	}
}

func TestClient_FetchPostNotFoundIsNil(t *testing.T) {
	c, backend := newTestClient(t)
	ctx := testContext(t)

	post, err := c.FetchPost(ctx, "missing")
	if err != nil {
		t.Fatalf("FetchPost returned error: %v", err)
	}
	if post != nil {
		t.Fatalf("FetchPost = %#v, want nil", post)
	}

	created, _ := backend.Create(posts.NewPost{Value: 5, AuthorID: "u"})
	post, err = c.FetchPost(ctx, created.ID)
	if err != nil || post == nil || post.ID != created.ID {
		t.Fatalf("FetchPost = %#v, %v; want %s", post, err, created.ID)
	}
}

func TestClient_FetchAncestorsOrderedRootFirst(t *testing.T) {
	c, backend := newTestClient(t)
	ctx := testContext(t)

	root, _ := backend.Create(posts.NewPost{Value: 10, AuthorID: "u"})
	mid, _ := backend.Create(posts.NewPost{Value: 2, Operation: posts.OpMultiply, ParentID: root.ID, AuthorID: "u"})
	leaf, _ := backend.Create(posts.NewPost{Value: 1, Operation: posts.OpAdd, ParentID: mid.ID, AuthorID: "u"})

	chain, err := c.FetchAncestors(ctx, leaf.ID)
	if err != nil {
		t.Fatalf("FetchAncestors returned error: %v", err)
	}
	if got := posts.IDs(chain); !reflect.DeepEqual(got, []string{root.ID, mid.ID}) {
		t.Fatalf("chain = %v, want [%s %s]", got, root.ID, mid.ID)
	}

	chain, err = c.FetchAncestors(ctx, root.ID)
	if err != nil || len(chain) != 0 {
		t.Fatalf("FetchAncestors(root) = %v, %v; want empty", chain, err)
	}
	chain, err = c.FetchAncestors(ctx, "missing")
	if err != nil || len(chain) != 0 {
		t.Fatalf("FetchAncestors(missing) = %v, %v; want empty", chain, err)
	}
}

func TestClient_FetchLatest(t *testing.T) {
	c, backend := newTestClient(t)
	ctx := testContext(t)

	latest, err := c.FetchLatest(ctx, posts.Root())
	if err != nil || latest != nil {
		t.Fatalf("FetchLatest(empty) = %#v, %v; want nil", latest, err)
	}

	backend.Create(posts.NewPost{Value: 1, AuthorID: "u"})
	newest, _ := backend.Create(posts.NewPost{Value: 2, AuthorID: "u"})

	latest, err = c.FetchLatest(ctx, posts.Root())
	if err != nil {
		t.Fatalf("FetchLatest returned error: %v", err)
	}
	if latest == nil || latest.ID != newest.ID {
		t.Fatalf("FetchLatest = %#v, want %s", latest, newest.ID)
	}
}

func TestClient_CreatePost(t *testing.T) {
	c, backend := newTestClient(t)
	ctx := testContext(t)

	root, err := c.CreatePost(ctx, posts.NewPost{Value: 10, AuthorID: "u"})
	if err != nil {
		t.Fatalf("CreatePost(root) returned error: %v", err)
	}
	reply, err := c.CreatePost(ctx, posts.NewPost{Value: 3, Operation: posts.OpSubtract, ParentID: root.ID, AuthorID: "u"})
	if err != nil {
		t.Fatalf("CreatePost(reply) returned error: %v", err)
	}
	if reply.Result != 7 || reply.ParentID != root.ID {
		t.Fatalf("reply = %#v, want result 7 under %s", reply, root.ID)
	}

	before := backend.Requests(apitest.RouteCreate)
	_, err = c.CreatePost(ctx, posts.NewPost{Value: 0, Operation: posts.OpDivide, ParentID: root.ID, AuthorID: "u"})
	var verr *posts.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("CreatePost(/0) error = %v, want ValidationError", err)
	}
	if backend.Requests(apitest.RouteCreate) != before {
		t.Fatal("invalid draft reached the network")
	}
}

func TestClient_TransportErrorCarriesStatusAndMessage(t *testing.T) {
	c, backend := newTestClient(t)
	ctx := testContext(t)
	backend.FailRoute(apitest.RouteList, http.StatusInternalServerError)

	_, err := c.FetchPage(ctx, posts.Root(), "", 0)
	var terr *TransportError
	if !errors.As(err, &terr) {
		t.Fatalf("FetchPage error = %v, want *TransportError", err)
	}
	if terr.StatusCode != http.StatusInternalServerError || StatusCode(err) != 500 {
		t.Fatalf("StatusCode = %d, want 500", terr.StatusCode)
	}
	if terr.Message == "" {
		t.Fatal("TransportError.Message empty, want server error text")
	}
	if IsNotFound(err) {
		t.Fatal("IsNotFound(500) = true")
	}
}

func TestClient_SendsHeadersAndQuery(t *testing.T) {
	t.Parallel()

	var gotQuery url.Values
	var gotUserAgent, gotRequestID string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query()
		gotUserAgent = r.Header.Get("User-Agent")
		gotRequestID = r.Header.Get("X-Request-Id")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"posts":[]}`))
	}))
	t.Cleanup(server.Close)

	c, err := NewClient(server.URL)
	if err != nil {
		t.Fatalf("NewClient returned error: %v", err)
	}
	if _, err := c.FetchPage(testContext(t), posts.Root(), " abc ", 5); err != nil {
		t.Fatalf("FetchPage returned error: %v", err)
	}
	if gotQuery.Get("cursor") != "abc" || gotQuery.Get("limit") != "5" {
		t.Fatalf("query = %v, want cursor=abc limit=5", gotQuery)
	}
	if gotUserAgent != defaultUserAgent {
		t.Fatalf("User-Agent = %q, want %q", gotUserAgent, defaultUserAgent)
	}
	if gotRequestID == "" {
		t.Fatal("X-Request-Id missing")
	}
}

func TestClient_NilReceiver(t *testing.T) {
	var c *Client
	if _, err := c.FetchPage(context.Background(), posts.Root(), "", 0); err == nil {
		t.Fatal("nil client FetchPage returned nil error")
	}
	if _, err := c.FetchPost(context.Background(), "x"); err == nil {
		t.Fatal("nil client FetchPost returned nil error")
	}
}

type recordedRequest struct {
	route  string
	status int
}

type recordingObserver struct {
	requests []recordedRequest
}

func (r *recordingObserver) ObserveRequest(route string, status int, _ time.Duration) {
	r.requests = append(r.requests, recordedRequest{route: route, status: status})
}

func TestClient_ObserverSeesRoutesAndStatus(t *testing.T) {
	c, _ := newTestClient(t)
	ctx := testContext(t)
	obs := &recordingObserver{}
	c.SetObserver(obs)

	root, err := c.CreatePost(ctx, posts.NewPost{Value: 2, AuthorID: "u"})
	if err != nil {
		t.Fatalf("CreatePost returned error: %v", err)
	}
	_, _ = c.FetchPage(ctx, posts.Root(), "", 10)
	_, _ = c.FetchPage(ctx, posts.ChildrenOf(root.ID), "", 10)
	_, _ = c.FetchPost(ctx, "missing")
	_, _ = c.FetchAncestors(ctx, root.ID)

	want := []recordedRequest{
		{"create", http.StatusCreated},
		{"list", http.StatusOK},
		{"children", http.StatusOK},
		{"post", http.StatusNotFound},
		{"parents", http.StatusOK},
	}
	if !reflect.DeepEqual(obs.requests, want) {
		t.Fatalf("observed = %+v, want %+v", obs.requests, want)
	}
}

func TestRouteLabel(t *testing.T) {
	tests := []struct {
		method   string
		segments []string
		want     string
	}{
		{http.MethodGet, []string{"posts"}, "list"},
		{http.MethodPost, []string{"posts"}, "create"},
		{http.MethodGet, []string{"posts", "abc"}, "post"},
		{http.MethodGet, []string{"posts", "abc", "children"}, "children"},
		{http.MethodGet, []string{"posts", "abc", "parents"}, "parents"},
	}
	for _, tt := range tests {
		if got := routeLabel(tt.method, tt.segments); got != tt.want {
			t.Errorf("routeLabel(%s, %v) = %q, want %q", tt.method, tt.segments, got, tt.want)
		}
	}
}
