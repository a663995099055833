package apitest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/five82/posttree/internal/posts"
)

func TestBackend_CreateComputesResult(t *testing.T) {
	b := NewBackend()
	root, err := b.Create(posts.NewPost{Value: 10, AuthorID: "u"})
	if err != nil {
		t.Fatalf("Create(root) returned error: %v", err)
	}
	if root.Result != 10 {
		t.Fatalf("root Result = %v, want 10", root.Result)
	}
	reply, err := b.Create(posts.NewPost{Value: 3, Operation: posts.OpSubtract, ParentID: root.ID, AuthorID: "u"})
	if err != nil {
		t.Fatalf("Create(reply) returned error: %v", err)
	}
	if reply.Result != 7 {
		t.Fatalf("reply Result = %v, want 7", reply.Result)
	}
	if _, err := b.Create(posts.NewPost{Value: 0, Operation: posts.OpDivide, ParentID: root.ID, AuthorID: "u"}); err == nil {
		t.Fatal("Create(/0) returned nil error")
	}
}

func TestBackend_PaginatesWithLimitPlusOne(t *testing.T) {
	b := NewBackend()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	b.Seed(posts.Post{ID: "row3", CreatedAt: base})
	b.Seed(posts.Post{ID: "row2", CreatedAt: base.Add(time.Minute)})
	b.Seed(posts.Post{ID: "row1", CreatedAt: base.Add(2 * time.Minute)})

	rec := httptest.NewRecorder()
	b.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/posts?limit=2", nil))
	var first struct {
		Posts      []posts.Post `json:"posts"`
		NextCursor string       `json:"nextCursor"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&first); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got := posts.IDs(first.Posts); len(got) != 2 || got[0] != "row1" || got[1] != "row2" {
		t.Fatalf("first page = %v, want [row1 row2]", got)
	}
	if first.NextCursor != "row3" {
		t.Fatalf("nextCursor = %q, want row3", first.NextCursor)
	}

	rec = httptest.NewRecorder()
	b.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/posts?limit=2&cursor=row3", nil))
	var second map[string]json.RawMessage
	if err := json.NewDecoder(rec.Body).Decode(&second); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if _, ok := second["nextCursor"]; ok {
		t.Fatalf("second page carries nextCursor, want none")
	}
	if b.Requests(RouteList) != 2 {
		t.Fatalf("Requests(list) = %d, want 2", b.Requests(RouteList))
	}
}

func TestBackend_FailRoute(t *testing.T) {
	b := NewBackend()
	b.FailRoute(RouteList, http.StatusInternalServerError)

	rec := httptest.NewRecorder()
	b.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/posts", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}

	b.FailRoute(RouteList, 0)
	rec = httptest.NewRecorder()
	b.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/posts", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status after clear = %d, want 200", rec.Code)
	}
}

func TestSeedDemo_BuildsTree(t *testing.T) {
	b := NewBackend()
	SeedDemo(b)

	rec := httptest.NewRecorder()
	b.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/posts", nil))
	var page struct {
		Posts []posts.Post `json:"posts"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&page); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(page.Posts) != 3 {
		t.Fatalf("roots = %d, want 3", len(page.Posts))
	}
	for _, root := range page.Posts {
		if root.ChildCount != 2 {
			t.Fatalf("root %s ChildCount = %d, want 2", root.ID, root.ChildCount)
		}
	}
}
