// Package apitest implements the posts collaborator API in memory. Tests use it
// behind httptest; the CLI uses it for -demo.
package apitest

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/five82/posttree/internal/posts"
)

// DefaultLimit matches the collaborator's page size when no limit is sent.
const DefaultLimit = 25

// Route names used by Requests.
const (
	RouteList     = "list"
	RouteChildren = "children"
	RoutePost     = "post"
	RouteParents  = "parents"
	RouteCreate   = "create"
)

// Backend is an in-memory collaborator. The zero value is not usable; call
// NewBackend.
type Backend struct {
	// BeforeServe runs before every request is handled. Tests use it to hold
	// requests in flight.
	BeforeServe func(route string, r *http.Request)
	// Now stamps created posts. Defaults to time.Now.
	Now func() time.Time

	mu       sync.Mutex
	posts    map[string]stored
	seq      int
	last     time.Time
	authors  map[string]posts.Author
	requests map[string]int
	failWith map[string]int
	mux      *http.ServeMux
}

type stored struct {
	post posts.Post
	seq  int
}

// NewBackend returns an empty backend.
func NewBackend() *Backend {
	b := &Backend{
		posts:    make(map[string]stored),
		authors:  make(map[string]posts.Author),
		requests: make(map[string]int),
		failWith: make(map[string]int),
	}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /posts", b.wrap(RouteList, b.handleList))
	mux.HandleFunc("POST /posts", b.wrap(RouteCreate, b.handleCreate))
	mux.HandleFunc("GET /posts/{id}", b.wrap(RoutePost, b.handlePost))
	mux.HandleFunc("GET /posts/{id}/children", b.wrap(RouteChildren, b.handleChildren))
	mux.HandleFunc("GET /posts/{id}/parents", b.wrap(RouteParents, b.handleParents))
	b.mux = mux
	return b
}

// NewServer starts an httptest server for b. Callers close it.
func NewServer(b *Backend) *httptest.Server {
	return httptest.NewServer(b)
}

// ServeHTTP implements http.Handler.
func (b *Backend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	b.mux.ServeHTTP(w, r)
}

// AddAuthor registers a display identity for authorID.
func (b *Backend) AddAuthor(author posts.Author) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.authors[author.ID] = author
}

// Seed inserts post as-is. Missing ids and timestamps are filled in.
func (b *Backend) Seed(post posts.Post) posts.Post {
	b.mu.Lock()
	defer b.mu.Unlock()
	if post.ID == "" {
		post.ID = uuid.NewString()
	}
	if post.CreatedAt.IsZero() {
		post.CreatedAt = b.stampLocked()
	} else if post.CreatedAt.After(b.last) {
		b.last = post.CreatedAt
	}
	if post.Author.ID == "" {
		post.Author = b.authorLocked(post.AuthorID)
	}
	b.seq++
	b.posts[post.ID] = stored{post: post, seq: b.seq}
	return post
}

// Create applies the collaborator's creation rules: the parent must exist, the
// result is computed from the parent's stored result, and division by zero is
// rejected.
func (b *Backend) Create(draft posts.NewPost) (posts.Post, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if strings.TrimSpace(draft.AuthorID) == "" {
		return posts.Post{}, errors.New("authorId is required")
	}
	post := posts.Post{
		ID:        uuid.NewString(),
		Value:     draft.Value,
		AuthorID:  draft.AuthorID,
		Author:    b.authorLocked(draft.AuthorID),
		CreatedAt: b.stampLocked(),
		Result:    draft.Value,
	}
	if draft.ParentID != "" {
		parent, ok := b.posts[draft.ParentID]
		if !ok {
			return posts.Post{}, errParentNotFound
		}
		if !draft.Operation.Valid() {
			return posts.Post{}, errors.New("operation is required for replies")
		}
		result, err := posts.ApplyOp(parent.post.Result, draft.Value, draft.Operation)
		if err != nil {
			if errors.Is(err, posts.ErrDivideByZero) {
				return posts.Post{}, errors.New("cannot divide by zero")
			}
			return posts.Post{}, err
		}
		post.ParentID = draft.ParentID
		post.Operation = draft.Operation
		post.Result = result
		parent.post.ChildCount++
		b.posts[parent.post.ID] = parent
	}
	b.seq++
	b.posts[post.ID] = stored{post: post, seq: b.seq}
	return post, nil
}

// Requests returns how many requests hit route.
func (b *Backend) Requests(route string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.requests[route]
}

// TotalRequests returns the number of requests served across all routes.
func (b *Backend) TotalRequests() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	total := 0
	for _, n := range b.requests {
		total += n
	}
	return total
}

// ResetRequests zeroes the request counters.
func (b *Backend) ResetRequests() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.requests = make(map[string]int)
}

// FailRoute makes route answer with status until cleared with status 0.
func (b *Backend) FailRoute(route string, status int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if status == 0 {
		delete(b.failWith, route)
		return
	}
	b.failWith[route] = status
}

var errParentNotFound = errors.New("parent post not found")

func (b *Backend) stampLocked() time.Time {
	now := time.Now
	if b.Now != nil {
		now = b.Now
	}
	t := now().UTC()
	if !t.After(b.last) {
		t = b.last.Add(time.Millisecond)
	}
	b.last = t
	return t
}

func (b *Backend) authorLocked(id string) posts.Author {
	if author, ok := b.authors[id]; ok {
		return author
	}
	return posts.Author{ID: id}
}

func (b *Backend) wrap(route string, h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		b.requests[route]++
		status := b.failWith[route]
		hook := b.BeforeServe
		b.mu.Unlock()

		if hook != nil {
			hook(route, r)
		}
		if status != 0 {
			writeError(w, status, http.StatusText(status))
			return
		}
		h(w, r)
	}
}

func (b *Backend) handleList(w http.ResponseWriter, r *http.Request) {
	b.writePage(w, r, "posts", func(p posts.Post) bool { return p.ParentID == "" })
}

func (b *Backend) handleChildren(w http.ResponseWriter, r *http.Request) {
	parentID := r.PathValue("id")
	b.writePage(w, r, "children", func(p posts.Post) bool { return p.ParentID == parentID })
}

// writePage fetches limit+1 rows ordered by createdAt descending starting at
// the cursor row; the extra row becomes nextCursor and is left out of the page.
func (b *Backend) writePage(w http.ResponseWriter, r *http.Request, key string, match func(posts.Post) bool) {
	limit := DefaultLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}
	cursor := r.URL.Query().Get("cursor")

	b.mu.Lock()
	rows := make([]stored, 0, len(b.posts))
	for _, s := range b.posts {
		if match(s.post) {
			rows = append(rows, s)
		}
	}
	b.mu.Unlock()

	sort.Slice(rows, func(i, j int) bool {
		if !rows[i].post.CreatedAt.Equal(rows[j].post.CreatedAt) {
			return rows[i].post.CreatedAt.After(rows[j].post.CreatedAt)
		}
		return rows[i].seq > rows[j].seq
	})

	start := 0
	if cursor != "" {
		start = -1
		for i, row := range rows {
			if row.post.ID == cursor {
				start = i
				break
			}
		}
		if start < 0 {
			writeError(w, http.StatusBadRequest, "unknown cursor")
			return
		}
	}
	rows = rows[start:]
	if len(rows) > limit+1 {
		rows = rows[:limit+1]
	}

	page := make([]posts.Post, 0, len(rows))
	for _, row := range rows {
		page = append(page, row.post)
	}
	payload := map[string]any{}
	if len(page) > limit {
		payload["nextCursor"] = page[limit].ID
		page = page[:limit]
	}
	payload[key] = page
	writeJSON(w, http.StatusOK, payload)
}

func (b *Backend) handlePost(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	s, ok := b.posts[r.PathValue("id")]
	b.mu.Unlock()
	if !ok {
		writeError(w, http.StatusNotFound, "Post not found")
		return
	}
	writeJSON(w, http.StatusOK, s.post)
}

func (b *Backend) handleParents(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	s, ok := b.posts[r.PathValue("id")]
	if !ok {
		writeError(w, http.StatusNotFound, "Post not found")
		return
	}
	parents := []posts.Post{}
	for parentID := s.post.ParentID; parentID != ""; {
		parent, ok := b.posts[parentID]
		if !ok {
			break
		}
		parents = append(parents, parent.post)
		parentID = parent.post.ParentID
	}
	for i, j := 0, len(parents)-1; i < j; i, j = i+1, j-1 {
		parents[i], parents[j] = parents[j], parents[i]
	}
	writeJSON(w, http.StatusOK, map[string]any{"parents": parents})
}

func (b *Backend) handleCreate(w http.ResponseWriter, r *http.Request) {
	var draft posts.NewPost
	if err := json.NewDecoder(r.Body).Decode(&draft); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	post, err := b.Create(draft)
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, errParentNotFound) {
			status = http.StatusNotFound
		}
		writeError(w, status, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, post)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
