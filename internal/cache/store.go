package cache

import (
	"sync"

	"github.com/five82/posttree/internal/posts"
)

// Stats summarises the store contents for status lines and tests.
type Stats struct {
	Posts       int
	RootIDs     int
	ChildScopes int
	Cursors     int
}

// Store is the process-wide normalized post cache. The zero value is ready to
// use. Writes are last-write-wins per post id and union-merge per index.
type Store struct {
	mu         sync.RWMutex
	byID       map[string]posts.Post
	childrenOf map[string][]string
	rootOrder  []string
	cursors    map[string]posts.Cursor
}

// New returns an empty store.
func New() *Store {
	return &Store{}
}

func (s *Store) init() {
	if s.byID == nil {
		s.byID = make(map[string]posts.Post)
	}
	if s.childrenOf == nil {
		s.childrenOf = make(map[string][]string)
	}
	if s.cursors == nil {
		s.cursors = make(map[string]posts.Cursor)
	}
}

// SetPost inserts or overwrites a post by id. Invariants are not checked.
func (s *Store) SetPost(post posts.Post) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.init()
	s.byID[post.ID] = post
}

// SetPosts records every post without touching any index.
func (s *Store) SetPosts(items []posts.Post) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.init()
	s.recordLocked(items)
}

// SetChildren replaces the child order of parentID wholesale.
func (s *Store) SetChildren(parentID string, items []posts.Post, next string) {
	s.Set(posts.ChildrenOf(parentID), items, next)
}

// SetRootPosts replaces the root order wholesale.
func (s *Store) SetRootPosts(items []posts.Post, next string) {
	s.Set(posts.Root(), items, next)
}

// AppendChildren merges items into the child order of parentID.
func (s *Store) AppendChildren(parentID string, items []posts.Post, next string) {
	s.Append(posts.ChildrenOf(parentID), items, next)
}

// AppendRootPosts merges items into the root order.
func (s *Store) AppendRootPosts(items []posts.Post, next string) {
	s.Append(posts.Root(), items, next)
}

// Set replaces the order of scope with the ids of items, in the order given,
// and records next as the scope's cursor. Duplicate ids inside items keep their
// first position.
func (s *Store) Set(scope posts.Scope, items []posts.Post, next string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.init()
	s.recordLocked(items)
	s.setOrderLocked(scope, mergeIDs(nil, items))
	s.cursors[scope.Key()] = posts.NextCursor(next)
}

// Append merges the ids of items into the order of scope: existing ids keep
// their position and unseen ids are appended in the order received. Appending
// the same page twice leaves the order unchanged.
func (s *Store) Append(scope posts.Scope, items []posts.Post, next string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.init()
	s.recordLocked(items)
	s.setOrderLocked(scope, mergeIDs(s.orderLocked(scope), items))
	s.cursors[scope.Key()] = posts.NextCursor(next)
}

// Post returns the cached post for id.
func (s *Store) Post(id string) (posts.Post, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	post, ok := s.byID[id]
	return post, ok
}

// HasPost reports whether id is cached.
func (s *Store) HasPost(id string) bool {
	_, ok := s.Post(id)
	return ok
}

// Children returns the cached replies of parentID in server order.
func (s *Store) Children(parentID string) []posts.Post {
	return s.Ordered(posts.ChildrenOf(parentID))
}

// RootPosts returns the cached root posts in server order.
func (s *Store) RootPosts() []posts.Post {
	return s.Ordered(posts.Root())
}

// Ordered resolves the order of scope into posts. Ids whose record is missing
// are skipped.
func (s *Store) Ordered(scope posts.Scope) []posts.Post {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := s.orderLocked(scope)
	if len(ids) == 0 {
		return nil
	}
	out := make([]posts.Post, 0, len(ids))
	for _, id := range ids {
		if post, ok := s.byID[id]; ok {
			out = append(out, post)
		}
	}
	return out
}

// OrderIDs returns a copy of the raw id order of scope.
func (s *Store) OrderIDs(scope posts.Scope) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := s.orderLocked(scope)
	if len(ids) == 0 {
		return nil
	}
	dup := make([]string, len(ids))
	copy(dup, ids)
	return dup
}

// Cursor returns the pagination position of scope. Scopes never written report
// CursorUnfetched.
func (s *Store) Cursor(scope posts.Scope) posts.Cursor {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cursors[scope.Key()]
}

// Ancestors walks parent links from id using cached records only and returns
// the chain ordered root first, excluding id itself. complete is false when a
// link is missing from the cache or id itself is unknown.
func (s *Store) Ancestors(id string) (chain []posts.Post, complete bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	post, ok := s.byID[id]
	if !ok {
		return nil, false
	}
	seen := map[string]struct{}{id: {}}
	for parentID := post.ParentID; parentID != ""; {
		if _, loop := seen[parentID]; loop {
			return nil, false
		}
		seen[parentID] = struct{}{}
		parent, ok := s.byID[parentID]
		if !ok {
			return nil, false
		}
		chain = append(chain, parent)
		parentID = parent.ParentID
	}
	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}
	return chain, true
}

// Stats returns entry counts.
func (s *Store) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Stats{
		Posts:       len(s.byID),
		RootIDs:     len(s.rootOrder),
		ChildScopes: len(s.childrenOf),
		Cursors:     len(s.cursors),
	}
}

// Clear wipes posts, indexes and cursors in one step.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byID = nil
	s.childrenOf = nil
	s.rootOrder = nil
	s.cursors = nil
}

func (s *Store) recordLocked(items []posts.Post) {
	for _, item := range items {
		s.byID[item.ID] = item
	}
}

func (s *Store) orderLocked(scope posts.Scope) []string {
	if scope.IsRoot() {
		return s.rootOrder
	}
	return s.childrenOf[scope.ParentID]
}

func (s *Store) setOrderLocked(scope posts.Scope, ids []string) {
	if scope.IsRoot() {
		s.rootOrder = ids
		return
	}
	s.childrenOf[scope.ParentID] = ids
}

// mergeIDs returns a fresh slice holding existing followed by the unseen ids of
// items.
func mergeIDs(existing []string, items []posts.Post) []string {
	merged := make([]string, 0, len(existing)+len(items))
	seen := make(map[string]struct{}, len(existing)+len(items))
	for _, id := range existing {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		merged = append(merged, id)
	}
	for _, item := range items {
		if _, ok := seen[item.ID]; ok {
			continue
		}
		seen[item.ID] = struct{}{}
		merged = append(merged, item.ID)
	}
	return merged
}
