package state

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/five82/posttree/internal/posts"
)

// View is what the current screen shows.
type View struct {
	Scope posts.Scope
	// Focus is the post whose replies are listed; nil for the root list.
	Focus     *posts.Post
	Ancestors []posts.Post
	Posts     []posts.Post
	// Loading is set while the scope's first page is outstanding.
	Loading      bool
	FetchingNext bool
	HasMore      bool
	// FromCache marks Posts as taken from the post store because the query
	// had no pages yet.
	FromCache bool
	NotFound  bool
	// NewData is set when newer posts exist on the server.
	NewData bool
}

// Snapshot represents the latest data available to the UI.
type Snapshot struct {
	View
	LastUpdated         time.Time
	LastError           error
	ConsecutiveFailures int // Number of consecutive failed loads
}

// IsOffline returns true when the API has failed several loads in a row.
func (s Snapshot) IsOffline() bool {
	return s.ConsecutiveFailures >= 2
}

// Store coordinates concurrent updates to the snapshot.
type Store struct {
	mu       sync.RWMutex
	snapshot Snapshot
}

// Update replaces the stored view. When err is non-nil the error is recorded
// and the previous posts are kept if the new view has none. Only an error
// different from the one already recorded counts as another failure.
func (s *Store) Update(view View, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.snapshot.LastUpdated = time.Now()
	if err != nil {
		if len(view.Posts) == 0 && view.Scope == s.snapshot.Scope {
			view.Posts = s.snapshot.Posts
		}
		s.snapshot.View = cloneView(view)
		// Republishing the same stuck error is not a new failure.
		if s.snapshot.LastError == nil || !errors.Is(err, s.snapshot.LastError) {
			s.snapshot.ConsecutiveFailures++
		}
		s.snapshot.LastError = err
		return
	}
	s.snapshot.View = cloneView(view)
	s.snapshot.LastError = nil
	s.snapshot.ConsecutiveFailures = 0
}

// SetNewData flips the new-data flag without touching anything else.
func (s *Store) SetNewData(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshot.NewData = v
}

// Reset clears the snapshot.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshot = Snapshot{}
}

// Snapshot returns a copy of the current snapshot.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := s.snapshot
	snap.View = cloneView(s.snapshot.View)
	if s.snapshot.LastError != nil {
		snap.LastError = fmt.Errorf("%w", s.snapshot.LastError)
	}
	return snap
}

func cloneView(v View) View {
	if v.Focus != nil {
		focus := *v.Focus
		v.Focus = &focus
	}
	v.Ancestors = clonePosts(v.Ancestors)
	v.Posts = clonePosts(v.Posts)
	return v
}

func clonePosts(items []posts.Post) []posts.Post {
	if len(items) == 0 {
		return nil
	}
	dup := make([]posts.Post, len(items))
	copy(dup, items)
	return dup
}
