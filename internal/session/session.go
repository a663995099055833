// Package session drives the screen the user is looking at: which scope is
// shown, its poller, and the snapshot published to the UI.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/five82/posttree/internal/cache"
	"github.com/five82/posttree/internal/compose"
	"github.com/five82/posttree/internal/poller"
	"github.com/five82/posttree/internal/posts"
	"github.com/five82/posttree/internal/prefetch"
	"github.com/five82/posttree/internal/query"
	"github.com/five82/posttree/internal/state"
)

// ErrNoAuthor is returned by Submit when no author is set.
var ErrNoAuthor = errors.New("no author set")

// Deps are the collaborators a Session drives.
type Deps struct {
	Store    *cache.Store
	Queries  *query.Cache
	Prefetch *prefetch.Prefetcher
	Composer *compose.Composer
	Latest   poller.LatestFetcher
	State    *state.Store
	// PollInterval defaults to poller.DefaultInterval.
	PollInterval time.Duration
	Logger       *log.Logger
}

// Session is the lifetime of one interactive view stack.
type Session struct {
	deps   Deps
	logger *log.Logger
	base   context.Context

	// nav serialises navigation.
	nav sync.Mutex

	mu          sync.Mutex
	scope       posts.Scope
	focus       *posts.Post
	ancestors   []posts.Post
	notFound    bool
	authorID    string
	poller      *poller.Poller
	stopWatch   context.CancelFunc
	unsubscribe func()
	closed      bool
}

// New returns a Session. Background work started by the session runs under
// ctx. The session subscribes to deps.Queries, so it must be created after
// anything that has to see events first.
func New(ctx context.Context, deps Deps) *Session {
	if ctx == nil {
		ctx = context.Background()
	}
	logger := deps.Logger
	if logger == nil {
		logger = log.Default()
	}
	if deps.State == nil {
		deps.State = &state.Store{}
	}
	s := &Session{
		deps:   deps,
		logger: logger.WithPrefix("session"),
		base:   ctx,
	}
	s.unsubscribe = deps.Queries.Subscribe(s.handle)
	return s
}

// SetAuthor sets the author used by Submit.
func (s *Session) SetAuthor(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.authorID = id
}

// Author returns the author used by Submit.
func (s *Session) Author() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.authorID
}

// Scope returns the scope on screen.
func (s *Session) Scope() posts.Scope {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scope
}

// FocusID returns the id of the post whose replies are shown, or "" for the
// root list.
func (s *Session) FocusID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.focus == nil {
		return ""
	}
	return s.focus.ID
}

// State returns the snapshot store the session publishes to.
func (s *Session) State() *state.Store {
	return s.deps.State
}

// Open shows post id with its ancestors and replies; "" opens the root list.
// The post, its chain and the first page of replies are awaited before the
// view switches. An unknown id shows a not-found view without an error.
func (s *Session) Open(ctx context.Context, id string) error {
	s.nav.Lock()
	defer s.nav.Unlock()
	return s.openLocked(ctx, id)
}

func (s *Session) openLocked(ctx context.Context, id string) error {
	post, chain, err := s.deps.Prefetch.Route(ctx, id)
	if err != nil {
		s.logger.Warn("route prefetch failed", "id", id, "err", err)
	}

	scope := posts.Root()
	if id != "" {
		scope = posts.ChildrenOf(id)
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return fmt.Errorf("session closed")
	}
	prev := s.scope
	s.stopPollerLocked()
	s.scope = scope
	s.focus = post
	s.ancestors = chain
	s.notFound = id != "" && post == nil && err == nil
	s.mu.Unlock()

	if prev != scope {
		s.deps.Queries.Release(prev)
	}
	s.deps.State.SetNewData(false)

	if s.isNotFound() {
		s.logger.Info("post not found", "id", id)
		s.publish()
		return nil
	}

	// Starts the fetch in the background when the prefetch did not land a page,
	// for example after a transport error.
	s.deps.Queries.Query(ctx, scope)
	s.startPoller(scope)
	s.publish()
	s.logger.Debug("opened", "scope", scope.Key())
	return err
}

func (s *Session) isNotFound() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.notFound
}

// Back opens the parent of the focused post, or the root list from a root
// post. It does nothing on the root list.
func (s *Session) Back(ctx context.Context) error {
	s.nav.Lock()
	defer s.nav.Unlock()

	s.mu.Lock()
	focus, notFound := s.focus, s.notFound
	s.mu.Unlock()
	switch {
	case focus != nil:
		return s.openLocked(ctx, focus.ParentID)
	case notFound:
		return s.openLocked(ctx, "")
	default:
		return nil
	}
}

// LoadMore requests the next page of the current scope.
func (s *Session) LoadMore(ctx context.Context) error {
	_, err := s.deps.Queries.FetchNextPage(ctx, s.Scope())
	s.publish()
	if err != nil {
		return fmt.Errorf("load more: %w", err)
	}
	return nil
}

// Refresh reloads the current scope. A scope in an error state retries the
// request that failed: the next page when pages are cached, the first page
// otherwise. Without an error the new-data notice is dismissed, which
// invalidates the scope and re-arms the poller.
func (s *Session) Refresh(ctx context.Context) error {
	scope := s.Scope()
	if res := s.deps.Queries.Result(scope); res.Err != nil {
		var err error
		if res.Fetched() {
			_, err = s.deps.Queries.FetchNextPage(ctx, scope)
		} else {
			_, err = s.deps.Queries.Fetch(ctx, scope)
		}
		s.publish()
		if err != nil {
			return fmt.Errorf("retry: %w", err)
		}
		return nil
	}

	s.mu.Lock()
	p := s.poller
	s.mu.Unlock()
	s.deps.State.SetNewData(false)
	if p != nil {
		p.Dismiss()
	} else {
		s.deps.Queries.Invalidate(scope)
	}
	s.publish()
	return nil
}

// Hover warms the replies of id in the background.
func (s *Session) Hover(id string) {
	s.deps.Prefetch.Hover(id)
}

// Submit posts a reply to the focused post, or a root post on the root list.
func (s *Session) Submit(ctx context.Context, valueText, opText string) (posts.Post, error) {
	s.mu.Lock()
	author := s.authorID
	parentID := ""
	if s.focus != nil {
		parentID = s.focus.ID
	}
	s.mu.Unlock()
	if author == "" {
		return posts.Post{}, ErrNoAuthor
	}

	created, err := s.deps.Composer.SubmitForm(ctx, valueText, opText, parentID, author)
	if err != nil {
		return posts.Post{}, err
	}

	s.mu.Lock()
	if s.focus != nil && s.focus.ID == parentID {
		if parent, ok := s.deps.Store.Post(parentID); ok {
			s.focus = &parent
		}
	}
	s.mu.Unlock()
	s.publish()
	return created, nil
}

// Reset forgets every cached post and page and reopens the root list.
func (s *Session) Reset(ctx context.Context) error {
	s.nav.Lock()
	defer s.nav.Unlock()

	s.mu.Lock()
	s.stopPollerLocked()
	s.focus = nil
	s.ancestors = nil
	s.notFound = false
	s.mu.Unlock()

	s.deps.Store.Clear()
	s.deps.Queries.Reset()
	s.deps.State.Reset()
	s.logger.Info("caches cleared")
	return s.openLocked(ctx, "")
}

// Close stops the poller and detaches from the query cache.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.stopPollerLocked()
	scope := s.scope
	unsubscribe := s.unsubscribe
	s.mu.Unlock()

	unsubscribe()
	s.deps.Queries.Release(scope)
}

// PollerState reports the state of the current poller.
func (s *Session) PollerState() poller.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.poller == nil {
		return poller.Idle
	}
	return s.poller.State()
}

func (s *Session) startPoller(scope posts.Scope) {
	p := poller.New(scope, s.deps.Latest, s.deps.Queries, poller.Options{
		Interval: s.deps.PollInterval,
		Logger:   s.logger,
	})
	ctx, cancel := context.WithCancel(s.base)

	s.mu.Lock()
	if s.closed || s.scope != scope {
		s.mu.Unlock()
		cancel()
		return
	}
	s.poller = p
	s.stopWatch = cancel
	s.mu.Unlock()

	p.Start(ctx)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-p.Signal():
				s.deps.State.SetNewData(true)
			}
		}
	}()
}

func (s *Session) stopPollerLocked() {
	if s.stopWatch != nil {
		s.stopWatch()
		s.stopWatch = nil
	}
	if s.poller != nil {
		s.poller.Stop()
		s.poller = nil
	}
}

func (s *Session) handle(ev query.Event) {
	if ev.Scope != s.Scope() {
		return
	}
	s.publish()
}

// publish rebuilds the view of the current scope from the query cache and
// the post store.
func (s *Session) publish() {
	s.mu.Lock()
	scope := s.scope
	var focus *posts.Post
	if s.focus != nil {
		f := *s.focus
		focus = &f
	}
	ancestors := s.ancestors
	notFound := s.notFound
	triggered := s.poller != nil && s.poller.State() == poller.Triggered
	s.mu.Unlock()

	if notFound {
		s.deps.State.Update(state.View{Scope: scope, NotFound: true}, nil)
		return
	}
	res := s.deps.Queries.Result(scope)
	view := state.Merge(res, s.deps.Store)
	if focus != nil {
		if stored, ok := s.deps.Store.Post(focus.ID); ok {
			focus = &stored
		}
	}
	view.Focus = focus
	view.Ancestors = ancestors
	view.NewData = triggered
	s.deps.State.Update(view, res.Err)
}
