// Package syncer mirrors query cache transitions into the normalized post
// store so every view reads the same records.
package syncer

import (
	"github.com/charmbracelet/log"

	"github.com/five82/posttree/internal/cache"
	"github.com/five82/posttree/internal/query"
)

// Source publishes query cache events.
type Source interface {
	Subscribe(fn func(query.Event)) (unsubscribe func())
}

// Synchronizer applies query events to a cache.Store.
type Synchronizer struct {
	store  *cache.Store
	logger *log.Logger
}

// New returns a Synchronizer writing into store.
func New(store *cache.Store, logger *log.Logger) *Synchronizer {
	if logger == nil {
		logger = log.Default()
	}
	return &Synchronizer{store: store, logger: logger.WithPrefix("sync")}
}

// Attach subscribes s to src. The returned func detaches it.
func (s *Synchronizer) Attach(src Source) (detach func()) {
	return src.Subscribe(s.Handle)
}

// Handle applies one event. A Replace sets the scope ordering wholesale, an
// Extend merges the page into it and a Refresh only updates records.
func (s *Synchronizer) Handle(ev query.Event) {
	if s == nil || s.store == nil {
		return
	}
	items := ev.Page.Posts
	switch ev.Transition {
	case query.Replace:
		s.store.Set(ev.Scope, items, ev.Page.NextCursor)
	case query.Extend:
		s.store.Append(ev.Scope, items, ev.Page.NextCursor)
	case query.Refresh:
		s.store.SetPosts(items)
	default:
		s.logger.Warn("ignoring event with unknown transition", "scope", ev.Scope.Key(), "transition", int(ev.Transition))
		return
	}
	s.logger.Debug("synced", "scope", ev.Scope.Key(), "transition", ev.Transition, "posts", len(items))
}
