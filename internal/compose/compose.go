// Package compose submits new posts and refreshes the caches they affect.
package compose

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"

	"github.com/five82/posttree/internal/cache"
	"github.com/five82/posttree/internal/posts"
)

// Backend creates posts and loads single records.
type Backend interface {
	CreatePost(ctx context.Context, draft posts.NewPost) (posts.Post, error)
	FetchPost(ctx context.Context, id string) (*posts.Post, error)
}

// Invalidator drops cached pages of a scope.
type Invalidator interface {
	Invalidate(scope posts.Scope)
}

// Composer submits drafts.
type Composer struct {
	backend     Backend
	invalidator Invalidator
	store       *cache.Store
	logger      *log.Logger
}

// New returns a Composer.
func New(backend Backend, invalidator Invalidator, store *cache.Store, logger *log.Logger) *Composer {
	if logger == nil {
		logger = log.Default()
	}
	return &Composer{
		backend:     backend,
		invalidator: invalidator,
		store:       store,
		logger:      logger.WithPrefix("compose"),
	}
}

// Submit validates draft, creates it and invalidates the listing it lands in.
// For replies the parent record is refetched so its reply count is current.
// Invalid drafts return a *posts.ValidationError without any request.
func (c *Composer) Submit(ctx context.Context, draft posts.NewPost) (posts.Post, error) {
	if err := draft.Validate(); err != nil {
		return posts.Post{}, err
	}
	created, err := c.backend.CreatePost(ctx, draft)
	if err != nil {
		return posts.Post{}, fmt.Errorf("create post: %w", err)
	}
	c.store.SetPost(created)
	c.invalidator.Invalidate(draft.Scope())
	c.logger.Info("post created", "id", created.ID, "scope", draft.Scope().Key(), "result", created.Result)

	if draft.IsReply() {
		parent, err := c.backend.FetchPost(ctx, draft.ParentID)
		switch {
		case err != nil:
			c.logger.Warn("parent refresh failed", "parent", draft.ParentID, "err", err)
		case parent != nil:
			c.store.SetPost(*parent)
		}
	}
	return created, nil
}

// SubmitForm parses raw input and submits it.
func (c *Composer) SubmitForm(ctx context.Context, valueText, opText, parentID, authorID string) (posts.Post, error) {
	draft, err := posts.ParseDraft(valueText, opText, parentID, authorID)
	if err != nil {
		return posts.Post{}, err
	}
	return c.Submit(ctx, draft)
}
