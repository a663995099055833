// Package poller watches a scope for posts newer than the ones on screen.
//
// A Poller moves Idle → Armed on Start, Armed → Triggered when the newest post
// of its scope is strictly newer than the watermark, and back to Armed on
// Dismiss. While triggered no checks run. Stop returns it to Idle and cancels
// the timer.
package poller

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/five82/posttree/internal/posts"
)

// DefaultInterval is the time between checks.
const DefaultInterval = 3 * time.Minute

// State of a Poller.
type State int

const (
	Idle State = iota
	Armed
	Triggered
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Armed:
		return "armed"
	case Triggered:
		return "triggered"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// LatestFetcher returns the newest post of a scope, or nil when it is empty.
type LatestFetcher interface {
	FetchLatest(ctx context.Context, scope posts.Scope) (*posts.Post, error)
}

// Invalidator drops cached pages of a scope.
type Invalidator interface {
	Invalidate(scope posts.Scope)
}

// Options configure a Poller.
type Options struct {
	Interval time.Duration
	// Now defaults to time.Now.
	Now    func() time.Time
	Logger *log.Logger
}

// Poller runs the staleness check for one scope.
type Poller struct {
	scope       posts.Scope
	latest      LatestFetcher
	invalidator Invalidator
	interval    time.Duration
	now         func() time.Time
	logger      *log.Logger
	signal      chan struct{}

	mu        sync.Mutex
	state     State
	watermark time.Time
	// epoch changes every time the poller is armed.
	epoch  uint64
	parent context.Context
	cancel context.CancelFunc
}

// New returns an idle Poller for scope.
func New(scope posts.Scope, latest LatestFetcher, invalidator Invalidator, opts Options) *Poller {
	interval := opts.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Poller{
		scope:       scope,
		latest:      latest,
		invalidator: invalidator,
		interval:    interval,
		now:         now,
		logger:      logger.WithPrefix("poller").With("scope", scope.Key()),
		signal:      make(chan struct{}, 1),
	}
}

// Scope returns the watched scope.
func (p *Poller) Scope() posts.Scope {
	return p.scope
}

// State returns the current state.
func (p *Poller) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Watermark returns the time newer posts are compared against.
func (p *Poller) Watermark() time.Time {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.watermark
}

// Signal receives a value each time the poller becomes Triggered.
func (p *Poller) Signal() <-chan struct{} {
	return p.signal
}

// Start arms the poller with the watermark set to now. The timer stops when
// ctx is done or Stop is called. Starting a poller that is not idle does
// nothing.
func (p *Poller) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state != Idle {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}
	p.parent = ctx
	p.watermark = p.now()
	p.armLocked()
}

// Stop cancels the timer and returns the poller to Idle.
func (p *Poller) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopTimerLocked()
	p.state = Idle
}

// Dismiss acknowledges new data: the watermark moves to now, the scope is
// invalidated and the poller is re-armed with a fresh timer.
func (p *Poller) Dismiss() {
	p.mu.Lock()
	if p.state == Idle {
		p.mu.Unlock()
		return
	}
	p.stopTimerLocked()
	p.watermark = p.now()
	p.armLocked()
	p.mu.Unlock()

	// Drain a signal nobody consumed.
	select {
	case <-p.signal:
	default:
	}
	p.invalidator.Invalidate(p.scope)
	p.logger.Debug("dismissed")
}

// Check runs one staleness check and reports whether it triggered the poller.
// It does nothing unless the poller is armed.
func (p *Poller) Check(ctx context.Context) (bool, error) {
	p.mu.Lock()
	if p.state != Armed {
		p.mu.Unlock()
		return false, nil
	}
	watermark, epoch := p.watermark, p.epoch
	p.mu.Unlock()

	latest, err := p.latest.FetchLatest(ctx, p.scope)
	if err != nil {
		return false, fmt.Errorf("check latest: %w", err)
	}
	if latest == nil || !latest.CreatedAt.After(watermark) {
		return false, nil
	}

	p.mu.Lock()
	// A Dismiss or Stop while the request was out wins.
	if p.state != Armed || p.epoch != epoch {
		p.mu.Unlock()
		return false, nil
	}
	p.state = Triggered
	p.stopTimerLocked()
	p.mu.Unlock()

	select {
	case p.signal <- struct{}{}:
	default:
	}
	p.logger.Info("new posts available", "latest", latest.ID, "created_at", latest.CreatedAt)
	return true, nil
}

func (p *Poller) armLocked() {
	ctx, cancel := context.WithCancel(p.parent)
	p.cancel = cancel
	p.state = Armed
	p.epoch++
	go p.loop(ctx)
}

func (p *Poller) stopTimerLocked() {
	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}
}

func (p *Poller) loop(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		triggered, err := p.Check(ctx)
		if err != nil {
			p.logger.Debug("staleness check failed", "err", err)
			continue
		}
		if triggered {
			return
		}
	}
}
