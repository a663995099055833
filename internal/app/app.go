package app

import (
	"context"
	"fmt"
	"io"
	"net/http/httptest"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/five82/posttree/internal/api"
	"github.com/five82/posttree/internal/apitest"
	"github.com/five82/posttree/internal/cache"
	"github.com/five82/posttree/internal/compose"
	"github.com/five82/posttree/internal/config"
	"github.com/five82/posttree/internal/logging"
	"github.com/five82/posttree/internal/metrics"
	"github.com/five82/posttree/internal/posts"
	"github.com/five82/posttree/internal/prefetch"
	"github.com/five82/posttree/internal/prefs"
	"github.com/five82/posttree/internal/query"
	"github.com/five82/posttree/internal/session"
	"github.com/five82/posttree/internal/state"
	"github.com/five82/posttree/internal/syncer"
	"github.com/five82/posttree/internal/ui"
)

// Options configure the posttree application. Non-zero fields override the
// config file.
type Options struct {
	ConfigPath   string
	PrefsPath    string // empty uses default ~/.config/posttree/prefs.toml
	APIURL       string
	PollInterval time.Duration
	MetricsAddr  string
	// Demo serves a seeded in-memory API instead of contacting a server.
	Demo bool
}

// Run boots the posttree TUI until the user quits or ctx is cancelled.
func Run(ctx context.Context, opts Options) error {
	rt, err := build(ctx, opts)
	if err != nil {
		return err
	}
	defer rt.Close()

	if err := rt.session.Open(ctx, rt.prefs.LastPost); err != nil {
		// The view carries the error; the UI offers a retry.
		rt.logger.Warn("initial load failed", "post", rt.prefs.LastPost, "err", err)
	}

	runErr := ui.Run(ui.Options{
		Context:   ctx,
		Session:   rt.session,
		State:     rt.state,
		Prefs:     rt.prefs,
		PrefsPath: opts.PrefsPath,
		LogPath:   rt.cfg.LogPath(),
	})
	rt.saveLastPost(opts.PrefsPath)
	return runErr
}

// runtime holds the wired components of one posttree process.
type runtime struct {
	cfg     config.Config
	prefs   prefs.Prefs
	logger  *log.Logger
	client  *api.Client
	metrics *metrics.Metrics
	store   *cache.Store
	queries *query.Cache
	state   *state.Store
	session *session.Session
	demo    bool

	closers []func()
}

// build loads configuration and wires the store, query cache, synchronizer,
// prefetcher, composer and session. The synchronizer subscribes before the
// session so the post store is current when the session rebuilds its view.
func build(ctx context.Context, opts Options) (*runtime, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if v := strings.TrimSpace(opts.APIURL); v != "" {
		cfg.APIURL = v
	}
	if opts.PollInterval > 0 {
		cfg.PollInterval = opts.PollInterval
	}
	if v := strings.TrimSpace(opts.MetricsAddr); v != "" {
		cfg.MetricsAddr = v
	}

	userPrefs, err := prefs.Load(opts.PrefsPath)
	if err != nil {
		return nil, fmt.Errorf("load prefs: %w", err)
	}

	logger, logFile, err := logging.Setup(cfg.LogPath(), cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("init logging: %w", err)
	}
	rt := &runtime{cfg: cfg, prefs: userPrefs, logger: logger, demo: opts.Demo}
	rt.closers = append(rt.closers, func() { _ = logFile.Close() })

	baseURL := cfg.APIURL
	if opts.Demo {
		srv := startDemoServer()
		rt.closers = append(rt.closers, srv.Close)
		baseURL = srv.URL
		if rt.prefs.AuthorID == "" {
			rt.prefs.AuthorID = apitest.DemoAuthorID
		}
	}

	client, err := api.NewClient(baseURL)
	if err != nil {
		rt.Close()
		return nil, fmt.Errorf("init api client: %w", err)
	}
	rt.client = client
	rt.metrics = metrics.New()
	client.SetObserver(rt.metrics)
	if cfg.MetricsAddr != "" {
		rt.serveMetrics(ctx, cfg.MetricsAddr)
	}

	rt.store = cache.New()
	rt.queries = query.New(ctx, client, query.Options{PageSize: cfg.PageSize, Logger: logger})
	detach := syncer.New(rt.store, logger).Attach(rt.queries)
	rt.closers = append(rt.closers, detach)

	pre := prefetch.New(ctx, rt.store, rt.queries, client, logger)
	pre.SetObserver(rt.metrics)
	composer := compose.New(client, rt.queries, rt.store, logger)
	rt.state = &state.Store{}
	rt.session = session.New(ctx, session.Deps{
		Store:        rt.store,
		Queries:      rt.queries,
		Prefetch:     pre,
		Composer:     composer,
		Latest:       client,
		State:        rt.state,
		PollInterval: cfg.PollInterval,
		Logger:       logger,
	})
	rt.session.SetAuthor(rt.prefs.AuthorID)
	rt.closers = append(rt.closers, rt.session.Close)

	logger.Info("posttree started",
		"api", client.BaseURL(),
		"demo", opts.Demo,
		"page_size", cfg.PageSize,
		"poll_interval", cfg.PollInterval,
		"metrics", cfg.MetricsAddr,
	)
	return rt, nil
}

// serveMetrics runs the /metrics listener until Close. A listener failure is
// logged and does not stop the client.
func (rt *runtime) serveMetrics(ctx context.Context, addr string) {
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := rt.metrics.Serve(ctx, addr, rt.logger); err != nil {
			rt.logger.Error("metrics listener stopped", "addr", addr, "err", err)
		}
	}()
	rt.closers = append(rt.closers, func() {
		cancel()
		<-done
	})
}

// Close releases everything build started, newest first.
func (rt *runtime) Close() {
	for i := len(rt.closers) - 1; i >= 0; i-- {
		rt.closers[i]()
	}
	rt.closers = nil
}

// saveLastPost records the open post so the next start returns to it. The
// file is re-read because the UI may have saved a new theme. Demo ids do not
// outlive the process, so demo runs save nothing.
func (rt *runtime) saveLastPost(path string) {
	if rt.demo {
		return
	}
	current, err := prefs.Load(path)
	if err != nil {
		current = rt.prefs
	}
	current.LastPost = rt.session.FocusID()
	if err := prefs.Save(path, current); err != nil {
		rt.logger.Warn("save prefs failed", "err", err)
	}
}

func startDemoServer() *httptest.Server {
	backend := apitest.NewBackend()
	apitest.SeedDemo(backend)
	return apitest.NewServer(backend)
}

// Dump prints the first root page as an indented tree, following replies up
// to depth levels, without starting the TUI.
func Dump(ctx context.Context, opts Options, w io.Writer, depth int) error {
	rt, err := build(ctx, opts)
	if err != nil {
		return err
	}
	defer rt.Close()

	d := dumper{queries: rt.queries, store: rt.store, w: w, maxDepth: depth}
	if err := d.scope(ctx, posts.Root(), 0); err != nil {
		return err
	}
	stats := rt.store.Stats()
	rt.logger.Debug("dump finished", "posts", stats.Posts, "child_scopes", stats.ChildScopes)
	return nil
}

type dumper struct {
	queries  *query.Cache
	store    *cache.Store
	w        io.Writer
	maxDepth int
}

func (d dumper) scope(ctx context.Context, scope posts.Scope, depth int) error {
	res, err := d.queries.Fetch(ctx, scope)
	defer d.queries.Release(scope)
	if err != nil {
		return fmt.Errorf("fetch %s: %w", scope, err)
	}
	items := res.Posts()
	if depth == 0 && len(items) == 0 {
		_, err := fmt.Fprintln(d.w, "(no posts)")
		return err
	}
	for _, p := range items {
		// The store holds the freshest record for the id.
		if cached, ok := d.store.Post(p.ID); ok {
			p = cached
		}
		if err := d.line(p, depth); err != nil {
			return err
		}
		if p.ChildCount > 0 && depth < d.maxDepth {
			if err := d.scope(ctx, posts.ChildrenOf(p.ID), depth+1); err != nil {
				return err
			}
		}
	}
	if res.HasNextPage {
		_, err := fmt.Fprintf(d.w, "%s...\n", strings.Repeat("  ", depth))
		return err
	}
	return nil
}

func (d dumper) line(p posts.Post, depth int) error {
	_, err := fmt.Fprintf(d.w, "%s%s = %s  %s  %s\n",
		strings.Repeat("  ", depth),
		p.Label(),
		posts.FormatNumber(p.Result),
		p.Author.DisplayName(),
		p.CreatedAt.Local().Format(time.DateTime),
	)
	return err
}
