// Package app provides the orchestration layer for posttree.
//
// # Overview
//
// This package wires together configuration, logging, the API client, the
// caches and the UI. It is the composition root: every dependency is
// created here and handed to the packages that use it.
//
// # Architecture
//
//  1. Load ~/.config/posttree/config.toml and apply CLI overrides
//  2. Load prefs (theme, author, last open post)
//  3. Open the log file; the TUI owns the terminal
//  4. Create the API client (or a seeded in-memory server with -demo)
//  5. Create the post store and the query cache, and attach the synchronizer
//  6. Create the prefetcher, the composer and the session
//  7. Open the last post (or the root list) and run the TUI until exit
//
// # Data Flow
//
//	┌──────────────┐
//	│   Run()      │ Initialize everything
//	└──────┬───────┘
//	       │
//	       ├─────> config.Load()        Read config
//	       ├─────> logging.Setup()      Log file
//	       ├─────> api.NewClient()      HTTP client
//	       ├─────> metrics.New()        Request/prefetch counters (-metrics serves them)
//	       ├─────> query.New()          Page cache (singleflight per scope)
//	       ├─────> syncer.Attach()      Mirror pages into cache.Store
//	       ├─────> session.New()        Navigation + staleness poller
//	       └─────> ui.Run()             Start TUI (blocks)
//
//	Page arrival:
//	┌─────────────────────────────────────────┐
//	│ query.Cache emits Event                 │
//	│  ├─> Synchronizer: Set/Append/SetPosts  │
//	│  └─> Session: state.Merge -> Update     │
//	│      └─> UI reads state.Snapshot()      │
//	└─────────────────────────────────────────┘
//
// # Error Handling
//
// Fatal errors (returned from Run):
//   - Invalid configuration
//   - Log file cannot be opened
//   - Invalid API base URL
//
// Recoverable errors (shown in the UI, logged):
//   - Page and post fetch failures
//   - Staleness checks, which are retried on the next tick
//
// # Dump mode
//
// Dump runs the same wiring without the TUI and prints the root page as an
// indented tree, which is handy for scripts and for checking a server.
package app
