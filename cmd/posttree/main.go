package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/five82/posttree/internal/app"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "", "override config path (optional)")
	prefsPath := flag.String("prefs", "", "override prefs path (optional)")
	apiURL := flag.String("api", "", "API base URL (optional, defaults to $POSTTREE_APP_URL or http://localhost:3000)")
	poll := flag.Duration("poll", 0, "staleness check interval (optional, defaults to 3m)")
	metricsAddr := flag.String("metrics", "", "serve Prometheus metrics on this address (optional, e.g. :9464)")
	demo := flag.Bool("demo", false, "run against a seeded in-memory API")
	dump := flag.Bool("dump", false, "print the root page as a tree and exit")
	depth := flag.Int("depth", 2, "reply levels to follow with -dump")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	opts := app.Options{
		ConfigPath:  *configPath,
		PrefsPath:   *prefsPath,
		APIURL:      *apiURL,
		MetricsAddr: *metricsAddr,
		Demo:        *demo,
	}
	if *poll > 0 {
		opts.PollInterval = *poll
	}

	var err error
	if *dump {
		dumpCtx, cancelDump := context.WithTimeout(ctx, time.Minute)
		defer cancelDump()
		err = app.Dump(dumpCtx, opts, os.Stdout, *depth)
	} else {
		err = app.Run(ctx, opts)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "posttree: %v\n", err)
		return 1
	}
	return 0
}
