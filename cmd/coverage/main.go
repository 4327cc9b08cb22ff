// Coverage computes the ground coverage of a satellite constellation for one
// partition of a simulated day and writes per-cell visit counts.
//
// Run one process per partition, each with its own index:
//
//	coverage -c coverage.toml 0 & coverage -c coverage.toml 1 & ...
//
// Shutdown is handled gracefully on SIGINT or SIGTERM; a cancelled run
// writes nothing.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/large-farva/coverage-engine/internal/app"
	"github.com/large-farva/coverage-engine/internal/config"
)

func main() {
	var (
		configPath = pflag.StringP("config", "c", "", "Path to config TOML (built-in defaults when empty)")
		bind       = pflag.String("bind", "", "Status server bind address, e.g. 127.0.0.1:8090 (disabled when empty)")
		refresh    = pflag.Bool("refresh-catalog", false, "Download the catalog even if the cache is fresh")
	)
	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: coverage [flags] <process-index>\n\n")
		pflag.PrintDefaults()
	}
	pflag.Parse()

	if pflag.NArg() != 1 {
		pflag.Usage()
		os.Exit(2)
	}
	process, err := strconv.Atoi(pflag.Arg(0))
	if err != nil {
		log.Fatalf("process index %q is not an integer", pflag.Arg(0))
	}

	cfg := config.Default()
	if *configPath != "" {
		cfg, err = config.Load(*configPath)
		if err != nil {
			log.Fatalf("config load failed: %v", err)
		}
	}

	logger := log.New(os.Stdout, "coverage ", log.LstdFlags|log.Lmicroseconds)

	a := app.New(app.Options{
		Logger:     logger,
		Cfg:        cfg,
		ConfigPath: *configPath,
		Bind:       *bind,
		Process:    process,

		RefreshCatalog: *refresh,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	out, err := a.Run(ctx)
	if err != nil {
		logger.Fatalf("process %d failed: %v", process, err)
	}
	logger.Printf("process %d finished: %s", process, out)

	// Brief pause so in-flight log writes can flush before exit.
	time.Sleep(50 * time.Millisecond)
}
