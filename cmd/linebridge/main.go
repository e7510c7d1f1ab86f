// Package main is the entry point for the linebridge editor frontend.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/dshills/linebridge/internal/app"
)

// Version information (set via ldflags during build).
var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	os.Exit(run())
}

func run() int {
	opts := parseFlags()

	application, err := app.New(opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-signals
		cancel()
	}()

	if err := application.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func parseFlags() app.Options {
	var opts app.Options
	var showVersion bool

	flag.StringVar(&opts.ConfigPath, "config", "", "Path to configuration file")
	flag.StringVar(&opts.ConfigPath, "c", "", "Path to configuration file (shorthand)")
	flag.StringVar(&opts.EnginePath, "engine", "", "Path to the engine executable")
	flag.StringVar(&opts.EnginePath, "e", "", "Path to the engine executable (shorthand)")
	flag.StringVar(&opts.LogLevel, "log-level", "", "Log level (trace, debug, info, warn, error)")
	flag.BoolVar(&showVersion, "version", false, "Show version information")
	flag.BoolVar(&showVersion, "v", false, "Show version information (shorthand)")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "linebridge - terminal frontend for xi-style text engines\n\n")
		fmt.Fprintf(os.Stderr, "Usage: linebridge [options] [file]\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  linebridge                  Open a scratch buffer\n")
		fmt.Fprintf(os.Stderr, "  linebridge notes.txt        Open a file\n")
		fmt.Fprintf(os.Stderr, "  linebridge -e ./xi-core f   Use a specific engine build\n")
	}

	flag.Parse()

	if showVersion {
		fmt.Printf("linebridge %s (%s)\n", version, commit)
		os.Exit(0)
	}

	if flag.NArg() > 0 {
		opts.FilePath = flag.Arg(0)
	}
	return opts
}
