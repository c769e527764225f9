package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/five82/skiff/internal/app"
	"github.com/five82/skiff/internal/config"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "", "override config path (optional)")
	pollSeconds := flag.Int("poll", 0, "poll every watch at this interval in seconds (optional)")
	storage := flag.String("storage", "", "query cache backend: sqlite, file or memory (optional)")
	cachePath := flag.String("cache", "", "query cache location for sqlite or file storage (optional)")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: skiff [flags]\n\nInspect API queries served through the skiff cache.\n\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	opts := app.Options{
		ConfigPath: *configPath,
		Storage:    config.Overrides{Storage: *storage, CachePath: *cachePath},
	}
	if poll := *pollSeconds; poll > 0 {
		opts.PollEvery = poll
	}

	if err := app.Run(ctx, opts); err != nil {
		fmt.Fprintf(os.Stderr, "skiff: %v\n", err)
		return 1
	}
	return 0
}
