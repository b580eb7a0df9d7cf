package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Gunvolt24/resto_sync/internal/dashboard"
)

func main() {
	os.Exit(run())
}

func run() int {
	addr := flag.String("addr", "127.0.0.1:8080", "API address (host:port or URL)")
	poll := flag.Duration("poll", 2*time.Second, "refresh interval")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	client, err := dashboard.NewClient(*addr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "resto-top: %v\n", err)
		return 1
	}

	if err := dashboard.Run(dashboard.Options{Context: ctx, Fetcher: client, PollTick: *poll}); err != nil {
		fmt.Fprintf(os.Stderr, "resto-top: %v\n", err)
		return 1
	}
	return 0
}
