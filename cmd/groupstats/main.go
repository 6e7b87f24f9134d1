// Command groupstats fetches GroupMe chat history, reports statistics over
// it and reconstructs hidden phrases from per-message letter sets.
//
// Usage:
//
//	groupstats [--config groupstats.yaml] <command> [flags]
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		stop()
		os.Exit(1)
	}
}
