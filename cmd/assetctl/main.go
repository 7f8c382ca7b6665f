// Command assetctl inspects archive roots and drives an assetimport runtime
// from a configuration file.
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

	if err := NewCLI().Execute(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "assetctl:", err)
		stop()
		os.Exit(1)
	}
}
