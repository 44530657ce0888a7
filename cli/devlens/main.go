package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	devlenscmder "github.com/devlens/gateway/cmd/devlens"
)

func main() {
	// watch and ask unsubscribe cleanly when interrupted.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := devlenscmder.NewDevlensCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}
