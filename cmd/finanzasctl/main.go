package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"finanzas/internal/cli"
	"finanzas/internal/commands"
)

func main() {
	cli.LoadEnvFile()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := commands.NewRootCmd().ExecuteContext(ctx)
	stop()

	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
