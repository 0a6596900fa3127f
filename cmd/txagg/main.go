package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/emptyOVO/txagg"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	txagg.Execute(ctx)
}
