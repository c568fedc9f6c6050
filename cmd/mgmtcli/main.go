package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/mgmtapi/mgmtapi-go/internal/cli"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cli.Execute(ctx)
}
