package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/xxiimcha/lk-web/internal/admin"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := admin.NewRootCommand(admin.OpenPostgres).ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}
