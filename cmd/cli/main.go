package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/ledgerlock/ledgerlock/internal/client/cli"
	"github.com/ledgerlock/ledgerlock/internal/client/config"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("ledgerlock: %v", err)
	}

	app, err := cli.NewApp(ctx, cfg)
	if err != nil {
		log.Fatalf("ledgerlock: %v", err)
	}
	app.Run(ctx)
}
